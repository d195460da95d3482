package session

import (
	"bytes"
	"io"

	"github.com/n-peugnet/diffkitchen/archive"
	"github.com/n-peugnet/diffkitchen/compress/zlibutil"
	"github.com/n-peugnet/diffkitchen/item"
)

// remainderCompressionLevel matches spec.md §4.8's "remainder is stored
// zlib-raw at level 9".
const remainderCompressionLevel = 9

// CreateSession assembles a new archive from a target item, an optional
// source reference, a set of recipes, and the archive's payload blobs
// (inline assets, remainder, nested archives). Grounded in
// original_source/src/diffs/api/adudiffcreate.cpp's create_session.
type CreateSession struct {
	a *archive.Archive
}

// NewCreateSession starts a new archive targeting target.
func NewCreateSession(target *item.Definition) *CreateSession {
	return &CreateSession{a: archive.New(target)}
}

// SetSource attaches the base item this archive diffs against.
func (c *CreateSession) SetSource(src *item.Definition) {
	c.a.SetSource(src)
}

// AddRecipe adds one recipe to the archive being assembled, in the wire
// shape (name, result, numbers, item ingredients) buildRecipe in package
// archive expects to read back.
func (c *CreateSession) AddRecipe(name string, result *item.Definition, numbers []uint64, items []*item.Definition) {
	c.a.AddRecipe(name, result, numbers, items)
}

// SetInlineAssets attaches the raw bytes every inline_asset recipe slices.
func (c *CreateSession) SetInlineAssets(b []byte) {
	c.a.SetInlineAssets(b)
}

// SetRemainder compresses raw (the concatenation of every
// remainder_chunk's uncompressed bytes, in declared order) with zlib-raw
// at level 9 and attaches the result.
func (c *CreateSession) SetRemainder(raw []byte) error {
	var buf bytes.Buffer
	if _, err := zlibutil.CompressRaw(&buf, bytes.NewReader(raw), remainderCompressionLevel); err != nil {
		return err
	}
	c.a.SetRemainderCompressed(buf.Bytes())
	return nil
}

// AddNestedArchive embeds a fully-assembled nested archive, indexed by the
// item it produces once applied.
func (c *CreateSession) AddNestedArchive(nested *archive.Archive) {
	c.a.AddNestedArchive(nested)
}

// AddPayload attaches a named reference to an item alongside the recipe
// set (spec.md §6.3's add_payload(name, item)).
func (c *CreateSession) AddPayload(name string, def *item.Definition) {
	c.a.AddPayload(name, def)
}

// WriteDiff encodes the assembled archive in the standard binary format.
func (c *CreateSession) WriteDiff(w io.Writer) error {
	return c.a.Encode(w)
}

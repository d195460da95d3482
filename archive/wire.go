// Package archive implements the on-disk diff archive container of
// spec.md §4.8 and §6.1: the recipe catalog, inline assets, remainder
// stream, and nested archives that make up one PAMZ-format file, plus the
// binary codec reading and writing it.
package archive

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/n-peugnet/diffkitchen/hashutil"
	"github.com/n-peugnet/diffkitchen/item"
)

// Magic identifies the standard-format archive container.
var Magic = [4]byte{'P', 'A', 'M', 'Z'}

// FormatVersion is the only standard-format version this implementation
// writes or accepts (legacy archives are handled separately, see legacy.go).
// spec.md §6.1 carries version as a u64.
const FormatVersion uint64 = 1

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// writeString writes a length-prefixed (u64 byte count) UTF-8 string, per
// spec.md §6.1 ("Strings are length-prefixed as u64 length + UTF-8 bytes").
func writeString(w io.Writer, s string) error {
	if err := writeUint64(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint64(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// writeItemRepr writes an item_repr: a u64 length, followed — only when
// length is non-zero — by a single hash_repr (a fixed u32 algorithm tag
// plus that algorithm's fixed-length digest) carrying def's SHA-256 hash,
// the only hash algorithm the standard format's item_repr carries (spec.md
// §6.1: "hash_repr -- SHA-256 only in standard"). A zero-length item_repr
// denotes an absent optional item (e.g. no source), which is also how
// spec.md describes inline_assets/remainder_comp's "length may be 0".
func writeItemRepr(w io.Writer, def *item.Definition) error {
	if def == nil || def.Length() == 0 {
		return writeUint64(w, 0)
	}
	if err := writeUint64(w, uint64(def.Length())); err != nil {
		return err
	}
	h, ok := def.Hash(item.SHA256)
	if !ok {
		return fmt.Errorf("archive: item %s has no SHA-256 hash to encode", def)
	}
	tag, _ := item.SHA256.WireTag()
	if err := writeUint32(w, tag); err != nil {
		return err
	}
	_, err := w.Write(h.Bytes)
	return err
}

// readItemRepr reads an item_repr. A zero length yields a zero-length,
// hashless Definition; callers that model an optional item treat that as
// absent.
func readItemRepr(r io.Reader) (*item.Definition, error) {
	length, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return item.New(0)
	}
	tag, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	algo, ok := item.AlgorithmFromWireTag(tag)
	if !ok {
		return nil, fmt.Errorf("archive: unknown hash algorithm tag %d", tag)
	}
	buf := make([]byte, algo.Size())
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	h, err := item.NewHash(algo, buf)
	if err != nil {
		return nil, fmt.Errorf("archive: decode item hash: %w", err)
	}
	return item.New(int64(length), h)
}

// writeBlobWithRepr writes an item_repr self-describing data (its length
// and SHA-256 hash), followed by data itself, the shape spec.md §4.8 calls
// for inline assets, the compressed remainder, and nested-archive bytes
// ("length + SHA-256 are written as an item header, then the bytes").
func writeBlobWithRepr(w io.Writer, data []byte) error {
	def, err := selfDescribe(data)
	if err != nil {
		return err
	}
	if err := writeItemRepr(w, def); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readBlobWithRepr reads an item_repr followed by that many raw bytes,
// verifying the bytes hash to the item_repr's declared SHA-256.
func readBlobWithRepr(r io.Reader) ([]byte, error) {
	def, err := readItemRepr(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, def.Length())
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if def.Length() == 0 {
		return buf, nil
	}
	actual, err := selfDescribe(buf)
	if err != nil {
		return nil, err
	}
	if err := hashutil.VerifyHashesMatch(actual, def); err != nil {
		return nil, err
	}
	return buf, nil
}

func selfDescribe(data []byte) (*item.Definition, error) {
	h, err := hashutil.NewHasher(item.SHA256)
	if err != nil {
		return nil, err
	}
	h.HashData(data)
	return item.New(int64(len(data)), h.GetHash())
}

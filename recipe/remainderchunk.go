package recipe

import (
	"github.com/n-peugnet/diffkitchen/dkerr"
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/prepared"
)

const remainderUncompressedName = "remainder.uncompressed"

// NewRemainderChunk builds a recipe reading result.Length() bytes at offset
// into the archive's decompressed remainder stream. package archive passes
// the recipe's first number ingredient from the wire as offset; no running
// total across chunks is kept or checked against it.
func NewRemainderChunk(result *item.Definition, offset int64) (*Recipe, error) {
	length := result.Length()
	return &Recipe{
		Name:   NameRemainderChunk,
		Result: result,
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			remainder, err := k.LookupNamed(remainderUncompressedName)
			if err != nil {
				return nil, err
			}
			if offset+length > remainder.Size() {
				return nil, dkerr.New(dkerr.RemainderChunkLengthTooLarge, "remainder_chunk [%d,%d) exceeds remainder size %d", offset, offset+length, remainder.Size())
			}
			return prepared.Slice(remainder, offset, length)
		},
	}, nil
}

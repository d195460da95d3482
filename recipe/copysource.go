package recipe

import (
	"github.com/n-peugnet/diffkitchen/dkerr"
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/prepared"
)

const sourceName = "source"

// NewCopySource builds a recipe slicing the archive's source stream at
// sourceOffset. If the source cannot random-access, a slice request is
// routed through the kitchen's slicer and a fetch-slice thunk returned.
func NewCopySource(result *item.Definition, sourceOffset uint64) (*Recipe, error) {
	if sourceOffset > maxSizeT {
		return nil, dkerr.New(dkerr.ValueExceedsSizeT, "copy_source offset %d", sourceOffset)
	}
	length := result.Length()
	return &Recipe{
		Name:              NameCopySource,
		Result:            result,
		NumberIngredients: []uint64{sourceOffset},
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			source, err := k.LookupNamed(sourceName)
			if err != nil {
				return nil, err
			}
			if int64(sourceOffset)+length > source.Size() {
				return nil, dkerr.New(dkerr.CopySourceOffsetTooLarge, "copy_source [%d,%d) exceeds source size %d", sourceOffset, int64(sourceOffset)+length, source.Size())
			}
			if source.CanMakeReader() {
				return prepared.Slice(source, int64(sourceOffset), length)
			}
			return k.RequestSlice(source, int64(sourceOffset), length, result)
		},
	}, nil
}

// maxSizeT bounds numeric recipe parameters to the largest int64, the
// widest offset the readers here accept, per spec.md §4.4's
// value_exceeds_size_t.
const maxSizeT = 1<<63 - 1

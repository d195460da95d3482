package recipe

import (
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// NewSlice builds a slice recipe: result references whole at [offset,
// offset+result.Length()). If whole cannot random-access, the prepared
// item falls back to a fetch-slice thunk routed through the kitchen's
// slicer (spec.md §4.4).
func NewSlice(result *item.Definition, offset uint64, whole *item.Definition) (*Recipe, error) {
	if err := checkSelfReferential(result, []*item.Definition{whole}); err != nil {
		return nil, err
	}
	if err := verifyParameterCount(NameSlice, []uint64{offset}, 1, []*item.Definition{whole}, 1); err != nil {
		return nil, err
	}
	length := result.Length()
	return &Recipe{
		Name:              NameSlice,
		Result:            result,
		NumberIngredients: []uint64{offset},
		ItemIngredients:   []*item.Definition{whole},
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			wholeItem := ingredients[0]
			if wholeItem.CanMakeReader() {
				return prepared.Slice(wholeItem, int64(offset), length)
			}
			return k.RequestSlice(wholeItem, int64(offset), length, result)
		},
	}, nil
}

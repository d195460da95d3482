package recipe

import (
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// NewInlineAsset builds a recipe slicing the archive's inline-asset blob at
// offset. package archive passes the recipe's first number ingredient from
// the wire as offset; no running total across chunks is kept or checked
// against it. The blob itself is resolved
// through the kitchen like any other item ingredient.
func NewInlineAsset(result *item.Definition, inlineAssets *item.Definition, offset int64) (*Recipe, error) {
	if err := checkSelfReferential(result, []*item.Definition{inlineAssets}); err != nil {
		return nil, err
	}
	length := result.Length()
	return &Recipe{
		Name:            NameInlineAsset,
		Result:          result,
		ItemIngredients: []*item.Definition{inlineAssets},
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			return prepared.Slice(ingredients[0], offset, length)
		},
	}, nil
}

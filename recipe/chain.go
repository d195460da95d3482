package recipe

import (
	"fmt"

	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// NewChain builds a chain recipe: sequential concatenation of its item
// ingredients, in order. Result size must equal the sum of part sizes.
func NewChain(result *item.Definition, parts []*item.Definition) (*Recipe, error) {
	if err := checkSelfReferential(result, parts); err != nil {
		return nil, err
	}
	if err := verifyParameterCount(NameChain, nil, -1, parts, len(parts)); err != nil {
		return nil, err
	}
	var total int64
	for _, p := range parts {
		total += p.Length()
	}
	if total != result.Length() {
		return nil, fmt.Errorf("chain: parts total %d bytes, result is %d bytes", total, result.Length())
	}
	return &Recipe{
		Name:            NameChain,
		Result:          result,
		ItemIngredients: parts,
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			return prepared.Chain(ingredients), nil
		},
	}, nil
}

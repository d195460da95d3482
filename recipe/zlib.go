package recipe

import (
	"github.com/n-peugnet/diffkitchen/compress/zlibutil"
	"github.com/n-peugnet/diffkitchen/dkerr"
	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// NewZlibDecompression builds a recipe that inflates its single item
// ingredient. initType selects raw/zlib/gzip framing per spec.md §4.4's
// zlib_decompression numbers[0].
func NewZlibDecompression(result *item.Definition, initType uint64, compressed *item.Definition) (*Recipe, error) {
	if err := checkSelfReferential(result, []*item.Definition{compressed}); err != nil {
		return nil, err
	}
	it, err := toInitType(initType)
	if err != nil {
		return nil, err
	}
	return &Recipe{
		Name:              NameZlibDecompression,
		Result:            result,
		NumberIngredients: []uint64{initType},
		ItemIngredients:   []*item.Definition{compressed},
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			src := ingredients[0]
			return prepared.FromSequentialFactory(result.Length(), func() (dkio.SequentialReader, error) {
				sr, err := src.MakeSequentialReader()
				if err != nil {
					return nil, err
				}
				dr, err := zlibutil.NewDecompressingReader(sr, it)
				if err != nil {
					return nil, err
				}
				return &sequentialFromIOReader{r: dr, size: result.Length()}, nil
			}, ""), nil
		},
	}, nil
}

func toInitType(tag uint64) (zlibutil.InitType, error) {
	switch tag {
	case 0:
		return zlibutil.Raw, nil
	case 1:
		return zlibutil.Zlib, nil
	case 2:
		return zlibutil.Gzip, nil
	default:
		return 0, dkerr.New(dkerr.RecipeParameterCountInvalid, "zlib_decompression: unknown init type %d", tag)
	}
}

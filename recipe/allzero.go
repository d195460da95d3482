package recipe

import (
	"io"

	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// NewAllZero builds a recipe whose prepared item is a virtual reader of
// length zero bytes.
func NewAllZero(result *item.Definition, length uint64) (*Recipe, error) {
	if err := verifyParameterCount(NameAllZero, []uint64{length}, 1, nil, 0); err != nil {
		return nil, err
	}
	return &Recipe{
		Name:              NameAllZero,
		Result:            result,
		NumberIngredients: []uint64{length},
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			return prepared.FromReaderFactory(int64(length), func() (dkio.Reader, error) {
				return &zeroReader{length: int64(length)}, nil
			}), nil
		},
	}, nil
}

type zeroReader struct{ length int64 }

func (z *zeroReader) Size() int64 { return z.length }

func (z *zeroReader) ReadSome(offset int64, p []byte) (int, error) {
	if offset < 0 || offset+int64(len(p)) > z.length {
		return 0, io.ErrUnexpectedEOF
	}
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

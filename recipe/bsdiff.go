package recipe

import (
	"io"

	"github.com/gabstv/go-bsdiff/pkg/bspatch"

	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// NewBsdiffDelta builds a recipe that reconstructs result by applying the
// bsdiff patch delta against basis. bspatch runs in its own goroutine
// writing into an io.Pipe, the same producer/consumer shape as
// compress/zstdutil's streaming recipes and grounded in the reference
// implementation's bspatch_reader background-thread patcher.
func NewBsdiffDelta(result *item.Definition, delta, basis *item.Definition) (*Recipe, error) {
	if err := checkSelfReferential(result, []*item.Definition{delta, basis}); err != nil {
		return nil, err
	}
	length := result.Length()
	return &Recipe{
		Name:            NameBsdiffDelta,
		Result:          result,
		ItemIngredients: []*item.Definition{delta, basis},
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			deltaItem, basisItem := ingredients[0], ingredients[1]
			return prepared.FromSequentialFactory(length, func() (dkio.SequentialReader, error) {
				deltaReader, err := deltaItem.MakeReader()
				if err != nil {
					return nil, err
				}
				basisReader, err := basisItem.MakeReader()
				if err != nil {
					return nil, err
				}
				deltaBytes := make([]byte, deltaReader.Size())
				if _, err := deltaReader.ReadSome(0, deltaBytes); err != nil {
					return nil, err
				}
				basisBytes := make([]byte, basisReader.Size())
				if _, err := basisReader.ReadSome(0, basisBytes); err != nil {
					return nil, err
				}
				return newPipePatcher(basisBytes, deltaBytes, length), nil
			}, ""), nil
		},
	}, nil
}

// pipePatcher streams the result of applying a bsdiff patch, produced by a
// background goroutine writing into an io.Pipe as it patches.
type pipePatcher struct {
	pr     *io.PipeReader
	size   int64
	offset int64
}

func newPipePatcher(basis, delta []byte, size int64) *pipePatcher {
	pr, pw := io.Pipe()
	go func() {
		if err := bspatch.Reader(newByteReaderAt(basis), pw, newByteReaderAt(delta)); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()
	return &pipePatcher{pr: pr, size: size}
}

func (p *pipePatcher) Size() int64  { return p.size }
func (p *pipePatcher) Tellg() int64 { return p.offset }

func (p *pipePatcher) Skip(n int64) error {
	buf := make([]byte, 32*1024)
	for n > 0 {
		chunk := int64(len(buf))
		if chunk > n {
			chunk = n
		}
		read, err := p.ReadSome(buf[:chunk])
		n -= int64(read)
		if err != nil && n > 0 {
			return err
		}
	}
	return nil
}

func (p *pipePatcher) ReadSome(b []byte) (int, error) {
	n, err := p.pr.Read(b)
	p.offset += int64(n)
	return n, err
}

func newByteReaderAt(b []byte) io.Reader {
	return &byteSliceReader{b: b}
}

type byteSliceReader struct {
	b   []byte
	pos int
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

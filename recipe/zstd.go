package recipe

import (
	"io"

	"github.com/n-peugnet/diffkitchen/compress/zstdutil"
	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// NewZstdCompression builds a recipe that zstd-compresses its single item
// ingredient at the given level. major/minor identify the zstd format
// version the numbers carry (kept for wire fidelity; this implementation
// always emits the current zstd frame format).
func NewZstdCompression(result *item.Definition, major, minor, level uint64, uncompressed *item.Definition) (*Recipe, error) {
	if err := checkSelfReferential(result, []*item.Definition{uncompressed}); err != nil {
		return nil, err
	}
	if err := verifyParameterCount(NameZstdCompression, []uint64{major, minor, level}, 3, []*item.Definition{uncompressed}, 1); err != nil {
		return nil, err
	}
	return &Recipe{
		Name:              NameZstdCompression,
		Result:            result,
		NumberIngredients: []uint64{major, minor, level},
		ItemIngredients:   []*item.Definition{uncompressed},
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			src := ingredients[0]
			return prepared.FromSequentialFactory(result.Length(), func() (dkio.SequentialReader, error) {
				sr, err := src.MakeSequentialReader()
				if err != nil {
					return nil, err
				}
				return newPipeCompressor(sr, int(level), result.Length()), nil
			}, ""), nil
		},
	}, nil
}

// NewZstdDecompression builds a recipe that zstd-decompresses its single
// item ingredient.
func NewZstdDecompression(result *item.Definition, compressed *item.Definition) (*Recipe, error) {
	return newZstdDecompressionLike(NameZstdDecompression, result, compressed, nil)
}

// NewZstdDelta builds a recipe that zstd-decompresses delta using basis as
// the reference prefix (delta basis), per spec.md §4.4's zstd_delta.
func NewZstdDelta(result *item.Definition, delta, basis *item.Definition) (*Recipe, error) {
	return newZstdDecompressionLike(NameZstdDelta, result, delta, basis)
}

func newZstdDecompressionLike(name string, result *item.Definition, compressed, basis *item.Definition) (*Recipe, error) {
	items := []*item.Definition{compressed}
	if basis != nil {
		items = append(items, basis)
	}
	if err := checkSelfReferential(result, items); err != nil {
		return nil, err
	}
	return &Recipe{
		Name:            name,
		Result:          result,
		ItemIngredients: items,
		Prepare: func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			compressedItem := ingredients[0]
			var basisItem prepared.Item
			if basis != nil {
				basisItem = ingredients[1]
			}
			return prepared.FromSequentialFactory(result.Length(), func() (dkio.SequentialReader, error) {
				cr, err := compressedItem.MakeSequentialReader()
				if err != nil {
					return nil, err
				}
				var refPrefix []byte
				if basisItem != nil {
					br, err := basisItem.MakeReader()
					if err != nil {
						return nil, err
					}
					refPrefix = make([]byte, br.Size())
					if _, err := br.ReadSome(0, refPrefix); err != nil {
						return nil, err
					}
				}
				dr, err := zstdutil.NewDecompressingReader(seqToIOReader{cr}, refPrefix)
				if err != nil {
					return nil, err
				}
				return &sequentialFromIOReader{r: dr, size: result.Length()}, nil
			}, ""), nil
		},
	}, nil
}

// seqToIOReader adapts a dkio.SequentialReader to io.Reader.
type seqToIOReader struct{ r dkio.SequentialReader }

func (s seqToIOReader) Read(p []byte) (int, error) { return s.r.ReadSome(p) }

// sequentialFromIOReader adapts an io.Reader (with a known total size) back
// to dkio.SequentialReader.
type sequentialFromIOReader struct {
	r      io.Reader
	size   int64
	offset int64
}

func (s *sequentialFromIOReader) Size() int64  { return s.size }
func (s *sequentialFromIOReader) Tellg() int64 { return s.offset }

func (s *sequentialFromIOReader) Skip(n int64) error {
	buf := make([]byte, 32*1024)
	for n > 0 {
		chunk := int64(len(buf))
		if chunk > n {
			chunk = n
		}
		read, err := s.ReadSome(buf[:chunk])
		n -= int64(read)
		if err != nil && n > 0 {
			return err
		}
	}
	return nil
}

func (s *sequentialFromIOReader) ReadSome(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.offset += int64(n)
	return n, err
}

// pipeCompressor streams zstd-compressed bytes produced from src via a
// goroutine writing into an io.Pipe, the idiomatic Go analog of the
// producer/consumer ring buffer spec.md §4.3/§4.7 describes for streaming
// transforms.
type pipeCompressor struct {
	pr     *io.PipeReader
	size   int64
	offset int64
}

func newPipeCompressor(src dkio.SequentialReader, level int, size int64) *pipeCompressor {
	pr, pw := io.Pipe()
	go func() {
		cw, err := zstdutil.NewCompressingWriter(pw, level, nil, 0)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		buf := make([]byte, 32*1024)
		for {
			n, rerr := src.ReadSome(buf)
			if n > 0 {
				if _, werr := cw.Write(buf[:n]); werr != nil {
					pw.CloseWithError(werr)
					return
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				pw.CloseWithError(rerr)
				return
			}
		}
		if err := cw.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()
	return &pipeCompressor{pr: pr, size: size}
}

func (p *pipeCompressor) Size() int64  { return p.size }
func (p *pipeCompressor) Tellg() int64 { return p.offset }

func (p *pipeCompressor) Skip(n int64) error {
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

func (p *pipeCompressor) ReadSome(b []byte) (int, error) {
	n, err := p.pr.Read(b)
	p.offset += int64(n)
	return n, err
}

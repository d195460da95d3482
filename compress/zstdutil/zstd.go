// Package zstdutil implements the zstd streaming compress/decompress
// adapters of spec.md §4.3, including reference-prefix (delta basis)
// support, on top of github.com/klauspost/compress/zstd — the library
// SaveTheRbtz-zstd-seekable-format-go, restic-restic, buildbarn-bb-storage,
// and meigma-blob all depend on (see SPEC_FULL.md §3).
package zstdutil

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/klauspost/compress/zstd"
)

// decoderWindowLogMax is the window log every decoder built here accepts,
// with or without a reference prefix.
const decoderWindowLogMax = 28

// DecompressingReader decompresses a zstd stream, optionally applying a
// reference prefix (the delta basis for zstd_delta).
type DecompressingReader struct {
	dec *zstd.Decoder
}

// NewDecompressingReader wraps compressed. If refPrefix is non-nil, it is
// registered as the decoder's content dictionary (used by zstd_delta to
// reference the basis item). Every decoder accepts windows up to
// 1<<decoderWindowLogMax bytes.
func NewDecompressingReader(compressed io.Reader, refPrefix []byte) (*DecompressingReader, error) {
	opts := []zstd.DOption{zstd.WithDecoderMaxWindow(1 << decoderWindowLogMax)}
	if refPrefix != nil {
		opts = append(opts, zstd.WithDecoderDicts(refPrefix))
	}
	dec, err := zstd.NewReader(compressed, opts...)
	if err != nil {
		return nil, fmt.Errorf("zstdutil: new decoder: %w", err)
	}
	return &DecompressingReader{dec: dec}, nil
}

func (d *DecompressingReader) Read(p []byte) (int, error) {
	return d.dec.Read(p)
}

// Close releases the decoder's resources.
func (d *DecompressingReader) Close() error {
	d.dec.Close()
	return nil
}

// windowLogFor returns ⌈log2(size)⌉, or 1 when size is at most 1: the
// windowLog used when a reference prefix is active.
func windowLogFor(size int64) int {
	if size <= 1 {
		return 1
	}
	return bits.Len64(uint64(size - 1))
}

// CompressingWriter streams compressed output produced from data written to
// it, stopping only once input is exhausted and the encoder reports no more
// output is pending (spec.md §4.3, "ZSTD_e_end returns zero").
type CompressingWriter struct {
	enc   *zstd.Encoder
	total int64
}

// NewCompressingWriter returns a writer that zstd-compresses into w at
// level. If refPrefix is non-nil, it is registered as the encoder's
// dictionary and the window is sized to cover the uncompressed input
// (uncompressedSize); no separate long-distance-matching mode is set.
func NewCompressingWriter(w io.Writer, level int, refPrefix []byte, uncompressedSize int64) (*CompressingWriter, error) {
	opts := []zstd.EOption{zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level))}
	if refPrefix != nil {
		wlog := windowLogFor(uncompressedSize)
		opts = append(opts,
			zstd.WithWindowSize(1<<uint(wlog)),
			zstd.WithEncoderDict(refPrefix),
		)
	}
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("zstdutil: new encoder: %w", err)
	}
	return &CompressingWriter{enc: enc}, nil
}

func (c *CompressingWriter) Write(p []byte) (int, error) {
	n, err := c.enc.Write(p)
	c.total += int64(n)
	return n, err
}

// Close flushes and finalizes the compressed stream.
func (c *CompressingWriter) Close() error {
	return c.enc.Close()
}

// Compress is a convenience one-shot compression entry point used by the
// zstd_compression recipe and by create-session helpers.
func Compress(w io.Writer, r io.Reader, level int) (int64, error) {
	cw, err := NewCompressingWriter(w, level, nil, 0)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(cw, r)
	if err != nil {
		cw.Close()
		return n, err
	}
	return n, cw.Close()
}

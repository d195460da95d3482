// Package zlibutil implements the raw/gz/zlib decompression and compression
// adapters of spec.md §4.3, on top of github.com/klauspost/compress — the
// same optimized deflate implementation restic, buildbarn-bb-storage, and
// meigma-blob all depend on (see SPEC_FULL.md §3).
package zlibutil

import (
	"bufio"
	"compress/flate"
	"fmt"
	"io"

	kflate "github.com/klauspost/compress/flate"
	kzlib "github.com/klauspost/compress/zlib"

	dkio "github.com/n-peugnet/diffkitchen/ioutil"
)

// InitType selects the wire container a zlib_decompression recipe's
// init_type_tag parameter encodes.
type InitType uint64

const (
	Raw InitType = iota
	Zlib
	Gzip
)

// inputBufferSize is the minimum internal input buffer spec.md §4.3 demands
// ("≥ 4 KiB") for the decompression reader.
const inputBufferSize = 8 * 1024

// DecompressingReader wraps a SequentialReader, consuming compressed bytes
// from it until the underlying stream reports end-of-stream.
type DecompressingReader struct {
	src    io.Reader
	zr     io.ReadCloser
	closed bool
}

type seqReaderAdapter struct {
	r dkio.SequentialReader
}

func (a seqReaderAdapter) Read(p []byte) (int, error) {
	return a.r.ReadSome(p)
}

// NewDecompressingReader builds a reader that decompresses compressed per
// initType.
func NewDecompressingReader(compressed dkio.SequentialReader, initType InitType) (*DecompressingReader, error) {
	buffered := bufio.NewReaderSize(seqReaderAdapter{compressed}, inputBufferSize)
	var zr io.ReadCloser
	var err error
	switch initType {
	case Raw:
		zr = kflate.NewReader(buffered)
	case Zlib:
		zr, err = kzlib.NewReader(buffered)
	case Gzip:
		zr, err = newGzipReader(buffered)
	default:
		return nil, fmt.Errorf("zlibutil: unknown init type %d", initType)
	}
	if err != nil {
		return nil, fmt.Errorf("zlibutil: init decompression stream: %w", err)
	}
	return &DecompressingReader{src: buffered, zr: zr}, nil
}

func (d *DecompressingReader) Read(p []byte) (int, error) {
	n, err := d.zr.Read(p)
	if err == io.EOF && !d.closed {
		d.closed = true
		d.zr.Close()
	}
	return n, err
}

// CompressionLevel mirrors flate's level constants, including the -1
// default.
type CompressionLevel int

const DefaultCompression CompressionLevel = flate.DefaultCompression

// CompressRaw compresses all of r at level into w using raw deflate,
// exactly the encoding the archive codec uses for the remainder (spec.md
// §4.8, "zlib-raw at level 9").
func CompressRaw(w io.Writer, r io.Reader, level CompressionLevel) (int64, error) {
	zw, err := kflate.NewWriter(w, int(level))
	if err != nil {
		return 0, fmt.Errorf("zlibutil: new raw writer: %w", err)
	}
	n, err := io.Copy(zw, r)
	if err != nil {
		zw.Close()
		return n, err
	}
	if err := zw.Close(); err != nil {
		return n, err
	}
	return n, nil
}

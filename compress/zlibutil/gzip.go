package zlibutil

import (
	"io"

	kgzip "github.com/klauspost/compress/gzip"
)

func newGzipReader(r io.Reader) (io.ReadCloser, error) {
	return kgzip.NewReader(r)
}

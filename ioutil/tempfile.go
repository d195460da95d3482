package ioutil

import (
	"io"
	"os"

	"github.com/n-peugnet/diffkitchen/logger"
)

// TempFileReader holds a SequentialReader's content, spooled into a
// temporary file when the reader is created, and exposes random-access
// Reads over it. The temp file is removed
// when Close is called; callers that obtain one from a prepared_item must
// arrange for Close to run when the prepared_item is dropped (spec.md §5,
// "resource scope").
type TempFileReader struct {
	file *os.File
	size int64
}

// SpoolToTempFile streams all of r into a new temp file and returns a
// random-access reader over the result.
func SpoolToTempFile(r SequentialReader, dir string) (*TempFileReader, error) {
	f, err := os.CreateTemp(dir, "diffkitchen-spool-*")
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 64*1024)
	var size int64
	for {
		n, rerr := r.ReadSome(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(f.Name())
				return nil, werr
			}
			size += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, rerr
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &TempFileReader{file: f, size: size}, nil
}

func (t *TempFileReader) Size() int64 { return t.size }

func (t *TempFileReader) ReadSome(offset int64, p []byte) (int, error) {
	n, err := t.file.ReadAt(p, offset)
	if err == io.EOF && n == len(p) {
		err = nil
	}
	return n, err
}

// Close removes the backing temp file.
func (t *TempFileReader) Close() error {
	name := t.file.Name()
	err := t.file.Close()
	if rerr := os.Remove(name); rerr != nil && err == nil {
		logger.Warningf("ioutil: removing spool file %s: %s", name, rerr)
		err = rerr
	}
	return err
}

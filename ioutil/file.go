package ioutil

import (
	"io"
	"os"
)

// FileReader is a random-access Reader backed by an open os.File.
type FileReader struct {
	file *os.File
	size int64
}

// OpenFileReader opens path and wraps it as a random-access Reader.
func OpenFileReader(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileReader{file: f, size: info.Size()}, nil
}

func (f *FileReader) Size() int64 { return f.size }

func (f *FileReader) ReadSome(offset int64, p []byte) (int, error) {
	n, err := f.file.ReadAt(p, offset)
	if err == io.EOF && n == len(p) {
		err = nil
	}
	return n, err
}

// Close releases the underlying file handle.
func (f *FileReader) Close() error { return f.file.Close() }

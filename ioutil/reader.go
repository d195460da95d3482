// Package ioutil provides the random-access and sequential byte source/sink
// abstractions the archive engine is built on: readers, writers, and the
// composable slice/chain/wrapper derivations spec.md §4.1 requires.
package ioutil

import (
	"fmt"
	"io"

	"github.com/n-peugnet/diffkitchen/logger"
)

// Reader is a random-access byte source.
type Reader interface {
	// Size returns the total number of bytes available.
	Size() int64
	// ReadSome reads len(p) bytes starting at offset. It must fill p
	// completely or return ErrReadFailure; short reads other than at EOF
	// (which cannot happen within Size()) are a caller/implementation bug.
	ReadSome(offset int64, p []byte) (int, error)
}

// ErrReadFailure is returned (wrapped) by a Reader.ReadSome implementation
// that could not produce the full requested span.
var ErrReadFailure = fmt.Errorf("reader_read_failure")

// SequentialReader is a forward-only byte source.
type SequentialReader interface {
	Size() int64
	Tellg() int64
	Skip(n int64) error
	// ReadSome reads up to len(p) bytes, returning the number read. Returning
	// (0, io.EOF) signals end of stream.
	ReadSome(p []byte) (int, error)
}

// ReaderAt adapts a Reader to io.ReaderAt, for interop with stdlib code.
func ReaderAt(r Reader) io.ReaderAt {
	return readerAtAdapter{r}
}

type readerAtAdapter struct{ r Reader }

func (a readerAtAdapter) ReadAt(p []byte, off int64) (int, error) {
	n, err := a.r.ReadSome(off, p)
	if err == nil && int64(n)+off >= a.r.Size() && n < len(p) {
		err = io.EOF
	}
	return n, err
}

// BytesReader is a Reader over an in-memory byte slice.
type BytesReader struct {
	data []byte
}

// NewBytesReader returns a Reader over b. b is not copied; callers must not
// mutate it afterwards.
func NewBytesReader(b []byte) *BytesReader {
	return &BytesReader{data: b}
}

func (b *BytesReader) Size() int64 { return int64(len(b.data)) }

func (b *BytesReader) ReadSome(offset int64, p []byte) (int, error) {
	if offset < 0 || offset+int64(len(p)) > int64(len(b.data)) {
		return 0, fmt.Errorf("ioutil: %w: offset %d len %d exceeds size %d", ErrReadFailure, offset, len(p), len(b.data))
	}
	n := copy(p, b.data[offset:])
	return n, nil
}

// ReaderFactory produces independent Reader handles over the same logical
// content. Implementations must be safe to call concurrently and every
// returned Reader must be independently usable (spec.md §5, "shared
// resources").
type ReaderFactory func() (Reader, error)

// SequentialReaderFactory is the sequential analog of ReaderFactory.
type SequentialReaderFactory func() (SequentialReader, error)

// SliceReader bounds a child Reader to [offset, offset+length) of a parent.
type SliceReader struct {
	parent Reader
	offset int64
	length int64
}

// NewSliceReader validates the bounds against parent's size before slicing.
func NewSliceReader(parent Reader, offset, length int64) (*SliceReader, error) {
	if offset < 0 || length < 0 || offset+length > parent.Size() {
		return nil, fmt.Errorf("ioutil: slice [%d,%d) exceeds parent size %d", offset, offset+length, parent.Size())
	}
	return &SliceReader{parent: parent, offset: offset, length: length}, nil
}

func (s *SliceReader) Size() int64 { return s.length }

func (s *SliceReader) ReadSome(offset int64, p []byte) (int, error) {
	if offset < 0 || offset+int64(len(p)) > s.length {
		return 0, fmt.Errorf("ioutil: %w: slice read [%d,%d) exceeds length %d", ErrReadFailure, offset, offset+int64(len(p)), s.length)
	}
	return s.parent.ReadSome(s.offset+offset, p)
}

// ReaderWrapper turns a random-access Reader into a SequentialReader that
// tracks its own offset (spec.md §4.1 basic_reader_wrapper).
type ReaderWrapper struct {
	r      Reader
	offset int64
}

func NewReaderWrapper(r Reader) *ReaderWrapper {
	return &ReaderWrapper{r: r}
}

func (w *ReaderWrapper) Size() int64  { return w.r.Size() }
func (w *ReaderWrapper) Tellg() int64 { return w.offset }

func (w *ReaderWrapper) Skip(n int64) error {
	if w.offset+n > w.r.Size() {
		return fmt.Errorf("ioutil: skip past end: offset %d + %d > size %d", w.offset, n, w.r.Size())
	}
	w.offset += n
	return nil
}

func (w *ReaderWrapper) ReadSome(p []byte) (int, error) {
	remaining := w.r.Size() - w.offset
	if remaining <= 0 {
		return 0, io.EOF
	}
	toRead := int64(len(p))
	if toRead > remaining {
		toRead = remaining
	}
	n, err := w.r.ReadSome(w.offset, p[:toRead])
	w.offset += int64(n)
	if err != nil {
		logger.Errorf("ioutil: reader wrapper read at %d: %s", w.offset, err)
	}
	return n, err
}

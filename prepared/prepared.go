// Package prepared models the runtime manifestation of an item — a
// prepared_item per spec.md §3 — as a small sum type: a random-access
// reader factory, a sequential reader factory, a slice, a chain, or a
// lazily-resolved fetch-slice thunk bound to a kitchen.
package prepared

import (
	"fmt"

	dkio "github.com/n-peugnet/diffkitchen/ioutil"
)

// Item is the common interface every prepared_item variant implements.
// CanMakeReader reports whether every source underneath the item offers
// random access. MakeReader spools through a temp file when it is false,
// and a chain's MakeReader spools even when it is true.
type Item interface {
	Size() int64
	CanMakeReader() bool
	MakeReader() (dkio.Reader, error)
	MakeSequentialReader() (dkio.SequentialReader, error)
}

// FromReaderFactory builds a random-access prepared item from a factory.
func FromReaderFactory(size int64, f dkio.ReaderFactory) Item {
	return &readerItem{size: size, factory: f}
}

type readerItem struct {
	size    int64
	factory dkio.ReaderFactory
}

func (r *readerItem) Size() int64          { return r.size }
func (r *readerItem) CanMakeReader() bool  { return true }
func (r *readerItem) MakeReader() (dkio.Reader, error) {
	return r.factory()
}
func (r *readerItem) MakeSequentialReader() (dkio.SequentialReader, error) {
	rd, err := r.factory()
	if err != nil {
		return nil, err
	}
	return dkio.NewReaderWrapper(rd), nil
}

// FromSequentialFactory builds a sequential-only prepared item. Requesting
// a random-access reader from it forces a spool through a temporary file
// (spec.md §3, prepared_item).
func FromSequentialFactory(size int64, f dkio.SequentialReaderFactory, spoolDir string) Item {
	return &sequentialItem{size: size, factory: f, spoolDir: spoolDir}
}

type sequentialItem struct {
	size     int64
	factory  dkio.SequentialReaderFactory
	spoolDir string
}

func (s *sequentialItem) Size() int64         { return s.size }
func (s *sequentialItem) CanMakeReader() bool { return false }

func (s *sequentialItem) MakeReader() (dkio.Reader, error) {
	sr, err := s.factory()
	if err != nil {
		return nil, err
	}
	return dkio.SpoolToTempFile(sr, s.spoolDir)
}

func (s *sequentialItem) MakeSequentialReader() (dkio.SequentialReader, error) {
	return s.factory()
}

// Slice references an offset/length window of a parent prepared item.
func Slice(parent Item, offset, length int64) (Item, error) {
	if offset < 0 || length < 0 || offset+length > parent.Size() {
		return nil, fmt.Errorf("prepared: slice [%d,%d) exceeds parent size %d", offset, offset+length, parent.Size())
	}
	return &sliceItem{parent: parent, offset: offset, length: length}, nil
}

type sliceItem struct {
	parent        Item
	offset, length int64
}

func (s *sliceItem) Size() int64         { return s.length }
func (s *sliceItem) CanMakeReader() bool { return s.parent.CanMakeReader() }

func (s *sliceItem) MakeReader() (dkio.Reader, error) {
	pr, err := s.parent.MakeReader()
	if err != nil {
		return nil, err
	}
	return dkio.NewSliceReader(pr, s.offset, s.length)
}

func (s *sliceItem) MakeSequentialReader() (dkio.SequentialReader, error) {
	r, err := s.MakeReader()
	if err != nil {
		return nil, err
	}
	return dkio.NewReaderWrapper(r), nil
}

// Chain concatenates a sequence of prepared items, keeping them all alive
// via the slice's own reference (spec.md §9, "owning relationships").
func Chain(parts []Item) Item {
	var size int64
	for _, p := range parts {
		size += p.Size()
	}
	return &chainItem{parts: parts, size: size}
}

type chainItem struct {
	parts []Item
	size  int64
}

func (c *chainItem) Size() int64 { return c.size }

func (c *chainItem) CanMakeReader() bool {
	for _, p := range c.parts {
		if !p.CanMakeReader() {
			return false
		}
	}
	return true
}

func (c *chainItem) MakeSequentialReader() (dkio.SequentialReader, error) {
	readers := make([]dkio.SequentialReader, 0, len(c.parts))
	for _, p := range c.parts {
		r, err := p.MakeSequentialReader()
		if err != nil {
			return nil, err
		}
		readers = append(readers, r)
	}
	return dkio.NewChainReader(readers), nil
}

func (c *chainItem) MakeReader() (dkio.Reader, error) {
	if !c.CanMakeReader() {
		sr, err := c.MakeSequentialReader()
		if err != nil {
			return nil, err
		}
		return dkio.SpoolToTempFile(sr, "")
	}
	// Materialize each part as a random-access reader and present a
	// concatenated view via a sequential wrapper spooled to disk: chains
	// have no native random-access representation, since offsets within a
	// chain are not contiguous in any one backing store.
	sr, err := c.MakeSequentialReader()
	if err != nil {
		return nil, err
	}
	return dkio.SpoolToTempFile(sr, "")
}

// FetchSlice is a thunk bound weakly to a kitchen: resolving it invokes the
// kitchen's slicer to materialize the slice (spec.md §3, "fetch-slice
// thunk"). package slicer builds these directly from RequestSlice, closing
// over the worker and offset rather than holding an explicit back-pointer
// interface — the kitchen/slicer owns the closure, so there is no
// prepared-item↔kitchen reference cycle to break.
func FetchSlice(size int64, resolve func() (Item, error)) Item {
	return &fetchSliceItem{size: size, resolve: resolve}
}

type fetchSliceItem struct {
	size    int64
	resolve func() (Item, error)
}

func (f *fetchSliceItem) Size() int64         { return f.size }
func (f *fetchSliceItem) CanMakeReader() bool { return true }

func (f *fetchSliceItem) MakeReader() (dkio.Reader, error) {
	resolved, err := f.resolve()
	if err != nil {
		return nil, err
	}
	return resolved.MakeReader()
}

func (f *fetchSliceItem) MakeSequentialReader() (dkio.SequentialReader, error) {
	resolved, err := f.resolve()
	if err != nil {
		return nil, err
	}
	return resolved.MakeSequentialReader()
}

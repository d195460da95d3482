package slicer_test

import (
	"bytes"
	"testing"

	"github.com/n-peugnet/diffkitchen/hashutil"
	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/prepared"
	"github.com/n-peugnet/diffkitchen/slicer"
)

func hashDef(t *testing.T, b []byte) *item.Definition {
	t.Helper()
	h, err := hashutil.HashReader(item.SHA256, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("HashReader: %s", err)
	}
	d, err := item.New(int64(len(b)), h)
	if err != nil {
		t.Fatalf("item.New: %s", err)
	}
	return d
}

func sequentialParent(content []byte) prepared.Item {
	return prepared.FromSequentialFactory(int64(len(content)), func() (dkio.SequentialReader, error) {
		return dkio.NewReaderWrapper(dkio.NewBytesReader(content)), nil
	}, "")
}

// resolve forces a fetch-slice thunk's resolve() to run, the point at which
// RequestSlice's registered slot is actually produced, verified, and its
// refcount decremented (spec.md §4.7).
func resolve(t *testing.T, it prepared.Item) (string, error) {
	t.Helper()
	r, err := it.MakeReader()
	if err != nil {
		return "", err
	}
	buf := make([]byte, r.Size())
	if _, err := r.ReadSome(0, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func TestRequestSliceInOrderWithHashVerification(t *testing.T) {
	content := []byte("0123456789ABCDEF")
	parent := sequentialParent(content)
	s := slicer.New()

	first, err := s.RequestSlice(parent, 0, 4, hashDef(t, content[0:4]))
	if err != nil {
		t.Fatalf("RequestSlice(0,4): %s", err)
	}
	second, err := s.RequestSlice(parent, 8, 4, hashDef(t, content[8:12]))
	if err != nil {
		t.Fatalf("RequestSlice(8,4): %s", err)
	}

	got, err := resolve(t, first)
	if err != nil {
		t.Fatalf("resolve first: %s", err)
	}
	if got != "0123" {
		t.Errorf("first slice = %q, want %q", got, "0123")
	}

	got, err = resolve(t, second)
	if err != nil {
		t.Fatalf("resolve second: %s", err)
	}
	if got != "89AB" {
		t.Errorf("second slice = %q, want %q", got, "89AB")
	}
}

func TestRequestSliceDeduplicatesIdenticalWindow(t *testing.T) {
	content := []byte("0123456789")
	parent := sequentialParent(content)
	s := slicer.New()

	first, err := s.RequestSlice(parent, 0, 4, hashDef(t, content[0:4]))
	if err != nil {
		t.Fatalf("RequestSlice(0,4): %s", err)
	}
	second, err := s.RequestSlice(parent, 0, 4, hashDef(t, content[0:4]))
	if err != nil {
		t.Fatalf("RequestSlice(0,4) duplicate: %s", err)
	}

	for i, it := range []prepared.Item{first, second} {
		got, err := resolve(t, it)
		if err != nil {
			t.Fatalf("resolve #%d: %s", i, err)
		}
		if got != "0123" {
			t.Errorf("slice #%d = %q, want %q", i, got, "0123")
		}
	}
}

func TestRequestSliceRejectsOverlap(t *testing.T) {
	content := []byte("0123456789")
	parent := sequentialParent(content)
	s := slicer.New()

	if _, err := s.RequestSlice(parent, 0, 6, nil); err != nil {
		t.Fatalf("RequestSlice(0,6): %s", err)
	}
	if _, err := s.RequestSlice(parent, 3, 4, nil); err == nil {
		t.Errorf("RequestSlice: expected overlap error for [3,7) vs pending [0,6)")
	}
}

func TestRequestSliceDetectsHashMismatch(t *testing.T) {
	content := []byte("mismatched-content")
	parent := sequentialParent(content)
	s := slicer.New()

	wrongHash := hashDef(t, []byte("totally-different!!"))
	it, err := s.RequestSlice(parent, 0, int64(len(content)), wrongHash)
	if err != nil {
		t.Fatalf("RequestSlice: %s", err)
	}
	if _, err := resolve(t, it); err == nil {
		t.Errorf("resolve: expected hash mismatch error")
	}
}

func TestCancelSlicingFailsPendingRequests(t *testing.T) {
	content := []byte("0123456789")
	parent := sequentialParent(content)
	s := slicer.New()

	pending, err := s.RequestSlice(parent, 4, 4, nil)
	if err != nil {
		t.Fatalf("priming RequestSlice(4,4): %s", err)
	}

	s.CancelSlicing(parent)
	if _, err := resolve(t, pending); err == nil {
		t.Errorf("resolve: expected error after CancelSlicing")
	}
}

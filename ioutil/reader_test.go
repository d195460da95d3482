package ioutil_test

import (
	"bytes"
	"io"
	"testing"

	dkio "github.com/n-peugnet/diffkitchen/ioutil"
)

func TestSliceReaderBounds(t *testing.T) {
	parent := dkio.NewBytesReader([]byte("0123456789"))
	s, err := dkio.NewSliceReader(parent, 3, 4)
	if err != nil {
		t.Fatalf("NewSliceReader: %s", err)
	}
	if s.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", s.Size())
	}
	buf := make([]byte, 4)
	if _, err := s.ReadSome(0, buf); err != nil {
		t.Fatalf("ReadSome: %s", err)
	}
	if string(buf) != "3456" {
		t.Errorf("ReadSome() = %q, want %q", buf, "3456")
	}

	if _, err := dkio.NewSliceReader(parent, 8, 5); err == nil {
		t.Errorf("NewSliceReader: expected error for out-of-bounds slice")
	}
}

func TestReaderWrapperTracksOffset(t *testing.T) {
	r := dkio.NewBytesReader([]byte("hello world"))
	w := dkio.NewReaderWrapper(r)

	buf := make([]byte, 5)
	n, err := w.ReadSome(buf)
	if err != nil || n != 5 {
		t.Fatalf("ReadSome() = (%d, %v), want (5, nil)", n, err)
	}
	if string(buf) != "hello" {
		t.Errorf("ReadSome() = %q, want %q", buf, "hello")
	}
	if w.Tellg() != 5 {
		t.Errorf("Tellg() = %d, want 5", w.Tellg())
	}

	if err := w.Skip(1); err != nil {
		t.Fatalf("Skip: %s", err)
	}
	rest := make([]byte, 5)
	n, err = w.ReadSome(rest)
	if err != nil || n != 5 || string(rest) != "world" {
		t.Fatalf("ReadSome() after skip = (%q, %d, %v)", rest, n, err)
	}

	n, err = w.ReadSome(make([]byte, 1))
	if n != 0 || err != io.EOF {
		t.Errorf("ReadSome() at end = (%d, %v), want (0, EOF)", n, err)
	}
}

func TestChainReaderConcatenates(t *testing.T) {
	a := dkio.NewReaderWrapper(dkio.NewBytesReader([]byte("abc")))
	b := dkio.NewReaderWrapper(dkio.NewBytesReader([]byte("de")))
	chain := dkio.NewChainReader([]dkio.SequentialReader{a, b})

	if chain.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", chain.Size())
	}
	var out bytes.Buffer
	buf := make([]byte, 2)
	for {
		n, err := chain.ReadSome(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadSome: %s", err)
		}
	}
	if out.String() != "abcde" {
		t.Errorf("chain read = %q, want %q", out.String(), "abcde")
	}
}

package hashutil_test

import (
	"bytes"
	"testing"

	"github.com/n-peugnet/diffkitchen/hashutil"
	"github.com/n-peugnet/diffkitchen/item"
)

func TestHashReaderMatchesHasher(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox"), 1000)

	streamed, err := hashutil.HashReader(item.SHA256, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("HashReader: %s", err)
	}

	h, err := hashutil.NewHasher(item.SHA256)
	if err != nil {
		t.Fatalf("NewHasher: %s", err)
	}
	h.HashData(data)
	whole := h.GetHash()

	if !streamed.Equal(whole) {
		t.Errorf("HashReader produced %s, want %s (whole-buffer hash)", streamed, whole)
	}
}

func TestVerifyHashesMatchDetectsMismatch(t *testing.T) {
	a, _ := item.New(4, mustHash(t, 0x01))
	b, _ := item.New(4, mustHash(t, 0x02))
	if err := hashutil.VerifyHashesMatch(a, b); err == nil {
		t.Fatalf("VerifyHashesMatch: expected error for mismatched hash")
	}
}

func TestVerifyHashesMatchAcceptsSubsetOfHashes(t *testing.T) {
	h := mustHash(t, 0x42)
	actual, _ := item.New(4, h)
	expected, _ := item.New(4)
	if err := hashutil.VerifyHashesMatch(actual, expected); err != nil {
		t.Errorf("VerifyHashesMatch: unexpected error when expected carries no hash: %s", err)
	}
}

func mustHash(t *testing.T, b byte) item.Hash {
	t.Helper()
	buf := make([]byte, item.SHA256Size)
	for i := range buf {
		buf[i] = b
	}
	h, err := item.NewHash(item.SHA256, buf)
	if err != nil {
		t.Fatalf("NewHash: %s", err)
	}
	return h
}

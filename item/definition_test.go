package item_test

import (
	"testing"

	"github.com/n-peugnet/diffkitchen/item"
)

func mustHash(t *testing.T, algo item.Algorithm, b byte) item.Hash {
	t.Helper()
	buf := make([]byte, algo.Size())
	for i := range buf {
		buf[i] = b
	}
	h, err := item.NewHash(algo, buf)
	if err != nil {
		t.Fatalf("NewHash: %s", err)
	}
	return h
}

func TestDefinitionMatch(t *testing.T) {
	sha := mustHash(t, item.SHA256, 0xAA)
	md5 := mustHash(t, item.MD5, 0xBB)

	a, err := item.New(10, sha, md5)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	b, err := item.New(10, sha)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if got := a.Match(b); got != item.Match {
		t.Errorf("Match() = %s, want match", got)
	}

	c, err := item.New(10, mustHash(t, item.SHA256, 0xCC))
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if got := a.Match(c); got != item.NoMatch {
		t.Errorf("Match() with disagreeing hash = %s, want no_match", got)
	}

	d, err := item.New(10)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if got := a.Match(d); got != item.Uncertain {
		t.Errorf("Match() with no shared algorithm = %s, want uncertain", got)
	}

	e, err := item.New(11, sha)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if got := a.Match(e); got != item.NoMatch {
		t.Errorf("Match() with disagreeing length = %s, want no_match", got)
	}
}

func TestDefinitionEqual(t *testing.T) {
	sha := mustHash(t, item.SHA256, 0x11)
	a, _ := item.New(5, sha)
	b, _ := item.New(5, sha)
	if !a.Equal(b) {
		t.Errorf("Equal() = false, want true for identical definitions")
	}

	c, _ := item.New(5)
	if a.Equal(c) {
		t.Errorf("Equal() = true, want false when one side carries no hash")
	}
}

func TestNewRejectsConflictingHashesForSameAlgorithm(t *testing.T) {
	h1 := mustHash(t, item.SHA256, 0x01)
	h2 := mustHash(t, item.SHA256, 0x02)
	if _, err := item.New(4, h1, h2); err == nil {
		t.Fatalf("New: expected error for conflicting same-algorithm hashes")
	}
}

func TestDefinitionCompareOrdersByLengthThenHash(t *testing.T) {
	small, _ := item.New(1, mustHash(t, item.SHA256, 0xFF))
	big, _ := item.New(2, mustHash(t, item.SHA256, 0x00))
	if small.Compare(big) >= 0 {
		t.Errorf("Compare(): expected small < big by length")
	}

	lo, _ := item.New(5, mustHash(t, item.SHA256, 0x01))
	hi, _ := item.New(5, mustHash(t, item.SHA256, 0x02))
	if lo.Compare(hi) >= 0 {
		t.Errorf("Compare(): expected lower hash bytes to sort first at equal length")
	}
}

func TestDefinitionKeysCoverEveryHash(t *testing.T) {
	sha := mustHash(t, item.SHA256, 0x10)
	md5 := mustHash(t, item.MD5, 0x20)
	d, _ := item.New(3, sha, md5)

	keys := d.Keys()
	if len(keys) != 2 {
		t.Fatalf("Keys() returned %d keys, want 2", len(keys))
	}
	algos := map[item.Algorithm]bool{}
	for _, k := range keys {
		if k.Length != 3 {
			t.Errorf("Keys() entry has length %d, want 3", k.Length)
		}
		algos[k.Algorithm] = true
	}
	if !algos[item.MD5] || !algos[item.SHA256] {
		t.Errorf("Keys() = %v, want one entry per algorithm (MD5, SHA256)", keys)
	}
}

func TestWithNameAndWithHash(t *testing.T) {
	d, _ := item.New(3)
	named := d.WithName("foo.txt")
	if len(d.Names()) != 0 {
		t.Errorf("WithName mutated the receiver's name set")
	}
	if got := named.Names(); len(got) != 1 || got[0] != "foo.txt" {
		t.Errorf("Names() = %v, want [foo.txt]", got)
	}

	h := mustHash(t, item.SHA256, 0x33)
	withHash, err := d.WithHash(h)
	if err != nil {
		t.Fatalf("WithHash: %s", err)
	}
	if _, ok := d.Hash(item.SHA256); ok {
		t.Errorf("WithHash mutated the receiver")
	}
	if got, ok := withHash.Hash(item.SHA256); !ok || !got.Equal(h) {
		t.Errorf("WithHash result missing the added hash")
	}
}

package kitchen_test

import (
	"testing"

	"github.com/n-peugnet/diffkitchen/cookbook"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/kitchen"
	"github.com/n-peugnet/diffkitchen/pantry"
	"github.com/n-peugnet/diffkitchen/prepared"
	"github.com/n-peugnet/diffkitchen/recipe"
)

func hashOf(t *testing.T, b []byte) item.Hash {
	t.Helper()
	buf := make([]byte, item.SHA256Size)
	copy(buf, b)
	h, err := item.NewHash(item.SHA256, buf)
	if err != nil {
		t.Fatalf("NewHash: %s", err)
	}
	return h
}

func defFor(t *testing.T, tag byte, length int64) *item.Definition {
	t.Helper()
	buf := make([]byte, item.SHA256Size)
	buf[0] = tag
	h, err := item.NewHash(item.SHA256, buf)
	if err != nil {
		t.Fatalf("NewHash: %s", err)
	}
	d, err := item.New(length, h)
	if err != nil {
		t.Fatalf("item.New: %s", err)
	}
	return d
}

func bytesItem(b []byte) prepared.Item {
	return prepared.FromReaderFactory(int64(len(b)), func() (dkio.Reader, error) {
		return dkio.NewBytesReader(b), nil
	})
}

// TestCopySourceThenChain reconstructs a target made of two copy_source
// windows chained together, the baseline seed scenario.
func TestCopySourceThenChain(t *testing.T) {
	source := bytesItem([]byte("0123456789ABCDEF"))

	part1 := defFor(t, 1, 4) // copy_source offset 0, length 4 -> "0123"
	part2 := defFor(t, 2, 4) // copy_source offset 8, length 4 -> "89AB"
	target := defFor(t, 3, 8)

	r1, err := recipe.NewCopySource(part1, 0)
	if err != nil {
		t.Fatalf("NewCopySource: %s", err)
	}
	r2, err := recipe.NewCopySource(part2, 8)
	if err != nil {
		t.Fatalf("NewCopySource: %s", err)
	}
	rChain, err := recipe.NewChain(target, []*item.Definition{part1, part2})
	if err != nil {
		t.Fatalf("NewChain: %s", err)
	}

	cb := cookbook.New()
	cb.Add(r1)
	cb.Add(r2)
	cb.Add(rChain)

	k := kitchen.New()
	k.AddCookbook(cb)
	k.AddPantry(pantry.New())
	k.AddNamed("source", source)

	k.RequestItem(target)
	k.ProcessRequestedItems()

	if errs := k.Errors(); len(errs) != 0 {
		t.Fatalf("ProcessRequestedItems produced errors: %v", errs)
	}

	it, err := k.FetchItem(target)
	if err != nil {
		t.Fatalf("FetchItem: %s", err)
	}
	r, err := it.MakeReader()
	if err != nil {
		t.Fatalf("MakeReader: %s", err)
	}
	buf := make([]byte, r.Size())
	if _, err := r.ReadSome(0, buf); err != nil {
		t.Fatalf("ReadSome: %s", err)
	}
	if got := string(buf); got != "012389AB" {
		t.Errorf("reconstructed target = %q, want %q", got, "012389AB")
	}
}

// TestUnreachableItemIsRecordedNotFatal ensures one unresolvable request
// doesn't abort the whole batch and surfaces through Errors/FetchItem.
func TestUnreachableItemIsRecordedNotFatal(t *testing.T) {
	k := kitchen.New()
	k.AddCookbook(cookbook.New())
	k.AddPantry(pantry.New())

	missing := defFor(t, 9, 4)
	k.RequestItem(missing)
	k.ProcessRequestedItems()

	if errs := k.Errors(); len(errs) != 1 {
		t.Fatalf("Errors() = %d entries, want 1", len(errs))
	}
	if _, err := k.FetchItem(missing); err == nil {
		t.Errorf("FetchItem: expected error for unreachable item")
	}
}

func TestPantryHitSkipsRecipeResolution(t *testing.T) {
	k := kitchen.New()
	p := pantry.New()
	d := defFor(t, 5, 3)
	it := bytesItem([]byte("xyz"))
	p.Store(d, it)
	k.AddPantry(p)
	k.AddCookbook(cookbook.New())

	k.RequestItem(d)
	k.ProcessRequestedItems()

	got, err := k.FetchItem(d)
	if err != nil {
		t.Fatalf("FetchItem: %s", err)
	}
	if got != it {
		t.Errorf("FetchItem() returned a different item than the pantry held")
	}
}

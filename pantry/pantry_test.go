package pantry_test

import (
	"testing"

	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/pantry"
	"github.com/n-peugnet/diffkitchen/prepared"
)

func TestPantryStoreAndLookup(t *testing.T) {
	buf := make([]byte, item.SHA256Size)
	buf[0] = 0x7
	h, err := item.NewHash(item.SHA256, buf)
	if err != nil {
		t.Fatalf("NewHash: %s", err)
	}
	d, err := item.New(3, h)
	if err != nil {
		t.Fatalf("item.New: %s", err)
	}

	p := pantry.New()
	it := prepared.FromReaderFactory(3, func() (dkio.Reader, error) {
		return dkio.NewBytesReader([]byte("abc")), nil
	})
	p.Store(d, it)

	got, ok := p.Lookup(d)
	if !ok {
		t.Fatalf("Lookup() miss for stored item")
	}
	if got.Size() != 3 {
		t.Errorf("Lookup() returned item with size %d, want 3", got.Size())
	}
}

func TestPantryLookupNamed(t *testing.T) {
	p := pantry.New()
	it := prepared.FromReaderFactory(0, nil)
	p.StoreNamed("source", it)

	got, err := p.LookupNamed("source")
	if err != nil {
		t.Fatalf("LookupNamed: %s", err)
	}
	if got != it {
		t.Errorf("LookupNamed() returned a different item than stored")
	}

	if _, err := p.LookupNamed("missing"); err == nil {
		t.Errorf("LookupNamed(): expected error for unregistered name")
	}
}

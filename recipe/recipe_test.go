package recipe_test

import (
	"testing"

	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/prepared"
	"github.com/n-peugnet/diffkitchen/recipe"
)

// fakeKitchen implements recipe.Kitchen with no slicer and a fixed set of
// named items, enough to exercise copy_source and remainder_chunk without
// needing a real kitchen.Kitchen.
type fakeKitchen struct {
	named map[string]prepared.Item
}

func (f *fakeKitchen) RequestSlice(parent prepared.Item, offset, length int64, def *item.Definition) (prepared.Item, error) {
	return prepared.Slice(parent, offset, length)
}

func (f *fakeKitchen) LookupNamed(name string) (prepared.Item, error) {
	if it, ok := f.named[name]; ok {
		return it, nil
	}
	return nil, errNotFound(name)
}

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

func bytesItem(b []byte) prepared.Item {
	return prepared.FromReaderFactory(int64(len(b)), func() (dkio.Reader, error) {
		return dkio.NewBytesReader(b), nil
	})
}

func readAll(t *testing.T, it prepared.Item) []byte {
	t.Helper()
	r, err := it.MakeReader()
	if err != nil {
		t.Fatalf("MakeReader: %s", err)
	}
	buf := make([]byte, r.Size())
	if _, err := r.ReadSome(0, buf); err != nil {
		t.Fatalf("ReadSome: %s", err)
	}
	return buf
}

func def(t *testing.T, length int64) *item.Definition {
	t.Helper()
	d, err := item.New(length)
	if err != nil {
		t.Fatalf("item.New: %s", err)
	}
	return d
}

func TestSliceRecipe(t *testing.T) {
	whole := bytesItem([]byte("hello world"))
	wholeDef := def(t, 11)
	resultDef := def(t, 5)

	r, err := recipe.NewSlice(resultDef, 6, wholeDef)
	if err != nil {
		t.Fatalf("NewSlice: %s", err)
	}
	k := &fakeKitchen{named: map[string]prepared.Item{}}
	it, err := r.Prepare(k, []prepared.Item{whole})
	if err != nil {
		t.Fatalf("Prepare: %s", err)
	}
	if got := string(readAll(t, it)); got != "world" {
		t.Errorf("slice result = %q, want %q", got, "world")
	}
}

func TestSliceRecipeRejectsSelfReference(t *testing.T) {
	d := def(t, 5)
	if _, err := recipe.NewSlice(d, 0, d); err == nil {
		t.Fatalf("NewSlice: expected self-referential error")
	}
}

func TestChainRecipeConcatenates(t *testing.T) {
	a := bytesItem([]byte("foo"))
	b := bytesItem([]byte("bar"))
	result := def(t, 6)
	r, err := recipe.NewChain(result, []*item.Definition{def(t, 3), def(t, 3)})
	if err != nil {
		t.Fatalf("NewChain: %s", err)
	}
	k := &fakeKitchen{}
	it, err := r.Prepare(k, []prepared.Item{a, b})
	if err != nil {
		t.Fatalf("Prepare: %s", err)
	}
	if got := string(readAll(t, it)); got != "foobar" {
		t.Errorf("chain result = %q, want %q", got, "foobar")
	}
}

func TestAllZeroRecipe(t *testing.T) {
	result := def(t, 4)
	r, err := recipe.NewAllZero(result, 4)
	if err != nil {
		t.Fatalf("NewAllZero: %s", err)
	}
	it, err := r.Prepare(&fakeKitchen{}, nil)
	if err != nil {
		t.Fatalf("Prepare: %s", err)
	}
	want := []byte{0, 0, 0, 0}
	if got := readAll(t, it); string(got) != string(want) {
		t.Errorf("all_zero result = %v, want %v", got, want)
	}
}

func TestCopySourceRecipe(t *testing.T) {
	source := bytesItem([]byte("0123456789"))
	result := def(t, 3)
	r, err := recipe.NewCopySource(result, 4)
	if err != nil {
		t.Fatalf("NewCopySource: %s", err)
	}
	k := &fakeKitchen{named: map[string]prepared.Item{"source": source}}
	it, err := r.Prepare(k, nil)
	if err != nil {
		t.Fatalf("Prepare: %s", err)
	}
	if got := string(readAll(t, it)); got != "456" {
		t.Errorf("copy_source result = %q, want %q", got, "456")
	}
}

func TestRemainderChunkRecipe(t *testing.T) {
	remainder := bytesItem([]byte("uncompressed-remainder-bytes"))
	result := def(t, 4)
	r, err := recipe.NewRemainderChunk(result, 0)
	if err != nil {
		t.Fatalf("NewRemainderChunk: %s", err)
	}
	k := &fakeKitchen{named: map[string]prepared.Item{"remainder.uncompressed": remainder}}
	it, err := r.Prepare(k, nil)
	if err != nil {
		t.Fatalf("Prepare: %s", err)
	}
	if got := string(readAll(t, it)); got != "unco" {
		t.Errorf("remainder_chunk result = %q, want %q", got, "unco")
	}
}

func TestInlineAssetRecipe(t *testing.T) {
	blob := bytesItem([]byte("assetassetasset"))
	blobDef := def(t, 15)
	result := def(t, 5)
	r, err := recipe.NewInlineAsset(result, blobDef, 5)
	if err != nil {
		t.Fatalf("NewInlineAsset: %s", err)
	}
	it, err := r.Prepare(&fakeKitchen{}, []prepared.Item{blob})
	if err != nil {
		t.Fatalf("Prepare: %s", err)
	}
	if got := string(readAll(t, it)); got != "asset" {
		t.Errorf("inline_asset result = %q, want %q", got, "asset")
	}
}

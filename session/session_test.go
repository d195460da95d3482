package session_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/n-peugnet/diffkitchen/archive"
	"github.com/n-peugnet/diffkitchen/hashutil"
	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/prepared"
	"github.com/n-peugnet/diffkitchen/recipe"
	"github.com/n-peugnet/diffkitchen/session"
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

func bytesItem(b []byte) prepared.Item {
	return prepared.FromReaderFactory(int64(len(b)), func() (dkio.Reader, error) {
		return dkio.NewBytesReader(b), nil
	})
}

// TestCreateThenApplyRoundTrip builds a copy_source archive with
// session.CreateSession, encodes and decodes it back through the wire
// format, then reconstructs the target with session.ApplySession and
// checks the extracted bytes against the original.
func TestCreateThenApplyRoundTrip(t *testing.T) {
	source := []byte("the quick brown fox jumps over the lazy dog")
	want := source[4:9] // "quick"

	sourceDef := hashDef(t, source)
	targetDef := hashDef(t, want)

	create := session.NewCreateSession(targetDef)
	create.SetSource(sourceDef)
	create.AddRecipe(recipe.NameCopySource, targetDef, []uint64{4}, nil)

	var diff bytes.Buffer
	if err := create.WriteDiff(&diff); err != nil {
		t.Fatalf("WriteDiff: %s", err)
	}

	decoded, err := archive.Decode(&diff)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}

	apply := session.NewApplySession()
	if err := apply.AddArchive(decoded, bytesItem(source)); err != nil {
		t.Fatalf("AddArchive: %s", err)
	}
	apply.RequestItem(decoded.TargetItem)
	apply.ProcessRequestedItems()
	if errs := apply.Errors(); len(errs) != 0 {
		t.Fatalf("ProcessRequestedItems produced errors: %v", errs)
	}

	outPath := filepath.Join(t.TempDir(), "out.bin")
	if err := apply.ExtractItemToPath(decoded.TargetItem, outPath); err != nil {
		t.Fatalf("ExtractItemToPath: %s", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %s", err)
	}
	if string(got) != string(want) {
		t.Errorf("extracted content = %q, want %q", got, want)
	}
}

// TestAddFileToPantryMakesItemAvailable checks that a file stocked via
// AddFileToPantry resolves directly off its own content-addressed
// identity, without going through any recipe.
func TestAddFileToPantryMakesItemAvailable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.bin")
	content := []byte("stocked-from-disk")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	target := hashDef(t, content)

	apply := session.NewApplySession()
	if err := apply.AddFileToPantry("asset", path); err != nil {
		t.Fatalf("AddFileToPantry: %s", err)
	}
	apply.RequestItem(target)
	apply.ProcessRequestedItems()
	if errs := apply.Errors(); len(errs) != 0 {
		t.Fatalf("ProcessRequestedItems produced errors: %v", errs)
	}

	outPath := filepath.Join(dir, "out.bin")
	if err := apply.ExtractItemToPath(target, outPath); err != nil {
		t.Fatalf("ExtractItemToPath: %s", err)
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %s", err)
	}
	if string(got) != string(content) {
		t.Errorf("extracted content = %q, want %q", got, content)
	}
}

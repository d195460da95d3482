package archive_test

import (
	"bytes"
	"testing"

	"github.com/n-peugnet/diffkitchen/archive"
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/kitchen"
	"github.com/n-peugnet/diffkitchen/recipe"
)

func def(t *testing.T, length int64, b byte) *item.Definition {
	t.Helper()
	buf := make([]byte, item.SHA256Size)
	for i := range buf {
		buf[i] = b
	}
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

func buildSample(t *testing.T) *archive.Archive {
	t.Helper()
	target := def(t, 4, 0x10)
	source := def(t, 10, 0x20)

	a := archive.New(target)
	a.SetSource(source)
	a.AddRecipe(recipe.NameCopySource, target, []uint64{2}, nil)
	a.SetInlineAssets([]byte("asset-bytes"))
	a.AddPayload("manifest", def(t, 7, 0x50))
	return a
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	a := buildSample(t)

	var buf bytes.Buffer
	if err := a.Encode(&buf); err != nil {
		t.Fatalf("Encode: %s", err)
	}

	got, err := archive.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}

	if got.TargetItem.Match(a.TargetItem) == item.NoMatch {
		t.Errorf("decoded target item does not match original")
	}
	if got.SourceItem == nil || got.SourceItem.Match(a.SourceItem) == item.NoMatch {
		t.Errorf("decoded source item does not match original")
	}
	// Payloads are in-memory bookkeeping only (spec.md §6.1's wire format
	// carries no payload section), so a freshly decoded archive never
	// carries the encoder's payloads back.
	if _, ok := got.Payload("manifest"); ok {
		t.Errorf("decoded archive unexpectedly carries a payload; payloads must not round-trip through the wire format")
	}
	payload, ok := a.Payload("manifest")
	if !ok || payload.Match(def(t, 7, 0x50)) == item.NoMatch {
		t.Errorf("original archive payload = (%v, %v), want a match", payload, ok)
	}
}

func TestEncodeDecodeWithNestedArchive(t *testing.T) {
	nestedTarget := def(t, 4, 0x30)
	nested := archive.New(nestedTarget)
	nested.AddRecipe(recipe.NameAllZero, nestedTarget, []uint64{4}, nil)

	outerTarget := def(t, 4, 0x31)
	outer := archive.New(outerTarget)
	outer.AddNestedArchive(nested)
	outer.AddRecipe(recipe.NameNestedDiff, nestedTarget, nil, nil)

	var buf bytes.Buffer
	if err := outer.Encode(&buf); err != nil {
		t.Fatalf("Encode: %s", err)
	}

	got, err := archive.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if got.TargetItem.Match(outerTarget) == item.NoMatch {
		t.Errorf("decoded outer target does not match original")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := bytes.NewReader([]byte("XXXXnotanarchive"))
	if _, err := archive.Decode(buf); err == nil {
		t.Errorf("Decode: expected error for bad magic")
	}
}

func TestIsStandardFormatDetectsMagicAndVersion(t *testing.T) {
	standard := buildSample(t)
	var stdBuf bytes.Buffer
	if err := standard.Encode(&stdBuf); err != nil {
		t.Fatalf("Encode: %s", err)
	}
	isStandard, replay, err := archive.IsStandardFormat(&stdBuf)
	if err != nil {
		t.Fatalf("IsStandardFormat: %s", err)
	}
	if !isStandard {
		t.Errorf("IsStandardFormat: standard archive not recognized")
	}
	if _, err := archive.Decode(replay); err != nil {
		t.Errorf("Decode after IsStandardFormat peek: %s", err)
	}
}

func TestIsStandardFormatRejectsBadMagicAndTruncation(t *testing.T) {
	if isStandard, _, err := archive.IsStandardFormat(bytes.NewReader([]byte("XXXXnotanarchive"))); err != nil || isStandard {
		t.Errorf("IsStandardFormat(bad magic) = (%v, %v), want (false, nil)", isStandard, err)
	}
	if isStandard, _, err := archive.IsStandardFormat(bytes.NewReader([]byte("PAM"))); err != nil || isStandard {
		t.Errorf("IsStandardFormat(truncated) = (%v, %v), want (false, nil)", isStandard, err)
	}
}

func TestDecodeLegacyRejectsUnsupportedFormat(t *testing.T) {
	if _, err := archive.DecodeLegacy(bytes.NewReader([]byte("PAMZ\x00\x00\x00\x00\x00\x00\x00\x00"))); err == nil {
		t.Errorf("DecodeLegacy: expected an error, legacy decoding is unsupported")
	}
}

func TestBuildRecipeAliasesLegacyInlineAssetCopyName(t *testing.T) {
	target := def(t, 4, 0x40)
	blob := def(t, 8, 0x41)
	a := archive.New(target)
	a.AddRecipe("inline_asset_copy", target, []uint64{0}, []*item.Definition{blob})
	a.SetInlineAssets([]byte("12345678"))

	var buf bytes.Buffer
	if err := a.Encode(&buf); err != nil {
		t.Fatalf("Encode: %s", err)
	}
	got, err := archive.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if err := got.StockKitchen(kitchen.New()); err != nil {
		t.Errorf("StockKitchen: legacy-named recipe %q should alias onto inline_asset: %s", "inline_asset_copy", err)
	}
}

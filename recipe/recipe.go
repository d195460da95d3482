// Package recipe implements the recipe catalog of spec.md §4.4: each
// built-in recipe kind's Prepare method, returning a lazy prepared.Item.
package recipe

import (
	"fmt"

	"github.com/n-peugnet/diffkitchen/dkerr"
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// Built-in recipe type names, per spec.md §6.1.
const (
	NameSlice              = "slice"
	NameChain              = "chain"
	NameAllZero            = "all_zero"
	NameInlineAsset        = "inline_asset"
	NameCopySource         = "copy_source"
	NameRemainderChunk     = "remainder_chunk"
	NameZstdCompression    = "zstd_compression"
	NameZstdDecompression  = "zstd_decompression"
	NameZstdDelta          = "zstd_delta"
	NameBsdiffDelta        = "bsdiff_delta"
	NameZlibDecompression  = "zlib_decompression"
	NameNestedDiff         = "nested_diff"
)

// Kitchen is the minimal surface a recipe's Prepare needs back from its
// apply engine: resolving a slice of a sequential-only source via the
// slicer. Defined here (rather than imported from package kitchen) so that
// kitchen can depend on recipe without a cycle; package kitchen's Kitchen
// type satisfies this interface structurally.
type Kitchen interface {
	// RequestSlice asks the slicer to extract [offset, offset+length) of
	// parent (whose content hash-identifies as sliceDef). It returns a
	// fetch-slice item without waiting; reading that item blocks until the
	// slice is available, or fails.
	RequestSlice(parent prepared.Item, offset, length int64, sliceDef *item.Definition) (prepared.Item, error)

	// LookupNamed resolves a prepared item registered on the kitchen itself
	// or in any stocked pantry under a canonical name: "source" (the base stream being diffed
	// against), "remainder.uncompressed" (the decompressed remainder
	// stream). copy_source and remainder_chunk use this instead of a
	// cookbook/pantry item-ingredient edge, since the wire format carries
	// no item ingredients for either (spec.md §4.4).
	LookupNamed(name string) (prepared.Item, error)
}

// PrepareFunc materializes a recipe's result given its resolved ingredients.
type PrepareFunc func(k Kitchen, ingredients []prepared.Item) (prepared.Item, error)

// Recipe is a named instruction producing one item from number and item
// ingredients (spec.md §3).
type Recipe struct {
	Name             string
	Result           *item.Definition
	NumberIngredients []uint64
	ItemIngredients  []*item.Definition
	Prepare          PrepareFunc
}

// ErrSelfReferential is returned when a recipe's result item equals one of
// its item ingredients.
var ErrSelfReferential = dkerr.New(dkerr.RecipeSelfReferential, "recipe result item matches an item ingredient")

func checkSelfReferential(result *item.Definition, items []*item.Definition) error {
	for _, ing := range items {
		if result.Equal(ing) {
			return ErrSelfReferential
		}
	}
	return nil
}

// verifyParameterCount checks a recipe's number and item ingredient counts
// when its constructor builds it, failing with
// dkerr.RecipeParameterCountInvalid. A negative want count skips that check.
func verifyParameterCount(name string, numbers []uint64, wantNumbers int, items []*item.Definition, wantItems int) error {
	if wantNumbers >= 0 && len(numbers) != wantNumbers {
		return dkerr.New(dkerr.RecipeParameterCountInvalid, "%s: expected %d numbers, got %d", name, wantNumbers, len(numbers))
	}
	if wantItems >= 0 && len(items) != wantItems {
		return dkerr.New(dkerr.RecipeParameterCountInvalid, "%s: expected %d items, got %d", name, wantItems, len(items))
	}
	return nil
}

// Key returns a value suitable for totally ordering/deduplicating recipes,
// matching spec.md §3's "(name, result, numbers, items)" key.
type Key struct {
	Name    string
	Result  item.Key
	Numbers string
	Items   string
}

// KeyOf computes r's Key.
func KeyOf(r *Recipe) Key {
	numbers := fmt.Sprint(r.NumberIngredients)
	items := ""
	for _, it := range r.ItemIngredients {
		items += fmt.Sprint(it.Keys()) + ";"
	}
	keys := r.Result.Keys()
	var rk item.Key
	if len(keys) > 0 {
		rk = keys[0]
	}
	return Key{Name: r.Name, Result: rk, Numbers: numbers, Items: items}
}

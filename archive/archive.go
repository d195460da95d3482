package archive

import (
	"fmt"

	"github.com/n-peugnet/diffkitchen/cookbook"
	"github.com/n-peugnet/diffkitchen/dkerr"
	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/kitchen"
	"github.com/n-peugnet/diffkitchen/pantry"
	"github.com/n-peugnet/diffkitchen/prepared"
	"github.com/n-peugnet/diffkitchen/recipe"
)

// Canonical names used to stock ambient, kitchen-scoped inputs (spec.md
// §4.4, copy_source and remainder_chunk).
const (
	NameSource              = "source"
	NameRemainderUncompressed = "remainder.uncompressed"
	NameInlineAssets         = "inline_assets"
)

// legacyInlineAssetCopyName is the pre-rename recipe type name older
// tooling emitted for what is now recipe.NameInlineAsset (spec.md §9's
// open question on ambiguous legacy recipe names).
const legacyInlineAssetCopyName = "inline_asset_copy"

// recipeEntry is one recipe as recorded on the wire: a type name, its
// result item, and its number/item ingredients. items are stored by value
// (each as a length and SHA-256 hash) rather than by table index, trading a
// little size for a simpler, self-contained codec.
type recipeEntry struct {
	typeName string
	result   *item.Definition
	numbers  []uint64
	items    []*item.Definition
}

// Archive is one decoded (or to-be-encoded) diff archive container.
type Archive struct {
	TargetItem *item.Definition
	SourceItem *item.Definition // nil if the archive does not reference a source

	recipes        []recipeEntry
	inlineAssets   []byte
	remainderRaw   []byte // zlib-raw-compressed remainder stream
	nestedArchives map[item.Key]*Archive // keyed by the nested archive's own TargetItem
	sourceContent  prepared.Item
	payloads       map[string]*item.Definition // name -> referenced item, per spec.md §3
}

// AddPayload attaches a named reference to an item alongside the archive's
// recipes (spec.md §3's payloads map, §6.3's add_payload(name, item)).
// Payloads are in-memory bookkeeping only — spec.md §6.1's wire format
// carries no payload section, so this never round-trips through Encode.
func (a *Archive) AddPayload(name string, def *item.Definition) {
	if a.payloads == nil {
		a.payloads = make(map[string]*item.Definition)
	}
	a.payloads[name] = def
}

// Payload returns the item referenced by a named payload previously
// attached with AddPayload.
func (a *Archive) Payload(name string) (*item.Definition, bool) {
	d, ok := a.payloads[name]
	return d, ok
}

// SetSourceContent attaches the actual readable content backing
// SourceItem. The archive only records the source's identity on the wire;
// callers (package session) supply the bytes at apply time.
func (a *Archive) SetSourceContent(it prepared.Item) { a.sourceContent = it }

// New returns an empty archive for a target item, ready to have recipes and
// payloads added by package session's create path.
func New(target *item.Definition) *Archive {
	return &Archive{
		TargetItem:     target,
		nestedArchives: make(map[item.Key]*Archive),
	}
}

// SetSource attaches the base stream this archive diffs against.
func (a *Archive) SetSource(src *item.Definition) { a.SourceItem = src }

// SetInlineAssets attaches the raw bytes backing every inline_asset recipe.
func (a *Archive) SetInlineAssets(b []byte) { a.inlineAssets = b }

// SetRemainderCompressed attaches the zlib-raw-compressed remainder stream.
func (a *Archive) SetRemainderCompressed(b []byte) { a.remainderRaw = b }

// AddNestedArchive registers a nested archive, indexed by the item it
// produces once applied (nested.TargetItem) — the ingredient a nested_diff
// recipe in the parent archive resolves against. Nested archives carry no
// separate name on the wire (spec.md §3's nested_archives is a
// map<item_definition, archive>, not a name-keyed map).
func (a *Archive) AddNestedArchive(nested *Archive) {
	for _, k := range nested.TargetItem.Keys() {
		a.nestedArchives[k] = nested
	}
}

// lookupNestedArchive finds the nested archive whose recorded target
// matches def, if any.
func (a *Archive) lookupNestedArchive(def *item.Definition) (*Archive, bool) {
	for _, k := range def.Keys() {
		if nested, ok := a.nestedArchives[k]; ok {
			return nested, true
		}
	}
	return nil, false
}

// AddRecipe registers a built recipe (already constructed via one of
// package recipe's constructors) for the wire encoder. name must be one of
// the recipe.NameXxx constants, and matches the recipe's own Name field.
func (a *Archive) AddRecipe(name string, result *item.Definition, numbers []uint64, items []*item.Definition) {
	a.recipes = append(a.recipes, recipeEntry{typeName: name, result: result, numbers: numbers, items: items})
}

// StockKitchen registers this archive's source, recipes, inline assets and
// remainder into k, so a subsequent RequestItem/ProcessRequestedItems can
// reconstruct TargetItem. Nested archives are not stocked into k and are
// not recursed into here: each one is stocked into a fresh sub-kitchen of
// its own only when a nested_diff recipe producing its target is prepared.
func (a *Archive) StockKitchen(k *kitchen.Kitchen) error {
	cb := cookbook.New()
	pn := pantry.New()

	if a.SourceItem != nil && a.sourceContent != nil {
		k.AddNamed(NameSource, a.sourceContent)
		pn.StoreNamed(NameSource, a.sourceContent)
	}
	if len(a.inlineAssets) > 0 {
		blob := prepared.FromReaderFactory(int64(len(a.inlineAssets)), func() (dkio.Reader, error) {
			return dkio.NewBytesReader(a.inlineAssets), nil
		})
		k.AddNamed(NameInlineAssets, blob)
		pn.StoreNamed(NameInlineAssets, blob)
	}
	if len(a.remainderRaw) > 0 {
		remainder, err := a.decompressedRemainder()
		if err != nil {
			return err
		}
		k.AddNamed(NameRemainderUncompressed, remainder)
	}

	for _, entry := range a.recipes {
		r, err := a.buildRecipe(entry)
		if err != nil {
			return err
		}
		cb.Add(r)
	}

	k.AddCookbook(cb)
	k.AddPantry(pn)
	return nil
}

// buildRecipe turns a decoded recipeEntry back into a recipe.Recipe. Every
// built-in type constructs directly via package recipe; nested_diff is
// built here instead, since only package archive can import both recipe's
// types and the archive-parsing/kitchen-stocking logic its Prepare needs
// without an import cycle between recipe and archive.
func (a *Archive) buildRecipe(e recipeEntry) (*recipe.Recipe, error) {
	switch e.typeName {
	case recipe.NameSlice:
		return recipe.NewSlice(e.result, e.numbers[0], e.items[0])
	case recipe.NameChain:
		return recipe.NewChain(e.result, e.items)
	case recipe.NameAllZero:
		return recipe.NewAllZero(e.result, e.numbers[0])
	case recipe.NameInlineAsset, legacyInlineAssetCopyName:
		// legacyInlineAssetCopyName aliases onto inline_asset: both carry
		// the same (item ingredient, offset) shape, and a standard-format
		// archive's per-archive type table is free to carry a historical
		// name (spec.md §9's open question on ambiguous legacy names).
		return recipe.NewInlineAsset(e.result, e.items[0], int64(e.numbers[0]))
	case recipe.NameCopySource:
		return recipe.NewCopySource(e.result, e.numbers[0])
	case recipe.NameRemainderChunk:
		return recipe.NewRemainderChunk(e.result, int64(e.numbers[0]))
	case recipe.NameZstdCompression:
		return recipe.NewZstdCompression(e.result, e.numbers[0], e.numbers[1], e.numbers[2], e.items[0])
	case recipe.NameZstdDecompression:
		return recipe.NewZstdDecompression(e.result, e.items[0])
	case recipe.NameZstdDelta:
		return recipe.NewZstdDelta(e.result, e.items[0], e.items[1])
	case recipe.NameBsdiffDelta:
		return recipe.NewBsdiffDelta(e.result, e.items[0], e.items[1])
	case recipe.NameZlibDecompression:
		return recipe.NewZlibDecompression(e.result, e.numbers[0], e.items[0])
	case recipe.NameNestedDiff:
		return a.newNestedDiffRecipe(e)
	default:
		return nil, dkerr.New(dkerr.ArchiveItemMissingRecipe, "unknown recipe type %q", e.typeName)
	}
}

// newNestedDiffRecipe builds a recipe whose Prepare applies a fully nested
// archive (stocked into a fresh sub-kitchen) and returns its resulting
// target item. The nested archive entry is found by matching e.result
// against a registered nested archive's own target item (spec.md §3,
// nested_archives keyed by item_definition). Ingredients follow spec.md
// §4.4's nested_diff order, [delta, source]: ingredients[0] is the nested
// archive's own bytes (unused here — the archive was already decoded at
// StockKitchen time), ingredients[1] is the source fed into the nested
// archive's sub-kitchen.
func (a *Archive) newNestedDiffRecipe(e recipeEntry) (*recipe.Recipe, error) {
	nested, ok := a.lookupNestedArchive(e.result)
	if !ok {
		return nil, fmt.Errorf("archive: nested_diff result %s matches no nested archive", e.result)
	}
	target := nested.TargetItem

	return &recipe.Recipe{
		Name:            recipe.NameNestedDiff,
		Result:          e.result,
		ItemIngredients: e.items,
		Prepare: func(k recipe.Kitchen, ingredients []prepared.Item) (prepared.Item, error) {
			sub := kitchen.New()
			if len(ingredients) > 1 {
				sub.AddNamed(NameSource, ingredients[1])
			}
			if err := nested.StockKitchen(sub); err != nil {
				return nil, err
			}
			sub.RequestItem(target)
			sub.ProcessRequestedItems()
			return sub.FetchItem(target)
		},
	}, nil
}

func (a *Archive) decompressedRemainder() (prepared.Item, error) {
	return decompressRemainder(a.remainderRaw)
}

// Package kitchen implements the apply-time dependency resolution and
// reconstruction engine of spec.md §4.6: given a set of requested items, a
// set of stocked cookbooks and pantries, and a slicer for sequential-only
// sources, it resolves each request to a prepared item by picking and
// running recipes, recursively resolving their ingredients first.
package kitchen

import (
	"fmt"
	"sync"

	"github.com/n-peugnet/diffkitchen/cookbook"
	"github.com/n-peugnet/diffkitchen/dkerr"
	"github.com/n-peugnet/diffkitchen/hashutil"
	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/logger"
	"github.com/n-peugnet/diffkitchen/pantry"
	"github.com/n-peugnet/diffkitchen/prepared"
	"github.com/n-peugnet/diffkitchen/recipe"
	"github.com/n-peugnet/diffkitchen/slicer"
)

// writeBlockSize is the streaming chunk size WriteItem uses, per spec.md
// §4.6 ("items are written out in 8 KiB blocks").
const writeBlockSize = 8 * 1024

// Kitchen resolves requested items against stocked cookbooks and pantries.
// Its zero value is not usable; construct with New.
type Kitchen struct {
	mu sync.Mutex

	cookbooks []*cookbook.Cookbook
	pantries  []*pantry.Pantry
	named     map[string]prepared.Item

	requested map[item.Key]*item.Definition
	ready     map[item.Key]prepared.Item
	errs      map[item.Key]error

	slicer *slicer.Slicer
}

// New returns an empty Kitchen.
func New() *Kitchen {
	return &Kitchen{
		named:     make(map[string]prepared.Item),
		requested: make(map[item.Key]*item.Definition),
		ready:     make(map[item.Key]prepared.Item),
		errs:      make(map[item.Key]error),
		slicer:    slicer.New(),
	}
}

// AddCookbook stocks cb's recipes for resolution.
func (k *Kitchen) AddCookbook(cb *cookbook.Cookbook) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cookbooks = append(k.cookbooks, cb)
}

// AddPantry stocks p's already-prepared items for resolution.
func (k *Kitchen) AddPantry(p *pantry.Pantry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pantries = append(k.pantries, p)
}

// AddNamed registers it under a canonical name ("source",
// "remainder.uncompressed", "inline_assets"), resolved via LookupNamed.
func (k *Kitchen) AddNamed(name string, it prepared.Item) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.named[name] = it
}

// RequestItem enqueues def for resolution on the next ProcessRequestedItems
// call, unless it is already ready.
func (k *Kitchen) RequestItem(def *item.Definition) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.firstReadyLocked(def) != nil {
		return
	}
	for _, key := range def.Keys() {
		k.requested[key] = def
	}
}

func (k *Kitchen) firstReadyLocked(def *item.Definition) prepared.Item {
	for _, key := range def.Keys() {
		if it, ok := k.ready[key]; ok {
			return it
		}
	}
	return nil
}

// ClearRequested drops every currently-queued request without resolving
// it, per spec.md §4.6's clear_requested_items.
func (k *Kitchen) ClearRequested() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.requested = make(map[item.Key]*item.Definition)
}

// ProcessRequestedItems resolves every currently-requested item, clearing
// the request queue as it goes. Failures are recorded per-item (retrievable
// via Errors) rather than aborting the whole batch, so independent requests
// succeed or fail on their own.
func (k *Kitchen) ProcessRequestedItems() {
	k.mu.Lock()
	pending := make([]*item.Definition, 0, len(k.requested))
	seen := make(map[item.Key]bool)
	for key, def := range k.requested {
		if seen[key] {
			continue
		}
		for _, dk := range def.Keys() {
			seen[dk] = true
		}
		pending = append(pending, def)
	}
	k.requested = make(map[item.Key]*item.Definition)
	k.errs = make(map[item.Key]error)
	k.mu.Unlock()

	for _, def := range pending {
		if _, err := k.resolve(def, map[item.Key]bool{}); err != nil {
			k.mu.Lock()
			for _, key := range def.Keys() {
				k.errs[key] = err
			}
			k.mu.Unlock()
			logger.Warningf("kitchen: item %s unreachable: %s", def, err)
		}
	}
}

// resolve is the recursive step-1..6 core of spec.md §4.6: check ready,
// check pantries, then try each cookbook-supplied recipe in insertion
// order, recursively resolving its ingredients first. using guards against
// a recipe graph cycling back to an item still being resolved higher up
// the call stack.
func (k *Kitchen) resolve(def *item.Definition, using map[item.Key]bool) (prepared.Item, error) {
	k.mu.Lock()
	if it := k.firstReadyLocked(def); it != nil {
		k.mu.Unlock()
		return it, nil
	}
	for _, p := range k.pantries {
		if it, ok := p.Lookup(def); ok {
			for _, key := range def.Keys() {
				k.ready[key] = it
			}
			k.mu.Unlock()
			return it, nil
		}
	}
	k.mu.Unlock()

	for _, key := range def.Keys() {
		if using[key] {
			return nil, dkerr.New(dkerr.ArchiveItemMissingRecipe, "item %s participates in a recipe cycle", def)
		}
	}
	nextUsing := make(map[item.Key]bool, len(using)+1)
	for kk, v := range using {
		nextUsing[kk] = v
	}
	for _, key := range def.Keys() {
		nextUsing[key] = true
	}

	candidates := k.lookupCandidates(def)
	var lastErr error
	for _, r := range candidates {
		ingredients, err := k.resolveIngredients(r, nextUsing)
		if err != nil {
			lastErr = err
			continue
		}
		logger.Debugf("kitchen: preparing item %s via recipe %s", def, r.Name)
		it, err := r.Prepare(k, ingredients)
		if err != nil {
			lastErr = err
			continue
		}
		k.mu.Lock()
		for _, key := range def.Keys() {
			k.ready[key] = it
		}
		k.mu.Unlock()
		return it, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, dkerr.New(dkerr.ArchiveItemMissingRecipe, "no recipe produces item %s", def)
}

func (k *Kitchen) lookupCandidates(def *item.Definition) []*recipe.Recipe {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []*recipe.Recipe
	for _, cb := range k.cookbooks {
		out = append(out, cb.Lookup(def)...)
	}
	return out
}

func (k *Kitchen) resolveIngredients(r *recipe.Recipe, using map[item.Key]bool) ([]prepared.Item, error) {
	ingredients := make([]prepared.Item, 0, len(r.ItemIngredients))
	for _, ing := range r.ItemIngredients {
		it, err := k.resolve(ing, using)
		if err != nil {
			return nil, err
		}
		ingredients = append(ingredients, it)
	}
	return ingredients, nil
}

// RequestSlice implements recipe.Kitchen, delegating to the slicer.
func (k *Kitchen) RequestSlice(parent prepared.Item, offset, length int64, sliceDef *item.Definition) (prepared.Item, error) {
	return k.slicer.RequestSlice(parent, offset, length, sliceDef)
}

// ResumeSlicing resumes a paused slicer worker over parent.
func (k *Kitchen) ResumeSlicing(parent prepared.Item) { k.slicer.ResumeSlicing(parent) }

// CancelSlicing aborts a slicer worker over parent.
func (k *Kitchen) CancelSlicing(parent prepared.Item) { k.slicer.CancelSlicing(parent) }

// LookupNamed implements recipe.Kitchen: resolves a canonical name from
// either items registered directly on this kitchen or any stocked pantry.
func (k *Kitchen) LookupNamed(name string) (prepared.Item, error) {
	k.mu.Lock()
	it, ok := k.named[name]
	pantries := k.pantries
	k.mu.Unlock()
	if ok {
		return it, nil
	}
	for _, p := range pantries {
		if it, err := p.LookupNamed(name); err == nil {
			return it, nil
		}
	}
	return nil, fmt.Errorf("kitchen: no item named %q", name)
}

// FetchItem returns def's prepared item if it is ready, the error recorded
// for def by the most recent ProcessRequestedItems call if it failed to
// resolve there, or dkerr.KitchenItemNotReadyToFetch otherwise.
func (k *Kitchen) FetchItem(def *item.Definition) (prepared.Item, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if it := k.firstReadyLocked(def); it != nil {
		return it, nil
	}
	for _, key := range def.Keys() {
		if err, ok := k.errs[key]; ok {
			return nil, err
		}
	}
	return nil, dkerr.New(dkerr.KitchenItemNotReadyToFetch, "item %s is not ready", def)
}

// WriteItem streams def's prepared content into w in fixed-size blocks,
// hashing every byte as it passes through and verifying the running digest
// against def once the stream is exhausted. This is the choke-point spec.md
// §7 requires: "the kitchen's write_item path always verifies that each
// chunk's produced hash matches its declared hash before yielding bytes to
// the writer; any mismatch fails the whole apply".
func (k *Kitchen) WriteItem(w dkio.SequentialWriter, def *item.Definition) error {
	it, err := k.FetchItem(def)
	if err != nil {
		return err
	}
	sr, err := it.MakeSequentialReader()
	if err != nil {
		return err
	}
	hr, hashers := newHashingReader(sr, def)
	n, err := dkio.StreamReaderToWriter(w, hr, writeBlockSize)
	if err != nil {
		return err
	}
	actualHashes := make([]item.Hash, 0, len(hashers))
	for _, hs := range hashers {
		actualHashes = append(actualHashes, hs.GetHash())
	}
	actual, err := item.New(n, actualHashes...)
	if err != nil {
		return err
	}
	return hashutil.VerifyHashesMatch(actual, def)
}

// hashingReader wraps a SequentialReader, feeding every byte that passes
// through ReadSome into one hasher per algorithm def declares.
type hashingReader struct {
	dkio.SequentialReader
	hashers []*hashutil.Hasher
}

func newHashingReader(sr dkio.SequentialReader, def *item.Definition) (*hashingReader, []*hashutil.Hasher) {
	hashers := make([]*hashutil.Hasher, 0, len(def.Hashes()))
	for _, h := range def.Hashes() {
		hs, err := hashutil.NewHasher(h.Algorithm)
		if err != nil {
			continue
		}
		hashers = append(hashers, hs)
	}
	return &hashingReader{SequentialReader: sr, hashers: hashers}, hashers
}

func (h *hashingReader) ReadSome(p []byte) (int, error) {
	n, err := h.SequentialReader.ReadSome(p)
	if n > 0 {
		for _, hs := range h.hashers {
			hs.HashData(p[:n])
		}
	}
	return n, err
}

// Errors returns every unreachable-item failure recorded by the most
// recent ProcessRequestedItems call.
func (k *Kitchen) Errors() []error {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]error, 0, len(k.errs))
	seen := make(map[error]bool)
	for _, err := range k.errs {
		if seen[err] {
			continue
		}
		seen[err] = true
		out = append(out, err)
	}
	return out
}

// Package pantry implements the append-only prepared-item index of spec.md
// §3: items that have already been produced, indexed both by content
// identity and by canonical name, so later lookups reuse instead of
// re-preparing them.
package pantry

import (
	"fmt"

	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/prepared"
)

// Pantry indexes prepared items by every Key their defining item exposes,
// and separately by any canonical name (spec.md §4.4's "source",
// "remainder.uncompressed", "inline_assets").
type Pantry struct {
	byKey  map[item.Key]entry
	byName map[string]prepared.Item
}

type entry struct {
	def  *item.Definition
	item prepared.Item
}

// New returns an empty pantry.
func New() *Pantry {
	return &Pantry{
		byKey:  make(map[item.Key]entry),
		byName: make(map[string]prepared.Item),
	}
}

// Store registers a prepared item under def's keys. Storing twice for an
// equal def is a no-op: the pantry is append-only but idempotent on
// content identity.
func (p *Pantry) Store(def *item.Definition, it prepared.Item) {
	for _, k := range def.Keys() {
		if _, ok := p.byKey[k]; ok {
			continue
		}
		p.byKey[k] = entry{def: def, item: it}
	}
}

// StoreNamed registers it under a canonical name, in addition to (or
// instead of) any content-identity registration.
func (p *Pantry) StoreNamed(name string, it prepared.Item) {
	p.byName[name] = it
}

// Lookup finds a prepared item matching def by any shared hash, per
// spec.md §4.6 step 2 ("already in the pantry").
func (p *Pantry) Lookup(def *item.Definition) (prepared.Item, bool) {
	for _, k := range def.Keys() {
		if e, ok := p.byKey[k]; ok && e.def.Match(def) != item.NoMatch {
			return e.item, true
		}
	}
	return nil, false
}

// LookupNamed finds a prepared item registered under name.
func (p *Pantry) LookupNamed(name string) (prepared.Item, error) {
	it, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("pantry: no item named %q", name)
	}
	return it, nil
}

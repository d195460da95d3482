// Package cookbook implements the append-only recipe index of spec.md §3:
// recipes indexed by the item they produce, so the kitchen can look up every
// known way to prepare a given result.
package cookbook

import (
	"github.com/n-peugnet/diffkitchen/item"
	"github.com/n-peugnet/diffkitchen/recipe"
)

// Cookbook indexes recipes by every Key their result item exposes, so a
// lookup by any one of a result's hashes finds it (spec.md §3, item_key).
type Cookbook struct {
	byKey map[item.Key][]*recipe.Recipe
	seen  map[recipe.Key]bool
	all   []*recipe.Recipe
}

// New returns an empty cookbook.
func New() *Cookbook {
	return &Cookbook{
		byKey: make(map[item.Key][]*recipe.Recipe),
		seen:  make(map[recipe.Key]bool),
	}
}

// Add registers r, indexed under every Key of its result item. Duplicate
// recipes (same name/result/numbers/items) are ignored, since a nested or
// re-stocked archive may legitimately offer the same recipe twice.
func (c *Cookbook) Add(r *recipe.Recipe) {
	k := recipe.KeyOf(r)
	if c.seen[k] {
		return
	}
	c.seen[k] = true
	c.all = append(c.all, r)
	for _, key := range r.Result.Keys() {
		c.byKey[key] = append(c.byKey[key], r)
	}
}

// Lookup returns every recipe known to produce an item matching def, in
// insertion order — the order the kitchen's recipe-selection tie-break
// (spec.md §4.6) depends on.
func (c *Cookbook) Lookup(def *item.Definition) []*recipe.Recipe {
	seen := make(map[recipe.Key]bool)
	var out []*recipe.Recipe
	for _, key := range def.Keys() {
		for _, r := range c.byKey[key] {
			rk := recipe.KeyOf(r)
			if seen[rk] {
				continue
			}
			if r.Result.Match(def) == item.NoMatch {
				continue
			}
			seen[rk] = true
			out = append(out, r)
		}
	}
	return out
}

// All returns every recipe in insertion order.
func (c *Cookbook) All() []*recipe.Recipe {
	return append([]*recipe.Recipe(nil), c.all...)
}

// Len reports how many distinct recipes are indexed.
func (c *Cookbook) Len() int { return len(c.all) }

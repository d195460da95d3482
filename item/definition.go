package item

import (
	"fmt"
	"sort"
)

// MatchResult is the outcome of comparing two Definitions that may not share
// every hash algorithm.
type MatchResult int

const (
	// NoMatch means length or a shared hash disagrees.
	NoMatch MatchResult = iota
	// Match means length agrees and every shared hash agrees.
	Match
	// Uncertain means length agrees but the two definitions share no hash
	// algorithm, so content equality cannot be decided.
	Uncertain
)

func (m MatchResult) String() string {
	switch m {
	case Match:
		return "match"
	case Uncertain:
		return "uncertain"
	default:
		return "no_match"
	}
}

// Definition is a content identity: a length plus a set of hashes (at most
// one per algorithm) plus a set of human-readable names. Definitions are
// immutable; With* methods return modified copies.
type Definition struct {
	length int64
	hashes map[Algorithm]Hash
	names  map[string]struct{}
}

// New builds a Definition from a length and a set of hashes. It fails if two
// hashes share an algorithm with differing bytes.
func New(length int64, hashes ...Hash) (*Definition, error) {
	d := &Definition{
		length: length,
		hashes: make(map[Algorithm]Hash, len(hashes)),
		names:  make(map[string]struct{}),
	}
	for _, h := range hashes {
		if existing, ok := d.hashes[h.Algorithm]; ok && !existing.Equal(h) {
			return nil, fmt.Errorf("item: %w: algorithm %s", ErrHashSameTypeDifferentValue, h.Algorithm)
		}
		d.hashes[h.Algorithm] = h
	}
	return d, nil
}

// ErrHashSameTypeDifferentValue is returned by New/WithHash when two hashes
// for the same algorithm disagree on bytes.
var ErrHashSameTypeDifferentValue = fmt.Errorf("item_definition_hash_same_type_different_value")

// Length is the authoritative byte length of the item's content.
func (d *Definition) Length() int64 { return d.length }

// Hash returns the hash for algo and whether it is present.
func (d *Definition) Hash(algo Algorithm) (Hash, bool) {
	h, ok := d.hashes[algo]
	return h, ok
}

// Hashes returns a copy of all hashes, in the fixed enumeration order.
func (d *Definition) Hashes() []Hash {
	out := make([]Hash, 0, len(d.hashes))
	for _, algo := range orderedAlgorithms {
		if h, ok := d.hashes[algo]; ok {
			out = append(out, h)
		}
	}
	return out
}

// Names returns the sorted set of names attached to this item.
func (d *Definition) Names() []string {
	out := make([]string, 0, len(d.names))
	for n := range d.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// WithHash returns a copy of d with h added (or replacing an existing hash
// for the same algorithm, provided the bytes agree).
func (d *Definition) WithHash(h Hash) (*Definition, error) {
	nd := d.clone()
	if existing, ok := nd.hashes[h.Algorithm]; ok && !existing.Equal(h) {
		return nil, fmt.Errorf("item: %w: algorithm %s", ErrHashSameTypeDifferentValue, h.Algorithm)
	}
	nd.hashes[h.Algorithm] = h
	return nd, nil
}

// WithName returns a copy of d with name added to its name set.
func (d *Definition) WithName(name string) *Definition {
	nd := d.clone()
	nd.names[name] = struct{}{}
	return nd
}

func (d *Definition) clone() *Definition {
	nd := &Definition{
		length: d.length,
		hashes: make(map[Algorithm]Hash, len(d.hashes)),
		names:  make(map[string]struct{}, len(d.names)),
	}
	for k, v := range d.hashes {
		nd.hashes[k] = v
	}
	for k := range d.names {
		nd.names[k] = struct{}{}
	}
	return nd
}

// Equal requires equal length and equal hash bytes for every algorithm
// present on either side (absence on one side and presence on the other is
// not equality — use Match for a looser, "best effort" comparison).
func (d *Definition) Equal(o *Definition) bool {
	if d.length != o.length || len(d.hashes) != len(o.hashes) {
		return false
	}
	for algo, h := range d.hashes {
		oh, ok := o.hashes[algo]
		if !ok || !h.Equal(oh) {
			return false
		}
	}
	return true
}

// Match compares d and o the way the archive codec needs to when only a
// subset of hashes is known on either side: Match if length and every
// shared algorithm agree, NoMatch on any disagreement, Uncertain if the two
// share no algorithm at all.
func (d *Definition) Match(o *Definition) MatchResult {
	if d.length != o.length {
		return NoMatch
	}
	shared := false
	for algo, h := range d.hashes {
		oh, ok := o.hashes[algo]
		if !ok {
			continue
		}
		shared = true
		if !h.Equal(oh) {
			return NoMatch
		}
	}
	if !shared {
		return Uncertain
	}
	return Match
}

// Compare implements the archive's total order: first by length, then
// lexicographically by hash bytes across algorithms in the fixed
// enumeration order (MD5, then SHA-256).
func (d *Definition) Compare(o *Definition) int {
	if d.length != o.length {
		if d.length < o.length {
			return -1
		}
		return 1
	}
	for _, algo := range orderedAlgorithms {
		dh, dok := d.hashes[algo]
		oh, ook := o.hashes[algo]
		if !dok || !ook {
			continue
		}
		if c := compareBytes(dh.Bytes, oh.Bytes); c != 0 {
			return c
		}
	}
	return 0
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// Key returns a value suitable for indexing a Definition by any one of its
// hashes, used by cookbook/pantry lookups: a lookup on any shared hash
// algorithm must find entries registered under any other shared algorithm.
type Key struct {
	Length    int64
	Algorithm Algorithm
	HashHex   string
}

// Keys returns one Key per hash carried by d, plus the length-only key used
// when d carries no hash at all (e.g. a zero-length item).
func (d *Definition) Keys() []Key {
	if len(d.hashes) == 0 {
		return []Key{{Length: d.length}}
	}
	out := make([]Key, 0, len(d.hashes))
	for _, algo := range orderedAlgorithms {
		if h, ok := d.hashes[algo]; ok {
			out = append(out, Key{Length: d.length, Algorithm: algo, HashHex: fmt.Sprintf("%x", h.Bytes)})
		}
	}
	return out
}

func (d *Definition) String() string {
	return fmt.Sprintf("item(len=%d, hashes=%v, names=%v)", d.length, d.Hashes(), d.Names())
}

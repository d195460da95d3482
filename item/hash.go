// Package item implements content identity for the diff archive: items are
// opaque byte blobs identified by length and one or more content hashes.
package item

import (
	"bytes"
	"fmt"
)

// Algorithm identifies a hash function used to identify item content.
// The wire encoding of an Algorithm is a fixed u32 tag (see archive codec);
// the enumeration order below (MD5, SHA256) is also the fixed comparison
// order used by Definition.Compare.
type Algorithm uint32

const (
	MD5 Algorithm = iota
	SHA256
)

// Sizes, in bytes, of each supported hash's digest.
const (
	MD5Size    = 16
	SHA256Size = 32
)

// WireTagMD5 and WireTagSHA256 are the fixed u32 algorithm tags a hash_repr
// carries on the wire, in both the standard and legacy archive formats
// (spec.md §3 "hash" and §6.1 "hash_repr").
const (
	WireTagMD5    uint32 = 32771
	WireTagSHA256 uint32 = 32780
)

// WireTag returns a's fixed on-wire algorithm tag, or false if a has none.
func (a Algorithm) WireTag() (uint32, bool) {
	switch a {
	case MD5:
		return WireTagMD5, true
	case SHA256:
		return WireTagSHA256, true
	default:
		return 0, false
	}
}

// AlgorithmFromWireTag resolves a hash_repr's algorithm_tag back to an
// Algorithm, or false if tag is not one of the fixed values spec.md §3
// defines.
func AlgorithmFromWireTag(tag uint32) (Algorithm, bool) {
	switch tag {
	case WireTagMD5:
		return MD5, true
	case WireTagSHA256:
		return SHA256, true
	default:
		return 0, false
	}
}

func (a Algorithm) String() string {
	switch a {
	case MD5:
		return "md5"
	case SHA256:
		return "sha256"
	default:
		return fmt.Sprintf("algorithm(%d)", uint32(a))
	}
}

// Size returns the digest length in bytes for a, or 0 if a is unknown.
func (a Algorithm) Size() int {
	switch a {
	case MD5:
		return MD5Size
	case SHA256:
		return SHA256Size
	default:
		return 0
	}
}

// orderedAlgorithms is the fixed enumeration order used to break ties when
// comparing item_definitions: MD5 before SHA-256.
var orderedAlgorithms = [...]Algorithm{MD5, SHA256}

// Hash is a single {algorithm, bytes} content hash.
type Hash struct {
	Algorithm Algorithm
	Bytes     []byte
}

// NewHash validates that b has the expected size for algo before wrapping it.
func NewHash(algo Algorithm, b []byte) (Hash, error) {
	if size := algo.Size(); size != 0 && len(b) != size {
		return Hash{}, fmt.Errorf("item: %s hash must be %d bytes, got %d", algo, size, len(b))
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return Hash{Algorithm: algo, Bytes: cp}, nil
}

// Equal reports whether h and o carry the same algorithm and bytes.
func (h Hash) Equal(o Hash) bool {
	return h.Algorithm == o.Algorithm && bytes.Equal(h.Bytes, o.Bytes)
}

func (h Hash) String() string {
	return fmt.Sprintf("%s:%x", h.Algorithm, h.Bytes)
}

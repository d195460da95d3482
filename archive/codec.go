package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/n-peugnet/diffkitchen/dkerr"
	"github.com/n-peugnet/diffkitchen/item"
)

// Decode reads one standard-format archive from r.
func Decode(r io.Reader) (*Archive, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("archive: read magic: %w", err)
	}
	if magic != Magic {
		return nil, dkerr.New(dkerr.MagicMismatch, "got %q, want %q", magic, Magic)
	}
	version, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, dkerr.New(dkerr.VersionMismatch, "got %d, want %d", version, FormatVersion)
	}

	target, err := readItemRepr(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode target item: %w", err)
	}
	a := New(target)

	src, err := readItemRepr(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode source item: %w", err)
	}
	if src.Length() != 0 {
		a.SourceItem = src
	}

	typeTable, err := readTypeTable(r)
	if err != nil {
		return nil, err
	}

	groupCount, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	const maxReasonableGroups = 1 << 24
	if groupCount > maxReasonableGroups {
		return nil, dkerr.New(dkerr.ChunkCountTooLarge, "recipe group count %d exceeds sanity limit", groupCount)
	}
	for g := uint64(0); g < groupCount; g++ {
		entries, err := readResultGroup(r, typeTable)
		if err != nil {
			return nil, fmt.Errorf("archive: decode recipe group %d: %w", g, err)
		}
		a.recipes = append(a.recipes, entries...)
	}

	inlineAssets, err := readBlobWithRepr(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode inline assets: %w", err)
	}
	a.inlineAssets = inlineAssets

	remainder, err := readBlobWithRepr(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode remainder: %w", err)
	}
	a.remainderRaw = remainder

	nestedCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nestedCount; i++ {
		nestedBytes, err := readBlobWithRepr(r)
		if err != nil {
			return nil, fmt.Errorf("archive: decode nested archive %d: %w", i, err)
		}
		nested, err := Decode(bytes.NewReader(nestedBytes))
		if err != nil {
			return nil, fmt.Errorf("archive: decode nested archive %d: %w", i, err)
		}
		a.AddNestedArchive(nested)
	}

	return a, nil
}

// Encode writes a standard-format rendition of a to w. Payloads are never
// written: spec.md §6.1's wire grammar carries no payload section, since
// payloads (spec.md §3) are in-memory bookkeeping the kitchen never reads.
func (a *Archive) Encode(w io.Writer) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if err := writeUint64(w, FormatVersion); err != nil {
		return err
	}
	if err := writeItemRepr(w, a.TargetItem); err != nil {
		return err
	}
	if err := writeItemRepr(w, a.SourceItem); err != nil {
		return err
	}

	typeTable := buildTypeTable(a.recipes)
	if err := writeTypeTable(w, typeTable); err != nil {
		return err
	}

	groups := groupRecipesByResult(a.recipes)
	if err := writeUint64(w, uint64(len(groups))); err != nil {
		return err
	}
	for _, g := range groups {
		if err := writeResultGroup(w, g, typeTable); err != nil {
			return err
		}
	}

	if err := writeBlobWithRepr(w, a.inlineAssets); err != nil {
		return err
	}
	if err := writeBlobWithRepr(w, a.remainderRaw); err != nil {
		return err
	}

	nested := distinctNestedArchives(a.nestedArchives)
	if err := writeUint32(w, uint32(len(nested))); err != nil {
		return err
	}
	for _, n := range nested {
		var buf bytes.Buffer
		if err := n.Encode(&buf); err != nil {
			return err
		}
		if err := writeBlobWithRepr(w, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// distinctNestedArchives returns each nested archive once, since
// a.nestedArchives indexes the same *Archive under every Key its target
// item exposes.
func distinctNestedArchives(m map[item.Key]*Archive) []*Archive {
	seen := make(map[*Archive]bool, len(m))
	var out []*Archive
	for _, n := range m {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// resultGroup is spec.md §6.1's grouping of recipes by shared result item:
// "group : u64 n_recipes; item_repr result; recipe × n".
type resultGroup struct {
	result  *item.Definition
	recipes []recipeEntry
}

// groupRecipesByResult buckets entries by result item identity, preserving
// the order each distinct result first appears in.
func groupRecipesByResult(entries []recipeEntry) []resultGroup {
	index := make(map[item.Key]int)
	var groups []resultGroup
	for _, e := range entries {
		idx := -1
		for _, k := range e.result.Keys() {
			if i, ok := index[k]; ok {
				idx = i
				break
			}
		}
		if idx == -1 {
			idx = len(groups)
			groups = append(groups, resultGroup{result: e.result})
			for _, k := range e.result.Keys() {
				index[k] = idx
			}
		}
		groups[idx].recipes = append(groups[idx].recipes, e)
	}
	return groups
}

func writeResultGroup(w io.Writer, g resultGroup, typeTable []string) error {
	if err := writeUint64(w, uint64(len(g.recipes))); err != nil {
		return err
	}
	if err := writeItemRepr(w, g.result); err != nil {
		return err
	}
	for _, e := range g.recipes {
		if err := writeRecipeEntry(w, e, typeTable); err != nil {
			return err
		}
	}
	return nil
}

func readResultGroup(r io.Reader, typeTable []string) ([]recipeEntry, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	result, err := readItemRepr(r)
	if err != nil {
		return nil, err
	}
	entries := make([]recipeEntry, n)
	for i := range entries {
		e, err := readRecipeEntry(r, typeTable)
		if err != nil {
			return nil, err
		}
		e.result = result
		entries[i] = e
	}
	return entries, nil
}

// readTypeTable reads the recipe-type name table every recipe entry
// references by index, so a recipe's type name is stored once per archive
// rather than once per recipe (spec.md §6.1).
func readTypeTable(r io.Reader) ([]string, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	table := make([]string, n)
	for i := range table {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		table[i] = s
	}
	return table, nil
}

func writeTypeTable(w io.Writer, table []string) error {
	if err := writeUint32(w, uint32(len(table))); err != nil {
		return err
	}
	for _, s := range table {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func buildTypeTable(entries []recipeEntry) []string {
	seen := make(map[string]bool)
	var table []string
	for _, e := range entries {
		if !seen[e.typeName] {
			seen[e.typeName] = true
			table = append(table, e.typeName)
		}
	}
	return table
}

func typeIndex(table []string, name string) (uint32, error) {
	for i, t := range table {
		if t == name {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("archive: recipe type %q missing from type table", name)
}

// readRecipeEntry reads one recipe_type_id + n_numbers/numbers +
// n_items/item_reprs entry. The result field is carried once per group, not
// per entry, so callers fill e.result in after this returns.
func readRecipeEntry(r io.Reader, typeTable []string) (recipeEntry, error) {
	typeIdx, err := readUint32(r)
	if err != nil {
		return recipeEntry{}, err
	}
	if int(typeIdx) >= len(typeTable) {
		return recipeEntry{}, fmt.Errorf("archive: recipe type index %d out of range", typeIdx)
	}
	numCount, err := readUint64(r)
	if err != nil {
		return recipeEntry{}, err
	}
	numbers := make([]uint64, numCount)
	for i := range numbers {
		numbers[i], err = readUint64(r)
		if err != nil {
			return recipeEntry{}, err
		}
	}
	itemCount, err := readUint64(r)
	if err != nil {
		return recipeEntry{}, err
	}
	items := make([]*item.Definition, itemCount)
	for i := range items {
		items[i], err = readItemRepr(r)
		if err != nil {
			return recipeEntry{}, err
		}
	}
	return recipeEntry{typeName: typeTable[typeIdx], numbers: numbers, items: items}, nil
}

func writeRecipeEntry(w io.Writer, e recipeEntry, typeTable []string) error {
	idx, err := typeIndex(typeTable, e.typeName)
	if err != nil {
		return err
	}
	if err := writeUint32(w, idx); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(e.numbers))); err != nil {
		return err
	}
	for _, n := range e.numbers {
		if err := writeUint64(w, n); err != nil {
			return err
		}
	}
	if err := writeUint64(w, uint64(len(e.items))); err != nil {
		return err
	}
	for _, it := range e.items {
		if err := writeItemRepr(w, it); err != nil {
			return err
		}
	}
	return nil
}

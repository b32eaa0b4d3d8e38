// Package machine describes the target machine's data-layout parameters:
// per-primitive {alignment, size} and the padding datatypes available to
// fill a struct's unaligned gaps. Grounded on the `load_machine_def`/
// `MACHINE_DEF`/`create_padding_info` machinery in
// original_source/typecheck/declare.py, but reduced to an in-memory value
// type — no file loading, per the Non-goals.
package machine

import "sort"

// Primitive describes one primitive datatype's layout.
type Primitive struct {
	Alignment int
	Size      int
}

// Description is a machine's data-layout parameters: every C-ABI
// primitive's {alignment, size}, keyed by its C type name (e.g. "int",
// "void*", "long long"), plus the derived padding-datatype table.
type Description struct {
	Primitives map[string]Primitive
	// padding, computed once from Primitives, maps an alignment value to
	// the widest primitive whose own (size == alignment), used to fill
	// struct padding with the fewest possible fields.
	padding []paddingEntry
}

type paddingEntry struct {
	bytes int
	name  string
}

// New builds a Description from a primitive table and derives its padding
// datatype list, mirroring create_padding_info.
func New(primitives map[string]Primitive) *Description {
	d := &Description{Primitives: primitives}
	d.derivePadding()
	return d
}

func (d *Description) derivePadding() {
	seen := map[int]string{}
	for name, p := range d.Primitives {
		if p.Size == p.Alignment {
			if existing, ok := seen[p.Alignment]; !ok || name < existing {
				seen[p.Alignment] = name
			}
		}
	}
	for bytes, name := range seen {
		d.padding = append(d.padding, paddingEntry{bytes: bytes, name: name})
	}
	sort.Slice(d.padding, func(i, j int) bool { return d.padding[i].bytes > d.padding[j].bytes })
}

// PaddingPrimitive picks the widest padding-filler primitive that both
// fits in the remaining gap and is itself aligned at the current offset,
// matching emit_padding's `padding >= num_bytes and size % num_bytes == 0`
// search order (largest-first).
func (d *Description) PaddingPrimitive(offset, remaining int) (name string, bytes int, ok bool) {
	for _, e := range d.padding {
		if remaining >= e.bytes && offset%e.bytes == 0 {
			return e.name, e.bytes, true
		}
	}
	return "", 0, false
}

// Lookup returns a primitive's layout by name.
func (d *Description) Lookup(name string) (Primitive, bool) {
	p, ok := d.Primitives[name]
	return p, ok
}

// LP64 is the reference machine description for the LP64 data model
// (64-bit Linux/macOS ABI): int is 4 bytes, long and pointers are 8.
var LP64 = New(map[string]Primitive{
	"char":      {Alignment: 1, Size: 1},
	"short":     {Alignment: 2, Size: 2},
	"int":       {Alignment: 4, Size: 4},
	"long":      {Alignment: 8, Size: 8},
	"long long": {Alignment: 8, Size: 8},
	"float":     {Alignment: 4, Size: 4},
	"double":    {Alignment: 8, Size: 8},
	"void*":     {Alignment: 8, Size: 8},
})

package declare

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"cedar/internal/ir"
)

// layoutCache memoizes OptimizeLayout results by the Type value's
// identity, mirroring declare.py's process-wide LAYOUT_CACHE dict keyed
// by the type object itself. golang.org/x/sync/singleflight collapses
// concurrent callers computing the same type's layout into one
// computation, the way the teacher's internal/fetch package does for
// concurrent identical requests.
type layoutCache struct {
	group   singleflight.Group
	mu      sync.Mutex
	results map[any]Layout
}

func newLayoutCache() *layoutCache {
	return &layoutCache{results: map[any]Layout{}}
}

// Layout is a computed type's alignment and total size in bytes.
type Layout struct {
	Alignment int
	Size      int
}

type field struct {
	name string
	typ  ir.Type
}

// OptimizeLayout computes a type's {alignment, size}, reordering sum-type
// constructor fields by ascending (alignment, size) and inserting explicit
// machine.PaddingType fields to close alignment gaps, exactly the job
// struct_alignment_and_padding/optimize_datatype_layout do in
// original_source/typecheck/declare.py. Results are cached per Type
// value, since the same TypeDefinition/TupleType is typically asked for
// its layout many times across a compilation.
// OptimizeLayout accepts either an ir.Type (to lay out a TupleType, sum
// type, or any value-producing node) or an ir.CType shell directly (to lay
// out a CStructDefinition/CUnionDefinition/etc. looked up by declare time,
// before anything references it through a CNamedType) — the two marker
// interfaces don't overlap, so the parameter is left as the narrower `any`
// rather than widening CType to also satisfy Type.
func (d *Declarer) OptimizeLayout(ty any) (Layout, error) {
	d.layout.mu.Lock()
	if l, ok := d.layout.results[ty]; ok {
		d.layout.mu.Unlock()
		return l, nil
	}
	d.layout.mu.Unlock()

	key := fmt.Sprintf("%p", ty)
	v, err, _ := d.layout.group.Do(key, func() (any, error) {
		l, err := d.computeLayout(ty)
		if err != nil {
			return Layout{}, err
		}
		d.layout.mu.Lock()
		d.layout.results[ty] = l
		d.layout.mu.Unlock()
		d.Logger.Debugf("laid out %T: align=%d size=%s", ty, l.Alignment, humanize.Bytes(uint64(l.Size)))
		return l, nil
	})
	if err != nil {
		return Layout{}, err
	}
	return v.(Layout), nil
}

func (d *Declarer) computeLayout(ty any) (Layout, error) {
	switch t := ty.(type) {
	case *ir.UninferredType:
		return Layout{}, errors.New("cannot compute layout of an uninferred type")
	case *ir.IntegerType:
		bytes := t.Bits / 8
		return Layout{Alignment: bytes, Size: bytes}, nil
	case *ir.FloatType:
		bytes := t.Bits / 8
		return Layout{Alignment: bytes, Size: bytes}, nil
	case *ir.BoolType:
		return Layout{Alignment: 1, Size: 1}, nil
	case *ir.VoidType, *ir.ExitType:
		return Layout{Alignment: 1, Size: 0}, nil
	case *ir.PointerType:
		p, _ := d.machine.Lookup("void*")
		return Layout{Alignment: p.Alignment, Size: p.Size}, nil
	case *ir.FunctionType:
		p, _ := d.machine.Lookup("void*")
		return Layout{Alignment: p.Alignment, Size: p.Size}, nil
	case *ir.RttiType:
		p, _ := d.machine.Lookup("void*")
		return Layout{Alignment: p.Alignment, Size: p.Size}, nil
	case *ir.CNamedType:
		return d.cNamedLayout(t)
	case *ir.CConstType:
		return d.computeLayout(t.Target)

	case *ir.OptionType:
		// A pointer-valued option needs no extra tag: null already marks
		// emptiness. Anything else becomes {bool has_value, T value}.
		if _, ok := t.Target.(*ir.PointerType); ok {
			return d.computeLayout(t.Target)
		}
		_, _, align, size, err := d.layoutFields(
			[]field{{"has_value", &ir.BoolType{}}, {"value", t.Target}}, true)
		if err != nil {
			return Layout{}, err
		}
		return Layout{Alignment: align, Size: size}, nil

	case *ir.ArrayType:
		// Represented as {pointer, u64 length}; same shape regardless of
		// element type, so no reordering is needed.
		p, _ := d.machine.Lookup("void*")
		l, _ := d.machine.Lookup("long")
		align := p.Alignment
		if l.Alignment > align {
			align = l.Alignment
		}
		return Layout{Alignment: align, Size: p.Size + l.Size}, nil

	case *ir.TupleType:
		fields := make([]field, 0, len(t.Positional)+len(t.Named))
		for _, pt := range t.Positional {
			fields = append(fields, field{"", pt})
		}
		for i, nt := range t.Named {
			fields = append(fields, field{t.Names[i], nt})
		}
		layoutTypes, layoutNames, align, size, err := d.layoutFields(fields, false)
		if err != nil {
			return Layout{}, err
		}
		t.LayoutTypes = layoutTypes
		t.LayoutNames = layoutNames
		return Layout{Alignment: align, Size: size}, nil

	case *ir.UnionType:
		return d.unionLayout(t)

	case *ir.TypeDefinition:
		return d.typeDefLayout(t)

	case *ir.CStructDefinition:
		return d.cStructLayout(t)
	case *ir.CUnionDefinition:
		return d.cUnionLayout(t)
	case *ir.CEnumDefinition:
		i, _ := d.machine.Lookup("int")
		return Layout{Alignment: i.Alignment, Size: i.Size}, nil
	case *ir.CTypedefDefinition:
		if t.Definition == nil {
			return Layout{}, errors.Errorf("declare: typedef %q has no resolved definition", t.Name)
		}
		return d.computeLayout(t.Definition)
	case *ir.CArrayType:
		elem, err := d.computeLayout(t.Elem)
		if err != nil {
			return Layout{}, err
		}
		return Layout{Alignment: elem.Alignment, Size: elem.Size}, nil
	case *ir.CFunctionPointerType:
		p, _ := d.machine.Lookup("void*")
		return Layout{Alignment: p.Alignment, Size: p.Size}, nil

	default:
		return Layout{}, errors.Errorf("declare: cannot compute layout of %T", ty)
	}
}

// layoutFields runs struct_alignment_and_padding: when reorder is true
// (sum-type constructor arms and option payloads, which carry no
// fixed-ABI requirement), fields are sorted by ascending (alignment,
// size) before padding is emitted. Tuples and C-derived structs pass
// reorder=false and keep their declared field order.
func (d *Declarer) layoutFields(fields []field, reorder bool) (layoutTypes []ir.Type, layoutNames []string, align, size int, err error) {
	type sized struct {
		field
		l Layout
	}
	withSizes := make([]sized, 0, len(fields))
	for _, f := range fields {
		l, ferr := d.computeLayout(f.typ)
		if ferr != nil {
			return nil, nil, 0, 0, ferr
		}
		withSizes = append(withSizes, sized{f, l})
	}
	if reorder {
		sort.SliceStable(withSizes, func(i, j int) bool {
			a, b := withSizes[i].l, withSizes[j].l
			if a.Alignment != b.Alignment {
				return a.Alignment < b.Alignment
			}
			return a.Size < b.Size
		})
	}

	structAlign := 1
	for _, f := range withSizes {
		if f.l.Alignment > structAlign {
			structAlign = f.l.Alignment
		}
	}

	offset := 0
	for _, f := range withSizes {
		if f.l.Alignment > 0 && offset%f.l.Alignment != 0 {
			gap := f.l.Alignment - offset%f.l.Alignment
			d.emitPadding(&layoutTypes, &layoutNames, &offset, gap)
		}
		layoutTypes = append(layoutTypes, f.typ)
		layoutNames = append(layoutNames, f.name)
		offset += f.l.Size
	}
	if structAlign > 0 && offset%structAlign != 0 {
		gap := structAlign - offset%structAlign
		d.emitPadding(&layoutTypes, &layoutNames, &offset, gap)
	}
	return layoutTypes, layoutNames, structAlign, offset, nil
}

// emitPadding fills a gap of n bytes with as few explicit padding
// fields as possible, preferring the widest primitive that both fits
// and is aligned at the current offset — emit_padding's search order.
func (d *Declarer) emitPadding(layoutTypes *[]ir.Type, layoutNames *[]string, offset *int, n int) {
	remaining := n
	i := 0
	for remaining > 0 {
		name, bytes, ok := d.machine.PaddingPrimitive(*offset, remaining)
		if !ok {
			bytes = 1
			name = "char"
		}
		*layoutTypes = append(*layoutTypes, &ir.PaddingType{Bytes: bytes})
		*layoutNames = append(*layoutNames, fmt.Sprintf("__padding%d_%s__", i, name))
		*offset += bytes
		remaining -= bytes
		i++
	}
}

// typeDefLayout computes a sum type's layout: every constructor's field
// list is laid out independently (padding-expanded, fields reordered by
// ascending alignment and size), then the whole type's size is the widest
// constructor's size plus one tag byte, rounded up to the type's
// alignment. Every constructor is padded out to that size with the
// `__index__` tag as its last byte; the tag byte always comes after the
// widest constructor's own trailing padding, which is not reused for it.
// A Tagless type (no constructors, or an explicit void tag) carries no
// discriminant at all.
func (d *Declarer) typeDefLayout(t *ir.TypeDefinition) (Layout, error) {
	structAlign := 1
	maxSize := 0
	type ctorLayout struct {
		ctor  *ir.TypeConstructor
		align int
		size  int
	}
	var ctorLayouts []ctorLayout
	for _, ctor := range t.Constructors {
		fields := make([]field, len(ctor.FieldTypes))
		for i, ft := range ctor.FieldTypes {
			name := ""
			if i < len(ctor.FieldNames) {
				name = ctor.FieldNames[i]
			}
			fields[i] = field{name, ft}
		}
		layoutTypes, layoutNames, align, size, err := d.layoutFields(fields, true)
		if err != nil {
			return Layout{}, err
		}
		ctor.LayoutTypes = layoutTypes
		ctor.LayoutNames = layoutNames
		if align > structAlign {
			structAlign = align
		}
		if size > maxSize {
			maxSize = size
		}
		ctorLayouts = append(ctorLayouts, ctorLayout{ctor, align, size})
	}

	t.CommonNames = commonFieldNames(t.Constructors)

	if t.Tagless {
		return Layout{Alignment: structAlign, Size: maxSize}, nil
	}

	totalSize := maxSize + 1
	if totalSize%structAlign != 0 {
		totalSize += structAlign - totalSize%structAlign
	}

	for _, cl := range ctorLayouts {
		gap := totalSize - cl.size
		if gap <= 0 {
			continue
		}
		d.spliceTag(&cl.ctor.LayoutTypes, &cl.ctor.LayoutNames, cl.size, gap)
	}
	return Layout{Alignment: structAlign, Size: totalSize}, nil
}

// spliceTag fills a constructor's trailing gap up to the sum type's
// total size, placing the one-byte `__index__` discriminant in the last
// byte of that gap — in whichever padding primitive covers the rest,
// ahead of it, the same way a misaligned field's leading gap is filled.
func (d *Declarer) spliceTag(layoutTypes *[]ir.Type, layoutNames *[]string, offset, gap int) {
	if gap > 1 {
		d.emitPadding(layoutTypes, layoutNames, &offset, gap-1)
	}
	*layoutTypes = append(*layoutTypes, &ir.IntegerType{Bits: 8, Signed: false})
	*layoutNames = append(*layoutNames, "__index__")
}

func (d *Declarer) unionLayout(t *ir.UnionType) (Layout, error) {
	align := 1
	size := 0
	for _, alt := range t.Types {
		l, err := d.computeLayout(alt)
		if err != nil {
			return Layout{}, err
		}
		if l.Alignment > align {
			align = l.Alignment
		}
		if l.Size > size {
			size = l.Size
		}
	}
	p, _ := d.machine.Lookup("void*") // RTTI tag, pointer-sized
	if p.Alignment > align {
		align = p.Alignment
	}
	total := size + p.Size
	if total%align != 0 {
		total += align - total%align
	}
	return Layout{Alignment: align, Size: total}, nil
}

// cStructLayout lays out a C struct in its declared field order — C's
// ABI fixes field order, so unlike TupleType/TypeDefinition this never
// reorders, only inserts padding ahead of a misaligned field.
func (d *Declarer) cStructLayout(t *ir.CStructDefinition) (Layout, error) {
	fields := make([]field, len(t.FieldTypes))
	for i, ft := range t.FieldTypes {
		name := ""
		if i < len(t.FieldNames) {
			name = t.FieldNames[i]
		}
		fields[i] = field{name, ft}
	}
	layoutTypes, layoutNames, align, size, err := d.layoutFields(fields, false)
	if err != nil {
		return Layout{}, err
	}
	t.LayoutTypes = layoutTypes
	t.LayoutNames = layoutNames
	return Layout{Alignment: align, Size: size}, nil
}

func (d *Declarer) cUnionLayout(t *ir.CUnionDefinition) (Layout, error) {
	align := 1
	size := 0
	for _, ft := range t.FieldTypes {
		l, err := d.computeLayout(ft)
		if err != nil {
			return Layout{}, err
		}
		if l.Alignment > align {
			align = l.Alignment
		}
		if l.Size > size {
			size = l.Size
		}
	}
	if size%align != 0 {
		size += align - size%align
	}
	return Layout{Alignment: align, Size: size}, nil
}

// cNamedLayout lays out a reference to a C type by name: a bare name
// (TypeKind "") is tried against the machine description first (most
// CNamedType values name a primitive like "int" or "unsigned long"),
// falling back to a declared typedef shell; struct/union/enum always
// resolve against the declared shell, since those names were never
// primitives to begin with. C headers share one flat tag/typedef
// namespace across every module in a compilation, so the search spans
// every module the declarer has seen, not just the current one.
func (d *Declarer) cNamedLayout(t *ir.CNamedType) (Layout, error) {
	if t.TypeKind == "" {
		if p, ok := d.machine.Lookup(t.Name); ok {
			return Layout{Alignment: p.Alignment, Size: p.Size}, nil
		}
	}
	if shell, ok := d.findCTypeShell(t.Name, t.TypeKind); ok {
		return d.computeCTypeLayout(shell)
	}
	return Layout{}, errors.Errorf("declare: unknown C type %q", t.Name)
}

// findCTypeShell looks up a struct/union/enum/typedef shell by name+kind
// across every module declared so far.
func (d *Declarer) findCTypeShell(name, kind string) (ir.CType, bool) {
	for _, mod := range d.Modules {
		for _, ct := range mod.CTypes {
			switch c := ct.(type) {
			case *ir.CStructDefinition:
				if kind == "struct" && c.Name == name {
					return c, true
				}
			case *ir.CUnionDefinition:
				if kind == "union" && c.Name == name {
					return c, true
				}
			case *ir.CEnumDefinition:
				if kind == "enum" && c.Name == name {
					return c, true
				}
			case *ir.CTypedefDefinition:
				if kind == "" && c.Name == name {
					return c, true
				}
			}
		}
	}
	return nil, false
}

// computeCTypeLayout dispatches a CType shell to its concrete layout
// function — the counterpart to computeLayout's ir.Type switch, kept
// separate since CType and Type are deliberately non-overlapping marker
// interfaces (see ir.CType's doc comment).
func (d *Declarer) computeCTypeLayout(ct ir.CType) (Layout, error) {
	switch c := ct.(type) {
	case *ir.CStructDefinition:
		return d.cStructLayout(c)
	case *ir.CUnionDefinition:
		return d.cUnionLayout(c)
	case *ir.CEnumDefinition:
		i, _ := d.machine.Lookup("int")
		return Layout{Alignment: i.Alignment, Size: i.Size}, nil
	case *ir.CTypedefDefinition:
		if c.Definition == nil {
			return Layout{}, errors.Errorf("declare: typedef %q has no resolved definition", c.Name)
		}
		return d.computeLayout(c.Definition)
	default:
		return Layout{}, errors.Errorf("declare: cannot compute layout of %T", ct)
	}
}

// commonFieldNames returns the field names present, at the same
// declared type, in every constructor of a sum type — these can be
// loaded with ir.LoadCommonMember, no tag check required. Each
// constructor is laid out on its own, so the field's offset can differ
// between constructors.
func commonFieldNames(ctors []*ir.TypeConstructor) []string {
	if len(ctors) == 0 {
		return nil
	}
	counts := map[string]int{}
	types := map[string]string{}
	ambiguous := map[string]bool{}
	for _, ctor := range ctors {
		seen := map[string]bool{}
		for i, name := range ctor.FieldNames {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			tyStr := fmt.Sprintf("%#v", ctor.FieldTypes[i])
			if prev, ok := types[name]; ok && prev != tyStr {
				ambiguous[name] = true
			}
			types[name] = tyStr
			counts[name]++
		}
	}
	var common []string
	for name, n := range counts {
		if n == len(ctors) && !ambiguous[name] {
			common = append(common, name)
		}
	}
	sort.Strings(common)
	return common
}

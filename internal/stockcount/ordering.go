package stockcount

import "sort"

// OrderSource says which case of the ordering rules produced an Ordering.
type OrderSource string

const (
	OrderSaved        OrderSource = "saved"
	OrderInherited    OrderSource = "inherited"
	OrderAlphabetical OrderSource = "alphabetical"
)

// ItemRef is one product of a count as the ordering engine sees it.
// Category is the resolved label, never empty.
type ItemRef struct {
	ProductID uint
	Name      string
	Category  string
}

// Sequence is a walk order keyed by product id. Names only appear at the
// HTTP boundary, so renaming a product keeps its place.
type Sequence struct {
	Categories []string
	Products   map[string][]uint
}

func (s Sequence) Empty() bool {
	return len(s.Categories) == 0 && len(s.Products) == 0
}

// Ordering is the computed walk order for one count.
type Ordering struct {
	Source               OrderSource
	Sequence             Sequence
	PreviousStockCountID *uint
}

// Walk builds a sequence from items in the order given: categories and, per
// category, products in first-seen order.
func Walk(items []ItemRef) Sequence {
	seq := Sequence{Products: map[string][]uint{}}
	seenProduct := make(map[uint]bool, len(items))
	for _, it := range items {
		if _, ok := seq.Products[it.Category]; !ok {
			seq.Categories = append(seq.Categories, it.Category)
			seq.Products[it.Category] = nil
		}
		if seenProduct[it.ProductID] {
			continue
		}
		seenProduct[it.ProductID] = true
		seq.Products[it.Category] = append(seq.Products[it.Category], it.ProductID)
	}
	return seq
}

// Apply lays items out along base. Entries of base that are not among items
// are skipped; items base does not mention are appended in encounter order,
// both as categories and within their category. A product listed under a
// category it no longer belongs to moves to its current category.
func Apply(base Sequence, items []ItemRef) Sequence {
	byID := make(map[uint]ItemRef, len(items))
	for _, it := range items {
		if _, ok := byID[it.ProductID]; !ok {
			byID[it.ProductID] = it
		}
	}

	out := Sequence{Products: map[string][]uint{}}
	placed := make(map[uint]bool, len(items))
	addCategory := func(cat string) {
		if _, ok := out.Products[cat]; !ok {
			out.Categories = append(out.Categories, cat)
			out.Products[cat] = nil
		}
	}
	place := func(it ItemRef) {
		addCategory(it.Category)
		out.Products[it.Category] = append(out.Products[it.Category], it.ProductID)
		placed[it.ProductID] = true
	}

	present := make(map[string]bool)
	for _, it := range items {
		present[it.Category] = true
	}

	for _, cat := range base.categoryKeys() {
		if !present[cat] {
			continue
		}
		addCategory(cat)
		for _, id := range base.Products[cat] {
			it, ok := byID[id]
			if !ok || placed[id] || it.Category != cat {
				continue
			}
			place(it)
		}
	}

	for _, it := range items {
		if placed[it.ProductID] {
			continue
		}
		place(it)
	}
	return out
}

// Alphabetical sorts categories and the products inside each by name.
func Alphabetical(items []ItemRef, s sorter) Sequence {
	sorted := append([]ItemRef(nil), items...)
	s.refs(sorted)

	cats := make([]string, 0)
	seen := map[string]bool{}
	for _, it := range sorted {
		if !seen[it.Category] {
			seen[it.Category] = true
			cats = append(cats, it.Category)
		}
	}
	s.strings(cats)

	byCat := Walk(sorted)
	return Sequence{Categories: cats, Products: byCat.Products}
}

// ComputeOrdering picks the first rule that applies: the count's saved order,
// then the order inherited from a previous count, then alphabetical.
// Items must be in creation order.
func ComputeOrdering(items []ItemRef, saved, inherited Sequence, previousID *uint, s sorter) Ordering {
	switch {
	case !saved.Empty():
		return Ordering{Source: OrderSaved, Sequence: Apply(saved, items)}
	case !inherited.Empty():
		return Ordering{Source: OrderInherited, Sequence: Apply(inherited, items), PreviousStockCountID: previousID}
	default:
		return Ordering{Source: OrderAlphabetical, Sequence: Alphabetical(items, s)}
	}
}

// Names converts a sequence to the wire form: product names per category.
func (s Sequence) Names(items []ItemRef) map[string][]string {
	names := make(map[uint]string, len(items))
	for _, it := range items {
		names[it.ProductID] = it.Name
	}
	out := make(map[string][]string, len(s.Products))
	for _, cat := range s.Categories {
		list := make([]string, 0, len(s.Products[cat]))
		for _, id := range s.Products[cat] {
			if n, ok := names[id]; ok {
				list = append(list, n)
			}
		}
		out[cat] = list
	}
	return out
}

// SequenceFromNames resolves a client-submitted order to product ids. Names
// are matched inside the named category first, then anywhere in the count.
// Unknown names are dropped.
func SequenceFromNames(categories []string, products map[string][]string, items []ItemRef) Sequence {
	type key struct{ cat, name string }
	inCat := make(map[key]uint, len(items))
	anywhere := make(map[string]uint, len(items))
	for _, it := range items {
		if _, ok := inCat[key{it.Category, it.Name}]; !ok {
			inCat[key{it.Category, it.Name}] = it.ProductID
		}
		if _, ok := anywhere[it.Name]; !ok {
			anywhere[it.Name] = it.ProductID
		}
	}

	seq := Sequence{Products: map[string][]uint{}}
	seenCat := map[string]bool{}
	for _, c := range categories {
		if c == "" || seenCat[c] {
			continue
		}
		seenCat[c] = true
		seq.Categories = append(seq.Categories, c)
	}

	used := map[uint]bool{}
	for _, cat := range (Sequence{Categories: seq.Categories, Products: toKeys(products)}).categoryKeys() {
		list := products[cat]
		if cat == "" {
			continue
		}
		ids := make([]uint, 0, len(list))
		for _, n := range list {
			id, ok := inCat[key{cat, n}]
			if !ok {
				id, ok = anywhere[n]
			}
			if !ok || used[id] {
				continue
			}
			used[id] = true
			ids = append(ids, id)
		}
		seq.Products[cat] = ids
	}
	return seq
}

// categoryKeys lists Categories followed by any product-map keys missing from
// it, sorted so the result is deterministic.
func (s Sequence) categoryKeys() []string {
	keys := append([]string(nil), s.Categories...)
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	var extra []string
	for k := range s.Products {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

func toKeys(m map[string][]string) map[string][]uint {
	out := make(map[string][]uint, len(m))
	for k := range m {
		out[k] = nil
	}
	return out
}

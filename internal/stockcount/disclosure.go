package stockcount

// DisclosureDebounceMs is how long the field client waits after a category
// completes before it reveals the next one.
const DisclosureDebounceMs = 400

// Override is the last manual expand/collapse a field client made. It stays
// in force while the number of completed categories is still CompletedAt.
type Override struct {
	Expanded    []string `json:"expanded"`
	CompletedAt int      `json:"completed_at"`
}

type Disclosure struct {
	Expanded       []string `json:"expanded"`
	CompletedCount int      `json:"completed_count"`
	Manual         bool     `json:"manual"`
	DebounceMs     int      `json:"debounce_ms"`
}

// Disclose derives which categories are open from the ordering, per-category
// completion and the last manual override. Nothing is remembered between
// calls; clients recompute it from persisted data on every render.
func Disclose(progress []CategoryProgress, ov *Override) Disclosure {
	d := Disclosure{Expanded: []string{}, DebounceMs: DisclosureDebounceMs}
	for _, p := range progress {
		if p.Complete {
			d.CompletedCount++
		}
	}

	if ov != nil && ov.CompletedAt == d.CompletedCount {
		known := make(map[string]bool, len(progress))
		for _, p := range progress {
			known[p.Category] = true
		}
		for _, c := range ov.Expanded {
			if known[c] && !containsString(d.Expanded, c) {
				d.Expanded = append(d.Expanded, c)
			}
		}
		d.Manual = true
		return d
	}

	for _, p := range progress {
		if !p.Complete {
			d.Expanded = append(d.Expanded, p.Category)
			break
		}
	}
	return d
}

// NextFocus returns the product field that should take focus after current:
// the next visible field in walk order, wrapping to the first visible one,
// which is how focus crosses into a newly revealed category.
func NextFocus(seq Sequence, d Disclosure, current uint) (uint, bool) {
	open := make(map[string]bool, len(d.Expanded))
	for _, c := range d.Expanded {
		open[c] = true
	}

	var flat []uint
	visible := map[uint]bool{}
	for _, cat := range seq.Categories {
		for _, id := range seq.Products[cat] {
			flat = append(flat, id)
			if open[cat] {
				visible[id] = true
			}
		}
	}

	pos := -1
	for i, id := range flat {
		if id == current {
			pos = i
			break
		}
	}
	for i := pos + 1; i < len(flat); i++ {
		if visible[flat[i]] {
			return flat[i], true
		}
	}
	for i := 0; i <= pos && i < len(flat); i++ {
		if visible[flat[i]] && flat[i] != current {
			return flat[i], true
		}
	}
	return 0, false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

package stockcount

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"stockcount-backend/internal/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const UncategorizedLabel = "Uncategorized"

// CategoryResolver turns a product's raw category field into a display label.
type CategoryResolver struct {
	byID map[uint]string
}

func NewCategoryResolver(categories []models.Category) *CategoryResolver {
	r := &CategoryResolver{byID: make(map[uint]string, len(categories))}
	for _, c := range categories {
		r.byID[c.ID] = c.Name
	}
	return r
}

// Resolve tries the value as a numeric id first, then as a literal name.
// Every input yields a non-empty label so no product is dropped from ordering.
func (r *CategoryResolver) Resolve(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return UncategorizedLabel
	}
	if id, err := strconv.ParseUint(v, 10, 64); err == nil {
		if name, ok := r.byID[uint(id)]; ok && strings.TrimSpace(name) != "" {
			return name
		}
		return fmt.Sprintf("Category %d", id)
	}
	return v
}

// sorter orders names with locale-aware collation for the alphabetical fallback.
type sorter struct {
	tag language.Tag
}

func newSorter(lang string) sorter {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	return sorter{tag: tag}
}

func (s sorter) strings(names []string) {
	c := collate.New(s.tag, collate.IgnoreCase)
	sort.SliceStable(names, func(i, j int) bool {
		return c.CompareString(names[i], names[j]) < 0
	})
}

func (s sorter) refs(items []ItemRef) {
	c := collate.New(s.tag, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(items[i].Name, items[j].Name) < 0
	})
}

package stockcount

import (
	"context"
	"time"

	"stockcount-backend/internal/models"
)

type ItemView struct {
	ProductID       uint    `json:"product_id"`
	Name            string  `json:"name"`
	Measure         string  `json:"measure"`
	CountedQuantity *string `json:"counted_quantity"`
	SystemQuantity  *string `json:"system_quantity,omitempty"`
	Counted         bool    `json:"counted"`
}

type CategoryView struct {
	Name     string     `json:"name"`
	Total    int        `json:"total"`
	Counted  int        `json:"counted"`
	Complete bool       `json:"complete"`
	Items    []ItemView `json:"items"`
}

// CountView is the privileged detail of a count.
type CountView struct {
	ID              uint                    `json:"id"`
	Date            string                  `json:"date"`
	Status          models.StockCountStatus `json:"status"`
	StatusLabel     string                  `json:"status_label"`
	UnitID          uint                    `json:"unit_id"`
	UnitName        string                  `json:"unit_name"`
	ResponsibleID   uint                    `json:"responsible_id"`
	ResponsibleName string                  `json:"responsible_name"`
	Notes           string                  `json:"notes"`
	PublicURL       string                  `json:"public_url,omitempty"`
	ReadyAt         *time.Time              `json:"ready_at"`
	CountingAt      *time.Time              `json:"counting_at"`
	FinalizedAt     *time.Time              `json:"finalized_at"`
	Order           OrderView               `json:"order"`
	TotalItems      int                     `json:"total_items"`
	CountedItems    int                     `json:"counted_items"`
	Categories      []CategoryView          `json:"categories"`
}

// PublicView is what a field device sees. It carries no numeric id.
type PublicView struct {
	Date            string                  `json:"date"`
	Status          models.StockCountStatus `json:"status"`
	StatusLabel     string                  `json:"status_label"`
	UnitName        string                  `json:"unit_name"`
	ResponsibleName string                  `json:"responsible_name"`
	Permissions     Permissions             `json:"permissions"`
	TotalItems      int                     `json:"total_items"`
	CountedItems    int                     `json:"counted_items"`
	Categories      []CategoryView          `json:"categories"`
	Disclosure      Disclosure              `json:"disclosure"`
	NextFocus       *uint                   `json:"next_focus,omitempty"`
}

// CountSummary is one row of the count list.
type CountSummary struct {
	ID              uint                    `json:"id"`
	Date            string                  `json:"date"`
	Status          models.StockCountStatus `json:"status"`
	StatusLabel     string                  `json:"status_label"`
	UnitID          uint                    `json:"unit_id"`
	UnitName        string                  `json:"unit_name"`
	ResponsibleID   uint                    `json:"responsible_id"`
	ResponsibleName string                  `json:"responsible_name"`
	Notes           string                  `json:"notes"`
}

func Summary(c models.StockCount) CountSummary {
	return CountSummary{
		ID:              c.ID,
		Date:            c.Date.Format("2006-01-02"),
		Status:          c.Status,
		StatusLabel:     StatusLabel(c.Status),
		UnitID:          c.UnitID,
		UnitName:        c.Unit.Name,
		ResponsibleID:   c.ResponsibleID,
		ResponsibleName: c.Responsible.Name,
		Notes:           c.Notes,
	}
}

func (s *Service) Detail(ctx context.Context, id uint) (*CountView, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, c)
	if err != nil {
		return nil, err
	}
	cats, total, counted := categoryViews(snap, true)
	v := &CountView{
		ID:              c.ID,
		Date:            c.Date.Format("2006-01-02"),
		Status:          c.Status,
		StatusLabel:     StatusLabel(c.Status),
		UnitID:          c.UnitID,
		UnitName:        c.Unit.Name,
		ResponsibleID:   c.ResponsibleID,
		ResponsibleName: c.Responsible.Name,
		Notes:           c.Notes,
		ReadyAt:         c.ReadyAt,
		CountingAt:      c.CountingAt,
		FinalizedAt:     c.FinalizedAt,
		Order:           orderView(snap),
		TotalItems:      total,
		CountedItems:    counted,
		Categories:      cats,
	}
	if c.PublicToken != nil {
		v.PublicURL = s.publicURL(*c.PublicToken)
	}
	return v, nil
}

// PublicDetail renders the count for a field device. override is the last
// manual expand/collapse the device reported; after is the product whose
// field just lost focus.
func (s *Service) PublicDetail(ctx context.Context, acc *Access, override *Override, after uint) (*PublicView, error) {
	if err := acc.Require(OpRead); err != nil {
		return nil, err
	}
	c := acc.Count
	snap, err := s.load(ctx, c)
	if err != nil {
		return nil, err
	}
	cats, total, counted := categoryViews(snap, false)
	d := Disclose(Progress(snap.ordering.Sequence, snap.items), override)
	v := &PublicView{
		Date:            c.Date.Format("2006-01-02"),
		Status:          c.Status,
		StatusLabel:     StatusLabel(c.Status),
		UnitName:        c.Unit.Name,
		ResponsibleName: c.Responsible.Name,
		Permissions:     acc.Permissions,
		TotalItems:      total,
		CountedItems:    counted,
		Categories:      cats,
		Disclosure:      d,
	}
	if after != 0 {
		if next, ok := NextFocus(snap.ordering.Sequence, d, after); ok {
			v.NextFocus = &next
		}
	}
	return v, nil
}

func categoryViews(snap *snapshot, withSystem bool) ([]CategoryView, int, int) {
	byProduct := make(map[uint]models.StockCountItem, len(snap.items))
	for _, it := range snap.items {
		byProduct[it.ProductID] = it
	}
	progress := Progress(snap.ordering.Sequence, snap.items)

	out := make([]CategoryView, 0, len(progress))
	total, counted := 0, 0
	for i, cat := range snap.ordering.Sequence.Categories {
		p := progress[i]
		cv := CategoryView{Name: cat, Total: p.Total, Counted: p.Counted, Complete: p.Complete, Items: []ItemView{}}
		for _, pid := range snap.ordering.Sequence.Products[cat] {
			it, ok := byProduct[pid]
			if !ok {
				continue
			}
			cv.Items = append(cv.Items, itemView(it, withSystem))
		}
		total += p.Total
		counted += p.Counted
		out = append(out, cv)
	}
	return out, total, counted
}

func itemView(it models.StockCountItem, withSystem bool) ItemView {
	v := ItemView{
		ProductID: it.ProductID,
		Name:      it.Product.Name,
		Measure:   it.Product.Measure,
		Counted:   IsCounted(it),
	}
	if it.CountedQuantity.Valid {
		q := it.CountedQuantity.Decimal.String()
		v.CountedQuantity = &q
	}
	if withSystem && it.SystemQuantity.Valid {
		q := it.SystemQuantity.Decimal.String()
		v.SystemQuantity = &q
	}
	return v
}

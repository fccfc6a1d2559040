package stockcount

import (
	"context"
	"fmt"

	"stockcount-backend/internal/models"
)

// snapshot is everything needed to render a count in walk order.
type snapshot struct {
	count    *models.StockCount
	items    []models.StockCountItem
	refs     []ItemRef
	ordering Ordering
}

func (s *Service) itemRefs(items []models.StockCountItem, r *CategoryResolver) []ItemRef {
	refs := make([]ItemRef, 0, len(items))
	for _, it := range items {
		refs = append(refs, ItemRef{
			ProductID: it.ProductID,
			Name:      it.Product.Name,
			Category:  r.Resolve(it.Product.Category),
		})
	}
	return refs
}

func (s *Service) resolver(ctx context.Context) (*CategoryResolver, error) {
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return NewCategoryResolver(cats), nil
}

func (s *Service) load(ctx context.Context, c *models.StockCount) (*snapshot, error) {
	r, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Items(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	refs := s.itemRefs(items, r)

	saved := Sequence{Categories: c.CategoryOrder, Products: c.ProductOrder}
	var inherited Sequence
	var previousID *uint
	if saved.Empty() {
		inherited, previousID, err = s.inheritedOrder(ctx, c, r)
		if err != nil {
			return nil, err
		}
	}
	return &snapshot{
		count:    c,
		items:    items,
		refs:     refs,
		ordering: ComputeOrdering(refs, saved, inherited, previousID, s.sorter),
	}, nil
}

// inheritedOrder is the walk of the responsible employee's most recent
// finalized count before this one, its items taken in creation order.
func (s *Service) inheritedOrder(ctx context.Context, c *models.StockCount, r *CategoryResolver) (Sequence, *uint, error) {
	prev, err := s.repo.PreviousFinalized(ctx, c.ResponsibleID, c.ID)
	if err != nil || prev == nil {
		return Sequence{}, nil, err
	}
	items, err := s.repo.Items(ctx, prev.ID)
	if err != nil {
		return Sequence{}, nil, err
	}
	refs := s.itemRefs(items, r)

	seq := Walk(refs)
	if seq.Empty() {
		return Sequence{}, nil, nil
	}
	id := prev.ID
	return seq, &id, nil
}

// OrderView is the wire form of an ordering: names, never ids.
type OrderView struct {
	Source               OrderSource         `json:"source"`
	CategoryOrder        []string            `json:"category_order"`
	ProductOrder         map[string][]string `json:"product_order"`
	PreviousStockCountID *uint               `json:"previous_stock_count_id,omitempty"`
}

func orderView(snap *snapshot) OrderView {
	cats := snap.ordering.Sequence.Categories
	if cats == nil {
		cats = []string{}
	}
	return OrderView{
		Source:               snap.ordering.Source,
		CategoryOrder:        cats,
		ProductOrder:         snap.ordering.Sequence.Names(snap.refs),
		PreviousStockCountID: snap.ordering.PreviousStockCountID,
	}
}

func (s *Service) Ordering(ctx context.Context, id uint) (*OrderView, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, c)
	if err != nil {
		return nil, err
	}
	v := orderView(snap)
	return &v, nil
}

// SaveOrder stores a manual reorder. Both columns are replaced in one write;
// concurrent saves resolve last-writer-wins.
func (s *Service) SaveOrder(ctx context.Context, actor Actor, id uint, categories []string, products map[string][]string) (*OrderView, error) {
	if len(categories) == 0 && len(products) == 0 {
		return nil, invalidf("category_order or product_order is required")
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.StockCountFinalized {
		return nil, conflictf("the order of a finalized count cannot change")
	}
	r, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	seq := SequenceFromNames(categories, products, s.itemRefs(items, r))

	ok, err := s.repo.SaveOrder(ctx, id, seq)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionFailure(ctx, id, "the order of a finalized count cannot change")
	}
	s.audit(actor, c, models.AuditActionReorder, "manual order saved",
		map[string]any{"category_order": c.CategoryOrder},
		map[string]any{"category_order": seq.Categories})

	return s.Ordering(ctx, id)
}

// PreviousOrder describes the order a count would inherit.
type PreviousOrder struct {
	HasOrder             bool                `json:"has_order"`
	Categories           []string            `json:"categories"`
	Products             map[string][]string `json:"products"`
	PreviousStockCountID *uint               `json:"previous_stock_count_id"`
}

func (s *Service) PreviousOrderHint(ctx context.Context, id uint) (*PreviousOrder, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}
	seq, prevID, err := s.inheritedOrder(ctx, c, r)
	if err != nil {
		return nil, err
	}
	hint := &PreviousOrder{Categories: []string{}, Products: map[string][]string{}}
	if prevID == nil {
		return hint, nil
	}
	prevItems, err := s.repo.Items(ctx, *prevID)
	if err != nil {
		return nil, fmt.Errorf("previous order: %w", err)
	}
	hint.HasOrder = true
	hint.Categories = seq.Categories
	hint.Products = seq.Names(s.itemRefs(prevItems, r))
	hint.PreviousStockCountID = prevID
	return hint, nil
}

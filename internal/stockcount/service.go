package stockcount

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"stockcount-backend/internal/audit"
	"stockcount-backend/internal/metrics"
	"stockcount-backend/internal/models"
	"stockcount-backend/internal/notify"

	"gorm.io/gorm"
)

// EntityType is how counts appear in the audit log.
const EntityType = "stock_count"

// ProductSource lists the products a unit carries.
type ProductSource interface {
	ProductsForUnit(ctx context.Context, unitID uint) ([]models.Product, error)
}

// Actor is whoever performs an operation. UserID 0 means the public link.
type Actor struct {
	UserID uint
	Name   string
}

var publicActor = Actor{Name: "public link"}

type Options struct {
	Notifier      notify.Notifier
	Cache         TokenCache
	Products      ProductSource
	PublicURL     func(token string) string
	CollationLang string
	Now           func() time.Time
}

type Service struct {
	db        *gorm.DB
	repo      *Repository
	gateway   *Gateway
	notifier  notify.Notifier
	products  ProductSource
	publicURL func(string) string
	sorter    sorter
	now       func() time.Time
}

func NewService(db *gorm.DB, opts Options) *Service {
	repo := NewRepository(db)
	s := &Service{
		db:        db,
		repo:      repo,
		gateway:   NewGateway(repo, opts.Cache),
		notifier:  opts.Notifier,
		products:  opts.Products,
		publicURL: opts.PublicURL,
		sorter:    newSorter(opts.CollationLang),
		now:       opts.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.LogNotifier{}
	}
	if s.publicURL == nil {
		s.publicURL = func(token string) string { return "/count/" + token }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Gateway() *Gateway { return s.gateway }

type CreateInput struct {
	Date          time.Time
	ResponsibleID uint
	UnitID        uint
	Notes         string
}

func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*models.StockCount, error) {
	if in.Date.IsZero() {
		return nil, invalidf("date is required")
	}
	if in.ResponsibleID == 0 || in.UnitID == 0 {
		return nil, invalidf("responsible_id and unit_id are required")
	}
	if err := s.checkReferences(ctx, &in.ResponsibleID, &in.UnitID); err != nil {
		return nil, err
	}

	c := &models.StockCount{
		Date:          in.Date,
		ResponsibleID: in.ResponsibleID,
		UnitID:        in.UnitID,
		Status:        models.StockCountDraft,
		Notes:         strings.TrimSpace(in.Notes),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.audit(actor, c, models.AuditActionCreate, "stock count created", nil, c)
	return s.repo.Get(ctx, c.ID)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.StockCount, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]models.StockCount, error) {
	return s.repo.List(ctx, f)
}

// HeaderInput carries optional header changes; nil fields stay as they are.
type HeaderInput struct {
	Date          *time.Time
	ResponsibleID *uint
	UnitID        *uint
	Notes         *string
}

// UpdateHeader edits date and notes until the count is finalized. Changing the
// unit or the responsible employee is a destructive edit and needs a draft.
func (s *Service) UpdateHeader(ctx context.Context, actor Actor, id uint, in HeaderInput) (*models.StockCount, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.StockCountFinalized {
		return nil, conflictf("finalized counts cannot be edited")
	}

	updates := map[string]any{}
	if in.Date != nil {
		if in.Date.IsZero() {
			return nil, invalidf("date is required")
		}
		updates["date"] = *in.Date
	}
	if in.Notes != nil {
		updates["notes"] = strings.TrimSpace(*in.Notes)
	}
	unitChanged := in.UnitID != nil && *in.UnitID != c.UnitID
	if unitChanged || (in.ResponsibleID != nil && *in.ResponsibleID != c.ResponsibleID) {
		if c.Status != models.StockCountDraft {
			return nil, conflictf("unit and responsible can only change while the count is a draft")
		}
		if err := s.checkReferences(ctx, in.ResponsibleID, in.UnitID); err != nil {
			return nil, err
		}
		if in.UnitID != nil {
			updates["unit_id"] = *in.UnitID
		}
		if in.ResponsibleID != nil {
			updates["responsible_id"] = *in.ResponsibleID
		}
	}
	if len(updates) == 0 {
		return c, nil
	}
	updates["updated_at"] = s.now()

	var ok bool
	if unitChanged {
		var products []models.Product
		if s.products != nil {
			if products, err = s.products.ProductsForUnit(ctx, *in.UnitID); err != nil {
				return nil, err
			}
		}
		ok, err = s.repo.MoveDraft(ctx, id, updates, products)
	} else {
		ok, err = s.repo.UpdateWhereStatus(ctx, id, c.Status, updates)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionFailure(ctx, id, "count changed status while being edited")
	}
	after, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit(actor, after, models.AuditActionUpdate, "stock count header updated", c, after)
	return after, nil
}

func (s *Service) Delete(ctx context.Context, actor Actor, id uint) error {
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.repo.DeleteDraft(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionFailure(ctx, id, "only draft counts can be deleted")
	}
	s.audit(actor, before, models.AuditActionDelete, "stock count deleted", before, nil)
	return nil
}

// Initialize creates a placeholder row for every product the unit carries.
// Products that already have a row are skipped, so it can be called again
// after the unit's assortment grows.
func (s *Service) Initialize(ctx context.Context, actor Actor, id uint) (int64, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if c.Status != models.StockCountDraft {
		return 0, conflictf("items can only be initialized while the count is a draft")
	}
	if s.products == nil {
		return 0, errors.New("no product source configured")
	}
	products, err := s.products.ProductsForUnit(ctx, c.UnitID)
	if err != nil {
		return 0, err
	}

	var created int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockCount(tx, id)
		if err != nil {
			return err
		}
		if locked.Status != models.StockCountDraft {
			return conflictf("items can only be initialized while the count is a draft")
		}
		created, err = createPlaceholders(tx, id, products)
		return err
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.audit(actor, c, models.AuditActionUpdate, fmt.Sprintf("%d placeholder items created", created), nil, nil)
	}
	return created, nil
}

type CloseResult struct {
	Count     *models.StockCount
	PublicURL string
	Token     string
	Notified  bool
	Warning   string
}

// Close hands a draft to the field: it issues the public token and sends the
// link to the responsible employee. Notification problems come back as a
// warning; the transition stands either way.
func (s *Service) Close(ctx context.Context, actor Actor, id uint) (*CloseResult, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	ok, err := s.repo.Transition(ctx, id, models.StockCountDraft, models.StockCountReady, map[string]any{
		"public_token": token,
		"ready_at":     now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		s.countTransition(models.StockCountDraft, models.StockCountReady, "conflict")
		return nil, s.transitionFailure(ctx, id, "count is not a draft")
	}
	s.countTransition(models.StockCountDraft, models.StockCountReady, "ok")

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.gateway.remember(ctx, token, c.ID)

	res := &CloseResult{Count: c, PublicURL: s.publicURL(token), Token: token}
	phone := strings.TrimSpace(c.Responsible.Phone)
	switch {
	case phone == "":
		res.Warning = "responsible employee has no phone number, the link was not sent"
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
	case s.notifier.Notify(ctx, phone, closeMessage(c, res.PublicURL)):
		res.Notified = true
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	default:
		res.Warning = "the link could not be delivered to the responsible employee"
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
	}

	s.audit(actor, c, models.AuditActionTransition, "closed for counting", map[string]any{"status": models.StockCountDraft}, map[string]any{"status": c.Status, "notified": res.Notified})
	return res, nil
}

func closeMessage(c *models.StockCount, url string) string {
	return fmt.Sprintf("Stock count for %s on %s is ready. Open %s to start counting.",
		c.Unit.Name, c.Date.Format("2006-01-02"), url)
}

// Begin starts counting through the public link.
func (s *Service) Begin(ctx context.Context, acc *Access) (*models.StockCount, error) {
	if err := acc.Require(OpBegin); err != nil {
		s.countTransition(models.StockCountReady, models.StockCountCounting, "conflict")
		return nil, err
	}
	return s.transition(ctx, publicActor, acc.Count.ID, models.StockCountReady, models.StockCountCounting, "counting_at", "counting started")
}

// Finish closes the count from the public link.
func (s *Service) Finish(ctx context.Context, acc *Access) (*models.StockCount, error) {
	if err := acc.Require(OpFinish); err != nil {
		s.countTransition(models.StockCountCounting, models.StockCountFinalized, "conflict")
		return nil, err
	}
	return s.transition(ctx, publicActor, acc.Count.ID, models.StockCountCounting, models.StockCountFinalized, "finalized_at", "counting finished")
}

// Finalize is the privileged counterpart of Finish.
func (s *Service) Finalize(ctx context.Context, actor Actor, id uint) (*models.StockCount, error) {
	return s.transition(ctx, actor, id, models.StockCountCounting, models.StockCountFinalized, "finalized_at", "finalized")
}

func (s *Service) transition(ctx context.Context, actor Actor, id uint, from, to models.StockCountStatus, stampColumn, description string) (*models.StockCount, error) {
	ok, err := s.repo.Transition(ctx, id, from, to, map[string]any{stampColumn: s.now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		s.countTransition(from, to, "conflict")
		return nil, s.transitionFailure(ctx, id, fmt.Sprintf("count is not %s", from))
	}
	s.countTransition(from, to, "ok")

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit(actor, c, models.AuditActionTransition, description, map[string]any{"status": from}, map[string]any{"status": to})
	return c, nil
}

// transitionFailure explains a conditional update that touched no row.
func (s *Service) transitionFailure(ctx context.Context, id uint, reason string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return conflictf("%s (status is %s)", reason, c.Status)
}

func (s *Service) countTransition(from, to models.StockCountStatus, outcome string) {
	metrics.TransitionsTotal.WithLabelValues(string(from), string(to), outcome).Inc()
}

// SaveItems is the privileged quantity entry. It works while the count is a
// draft or being counted; finalized counts go through SaveCorrections.
func (s *Service) SaveItems(ctx context.Context, actor Actor, id uint, inputs []QuantityInput) (*UpsertResult, error) {
	res, _, c, err := s.writeItems(ctx, id, inputs, "admin", func(st models.StockCountStatus) error {
		switch st {
		case models.StockCountDraft, models.StockCountCounting:
			return nil
		case models.StockCountFinalized:
			return conflictf("count is finalized, submit corrections instead")
		default:
			return conflictf("count is handed to the field, begin counting first")
		}
	})
	if err != nil {
		return nil, err
	}
	if len(res.Accepted) > 0 {
		s.audit(actor, c, models.AuditActionCount, fmt.Sprintf("%d quantities saved", len(res.Accepted)), nil, res.Accepted)
	}
	return res, nil
}

// SaveCorrections changes quantities of a finalized count without touching
// its status. Each batch is recorded with the quantities it replaced.
func (s *Service) SaveCorrections(ctx context.Context, actor Actor, id uint, inputs []QuantityInput) (*UpsertResult, error) {
	res, before, c, err := s.writeItems(ctx, id, inputs, "correction", func(st models.StockCountStatus) error {
		if st != models.StockCountFinalized {
			return conflictf("corrections are only accepted for finalized counts (status is %s)", st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(res.Accepted) > 0 {
		after := make(map[uint]string, len(res.Accepted))
		for _, in := range inputs {
			if q, ok := ParseQuantity(string(in.CountedQuantity)); ok {
				after[in.ProductID] = q.String()
			}
		}
		for pid := range after {
			if !containsUint(res.Accepted, pid) {
				delete(after, pid)
			}
		}
		s.audit(actor, c, models.AuditActionCorrection, fmt.Sprintf("%d quantities corrected after finalization", len(res.Accepted)), before, after)
	}
	return res, nil
}

// SubmitPublicItems is the field device path. Any number of devices may send
// single items or batches; each tuple is last-writer-wins on its own row.
func (s *Service) SubmitPublicItems(ctx context.Context, acc *Access, inputs []QuantityInput) (*UpsertResult, error) {
	if err := acc.Require(OpWriteItems); err != nil {
		return nil, err
	}
	res, _, _, err := s.writeItems(ctx, acc.Count.ID, inputs, "public", func(st models.StockCountStatus) error {
		if st != models.StockCountCounting {
			return conflictf("items can only be submitted while counting (status is %s)", st)
		}
		return nil
	})
	return res, err
}

// writeItems runs one batch under the count's row lock. Malformed tuples and
// products outside the count are reported as skipped instead of failing the batch.
func (s *Service) writeItems(ctx context.Context, id uint, inputs []QuantityInput, channel string, allowed func(models.StockCountStatus) error) (*UpsertResult, map[uint]string, *models.StockCount, error) {
	if len(inputs) == 0 {
		return nil, nil, nil, invalidf("items are required")
	}
	parsed, skipped := parseBatch(inputs)
	res := &UpsertResult{Accepted: []uint{}, Skipped: skipped}
	if res.Skipped == nil {
		res.Skipped = []SkippedInput{}
	}
	before := map[uint]string{}

	var count *models.StockCount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := lockCount(tx, id)
		if err != nil {
			return err
		}
		if err := allowed(c.Status); err != nil {
			return err
		}
		count = c

		ids := make([]uint, 0, len(parsed))
		for _, p := range parsed {
			ids = append(ids, p.ProductID)
		}
		// Operators may add a product the unit carries before initialization;
		// every other path only touches rows the count already has.
		known, err := countableProducts(tx, c, ids, channel == "admin")
		if err != nil {
			return err
		}

		if channel == "correction" && len(ids) > 0 {
			var prev []models.StockCountItem
			if err := tx.Where("stock_count_id = ? AND product_id IN ?", id, ids).Find(&prev).Error; err != nil {
				return fmt.Errorf("load items before correction: %w", err)
			}
			for _, it := range prev {
				if it.CountedQuantity.Valid {
					before[it.ProductID] = it.CountedQuantity.Decimal.String()
				}
			}
		}

		now := s.now()
		for _, p := range parsed {
			if !known[p.ProductID] {
				res.Skipped = append(res.Skipped, SkippedInput{ProductID: p.ProductID, Reason: "not part of this count"})
				continue
			}
			if err := upsertItem(tx, id, p, now); err != nil {
				return fmt.Errorf("save quantity of product %d: %w", p.ProductID, err)
			}
			res.Accepted = append(res.Accepted, p.ProductID)
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	metrics.ItemWritesTotal.WithLabelValues(channel, "accepted").Add(float64(len(res.Accepted)))
	metrics.ItemWritesTotal.WithLabelValues(channel, "skipped").Add(float64(len(res.Skipped)))
	return res, before, count, nil
}

// DeleteItem removes one product row from a draft.
func (s *Service) DeleteItem(ctx context.Context, actor Actor, id, productID uint) error {
	var c *models.StockCount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockCount(tx, id)
		if err != nil {
			return err
		}
		if locked.Status != models.StockCountDraft {
			return conflictf("items can only be removed while the count is a draft (status is %s)", locked.Status)
		}
		c = locked
		res := tx.Where("stock_count_id = ? AND product_id = ?", id, productID).Delete(&models.StockCountItem{})
		if res.Error != nil {
			return fmt.Errorf("delete item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFoundf("product %d is not part of count %d", productID, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(actor, c, models.AuditActionDelete, fmt.Sprintf("item for product %d removed", productID), map[string]any{"product_id": productID}, nil)
	return nil
}

func (s *Service) checkReferences(ctx context.Context, responsibleID, unitID *uint) error {
	if responsibleID != nil {
		ok, err := s.repo.employeeExists(ctx, *responsibleID)
		if err != nil {
			return fmt.Errorf("check employee: %w", err)
		}
		if !ok {
			return invalidf("employee %d does not exist", *responsibleID)
		}
	}
	if unitID != nil {
		ok, err := s.repo.unitExists(ctx, *unitID)
		if err != nil {
			return fmt.Errorf("check unit: %w", err)
		}
		if !ok {
			return invalidf("unit %d does not exist", *unitID)
		}
	}
	return nil
}

// audit never fails the operation it describes.
func (s *Service) audit(actor Actor, c *models.StockCount, action models.AuditAction, description string, before, after any) {
	if c == nil {
		return
	}
	unitID := c.UnitID
	err := audit.WriteLog(s.db, audit.LogOptions{
		UnitID:      &unitID,
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  EntityType,
		EntityID:    c.ID,
		Action:      action,
		Description: description,
		Before:      before,
		After:       after,
	})
	if err != nil {
		log.Printf("[WARN] stock count %d: %v", c.ID, err)
	}
}

func containsUint(list []uint, v uint) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

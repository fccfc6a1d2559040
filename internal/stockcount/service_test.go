package stockcount

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"stockcount-backend/internal/database"
	"stockcount-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var admin = Actor{UserID: 1, Name: "Admin"}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (n *recordingNotifier) Notify(_ context.Context, phone, message string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, phone+" "+message)
	return !n.fail
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// productLister avoids importing the catalog package from these tests.
type productLister struct{ db *gorm.DB }

func (p productLister) ProductsForUnit(ctx context.Context, unitID uint) ([]models.Product, error) {
	var out []models.Product
	err := p.db.WithContext(ctx).
		Joins("JOIN product_units pu ON pu.product_id = products.id").
		Where("pu.unit_id = ? AND products.active = ?", unitID, true).
		Order("products.id").Find(&out).Error
	return out, err
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	notifier *recordingNotifier
	unit     models.Unit
	emp      models.Employee
	bar      models.Category
	gin      models.Product
	tonic    models.Product
	knife    models.Product
	absinthe models.Product
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "counts.db") + "?_busy_timeout=5000"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)
	f := &fixture{db: db, notifier: &recordingNotifier{}}

	f.unit = models.Unit{Name: "Main bar"}
	require.NoError(t, db.Create(&f.unit).Error)
	f.emp = models.Employee{Name: "Eva", Phone: "+15550100", Active: true}
	require.NoError(t, db.Create(&f.emp).Error)

	f.bar = models.Category{Name: "Bar"}
	require.NoError(t, db.Create(&f.bar).Error)
	require.NoError(t, db.Create(&models.Category{Name: "Kitchen"}).Error)

	barID := strconv.FormatUint(uint64(f.bar.ID), 10)
	f.gin = models.Product{Name: "Gin", Category: barID, Measure: "bottle", Active: true}
	f.tonic = models.Product{Name: "Tonic", Category: barID, Measure: "can", Active: true}
	f.knife = models.Product{Name: "Knife", Category: "Kitchen", Measure: "pcs", Active: true}
	f.absinthe = models.Product{Name: "Absinthe", Category: barID, Measure: "bottle", Active: true}
	for _, p := range []*models.Product{&f.gin, &f.tonic, &f.knife, &f.absinthe} {
		require.NoError(t, db.Create(p).Error)
	}
	for _, p := range []models.Product{f.gin, f.tonic, f.knife} {
		require.NoError(t, db.Create(&models.ProductUnit{UnitID: f.unit.ID, ProductID: p.ID}).Error)
	}

	f.svc = NewService(db, Options{
		Notifier:  f.notifier,
		Products:  productLister{db: db},
		PublicURL: func(token string) string { return "https://count.example.com/count/" + token },
	})
	return f
}

func (f *fixture) draft(t *testing.T) *models.StockCount {
	t.Helper()
	c, err := f.svc.Create(context.Background(), admin, CreateInput{
		Date:          time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ResponsibleID: f.emp.ID,
		UnitID:        f.unit.ID,
	})
	require.NoError(t, err)
	return c
}

// counting returns an initialized count that a field device has begun.
func (f *fixture) counting(t *testing.T) (*models.StockCount, string) {
	t.Helper()
	ctx := context.Background()
	c := f.draft(t)
	_, err := f.svc.Initialize(ctx, admin, c.ID)
	require.NoError(t, err)
	res, err := f.svc.Close(ctx, admin, c.ID)
	require.NoError(t, err)
	acc, err := f.svc.Gateway().Resolve(ctx, res.Token)
	require.NoError(t, err)
	_, err = f.svc.Begin(ctx, acc)
	require.NoError(t, err)
	return c, res.Token
}

func (f *fixture) access(t *testing.T, token string) *Access {
	t.Helper()
	acc, err := f.svc.Gateway().Resolve(context.Background(), token)
	require.NoError(t, err)
	return acc
}

func (f *fixture) item(t *testing.T, countID, productID uint) models.StockCountItem {
	t.Helper()
	var it models.StockCountItem
	require.NoError(t, f.db.Where("stock_count_id = ? AND product_id = ?", countID, productID).First(&it).Error)
	return it
}

func qty(productID uint, raw string) QuantityInput {
	return QuantityInput{ProductID: productID, CountedQuantity: RawQuantity(raw)}
}

func TestCreateValidatesReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Create(ctx, admin, CreateInput{ResponsibleID: f.emp.ID, UnitID: f.unit.ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Create(ctx, admin, CreateInput{Date: date, ResponsibleID: 999, UnitID: f.unit.ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Create(ctx, admin, CreateInput{Date: date, ResponsibleID: f.emp.ID, UnitID: 999})
	assert.ErrorIs(t, err, ErrValidation)

	c := f.draft(t)
	assert.Equal(t, models.StockCountDraft, c.Status)
	assert.Nil(t, c.PublicToken)
	assert.Equal(t, "Eva", c.Responsible.Name)
}

func TestInitializeCreatesPlaceholdersOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.draft(t)

	n, err := f.svc.Initialize(ctx, admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = f.svc.Initialize(ctx, admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	it := f.item(t, c.ID, f.gin.ID)
	assert.True(t, it.CountedQuantity.Valid)
	assert.True(t, it.CountedQuantity.Decimal.IsZero())
	assert.False(t, IsCounted(it), "placeholder must not count as counted")
}

func TestCloseIssuesTokenAndRetryConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.draft(t)

	res, err := f.svc.Close(ctx, admin, c.ID)
	require.NoError(t, err)
	assert.Len(t, res.Token, 43)
	assert.Equal(t, "https://count.example.com/count/"+res.Token, res.PublicURL)
	assert.True(t, res.Notified)
	assert.Empty(t, res.Warning)
	assert.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.calls[0], res.PublicURL)

	_, err = f.svc.Close(ctx, admin, c.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.notifier.count(), "a retried close must not notify again")

	after, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, after.PublicToken)
	assert.Equal(t, res.Token, *after.PublicToken)
	assert.Equal(t, models.StockCountReady, after.Status)
	assert.NotNil(t, after.ReadyAt)

	_, err = f.svc.Close(ctx, admin, 4242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloseReportsNotifierProblemsAsWarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.notifier.fail = true
	c := f.draft(t)
	res, err := f.svc.Close(ctx, admin, c.ID)
	require.NoError(t, err)
	assert.False(t, res.Notified)
	assert.NotEmpty(t, res.Warning)
	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StockCountReady, got.Status, "failed delivery never rolls back")

	require.NoError(t, f.db.Model(&f.emp).Update("phone", "").Error)
	c2 := f.draft(t)
	res, err = f.svc.Close(ctx, admin, c2.ID)
	require.NoError(t, err)
	assert.False(t, res.Notified)
	assert.Contains(t, res.Warning, "phone")
}

func TestTokenStaysThroughLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, token := f.counting(t)

	_, err := f.svc.Finalize(ctx, admin, c.ID)
	require.NoError(t, err)
	_, err = f.svc.SaveCorrections(ctx, admin, c.ID, []QuantityInput{qty(f.gin.ID, "3")})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PublicToken)
	assert.Equal(t, token, *got.PublicToken)
	assert.Equal(t, models.StockCountFinalized, got.Status)
}

func TestBeginErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Gateway().Resolve(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrNotFound)

	unknown, err := NewToken()
	require.NoError(t, err)
	_, err = f.svc.Gateway().Resolve(ctx, unknown)
	assert.ErrorIs(t, err, ErrNotFound)

	_, token := f.counting(t)
	_, err = f.svc.Begin(ctx, f.access(t, token))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestConcurrentBeginTransitionsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.draft(t)
	res, err := f.svc.Close(ctx, admin, c.ID)
	require.NoError(t, err)

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, err := f.svc.Gateway().Resolve(ctx, res.Token)
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = f.svc.Begin(ctx, acc)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.notifier.count())

	var transitions int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).
		Where("entity_id = ? AND description = ?", c.ID, "counting started").
		Count(&transitions).Error)
	assert.Equal(t, int64(1), transitions)
}

func TestPublicUpsertNormalizesComma(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, token := f.counting(t)

	res, err := f.svc.SubmitPublicItems(ctx, f.access(t, token), []QuantityInput{qty(f.gin.ID, "12,5")})
	require.NoError(t, err)
	assert.Equal(t, []uint{f.gin.ID}, res.Accepted)

	it := f.item(t, c.ID, f.gin.ID)
	assert.True(t, it.CountedQuantity.Decimal.Equal(decimal.RequireFromString("12.5")), it.CountedQuantity.Decimal.String())
	assert.True(t, it.Touched)
	assert.NotNil(t, it.CountedAt)

	// The same key again overwrites in place.
	_, err = f.svc.SubmitPublicItems(ctx, f.access(t, token), []QuantityInput{qty(f.gin.ID, "7")})
	require.NoError(t, err)
	var rows int64
	require.NoError(t, f.db.Model(&models.StockCountItem{}).
		Where("stock_count_id = ? AND product_id = ?", c.ID, f.gin.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
	assert.True(t, f.item(t, c.ID, f.gin.ID).CountedQuantity.Decimal.Equal(decimal.NewFromInt(7)))
}

func TestOversizedQuantityIsSkippedNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, token := f.counting(t)

	res, err := f.svc.SubmitPublicItems(ctx, f.access(t, token), []QuantityInput{
		qty(f.gin.ID, "123456789012345678.12345"),
		qty(f.tonic.ID, "2.5"),
		qty(f.knife.ID, "1.0005"),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{f.tonic.ID}, res.Accepted)
	assert.Len(t, res.Skipped, 2)
	assert.False(t, IsCounted(f.item(t, c.ID, f.gin.ID)))
	assert.False(t, IsCounted(f.item(t, c.ID, f.knife.ID)))
}

func TestEmptyQuantityNeverStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, token := f.counting(t)

	_, err := f.svc.SubmitPublicItems(ctx, f.access(t, token), []QuantityInput{qty(f.gin.ID, "4")})
	require.NoError(t, err)

	res, err := f.svc.SubmitPublicItems(ctx, f.access(t, token), []QuantityInput{
		qty(f.gin.ID, ""),
		qty(f.tonic.ID, "  "),
		qty(f.absinthe.ID, ""),
		qty(f.knife.ID, "abc"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
	assert.Len(t, res.Skipped, 4)

	assert.True(t, f.item(t, c.ID, f.gin.ID).CountedQuantity.Decimal.Equal(decimal.NewFromInt(4)), "empty input must not overwrite")
	assert.False(t, IsCounted(f.item(t, c.ID, f.tonic.ID)))

	var n int64
	require.NoError(t, f.db.Model(&models.StockCountItem{}).
		Where("stock_count_id = ? AND product_id = ?", c.ID, f.absinthe.ID).Count(&n).Error)
	assert.Zero(t, n, "empty input must not create a row")
}

func TestUnknownProductIsSkipped(t *testing.T) {
	f := newFixture(t)
	_, token := f.counting(t)

	res, err := f.svc.SubmitPublicItems(context.Background(), f.access(t, token), []QuantityInput{
		qty(f.gin.ID, "1"),
		qty(9999, "1"),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{f.gin.ID}, res.Accepted)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, uint(9999), res.Skipped[0].ProductID)
	assert.Equal(t, "not part of this count", res.Skipped[0].Reason)
}

func TestProductsOutsideTheCountAreSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, token := f.counting(t)

	_, err := f.svc.SubmitPublicItems(ctx, f.access(t, token), []QuantityInput{
		qty(f.gin.ID, "2"),
		qty(f.tonic.ID, "3"),
	})
	require.NoError(t, err)

	// Absinthe exists in the catalog but the unit does not carry it.
	res, err := f.svc.SubmitPublicItems(ctx, f.access(t, token), []QuantityInput{qty(f.absinthe.ID, "1")})
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, f.absinthe.ID, res.Skipped[0].ProductID)
	assert.Equal(t, "not part of this count", res.Skipped[0].Reason)

	res, err = f.svc.SaveItems(ctx, admin, c.ID, []QuantityInput{qty(f.absinthe.ID, "1")})
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)

	var rows int64
	require.NoError(t, f.db.Model(&models.StockCountItem{}).Where("stock_count_id = ?", c.ID).Count(&rows).Error)
	assert.Equal(t, int64(3), rows)

	view, err := f.svc.PublicDetail(ctx, f.access(t, token), nil, 0)
	require.NoError(t, err)
	bar := categoryNamed(t, view.Categories, "Bar")
	assert.Equal(t, 2, bar.Total)
	assert.True(t, bar.Complete)

	_, err = f.svc.Finish(ctx, f.access(t, token))
	require.NoError(t, err)
	res, err = f.svc.SaveCorrections(ctx, admin, c.ID, []QuantityInput{qty(f.absinthe.ID, "1")})
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
}

func TestOperatorCanAddUnitProductsToDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.draft(t)

	res, err := f.svc.SaveItems(ctx, admin, d.ID, []QuantityInput{
		qty(f.knife.ID, "4"),
		qty(f.absinthe.ID, "1"),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{f.knife.ID}, res.Accepted)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, f.absinthe.ID, res.Skipped[0].ProductID)
}

func TestPublicWritesOutsideCountingConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.draft(t)
	res, err := f.svc.Close(ctx, admin, c.ID)
	require.NoError(t, err)

	_, err = f.svc.SubmitPublicItems(ctx, f.access(t, res.Token), []QuantityInput{qty(f.gin.ID, "1")})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.svc.Finish(ctx, f.access(t, res.Token))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestStaleAccessCannotWriteAfterFinish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.counting(t)

	stale := f.access(t, token)
	_, err := f.svc.Finish(ctx, f.access(t, token))
	require.NoError(t, err)

	_, err = f.svc.SubmitPublicItems(ctx, stale, []QuantityInput{qty(f.gin.ID, "1")})
	assert.ErrorIs(t, err, ErrConflict, "status is re-checked under the row lock")
}

func TestPrivilegedItemsByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.draft(t)
	_, err := f.svc.SaveItems(ctx, admin, d.ID, []QuantityInput{qty(f.gin.ID, "2")})
	require.NoError(t, err)

	r := f.draft(t)
	_, err = f.svc.Close(ctx, admin, r.ID)
	require.NoError(t, err)
	_, err = f.svc.SaveItems(ctx, admin, r.ID, []QuantityInput{qty(f.gin.ID, "2")})
	assert.ErrorIs(t, err, ErrConflict)

	c, _ := f.counting(t)
	_, err = f.svc.SaveItems(ctx, admin, c.ID, []QuantityInput{qty(f.gin.ID, "2")})
	require.NoError(t, err)

	_, err = f.svc.SaveItems(ctx, admin, c.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Finalize(ctx, admin, c.ID)
	require.NoError(t, err)
	_, err = f.svc.SaveItems(ctx, admin, c.ID, []QuantityInput{qty(f.gin.ID, "2")})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCorrectionsOnlyAfterFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, token := f.counting(t)

	_, err := f.svc.SubmitPublicItems(ctx, f.access(t, token), []QuantityInput{qty(f.gin.ID, "5")})
	require.NoError(t, err)

	_, err = f.svc.SaveCorrections(ctx, admin, c.ID, []QuantityInput{qty(f.gin.ID, "6")})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Finalize(ctx, admin, c.ID)
	require.NoError(t, err)
	_, err = f.svc.Finalize(ctx, admin, c.ID)
	assert.ErrorIs(t, err, ErrConflict)

	res, err := f.svc.SaveCorrections(ctx, admin, c.ID, []QuantityInput{qty(f.gin.ID, "6")})
	require.NoError(t, err)
	assert.Equal(t, []uint{f.gin.ID}, res.Accepted)
	assert.True(t, f.item(t, c.ID, f.gin.ID).CountedQuantity.Decimal.Equal(decimal.NewFromInt(6)))

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StockCountFinalized, got.Status)

	var logs []models.AuditLog
	require.NoError(t, f.db.Where("entity_id = ? AND action = ?", c.ID, models.AuditActionCorrection).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].BeforeData, `"5"`)
	assert.Contains(t, logs[0].AfterData, `"6"`)
}

func TestDestructiveEditsOnlyInDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.draft(t)
	_, err := f.svc.Initialize(ctx, admin, d.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteItem(ctx, admin, d.ID, f.knife.ID))
	assert.ErrorIs(t, f.svc.DeleteItem(ctx, admin, d.ID, f.knife.ID), ErrNotFound)

	other := models.Unit{Name: "Terrace"}
	require.NoError(t, f.db.Create(&other).Error)
	updated, err := f.svc.UpdateHeader(ctx, admin, d.ID, HeaderInput{UnitID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, other.ID, updated.UnitID)

	c, _ := f.counting(t)
	assert.ErrorIs(t, f.svc.DeleteItem(ctx, admin, c.ID, f.gin.ID), ErrConflict)
	_, err = f.svc.UpdateHeader(ctx, admin, c.ID, HeaderInput{UnitID: &other.ID})
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, f.svc.Delete(ctx, admin, c.ID), ErrConflict)

	notes := "second shelf recounted"
	updated, err = f.svc.UpdateHeader(ctx, admin, c.ID, HeaderInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)

	require.NoError(t, f.svc.Delete(ctx, admin, d.ID))
	_, err = f.svc.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	var items int64
	require.NoError(t, f.db.Model(&models.StockCountItem{}).Where("stock_count_id = ?", d.ID).Count(&items).Error)
	assert.Zero(t, items)
}

func TestUnitChangeSwapsPlaceholders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	terrace := models.Unit{Name: "Terrace"}
	require.NoError(t, f.db.Create(&terrace).Error)
	for _, p := range []models.Product{f.knife, f.absinthe} {
		require.NoError(t, f.db.Create(&models.ProductUnit{UnitID: terrace.ID, ProductID: p.ID}).Error)
	}

	d := f.draft(t)
	_, err := f.svc.Initialize(ctx, admin, d.ID)
	require.NoError(t, err)
	_, err = f.svc.SaveItems(ctx, admin, d.ID, []QuantityInput{qty(f.gin.ID, "2")})
	require.NoError(t, err)

	_, err = f.svc.UpdateHeader(ctx, admin, d.ID, HeaderInput{UnitID: &terrace.ID})
	require.NoError(t, err)

	var products []uint
	require.NoError(t, f.db.Model(&models.StockCountItem{}).
		Where("stock_count_id = ?", d.ID).Order("product_id").Pluck("product_id", &products).Error)
	assert.Equal(t, []uint{f.gin.ID, f.knife.ID, f.absinthe.ID}, products, "entered quantities stay, untouched placeholders follow the unit")
	assert.True(t, f.item(t, d.ID, f.gin.ID).CountedQuantity.Decimal.Equal(decimal.NewFromInt(2)))

	// A draft that was never initialized gets no rows from a unit change.
	fresh := f.draft(t)
	_, err = f.svc.UpdateHeader(ctx, admin, fresh.ID, HeaderInput{UnitID: &terrace.ID})
	require.NoError(t, err)
	var n int64
	require.NoError(t, f.db.Model(&models.StockCountItem{}).Where("stock_count_id = ?", fresh.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestFinalizedOrderIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, token := f.counting(t)

	_, err := f.svc.SaveOrder(ctx, admin, c.ID, []string{"Kitchen", "Bar"}, nil)
	require.NoError(t, err, "a count being counted can still be reordered")

	_, err = f.svc.Finish(ctx, f.access(t, token))
	require.NoError(t, err)

	_, err = f.svc.SaveOrder(ctx, admin, c.ID, []string{"Bar", "Kitchen"}, nil)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kitchen", "Bar"}, got.CategoryOrder)
	assert.Equal(t, models.StockCountFinalized, got.Status)

	_, err = f.svc.SaveOrder(ctx, admin, 4242, []string{"Bar"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInheritanceWalksPreviousItemsInCreationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The previous count was reordered while counting; the next count still
	// inherits the walk of its items.
	a, token := f.counting(t)
	_, err := f.svc.SaveOrder(ctx, admin, a.ID, []string{"Kitchen", "Bar"}, map[string][]string{"Bar": {"Tonic", "Gin"}})
	require.NoError(t, err)
	_, err = f.svc.Finish(ctx, f.access(t, token))
	require.NoError(t, err)

	b := f.draft(t)
	_, err = f.svc.Initialize(ctx, admin, b.ID)
	require.NoError(t, err)

	ord, err := f.svc.Ordering(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderInherited, ord.Source)
	assert.Equal(t, []string{"Bar", "Kitchen"}, ord.CategoryOrder)
	assert.Equal(t, []string{"Gin", "Tonic"}, ord.ProductOrder["Bar"])
}

func TestOrderingInheritsFromPreviousFinalizedCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.counting(t)
	_, err := f.svc.Finalize(ctx, admin, a.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Create(&models.ProductUnit{UnitID: f.unit.ID, ProductID: f.absinthe.ID}).Error)
	b := f.draft(t)
	_, err = f.svc.Initialize(ctx, admin, b.ID)
	require.NoError(t, err)

	ord, err := f.svc.Ordering(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderInherited, ord.Source)
	require.NotNil(t, ord.PreviousStockCountID)
	assert.Equal(t, a.ID, *ord.PreviousStockCountID)
	assert.Equal(t, []string{"Bar", "Kitchen"}, ord.CategoryOrder)
	assert.Equal(t, []string{"Gin", "Tonic", "Absinthe"}, ord.ProductOrder["Bar"])
	assert.Equal(t, []string{"Knife"}, ord.ProductOrder["Kitchen"])

	hint, err := f.svc.PreviousOrderHint(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, hint.HasOrder)
	assert.Equal(t, []string{"Bar", "Kitchen"}, hint.Categories)
	assert.Equal(t, []string{"Gin", "Tonic"}, hint.Products["Bar"])
	assert.Equal(t, a.ID, *hint.PreviousStockCountID)
}

func TestOrderingFallsBackToAlphabetical(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Create(&models.ProductUnit{UnitID: f.unit.ID, ProductID: f.absinthe.ID}).Error)

	c := f.draft(t)
	_, err := f.svc.Initialize(ctx, admin, c.ID)
	require.NoError(t, err)

	ord, err := f.svc.Ordering(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderAlphabetical, ord.Source)
	assert.Equal(t, []string{"Bar", "Kitchen"}, ord.CategoryOrder)
	assert.Equal(t, []string{"Absinthe", "Gin", "Tonic"}, ord.ProductOrder["Bar"])

	hint, err := f.svc.PreviousOrderHint(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, hint.HasOrder)
}

func TestSaveOrderWinsOverInheritance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.counting(t)
	_, err := f.svc.Finalize(ctx, admin, a.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Create(&models.ProductUnit{UnitID: f.unit.ID, ProductID: f.absinthe.ID}).Error)
	b := f.draft(t)
	_, err = f.svc.Initialize(ctx, admin, b.ID)
	require.NoError(t, err)

	ord, err := f.svc.SaveOrder(ctx, admin, b.ID, []string{"Kitchen", "Bar"}, map[string][]string{
		"Bar": {"Tonic", "Gin", "Vermouth"},
	})
	require.NoError(t, err)
	assert.Equal(t, OrderSaved, ord.Source)
	assert.Equal(t, []string{"Kitchen", "Bar"}, ord.CategoryOrder)
	assert.Equal(t, []string{"Tonic", "Gin", "Absinthe"}, ord.ProductOrder["Bar"])

	// A rename keeps the saved place because the order is stored by id.
	require.NoError(t, f.db.Model(&f.tonic).Update("name", "Indian tonic").Error)
	ord, err = f.svc.Ordering(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Indian tonic", "Gin", "Absinthe"}, ord.ProductOrder["Bar"])

	_, err = f.svc.SaveOrder(ctx, admin, b.ID, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEndToEndCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.draft(t)
	n, err := f.svc.Initialize(ctx, admin, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	closed, err := f.svc.Close(ctx, admin, c.ID)
	require.NoError(t, err)

	view, err := f.svc.PublicDetail(ctx, f.access(t, closed.Token), nil, 0)
	require.NoError(t, err)
	assert.True(t, view.Permissions.Begin)
	assert.False(t, view.Permissions.WriteItems)

	_, err = f.svc.Begin(ctx, f.access(t, closed.Token))
	require.NoError(t, err)

	_, err = f.svc.SubmitPublicItems(ctx, f.access(t, closed.Token), []QuantityInput{
		qty(f.gin.ID, "3"),
		qty(f.knife.ID, "12"),
	})
	require.NoError(t, err)

	view, err = f.svc.PublicDetail(ctx, f.access(t, closed.Token), nil, 0)
	require.NoError(t, err)
	bar := categoryNamed(t, view.Categories, "Bar")
	assert.Equal(t, 2, bar.Total)
	assert.Equal(t, 1, bar.Counted)
	assert.False(t, bar.Complete)
	assert.True(t, categoryNamed(t, view.Categories, "Kitchen").Complete)
	assert.Equal(t, []string{"Bar"}, view.Disclosure.Expanded)

	// A typed zero is counted but does not complete the category.
	_, err = f.svc.SubmitPublicItems(ctx, f.access(t, closed.Token), []QuantityInput{qty(f.tonic.ID, "0")})
	require.NoError(t, err)

	view, err = f.svc.PublicDetail(ctx, f.access(t, closed.Token), nil, 0)
	require.NoError(t, err)
	bar = categoryNamed(t, view.Categories, "Bar")
	assert.Equal(t, 2, bar.Counted)
	assert.False(t, bar.Complete)
	assert.Equal(t, []string{"Bar"}, view.Disclosure.Expanded)

	_, err = f.svc.SubmitPublicItems(ctx, f.access(t, closed.Token), []QuantityInput{qty(f.tonic.ID, "6")})
	require.NoError(t, err)

	view, err = f.svc.PublicDetail(ctx, f.access(t, closed.Token), nil, 0)
	require.NoError(t, err)
	assert.True(t, categoryNamed(t, view.Categories, "Bar").Complete)
	assert.Equal(t, 3, view.CountedItems)
	assert.Empty(t, view.Disclosure.Expanded)

	_, err = f.svc.Finish(ctx, f.access(t, closed.Token))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteItem(ctx, admin, c.ID, f.gin.ID), ErrConflict)
	acc := f.access(t, closed.Token)
	assert.Equal(t, Permissions{Read: true}, acc.Permissions)

	detail, err := f.svc.Detail(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StockCountFinalized, detail.Status)
	assert.NotNil(t, detail.FinalizedAt)
	assert.Equal(t, closed.PublicURL, detail.PublicURL)
}

func TestPublicDetailNextFocusCrossesCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.counting(t)

	_, err := f.svc.SubmitPublicItems(ctx, f.access(t, token), []QuantityInput{
		qty(f.gin.ID, "1"),
		qty(f.tonic.ID, "1"),
	})
	require.NoError(t, err)

	view, err := f.svc.PublicDetail(ctx, f.access(t, token), nil, f.tonic.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kitchen"}, view.Disclosure.Expanded)
	require.NotNil(t, view.NextFocus)
	assert.Equal(t, f.knife.ID, *view.NextFocus)

	// A manual override made at the current completion level holds.
	view, err = f.svc.PublicDetail(ctx, f.access(t, token), &Override{Expanded: []string{"Bar"}, CompletedAt: 1}, 0)
	require.NoError(t, err)
	assert.True(t, view.Disclosure.Manual)
	assert.Equal(t, []string{"Bar"}, view.Disclosure.Expanded)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.draft(t)
	c, _ := f.counting(t)

	list, err := f.svc.List(ctx, ListFilter{Status: models.StockCountCounting})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	all, err := f.svc.List(ctx, ListFilter{UnitID: f.unit.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func categoryNamed(t *testing.T, cats []CategoryView, name string) CategoryView {
	t.Helper()
	for _, c := range cats {
		if c.Name == name {
			return c
		}
	}
	require.Fail(t, "category not found", name)
	return CategoryView{}
}

func TestTransitionFailureOnMissingCount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Finalize(context.Background(), admin, 777)
	assert.True(t, errors.Is(err, ErrNotFound))
}

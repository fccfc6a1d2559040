package stockcount

import (
	"testing"

	"stockcount-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestParseStatusAliases(t *testing.T) {
	for raw, want := range map[string]models.StockCountStatus{
		"draft":        models.StockCountDraft,
		"Open":         models.StockCountDraft,
		"closed":       models.StockCountReady,
		" in_progress": models.StockCountCounting,
		"COMPLETED":    models.StockCountFinalized,
	} {
		got, ok := ParseStatus(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseStatus("archived")
	assert.False(t, ok)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Counting in progress", StatusLabel(models.StockCountCounting))
	assert.Equal(t, "weird", StatusLabel("weird"))
}

func TestPermissionsFor(t *testing.T) {
	assert.Equal(t, Permissions{}, PermissionsFor(models.StockCountDraft))
	assert.Equal(t, Permissions{Read: true, Begin: true}, PermissionsFor(models.StockCountReady))
	assert.Equal(t, Permissions{Read: true, WriteItems: true, Finish: true}, PermissionsFor(models.StockCountCounting))
	assert.Equal(t, Permissions{Read: true}, PermissionsFor(models.StockCountFinalized))

	acc := &Access{Count: &models.StockCount{Status: models.StockCountFinalized}, Permissions: PermissionsFor(models.StockCountFinalized)}
	assert.NoError(t, acc.Require(OpRead))
	assert.ErrorIs(t, acc.Require(OpWriteItems), ErrConflict)

	var none *Access
	assert.ErrorIs(t, none.Require(OpRead), ErrNotFound)
}

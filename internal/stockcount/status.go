package stockcount

import (
	"strings"

	"stockcount-backend/internal/models"
)

// statusLabels is the only place where statuses get their display text.
var statusLabels = map[models.StockCountStatus]string{
	models.StockCountDraft:     "Draft",
	models.StockCountReady:     "Ready for counting",
	models.StockCountCounting:  "Counting in progress",
	models.StockCountFinalized: "Finalized",
}

// Older clients and reports used these names for the same states.
var statusAliases = map[string]models.StockCountStatus{
	"draft":       models.StockCountDraft,
	"open":        models.StockCountDraft,
	"ready":       models.StockCountReady,
	"closed":      models.StockCountReady,
	"pending":     models.StockCountReady,
	"counting":    models.StockCountCounting,
	"in_progress": models.StockCountCounting,
	"started":     models.StockCountCounting,
	"finalized":   models.StockCountFinalized,
	"finished":    models.StockCountFinalized,
	"completed":   models.StockCountFinalized,
}

func StatusLabel(s models.StockCountStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseStatus maps a canonical name or a legacy alias to the canonical status.
func ParseStatus(raw string) (models.StockCountStatus, bool) {
	s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return s, ok
}

package metrics

import (
	"log"
	"time"

	"stockcount-backend/internal/models"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"
)

var allStatuses = []models.StockCountStatus{
	models.StockCountDraft,
	models.StockCountReady,
	models.StockCountCounting,
	models.StockCountFinalized,
}

// RefreshCounts sets the stock_counts gauge from the database.
func RefreshCounts(db *gorm.DB) error {
	type row struct {
		Status models.StockCountStatus
		N      int64
	}
	var rows []row
	if err := db.Model(&models.StockCount{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}

	seen := map[models.StockCountStatus]int64{}
	for _, r := range rows {
		seen[r.Status] = r.N
	}
	for _, s := range allStatuses {
		CountsByStatus.WithLabelValues(string(s)).Set(float64(seen[s]))
	}
	return nil
}

// StartRefresher runs RefreshCounts on a schedule until the returned scheduler is stopped.
func StartRefresher(db *gorm.DB, every time.Duration, loc *time.Location) *gocron.Scheduler {
	s := gocron.NewScheduler(loc)
	_, err := s.Every(every).Do(func() {
		if err := RefreshCounts(db); err != nil {
			log.Printf("[WARN] stock count gauge refresh failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("[WARN] gauge refresh job not scheduled: %v", err)
	}
	s.StartAsync()
	return s
}

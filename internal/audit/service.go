package audit

import (
	"encoding/json"
	"fmt"

	"stockcount-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	UnitID      *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(db *gorm.DB, opts LogOptions) error {
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	entry := models.AuditLog{
		UnitID:      opts.UnitID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: truncate(opts.Description, 255),
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log not saved: %w", err)
	}
	return nil
}

// ListForEntity returns the history of one entity, newest first.
func ListForEntity(db *gorm.DB, entityType string, entityID uint, action models.AuditAction) ([]models.AuditLog, error) {
	q := db.Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	var logs []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit logs: %w", err)
	}
	return logs, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryStatus is the last known delivery outcome of a notification request.
type DeliveryStatus struct {
	RequestID string `gorm:"primaryKey"`
	DeviceID  string `gorm:"index"`
	Type      string
	Status    string
	Provider  string
	Detail    string
	UpdatedAt time.Time
}

type StatusStore struct {
	db        *gorm.DB
	tableName string
}

func NewStatusStore(db *gorm.DB, tableName string) *StatusStore {
	if tableName == "" {
		tableName = "notification_deliveries"
	}
	return &StatusStore{
		db:        db,
		tableName: tableName,
	}
}

// Migrate creates or updates the table.
func (s *StatusStore) Migrate() error {
	return s.db.Table(s.tableName).AutoMigrate(&DeliveryStatus{})
}

func (s *StatusStore) UpdateStatus(ctx context.Context, status DeliveryStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "provider", "detail", "updated_at"}),
		}).Create(&status).Error
}

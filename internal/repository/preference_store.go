package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

// DevicePreference is the durable per-device state: the last celebrated
// streak day and the feature toggles.
type DevicePreference struct {
	DeviceID                 string `gorm:"primaryKey"`
	LastShownStreakDay       int
	QuizEnabled              bool
	StreakCelebrationEnabled bool
	UpdatedAt                time.Time
}

// PreferenceStore keeps DevicePreference rows in postgres. A device without
// a row reads as defaults.
type PreferenceStore struct {
	db        *gorm.DB
	tableName string
	now       func() time.Time
}

func NewPreferenceStore(db *gorm.DB, tableName string) *PreferenceStore {
	if tableName == "" {
		tableName = "device_preferences"
	}
	return &PreferenceStore{
		db:        db,
		tableName: tableName,
		now:       time.Now,
	}
}

// Migrate creates or updates the table.
func (s *PreferenceStore) Migrate() error {
	return s.db.Table(s.tableName).AutoMigrate(&DevicePreference{})
}

// ForDevice scopes the store to one device.
func (s *PreferenceStore) ForDevice(deviceID string) *DevicePreferences {
	return &DevicePreferences{store: s, deviceID: deviceID}
}

func (s *PreferenceStore) load(ctx context.Context, deviceID string) (DevicePreference, error) {
	var row DevicePreference
	err := s.db.WithContext(ctx).Table(s.tableName).
		Where("device_id = ?", deviceID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		toggles := models.DefaultToggles()
		return DevicePreference{
			DeviceID:                 deviceID,
			QuizEnabled:              toggles.QuizEnabled,
			StreakCelebrationEnabled: toggles.StreakCelebrationEnabled,
		}, nil
	}
	return row, err
}

// upsert inserts row, or updates only columns on an existing row.
func (s *PreferenceStore) upsert(ctx context.Context, row DevicePreference, columns ...string) error {
	row.UpdatedAt = s.now()
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns(append(columns, "updated_at")),
		}).Create(&row).Error
}

// DevicePreferences is PreferenceStore bound to one device.
type DevicePreferences struct {
	store    *PreferenceStore
	deviceID string
}

func (p *DevicePreferences) LastShownStreakDay(ctx context.Context) (int, error) {
	row, err := p.store.load(ctx, p.deviceID)
	if err != nil {
		return 0, err
	}
	return row.LastShownStreakDay, nil
}

func (p *DevicePreferences) SetLastShownStreakDay(ctx context.Context, day int) error {
	toggles := models.DefaultToggles()
	return p.store.upsert(ctx, DevicePreference{
		DeviceID:                 p.deviceID,
		LastShownStreakDay:       day,
		QuizEnabled:              toggles.QuizEnabled,
		StreakCelebrationEnabled: toggles.StreakCelebrationEnabled,
	}, "last_shown_streak_day")
}

func (p *DevicePreferences) Toggles(ctx context.Context) (models.FeatureToggles, error) {
	row, err := p.store.load(ctx, p.deviceID)
	if err != nil {
		return models.FeatureToggles{}, err
	}
	return models.FeatureToggles{
		QuizEnabled:              row.QuizEnabled,
		StreakCelebrationEnabled: row.StreakCelebrationEnabled,
	}, nil
}

func (p *DevicePreferences) SetToggles(ctx context.Context, toggles models.FeatureToggles) error {
	return p.store.upsert(ctx, DevicePreference{
		DeviceID:                 p.deviceID,
		QuizEnabled:              toggles.QuizEnabled,
		StreakCelebrationEnabled: toggles.StreakCelebrationEnabled,
	}, "quiz_enabled", "streak_celebration_enabled")
}

// Package configstore is the key-value configuration collaborator: the Drive
// credential document and other runtime-mutable settings live here, mirroring
// the system_config collection the web frontend reads.
package configstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// KeyDriveCredentials is the key under which the Drive credential document is stored.
const KeyDriveCredentials = "google_drive_config"

// Store exposes get/set access to configuration values.
type Store interface {
	// Get returns the value for the key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set creates or replaces the value for the key.
	Set(ctx context.Context, key string, value string) error
}

// MemoryStore is an in-memory Store intended for tests and dev.
type MemoryStore struct {
	mutex   sync.Mutex
	entries map[string]string
}

// NewMemoryStore constructs a store with an empty map.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get returns the value for the key and whether it exists.
func (store *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	value, ok := store.entries[key]
	return value, ok, nil
}

// Set creates or replaces the value for the key.
func (store *MemoryStore) Set(ctx context.Context, key string, value string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.entries[key] = value
	return nil
}

type configRecord struct {
	ConfigKey     string `gorm:"column:config_key;primaryKey"`
	ConfigValue   string `gorm:"column:config_value;not null"`
	UpdatedAtUnix int64  `gorm:"column:updated_at_unix;not null"`
}

func (configRecord) TableName() string {
	return "system_config"
}

// DatabaseStore persists configuration entries using GORM.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore constructs a GORM-backed store and migrates its table.
func NewDatabaseStore(ctx context.Context, db *gorm.DB) (*DatabaseStore, error) {
	if db == nil {
		return nil, errors.New("configstore.open: database handle must be provided")
	}
	if migrateErr := db.WithContext(ctx).AutoMigrate(&configRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("configstore.migrate: %w", migrateErr)
	}
	return &DatabaseStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Get returns the value for the key and whether it exists.
func (store *DatabaseStore) Get(ctx context.Context, key string) (string, bool, error) {
	var record configRecord
	err := store.db.WithContext(ctx).Where("config_key = ?", key).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("configstore.get: %w", err)
	}
	return record.ConfigValue, true, nil
}

// Set creates or replaces the value for the key.
func (store *DatabaseStore) Set(ctx context.Context, key string, value string) error {
	updatedAt := store.now().Unix()
	result := store.db.WithContext(ctx).Model(&configRecord{}).
		Where("config_key = ?", key).
		Updates(map[string]interface{}{"config_value": value, "updated_at_unix": updatedAt})
	if result.Error != nil {
		return fmt.Errorf("configstore.set: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		record := configRecord{ConfigKey: key, ConfigValue: value, UpdatedAtUnix: updatedAt}
		if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
			return fmt.Errorf("configstore.set: %w", createErr)
		}
	}
	return nil
}

package drivekit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// TokenStateStore persists the user-delegated TokenState across restarts.
type TokenStateStore interface {
	// Load returns the stored state and whether one exists.
	Load(ctx context.Context) (TokenState, bool, error)
	// Save replaces the stored state.
	Save(ctx context.Context, state TokenState) error
	// Clear removes the stored state; clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// MemoryTokenStateStore is an in-memory store intended for tests and dev.
type MemoryTokenStateStore struct {
	mutex   sync.Mutex
	state   TokenState
	present bool
}

// NewMemoryTokenStateStore creates an empty in-memory store.
func NewMemoryTokenStateStore() *MemoryTokenStateStore {
	return &MemoryTokenStateStore{}
}

// Load returns the stored state and whether one exists.
func (store *MemoryTokenStateStore) Load(ctx context.Context) (TokenState, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.state, store.present, nil
}

// Save replaces the stored state.
func (store *MemoryTokenStateStore) Save(ctx context.Context, state TokenState) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state = state
	store.present = true
	return nil
}

// Clear removes the stored state.
func (store *MemoryTokenStateStore) Clear(ctx context.Context) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state = TokenState{}
	store.present = false
	return nil
}

type tokenStateRecord struct {
	CredentialLabel string `gorm:"column:credential_label;primaryKey"`
	StateJSON       string `gorm:"column:state_json;not null"`
	UpdatedAtUnix   int64  `gorm:"column:updated_at_unix;not null"`
}

func (tokenStateRecord) TableName() string {
	return "drive_token_states"
}

// DatabaseTokenStateStore persists one TokenState per credential label using GORM.
type DatabaseTokenStateStore struct {
	db              *gorm.DB
	credentialLabel string
	clock           Clock
}

// NewDatabaseTokenStateStore constructs a GORM-backed store scoped to one credential set.
func NewDatabaseTokenStateStore(ctx context.Context, db *gorm.DB, credentialLabel string, clock Clock) (*DatabaseTokenStateStore, error) {
	if db == nil {
		return nil, errors.New("token_store.open: database handle must be provided")
	}
	if credentialLabel == "" {
		return nil, errors.New("token_store.open: credential label must be provided")
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if migrateErr := db.WithContext(ctx).AutoMigrate(&tokenStateRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("token_store.migrate: %w", migrateErr)
	}
	return &DatabaseTokenStateStore{db: db, credentialLabel: credentialLabel, clock: clock}, nil
}

// Load returns the stored state and whether one exists.
func (store *DatabaseTokenStateStore) Load(ctx context.Context) (TokenState, bool, error) {
	var record tokenStateRecord
	err := store.db.WithContext(ctx).Where("credential_label = ?", store.credentialLabel).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TokenState{}, false, nil
	}
	if err != nil {
		return TokenState{}, false, fmt.Errorf("token_store.load: %w", err)
	}
	var state TokenState
	if decodeErr := json.Unmarshal([]byte(record.StateJSON), &state); decodeErr != nil {
		return TokenState{}, false, fmt.Errorf("token_store.load.decode: %w", decodeErr)
	}
	return state, true, nil
}

// Save replaces the stored state.
func (store *DatabaseTokenStateStore) Save(ctx context.Context, state TokenState) error {
	encoded, encodeErr := json.Marshal(state)
	if encodeErr != nil {
		return fmt.Errorf("token_store.save.encode: %w", encodeErr)
	}
	record := tokenStateRecord{
		CredentialLabel: store.credentialLabel,
		StateJSON:       string(encoded),
		UpdatedAtUnix:   store.clock.Now().Unix(),
	}
	result := store.db.WithContext(ctx).Model(&tokenStateRecord{}).
		Where("credential_label = ?", store.credentialLabel).
		Updates(map[string]interface{}{"state_json": record.StateJSON, "updated_at_unix": record.UpdatedAtUnix})
	if result.Error != nil {
		return fmt.Errorf("token_store.save: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
			return fmt.Errorf("token_store.save: %w", createErr)
		}
	}
	return nil
}

// Clear removes the stored state.
func (store *DatabaseTokenStateStore) Clear(ctx context.Context) error {
	err := store.db.WithContext(ctx).Where("credential_label = ?", store.credentialLabel).Delete(&tokenStateRecord{}).Error
	if err != nil {
		return fmt.Errorf("token_store.clear: %w", err)
	}
	return nil
}

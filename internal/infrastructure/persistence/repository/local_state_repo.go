package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/infrastructure/persistence/sqlite"
)

// LocalStateRepository is a keyed JSON store. It backs verification marks,
// one key per task.
type LocalStateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLocalStateRepository creates a new local state repository
func NewLocalStateRepository(db *sql.DB, logger *zap.Logger) *LocalStateRepository {
	return &LocalStateRepository{
		db:     db,
		logger: logger,
	}
}

// VerificationKey returns the store key holding a task's marks
func VerificationKey(taskID int64) string {
	return entity.VerificationKeyPrefix + strconv.FormatInt(taskID, 10)
}

// Get decodes the value stored under key into v. It reports false when
// the key is absent.
func (r *LocalStateRepository) Get(ctx context.Context, key string, v interface{}) (bool, error) {
	var raw string
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, `SELECT value FROM local_state WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to read local state", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Put stores v as JSON under key
func (r *LocalStateRepository) Put(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO local_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(b), time.Now())
	if err != nil {
		r.logger.Error("Failed to write local state", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Load implements port.VerificationStore
func (r *LocalStateRepository) Load(ctx context.Context, taskID int64) (map[string]bool, error) {
	marks := make(map[string]bool)
	if _, err := r.Get(ctx, VerificationKey(taskID), &marks); err != nil {
		return nil, err
	}
	return marks, nil
}

// Save implements port.VerificationStore
func (r *LocalStateRepository) Save(ctx context.Context, taskID int64, marks map[string]bool) error {
	return r.Put(ctx, VerificationKey(taskID), marks)
}

// Verify interface compliance
var _ port.VerificationStore = (*LocalStateRepository)(nil)

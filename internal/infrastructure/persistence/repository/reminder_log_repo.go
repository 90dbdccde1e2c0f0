package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/infrastructure/persistence/sqlite"
)

// ReminderLogRepository implements port.ReminderLogRepository
type ReminderLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReminderLogRepository creates a new reminder log repository
func NewReminderLogRepository(db *sql.DB, logger *zap.Logger) *ReminderLogRepository {
	return &ReminderLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a reminder attempt
func (r *ReminderLogRepository) Create(ctx context.Context, log *entity.ReminderLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	if log.Status == "" {
		log.Status = entity.ReminderStatusPending
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO reminder_logs (
			task_id, tag, document_type, document_name, channel, recipient,
			status, requested_by, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		log.TaskID,
		log.Tag,
		log.DocumentType,
		log.DocumentName,
		log.Channel,
		log.Recipient,
		log.Status,
		log.RequestedBy,
		log.ErrorMessage,
		log.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create reminder log", zap.Int64("task_id", log.TaskID), zap.Error(err))
		return fmt.Errorf("failed to create reminder log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get reminder log ID: %w", err)
	}
	log.ID = id
	return nil
}

// GetByTask returns the task's reminder attempts, newest first
func (r *ReminderLogRepository) GetByTask(ctx context.Context, taskID int64) ([]*entity.ReminderLog, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, `
		SELECT id, task_id, tag, document_type, document_name, channel, recipient,
			status, requested_by, error_message, sent_at, created_at
		FROM reminder_logs
		WHERE task_id = ?
		ORDER BY id DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.ReminderLog
	for rows.Next() {
		var l entity.ReminderLog
		var sentAt sql.NullTime
		if err := rows.Scan(
			&l.ID, &l.TaskID, &l.Tag, &l.DocumentType, &l.DocumentName, &l.Channel, &l.Recipient,
			&l.Status, &l.RequestedBy, &l.ErrorMessage, &sentAt, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder log: %w", err)
		}
		if sentAt.Valid {
			t := sentAt.Time
			l.SentAt = &t
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// MarkSent records a delivered reminder
func (r *ReminderLogRepository) MarkSent(ctx context.Context, id int64, channel, recipient string) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		UPDATE reminder_logs SET status = ?, channel = ?, recipient = ?, sent_at = ? WHERE id = ?
	`, entity.ReminderStatusSent, channel, recipient, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark reminder sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return expectOneRow(result, "reminder log", id)
}

// MarkFailed records a failed delivery
func (r *ReminderLogRepository) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		UPDATE reminder_logs SET status = ?, error_message = ? WHERE id = ?
	`, entity.ReminderStatusFailed, errorMsg, id)
	if err != nil {
		r.logger.Error("Failed to mark reminder failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark reminder failed: %w", err)
	}
	return expectOneRow(result, "reminder log", id)
}

// Verify interface compliance
var _ port.ReminderLogRepository = (*ReminderLogRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/infrastructure/persistence/sqlite"
)

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the task and its attachments. Callers wrap it in a
// transaction so a failed attachment insert leaves no task behind.
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	tags, err := encodeTags(task.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (
			title, description, status, priority, tags, project_id,
			assigned_to, due_date, amount, rating, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	exec := sqlite.ExecutorFor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		tags,
		task.ProjectID,
		task.AssignedTo,
		nullTime(task.DueDate),
		task.Amount,
		nullFloat(task.Rating),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create task", zap.String("title", task.Title), zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get task ID: %w", err)
	}
	task.ID = id

	for _, att := range task.Attachments {
		att.TaskID = id
		if att.CreatedAt.IsZero() {
			att.CreatedAt = task.CreatedAt
		}
		res, err := exec.ExecContext(ctx, `
			INSERT INTO task_attachments (task_id, position, file_name, file_path, file_size, mime_type, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, att.Position, att.FileName, att.FilePath, att.FileSize, att.MimeType, att.CreatedAt)
		if err != nil {
			r.logger.Error("Failed to create attachment", zap.Int64("task_id", id), zap.String("file_name", att.FileName), zap.Error(err))
			return fmt.Errorf("failed to create attachment: %w", err)
		}
		if att.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get attachment ID: %w", err)
		}
	}

	r.logger.Info("Task created", zap.Int64("id", id), zap.Int("attachments", len(task.Attachments)))
	return nil
}

// GetByID retrieves a task with its attachments; nil when missing
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `
		SELECT id, title, description, status, priority, tags, project_id,
			assigned_to, due_date, amount, rating, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`

	var task entity.Task
	var tags string
	var dueDate sql.NullTime
	var rating sql.NullFloat64

	exec := sqlite.ExecutorFor(ctx, r.db)
	err := exec.QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&tags,
		&task.ProjectID,
		&task.AssignedTo,
		&dueDate,
		&task.Amount,
		&rating,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if task.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	if dueDate.Valid {
		d := dueDate.Time
		task.DueDate = &d
	}
	if rating.Valid {
		v := rating.Float64
		task.Rating = &v
	}

	if task.Attachments, err = r.attachments(ctx, exec, id); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) attachments(ctx context.Context, exec sqlite.Executor, taskID int64) ([]*entity.Attachment, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, task_id, position, file_name, file_path, file_size, mime_type, created_at
		FROM task_attachments
		WHERE task_id = ?
		ORDER BY position, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	var out []*entity.Attachment
	for rows.Next() {
		var a entity.Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Position, &a.FileName, &a.FilePath, &a.FileSize, &a.MimeType, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Update writes the non-lifecycle fields
func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	tags, err := encodeTags(task.Tags)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, tags = ?, assigned_to = ?,
			due_date = ?, amount = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Priority,
		tags,
		task.AssignedTo,
		nullTime(task.DueDate),
		task.Amount,
		time.Now(),
		task.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update task", zap.Int64("id", task.ID), zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}
	return expectOneRow(result, "task", task.ID)
}

// UpdateStatus writes the status only while the task is still in from.
// An existing rating is never overwritten.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, from, to entity.TaskStatus, rating *float64) error {
	query := `
		UPDATE tasks
		SET status = ?, rating = COALESCE(rating, ?), updated_at = ?
		WHERE id = ? AND status = ?
	`
	exec := sqlite.ExecutorFor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, to, nullFloat(rating), time.Now(), id, from)
	if err != nil {
		r.logger.Error("Failed to update task status",
			zap.Int64("id", id),
			zap.String("status", string(to)),
			zap.Error(err))
		return fmt.Errorf("failed to update task status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var current entity.TaskStatus
	err = exec.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("task %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to read task status: %w", err)
	}
	r.logger.Info("Status write lost a race",
		zap.Int64("id", id),
		zap.String("expected", string(from)),
		zap.String("current", string(current)))
	return port.ErrStatusChanged
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func expectOneRow(result sql.Result, what string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d not found", what, id)
	}
	return nil
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)

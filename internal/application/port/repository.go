package port

import (
	"context"
	"errors"

	"github.com/garyjia/taskdoc/internal/domain/entity"
)

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	// Create stores the task and its attachments, assigning IDs
	Create(ctx context.Context, task *entity.Task) error

	// GetByID returns nil, nil when the task does not exist
	GetByID(ctx context.Context, id int64) (*entity.Task, error)

	// Update writes the non-lifecycle fields of an existing task
	Update(ctx context.Context, task *entity.Task) error

	// UpdateStatus moves the task from one status to another in one
	// statement, recording rating only if none is stored yet. It returns
	// ErrStatusChanged when the task is no longer in from.
	UpdateStatus(ctx context.Context, id int64, from, to entity.TaskStatus, rating *float64) error
}

// ErrStatusChanged reports a lost race on a status write
var ErrStatusChanged = errors.New("task status changed concurrently")

// ProjectRepository reads projects and their client contact
type ProjectRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Project, error)
}

// DocumentRepository defines persistence operations for ComplianceDocument
type DocumentRepository interface {
	// Upsert creates or replaces the document in its (task, tag, type) slot.
	// It returns the document previously filling the slot, if any.
	Upsert(ctx context.Context, doc *entity.ComplianceDocument) (*entity.ComplianceDocument, error)
	GetByID(ctx context.Context, id int64) (*entity.ComplianceDocument, error)
	GetByTask(ctx context.Context, taskID int64) ([]*entity.ComplianceDocument, error)
	GetBySlot(ctx context.Context, taskID int64, tag, documentType string) (*entity.ComplianceDocument, error)
	Delete(ctx context.Context, id int64) error
}

// ReminderLogRepository records reminder attempts
type ReminderLogRepository interface {
	Create(ctx context.Context, log *entity.ReminderLog) error
	GetByTask(ctx context.Context, taskID int64) ([]*entity.ReminderLog, error)
	MarkSent(ctx context.Context, id int64, channel, recipient string) error
	MarkFailed(ctx context.Context, id int64, errorMsg string) error
}

// VerificationStore is the keyed local store holding verification marks.
// Marks are stored per task as a map of slot key to verified flag.
type VerificationStore interface {
	Load(ctx context.Context, taskID int64) (map[string]bool, error)
	Save(ctx context.Context, taskID int64, marks map[string]bool) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// AfterCommit defers fn until the transaction on ctx commits. Without
	// one, fn runs immediately. fn is dropped on rollback.
	AfterCommit(ctx context.Context, fn func())
}

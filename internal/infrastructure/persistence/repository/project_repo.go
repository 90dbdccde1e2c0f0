package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/infrastructure/persistence/sqlite"
)

// ProjectRepository implements port.ProjectRepository
type ProjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a project; nil when missing
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*entity.Project, error) {
	query := `
		SELECT id, name, client_name, client_phone, client_email, client_lark_chat_id
		FROM projects
		WHERE id = ?
	`

	var p entity.Project
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Client.Name,
		&p.Client.Phone,
		&p.Client.Email,
		&p.Client.LarkChatID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get project", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// Upsert seeds or refreshes a project by ID. Projects are owned by another
// system; this is only used to load them from configuration.
func (r *ProjectRepository) Upsert(ctx context.Context, p *entity.Project) error {
	query := `
		INSERT INTO projects (id, name, client_name, client_phone, client_email, client_lark_chat_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			client_name = excluded.client_name,
			client_phone = excluded.client_phone,
			client_email = excluded.client_email,
			client_lark_chat_id = excluded.client_lark_chat_id
	`
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		p.ID, p.Name, p.Client.Name, p.Client.Phone, p.Client.Email, p.Client.LarkChatID,
	)
	if err != nil {
		r.logger.Error("Failed to upsert project", zap.Int64("id", p.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.ProjectRepository = (*ProjectRepository)(nil)

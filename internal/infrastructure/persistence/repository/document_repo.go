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

const documentColumns = `id, task_id, tag, document_type, file_name, file_path, file_size, mime_type, uploaded_by, uploaded_at`

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new compliance document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert replaces the slot's row in place, keeping its ID, and returns the
// row it replaced
func (r *DocumentRepository) Upsert(ctx context.Context, doc *entity.ComplianceDocument) (*entity.ComplianceDocument, error) {
	var previous *entity.ComplianceDocument

	err := r.inTx(ctx, func(exec sqlite.Executor) error {
		prev, err := r.getBySlot(ctx, exec, doc.TaskID, doc.Tag, doc.DocumentType)
		if err != nil {
			return err
		}
		previous = prev

		_, err = exec.ExecContext(ctx, `
			INSERT INTO compliance_documents (
				task_id, tag, document_type, file_name, file_path, file_size, mime_type, uploaded_by, uploaded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(task_id, tag, document_type) DO UPDATE SET
				file_name = excluded.file_name,
				file_path = excluded.file_path,
				file_size = excluded.file_size,
				mime_type = excluded.mime_type,
				uploaded_by = excluded.uploaded_by,
				uploaded_at = excluded.uploaded_at
		`, doc.TaskID, doc.Tag, doc.DocumentType, doc.FileName, doc.FilePath, doc.FileSize, doc.MimeType, doc.UploadedBy, doc.UploadedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}

		// LastInsertId is not reliable for the update branch
		return exec.QueryRowContext(ctx,
			`SELECT id FROM compliance_documents WHERE task_id = ? AND tag = ? AND document_type = ?`,
			doc.TaskID, doc.Tag, doc.DocumentType,
		).Scan(&doc.ID)
	})
	if err != nil {
		r.logger.Error("Failed to upsert compliance document",
			zap.Int64("task_id", doc.TaskID),
			zap.String("slot", doc.SlotKey()),
			zap.Error(err))
		return nil, err
	}
	return previous, nil
}

// GetByID retrieves a document; nil when missing
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.ComplianceDocument, error) {
	row := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM compliance_documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get compliance document", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// GetByTask retrieves every document of a task in one query
func (r *DocumentRepository) GetByTask(ctx context.Context, taskID int64) ([]*entity.ComplianceDocument, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx,
		`SELECT `+documentColumns+` FROM compliance_documents WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		r.logger.Error("Failed to query compliance documents", zap.Int64("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.ComplianceDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetBySlot retrieves the document filling a slot; nil when empty
func (r *DocumentRepository) GetBySlot(ctx context.Context, taskID int64, tag, documentType string) (*entity.ComplianceDocument, error) {
	doc, err := r.getBySlot(ctx, sqlite.ExecutorFor(ctx, r.db), taskID, tag, documentType)
	if err != nil {
		r.logger.Error("Failed to get compliance document by slot",
			zap.Int64("task_id", taskID),
			zap.String("slot", entity.SlotKey(tag, documentType)),
			zap.Error(err))
	}
	return doc, err
}

func (r *DocumentRepository) getBySlot(ctx context.Context, exec sqlite.Executor, taskID int64, tag, documentType string) (*entity.ComplianceDocument, error) {
	row := exec.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM compliance_documents WHERE task_id = ? AND tag = ? AND document_type = ?`,
		taskID, tag, documentType)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document by slot: %w", err)
	}
	return doc, nil
}

// Delete removes a document row
func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `DELETE FROM compliance_documents WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete compliance document", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectOneRow(result, "document", id)
}

// inTx runs fn in the context's transaction or a new one
func (r *DocumentRepository) inTx(ctx context.Context, fn func(exec sqlite.Executor) error) error {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(s rowScanner) (*entity.ComplianceDocument, error) {
	var d entity.ComplianceDocument
	err := s.Scan(
		&d.ID,
		&d.TaskID,
		&d.Tag,
		&d.DocumentType,
		&d.FileName,
		&d.FilePath,
		&d.FileSize,
		&d.MimeType,
		&d.UploadedBy,
		&d.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)

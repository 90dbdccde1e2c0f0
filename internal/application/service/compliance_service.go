package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/domain/registry"
)

// UploadInput describes a compliance file for one slot of a task
type UploadInput struct {
	TaskID       int64
	Tag          string
	DocumentType string
	File         *entity.FileUpload
	UploadedBy   string
}

// FlushResult reports the outcome of one staged upload
type FlushResult struct {
	Tag          string                     `json:"tag"`
	DocumentType string                     `json:"document_type"`
	FileName     string                     `json:"file_name"`
	Document     *entity.ComplianceDocument `json:"document,omitempty"`
	Err          error                      `json:"-"`
	Error        string                     `json:"error,omitempty"`
}

// ComplianceService manages the documents filling a task's compliance slots
type ComplianceService interface {
	// Get returns the task's documents keyed by slot key
	Get(ctx context.Context, taskID int64) (map[string]*entity.ComplianceDocument, error)

	// Upload stores a file into a slot, replacing any previous document
	Upload(ctx context.Context, in UploadInput) (*entity.ComplianceDocument, error)

	// Remove detaches a document from its slot
	Remove(ctx context.Context, taskID, documentID int64) (*entity.ComplianceDocument, error)

	// Unfilled returns the required slots of the task's tags that have no document
	Unfilled(ctx context.Context, task *entity.Task) ([]entity.DocumentRequirement, error)

	// Flush uploads staged drafts against a real task ID. Each entry
	// succeeds or fails on its own.
	Flush(ctx context.Context, draft *Draft, taskID int64, uploadedBy string) []FlushResult
}

type complianceServiceImpl struct {
	taskRepo port.TaskRepository
	docRepo  port.DocumentRepository
	storage  port.FileStorage
	slots    *keyedMutex
	logger   Logger
}

// NewComplianceService creates a new ComplianceService
func NewComplianceService(
	taskRepo port.TaskRepository,
	docRepo port.DocumentRepository,
	storage port.FileStorage,
	logger Logger,
) ComplianceService {
	return &complianceServiceImpl{
		taskRepo: taskRepo,
		docRepo:  docRepo,
		storage:  storage,
		slots:    newKeyedMutex(),
		logger:   logger,
	}
}

// Get fetches every document of the task in one query
func (s *complianceServiceImpl) Get(ctx context.Context, taskID int64) (map[string]*entity.ComplianceDocument, error) {
	docs, err := s.docRepo.GetByTask(ctx, taskID)
	if err != nil {
		s.logger.Error("Failed to load compliance documents", "task_id", taskID, "error", err)
		return nil, transportErr("load documents", err)
	}

	out := make(map[string]*entity.ComplianceDocument, len(docs))
	for _, d := range docs {
		out[d.SlotKey()] = d
	}
	return out, nil
}

// Upload stores the file and upserts the slot's metadata
func (s *complianceServiceImpl) Upload(ctx context.Context, in UploadInput) (*entity.ComplianceDocument, error) {
	req, ok := registry.Lookup(in.Tag, in.DocumentType)
	if !ok {
		return nil, wrap(ErrUnknownSlot, "upload document", fmt.Errorf("%s/%s", in.Tag, in.DocumentType))
	}
	if in.File == nil || in.File.Size() == 0 {
		return nil, wrap(ErrEmptyFile, "upload document", nil)
	}

	task, err := s.taskRepo.GetByID(ctx, in.TaskID)
	if err != nil {
		return nil, transportErr("load task", err)
	}
	if task == nil {
		return nil, wrap(ErrTaskNotFound, "upload document", nil)
	}

	slotKey := fmt.Sprintf("%d/%s", task.ID, req.SlotKey())
	unlock := s.slots.Lock(slotKey)
	defer unlock()

	storagePath := documentPath(task.ID, req.Tag, req.DocumentType, in.File.FileName)
	if err := s.storage.Save(ctx, storagePath, in.File.Content); err != nil {
		s.logger.Error("Failed to store compliance file", "task_id", task.ID, "slot", req.SlotKey(), "error", err)
		return nil, transportErr("store file", err)
	}

	doc := &entity.ComplianceDocument{
		TaskID:       task.ID,
		Tag:          req.Tag,
		DocumentType: req.DocumentType,
		FileName:     in.File.FileName,
		FilePath:     storagePath,
		FileSize:     in.File.Size(),
		MimeType:     in.File.MimeType,
		UploadedBy:   in.UploadedBy,
		UploadedAt:   time.Now(),
	}

	previous, err := s.docRepo.Upsert(ctx, doc)
	if err != nil {
		s.removeFile(ctx, storagePath)
		s.logger.Error("Failed to save compliance document", "task_id", task.ID, "slot", req.SlotKey(), "error", err)
		return nil, transportErr("save document", err)
	}

	if previous != nil && previous.FilePath != "" && previous.FilePath != storagePath {
		s.removeFile(ctx, previous.FilePath)
	}

	s.logger.Info("Compliance document uploaded",
		"task_id", task.ID,
		"slot", req.SlotKey(),
		"document_id", doc.ID,
		"replaced", previous != nil,
	)
	return doc, nil
}

// Remove deletes the document row and, best effort, its file.
// Verification marks are left untouched.
func (s *complianceServiceImpl) Remove(ctx context.Context, taskID, documentID int64) (*entity.ComplianceDocument, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, transportErr("load document", err)
	}
	if doc == nil || doc.TaskID != taskID {
		return nil, wrap(ErrDocumentNotFound, "remove document", nil)
	}

	unlock := s.slots.Lock(fmt.Sprintf("%d/%s", taskID, doc.SlotKey()))
	defer unlock()

	if err := s.docRepo.Delete(ctx, documentID); err != nil {
		s.logger.Error("Failed to delete compliance document", "task_id", taskID, "document_id", documentID, "error", err)
		return nil, transportErr("delete document", err)
	}
	s.removeFile(ctx, doc.FilePath)

	s.logger.Info("Compliance document removed", "task_id", taskID, "document_id", documentID, "slot", doc.SlotKey())
	return doc, nil
}

// Unfilled lists required slots of the task's active tags with no document
func (s *complianceServiceImpl) Unfilled(ctx context.Context, task *entity.Task) ([]entity.DocumentRequirement, error) {
	docs, err := s.Get(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	var out []entity.DocumentRequirement
	for _, group := range groupRequirements(task.Tags) {
		for _, req := range group.Requirements {
			if req.Required && docs[req.SlotKey()] == nil {
				out = append(out, req)
			}
		}
	}
	return out, nil
}

// Flush re-submits each staged entry against the real task
func (s *complianceServiceImpl) Flush(ctx context.Context, draft *Draft, taskID int64, uploadedBy string) []FlushResult {
	entries := draft.Entries()
	results := make([]FlushResult, 0, len(entries))

	for _, e := range entries {
		res := FlushResult{Tag: e.Tag, DocumentType: e.DocumentType, FileName: e.File.FileName}
		doc, err := s.Upload(ctx, UploadInput{
			TaskID:       taskID,
			Tag:          e.Tag,
			DocumentType: e.DocumentType,
			File:         e.File,
			UploadedBy:   uploadedBy,
		})
		if err != nil {
			res.Err = err
			res.Error = Reason(err)
			s.logger.Error("Staged upload failed", "task_id", taskID, "slot", e.SlotKey(), "error", err)
		} else {
			res.Document = doc
		}
		results = append(results, res)
	}
	return results
}

func (s *complianceServiceImpl) removeFile(ctx context.Context, p string) {
	if err := s.storage.Delete(ctx, p); err != nil {
		s.logger.Error("Failed to delete stored file", "path", p, "error", err)
	}
}

// documentPath builds tasks/{id}/{tag}/{type}/{uuid}-{name}
func documentPath(taskID int64, tag, documentType, fileName string) string {
	return path.Join(
		"tasks",
		fmt.Sprintf("%d", taskID),
		safeSegment(tag),
		safeSegment(documentType),
		uuid.NewString()+"-"+safeSegment(fileName),
	)
}

// safeSegment keeps a name usable as a single path element
func safeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
	s = strings.Trim(s, ".")
	if s == "" {
		return "file"
	}
	return s
}

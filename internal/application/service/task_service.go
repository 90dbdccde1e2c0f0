package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/taskdoc/internal/application/dispatcher"
	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/domain/event"
)

// CreateTaskInput carries the fields of a new task
type CreateTaskInput struct {
	Title       string
	Description string
	Status      entity.TaskStatus
	Priority    entity.TaskPriority
	Tags        []string
	ProjectID   int64
	AssignedTo  string
	DueDate     *time.Time
	Amount      float64
	Rating      *float64
	Files       []*entity.FileUpload
	CreatedBy   string
}

// CreateTaskResult is the stored task plus the outcome of staged uploads
type CreateTaskResult struct {
	Task          *entity.Task  `json:"task"`
	StagedUploads []FlushResult `json:"staged_uploads"`
	FailedUploads int           `json:"failed_uploads"`
}

// TaskPatch is a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *entity.TaskPriority
	Tags        []string
	AssignedTo  *string
	DueDate     *time.Time
	Amount      *float64
	Status      *entity.TaskStatus
	Rating      *float64
	Actor       string
}

// SlotView is one compliance slot as shown to a reviewer
type SlotView struct {
	Requirement      entity.DocumentRequirement `json:"requirement"`
	SlotKey          string                     `json:"slot_key"`
	Document         *entity.ComplianceDocument `json:"document,omitempty"`
	Verified         bool                       `json:"verified"`
	CanVerify        bool                       `json:"can_verify"`
	CanRemind        bool                       `json:"can_remind"`
	ReminderInFlight bool                       `json:"reminder_in_flight"`
}

// TagView groups the slots of one tag
type TagView struct {
	Tag   string     `json:"tag"`
	Known bool       `json:"known"`
	Slots []SlotView `json:"slots"`
}

// ComplianceView is the compliance state of a task
type ComplianceView struct {
	Task              *entity.Task                 `json:"task"`
	Tags              []TagView                    `json:"tags"`
	Unfilled          []entity.DocumentRequirement `json:"unfilled"`
	ClientReachable   bool                         `json:"client_reachable"`
	PermittedStatuses []entity.TaskStatus          `json:"permitted_statuses"`
}

// SetVerifiedInput asks to mark or unmark a slot as verified
type SetVerifiedInput struct {
	TaskID       int64
	Tag          string
	DocumentType string
	Verified     bool
}

// TaskService is the entry point for task and compliance operations
type TaskService interface {
	RequirementsFor(tags []string) []TagRequirements
	GetTask(ctx context.Context, id int64) (*entity.Task, error)
	LoadView(ctx context.Context, id int64) (*ComplianceView, error)
	CreateTask(ctx context.Context, in CreateTaskInput, draft *Draft) (*CreateTaskResult, error)
	UpdateTask(ctx context.Context, id int64, patch TaskPatch) (*entity.Task, error)

	Documents(ctx context.Context, taskID int64) (map[string]*entity.ComplianceDocument, error)
	UploadDocument(ctx context.Context, in UploadInput) (*entity.ComplianceDocument, error)
	RemoveDocument(ctx context.Context, taskID, documentID int64, actor string) error

	Verification(ctx context.Context, taskID int64) (map[string]bool, error)
	SetVerified(ctx context.Context, in SetVerifiedInput) (map[string]bool, error)

	RemindClient(ctx context.Context, in RemindInput) (*ReminderAck, error)
	Transition(ctx context.Context, in TransitionInput) (*entity.Task, error)

	ExportChecklist(ctx context.Context, taskID int64) ([]byte, error)
}

// TaskServiceDeps are the collaborators of the task service
type TaskServiceDeps struct {
	TaskRepo     port.TaskRepository
	ProjectRepo  port.ProjectRepository
	TxManager    port.TransactionManager
	Storage      port.FileStorage
	Compliance   ComplianceService
	Verification VerificationService
	Reminders    ReminderService
	Lifecycle    LifecycleService
	Exporter     port.ChecklistExporter
	Dispatcher   dispatcher.Dispatcher
	Logger       Logger
}

type taskServiceImpl struct {
	taskRepo     port.TaskRepository
	projectRepo  port.ProjectRepository
	txManager    port.TransactionManager
	storage      port.FileStorage
	compliance   ComplianceService
	verification VerificationService
	reminders    ReminderService
	lifecycle    LifecycleService
	exporter     port.ChecklistExporter
	dispatcher   dispatcher.Dispatcher
	logger       Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(deps TaskServiceDeps) TaskService {
	return &taskServiceImpl{
		taskRepo:     deps.TaskRepo,
		projectRepo:  deps.ProjectRepo,
		txManager:    deps.TxManager,
		storage:      deps.Storage,
		compliance:   deps.Compliance,
		verification: deps.Verification,
		reminders:    deps.Reminders,
		lifecycle:    deps.Lifecycle,
		exporter:     deps.Exporter,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
	}
}

// RequirementsFor resolves the requirement groups for a set of tags
func (s *taskServiceImpl) RequirementsFor(tags []string) []TagRequirements {
	return groupRequirements(tags)
}

// GetTask returns a stored task
func (s *taskServiceImpl) GetTask(ctx context.Context, id int64) (*entity.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get task", "task_id", id, "error", err)
		return nil, transportErr("load task", err)
	}
	if task == nil {
		return nil, wrap(ErrTaskNotFound, "get task", nil)
	}
	return task, nil
}

// LoadView fetches documents and marks once and fans them out to every slot
func (s *taskServiceImpl) LoadView(ctx context.Context, id int64) (*ComplianceView, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	docs, err := s.compliance.Get(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	marks, err := s.verification.Get(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	reachable := false
	if project, err := s.projectRepo.GetByID(ctx, task.ProjectID); err != nil {
		s.logger.Error("Failed to load project", "project_id", task.ProjectID, "error", err)
	} else if project != nil {
		reachable = project.Client.HasChannel()
	}

	view := &ComplianceView{
		Task:              task,
		Tags:              make([]TagView, 0, len(task.Tags)),
		Unfilled:          []entity.DocumentRequirement{},
		ClientReachable:   reachable,
		PermittedStatuses: s.lifecycle.PermittedStatuses(task),
	}

	for _, group := range groupRequirements(task.Tags) {
		tv := TagView{Tag: group.Tag, Known: group.Known, Slots: make([]SlotView, 0, len(group.Requirements))}
		for _, req := range group.Requirements {
			key := req.SlotKey()
			doc := docs[key]
			inFlight := s.reminders.InFlight(task.ID, key)
			tv.Slots = append(tv.Slots, SlotView{
				Requirement:      req,
				SlotKey:          key,
				Document:         doc,
				Verified:         marks[key],
				CanVerify:        doc != nil,
				CanRemind:        doc == nil && reachable && !inFlight,
				ReminderInFlight: inFlight,
			})
			if req.Required && doc == nil {
				view.Unfilled = append(view.Unfilled, req)
			}
		}
		view.Tags = append(view.Tags, tv)
	}
	return view, nil
}

// CreateTask stores the task with its attachments, then flushes staged
// compliance uploads. Staged failures are reported; the task is kept.
func (s *taskServiceImpl) CreateTask(ctx context.Context, in CreateTaskInput, draft *Draft) (*CreateTaskResult, error) {
	task, err := s.newTask(ctx, in)
	if err != nil {
		return nil, err
	}

	var stored []string
	for i, f := range in.Files {
		if f == nil || f.Size() == 0 {
			continue
		}
		p := path.Join("attachments", time.Now().Format("2006/01"), uuid.NewString()+"-"+safeSegment(f.FileName))
		if err := s.storage.Save(ctx, p, f.Content); err != nil {
			s.cleanup(ctx, stored)
			s.logger.Error("Failed to store attachment", "file_name", f.FileName, "error", err)
			return nil, transportErr("store attachment", err)
		}
		stored = append(stored, p)
		task.Attachments = append(task.Attachments, &entity.Attachment{
			Position:  i,
			FileName:  f.FileName,
			FilePath:  p,
			FileSize:  f.Size(),
			MimeType:  f.MimeType,
			CreatedAt: task.CreatedAt,
		})
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.taskRepo.Create(txCtx, task)
	})
	if err != nil {
		s.cleanup(ctx, stored)
		s.logger.Error("Failed to create task", "title", task.Title, "error", err)
		return nil, transportErr("create task", err)
	}

	result := &CreateTaskResult{Task: task, StagedUploads: []FlushResult{}}
	if draft.Len() > 0 {
		result.StagedUploads = s.compliance.Flush(ctx, draft, task.ID, in.CreatedBy)
		for _, r := range result.StagedUploads {
			if r.Err != nil {
				result.FailedUploads++
			}
		}
	}

	s.logger.Info("Task created",
		"task_id", task.ID,
		"project_id", task.ProjectID,
		"attachments", len(task.Attachments),
		"staged_uploads", len(result.StagedUploads),
		"failed_uploads", result.FailedUploads,
	)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewTaskCreated(task, in.CreatedBy))
	}
	return result, nil
}

func (s *taskServiceImpl) newTask(ctx context.Context, in CreateTaskInput) (*entity.Task, error) {
	const op = "create task"

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationErr(op, "title is required")
	}
	if in.Status == "" {
		in.Status = entity.TaskStatusPending
	}
	if !in.Status.IsValid() {
		return nil, validationErr(op, "unknown status %q", in.Status)
	}
	if in.Priority == "" {
		in.Priority = entity.PriorityMedium
	}
	if !in.Priority.IsValid() {
		return nil, validationErr(op, "unknown priority %q", in.Priority)
	}
	if in.Amount < 0 {
		return nil, validationErr(op, "amount cannot be negative")
	}
	if in.Rating != nil && !entity.ValidRating(*in.Rating) {
		return nil, wrap(ErrRatingOutOfRange, op, nil)
	}
	if in.Status == entity.TaskStatusCompleted && entity.IsVerificationTitle(title) && in.Rating == nil {
		return nil, wrap(ErrRatingRequired, op, nil)
	}

	project, err := s.projectRepo.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, transportErr("load project", err)
	}
	if project == nil {
		return nil, wrap(ErrProjectNotFound, op, nil)
	}

	now := time.Now()
	return &entity.Task{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
		Tags:        normalizeTags(in.Tags),
		ProjectID:   project.ID,
		AssignedTo:  strings.TrimSpace(in.AssignedTo),
		DueDate:     in.DueDate,
		Amount:      in.Amount,
		Rating:      in.Rating,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateTask applies the non-lifecycle fields and any status change in one
// transaction. A refused status change leaves the task untouched.
func (s *taskServiceImpl) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (*entity.Task, error) {
	const op = "update task"

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Rating != nil && patch.Status == nil {
		return nil, validationErr(op, "rating can only be set together with a status")
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, validationErr(op, "unknown status %q", *patch.Status)
	}
	if patch.Rating != nil && !entity.ValidRating(*patch.Rating) {
		return nil, wrap(ErrRatingOutOfRange, op, nil)
	}

	updated := task.Clone()
	changed := false
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, validationErr(op, "title is required")
		}
		updated.Title = title
		changed = true
	}
	if patch.Description != nil {
		updated.Description = strings.TrimSpace(*patch.Description)
		changed = true
	}
	if patch.Priority != nil {
		if !patch.Priority.IsValid() {
			return nil, validationErr(op, "unknown priority %q", *patch.Priority)
		}
		updated.Priority = *patch.Priority
		changed = true
	}
	if patch.Tags != nil {
		updated.Tags = normalizeTags(patch.Tags)
		changed = true
	}
	if patch.AssignedTo != nil {
		updated.AssignedTo = strings.TrimSpace(*patch.AssignedTo)
		changed = true
	}
	if patch.DueDate != nil {
		updated.DueDate = patch.DueDate
		changed = true
	}
	if patch.Amount != nil {
		if *patch.Amount < 0 {
			return nil, validationErr(op, "amount cannot be negative")
		}
		updated.Amount = *patch.Amount
		changed = true
	}

	var move *TransitionInput
	if patch.Status != nil && *patch.Status != task.Status {
		move = &TransitionInput{
			TaskID: id,
			Status: *patch.Status,
			Rating: patch.Rating,
			Actor:  patch.Actor,
		}
		// A retitle can turn the task into a verification task, so the
		// gate runs against the patched fields before anything is written.
		if err := s.lifecycle.Check(updated, *move); err != nil {
			return nil, err
		}
	}
	if !changed && move == nil {
		return updated, nil
	}

	var result *entity.Task
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if changed {
			updated.UpdatedAt = time.Now()
			if err := s.taskRepo.Update(txCtx, updated); err != nil {
				s.logger.Error("Failed to update task", "task_id", id, "error", err)
				return transportErr("save task", err)
			}
		}
		result = updated
		if move == nil {
			return nil
		}
		moved, err := s.lifecycle.Transition(txCtx, *move)
		if err != nil {
			return err
		}
		result = moved
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, transportErr("save task", err)
	}
	return result, nil
}

// Documents returns the task's compliance documents keyed by slot
func (s *taskServiceImpl) Documents(ctx context.Context, taskID int64) (map[string]*entity.ComplianceDocument, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.compliance.Get(ctx, taskID)
}

// UploadDocument stores a compliance file for a persisted task
func (s *taskServiceImpl) UploadDocument(ctx context.Context, in UploadInput) (*entity.ComplianceDocument, error) {
	if in.TaskID <= 0 {
		return nil, wrap(ErrTaskNotPersisted, "upload document", nil)
	}
	doc, err := s.compliance.Upload(ctx, in)
	if err != nil {
		return nil, err
	}
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeDocumentUploaded, in.TaskID, map[string]interface{}{
			"slot":        doc.SlotKey(),
			"document_id": doc.ID,
			"file_name":   doc.FileName,
		}).WithActor(in.UploadedBy))
	}
	return doc, nil
}

// RemoveDocument detaches a document; its verification mark is kept
func (s *taskServiceImpl) RemoveDocument(ctx context.Context, taskID, documentID int64, actor string) error {
	doc, err := s.compliance.Remove(ctx, taskID, documentID)
	if err != nil {
		return err
	}
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeDocumentRemoved, taskID, map[string]interface{}{
			"slot":        doc.SlotKey(),
			"document_id": doc.ID,
		}).WithActor(actor))
	}
	return nil
}

// Verification returns the task's verification marks
func (s *taskServiceImpl) Verification(ctx context.Context, taskID int64) (map[string]bool, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.verification.Get(ctx, taskID)
}

// SetVerified refuses to verify a slot with no document. Unverifying is
// always allowed.
func (s *taskServiceImpl) SetVerified(ctx context.Context, in SetVerifiedInput) (map[string]bool, error) {
	if _, err := s.GetTask(ctx, in.TaskID); err != nil {
		return nil, err
	}
	if in.Verified {
		docs, err := s.compliance.Get(ctx, in.TaskID)
		if err != nil {
			return nil, err
		}
		if docs[entity.SlotKey(canonicalTag(in.Tag), in.DocumentType)] == nil {
			return nil, wrap(ErrNoDocument, "set verification", nil)
		}
	}
	return s.verification.SetVerified(ctx, in.TaskID, in.Tag, in.DocumentType, in.Verified)
}

// RemindClient sends a reminder for a missing document
func (s *taskServiceImpl) RemindClient(ctx context.Context, in RemindInput) (*ReminderAck, error) {
	return s.reminders.Remind(ctx, in)
}

// Transition changes a task's status
func (s *taskServiceImpl) Transition(ctx context.Context, in TransitionInput) (*entity.Task, error) {
	return s.lifecycle.Transition(ctx, in)
}

// ExportChecklist renders the compliance view into a spreadsheet
func (s *taskServiceImpl) ExportChecklist(ctx context.Context, taskID int64) ([]byte, error) {
	view, err := s.LoadView(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var rows []port.ChecklistRow
	for _, tv := range view.Tags {
		for _, slot := range tv.Slots {
			row := port.ChecklistRow{
				Tag:          slot.Requirement.Tag,
				DocumentType: slot.Requirement.DocumentType,
				DisplayName:  slot.Requirement.DisplayName,
				Required:     slot.Requirement.Required,
				Verified:     slot.Verified,
			}
			if slot.Document != nil {
				row.FileName = slot.Document.FileName
				row.UploadedAt = slot.Document.UploadedAt.Format("2006-01-02 15:04")
			}
			rows = append(rows, row)
		}
	}

	data, err := s.exporter.Export(view.Task, rows)
	if err != nil {
		s.logger.Error("Failed to export checklist", "task_id", taskID, "error", err)
		return nil, fmt.Errorf("export checklist: %w", err)
	}
	return data, nil
}

func (s *taskServiceImpl) cleanup(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.storage.Delete(ctx, p); err != nil {
			s.logger.Error("Failed to clean up stored file", "path", p, "error", err)
		}
	}
}

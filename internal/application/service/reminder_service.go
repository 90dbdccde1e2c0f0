package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/taskdoc/internal/application/dispatcher"
	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/domain/event"
	"github.com/garyjia/taskdoc/internal/domain/registry"
)

// RemindInput asks the client for one missing document
type RemindInput struct {
	TaskID       int64
	Tag          string
	DocumentType string
	DocumentName string
	RequestedBy  string
}

// ReminderAck confirms a delivered reminder
type ReminderAck struct {
	TaskID    int64     `json:"task_id"`
	SlotKey   string    `json:"slot_key"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sent_at"`
	Message   string    `json:"message"`
}

// ReminderService sends one-shot reminders to a project's client
type ReminderService interface {
	Remind(ctx context.Context, in RemindInput) (*ReminderAck, error)

	// InFlight reports whether a reminder for the slot is being sent
	InFlight(taskID int64, slotKey string) bool
}

type reminderServiceImpl struct {
	taskRepo    port.TaskRepository
	projectRepo port.ProjectRepository
	docRepo     port.DocumentRepository
	logRepo     port.ReminderLogRepository
	sender      port.ReminderSender
	dispatcher  dispatcher.Dispatcher
	inFlight    *inFlightSet
	logger      Logger
}

// NewReminderService creates a new ReminderService
func NewReminderService(
	taskRepo port.TaskRepository,
	projectRepo port.ProjectRepository,
	docRepo port.DocumentRepository,
	logRepo port.ReminderLogRepository,
	sender port.ReminderSender,
	d dispatcher.Dispatcher,
	logger Logger,
) ReminderService {
	return &reminderServiceImpl{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		docRepo:     docRepo,
		logRepo:     logRepo,
		sender:      sender,
		dispatcher:  d,
		inFlight:    newInFlightSet(),
		logger:      logger,
	}
}

func inFlightKey(taskID int64, slotKey string) string {
	return fmt.Sprintf("%d/%s", taskID, slotKey)
}

// InFlight reports whether a reminder for the slot is being sent
func (s *reminderServiceImpl) InFlight(taskID int64, slotKey string) bool {
	return s.inFlight.Has(inFlightKey(taskID, slotKey))
}

// Remind checks, in order: the task is saved, the client is reachable, no
// reminder for the slot is in flight, and the slot is still empty. Any failed
// check returns without sending.
func (s *reminderServiceImpl) Remind(ctx context.Context, in RemindInput) (*ReminderAck, error) {
	if in.TaskID <= 0 {
		return nil, wrap(ErrTaskNotPersisted, "remind client", nil)
	}
	req, ok := registry.Lookup(in.Tag, in.DocumentType)
	if !ok {
		return nil, wrap(ErrUnknownSlot, "remind client", nil)
	}
	if in.DocumentName == "" {
		in.DocumentName = req.DisplayName
	}

	task, err := s.taskRepo.GetByID(ctx, in.TaskID)
	if err != nil {
		return nil, transportErr("load task", err)
	}
	if task == nil {
		return nil, wrap(ErrTaskNotPersisted, "remind client", nil)
	}

	project, err := s.projectRepo.GetByID(ctx, task.ProjectID)
	if err != nil {
		return nil, transportErr("load project", err)
	}
	if project == nil || !project.Client.HasChannel() {
		s.logger.Info("Reminder skipped, no client contact", "task_id", task.ID, "project_id", task.ProjectID)
		return nil, wrap(ErrNoClientContact, "remind client", nil)
	}

	key := inFlightKey(task.ID, req.SlotKey())
	if !s.inFlight.TryAcquire(key) {
		return nil, wrap(ErrReminderInFlight, "remind client", nil)
	}
	defer s.inFlight.Release(key)

	existing, err := s.docRepo.GetBySlot(ctx, task.ID, req.Tag, req.DocumentType)
	if err != nil {
		return nil, transportErr("check document", err)
	}
	if existing != nil {
		return nil, wrap(ErrSlotSatisfied, "remind client", nil)
	}

	logEntry := &entity.ReminderLog{
		TaskID:       task.ID,
		Tag:          req.Tag,
		DocumentType: req.DocumentType,
		DocumentName: in.DocumentName,
		Status:       entity.ReminderStatusPending,
		RequestedBy:  in.RequestedBy,
		CreatedAt:    time.Now(),
	}
	if err := s.logRepo.Create(ctx, logEntry); err != nil {
		s.logger.Error("Failed to record reminder", "task_id", task.ID, "slot", req.SlotKey(), "error", err)
		logEntry = nil
	}

	receipt, err := s.sender.Send(ctx, port.ReminderMessage{
		TaskID:       task.ID,
		TaskTitle:    task.Title,
		ProjectName:  project.Name,
		Tag:          req.Tag,
		DocumentType: req.DocumentType,
		DocumentName: in.DocumentName,
		Contact:      project.Client,
		RequestedBy:  in.RequestedBy,
	})
	if err != nil {
		s.logger.Error("Failed to send reminder", "task_id", task.ID, "slot", req.SlotKey(), "error", err)
		if logEntry != nil {
			if mErr := s.logRepo.MarkFailed(ctx, logEntry.ID, err.Error()); mErr != nil {
				s.logger.Error("Failed to mark reminder failed", "reminder_id", logEntry.ID, "error", mErr)
			}
		}
		return nil, transportErr("send reminder", err)
	}

	if logEntry != nil {
		if mErr := s.logRepo.MarkSent(ctx, logEntry.ID, receipt.Channel, receipt.Recipient); mErr != nil {
			s.logger.Error("Failed to mark reminder sent", "reminder_id", logEntry.ID, "error", mErr)
		}
	}

	ack := &ReminderAck{
		TaskID:    task.ID,
		SlotKey:   req.SlotKey(),
		Channel:   receipt.Channel,
		Recipient: receipt.Recipient,
		SentAt:    time.Now(),
		Message:   fmt.Sprintf("Reminder sent to %s for %s", project.Client.Name, in.DocumentName),
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeReminderSent, task.ID, map[string]interface{}{
			"slot":    ack.SlotKey,
			"channel": ack.Channel,
		}).WithActor(in.RequestedBy))
	}

	s.logger.Info("Reminder sent", "task_id", task.ID, "slot", ack.SlotKey, "channel", ack.Channel)
	return ack, nil
}

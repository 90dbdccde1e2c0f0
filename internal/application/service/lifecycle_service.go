package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/taskdoc/internal/application/dispatcher"
	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/domain/event"
	"github.com/garyjia/taskdoc/internal/domain/workflow"
)

// TransitionInput requests a status change, optionally with a rating
type TransitionInput struct {
	TaskID int64
	Status entity.TaskStatus
	Rating *float64
	Actor  string
}

// LifecycleService moves tasks through their status graph
type LifecycleService interface {
	// Transition validates and persists a status change. The returned task
	// reflects the stored state.
	Transition(ctx context.Context, in TransitionInput) (*entity.Task, error)

	// Check reports whether task may take the change in without writing
	// anything. A nil error from Check does not reserve the transition.
	Check(task *entity.Task, in TransitionInput) error

	// PermittedStatuses lists the statuses the task may move to
	PermittedStatuses(task *entity.Task) []entity.TaskStatus
}

type lifecycleServiceImpl struct {
	taskRepo   port.TaskRepository
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	taskRepo port.TaskRepository,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) LifecycleService {
	return &lifecycleServiceImpl{
		taskRepo:   taskRepo,
		txManager:  txManager,
		dispatcher: d,
		logger:     logger,
	}
}

// statusMove is a checked transition ready to be written
type statusMove struct {
	to     entity.TaskStatus
	rating *float64
}

func validateInput(in TransitionInput) error {
	if !workflow.State(in.Status).IsValid() {
		return validationErr("change status", "unknown status %q", in.Status)
	}
	if in.Rating == nil {
		return nil
	}
	if in.Status != entity.TaskStatusCompleted {
		return validationErr("change status", "a rating can only be given when completing a task")
	}
	if !entity.ValidRating(*in.Rating) {
		return wrap(ErrRatingOutOfRange, "change status", nil)
	}
	return nil
}

// plan fires the trigger for in.Status against a machine positioned at the
// task's status. A nil move means the task is already there.
func (s *lifecycleServiceImpl) plan(ctx context.Context, task *entity.Task, in TransitionInput) (*statusMove, error) {
	if !workflow.State(task.Status).IsValid() {
		return nil, wrap(ErrInvalidTransition, "change status", workflow.ErrInvalidState)
	}
	if task.HasRating() && in.Rating != nil && *task.Rating != *in.Rating {
		return nil, wrap(ErrRatingAlreadySet, "change status", nil)
	}
	if task.Status == in.Status {
		return nil, nil
	}

	trigger, _ := workflow.TriggerFor(workflow.State(in.Status))
	moved, err := workflow.NewTaskMachine(task, in.Rating).Fire(ctx, trigger)
	if err != nil {
		s.logger.Info("Status change refused",
			"task_id", task.ID,
			"from", task.Status,
			"to", in.Status,
			"reason", err.Error(),
		)
		if errors.Is(err, workflow.ErrGuardFailed) {
			return nil, wrap(ErrRatingRequired, "change status", nil)
		}
		return nil, wrap(ErrInvalidTransition, "change status", err)
	}

	move := &statusMove{to: moved.To.Status()}
	if !task.HasRating() && in.Rating != nil {
		r := *in.Rating
		move.rating = &r
	}
	return move, nil
}

// Check runs the graph and the rating gate against task as given
func (s *lifecycleServiceImpl) Check(task *entity.Task, in TransitionInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	_, err := s.plan(context.Background(), task, in)
	return err
}

// Transition loads the task, checks the move and writes it guarded by the
// status it was checked against. Losing that race is a conflict.
func (s *lifecycleServiceImpl) Transition(ctx context.Context, in TransitionInput) (*entity.Task, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var updated *entity.Task
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		task, err := s.taskRepo.GetByID(txCtx, in.TaskID)
		if err != nil {
			return transportErr("load task", err)
		}
		if task == nil {
			return wrap(ErrTaskNotFound, "change status", nil)
		}

		move, err := s.plan(txCtx, task, in)
		if err != nil {
			return err
		}
		if move == nil {
			updated = task
			return nil
		}

		if err := s.taskRepo.UpdateStatus(txCtx, task.ID, task.Status, move.to, move.rating); err != nil {
			if errors.Is(err, port.ErrStatusChanged) {
				return wrap(ErrInvalidTransition, "change status", err)
			}
			s.logger.Error("Failed to persist status", "task_id", task.ID, "to", in.Status, "error", err)
			return transportErr("save status", err)
		}

		previous := task.Status
		updated = task.Clone()
		updated.Status = move.to
		if move.rating != nil {
			updated.Rating = move.rating
		}
		updated.UpdatedAt = time.Now()

		changed := updated.Clone()
		s.txManager.AfterCommit(txCtx, func() {
			s.logger.Info("Task status changed", "task_id", changed.ID, "from", previous, "to", changed.Status)
			if s.dispatcher != nil {
				s.dispatcher.DispatchAsync(ctx, event.NewStatusChanged(changed, previous, in.Actor))
			}
		})
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		s.logger.Error("Failed to commit status", "task_id", in.TaskID, "error", err)
		return nil, transportErr("save status", err)
	}
	return updated, nil
}

// PermittedStatuses lists the statuses reachable in one step. Guards are
// not evaluated.
func (s *lifecycleServiceImpl) PermittedStatuses(task *entity.Task) []entity.TaskStatus {
	if !workflow.State(task.Status).IsValid() {
		return []entity.TaskStatus{}
	}
	reachable := workflow.NewTaskMachine(task, nil).Reachable()
	out := make([]entity.TaskStatus, 0, len(reachable))
	for _, st := range reachable {
		out = append(out, st.Status())
	}
	return out
}

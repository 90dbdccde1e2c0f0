package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/registry"
)

// VerificationService tracks which compliance slots a reviewer has verified
type VerificationService interface {
	// Get returns the task's marks keyed by slot key
	Get(ctx context.Context, taskID int64) (map[string]bool, error)

	// SetVerified records a mark and returns the task's updated marks
	SetVerified(ctx context.Context, taskID int64, tag, documentType string, verified bool) (map[string]bool, error)
}

type verificationServiceImpl struct {
	store  port.VerificationStore
	logger Logger
	tasks  *keyedMutex

	// mu guards the cache map only. Cached mark sets are replaced, never
	// mutated, so they may be read after mu is released.
	mu    sync.Mutex
	cache map[int64]map[string]bool
}

// NewVerificationService creates a new VerificationService backed by a keyed store
func NewVerificationService(store port.VerificationStore, logger Logger) VerificationService {
	return &verificationServiceImpl{
		store:  store,
		logger: logger,
		tasks:  newKeyedMutex(),
		cache:  make(map[int64]map[string]bool),
	}
}

// Get returns a copy of the task's marks, loading them on first use
func (s *verificationServiceImpl) Get(ctx context.Context, taskID int64) (map[string]bool, error) {
	unlock := s.tasks.Lock(taskKey(taskID))
	defer unlock()

	marks, err := s.loadLocked(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return copyMarks(marks), nil
}

// SetVerified writes through to the store; the cache only changes once the
// store accepted the new marks.
func (s *verificationServiceImpl) SetVerified(ctx context.Context, taskID int64, tag, documentType string, verified bool) (map[string]bool, error) {
	req, ok := registry.Lookup(tag, documentType)
	if !ok {
		return nil, wrap(ErrUnknownSlot, "set verification", nil)
	}

	unlock := s.tasks.Lock(taskKey(taskID))
	defer unlock()

	current, err := s.loadLocked(ctx, taskID)
	if err != nil {
		return nil, err
	}

	next := copyMarks(current)
	next[req.SlotKey()] = verified

	if err := s.store.Save(ctx, taskID, next); err != nil {
		s.logger.Error("Failed to save verification marks", "task_id", taskID, "slot", req.SlotKey(), "error", err)
		return nil, transportErr("save verification", err)
	}
	s.mu.Lock()
	s.cache[taskID] = next
	s.mu.Unlock()

	s.logger.Info("Verification updated", "task_id", taskID, "slot", req.SlotKey(), "verified", verified)
	return copyMarks(next), nil
}

// loadLocked expects the caller to hold the task's lock
func (s *verificationServiceImpl) loadLocked(ctx context.Context, taskID int64) (map[string]bool, error) {
	s.mu.Lock()
	marks, ok := s.cache[taskID]
	s.mu.Unlock()
	if ok {
		return marks, nil
	}

	marks, err := s.store.Load(ctx, taskID)
	if err != nil {
		s.logger.Error("Failed to load verification marks", "task_id", taskID, "error", err)
		return nil, transportErr("load verification", err)
	}
	if marks == nil {
		marks = make(map[string]bool)
	}
	s.mu.Lock()
	s.cache[taskID] = marks
	s.mu.Unlock()
	return marks, nil
}

func taskKey(taskID int64) string {
	return strconv.FormatInt(taskID, 10)
}

func copyMarks(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}


package entity

import (
	"strings"
	"time"
)

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusReview, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskPriority is the priority of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// IsValid reports whether p is one of the known priorities.
func (p TaskPriority) IsValid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Rating bounds for the verification task gate.
const (
	MinRating = 0.0
	MaxRating = 10.0
)

// verificationTitleMarker identifies the verification task type by title.
const verificationTitleMarker = "verification task"

// Task is a unit of work tracked against a project.
//
// Compliance documents and verification marks are not embedded here; they are
// owned by the compliance subsystem and referenced by task ID.
type Task struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`

	// Tags keep their display order; compliance treats them as a set.
	Tags []string `json:"tags"`

	ProjectID  int64      `json:"project_id"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Amount     float64    `json:"amount"`
	Rating     *float64   `json:"rating,omitempty"`

	Attachments []*Attachment `json:"attachments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPersisted reports whether the task has been stored and has a real ID.
func (t *Task) IsPersisted() bool {
	return t != nil && t.ID > 0
}

// IsVerificationTask reports whether the task is the distinguished verification
// task type whose completion is gated on a rating.
func (t *Task) IsVerificationTask() bool {
	return IsVerificationTitle(t.Title)
}

// HasRating reports whether a rating has been recorded.
func (t *Task) HasRating() bool {
	return t.Rating != nil
}

// Clone returns a copy that shares no mutable state with t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.Rating != nil {
		r := *t.Rating
		c.Rating = &r
	}
	if t.Attachments != nil {
		c.Attachments = make([]*Attachment, len(t.Attachments))
		for i, a := range t.Attachments {
			cp := *a
			c.Attachments[i] = &cp
		}
	}
	return &c
}

// IsVerificationTitle reports whether a title names a verification task.
func IsVerificationTitle(title string) bool {
	return strings.Contains(strings.ToLower(title), verificationTitleMarker)
}

// ValidRating reports whether r lies within the accepted rating range.
func ValidRating(r float64) bool {
	return r >= MinRating && r <= MaxRating
}

package event

import (
	"fmt"
	"time"

	"github.com/garyjia/taskdoc/internal/domain/entity"
)

// Notification actions carried on the real-time channel.
const (
	ActionCreateTask       = "create_task"
	ActionUpdateTaskStatus = "update_task_status"
)

// Notification is the message pushed to connected clients.
type Notification struct {
	Type      string           `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	TaskID    int64            `json:"taskId"`
	Action    string           `json:"action"`
	Data      NotificationData `json:"data"`
}

// NotificationData summarizes the task the notification is about.
type NotificationData struct {
	Title      string  `json:"title"`
	ProjectID  int64   `json:"projectId"`
	AssignedTo string  `json:"assignedTo,omitempty"`
	Priority   string  `json:"priority"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount"`
}

// TaskPayload flattens a task into an event payload.
func TaskPayload(task *entity.Task) map[string]interface{} {
	return map[string]interface{}{
		"title":       task.Title,
		"project_id":  task.ProjectID,
		"assigned_to": task.AssignedTo,
		"priority":    string(task.Priority),
		"status":      string(task.Status),
		"amount":      task.Amount,
	}
}

// NewTaskCreated builds the creation event for a stored task.
func NewTaskCreated(task *entity.Task, actor string) *Event {
	return NewEvent(TypeTaskCreated, task.ID, TaskPayload(task)).WithActor(actor)
}

// NewStatusChanged builds the status change event after a transition.
func NewStatusChanged(task *entity.Task, from entity.TaskStatus, actor string) *Event {
	return NewEvent(TypeStatusChanged, task.ID, TaskPayload(task)).
		WithPayload("previous_status", string(from)).
		WithActor(actor)
}

// ToNotification converts a task event into its real-time message.
// ok is false for event types that are not broadcast.
func ToNotification(e *Event) (Notification, bool) {
	n := Notification{
		Type:      "notification",
		Timestamp: e.Timestamp,
		TaskID:    e.TaskID,
		Data: NotificationData{
			Title:      e.GetPayloadString("title"),
			ProjectID:  e.GetPayloadInt("project_id"),
			AssignedTo: e.GetPayloadString("assigned_to"),
			Priority:   e.GetPayloadString("priority"),
			Status:     e.GetPayloadString("status"),
			Amount:     e.GetPayloadFloat("amount"),
		},
	}

	switch e.Type {
	case TypeTaskCreated:
		n.Action = ActionCreateTask
		n.Message = fmt.Sprintf("New task created: %s", n.Data.Title)
	case TypeStatusChanged:
		n.Action = ActionUpdateTaskStatus
		n.Message = fmt.Sprintf("Task %q moved to %s", n.Data.Title, n.Data.Status)
	default:
		return Notification{}, false
	}
	return n, true
}

package port

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/taskdoc/internal/domain/entity"
)

// ReminderMessage is a request to a client for one missing document
type ReminderMessage struct {
	TaskID       int64
	TaskTitle    string
	ProjectName  string
	Tag          string
	DocumentType string
	DocumentName string
	Contact      entity.ClientContact
	RequestedBy  string
}

// DeliveryReceipt describes where a reminder went
type DeliveryReceipt struct {
	Channel   string
	Recipient string
	MessageID string
}

// ReminderSender delivers a reminder to the client
type ReminderSender interface {
	Send(ctx context.Context, msg ReminderMessage) (*DeliveryReceipt, error)
}

// ChecklistRow is one slot in an exported compliance checklist
type ChecklistRow struct {
	Tag          string
	DocumentType string
	DisplayName  string
	Required     bool
	FileName     string
	UploadedAt   string
	Verified     bool
}

// ChecklistExporter renders a compliance checklist into a file
type ChecklistExporter interface {
	Export(task *entity.Task, rows []ChecklistRow) ([]byte, error)
}

// Broadcaster pushes real-time messages to connected clients
type Broadcaster interface {
	Broadcast(v interface{}) error
}

// Text renders the reminder as plain text for the client
func (m ReminderMessage) Text() string {
	greeting := "Hello"
	if name := strings.TrimSpace(m.Contact.Name); name != "" {
		greeting = "Hello " + name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s, we still need your %s", greeting, m.DocumentName)
	if m.Tag != "" {
		fmt.Fprintf(&b, " (%s)", m.Tag)
	}
	if m.ProjectName != "" {
		fmt.Fprintf(&b, " for %s", m.ProjectName)
	}
	if m.TaskTitle != "" {
		fmt.Fprintf(&b, ", task %q", m.TaskTitle)
	}
	b.WriteString(". Please share it at your earliest convenience.")
	return b.String()
}

package event

// Type identifies the type of domain event
type Type string

const (
	TypeTaskCreated      Type = "task.created"
	TypeStatusChanged    Type = "task.status_changed"
	TypeDocumentUploaded Type = "document.uploaded"
	TypeDocumentRemoved  Type = "document.removed"
	TypeReminderSent     Type = "reminder.sent"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTaskCreated,
		TypeStatusChanged,
		TypeDocumentUploaded,
		TypeDocumentRemoved,
		TypeReminderSent:
		return true
	default:
		return false
	}
}

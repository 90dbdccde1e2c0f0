package entity

// Reminder log status constants
const (
	ReminderStatusPending = "PENDING"
	ReminderStatusSent    = "SENT"
	ReminderStatusFailed  = "FAILED"
)

// Reminder delivery channels
const (
	ChannelLark    = "lark"
	ChannelGateway = "gateway"
)

// VerificationKeyPrefix namespaces persisted verification marks by task.
const VerificationKeyPrefix = "taskdoc-verify-"

package entity

import (
	"strings"
	"time"
)

// DocumentRequirement describes one document a tag asks for.
type DocumentRequirement struct {
	Tag          string `json:"tag"`
	DocumentType string `json:"document_type"`
	DisplayName  string `json:"display_name"`
	Required     bool   `json:"required"`
}

// SlotKey returns the key identifying the requirement's slot.
func (r DocumentRequirement) SlotKey() string {
	return SlotKey(r.Tag, r.DocumentType)
}

// SlotKey builds the lookup key for a (tag, documentType) slot. Clients key
// document and verification maps with exactly this string.
func SlotKey(tag, documentType string) string {
	return tag + "-" + documentType
}

// SplitSlotKey splits a key built by SlotKey. Tags never contain '-', so the
// first separator is the boundary.
func SplitSlotKey(key string) (tag, documentType string, ok bool) {
	i := strings.Index(key, "-")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// ComplianceDocument is the file currently filling a slot of a task.
type ComplianceDocument struct {
	ID           int64     `json:"id"`
	TaskID       int64     `json:"task_id"`
	Tag          string    `json:"tag"`
	DocumentType string    `json:"document_type"`
	FileName     string    `json:"file_name"`
	FilePath     string    `json:"file_path"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type,omitempty"`
	UploadedBy   string    `json:"uploaded_by,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// SlotKey returns the key of the slot this document fills.
func (d *ComplianceDocument) SlotKey() string {
	return SlotKey(d.Tag, d.DocumentType)
}

// ReminderLog records one attempt to remind a client about a missing document.
type ReminderLog struct {
	ID           int64      `json:"id"`
	TaskID       int64      `json:"task_id"`
	Tag          string     `json:"tag"`
	DocumentType string     `json:"document_type"`
	DocumentName string     `json:"document_name"`
	Channel      string     `json:"channel,omitempty"`
	Recipient    string     `json:"recipient,omitempty"`
	Status       string     `json:"status"`
	RequestedBy  string     `json:"requested_by,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

package entity

import "strings"

// ClientContact is how the firm reaches a project's client.
type ClientContact struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	LarkChatID string `json:"lark_chat_id,omitempty"`
}

// HasChannel reports whether at least one delivery channel is on file.
func (c ClientContact) HasChannel() bool {
	return strings.TrimSpace(c.Phone) != "" ||
		strings.TrimSpace(c.Email) != "" ||
		strings.TrimSpace(c.LarkChatID) != ""
}

// Project groups tasks for one client engagement.
type Project struct {
	ID     int64         `json:"id"`
	Name   string        `json:"name"`
	Client ClientContact `json:"client"`
}

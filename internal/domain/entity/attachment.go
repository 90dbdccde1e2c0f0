package entity

import "time"

// Attachment is a generic file attached to a task. Attachments are distinct
// from compliance documents and have no slot.
type Attachment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Position  int       `json:"position"`
	FileName  string    `json:"file_name"`
	FilePath  string    `json:"file_path"`
	FileSize  int64     `json:"file_size"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// FileUpload is file content received from a client, before it is stored.
type FileUpload struct {
	FileName string
	MimeType string
	Content  []byte
}

// Size returns the content length in bytes.
func (f *FileUpload) Size() int64 {
	return int64(len(f.Content))
}

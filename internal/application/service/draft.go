package service

import (
	"sync"

	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/domain/registry"
)

// StagedDocument is a compliance file chosen before its task exists.
type StagedDocument struct {
	Tag          string
	DocumentType string
	File         *entity.FileUpload
	Temporary    bool
}

// SlotKey returns the slot the staged file will fill.
func (s *StagedDocument) SlotKey() string {
	return entity.SlotKey(s.Tag, s.DocumentType)
}

// Draft holds staged compliance files for a task that has not been created.
// Staging the same slot twice keeps the latest file.
type Draft struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*StagedDocument
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{entries: make(map[string]*StagedDocument)}
}

// Stage records a file for a slot. The slot must be known to the registry.
func (d *Draft) Stage(tag, documentType string, file *entity.FileUpload) error {
	req, ok := registry.Lookup(tag, documentType)
	if !ok {
		return wrap(ErrUnknownSlot, "stage document", nil)
	}
	if file == nil || file.Size() == 0 {
		return wrap(ErrEmptyFile, "stage document", nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := req.SlotKey()
	if _, exists := d.entries[key]; !exists {
		d.order = append(d.order, key)
	}
	d.entries[key] = &StagedDocument{
		Tag:          req.Tag,
		DocumentType: req.DocumentType,
		File:         file,
		Temporary:    true,
	}
	return nil
}

// Unstage drops the file staged for a slot, if any.
func (d *Draft) Unstage(tag, documentType string) {
	key := entity.SlotKey(tag, documentType)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.entries[key]; !exists {
		return
	}
	delete(d.entries, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Entries returns the staged files in staging order.
func (d *Draft) Entries() []*StagedDocument {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*StagedDocument, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.entries[k])
	}
	return out
}

// Len returns the number of staged slots.
func (d *Draft) Len() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

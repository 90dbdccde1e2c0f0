package service

import (
	"context"
	"errors"
	"sync"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
)

type mockTaskRepo struct {
	mu               sync.Mutex
	tasks            map[int64]*entity.Task
	nextID           int64
	getErr           error
	afterGet         func()
	createFunc       func(ctx context.Context, task *entity.Task) error
	updateFunc       func(ctx context.Context, task *entity.Task) error
	updateStatusFunc func(ctx context.Context, id int64, from, to entity.TaskStatus, rating *float64) error
	updateCalls      int
	statusCalls      int
}

func newMockTaskRepo(tasks ...*entity.Task) *mockTaskRepo {
	m := &mockTaskRepo{tasks: make(map[int64]*entity.Task), nextID: 100}
	for _, t := range tasks {
		m.tasks[t.ID] = t.Clone()
	}
	return m
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	task.ID = m.nextID
	for i, a := range task.Attachments {
		a.ID = int64(i + 1)
		a.TaskID = task.ID
	}
	m.tasks[task.ID] = task.Clone()
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	task := m.tasks[id].Clone()
	m.mu.Unlock()
	if m.afterGet != nil {
		m.afterGet()
	}
	return task, nil
}

func (m *mockTaskRepo) Update(ctx context.Context, task *entity.Task) error {
	m.mu.Lock()
	m.updateCalls++
	m.mu.Unlock()
	if m.updateFunc != nil {
		return m.updateFunc(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task.Clone()
	return nil
}

func (m *mockTaskRepo) UpdateStatus(ctx context.Context, id int64, from, to entity.TaskStatus, rating *float64) error {
	m.mu.Lock()
	m.statusCalls++
	m.mu.Unlock()
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, from, to, rating)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	if t.Status != from {
		return port.ErrStatusChanged
	}
	t.Status = to
	if rating != nil && t.Rating == nil {
		r := *rating
		t.Rating = &r
	}
	return nil
}

func (m *mockTaskRepo) stored(id int64) *entity.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id].Clone()
}

type mockProjectRepo struct {
	projects map[int64]*entity.Project
	err      error
}

func (m *mockProjectRepo) GetByID(ctx context.Context, id int64) (*entity.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

type mockDocumentRepo struct {
	mu         sync.Mutex
	docs       map[int64]*entity.ComplianceDocument
	nextID     int64
	upsertFunc func(ctx context.Context, doc *entity.ComplianceDocument) (*entity.ComplianceDocument, error)
	getErr     error
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{docs: make(map[int64]*entity.ComplianceDocument)}
}

func (m *mockDocumentRepo) Upsert(ctx context.Context, doc *entity.ComplianceDocument) (*entity.ComplianceDocument, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, doc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.docs {
		if d.TaskID == doc.TaskID && d.Tag == doc.Tag && d.DocumentType == doc.DocumentType {
			prev := *d
			doc.ID = id
			cp := *doc
			m.docs[id] = &cp
			return &prev, nil
		}
	}
	m.nextID++
	doc.ID = m.nextID
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil, nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id int64) (*entity.ComplianceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *mockDocumentRepo) GetByTask(ctx context.Context, taskID int64) ([]*entity.ComplianceDocument, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ComplianceDocument
	for _, d := range m.docs {
		if d.TaskID == taskID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockDocumentRepo) GetBySlot(ctx context.Context, taskID int64, tag, documentType string) (*entity.ComplianceDocument, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.TaskID == taskID && d.Tag == tag && d.DocumentType == documentType {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

type mockReminderLogRepo struct {
	mu      sync.Mutex
	logs    []*entity.ReminderLog
	sent    []int64
	failed  []int64
	failErr error
}

func (m *mockReminderLogRepo) Create(ctx context.Context, log *entity.ReminderLog) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockReminderLogRepo) GetByTask(ctx context.Context, taskID int64) ([]*entity.ReminderLog, error) {
	return m.logs, nil
}

func (m *mockReminderLogRepo) MarkSent(ctx context.Context, id int64, channel, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockReminderLogRepo) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, id)
	return nil
}

type mockVerificationStore struct {
	mu      sync.Mutex
	data    map[int64]map[string]bool
	loads   int
	saveErr error
	loadErr error
	onSave  func(taskID int64)
}

func newMockVerificationStore() *mockVerificationStore {
	return &mockVerificationStore{data: make(map[int64]map[string]bool)}
}

func (m *mockVerificationStore) Load(ctx context.Context, taskID int64) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return copyMarks(m.data[taskID]), nil
}

func (m *mockVerificationStore) Save(ctx context.Context, taskID int64, marks map[string]bool) error {
	if m.onSave != nil {
		m.onSave(taskID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[taskID] = copyMarks(marks)
	return nil
}

type mockStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
	deleted []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/data/" + relativePath
}

func (m *mockStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type mockSender struct {
	sendFunc func(ctx context.Context, msg port.ReminderMessage) (*port.DeliveryReceipt, error)
	mu       sync.Mutex
	calls    int
}

func (m *mockSender) Send(ctx context.Context, msg port.ReminderMessage) (*port.DeliveryReceipt, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.sendFunc != nil {
		return m.sendFunc(ctx, msg)
	}
	return &port.DeliveryReceipt{Channel: entity.ChannelGateway, Recipient: msg.Contact.Phone}, nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockTxKey struct{}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(mockTxKey{}).(*[]func()); ok {
		return fn(ctx)
	}
	var hooks []func()
	if err := fn(context.WithValue(ctx, mockTxKey{}, &hooks)); err != nil {
		return err
	}
	for _, h := range hooks {
		h()
	}
	return nil
}

func (m *mockTxManager) AfterCommit(ctx context.Context, fn func()) {
	if hooks, ok := ctx.Value(mockTxKey{}).(*[]func()); ok {
		*hooks = append(*hooks, fn)
		return
	}
	fn()
}

type mockExporter struct {
	rows []port.ChecklistRow
}

func (m *mockExporter) Export(task *entity.Task, rows []port.ChecklistRow) ([]byte, error) {
	m.rows = rows
	return []byte("xlsx"), nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func floatPtr(v float64) *float64 { return &v }

func testProjects() *mockProjectRepo {
	return &mockProjectRepo{projects: map[int64]*entity.Project{
		1: {ID: 1, Name: "Acme Traders", Client: entity.ClientContact{Name: "Ravi", Phone: "+919800000000"}},
		2: {ID: 2, Name: "No Contact LLP"},
	}}
}

func pdf(name string) *entity.FileUpload {
	return &entity.FileUpload{FileName: name, MimeType: "application/pdf", Content: []byte("%PDF-1.4 " + name)}
}

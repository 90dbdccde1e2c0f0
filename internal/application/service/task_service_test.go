package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/taskdoc/internal/application/dispatcher"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/domain/event"
)

type taskFixture struct {
	svc      TaskService
	tasks    *mockTaskRepo
	docs     *mockDocumentRepo
	storage  *mockStorage
	marks    *mockVerificationStore
	sender   *mockSender
	exporter *mockExporter
	events   dispatcher.Dispatcher
}

func newTaskFixture(tasks ...*entity.Task) *taskFixture {
	f := &taskFixture{
		tasks:    newMockTaskRepo(tasks...),
		docs:     newMockDocumentRepo(),
		storage:  newMockStorage(),
		marks:    newMockVerificationStore(),
		sender:   &mockSender{},
		exporter: &mockExporter{},
		events:   dispatcher.NewDispatcher(),
	}
	logger := &mockLogger{}
	projects := testProjects()
	tx := &mockTxManager{}

	compliance := NewComplianceService(f.tasks, f.docs, f.storage, logger)
	f.svc = NewTaskService(TaskServiceDeps{
		TaskRepo:     f.tasks,
		ProjectRepo:  projects,
		TxManager:    tx,
		Storage:      f.storage,
		Compliance:   compliance,
		Verification: NewVerificationService(f.marks, logger),
		Reminders:    NewReminderService(f.tasks, projects, f.docs, &mockReminderLogRepo{}, f.sender, f.events, logger),
		Lifecycle:    NewLifecycleService(f.tasks, tx, f.events, logger),
		Exporter:     f.exporter,
		Dispatcher:   f.events,
		Logger:       logger,
	})
	return f
}

func TestTaskService_RequirementsFor(t *testing.T) {
	f := newTaskFixture()

	groups := f.svc.RequirementsFor([]string{"gst", " GST ", "Payroll", "", "income  tax"})
	require.Len(t, groups, 3)

	assert.Equal(t, "GST", groups[0].Tag)
	assert.True(t, groups[0].Known)
	assert.Len(t, groups[0].Requirements, 5)

	assert.Equal(t, "Payroll", groups[1].Tag)
	assert.False(t, groups[1].Known)
	assert.NotNil(t, groups[1].Requirements)
	assert.Empty(t, groups[1].Requirements)

	assert.Equal(t, "Income Tax", groups[2].Tag)
}

func TestTaskService_CreateTask(t *testing.T) {
	f := newTaskFixture()
	created := make(chan *event.Event, 1)
	f.events.Subscribe(event.TypeTaskCreated, func(ctx context.Context, evt *event.Event) error {
		created <- evt
		return nil
	})

	draft := NewDraft()
	require.NoError(t, draft.Stage("GST", "gstr1", pdf("gstr1.pdf")))
	require.NoError(t, draft.Stage("GST", "gstr3b", pdf("gstr3b.pdf")))

	res, err := f.svc.CreateTask(context.Background(), CreateTaskInput{
		Title:     "  Q3 GST filing ",
		Tags:      []string{"gst", "GST", "Audit"},
		ProjectID: 1,
		Amount:    2500,
		Files:     []*entity.FileUpload{pdf("engagement-letter.pdf")},
		CreatedBy: "asha",
	}, draft)
	require.NoError(t, err)

	task := res.Task
	assert.True(t, task.IsPersisted())
	assert.Equal(t, "Q3 GST filing", task.Title)
	assert.Equal(t, entity.TaskStatusPending, task.Status)
	assert.Equal(t, entity.PriorityMedium, task.Priority)
	assert.Equal(t, []string{"GST", "Audit"}, task.Tags)
	require.Len(t, task.Attachments, 1)
	assert.Equal(t, "engagement-letter.pdf", task.Attachments[0].FileName)

	require.Len(t, res.StagedUploads, 2)
	assert.Equal(t, 0, res.FailedUploads)

	docs, err := f.svc.Documents(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Contains(t, docs, "GST-gstr1")
	assert.Contains(t, docs, "GST-gstr3b")

	require.NoError(t, f.events.Close())
	evt := <-created
	assert.Equal(t, task.ID, evt.TaskID)
	assert.Equal(t, "Q3 GST filing", evt.GetPayloadString("title"))
}

func TestTaskService_CreateTaskKeepsTaskWhenStagedUploadFails(t *testing.T) {
	f := newTaskFixture()
	f.docs.upsertFunc = func(ctx context.Context, doc *entity.ComplianceDocument) (*entity.ComplianceDocument, error) {
		return nil, errors.New("database is locked")
	}

	draft := NewDraft()
	require.NoError(t, draft.Stage("TDS", "form_26q", pdf("26q.pdf")))

	res, err := f.svc.CreateTask(context.Background(), CreateTaskInput{Title: "TDS Q2", Tags: []string{"TDS"}, ProjectID: 1}, draft)
	require.NoError(t, err)
	assert.True(t, res.Task.IsPersisted())
	assert.Equal(t, 1, res.FailedUploads)
	assert.NotEmpty(t, res.StagedUploads[0].Error)
}

func TestTaskService_CreateTaskValidation(t *testing.T) {
	tests := []struct {
		name     string
		input    CreateTaskInput
		wantKind Kind
		wantErr  error
	}{
		{"blank title", CreateTaskInput{Title: "  ", ProjectID: 1}, KindValidation, nil},
		{"bad priority", CreateTaskInput{Title: "x", ProjectID: 1, Priority: "urgent"}, KindValidation, nil},
		{"bad status", CreateTaskInput{Title: "x", ProjectID: 1, Status: "archived"}, KindValidation, nil},
		{"negative amount", CreateTaskInput{Title: "x", ProjectID: 1, Amount: -1}, KindValidation, nil},
		{"unknown project", CreateTaskInput{Title: "x", ProjectID: 42}, KindNotFound, ErrProjectNotFound},
		{"completed verification task without rating", CreateTaskInput{Title: "Verification Task", ProjectID: 1, Status: entity.TaskStatusCompleted}, KindGate, ErrRatingRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTaskFixture()
			_, err := f.svc.CreateTask(context.Background(), tt.input, nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, 0, f.storage.count())
		})
	}
}

func TestTaskService_CreateTaskCleansUpOnFailure(t *testing.T) {
	f := newTaskFixture()
	f.tasks.createFunc = func(ctx context.Context, task *entity.Task) error {
		return errors.New("database is locked")
	}

	_, err := f.svc.CreateTask(context.Background(), CreateTaskInput{
		Title:     "GST",
		ProjectID: 1,
		Files:     []*entity.FileUpload{pdf("a.pdf"), pdf("b.pdf")},
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 0, f.storage.count())
}

func TestTaskService_UpdateTask(t *testing.T) {
	f := newTaskFixture(&entity.Task{ID: 1, Title: "Audit FY24", Status: entity.TaskStatusInProgress, Priority: entity.PriorityLow, Tags: []string{"Audit"}, ProjectID: 1})
	ctx := context.Background()

	title := "Audit FY24 (final)"
	priority := entity.PriorityHigh
	status := entity.TaskStatusReview

	updated, err := f.svc.UpdateTask(ctx, 1, TaskPatch{Title: &title, Priority: &priority, Tags: []string{"audit", "GST"}, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, entity.PriorityHigh, updated.Priority)
	assert.Equal(t, []string{"Audit", "GST"}, updated.Tags)
	assert.Equal(t, entity.TaskStatusReview, updated.Status)

	stored := f.tasks.stored(1)
	assert.Equal(t, title, stored.Title)
	assert.Equal(t, entity.TaskStatusReview, stored.Status)
}

func TestTaskService_UpdateTaskRoutesStatusThroughGate(t *testing.T) {
	f := newTaskFixture(&entity.Task{ID: 1, Title: "Verification task - Acme", Status: entity.TaskStatusReview, ProjectID: 1})
	ctx := context.Background()
	completed := entity.TaskStatusCompleted

	_, err := f.svc.UpdateTask(ctx, 1, TaskPatch{Status: &completed})
	assert.ErrorIs(t, err, ErrRatingRequired)
	assert.Equal(t, entity.TaskStatusReview, f.tasks.stored(1).Status)

	updated, err := f.svc.UpdateTask(ctx, 1, TaskPatch{Status: &completed, Rating: floatPtr(9)})
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusCompleted, updated.Status)
	require.NotNil(t, updated.Rating)
	assert.Equal(t, 9.0, *updated.Rating)
}

func TestTaskService_UpdateTaskRefusedStatusKeepsFields(t *testing.T) {
	f := newTaskFixture(&entity.Task{ID: 1, Title: "Audit FY24", Status: entity.TaskStatusReview, Priority: entity.PriorityLow, Tags: []string{"Audit"}, ProjectID: 1})
	ctx := context.Background()

	title := "Project Verification Task"
	priority := entity.PriorityHigh
	completed := entity.TaskStatusCompleted

	updated, err := f.svc.UpdateTask(ctx, 1, TaskPatch{Title: &title, Priority: &priority, Tags: []string{"GST"}, Status: &completed})
	assert.ErrorIs(t, err, ErrRatingRequired)
	assert.Nil(t, updated)

	stored := f.tasks.stored(1)
	assert.Equal(t, "Audit FY24", stored.Title)
	assert.Equal(t, entity.PriorityLow, stored.Priority)
	assert.Equal(t, []string{"Audit"}, stored.Tags)
	assert.Equal(t, entity.TaskStatusReview, stored.Status)
	assert.Equal(t, 0, f.tasks.updateCalls)
	assert.Equal(t, 0, f.tasks.statusCalls)
}

func TestTaskService_UpdateTaskRetitleThenComplete(t *testing.T) {
	f := newTaskFixture(&entity.Task{ID: 1, Title: "Audit FY24", Status: entity.TaskStatusReview, ProjectID: 1})
	ctx := context.Background()

	title := "Project Verification Task"
	completed := entity.TaskStatusCompleted

	updated, err := f.svc.UpdateTask(ctx, 1, TaskPatch{Title: &title, Status: &completed, Rating: floatPtr(6)})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, entity.TaskStatusCompleted, updated.Status)
	require.NotNil(t, updated.Rating)
	assert.Equal(t, 6.0, *updated.Rating)

	stored := f.tasks.stored(1)
	assert.Equal(t, title, stored.Title)
	assert.Equal(t, entity.TaskStatusCompleted, stored.Status)
}

func TestTaskService_UpdateTaskValidation(t *testing.T) {
	f := newTaskFixture(&entity.Task{ID: 1, Title: "GST", Status: entity.TaskStatusPending, ProjectID: 1})
	ctx := context.Background()
	bad := entity.TaskStatus("archived")

	_, err := f.svc.UpdateTask(ctx, 1, TaskPatch{Rating: floatPtr(5)})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.UpdateTask(ctx, 1, TaskPatch{Status: &bad})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.UpdateTask(ctx, 2, TaskPatch{})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskService_SetVerifiedRequiresDocument(t *testing.T) {
	f := newTaskFixture(&entity.Task{ID: 1, Title: "GST", Status: entity.TaskStatusPending, Tags: []string{"GST"}, ProjectID: 1})
	ctx := context.Background()

	_, err := f.svc.SetVerified(ctx, SetVerifiedInput{TaskID: 1, Tag: "GST", DocumentType: "gstr1", Verified: true})
	assert.ErrorIs(t, err, ErrNoDocument)

	doc, err := f.svc.UploadDocument(ctx, UploadInput{TaskID: 1, Tag: "GST", DocumentType: "gstr1", File: pdf("a.pdf")})
	require.NoError(t, err)

	marks, err := f.svc.SetVerified(ctx, SetVerifiedInput{TaskID: 1, Tag: "gst", DocumentType: "gstr1", Verified: true})
	require.NoError(t, err)
	assert.True(t, marks["GST-gstr1"])

	// Removing the document keeps the mark
	require.NoError(t, f.svc.RemoveDocument(ctx, 1, doc.ID, "asha"))
	marks, err = f.svc.Verification(ctx, 1)
	require.NoError(t, err)
	assert.True(t, marks["GST-gstr1"])

	// Unverifying needs no document
	marks, err = f.svc.SetVerified(ctx, SetVerifiedInput{TaskID: 1, Tag: "GST", DocumentType: "gstr1", Verified: false})
	require.NoError(t, err)
	assert.False(t, marks["GST-gstr1"])
}

func TestTaskService_UploadDocumentRequiresPersistedTask(t *testing.T) {
	f := newTaskFixture()
	_, err := f.svc.UploadDocument(context.Background(), UploadInput{TaskID: 0, Tag: "GST", DocumentType: "gstr1", File: pdf("a.pdf")})
	assert.ErrorIs(t, err, ErrTaskNotPersisted)
}

func TestTaskService_LoadView(t *testing.T) {
	f := newTaskFixture(&entity.Task{ID: 1, Title: "GST", Status: entity.TaskStatusInProgress, Tags: []string{"GST", "gst", "Payroll"}, ProjectID: 1})
	ctx := context.Background()

	_, err := f.svc.UploadDocument(ctx, UploadInput{TaskID: 1, Tag: "GST", DocumentType: "gstr1", File: pdf("a.pdf")})
	require.NoError(t, err)
	_, err = f.svc.SetVerified(ctx, SetVerifiedInput{TaskID: 1, Tag: "GST", DocumentType: "gstr1", Verified: true})
	require.NoError(t, err)

	view, err := f.svc.LoadView(ctx, 1)
	require.NoError(t, err)
	assert.True(t, view.ClientReachable)
	require.Len(t, view.Tags, 2, "duplicate tags collapse")

	gst := view.Tags[0]
	require.Len(t, gst.Slots, 5)
	seen := map[string]bool{}
	for _, slot := range gst.Slots {
		assert.False(t, seen[slot.SlotKey], "slot %s rendered twice", slot.SlotKey)
		seen[slot.SlotKey] = true
	}

	filled := gst.Slots[1]
	assert.Equal(t, "GST-gstr1", filled.SlotKey)
	assert.NotNil(t, filled.Document)
	assert.True(t, filled.Verified)
	assert.True(t, filled.CanVerify)
	assert.False(t, filled.CanRemind)

	empty := gst.Slots[0]
	assert.Nil(t, empty.Document)
	assert.False(t, empty.CanVerify)
	assert.True(t, empty.CanRemind)

	assert.Equal(t, "Payroll", view.Tags[1].Tag)
	assert.Empty(t, view.Tags[1].Slots)
	assert.Len(t, view.Unfilled, 2)
	assert.Equal(t, 1, f.marks.loads, "marks are fetched once")
}

func TestTaskService_RemindClient(t *testing.T) {
	f := newTaskFixture(&entity.Task{ID: 1, Title: "GST", Status: entity.TaskStatusPending, Tags: []string{"GST"}, ProjectID: 1})

	ack, err := f.svc.RemindClient(context.Background(), RemindInput{TaskID: 1, Tag: "GST", DocumentType: "gstr3b", DocumentName: "GSTR-3B"})
	require.NoError(t, err)
	assert.Equal(t, "Reminder sent to Ravi for GSTR-3B", ack.Message)
	assert.Equal(t, 1, f.sender.callCount())
}

func TestTaskService_ExportChecklist(t *testing.T) {
	f := newTaskFixture(&entity.Task{ID: 1, Title: "TDS", Status: entity.TaskStatusPending, Tags: []string{"TDS"}, ProjectID: 1})
	ctx := context.Background()

	_, err := f.svc.UploadDocument(ctx, UploadInput{TaskID: 1, Tag: "TDS", DocumentType: "tds_challan", File: pdf("challan.pdf")})
	require.NoError(t, err)

	data, err := f.svc.ExportChecklist(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), data)

	require.Len(t, f.exporter.rows, 4)
	assert.Equal(t, "challan.pdf", f.exporter.rows[0].FileName)
	assert.Empty(t, f.exporter.rows[1].FileName)
}

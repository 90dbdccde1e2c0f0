package http

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/taskdoc/internal/application/service"
	"github.com/garyjia/taskdoc/internal/domain/entity"
)

// actorHeader names the user performing the request
const actorHeader = "X-User"

// Handlers contains all HTTP request handlers
type Handlers struct {
	taskService    service.TaskService
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(taskService service.TaskService, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		taskService:    taskService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// Requirements handles GET /api/requirements?tags=GST,Audit
func (h *Handlers) Requirements(c *gin.Context) {
	var tags []string
	for _, v := range c.QueryArray("tags") {
		tags = append(tags, strings.Split(v, ",")...)
	}
	ok(c, h.taskService.RequirementsFor(tags))
}

// GetTask handles GET /api/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	task, err := h.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get task", err)
		return
	}
	ok(c, task)
}

// GetCompliance handles GET /api/tasks/:id/compliance
func (h *Handlers) GetCompliance(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	view, err := h.taskService.LoadView(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "load compliance", err)
		return
	}
	ok(c, view)
}

// ExportChecklist handles GET /api/tasks/:id/compliance/export
func (h *Handlers) ExportChecklist(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	data, err := h.taskService.ExportChecklist(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "export checklist", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="task-%d-checklist.xlsx"`, id))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	ProjectID   int64    `json:"projectId"`
	AssignedTo  string   `json:"assignedTo"`
	DueDate     string   `json:"dueDate"`
	Amount      float64  `json:"amount"`
	Rating      *float64 `json:"rating"`
}

// CreateTask handles POST /api/tasks. Multipart requests may carry generic
// attachments and staged compliance documents; JSON requests carry fields only.
func (h *Handlers) CreateTask(c *gin.Context) {
	var (
		req   createTaskRequest
		files []*entity.FileUpload
		draft = service.NewDraft()
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			badRequest(c, "invalid multipart form")
			return
		}
		if err := readTaskForm(c, &req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if files, err = h.readFiles(firstFiles(form, "files[]", "files")); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := h.stageDocuments(c, form, draft); err != nil {
			h.fail(c, "stage documents", err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	due, err := parseDate(req.DueDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.taskService.CreateTask(c.Request.Context(), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      entity.TaskStatus(req.Status),
		Priority:    entity.TaskPriority(req.Priority),
		Tags:        req.Tags,
		ProjectID:   req.ProjectID,
		AssignedTo:  req.AssignedTo,
		DueDate:     due,
		Amount:      req.Amount,
		Rating:      req.Rating,
		Files:       files,
		CreatedBy:   c.GetHeader(actorHeader),
	}, draft)
	if err != nil {
		h.fail(c, "create task", err)
		return
	}
	created(c, result)
}

func readTaskForm(c *gin.Context, req *createTaskRequest) error {
	req.Title = c.PostForm("title")
	req.Description = c.PostForm("description")
	req.Status = c.PostForm("status")
	req.Priority = c.PostForm("priority")
	req.AssignedTo = c.PostForm("assignedTo")
	req.DueDate = c.PostForm("dueDate")

	req.Tags = c.PostFormArray("tags[]")
	if len(req.Tags) == 0 {
		req.Tags = c.PostFormArray("tags")
	}

	var err error
	if v := c.PostForm("projectId"); v != "" {
		if req.ProjectID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("invalid projectId")
		}
	}
	if v := c.PostForm("amount"); v != "" {
		if req.Amount, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid amount")
		}
	}
	if v := c.PostForm("rating"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid rating")
		}
		req.Rating = &r
	}
	return nil
}

// stageDocuments pairs tagDocuments[] with the parallel tag and type arrays
func (h *Handlers) stageDocuments(c *gin.Context, form *multipart.Form, draft *service.Draft) error {
	docs := firstFiles(form, "tagDocuments[]", "tagDocuments")
	tags := c.PostFormArray("tagDocumentTags[]")
	types := c.PostFormArray("tagDocumentTypes[]")
	if len(docs) == 0 {
		return nil
	}
	if len(tags) != len(docs) || len(types) != len(docs) {
		return &service.Error{
			Kind:   service.KindValidation,
			Reason: "each staged document needs a tag and a document type",
		}
	}

	for i, fh := range docs {
		upload, err := h.readFile(fh)
		if err != nil {
			return &service.Error{Kind: service.KindValidation, Reason: err.Error()}
		}
		if err := draft.Stage(tags[i], types[i], upload); err != nil {
			return err
		}
	}
	return nil
}

type updateTaskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Priority    *string  `json:"priority"`
	Tags        []string `json:"tags"`
	AssignedTo  *string  `json:"assignedTo"`
	DueDate     *string  `json:"dueDate"`
	Amount      *float64 `json:"amount"`
	Status      *string  `json:"status"`
	Rating      *float64 `json:"rating"`
}

// UpdateTask handles PUT /api/tasks/:id
func (h *Handlers) UpdateTask(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	patch := service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		AssignedTo:  req.AssignedTo,
		Amount:      req.Amount,
		Rating:      req.Rating,
		Actor:       c.GetHeader(actorHeader),
	}
	if req.Priority != nil {
		p := entity.TaskPriority(*req.Priority)
		patch.Priority = &p
	}
	if req.Status != nil {
		s := entity.TaskStatus(*req.Status)
		patch.Status = &s
	}
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		patch.DueDate = due
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, "update task", err)
		return
	}
	ok(c, task)
}

// ListDocuments handles GET /api/tasks/:id/tag-documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	docs, err := h.taskService.Documents(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list documents", err)
		return
	}
	ok(c, docs)
}

// UploadDocument handles POST /api/tasks/:id/tag-documents
func (h *Handlers) UploadDocument(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	upload, err := h.readFile(fh)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	doc, err := h.taskService.UploadDocument(c.Request.Context(), service.UploadInput{
		TaskID:       id,
		Tag:          c.PostForm("tag"),
		DocumentType: c.PostForm("documentType"),
		File:         upload,
		UploadedBy:   c.GetHeader(actorHeader),
	})
	if err != nil {
		h.fail(c, "upload document", err)
		return
	}
	created(c, doc)
}

// RemoveDocument handles DELETE /api/tasks/:id/tag-documents/:documentId
func (h *Handlers) RemoveDocument(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	docID, valid := pathID(c, "documentId")
	if !valid {
		return
	}

	if err := h.taskService.RemoveDocument(c.Request.Context(), id, docID, c.GetHeader(actorHeader)); err != nil {
		h.fail(c, "remove document", err)
		return
	}
	ok(c, gin.H{"removed": docID})
}

// GetVerification handles GET /api/tasks/:id/verification
func (h *Handlers) GetVerification(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	marks, err := h.taskService.Verification(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get verification", err)
		return
	}
	ok(c, marks)
}

type verificationRequest struct {
	Tag          string `json:"tag" binding:"required"`
	DocumentType string `json:"documentType" binding:"required"`
	Verified     *bool  `json:"verified" binding:"required"`
}

// SetVerification handles PUT /api/tasks/:id/verification
func (h *Handlers) SetVerification(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	var req verificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "tag, documentType and verified are required")
		return
	}

	marks, err := h.taskService.SetVerified(c.Request.Context(), service.SetVerifiedInput{
		TaskID:       id,
		Tag:          req.Tag,
		DocumentType: req.DocumentType,
		Verified:     *req.Verified,
	})
	if err != nil {
		h.fail(c, "set verification", err)
		return
	}
	ok(c, marks)
}

type remindRequest struct {
	Tag          string `json:"tag" binding:"required"`
	DocumentType string `json:"documentType" binding:"required"`
	DocumentName string `json:"documentName"`
}

// RemindClient handles POST /api/tasks/:id/remind-client
func (h *Handlers) RemindClient(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	var req remindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "tag and documentType are required")
		return
	}

	ack, err := h.taskService.RemindClient(c.Request.Context(), service.RemindInput{
		TaskID:       id,
		Tag:          req.Tag,
		DocumentType: req.DocumentType,
		DocumentName: req.DocumentName,
		RequestedBy:  c.GetHeader(actorHeader),
	})
	if err != nil {
		h.fail(c, "remind client", err)
		return
	}
	ok(c, ack)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid dueDate %q", s)
}

func firstFiles(form *multipart.Form, keys ...string) []*multipart.FileHeader {
	for _, k := range keys {
		if files := form.File[k]; len(files) > 0 {
			return files
		}
	}
	return nil
}

func (h *Handlers) readFiles(headers []*multipart.FileHeader) ([]*entity.FileUpload, error) {
	out := make([]*entity.FileUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := h.readFile(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (h *Handlers) readFile(fh *multipart.FileHeader) (*entity.FileUpload, error) {
	if fh.Size > h.maxUploadBytes {
		return nil, fmt.Errorf("%s exceeds the upload limit", fh.Filename)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("cannot read %s", fh.Filename)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read %s", fh.Filename)
	}
	if int64(len(content)) > h.maxUploadBytes {
		return nil, fmt.Errorf("%s exceeds the upload limit", fh.Filename)
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(content)
	}

	return &entity.FileUpload{
		FileName: fh.Filename,
		MimeType: mimeType,
		Content:  content,
	}, nil
}

package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/services/ingestion"
	"github.com/sahilchouksey/course-ingest/services/storage"
	"github.com/sahilchouksey/course-ingest/utils/logger"
	"github.com/sahilchouksey/course-ingest/utils/response"
	"github.com/sahilchouksey/course-ingest/utils/sse"
)

type JobService interface {
	StartJob(ctx context.Context, req ingestion.StartJobRequest) (*model.IngestionJob, error)
	GetJobStatus(ctx context.Context, id uuid.UUID) (*model.JobStatusView, error)
}

type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// IngestHandler handles ingestion API endpoints
type IngestHandler struct {
	service  JobService
	store    Uploader
	maxBytes int64
	log      *logger.Logger

	pollInterval  time.Duration
	streamTimeout time.Duration
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(service JobService, store Uploader, maxBytes int64, log *logger.Logger) *IngestHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestHandler{
		service:  service,
		store:    store,
		maxBytes: maxBytes,
		log:      log.With("handler", "ingest"),

		pollInterval:  time.Second,
		streamTimeout: 15 * time.Minute,
	}
}

type upload struct {
	key  string
	mime string
}

// CreateJob handles POST /api/v1/course-packs/:course_pack_id/ingestion-jobs
// Multipart form: document (required), answer_key (exams only), kind, and
// optional exam_year, exam_semester and exam_type hints.
func (h *IngestHandler) CreateJob(c *fiber.Ctx) error {
	coursePackID, err := uuid.Parse(c.Params("course_pack_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid course pack ID")
	}

	kind := model.DocumentKind(strings.ToLower(strings.TrimSpace(c.FormValue("kind"))))
	if kind != model.DocumentKindExam && kind != model.DocumentKindCalendar {
		return response.ValidationError(c, map[string]string{"kind": "must be exam or calendar"})
	}

	var year int
	if raw := strings.TrimSpace(c.FormValue("exam_year")); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil {
			return response.ValidationError(c, map[string]string{"exam_year": "must be a number"})
		}
	}

	docFile, err := c.FormFile("document")
	if err != nil {
		return response.ValidationError(c, map[string]string{"document": "file is required"})
	}
	keyFile, _ := c.FormFile("answer_key")
	if keyFile != nil && kind != model.DocumentKindExam {
		return response.ValidationError(c, map[string]string{"answer_key": "only accepted for exams"})
	}
	prefix := fmt.Sprintf("course-packs/%s/%s", coursePackID, kind)

	doc, err := h.storeFile(c.UserContext(), prefix, "document", docFile)
	if err != nil {
		return h.uploadFailed(c, err)
	}

	req := ingestion.StartJobRequest{
		CoursePackID: coursePackID,
		Kind:         kind,
		DocumentRef:  doc.key,
		MimeType:     doc.mime,
		ExamYear:     year,
		ExamSemester: c.FormValue("exam_semester"),
		ExamType:     c.FormValue("exam_type"),
	}

	if keyFile != nil {
		key, err := h.storeFile(c.UserContext(), prefix+"/answer-keys", "answer_key", keyFile)
		if err != nil {
			return h.uploadFailed(c, err)
		}
		req.AnswerKeyRef = key.key
	}

	job, err := h.service.StartJob(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}

	h.log.Info("ingestion job created", "job_id", job.ID, "kind", job.Kind, "document_ref", job.DocumentRef)
	return response.Accepted(c, "Ingestion job started", job.ToStatusView())
}

// fieldError rejects an uploaded file itself.
type fieldError map[string]string

func (e fieldError) Error() string {
	return fmt.Sprintf("invalid upload: %v", map[string]string(e))
}

var errStorage = errors.New("object storage unavailable")

// storeFile reads an uploaded file and writes it to object storage.
func (h *IngestHandler) storeFile(ctx context.Context, prefix, name string, fh *multipart.FileHeader) (*upload, error) {
	if fh.Size == 0 {
		return nil, fieldError{name: "file is empty"}
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return nil, fieldError{name: fmt.Sprintf("file exceeds %d bytes", h.maxBytes)}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fieldError{name: "file could not be read"}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fieldError{name: "file could not be read"}
	}

	mime := mimetype.Detect(data).String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	key := storage.GenerateKey(prefix, fh.Filename)
	if _, err := h.store.Upload(ctx, key, data, mime); err != nil {
		h.log.Error("failed to upload document", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", errStorage, err)
	}
	return &upload{key: key, mime: mime}, nil
}

func (h *IngestHandler) uploadFailed(c *fiber.Ctx, err error) error {
	var fe fieldError
	if errors.As(err, &fe) {
		return response.ValidationError(c, fe)
	}
	return response.ServiceUnavailable(c, "Failed to store uploaded file")
}

// GetJob handles GET /api/v1/ingestion-jobs/:id
func (h *IngestHandler) GetJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid job ID")
	}

	view, err := h.service.GetJobStatus(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, view)
}

// StreamJob handles GET /api/v1/ingestion-jobs/:id/events
// Server-sent events: one "progress" event per status change, then a final
// "complete" or "failed" event.
func (h *IngestHandler) StreamJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid job ID")
	}

	// fail fast with a normal response for unknown jobs
	view, err := h.service.GetJobStatus(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := context.WithoutCancel(c.UserContext())
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		h.stream(ctx, w, id, view)
	})
	return nil
}

const keepAliveEvery = 15

func (h *IngestHandler) stream(ctx context.Context, w *bufio.Writer, id uuid.UUID, view *model.JobStatusView) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	deadline := time.Now().Add(h.streamTimeout)

	events := sse.NewStream(w)
	var last *model.JobStatusView
	idle := 0
	for {
		var err error
		switch {
		case view.Status == model.JobStatusCompleted:
			err = events.Complete(view)
		case view.Status == model.JobStatusFailed:
			err = events.Failed(view)
		case last == nil || last.Status != view.Status || last.Step != view.Step || last.ProgressPct != view.ProgressPct:
			err = events.Progress(view)
			idle = 0
		default:
			idle++
			if idle%keepAliveEvery == 0 {
				err = events.KeepAlive()
			}
		}
		if err != nil {
			// client went away
			return
		}
		if view.Status.IsTerminal() || time.Now().After(deadline) {
			return
		}

		<-ticker.C
		last = view
		view, err = h.service.GetJobStatus(ctx, id)
		if err != nil {
			h.log.Warn("job status lookup failed during stream", "job_id", id, "error", err)
			_ = events.Error(err)
			return
		}
	}
}

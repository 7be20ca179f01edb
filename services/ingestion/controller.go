// Package ingestion runs document ingestion jobs: it drives a job through
// its steps, records progress and finishes it as completed or failed.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/sahilchouksey/course-ingest/database"
	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/services/answerkey"
	"github.com/sahilchouksey/course-ingest/services/consolidation"
	"github.com/sahilchouksey/course-ingest/services/coverage"
	"github.com/sahilchouksey/course-ingest/services/exammeta"
	"github.com/sahilchouksey/course-ingest/services/extraction"
	"github.com/sahilchouksey/course-ingest/services/metrics"
	"github.com/sahilchouksey/course-ingest/services/storage"
	"github.com/sahilchouksey/course-ingest/utils/apperr"
	"github.com/sahilchouksey/course-ingest/utils/logger"
	"github.com/sahilchouksey/course-ingest/utils/pdfvalidation"
)

type JobStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.IngestionJob, error)
	Save(ctx context.Context, job *model.IngestionJob, from model.JobStatus) error
}

type QuestionStore interface {
	Replace(ctx context.Context, coursePackID uuid.UUID, identity string, jobID uuid.UUID, questions []model.ExamQuestion) (int, error)
}

type CalendarStore interface {
	ListEvents(ctx context.Context, coursePackID uuid.UUID, kinds ...model.EntryKind) ([]model.CalendarEvent, error)
	ListTopics(ctx context.Context, coursePackID uuid.UUID) ([]model.Topic, error)
	Insert(ctx context.Context, events []model.CalendarEvent, topics []model.Topic) error
}

type Downloader interface {
	Download(ctx context.Context, key string, maxBytes int64) ([]byte, error)
}

type DocumentExtractor interface {
	ExtractExam(ctx context.Context, doc extraction.Document) (*extraction.ExamResult, error)
	ExtractCalendar(ctx context.Context, doc extraction.Document) ([]model.RawCalendarEntry, error)
}

type AnswerKeyChecker interface {
	CrossCheck(ctx context.Context, doc extraction.Document) (map[int]string, error)
}

type Options struct {
	MaxDocumentBytes int64
	MaxPDFPages      int
	// Skip exam and quiz rows already stored with the same title and date
	DedupeCalendarEvents bool
}

type Dependencies struct {
	Jobs       JobStore
	Questions  QuestionStore
	Calendar   CalendarStore
	Documents  Downloader
	Extractor  DocumentExtractor
	AnswerKeys AnswerKeyChecker
	Progress   *ProgressTracker
	Metrics    *metrics.Service
	Logger     *logger.Logger
}

// Controller executes one job at a time per call to Run. It is the only
// writer of a job while the job is processing.
type Controller struct {
	jobs       JobStore
	questions  QuestionStore
	calendar   CalendarStore
	documents  Downloader
	extractor  DocumentExtractor
	answerKeys AnswerKeyChecker
	progress   *ProgressTracker
	metrics    *metrics.Service
	log        *logger.Logger
	opts       Options
	now        func() time.Time
}

func NewController(deps Dependencies, opts Options) *Controller {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		jobs:       deps.Jobs,
		questions:  deps.Questions,
		calendar:   deps.Calendar,
		documents:  deps.Documents,
		extractor:  deps.Extractor,
		answerKeys: deps.AnswerKeys,
		progress:   deps.Progress,
		metrics:    deps.Metrics,
		log:        log.With("service", "IngestionController"),
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type run struct {
	job       *model.IngestionJob
	log       *logger.Logger
	stepStart time.Time
}

var supportedImages = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// Run executes the job and returns its terminal status. The returned error
// is the classified failure when the job failed.
func (c *Controller) Run(ctx context.Context, jobID uuid.UUID) (model.JobStatus, error) {
	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			return "", apperr.Wrap(err, apperr.ErrNotFound, "ingestion job not found")
		}
		return "", apperr.Wrap(err, apperr.ErrPersistence, "failed to load ingestion job")
	}

	r := &run{
		job:       job,
		log:       c.log.With("job_id", job.ID, "kind", job.Kind),
		stepStart: c.now(),
	}
	if err := job.Start(c.now()); err != nil {
		r.log.Warn("job is not pending, skipping", "status", job.Status)
		return job.Status, apperr.Wrap(err, apperr.ErrValidation, "job is not pending")
	}
	if err := c.save(ctx, r, model.JobStatusPending); err != nil {
		return model.JobStatusPending, err
	}
	r.log.Info("ingestion started", "document_ref", job.DocumentRef)

	var runErr error
	switch job.Kind {
	case model.DocumentKindExam:
		runErr = c.runExam(ctx, r)
	case model.DocumentKindCalendar:
		runErr = c.runCalendar(ctx, r)
	default:
		runErr = apperr.Wrap(fmt.Errorf("unknown document kind %q", job.Kind), apperr.ErrValidation, "unsupported document kind")
	}
	if runErr != nil {
		return c.fail(ctx, r, runErr)
	}

	c.observeStep(r)
	if err := job.Complete(c.now()); err != nil {
		return c.fail(ctx, r, err)
	}
	if err := c.save(context.WithoutCancel(ctx), r, model.JobStatusProcessing); err != nil {
		r.log.Error("failed to record job completion", "error", err)
		return model.JobStatusProcessing, err
	}
	c.metrics.JobFinished(string(job.Kind), string(model.JobStatusCompleted), "")
	r.log.Info("ingestion completed",
		"items_extracted", job.ItemsExtracted,
		"items_mapped", job.ItemsMapped,
		"pending_review", job.PendingReview,
	)
	return model.JobStatusCompleted, nil
}

func (c *Controller) runExam(ctx context.Context, r *run) error {
	job := r.job
	data, err := c.download(ctx, job.DocumentRef)
	if err != nil {
		return err
	}

	if err := c.advance(ctx, r, model.StepEncode); err != nil {
		return err
	}
	doc, err := c.prepare(data, job.MimeType)
	if err != nil {
		return err
	}
	job.MimeType = doc.MimeType

	if err := c.advance(ctx, r, model.StepExtract); err != nil {
		return err
	}
	res, err := c.extractor.ExtractExam(ctx, *doc)
	if err != nil {
		return err
	}

	if err := c.advance(ctx, r, model.StepParse); err != nil {
		return err
	}
	meta := mergeMetadata(job, res.Metadata, r.log)
	examType, err := exammeta.Parse(meta.ExamType)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrValidation, "exam type could not be determined, supply it with the upload")
	}
	identity, err := exammeta.Identity(meta)
	if errors.Is(err, exammeta.ErrIncompleteIdentity) {
		return apperr.Wrap(err, apperr.ErrValidation, "exam semester and year could not be read, supply them with the upload")
	}
	if err != nil {
		return apperr.Wrap(err, apperr.ErrValidation, "exam metadata is invalid")
	}
	questions := res.Questions
	for i := range questions {
		questions[i].MidtermNumber = examType.MidtermNumber()
	}
	applyExamMetadata(job, meta, examType)

	matched := 0
	if job.AnswerKeyRef != nil && *job.AnswerKeyRef != "" {
		if err := c.advance(ctx, r, model.StepAnswerKey); err != nil {
			return err
		}
		matched = c.crossCheck(ctx, r, *job.AnswerKeyRef, questions)
	}

	if err := c.advance(ctx, r, model.StepPersist); err != nil {
		return err
	}
	n, err := c.questions.Replace(ctx, job.CoursePackID, identity, job.ID, questions)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrPersistence, "failed to store extracted questions")
	}

	job.ItemsExtracted = n
	job.ItemsMapped = matched
	job.PendingReview = n
	r.log.Info("exam ingested", "source_exam", identity, "questions", n, "answer_key_matches", matched)
	return nil
}

// crossCheck never fails the job; problems with the answer key are logged
// and the exam is stored without answers.
func (c *Controller) crossCheck(ctx context.Context, r *run, ref string, questions []model.ExamQuestion) int {
	if c.answerKeys == nil {
		r.log.Warn("answer key supplied but no validator configured")
		return 0
	}
	answers, err := func() (map[int]string, error) {
		data, err := c.download(ctx, ref)
		if err != nil {
			return nil, err
		}
		doc, err := c.prepare(data, "")
		if err != nil {
			return nil, err
		}
		return c.answerKeys.CrossCheck(ctx, *doc)
	}()
	if err != nil {
		r.log.Warn("answer key skipped", "answer_key_ref", ref, "error", err)
		return 0
	}
	matched := answerkey.Apply(questions, answers)
	r.log.Info("answer key applied", "answers", len(answers), "matched", matched)
	return matched
}

func (c *Controller) runCalendar(ctx context.Context, r *run) error {
	job := r.job
	data, err := c.download(ctx, job.DocumentRef)
	if err != nil {
		return err
	}

	if err := c.advance(ctx, r, model.StepEncode); err != nil {
		return err
	}
	doc, err := c.prepare(data, job.MimeType)
	if err != nil {
		return err
	}
	job.MimeType = doc.MimeType

	if err := c.advance(ctx, r, model.StepExtract); err != nil {
		return err
	}
	entries, err := c.extractor.ExtractCalendar(ctx, *doc)
	if err != nil {
		return err
	}

	if err := c.advance(ctx, r, model.StepParse); err != nil {
		return err
	}
	job.ItemsExtracted = len(entries)

	if err := c.advance(ctx, r, model.StepConsolidate); err != nil {
		return err
	}
	catalog, err := c.calendar.ListTopics(ctx, job.CoursePackID)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrPersistence, "failed to load topic catalog")
	}
	existing := consolidation.NewKeySet()
	for _, t := range catalog {
		for _, k := range consolidation.CatalogKeys(t.SectionCode, t.Title) {
			existing.Add(k)
		}
	}
	result := consolidation.Consolidate(entries, existing)
	r.log.Info("calendar consolidated", "entries", len(entries), "output", len(result.Entries), "skipped_existing", result.Skipped)

	if err := c.advance(ctx, r, model.StepCoverage); err != nil {
		return err
	}
	stored, err := c.calendar.ListEvents(ctx, job.CoursePackID, model.EntryKindExam)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrPersistence, "failed to load exam events")
	}
	periods := coverage.Merge(coverage.PeriodsFromEvents(stored), coverage.PeriodsFromEntries(result.Entries))
	mapped := 0
	if len(periods) > 0 {
		mapped = coverage.AssignAll(result.Entries, periods)
	} else {
		r.log.Info("no exam periods known, coverage left unassigned")
	}

	if err := c.advance(ctx, r, model.StepPersist); err != nil {
		return err
	}
	events, topics := calendarRows(job, result.Entries)
	if c.opts.DedupeCalendarEvents {
		events, err = c.dropStoredEvents(ctx, r, events)
		if err != nil {
			return err
		}
	}
	if err := c.calendar.Insert(ctx, events, topics); err != nil {
		return apperr.Wrap(err, apperr.ErrPersistence, "failed to store calendar")
	}

	job.ItemsMapped = mapped
	r.log.Info("calendar ingested", "events", len(events), "topics", len(topics), "mapped", mapped)
	return nil
}

// calendarRows converts consolidated entries into event rows, plus a topic
// catalog row per topic entry.
func calendarRows(job *model.IngestionJob, entries []model.ConsolidatedTopic) ([]model.CalendarEvent, []model.Topic) {
	examNumbers := coverage.ClassifyExams(entries)
	events := make([]model.CalendarEvent, 0, len(entries))
	var topics []model.Topic

	for i, e := range entries {
		ev := model.CalendarEvent{
			CoursePackID: job.CoursePackID,
			JobID:        job.ID,
			Kind:         e.Kind,
			Title:        e.Title,
			SectionCode:  e.SectionCode,
			Week:         e.Week,
			Weekday:      e.Weekday,
			EventDate:    e.Date,
			Description:  e.Description,
		}
		switch e.Kind {
		case model.EntryKindExam:
			ev.MidtermNumber = examNumbers[i]
		case model.EntryKindTopic:
			ev.MidtermCoverage = e.MidtermCoverage
			t := model.Topic{
				CoursePackID:    job.CoursePackID,
				JobID:           job.ID,
				Title:           e.Title,
				SectionCode:     e.SectionCode,
				NormalizedKey:   consolidation.GroupKey(e.Title),
				Week:            e.Week,
				MidtermCoverage: e.MidtermCoverage,
			}
			if e.Date != nil {
				t.Dates = []time.Time{*e.Date}
			}
			topics = append(topics, t)
		}
		events = append(events, ev)
	}
	return events, topics
}

func (c *Controller) dropStoredEvents(ctx context.Context, r *run, events []model.CalendarEvent) ([]model.CalendarEvent, error) {
	stored, err := c.calendar.ListEvents(ctx, r.job.CoursePackID, model.EntryKindExam, model.EntryKindQuiz)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrPersistence, "failed to load calendar events")
	}
	seen := make(map[string]bool, len(stored))
	for _, ev := range stored {
		seen[eventKey(ev)] = true
	}
	out := events[:0]
	dropped := 0
	for _, ev := range events {
		if ev.Kind != model.EntryKindTopic && seen[eventKey(ev)] {
			dropped++
			continue
		}
		out = append(out, ev)
	}
	if dropped > 0 {
		r.log.Info("skipped calendar events already stored", "count", dropped)
	}
	return out, nil
}

func eventKey(ev model.CalendarEvent) string {
	when := fmt.Sprintf("w%d", ev.Week)
	if ev.EventDate != nil {
		when = ev.EventDate.Format("2006-01-02")
	}
	return string(ev.Kind) + "|" + strings.ToLower(strings.TrimSpace(ev.Title)) + "|" + when
}

// mergeMetadata lets upload hints override extracted values. Extracted
// values that do not normalize are dropped rather than failing the job.
func mergeMetadata(job *model.IngestionJob, extracted exammeta.Metadata, log *logger.Logger) exammeta.Metadata {
	m := extracted
	if m.Semester != "" {
		if _, err := exammeta.NormalizeSemester(m.Semester); err != nil {
			log.Warn("ignoring extracted semester", "semester", m.Semester)
			m.Semester = ""
		}
	}
	if m.Year != 0 && (m.Year < 1900 || m.Year > 2200) {
		log.Warn("ignoring extracted year", "year", m.Year)
		m.Year = 0
	}

	if job.ExamYear != nil && *job.ExamYear != 0 {
		m.Year = *job.ExamYear
	}
	if job.ExamSemester != nil && strings.TrimSpace(*job.ExamSemester) != "" {
		m.Semester = *job.ExamSemester
	}
	if job.ExamTypeCode != nil && strings.TrimSpace(*job.ExamTypeCode) != "" {
		m.ExamType = *job.ExamTypeCode
	}
	return m
}

func applyExamMetadata(job *model.IngestionJob, m exammeta.Metadata, t exammeta.ExamType) {
	if m.Year != 0 {
		year := m.Year
		job.ExamYear = &year
	}
	if sem, err := exammeta.NormalizeSemester(m.Semester); err == nil {
		job.ExamSemester = &sem
	}
	code := t.Code()
	job.ExamTypeCode = &code
	job.IsFinal = t.Final
}

func (c *Controller) download(ctx context.Context, key string) ([]byte, error) {
	data, err := c.documents.Download(ctx, key, c.opts.MaxDocumentBytes)
	if err != nil {
		if errors.Is(err, storage.ErrObjectTooLarge) {
			return nil, apperr.Wrap(err, apperr.ErrValidation, "document exceeds the size limit")
		}
		return nil, apperr.Wrap(err, apperr.ErrDownloadFailure, "")
	}
	if len(data) == 0 {
		return nil, apperr.Wrap(errors.New("empty object"), apperr.ErrValidation, "document is empty")
	}
	return data, nil
}

// prepare sniffs the document type. Images are sent as they are; PDFs are
// sent as their text layer, so scanned PDFs are rejected here.
func (c *Controller) prepare(data []byte, declared string) (*extraction.Document, error) {
	mime := detectMIME(data, declared)
	switch {
	case mime == "application/pdf":
		info, err := pdfvalidation.Inspect(data, c.opts.MaxPDFPages)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ErrValidation, "document is not a usable PDF")
		}
		if strings.TrimSpace(info.Text) == "" {
			return nil, apperr.Wrap(errors.New("pdf has no text layer"), apperr.ErrValidation,
				"PDF has no text layer, upload the pages as images")
		}
		if info.Truncated {
			return nil, apperr.Wrap(fmt.Errorf("pdf text exceeds %d bytes", pdfvalidation.MaxTextBytes), apperr.ErrValidation,
				"PDF text is too long, split the document")
		}
		return &extraction.Document{Data: data, MimeType: mime, Text: info.Text}, nil
	case supportedImages[mime]:
		return &extraction.Document{Data: data, MimeType: mime}, nil
	}
	return nil, apperr.Wrap(fmt.Errorf("unsupported document type %s", mime), apperr.ErrValidation, "unsupported document type")
}

func detectMIME(data []byte, declared string) string {
	detected := mimetype.Detect(data)
	mime := detected.String()
	if detected.Is("application/octet-stream") && declared != "" {
		mime = declared
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

func (c *Controller) advance(ctx context.Context, r *run, step model.JobStep) error {
	c.observeStep(r)
	if err := r.job.Advance(step); err != nil {
		return apperr.Wrap(err, apperr.ErrInternal, "")
	}
	return c.save(ctx, r, model.JobStatusProcessing)
}

func (c *Controller) save(ctx context.Context, r *run, from model.JobStatus) error {
	if err := c.jobs.Save(ctx, r.job, from); err != nil {
		return apperr.Wrap(err, apperr.ErrPersistence, "failed to record job progress")
	}
	c.progress.Publish(ctx, r.job)
	return nil
}

func (c *Controller) observeStep(r *run) {
	now := c.now()
	c.metrics.ObserveStep(string(r.job.Kind), string(r.job.CurrentStep), now.Sub(r.stepStart))
	r.stepStart = now
}

// fail records the failure with progress left where it was.
func (c *Controller) fail(ctx context.Context, r *run, err error) (model.JobStatus, error) {
	appErr := classify(err)
	if ferr := r.job.Fail(c.now(), appErr.Code, appErr.Error(), appErr.Retryable); ferr != nil {
		r.log.Error("cannot mark job failed", "error", ferr, "cause", err)
		return r.job.Status, appErr
	}
	if serr := c.save(context.WithoutCancel(ctx), r, model.JobStatusProcessing); serr != nil {
		r.log.Error("failed to record job failure", "error", serr, "cause", err)
	}
	c.metrics.JobFinished(string(r.job.Kind), string(model.JobStatusFailed), appErr.Code)
	r.log.Warn("ingestion failed",
		"step", r.job.CurrentStep,
		"progress", r.job.ProgressPct,
		"code", appErr.Code,
		"retryable", appErr.Retryable,
		"error", err,
	)
	return model.JobStatusFailed, appErr
}

// classify maps any failure onto the job error taxonomy.
func classify(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if e, ok := extraction.AsError(err); ok {
		return e.AppError()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(err, apperr.ErrExtractionUnavailable, "job timed out")
	}
	return apperr.Wrap(err, apperr.ErrInternal, "")
}

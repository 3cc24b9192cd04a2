package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/tabimport/internal/schema"
)

// DefaultImportTimeout is the maximum duration of one import run.
const DefaultImportTimeout = 30 * time.Minute

// auditWriteTimeout bounds the audit write that ends every run.
const auditWriteTimeout = 10 * time.Second

// Messages recorded for rows that were never sent.
const (
	MsgNoEndpoint = "No endpoint configured"
	MsgCancelled  = "import cancelled before submission"
)

// Options configures a Service. Submitter is required.
type Options struct {
	Templates TemplateStore
	Audit     AuditStore
	Submitter Submitter
	Metrics   Metrics
	Limiter   *ImportLimiter

	// SubmitConcurrency is the number of rows in flight at once.
	// 1, the default, sends rows strictly in order.
	SubmitConcurrency int
	ImportTimeout     time.Duration
	PreviewRows       int
}

// Service runs import sessions: mapping, validation, submission and
// auditing of uploaded files.
type Service struct {
	catalog     *schema.Catalog
	templates   TemplateStore
	audit       AuditStore
	submitter   Submitter
	metrics     Metrics
	limiter     *ImportLimiter
	concurrency int
	timeout     time.Duration
	previewRows int

	mu       sync.RWMutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// NewService creates a Service over the tables in catalog.
func NewService(catalog *schema.Catalog, opts Options) (*Service, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if opts.Submitter == nil {
		return nil, errors.New("submitter is required")
	}

	s := &Service{
		catalog:     catalog,
		templates:   opts.Templates,
		audit:       opts.Audit,
		submitter:   opts.Submitter,
		metrics:     opts.Metrics,
		limiter:     opts.Limiter,
		concurrency: opts.SubmitConcurrency,
		timeout:     opts.ImportTimeout,
		previewRows: opts.PreviewRows,
		sessions:    make(map[string]*session),
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.limiter == nil {
		s.limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultMaxWaitTime)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.timeout <= 0 {
		s.timeout = DefaultImportTimeout
	}
	if s.previewRows <= 0 {
		s.previewRows = 50
	}
	return s, nil
}

// Limiter returns the limiter guarding import runs.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// ListTables returns all target tables.
func (s *Service) ListTables() []schema.Table {
	return s.catalog.All()
}

// Table returns one target table.
func (s *Service) Table(name string) (schema.Table, error) {
	t, ok := s.catalog.Get(name)
	if !ok {
		return schema.Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// CreateSession starts a session for file against the named table.
// Every header starts unmapped.
func (s *Service) CreateSession(ctx context.Context, tableName string, file FileData) (SessionView, error) {
	table, err := s.Table(tableName)
	if err != nil {
		return SessionView{}, err
	}
	if len(file.Headers) == 0 {
		return SessionView{}, fmt.Errorf("%w: file has no header row", ErrInvalidInput)
	}

	file.Rows = normalizeRows(file.Rows, len(file.Headers))
	mappings := make([]ColumnMapping, len(file.Headers))
	for i, h := range file.Headers {
		mappings[i] = Unmapped(h)
	}

	created := time.Now()
	sess := &session{
		id:        uuid.NewString(),
		table:     table,
		file:      file,
		mappings:  mappings,
		phase:     PhaseLoaded,
		createdBy: RequesterFrom(ctx),
		createdAt: created,
		updatedAt: created,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SessionsActive(n)
	slog.Info("import session created",
		"session", sess.id,
		"table", table.Name,
		"file", file.FileName,
		"rows", len(file.Rows),
		"requester", sess.createdBy,
	)

	return sess.view(), nil
}

func (s *Service) session(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Session returns a snapshot of a session.
func (s *Service) Session(id string) (SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Rows returns up to limit rows starting at offset. A limit of 0 returns
// every remaining row.
func (s *Service) Rows(id string, offset, limit int) ([][]any, int, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, 0, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	total := len(sess.file.Rows)
	offset = min(max(offset, 0), total)
	end := total
	if limit > 0 {
		end = min(offset+limit, total)
	}
	return cloneRows(sess.file.Rows[offset:end]), total, nil
}

// DeleteSession removes a session, cancelling its import if one runs.
func (s *Service) DeleteSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.mu.Lock()
	if sess.cancel != nil {
		sess.cancel()
	}
	sess.mu.Unlock()

	s.metrics.SessionsActive(n)
	return nil
}

// AutoMap replaces the session's mappings with AutoMap's proposal.
func (s *Service) AutoMap(id string) (SessionView, error) {
	return s.setMappings(id, func(sess *session) ([]ColumnMapping, error) {
		return AutoMap(sess.file.Headers, sess.table.Columns), nil
	})
}

// SetMappings replaces the session's mappings. There must be exactly one
// mapping per header, in header order.
func (s *Service) SetMappings(id string, mappings []ColumnMapping) (SessionView, error) {
	return s.setMappings(id, func(sess *session) ([]ColumnMapping, error) {
		if len(mappings) != len(sess.file.Headers) {
			return nil, fmt.Errorf("%w: got %d mappings for %d headers",
				ErrInvalidMapping, len(mappings), len(sess.file.Headers))
		}
		for i, m := range mappings {
			if m.FileHeader != sess.file.Headers[i] {
				return nil, fmt.Errorf("%w: mapping %d is for %q, want %q",
					ErrInvalidMapping, i, m.FileHeader, sess.file.Headers[i])
			}
		}
		return cloneMappings(mappings), nil
	})
}

// ApplyTemplate maps the session's headers using a saved template.
func (s *Service) ApplyTemplate(ctx context.Context, id, templateID string) (SessionView, error) {
	if s.templates == nil {
		return SessionView{}, errNoTemplateStore
	}
	tmpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return SessionView{}, err
	}
	return s.setMappings(id, func(sess *session) ([]ColumnMapping, error) {
		if tmpl.TableName != sess.table.Name {
			return nil, fmt.Errorf("%w: template %q is for table %s, session imports into %s",
				ErrInvalidMapping, tmpl.Name, tmpl.TableName, sess.table.Name)
		}
		return ApplyTemplate(sess.file.Headers, tmpl), nil
	})
}

func (s *Service) setMappings(id string, build func(*session) ([]ColumnMapping, error)) (SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !canTransition(sess.phase, PhaseMapped) {
		return SessionView{}, fmt.Errorf("%w: cannot change mappings in phase %s", ErrInvalidTransition, sess.phase)
	}

	mappings, err := build(sess)
	if err != nil {
		return SessionView{}, err
	}
	if err := CheckMappings(mappings, sess.table); err != nil {
		return SessionView{}, err
	}

	sess.mappings = mappings
	sess.errs = nil
	if err := sess.moveTo(PhaseMapped); err != nil {
		return SessionView{}, err
	}
	return sess.view(), nil
}

// UpdateRows replaces the session's rows. Rows are padded or truncated to
// the header count.
func (s *Service) UpdateRows(id string, rows [][]any) (SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.edited(); err != nil {
		return SessionView{}, err
	}
	sess.file.Rows = normalizeRows(rows, len(sess.file.Headers))
	return sess.view(), nil
}

// UpdateCell sets one cell. row and col are 0-based.
func (s *Service) UpdateCell(id string, row, col int, value any) (SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if row < 0 || row >= len(sess.file.Rows) || col < 0 || col >= len(sess.file.Headers) {
		return SessionView{}, fmt.Errorf("%w: cell (%d, %d) out of range", ErrInvalidInput, row, col)
	}
	if err := sess.edited(); err != nil {
		return SessionView{}, err
	}
	sess.file.Rows[row][col] = value
	return sess.view(), nil
}

// Preview is the outcome of validating a session.
type Preview struct {
	Session SessionView       `json:"session"`
	Errors  []ValidationError `json:"errors"`
	Rows    [][]any           `json:"rows"`
}

// ValidateSession validates every row and moves the session to Previewed.
func (s *Service) ValidateSession(id string) (Preview, error) {
	sess, err := s.session(id)
	if err != nil {
		return Preview{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.moveTo(PhasePreviewed); err != nil {
		return Preview{}, err
	}

	errs := Validate(sess.file.Rows, sess.mappings, sess.table.Columns)
	if errs == nil {
		errs = []ValidationError{}
	}
	sess.errs = errs

	return Preview{
		Session: sess.view(),
		Errors:  errs,
		Rows:    cloneRows(sess.file.Rows[:min(s.previewRows, len(sess.file.Rows))]),
	}, nil
}

// StartImport begins submitting the session's rows in the background.
// The session must be previewed, error free and cover every required
// column. It blocks while the limiter has no free slot.
func (s *Service) StartImport(ctx context.Context, id string) (SessionView, error) {
	return s.startImport(ctx, id, false)
}

// ForceImport is StartImport without the validation gate: a previewed
// session is submitted even with validation errors or unmapped required
// columns. Prepare fills required columns from defaults and fallbacks, and
// whatever the endpoint rejects is counted as failed rows.
func (s *Service) ForceImport(ctx context.Context, id string) (SessionView, error) {
	return s.startImport(ctx, id, true)
}

func (s *Service) startImport(ctx context.Context, id string, force bool) (SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}

	sess.mu.Lock()
	if err := checkStartable(sess, force); err != nil {
		sess.mu.Unlock()
		return SessionView{}, err
	}
	sess.mu.Unlock()

	if err := s.limiter.Acquire(ctx); err != nil {
		return SessionView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// The session may have changed while waiting for a slot.
	if err := checkStartable(sess, force); err != nil {
		s.limiter.Release()
		return SessionView{}, err
	}
	if err := sess.moveTo(PhaseImporting); err != nil {
		s.limiter.Release()
		return SessionView{}, err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	sess.cancel = cancel
	sess.done = make(chan struct{})

	job := importJob{
		table:     sess.table,
		file:      sess.file,
		rows:      cloneRows(sess.file.Rows),
		mappings:  cloneMappings(sess.mappings),
		requester: RequesterFrom(ctx),
	}

	slog.Info("import queued",
		"session", sess.id,
		"table", sess.table.Name,
		"forced", force,
		"requester", job.requester,
	)

	s.wg.Add(1)
	go s.runImport(runCtx, sess, job)

	return sess.view(), nil
}

// checkStartable reports why a session cannot start importing. With force
// only the phase is checked.
// Caller holds mu.
func checkStartable(sess *session, force bool) error {
	if sess.phase != PhasePreviewed {
		return fmt.Errorf("%w: cannot import from phase %s", ErrInvalidTransition, sess.phase)
	}
	if force {
		return nil
	}
	if n := len(sess.errs); n > 0 {
		return fmt.Errorf("%w: %d validation errors", ErrImportBlocked, n)
	}
	if missing := MissingRequired(sess.mappings, sess.table); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, c := range missing {
			names[i] = c.Label()
		}
		return fmt.Errorf("%w: required columns not mapped: %v", ErrImportBlocked, names)
	}
	return nil
}

// CancelImport stops a running import. Rows already sent stay sent; the
// rest are recorded as failed.
func (s *Service) CancelImport(id string) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.phase != PhaseImporting {
		return fmt.Errorf("%w: no import running in phase %s", ErrInvalidTransition, sess.phase)
	}
	sess.cancel()
	return nil
}

// Result returns the result of a finished import, or nil while the import
// has not finished.
func (s *Service) Result(id string) (*ImportResult, Phase, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.result == nil {
		return nil, sess.phase, nil
	}
	r := *sess.result
	return &r, sess.phase, nil
}

// WaitResult blocks until the session's import finishes.
func (s *Service) WaitResult(ctx context.Context, id string) (ImportResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return ImportResult{}, err
	}

	sess.mu.Lock()
	done := sess.done
	sess.mu.Unlock()
	if done == nil {
		return ImportResult{}, fmt.Errorf("%w: import not started", ErrInvalidTransition)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ImportResult{}, ctx.Err()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return *sess.result, nil
}

// WriteReport writes the error report of a finished import.
func (s *Service) WriteReport(id string, w io.Writer) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.result == nil {
		sess.mu.Unlock()
		return fmt.Errorf("%w: import has not finished", ErrInvalidTransition)
	}
	rep := ErrorReport{
		FileName:  sess.file.FileName,
		TableName: sess.table.DisplayName,
		Date:      sess.updatedAt,
		Result:    *sess.result,
	}
	sess.mu.Unlock()

	return WriteErrorReport(w, rep)
}

// ExpireSessions drops sessions idle for longer than ttl. Importing
// sessions are kept. Returns the number removed.
func (s *Service) ExpireSessions(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		stale := sess.phase != PhaseImporting && sess.updatedAt.Before(cutoff)
		sess.mu.Unlock()
		if stale {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		s.metrics.SessionsActive(n)
	}
	return removed
}

// AuditLog returns up to limit audit entries, newest first.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditLog, error) {
	if s.audit == nil {
		return []AuditLog{}, nil
	}
	return s.audit.List(ctx, limit)
}

// PurgeAudit removes audit entries older than retention.
func (s *Service) PurgeAudit(ctx context.Context, retention time.Duration) (int64, error) {
	if s.audit == nil || retention <= 0 {
		return 0, nil
	}
	return s.audit.PurgeBefore(ctx, time.Now().Add(-retention))
}

// Shutdown cancels running imports and waits for them to record their
// results.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.phase == PhaseImporting && sess.cancel != nil {
			sess.cancel()
		}
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type importJob struct {
	table     schema.Table
	file      FileData
	rows      [][]any
	mappings  []ColumnMapping
	requester Requester
}

// runImport prepares and submits every row, then records the result on the
// session and in the audit log.
func (s *Service) runImport(ctx context.Context, sess *session, job importJob) {
	defer s.wg.Done()
	defer s.limiter.Release()

	start := time.Now()
	s.metrics.ImportStarted(job.table.Name)
	slog.Info("import started",
		"session", sess.id,
		"table", job.table.Name,
		"rows", len(job.rows),
		"concurrency", s.concurrency,
	)

	records := Prepare(job.rows, job.mappings, job.table.Columns)
	result, err := s.submitAll(ctx, job.table, records)
	elapsed := time.Since(start)
	if err != nil {
		slog.Warn("import interrupted",
			"session", sess.id,
			"table", job.table.Name,
			"failed", result.FailedRows,
			"error", err,
		)
	}

	phase := PhaseCompleted
	if !result.Success {
		phase = PhaseCompletedWithErrors
	}

	sess.mu.Lock()
	sess.result = &result
	sess.phase = phase
	sess.updatedAt = time.Now()
	sess.cancel()
	close(sess.done)
	sess.mu.Unlock()

	s.metrics.ImportFinished(job.table.Name, phase, elapsed)
	slog.Info("import finished",
		"session", sess.id,
		"table", job.table.Name,
		"total", result.TotalRows,
		"successful", result.SuccessfulRows,
		"failed", result.FailedRows,
		"duration_ms", elapsed.Milliseconds(),
	)

	s.writeAudit(AuditLog{
		ID:             uuid.NewString(),
		Timestamp:      start,
		FileName:       job.file.FileName,
		FileSize:       job.file.FileSize,
		TableName:      job.table.Name,
		TotalRows:      result.TotalRows,
		SuccessfulRows: result.SuccessfulRows,
		FailedRows:     result.FailedRows,
		Errors:         result.Errors,
		DurationMS:     elapsed.Milliseconds(),
		ClientIP:       job.requester.IP,
		UserAgent:      job.requester.UserAgent,
	})
}

// writeAudit appends an entry. Failures are logged and never change the
// import result.
func (s *Service) writeAudit(entry AuditLog) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := s.audit.Append(ctx, entry); err != nil {
		slog.Error("audit log write failed",
			"table", entry.TableName,
			"file", entry.FileName,
			"error", err,
		)
	}
}

// submitAll sends one request per record and accounts for every row.
// With a concurrency of 1 each row waits for the previous response.
// The returned error is the context error when the run was cut short; the
// result still holds a failure for every row that did not go through.
func (s *Service) submitAll(ctx context.Context, table schema.Table, records []PreparedRecord) (ImportResult, error) {
	failures := make([]*ValidationError, len(records))

	if table.URLEndpoint == "" {
		for i := range records {
			failures[i] = &ValidationError{Row: i + 1, Column: SystemColumn, Message: MsgNoEndpoint}
		}
		return newImportResult(len(records), collectFailures(failures)), nil
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, rec := range records {
		row := i + 1
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = &ValidationError{Row: row, Column: SystemColumn, Message: MsgCancelled}
				return err
			}

			start := time.Now()
			err := s.submitter.Submit(ctx, table.URLEndpoint, rec)
			s.metrics.RowSubmitted(table.Name, err == nil, time.Since(start))
			if err == nil {
				return nil
			}

			ve := ClassifySubmissionError(row, err)
			failures[i] = &ve
			slog.Debug("row rejected",
				"table", table.Name,
				"row", row,
				"column", ve.Column,
				"error", ve.Message,
			)
			return ctx.Err()
		})
	}
	err := g.Wait()

	return newImportResult(len(records), collectFailures(failures)), err
}

// collectFailures flattens per-row failures in row order.
func collectFailures(failures []*ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range failures {
		if f != nil {
			out = append(out, *f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

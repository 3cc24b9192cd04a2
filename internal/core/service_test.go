package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/tabimport/internal/schema"
)

// ----------------------------------------------------------------------------
// Fakes
// ----------------------------------------------------------------------------

type submitFunc func(ctx context.Context, endpoint string, rec PreparedRecord) error

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []PreparedRecord
	fn    submitFunc
}

func (f *fakeSubmitter) Submit(ctx context.Context, endpoint string, rec PreparedRecord) error {
	f.mu.Lock()
	f.calls = append(f.calls, rec)
	f.mu.Unlock()
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, endpoint, rec)
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []AuditLog
	err     error
}

func (f *fakeAudit) Append(_ context.Context, e AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append([]AuditLog{e}, f.entries...)
	return nil
}

func (f *fakeAudit) List(_ context.Context, limit int) ([]AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > len(f.entries) {
		limit = len(f.entries)
	}
	return append([]AuditLog(nil), f.entries[:limit]...), nil
}

func (f *fakeAudit) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	var purged int64
	for _, e := range f.entries {
		if e.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return purged, nil
}

type countingMetrics struct {
	mu       sync.Mutex
	started  int
	finished []Phase
	ok, fail int
	active   int
}

func (m *countingMetrics) ImportStarted(string) {
	m.mu.Lock()
	m.started++
	m.mu.Unlock()
}

func (m *countingMetrics) ImportFinished(_ string, p Phase, _ time.Duration) {
	m.mu.Lock()
	m.finished = append(m.finished, p)
	m.mu.Unlock()
}

func (m *countingMetrics) RowSubmitted(_ string, ok bool, _ time.Duration) {
	m.mu.Lock()
	if ok {
		m.ok++
	} else {
		m.fail++
	}
	m.mu.Unlock()
}

func (m *countingMetrics) SessionsActive(n int) {
	m.mu.Lock()
	m.active = n
	m.mu.Unlock()
}

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	c := schema.NewCatalog()
	people := schema.Table{
		Name:        "people",
		DisplayName: "People",
		URLEndpoint: "/api/people",
		Columns: []schema.Column{
			{Name: "first_name", DisplayName: "First Name", DataType: schema.TypeVarchar, Required: true},
			{Name: "email", DisplayName: "Email", DataType: schema.TypeVarchar, Required: true},
			{Name: "age", DisplayName: "Age", DataType: schema.TypeInt},
			{Name: "status", DisplayName: "Status", DataType: schema.TypeEnum, Required: true, DefaultValue: "active"},
		},
	}
	offline := people
	offline.Name = "offline"
	offline.URLEndpoint = ""
	for _, tbl := range []schema.Table{people, offline} {
		if err := c.Add(tbl); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func newTestService(t *testing.T, sub Submitter, opts Options) *Service {
	t.Helper()
	opts.Submitter = sub
	svc, err := NewService(testCatalog(t), opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func peopleFile() FileData {
	return FileData{
		Headers:  []string{"First Name", "Email Address", "Age"},
		FileName: "people.csv",
		FileType: "csv",
		FileSize: 64,
		Rows: [][]any{
			{"Ada", "ada@x.com", "36"},
			{"Bob", "bob@x.com", ""},
			{"Cy", "cy@x.com", float64(41)},
		},
	}
}

// readySession creates a session for file, auto-maps and validates it.
func readySession(t *testing.T, svc *Service, table string, file FileData) string {
	t.Helper()
	ctx := context.Background()

	view, err := svc.CreateSession(ctx, table, file)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := svc.AutoMap(view.ID); err != nil {
		t.Fatalf("AutoMap() error = %v", err)
	}
	preview, err := svc.ValidateSession(view.ID)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if !preview.Session.CanImport {
		t.Fatalf("session cannot import: %+v", preview.Session)
	}
	return view.ID
}

func runImport(t *testing.T, svc *Service, id string) ImportResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := svc.StartImport(ctx, id); err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	result, err := svc.WaitResult(ctx, id)
	if err != nil {
		t.Fatalf("WaitResult() error = %v", err)
	}
	return result
}

// ----------------------------------------------------------------------------
// Import Tests
// ----------------------------------------------------------------------------

func TestService_ImportPartialFailure(t *testing.T) {
	sub := &fakeSubmitter{fn: func(_ context.Context, endpoint string, rec PreparedRecord) error {
		if endpoint != "/api/people" {
			t.Errorf("endpoint = %q", endpoint)
		}
		if rec["email"] == "bob@x.com" {
			return &RejectedError{StatusCode: 422, Message: "email cannot be null"}
		}
		return nil
	}}
	audit := &fakeAudit{}
	metrics := &countingMetrics{}
	svc := newTestService(t, sub, Options{Audit: audit, Metrics: metrics})

	id := readySession(t, svc, "people", peopleFile())
	result := runImport(t, svc, id)

	if result.Success || result.TotalRows != 3 || result.SuccessfulRows != 2 || result.FailedRows != 1 {
		t.Fatalf("result = %+v", result)
	}
	want := ValidationError{Row: 2, Column: "email", Message: "cannot be null"}
	if len(result.Errors) != 1 || result.Errors[0] != want {
		t.Errorf("errors = %+v, want [%+v]", result.Errors, want)
	}

	if sub.count() != 3 {
		t.Errorf("submitted %d rows, want 3", sub.count())
	}
	first := sub.calls[0]
	if first["age"] != int64(36) || first["status"] != "active" {
		t.Errorf("first record = %v", first)
	}

	_, phase, err := svc.Result(id)
	if err != nil || phase != PhaseCompletedWithErrors {
		t.Errorf("Result() phase = %v, err = %v", phase, err)
	}

	entries, _ := svc.AuditLog(context.Background(), 10)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if e := entries[0]; e.FileName != "people.csv" || e.TableName != "people" || e.FailedRows != 1 || e.SuccessfulRows != 2 {
		t.Errorf("audit entry = %+v", e)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.started != 1 || metrics.ok != 2 || metrics.fail != 1 {
		t.Errorf("metrics = %+v", metrics)
	}
	if len(metrics.finished) != 1 || metrics.finished[0] != PhaseCompletedWithErrors {
		t.Errorf("finished = %v", metrics.finished)
	}
}

func TestService_ImportAllSucceed(t *testing.T) {
	svc := newTestService(t, &fakeSubmitter{}, Options{})
	id := readySession(t, svc, "people", peopleFile())

	result := runImport(t, svc, id)

	if !result.Success || result.SuccessfulRows != 3 || len(result.Errors) != 0 {
		t.Errorf("result = %+v", result)
	}
	if _, phase, _ := svc.Result(id); phase != PhaseCompleted {
		t.Errorf("phase = %v, want completed", phase)
	}
}

func TestService_NoEndpoint(t *testing.T) {
	sub := &fakeSubmitter{}
	svc := newTestService(t, sub, Options{})
	id := readySession(t, svc, "offline", peopleFile())

	result := runImport(t, svc, id)

	if result.Success || result.FailedRows != 3 || result.SuccessfulRows != 0 {
		t.Fatalf("result = %+v", result)
	}
	for i, e := range result.Errors {
		if e.Row != i+1 || e.Column != SystemColumn || e.Message != MsgNoEndpoint {
			t.Errorf("error %d = %+v", i, e)
		}
	}
	if sub.count() != 0 {
		t.Errorf("submitter called %d times, want 0", sub.count())
	}
}

func TestService_TransportErrorIsPerRow(t *testing.T) {
	sub := &fakeSubmitter{fn: func(_ context.Context, _ string, rec PreparedRecord) error {
		if rec["first_name"] == "Ada" {
			return errors.New("dial tcp 10.0.0.1:443: connection refused")
		}
		return nil
	}}
	svc := newTestService(t, sub, Options{})
	id := readySession(t, svc, "people", peopleFile())

	result := runImport(t, svc, id)

	if result.Success || result.FailedRows != 1 || result.SuccessfulRows != 2 {
		t.Fatalf("result = %+v", result)
	}
	if e := result.Errors[0]; e.Row != 1 || e.Column != SystemColumn || !strings.Contains(e.Message, "connection refused") {
		t.Errorf("error = %+v", e)
	}
}

func TestService_ConcurrentSubmissionKeepsRowOrder(t *testing.T) {
	file := peopleFile()
	for i := 0; i < 20; i++ {
		file.Rows = append(file.Rows, []any{"Extra", "extra@x.com", ""})
	}
	sub := &fakeSubmitter{fn: func(_ context.Context, _ string, rec PreparedRecord) error {
		if rec["first_name"] != "Extra" {
			return &RejectedError{StatusCode: 400, Message: "first_name: rejected"}
		}
		return nil
	}}
	svc := newTestService(t, sub, Options{SubmitConcurrency: 4})
	id := readySession(t, svc, "people", file)

	result := runImport(t, svc, id)

	if result.TotalRows != 23 || result.FailedRows != 3 || result.SuccessfulRows != 20 {
		t.Fatalf("result = %+v", result)
	}
	for i, e := range result.Errors {
		if e.Row != i+1 || e.Column != "first_name" || e.Message != "rejected" {
			t.Errorf("error %d = %+v", i, e)
		}
	}
}

func TestService_CancelImport(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	sub := &fakeSubmitter{fn: func(ctx context.Context, _ string, _ PreparedRecord) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}}
	svc := newTestService(t, sub, Options{})
	id := readySession(t, svc, "people", peopleFile())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := svc.StartImport(ctx, id); err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	<-started
	if err := svc.CancelImport(id); err != nil {
		t.Fatalf("CancelImport() error = %v", err)
	}

	result, err := svc.WaitResult(ctx, id)
	if err != nil {
		t.Fatalf("WaitResult() error = %v", err)
	}
	if result.FailedRows != 3 || result.SuccessfulRows != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.Errors[0].Column != SystemColumn {
		t.Errorf("in-flight row error = %+v", result.Errors[0])
	}
	for _, e := range result.Errors[1:] {
		if e.Message != MsgCancelled {
			t.Errorf("unattempted row error = %+v, want %q", e, MsgCancelled)
		}
	}
	if sub.count() != 1 {
		t.Errorf("submitted %d rows, want 1", sub.count())
	}
}

func TestService_SubmitAllReportsInterruption(t *testing.T) {
	table, _ := testCatalog(t).Get("people")
	records := []PreparedRecord{{"first_name": "Ada"}, {"first_name": "Bob"}, {"first_name": "Cy"}}

	t.Run("rejections are not an interruption", func(t *testing.T) {
		sub := &fakeSubmitter{fn: func(context.Context, string, PreparedRecord) error {
			return &RejectedError{StatusCode: 422, Message: "email cannot be null"}
		}}
		svc := newTestService(t, sub, Options{SubmitConcurrency: 2})

		result, err := svc.submitAll(context.Background(), table, records)
		if err != nil {
			t.Errorf("submitAll() error = %v, want nil", err)
		}
		if result.FailedRows != 3 {
			t.Errorf("FailedRows = %d, want 3", result.FailedRows)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		sub := &fakeSubmitter{}
		svc := newTestService(t, sub, Options{SubmitConcurrency: 2})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := svc.submitAll(ctx, table, records)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("submitAll() error = %v, want context.Canceled", err)
		}
		if result.FailedRows != 3 || len(result.Errors) != 3 {
			t.Fatalf("result = %+v", result)
		}
		for _, e := range result.Errors {
			if e.Message != MsgCancelled {
				t.Errorf("row %d error = %q, want %q", e.Row, e.Message, MsgCancelled)
			}
		}
		if sub.count() != 0 {
			t.Errorf("submitted %d rows, want 0", sub.count())
		}
	})

	t.Run("no endpoint", func(t *testing.T) {
		offline, _ := testCatalog(t).Get("offline")
		svc := newTestService(t, &fakeSubmitter{}, Options{})

		result, err := svc.submitAll(context.Background(), offline, records)
		if err != nil {
			t.Errorf("submitAll() error = %v, want nil", err)
		}
		if result.FailedRows != 3 || result.Errors[0].Message != MsgNoEndpoint {
			t.Errorf("result = %+v", result)
		}
	})
}

func TestService_RecordsRequester(t *testing.T) {
	audit := &fakeAudit{}
	svc := newTestService(t, &fakeSubmitter{}, Options{Audit: audit})

	creator := Requester{IP: "198.51.100.4", UserAgent: "browser"}
	view, err := svc.CreateSession(WithRequester(context.Background(), creator), "people", peopleFile())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if view.CreatedBy != creator {
		t.Errorf("CreatedBy = %+v, want %+v", view.CreatedBy, creator)
	}
	if _, err := svc.AutoMap(view.ID); err != nil {
		t.Fatalf("AutoMap() error = %v", err)
	}
	if _, err := svc.ValidateSession(view.ID); err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	starter := Requester{IP: "203.0.113.9", UserAgent: "importctl"}
	if _, err := svc.StartImport(WithRequester(ctx, starter), view.ID); err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	if _, err := svc.WaitResult(ctx, view.ID); err != nil {
		t.Fatalf("WaitResult() error = %v", err)
	}

	entries, err := audit.List(ctx, 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("audit entries = %v, %v", entries, err)
	}
	if entries[0].ClientIP != starter.IP || entries[0].UserAgent != starter.UserAgent {
		t.Errorf("audit requester = %q/%q, want %q/%q",
			entries[0].ClientIP, entries[0].UserAgent, starter.IP, starter.UserAgent)
	}
}

func TestRequesterFrom_Empty(t *testing.T) {
	if got := RequesterFrom(context.Background()); got != (Requester{}) {
		t.Errorf("RequesterFrom() = %+v, want zero", got)
	}
}

func TestService_AuditFailureKeepsResult(t *testing.T) {
	svc := newTestService(t, &fakeSubmitter{}, Options{Audit: &fakeAudit{err: errors.New("disk full")}})
	id := readySession(t, svc, "people", peopleFile())

	if result := runImport(t, svc, id); !result.Success {
		t.Errorf("result = %+v, want success", result)
	}
}

// ----------------------------------------------------------------------------
// Session Tests
// ----------------------------------------------------------------------------

func TestService_SessionFlowGates(t *testing.T) {
	svc := newTestService(t, &fakeSubmitter{}, Options{})
	ctx := context.Background()

	file := peopleFile()
	file.Rows[1][1] = "" // missing required email

	view, err := svc.CreateSession(ctx, "people", file)
	if err != nil {
		t.Fatal(err)
	}
	if view.Phase != PhaseLoaded || view.UnmappedHeaders != 3 {
		t.Errorf("new session = %+v", view)
	}

	// Not previewed yet.
	if _, err := svc.StartImport(ctx, view.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("StartImport from loaded error = %v, want ErrInvalidTransition", err)
	}

	if _, err := svc.AutoMap(view.ID); err != nil {
		t.Fatal(err)
	}
	preview, err := svc.ValidateSession(view.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(preview.Errors) != 1 || preview.Errors[0].Row != 2 || preview.Errors[0].Column != "Email" {
		t.Fatalf("preview errors = %+v", preview.Errors)
	}
	if preview.Session.CanImport {
		t.Error("CanImport with validation errors")
	}
	if _, err := svc.StartImport(ctx, view.ID); !errors.Is(err, ErrImportBlocked) {
		t.Errorf("StartImport with errors = %v, want ErrImportBlocked", err)
	}

	// Fixing the cell sends the session back to mapped.
	edited, err := svc.UpdateCell(view.ID, 1, 1, "bob@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if edited.Phase != PhaseMapped || len(edited.ValidationErrors) != 0 {
		t.Errorf("after edit = %+v", edited)
	}

	preview, err = svc.ValidateSession(view.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !preview.Session.CanImport {
		t.Fatalf("cannot import after fix: %+v", preview.Session)
	}

	if result := runImport(t, svc, view.ID); !result.Success {
		t.Errorf("result = %+v", result)
	}

	// Finished sessions are read-only.
	if _, err := svc.UpdateCell(view.ID, 0, 0, "x"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("edit after import error = %v", err)
	}
	if _, err := svc.AutoMap(view.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("remap after import error = %v", err)
	}
}

func TestService_MissingRequiredBlocksImport(t *testing.T) {
	svc := newTestService(t, &fakeSubmitter{}, Options{})
	ctx := context.Background()

	view, err := svc.CreateSession(ctx, "people", peopleFile())
	if err != nil {
		t.Fatal(err)
	}
	mappings := []ColumnMapping{MapTo("First Name", "first_name"), Unmapped("Email Address"), MapTo("Age", "age")}
	mapped, err := svc.SetMappings(view.ID, mappings)
	if err != nil {
		t.Fatal(err)
	}
	if len(mapped.MissingRequired) != 1 || mapped.MissingRequired[0] != "email" {
		t.Errorf("MissingRequired = %v, want [email]", mapped.MissingRequired)
	}

	if _, err := svc.ValidateSession(view.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.StartImport(ctx, view.ID); !errors.Is(err, ErrImportBlocked) {
		t.Errorf("StartImport error = %v, want ErrImportBlocked", err)
	}
}

func TestService_ForceImport(t *testing.T) {
	sub := &fakeSubmitter{}
	svc := newTestService(t, sub, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	view, err := svc.CreateSession(ctx, "people", peopleFile())
	if err != nil {
		t.Fatal(err)
	}
	mappings := []ColumnMapping{MapTo("First Name", "first_name"), Unmapped("Email Address"), MapTo("Age", "age")}
	if _, err := svc.SetMappings(view.ID, mappings); err != nil {
		t.Fatal(err)
	}

	// Not yet previewed.
	if _, err := svc.ForceImport(ctx, view.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ForceImport before validate error = %v, want ErrInvalidTransition", err)
	}

	if _, err := svc.ValidateSession(view.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ForceImport(ctx, view.ID); err != nil {
		t.Fatalf("ForceImport() error = %v", err)
	}
	result, err := svc.WaitResult(ctx, view.ID)
	if err != nil {
		t.Fatal(err)
	}

	if !result.Success || result.SuccessfulRows != 3 {
		t.Errorf("result = %+v, want 3 successful rows", result)
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	for i, rec := range sub.calls {
		email, _ := rec["email"].(string)
		if !strings.HasSuffix(email, "@"+PlaceholderEmailDomain) {
			t.Errorf("record %d email = %q, want placeholder", i, email)
		}
	}
}

func TestService_SetMappingsValidation(t *testing.T) {
	svc := newTestService(t, &fakeSubmitter{}, Options{})
	view, err := svc.CreateSession(context.Background(), "people", peopleFile())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		mappings []ColumnMapping
	}{
		{"too few", []ColumnMapping{MapTo("First Name", "first_name")}},
		{"wrong order", []ColumnMapping{Unmapped("Email Address"), Unmapped("First Name"), Unmapped("Age")}},
		{"duplicate column", []ColumnMapping{MapTo("First Name", "email"), MapTo("Email Address", "email"), Unmapped("Age")}},
		{"unknown column", []ColumnMapping{MapTo("First Name", "nickname"), Unmapped("Email Address"), Unmapped("Age")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SetMappings(view.ID, tt.mappings); !errors.Is(err, ErrInvalidMapping) {
				t.Errorf("SetMappings() error = %v, want ErrInvalidMapping", err)
			}
		})
	}

	got, _ := svc.Session(view.ID)
	if got.Phase != PhaseLoaded {
		t.Errorf("phase = %v after rejected mappings, want loaded", got.Phase)
	}
}

func TestService_UnknownTableAndSession(t *testing.T) {
	svc := newTestService(t, &fakeSubmitter{}, Options{})

	if _, err := svc.CreateSession(context.Background(), "nope", peopleFile()); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("CreateSession error = %v, want ErrUnknownTable", err)
	}
	if _, err := svc.Session("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Session error = %v, want ErrSessionNotFound", err)
	}
	if err := svc.DeleteSession("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("DeleteSession error = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.CreateSession(context.Background(), "people", FileData{}); err == nil {
		t.Error("CreateSession without headers should fail")
	}
}

func TestService_Rows(t *testing.T) {
	svc := newTestService(t, &fakeSubmitter{}, Options{})
	file := peopleFile()
	file.Rows[0] = []any{"Ada"} // short rows are padded

	view, err := svc.CreateSession(context.Background(), "people", file)
	if err != nil {
		t.Fatal(err)
	}

	rows, total, err := svc.Rows(view.ID, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(rows) != 2 || len(rows[0]) != 3 {
		t.Errorf("Rows(0, 2) = %v (total %d)", rows, total)
	}

	rows, _, _ = svc.Rows(view.ID, 2, 0)
	if len(rows) != 1 || rows[0][0] != "Cy" {
		t.Errorf("Rows(2, 0) = %v", rows)
	}

	rows, _, _ = svc.Rows(view.ID, 10, 5)
	if len(rows) != 0 {
		t.Errorf("Rows(10, 5) = %v, want none", rows)
	}

	// Returned rows are copies.
	rows, _, _ = svc.Rows(view.ID, 0, 1)
	rows[0][0] = "changed"
	again, _, _ := svc.Rows(view.ID, 0, 1)
	if again[0][0] != "Ada" {
		t.Errorf("session row changed through returned slice: %v", again[0])
	}
}

func TestService_ExpireSessions(t *testing.T) {
	metrics := &countingMetrics{}
	svc := newTestService(t, &fakeSubmitter{}, Options{Metrics: metrics})

	old, _ := svc.CreateSession(context.Background(), "people", peopleFile())
	fresh, _ := svc.CreateSession(context.Background(), "people", peopleFile())

	svc.mu.Lock()
	svc.sessions[old.ID].updatedAt = time.Now().Add(-2 * time.Hour)
	svc.mu.Unlock()

	if n := svc.ExpireSessions(time.Hour); n != 1 {
		t.Errorf("ExpireSessions() = %d, want 1", n)
	}
	if _, err := svc.Session(old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("old session still present: %v", err)
	}
	if _, err := svc.Session(fresh.ID); err != nil {
		t.Errorf("fresh session removed: %v", err)
	}
	metrics.mu.Lock()
	if metrics.active != 1 {
		t.Errorf("active sessions gauge = %d, want 1", metrics.active)
	}
	metrics.mu.Unlock()
}

func TestService_WriteReport(t *testing.T) {
	sub := &fakeSubmitter{fn: func(_ context.Context, _ string, rec PreparedRecord) error {
		if rec["first_name"] == "Cy" {
			return &RejectedError{StatusCode: 409, Message: "Duplicate entry 'cy@x.com' for key 'people.email'"}
		}
		return nil
	}}
	svc := newTestService(t, sub, Options{})
	id := readySession(t, svc, "people", peopleFile())

	var buf bytes.Buffer
	if err := svc.WriteReport(id, &buf); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("WriteReport before import error = %v", err)
	}

	runImport(t, svc, id)
	buf.Reset()
	if err := svc.WriteReport(id, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, frag := range []string{"File Name,people.csv", "Table,People", "Failed Rows,1", "3,email,Duplicate entry 'cy@x.com'"} {
		if !strings.Contains(out, frag) {
			t.Errorf("report missing %q:\n%s", frag, out)
		}
	}
}

func TestService_PurgeAudit(t *testing.T) {
	audit := &fakeAudit{entries: []AuditLog{
		{ID: "new", Timestamp: time.Now()},
		{ID: "old", Timestamp: time.Now().Add(-48 * time.Hour)},
	}}
	svc := newTestService(t, &fakeSubmitter{}, Options{Audit: audit})

	n, err := svc.PurgeAudit(context.Background(), 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("PurgeAudit() = %d, %v", n, err)
	}
	entries, _ := svc.AuditLog(context.Background(), 0)
	if len(entries) != 1 || entries[0].ID != "new" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestNewService_Requires(t *testing.T) {
	if _, err := NewService(nil, Options{Submitter: &fakeSubmitter{}}); err == nil {
		t.Error("NewService without catalog should fail")
	}
	if _, err := NewService(schema.NewCatalog(), Options{}); err == nil {
		t.Error("NewService without submitter should fail")
	}
}

package core

import (
	"context"
	"time"
)

// TemplateStore persists mapping templates.
// Get, Update and Delete return an error wrapping ErrTemplateNotFound for
// unknown IDs; Create and Update return ErrTemplateExists when the name is
// already used by another template of the same table.
type TemplateStore interface {
	List(ctx context.Context, tableName string) ([]MappingTemplate, error)
	Get(ctx context.Context, id string) (MappingTemplate, error)
	Create(ctx context.Context, name, tableName string, mappings []ColumnMapping) (MappingTemplate, error)
	Update(ctx context.Context, id, name string, mappings []ColumnMapping) (MappingTemplate, error)
	Delete(ctx context.Context, id string) error
}

// AuditStore keeps a bounded, newest-first log of import runs.
// Append must be safe for concurrent use.
type AuditStore interface {
	Append(ctx context.Context, entry AuditLog) error
	List(ctx context.Context, limit int) ([]AuditLog, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Submitter sends one record to a table endpoint.
// A non-2xx answer is reported as a *RejectedError.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, record PreparedRecord) error
}

// Metrics receives import events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ImportStarted(table string)
	ImportFinished(table string, phase Phase, elapsed time.Duration)
	RowSubmitted(table string, ok bool, elapsed time.Duration)
	SessionsActive(n int)
}

type nopMetrics struct{}

func (nopMetrics) ImportStarted(string)                        {}
func (nopMetrics) ImportFinished(string, Phase, time.Duration) {}
func (nopMetrics) RowSubmitted(string, bool, time.Duration)    {}
func (nopMetrics) SessionsActive(int)                          {}

package core

import (
	"context"
	"log/slog"
)

// Requester identifies the client that created a session or started an
// import. It is recorded on the session and in the audit log.
type Requester struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// LogValue groups the requester's fields in log records.
func (r Requester) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ip", r.IP),
		slog.String("user_agent", r.UserAgent),
	)
}

type requesterKey struct{}

// WithRequester returns a copy of ctx carrying r.
func WithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, r)
}

// RequesterFrom returns the requester stored in ctx, or the zero Requester.
func RequesterFrom(ctx context.Context) Requester {
	r, _ := ctx.Value(requesterKey{}).(Requester)
	return r
}

package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/tabimport/internal/core"
	webmw "github.com/JonMunkholm/tabimport/internal/web/middleware"
)

// withRequester returns r's context carrying the client that sent it. The
// session keeps its creator and the audit entry names who started the import.
func withRequester(r *http.Request) context.Context {
	return core.WithRequester(r.Context(), core.Requester{
		IP:        webmw.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}

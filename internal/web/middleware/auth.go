package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tabimport/internal/config"
	"github.com/JonMunkholm/tabimport/internal/logging"
)

// APIKeyAuth admits requests that carry one of cfg.APIKeys, either in the
// X-API-Key header or as an Authorization bearer token. With RequireAPIKey
// off every request passes; with it on and no keys configured none do.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := apiKeyFrom(r)
			switch {
			case key == "":
				rejectKey(w, r, http.StatusUnauthorized, errorBody{
					Error:   "missing API key",
					Message: "Send an API key in the X-API-Key header",
					Code:    "AUTH001",
				})
			case !isValidAPIKey(key, cfg.APIKeys):
				rejectKey(w, r, http.StatusForbidden, errorBody{
					Error:   "invalid API key",
					Message: "The API key is not recognised",
					Code:    "AUTH002",
				})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func apiKeyFrom(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func rejectKey(w http.ResponseWriter, r *http.Request, status int, body errorBody) {
	logging.FromContext(r.Context()).Warn("api key rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"ip", ClientIP(r),
		"code", body.Code,
	)
	writeError(w, status, body)
}

// isValidAPIKey compares key against every configured key in constant time,
// whichever one matches.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

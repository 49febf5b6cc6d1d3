package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/shareward/shareward/internal/apierr"
)

const bearerPrefix = "Bearer "

// authenticate reports whether r carries a bearer token equal to
// apiKey. The comparison is constant-time so the response latency
// cannot be used to recover the key a byte at a time.
func authenticate(r *http.Request, apiKey string) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	token := strings.TrimPrefix(header, bearerPrefix)
	return subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1
}

// requireAuth wraps h so it only runs when the request carries the
// correct bearer token; otherwise it writes 401 and h never runs.
func requireAuth(apiKey string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authenticate(r, apiKey) {
			apiErr := apierr.Newf(apierr.KindUnauthorized, "missing or invalid bearer token")
			writeError(w, apierr.HTTPStatus(apiErr), apiErr.Error())
			return
		}
		h(w, r)
	}
}

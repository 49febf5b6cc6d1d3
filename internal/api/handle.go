package api

import (
	"net/http"
	"time"

	"github.com/shareward/shareward/internal/log"
)

// Handler is the audited handler shape every route in this package
// implements: it receives the in-flight audit entry so it can record
// what kind of operation it performed before the wrapper closes it out.
type Handler func(w http.ResponseWriter, r *http.Request, audit *log.AuditEntry)

// audited wraps h with entry/exit audit logging, mirroring the
// lifecycle every request goes through: created, then either success
// or error, with duration measured end to end.
func audited(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		entry := log.NewAuditEntry(r.URL.Path)
		log.Audit(entry)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r, &entry)

		if rec.status >= 400 {
			entry.State = log.AuditErrored
		} else {
			entry.State = log.AuditSuccess
		}
		entry.Duration = time.Since(now)
		log.Audit(entry)
	}
}

// statusRecorder captures the status code a handler wrote so the audit
// wrapper can classify the outcome without each handler reporting it
// explicitly.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

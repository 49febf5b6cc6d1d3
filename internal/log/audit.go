package log

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// AuditState describes the lifecycle stage of an audited request.
type AuditState string

const (
	AuditEntryCreated AuditState = "created"
	AuditSuccess      AuditState = "success"
	AuditErrored      AuditState = "error"
)

// AuditAction names the kind of operation being audited.
type AuditAction string

const (
	AuditEnter    AuditAction = "enter"
	AuditExit     AuditAction = "exit"
	AuditCreate   AuditAction = "create"
	AuditRead     AuditAction = "read"
	AuditFallback AuditAction = "fallback"
)

// AuditEntry is a single request's audit trail. It is created when a
// handler is entered and updated in place as the request is processed,
// then logged again on exit with its final state and duration.
type AuditEntry struct {
	TrailID   string
	Timestamp time.Time
	Action    AuditAction
	Path      string
	Resource  string
	State     AuditState
	Err       string
	Duration  time.Duration
}

// Audit writes entry to the process logger as a JSON line.
func Audit(entry AuditEntry) {
	body, err := json.Marshal(entry)
	if err != nil {
		Log().Error("Audit", "msg", "problem marshalling audit entry", "err", err.Error())
		return
	}
	Log().Info("audit", "entry", string(body))
}

// AuditRequest logs an incoming HTTP request and records the given action
// on the audit entry being built for it.
func AuditRequest(fName string, r *http.Request, audit *AuditEntry, action AuditAction) {
	Log().Info(fName, "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
	audit.Action = action
	audit.Resource = r.URL.Path
}

// NewAuditEntry starts an audit trail for an incoming request.
func NewAuditEntry(path string) AuditEntry {
	return AuditEntry{
		TrailID:   uuid.NewString(),
		Timestamp: time.Now(),
		Action:    AuditEnter,
		Path:      path,
		State:     AuditEntryCreated,
	}
}

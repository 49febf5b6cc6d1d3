package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shareward/shareward/internal/apierr"
	"github.com/shareward/shareward/internal/cluster"
	"github.com/shareward/shareward/internal/log"
	"github.com/shareward/shareward/internal/sharing"
	"github.com/shareward/shareward/internal/store"
)

// Server is the admission API (C5). It holds no state of its own
// beyond references to the node's log and store; every request is
// served by reading or proposing against those.
type Server struct {
	log    *cluster.Log
	store  *store.Store
	apiKey string
	self   sharing.NodeId
}

// NewServer returns a Server for this node, gated by apiKey.
func NewServer(l *cluster.Log, s *store.Store, self sharing.NodeId, apiKey string) *Server {
	return &Server{log: l, store: s, apiKey: apiKey, self: self}
}

// Register mounts the admission surface's routes onto mux, so a
// caller can share one mux between this API and the cluster's
// internal peer RPC routes.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/{client_id}/secret", requireAuth(s.apiKey, audited(s.storeSecret)))
	mux.HandleFunc("GET /api/{client_id}/share", requireAuth(s.apiKey, audited(s.getShare)))
	mux.HandleFunc("GET /healthz", s.healthz)
}

// Mux builds a standalone HTTP routing table for the admission
// surface, for callers (tests) that don't need to share a mux.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func clientIDFromPath(r *http.Request) (sharing.ClientId, error) {
	raw := r.PathValue("client_id")
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("api: invalid client_id")
	}
	return sharing.NewClientId(v), nil
}

// storeSecret handles POST /api/{client_id}/secret: it proposes a
// StoreShare command through the replicated log and echoes back the
// accepted record.
func (s *Server) storeSecret(w http.ResponseWriter, r *http.Request, audit *log.AuditEntry) {
	const fName = "storeSecret"
	log.AuditRequest(fName, r, audit, log.AuditCreate)

	clientID, err := clientIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := readBody(r)
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req shareRecordJSON
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ys, err := decodeYs(req.Share.Ys)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ys must be hex-encoded")
		return
	}

	if sharing.NewNodeId(req.Share.X) != s.self {
		writeError(w, http.StatusBadRequest, "share.x must equal this node's id")
		return
	}

	cmd := cluster.Command{
		Kind:           cluster.KindStoreShare,
		ClientId:       clientID.Uint64(),
		X:              req.Share.X,
		Ys:             ys,
		SharesRequired: req.Meta.SharesRequired,
		SharesToCreate: req.Meta.SharesToCreate,
		SecretLen:      req.Meta.SecLen,
	}

	// Propose's result comes from the leader's local apply, and the
	// leader is not necessarily the node this share is addressed to
	// (applyStoreShare is a no-op on every node but the addressee) — so
	// the accepted record echoed back is the one this handler already
	// validated, not whatever the leader's apply happened to return.
	if _, err := s.log.Propose(r.Context(), cmd); err != nil {
		log.Log().Error(fName, "msg", "propose failed", "err", err.Error())
		apiErr := apierr.New(apierr.KindConsensusError, err)
		writeError(w, apierr.HTTPStatus(apiErr), "failed to commit share")
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// getShare handles GET /api/{client_id}/share: a refresh in progress
// on this node blocks the read rather than serving a possibly
// pre-refresh share mid-round.
func (s *Server) getShare(w http.ResponseWriter, r *http.Request, audit *log.AuditEntry) {
	const fName = "getShare"
	log.AuditRequest(fName, r, audit, log.AuditRead)

	clientID, err := clientIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.store.Refreshing() {
		apiErr := apierr.Newf(apierr.KindRefreshInProgress, "refresh in progress on this node")
		writeError(w, apierr.HTTPStatus(apiErr), apiErr.Error())
		return
	}

	rec, err := s.store.Get(clientID)
	if err != nil {
		apiErr := apierr.New(apierr.KindNotFound, err)
		writeError(w, apierr.HTTPStatus(apiErr), apiErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, shareJSON{X: rec.Share.X.Uint8(), Ys: encodeYs(rec.Share.Ys)})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

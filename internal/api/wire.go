// Package api is the admission surface (C5): authenticated ingress for
// storing and retrieving shares, plus an unauthenticated liveness
// probe. It never writes to the store directly — writes go through a
// cluster.Log Propose, reads go straight to the local store.Store.
package api

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/shareward/shareward/internal/log"
)

// shareJSON is the wire shape of sharing.Share: ys is hex-encoded so it
// survives JSON transport as printable text.
type shareJSON struct {
	X  uint8  `json:"x"`
	Ys string `json:"ys"`
}

type metadataJSON struct {
	SharesRequired uint8  `json:"shares_required"`
	SharesToCreate uint8  `json:"shares_to_create"`
	SecLen         uint64 `json:"sec_len"`
}

type shareRecordJSON struct {
	Share shareJSON    `json:"share"`
	Meta  metadataJSON `json:"meta"`
}

func encodeYs(b []byte) string { return hex.EncodeToString(b) }

func decodeYs(s string) ([]byte, error) { return hex.DecodeString(s) }

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := r.Body.Close(); cerr != nil {
			log.Log().Warn("api", "msg", "problem closing request body", "err", cerr.Error())
		}
	}()
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.WriteHeader(status)

	encoded, err := json.Marshal(body)
	if err != nil {
		log.Log().Error("api", "msg", "problem marshalling response", "err", err.Error())
		return
	}
	if _, err := w.Write(encoded); err != nil {
		log.Log().Error("api", "msg", "problem writing response", "err", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Err string `json:"error"`
	}{Err: message})
}

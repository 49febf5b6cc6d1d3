package cluster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	replicatePath = "/internal/cluster/replicate"
	forwardPath   = "/internal/cluster/forward"
	contentType   = "application/cbor"
)

// HTTPTransport implements Transport over plain HTTP POST requests
// between node processes. It does not itself handle TLS: that is the
// collaborator responsibility the specification delegates elsewhere.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a Transport using client for outbound calls.
// A nil client falls back to http.DefaultClient.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Replicate(ctx context.Context, peerAddr string, cmd []byte) ([]byte, error) {
	return t.post(ctx, withScheme(peerAddr)+replicatePath, cmd)
}

func (t *HTTPTransport) Forward(ctx context.Context, leaderAddr string, cmd []byte) ([]byte, error) {
	return t.post(ctx, withScheme(leaderAddr)+forwardPath, cmd)
}

// withScheme lets config addresses be plain host:port, the form every
// example in this module's config and tests use, while still producing
// a URL net/http will accept.
func withScheme(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

func (t *HTTPTransport) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cluster: building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cluster: request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cluster: reading response from %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cluster: %s returned status %d", url, resp.StatusCode)
	}
	return respBody, nil
}

// RegisterHandlers mounts the replicate and forward endpoints this node
// exposes to its peers on mux.
func RegisterHandlers(mux *http.ServeMux, l *Log) {
	mux.HandleFunc(replicatePath, func(w http.ResponseWriter, r *http.Request) {
		handleCommand(w, r, l.HandleReplicate)
	})
	mux.HandleFunc(forwardPath, func(w http.ResponseWriter, r *http.Request) {
		handleCommand(w, r, func(cmd []byte) ([]byte, error) {
			return l.HandleForward(r.Context(), cmd)
		})
	})
}

func handleCommand(w http.ResponseWriter, r *http.Request, handle func([]byte) ([]byte, error)) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	result, err := handle(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}

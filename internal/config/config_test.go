package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	body := `
raft_addr: "127.0.0.1:9001"
node_id: 1
api_key: "secret"
interval_refresh_secs: 60
peers:
  2: "127.0.0.1:9002"
  3: "127.0.0.1:9003"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9001", cfg.RaftAddr)
	require.Equal(t, uint8(1), cfg.NodeId)
	require.Equal(t, "secret", cfg.APIKey)
	require.Len(t, cfg.PeerAddrs(), 2)
}

func TestEnvOverridesFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	body := `
raft_addr: "127.0.0.1:9001"
node_id: 1
api_key: "secret"
interval_refresh_secs: 60
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("SHAREWARD_NODE_ID", "2")
	t.Setenv("shareward_api_key", "overridden")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint8(2), cfg.NodeId)
	require.Equal(t, "overridden", cfg.APIKey)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	require.Error(t, err)
}

// Package config binds the node's configuration from an optional YAML
// file plus environment variable overrides, matching the key set the
// core contracts: raft_addr, peer_addr, http_port, node_id, api_key,
// interval_refresh_secs, plus a peers table for cluster membership.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shareward/shareward/internal/sharing"
)

const envPrefix = "SHAREWARD_"

// Config is the fully resolved configuration for one node.
type Config struct {
	// RaftAddr is the bind address for the replicated log's peer RPC.
	RaftAddr string `yaml:"raft_addr"`
	// PeerAddr, if set, is an existing cluster member this node joins
	// through. If empty, this node bootstraps the cluster as leader.
	PeerAddr string `yaml:"peer_addr"`
	// HTTPPort is the admission API's listen port.
	HTTPPort int `yaml:"http_port"`
	// NodeId is this node's identifier; it must equal the x coordinate
	// of every Share this node is asked to store.
	NodeId uint8 `yaml:"node_id"`
	// APIKey is the shared bearer token the admission API checks.
	APIKey string `yaml:"api_key"`
	// IntervalRefreshSecs is the refresh coordinator's tick period.
	IntervalRefreshSecs int `yaml:"interval_refresh_secs"`
	// Peers maps every other node's id to its raft_addr, for cluster
	// membership at startup.
	Peers map[uint8]string `yaml:"peers"`
}

// RefreshInterval converts IntervalRefreshSecs to a time.Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.IntervalRefreshSecs) * time.Second
}

// PeerAddrs returns Peers keyed by sharing.NodeId, for direct use when
// constructing a cluster.Log.
func (c *Config) PeerAddrs() map[sharing.NodeId]string {
	out := make(map[sharing.NodeId]string, len(c.Peers))
	for id, addr := range c.Peers {
		out[sharing.NewNodeId(id)] = addr
	}
	return out
}

// Load reads Config from path if it is non-empty, then applies
// environment variable overrides on top (case-insensitive, prefixed
// SHAREWARD_, e.g. SHAREWARD_NODE_ID). A missing file at a non-empty
// path is an error; no path at all starts from the built-in defaults
// (http_port 8080, interval_refresh_secs 300) and relies on the
// environment for everything else.
func Load(path string) (*Config, error) {
	cfg := &Config{
		HTTPPort:            8080,
		IntervalRefreshSecs: 300,
	}

	if path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(body, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := lookupEnv("RAFT_ADDR"); v != "" {
		cfg.RaftAddr = v
	}
	if v := lookupEnv("PEER_ADDR"); v != "" {
		cfg.PeerAddr = v
	}
	if v := lookupEnv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = n
		}
	}
	if v := lookupEnv("NODE_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 8); err == nil {
			cfg.NodeId = uint8(n)
		}
	}
	if v := lookupEnv("API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := lookupEnv("INTERVAL_REFRESH_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IntervalRefreshSecs = n
		}
	}
}

// lookupEnv performs a case-insensitive lookup of SHAREWARD_<key> by
// scanning the process environment, since os.Getenv itself is already
// case-sensitive-exact on most platforms the key is expected uppercase,
// but the contract requires case-insensitive matching.
func lookupEnv(key string) string {
	want := strings.ToUpper(envPrefix + key)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.ToUpper(parts[0]) == want {
			return parts[1]
		}
	}
	return ""
}

func (c *Config) validate() error {
	if c.NodeId == 0 {
		return fmt.Errorf("config: node_id is required and must be >= 1")
	}
	if c.APIKey == "" {
		return fmt.Errorf("config: api_key is required")
	}
	if c.RaftAddr == "" {
		return fmt.Errorf("config: raft_addr is required")
	}
	if c.IntervalRefreshSecs <= 0 {
		return fmt.Errorf("config: interval_refresh_secs must be positive")
	}
	return nil
}

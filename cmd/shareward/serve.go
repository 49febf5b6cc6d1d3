package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shareward/shareward/internal/api"
	"github.com/shareward/shareward/internal/cluster"
	"github.com/shareward/shareward/internal/config"
	"github.com/shareward/shareward/internal/log"
	"github.com/shareward/shareward/internal/out"
	"github.com/shareward/shareward/internal/refresh"
	"github.com/shareward/shareward/internal/retry"
	"github.com/shareward/shareward/internal/sharing"
	"github.com/shareward/shareward/internal/store"
)

// joinTimeout bounds how long a joining node waits for the existing
// cluster to answer before giving up on startup.
const joinTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node: replicated log, refresh coordinator, and admission API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func serve(configPath string) error {
	out.PrintBanner(appName, appVersion)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", appName, err)
	}

	self := sharing.NewNodeId(cfg.NodeId)
	s := store.New()
	adapter := cluster.NewAdapter(self, s)

	leader := self
	if cfg.PeerAddr != "" {
		// Joining an existing cluster: node 1 is the fixed leader by
		// convention; a node started without peer_addr leads itself.
		leader = sharing.NewNodeId(1)

		joinCtx, cancel := context.WithTimeout(context.Background(), joinTimeout)
		defer cancel()
		if err := waitForPeer(joinCtx, cfg.PeerAddr); err != nil {
			return fmt.Errorf("%s: joining cluster at %s: %w", appName, cfg.PeerAddr, err)
		}
	}

	transport := cluster.NewHTTPTransport(nil)
	repLog := cluster.NewLog(self, leader, cfg.PeerAddrs(), transport, adapter)

	mux := http.NewServeMux()
	apiServer := api.NewServer(repLog, s, self, cfg.APIKey)
	apiServer.Register(mux)

	clusterMux := http.NewServeMux()
	cluster.RegisterHandlers(clusterMux, repLog)
	raftServer := &http.Server{Addr: cfg.RaftAddr, Handler: clusterMux}
	go func() {
		if err := raftServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(fmt.Sprintf("serve: peer RPC server failed: %s", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := refresh.NewCoordinator(self, repLog, s, cfg.RefreshInterval())
	go coordinator.Run(ctx)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(fmt.Sprintf("serve: ingress server failed: %s", err.Error()))
		}
	}()

	log.Log().Info("serve", "msg", "node started", "node_id", self.String(), "http_port", cfg.HTTPPort)

	<-ctx.Done()
	log.Log().Info("serve", "msg", "shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Log().Error("serve", "msg", "ingress server shutdown error", "err", err.Error())
	}
	if err := raftServer.Shutdown(shutdownCtx); err != nil {
		log.Log().Error("serve", "msg", "peer RPC server shutdown error", "err", err.Error())
	}

	return nil
}

// waitForPeer retries a raw TCP dial against an existing cluster
// member's raft_addr until it accepts a connection or ctx expires, so a
// node started with peer_addr pointed at a node that hasn't finished
// coming up yet doesn't fail startup on the first dial.
func waitForPeer(ctx context.Context, peerAddr string) error {
	r := retry.NewExponentialRetrier(0)
	return r.Do(ctx, func() error {
		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", peerAddr)
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

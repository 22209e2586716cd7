// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command pimd is a PIM-SM (RFC 7761) multicast routing daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/config"
	"pim-sm.dev/pimd/internal/install"
	"pim-sm.dev/pimd/internal/logging"
	"pim-sm.dev/pimd/internal/metrics"
	"pim-sm.dev/pimd/internal/pim/addr"
	"pim-sm.dev/pimd/internal/pim/kernelmfc"
	"pim-sm.dev/pimd/internal/pim/node"
	"pim-sm.dev/pimd/internal/pim/rp"
	"pim-sm.dev/pimd/internal/pim/transport"
	"pim-sm.dev/pimd/internal/pim/vif"
)

func main() {
	configPath := flag.String("config", "", "path to the HCL configuration file (default: "+install.DefaultConfigDir+"/pimd.hcl)")
	sim := flag.Bool("sim", false, "run against in-memory transport and kernel providers instead of real sockets")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on, e.g. :9157 (disabled if empty)")
	logJSON := flag.Bool("log-json", false, "emit logs as JSON instead of text")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	netns := flag.String("netns", "", "named network namespace to perform RPF route lookups in (default: current namespace)")
	dumpConfig := flag.Bool("dump-config", false, "write the effective (defaulted and resolved) configuration to stdout as HCL and exit")
	flag.Parse()

	logging.Configure(os.Stderr, parseLevel(*logLevel), *logJSON)
	log := logging.WithComponent("main")

	if *configPath == "" {
		*configPath = filepath.Join(install.GetConfigDir(), "pimd.hcl")
	}
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.WithError(err).Error("failed to load configuration", "path", *configPath)
		os.Exit(1)
	}

	if *dumpConfig {
		if err := config.WriteHCL(cfg, os.Stdout); err != nil {
			log.WithError(err).Error("failed to write effective configuration")
			os.Exit(1)
		}
		return
	}

	family := addr.V4
	if cfg.Family == "v6" {
		family = addr.V6
	}

	reg := metrics.New()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, reg, log)
	}

	conn, kern, mrib, err := buildProviders(family, *sim, *netns)
	if err != nil {
		log.WithError(err).Error("failed to initialize transport/kernel providers")
		os.Exit(1)
	}
	defer conn.Close()
	defer kern.Close()
	defer mrib.Close()

	localID := addr.Addr{}
	if len(cfg.Vifs) > 0 {
		localID = cfg.Vifs[0].PrimaryAddr
	}

	n := node.New(node.Config{
		Family:  family,
		Clock:   clock.Real{},
		Conn:    conn,
		Kernel:  kern,
		Mrib:    mrib,
		LocalID: localID,
		Metrics: reg,
	})
	if err := n.Configure(cfg); err != nil {
		log.WithError(err).Error("failed to apply configuration")
		os.Exit(1)
	}

	snapshotPath := filepath.Join(install.GetStateDir(), "rpset.yaml")
	loadRPSnapshot(n, snapshotPath, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	log.Info("pimd starting", "family", family.String(), "config", *configPath, "sim", *sim)
	runErr := n.Run(ctx)
	saveRPSnapshot(n, snapshotPath, log)
	if runErr != nil && ctx.Err() == nil {
		log.WithError(runErr).Error("node exited with error")
		os.Exit(1)
	}
	log.Info("pimd exited")
}

// loadRPSnapshot restores the RP set bootstrap learned before a previous
// shutdown, so pimd doesn't run with an empty RP set until the next
// Bootstrap message arrives. A missing or unreadable snapshot is not
// fatal: the RP set simply starts empty, as it always did before this
// file existed.
func loadRPSnapshot(n *node.Node, path string, log *logging.Logger) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	entries, err := rp.LoadSnapshot(f)
	if err != nil {
		log.WithError(err).Warn("ignoring unreadable rp-set snapshot", "path", path)
		return
	}
	n.RestoreRPSnapshot(entries)
	log.Info("restored rp-set snapshot", "path", path, "entries", len(entries))
}

// saveRPSnapshot persists the bootstrap-learned RP set to path on a clean
// shutdown, overwriting whatever was there before.
func saveRPSnapshot(n *node.Node, path string, log *logging.Logger) {
	f, err := os.Create(path)
	if err != nil {
		log.WithError(err).Warn("failed to open rp-set snapshot for writing", "path", path)
		return
	}
	defer f.Close()

	if err := rp.SaveSnapshot(f, n.RPSnapshotEntries()); err != nil {
		log.WithError(err).Warn("failed to write rp-set snapshot", "path", path)
	}
}

// buildProviders wires either the real raw-socket transport, Linux MRT
// kernel provider, and netlink-backed MRIB, or their in-memory --sim
// counterparts.
func buildProviders(family addr.Family, sim bool, netns string) (transport.Conn, kernelmfc.Provider, vif.Mrib, error) {
	if sim {
		return transport.NewSimConn(), kernelmfc.NewSimProvider(), vif.NewSimMrib(), nil
	}

	conn, err := transport.Dial(family)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dial raw PIM socket: %w", err)
	}
	fd, err := conn.FD()
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("get socket fd: %w", err)
	}
	kern, err := kernelmfc.NewReal(int(fd), family == addr.V6)
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("initialize kernel MFC provider: %w", err)
	}
	return conn, kern, vif.NewLinuxMrib(netns), nil
}

func serveMetrics(addr string, reg *metrics.Registry, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("metrics server exited")
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

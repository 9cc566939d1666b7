// dsvd is a demonstration daemon for the Dimensional Scattering Vault: it
// exposes Prometheus metrics and a JSON stats endpoint, and drives a
// loopback harness that continuously scatters synthetic packets and
// gathers them back, standing in for a real external transport
// collaborator.
package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/phantommesh/dsv/internal/config"
	"github.com/phantommesh/dsv/internal/dsv"
	"github.com/phantommesh/dsv/internal/dsvmetrics"
	appversion "github.com/phantommesh/dsv/internal/version"
)

// shutdownTimeout is the maximum time to wait for the metrics HTTP server
// to drain active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// harnessInterval is how often the loopback harness scatters a synthetic
// packet.
const harnessInterval = 200 * time.Millisecond

// harnessSessionCount is the number of distinct synthetic sessions the
// loopback harness rotates through.
const harnessSessionCount = 4

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("dsvd starting",
		slog.String("version", appversion.Version),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	reg := prometheus.NewRegistry()
	collector := dsvmetrics.NewCollector(reg)

	masterKey, err := randomMasterKey()
	if err != nil {
		logger.Error("failed to generate master key", slog.String("error", err.Error()))
		return 1
	}

	vault, err := dsv.NewVault(masterKey, vaultConfigFromConfig(cfg.Vault),
		dsv.WithVaultMetrics(collector),
		dsv.WithVaultLogger(logger),
	)
	if err != nil {
		logger.Error("failed to construct vault", slog.String("error", err.Error()))
		return 1
	}

	if err := runServers(cfg, vault, reg, logger); err != nil {
		logger.Error("dsvd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("dsvd stopped")
	return 0
}

// runServers sets up and runs the metrics HTTP server, the Background
// Maintainer, and the loopback harness under one errgroup with
// signal-aware context for graceful shutdown.
func runServers(cfg *config.Config, vault *dsv.Vault, reg *prometheus.Registry, logger *slog.Logger) error {
	metricsSrv := newMetricsServer(cfg.Metrics, reg, vault)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		return vault.RunMaintainer(gCtx)
	})

	g.Go(func() error {
		return runLoopbackHarness(gCtx, vault, logger)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// runLoopbackHarness scatters a synthetic packet on a rotating set of
// sessions every harnessInterval, then drains and gathers whatever the
// Delay Queue has released so far. It stands in for the external
// transport collaborator that would otherwise carry fragments over the
// wire between scatter and gather.
func runLoopbackHarness(ctx context.Context, vault *dsv.Vault, logger *slog.Logger) error {
	ticker := time.NewTicker(harnessInterval)
	defer ticker.Stop()

	var sessions [harnessSessionCount]dsv.SessionID
	for i := range sessions {
		sessions[i][0] = byte(i + 1)
	}

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			session := sessions[seq%harnessSessionCount]
			seq++

			packet := fmt.Appendf(nil, "synthetic packet %d at %s", seq, time.Now().Format(time.RFC3339Nano))
			if err := vault.Scatter(packet, session); err != nil {
				logger.Warn("scatter failed", slog.String("error", err.Error()))
			}

			for _, fragment := range vault.DrainReady() {
				vault.Accept(fragment)
			}

			for range vault.CollectCompleted() {
				// Reassembled packets are discarded in this demo harness;
				// a real deployment would hand them to the application
				// layer here.
			}
		}
	}
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// newMetricsServer creates an HTTP server exposing the Prometheus metrics
// endpoint and a JSON /stats endpoint backed by the Vault.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry, vault *dsv.Vault) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(vault.Stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Config Helpers
// -------------------------------------------------------------------------

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func vaultConfigFromConfig(vc config.VaultConfig) dsv.VaultConfig {
	return dsv.VaultConfig{
		MaxSessionAge:          vc.MaxSessionAge,
		MaxFragmentAge:         vc.MaxFragmentAge,
		MaxDelay:               vc.MaxDelay,
		CryptoRotationInterval: vc.CryptoRotationInterval,
		FragmentOverlapBytes:   vc.FragmentOverlapBytes,
		MaxFragmentSize:        vc.MaxFragmentSize,
		MaxQueueSize:           vc.MaxQueueSize,
	}
}

func randomMasterKey() ([32]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("generate master key: %w", err)
	}
	return key, nil
}

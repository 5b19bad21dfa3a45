// Package server mounts the report API, the MCP tools and metrics on one HTTP listener.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/selftrack/internal/adapters/server/common"
	"github.com/evanschultz/selftrack/internal/adapters/server/httpapi"
	"github.com/evanschultz/selftrack/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress     = "127.0.0.1:8080"
	defaultAPIEndpoint     = "/api/v1"
	defaultMCPEndpoint     = "/mcp"
	defaultServerName      = "selftrack"
	defaultShutdownTimeout = 5 * time.Second
	readinessTimeout       = 2 * time.Second
	metricsPath            = "/metrics"
)

// Config selects the listener, mount points and optional metrics.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
	EnableMetrics bool
}

// Dependencies are the services behind the transports.
// Metrics is created on demand when EnableMetrics is set and none is given.
type Dependencies struct {
	Reports common.ReportService
	Metrics *Metrics
}

// NewHandler returns the root handler and the normalized config it was built from.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Reports == nil {
		return nil, Config{}, errors.New("reports dependency is required")
	}

	reports := deps.Reports
	var metrics *Metrics
	if cfg.EnableMetrics {
		metrics = deps.Metrics
		if metrics == nil {
			metrics = NewMetrics()
		}
		reports = metrics.Instrument(reports)
	}

	mcpHandler, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
	}, reports)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	api := http.StripPrefix(cfg.APIEndpoint, httpapi.NewHandler(reports))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok", nil)
	})
	mux.HandleFunc("/readyz", readinessHandler(deps.Reports))
	if metrics != nil {
		mux.Handle(metricsPath, metrics.Handler())
	}
	mux.Handle(cfg.MCPEndpoint, mcpHandler)
	mux.Handle(cfg.APIEndpoint, api)
	mux.Handle(cfg.APIEndpoint+"/", api)
	return mux, cfg, nil
}

// Run listens on cfg.HTTPBind and serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPBind, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	addr := listener.Addr().String()
	log.Info("server listening", "addr", addr, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint, "metrics", cfg.EnableMetrics)

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(listener)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(fmt.Errorf("serve http: %w", err), shutdownErr)
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown server: %w", shutdownErr)
	}
	log.Info("server stopped", "addr", addr)
	return nil
}

// normalizeConfig fills defaults and rejects overlapping mount points.
func normalizeConfig(cfg Config) (Config, error) {
	cfg.HTTPBind = valueOr(cfg.HTTPBind, defaultBindAddress)
	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint, defaultAPIEndpoint)
	cfg.MCPEndpoint = normalizeEndpoint(cfg.MCPEndpoint, defaultMCPEndpoint)
	cfg.ServerName = valueOr(cfg.ServerName, defaultServerName)
	cfg.ServerVersion = valueOr(cfg.ServerVersion, "dev")

	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ, both are %s", cfg.APIEndpoint)
	}
	for _, reserved := range []string{"/healthz", "/readyz"} {
		if cfg.APIEndpoint == reserved || cfg.MCPEndpoint == reserved {
			return Config{}, fmt.Errorf("endpoints must not use %s", reserved)
		}
	}
	if cfg.EnableMetrics && (cfg.APIEndpoint == metricsPath || cfg.MCPEndpoint == metricsPath) {
		return Config{}, fmt.Errorf("endpoints must not use %s while metrics are enabled", metricsPath)
	}
	return cfg, nil
}

// normalizeEndpoint cleans p into an absolute path without a trailing slash; "" and "/" select fallback.
func normalizeEndpoint(p, fallback string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return fallback
	}
	return path.Clean("/" + p)
}

func valueOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

// readinessHandler reports ready once the report store answers a batch listing.
func readinessHandler(reports common.ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if _, err := reports.ListBatches(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
		writeStatus(w, http.StatusOK, "ok", nil)
	}
}

func writeStatus(w http.ResponseWriter, code int, status string, err error) {
	body := map[string]string{"status": status}
	if err != nil {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

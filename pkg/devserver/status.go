package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agentdev/pkg/logx"
	"agentdev/pkg/metrics"
)

// StatusServer exposes agentdev's own observability surface while `start`
// is running: Prometheus metrics, a health check, and the recent log buffer.
// It is distinct from the dev server it supervises.
type StatusServer struct {
	port      int
	collector *metrics.Collector
	logger    *logx.Logger
}

// NewStatusServer creates a status server on the given port.
func NewStatusServer(port int, collector *metrics.Collector) *StatusServer {
	return &StatusServer{
		port:      port,
		collector: collector,
		logger:    logx.NewLogger("status"),
	}
}

// Serve runs the status server until ctx is cancelled. Bind failures are
// logged, not fatal: the supervised dev server is the main act.
func (s *StatusServer) Serve(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/logs", s.handleLogs)
	if s.collector != nil {
		mux.Handle("/metrics", s.collector.Handler())
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Debug("Status endpoint listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Warn("Status endpoint failed: %v", err)
	}
}

// handleHealth answers the status server's own liveness check.
func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleLogs serves the in-memory log buffer as JSON.
// ?component=devserver filters by component.
func (s *StatusServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	entries := logx.GetRecentLogEntries(r.URL.Query().Get("component"))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		s.logger.Warn("Failed to encode log entries: %v", err)
	}
}

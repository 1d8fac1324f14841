package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cuemby/gingo/pkg/cluster"
	"github.com/cuemby/gingo/pkg/log"
	"github.com/cuemby/gingo/pkg/metrics"
	"github.com/cuemby/gingo/pkg/policy"
	"github.com/cuemby/gingo/pkg/types"
	"github.com/rs/zerolog"
)

// Registry is the read side of the reconciler
type Registry interface {
	Snapshot() []cluster.Snapshot
	Get(id string) (cluster.Snapshot, bool)
}

// Server exposes health, readiness, metrics and cluster state over HTTP
type Server struct {
	registry Registry
	mux      *http.ServeMux
	server   *http.Server
	logger   zerolog.Logger
}

// NewServer creates a new HTTP server
func NewServer(registry Registry) *Server {
	mux := http.NewServeMux()
	s := &Server{
		registry: registry,
		mux:      mux,
		logger:   log.WithComponent("api"),
	}

	// Register endpoints
	mux.HandleFunc("GET /health", metrics.HealthHandler())
	mux.HandleFunc("GET /ready", metrics.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /clusters", s.listClusters)
	mux.HandleFunc("GET /clusters/{id}", s.getCluster)

	return s
}

// Start serves on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ClusterResponse is the JSON view of one cluster
type ClusterResponse struct {
	ID        string              `json:"id"`
	Phase     cluster.Phase       `json:"phase"`
	Aggregate policy.Status       `json:"aggregate"`
	Counts    map[string]int      `json:"counts"`
	Usable    []string            `json:"usable"`
	Config    types.ClusterConfig `json:"config"`
	Pods      []*types.Pod        `json:"pods"`
}

func toResponse(snap cluster.Snapshot) ClusterResponse {
	counts := policy.Count(snap.Pods)
	byStatus := make(map[string]int, len(counts.ByStatus))
	for status, n := range counts.ByStatus {
		byStatus[string(status)] = n
	}
	return ClusterResponse{
		ID:        snap.Config.ID,
		Phase:     snap.Phase,
		Aggregate: policy.Aggregate(counts, snap.Config.TargetCount),
		Counts:    byStatus,
		Usable:    policy.Usable(snap.Pods),
		Config:    snap.Config,
		Pods:      snap.Pods,
	}
}

// listClusters implements GET /clusters
func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	snaps := s.registry.Snapshot()
	out := make([]ClusterResponse, len(snaps))
	for i, snap := range snaps {
		out[i] = toResponse(snap)
	}
	writeJSON(w, http.StatusOK, out)
}

// getCluster implements GET /clusters/{id}
func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cluster not found"})
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/launcher/pkg/events"
	"github.com/cuemby/launcher/pkg/health"
	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/metrics"
	"github.com/cuemby/launcher/pkg/orchestrator"
	"github.com/cuemby/launcher/pkg/storage"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// DeploymentReader exposes the aggregated deployment state
type DeploymentReader interface {
	State() map[string]*types.DeploymentState
	Deployment(clusterID string) (*types.DeploymentState, bool)
}

// ClusterRegistry looks up registered clusters
type ClusterRegistry interface {
	GetCluster(id string) (*types.Cluster, error)
	ListClusters() ([]*types.Cluster, error)
}

// WorkloadLister queries the workloads of one cluster
type WorkloadLister interface {
	GetWorkloads(ctx context.Context, release string) ([]types.Workload, error)
}

// WorkloadsFunc connects to the Kubernetes API of a cluster
type WorkloadsFunc func(cluster *types.Cluster) (WorkloadLister, error)

// NotificationSource returns recent user notifications
type NotificationSource interface {
	Notifications() []orchestrator.Notification
}

// Config wires the server to the rest of the process. Workloads, Broker and
// Notifications are optional; their routes answer 404 when unset.
type Config struct {
	Deployments   DeploymentReader
	Registry      ClusterRegistry
	Workloads     WorkloadsFunc
	Broker        *events.Broker
	Notifications NotificationSource

	// Release is used for clusters that do not name their own
	Release string
}

// Server is the read-only HTTP surface of a running launcher
type Server struct {
	cfg    Config
	router *mux.Router
	logger zerolog.Logger

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates the server and registers every route
func NewServer(cfg Config) (*Server, error) {
	if cfg.Deployments == nil {
		return nil, errors.New("deployment reader is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("cluster registry is required")
	}
	if cfg.Release == "" {
		cfg.Release = health.DefaultRelease
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: log.WithComponent("api"),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.loggingMiddleware, readOnlyMiddleware)

	r.Path("/health").HandlerFunc(s.healthHandler)
	r.Path("/ready").HandlerFunc(s.readyHandler)
	r.Path("/metrics").Handler(metrics.Handler())

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Path("/clusters").HandlerFunc(s.listClusters)
	v1.Path("/clusters/{id}/workloads").HandlerFunc(s.getWorkloads)
	v1.Path("/deployments").HandlerFunc(s.listDeployments)
	v1.Path("/deployments/{id}").HandlerFunc(s.getDeployment)
	v1.Path("/notifications").HandlerFunc(s.listNotifications)
	v1.Path("/events").HandlerFunc(s.streamEvents)
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ErrorResponse is the body of every non-2xx JSON reply
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.cfg.Registry.ListClusters()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if clusters == nil {
		clusters = []*types.Cluster{}
	}
	writeJSON(w, http.StatusOK, clusters)
}

func (s *Server) listDeployments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Deployments.State())
}

func (s *Server) getDeployment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := s.cfg.Deployments.Deployment(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("no deployment state for cluster "+id))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) getWorkloads(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Workloads == nil {
		s.writeError(w, http.StatusNotFound, errors.New("workload queries are disabled"))
		return
	}

	cluster, err := s.cfg.Registry.GetCluster(mux.Vars(r)["id"])
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, storage.ErrClusterNotFound) {
			code = http.StatusNotFound
		}
		s.writeError(w, code, err)
		return
	}

	client, err := s.cfg.Workloads(cluster)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	release := cluster.Configs[types.ConfigReleaseName]
	if release == "" {
		release = s.cfg.Release
	}

	workloads, err := client.GetWorkloads(r.Context(), release)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, workloads)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Notifications == nil {
		writeJSON(w, http.StatusOK, []orchestrator.Notification{})
		return
	}
	notes := s.cfg.Notifications.Notifications()
	if notes == nil {
		notes = []orchestrator.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", code).Msg("Request failed")
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/logging"
	"github.com/kingrea/fieldstack/internal/web"
)

const (
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// ServerSettings captures listener configuration for the module host.
type ServerSettings struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ServerSettingsFromConfig builds settings from the project's server block.
func ServerSettingsFromConfig(cfg *config.Config) ServerSettings {
	settings := ServerSettings{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if cfg != nil {
		if cfg.Project.Server.Host != "" {
			settings.Host = cfg.Project.Server.Host
		}
		settings.Port = cfg.Project.Server.Port
	}
	return settings
}

// Address returns host:port.
func (s ServerSettings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Server hosts the mounted module APIs, a /health endpoint and the
// client-side route table at /routes.json. Load can be called again while
// serving to swap in a reloaded module set.
type Server struct {
	settings ServerSettings
	logger   *logging.Logger

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time

	current atomic.Pointer[mountedModules]
}

type mountedModules struct {
	mux     *http.ServeMux
	runtime *Runtime
}

// NewServer prepares a module host using the provided settings.
func NewServer(settings ServerSettings, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{settings: settings, logger: logger, status: StatusStarting}
}

// Load mounts the runtime's routes on a fresh mux and swaps it in. On error
// the previously loaded modules keep serving.
func (s *Server) Load(rt *Runtime) error {
	if rt == nil {
		return fmt.Errorf("api: runtime is required")
	}
	mux := http.NewServeMux()
	skipped, err := Mount(mux, rt.Routes, nil)
	if err != nil {
		return err
	}
	for _, name := range skipped {
		s.logger.Warn("module not mounted", "module", name)
	}
	table, err := web.RouteManifest(rt.Manifests)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /routes.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(table)
	})
	s.current.Store(&mountedModules{mux: mux, runtime: rt})
	s.logger.Info("modules mounted", "count", len(rt.Routes)-len(skipped), "mode", rt.InstallMode, "load_id", rt.LoadID)
	return nil
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("api: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.settings.ReadTimeout,
		ReadTimeout:       s.settings.ReadTimeout,
		WriteTimeout:      s.settings.WriteTimeout,
		IdleTimeout:       s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.listener = listener
	s.server = server
	s.startTime = time.Now()
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve", "err", err)
		}
	}()
	s.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		addr = s.settings.Address()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		s.handleHealth(w, r)
		return
	}
	mounted := s.current.Load()
	if mounted == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "modules not loaded"})
		return
	}
	mounted.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status        string `json:"status"`
	LoadID        string `json:"loadId,omitempty"`
	InstallMode   string `json:"installMode,omitempty"`
	Modules       int    `json:"modules"`
	Issues        int    `json:"dependencyIssues"`
	LoadFailures  int    `json:"loadFailures"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	s.mu.RLock()
	resp := healthResponse{Status: string(s.status)}
	if !s.startTime.IsZero() {
		resp.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	}
	s.mu.RUnlock()
	if mounted := s.current.Load(); mounted != nil {
		resp.LoadID = mounted.runtime.LoadID
		resp.InstallMode = mounted.runtime.InstallMode
		resp.Modules = len(mounted.runtime.Manifests)
		resp.Issues = len(mounted.runtime.Issues)
		resp.LoadFailures = len(mounted.runtime.LoadFailures)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

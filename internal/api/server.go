package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/area-core/internal/area"
	"github.com/nerrad567/area-core/internal/audit"
	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/device"
	"github.com/nerrad567/area-core/internal/infrastructure/config"
	"github.com/nerrad567/area-core/internal/infrastructure/logging"
	"github.com/nerrad567/area-core/internal/infrastructure/metrics"
	"github.com/nerrad567/area-core/internal/project"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a dependency whose health is reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ActivationNotifier delivers a freshly issued activation code to the user.
type ActivationNotifier interface {
	NotifyActivation(ctx context.Context, user *auth.User, code string) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Users     auth.UserRepository
	RoleRepo  auth.RoleRepository
	Roles     *auth.RoleService
	Registrar *auth.Registrar
	Notifier  ActivationNotifier
	Guard     *auth.Guard
	Projects  *project.Service
	Devices   *device.Service
	Areas     *area.Service
	AuditRepo audit.Repository
	Audit     audit.Sink
	Metrics   *metrics.Metrics
	Health    map[string]HealthChecker
	Version   string
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	users     auth.UserRepository
	roleRepo  auth.RoleRepository
	roles     *auth.RoleService
	registrar *auth.Registrar
	notifier  ActivationNotifier
	guard     *auth.Guard
	projects  *project.Service
	devices   *device.Service
	areas     *area.Service
	auditRepo audit.Repository
	audit     audit.Sink
	metrics   *metrics.Metrics
	health    map[string]HealthChecker
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
}

// New creates a new API server with the given dependencies. The server is
// not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Areas == nil || deps.Projects == nil || deps.Devices == nil {
		return nil, fmt.Errorf("area, project and device services are required")
	}
	if deps.Users == nil || deps.Guard == nil {
		return nil, fmt.Errorf("user repository and guard are required")
	}

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		users:     deps.Users,
		roleRepo:  deps.RoleRepo,
		roles:     deps.Roles,
		registrar: deps.Registrar,
		notifier:  deps.Notifier,
		guard:     deps.Guard,
		projects:  deps.Projects,
		devices:   deps.Devices,
		areas:     deps.Areas,
		auditRepo: deps.AuditRepo,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		health:    deps.Health,
		version:   deps.Version,
		startTime: time.Now(),
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.notifier == nil {
		s.notifier = logNotifier{logger: deps.Logger}
	}
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine until Close
// is called.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", ln.Addr().String(), "cert", s.cfg.TLS.CertFile)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server, waiting up to ten seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// logNotifier is the fallback ActivationNotifier when no mail transport is
// configured.
type logNotifier struct {
	logger *logging.Logger
}

func (n logNotifier) NotifyActivation(_ context.Context, user *auth.User, code string) error {
	n.logger.Debug("activation code issued", "user_id", user.ID, "username", user.Username, "code", code)
	return nil
}

package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
)

type (
	// ServerDeps are the domain services the API exposes.
	ServerDeps struct {
		dig.In

		UserSvc       user.ServiceInterface
		ModelSvc      model3d.ServiceInterface
		AssignmentSvc assignment.ServiceInterface
	}

	Server struct {
		conf     *core.Config
		logger   core.Logger
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	deps ServerDeps,
) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		app:      echo.New(),
		auth:     newAuthenticator(conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup(validate, translator, deps)
	return s
}

func (s *Server) setup(validate *validator.Validate, translator ut.Translator, deps ServerDeps) {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug && !s.conf.TestMode
	s.app.Logger.SetLevel(log.INFO)
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(metricsMiddleware())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.conf.Server.BodyLimit != "" {
		s.app.Use(middleware.BodyLimit(s.conf.Server.BodyLimit))
	}
	if s.conf.FrontendBaseURL != "" {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: []string{s.conf.FrontendBaseURL}}))
	}

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)

	registerUserAPI(g, jwt, s.auth, deps.UserSvc, validate)
	registerModelAPI(g, jwt, s.auth, deps.UserSvc, deps.ModelSvc, validate)
	registerAssignmentAPI(g, jwt, s.auth, deps.UserSvc, deps.AssignmentSvc, validate)
	registerSubmissionAPI(g, jwt, s.auth, deps.UserSvc, deps.AssignmentSvc, validate)
	registerDashboardAPI(g, jwt, s.auth, deps.UserSvc, deps.AssignmentSvc)
}

// Start blocks until the server stops; startup and runtime failures are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}

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
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/backup"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/dashboard"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

type (
	Options struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		Tenants     *tenant.Service
		Users       *user.Service
		Territories *territory.Service
		Leads       *lead.Service
		Visits      *visit.Service
		Rules       *conversion.Service
		Settings    *setting.Service
		Backups     *backup.Service
		Dashboards  *dashboard.Service
	}

	Server struct {
		opts     Options
		app      *echo.Echo
		auth     *Authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		auth:     NewAuthenticator(opts.Conf, opts.Tenants, opts.Users),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableRequestLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.CORSAllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	authed := s.auth.middleware()
	base := apiBase{validate: s.opts.Validate, translator: s.opts.Translator, territories: s.opts.Territories}

	registerUserAPI(v1, authed, userApi{apiBase: base, auth: s.auth, users: s.opts.Users, tenants: s.opts.Tenants, logger: s.opts.Logger})
	registerTenantAPI(v1, authed, tenantApi{apiBase: base, tenants: s.opts.Tenants})
	registerTerritoryAPI(v1, authed, territoryApi{apiBase: base})
	registerLeadAPI(v1, authed, leadApi{
		apiBase:   base,
		leads:     s.opts.Leads,
		visits:    s.opts.Visits,
		rules:     s.opts.Rules,
		maxUpload: conf.Import.MaxUploadBytes,
	})
	registerVisitAPI(v1, authed, visitApi{apiBase: base, visits: s.opts.Visits, leads: s.opts.Leads})
	registerRuleAPI(v1, authed, ruleApi{apiBase: base, rules: s.opts.Rules})
	registerSettingAPI(v1, authed, settingApi{apiBase: base, settings: s.opts.Settings})
	registerAnalyticsAPI(v1, authed, analyticsApi{apiBase: base, dashboards: s.opts.Dashboards})
	registerBackupAPI(v1, authed, backupApi{apiBase: base, backups: s.opts.Backups})
}

// Start serves the API until Shutdown or Close is called; other failures are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.opts.Conf.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// Auth gives access to token generation, for tests and tools.
func (s *Server) Auth() *Authenticator { return s.auth }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}

// apiBase holds what every API needs.
type apiBase struct {
	validate    *validator.Validate
	translator  ut.Translator
	territories *territory.Service
}

func (api apiBase) scope(ctx echo.Context) (user.User, core.Scope, error) {
	return contextScope(ctx, api.territories)
}

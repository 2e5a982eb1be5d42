package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/ud-systems/UD-Leads-sub001/apps/api/echo"
	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/backup"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/dashboard"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/notify"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
	cachesvc "github.com/ud-systems/UD-Leads-sub001/services/cache"
	emailsvc "github.com/ud-systems/UD-Leads-sub001/services/email"
	logsvc "github.com/ud-systems/UD-Leads-sub001/services/logger"
	"github.com/ud-systems/UD-Leads-sub001/services/scheduler"
	"github.com/ud-systems/UD-Leads-sub001/storage/database"
	dummydb "github.com/ud-systems/UD-Leads-sub001/storage/database/dummy"
	sqlxrepos "github.com/ud-systems/UD-Leads-sub001/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Closer releases a resource when the application stops.
type Closer func() error

type DBCloserParam struct {
	dig.In
	Close Closer `name:"dbCloser"`
}

// Repositories are the storage of every domain, backed by the configured database engine.
type Repositories struct {
	dig.Out

	Tenants     tenant.Repository
	Users       user.Repository
	Territories territory.Repository
	Leads       lead.Repository
	Visits      visit.Repository
	Rules       conversion.Repository
	Settings    setting.Repository
	Backups     backup.Repository

	Close Closer `name:"dbCloser"`
}

type ServicesParam struct {
	dig.In

	Conf   *core.Config
	Logger core.Logger
	Cache  core.Cache
	Email  core.EmailService

	Tenants     tenant.Repository
	Users       user.Repository
	Territories territory.Repository
	Leads       lead.Repository
	Visits      visit.Repository
	Rules       conversion.Repository
	Settings    setting.Repository
	Backups     backup.Repository
}

// Services are the domain services, ready to use.
type Services struct {
	dig.Out

	Tenants     *tenant.Service
	Users       *user.Service
	Territories *territory.Service
	Leads       *lead.Service
	Visits      *visit.Service
	Rules       *conversion.Service
	Settings    *setting.Service
	Backups     *backup.Service
	Dashboards  *dashboard.Service
	Notifier    *notify.Service
}

// ServicesIn requests the domain services from the container.
type ServicesIn struct {
	dig.In

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

func newConfig() (*core.Config, error) {
	conf := core.NewConfig()
	return conf, errors.Wrap(conf.Validate(), "validating config")
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZap("api", conf.Debug), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZap("db", conf.Debug), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (Repositories, error) {
	if conf.Database.Engine == core.DBEngineMemory {
		db, err := dummydb.Open()
		if err != nil {
			return Repositories{}, err
		}
		loggerParam.Logger.Warn("using the in-memory database: data is lost on exit")
		return Repositories{
			Tenants:     dummydb.NewTenantRepository(db),
			Users:       dummydb.NewUserRepository(db),
			Territories: dummydb.NewTerritoryRepository(db),
			Leads:       dummydb.NewLeadRepository(db),
			Visits:      dummydb.NewVisitRepository(db),
			Rules:       dummydb.NewRuleRepository(db),
			Settings:    dummydb.NewSettingRepository(db),
			Backups:     dummydb.NewBackupRepository(db),
			Close:       func() error { return nil },
		}, nil
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return Repositories{}, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return Repositories{}, errors.Wrap(err, "opening database")
	}
	if err = database.Migrate(ctx, db, loggerParam.Logger); err != nil {
		_ = db.Close()
		return Repositories{}, errors.Wrap(err, "migrating database")
	}
	return Repositories{
		Tenants:     sqlxrepos.NewTenantRepository(db),
		Users:       sqlxrepos.NewUserRepository(db),
		Territories: sqlxrepos.NewTerritoryRepository(db),
		Leads:       sqlxrepos.NewLeadRepository(db),
		Visits:      sqlxrepos.NewVisitRepository(db),
		Rules:       sqlxrepos.NewRuleRepository(db),
		Settings:    sqlxrepos.NewSettingRepository(db),
		Backups:     sqlxrepos.NewBackupRepository(db),
		Close:       db.Close,
	}, nil
}

// newCache uses Redis when an address is configured, an in-process cache otherwise.
func newCache(conf *core.Config, logger core.Logger) (core.Cache, error) {
	if conf.Redis.Address == "" {
		return cachesvc.NewMemoryCache(), nil
	}
	cache := cachesvc.NewRedisCache(cachesvc.NewRedisClient(conf))
	if err := cache.Ping(context.Background()); err != nil {
		return nil, errors.Wrap(err, "connecting to redis")
	}
	logger.Info(fmt.Sprintf("caching in redis at %s", conf.Redis.Address))
	return cache, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lead.InitValidators(validate, translator)
	visit.InitValidators(validate, translator)
	conversion.InitValidators(validate, translator)
	return validate, translator
}

// newServices builds the domain services over the repositories.
func newServices(p ServicesParam) Services {
	var s Services

	s.Tenants = tenant.NewService(p.Tenants)
	s.Settings = setting.NewService(p.Settings, p.Cache)
	s.Notifier = notify.NewService(p.Email, s.Settings)
	s.Territories = territory.NewService(p.Territories, p.Users)
	s.Users = user.NewService(p.Users, s.Territories, s.Notifier, p.Conf)
	s.Leads = lead.NewService(p.Leads, s.Territories, s.Users, s.Notifier, p.Cache, p.Conf)
	s.Rules = conversion.NewService(p.Rules, s.Leads, p.Visits, s.Settings, p.Cache)
	s.Visits = visit.NewService(p.Visits, s.Leads, s.Users, s.Settings, s.Rules, s.Notifier, p.Cache, p.Logger)
	s.Backups = backup.NewService(p.Backups, s.Settings, p.Cache)
	s.Dashboards = dashboard.NewService(s.Leads, s.Visits, s.Users, s.Territories, s.Settings, p.Cache, p.Conf)
	return s
}

func newScheduler(conf *core.Config, logger core.Logger, cache core.Cache, svcs ServicesIn) (*scheduler.Scheduler, error) {
	s := scheduler.New(svcs.Tenants, logger)
	// runs even with the tenant jobs disabled
	if sweeper, ok := cache.(scheduler.CacheSweeper); ok {
		if err := s.AddCacheSweep(sweeper); err != nil {
			return nil, err
		}
	}
	if !conf.Scheduler.Enabled {
		return s, nil
	}
	return s, s.AddDefaultJobs(conf.Scheduler, svcs.Visits, svcs.Rules, svcs.Backups)
}

func newServer(conf *core.Config, logger core.Logger, validate *validator.Validate, translator ut.Translator, svcs ServicesIn) *echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		Tenants:     svcs.Tenants,
		Users:       svcs.Users,
		Territories: svcs.Territories,
		Leads:       svcs.Leads,
		Visits:      svcs.Visits,
		Rules:       svcs.Rules,
		Settings:    svcs.Settings,
		Backups:     svcs.Backups,
		Dashboards:  svcs.Dashboards,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newCache))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(newServices))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

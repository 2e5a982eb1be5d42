package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

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
	cachesvc "github.com/ud-systems/UD-Leads-sub001/services/cache"
	logsvc "github.com/ud-systems/UD-Leads-sub001/services/logger"
	dummydb "github.com/ud-systems/UD-Leads-sub001/storage/database/dummy"
)

// NewValidator returns a validator with every domain validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lead.InitValidators(validate, translator)
	visit.InitValidators(validate, translator)
	conversion.InitValidators(validate, translator)
	return validate, translator
}

// NewConfig returns the configuration used by tests.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:                   "UD Leads",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Database: core.DatabaseConfig{Engine: core.DBEngineMemory},
		Redis:    core.RedisConfig{CacheTTL: time.Minute},
		Import:   core.ImportConfig{MaxUploadBytes: 1 << 20, MaxRows: 100},
	}
}

// Notifier records the e-mails the services ask for.
type Notifier struct {
	mu             sync.Mutex
	PasswordResets []string // user IDs
	Assignments    []string // lead IDs
	Reminders      []string // visit IDs
}

func (n *Notifier) PasswordReset(usr user.User, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.PasswordResets = append(n.PasswordResets, usr.ID)
}

func (n *Notifier) LeadAssigned(l lead.Lead, _, _ user.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Assignments = append(n.Assignments, l.ID)
}

func (n *Notifier) VisitReminder(v visit.Visit, _ lead.Lead, _ user.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Reminders = append(n.Reminders, v.ID)
}

// Env wires every domain service over a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	DB         *dummydb.DB
	Cache      *cachesvc.MemoryCache
	Notifier   *Notifier
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
	Logs       *observer.ObservedLogs // entries written to Logger

	TenantRepo    tenant.Repository
	UserRepo      user.Repository
	TerritoryRepo territory.Repository
	LeadRepo      lead.Repository
	VisitRepo     visit.Repository
	RuleRepo      conversion.Repository
	SettingRepo   setting.Repository
	BackupRepo    backup.Repository

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

func NewEnv(t *testing.T) *Env {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}

	env := &Env{
		Conf:          NewConfig(),
		DB:            db,
		Cache:         cachesvc.NewMemoryCache(),
		Notifier:      new(Notifier),
		TenantRepo:    dummydb.NewTenantRepository(db),
		UserRepo:      dummydb.NewUserRepository(db),
		TerritoryRepo: dummydb.NewTerritoryRepository(db),
		LeadRepo:      dummydb.NewLeadRepository(db),
		VisitRepo:     dummydb.NewVisitRepository(db),
		RuleRepo:      dummydb.NewRuleRepository(db),
		SettingRepo:   dummydb.NewSettingRepository(db),
		BackupRepo:    dummydb.NewBackupRepository(db),
	}
	env.Validate, env.Translator = NewValidator()
	zc, logs := observer.New(zap.DebugLevel)
	env.Logger = logsvc.NewZapOnlyLogger(zap.New(zc))
	env.Logs = logs

	env.Tenants = tenant.NewService(env.TenantRepo)
	env.Settings = setting.NewService(env.SettingRepo, env.Cache)
	env.Territories = territory.NewService(env.TerritoryRepo, env.UserRepo)
	env.Users = user.NewService(env.UserRepo, env.Territories, env.Notifier, env.Conf)
	env.Leads = lead.NewService(env.LeadRepo, env.Territories, env.Users, env.Notifier, env.Cache, env.Conf)
	env.Rules = conversion.NewService(env.RuleRepo, env.Leads, env.VisitRepo, env.Settings, env.Cache)
	env.Visits = visit.NewService(env.VisitRepo, env.Leads, env.Users, env.Settings, env.Rules, env.Notifier, env.Cache, env.Logger)
	env.Backups = backup.NewService(env.BackupRepo, env.Settings, env.Cache)
	env.Dashboards = dashboard.NewService(env.Leads, env.Visits, env.Users, env.Territories, env.Settings, env.Cache, env.Conf)
	return env
}

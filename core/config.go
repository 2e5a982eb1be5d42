package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		DisableRequestLogs        bool
		CORSAllowOrigins          []string
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
		MaxIdleConns  int
	}

	RedisConfig struct {
		Address  string // empty: in-process cache
		Password string
		DB       int
		CacheTTL time.Duration
	}

	SchedulerConfig struct {
		Enabled      bool
		MissedVisits string
		Reminders    string
		Conversions  string
		Backups      string
	}

	ImportConfig struct {
		MaxUploadBytes int64
		MaxRows        int
	}

	Config struct {
		AppName                   string
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		WorkDir                   string
		SecretKey                 string
		FrontendBaseURL           string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Scheduler SchedulerConfig
		Import    ImportConfig

		defaultFromEmail string
	}
)

const (
	DBEnginePostgres = "postgres"
	DBEngineMemory   = "memory"
)

// NewConfig loads the configuration of the current environment (ENV: DEV|TEST|QA|PROD).
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "UD Leads")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "2v@x!q7%l3rk#0wz8n^b5e-dev-only-m1c9&j4t(h6y)p")
	v.SetDefault("defaultFromEmail", "UD Leads <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.disableRequestLogs", false)
	v.SetDefault("server.corsAllowOrigins", []string{"*"})

	v.SetDefault("database.engine", DBEnginePostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "udleads")
	v.SetDefault("database.user", "udleads")
	v.SetDefault("database.password", "udleads")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 25)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cacheTTL", 5*time.Minute)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.missedVisits", "*/15 * * * *")
	v.SetDefault("scheduler.reminders", "0 * * * *")
	v.SetDefault("scheduler.conversions", "30 2 * * *")
	v.SetDefault("scheduler.backups", "0 3 * * *")

	v.SetDefault("import.maxUploadBytes", 10<<20)
	v.SetDefault("import.maxRows", 5000)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		WorkDir:                   workDir,
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetInt("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			DisableRequestLogs:        v.GetBool("server.disableRequestLogs"),
			CORSAllowOrigins:          v.GetStringSlice("server.corsAllowOrigins"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
			MaxIdleConns:  v.GetInt("database.maxIdleConns"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetDuration("redis.cacheTTL"),
		},
		Scheduler: SchedulerConfig{
			Enabled:      v.GetBool("scheduler.enabled"),
			MissedVisits: v.GetString("scheduler.missedVisits"),
			Reminders:    v.GetString("scheduler.reminders"),
			Conversions:  v.GetString("scheduler.conversions"),
			Backups:      v.GetString("scheduler.backups"),
		},
		Import: ImportConfig{
			MaxUploadBytes: v.GetInt64("import.maxUploadBytes"),
			MaxRows:        v.GetInt("import.maxRows"),
		},
	}
}

// Validate reports settings that would only fail later at runtime.
func (conf *Config) Validate() error {
	if conf.SecretKey == "" {
		return errors.New("secretKey is required")
	}
	for name, d := range map[string]time.Duration{
		"server.jwtExpirationDelta":        conf.Server.JWTExpirationDelta,
		"server.jwtRefreshExpirationDelta": conf.Server.JWTRefreshExpirationDelta,
		"server.shutdownTimeout":           conf.Server.ShutdownTimeout,
		"passwordResetTimeoutDelta":        conf.PasswordResetTimeoutDelta,
	} {
		if d <= 0 {
			return errors.Errorf("%s must be positive", name)
		}
	}
	switch conf.Database.Engine {
	case DBEnginePostgres, DBEngineMemory:
	default:
		return errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
	if conf.Scheduler.Enabled {
		for name, spec := range map[string]string{
			"scheduler.missedVisits": conf.Scheduler.MissedVisits,
			"scheduler.reminders":    conf.Scheduler.Reminders,
			"scheduler.conversions":  conf.Scheduler.Conversions,
			"scheduler.backups":      conf.Scheduler.Backups,
		} {
			if _, err := cron.ParseStandard(spec); err != nil {
				return errors.Wrapf(err, "parsing %s", name)
			}
		}
	}
	return nil
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func (conf *Config) SetDefaultFromEmail(addr string) { conf.defaultFromEmail = addr }

func (srv ServerConfig) Address() string {
	return net.JoinHostPort(srv.Host, strconv.Itoa(srv.Port))
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

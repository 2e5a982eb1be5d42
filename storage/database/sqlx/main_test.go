package sqlxrepos_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	logsvc "github.com/ud-systems/UD-Leads-sub001/services/logger"
	"github.com/ud-systems/UD-Leads-sub001/storage/database"
)

const postgresImage = "postgres:16-alpine"

// testDB is nil when the integration tests are skipped.
var testDB *sqlx.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}
	os.Exit(runWithPostgres(m))
}

func runWithPostgres(m *testing.M) int {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase("udleads"),
		postgres.WithUsername("udleads"),
		postgres.WithPassword("udleads"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting postgres: %v\n", err)
		return 1
	}
	defer func() { _ = container.Terminate(ctx) }()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable", "timezone=utc")
	if err != nil {
		fmt.Fprintf(os.Stderr, "getting postgres DSN: %v\n", err)
		return 1
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to postgres: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	if err = database.Migrate(ctx, db, logsvc.NewNopLogger()); err != nil {
		fmt.Fprintf(os.Stderr, "migrating: %v\n", err)
		return 1
	}
	testDB = db
	return m.Run()
}

func requireDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("integration test: needs docker, skipped in short mode")
	}
	return testDB
}

package main

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	dig_container "github.com/ud-systems/UD-Leads-sub001/apps/api/di/dig"
	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/storage/database"
)

func main() {
	c := dig_container.New()
	cli := new(commandLine)

	must(c.Invoke(func(validate *validator.Validate, translator ut.Translator) {
		cli.validate = validate
		cli.translator = translator
	}))

	cli.loadServices = func() (*services, error) {
		var svcs *services
		err := c.Invoke(func(in dig_container.ServicesIn) {
			svcs = &services{
				Tenants: in.Tenants,
				Users:   in.Users,
				Leads:   in.Leads,
				Rules:   in.Rules,
				Backups: in.Backups,
			}
		})
		return svcs, err
	}

	cli.runMigrations = func(ctx context.Context, command string, args ...string) error {
		return c.Invoke(func(conf *core.Config, p dig_container.DBLoggerParam) error {
			if conf.Database.Engine == core.DBEngineMemory {
				return errors.New("the in-memory database has no migrations")
			}
			if err := database.CreateIfNotExist(ctx, conf); err != nil {
				return errors.Wrap(err, "creating database")
			}
			db, err := database.Open(ctx, conf)
			if err != nil {
				return errors.Wrap(err, "opening database")
			}
			defer db.Close()
			return database.RunMigrations(ctx, db, p.Logger, command, args...)
		})
	}

	if err := cli.run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

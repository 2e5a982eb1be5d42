package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/backup"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNoPassword = errors.New("a password is required")
)

// services are the domain services the commands work with.
type services struct {
	Tenants *tenant.Service
	Users   *user.Service
	Leads   *lead.Service
	Rules   *conversion.Service
	Backups *backup.Service
}

type commandLine struct {
	validate   *validator.Validate
	translator ut.Translator

	// loadServices builds the services on first use, so that `migrate` runs without them.
	loadServices func() (*services, error)
	svcs         *services

	runMigrations func(ctx context.Context, command string, args ...string) error // mockable
}

func (cli *commandLine) services() (*services, error) {
	if cli.svcs == nil {
		svcs, err := cli.loadServices()
		if err != nil {
			return nil, errors.Wrap(err, "loading services")
		}
		cli.svcs = svcs
	}
	return cli.svcs, nil
}

// tenant returns the tenant by slug.
func (cli *commandLine) tenant(ctx context.Context, slug string) (tenant.Tenant, error) {
	svcs, err := cli.services()
	if err != nil {
		return tenant.Tenant{}, err
	}
	tn, err := svcs.Tenants.GetBySlug(ctx, core.CleanString(slug, true /* lower */))
	if err != nil {
		return tenant.Tenant{}, errors.Wrapf(err, "finding tenant %q", slug)
	}
	return tn, nil
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "UD Leads administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		cli.migrateCmd(),
		cli.tenantCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.backupCmd(),
		cli.leadsCmd(),
		cli.rulesCmd(),
	)
	return root
}

func (cli *commandLine) run(args []string, out io.Writer) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.Execute()
}

// promptPassword reads a password without echoing it.
func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}
	return string(pwd), nil
}

// describe turns validation errors into a readable message.
func (cli *commandLine) describe(err error) error {
	var fields map[string]string
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fields = make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fields[vErr.Field()] = vErr.Translate(cli.translator)
		}
	case *core.ValidationError:
		if origErr.Fields == nil {
			return origErr
		}
		fields = make(map[string]string, len(origErr.Fields))
		for _, fErr := range origErr.Fields {
			fields[fErr.Field] = fErr.Error
		}
	default:
		return err
	}
	names := make([]string, 0, len(fields))
	for field := range fields {
		names = append(names, field)
	}
	sort.Strings(names)
	msg := "invalid input:"
	for _, field := range names {
		msg += fmt.Sprintf(" %s: %s;", field, fields[field])
	}
	return errors.New(msg)
}

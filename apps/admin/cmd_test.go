package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

const testPassword = "Sup3r-Secret!"

type fixture struct {
	env    *testutil.Env
	cli    *commandLine
	tenant tenant.Tenant
	owner  user.User
}

func setup(t *testing.T) *fixture {
	env := testutil.NewEnv(t)
	f := &fixture{env: env}
	f.tenant = testutil.CreateTenant(t, env.TenantRepo, "Acme Wholesale", "acme")
	f.owner = testutil.CreateUser(t, env.UserRepo, f.tenant.ID, "Olive Owner", "olive", "olive@acme.test", testPassword, []string{user.RoleAdminOwner}, true)

	f.cli = &commandLine{
		validate:   env.Validate,
		translator: env.Translator,
		loadServices: func() (*services, error) {
			return &services{
				Tenants: env.Tenants,
				Users:   env.Users,
				Leads:   env.Leads,
				Rules:   env.Rules,
				Backups: env.Backups,
			}, nil
		},
		runMigrations: func(context.Context, string, ...string) error { return nil },
	}
	origReadPassword := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = origReadPassword })
	return f
}

// run executes args and returns what the command printed.
func (f *fixture) run(args ...string) (string, error) {
	var out bytes.Buffer
	err := f.cli.run(args, &out)
	return out.String(), err
}

func withPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    bool
	wantErrStr string // substring of the error
	wantOut    string // substring of the output
}

func (f *fixture) check(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.run(tt.args...)
			switch {
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			case tt.wantErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out, tt.wantOut)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	var gotCommand string
	var gotArgs []string
	f.cli.runMigrations = func(_ context.Context, command string, args ...string) error {
		if command == "lol" {
			return fmt.Errorf("%q: no such command", command)
		}
		gotCommand, gotArgs = command, args
		return nil
	}
	f.cli.loadServices = func() (*services, error) {
		t.Fatal("migrate must not load the services")
		return nil, nil
	}

	f.check(t, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: true},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up", args: []string{"migrate", "up"}},
	})
	assert.Equal(t, "up", gotCommand)
	assert.Empty(t, gotArgs)

	_, err := f.run("migrate", "up-to", "3")
	require.NoError(t, err)
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, []string{"3"}, gotArgs)
}

func Test_commandLine_tenant(t *testing.T) {
	f := setup(t)

	f.check(t, []cliTest{
		{name: "unknown command", args: []string{"lol"}, wantErr: true},
		{name: "create: no flags", args: []string{"tenant", "create"}, wantErrStr: "required flag"},
		{name: "create: bad slug", args: []string{"tenant", "create", "--name", "Bad", "--slug", "not a slug"}, wantErrStr: "slug:"},
		{name: "create: duplicate slug", args: []string{"tenant", "create", "--name", "Other", "--slug", "ACME"}, wantErrStr: "slug:"},
		{name: "create", args: []string{"tenant", "create", "--name", "Beta Foods", "--slug", "beta"}, wantOut: `Tenant "beta" created`},
		{name: "list", args: []string{"tenant", "list"}, wantOut: "Beta Foods"},
	})

	tn, err := f.env.Tenants.GetBySlug(context.Background(), "beta")
	require.NoError(t, err)
	assert.True(t, tn.IsActive)
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)

	t.Run("no password", func(t *testing.T) {
		withPassword("")
		_, err := f.run("adduser", "--tenant", "acme", "--username", "ann", "--email", "ann@acme.test", "--name", "Ann")
		assert.ErrorIs(t, err, errNoPassword)
	})

	withPassword(testPassword)
	f.check(t, []cliTest{
		{name: "missing flags", args: []string{"adduser", "--tenant", "acme"}, wantErrStr: "required flag"},
		{name: "unknown tenant", args: []string{"adduser", "--tenant", "nope", "--username", "ann", "--email", "ann@acme.test"}, wantErrStr: `finding tenant "nope"`},
		{name: "duplicate username", args: []string{"adduser", "--tenant", "acme", "--username", "olive", "--email", "o2@acme.test", "--name", "Olive Two"}, wantErrStr: "username:"},
		{name: "bad role", args: []string{"adduser", "--tenant", "acme", "--username", "ann", "--email", "ann@acme.test", "--name", "Ann", "--role", "king"}, wantErrStr: "roles:"},
		{
			name:    "create",
			args:    []string{"adduser", "--tenant", "acme", "--username", "ann", "--email", "ann@acme.test", "--name", "Ann Admin", "--role", user.RoleAdmin},
			wantOut: `User "ann" created in "acme"`,
		},
	})

	usr, err := f.env.Users.GetByUsernameOrEmail(context.Background(), f.tenant.ID, "ann@acme.test")
	require.NoError(t, err)
	assert.True(t, usr.IsAdmin())
	assert.NoError(t, usr.CheckPassword(testPassword))
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	newPassword := "An0ther-Pass?"

	withPassword(newPassword)
	f.check(t, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErrStr: "required flag"},
		{name: "user not found", args: []string{"resetpassword", "--tenant", "acme", "--username", "lol"}, wantErrStr: "not found"},
	})

	t.Run("weak password", func(t *testing.T) {
		withPassword("password")
		_, err := f.run("resetpassword", "--tenant", "acme", "--username", "olive")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "password:")
	})

	for _, uname := range []string{f.owner.Username, f.owner.Email} {
		t.Run("reset with "+uname, func(t *testing.T) {
			withPassword(newPassword)
			out, err := f.run("resetpassword", "--tenant", "acme", "--username", uname)
			require.NoError(t, err)
			assert.Contains(t, out, "reset")

			usr, err := f.env.Users.GetByID(context.Background(), f.tenant.ID, f.owner.ID)
			require.NoError(t, err)
			assert.NoError(t, usr.CheckPassword(newPassword))
			assert.Equal(t, f.owner.Name, usr.Name, "other fields are kept")
		})
	}
}

func Test_commandLine_backup(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateLead(t, f.env.LeadRepo, f.tenant.ID, "Corner Shop")

	out, err := f.run("backup", "create", "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "1 leads")

	backups, err := f.env.Backups.List(ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	id := backups[0].ID
	assert.Equal(t, "", backups[0].CreatedBy)

	out, err = f.run("backup", "list", "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	testutil.CreateLead(t, f.env.LeadRepo, f.tenant.ID, "Bakery")
	f.check(t, []cliTest{
		{name: "restore: no id", args: []string{"backup", "restore", "--tenant", "acme"}, wantErrStr: "required flag"},
		{name: "restore: unknown id", args: []string{"backup", "restore", "--tenant", "acme", "--id", "nope"}, wantErrStr: "not found"},
		{name: "restore", args: []string{"backup", "restore", "--tenant", "acme", "--id", id}, wantOut: "Restored 0 territories, 1 leads"},
	})

	leads, err := f.env.Leads.Export(ctx, core.TenantScope(f.tenant.ID), nil, nil)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Corner Shop", leads[0].StoreName)
}

func Test_commandLine_leadsImport(t *testing.T) {
	f := setup(t)

	var data bytes.Buffer
	w := csv.NewWriter(&data)
	require.NoError(t, w.WriteAll([][]string{
		{"Store Name", "City", "Email"},
		{"Corner Shop", "Leeds", "ann@corner.test"},
		{"Bakery", "York", "ann@corner.test"},
		{"Florist", "Leeds", ""}, // neither email nor phone
	}))
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, data.Bytes(), 0o600))

	f.check(t, []cliTest{
		{name: "missing file", args: []string{"leads", "import", "--tenant", "acme", "--actor", "olive", "--file", path + ".missing"}, wantErrStr: "opening file"},
		{name: "unknown actor", args: []string{"leads", "import", "--tenant", "acme", "--actor", "nobody", "--file", path}, wantErrStr: `finding user "nobody"`},
		{name: "import", args: []string{"leads", "import", "--tenant", "acme", "--actor", "olive", "--file", path}, wantOut: "1 leads created, 2 rows skipped"},
	})

	leads, err := f.env.Leads.Query(context.Background(), core.TenantScope(f.tenant.ID), nil, nil)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Corner Shop", leads[0].StoreName)
	assert.Equal(t, lead.StatusNew, leads[0].Status)
	assert.Equal(t, f.owner.ID, leads[0].CreatedBy)
}

func Test_commandLine_rules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	dir := t.TempDir()
	in := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(in, []byte(`
rules:
  - name: Big order
    priority: 10
    conditions:
      min_order_value: 1000
  - name: Referral
    conditions:
      sources: [referral]
`), 0o600))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - name: x\n    colour: red\n"), 0o600))

	f.check(t, []cliTest{
		{name: "import: unknown field", args: []string{"rules", "import", "--tenant", "acme", "--file", bad}, wantErr: true},
		{name: "import", args: []string{"rules", "import", "--tenant", "acme", "--file", in}, wantOut: "2 rules created, 0 updated"},
		{name: "import again", args: []string{"rules", "import", "--tenant", "acme", "--file", in}, wantOut: "0 rules created, 2 updated"},
	})

	rules, err := f.env.Rules.Query(ctx, f.tenant.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	t.Run("export to stdout", func(t *testing.T) {
		out, err := f.run("rules", "export", "--tenant", "acme")
		require.NoError(t, err)
		doc, err := conversion.ParseYAML(strings.NewReader(out))
		require.NoError(t, err)
		assert.Len(t, doc.Rules, 2)
	})

	t.Run("export to file", func(t *testing.T) {
		out := filepath.Join(dir, "export.yaml")
		_, err := f.run("rules", "export", "--tenant", "acme", "--file", out)
		require.NoError(t, err)
		file, err := os.Open(out)
		require.NoError(t, err)
		defer file.Close()
		doc, err := conversion.ParseYAML(file)
		require.NoError(t, err)
		assert.Len(t, doc.Rules, 2)
	})
}

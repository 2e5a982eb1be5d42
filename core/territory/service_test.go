package territory_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

type fixture struct {
	env     *testutil.Env
	tenant  string
	other   string
	manager user.User
	rep     user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	f := &fixture{env: env}
	f.tenant = testutil.CreateTenant(t, env.TenantRepo, "Acme", "acme").ID
	f.other = testutil.CreateTenant(t, env.TenantRepo, "Other", "other").ID
	f.manager = testutil.CreateUser(t, env.UserRepo, f.tenant, "Mia Manager", "mia", "mia@acme.test", "", []string{user.RoleManager}, true)
	f.rep = testutil.CreateUser(t, env.UserRepo, f.tenant, "Rex Rep", "rex", "rex@acme.test", "", []string{user.RoleRep}, true)
	return f
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	nt := territory.NewTerritory{TenantID: f.tenant, Name: " North ", Code: "north", ManagerID: f.manager.ID}
	require.NoError(t, nt.Validate(f.env.Validate, f.env.Territories))
	tr, err := f.env.Territories.Create(ctx, nt)
	require.NoError(t, err)
	assert.Equal(t, "North", tr.Name)
	assert.Equal(t, "NORTH", tr.Code)
	assert.True(t, tr.IsActive)

	// codes are unique per tenant only
	nt = territory.NewTerritory{TenantID: f.other, Name: "North", Code: "NORTH"}
	assert.NoError(t, nt.Validate(f.env.Validate, f.env.Territories))

	tests := []struct {
		name      string
		nt        territory.NewTerritory
		wantField string
	}{
		{name: "duplicate code", nt: territory.NewTerritory{Name: "Other", Code: "North"}, wantField: "code"},
		{name: "rep as manager", nt: territory.NewTerritory{Name: "South", Code: "SOUTH", ManagerID: f.rep.ID}, wantField: "manager_id"},
		{name: "unknown manager", nt: territory.NewTerritory{Name: "South", Code: "SOUTH", ManagerID: "00000000-0000-0000-0000-000000000000"}, wantField: "manager_id"},
		{name: "no name", nt: territory.NewTerritory{Code: "SOUTH"}, wantField: "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.nt.TenantID = f.tenant
			err := tt.nt.Validate(f.env.Validate, f.env.Territories)
			require.Error(t, err)
			assert.Equal(t, tt.wantField, testutil.FieldOf(err))
		})
	}
}

func TestService_tenantIsolation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	north := testutil.CreateTerritory(t, f.env.TerritoryRepo, f.tenant, "North", "NORTH", f.manager.ID)
	testutil.CreateTerritory(t, f.env.TerritoryRepo, f.other, "Far", "FAR", "")

	_, err := f.env.Territories.Get(ctx, f.other, north.ID)
	assert.Equal(t, territory.ErrNotFound, err)

	ok, err := f.env.Territories.TerritoryExists(ctx, f.other, north.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ts, err := f.env.Territories.Query(ctx, f.tenant, nil, nil)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, north.ID, ts[0].ID)

	// deleting through another tenant leaves it in place
	require.NoError(t, f.env.Territories.Delete(ctx, f.other, north.ID))
	_, err = f.env.Territories.Get(ctx, f.tenant, north.ID)
	assert.NoError(t, err)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	north := testutil.CreateTerritory(t, f.env.TerritoryRepo, f.tenant, "North", "NORTH", f.manager.ID)
	south := testutil.CreateTerritory(t, f.env.TerritoryRepo, f.tenant, "South", "SOUTH", "")
	testutil.CreateLead(t, f.env.LeadRepo, f.tenant, "Corner Shop", testutil.WithTerritory(north.ID))

	f.rep.TerritoryID = south.ID
	_, err := f.env.UserRepo.UpdateUser(ctx, f.rep)
	require.NoError(t, err)

	t.Run("in use", func(t *testing.T) {
		err := f.env.Territories.Delete(ctx, f.tenant, north.ID)
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, territory.ErrTerritoryInUse, verr.Err)

		_, err = f.env.Territories.Get(ctx, f.tenant, north.ID)
		assert.NoError(t, err)
	})

	t.Run("without leads", func(t *testing.T) {
		require.NoError(t, f.env.Territories.Delete(ctx, f.tenant, south.ID))
		_, err := f.env.Territories.Get(ctx, f.tenant, south.ID)
		assert.Equal(t, territory.ErrNotFound, err)

		usr, err := f.env.UserRepo.GetUser(ctx, f.tenant, user.GetFilter{ID: f.rep.ID})
		require.NoError(t, err)
		assert.Empty(t, usr.TerritoryID)
	})
}

func TestService_ScopeFor(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	north := testutil.CreateTerritory(t, f.env.TerritoryRepo, f.tenant, "North", "NORTH", f.manager.ID)
	testutil.CreateTerritory(t, f.env.TerritoryRepo, f.tenant, "South", "SOUTH", "")

	scope, err := f.env.Territories.ScopeFor(ctx, f.manager)
	require.NoError(t, err)
	assert.Equal(t, core.Scope{TenantID: f.tenant, UserID: f.manager.ID, TerritoryIDs: []string{north.ID}}, scope)

	scope, err = f.env.Territories.ScopeFor(ctx, f.rep)
	require.NoError(t, err)
	assert.Equal(t, core.Scope{TenantID: f.tenant, UserID: f.rep.ID}, scope)
}

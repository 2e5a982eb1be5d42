package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

func Test_territoryApi(t *testing.T) {
	f := setup(t)
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})
	notFound := marshalObj(t, httpErr{Error: "territory not found"})
	repToken := f.token(t, f.rep)
	managerToken := f.token(t, f.manager)
	adminToken := f.token(t, f.admin)

	far := testutil.CreateTenant(t, f.env.TenantRepo, "Far", "far")
	farTerritory := testutil.CreateTerritory(t, f.env.TerritoryRepo, far.ID, "Far", "FAR", "")
	south := testutil.CreateTerritory(t, f.env.TerritoryRepo, f.tenant.ID, "South", "SOUTH", "")
	testutil.CreateLead(t, f.env.LeadRepo, f.tenant.ID, "Corner Shop", testutil.WithTerritory(f.north.ID))

	path := "/v1/territories"
	southPath := path + "/" + south.ID
	newTerritory := marshalObj(t, territory.NewTerritory{Name: "East", Code: "east", ManagerID: f.manager.ID})

	f.run(t, []httpTest{
		{name: "list", path: path, token: repToken, wantData: marshalObj(t, []territory.Territory{f.north, south})},
		{name: "list filtered", path: path + "?search=sou", token: repToken, wantData: marshalObj(t, []territory.Territory{south})},
		{name: "retrieve", path: southPath, token: managerToken, wantData: marshalObj(t, south)},
		{name: "retrieve other tenant", path: path + "/" + farTerritory.ID, token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "create by manager", method: http.MethodPost, path: path, body: newTerritory, token: managerToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "create duplicate code", method: http.MethodPost, path: path, body: marshalObj(t, territory.NewTerritory{Name: "N", Code: "north"}), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "update by rep", method: http.MethodPut, path: southPath, body: []byte(`{"name":"Deep South"}`), token: repToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "delete by rep", method: http.MethodDelete, path: southPath, token: repToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "delete by manager", method: http.MethodDelete, path: southPath, token: managerToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "delete in use", method: http.MethodDelete, path: path + "/" + f.north.ID, token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: territory.ErrTerritoryInUse.Error()})},
		{name: "delete other tenant", method: http.MethodDelete, path: path + "/" + farTerritory.ID, token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
	})

	t.Run("create by admin", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodPost, path, adminToken, newTerritory))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got territory.Territory
		unmarshal(t, rec, &got)
		assert.Equal(t, "EAST", got.Code)
		assert.Equal(t, f.tenant.ID, got.TenantID)
	})

	t.Run("update by admin", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodPut, southPath, adminToken, []byte(`{"name":"Deep South","region":"Wessex"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got territory.Territory
		unmarshal(t, rec, &got)
		assert.Equal(t, "Deep South", got.Name)
		assert.Equal(t, "SOUTH", got.Code)
		assert.Equal(t, "Wessex", got.Region)
	})

	t.Run("delete by admin", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodDelete, southPath, adminToken))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := f.env.Territories.Get(ctxBackground(), f.tenant.ID, south.ID)
		assert.Equal(t, territory.ErrNotFound, err)

		_, err = f.env.Territories.Get(ctxBackground(), far.ID, farTerritory.ID)
		assert.NoError(t, err)
	})
}

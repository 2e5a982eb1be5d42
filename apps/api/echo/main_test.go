package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	logsvc "github.com/ud-systems/UD-Leads-sub001/services/logger"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

const testPassword = "Sup3r-Secret!"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// fixture is a tenant with one user per role, served by a fresh server.
type fixture struct {
	env    *testutil.Env
	server *Server

	tenant  tenant.Tenant
	north   territory.Territory
	owner   user.User
	admin   user.User
	manager user.User
	rep     user.User
	other   user.User // rep outside the manager's territory
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	env.Conf.Server.DisableRequestLogs = true

	f := &fixture{env: env}
	f.server = NewServer(Options{
		Conf:        env.Conf,
		Logger:      logsvc.NewNopLogger(),
		Validate:    env.Validate,
		Translator:  env.Translator,
		Tenants:     env.Tenants,
		Users:       env.Users,
		Territories: env.Territories,
		Leads:       env.Leads,
		Visits:      env.Visits,
		Rules:       env.Rules,
		Settings:    env.Settings,
		Backups:     env.Backups,
		Dashboards:  env.Dashboards,
	})

	f.tenant = testutil.CreateTenant(t, env.TenantRepo, "Acme", "acme")
	tid := f.tenant.ID
	f.owner = testutil.CreateUser(t, env.UserRepo, tid, "Olive Owner", "owner", "owner@acme.test", testPassword, []string{user.RoleAdminOwner}, true)
	f.admin = testutil.CreateUser(t, env.UserRepo, tid, "Ada Admin", "admin", "admin@acme.test", testPassword, []string{user.RoleAdmin}, true)
	f.manager = testutil.CreateUser(t, env.UserRepo, tid, "Max Manager", "manager", "manager@acme.test", testPassword, []string{user.RoleManager}, true)
	f.north = testutil.CreateTerritory(t, env.TerritoryRepo, tid, "North", "NORTH", f.manager.ID)
	f.rep = testutil.CreateUser(t, env.UserRepo, tid, "Rita Rep", "rep", "rep@acme.test", testPassword, []string{user.RoleRep}, true)
	f.rep.TerritoryID = f.north.ID
	var err error
	f.rep, err = env.UserRepo.UpdateUser(ctxBackground(), f.rep)
	require.NoError(t, err)
	f.other = testutil.CreateUser(t, env.UserRepo, tid, "Oscar Other", "other", "other@acme.test", testPassword, []string{user.RoleRep}, true)
	return f
}

func (f *fixture) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := f.server.Auth().Token(usr)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := f.do(newAuthRequest(method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	// a nil body leaves ContentLength at 0 so echo's binder skips it
	var body io.Reader
	if len(data) > 0 && data[0] != nil {
		body = bytes.NewReader(data[0])
	}
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), obj), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err) {
		assert.True(t, ok, "data = %s; wantData %s", rec.Body.String(), tt.wantData)
	}
}

func ctxBackground() context.Context { return context.Background() }

package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

func Test_userApi_login(t *testing.T) {
	f := setup(t)
	failed := marshalObj(t, httpErr{Error: "authentication failed"})

	login := func(tenant, uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Tenant: tenant, Username: uname, Password: pwd})
	}

	f.run(t, []httpTest{
		{name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "unknown tenant", method: http.MethodPost, path: "/v1/users/login", body: login("nope", "rep", testPassword), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: login("acme", "rep", "lol"), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: login("acme", "ghost", testPassword), wantCode: http.StatusBadRequest, wantData: failed},
	})

	t.Run("success by username or email", func(t *testing.T) {
		for _, uname := range []string{"REP", "rep@acme.test"} {
			rec := f.do(newAuthRequest(http.MethodPost, "/v1/users/login", "", login("Acme", uname, testPassword)))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp LoginResponse
			unmarshal(t, rec, &resp)
			require.NotEmpty(t, resp.Token)

			rec = f.do(newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token))
			require.Equal(t, http.StatusOK, rec.Code)
			var me user.User
			unmarshal(t, rec, &me)
			assert.Equal(t, f.rep.ID, me.ID)
		}
	})

	t.Run("deactivated account", func(t *testing.T) {
		f.rep.IsActive = false
		_, err := f.env.UserRepo.UpdateUser(ctxBackground(), f.rep)
		require.NoError(t, err)

		rec := f.do(newAuthRequest(http.MethodPost, "/v1/users/login", "", login("acme", "rep", testPassword)))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func Test_userApi_authRequired(t *testing.T) {
	f := setup(t)
	token := f.token(t, f.rep)

	f.run(t, []httpTest{
		{name: "no token", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/users/me", token: "not-a-jwt", wantCode: http.StatusUnauthorized},
		{name: "ok", path: "/v1/users/me", token: token, wantData: marshalObj(t, f.rep)},
		{name: "token refresh", method: http.MethodPost, path: "/v1/users/token-refresh", token: token},
	})

	t.Run("deleted user", func(t *testing.T) {
		require.NoError(t, f.env.UserRepo.DeleteUsers(ctxBackground(), f.tenant.ID, f.rep.ID))
		rec := f.do(newAuthRequest(http.MethodGet, "/v1/users/me", token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_roles(t *testing.T) {
	f := setup(t)
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})
	repToken := f.token(t, f.rep)
	managerToken := f.token(t, f.manager)
	adminToken := f.token(t, f.admin)

	newUser := func(uname string, roles ...string) []byte {
		return marshalObj(t, user.NewUser{
			Name:            "New " + uname,
			Username:        uname,
			Email:           uname + "@acme.test",
			Password:        "Pl3nty-of-entropy",
			PasswordConfirm: "Pl3nty-of-entropy",
			Roles:           roles,
		})
	}

	f.run(t, []httpTest{
		{name: "rep cannot list users", path: "/v1/users", token: repToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "manager lists users", path: "/v1/users", token: managerToken},
		{name: "manager cannot register", method: http.MethodPost, path: "/v1/users/register", token: managerToken, body: newUser("newrep", user.RoleRep), wantCode: http.StatusForbidden},
		{name: "admin registers a rep", method: http.MethodPost, path: "/v1/users/register", token: adminToken, body: newUser("newrep", user.RoleRep), wantCode: http.StatusCreated},
		{name: "admin cannot register an owner", method: http.MethodPost, path: "/v1/users/register", token: adminToken, body: newUser("boss", user.RoleAdminOwner), wantCode: http.StatusBadRequest},
		{name: "rep sees themselves", path: "/v1/users/" + f.rep.ID, token: repToken, wantData: marshalObj(t, f.rep)},
		{name: "rep cannot see others", path: "/v1/users/" + f.admin.ID, token: repToken, wantCode: http.StatusNotFound},
		{name: "admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + f.admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "admin cannot delete the owner", method: http.MethodDelete, path: "/v1/users/" + f.owner.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "admin deletes a rep", method: http.MethodDelete, path: "/v1/users/" + f.other.ID, token: adminToken, wantCode: http.StatusNoContent},
	})
}

func Test_userApi_higherRankIsReadOnly(t *testing.T) {
	f := setup(t)
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})
	adminToken := f.token(t, f.admin)
	ownerPath := "/v1/users/" + f.owner.ID

	f.run(t, []httpTest{
		{name: "admin cannot deactivate the owner", method: http.MethodPut, path: ownerPath, token: adminToken, body: []byte(`{"is_active":false}`), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admin cannot demote the owner", method: http.MethodPut, path: ownerPath, token: adminToken, body: marshalObj(t, map[string][]string{"roles": {user.RoleRep}}), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admin cannot change the owner's email", method: http.MethodPut, path: ownerPath, token: adminToken, body: []byte(`{"email":"mine@evil.test"}`), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admin cannot bulk delete the owner", method: http.MethodDelete, path: "/v1/users?id=" + f.other.ID + "&id=" + f.owner.ID, token: adminToken, wantCode: http.StatusForbidden, wantData: forbidden},
	})

	owner, err := f.env.Users.GetByID(ctxBackground(), f.tenant.ID, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, f.owner.Roles, owner.Roles)
	assert.Equal(t, f.owner.Email, owner.Email)
	assert.True(t, owner.IsActive)
	_, err = f.env.Users.GetByID(ctxBackground(), f.tenant.ID, f.other.ID)
	assert.NoError(t, err, "a refused bulk delete removes nobody")

	t.Run("admin updates a rep", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodPut, "/v1/users/"+f.rep.ID, adminToken, []byte(`{"name":"Rita R"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got user.User
		unmarshal(t, rec, &got)
		assert.Equal(t, "Rita R", got.Name)
	})

	t.Run("admin bulk deletes lower ranks", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodDelete, "/v1/users?id="+f.other.ID+"&id=00000000-0000-0000-0000-000000000000", adminToken))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := f.env.Users.GetByID(ctxBackground(), f.tenant.ID, f.other.ID)
		assert.Error(t, err)
	})

	t.Run("owner updates an admin", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodPut, "/v1/users/"+f.admin.ID, f.token(t, f.owner), []byte(`{"is_active":false}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

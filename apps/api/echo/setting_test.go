package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core/setting"
)

func Test_settingApi(t *testing.T) {
	f := setup(t)
	adminToken := f.token(t, f.admin)
	repToken := f.token(t, f.rep)
	path := "/v1/settings/" + setting.VisitReminderLeadHours

	t.Run("list", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, "/v1/settings", repToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var entries []setting.Entry
		unmarshal(t, rec, &entries)
		assert.Len(t, entries, len(setting.Registry))
	})

	f.run(t, []httpTest{
		{name: "unknown key", path: "/v1/settings/lol", token: repToken, wantCode: http.StatusNotFound},
		{name: "reps cannot change", method: http.MethodPut, path: path, token: repToken, body: []byte(`{"value":48}`), wantCode: http.StatusForbidden},
		{name: "out of range", method: http.MethodPut, path: path, token: adminToken, body: []byte(`{"value":1000}`), wantCode: http.StatusBadRequest},
		{name: "not an int", method: http.MethodPut, path: path, token: adminToken, body: []byte(`{"value":"soon"}`), wantCode: http.StatusBadRequest},
		{name: "unknown timezone", method: http.MethodPut, path: "/v1/settings/" + setting.CompanyTimezone, token: adminToken, body: []byte(`{"value":"Mars/Olympus"}`), wantCode: http.StatusBadRequest},
	})

	rec := f.do(newAuthRequest(http.MethodPut, path, adminToken, []byte(`{"value":48}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entry setting.Entry
	unmarshal(t, rec, &entry)
	assert.Equal(t, 48.0, entry.Value)
	assert.False(t, entry.IsDefault)
	assert.Equal(t, f.admin.ID, entry.UpdatedBy)

	n, err := f.env.Settings.Int(ctxBackground(), f.tenant.ID, setting.VisitReminderLeadHours)
	require.NoError(t, err)
	assert.EqualValues(t, 48, n)

	rec = f.do(newAuthRequest(http.MethodDelete, path, adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &entry)
	assert.True(t, entry.IsDefault)
	assert.Equal(t, 24.0, entry.Value)
}

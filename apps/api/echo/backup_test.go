package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/backup"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

func Test_backupApi(t *testing.T) {
	f := setup(t)
	tid := f.tenant.ID
	kept := testutil.CreateLead(t, f.env.LeadRepo, tid, "Corner Shop", testutil.WithAssignee(f.rep.ID))
	adminToken := f.token(t, f.admin)

	f.run(t, []httpTest{
		{name: "managers cannot list", path: "/v1/backups", token: f.token(t, f.manager), wantCode: http.StatusForbidden},
		{name: "empty", path: "/v1/backups", token: adminToken, wantData: []byte(`[]`)},
		{name: "unknown", path: "/v1/backups/bkp_nope", token: adminToken, wantCode: http.StatusNotFound},
	})

	rec := f.do(newAuthRequest(http.MethodPost, "/v1/backups", adminToken))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b backup.Backup
	unmarshal(t, rec, &b)
	assert.Equal(t, backup.KindManual, b.Kind)
	assert.Equal(t, f.admin.ID, b.CreatedBy)
	assert.Equal(t, 1, b.Counts.Leads)

	path := "/v1/backups/" + b.ID
	f.run(t, []httpTest{
		{name: "list", path: "/v1/backups", token: adminToken, wantData: marshalObj(t, []backup.Backup{b})},
		{name: "get keeps the id case", path: path, token: adminToken, wantData: marshalObj(t, b)},
		{name: "admins cannot restore", method: http.MethodPost, path: path + "/restore", token: adminToken, wantCode: http.StatusForbidden},
	})

	t.Run("download", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, path+"/download", adminToken))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, backupContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), b.ID+".json.gz")

		s, err := backup.Decode(rec.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, tid, s.TenantID)
		require.Len(t, s.Leads, 1)
		assert.Equal(t, kept.ID, s.Leads[0].ID)
	})

	t.Run("restore", func(t *testing.T) {
		require.NoError(t, f.env.LeadRepo.DeleteLeads(ctxBackground(), tid, kept.ID))
		testutil.CreateLead(t, f.env.LeadRepo, tid, "Added Later")

		rec := f.do(newAuthRequest(http.MethodPost, path+"/restore", f.token(t, f.owner)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var counts backup.Counts
		unmarshal(t, rec, &counts)
		assert.Equal(t, 1, counts.Leads)

		leads, err := f.env.Leads.Export(ctxBackground(), core.TenantScope(tid), nil, nil)
		require.NoError(t, err)
		require.Len(t, leads, 1)
		assert.Equal(t, kept.ID, leads[0].ID)
	})

	f.run(t, []httpTest{
		{name: "delete", method: http.MethodDelete, path: path, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: path, token: adminToken, wantCode: http.StatusNotFound},
	})
}

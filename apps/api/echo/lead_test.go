package echoapi

import (
	"bytes"
	"encoding/csv"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/services/spreadsheet"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

func Test_leadApi_scope(t *testing.T) {
	f := setup(t)
	tid := f.tenant.ID
	repLead := testutil.CreateLead(t, f.env.LeadRepo, tid, "Corner Shop", testutil.WithAssignee(f.rep.ID), testutil.WithTerritory(f.north.ID))
	otherLead := testutil.CreateLead(t, f.env.LeadRepo, tid, "Far Away Deli", testutil.WithAssignee(f.other.ID), testutil.CreatedAt(testutil.Now.Add(-1)))

	repToken := f.token(t, f.rep)
	managerToken := f.token(t, f.manager)
	adminToken := f.token(t, f.admin)
	notFound := marshalObj(t, httpErr{Error: "lead not found"})

	f.run(t, []httpTest{
		{name: "auth required", path: "/v1/leads", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "admin sees all", path: "/v1/leads", token: adminToken, wantData: marshalObj(t, []lead.Lead{repLead, otherLead})},
		{name: "manager sees the territory", path: "/v1/leads", token: managerToken, wantData: marshalObj(t, []lead.Lead{repLead})},
		{name: "rep sees own", path: "/v1/leads", token: repToken, wantData: marshalObj(t, []lead.Lead{repLead})},
		{name: "other rep sees own", path: "/v1/leads", token: f.token(t, f.other), wantData: marshalObj(t, []lead.Lead{otherLead})},
		{name: "rep gets own", path: "/v1/leads/" + repLead.ID, token: repToken, wantData: marshalObj(t, repLead)},
		{name: "rep cannot get others", path: "/v1/leads/" + otherLead.ID, token: repToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "manager cannot get out of scope", path: "/v1/leads/" + otherLead.ID, token: managerToken, wantCode: http.StatusNotFound},
		{name: "unknown lead", path: "/v1/leads/8a1b8e0c-1f63-4c1e-9d4d-7f3f9c0d2e11", token: adminToken, wantCode: http.StatusNotFound},
		{name: "rep cannot delete", method: http.MethodDelete, path: "/v1/leads/" + repLead.ID, token: repToken, wantCode: http.StatusForbidden},
		{
			name: "manager cannot bulk delete out of scope", method: http.MethodDelete,
			path: "/v1/leads?id=" + repLead.ID + "&id=" + otherLead.ID, token: managerToken, wantCode: http.StatusNotFound,
		},
		{name: "search", path: "/v1/leads?search=deli", token: adminToken, wantData: marshalObj(t, []lead.Lead{otherLead})},
	})

	// nothing was deleted by the refused bulk delete
	_, err := f.env.LeadRepo.GetLead(ctxBackground(), tid, repLead.ID)
	assert.NoError(t, err)
}

func Test_leadApi_lifecycle(t *testing.T) {
	f := setup(t)
	repToken := f.token(t, f.rep)

	// reps create leads for themselves
	body := marshalObj(t, lead.NewLead{StoreName: "  Fresh Market ", Email: "hello@fresh.test", AssignedTo: f.other.ID})
	rec := f.do(newAuthRequest(http.MethodPost, "/v1/leads", repToken, body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var l lead.Lead
	unmarshal(t, rec, &l)
	assert.Equal(t, "Fresh Market", l.StoreName)
	assert.Equal(t, f.rep.ID, l.AssignedTo)
	assert.Equal(t, f.north.ID, l.TerritoryID)
	assert.Equal(t, lead.StatusNew, l.Status)

	path := "/v1/leads/" + l.ID
	f.run(t, []httpTest{
		{name: "duplicate email", method: http.MethodPost, path: "/v1/leads", token: repToken, body: body, wantCode: http.StatusBadRequest},
		{name: "store name required", method: http.MethodPost, path: "/v1/leads", token: repToken, body: []byte(`{"city":"Leeds"}`), wantCode: http.StatusBadRequest},
		{name: "invalid transition", method: http.MethodPatch, path: path + "/status", token: repToken, body: []byte(`{"status":"converted"}`), wantCode: http.StatusBadRequest},
		{name: "unknown status", method: http.MethodPatch, path: path + "/status", token: repToken, body: []byte(`{"status":"lol"}`), wantCode: http.StatusBadRequest},
		{name: "contacted", method: http.MethodPatch, path: path + "/status", token: repToken, body: []byte(`{"status":"contacted","note":"called"}`)},
		{name: "rep cannot assign", method: http.MethodPost, path: path + "/assign", token: repToken, body: []byte(`{}`), wantCode: http.StatusForbidden},
		{name: "lead visits", path: path + "/visits", token: repToken, wantData: []byte(`[]`)},
		{name: "conversion check", path: path + "/conversion", token: repToken},
		{name: "rep cannot convert", method: http.MethodPost, path: path + "/conversion", token: repToken, wantCode: http.StatusForbidden},
	})

	got, err := f.env.Leads.Get(ctxBackground(), f.tenant.ID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusContacted, got.Status)

	// managers can hand the lead over
	rec = f.do(newAuthRequest(http.MethodPost, path+"/assign", f.token(t, f.manager), []byte(`{"user_id":"`+f.other.ID+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &got)
	assert.Equal(t, f.other.ID, got.AssignedTo)

	// and the former assignee loses sight of it
	rec = f.do(newAuthRequest(http.MethodGet, path, repToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newUploadRequest(t *testing.T, path, token, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(importFileField, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func Test_leadApi_importExport(t *testing.T) {
	f := setup(t)
	managerToken := f.token(t, f.manager)

	var data bytes.Buffer
	w := csv.NewWriter(&data)
	require.NoError(t, w.WriteAll([][]string{
		{"Store Name", "City", "Email", "Phone", "Territory Code"},
		{"Corner Shop", "Leeds", "ann@corner.test", "", "north"},
		{"Bakery", "York", "ann@corner.test", "", ""},
		{"", "Hull", "", "", ""},
		{"Butcher", "Leeds", "", "+44 113 496 0000", "SOUTH"},
		{"Florist", "Leeds", "", "+44 113 496 0001", ""},
		{"Grocer", "Leeds", "", "", ""},
	}))

	t.Run("reps cannot import", func(t *testing.T) {
		rec := f.do(newUploadRequest(t, "/v1/leads/import", f.token(t, f.rep), "leads.csv", data.Bytes()))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unsupported file", func(t *testing.T) {
		rec := f.do(newUploadRequest(t, "/v1/leads/import", managerToken, "leads.pdf", data.Bytes()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("import", func(t *testing.T) {
		rec := f.do(newUploadRequest(t, "/v1/leads/import", managerToken, "leads.csv", data.Bytes()))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res lead.ImportResult
		unmarshal(t, rec, &res)
		assert.Equal(t, 2, res.Created)
		var lines []int
		for _, s := range res.Skipped {
			lines = append(lines, s.Line)
		}
		assert.ElementsMatch(t, []int{3, 4, 5, 7}, lines)
	})

	t.Run("export csv", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, "/v1/leads/export?format=csv&ordering=store_name", f.token(t, f.admin)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, spreadsheet.ContentTypes[spreadsheet.FormatCSV], rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

		rows, err := spreadsheet.ReadLeads(rec.Body, "export.csv")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Corner Shop", rows[0].StoreName)
		assert.Equal(t, "NORTH", rows[0].TerritoryCode)
		assert.Equal(t, "Florist", rows[1].StoreName)
	})

	t.Run("export unknown format", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, "/v1/leads/export?format=pdf", managerToken))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

func Test_visitApi(t *testing.T) {
	f := setup(t)
	tid := f.tenant.ID
	repLead := testutil.CreateLead(t, f.env.LeadRepo, tid, "Corner Shop", testutil.WithAssignee(f.rep.ID), testutil.WithTerritory(f.north.ID))
	otherLead := testutil.CreateLead(t, f.env.LeadRepo, tid, "Far Away Deli", testutil.WithAssignee(f.other.ID))
	repToken := f.token(t, f.rep)

	at := time.Now().Add(48 * time.Hour).Truncate(time.Minute).UTC()
	schedule := func(leadID string, at time.Time) []byte {
		return marshalObj(t, visit.NewVisit{LeadID: leadID, ScheduledAt: at, Purpose: "Tasting"})
	}

	f.run(t, []httpTest{
		{name: "lead out of scope", method: http.MethodPost, path: "/v1/visits", token: repToken, body: schedule(otherLead.ID, at), wantCode: http.StatusBadRequest},
		{name: "in the past", method: http.MethodPost, path: "/v1/visits", token: repToken, body: schedule(repLead.ID, at.AddDate(0, 0, -7)), wantCode: http.StatusBadRequest},
	})

	rec := f.do(newAuthRequest(http.MethodPost, "/v1/visits", repToken, schedule(repLead.ID, at)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var v visit.Visit
	unmarshal(t, rec, &v)
	assert.Equal(t, f.rep.ID, v.UserID)
	assert.Equal(t, f.north.ID, v.TerritoryID)
	assert.Equal(t, visit.StatusScheduled, v.Status)

	path := "/v1/visits/" + v.ID
	f.run(t, []httpTest{
		{name: "overlapping visit", method: http.MethodPost, path: "/v1/visits", token: repToken, body: schedule(repLead.ID, at.Add(15*time.Minute)), wantCode: http.StatusBadRequest},
		{name: "rep lists own", path: "/v1/visits", token: repToken, wantData: marshalObj(t, []visit.Visit{v})},
		{name: "other rep cannot see it", path: path, token: f.token(t, f.other), wantCode: http.StatusNotFound},
		{name: "manager sees the territory", path: path, token: f.token(t, f.manager), wantData: marshalObj(t, v)},
		{name: "lead visits", path: "/v1/leads/" + repLead.ID + "/visits", token: repToken, wantData: marshalObj(t, []visit.Visit{v})},
		{name: "cancel reason required", method: http.MethodPost, path: path + "/cancel", token: repToken, body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "rep cannot delete", method: http.MethodDelete, path: path, token: repToken, wantCode: http.StatusForbidden},
	})

	rec = f.do(newAuthRequest(http.MethodPost, path+"/complete", repToken, []byte(`{"outcome":"Ordered","order_value":250}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &v)
	assert.Equal(t, visit.StatusCompleted, v.Status)
	assert.Equal(t, 250.0, v.OrderValue)

	l, err := f.env.Leads.Get(ctxBackground(), tid, repLead.ID)
	require.NoError(t, err)
	assert.NotNil(t, l.LastVisitAt)
	assert.Equal(t, lead.StatusNew, l.Status)

	f.run(t, []httpTest{
		{name: "cannot complete twice", method: http.MethodPost, path: path + "/complete", token: repToken, body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "cannot cancel a completed visit", method: http.MethodPost, path: path + "/cancel", token: repToken, body: []byte(`{"reason":"oops"}`), wantCode: http.StatusBadRequest},
	})
}

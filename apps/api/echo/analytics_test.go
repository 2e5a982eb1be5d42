package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core/dashboard"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

func Test_analyticsApi(t *testing.T) {
	f := setup(t)
	tid := f.tenant.ID
	testutil.CreateLead(t, f.env.LeadRepo, tid, "Corner Shop", testutil.WithAssignee(f.rep.ID), testutil.WithTerritory(f.north.ID))
	testutil.CreateLead(t, f.env.LeadRepo, tid, "Big Store", testutil.WithAssignee(f.rep.ID), testutil.WithStatus(lead.StatusLost))
	testutil.CreateLead(t, f.env.LeadRepo, tid, "Far Away Deli", testutil.WithAssignee(f.other.ID))

	repToken := f.token(t, f.rep)
	adminToken := f.token(t, f.admin)

	summary := func(t *testing.T, token string) dashboard.Summary {
		rec := f.do(newAuthRequest(http.MethodGet, "/v1/dashboard", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var s dashboard.Summary
		unmarshal(t, rec, &s)
		return s
	}

	t.Run("summary is scoped", func(t *testing.T) {
		assert.Equal(t, 3, summary(t, adminToken).Leads.Total)
		s := summary(t, repToken)
		assert.Equal(t, 2, s.Leads.Total)
		assert.Equal(t, 1, s.Leads.Lost)
	})

	t.Run("leads by status", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, "/v1/analytics/leads-by-status?period=custom&from=2024-03-01&to=2024-03-31", repToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var b dashboard.Breakdown
		unmarshal(t, rec, &b)
		counts := make(map[string]int)
		for _, c := range b.Items {
			counts[c.Key] = c.Count
		}
		assert.Equal(t, 1, counts[lead.StatusNew])
		assert.Equal(t, 1, counts[lead.StatusLost])
	})

	f.run(t, []httpTest{
		{name: "auth required", path: "/v1/dashboard", wantCode: http.StatusUnauthorized},
		{name: "bad period", path: "/v1/analytics/leads-by-source?period=lol", token: repToken, wantCode: http.StatusBadRequest},
		{name: "custom range needs from", path: "/v1/analytics/conversions?period=custom", token: repToken, wantCode: http.StatusBadRequest},
		{name: "territories", path: "/v1/analytics/leads-by-territory?period=this_month", token: repToken},
		{name: "visits", path: "/v1/analytics/visits?period=this_week&interval=day", token: repToken},
		{name: "reps need a team", path: "/v1/analytics/reps", token: repToken, wantCode: http.StatusForbidden},
		{name: "reps", path: "/v1/analytics/reps?period=last_7_days", token: f.token(t, f.manager)},
	})
}

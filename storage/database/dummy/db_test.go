package dummydb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
	dummydb "github.com/ud-systems/UD-Leads-sub001/storage/database/dummy"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

type repos struct {
	db *dummydb.DB

	users       user.Repository
	leads       lead.Repository
	visits      visit.Repository
	tenantID    string
	otherTenant string
}

func setup(t *testing.T) repos {
	db, err := dummydb.Open()
	require.NoError(t, err)

	tenants := dummydb.NewTenantRepository(db)
	return repos{
		db:          db,
		users:       dummydb.NewUserRepository(db),
		leads:       dummydb.NewLeadRepository(db),
		visits:      dummydb.NewVisitRepository(db),
		tenantID:    testutil.CreateTenant(t, tenants, "Acme", "acme").ID,
		otherTenant: testutil.CreateTenant(t, tenants, "Globex", "globex").ID,
	}
}

func storeNames(leads []lead.Lead) []string {
	names := make([]string, 0, len(leads))
	for _, l := range leads {
		names = append(names, l.StoreName)
	}
	return names
}

func TestLeadRepository_QueryLeads(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	rep := testutil.CreateUser(t, r.users, r.tenantID, "Rep", "rep", "rep@acme.test", "", []string{user.RoleRep}, true)
	terr := testutil.CreateTerritory(t, dummydb.NewTerritoryRepository(r.db), r.tenantID, "North", "N", "")

	testutil.CreateLead(t, r.leads, r.tenantID, "Alpha", testutil.WithAssignee(rep.ID), testutil.CreatedAt(testutil.Now.Add(-3*time.Hour)))
	testutil.CreateLead(t, r.leads, r.tenantID, "Bravo", testutil.WithTerritory(terr.ID), testutil.CreatedAt(testutil.Now.Add(-2*time.Hour)))
	testutil.CreateLead(t, r.leads, r.tenantID, "Charlie", testutil.WithValue(500), testutil.CreatedAt(testutil.Now.Add(-time.Hour)))
	testutil.CreateLead(t, r.leads, r.otherTenant, "Other tenant")

	tests := []struct {
		name     string
		scope    core.Scope
		filter   lead.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{
			name:  "whole tenant, newest first",
			scope: core.TenantScope(r.tenantID),
			want:  []string{"Charlie", "Bravo", "Alpha"},
		},
		{
			name:     "ordered by name",
			scope:    core.TenantScope(r.tenantID),
			ordering: []core.DBOrdering{{Field: "store_name", Ascending: true}},
			want:     []string{"Alpha", "Bravo", "Charlie"},
		},
		{
			name:  "own leads",
			scope: core.Scope{TenantID: r.tenantID, UserID: rep.ID},
			want:  []string{"Alpha"},
		},
		{
			name:  "own leads or territory leads",
			scope: core.Scope{TenantID: r.tenantID, UserID: rep.ID, TerritoryIDs: []string{terr.ID}},
			want:  []string{"Bravo", "Alpha"},
		},
		{
			name:   "search",
			scope:  core.TenantScope(r.tenantID),
			filter: lead.QueryFilter{Search: "ARL"},
			want:   []string{"Charlie"},
		},
		{
			name:   "paginated",
			scope:  core.TenantScope(r.tenantID),
			filter: lead.QueryFilter{Page: core.Page{Limit: 1, Offset: 1}},
			want:   []string{"Bravo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leads, err := r.leads.QueryLeads(ctx, tt.scope, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, storeNames(leads))
		})
	}
}

func TestLeadRepository_CheckUniqueness(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	l := testutil.CreateLead(t, r.leads, r.tenantID, "Alpha", testutil.WithEmail("alpha@shop.test"))

	assert.Equal(t, lead.ErrEmailExists, r.leads.CheckUniqueness(ctx, r.tenantID, "alpha@shop.test", "", ""))
	assert.NoError(t, r.leads.CheckUniqueness(ctx, r.tenantID, "alpha@shop.test", "", l.ID))
	assert.NoError(t, r.leads.CheckUniqueness(ctx, r.otherTenant, "alpha@shop.test", "", ""))
	assert.NoError(t, r.leads.CheckUniqueness(ctx, r.tenantID, "", "", ""))
}

func TestLeadRepository_DeleteLeadsRemovesVisits(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	l := testutil.CreateLead(t, r.leads, r.tenantID, "Alpha")
	v := testutil.CreateVisit(t, r.visits, l, "", testutil.Now, visit.StatusScheduled, 0)

	require.NoError(t, r.leads.DeleteLeads(ctx, r.tenantID, l.ID))

	_, err := r.visits.GetVisit(ctx, r.tenantID, v.ID)
	assert.Equal(t, visit.ErrNotFound, err)
}

func TestVisitRepository_HasConflict(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	rep := testutil.CreateUser(t, r.users, r.tenantID, "Rep", "rep", "rep@acme.test", "", []string{user.RoleRep}, true)
	l := testutil.CreateLead(t, r.leads, r.tenantID, "Alpha")
	v := testutil.CreateVisit(t, r.visits, l, rep.ID, testutil.Now, visit.StatusScheduled, 0) // 09:00-09:30
	testutil.CreateVisit(t, r.visits, l, rep.ID, testutil.Now.Add(2*time.Hour), visit.StatusCancelled, 0)

	tests := []struct {
		name       string
		start      time.Time
		minutes    int
		excludedID string
		want       bool
	}{
		{"overlaps the start", testutil.Now.Add(-15 * time.Minute), 30, "", true},
		{"inside", testutil.Now.Add(10 * time.Minute), 5, "", true},
		{"ends when the visit starts", testutil.Now.Add(-30 * time.Minute), 30, "", false},
		{"starts when the visit ends", testutil.Now.Add(30 * time.Minute), 30, "", false},
		{"excluded", testutil.Now, 30, v.ID, false},
		{"cancelled visits do not block", testutil.Now.Add(2 * time.Hour), 30, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := tt.start.Add(time.Duration(tt.minutes) * time.Minute)
			got, err := r.visits.HasConflict(ctx, r.tenantID, rep.ID, tt.start, end, tt.excludedID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVisitRepository_LeadStats(t *testing.T) {
	r := setup(t)
	l := testutil.CreateLead(t, r.leads, r.tenantID, "Alpha")
	testutil.CreateVisit(t, r.visits, l, "", testutil.Now, visit.StatusCompleted, 120)
	testutil.CreateVisit(t, r.visits, l, "", testutil.Now.Add(time.Hour), visit.StatusCompleted, 30.5)
	testutil.CreateVisit(t, r.visits, l, "", testutil.Now.Add(2*time.Hour), visit.StatusMissed, 99)

	stats, err := r.visits.LeadStats(context.Background(), r.tenantID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, visit.Stats{CompletedVisits: 2, OrderValue: 150.5}, stats)
}

func TestUserRepository_DeleteUsersUnassigns(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	rep := testutil.CreateUser(t, r.users, r.tenantID, "Rep", "rep", "rep@acme.test", "", []string{user.RoleRep}, true)
	l := testutil.CreateLead(t, r.leads, r.tenantID, "Alpha", testutil.WithAssignee(rep.ID))

	require.NoError(t, r.users.DeleteUsers(ctx, r.tenantID, rep.ID))

	l, err := r.leads.GetLead(ctx, r.tenantID, l.ID)
	require.NoError(t, err)
	assert.Empty(t, l.AssignedTo)
}

func TestBackupRepository_ExportReplace(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	backups := dummydb.NewBackupRepository(r.db)
	settings := dummydb.NewSettingRepository(r.db)

	rep := testutil.CreateUser(t, r.users, r.tenantID, "Rep", "rep", "rep@acme.test", "", []string{user.RoleRep}, true)
	l := testutil.CreateLead(t, r.leads, r.tenantID, "Alpha", testutil.WithAssignee(rep.ID))
	testutil.CreateVisit(t, r.visits, l, rep.ID, testutil.Now, visit.StatusCompleted, 10)
	_, err := settings.UpsertSetting(ctx, setting.Setting{TenantID: r.tenantID, Key: "visit.reminder_hours", Value: "12"})
	require.NoError(t, err)
	testutil.CreateLead(t, r.leads, r.otherTenant, "Untouched")

	snap, err := backups.ExportTenantData(ctx, r.tenantID)
	require.NoError(t, err)
	assert.Len(t, snap.Leads, 1)
	assert.Len(t, snap.Visits, 1)
	assert.Len(t, snap.Settings, 1)

	// changes made after the snapshot are rolled back
	testutil.CreateLead(t, r.leads, r.tenantID, "Bravo")
	require.NoError(t, settings.DeleteSetting(ctx, r.tenantID, "visit.reminder_hours"))
	require.NoError(t, r.users.DeleteUsers(ctx, r.tenantID, rep.ID))

	require.NoError(t, backups.ReplaceTenantData(ctx, snap))

	leads, err := r.leads.QueryLeads(ctx, core.TenantScope(r.tenantID), lead.QueryFilter{}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Alpha"}, storeNames(leads))
	assert.Empty(t, leads[0].AssignedTo, "deleted users are unassigned")

	visits, err := r.visits.QueryVisits(ctx, core.TenantScope(r.tenantID), visit.QueryFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, visits, 1)

	stored, err := settings.QuerySettings(ctx, r.tenantID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	others, err := r.leads.QueryLeads(ctx, core.TenantScope(r.otherTenant), lead.QueryFilter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Untouched"}, storeNames(others))
}

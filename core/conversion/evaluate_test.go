package conversion

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	openLead := lead.Lead{
		ID:             "l1",
		Status:         lead.StatusNegotiation,
		Source:         lead.SourceReferral,
		TerritoryID:    "t1",
		EstimatedValue: 2000,
		CreatedAt:      now.Add(-10 * 24 * time.Hour),
	}
	stats := visit.Stats{CompletedVisits: 2, OrderValue: 750}

	visits := Rule{ID: "r-visits", Name: "two visits", IsActive: true, Priority: 10,
		Conditions: Conditions{MinCompletedVisits: 2, FromStatuses: []string{lead.StatusNegotiation}}}
	bigOrder := Rule{ID: "r-order", Name: "big order", IsActive: true, Priority: 20,
		Conditions: Conditions{MinOrderValue: 1000}}
	referral := Rule{ID: "r-referral", Name: "a referral", IsActive: true, Priority: 10,
		Conditions: Conditions{Sources: []string{lead.SourceReferral}, MaxLeadAgeDays: 30}}
	inactive := Rule{ID: "r-inactive", Name: "inactive", IsActive: false, Priority: 100,
		Conditions: Conditions{MinCompletedVisits: 1}}

	tests := []struct {
		name     string
		rules    []Rule
		lead     lead.Lead
		stats    visit.Stats
		matched  string
		eligible bool
		checked  []string
	}{
		{
			name:     "no rules",
			lead:     openLead,
			stats:    stats,
			eligible: true,
			checked:  []string{},
		},
		{
			name:     "single match",
			rules:    []Rule{visits},
			lead:     openLead,
			stats:    stats,
			matched:  "r-visits",
			eligible: true,
			checked:  []string{"r-visits"},
		},
		{
			name:     "ties broken by name",
			rules:    []Rule{visits, referral, bigOrder},
			lead:     openLead,
			stats:    stats,
			matched:  "r-referral",
			eligible: true,
			checked:  []string{"r-order", "r-referral", "r-visits"},
		},
		{
			name:     "inactive rules are skipped",
			rules:    []Rule{inactive, bigOrder},
			lead:     openLead,
			stats:    stats,
			eligible: true,
			checked:  []string{"r-order"},
		},
		{
			name:     "higher priority wins",
			rules:    []Rule{visits, bigOrder},
			lead:     openLead,
			stats:    visit.Stats{CompletedVisits: 3, OrderValue: 5000},
			matched:  "r-order",
			eligible: true,
			checked:  []string{"r-order", "r-visits"},
		},
		{
			name:    "converted leads are not evaluated",
			rules:   []Rule{visits},
			lead:    lead.Lead{ID: "l2", Status: lead.StatusConverted},
			stats:   stats,
			checked: []string{},
		},
		{
			name:    "lost leads are not evaluated",
			rules:   []Rule{visits},
			lead:    lead.Lead{ID: "l3", Status: lead.StatusLost},
			checked: []string{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Evaluate(tc.rules, Facts{Lead: tc.lead, Stats: tc.stats}, now)

			assert.Equal(t, tc.lead.ID, res.LeadID)
			assert.Equal(t, tc.eligible, res.Eligible)
			assert.Equal(t, tc.matched != "", res.Matched)
			if tc.matched != "" {
				require.NotNil(t, res.Rule)
				assert.Equal(t, tc.matched, res.Rule.ID)
			} else {
				assert.Nil(t, res.Rule)
				assert.NotEmpty(t, res.Reason)
			}

			checked := make([]string, 0, len(res.Rules))
			for _, rr := range res.Rules {
				checked = append(checked, rr.RuleID)
			}
			assert.Equal(t, tc.checked, checked)
		})
	}
}

func TestEvaluate_checks(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	l := lead.Lead{
		ID:             "l1",
		Status:         lead.StatusQualified,
		Source:         lead.SourceWebsite,
		EstimatedValue: 300,
		CreatedAt:      now.Add(-40 * 24 * time.Hour),
	}
	r := Rule{ID: "r1", Name: "all", IsActive: true, Conditions: Conditions{
		FromStatuses:       []string{lead.StatusQualified},
		MinCompletedVisits: 1,
		MinOrderValue:      100,
		MinEstimatedValue:  250,
		Sources:            []string{lead.SourceWalkIn, lead.SourceWebsite},
		TerritoryIDs:       []string{"t1"},
		MaxLeadAgeDays:     30,
	}}

	res := Evaluate([]Rule{r}, Facts{Lead: l, Stats: visit.Stats{CompletedVisits: 1, OrderValue: 99.5}}, now)
	require.Len(t, res.Rules, 1)
	assert.False(t, res.Matched)

	want := []Check{
		{Condition: CondFromStatuses, Passed: true, Expected: "qualified", Actual: "qualified"},
		{Condition: CondMinCompletedVisits, Passed: true, Expected: ">= 1", Actual: "1"},
		{Condition: CondMinOrderValue, Passed: false, Expected: ">= 100.00", Actual: "99.50"},
		{Condition: CondMinEstimatedValue, Passed: true, Expected: ">= 250.00", Actual: "300.00"},
		{Condition: CondSources, Passed: true, Expected: strings.Join(r.Conditions.Sources, ","), Actual: "website"},
		{Condition: CondTerritoryIDs, Passed: false, Expected: "t1", Actual: ""},
		{Condition: CondMaxLeadAgeDays, Passed: false, Expected: "<= 30", Actual: "40"},
	}
	assert.Equal(t, want, res.Rules[0].Checks)
}

func TestConditions_IsEmpty(t *testing.T) {
	assert.True(t, Conditions{}.IsEmpty())
	assert.True(t, Conditions{FromStatuses: []string{}}.IsEmpty())
	assert.False(t, Conditions{MaxLeadAgeDays: 1}.IsEmpty())
	assert.False(t, Conditions{TerritoryIDs: []string{"t1"}}.IsEmpty())
}

func TestParseYAML(t *testing.T) {
	doc, err := ParseYAML(strings.NewReader(`
rules:
  - name: Big order
    priority: 20
    conditions:
      min_order_value: 1000
  - name: Referral
    active: false
    conditions:
      sources: [referral]
      max_lead_age_days: 30
`))
	require.NoError(t, err)
	require.Len(t, doc.Rules, 2)
	assert.Equal(t, "Big order", doc.Rules[0].Name)
	assert.Equal(t, 20, doc.Rules[0].Priority)
	assert.Nil(t, doc.Rules[0].Active)
	assert.Equal(t, 1000.0, doc.Rules[0].Conditions.MinOrderValue)
	require.NotNil(t, doc.Rules[1].Active)
	assert.False(t, *doc.Rules[1].Active)
	assert.Equal(t, []string{"referral"}, doc.Rules[1].Conditions.Sources)

	_, err = ParseYAML(strings.NewReader("rules:\n  - name: x\n    colour: red\n"))
	assert.Error(t, err)

	doc, err = ParseYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc.Rules)
}

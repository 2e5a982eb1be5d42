package conversion_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
	testutil "github.com/ud-systems/UD-Leads-sub001/tests"
)

func setup(t *testing.T) (*testutil.Env, string, user.User) {
	t.Helper()
	env := testutil.NewEnv(t)
	tn := testutil.CreateTenant(t, env.TenantRepo, "Acme", "acme")
	rep := testutil.CreateUser(t, env.UserRepo, tn.ID, "Rex Rep", "rex", "rex@acme.test", "", []string{user.RoleRep}, true)
	return env, tn.ID, rep
}

func TestService_CreateAndUpdate(t *testing.T) {
	env, tenantID, _ := setup(t)
	ctx := context.Background()

	nr := conversion.NewRule{TenantID: tenantID, Name: " Big order ", Conditions: conversion.Conditions{MinOrderValue: 1000}}
	require.NoError(t, nr.Validate(env.Validate, env.Rules))
	r, err := env.Rules.Create(ctx, nr)
	require.NoError(t, err)
	assert.Equal(t, "Big order", r.Name)
	assert.True(t, r.IsActive, "rules are active by default")

	tests := []struct {
		name      string
		nr        conversion.NewRule
		wantField string
	}{
		{name: "duplicate name", nr: conversion.NewRule{Name: "BIG ORDER", Conditions: conversion.Conditions{MinCompletedVisits: 1}}, wantField: "name"},
		{name: "no condition", nr: conversion.NewRule{Name: "Empty"}, wantField: "conditions"},
		{
			name:      "terminal status",
			nr:        conversion.NewRule{Name: "Closed", Conditions: conversion.Conditions{FromStatuses: []string{lead.StatusConverted}}},
			wantField: "from_statuses",
		},
		{
			name:      "priority out of range",
			nr:        conversion.NewRule{Name: "Urgent", Priority: 5000, Conditions: conversion.Conditions{MinCompletedVisits: 1}},
			wantField: "priority",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.nr.TenantID = tenantID
			err := tc.nr.Validate(env.Validate, env.Rules)
			require.Error(t, err)
			assert.Equal(t, tc.wantField, testutil.FieldOf(err))
		})
	}

	inactive := false
	ur := conversion.UpdateRule{IsActive: &inactive}
	require.NoError(t, ur.Validate(r, env.Validate, env.Rules))
	r, err = env.Rules.Update(ctx, r, ur)
	require.NoError(t, err)
	assert.Equal(t, "Big order", r.Name)
	assert.False(t, r.IsActive)
	assert.Equal(t, 1000.0, r.Conditions.MinOrderValue, "omitted conditions are kept")

	require.NoError(t, env.Rules.Delete(ctx, tenantID, r.ID))
	_, err = env.Rules.Get(ctx, tenantID, r.ID)
	assert.True(t, core.IsNotFound(err))
	assert.True(t, core.IsNotFound(env.Rules.Delete(ctx, tenantID, r.ID)))
}

func TestService_EvaluateAndApply(t *testing.T) {
	env, tenantID, rep := setup(t)
	ctx := context.Background()
	l := testutil.CreateLead(t, env.LeadRepo, tenantID, "Corner Shop", testutil.WithAssignee(rep.ID), testutil.WithSource(lead.SourceReferral))

	low := testutil.CreateRule(t, env.RuleRepo, tenantID, "Referral", 1, conversion.Conditions{Sources: []string{lead.SourceReferral}, MinCompletedVisits: 1})
	high := testutil.CreateRule(t, env.RuleRepo, tenantID, "Big order", 50, conversion.Conditions{MinOrderValue: 500})

	res, err := env.Rules.Evaluate(ctx, l)
	require.NoError(t, err)
	assert.True(t, res.Eligible)
	assert.False(t, res.Matched)
	require.Len(t, res.Rules, 2)
	assert.Equal(t, high.ID, res.Rules[0].RuleID, "rules are tried by priority")

	_, _, err = env.Rules.Apply(ctx, l)
	assert.True(t, core.IsValidationError(err))

	testutil.CreateVisit(t, env.VisitRepo, l, rep.ID, testutil.Now, visit.StatusCompleted, 600)
	res, err = env.Rules.Evaluate(ctx, l)
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, high.ID, res.Rule.ID, "first match wins")
	assert.True(t, res.Rules[1].Matched, "every rule is explained")

	converted, _, err := env.Rules.Apply(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusConverted, converted.Status)
	assert.Equal(t, high.ID, converted.ConversionRuleID)
	assert.NotEqual(t, low.ID, converted.ConversionRuleID)

	res, err = env.Rules.Evaluate(ctx, converted)
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	_, _, err = env.Rules.Apply(ctx, converted)
	assert.True(t, core.IsValidationError(err))
}

func TestService_Sweep(t *testing.T) {
	env, tenantID, rep := setup(t)
	ctx := context.Background()

	big := testutil.CreateLead(t, env.LeadRepo, tenantID, "Big", testutil.WithValue(5000))
	small := testutil.CreateLead(t, env.LeadRepo, tenantID, "Small", testutil.WithValue(10))
	testutil.CreateLead(t, env.LeadRepo, tenantID, "Lost", testutil.WithValue(9000), testutil.WithStatus(lead.StatusLost))
	testutil.CreateRule(t, env.RuleRepo, tenantID, "Valuable", 0, conversion.Conditions{MinEstimatedValue: 1000})

	_, err := env.Settings.Set(ctx, tenantID, setting.ConversionAutoApply, "false", rep.ID)
	require.NoError(t, err)
	sr, err := env.Rules.AutoSweep(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, conversion.SweepResult{}, sr, "auto sweep honours the setting")

	sr, err = env.Rules.Sweep(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, conversion.SweepResult{Evaluated: 2, Converted: 1}, sr)

	l, err := env.Leads.Get(ctx, tenantID, big.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusConverted, l.Status)
	l, err = env.Leads.Get(ctx, tenantID, small.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusNew, l.Status)

	sr, err = env.Rules.Sweep(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, conversion.SweepResult{Evaluated: 1}, sr)
}

func TestService_YAML(t *testing.T) {
	env, tenantID, _ := setup(t)
	ctx := context.Background()
	testutil.CreateRule(t, env.RuleRepo, tenantID, "Referral", 5, conversion.Conditions{Sources: []string{lead.SourceReferral}})

	sum, err := env.Rules.ImportYAML(ctx, tenantID, strings.NewReader(`
rules:
  - name: Referral
    priority: 30
    conditions:
      sources: [referral, website]
  - name: Big order
    active: false
    conditions:
      min_order_value: 1000
`), env.Validate)
	require.NoError(t, err)
	assert.Equal(t, conversion.ImportSummary{Created: 1, Updated: 1}, sum)

	rules, err := env.Rules.Query(ctx, tenantID, nil, nil)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "Referral", rules[0].Name)
	assert.Equal(t, 30, rules[0].Priority)
	assert.Equal(t, []string{lead.SourceReferral, lead.SourceWebsite}, rules[0].Conditions.Sources)
	assert.False(t, rules[1].IsActive)

	var buf bytes.Buffer
	require.NoError(t, env.Rules.ExportYAML(ctx, tenantID, &buf))
	doc, err := conversion.ParseYAML(&buf)
	require.NoError(t, err)
	require.Len(t, doc.Rules, 2)
	assert.Equal(t, "Referral", doc.Rules[0].Name)
	assert.Equal(t, 1000.0, doc.Rules[1].Conditions.MinOrderValue)

	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown field", doc: "rules:\n  - name: x\n    colour: red\n"},
		{name: "duplicate name", doc: "rules:\n  - name: x\n    conditions: {min_completed_visits: 1}\n  - name: x\n    conditions: {min_completed_visits: 2}\n"},
		{name: "no condition", doc: "rules:\n  - name: y\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Rules.ImportYAML(ctx, tenantID, strings.NewReader(tc.doc), env.Validate)
			assert.Error(t, err)

			rules, err := env.Rules.Query(ctx, tenantID, nil, nil)
			require.NoError(t, err)
			assert.Len(t, rules, 2, "nothing is written when a rule is invalid")
		})
	}
}

package conversion

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

// Condition names
const (
	CondFromStatuses       = "from_statuses"
	CondMinCompletedVisits = "min_completed_visits"
	CondMinOrderValue      = "min_order_value"
	CondMinEstimatedValue  = "min_estimated_value"
	CondSources            = "sources"
	CondTerritoryIDs       = "territory_ids"
	CondMaxLeadAgeDays     = "max_lead_age_days"
)

// Facts are what rules are evaluated against.
type Facts struct {
	Lead  lead.Lead
	Stats visit.Stats
}

// Check is the outcome of one condition of a rule.
type Check struct {
	Condition string `json:"condition"`
	Passed    bool   `json:"passed"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
}

type RuleResult struct {
	RuleID   string  `json:"rule_id"`
	RuleName string  `json:"rule_name"`
	Matched  bool    `json:"matched"`
	Checks   []Check `json:"checks"`
}

// Result explains the evaluation of a lead. Rule is the first matching rule, if any.
type Result struct {
	LeadID   string       `json:"lead_id"`
	Eligible bool         `json:"eligible"`
	Reason   string       `json:"reason,omitempty"`
	Matched  bool         `json:"matched"`
	Rule     *Rule        `json:"rule"`
	Rules    []RuleResult `json:"rules"`
}

// SortRules orders rules by priority, highest first, then by name.
func SortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].Name < rules[j].Name
	})
}

// Evaluate tries the active rules against facts. Closed leads are never evaluated.
// Every active rule is checked so the result can explain the decision, but only the first match counts.
func Evaluate(rules []Rule, facts Facts, now time.Time) Result {
	res := Result{LeadID: facts.Lead.ID, Rules: []RuleResult{}}
	if !facts.Lead.IsOpen() {
		res.Reason = fmt.Sprintf("lead is %s", facts.Lead.Status)
		return res
	}
	res.Eligible = true

	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	SortRules(active)

	for i, r := range active {
		rr := RuleResult{RuleID: r.ID, RuleName: r.Name, Checks: checkConditions(r.Conditions, facts, now)}
		rr.Matched = len(rr.Checks) > 0
		for _, c := range rr.Checks {
			rr.Matched = rr.Matched && c.Passed
		}
		if rr.Matched && !res.Matched {
			res.Matched = true
			res.Rule = &active[i]
		}
		res.Rules = append(res.Rules, rr)
	}
	if !res.Matched {
		res.Reason = "no rule matches"
	}
	return res
}

func checkConditions(c Conditions, facts Facts, now time.Time) []Check {
	l := facts.Lead
	checks := make([]Check, 0, 7)
	if len(c.FromStatuses) > 0 {
		checks = append(checks, Check{
			Condition: CondFromStatuses,
			Passed:    core.StringIn(l.Status, c.FromStatuses),
			Expected:  strings.Join(c.FromStatuses, ","),
			Actual:    l.Status,
		})
	}
	if c.MinCompletedVisits > 0 {
		checks = append(checks, Check{
			Condition: CondMinCompletedVisits,
			Passed:    facts.Stats.CompletedVisits >= c.MinCompletedVisits,
			Expected:  ">= " + strconv.Itoa(c.MinCompletedVisits),
			Actual:    strconv.Itoa(facts.Stats.CompletedVisits),
		})
	}
	if c.MinOrderValue > 0 {
		checks = append(checks, Check{
			Condition: CondMinOrderValue,
			Passed:    facts.Stats.OrderValue >= c.MinOrderValue,
			Expected:  ">= " + formatAmount(c.MinOrderValue),
			Actual:    formatAmount(facts.Stats.OrderValue),
		})
	}
	if c.MinEstimatedValue > 0 {
		checks = append(checks, Check{
			Condition: CondMinEstimatedValue,
			Passed:    l.EstimatedValue >= c.MinEstimatedValue,
			Expected:  ">= " + formatAmount(c.MinEstimatedValue),
			Actual:    formatAmount(l.EstimatedValue),
		})
	}
	if len(c.Sources) > 0 {
		checks = append(checks, Check{
			Condition: CondSources,
			Passed:    core.StringIn(l.Source, c.Sources),
			Expected:  strings.Join(c.Sources, ","),
			Actual:    l.Source,
		})
	}
	if len(c.TerritoryIDs) > 0 {
		checks = append(checks, Check{
			Condition: CondTerritoryIDs,
			Passed:    l.TerritoryID != "" && core.StringIn(l.TerritoryID, c.TerritoryIDs),
			Expected:  strings.Join(c.TerritoryIDs, ","),
			Actual:    l.TerritoryID,
		})
	}
	if c.MaxLeadAgeDays > 0 {
		age := int(now.Sub(l.CreatedAt).Hours() / 24)
		checks = append(checks, Check{
			Condition: CondMaxLeadAgeDays,
			Passed:    age <= c.MaxLeadAgeDays,
			Expected:  "<= " + strconv.Itoa(c.MaxLeadAgeDays),
			Actual:    strconv.Itoa(age),
		})
	}
	return checks
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

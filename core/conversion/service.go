package conversion

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

var (
	ErrNotFound   = core.NewNotFoundError("conversion rule")
	ErrNameExists = errors.New("a rule with this name already exists")
	ErrNoMatch    = errors.New("no conversion rule matches this lead")
)

type (
	Repository interface {
		CreateRule(ctx context.Context, r Rule) (Rule, error)
		QueryRules(ctx context.Context, tenantID string, filter QueryFilter, ordering []core.DBOrdering) ([]Rule, error)
		GetRule(ctx context.Context, tenantID, id string) (Rule, error)
		GetRuleByName(ctx context.Context, tenantID, name string) (Rule, error)
		UpdateRule(ctx context.Context, r Rule) (Rule, error)
		DeleteRule(ctx context.Context, tenantID, id string) error
	}

	// Leads is the part of the lead service rules act upon.
	Leads interface {
		Get(ctx context.Context, tenantID, id string) (lead.Lead, error)
		Export(ctx context.Context, scope core.Scope, filter *lead.QueryFilter, ordering []core.DBOrdering) ([]lead.Lead, error)
		Convert(ctx context.Context, l lead.Lead, ruleID string, at time.Time) (lead.Lead, error)
	}

	VisitStats interface {
		LeadStats(ctx context.Context, tenantID, leadID string) (visit.Stats, error)
	}

	Settings interface {
		Bool(ctx context.Context, tenantID, key string) (bool, error)
	}

	Service struct {
		repo     Repository
		leads    Leads
		visits   VisitStats
		settings Settings
		cache    core.Cache
	}

	// SweepResult counts the leads a sweep went through.
	SweepResult struct {
		Evaluated int `json:"evaluated"`
		Converted int `json:"converted"`
	}
)

func NewService(repo Repository, leads Leads, visits VisitStats, settings Settings, cache core.Cache) *Service {
	return &Service{
		repo:     repo,
		leads:    leads,
		visits:   visits,
		settings: settings,
		cache:    cache,
	}
}

func (svc *Service) checkNameUniqueness(tenantID, name, excludedID string) error {
	r, err := svc.repo.GetRuleByName(context.Background(), tenantID, name)
	switch {
	case err == nil && r.ID != excludedID:
		return core.NewFieldError("name", ErrNameExists)
	case err != nil && !core.IsNotFound(err):
		return errors.Wrap(err, "checking name uniqueness")
	}
	return nil
}

func (svc *Service) touch(ctx context.Context, tenantID string) error {
	return core.BumpTenantVersion(ctx, svc.cache, tenantID)
}

func (svc *Service) Create(ctx context.Context, nr NewRule) (Rule, error) {
	r, err := svc.createRule(ctx, nr)
	if err != nil {
		return Rule{}, err
	}
	return r, svc.touch(ctx, r.TenantID)
}

func (svc *Service) Query(ctx context.Context, tenantID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Rule, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QueryRules(ctx, tenantID, *filter, core.CleanOrdering(ordering, OrderingFields...))
}

func (svc *Service) Get(ctx context.Context, tenantID, id string) (Rule, error) {
	return svc.repo.GetRule(ctx, tenantID, id)
}

func (svc *Service) Update(ctx context.Context, r Rule, ur UpdateRule) (Rule, error) {
	r.Name = ur.Name
	if ur.Description != nil {
		r.Description = *ur.Description
	}
	if ur.IsActive != nil {
		r.IsActive = *ur.IsActive
	}
	if ur.Priority != nil {
		r.Priority = *ur.Priority
	}
	r.Conditions = *ur.Conditions
	r.UpdatedAt = time.Now().UTC()

	r, err := svc.repo.UpdateRule(ctx, r)
	if err != nil {
		return Rule{}, errors.Wrap(err, "updating rule")
	}
	return r, svc.touch(ctx, r.TenantID)
}

func (svc *Service) Delete(ctx context.Context, tenantID, id string) error {
	if err := svc.repo.DeleteRule(ctx, tenantID, id); err != nil {
		return errors.Wrap(err, "deleting rule")
	}
	return svc.touch(ctx, tenantID)
}

func (svc *Service) activeRules(ctx context.Context, tenantID string) ([]Rule, error) {
	active := true
	rules, err := svc.repo.QueryRules(ctx, tenantID, QueryFilter{IsActive: &active}, nil)
	return rules, errors.Wrap(err, "querying active rules")
}

func (svc *Service) evaluate(ctx context.Context, rules []Rule, l lead.Lead, now time.Time) (Result, error) {
	if !l.IsOpen() {
		return Evaluate(rules, Facts{Lead: l}, now), nil
	}
	stats, err := svc.visits.LeadStats(ctx, l.TenantID, l.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting visit stats")
	}
	return Evaluate(rules, Facts{Lead: l, Stats: stats}, now), nil
}

// Evaluate is a dry run of the tenant's rules against l.
func (svc *Service) Evaluate(ctx context.Context, l lead.Lead) (Result, error) {
	rules, err := svc.activeRules(ctx, l.TenantID)
	if err != nil {
		return Result{}, err
	}
	return svc.evaluate(ctx, rules, l, time.Now())
}

// Apply converts l with the first matching rule. It fails with ErrNoMatch when no rule matches.
func (svc *Service) Apply(ctx context.Context, l lead.Lead) (lead.Lead, Result, error) {
	res, err := svc.Evaluate(ctx, l)
	if err != nil {
		return lead.Lead{}, Result{}, err
	}
	if !res.Eligible {
		return lead.Lead{}, res, core.NewValidationError(lead.ErrNotOpen)
	}
	if !res.Matched {
		return lead.Lead{}, res, core.NewValidationError(ErrNoMatch)
	}
	l, err = svc.leads.Convert(ctx, l, res.Rule.ID, time.Now())
	return l, res, err
}

func (svc *Service) autoApplyEnabled(ctx context.Context, tenantID string) (bool, error) {
	enabled, err := svc.settings.Bool(ctx, tenantID, setting.ConversionAutoApply)
	return enabled, errors.Wrap(err, "getting auto apply setting")
}

// AutoApply converts the lead when automatic conversion is enabled and a rule matches.
// It reports whether the lead was converted.
func (svc *Service) AutoApply(ctx context.Context, tenantID, leadID string) (bool, error) {
	if enabled, err := svc.autoApplyEnabled(ctx, tenantID); err != nil || !enabled {
		return false, err
	}
	l, err := svc.leads.Get(ctx, tenantID, leadID)
	if err != nil {
		return false, errors.Wrap(err, "getting lead")
	}
	res, err := svc.Evaluate(ctx, l)
	if err != nil || !res.Matched {
		return false, err
	}
	if _, err := svc.leads.Convert(ctx, l, res.Rule.ID, time.Now()); err != nil {
		return false, errors.Wrap(err, "converting lead")
	}
	return true, nil
}

// Sweep evaluates every open lead of the tenant and converts the matching ones.
func (svc *Service) Sweep(ctx context.Context, tenantID string) (SweepResult, error) {
	var sr SweepResult
	rules, err := svc.activeRules(ctx, tenantID)
	if err != nil || len(rules) == 0 {
		return sr, err
	}

	leads, err := svc.leads.Export(ctx, core.TenantScope(tenantID), &lead.QueryFilter{Statuses: lead.OpenStatuses()}, nil)
	if err != nil {
		return sr, errors.Wrap(err, "querying open leads")
	}
	now := time.Now()
	for _, l := range leads {
		if err := ctx.Err(); err != nil {
			return sr, err
		}
		res, err := svc.evaluate(ctx, rules, l, now)
		if err != nil {
			return sr, err
		}
		sr.Evaluated++
		if !res.Matched {
			continue
		}
		if _, err := svc.leads.Convert(ctx, l, res.Rule.ID, now); err != nil {
			return sr, errors.Wrap(err, "converting lead")
		}
		sr.Converted++
	}
	return sr, nil
}

// AutoSweep runs Sweep when automatic conversion is enabled for the tenant.
func (svc *Service) AutoSweep(ctx context.Context, tenantID string) (SweepResult, error) {
	if enabled, err := svc.autoApplyEnabled(ctx, tenantID); err != nil || !enabled {
		return SweepResult{}, err
	}
	return svc.Sweep(ctx, tenantID)
}

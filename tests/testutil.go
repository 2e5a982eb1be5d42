// Package testutil creates the fixtures shared by the tests of several packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

// Now is a fixed instant fixtures are created relative to.
var Now = time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)

func CreateTenant(t *testing.T, repo tenant.Repository, name, slug string) tenant.Tenant {
	t.Helper()
	tn, err := repo.CreateTenant(context.Background(), tenant.Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		IsActive:  true,
		CreatedAt: Now,
		UpdatedAt: Now,
	})
	if err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	return tn
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	tenantID, name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := Now
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTerritory(t *testing.T, repo territory.Repository, tenantID, name, code, managerID string) territory.Territory {
	t.Helper()
	tr, err := repo.CreateTerritory(context.Background(), territory.Territory{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      name,
		Code:      code,
		ManagerID: managerID,
		IsActive:  true,
		CreatedAt: Now,
		UpdatedAt: Now,
	})
	if err != nil {
		t.Fatalf("CreateTerritory() failed: %v", err)
	}
	return tr
}

// LeadOption customizes a lead before CreateLead stores it.
type LeadOption func(l *lead.Lead)

func WithStatus(status string) LeadOption   { return func(l *lead.Lead) { l.Status = status } }
func WithAssignee(userID string) LeadOption { return func(l *lead.Lead) { l.AssignedTo = userID } }
func WithTerritory(id string) LeadOption    { return func(l *lead.Lead) { l.TerritoryID = id } }
func WithSource(src string) LeadOption      { return func(l *lead.Lead) { l.Source = src } }
func WithValue(v float64) LeadOption        { return func(l *lead.Lead) { l.EstimatedValue = v } }
func WithEmail(email string) LeadOption     { return func(l *lead.Lead) { l.Email = email } }
func CreatedAt(at time.Time) LeadOption {
	return func(l *lead.Lead) {
		l.CreatedAt, l.UpdatedAt, l.StatusChangedAt = at, at, at
	}
}

func CreateLead(t *testing.T, repo lead.Repository, tenantID, storeName string, opts ...LeadOption) lead.Lead {
	t.Helper()
	l := lead.Lead{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		StoreName:       storeName,
		Source:          lead.SourceOther,
		Status:          lead.StatusNew,
		StatusChangedAt: Now,
		CreatedAt:       Now,
		UpdatedAt:       Now,
	}
	for _, opt := range opts {
		opt(&l)
	}
	l, err := repo.CreateLead(context.Background(), l)
	if err != nil {
		t.Fatalf("CreateLead() failed: %v", err)
	}
	return l
}

func CreateVisit(t *testing.T, repo visit.Repository, l lead.Lead, userID string, at time.Time, status string, orderValue float64) visit.Visit {
	t.Helper()
	v, err := repo.CreateVisit(context.Background(), visit.Visit{
		ID:              uuid.NewString(),
		TenantID:        l.TenantID,
		LeadID:          l.ID,
		UserID:          userID,
		TerritoryID:     l.TerritoryID,
		ScheduledAt:     at.UTC(),
		DurationMinutes: visit.DefaultDuration,
		Status:          status,
		OrderValue:      orderValue,
		CreatedAt:       Now,
		UpdatedAt:       Now,
	})
	if err != nil {
		t.Fatalf("CreateVisit() failed: %v", err)
	}
	return v
}

func CreateRule(t *testing.T, repo conversion.Repository, tenantID, name string, priority int, conds conversion.Conditions) conversion.Rule {
	t.Helper()
	r, err := repo.CreateRule(context.Background(), conversion.Rule{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Name:       name,
		IsActive:   true,
		Priority:   priority,
		Conditions: conds,
		CreatedAt:  Now,
		UpdatedAt:  Now,
	})
	if err != nil {
		t.Fatalf("CreateRule() failed: %v", err)
	}
	return r
}

// FieldOf returns the first field a validation error complains about.
func FieldOf(err error) string {
	if verrs, ok := errors.Cause(err).(validator.ValidationErrors); ok && len(verrs) > 0 {
		return verrs[0].Field()
	}
	var verr *core.ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		return verr.Fields[0].Field
	}
	return ""
}

package conversion

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

// Conditions are the requirements of a Rule. Zero values are not checked.
type Conditions struct {
	FromStatuses       []string `json:"from_statuses" yaml:"from_statuses,omitempty" validate:"omitempty,leadstatuses"`
	MinCompletedVisits int      `json:"min_completed_visits" yaml:"min_completed_visits,omitempty" validate:"gte=0"`
	MinOrderValue      float64  `json:"min_order_value" yaml:"min_order_value,omitempty" validate:"gte=0"`
	MinEstimatedValue  float64  `json:"min_estimated_value" yaml:"min_estimated_value,omitempty" validate:"gte=0"`
	Sources            []string `json:"sources" yaml:"sources,omitempty" validate:"omitempty,dive,leadsource"`
	TerritoryIDs       []string `json:"territory_ids" yaml:"territory_ids,omitempty" validate:"omitempty,dive,uuid"`
	MaxLeadAgeDays     int      `json:"max_lead_age_days" yaml:"max_lead_age_days,omitempty" validate:"gte=0"`
}

func (c Conditions) IsEmpty() bool {
	return len(c.FromStatuses) == 0 &&
		c.MinCompletedVisits == 0 &&
		c.MinOrderValue == 0 &&
		c.MinEstimatedValue == 0 &&
		len(c.Sources) == 0 &&
		len(c.TerritoryIDs) == 0 &&
		c.MaxLeadAgeDays == 0
}

func (c *Conditions) clean() {
	c.FromStatuses = core.CleanStrings(c.FromStatuses, true /* lower */)
	c.Sources = core.CleanStrings(c.Sources, true /* lower */)
	c.TerritoryIDs = core.CleanStrings(c.TerritoryIDs, true /* lower */)
}

// Rule converts the leads meeting all of its conditions.
type Rule struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsActive    bool       `json:"is_active"`
	Priority    int        `json:"priority"`
	Conditions  Conditions `json:"conditions"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

// NewRule contains information needed to create a Rule.
type NewRule struct {
	TenantID    string     `json:"-"`
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description" validate:"max=2000"`
	IsActive    *bool      `json:"is_active"`
	Priority    int        `json:"priority" validate:"gte=0,lte=1000"`
	Conditions  Conditions `json:"conditions"`
}

func (nr *NewRule) Validate(validate *validator.Validate, svc *Service) error {
	nr.Name = core.CleanString(nr.Name)
	nr.Description = core.CleanString(nr.Description)
	nr.Conditions.clean()
	if nr.IsActive == nil {
		active := true
		nr.IsActive = &active
	}
	if err := validate.Struct(nr); err != nil {
		return err
	}
	return svc.checkNameUniqueness(nr.TenantID, nr.Name, "")
}

// UpdateRule replaces the editable fields of a Rule. Omitted conditions are kept.
type UpdateRule struct {
	Name        string      `json:"name" validate:"required,max=100"`
	Description *string     `json:"description" validate:"omitempty,max=2000"`
	IsActive    *bool       `json:"is_active"`
	Priority    *int        `json:"priority" validate:"omitempty,gte=0,lte=1000"`
	Conditions  *Conditions `json:"conditions"`
}

func (ur *UpdateRule) Validate(orig Rule, validate *validator.Validate, svc *Service) error {
	if ur.Name = core.CleanString(ur.Name); ur.Name == "" {
		ur.Name = orig.Name
	}
	if ur.Description != nil {
		d := core.CleanString(*ur.Description)
		ur.Description = &d
	}
	if ur.Conditions == nil {
		c := orig.Conditions
		ur.Conditions = &c
	}
	ur.Conditions.clean()
	if err := validate.Struct(ur); err != nil {
		return err
	}
	if ur.Name != orig.Name {
		return svc.checkNameUniqueness(orig.TenantID, ur.Name, orig.ID)
	}
	return nil
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields are the fields rules can be ordered by.
var OrderingFields = []string{"name", "priority", "created_at", "updated_at"}

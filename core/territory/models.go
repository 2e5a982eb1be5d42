package territory

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

type Territory struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Region      string    `json:"region"`
	Description string    `json:"description"`
	ManagerID   string    `json:"manager_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewTerritory contains information needed to create a new Territory.
type NewTerritory struct {
	TenantID    string `json:"-"`
	Name        string `json:"name" validate:"required,max=255"`
	Code        string `json:"code" validate:"required,max=32,alphanum_"`
	Region      string `json:"region" validate:"max=255"`
	Description string `json:"description"`
	ManagerID   string `json:"manager_id" validate:"omitempty,uuid"`
}

func (nt *NewTerritory) Validate(validate *validator.Validate, svc *Service) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Code = cleanCode(nt.Code)
	nt.Region = core.CleanString(nt.Region)
	nt.Description = core.CleanString(nt.Description)
	nt.ManagerID = core.CleanString(nt.ManagerID, true /* lower */)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	if err := svc.checkCodeUniqueness(nt.TenantID, nt.Code, ""); err != nil {
		return err
	}
	return svc.checkManager(nt.TenantID, nt.ManagerID)
}

// UpdateTerritory defines what information may be provided to modify an existing Territory.
type UpdateTerritory struct {
	Name        string  `json:"name" validate:"max=255"`
	Code        string  `json:"code" validate:"omitempty,max=32,alphanum_"`
	Region      *string `json:"region" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	ManagerID   *string `json:"manager_id" validate:"omitempty,uuid|len=0"`
	IsActive    *bool   `json:"is_active"`
}

func (ut *UpdateTerritory) Validate(orig Territory, validate *validator.Validate, svc *Service) error {
	if name := core.CleanString(ut.Name); name != "" {
		ut.Name = name
	} else {
		ut.Name = orig.Name
	}
	if code := cleanCode(ut.Code); code != "" {
		ut.Code = code
	} else {
		ut.Code = orig.Code
	}
	if ut.Region != nil {
		region := core.CleanString(*ut.Region)
		ut.Region = &region
	}
	if ut.Description != nil {
		desc := core.CleanString(*ut.Description)
		ut.Description = &desc
	}
	if ut.ManagerID != nil {
		mid := core.CleanString(*ut.ManagerID, true /* lower */)
		ut.ManagerID = &mid
	}

	if err := validate.Struct(ut); err != nil {
		return err
	}
	if err := svc.checkCodeUniqueness(orig.TenantID, ut.Code, orig.ID); err != nil {
		return err
	}
	if ut.ManagerID != nil {
		return svc.checkManager(orig.TenantID, *ut.ManagerID)
	}
	return nil
}

type QueryFilter struct {
	Search    string `query:"search"`
	ManagerID string `query:"manager_id"`
	IsActive  *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ManagerID = core.CleanString(qf.ManagerID, true /* lower */)
}

// OrderingFields are the fields territories can be ordered by.
var OrderingFields = []string{"name", "code", "region", "created_at"}

func cleanCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}

package tenant

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

// Tenant is a company using the application; every other record belongs to one.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// NewTenant contains information needed to create a new Tenant.
type NewTenant struct {
	Name string `json:"name" validate:"required,max=255"`
	Slug string `json:"slug" validate:"required,max=63,slug"`
}

func (nt *NewTenant) Validate(validate *validator.Validate, svc *Service) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Slug = core.CleanString(nt.Slug, true /* lower */)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return svc.checkSlugUniqueness(nt.Slug)
}

// UpdateTenant defines what information may be provided to modify an existing Tenant.
type UpdateTenant struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (ut *UpdateTenant) Validate(validate *validator.Validate) error {
	ut.Name = core.CleanString(ut.Name)
	return validate.Struct(ut)
}

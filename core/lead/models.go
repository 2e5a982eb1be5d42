package lead

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

// Sources
const (
	SourceWalkIn   = "walk_in"
	SourceReferral = "referral"
	SourceColdCall = "cold_call"
	SourceWebsite  = "website"
	SourceImport   = "import"
	SourceOther    = "other"
)

var Sources = []string{SourceWalkIn, SourceReferral, SourceColdCall, SourceWebsite, SourceImport, SourceOther}

// Lead is a retail store the sales team is trying to win.
type Lead struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	StoreName        string     `json:"store_name"`
	ContactName      string     `json:"contact_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	PostalCode       string     `json:"postal_code"`
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`
	Category         string     `json:"category"`
	Source           string     `json:"source"`
	TerritoryID      string     `json:"territory_id"`
	AssignedTo       string     `json:"assigned_to"`
	Status           string     `json:"status"`
	EstimatedValue   float64    `json:"estimated_value"`
	Notes            string     `json:"notes"`
	StatusChangedAt  time.Time  `json:"status_changed_at"`
	ConvertedAt      *time.Time `json:"converted_at"`
	ConversionRuleID string     `json:"conversion_rule_id"`
	LastVisitAt      *time.Time `json:"last_visit_at"`
	CreatedBy        string     `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"` // UTC
	UpdatedAt        time.Time  `json:"updated_at"` // UTC
}

func (l Lead) IsOpen() bool {
	return !IsTerminal(l.Status)
}

// LastActivity is the last visit, or the creation when the lead was never visited.
func (l Lead) LastActivity() time.Time {
	if l.LastVisitAt != nil && l.LastVisitAt.After(l.CreatedAt) {
		return *l.LastVisitAt
	}
	return l.CreatedAt
}

// NewLead contains information needed to create a new Lead.
type NewLead struct {
	TenantID       string   `json:"-"`
	StoreName      string   `json:"store_name" validate:"required,max=255"`
	ContactName    string   `json:"contact_name" validate:"max=255"`
	Email          string   `json:"email" validate:"omitempty,email,max=255"`
	Phone          string   `json:"phone" validate:"omitempty,phone"`
	Address        string   `json:"address"`
	City           string   `json:"city" validate:"max=255"`
	PostalCode     string   `json:"postal_code" validate:"max=32"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,longitude"`
	Category       string   `json:"category" validate:"max=100"`
	Source         string   `json:"source" validate:"omitempty,leadsource"`
	TerritoryID    string   `json:"territory_id" validate:"omitempty,uuid"`
	AssignedTo     string   `json:"assigned_to" validate:"omitempty,uuid"`
	EstimatedValue float64  `json:"estimated_value" validate:"gte=0"`
	Notes          string   `json:"notes"`
}

func (nl *NewLead) clean() {
	nl.StoreName = core.CleanString(nl.StoreName)
	nl.ContactName = core.CleanString(nl.ContactName)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	nl.Phone = core.CleanString(nl.Phone)
	nl.Address = core.CleanString(nl.Address)
	nl.City = core.CleanString(nl.City)
	nl.PostalCode = core.CleanString(nl.PostalCode)
	nl.Category = core.CleanString(nl.Category)
	nl.Source = core.CleanString(nl.Source, true /* lower */)
	nl.TerritoryID = core.CleanString(nl.TerritoryID, true /* lower */)
	nl.AssignedTo = core.CleanString(nl.AssignedTo, true /* lower */)
	nl.Notes = core.CleanString(nl.Notes)
	if nl.Source == "" {
		nl.Source = SourceOther
	}
}

func (nl *NewLead) Validate(validate *validator.Validate, svc *Service) error {
	nl.clean()
	if err := validate.Struct(nl); err != nil {
		return err
	}
	if err := svc.checkUniqueness(nl.TenantID, nl.Email, nl.Phone, ""); err != nil {
		return err
	}
	return svc.checkReferences(nl.TenantID, nl.TerritoryID, nl.AssignedTo)
}

// UpdateLead defines what information may be provided to modify an existing Lead.
// Status and assignment have their own operations.
type UpdateLead struct {
	StoreName      string   `json:"store_name" validate:"max=255"`
	ContactName    *string  `json:"contact_name" validate:"omitempty,max=255"`
	Email          *string  `json:"email" validate:"omitempty,email|len=0"`
	Phone          *string  `json:"phone" validate:"omitempty,phone|len=0"`
	Address        *string  `json:"address"`
	City           *string  `json:"city" validate:"omitempty,max=255"`
	PostalCode     *string  `json:"postal_code" validate:"omitempty,max=32"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,longitude"`
	Category       *string  `json:"category" validate:"omitempty,max=100"`
	Source         string   `json:"source" validate:"omitempty,leadsource"`
	EstimatedValue *float64 `json:"estimated_value" validate:"omitempty,gte=0"`
	Notes          *string  `json:"notes"`
}

func cleanPtr(s *string, lower ...bool) *string {
	if s == nil {
		return nil
	}
	cleaned := core.CleanString(*s, lower...)
	return &cleaned
}

func (ul *UpdateLead) Validate(orig Lead, validate *validator.Validate, svc *Service) error {
	if name := core.CleanString(ul.StoreName); name != "" {
		ul.StoreName = name
	} else {
		ul.StoreName = orig.StoreName
	}
	if src := core.CleanString(ul.Source, true /* lower */); src != "" {
		ul.Source = src
	} else {
		ul.Source = orig.Source
	}
	ul.ContactName = cleanPtr(ul.ContactName)
	ul.Email = cleanPtr(ul.Email, true /* lower */)
	ul.Phone = cleanPtr(ul.Phone)
	ul.Address = cleanPtr(ul.Address)
	ul.City = cleanPtr(ul.City)
	ul.PostalCode = cleanPtr(ul.PostalCode)
	ul.Category = cleanPtr(ul.Category)
	ul.Notes = cleanPtr(ul.Notes)

	if err := validate.Struct(ul); err != nil {
		return err
	}

	email, phone := orig.Email, orig.Phone
	if ul.Email != nil {
		email = *ul.Email
	}
	if ul.Phone != nil {
		phone = *ul.Phone
	}
	if email == "" && phone == "" {
		return core.NewValidationError(nil,
			core.FieldError{Field: "email", Error: emailOrPhoneText},
			core.FieldError{Field: "phone", Error: emailOrPhoneText},
		)
	}
	return svc.checkUniqueness(orig.TenantID, email, phone, orig.ID)
}

// StatusChange moves a lead along the pipeline.
type StatusChange struct {
	Status string `json:"status" validate:"required,leadstatus"`
	Note   string `json:"note" validate:"max=2000"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = core.CleanString(sc.Status, true /* lower */)
	sc.Note = core.CleanString(sc.Note)
	return validate.Struct(sc)
}

// Assignment hands a lead to a user and/or territory.
type Assignment struct {
	UserID      string  `json:"user_id" validate:"omitempty,uuid"`
	TerritoryID *string `json:"territory_id" validate:"omitempty,uuid|len=0"`
}

func (a *Assignment) Validate(tenantID string, validate *validator.Validate, svc *Service) error {
	a.UserID = core.CleanString(a.UserID, true /* lower */)
	a.TerritoryID = cleanPtr(a.TerritoryID, true /* lower */)
	if err := validate.Struct(a); err != nil {
		return err
	}
	if a.UserID == "" && a.TerritoryID == nil {
		return core.NewFieldError("user_id", errNothingToAssign)
	}
	var territoryID string
	if a.TerritoryID != nil {
		territoryID = *a.TerritoryID
	}
	return svc.checkReferences(tenantID, territoryID, a.UserID)
}

type QueryFilter struct {
	core.Page
	Search       string    `query:"search"`
	Statuses     []string  `query:"status"`
	TerritoryIDs []string  `query:"territory_id"`
	AssignedTo   string    `query:"assigned_to"`
	Source       string    `query:"source"`
	Category     string    `query:"category"`
	CreatedFrom  time.Time `query:"created_from"`
	CreatedTo    time.Time `query:"created_to"`
	MinValue     *float64  `query:"min_value"`
	MaxValue     *float64  `query:"max_value"`
}

func (qf *QueryFilter) Clean() {
	qf.Page.Clean()
	qf.Search = core.CleanString(qf.Search)
	qf.Statuses = core.CleanStrings(qf.Statuses, true /* lower */)
	qf.TerritoryIDs = core.CleanStrings(qf.TerritoryIDs, true /* lower */)
	qf.AssignedTo = core.CleanString(qf.AssignedTo, true /* lower */)
	qf.Source = core.CleanString(qf.Source, true /* lower */)
	qf.Category = core.CleanString(qf.Category)
}

// Matches applies the filter, but not the page, to l.
func (qf *QueryFilter) Matches(l Lead) bool {
	if qf.Search != "" && !containsFold(qf.Search, l.StoreName, l.ContactName, l.Email, l.Phone, l.City) {
		return false
	}
	if len(qf.Statuses) > 0 && !core.StringIn(l.Status, qf.Statuses) {
		return false
	}
	if len(qf.TerritoryIDs) > 0 && !core.StringIn(l.TerritoryID, qf.TerritoryIDs) {
		return false
	}
	if qf.AssignedTo != "" && l.AssignedTo != qf.AssignedTo {
		return false
	}
	if qf.Source != "" && l.Source != qf.Source {
		return false
	}
	if qf.Category != "" && !strings.EqualFold(l.Category, qf.Category) {
		return false
	}
	if !qf.CreatedFrom.IsZero() && l.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	if !qf.CreatedTo.IsZero() && l.CreatedAt.After(qf.CreatedTo) {
		return false
	}
	if qf.MinValue != nil && l.EstimatedValue < *qf.MinValue {
		return false
	}
	if qf.MaxValue != nil && l.EstimatedValue > *qf.MaxValue {
		return false
	}
	return true
}

func containsFold(needle string, haystack ...string) bool {
	needle = strings.ToLower(needle)
	for _, s := range haystack {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// OrderingFields are the fields leads can be ordered by.
var OrderingFields = []string{"store_name", "city", "status", "estimated_value", "created_at", "updated_at", "status_changed_at", "last_visit_at"}

package lead

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

var (
	ErrNotFound          = core.NewNotFoundError("lead")
	ErrEmailExists       = errors.New("a lead with this email already exists")
	ErrPhoneExists       = errors.New("a lead with this phone already exists")
	ErrTerritoryNotFound = errors.New("territory not found")
	ErrAssigneeNotFound  = errors.New("assignee must be an active user")
	ErrNotOpen           = errors.New("lead is already closed")

	errNothingToAssign = errors.New("user_id or territory_id is required")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrEmailExists or ErrPhoneExists when another lead of the tenant,
		// other than excludedID, holds the email or phone. Empty values are never checked.
		CheckUniqueness(ctx context.Context, tenantID, email, phone, excludedID string) error
		CreateLead(ctx context.Context, l Lead) (Lead, error)
		// QueryLeads returns the leads visible in scope matching filter, paginated by filter.Page.
		QueryLeads(ctx context.Context, scope core.Scope, filter QueryFilter, ordering []core.DBOrdering) ([]Lead, error)
		GetLead(ctx context.Context, tenantID, id string) (Lead, error)
		UpdateLead(ctx context.Context, l Lead) (Lead, error)
		DeleteLeads(ctx context.Context, tenantID string, ids ...string) error
	}

	// Territories resolves the territories leads refer to.
	Territories interface {
		TerritoryExists(ctx context.Context, tenantID, id string) (bool, error)
		CodeMap(ctx context.Context, tenantID string) (map[string]string, error)
	}

	// UserGetter finds users of a tenant.
	UserGetter interface {
		GetByID(ctx context.Context, tenantID, id string) (user.User, error)
	}

	// Notifier tells users about leads handed to them.
	Notifier interface {
		LeadAssigned(l Lead, assignee, assigner user.User)
	}

	Service struct {
		repo        Repository
		territories Territories
		users       UserGetter
		notifier    Notifier
		cache       core.Cache
		maxRows     int
	}
)

func NewService(repo Repository, territories Territories, users UserGetter, notifier Notifier, cache core.Cache, conf *core.Config) *Service {
	return &Service{
		repo:        repo,
		territories: territories,
		users:       users,
		notifier:    notifier,
		cache:       cache,
		maxRows:     conf.Import.MaxRows,
	}
}

func (svc *Service) checkUniqueness(tenantID, email, phone, excludedID string) error {
	if err := svc.repo.CheckUniqueness(context.Background(), tenantID, email, phone, excludedID); err != nil {
		switch errors.Cause(err) {
		case ErrEmailExists:
			return core.NewFieldError("email", ErrEmailExists)
		case ErrPhoneExists:
			return core.NewFieldError("phone", ErrPhoneExists)
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
	}
	return nil
}

func (svc *Service) checkReferences(tenantID, territoryID, assigneeID string) error {
	ctx := context.Background()
	if territoryID != "" {
		ok, err := svc.territories.TerritoryExists(ctx, tenantID, territoryID)
		if err != nil {
			return errors.Wrap(err, "checking territory")
		}
		if !ok {
			return core.NewFieldError("territory_id", ErrTerritoryNotFound)
		}
	}
	if assigneeID != "" {
		usr, err := svc.users.GetByID(ctx, tenantID, assigneeID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "checking assignee")
		}
		if err != nil || !usr.IsActive {
			return core.NewFieldError("assigned_to", ErrAssigneeNotFound)
		}
	}
	return nil
}

func (svc *Service) touch(ctx context.Context, tenantID string) error {
	return core.BumpTenantVersion(ctx, svc.cache, tenantID)
}

// Create stores a new lead. Leads created by sales reps are always assigned to them.
func (svc *Service) Create(ctx context.Context, nl NewLead, actor user.User) (Lead, error) {
	l, err := svc.create(ctx, nl, actor, time.Now().UTC())
	if err != nil {
		return Lead{}, err
	}
	if err := svc.touch(ctx, l.TenantID); err != nil {
		return Lead{}, err
	}
	if l.AssignedTo != "" && l.AssignedTo != actor.ID {
		svc.notifyAssignee(ctx, l, actor)
	}
	return l, nil
}

func (svc *Service) create(ctx context.Context, nl NewLead, actor user.User, now time.Time) (Lead, error) {
	if !(actor.IsAdmin() || actor.IsManager()) {
		nl.AssignedTo = actor.ID
	}
	if nl.TerritoryID == "" && nl.AssignedTo != "" {
		if assignee, err := svc.users.GetByID(ctx, nl.TenantID, nl.AssignedTo); err == nil {
			nl.TerritoryID = assignee.TerritoryID
		}
	}

	l, err := svc.repo.CreateLead(ctx, Lead{
		ID:              uuid.NewString(),
		TenantID:        nl.TenantID,
		StoreName:       nl.StoreName,
		ContactName:     nl.ContactName,
		Email:           nl.Email,
		Phone:           nl.Phone,
		Address:         nl.Address,
		City:            nl.City,
		PostalCode:      nl.PostalCode,
		Latitude:        nl.Latitude,
		Longitude:       nl.Longitude,
		Category:        nl.Category,
		Source:          nl.Source,
		TerritoryID:     nl.TerritoryID,
		AssignedTo:      nl.AssignedTo,
		Status:          StatusNew,
		EstimatedValue:  nl.EstimatedValue,
		Notes:           nl.Notes,
		StatusChangedAt: now,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	return l, errors.Wrap(err, "creating lead")
}

func (svc *Service) Query(ctx context.Context, scope core.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Lead, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QueryLeads(ctx, scope, *filter, core.CleanOrdering(ordering, OrderingFields...))
}

func (svc *Service) Get(ctx context.Context, tenantID, id string) (Lead, error) {
	return svc.repo.GetLead(ctx, tenantID, id)
}

// GetScoped returns the lead only if it is visible in scope.
func (svc *Service) GetScoped(ctx context.Context, scope core.Scope, id string) (Lead, error) {
	l, err := svc.repo.GetLead(ctx, scope.TenantID, id)
	if err != nil {
		return Lead{}, err
	}
	if !scope.Allows(l.AssignedTo, l.TerritoryID) {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (svc *Service) save(ctx context.Context, l Lead, what string) (Lead, error) {
	l.UpdatedAt = time.Now().UTC()
	l, err := svc.repo.UpdateLead(ctx, l)
	if err != nil {
		return Lead{}, errors.Wrap(err, what)
	}
	if err := svc.touch(ctx, l.TenantID); err != nil {
		return Lead{}, err
	}
	return l, nil
}

func (svc *Service) Update(ctx context.Context, l Lead, ul UpdateLead) (Lead, error) {
	l.StoreName = ul.StoreName
	l.Source = ul.Source
	setIfNotNil := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setIfNotNil(&l.ContactName, ul.ContactName)
	setIfNotNil(&l.Email, ul.Email)
	setIfNotNil(&l.Phone, ul.Phone)
	setIfNotNil(&l.Address, ul.Address)
	setIfNotNil(&l.City, ul.City)
	setIfNotNil(&l.PostalCode, ul.PostalCode)
	setIfNotNil(&l.Category, ul.Category)
	setIfNotNil(&l.Notes, ul.Notes)
	if ul.Latitude != nil {
		l.Latitude = ul.Latitude
	}
	if ul.Longitude != nil {
		l.Longitude = ul.Longitude
	}
	if ul.EstimatedValue != nil {
		l.EstimatedValue = *ul.EstimatedValue
	}
	return svc.save(ctx, l, "updating lead")
}

// ChangeStatus moves l to sc.Status if the pipeline allows it; the note is appended to the lead notes.
func (svc *Service) ChangeStatus(ctx context.Context, l Lead, sc StatusChange, actor user.User) (Lead, error) {
	if l.Status == sc.Status {
		return l, nil
	}
	if !CanTransition(l.Status, sc.Status) {
		return Lead{}, core.NewFieldError("status", errors.Errorf("cannot move a %s lead to %s", l.Status, sc.Status))
	}

	now := time.Now().UTC()
	prev := l.Status
	l.Status = sc.Status
	l.StatusChangedAt = now
	switch sc.Status {
	case StatusConverted:
		l.ConvertedAt = &now
	case StatusNew:
		l.ConvertedAt = nil
		l.ConversionRuleID = ""
	}
	if sc.Note != "" {
		l.Notes = appendNote(l.Notes, fmt.Sprintf("[%s] %s -> %s by %s: %s", now.Format("2006-01-02 15:04"), prev, sc.Status, actor.DisplayName(), sc.Note))
	}
	return svc.save(ctx, l, "changing lead status")
}

// Convert closes an open lead as converted by the conversion rule ruleID, whatever its stage.
func (svc *Service) Convert(ctx context.Context, l Lead, ruleID string, at time.Time) (Lead, error) {
	if !l.IsOpen() {
		return Lead{}, core.NewValidationError(ErrNotOpen)
	}
	at = at.UTC()
	l.Status = StatusConverted
	l.StatusChangedAt = at
	l.ConvertedAt = &at
	l.ConversionRuleID = ruleID
	return svc.save(ctx, l, "converting lead")
}

// Assign hands l over and e-mails the new assignee.
func (svc *Service) Assign(ctx context.Context, l Lead, a Assignment, actor user.User) (Lead, error) {
	prevAssignee := l.AssignedTo
	if a.UserID != "" {
		l.AssignedTo = a.UserID
	}
	if a.TerritoryID != nil {
		l.TerritoryID = *a.TerritoryID
	}
	l, err := svc.save(ctx, l, "assigning lead")
	if err != nil {
		return Lead{}, err
	}
	if l.AssignedTo != prevAssignee && l.AssignedTo != actor.ID {
		svc.notifyAssignee(ctx, l, actor)
	}
	return l, nil
}

func (svc *Service) notifyAssignee(ctx context.Context, l Lead, actor user.User) {
	if svc.notifier == nil {
		return
	}
	assignee, err := svc.users.GetByID(ctx, l.TenantID, l.AssignedTo)
	if err != nil || assignee.Email == "" {
		return
	}
	svc.notifier.LeadAssigned(l, assignee, actor)
}

// MarkVisited records a completed visit; a new lead becomes contacted.
func (svc *Service) MarkVisited(ctx context.Context, tenantID, id string, at time.Time) (Lead, error) {
	l, err := svc.repo.GetLead(ctx, tenantID, id)
	if err != nil {
		return Lead{}, err
	}
	at = at.UTC()
	if l.LastVisitAt == nil || at.After(*l.LastVisitAt) {
		l.LastVisitAt = &at
	}
	if l.Status == StatusNew {
		l.Status = StatusContacted
		l.StatusChangedAt = at
	}
	return svc.save(ctx, l, "marking lead visited")
}

func (svc *Service) Delete(ctx context.Context, tenantID string, ids ...string) error {
	if err := svc.repo.DeleteLeads(ctx, tenantID, ids...); err != nil {
		return errors.Wrap(err, "deleting leads")
	}
	return svc.touch(ctx, tenantID)
}

// Export returns every lead visible in scope matching filter, ignoring its page.
func (svc *Service) Export(ctx context.Context, scope core.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Lead, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	f := *filter
	f.Page = core.Page{}
	return svc.repo.QueryLeads(ctx, scope, f, core.CleanOrdering(ordering, OrderingFields...))
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}

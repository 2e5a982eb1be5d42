package territory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

var (
	ErrNotFound        = core.NewNotFoundError("territory")
	ErrCodeExists      = errors.New("a territory with this code already exists")
	ErrInvalidManager  = errors.New("manager must be an active manager or admin")
	ErrTerritoryInUse  = errors.New("territory still has leads; reassign them first")
	errManagerNotFound = errors.New("manager not found")
)

type (
	Repository interface {
		CreateTerritory(ctx context.Context, t Territory) (Territory, error)
		QueryTerritories(ctx context.Context, tenantID string, filter QueryFilter, ordering []core.DBOrdering) ([]Territory, error)
		GetTerritory(ctx context.Context, tenantID, id string) (Territory, error)
		GetTerritoryByCode(ctx context.Context, tenantID, code string) (Territory, error)
		UpdateTerritory(ctx context.Context, t Territory) (Territory, error)
		DeleteTerritory(ctx context.Context, tenantID, id string) error
		// CountTerritoryLeads returns the number of leads in the territory.
		CountTerritoryLeads(ctx context.Context, tenantID, id string) (int, error)
	}

	// UserGetter finds users of a tenant. It is implemented by user.Repository.
	UserGetter interface {
		GetUser(ctx context.Context, tenantID string, filter user.GetFilter) (user.User, error)
	}

	Service struct {
		repo  Repository
		users UserGetter
	}
)

func NewService(repo Repository, users UserGetter) *Service {
	return &Service{repo: repo, users: users}
}

func (svc *Service) checkCodeUniqueness(tenantID, code, excludedID string) error {
	t, err := svc.repo.GetTerritoryByCode(context.Background(), tenantID, code)
	switch {
	case err == nil:
		if t.ID == excludedID {
			return nil
		}
		return core.NewFieldError("code", ErrCodeExists)
	case core.IsNotFound(err):
		return nil
	default:
		return errors.Wrap(err, "checking code uniqueness")
	}
}

func (svc *Service) checkManager(tenantID, managerID string) error {
	if managerID == "" {
		return nil
	}
	usr, err := svc.users.GetUser(context.Background(), tenantID, user.GetFilter{ID: managerID})
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("manager_id", errManagerNotFound)
		}
		return errors.Wrap(err, "getting manager")
	}
	if !usr.IsActive || !(usr.IsManager() || usr.IsAdmin()) {
		return core.NewFieldError("manager_id", ErrInvalidManager)
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nt NewTerritory) (Territory, error) {
	now := time.Now().UTC()
	t, err := svc.repo.CreateTerritory(ctx, Territory{
		ID:          uuid.NewString(),
		TenantID:    nt.TenantID,
		Name:        nt.Name,
		Code:        nt.Code,
		Region:      nt.Region,
		Description: nt.Description,
		ManagerID:   nt.ManagerID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return t, errors.Wrap(err, "creating territory")
}

func (svc *Service) Query(ctx context.Context, tenantID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Territory, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QueryTerritories(ctx, tenantID, *filter, core.CleanOrdering(ordering, OrderingFields...))
}

func (svc *Service) Get(ctx context.Context, tenantID, id string) (Territory, error) {
	return svc.repo.GetTerritory(ctx, tenantID, id)
}

func (svc *Service) Update(ctx context.Context, t Territory, ut UpdateTerritory) (Territory, error) {
	t.Name = ut.Name
	t.Code = ut.Code
	if ut.Region != nil {
		t.Region = *ut.Region
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.ManagerID != nil {
		t.ManagerID = *ut.ManagerID
	}
	if ut.IsActive != nil {
		t.IsActive = *ut.IsActive
	}
	t.UpdatedAt = time.Now().UTC()

	t, err := svc.repo.UpdateTerritory(ctx, t)
	return t, errors.Wrap(err, "updating territory")
}

// Delete removes a territory no lead refers to.
func (svc *Service) Delete(ctx context.Context, tenantID, id string) error {
	n, err := svc.repo.CountTerritoryLeads(ctx, tenantID, id)
	if err != nil {
		return errors.Wrap(err, "counting territory leads")
	}
	if n > 0 {
		return core.NewValidationError(ErrTerritoryInUse)
	}
	return errors.Wrap(svc.repo.DeleteTerritory(ctx, tenantID, id), "deleting territory")
}

// TerritoryExists implements user.TerritoryChecker.
func (svc *Service) TerritoryExists(ctx context.Context, tenantID, id string) (bool, error) {
	_, err := svc.repo.GetTerritory(ctx, tenantID, id)
	switch {
	case err == nil:
		return true, nil
	case core.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// ManagedBy returns the IDs of the territories managed by userID.
func (svc *Service) ManagedBy(ctx context.Context, tenantID, userID string) ([]string, error) {
	ts, err := svc.repo.QueryTerritories(ctx, tenantID, QueryFilter{ManagerID: userID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying managed territories")
	}
	ids := make([]string, 0, len(ts))
	for _, t := range ts {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// CodeMap maps territory codes to IDs; used to resolve imported rows.
func (svc *Service) CodeMap(ctx context.Context, tenantID string) (map[string]string, error) {
	ts, err := svc.repo.QueryTerritories(ctx, tenantID, QueryFilter{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying territories")
	}
	codes := make(map[string]string, len(ts))
	for _, t := range ts {
		codes[t.Code] = t.ID
	}
	return codes, nil
}

// ScopeFor returns what usr may see: admins the whole tenant, managers their territories
// plus their own records, everybody else their own records.
func (svc *Service) ScopeFor(ctx context.Context, usr user.User) (core.Scope, error) {
	scope := core.Scope{TenantID: usr.TenantID}
	switch {
	case usr.IsAdmin():
		return scope, nil
	case usr.IsManager():
		ids, err := svc.ManagedBy(ctx, usr.TenantID, usr.ID)
		if err != nil {
			return core.Scope{}, err
		}
		scope.UserID = usr.ID
		scope.TerritoryIDs = ids
	default:
		scope.UserID = usr.ID
	}
	return scope, nil
}

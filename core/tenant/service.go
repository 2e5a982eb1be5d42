package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

var (
	ErrNotFound   = core.NewNotFoundError("tenant")
	ErrSlugExists = errors.New("a tenant with this slug already exists")
)

type Repository interface {
	CreateTenant(ctx context.Context, t Tenant) (Tenant, error)
	GetTenant(ctx context.Context, id string) (Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (Tenant, error)
	QueryTenants(ctx context.Context, activeOnly bool) ([]Tenant, error)
	UpdateTenant(ctx context.Context, t Tenant) (Tenant, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkSlugUniqueness(slug string) error {
	_, err := svc.repo.GetTenantBySlug(context.Background(), slug)
	switch {
	case err == nil:
		return core.NewFieldError("slug", ErrSlugExists)
	case core.IsNotFound(err):
		return nil
	default:
		return errors.Wrap(err, "checking slug uniqueness")
	}
}

func (svc *Service) Create(ctx context.Context, nt NewTenant) (Tenant, error) {
	now := time.Now().UTC()
	t, err := svc.repo.CreateTenant(ctx, Tenant{
		ID:        uuid.NewString(),
		Name:      nt.Name,
		Slug:      nt.Slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return t, errors.Wrap(err, "creating tenant")
}

func (svc *Service) Get(ctx context.Context, id string) (Tenant, error) {
	return svc.repo.GetTenant(ctx, id)
}

func (svc *Service) GetBySlug(ctx context.Context, slug string) (Tenant, error) {
	return svc.repo.GetTenantBySlug(ctx, core.CleanString(slug, true /* lower */))
}

// QueryActive returns the tenants the scheduled jobs work on.
func (svc *Service) QueryActive(ctx context.Context) ([]Tenant, error) {
	return svc.repo.QueryTenants(ctx, true)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Tenant, error) {
	return svc.repo.QueryTenants(ctx, false)
}

func (svc *Service) Update(ctx context.Context, id string, ut UpdateTenant) (Tenant, error) {
	t, err := svc.repo.GetTenant(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	t.Name = ut.Name
	t.UpdatedAt = time.Now().UTC()
	t, err = svc.repo.UpdateTenant(ctx, t)
	return t, errors.Wrap(err, "updating tenant")
}

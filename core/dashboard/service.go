package dashboard

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

type (
	Leads interface {
		Export(ctx context.Context, scope core.Scope, filter *lead.QueryFilter, ordering []core.DBOrdering) ([]lead.Lead, error)
	}

	Visits interface {
		Query(ctx context.Context, scope core.Scope, filter *visit.QueryFilter, ordering []core.DBOrdering) ([]visit.Visit, error)
	}

	Users interface {
		Query(ctx context.Context, tenantID string, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	Territories interface {
		Query(ctx context.Context, tenantID string, filter *territory.QueryFilter, ordering []core.DBOrdering) ([]territory.Territory, error)
	}

	Settings interface {
		Int(ctx context.Context, tenantID, key string) (int64, error)
		Location(ctx context.Context, tenantID string) (*time.Location, error)
	}

	// Service computes dashboards and analytics charts from the tenant data visible to a viewer.
	// Results are cached until the tenant data changes or the TTL expires.
	Service struct {
		leads       Leads
		visits      Visits
		users       Users
		territories Territories
		settings    Settings
		cache       core.Cache
		ttl         time.Duration
	}
)

// NowFunc is the clock of the dashboards.
var NowFunc = time.Now

func NewService(leads Leads, visits Visits, users Users, territories Territories, settings Settings, cache core.Cache, conf *core.Config) *Service {
	return &Service{
		leads:       leads,
		visits:      visits,
		users:       users,
		territories: territories,
		settings:    settings,
		cache:       cache,
		ttl:         conf.Redis.CacheTTL,
	}
}

// DateRange resolves q in the tenant timezone.
func (svc *Service) DateRange(ctx context.Context, tenantID string, q core.DateRangeQuery) (core.DateRange, error) {
	loc, err := svc.settings.Location(ctx, tenantID)
	if err != nil {
		return core.DateRange{}, errors.Wrap(err, "getting tenant timezone")
	}
	return core.NewDateRange(q, NowFunc(), loc)
}

func scopeKey(s core.Scope) string {
	ids := append([]string(nil), s.TerritoryIDs...)
	sort.Strings(ids)
	return "u=" + s.UserID + ";t=" + strings.Join(ids, ",")
}

// cached loads dest from the cache, or fills it with compute and stores it.
func (svc *Service) cached(ctx context.Context, tenantID string, dest interface{}, compute func() error, parts ...string) error {
	if svc.cache == nil {
		return compute()
	}
	version, err := core.TenantVersion(ctx, svc.cache, tenantID)
	if err != nil {
		return err
	}
	key := core.TenantCacheKey(tenantID, version, append([]string{"dashboard"}, parts...)...)

	err = svc.cache.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if errors.Cause(err) != core.ErrCacheMiss {
		return errors.Wrap(err, "reading cache")
	}
	if err := compute(); err != nil {
		return err
	}
	return errors.Wrap(svc.cache.Set(ctx, key, dest, svc.ttl), "writing cache")
}

// load fetches, concurrently, the data visible to v.
func (svc *Service) load(ctx context.Context, v Viewer, withRefs bool) (*dataset, error) {
	ds := &dataset{now: NowFunc().UTC()}
	tenantID := v.Scope.TenantID

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		leads, err := svc.leads.Export(gctx, v.Scope, nil, nil)
		ds.leads = leads
		return errors.Wrap(err, "loading leads")
	})
	g.Go(func() error {
		visits, err := svc.visits.Query(gctx, v.Scope, nil, nil)
		ds.visits = visits
		return errors.Wrap(err, "loading visits")
	})
	if withRefs {
		g.Go(func() error {
			users, err := svc.users.Query(gctx, tenantID, nil, nil)
			if err != nil {
				return errors.Wrap(err, "loading users")
			}
			ds.users = make(map[string]string, len(users))
			for i := range users {
				u := &users[i]
				ds.users[u.ID] = u.DisplayName()
				if u.IsActive && u.IsRep() && v.Scope.Allows(u.ID, u.TerritoryID) {
					ds.reps = append(ds.reps, u.ID)
				}
			}
			return nil
		})
		g.Go(func() error {
			territories, err := svc.territories.Query(gctx, tenantID, nil, nil)
			if err != nil {
				return errors.Wrap(err, "loading territories")
			}
			ds.territories = make(map[string]string, len(territories))
			for _, t := range territories {
				ds.territories[t.ID] = t.Name
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (svc *Service) Summary(ctx context.Context, v Viewer, q core.DateRangeQuery) (Summary, error) {
	tenantID := v.Scope.TenantID
	r, err := svc.DateRange(ctx, tenantID, q)
	if err != nil {
		return Summary{}, err
	}
	staleDays, err := svc.settings.Int(ctx, tenantID, setting.LeadStaleDays)
	if err != nil {
		return Summary{}, errors.Wrap(err, "getting stale days")
	}
	upcomingDays, err := svc.settings.Int(ctx, tenantID, setting.DashboardUpcomingDays)
	if err != nil {
		return Summary{}, errors.Wrap(err, "getting upcoming days")
	}

	var s Summary
	team := "solo"
	if v.Team {
		team = "team"
	}
	err = svc.cached(ctx, tenantID, &s, func() error {
		ds, err := svc.load(ctx, v, v.Team)
		if err != nil {
			return err
		}
		s = ds.summary(v, r, int(staleDays), int(upcomingDays))
		return nil
	}, "summary", team, scopeKey(v.Scope), r.Key())
	return s, err
}

func (svc *Service) breakdown(ctx context.Context, v Viewer, q core.DateRangeQuery, name string, fn func(*dataset, core.DateRange) []Count) (Breakdown, error) {
	r, err := svc.DateRange(ctx, v.Scope.TenantID, q)
	if err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{Range: r}
	err = svc.cached(ctx, v.Scope.TenantID, &b, func() error {
		ds, err := svc.load(ctx, v, name == "territory")
		if err != nil {
			return err
		}
		b.Items = fn(ds, r)
		return nil
	}, name, scopeKey(v.Scope), r.Key())
	return b, err
}

func (svc *Service) LeadsByStatus(ctx context.Context, v Viewer, q core.DateRangeQuery) (Breakdown, error) {
	return svc.breakdown(ctx, v, q, "status", (*dataset).leadsByStatus)
}

func (svc *Service) LeadsByTerritory(ctx context.Context, v Viewer, q core.DateRangeQuery) (Breakdown, error) {
	return svc.breakdown(ctx, v, q, "territory", (*dataset).leadsByTerritory)
}

func (svc *Service) LeadsBySource(ctx context.Context, v Viewer, q core.DateRangeQuery) (Breakdown, error) {
	return svc.breakdown(ctx, v, q, "source", (*dataset).leadsBySource)
}

func (svc *Service) rangeAndInterval(ctx context.Context, tenantID string, q core.DateRangeQuery) (core.DateRange, string, error) {
	r, err := svc.DateRange(ctx, tenantID, q)
	if err != nil {
		return r, "", err
	}
	interval, err := core.CleanInterval(q.Interval, r)
	return r, interval, err
}

func (svc *Service) ConversionsOverTime(ctx context.Context, v Viewer, q core.DateRangeQuery) (ConversionSeries, error) {
	r, interval, err := svc.rangeAndInterval(ctx, v.Scope.TenantID, q)
	if err != nil {
		return ConversionSeries{}, err
	}
	cs := ConversionSeries{Range: r, Interval: interval}
	err = svc.cached(ctx, v.Scope.TenantID, &cs, func() error {
		ds, err := svc.load(ctx, v, false)
		if err != nil {
			return err
		}
		cs.Points = ds.conversionsOverTime(r, interval)
		return nil
	}, "conversions", scopeKey(v.Scope), r.Key(), interval)
	return cs, err
}

func (svc *Service) VisitsOverTime(ctx context.Context, v Viewer, q core.DateRangeQuery) (VisitSeries, error) {
	r, interval, err := svc.rangeAndInterval(ctx, v.Scope.TenantID, q)
	if err != nil {
		return VisitSeries{}, err
	}
	vs := VisitSeries{Range: r, Interval: interval}
	err = svc.cached(ctx, v.Scope.TenantID, &vs, func() error {
		ds, err := svc.load(ctx, v, false)
		if err != nil {
			return err
		}
		vs.Points = ds.visitsOverTime(r, interval)
		return nil
	}, "visits", scopeKey(v.Scope), r.Key(), interval)
	return vs, err
}

func (svc *Service) RepPerformance(ctx context.Context, v Viewer, q core.DateRangeQuery) (RepPerformance, error) {
	r, err := svc.DateRange(ctx, v.Scope.TenantID, q)
	if err != nil {
		return RepPerformance{}, err
	}
	rp := RepPerformance{Range: r}
	err = svc.cached(ctx, v.Scope.TenantID, &rp, func() error {
		ds, err := svc.load(ctx, v, true)
		if err != nil {
			return err
		}
		rp.Reps = ds.repPerformance(r)
		return nil
	}, "reps", scopeKey(v.Scope), r.Key())
	return rp, err
}

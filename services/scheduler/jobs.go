package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/backup"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
)

// Job names
const (
	JobMissedVisits = "missed-visits"
	JobReminders    = "visit-reminders"
	JobConversions  = "conversion-sweep"
	JobBackups      = "backups"
	JobCacheSweep   = "cache-sweep"
)

// CacheSweepSpec is how often expired entries leave an in-process cache.
const CacheSweepSpec = "@every 5m"

type (
	Visits interface {
		MarkMissed(ctx context.Context, tenantID string, now time.Time) (int, error)
		SendReminders(ctx context.Context, tenantID string, now time.Time) (int, error)
	}

	Conversions interface {
		AutoSweep(ctx context.Context, tenantID string) (conversion.SweepResult, error)
	}

	Backups interface {
		Create(ctx context.Context, tenantID, actorID, kind string) (backup.Backup, error)
	}

	// CacheSweeper is a cache whose expired entries must be dropped explicitly.
	CacheSweeper interface {
		Sweep() int
	}
)

// AddCacheSweep registers the periodic sweep of cache.
func (s *Scheduler) AddCacheSweep(cache CacheSweeper) error {
	return s.AddTask(JobCacheSweep, CacheSweepSpec, func(context.Context, time.Time) error {
		if n := cache.Sweep(); n > 0 {
			s.logger.Debug(fmt.Sprintf("%d expired cache entries dropped", n))
		}
		return nil
	})
}

// AddDefaultJobs registers the jobs of the application on the configured specs.
func (s *Scheduler) AddDefaultJobs(conf core.SchedulerConfig, visits Visits, conversions Conversions, backups Backups) error {
	jobs := []struct {
		name, spec string
		fn         TenantFunc
	}{
		{JobMissedVisits, conf.MissedVisits, func(ctx context.Context, tenantID string, now time.Time) error {
			n, err := visits.MarkMissed(ctx, tenantID, now)
			if n > 0 {
				s.logger.Info(fmt.Sprintf("%d visit(s) marked missed", n), map[string]interface{}{"tenant_id": tenantID})
			}
			return err
		}},
		{JobReminders, conf.Reminders, func(ctx context.Context, tenantID string, now time.Time) error {
			_, err := visits.SendReminders(ctx, tenantID, now)
			return err
		}},
		{JobConversions, conf.Conversions, func(ctx context.Context, tenantID string, _ time.Time) error {
			res, err := conversions.AutoSweep(ctx, tenantID)
			if res.Converted > 0 {
				s.logger.Info(fmt.Sprintf("%d lead(s) converted", res.Converted), map[string]interface{}{"tenant_id": tenantID})
			}
			return err
		}},
		{JobBackups, conf.Backups, func(ctx context.Context, tenantID string, _ time.Time) error {
			_, err := backups.Create(ctx, tenantID, "", backup.KindScheduled)
			return err
		}},
	}
	for _, j := range jobs {
		if err := s.Add(j.name, j.spec, j.fn); err != nil {
			return err
		}
	}
	return nil
}

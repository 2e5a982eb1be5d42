// Package scheduler runs the periodic jobs of every active tenant, and the housekeeping tasks.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
)

// TenantFunc is the work a job does for one tenant.
type TenantFunc func(ctx context.Context, tenantID string, now time.Time) error

// TaskFunc is the work of a job that runs once, outside any tenant.
type TaskFunc func(ctx context.Context, now time.Time) error

type Tenants interface {
	QueryActive(ctx context.Context) ([]tenant.Tenant, error)
}

type job struct {
	name string
	fn   TenantFunc
	task TaskFunc
}

// Scheduler runs jobs on cron specs. A job runs for each active tenant in turn;
// a tenant's failure or panic is logged and does not stop the others.
type Scheduler struct {
	cron    *cron.Cron
	tenants Tenants
	logger  core.Logger
	jobs    map[string]job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// NowFunc is the clock passed to the jobs.
	NowFunc func() time.Time
}

func New(tenants Tenants, logger core.Logger) *Scheduler {
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		tenants: tenants,
		logger:  logger,
		jobs:    make(map[string]job),
		ctx:     ctx,
		cancel:  cancel,
		NowFunc: time.Now,
	}
}

// Add registers fn under name, to run on the standard cron spec.
func (s *Scheduler) Add(name, spec string, fn TenantFunc) error {
	return s.register(job{name: name, fn: fn}, spec)
}

// AddTask registers a job run once per tick rather than once per tenant.
func (s *Scheduler) AddTask(name, spec string, fn TaskFunc) error {
	return s.register(job{name: name, task: fn}, spec)
}

func (s *Scheduler) register(j job, spec string) error {
	name := j.name
	if _, ok := s.jobs[name]; ok {
		return errors.Errorf("job %s already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(s.ctx, j) }); err != nil {
		return errors.Wrapf(err, "scheduling %s", name)
	}
	s.jobs[name] = j
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduling and waits for the running jobs, or for ctx to be done.
// Running jobs see their context cancelled when ctx is done first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.cancel()
		return errors.Wrap(ctx.Err(), "waiting for jobs")
	}
	s.wg.Wait()
	s.cancel()
	return nil
}

// RunNow runs the job name synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return errors.Errorf("unknown job %s", name)
	}
	return s.run(ctx, j)
}

// run returns the number of tenants that failed as an error.
func (s *Scheduler) run(ctx context.Context, j job) error {
	s.wg.Add(1)
	defer s.wg.Done()

	if j.task != nil {
		err := s.runTask(ctx, j, s.NowFunc())
		if err != nil {
			s.logger.Error(fmt.Sprintf("job %s failed: %v", j.name, err), err, map[string]interface{}{"job": j.name})
		}
		return err
	}

	tenants, err := s.tenants.QueryActive(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("job %s: querying tenants: %v", j.name, err), err)
		return err
	}

	now := s.NowFunc()
	failed := 0
	for _, t := range tenants {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.runForTenant(ctx, j, t.ID, now); err != nil {
			failed++
			s.logger.Error(fmt.Sprintf("job %s failed for tenant %s: %v", j.name, t.Slug, err), err,
				map[string]interface{}{"job": j.name, "tenant_id": t.ID})
		}
	}
	if failed > 0 {
		return errors.Errorf("job %s failed for %d tenant(s)", j.name, failed)
	}
	return nil
}

func (s *Scheduler) runForTenant(ctx context.Context, j job, tenantID string, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return j.fn(ctx, tenantID, now)
}

func (s *Scheduler) runTask(ctx context.Context, j job, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return j.task(ctx, now)
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v", msg, err), err, kvMap(keysAndValues))
}

func kvMap(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		m[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return m
}

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/backup"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
	logsvc "github.com/ud-systems/UD-Leads-sub001/services/logger"
)

type tenantList []tenant.Tenant

func (tl tenantList) QueryActive(context.Context) ([]tenant.Tenant, error) { return tl, nil }

var tenants = tenantList{{ID: "t1", Slug: "one"}, {ID: "t2", Slug: "two"}, {ID: "t3", Slug: "three"}}

func TestScheduler_RunNow_isolatesTenants(t *testing.T) {
	s := New(tenants, logsvc.NewNopLogger())

	var (
		mu   sync.Mutex
		seen []string
	)
	require.NoError(t, s.Add("job", "@every 1h", func(_ context.Context, tenantID string, _ time.Time) error {
		mu.Lock()
		seen = append(seen, tenantID)
		mu.Unlock()
		switch tenantID {
		case "t1":
			panic("boom")
		case "t2":
			return errors.New("failed")
		}
		return nil
	}))

	err := s.RunNow(context.Background(), "job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 tenant(s)")
	assert.Equal(t, []string{"t1", "t2", "t3"}, seen)

	assert.Error(t, s.RunNow(context.Background(), "unknown"))
	assert.Error(t, s.Add("job", "@every 1h", nil), "duplicate name")
	assert.Error(t, s.Add("bad", "not a spec", nil))
}

func TestScheduler_StopWaitsForJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := New(tenantList{{ID: "t1"}}, logsvc.NewNopLogger())
	started := make(chan struct{})
	release := make(chan struct{})
	finished := false
	require.NoError(t, s.Add("slow", "@every 1s", func(context.Context, string, time.Time) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		finished = true
		return nil
	}))

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, finished)
}

type fakeJobs struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeJobs) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeJobs) MarkMissed(_ context.Context, tenantID string, _ time.Time) (int, error) {
	f.record("missed:" + tenantID)
	return 1, nil
}

func (f *fakeJobs) SendReminders(_ context.Context, tenantID string, _ time.Time) (int, error) {
	f.record("reminders:" + tenantID)
	return 0, nil
}

func (f *fakeJobs) AutoSweep(_ context.Context, tenantID string) (conversion.SweepResult, error) {
	f.record("sweep:" + tenantID)
	return conversion.SweepResult{Evaluated: 2, Converted: 1}, nil
}

func (f *fakeJobs) Create(_ context.Context, tenantID, actorID, kind string) (backup.Backup, error) {
	f.record("backup:" + tenantID + ":" + kind)
	return backup.Backup{}, nil
}

func TestScheduler_AddDefaultJobs(t *testing.T) {
	s := New(tenantList{{ID: "t1"}}, logsvc.NewNopLogger())
	jobs := new(fakeJobs)
	conf := core.SchedulerConfig{
		Enabled:      true,
		MissedVisits: "*/15 * * * *",
		Reminders:    "0 * * * *",
		Conversions:  "30 2 * * *",
		Backups:      "0 3 * * *",
	}

	require.NoError(t, s.AddDefaultJobs(conf, jobs, jobs, jobs))
	ctx := context.Background()
	for _, name := range []string{JobMissedVisits, JobReminders, JobConversions, JobBackups} {
		require.NoError(t, s.RunNow(ctx, name))
	}
	assert.Equal(t, []string{"missed:t1", "reminders:t1", "sweep:t1", "backup:t1:scheduled"}, jobs.calls)
}

type countingSweeper struct{ calls int }

func (c *countingSweeper) Sweep() int {
	c.calls++
	return 3
}

func TestScheduler_AddCacheSweep(t *testing.T) {
	// tasks do not depend on the tenants
	s := New(tenantList{}, logsvc.NewNopLogger())
	sweeper := new(countingSweeper)

	require.NoError(t, s.AddCacheSweep(sweeper))
	require.NoError(t, s.RunNow(context.Background(), JobCacheSweep))
	assert.Equal(t, 1, sweeper.calls)
	assert.Error(t, s.AddCacheSweep(sweeper), "duplicate name")
}

func TestScheduler_AddTask_recovers(t *testing.T) {
	s := New(tenants, logsvc.NewNopLogger())
	require.NoError(t, s.AddTask("boom", "@every 1h", func(context.Context, time.Time) error { panic("boom") }))
	err := s.RunNow(context.Background(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")
}

package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

var (
	ErrNotFound     = core.NewNotFoundError("visit")
	ErrConflict     = errors.New("visit conflicts with another scheduled visit")
	ErrInPast       = errors.New("visit cannot be scheduled in the past")
	ErrNotScheduled = errors.New("visit is not scheduled")
	ErrLeadNotFound = errors.New("lead not found")
	ErrLeadClosed   = errors.New("lead is already closed")
	ErrRepNotFound  = errors.New("sales rep must be an active user")
)

type (
	Repository interface {
		CreateVisit(ctx context.Context, v Visit) (Visit, error)
		// QueryVisits returns the visits visible in scope matching filter, paginated by filter.Page.
		QueryVisits(ctx context.Context, scope core.Scope, filter QueryFilter, ordering []core.DBOrdering) ([]Visit, error)
		GetVisit(ctx context.Context, tenantID, id string) (Visit, error)
		UpdateVisit(ctx context.Context, v Visit) (Visit, error)
		DeleteVisits(ctx context.Context, tenantID string, ids ...string) error
		// HasConflict reports whether userID has a scheduled visit, other than excludedID, overlapping [start, end).
		HasConflict(ctx context.Context, tenantID, userID string, start, end time.Time, excludedID string) (bool, error)
		LeadStats(ctx context.Context, tenantID, leadID string) (Stats, error)
	}

	// Leads is the part of the lead service visits depend on.
	Leads interface {
		Get(ctx context.Context, tenantID, id string) (lead.Lead, error)
		MarkVisited(ctx context.Context, tenantID, id string, at time.Time) (lead.Lead, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, tenantID, id string) (user.User, error)
	}

	Settings interface {
		Int(ctx context.Context, tenantID, key string) (int64, error)
	}

	// Converter evaluates the conversion rules of a lead after a completed visit.
	Converter interface {
		AutoApply(ctx context.Context, tenantID, leadID string) (bool, error)
	}

	Notifier interface {
		VisitReminder(v Visit, l lead.Lead, rep user.User)
	}

	Service struct {
		repo      Repository
		leads     Leads
		users     UserGetter
		settings  Settings
		converter Converter
		notifier  Notifier
		cache     core.Cache
		logger    core.Logger
	}
)

func NewService(repo Repository, leads Leads, users UserGetter, settings Settings, converter Converter, notifier Notifier, cache core.Cache, logger core.Logger) *Service {
	return &Service{
		repo:      repo,
		leads:     leads,
		users:     users,
		settings:  settings,
		converter: converter,
		notifier:  notifier,
		cache:     cache,
		logger:    logger,
	}
}

func (svc *Service) checkLead(tenantID, leadID string) error {
	l, err := svc.leads.Get(context.Background(), tenantID, leadID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("lead_id", ErrLeadNotFound)
		}
		return errors.Wrap(err, "checking lead")
	}
	if !l.IsOpen() {
		return core.NewFieldError("lead_id", ErrLeadClosed)
	}
	return nil
}

func (svc *Service) checkRep(tenantID, userID string) error {
	usr, err := svc.users.GetByID(context.Background(), tenantID, userID)
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "checking sales rep")
	}
	if err != nil || !usr.IsActive {
		return core.NewFieldError("user_id", ErrRepNotFound)
	}
	return nil
}

func (svc *Service) checkConflict(tenantID, userID string, start, end time.Time, excludedID string) error {
	conflict, err := svc.repo.HasConflict(context.Background(), tenantID, userID, start, end, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking visit conflicts")
	}
	if conflict {
		return core.NewFieldError("scheduled_at", ErrConflict)
	}
	return nil
}

func (svc *Service) touch(ctx context.Context, tenantID string) error {
	return core.BumpTenantVersion(ctx, svc.cache, tenantID)
}

// Schedule stores a visit validated by NewVisit.Validate.
func (svc *Service) Schedule(ctx context.Context, nv NewVisit, actor user.User) (Visit, error) {
	l, err := svc.leads.Get(ctx, nv.TenantID, nv.LeadID)
	if err != nil {
		return Visit{}, errors.Wrap(err, "getting lead")
	}

	now := time.Now().UTC()
	v, err := svc.repo.CreateVisit(ctx, Visit{
		ID:              uuid.NewString(),
		TenantID:        nv.TenantID,
		LeadID:          nv.LeadID,
		UserID:          nv.UserID,
		TerritoryID:     l.TerritoryID,
		ScheduledAt:     nv.ScheduledAt,
		DurationMinutes: nv.DurationMinutes,
		Purpose:         nv.Purpose,
		Status:          StatusScheduled,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Visit{}, errors.Wrap(err, "creating visit")
	}
	return v, svc.touch(ctx, v.TenantID)
}

func (svc *Service) Query(ctx context.Context, scope core.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Visit, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QueryVisits(ctx, scope, *filter, core.CleanOrdering(ordering, OrderingFields...))
}

func (svc *Service) Get(ctx context.Context, tenantID, id string) (Visit, error) {
	return svc.repo.GetVisit(ctx, tenantID, id)
}

// GetScoped returns the visit only if it is visible in scope.
func (svc *Service) GetScoped(ctx context.Context, scope core.Scope, id string) (Visit, error) {
	v, err := svc.repo.GetVisit(ctx, scope.TenantID, id)
	if err != nil {
		return Visit{}, err
	}
	if !scope.Allows(v.UserID, v.TerritoryID) {
		return Visit{}, ErrNotFound
	}
	return v, nil
}

func (svc *Service) save(ctx context.Context, v Visit, what string) (Visit, error) {
	v.UpdatedAt = time.Now().UTC()
	v, err := svc.repo.UpdateVisit(ctx, v)
	if err != nil {
		return Visit{}, errors.Wrap(err, what)
	}
	return v, svc.touch(ctx, v.TenantID)
}

// Update applies uv, validated by UpdateVisit.Validate. Moving or reassigning the visit
// re-arms its reminder.
func (svc *Service) Update(ctx context.Context, v Visit, uv UpdateVisit) (Visit, error) {
	if !uv.ScheduledAt.Equal(v.ScheduledAt) || uv.UserID != v.UserID {
		v.ReminderSentAt = nil
	}
	v.ScheduledAt = *uv.ScheduledAt
	v.DurationMinutes = *uv.DurationMinutes
	v.UserID = uv.UserID
	if uv.Purpose != nil {
		v.Purpose = *uv.Purpose
	}
	return svc.save(ctx, v, "updating visit")
}

// Complete closes a scheduled visit, marks its lead visited and lets the conversion rules run.
// Once the visit is saved it is returned even if the lead follow-ups fail; those are logged.
func (svc *Service) Complete(ctx context.Context, v Visit, cv CompleteVisit) (Visit, error) {
	if v.Status != StatusScheduled {
		return Visit{}, core.NewValidationError(ErrNotScheduled)
	}
	now := time.Now().UTC()
	v.Status = StatusCompleted
	v.Outcome = cv.Outcome
	v.OrderValue = cv.OrderValue
	v.CompletedAt = &now
	if v.CheckInAt == nil {
		v.CheckInAt = &now
	}
	v, err := svc.save(ctx, v, "completing visit")
	if err != nil {
		return Visit{}, err
	}

	if _, err := svc.leads.MarkVisited(ctx, v.TenantID, v.LeadID, now); err != nil {
		if !core.IsNotFound(err) {
			svc.logError("marking lead visited", err, v)
		}
		return v, nil
	}
	if svc.converter != nil {
		if _, err := svc.converter.AutoApply(ctx, v.TenantID, v.LeadID); err != nil {
			svc.logError("applying conversion rules", err, v)
		}
	}
	return v, nil
}

func (svc *Service) logError(msg string, err error, v Visit) {
	if svc.logger == nil {
		return
	}
	svc.logger.Error(msg, errors.Wrap(err, msg), map[string]interface{}{
		"tenant_id": v.TenantID,
		"visit_id":  v.ID,
		"lead_id":   v.LeadID,
	})
}

func (svc *Service) Cancel(ctx context.Context, v Visit, cv CancelVisit) (Visit, error) {
	if v.Status != StatusScheduled {
		return Visit{}, core.NewValidationError(ErrNotScheduled)
	}
	now := time.Now().UTC()
	v.Status = StatusCancelled
	v.CancelledAt = &now
	v.CancelReason = cv.Reason
	return svc.save(ctx, v, "cancelling visit")
}

func (svc *Service) Delete(ctx context.Context, tenantID string, ids ...string) error {
	if err := svc.repo.DeleteVisits(ctx, tenantID, ids...); err != nil {
		return errors.Wrap(err, "deleting visits")
	}
	return svc.touch(ctx, tenantID)
}

func (svc *Service) LeadStats(ctx context.Context, tenantID, leadID string) (Stats, error) {
	return svc.repo.LeadStats(ctx, tenantID, leadID)
}

func (svc *Service) scheduledBetween(ctx context.Context, tenantID string, from, to time.Time) ([]Visit, error) {
	filter := QueryFilter{Statuses: []string{StatusScheduled}, ScheduledFrom: from, ScheduledTo: to}
	return svc.repo.QueryVisits(ctx, core.TenantScope(tenantID), filter, []core.DBOrdering{{Field: "scheduled_at", Ascending: true}})
}

// MarkMissed flags the scheduled visits that ended more than the grace period before now.
// It returns the number of visits marked.
func (svc *Service) MarkMissed(ctx context.Context, tenantID string, now time.Time) (int, error) {
	grace, err := svc.settings.Int(ctx, tenantID, setting.VisitMissedGraceMinutes)
	if err != nil {
		return 0, errors.Wrap(err, "getting grace period")
	}
	cutoff := now.Add(-time.Duration(grace) * time.Minute)

	visits, err := svc.scheduledBetween(ctx, tenantID, time.Time{}, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "querying scheduled visits")
	}

	n := 0
	for _, v := range visits {
		if v.EndsAt().After(cutoff) {
			continue
		}
		v.Status = StatusMissed
		if _, err := svc.save(ctx, v, "marking visit missed"); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SendReminders e-mails the reps of the visits starting within the reminder window.
// Each visit is reminded once; it returns the number of reminders sent.
func (svc *Service) SendReminders(ctx context.Context, tenantID string, now time.Time) (int, error) {
	hours, err := svc.settings.Int(ctx, tenantID, setting.VisitReminderLeadHours)
	if err != nil {
		return 0, errors.Wrap(err, "getting reminder window")
	}

	visits, err := svc.scheduledBetween(ctx, tenantID, now, now.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		return 0, errors.Wrap(err, "querying scheduled visits")
	}

	n := 0
	for _, v := range visits {
		if v.ReminderSentAt != nil {
			continue
		}
		rep, err := svc.users.GetByID(ctx, tenantID, v.UserID)
		if err != nil && !core.IsNotFound(err) {
			return n, errors.Wrap(err, "getting sales rep")
		}
		if err != nil || !rep.IsActive || rep.Email == "" {
			continue
		}
		l, err := svc.leads.Get(ctx, tenantID, v.LeadID)
		if err != nil {
			return n, errors.Wrap(err, "getting lead")
		}

		if svc.notifier != nil {
			svc.notifier.VisitReminder(v, l, rep)
		}
		sent := now.UTC()
		v.ReminderSentAt = &sent
		if _, err := svc.save(ctx, v, "recording reminder"); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

package visit

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

// Statuses
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusMissed    = "missed"
)

const (
	DefaultDuration = 30 // minutes
	MinDuration     = 5
	MaxDuration     = 480

	// pastTolerance is how far in the past a visit may still be scheduled.
	pastTolerance = 5 * time.Minute
)

var (
	Statuses = []string{StatusScheduled, StatusCompleted, StatusCancelled, StatusMissed}

	// NowFunc is used to check that visits are not scheduled in the past.
	NowFunc = time.Now
)

// Visit is a rep's appointment at a lead's store.
type Visit struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	LeadID          string     `json:"lead_id"`
	UserID          string     `json:"user_id"`
	TerritoryID     string     `json:"territory_id"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Purpose         string     `json:"purpose"`
	Status          string     `json:"status"`
	Outcome         string     `json:"outcome"`
	OrderValue      float64    `json:"order_value"`
	CheckInAt       *time.Time `json:"check_in_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CancelledAt     *time.Time `json:"cancelled_at"`
	CancelReason    string     `json:"cancel_reason"`
	ReminderSentAt  *time.Time `json:"reminder_sent_at"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

func (v Visit) EndsAt() time.Time {
	return v.ScheduledAt.Add(time.Duration(v.DurationMinutes) * time.Minute)
}

// Overlaps reports whether v and [start, end) intersect.
func (v Visit) Overlaps(start, end time.Time) bool {
	return v.ScheduledAt.Before(end) && start.Before(v.EndsAt())
}

// Stats sums up the completed visits of a lead.
type Stats struct {
	CompletedVisits int     `json:"completed_visits"`
	OrderValue      float64 `json:"order_value"`
}

// NewVisit contains information needed to schedule a Visit.
type NewVisit struct {
	TenantID        string    `json:"-"`
	LeadID          string    `json:"lead_id" validate:"required,uuid"`
	UserID          string    `json:"user_id" validate:"omitempty,uuid"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
	Purpose         string    `json:"purpose" validate:"max=2000"`
}

// Validate checks nv on behalf of actor. Sales reps always schedule their own visits.
func (nv *NewVisit) Validate(actor user.User, validate *validator.Validate, svc *Service) error {
	nv.LeadID = core.CleanString(nv.LeadID, true /* lower */)
	nv.UserID = core.CleanString(nv.UserID, true /* lower */)
	nv.Purpose = core.CleanString(nv.Purpose)
	if nv.UserID == "" || !(actor.IsAdmin() || actor.IsManager()) {
		nv.UserID = actor.ID
	}
	if nv.DurationMinutes == 0 {
		nv.DurationMinutes = DefaultDuration
	}
	nv.ScheduledAt = nv.ScheduledAt.UTC()
	if err := validate.Struct(nv); err != nil {
		return err
	}

	if nv.ScheduledAt.Before(NowFunc().Add(-pastTolerance)) {
		return core.NewFieldError("scheduled_at", ErrInPast)
	}
	if err := svc.checkLead(nv.TenantID, nv.LeadID); err != nil {
		return err
	}
	if err := svc.checkRep(nv.TenantID, nv.UserID); err != nil {
		return err
	}
	end := nv.ScheduledAt.Add(time.Duration(nv.DurationMinutes) * time.Minute)
	return svc.checkConflict(nv.TenantID, nv.UserID, nv.ScheduledAt, end, "")
}

// UpdateVisit reschedules or edits a scheduled Visit.
type UpdateVisit struct {
	UserID          string     `json:"user_id" validate:"omitempty,uuid"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
	Purpose         *string    `json:"purpose" validate:"omitempty,max=2000"`
}

// Validate checks uv against the scheduled visit orig. Only admins and managers may hand a visit to another rep.
func (uv *UpdateVisit) Validate(orig Visit, actor user.User, validate *validator.Validate, svc *Service) error {
	if orig.Status != StatusScheduled {
		return core.NewValidationError(ErrNotScheduled)
	}
	uv.UserID = core.CleanString(uv.UserID, true /* lower */)
	if uv.UserID == "" || !(actor.IsAdmin() || actor.IsManager()) {
		uv.UserID = orig.UserID
	}
	if uv.Purpose != nil {
		p := core.CleanString(*uv.Purpose)
		uv.Purpose = &p
	}
	if uv.ScheduledAt != nil {
		at := uv.ScheduledAt.UTC()
		uv.ScheduledAt = &at
	} else {
		uv.ScheduledAt = &orig.ScheduledAt
	}
	if uv.DurationMinutes == nil {
		uv.DurationMinutes = &orig.DurationMinutes
	}
	if err := validate.Struct(uv); err != nil {
		return err
	}

	if !uv.ScheduledAt.Equal(orig.ScheduledAt) && uv.ScheduledAt.Before(NowFunc().Add(-pastTolerance)) {
		return core.NewFieldError("scheduled_at", ErrInPast)
	}
	if uv.UserID != orig.UserID {
		if err := svc.checkRep(orig.TenantID, uv.UserID); err != nil {
			return err
		}
	}
	end := uv.ScheduledAt.Add(time.Duration(*uv.DurationMinutes) * time.Minute)
	return svc.checkConflict(orig.TenantID, uv.UserID, *uv.ScheduledAt, end, orig.ID)
}

type CompleteVisit struct {
	Outcome    string  `json:"outcome" validate:"max=2000"`
	OrderValue float64 `json:"order_value" validate:"gte=0"`
}

func (cv *CompleteVisit) Validate(validate *validator.Validate) error {
	cv.Outcome = core.CleanString(cv.Outcome)
	return validate.Struct(cv)
}

type CancelVisit struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (cv *CancelVisit) Validate(validate *validator.Validate) error {
	cv.Reason = core.CleanString(cv.Reason)
	return validate.Struct(cv)
}

type QueryFilter struct {
	core.Page
	LeadID        string    `query:"lead_id"`
	UserID        string    `query:"user_id"`
	Statuses      []string  `query:"status"`
	TerritoryID   string    `query:"territory_id"`
	ScheduledFrom time.Time `query:"scheduled_from"`
	ScheduledTo   time.Time `query:"scheduled_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Page.Clean()
	qf.LeadID = core.CleanString(qf.LeadID, true /* lower */)
	qf.UserID = core.CleanString(qf.UserID, true /* lower */)
	qf.Statuses = core.CleanStrings(qf.Statuses, true /* lower */)
	qf.TerritoryID = core.CleanString(qf.TerritoryID, true /* lower */)
}

// Matches applies the filter, but not the page, to v. ScheduledTo is exclusive.
func (qf *QueryFilter) Matches(v Visit) bool {
	if qf.LeadID != "" && v.LeadID != qf.LeadID {
		return false
	}
	if qf.UserID != "" && v.UserID != qf.UserID {
		return false
	}
	if len(qf.Statuses) > 0 && !core.StringIn(v.Status, qf.Statuses) {
		return false
	}
	if qf.TerritoryID != "" && v.TerritoryID != qf.TerritoryID {
		return false
	}
	if !qf.ScheduledFrom.IsZero() && v.ScheduledAt.Before(qf.ScheduledFrom) {
		return false
	}
	if !qf.ScheduledTo.IsZero() && !v.ScheduledAt.Before(qf.ScheduledTo) {
		return false
	}
	return true
}

// OrderingFields are the fields visits can be ordered by.
var OrderingFields = []string{"scheduled_at", "status", "created_at", "order_value"}

var (
	visitStatusTag  = "visitstatus"
	visitStatusText = "invalid visit status"
)

// InitValidators registers the visit validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(visitStatusTag, func(fl validator.FieldLevel) bool {
		return core.StringIn(fl.Field().String(), Statuses)
	})
	core.RegisterCustomTranslation(validate, translator, visitStatusTag, visitStatusText)
}

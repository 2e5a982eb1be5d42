// Package notify sends the e-mails of the lead and visit workflows.
package notify

import (
	"context"
	"net/mail"
	"time"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

// Template names
const (
	TmplPasswordReset = "password_reset"
	TmplLeadAssigned  = "lead_assigned"
	TmplVisitReminder = "visit_reminder"
)

const scheduleLayout = "Mon 2 Jan 2006 15:04 MST"

type (
	// Timezones tells in which timezone a tenant reads dates.
	Timezones interface {
		Location(ctx context.Context, tenantID string) (*time.Location, error)
	}

	Service struct {
		email     core.EmailService
		timezones Timezones
	}
)

var (
	_ user.Notifier  = (*Service)(nil)
	_ lead.Notifier  = (*Service)(nil)
	_ visit.Notifier = (*Service)(nil)
)

func NewService(email core.EmailService, timezones Timezones) *Service {
	return &Service{email: email, timezones: timezones}
}

func recipient(usr user.User) []mail.Address {
	return []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}}
}

func (svc *Service) PasswordReset(usr user.User, uid, token string) {
	svc.email.SendMessages(&core.EmailMessage{
		To:           recipient(usr),
		Subject:      "Password Reset",
		TemplateName: TmplPasswordReset,
		TemplateData: map[string]string{
			"Name":  usr.DisplayName(),
			"UID":   uid,
			"Token": token,
		},
	})
}

func (svc *Service) LeadAssigned(l lead.Lead, assignee, assigner user.User) {
	svc.email.SendMessages(&core.EmailMessage{
		To:           recipient(assignee),
		Subject:      "New lead: " + l.StoreName,
		TemplateName: TmplLeadAssigned,
		TemplateData: map[string]string{
			"AssigneeName": assignee.DisplayName(),
			"AssignerName": assigner.DisplayName(),
			"StoreName":    l.StoreName,
			"City":         l.City,
			"ContactName":  l.ContactName,
			"Phone":        l.Phone,
			"LeadID":       l.ID,
		},
	})
}

func (svc *Service) VisitReminder(v visit.Visit, l lead.Lead, rep user.User) {
	loc := time.UTC
	if svc.timezones != nil {
		if tz, err := svc.timezones.Location(context.Background(), v.TenantID); err == nil {
			loc = tz
		}
	}
	svc.email.SendMessages(&core.EmailMessage{
		To:           recipient(rep),
		Subject:      "Visit reminder: " + l.StoreName,
		TemplateName: TmplVisitReminder,
		TemplateData: map[string]string{
			"RepName":     rep.DisplayName(),
			"StoreName":   l.StoreName,
			"ScheduledAt": v.ScheduledAt.In(loc).Format(scheduleLayout),
			"Address":     l.Address,
			"Purpose":     v.Purpose,
			"VisitID":     v.ID,
		},
	})
}

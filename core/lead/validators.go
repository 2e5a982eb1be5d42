package lead

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

var (
	leadStatusTag  = "leadstatus"
	leadStatusText = "invalid lead status"

	leadSourceTag  = "leadsource"
	leadSourceText = "invalid lead source"

	emailOrPhoneTag  = "email_or_phone"
	emailOrPhoneText = "one of email or phone is required"
)

// InitValidators registers the lead validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(leadStatusTag, func(fl validator.FieldLevel) bool {
		return core.StringIn(fl.Field().String(), Statuses)
	})
	core.RegisterCustomTranslation(validate, translator, leadStatusTag, leadStatusText)

	_ = validate.RegisterValidation(leadSourceTag, func(fl validator.FieldLevel) bool {
		return core.StringIn(fl.Field().String(), Sources)
	})
	core.RegisterCustomTranslation(validate, translator, leadSourceTag, leadSourceText)

	validate.RegisterStructValidation(newLeadStructValidation, NewLead{})
	core.RegisterCustomTranslation(validate, translator, emailOrPhoneTag, emailOrPhoneText)
}

// newLeadStructValidation checks that a lead can be reached.
func newLeadStructValidation(sl validator.StructLevel) {
	nl := sl.Current().Interface().(NewLead)
	if nl.Email == "" && nl.Phone == "" {
		sl.ReportError(nl.Email, "email", "Email", emailOrPhoneTag, "")
		sl.ReportError(nl.Phone, "phone", "Phone", emailOrPhoneTag, "")
	}
}

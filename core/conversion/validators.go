package conversion

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
)

var (
	leadStatusesTag  = "leadstatuses"
	leadStatusesText = "statuses must be open lead statuses"

	noConditionTag  = "nocondition"
	noConditionText = "at least one condition is required"
)

// InitValidators registers the conversion rule validators and their translations.
// It relies on the lead validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(leadStatusesTag, leadStatusesValidation)
	core.RegisterCustomTranslation(validate, translator, leadStatusesTag, leadStatusesText)

	validate.RegisterStructValidation(ruleStructValidation, NewRule{}, UpdateRule{})
	core.RegisterCustomTranslation(validate, translator, noConditionTag, noConditionText)
}

func leadStatusesValidation(fl validator.FieldLevel) bool {
	statuses, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, s := range statuses {
		if !core.StringIn(s, lead.Statuses) || lead.IsTerminal(s) {
			return false
		}
	}
	return true
}

func ruleStructValidation(sl validator.StructLevel) {
	var c Conditions
	switch r := sl.Current().Interface().(type) {
	case NewRule:
		c = r.Conditions
	case UpdateRule:
		if r.Conditions == nil {
			return
		}
		c = *r.Conditions
	}
	if c.IsEmpty() {
		sl.ReportError(c, "conditions", "Conditions", noConditionTag, "")
	}
}

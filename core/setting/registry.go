package setting

import (
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // timezone settings must not depend on the host

	"github.com/pkg/errors"
)

const (
	KindInt      = "int"
	KindBool     = "bool"
	KindString   = "string"
	KindTimezone = "timezone"
)

// Known keys
const (
	VisitReminderLeadHours  = "visit.reminder_lead_hours"
	VisitMissedGraceMinutes = "visit.missed_grace_minutes"
	ConversionAutoApply     = "conversion.auto_apply"
	BackupMaxCount          = "backup.max_count"
	BackupMaxBytes          = "backup.max_bytes"
	DashboardUpcomingDays   = "dashboard.upcoming_days"
	LeadStaleDays           = "lead.stale_days"
	CompanyTimezone         = "company.timezone"
	CompanyName             = "company.name"
)

// Definition describes a known setting.
type Definition struct {
	Key         string `json:"key"`
	Kind        string `json:"kind"`
	Default     string `json:"default"`
	Min         int64  `json:"min,omitempty"`
	Max         int64  `json:"max,omitempty"`
	Description string `json:"description"`
}

var (
	Registry = []Definition{
		{Key: VisitReminderLeadHours, Kind: KindInt, Default: "24", Min: 1, Max: 168, Description: "Hours before a visit its reminder is sent"},
		{Key: VisitMissedGraceMinutes, Kind: KindInt, Default: "120", Min: 0, Max: 1440, Description: "Minutes after its end a scheduled visit is marked missed"},
		{Key: ConversionAutoApply, Kind: KindBool, Default: "true", Description: "Convert leads automatically when a rule matches"},
		{Key: BackupMaxCount, Kind: KindInt, Default: "10", Min: 1, Max: 100, Description: "Number of backups kept"},
		{Key: BackupMaxBytes, Kind: KindInt, Default: strconv.Itoa(5 << 20), Min: 64 << 10, Max: 512 << 20, Description: "Storage quota of the backups, in bytes"},
		{Key: DashboardUpcomingDays, Kind: KindInt, Default: "7", Min: 1, Max: 60, Description: "Days of upcoming visits shown on the dashboard"},
		{Key: LeadStaleDays, Kind: KindInt, Default: "30", Min: 1, Max: 365, Description: "Days without activity after which an open lead is stale"},
		{Key: CompanyTimezone, Kind: KindTimezone, Default: "UTC", Description: "Timezone of the dashboards and date filters"},
		{Key: CompanyName, Kind: KindString, Default: "", Description: "Company name shown in e-mails"},
	}
	definitions = indexRegistry()

	ErrUnknownKey   = errors.New("unknown setting")
	errInvalidInt   = errors.New("must be an integer")
	errInvalidBool  = errors.New("must be true or false")
	errInvalidZone  = errors.New("unknown timezone")
	errStringTooBig = errors.New("must not exceed 255 characters")
)

func indexRegistry() map[string]Definition {
	defs := make(map[string]Definition, len(Registry))
	for _, def := range Registry {
		defs[def.Key] = def
	}
	return defs
}

func Lookup(key string) (Definition, bool) {
	def, ok := definitions[key]
	return def, ok
}

// Normalize validates raw against the definition and returns its canonical string form.
func (def Definition) Normalize(raw interface{}) (string, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = strings.TrimSpace(v)
	case bool:
		s = strconv.FormatBool(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case nil:
		s = ""
	default:
		return "", errors.Errorf("unsupported value type %T", raw)
	}

	switch def.Kind {
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return "", errInvalidInt
		}
		if n < def.Min || n > def.Max {
			return "", errors.Errorf("must be between %d and %d", def.Min, def.Max)
		}
		return strconv.FormatInt(n, 10), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return "", errInvalidBool
		}
		return strconv.FormatBool(b), nil
	case KindTimezone:
		loc, err := time.LoadLocation(s)
		if err != nil || s == "" || s == "Local" {
			return "", errInvalidZone
		}
		return loc.String(), nil
	default:
		if len(s) > 255 {
			return "", errStringTooBig
		}
		return s, nil
	}
}

// Parse converts a stored value into its typed form: int64, bool or string.
func (def Definition) Parse(value string) interface{} {
	switch def.Kind {
	case KindInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			n, _ = strconv.ParseInt(def.Default, 10, 64)
		}
		return n
	case KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			b, _ = strconv.ParseBool(def.Default)
		}
		return b
	default:
		return value
	}
}

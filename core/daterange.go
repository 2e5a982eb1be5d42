package core

import (
	"time"

	"github.com/pkg/errors"
)

const (
	PeriodToday       = "today"
	PeriodYesterday   = "yesterday"
	PeriodLast7Days   = "last_7_days"
	PeriodLast30Days  = "last_30_days"
	PeriodThisWeek    = "this_week"
	PeriodLastWeek    = "last_week"
	PeriodThisMonth   = "this_month"
	PeriodLastMonth   = "last_month"
	PeriodThisQuarter = "this_quarter"
	PeriodThisYear    = "this_year"
	PeriodCustom      = "custom"

	DefaultPeriod = PeriodLast30Days

	IntervalDay   = "day"
	IntervalWeek  = "week"
	IntervalMonth = "month"

	maxCustomRangeDays = 366
	dateLayout         = "2006-01-02"
)

var (
	Periods   = []string{PeriodToday, PeriodYesterday, PeriodLast7Days, PeriodLast30Days, PeriodThisWeek, PeriodLastWeek, PeriodThisMonth, PeriodLastMonth, PeriodThisQuarter, PeriodThisYear, PeriodCustom}
	Intervals = []string{IntervalDay, IntervalWeek, IntervalMonth}

	errInvalidPeriod   = errors.New("invalid period")
	errInvalidInterval = errors.New("invalid interval")
	errInvalidDate     = errors.New("enter a valid date (YYYY-MM-DD)")
	errRangeReversed   = errors.New("must not be before from")
	errRangeTooLong    = errors.New("date range cannot exceed 366 days")
)

// DateRangeQuery holds the raw date-range query params.
type DateRangeQuery struct {
	Period   string `query:"period"`
	From     string `query:"from"`
	To       string `query:"to"`
	Interval string `query:"interval"`
}

// DateRange is the half-open interval [From, To).
type DateRange struct {
	Period string    `json:"period"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Key identifies the range in cache keys.
func (r DateRange) Key() string {
	return r.Period + ":" + r.From.UTC().Format(time.RFC3339) + ":" + r.To.UTC().Format(time.RFC3339)
}

// Bucket is one zero-filled slot of a time series.
type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// NewDateRange resolves the query into a range of the location loc, relative to now.
func NewDateRange(q DateRangeQuery, now time.Time, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	period := CleanString(q.Period, true)
	if period == "" {
		if CleanString(q.From) != "" {
			period = PeriodCustom
		} else {
			period = DefaultPeriod
		}
	}

	r := DateRange{Period: period}
	switch period {
	case PeriodToday:
		r.From, r.To = today, tomorrow
	case PeriodYesterday:
		r.From, r.To = today.AddDate(0, 0, -1), today
	case PeriodLast7Days:
		r.From, r.To = today.AddDate(0, 0, -6), tomorrow
	case PeriodLast30Days:
		r.From, r.To = today.AddDate(0, 0, -29), tomorrow
	case PeriodThisWeek:
		r.From = startOfWeek(today)
		r.To = r.From.AddDate(0, 0, 7)
	case PeriodLastWeek:
		r.To = startOfWeek(today)
		r.From = r.To.AddDate(0, 0, -7)
	case PeriodThisMonth:
		r.From = startOfMonth(today)
		r.To = r.From.AddDate(0, 1, 0)
	case PeriodLastMonth:
		r.To = startOfMonth(today)
		r.From = r.To.AddDate(0, -1, 0)
	case PeriodThisQuarter:
		y, m, _ := today.Date()
		r.From = time.Date(y, m-(m-1)%3, 1, 0, 0, 0, 0, loc)
		r.To = r.From.AddDate(0, 3, 0)
	case PeriodThisYear:
		r.From = time.Date(today.Year(), 1, 1, 0, 0, 0, 0, loc)
		r.To = r.From.AddDate(1, 0, 0)
	case PeriodCustom:
		return newCustomRange(q, tomorrow, loc)
	default:
		return DateRange{}, NewFieldError("period", errInvalidPeriod)
	}
	return r, nil
}

func newCustomRange(q DateRangeQuery, tomorrow time.Time, loc *time.Location) (DateRange, error) {
	r := DateRange{Period: PeriodCustom, To: tomorrow}

	from := CleanString(q.From)
	if from == "" {
		return DateRange{}, NewFieldError("from", errors.New(requiredText))
	}
	t, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return DateRange{}, NewFieldError("from", errInvalidDate)
	}
	r.From = t

	if to := CleanString(q.To); to != "" {
		t, err := time.ParseInLocation(dateLayout, to, loc)
		if err != nil {
			return DateRange{}, NewFieldError("to", errInvalidDate)
		}
		r.To = t.AddDate(0, 0, 1) // inclusive end day
	}
	if !r.To.After(r.From) {
		return DateRange{}, NewFieldError("to", errRangeReversed)
	}
	if r.To.After(r.From.AddDate(0, 0, maxCustomRangeDays)) {
		return DateRange{}, NewFieldError("to", errRangeTooLong)
	}
	return r, nil
}

// CleanInterval defaults an empty interval to a granularity that suits the range.
func CleanInterval(interval string, r DateRange) (string, error) {
	interval = CleanString(interval, true)
	if interval == "" {
		switch days := r.To.Sub(r.From).Hours() / 24; {
		case days <= 31:
			return IntervalDay, nil
		case days <= 120:
			return IntervalWeek, nil
		default:
			return IntervalMonth, nil
		}
	}
	if !StringIn(interval, Intervals) {
		return "", NewFieldError("interval", errInvalidInterval)
	}
	return interval, nil
}

// Buckets splits r into consecutive interval slots; the first and last are clipped to r.
func (r DateRange) Buckets(interval string) []Bucket {
	var (
		buckets []Bucket
		start   time.Time
		label   string
	)
	switch interval {
	case IntervalWeek:
		start = startOfWeek(r.From)
		label = dateLayout
	case IntervalMonth:
		start = startOfMonth(r.From)
		label = "2006-01"
	default:
		start = startOfDay(r.From)
		label = dateLayout
	}

	for start.Before(r.To) {
		var end time.Time
		switch interval {
		case IntervalWeek:
			end = start.AddDate(0, 0, 7)
		case IntervalMonth:
			end = start.AddDate(0, 1, 0)
		default:
			end = start.AddDate(0, 0, 1)
		}
		b := Bucket{Label: start.Format(label), Start: start, End: end}
		if b.Start.Before(r.From) {
			b.Start = r.From
		}
		if b.End.After(r.To) {
			b.End = r.To
		}
		buckets = append(buckets, b)
		start = end
	}
	return buckets
}

// BucketIndex returns the index of the bucket containing t, or -1.
func BucketIndex(buckets []Bucket, t time.Time) int {
	for i, b := range buckets {
		if !t.Before(b.Start) && t.Before(b.End) {
			return i
		}
	}
	return -1
}

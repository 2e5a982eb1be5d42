package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDateRange(t *testing.T) {
	// Wednesday
	now := time.Date(2024, time.May, 15, 13, 45, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		q        DateRangeQuery
		wantFrom time.Time
		wantTo   time.Time
		wantErr  string
	}{
		{name: "default", q: DateRangeQuery{}, wantFrom: day(time.April, 16), wantTo: day(time.May, 16)},
		{name: "today", q: DateRangeQuery{Period: "today"}, wantFrom: day(time.May, 15), wantTo: day(time.May, 16)},
		{name: "yesterday", q: DateRangeQuery{Period: "yesterday"}, wantFrom: day(time.May, 14), wantTo: day(time.May, 15)},
		{name: "last_7_days", q: DateRangeQuery{Period: "last_7_days"}, wantFrom: day(time.May, 9), wantTo: day(time.May, 16)},
		{name: "this_week starts monday", q: DateRangeQuery{Period: "this_week"}, wantFrom: day(time.May, 13), wantTo: day(time.May, 20)},
		{name: "last_week", q: DateRangeQuery{Period: "LAST_WEEK"}, wantFrom: day(time.May, 6), wantTo: day(time.May, 13)},
		{name: "this_month", q: DateRangeQuery{Period: "this_month"}, wantFrom: day(time.May, 1), wantTo: day(time.June, 1)},
		{name: "last_month", q: DateRangeQuery{Period: "last_month"}, wantFrom: day(time.April, 1), wantTo: day(time.May, 1)},
		{name: "this_quarter", q: DateRangeQuery{Period: "this_quarter"}, wantFrom: day(time.April, 1), wantTo: day(time.July, 1)},
		{name: "this_year", q: DateRangeQuery{Period: "this_year"}, wantFrom: day(time.January, 1), wantTo: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "custom", q: DateRangeQuery{Period: "custom", From: "2024-03-01", To: "2024-03-31"}, wantFrom: day(time.March, 1), wantTo: day(time.April, 1)},
		{name: "custom implied by from", q: DateRangeQuery{From: "2024-05-10"}, wantFrom: day(time.May, 10), wantTo: day(time.May, 16)},
		{name: "custom without from", q: DateRangeQuery{Period: "custom"}, wantErr: "from: this field is required"},
		{name: "custom bad date", q: DateRangeQuery{Period: "custom", From: "01/03/2024"}, wantErr: "from: enter a valid date (YYYY-MM-DD)"},
		{name: "custom reversed", q: DateRangeQuery{Period: "custom", From: "2024-03-10", To: "2024-03-01"}, wantErr: "to: must not be before from"},
		{name: "custom too long", q: DateRangeQuery{Period: "custom", From: "2022-01-01", To: "2024-01-01"}, wantErr: "to: date range cannot exceed 366 days"},
		{name: "unknown period", q: DateRangeQuery{Period: "lol"}, wantErr: "period: invalid period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewDateRange(tt.q, now, time.UTC)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				verr := err.(*ValidationError)
				assert.Equal(t, tt.wantErr, verr.Fields[0].Field+": "+verr.Fields[0].Error)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantFrom.Equal(r.From), "from = %v; want %v", r.From, tt.wantFrom)
			assert.True(t, tt.wantTo.Equal(r.To), "to = %v; want %v", r.To, tt.wantTo)
		})
	}
}

func TestNewDateRange_location(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// still the 15th in UTC, already the 16th at UTC+3
	now := time.Date(2024, time.May, 15, 22, 30, 0, 0, time.UTC)

	r, err := NewDateRange(DateRangeQuery{Period: PeriodToday}, now, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.May, 15, 21, 0, 0, 0, time.UTC), r.From.UTC())
	assert.True(t, r.Contains(now))
	assert.False(t, r.Contains(now.Add(-2*time.Hour)))
}

func TestDateRange_Buckets(t *testing.T) {
	r := DateRange{
		From: time.Date(2024, time.January, 29, 0, 0, 0, 0, time.UTC), // Monday
		To:   time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC),
	}

	days := r.Buckets(IntervalDay)
	assert.Len(t, days, 33)
	assert.Equal(t, "2024-01-29", days[0].Label)
	assert.Equal(t, "2024-03-01", days[len(days)-1].Label)

	weeks := r.Buckets(IntervalWeek)
	assert.Len(t, weeks, 5)
	assert.Equal(t, "2024-02-26", weeks[4].Label)
	assert.Equal(t, r.To, weeks[4].End, "last bucket is clipped")

	months := r.Buckets(IntervalMonth)
	require.Len(t, months, 3)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, []string{months[0].Label, months[1].Label, months[2].Label})
	assert.Equal(t, r.From, months[0].Start, "first bucket is clipped")

	assert.Equal(t, 1, BucketIndex(months, time.Date(2024, time.February, 29, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, BucketIndex(months, r.To))
}

func TestCleanInterval(t *testing.T) {
	now := time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)
	month, _ := NewDateRange(DateRangeQuery{Period: PeriodThisMonth}, now, time.UTC)
	year, _ := NewDateRange(DateRangeQuery{Period: PeriodThisYear}, now, time.UTC)

	got, err := CleanInterval("", month)
	require.NoError(t, err)
	assert.Equal(t, IntervalDay, got)

	got, err = CleanInterval("", year)
	require.NoError(t, err)
	assert.Equal(t, IntervalMonth, got)

	got, err = CleanInterval(" Week ", year)
	require.NoError(t, err)
	assert.Equal(t, IntervalWeek, got)

	_, err = CleanInterval("hour", year)
	assert.True(t, IsValidationError(err))
}

func TestScope_Allows(t *testing.T) {
	assert.True(t, TenantScope("t1").Allows("u1", ""))

	rep := Scope{TenantID: "t1", UserID: "u1"}
	assert.True(t, rep.Allows("u1", "ter1"))
	assert.False(t, rep.Allows("u2", "ter1"))

	mgr := Scope{TenantID: "t1", UserID: "m1", TerritoryIDs: []string{"ter1"}}
	assert.True(t, mgr.Allows("u2", "ter1"))
	assert.True(t, mgr.Allows("m1", ""))
	assert.False(t, mgr.Allows("u2", "ter2"))
	assert.False(t, mgr.Allows("u2", ""))
}

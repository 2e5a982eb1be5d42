package dashboard

import (
	"time"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

// Viewer is who a dashboard is built for.
// Team viewers (admins and managers) also see how the reps of their scope perform.
type Viewer struct {
	Scope core.Scope
	Team  bool
}

type LeadSummary struct {
	Total          int     `json:"total"`
	Open           int     `json:"open"`
	New            int     `json:"new"`
	Converted      int     `json:"converted"`
	Lost           int     `json:"lost"`
	ConversionRate float64 `json:"conversion_rate"`
	PipelineValue  float64 `json:"pipeline_value"`
	Stale          int     `json:"stale"`
}

type VisitSummary struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	CompletionRate float64        `json:"completion_rate"`
	OrderValue     float64        `json:"order_value"`
}

type Summary struct {
	Range    core.DateRange `json:"range"`
	Leads    LeadSummary    `json:"leads"`
	Visits   VisitSummary   `json:"visits"`
	Upcoming []visit.Visit  `json:"upcoming"`
	TopReps  []RepStats     `json:"top_reps,omitempty"`
}

// Count is one slice of a breakdown chart.
type Count struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

type Breakdown struct {
	Range core.DateRange `json:"range"`
	Items []Count        `json:"items"`
}

type ConversionPoint struct {
	core.Bucket
	New       int `json:"new"`
	Converted int `json:"converted"`
}

type VisitPoint struct {
	core.Bucket
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Missed    int `json:"missed"`
}

type ConversionSeries struct {
	Range    core.DateRange    `json:"range"`
	Interval string            `json:"interval"`
	Points   []ConversionPoint `json:"points"`
}

type VisitSeries struct {
	Range    core.DateRange `json:"range"`
	Interval string         `json:"interval"`
	Points   []VisitPoint   `json:"points"`
}

// RepStats is the activity of a user over a range.
type RepStats struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	Completed      int     `json:"completed"`
	Missed         int     `json:"missed"`
	CompletionRate float64 `json:"completion_rate"`
	Conversions    int     `json:"conversions"`
	OrderValue     float64 `json:"order_value"`
}

type RepPerformance struct {
	Range core.DateRange `json:"range"`
	Reps  []RepStats     `json:"reps"`
}

const (
	maxUpcoming = 10
	maxTopReps  = 5

	unassignedLabel = "Unassigned"
)

// dataset is the tenant data a dashboard is computed from.
type dataset struct {
	now         time.Time
	leads       []lead.Lead
	visits      []visit.Visit
	users       map[string]string // id -> display name
	reps        []string          // ids of the reps in scope, even when idle
	territories map[string]string // id -> name
}

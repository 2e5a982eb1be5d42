package dashboard

import (
	"sort"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func (ds *dataset) leadSummary(r core.DateRange, staleDays int) LeadSummary {
	var (
		s           LeadSummary
		cohort      int
		cohortWon   int
		staleBefore = ds.now.AddDate(0, 0, -staleDays)
	)
	for _, l := range ds.leads {
		s.Total++
		if l.IsOpen() {
			s.Open++
			s.PipelineValue += l.EstimatedValue
			if l.LastActivity().Before(staleBefore) {
				s.Stale++
			}
		}
		if r.Contains(l.CreatedAt) {
			s.New++
			cohort++
			if l.Status == lead.StatusConverted {
				cohortWon++
			}
		}
		if l.Status == lead.StatusConverted && l.ConvertedAt != nil && r.Contains(*l.ConvertedAt) {
			s.Converted++
		}
		if l.Status == lead.StatusLost && r.Contains(l.StatusChangedAt) {
			s.Lost++
		}
	}
	s.ConversionRate = ratio(cohortWon, cohort)
	return s
}

func (ds *dataset) visitSummary(r core.DateRange) VisitSummary {
	s := VisitSummary{ByStatus: make(map[string]int, len(visit.Statuses))}
	for _, st := range visit.Statuses {
		s.ByStatus[st] = 0
	}
	for _, v := range ds.visits {
		if !r.Contains(v.ScheduledAt) {
			continue
		}
		s.Total++
		s.ByStatus[v.Status]++
		if v.Status == visit.StatusCompleted {
			s.OrderValue += v.OrderValue
		}
	}
	completed, missed := s.ByStatus[visit.StatusCompleted], s.ByStatus[visit.StatusMissed]
	s.CompletionRate = ratio(completed, completed+missed)
	return s
}

// upcoming returns the next scheduled visits within days, soonest first.
func (ds *dataset) upcoming(days int) []visit.Visit {
	until := ds.now.AddDate(0, 0, days)
	res := make([]visit.Visit, 0, maxUpcoming)
	for _, v := range ds.visits {
		if v.Status == visit.StatusScheduled && !v.ScheduledAt.Before(ds.now) && v.ScheduledAt.Before(until) {
			res = append(res, v)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].ScheduledAt.Before(res[j].ScheduledAt) })
	if len(res) > maxUpcoming {
		res = res[:maxUpcoming]
	}
	return res
}

func (ds *dataset) leadsCreatedIn(r core.DateRange) []lead.Lead {
	res := make([]lead.Lead, 0, len(ds.leads))
	for _, l := range ds.leads {
		if r.Contains(l.CreatedAt) {
			res = append(res, l)
		}
	}
	return res
}

// breakdown counts the leads created in r by key. Keys listed in fixed come first, even when empty;
// the others follow by count.
func (ds *dataset) breakdown(r core.DateRange, key func(lead.Lead) string, label func(string) string, fixed ...string) []Count {
	idx := make(map[string]int, len(fixed))
	items := make([]Count, 0, len(fixed))
	for _, k := range fixed {
		idx[k] = len(items)
		items = append(items, Count{Key: k, Label: label(k)})
	}
	for _, l := range ds.leadsCreatedIn(r) {
		k := key(l)
		i, ok := idx[k]
		if !ok {
			i = len(items)
			idx[k] = i
			items = append(items, Count{Key: k, Label: label(k)})
		}
		items[i].Count++
		items[i].Value += l.EstimatedValue
	}
	extra := items[len(fixed):]
	sort.SliceStable(extra, func(i, j int) bool {
		if extra[i].Count != extra[j].Count {
			return extra[i].Count > extra[j].Count
		}
		return extra[i].Label < extra[j].Label
	})
	return items
}

func identity(s string) string { return s }

func (ds *dataset) leadsByStatus(r core.DateRange) []Count {
	return ds.breakdown(r, func(l lead.Lead) string { return l.Status }, identity, lead.Statuses...)
}

func (ds *dataset) leadsBySource(r core.DateRange) []Count {
	return ds.breakdown(r, func(l lead.Lead) string { return l.Source }, identity, lead.Sources...)
}

func (ds *dataset) leadsByTerritory(r core.DateRange) []Count {
	label := func(id string) string {
		if name, ok := ds.territories[id]; ok {
			return name
		}
		return unassignedLabel
	}
	return ds.breakdown(r, func(l lead.Lead) string {
		if _, ok := ds.territories[l.TerritoryID]; !ok {
			return ""
		}
		return l.TerritoryID
	}, label)
}

func (ds *dataset) conversionsOverTime(r core.DateRange, interval string) []ConversionPoint {
	buckets := r.Buckets(interval)
	points := make([]ConversionPoint, len(buckets))
	for i, b := range buckets {
		points[i].Bucket = b
	}
	for _, l := range ds.leads {
		if i := core.BucketIndex(buckets, l.CreatedAt); i >= 0 {
			points[i].New++
		}
		if l.Status == lead.StatusConverted && l.ConvertedAt != nil {
			if i := core.BucketIndex(buckets, *l.ConvertedAt); i >= 0 {
				points[i].Converted++
			}
		}
	}
	return points
}

func (ds *dataset) visitsOverTime(r core.DateRange, interval string) []VisitPoint {
	buckets := r.Buckets(interval)
	points := make([]VisitPoint, len(buckets))
	for i, b := range buckets {
		points[i].Bucket = b
	}
	for _, v := range ds.visits {
		i := core.BucketIndex(buckets, v.ScheduledAt)
		if i < 0 {
			continue
		}
		switch v.Status {
		case visit.StatusScheduled:
			points[i].Scheduled++
		case visit.StatusCompleted:
			points[i].Completed++
		case visit.StatusCancelled:
			points[i].Cancelled++
		case visit.StatusMissed:
			points[i].Missed++
		}
	}
	return points
}

// repPerformance ranks the users by conversions, then order value, then completed visits.
func (ds *dataset) repPerformance(r core.DateRange) []RepStats {
	byUser := make(map[string]*RepStats, len(ds.reps))
	get := func(id string) *RepStats {
		rs, ok := byUser[id]
		if !ok {
			rs = &RepStats{UserID: id, Name: ds.users[id]}
			byUser[id] = rs
		}
		return rs
	}
	for _, id := range ds.reps {
		get(id)
	}

	for _, v := range ds.visits {
		if v.UserID == "" || !r.Contains(v.ScheduledAt) {
			continue
		}
		switch v.Status {
		case visit.StatusCompleted:
			rs := get(v.UserID)
			rs.Completed++
			rs.OrderValue += v.OrderValue
		case visit.StatusMissed:
			get(v.UserID).Missed++
		}
	}
	for _, l := range ds.leads {
		if l.AssignedTo != "" && l.Status == lead.StatusConverted && l.ConvertedAt != nil && r.Contains(*l.ConvertedAt) {
			get(l.AssignedTo).Conversions++
		}
	}

	res := make([]RepStats, 0, len(byUser))
	for _, rs := range byUser {
		rs.CompletionRate = ratio(rs.Completed, rs.Completed+rs.Missed)
		res = append(res, *rs)
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		switch {
		case a.Conversions != b.Conversions:
			return a.Conversions > b.Conversions
		case a.OrderValue != b.OrderValue:
			return a.OrderValue > b.OrderValue
		case a.Completed != b.Completed:
			return a.Completed > b.Completed
		case a.Name != b.Name:
			return a.Name < b.Name
		}
		return a.UserID < b.UserID
	})
	return res
}

func (ds *dataset) summary(v Viewer, r core.DateRange, staleDays, upcomingDays int) Summary {
	s := Summary{
		Range:    r,
		Leads:    ds.leadSummary(r, staleDays),
		Visits:   ds.visitSummary(r),
		Upcoming: ds.upcoming(upcomingDays),
	}
	if v.Team {
		s.TopReps = ds.repPerformance(r)
		if len(s.TopReps) > maxTopReps {
			s.TopReps = s.TopReps[:maxTopReps]
		}
	}
	return s
}

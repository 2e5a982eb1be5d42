package lead

import "github.com/ud-systems/UD-Leads-sub001/core"

// Statuses
const (
	StatusNew         = "new"
	StatusContacted   = "contacted"
	StatusQualified   = "qualified"
	StatusNegotiation = "negotiation"
	StatusConverted   = "converted"
	StatusLost        = "lost"
)

var (
	Statuses = []string{StatusNew, StatusContacted, StatusQualified, StatusNegotiation, StatusConverted, StatusLost}

	// transitions lists the statuses reachable from each status.
	// converted is terminal; lost can only be reopened.
	transitions = map[string][]string{
		StatusNew:         {StatusContacted, StatusQualified, StatusLost},
		StatusContacted:   {StatusQualified, StatusNegotiation, StatusLost},
		StatusQualified:   {StatusNegotiation, StatusConverted, StatusLost},
		StatusNegotiation: {StatusConverted, StatusLost},
		StatusLost:        {StatusNew},
	}
)

func IsTerminal(status string) bool {
	return status == StatusConverted || status == StatusLost
}

func CanTransition(from, to string) bool {
	return core.StringIn(to, transitions[from])
}

// NextStatuses returns the statuses a lead in status can move to.
func NextStatuses(status string) []string {
	next := transitions[status]
	if next == nil {
		return []string{}
	}
	return next
}

// OpenStatuses returns the statuses of the leads still in the pipeline.
func OpenStatuses() []string {
	open := make([]string, 0, len(Statuses))
	for _, s := range Statuses {
		if !IsTerminal(s) {
			open = append(open, s)
		}
	}
	return open
}

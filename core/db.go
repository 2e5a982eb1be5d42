package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses "-created_at,name" into orderings.
func ParseOrdering(val string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}

// CleanOrdering drops the orderings on fields that are not allowed.
func CleanOrdering(orderings []DBOrdering, allowed ...string) []DBOrdering {
	if orderings == nil {
		return nil
	}
	cleaned := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if StringIn(ord.Field, allowed) {
			cleaned = append(cleaned, ord)
		}
	}
	return cleaned
}

// Page limits the number of rows returned by a query.
type Page struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

const MaxPageSize = 500

func (p *Page) Clean() {
	if p.Limit <= 0 || p.Limit > MaxPageSize {
		p.Limit = 0
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// Paginate returns the page p of items.
func Paginate[T any](p Page, items []T) []T {
	if p.Offset >= len(items) {
		if p.Offset == 0 {
			return items
		}
		return items[:0]
	}
	items = items[p.Offset:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

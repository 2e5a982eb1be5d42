package dummydb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/backup"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

type (
	// DB keeps every table in memory. One lock guards all tables so deletes can cascade.
	DB struct {
		sync.RWMutex
		tenants     map[string]tenant.Tenant
		users       map[string]user.User
		territories map[string]territory.Territory
		leads       map[string]lead.Lead
		visits      map[string]visit.Visit
		rules       map[string]conversion.Rule
		settings    map[settingKey]setting.Setting
		backups     map[string]storedBackup
	}

	settingKey struct {
		tenantID string
		key      string
	}

	storedBackup struct {
		backup.Backup
		payload []byte
	}
)

func Open() (*DB, error) {
	db := &DB{
		tenants:     make(map[string]tenant.Tenant),
		users:       make(map[string]user.User),
		territories: make(map[string]territory.Territory),
		leads:       make(map[string]lead.Lead),
		visits:      make(map[string]visit.Visit),
		rules:       make(map[string]conversion.Rule),
		settings:    make(map[settingKey]setting.Setting),
		backups:     make(map[string]storedBackup),
	}
	return db, nil
}

// comparer returns -1, 0 or 1.
type comparer[T any] func(a, b T) int

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareTimePtrs(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compareTimes(*a, *b)
}

func compareNumbers[N int | int64 | float64](a, b N) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// sortItems orders items by ordering, falling back to defaults, then by ID for a stable result.
func sortItems[T any](items []T, ordering []core.DBOrdering, defaults []core.DBOrdering, fields map[string]comparer[T], id func(T) string) {
	if len(ordering) == 0 {
		ordering = defaults
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := fields[ord.Field]
			if !ok {
				continue
			}
			if c := cmp(items[i], items[j]); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return id(items[i]) < id(items[j])
	})
}

func containsFold(needle string, haystack ...string) bool {
	needle = strings.ToLower(needle)
	for _, s := range haystack {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

package core

// Scope restricts queries to the records an actor may see.
// An unrestricted scope (no UserID, no TerritoryIDs) covers the whole tenant;
// otherwise a record is visible if it is owned by UserID or lies in one of TerritoryIDs.
type Scope struct {
	TenantID     string
	UserID       string
	TerritoryIDs []string
}

func TenantScope(tenantID string) Scope {
	return Scope{TenantID: tenantID}
}

func (s Scope) Restricted() bool {
	return s.UserID != "" || len(s.TerritoryIDs) > 0
}

// Allows reports whether a record of the scope's tenant, owned by ownerID in territoryID, is visible.
func (s Scope) Allows(ownerID, territoryID string) bool {
	if !s.Restricted() {
		return true
	}
	if s.UserID != "" && ownerID == s.UserID {
		return true
	}
	return territoryID != "" && StringIn(territoryID, s.TerritoryIDs)
}

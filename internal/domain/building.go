package domain

import (
	"database/sql"
)

// Building one physical building (buildings table).
// bbl stays NULL until the address has been resolved against parcel data;
// an unresolved building is never picked up for enrichment.
type Building struct {
	ID            int64          `db:"id"`
	BBL           sql.NullString `db:"bbl"`
	HPDOwnerName  sql.NullString `db:"hpd_owner_name"`  // HPD registration contacts
	DOBOwnerName  sql.NullString `db:"dob_owner_name"`  // DOB permit filings
	CorpOwnerName sql.NullString `db:"corp_owner_name"` // corporate registry
	// LastUpdated is the blocking timestamp: NULL means never enriched,
	// non-NULL starts the cool-down window for every enrichment track.
	LastUpdated sql.NullTime `db:"last_updated"`
	// RegistryChecked is the registry track's own completion timestamp.
	RegistryChecked sql.NullTime `db:"registry_checked"`
}

// OwnersComplete reports whether all three owner sources have resolved.
func (b *Building) OwnersComplete() bool {
	return b.HPDOwnerName.Valid && b.DOBOwnerName.Valid && b.CorpOwnerName.Valid
}

// EnrichmentStats diagnostic counters over the buildings table.
type EnrichmentStats struct {
	Total            int
	MissingBBL       int
	IncompleteOwners int // bbl set, at least one owner column NULL
	InCooldown       int // incomplete but blocked by last_updated
	RegistryPending  int // bbl set, registry_checked NULL
	RegistryStarved  int // registry_checked NULL but last_updated set
}

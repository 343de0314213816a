package repository

import (
	"context"
	"errors"

	"permit-data/internal/domain"
)

// ErrInvalidWindow is returned when a cool-down window of zero or fewer
// days is requested. Rejected before any query is built.
var ErrInvalidWindow = errors.New("enrichment window must be at least 1 day")

// OwnerFields carries the owner columns an enrichment run managed to
// resolve. Nil pointers are left untouched in the store, so a partially
// successful lookup never overwrites earlier data with NULL.
type OwnerFields struct {
	HPDOwnerName  *string
	DOBOwnerName  *string
	CorpOwnerName *string
}

// Empty reports whether no field was resolved at all.
func (f OwnerFields) Empty() bool {
	return f.HPDOwnerName == nil && f.DOBOwnerName == nil && f.CorpOwnerName == nil
}

// BuildingsRepository is the eligibility filter's storage contract.
// Implemented by PostgresBuildingsRepo and, for tests, by
// MemoryBuildingsRepo.
type BuildingsRepository interface {
	// SelectEligible returns ids (ascending) of buildings eligible for the
	// owner enrichment track: bbl resolved, at least one owner column
	// NULL, and not inside the cool-down window. Read only.
	SelectEligible(ctx context.Context, windowDays int) ([]int64, error)

	// SelectEligibleRegistry is the same gate for the registry track:
	// bbl resolved, registry_checked NULL, not inside the cool-down
	// window. The blocking timestamp is shared with the owner track
	// (legacy schema).
	SelectEligibleRegistry(ctx context.Context, windowDays int) ([]int64, error)

	// MarkEnriched writes the resolved owner fields and sets
	// last_updated = now(), starting the cool-down. Returns
	// sql.ErrNoRows when the id does not exist.
	MarkEnriched(ctx context.Context, id int64, fields OwnerFields) error

	// MarkRegistryChecked records registry-track completion: sets
	// registry_checked = now(), writes corp_owner_name when resolved,
	// and advances the shared blocking timestamp.
	MarkRegistryChecked(ctx context.Context, id int64, corpOwner *string) error

	// ResetRegistryEligibility clears last_updated on rows where the
	// registry track never completed (registry_checked IS NULL) but the
	// blocking timestamp is set, re-opening eligibility for all tracks.
	// Compensates for the shared blocking column starving the registry
	// track. Returns the number of rows repaired.
	ResetRegistryEligibility(ctx context.Context) (int64, error)

	// GetBuilding fetches one row; sql.ErrNoRows when absent.
	GetBuilding(ctx context.Context, id int64) (*domain.Building, error)

	// EnrichmentStats returns the diagnostic counters used by
	// cmd/check-buildings.
	EnrichmentStats(ctx context.Context) (*domain.EnrichmentStats, error)

	// ListIncomplete returns up to limit buildings with a bbl and at
	// least one missing owner column, ordered by id, for the backlog
	// export.
	ListIncomplete(ctx context.Context, limit int) ([]*domain.Building, error)
}

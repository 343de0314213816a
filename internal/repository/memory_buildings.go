package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"permit-data/internal/domain"
)

// MemoryBuildingsRepo backs the enrichment service in tests and when no
// database is reachable. Same eligibility semantics as the Postgres repo.
type MemoryBuildingsRepo struct {
	mu        sync.RWMutex
	buildings map[int64]*domain.Building
	nextID    int64

	// Now is swappable so tests can pin the clock.
	Now func() time.Time
}

func NewMemoryBuildingsRepo() *MemoryBuildingsRepo {
	return &MemoryBuildingsRepo{
		buildings: map[int64]*domain.Building{},
		nextID:    1,
		Now:       time.Now,
	}
}

// Put inserts or replaces a building, assigning an id when unset.
// Test seeding helper; the real table is populated by ingestion.
func (r *MemoryBuildingsRepo) Put(b *domain.Building) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == 0 {
		b.ID = r.nextID
		r.nextID++
	} else if b.ID >= r.nextID {
		r.nextID = b.ID + 1
	}
	cp := *b
	r.buildings[cp.ID] = &cp
	return cp.ID
}

var _ BuildingsRepository = (*MemoryBuildingsRepo)(nil)

func incomplete(b *domain.Building) bool {
	return !b.OwnersComplete()
}

func (r *MemoryBuildingsRepo) blocked(b *domain.Building, windowDays int) bool {
	if !b.LastUpdated.Valid {
		return false
	}
	cutoff := r.Now().AddDate(0, 0, -windowDays)
	return !b.LastUpdated.Time.Before(cutoff)
}

func (r *MemoryBuildingsRepo) SelectEligible(_ context.Context, windowDays int) ([]int64, error) {
	if windowDays <= 0 {
		return nil, ErrInvalidWindow
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := []int64{}
	for _, b := range r.buildings {
		if !b.BBL.Valid {
			continue
		}
		if !incomplete(b) {
			continue
		}
		if r.blocked(b, windowDays) {
			continue
		}
		ids = append(ids, b.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *MemoryBuildingsRepo) SelectEligibleRegistry(_ context.Context, windowDays int) ([]int64, error) {
	if windowDays <= 0 {
		return nil, ErrInvalidWindow
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := []int64{}
	for _, b := range r.buildings {
		if !b.BBL.Valid {
			continue
		}
		if b.RegistryChecked.Valid {
			continue
		}
		if r.blocked(b, windowDays) {
			continue
		}
		ids = append(ids, b.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *MemoryBuildingsRepo) MarkEnriched(_ context.Context, id int64, fields OwnerFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buildings[id]
	if !ok {
		return sql.ErrNoRows
	}
	if fields.HPDOwnerName != nil {
		b.HPDOwnerName = sql.NullString{String: *fields.HPDOwnerName, Valid: true}
	}
	if fields.DOBOwnerName != nil {
		b.DOBOwnerName = sql.NullString{String: *fields.DOBOwnerName, Valid: true}
	}
	if fields.CorpOwnerName != nil {
		b.CorpOwnerName = sql.NullString{String: *fields.CorpOwnerName, Valid: true}
	}
	b.LastUpdated = sql.NullTime{Time: r.Now(), Valid: true}
	return nil
}

func (r *MemoryBuildingsRepo) MarkRegistryChecked(_ context.Context, id int64, corpOwner *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buildings[id]
	if !ok {
		return sql.ErrNoRows
	}
	if corpOwner != nil {
		b.CorpOwnerName = sql.NullString{String: *corpOwner, Valid: true}
	}
	now := r.Now()
	b.RegistryChecked = sql.NullTime{Time: now, Valid: true}
	b.LastUpdated = sql.NullTime{Time: now, Valid: true}
	return nil
}

func (r *MemoryBuildingsRepo) ResetRegistryEligibility(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var repaired int64
	for _, b := range r.buildings {
		if !b.RegistryChecked.Valid && b.LastUpdated.Valid {
			b.LastUpdated = sql.NullTime{}
			repaired++
		}
	}
	return repaired, nil
}

func (r *MemoryBuildingsRepo) GetBuilding(_ context.Context, id int64) (*domain.Building, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.buildings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryBuildingsRepo) EnrichmentStats(_ context.Context) (*domain.EnrichmentStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &domain.EnrichmentStats{}
	for _, b := range r.buildings {
		s.Total++
		if !b.BBL.Valid {
			s.MissingBBL++
		}
		if b.BBL.Valid && incomplete(b) {
			s.IncompleteOwners++
			if b.LastUpdated.Valid {
				s.InCooldown++
			}
		}
		if b.BBL.Valid && !b.RegistryChecked.Valid {
			s.RegistryPending++
		}
		if !b.RegistryChecked.Valid && b.LastUpdated.Valid {
			s.RegistryStarved++
		}
	}
	return s, nil
}

func (r *MemoryBuildingsRepo) ListIncomplete(_ context.Context, limit int) ([]*domain.Building, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Building
	for _, b := range r.buildings {
		if b.BBL.Valid && incomplete(b) {
			cp := *b
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

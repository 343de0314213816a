package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"permit-data/internal/repository"
	"permit-data/internal/store"
)

// ErrNoOwnerFields is returned when MarkEnriched is called with nothing
// resolved; an empty write would only burn the cool-down window.
var ErrNoOwnerFields = errors.New("no owner fields to write")

// civicClientInterface and registryClientInterface let tests substitute
// the external lookups.
type civicClientInterface interface {
	LookupHPDOwner(ctx context.Context, bbl string) (*string, error)
	LookupDOBOwner(ctx context.Context, bbl string) (*string, error)
}

type registryClientInterface interface {
	LookupCompany(ctx context.Context, ownerName string) (*string, error)
}

// civicCacheTTL: open-data extracts refresh daily, so a day of caching
// per BBL loses nothing.
const civicCacheTTL = 24 * time.Hour

// EnrichmentRunResult summary of one pipeline run.
type EnrichmentRunResult struct {
	RunID    string
	Track    string
	Selected int
	Enriched int
	Skipped  int // lookup returned nothing, record left eligible
	Failed   int // lookup errored, record left eligible
}

// EnrichmentService is the eligibility filter plus the two enrichment
// pipelines built on top of it.
type EnrichmentService interface {
	// SelectEligible returns building ids due for owner enrichment.
	SelectEligible(ctx context.Context, windowDays int) ([]int64, error)

	// SelectEligibleRegistry returns building ids due for the registry track.
	SelectEligibleRegistry(ctx context.Context, windowDays int) ([]int64, error)

	// MarkEnriched applies the post-enrichment bookkeeping for one building.
	MarkEnriched(ctx context.Context, id int64, fields repository.OwnerFields) error

	// ResetRegistryEligibility repairs registry-track starvation.
	ResetRegistryEligibility(ctx context.Context) (int64, error)

	// RunOwnerEnrichment selects eligible buildings, resolves owner names
	// from civic data and writes them back. limit <= 0 means no limit.
	RunOwnerEnrichment(ctx context.Context, windowDays, limit int) (*EnrichmentRunResult, error)

	// RunRegistryEnrichment is the registry-track pipeline.
	RunRegistryEnrichment(ctx context.Context, windowDays, limit int) (*EnrichmentRunResult, error)
}

var _ EnrichmentService = (*enrichmentService)(nil)

type enrichmentService struct {
	repo   repository.BuildingsRepository
	kv     store.KV // optional; nil disables the civic-response cache
	civic  civicClientInterface
	reg    registryClientInterface
	logger *zap.Logger
}

// NewEnrichmentService creates the service. kv may be nil; civic and reg
// are only required by the Run* pipelines.
func NewEnrichmentService(repo repository.BuildingsRepository, kv store.KV, logger *zap.Logger) *enrichmentService {
	return &enrichmentService{
		repo:   repo,
		kv:     kv,
		logger: logger,
	}
}

// SetCivicClient sets the open-data client.
func (s *enrichmentService) SetCivicClient(client *CivicClient) {
	s.civic = client
}

// SetRegistryClient sets the corporate registry client.
func (s *enrichmentService) SetRegistryClient(client *RegistryClient) {
	s.reg = client
}

// SetCivicClientForTest sets the civic client interface (tests only).
func (s *enrichmentService) SetCivicClientForTest(client civicClientInterface) {
	s.civic = client
}

// SetRegistryClientForTest sets the registry client interface (tests only).
func (s *enrichmentService) SetRegistryClientForTest(client registryClientInterface) {
	s.reg = client
}

func (s *enrichmentService) SelectEligible(ctx context.Context, windowDays int) ([]int64, error) {
	ids, err := s.repo.SelectEligible(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Selected eligible buildings",
		zap.Int("window_days", windowDays),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

func (s *enrichmentService) SelectEligibleRegistry(ctx context.Context, windowDays int) ([]int64, error) {
	ids, err := s.repo.SelectEligibleRegistry(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Selected registry-eligible buildings",
		zap.Int("window_days", windowDays),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

func (s *enrichmentService) MarkEnriched(ctx context.Context, id int64, fields repository.OwnerFields) error {
	if fields.Empty() {
		return ErrNoOwnerFields
	}
	return s.repo.MarkEnriched(ctx, id, fields)
}

func (s *enrichmentService) ResetRegistryEligibility(ctx context.Context) (int64, error) {
	repaired, err := s.repo.ResetRegistryEligibility(ctx)
	if err != nil {
		return 0, err
	}
	if repaired > 0 {
		s.logger.Info("Re-opened eligibility for registry-starved buildings",
			zap.Int64("rows", repaired))
	}
	return repaired, nil
}

// cachedCivicOwners is the redis payload cached per BBL.
type cachedCivicOwners struct {
	HPD *string `json:"hpd"`
	DOB *string `json:"dob"`
}

func (s *enrichmentService) RunOwnerEnrichment(ctx context.Context, windowDays, limit int) (*EnrichmentRunResult, error) {
	if s.civic == nil {
		return nil, errors.New("civic client not configured")
	}

	result := &EnrichmentRunResult{RunID: uuid.NewString(), Track: "owner"}
	log := s.logger.With(zap.String("run_id", result.RunID), zap.String("track", result.Track))

	ids, err := s.repo.SelectEligible(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	result.Selected = len(ids)
	log.Info("Starting owner enrichment run",
		zap.Int("window_days", windowDays),
		zap.Int("selected", result.Selected),
	)

	for _, id := range ids {
		b, err := s.repo.GetBuilding(ctx, id)
		if err != nil {
			// store failure aborts the run; the rows already written stay written
			return result, fmt.Errorf("failed to load building %d: %w", id, err)
		}
		if !b.BBL.Valid {
			result.Skipped++
			continue
		}
		bbl := b.BBL.String

		owners, err := s.lookupCivicOwners(ctx, bbl)
		if err != nil {
			// lookup failures are per-row: log, leave the record eligible,
			// move on (retry policy belongs to the scheduler)
			log.Warn("Civic lookup failed",
				zap.Int64("building_id", id),
				zap.String("bbl", bbl),
				zap.Error(err),
			)
			result.Failed++
			continue
		}

		fields := repository.OwnerFields{}
		if !b.HPDOwnerName.Valid {
			fields.HPDOwnerName = owners.HPD
		}
		if !b.DOBOwnerName.Valid {
			fields.DOBOwnerName = owners.DOB
		}
		if fields.Empty() {
			// nothing new resolved: no write, so the cool-down does not
			// start and the record stays selectable
			result.Skipped++
			continue
		}

		if err := s.repo.MarkEnriched(ctx, id, fields); err != nil {
			return result, fmt.Errorf("failed to mark building %d enriched: %w", id, err)
		}
		result.Enriched++
		log.Debug("Building enriched",
			zap.Int64("building_id", id),
			zap.String("bbl", bbl),
			zap.Bool("hpd_resolved", fields.HPDOwnerName != nil),
			zap.Bool("dob_resolved", fields.DOBOwnerName != nil),
		)
	}

	log.Info("Owner enrichment run finished",
		zap.Int("enriched", result.Enriched),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *enrichmentService) RunRegistryEnrichment(ctx context.Context, windowDays, limit int) (*EnrichmentRunResult, error) {
	if s.reg == nil {
		return nil, errors.New("registry client not configured")
	}

	result := &EnrichmentRunResult{RunID: uuid.NewString(), Track: "registry"}
	log := s.logger.With(zap.String("run_id", result.RunID), zap.String("track", result.Track))

	ids, err := s.repo.SelectEligibleRegistry(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	result.Selected = len(ids)
	log.Info("Starting registry enrichment run",
		zap.Int("window_days", windowDays),
		zap.Int("selected", result.Selected),
	)

	for _, id := range ids {
		b, err := s.repo.GetBuilding(ctx, id)
		if err != nil {
			return result, fmt.Errorf("failed to load building %d: %w", id, err)
		}

		// the registry is searched by owner name, so a building with no
		// resolved owner yet has nothing to look up
		query := ""
		if b.HPDOwnerName.Valid {
			query = b.HPDOwnerName.String
		} else if b.DOBOwnerName.Valid {
			query = b.DOBOwnerName.String
		}
		if query == "" {
			result.Skipped++
			continue
		}

		corp, err := s.reg.LookupCompany(ctx, query)
		if err != nil {
			log.Warn("Registry lookup failed",
				zap.Int64("building_id", id),
				zap.String("query", query),
				zap.Error(err),
			)
			result.Failed++
			continue
		}

		// an empty match still completes the track: the attempt is recorded
		// so the building is not re-queried every run
		if err := s.repo.MarkRegistryChecked(ctx, id, corp); err != nil {
			return result, fmt.Errorf("failed to mark building %d registry-checked: %w", id, err)
		}
		result.Enriched++
	}

	log.Info("Registry enrichment run finished",
		zap.Int("enriched", result.Enriched),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// lookupCivicOwners checks the redis cache before hitting the open-data
// API. Cache errors degrade to a direct lookup.
func (s *enrichmentService) lookupCivicOwners(ctx context.Context, bbl string) (*cachedCivicOwners, error) {
	cacheKey := "civic:owners:" + bbl

	if s.kv != nil {
		if raw, err := s.kv.Get(ctx, cacheKey); err == nil {
			var cached cachedCivicOwners
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		} else if err != store.ErrMiss {
			s.logger.Warn("Civic cache read failed", zap.String("bbl", bbl), zap.Error(err))
		}
	}

	hpd, err := s.civic.LookupHPDOwner(ctx, bbl)
	if err != nil {
		return nil, err
	}
	dob, err := s.civic.LookupDOBOwner(ctx, bbl)
	if err != nil {
		return nil, err
	}

	owners := &cachedCivicOwners{HPD: hpd, DOB: dob}
	if s.kv != nil {
		if raw, err := json.Marshal(owners); err == nil {
			if err := s.kv.Set(ctx, cacheKey, string(raw), civicCacheTTL); err != nil {
				s.logger.Warn("Civic cache write failed", zap.String("bbl", bbl), zap.Error(err))
			}
		}
	}
	return owners, nil
}

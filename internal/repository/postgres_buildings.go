package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"permit-data/internal/domain"
)

var _ BuildingsRepository = (*PostgresBuildingsRepo)(nil)

type PostgresBuildingsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresBuildingsRepo(db *sql.DB) *PostgresBuildingsRepo {
	return &PostgresBuildingsRepo{db: db}
}

// SetLogger sets the logger for this repository (optional, for logging repair operations)
func (r *PostgresBuildingsRepo) SetLogger(logger *zap.Logger) {
	r.logger = logger
}

// incompleteOwners matches rows that still have something to enrich.
const incompleteOwners = "(hpd_owner_name IS NULL OR dob_owner_name IS NULL OR corp_owner_name IS NULL)"

// outsideCooldown is the shared blocking clause. $N is the window in days.
func outsideCooldown(argN int) string {
	return fmt.Sprintf("(last_updated IS NULL OR last_updated < NOW() - ($%d * INTERVAL '1 day'))", argN)
}

func (r *PostgresBuildingsRepo) SelectEligible(ctx context.Context, windowDays int) ([]int64, error) {
	if windowDays <= 0 {
		return nil, ErrInvalidWindow
	}

	q := `
		SELECT id
		FROM buildings
		WHERE bbl IS NOT NULL
		  AND ` + incompleteOwners + `
		  AND ` + outsideCooldown(1) + `
		ORDER BY id`

	return r.selectIDs(ctx, q, windowDays)
}

func (r *PostgresBuildingsRepo) SelectEligibleRegistry(ctx context.Context, windowDays int) ([]int64, error) {
	if windowDays <= 0 {
		return nil, ErrInvalidWindow
	}

	q := `
		SELECT id
		FROM buildings
		WHERE bbl IS NOT NULL
		  AND registry_checked IS NULL
		  AND ` + outsideCooldown(1) + `
		ORDER BY id`

	return r.selectIDs(ctx, q, windowDays)
}

func (r *PostgresBuildingsRepo) selectIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select eligible buildings: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresBuildingsRepo) MarkEnriched(ctx context.Context, id int64, fields OwnerFields) error {
	set := []string{}
	args := []any{}
	argN := 1

	if fields.HPDOwnerName != nil {
		set = append(set, fmt.Sprintf("hpd_owner_name = $%d", argN))
		args = append(args, *fields.HPDOwnerName)
		argN++
	}
	if fields.DOBOwnerName != nil {
		set = append(set, fmt.Sprintf("dob_owner_name = $%d", argN))
		args = append(args, *fields.DOBOwnerName)
		argN++
	}
	if fields.CorpOwnerName != nil {
		set = append(set, fmt.Sprintf("corp_owner_name = $%d", argN))
		args = append(args, *fields.CorpOwnerName)
		argN++
	}
	// last_updated always advances, even when nothing new resolved;
	// this is the only write that starts the cool-down window.
	set = append(set, "last_updated = NOW()")

	q := fmt.Sprintf(`UPDATE buildings SET %s WHERE id = $%d`, strings.Join(set, ", "), argN)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to mark building %d enriched: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresBuildingsRepo) MarkRegistryChecked(ctx context.Context, id int64, corpOwner *string) error {
	var res sql.Result
	var err error
	if corpOwner != nil {
		res, err = r.db.ExecContext(ctx,
			`UPDATE buildings
			 SET corp_owner_name = $1, registry_checked = NOW(), last_updated = NOW()
			 WHERE id = $2`,
			*corpOwner, id)
	} else {
		// lookup came back empty: record the attempt so the row isn't
		// re-queried every run, leave the owner column alone
		res, err = r.db.ExecContext(ctx,
			`UPDATE buildings
			 SET registry_checked = NOW(), last_updated = NOW()
			 WHERE id = $1`,
			id)
	}
	if err != nil {
		return fmt.Errorf("failed to mark building %d registry-checked: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresBuildingsRepo) ResetRegistryEligibility(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE buildings
		 SET last_updated = NULL
		 WHERE registry_checked IS NULL
		   AND last_updated IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset registry eligibility: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if r.logger != nil && affected > 0 {
		r.logger.Info("Cleared blocking timestamp for registry-starved buildings",
			zap.Int64("rows", affected))
	}
	return affected, nil
}

func (r *PostgresBuildingsRepo) GetBuilding(ctx context.Context, id int64) (*domain.Building, error) {
	var b domain.Building
	err := r.db.QueryRowContext(ctx,
		`SELECT id, bbl, hpd_owner_name, dob_owner_name, corp_owner_name,
		        last_updated, registry_checked
		 FROM buildings
		 WHERE id = $1`,
		id).Scan(&b.ID, &b.BBL, &b.HPDOwnerName, &b.DOBOwnerName, &b.CorpOwnerName,
		&b.LastUpdated, &b.RegistryChecked)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get building %d: %w", id, err)
	}
	return &b, nil
}

func (r *PostgresBuildingsRepo) EnrichmentStats(ctx context.Context) (*domain.EnrichmentStats, error) {
	var s domain.EnrichmentStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE bbl IS NULL),
			COUNT(*) FILTER (WHERE bbl IS NOT NULL AND `+incompleteOwners+`),
			COUNT(*) FILTER (WHERE bbl IS NOT NULL AND `+incompleteOwners+` AND last_updated IS NOT NULL),
			COUNT(*) FILTER (WHERE bbl IS NOT NULL AND registry_checked IS NULL),
			COUNT(*) FILTER (WHERE registry_checked IS NULL AND last_updated IS NOT NULL)
		FROM buildings`).Scan(
		&s.Total, &s.MissingBBL, &s.IncompleteOwners,
		&s.InCooldown, &s.RegistryPending, &s.RegistryStarved)
	if err != nil {
		return nil, fmt.Errorf("failed to collect enrichment stats: %w", err)
	}
	return &s, nil
}

func (r *PostgresBuildingsRepo) ListIncomplete(ctx context.Context, limit int) ([]*domain.Building, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, bbl, hpd_owner_name, dob_owner_name, corp_owner_name,
		       last_updated, registry_checked
		FROM buildings
		WHERE bbl IS NOT NULL
		  AND `+incompleteOwners+`
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete buildings: %w", err)
	}
	defer rows.Close()

	var out []*domain.Building
	for rows.Next() {
		var b domain.Building
		if err := rows.Scan(&b.ID, &b.BBL, &b.HPDOwnerName, &b.DOBOwnerName,
			&b.CorpOwnerName, &b.LastUpdated, &b.RegistryChecked); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

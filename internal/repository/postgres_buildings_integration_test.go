//go:build integration
// +build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"permit-data/internal/config"
	"permit-data/internal/database"
)

// test ids live far above anything ingestion produces
const testIDBase = int64(9000000)

func getTestDB(t *testing.T) *sql.DB {
	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "permits"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}

	return db
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func cleanupTestBuildings(t *testing.T, db *sql.DB) {
	_, _ = db.Exec(`DELETE FROM buildings WHERE id >= $1`, testIDBase)
}

// seedTestBuilding inserts a row with an explicit id. lastUpdatedDaysAgo < 0
// leaves last_updated NULL.
func seedTestBuilding(t *testing.T, db *sql.DB, id int64, bbl *string, hpd, dob, corp *string, lastUpdatedDaysAgo int, registryChecked bool) {
	var regClause = "NULL"
	if registryChecked {
		regClause = "NOW()"
	}
	var luClause = "NULL"
	if lastUpdatedDaysAgo >= 0 {
		luClause = "NOW() - ($6 * INTERVAL '1 day')"
	}

	q := `INSERT INTO buildings (id, bbl, hpd_owner_name, dob_owner_name, corp_owner_name, last_updated, registry_checked)
	      VALUES ($1, $2, $3, $4, $5, ` + luClause + `, ` + regClause + `)
	      ON CONFLICT (id) DO UPDATE SET
	        bbl = EXCLUDED.bbl,
	        hpd_owner_name = EXCLUDED.hpd_owner_name,
	        dob_owner_name = EXCLUDED.dob_owner_name,
	        corp_owner_name = EXCLUDED.corp_owner_name,
	        last_updated = EXCLUDED.last_updated,
	        registry_checked = EXCLUDED.registry_checked`

	var err error
	if lastUpdatedDaysAgo >= 0 {
		_, err = db.Exec(q, id, bbl, hpd, dob, corp, lastUpdatedDaysAgo)
	} else {
		_, err = db.Exec(q, id, bbl, hpd, dob, corp)
	}
	require.NoError(t, err)
}

func strp(s string) *string { return &s }

func TestPostgresSelectEligible_Predicate(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()
	defer cleanupTestBuildings(t, db)
	cleanupTestBuildings(t, db)

	repo := NewPostgresBuildingsRepo(db)
	ctx := context.Background()

	// eligible: bbl set, owners incomplete, never enriched
	seedTestBuilding(t, db, testIDBase+1, strp("1000010001"), nil, nil, nil, -1, false)
	// eligible: cool-down expired
	seedTestBuilding(t, db, testIDBase+2, strp("1000010002"), strp("A"), nil, nil, 31, false)
	// blocked: inside cool-down
	seedTestBuilding(t, db, testIDBase+3, strp("1000010003"), strp("A"), nil, nil, 10, false)
	// never eligible: bbl unresolved
	seedTestBuilding(t, db, testIDBase+4, nil, nil, nil, nil, -1, false)
	// never eligible: owners complete
	seedTestBuilding(t, db, testIDBase+5, strp("1000010005"), strp("A"), strp("B"), strp("C"), -1, false)

	ids, err := repo.SelectEligible(ctx, 30)
	require.NoError(t, err)

	var got []int64
	for _, id := range ids {
		if id >= testIDBase {
			got = append(got, id)
		}
	}
	require.Equal(t, []int64{testIDBase + 1, testIDBase + 2}, got)
}

func TestPostgresSelectEligible_InvalidWindow(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewPostgresBuildingsRepo(db)
	_, err := repo.SelectEligible(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestPostgresMarkEnriched_PartialWriteAndCooldown(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()
	defer cleanupTestBuildings(t, db)
	cleanupTestBuildings(t, db)

	repo := NewPostgresBuildingsRepo(db)
	ctx := context.Background()

	id := testIDBase + 10
	seedTestBuilding(t, db, id, strp("1000010010"), nil, strp("KEEP ME"), nil, -1, false)

	err := repo.MarkEnriched(ctx, id, OwnerFields{HPDOwnerName: strp("ACME LLC")})
	require.NoError(t, err)

	b, err := repo.GetBuilding(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ACME LLC", b.HPDOwnerName.String)
	require.Equal(t, "KEEP ME", b.DOBOwnerName.String, "untouched fields keep their values")
	require.False(t, b.CorpOwnerName.Valid, "unresolved fields stay null")
	require.True(t, b.LastUpdated.Valid)

	// fresh timestamp blocks re-selection even though owners are incomplete
	ids, err := repo.SelectEligible(ctx, 30)
	require.NoError(t, err)
	require.NotContains(t, ids, id)
}

func TestPostgresMarkEnriched_UnknownID(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewPostgresBuildingsRepo(db)
	err := repo.MarkEnriched(context.Background(), testIDBase+999999, OwnerFields{HPDOwnerName: strp("X")})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPostgresResetRegistryEligibility(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()
	defer cleanupTestBuildings(t, db)
	cleanupTestBuildings(t, db)

	repo := NewPostgresBuildingsRepo(db)
	ctx := context.Background()

	// starved: blocked but registry never completed
	seedTestBuilding(t, db, testIDBase+20, strp("1000010020"), strp("A"), nil, nil, 5, false)
	// completed registry check: must keep its timestamp
	seedTestBuilding(t, db, testIDBase+21, strp("1000010021"), strp("A"), nil, strp("C"), 5, true)

	repaired, err := repo.ResetRegistryEligibility(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, repaired, int64(1))

	b, err := repo.GetBuilding(ctx, testIDBase+20)
	require.NoError(t, err)
	require.False(t, b.LastUpdated.Valid)

	b, err = repo.GetBuilding(ctx, testIDBase+21)
	require.NoError(t, err)
	require.True(t, b.LastUpdated.Valid)
}

func TestPostgresRegistryTrack(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()
	defer cleanupTestBuildings(t, db)
	cleanupTestBuildings(t, db)

	repo := NewPostgresBuildingsRepo(db)
	ctx := context.Background()

	id := testIDBase + 30
	// owners complete, registry pending: only the registry track wants it
	seedTestBuilding(t, db, id, strp("1000010030"), strp("A"), strp("B"), strp("C"), -1, false)

	ownerIDs, err := repo.SelectEligible(ctx, 30)
	require.NoError(t, err)
	require.NotContains(t, ownerIDs, id)

	regIDs, err := repo.SelectEligibleRegistry(ctx, 30)
	require.NoError(t, err)
	require.Contains(t, regIDs, id)

	require.NoError(t, repo.MarkRegistryChecked(ctx, id, strp("ACME LLC (DE)")))

	b, err := repo.GetBuilding(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ACME LLC (DE)", b.CorpOwnerName.String)
	require.True(t, b.RegistryChecked.Valid)
	require.True(t, b.LastUpdated.Valid)

	regIDs, err = repo.SelectEligibleRegistry(ctx, 30)
	require.NoError(t, err)
	require.NotContains(t, regIDs, id)
}

func TestPostgresEnrichmentStats(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()
	defer cleanupTestBuildings(t, db)
	cleanupTestBuildings(t, db)

	repo := NewPostgresBuildingsRepo(db)
	ctx := context.Background()

	before, err := repo.EnrichmentStats(ctx)
	require.NoError(t, err)

	seedTestBuilding(t, db, testIDBase+40, nil, nil, nil, nil, -1, false)
	seedTestBuilding(t, db, testIDBase+41, strp("1000010041"), nil, nil, nil, -1, false)
	seedTestBuilding(t, db, testIDBase+42, strp("1000010042"), strp("A"), nil, nil, 5, false)

	after, err := repo.EnrichmentStats(ctx)
	require.NoError(t, err)
	require.Equal(t, before.Total+3, after.Total)
	require.Equal(t, before.MissingBBL+1, after.MissingBBL)
	require.Equal(t, before.IncompleteOwners+2, after.IncompleteOwners)
	require.Equal(t, before.InCooldown+1, after.InCooldown)
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/xuri/excelize/v2"

	"permit-data/internal/config"
	"permit-data/internal/database"
	"permit-data/internal/domain"
	"permit-data/internal/repository"
)

// Ad-hoc diagnostic over the buildings table: enrichment-state counters,
// per-building detail, permit-activity breakdown by borough, and an
// optional xlsx backlog export for manual review.
func main() {
	var ids = flag.String("ids", "", "Comma-separated building ids to show in detail (e.g., '101,102')")
	var showPermits = flag.Bool("permits", false, "With -ids, also list recent permits for each building")
	var borough = flag.String("borough", "", "Count incomplete buildings with permit activity in this borough")
	var xlsxOut = flag.String("xlsx", "", "Write the incomplete-buildings backlog to this .xlsx file")
	var limit = flag.Int("limit", 500, "Max rows in the backlog export")
	flag.Parse()

	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	repo := repository.NewPostgresBuildingsRepo(db)
	ctx := context.Background()

	stats, err := repo.EnrichmentStats(ctx)
	if err != nil {
		log.Fatalf("Failed to collect stats: %v", err)
	}

	fmt.Println("Enrichment state:")
	fmt.Printf("  total buildings:        %d\n", stats.Total)
	fmt.Printf("  bbl unresolved:         %d\n", stats.MissingBBL)
	fmt.Printf("  incomplete owners:      %d\n", stats.IncompleteOwners)
	fmt.Printf("  of those, in cool-down: %d\n", stats.InCooldown)
	fmt.Printf("  registry pending:       %d\n", stats.RegistryPending)
	fmt.Printf("  registry starved:       %d\n", stats.RegistryStarved)
	if stats.RegistryStarved > 0 {
		fmt.Println("\n  NOTE: starved rows never become registry-eligible; run reset-track to repair")
	}

	if *ids != "" {
		fmt.Println("\nBuilding detail:")
		fmt.Println("ID | BBL | HPD Owner | DOB Owner | Corp Owner | Last Updated | Registry Checked")
		fmt.Println("---|-----|-----------|-----------|------------|--------------|------------------")
		for _, raw := range strings.Split(*ids, ",") {
			var id int64
			if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &id); err != nil {
				log.Printf("Bad id %q: %v", raw, err)
				continue
			}
			b, err := repo.GetBuilding(ctx, id)
			if err == sql.ErrNoRows {
				fmt.Printf("%d | (not found)\n", id)
				continue
			}
			if err != nil {
				log.Fatalf("Query error: %v", err)
			}
			fmt.Printf("%d | %s | %s | %s | %s | %s | %s\n",
				b.ID, nullStr(b.BBL), nullStr(b.HPDOwnerName), nullStr(b.DOBOwnerName),
				nullStr(b.CorpOwnerName), nullTime(b.LastUpdated), nullTime(b.RegistryChecked))

			if *showPermits && b.BBL.Valid {
				permits, err := recentPermits(ctx, db, b.BBL.String)
				if err != nil {
					log.Printf("Permit query error for bbl %s: %v", b.BBL.String, err)
					continue
				}
				for _, p := range permits {
					fmt.Printf("    permit %s | %s | %s | %s | issued %s\n",
						p.PermitNumber, nullStr(p.PermitType), nullStr(p.Borough),
						nullStr(p.ZipCode), nullTime(p.IssuedAt))
				}
			}
		}
	}

	if *borough != "" {
		var count int
		err := db.QueryRowContext(ctx, `
			SELECT COUNT(DISTINCT b.id)
			FROM buildings b
			JOIN permits p ON p.bbl = b.bbl
			WHERE b.bbl IS NOT NULL
			  AND (b.hpd_owner_name IS NULL OR b.dob_owner_name IS NULL OR b.corp_owner_name IS NULL)
			  AND p.borough = $1
		`, *borough).Scan(&count)
		if err != nil {
			log.Fatalf("Borough query error: %v", err)
		}
		fmt.Printf("\nIncomplete buildings with permit activity in %s: %d\n", *borough, count)
	}

	if *xlsxOut != "" {
		backlog, err := repo.ListIncomplete(ctx, *limit)
		if err != nil {
			log.Fatalf("Failed to list backlog: %v", err)
		}
		if err := writeBacklogExcel(*xlsxOut, backlog); err != nil {
			log.Fatalf("Failed to write %s: %v", *xlsxOut, err)
		}
		fmt.Printf("\nWrote %d backlog rows to %s\n", len(backlog), *xlsxOut)
	}
}

var backlogHeader = []string{
	"ID", "BBL", "HPD Owner", "DOB Owner", "Corp Owner", "Last Updated", "Registry Checked",
}

func writeBacklogExcel(path string, backlog []*domain.Building) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Enrichment Backlog"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range backlogHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for row, b := range backlog {
		values := []any{
			b.ID, nullStr(b.BBL), nullStr(b.HPDOwnerName), nullStr(b.DOBOwnerName),
			nullStr(b.CorpOwnerName), nullTime(b.LastUpdated), nullTime(b.RegistryChecked),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	return f.SaveAs(path)
}

func recentPermits(ctx context.Context, db *sql.DB, bbl string) ([]*domain.Permit, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, bbl, permit_number, permit_type, borough, zip_code, issued_at
		FROM permits
		WHERE bbl = $1
		ORDER BY issued_at DESC NULLS LAST
		LIMIT 10`, bbl)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Permit
	for rows.Next() {
		var p domain.Permit
		if err := rows.Scan(&p.ID, &p.BBL, &p.PermitNumber, &p.PermitType,
			&p.Borough, &p.ZipCode, &p.IssuedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return "NULL"
}

func nullTime(nt sql.NullTime) string {
	if nt.Valid {
		return nt.Time.Format(time.RFC3339)
	}
	return "NULL"
}

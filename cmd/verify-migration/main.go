package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"permit-data/internal/config"
	"permit-data/internal/database"
)

// Columns the enrichment tooling depends on. A missing one means the
// migrations under migrations/ have not all been applied.
var requiredColumns = map[string][]string{
	"buildings": {
		"id", "bbl",
		"hpd_owner_name", "dob_owner_name", "corp_owner_name",
		"last_updated", "registry_checked",
	},
	"permits": {
		"id", "bbl", "permit_number", "permit_type", "borough", "zip_code", "issued_at",
	},
}

func main() {
	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	ok := true
	for table, columns := range requiredColumns {
		for _, column := range columns {
			var exists bool
			err := db.QueryRow(`
				SELECT EXISTS (
					SELECT 1
					FROM information_schema.columns
					WHERE table_name = $1
					  AND column_name = $2
				)
			`, table, column).Scan(&exists)
			if err != nil {
				log.Fatalf("Failed to check %s.%s: %v", table, column, err)
			}
			if !exists {
				fmt.Printf("MISSING: %s.%s\n", table, column)
				ok = false
			}
		}
	}

	if !ok {
		log.Fatal("Schema verification FAILED — apply the pending migrations")
	}

	fmt.Println("All required columns exist")

	// Print the buildings table structure for the record
	fmt.Println("\n=== buildings table structure ===")
	rows, err := db.Query(`
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_name = 'buildings'
		ORDER BY ordinal_position
	`)
	if err != nil {
		log.Fatalf("Failed to query columns: %v", err)
	}
	defer rows.Close()

	fmt.Println("Column Name | Data Type | Nullable | Default")
	fmt.Println("------------|-----------|----------|---------")
	for rows.Next() {
		var colName, dataType, nullable, defaultValue sql.NullString
		if err := rows.Scan(&colName, &dataType, &nullable, &defaultValue); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}
		fmt.Printf("%s | %s | %s | %s\n",
			colName.String, dataType.String, nullable.String, defaultValue.String)
	}
}

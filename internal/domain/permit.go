package domain

import (
	"database/sql"
)

// Permit one issued permit (permits table), joined to buildings on bbl by
// the diagnostic tooling. Ingestion of permits is owned elsewhere.
type Permit struct {
	ID           int64          `db:"id"`
	BBL          sql.NullString `db:"bbl"`
	PermitNumber string         `db:"permit_number"`
	PermitType   sql.NullString `db:"permit_type"`
	Borough      sql.NullString `db:"borough"`
	ZipCode      sql.NullString `db:"zip_code"`
	IssuedAt     sql.NullTime   `db:"issued_at"`
}

// Package records provides the client-side persistence layer for the cached
// mirrors of remote rows (companies, sales, lots, contacts, documents and
// categories).
//
// # Overview
//
// Each partition is a SQLite table of (id, parent_id, updated_at, data) where
// data is the record JSON. parent_id is copied from the partition's foreign
// key so children can be range-scanned; other indexes are expression indexes
// over json_extract and must be declared on models.Partition.
//
// Key Types
//
//   - type Repository: contract used by the sync services
//   - type SQLiteRepository: SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	repo := records.NewSQLiteRepository(db)
//	_ = records.Put(ctx, repo, models.Lots, lot)
//	lot, _ := records.GetAs[models.Lot](ctx, repo, models.Lots, id)
//	lots, _ := records.QueryAs[models.Lot](ctx, repo, models.Lots, models.IndexParent, saleID)
//	active, _ := records.QueryAs[models.Sale](ctx, repo, models.Sales, "status", "active")
package records

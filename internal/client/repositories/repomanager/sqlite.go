// Package repomanager provides the SQLite RepositoryManager used by the
// client services.
package repomanager

import (
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/conflicts"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/photos"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/lotkeeper/internal/dbx"
)

type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Records(db dbx.DBTX) records.Repository {
	return records.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Photos(db dbx.DBTX) photos.Repository {
	return photos.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Blobs(db dbx.DBTX) blobs.Repository {
	return blobs.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Outbox(db dbx.DBTX) outbox.Repository {
	return outbox.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Conflicts(db dbx.DBTX) conflicts.Repository {
	return conflicts.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

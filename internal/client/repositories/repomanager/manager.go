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

// RepositoryManager vends local repositories bound to a DBTX, so services
// can run several repositories inside one transaction.
type RepositoryManager interface {
	Records(db dbx.DBTX) records.Repository
	Photos(db dbx.DBTX) photos.Repository
	Blobs(db dbx.DBTX) blobs.Repository
	Outbox(db dbx.DBTX) outbox.Repository
	Conflicts(db dbx.DBTX) conflicts.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

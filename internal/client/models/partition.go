package models

import "slices"

// IndexParent is the index name that selects records by their parent FK.
const IndexParent = "parent"

// Partition describes where a record type lives locally and remotely.
type Partition struct {
	// Table is the local SQLite table.
	Table string
	// Remote is the remote table name, also used in outbox entries.
	Remote string
	// Parent is the JSON key of the parent foreign key, empty for roots.
	Parent string
	// Indexes lists extra JSON keys accepted by QueryByIndex.
	Indexes []string
}

// HasIndex reports whether name can be used for an index query.
func (p Partition) HasIndex(name string) bool {
	if name == IndexParent {
		return p.Parent != ""
	}
	return slices.Contains(p.Indexes, name)
}

var (
	Companies  = Partition{Table: "companies", Remote: "company"}
	Sales      = Partition{Table: "sales", Remote: "sale", Parent: "company_id", Indexes: []string{"status"}}
	Lots       = Partition{Table: "lots", Remote: "lot", Parent: "sale_id", Indexes: []string{"lot_number"}}
	Contacts   = Partition{Table: "contacts", Remote: "contact", Parent: "company_id"}
	Documents  = Partition{Table: "documents", Remote: "document", Parent: "company_id", Indexes: []string{"sale_id"}}
	Categories = Partition{Table: "categories", Remote: "category", Parent: "company_id"}

	// Photos is kept in its own typed table; see repositories/photos.
	Photos = Partition{Table: "photos", Remote: "photo", Parent: "lot_id"}
)

// PullOrder lists every partition in dependency order: owners before
// children, photo metadata after lots.
var PullOrder = []Partition{Companies, Sales, Lots, Photos, Contacts, Documents, Categories}

// RecordPartitions are the partitions stored by the generic records repository.
var RecordPartitions = []Partition{Companies, Sales, Lots, Contacts, Documents, Categories}

// PartitionByRemote finds a partition by its remote table name.
func PartitionByRemote(remote string) (Partition, bool) {
	for _, p := range PullOrder {
		if p.Remote == remote {
			return p, true
		}
	}
	return Partition{}, false
}

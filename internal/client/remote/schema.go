package remote

import (
	"fmt"
	"slices"
)

// columns whitelists the writable columns per remote table. updated_at is
// always set by the remote store.
var columns = map[string][]string{
	"company":  {"id", "name", "email", "phone", "address", "created_at", "updated_at"},
	"sale":     {"id", "company_id", "name", "status", "location", "start_date", "end_date", "created_at", "updated_at"},
	"lot":      {"id", "sale_id", "lot_number", "title", "description", "category_id", "estimate_low", "estimate_high", "created_at", "updated_at"},
	"contact":  {"id", "company_id", "name", "email", "phone", "role", "created_at", "updated_at"},
	"document": {"id", "company_id", "sale_id", "title", "file_path", "mime_type", "created_at", "updated_at"},
	"category": {"id", "company_id", "name", "created_at", "updated_at"},
	"photo":    {"id", "lot_id", "file_path", "file_name", "is_primary", "created_at", "updated_at"},
}

func tableColumns(table string) ([]string, error) {
	cols, ok := columns[table]
	if !ok {
		return nil, fmt.Errorf("unknown remote table %q", table)
	}
	return cols, nil
}

func checkColumn(table, column string) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}
	if !slices.Contains(cols, column) {
		return fmt.Errorf("unknown column %q of %s", column, table)
	}
	return nil
}

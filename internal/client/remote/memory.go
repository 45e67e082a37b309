package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
)

type row map[string]any

// MemoryStore is an in-process Store. It mirrors the PostgreSQL semantics
// the sync engine relies on: upserting inserts, updated_at stamped on write,
// ErrNotFound from updates of missing rows.
type MemoryStore struct {
	mu      sync.Mutex
	tables  map[string]map[string]row
	offline bool
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]row),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetOffline makes every call fail with common.ErrUnavailable.
func (m *MemoryStore) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// SetClock replaces the time source used to stamp updated_at.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) check() error {
	if m.offline {
		return fmt.Errorf("%w: memory store offline", common.ErrUnavailable)
	}
	return nil
}

func decodeRow(table string, data []byte) (row, error) {
	cols, err := tableColumns(table)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var in row
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}
	id, _ := in["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", common.ErrInvalidRecord)
	}

	out := make(row, len(cols))
	for _, c := range cols {
		if v, ok := in[c]; ok {
			out[c] = v
		}
	}
	return out, nil
}

func (m *MemoryStore) stamp(r row, created bool) {
	now := m.now().Format(time.RFC3339Nano)
	r["updated_at"] = now
	if created {
		if ts, ok := r["created_at"].(string); !ok || ts == "" || ts == "0001-01-01T00:00:00Z" {
			r["created_at"] = now
		}
	}
}

func (m *MemoryStore) table(name string) map[string]row {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string]row)
		m.tables[name] = t
	}
	return t
}

// Seed stores rows as given, keeping their updated_at. Used to prepare
// remote state in tests and in the demo mode.
func (m *MemoryStore) Seed(table string, records ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		r, err := decodeRow(table, data)
		if err != nil {
			return err
		}
		if ts, _ := r["updated_at"].(string); ts == "" || ts == "0001-01-01T00:00:00Z" {
			m.stamp(r, true)
		}
		m.table(table)[r["id"].(string)] = r
	}
	return nil
}

// Row returns the stored row as JSON, or nil.
func (m *MemoryStore) Row(table, id string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.tables[table][id]
	if !ok {
		return nil
	}
	data, _ := json.Marshal(r)
	return data
}

// Len returns the number of rows in table.
func (m *MemoryStore) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check()
}

func (m *MemoryStore) Now(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return time.Time{}, err
	}
	return m.now().UTC(), nil
}

func (m *MemoryStore) Insert(ctx context.Context, table string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	r, err := decodeRow(table, data)
	if err != nil {
		return err
	}
	t := m.table(table)
	id := r["id"].(string)
	if old, ok := t[id]; ok {
		r["created_at"] = old["created_at"]
		m.stamp(r, false)
	} else {
		m.stamp(r, true)
	}
	t[id] = r
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, table string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	r, err := decodeRow(table, data)
	if err != nil {
		return err
	}
	t := m.table(table)
	id := r["id"].(string)
	old, ok := t[id]
	if !ok {
		return fmt.Errorf("update %s %s: %w", table, id, common.ErrNotFound)
	}
	r["created_at"] = old["created_at"]
	m.stamp(r, false)
	t[id] = r
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if _, err := tableColumns(table); err != nil {
		return err
	}
	delete(m.table(table), id)
	return nil
}

func updatedAt(r row) time.Time {
	s, _ := r["updated_at"].(string)
	ts, _ := time.Parse(time.RFC3339Nano, s)
	return ts
}

func createdAt(r row) time.Time {
	s, _ := r["created_at"].(string)
	ts, _ := time.Parse(time.RFC3339Nano, s)
	return ts
}

func matches(r row, f Filter) bool {
	v, ok := r[f.Column]
	if !ok || v == nil {
		return false
	}
	got := fmt.Sprint(v)
	for _, want := range f.Values {
		if fmt.Sprint(want) == got {
			return true
		}
	}
	return false
}

func (m *MemoryStore) selectRows(table string, keep func(row) bool) []row {
	var out []row
	for _, r := range m.tables[table] {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *MemoryStore) Fetch(ctx context.Context, q Query) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	if _, err := tableColumns(q.Table); err != nil {
		return nil, err
	}
	for _, f := range q.Filters {
		if err := checkColumn(q.Table, f.Column); err != nil {
			return nil, err
		}
	}

	rows := m.selectRows(q.Table, func(r row) bool {
		if !q.Since.IsZero() && !updatedAt(r).After(q.Since) {
			return false
		}
		for _, f := range q.Filters {
			if !matches(r, f) {
				return false
			}
		}
		return true
	})
	sort.Slice(rows, func(i, j int) bool {
		ti, tj := updatedAt(rows[i]), updatedAt(rows[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return rows[i]["id"].(string) < rows[j]["id"].(string)
	})

	result := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		result = append(result, data)
	}
	return result, nil
}

func lotNumber(r row) (int64, bool) {
	switch v := r["lot_number"].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func (m *MemoryStore) lotsOf(saleID string) []row {
	return m.selectRows("lot", func(r row) bool { return r["sale_id"] == saleID })
}

func (m *MemoryStore) MaxLotNumber(ctx context.Context, saleID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, false, err
	}

	var (
		best  int64
		found bool
	)
	for _, r := range m.lotsOf(saleID) {
		n, ok := lotNumber(r)
		if !ok {
			continue
		}
		if !found || n > best {
			best, found = n, true
		}
	}
	return best, found, nil
}

func (m *MemoryStore) TemporaryLots(ctx context.Context, saleID string) ([]models.Lot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	var rows []row
	for _, r := range m.lotsOf(saleID) {
		if n, ok := lotNumber(r); ok && models.IsTemporaryLotNumber(n) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		ci, cj := createdAt(rows[i]), createdAt(rows[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return rows[i]["id"].(string) < rows[j]["id"].(string)
	})

	lots := make([]models.Lot, 0, len(rows))
	for _, r := range rows {
		data, _ := json.Marshal(r)
		var l models.Lot
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("failed to decode lot: %w", err)
		}
		lots = append(lots, l)
	}
	return lots, nil
}

func (m *MemoryStore) LotNumberExists(ctx context.Context, saleID string, number int64, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return false, err
	}

	for _, r := range m.lotsOf(saleID) {
		if n, ok := lotNumber(r); ok && n == number && r["id"] != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) SetLotNumber(ctx context.Context, lotID string, number int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	r, ok := m.tables["lot"][lotID]
	if !ok {
		return fmt.Errorf("lot %s: %w", lotID, common.ErrNotFound)
	}
	r["lot_number"] = json.Number(strconv.FormatInt(number, 10))
	m.stamp(r, false)
	return nil
}

func (m *MemoryStore) SalesWithTemporaryLots(ctx context.Context, companyID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	var ids []string
	for _, r := range m.tables["lot"] {
		n, ok := lotNumber(r)
		if !ok || !models.IsTemporaryLotNumber(n) {
			continue
		}
		saleID, _ := r["sale_id"].(string)
		sale, ok := m.tables["sale"][saleID]
		if !ok || sale["company_id"] != companyID || slices.Contains(ids, saleID) {
			continue
		}
		ids = append(ids, saleID)
	}
	sort.Strings(ids)
	return ids, nil
}

// MemoryObjects is an in-process ObjectStorage.
type MemoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	offline bool
}

func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{objects: make(map[string][]byte)}
}

// SetOffline makes every call fail with common.ErrUnavailable.
func (m *MemoryObjects) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Has reports whether key is stored.
func (m *MemoryObjects) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *MemoryObjects) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return fmt.Errorf("%w: memory objects offline", common.ErrUnavailable)
	}
	m.objects[key] = bytes.Clone(data)
	return nil
}

func (m *MemoryObjects) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, fmt.Errorf("%w: memory objects offline", common.ErrUnavailable)
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, common.ErrNotFound)
	}
	return bytes.Clone(data), nil
}

func (m *MemoryObjects) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return fmt.Errorf("%w: memory objects offline", common.ErrUnavailable)
	}
	delete(m.objects, key)
	return nil
}

var (
	_ Store         = (*MemoryStore)(nil)
	_ Store         = (*PostgresStore)(nil)
	_ ObjectStorage = (*MemoryObjects)(nil)
	_ ObjectStorage = (*S3Storage)(nil)
)

package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
)

// Put marshals v and upserts it into p.
func Put(ctx context.Context, r Repository, p models.Partition, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", p.Table, err)
	}
	return r.Upsert(ctx, p, data)
}

// GetAs loads a record of p and decodes it into T.
func GetAs[T any](ctx context.Context, r Repository, p models.Partition, id string) (*T, error) {
	data, err := r.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", p.Table, id, err)
	}
	return &v, nil
}

// QueryAs runs QueryByIndex and decodes every row into T.
func QueryAs[T any](ctx context.Context, r Repository, p models.Partition, index string, value any) ([]T, error) {
	rows, err := r.QueryByIndex(ctx, p, index, value)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](p, rows)
}

// ListAs returns every record of p decoded into T.
func ListAs[T any](ctx context.Context, r Repository, p models.Partition) ([]T, error) {
	rows, err := r.List(ctx, p)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](p, rows)
}

func decodeAll[T any](p models.Partition, rows []json.RawMessage) ([]T, error) {
	result := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := json.Unmarshal(row, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", p.Table, err)
		}
		result = append(result, v)
	}
	return result, nil
}

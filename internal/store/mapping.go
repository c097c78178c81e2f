package store

import (
	"context"
	"fmt"
)

// MappingRow is one persisted SKU→MSKU mapping entry. SKU may be a
// comma-joined combo key; it is stored exactly as uploaded and
// normalized only when the in-memory index is built.
type MappingRow struct {
	SKU  string `json:"sku"`
	MSKU string `json:"msku"`
}

var mappingColumns = []string{"sku", "msku"}

// ReplaceMappings atomically replaces the persisted mapping snapshot.
func (s *Store) ReplaceMappings(ctx context.Context, rows []MappingRow) error {
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = []interface{}{r.SKU, r.MSKU}
	}
	return s.replaceSnapshot(ctx, "sku_mappings", mappingColumns, values)
}

// LoadMappings returns the persisted mapping rows in upload-file order.
// The position column pins that order; a bare SELECT would not, since
// Postgres makes no promise about scan order. Last-write-wins indexing
// depends on it.
func (s *Store) LoadMappings(ctx context.Context) ([]MappingRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT sku, msku FROM sku_mappings ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}
	defer rows.Close()

	var out []MappingRow
	for rows.Next() {
		var r MappingRow
		if err := rows.Scan(&r.SKU, &r.MSKU); err != nil {
			return nil, fmt.Errorf("scan mapping row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

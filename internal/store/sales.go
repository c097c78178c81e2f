package store

import (
	"context"
	"fmt"
	"time"

	"github.com/wareloop/skulink/internal/sku"
)

// SalesRow is one resolved sales record as persisted in the snapshot.
type SalesRow struct {
	OrderID  string    `json:"orderId"`
	Date     time.Time `json:"date"`
	SKU      string    `json:"sku"`
	MSKU     string    `json:"msku"`
	Quantity int64     `json:"quantity"`
	Price    float64   `json:"price"`
	Status   string    `json:"status"`
}

// MSKUSummary aggregates sales for one master SKU.
type MSKUSummary struct {
	MSKU     string  `json:"msku"`
	Orders   int64   `json:"orders"`
	Quantity int64   `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// DailySummary aggregates sales for one calendar day.
type DailySummary struct {
	Date     time.Time `json:"date"`
	Orders   int64     `json:"orders"`
	Quantity int64     `json:"quantity"`
	Revenue  float64   `json:"revenue"`
}

// StatusSummary aggregates sales by order status.
type StatusSummary struct {
	Status   string  `json:"status"`
	Orders   int64   `json:"orders"`
	Quantity int64   `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// Totals describes the whole current snapshot.
type Totals struct {
	Rows          int64   `json:"rows"`
	Quantity      int64   `json:"quantity"`
	Revenue       float64 `json:"revenue"`
	DistinctMSKUs int64   `json:"distinctMskus"`
	UnmappedRows  int64   `json:"unmappedRows"`
}

var salesColumns = []string{"order_id", "sale_date", "sku", "msku", "quantity", "price", "status"}

// ReplaceSales atomically replaces the sales snapshot with rows.
// Re-running an ingest therefore leaves only the latest file's rows.
func (s *Store) ReplaceSales(ctx context.Context, rows []SalesRow) error {
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = []interface{}{r.OrderID, r.Date, r.SKU, r.MSKU, r.Quantity, r.Price, r.Status}
	}
	return s.replaceSnapshot(ctx, "sales", salesColumns, values)
}

// unmappedFilter excludes rows carrying the batch-path sentinel when the
// caller asks for mapped rows only.
func unmappedFilter(exclude bool) (string, []interface{}) {
	if !exclude {
		return "", nil
	}
	return " WHERE msku <> $1", []interface{}{sku.Unknown}
}

// SummaryByMSKU returns per-MSKU aggregates ordered by revenue.
// Unmapped rows are retained under the UNKNOWN sentinel unless excluded.
func (s *Store) SummaryByMSKU(ctx context.Context, excludeUnmapped bool, limit int) ([]MSKUSummary, error) {
	where, args := unmappedFilter(excludeUnmapped)
	q := `SELECT msku, COUNT(*), COALESCE(SUM(quantity),0), COALESCE(SUM(quantity*price),0)
		FROM sales` + where + `
		GROUP BY msku
		ORDER BY 4 DESC, msku`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("summary by msku: %w", err)
	}
	defer rows.Close()

	var out []MSKUSummary
	for rows.Next() {
		var m MSKUSummary
		if err := rows.Scan(&m.MSKU, &m.Orders, &m.Quantity, &m.Revenue); err != nil {
			return nil, fmt.Errorf("scan msku summary: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SummaryByDay returns per-day aggregates in date order.
func (s *Store) SummaryByDay(ctx context.Context, excludeUnmapped bool) ([]DailySummary, error) {
	where, args := unmappedFilter(excludeUnmapped)
	q := `SELECT sale_date, COUNT(*), COALESCE(SUM(quantity),0), COALESCE(SUM(quantity*price),0)
		FROM sales` + where + `
		GROUP BY sale_date
		ORDER BY sale_date`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("summary by day: %w", err)
	}
	defer rows.Close()

	var out []DailySummary
	for rows.Next() {
		var d DailySummary
		if err := rows.Scan(&d.Date, &d.Orders, &d.Quantity, &d.Revenue); err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SummaryByStatus returns aggregates grouped by order status.
func (s *Store) SummaryByStatus(ctx context.Context, excludeUnmapped bool) ([]StatusSummary, error) {
	where, args := unmappedFilter(excludeUnmapped)
	q := `SELECT status, COUNT(*), COALESCE(SUM(quantity),0), COALESCE(SUM(quantity*price),0)
		FROM sales` + where + `
		GROUP BY status
		ORDER BY status`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("summary by status: %w", err)
	}
	defer rows.Close()

	var out []StatusSummary
	for rows.Next() {
		var st StatusSummary
		if err := rows.Scan(&st.Status, &st.Orders, &st.Quantity, &st.Revenue); err != nil {
			return nil, fmt.Errorf("scan status summary: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SnapshotTotals returns overall counts for the current snapshot.
func (s *Store) SnapshotTotals(ctx context.Context) (Totals, error) {
	var t Totals
	q := `SELECT COUNT(*),
		COALESCE(SUM(quantity),0),
		COALESCE(SUM(quantity*price),0),
		COUNT(DISTINCT msku),
		COUNT(*) FILTER (WHERE msku = $1)
		FROM sales`
	if err := s.pool.QueryRow(ctx, q, sku.Unknown).Scan(
		&t.Rows, &t.Quantity, &t.Revenue, &t.DistinctMSKUs, &t.UnmappedRows,
	); err != nil {
		return Totals{}, fmt.Errorf("snapshot totals: %w", err)
	}
	return t, nil
}

// ListSales pages through the snapshot in date order.
func (s *Store) ListSales(ctx context.Context, limit, offset int) ([]SalesRow, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT order_id, sale_date, sku, msku, quantity, price, status
		FROM sales
		ORDER BY sale_date, order_id
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var out []SalesRow
	for rows.Next() {
		var r SalesRow
		if err := rows.Scan(&r.OrderID, &r.Date, &r.SKU, &r.MSKU, &r.Quantity, &r.Price, &r.Status); err != nil {
			return nil, fmt.Errorf("scan sales row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

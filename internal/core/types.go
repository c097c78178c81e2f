// Package core implements the ingest pipeline shared by the dashboard
// handlers: read a tabular upload, resolve SKUs against the current
// mapping index, and replace the persisted snapshot. It has no HTTP
// dependencies.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/wareloop/skulink/internal/store"
)

// ErrInvalidInput marks errors caused by the uploaded file rather than
// the system: missing columns, unparseable cells, unreadable data.
// Handlers map these to 400 responses; everything else is a 500.
var ErrInvalidInput = errors.New("invalid input")

// SalesColumns are the columns a sales upload must carry. A file
// missing any of them is rejected before any row is processed.
var SalesColumns = []string{"OrderID", "Date", "SKU", "Quantity", "Price", "Status"}

// MappingColumns are the columns a mapping upload must carry.
var MappingColumns = []string{"SKU", "MSKU"}

// Snapshots is the persistence surface the service needs. *store.Store
// implements it; tests substitute an in-memory fake.
type Snapshots interface {
	ReplaceSales(ctx context.Context, rows []store.SalesRow) error
	ReplaceMappings(ctx context.Context, rows []store.MappingRow) error
	LoadMappings(ctx context.Context) ([]store.MappingRow, error)
	SummaryByMSKU(ctx context.Context, excludeUnmapped bool, limit int) ([]store.MSKUSummary, error)
	SummaryByDay(ctx context.Context, excludeUnmapped bool) ([]store.DailySummary, error)
	SummaryByStatus(ctx context.Context, excludeUnmapped bool) ([]store.StatusSummary, error)
	SnapshotTotals(ctx context.Context) (store.Totals, error)
	ListSales(ctx context.Context, limit, offset int) ([]store.SalesRow, error)
}

// SalesIngestResult summarizes one completed sales ingest.
type SalesIngestResult struct {
	IngestID string        `json:"ingestId"`
	FileName string        `json:"fileName"`
	Rows     int           `json:"rows"`
	Unmapped int           `json:"unmapped"`
	Duration time.Duration `json:"duration"`
}

// MappingIngestResult summarizes one completed mapping ingest.
type MappingIngestResult struct {
	IngestID   string        `json:"ingestId"`
	FileName   string        `json:"fileName"`
	Rows       int           `json:"rows"`
	Singles    int           `json:"singles"`
	Combos     int           `json:"combos"`
	Overwrites int           `json:"overwrites"`
	EmptyMSKUs int           `json:"emptyMskus"`
	Duration   time.Duration `json:"duration"`
}

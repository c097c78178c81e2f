package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wareloop/skulink/internal/config"
	"github.com/wareloop/skulink/internal/logging"
	"github.com/wareloop/skulink/internal/sku"
	"github.com/wareloop/skulink/internal/store"
	"github.com/wareloop/skulink/internal/tabular"
)

// Service orchestrates ingests and reads for the dashboard. It keeps
// exactly one piece of cross-request state: the current mapping index,
// swapped atomically whenever a mapping upload lands.
type Service struct {
	db      Snapshots
	cfg     *config.Config
	limiter *IngestLimiter

	mu    sync.RWMutex
	index *sku.Index
}

// NewService creates a Service and primes the mapping index from the
// persisted mapping snapshot, so sales ingests work across restarts.
func NewService(ctx context.Context, db Snapshots, cfg *config.Config) (*Service, error) {
	s := &Service{
		db:      db,
		cfg:     cfg,
		limiter: NewIngestLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
	}

	if err := s.reloadIndex(ctx); err != nil {
		return nil, fmt.Errorf("prime mapping index: %w", err)
	}
	return s, nil
}

// reloadIndex rebuilds the in-memory index from the persisted mapping rows.
func (s *Service) reloadIndex(ctx context.Context) error {
	rows, err := s.db.LoadMappings(ctx)
	if err != nil {
		return err
	}

	entries := make([]sku.MappingEntry, len(rows))
	for i, r := range rows {
		entries[i] = sku.MappingEntry{SKU: r.SKU, MSKU: r.MSKU}
	}

	s.mu.Lock()
	s.index = sku.BuildIndex(entries, s.indexOptions()...)
	s.mu.Unlock()
	return nil
}

func (s *Service) indexOptions() []sku.Option {
	if s.cfg.Resolver.CaseFold {
		return []sku.Option{sku.WithCaseFold()}
	}
	return nil
}

// currentIndex returns the index snapshot in effect for one ingest run.
func (s *Service) currentIndex() *sku.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// MappingSize returns the number of keys in the current index.
func (s *Service) MappingSize() int {
	return s.currentIndex().Len()
}

// IngestMapping replaces the mapping snapshot from an uploaded file and
// rebuilds the index used by subsequent sales ingests.
func (s *Service) IngestMapping(ctx context.Context, fileName string, r io.Reader) (*MappingIngestResult, error) {
	start := time.Now()
	ingestID := uuid.New().String()
	log := logging.WithFields(ctx, "ingest_id", ingestID, "file", fileName, "kind", "mapping")

	tbl, err := tabular.ReadNamed(r, fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := tbl.Require(MappingColumns...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	rows := make([]store.MappingRow, len(tbl.Rows))
	entries := make([]sku.MappingEntry, len(tbl.Rows))
	for i, row := range tbl.Rows {
		code := tbl.Get(row, "SKU")
		msku := tbl.Get(row, "MSKU")
		rows[i] = store.MappingRow{SKU: code, MSKU: msku}
		entries[i] = sku.MappingEntry{SKU: code, MSKU: msku}
	}

	if err := s.db.ReplaceMappings(ctx, rows); err != nil {
		return nil, fmt.Errorf("replace mapping snapshot: %w", err)
	}

	// Index and stats come from the rows just parsed, in file order;
	// re-reading the snapshot would describe whichever upload committed
	// last. LoadMappings only primes the index at startup.
	idx := sku.BuildIndex(entries, s.indexOptions()...)
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()

	stats := idx.Stats()
	result := &MappingIngestResult{
		IngestID:   ingestID,
		FileName:   fileName,
		Rows:       len(rows),
		Singles:    stats.Singles,
		Combos:     stats.Combos,
		Overwrites: stats.Overwrites,
		EmptyMSKUs: stats.EmptyMSKUs,
		Duration:   time.Since(start),
	}

	log.Info("mapping snapshot replaced",
		"rows", result.Rows,
		"singles", result.Singles,
		"combos", result.Combos,
		"overwrites", result.Overwrites,
		"duration", result.Duration,
	)
	return result, nil
}

// IngestSales processes a sales upload end to end: validate columns,
// parse typed cells, resolve MSKUs, and atomically replace the sales
// snapshot. Unresolved SKUs are not errors; each gets the UNKNOWN
// sentinel and one warning log entry.
func (s *Service) IngestSales(ctx context.Context, fileName string, r io.Reader) (*SalesIngestResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.cfg.Upload.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Upload.Timeout)
		defer cancel()
	}

	start := time.Now()
	ingestID := uuid.New().String()
	log := logging.WithFields(ctx, "ingest_id", ingestID, "file", fileName, "kind", "sales")

	tbl, err := tabular.ReadNamed(r, fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := tbl.Require(SalesColumns...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	index := s.currentIndex()
	rows := make([]store.SalesRow, 0, len(tbl.Rows))
	unmapped := 0

	for i, row := range tbl.Rows {
		parsed, err := s.parseSalesRow(tbl, row)
		if err != nil {
			// Data-file line number: header is line 1.
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidInput, i+2, err)
		}

		msku, ok := index.Resolve(parsed.SKU)
		if !ok {
			// One warning per unresolved SKU, not deduplicated.
			log.Warn("no mapping found for SKU", "sku", parsed.SKU, "row", i+2)
			msku = sku.Unknown
			unmapped++
		}
		parsed.MSKU = msku
		rows = append(rows, parsed)
	}

	if err := s.db.ReplaceSales(ctx, rows); err != nil {
		return nil, fmt.Errorf("replace sales snapshot: %w", err)
	}

	result := &SalesIngestResult{
		IngestID: ingestID,
		FileName: fileName,
		Rows:     len(rows),
		Unmapped: unmapped,
		Duration: time.Since(start),
	}
	log.Info("sales snapshot replaced",
		"rows", result.Rows,
		"unmapped", result.Unmapped,
		"duration", result.Duration,
	)
	return result, nil
}

// parseSalesRow converts one raw row into a typed SalesRow. MSKU is
// filled in by the caller after resolution.
func (s *Service) parseSalesRow(tbl *tabular.Table, row []string) (store.SalesRow, error) {
	date, err := parseDate(tbl.Get(row, "Date"))
	if err != nil {
		return store.SalesRow{}, fmt.Errorf("Date: %v", err)
	}
	qty, err := parseQuantity(tbl.Get(row, "Quantity"))
	if err != nil {
		return store.SalesRow{}, fmt.Errorf("Quantity: %v", err)
	}
	price, err := parsePrice(tbl.Get(row, "Price"))
	if err != nil {
		return store.SalesRow{}, fmt.Errorf("Price: %v", err)
	}

	return store.SalesRow{
		OrderID:  tbl.Get(row, "OrderID"),
		Date:     date,
		SKU:      tbl.Get(row, "SKU"),
		Quantity: qty,
		Price:    price,
		Status:   tbl.Get(row, "Status"),
	}, nil
}

// SummaryByMSKU returns per-MSKU aggregates for the dashboard.
func (s *Service) SummaryByMSKU(ctx context.Context, excludeUnmapped bool, limit int) ([]store.MSKUSummary, error) {
	return s.db.SummaryByMSKU(ctx, excludeUnmapped, limit)
}

// SummaryByDay returns per-day aggregates for the dashboard.
func (s *Service) SummaryByDay(ctx context.Context, excludeUnmapped bool) ([]store.DailySummary, error) {
	return s.db.SummaryByDay(ctx, excludeUnmapped)
}

// SummaryByStatus returns per-status aggregates for the dashboard.
func (s *Service) SummaryByStatus(ctx context.Context, excludeUnmapped bool) ([]store.StatusSummary, error) {
	return s.db.SummaryByStatus(ctx, excludeUnmapped)
}

// Totals returns overall counts for the current snapshot.
func (s *Service) Totals(ctx context.Context) (store.Totals, error) {
	return s.db.SnapshotTotals(ctx)
}

// ListSales pages through the persisted snapshot.
func (s *Service) ListSales(ctx context.Context, limit, offset int) ([]store.SalesRow, error) {
	return s.db.ListSales(ctx, limit, offset)
}

// exportPageSize is the ListSales page size used by ExportCSV.
const exportPageSize = 1000

// ExportCSV streams the whole persisted snapshot as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"OrderID", "Date", "SKU", "MSKU", "Quantity", "Price", "Status"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for offset := 0; ; offset += exportPageSize {
		rows, err := s.db.ListSales(ctx, exportPageSize, offset)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			rec := []string{
				r.OrderID,
				r.Date.Format("2006-01-02"),
				r.SKU,
				r.MSKU,
				strconv.FormatInt(r.Quantity, 10),
				strconv.FormatFloat(r.Price, 'f', 2, 64),
				r.Status,
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		if len(rows) < exportPageSize {
			break
		}
	}

	cw.Flush()
	return cw.Error()
}

// ActiveIngests reports how many ingest runs are in flight.
func (s *Service) ActiveIngests() int {
	return s.limiter.Active()
}

// WaitForIngests blocks until in-flight ingests finish or ctx expires.
// Used during graceful shutdown.
func (s *Service) WaitForIngests(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

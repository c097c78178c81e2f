package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wareloop/skulink/internal/config"
	"github.com/wareloop/skulink/internal/core"
	"github.com/wareloop/skulink/internal/store"
)

// memSnapshots is a minimal in-memory core.Snapshots for handler tests.
type memSnapshots struct {
	sales    []store.SalesRow
	mappings []store.MappingRow
	listErr  error
}

func (m *memSnapshots) ReplaceSales(_ context.Context, rows []store.SalesRow) error {
	m.sales = rows
	return nil
}

func (m *memSnapshots) ReplaceMappings(_ context.Context, rows []store.MappingRow) error {
	m.mappings = rows
	return nil
}

func (m *memSnapshots) LoadMappings(_ context.Context) ([]store.MappingRow, error) {
	return m.mappings, nil
}

func (m *memSnapshots) SummaryByMSKU(_ context.Context, _ bool, _ int) ([]store.MSKUSummary, error) {
	return []store.MSKUSummary{{MSKU: "M1", Orders: 1, Quantity: 2, Revenue: 20}}, nil
}

func (m *memSnapshots) SummaryByDay(_ context.Context, _ bool) ([]store.DailySummary, error) {
	return nil, nil
}

func (m *memSnapshots) SummaryByStatus(_ context.Context, _ bool) ([]store.StatusSummary, error) {
	return nil, nil
}

func (m *memSnapshots) SnapshotTotals(_ context.Context) (store.Totals, error) {
	return store.Totals{Rows: int64(len(m.sales))}, nil
}

func (m *memSnapshots) ListSales(_ context.Context, limit, offset int) ([]store.SalesRow, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if offset >= len(m.sales) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.sales) {
		end = len(m.sales)
	}
	return m.sales[offset:end], nil
}

func testServer(t *testing.T, db *memSnapshots) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Minute},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
		},
		Rate: config.RateLimitConfig{Enabled: false},
	}
	svc, err := core.NewService(context.Background(), db, cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewServer(svc, cfg)
}

// multipartBody builds a multipart form with one file field.
func multipartBody(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadMappingThenSales(t *testing.T) {
	db := &memSnapshots{}
	srv := testServer(t, db)

	body, ctype := multipartBody(t, "mapping.csv", "SKU,MSKU\nS1,M1\n")
	req := httptest.NewRequest(http.MethodPost, "/api/upload/mapping", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("mapping upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	sales := "OrderID,Date,SKU,Quantity,Price,Status\nO1,2024-03-01,S1,2,10.00,Shipped\nO2,2024-03-01,SX,1,5.00,Shipped\n"
	body, ctype = multipartBody(t, "sales.csv", sales)
	req = httptest.NewRequest(http.MethodPost, "/api/upload/sales", body)
	req.Header.Set("Content-Type", ctype)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("sales upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result core.SalesIngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Rows != 2 || result.Unmapped != 1 {
		t.Errorf("result = %+v, want 2 rows with 1 unmapped", result)
	}

	if len(db.sales) != 2 {
		t.Fatalf("persisted %d rows, want 2", len(db.sales))
	}
	if db.sales[1].MSKU != "UNKNOWN" {
		t.Errorf("unmapped row MSKU = %q, want UNKNOWN", db.sales[1].MSKU)
	}
}

func TestUploadSales_MissingColumnsIs400(t *testing.T) {
	srv := testServer(t, &memSnapshots{})

	body, ctype := multipartBody(t, "sales.csv", "OrderID,SKU\nO1,S1\n")
	req := httptest.NewRequest(http.MethodPost, "/api/upload/sales", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if !strings.Contains(resp.Error, "Quantity") {
		t.Errorf("error should name the missing column: %q", resp.Error)
	}
}

func TestUpload_NoFileIs400(t *testing.T) {
	srv := testServer(t, &memSnapshots{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/upload/sales", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSummaryByMSKU(t *testing.T) {
	srv := testServer(t, &memSnapshots{})

	req := httptest.NewRequest(http.MethodGet, "/api/summary/msku", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var summaries []store.MSKUSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summaries) != 1 || summaries[0].MSKU != "M1" {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestExportCSV(t *testing.T) {
	db := &memSnapshots{
		sales: []store.SalesRow{{OrderID: "O1", SKU: "S1", MSKU: "M1", Quantity: 1, Price: 2, Status: "Shipped"}},
	}
	srv := testServer(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/export", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "O1") {
		t.Errorf("export missing row: %q", rec.Body.String())
	}
}

func TestExportCSV_FailureLeavesBodyCleanOfJSON(t *testing.T) {
	db := &memSnapshots{listErr: errors.New("connection reset")}
	srv := testServer(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/export", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	// A failed export must not append a JSON error envelope to what the
	// client sees as a CSV download.
	if strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("download carries a JSON error fragment: %q", rec.Body.String())
	}
}

func TestRateLimiter_StopEndsCleanup(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	if !rl.allow("1.2.3.4") {
		t.Fatal("first request should be allowed")
	}

	rl.stop()
	rl.stop() // safe to repeat

	select {
	case <-rl.done:
	case <-time.After(time.Second):
		t.Fatal("cleanup goroutine still running after stop")
	}
}

func TestShutdown_StopsRateLimiters(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Minute},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 1,
			MaxWaitTime:   time.Second,
		},
		Rate: config.RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 10,
			UploadLimit:       2,
		},
	}
	svc, err := core.NewService(context.Background(), &memSnapshots{}, cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv := NewServer(svc, cfg)

	if len(srv.limiters) != 2 {
		t.Fatalf("limiters = %d, want global and upload", len(srv.limiters))
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for i, rl := range srv.limiters {
		select {
		case <-rl.done:
		case <-time.After(time.Second):
			t.Fatalf("limiter %d cleanup still running after shutdown", i)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer(t, &memSnapshots{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := testServer(t, &memSnapshots{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/wareloop/skulink/internal/logging"
)

// handleIndex serves the embedded dashboard page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// handleHealth reports liveness plus basic service state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]interface{}{
		"status":         "ok",
		"mapping_keys":   s.service.MappingSize(),
		"active_ingests": s.service.ActiveIngests(),
	})
}

// handleUploadSales ingests a sales file and replaces the snapshot.
func (s *Server) handleUploadSales(w http.ResponseWriter, r *http.Request) {
	file, name, ok := s.uploadedFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	result, err := s.service.IngestSales(r.Context(), name, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, result)
}

// handleUploadMapping ingests a mapping file and rebuilds the index.
func (s *Server) handleUploadMapping(w http.ResponseWriter, r *http.Request) {
	file, name, ok := s.uploadedFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	result, err := s.service.IngestMapping(r.Context(), name, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, result)
}

// uploadedFile extracts the multipart "file" field, enforcing the
// configured size cap. On failure it writes the error response itself.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (multipartFile, string, bool) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return nil, "", false
	}
	return file, header.Filename, true
}

type multipartFile interface {
	Read(p []byte) (int, error)
	Close() error
}

// excludeUnmapped reads the shared query flag for summary endpoints.
// Unmapped rows are retained under the UNKNOWN sentinel by default.
func excludeUnmapped(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("exclude_unmapped"))
	return v
}

// handleSummaryByMSKU returns per-MSKU aggregates.
func (s *Server) handleSummaryByMSKU(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	summaries, err := s.service.SummaryByMSKU(r.Context(), excludeUnmapped(r), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, summaries)
}

// handleSummaryByDay returns per-day aggregates.
func (s *Server) handleSummaryByDay(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.SummaryByDay(r.Context(), excludeUnmapped(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, summaries)
}

// handleSummaryByStatus returns per-status aggregates.
func (s *Server) handleSummaryByStatus(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.SummaryByStatus(r.Context(), excludeUnmapped(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, summaries)
}

// handleTotals returns overall snapshot counts.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.service.Totals(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, totals)
}

// handleListRows pages through the persisted snapshot.
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	rows, err := s.service.ListSales(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, rows)
}

// handleExport downloads the whole snapshot as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filename := "sales_" + time.Now().Format("20060102_150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := s.service.ExportCSV(r.Context(), w); err != nil {
		// The status line and part of the body may already be out;
		// writing a JSON envelope here would corrupt the download.
		logging.FromContext(r.Context()).Error("export failed", "error", err)
	}
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/tracesynth/internal/core"
	"github.com/JonMunkholm/tracesynth/internal/logging"
	"github.com/JonMunkholm/tracesynth/internal/trace"
)

const (
	// defaultSampleRows is how many rows the summary and preview show.
	defaultSampleRows = 10

	// maxSampleRows caps the limit query parameter.
	maxSampleRows = 500

	// maxJSONBody caps JSON request bodies.
	maxJSONBody = 64 * 1024

	// healthPingTimeout bounds the database check in /healthz.
	healthPingTimeout = 2 * time.Second
)

// tableSummary is the JSON view of a loaded table.
type tableSummary struct {
	Path    string        `json:"path"`
	Columns []core.Column `json:"columns"`
	Rows    int           `json:"rows"`
	Sample  [][]string    `json:"sample"`
}

type saveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type exportRequest struct {
	Source string `json:"source"`
	Table  string `json:"table"`
}

type exportResponse struct {
	Source string `json:"source"`
	Table  string `json:"table"`
	Rows   int64  `json:"rows"`
}

type importRequest struct {
	Table       string `json:"table"`
	Destination string `json:"destination"`
}

// traceFunction is the JSON view of one traced function.
type traceFunction struct {
	Name                string `json:"name"`
	Hash                string `json:"hash"`
	AppHash             string `json:"app_hash"`
	FunctionHash        string `json:"function_hash"`
	MedianPerMinute     int    `json:"median_per_minute"`
	SlowestMs           int    `json:"slowest_ms"`
	ExpectedConcurrency int    `json:"expected_concurrency"`
}

type traceSummary struct {
	Path                      string          `json:"path"`
	Minutes                   int             `json:"minutes"`
	Functions                 []traceFunction `json:"functions"`
	TotalInvocationsPerMinute []int           `json:"total_invocations_per_minute"`
}

// handleHealth reports liveness, save load and, when configured, whether
// the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	body := map[string]any{
		"saves":    s.limiter.Status(),
		"database": s.db != nil,
	}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			logging.WithRequestID(r.Context(), s.logger).Warn("database ping failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
			body["database_error"] = core.MapError(err).Message
		}
	}
	body["status"] = status
	s.writeJSON(w, code, body)
}

// handleDescribeTable returns column kinds, row count and sample rows.
func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	t, err := s.loadTable(rel)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sample, err := sampleRecords(t, parseIntParam(r, "limit", defaultSampleRows))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tableSummary{
		Path:    rel,
		Columns: t.Columns(),
		Rows:    t.Len(),
		Sample:  sample,
	})
}

// handleSaveTable loads source and saves it to destination.
func (s *Server) handleSaveTable(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.loadTable(req.Source)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.saveTable(r.Context(), t, req.Destination)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleUploadTable parses the request body as a table and saves it to the
// destination query parameter.
func (s *Server) handleUploadTable(w http.ResponseWriter, r *http.Request) {
	dst := r.URL.Query().Get("destination")
	if _, err := resolvePath(s.cfg.Data.Root, dst); err != nil {
		s.respondError(w, r, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.Data.MaxUploadSize)
	t, err := core.Read(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = fmt.Errorf("upload exceeds %d bytes: %w", maxErr.Limit, maxErr)
		}
		s.respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), s.logger, "destination", dst).
		Debug("upload parsed", "rows", t.Len(), "bytes", t.SourceBytes())

	result, err := s.saveTable(r.Context(), t, dst)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

// handleExportTable copies source into a database table.
func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.respondError(w, r, ErrNoDatabase)
		return
	}

	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Table == "" {
		s.respondError(w, r, fmt.Errorf("%w: table is required", errBadRequest))
		return
	}

	t, err := s.loadTable(req.Source)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	n, err := s.db.Export(r.Context(), req.Table, t)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exportResponse{Source: req.Source, Table: req.Table, Rows: n})
}

// handleImportTable reads a database table and saves it to destination.
func (s *Server) handleImportTable(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.respondError(w, r, ErrNoDatabase)
		return
	}

	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Table == "" {
		s.respondError(w, r, fmt.Errorf("%w: table is required", errBadRequest))
		return
	}
	if _, err := resolvePath(s.cfg.Data.Root, req.Destination); err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.db.Import(r.Context(), req.Table)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), s.logger, "table", req.Table).
		Info("table imported", "rows", t.Len(), "columns", len(t.Columns()))

	result, err := s.saveTable(r.Context(), t, req.Destination)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

// handleTraces builds function traces from invocation, duration and memory
// tables under the data root. Only invocations is required.
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paths := make([]string, 3)
	for i, key := range []string{"invocations", "durations", "memory"} {
		rel := q.Get(key)
		if rel == "" && i > 0 {
			continue
		}
		path, err := resolvePath(s.cfg.Data.Root, rel)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%s: %w", key, err))
			return
		}
		paths[i] = path
	}

	tables, err := trace.Load(paths[0], paths[1], paths[2])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ft, err := trace.Build(q.Get("invocations"), tables)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	summary := traceSummary{
		Path:                      ft.Path,
		Minutes:                   ft.Minutes(),
		Functions:                 make([]traceFunction, len(ft.Functions)),
		TotalInvocationsPerMinute: ft.TotalInvocationsPerMinute,
	}
	for i, fn := range ft.Functions {
		summary.Functions[i] = traceFunction{
			Name:                fn.Name,
			Hash:                fn.Hash,
			AppHash:             fn.AppHash,
			FunctionHash:        fn.FunctionHash,
			MedianPerMinute:     fn.InvocationStats.Median,
			SlowestMs:           fn.RuntimeStats.Percentile100,
			ExpectedConcurrency: fn.ExpectedConcurrency(),
		}
	}
	logging.WithFields(r.Context(), s.logger, "path", ft.Path).
		Debug("traces built", "functions", len(ft.Functions), "minutes", ft.Minutes())
	s.writeJSON(w, http.StatusOK, summary)
}

// handleTableView renders an HTML preview of a table.
func (s *Server) handleTableView(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	t, err := s.loadTable(rel)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	records, err := sampleRecords(t, parseIntParam(r, "limit", defaultSampleRows))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tableView(rel, t.Columns(), t.Len(), records).Render(r.Context(), w); err != nil {
		logging.WithRequestID(r.Context(), s.logger).Error("render table view", "error", err)
	}
}

// loadTable resolves rel under the data root and loads it.
func (s *Server) loadTable(rel string) (*core.Table, error) {
	path, err := resolvePath(s.cfg.Data.Root, rel)
	if err != nil {
		return nil, err
	}
	return core.Load(path)
}

// saveTable writes t to rel under the data root, holding a limiter slot for
// the duration of the save. Retry warnings carry the request id.
func (s *Server) saveTable(ctx context.Context, t *core.Table, rel string) (core.SaveResult, error) {
	path, err := resolvePath(s.cfg.Data.Root, rel)
	if err != nil {
		return core.SaveResult{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return core.SaveResult{}, err
	}
	defer s.limiter.Release()

	saver := core.NewSaver(logging.WithRequestID(ctx, s.logger), s.cfg.Save.Policy())
	result, err := saver.Save(ctx, t, path)
	if err != nil {
		return result, err
	}

	// Report the path the client sent, not the server's filesystem layout.
	result.Path = rel
	logging.WithFields(ctx, s.logger, "save_id", result.ID, "path", rel).Info("table saved",
		"rows", result.Rows,
		"attempts", result.Attempts,
	)
	return result, nil
}

// sampleRecords renders the first n rows of t as strings.
func sampleRecords(t *core.Table, n int) ([][]string, error) {
	records, err := t.Records()
	if err != nil {
		return nil, err
	}
	rows := records[1:]
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

// decodeJSON reads a small JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}

// parseIntParam parses a positive integer query parameter with a default
// value, capped at maxSampleRows.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return min(i, maxSampleRows)
}

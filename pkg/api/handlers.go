package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hdsoft/unisearch/pkg/chart"
	"github.com/hdsoft/unisearch/pkg/client"
	"github.com/hdsoft/unisearch/pkg/fields"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/report"
	"github.com/hdsoft/unisearch/pkg/session"
	"github.com/hdsoft/unisearch/pkg/storage"
	"github.com/hdsoft/unisearch/pkg/version"
)

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	p, err := s.session.Search(r.Context(), req.Query)
	if err != nil {
		s.writeBackendError(w, req.Query, err)
		return
	}

	s.writeJSON(w, http.StatusOK, SearchResponse{
		Query:   s.session.State().Query,
		Summary: session.Summarize(p),
		Data:    p,
	})
}

func (s *Server) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	s.session.Abandon()
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) HandleResults(w http.ResponseWriter, r *http.Request) {
	p, ok := s.results(w)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, SearchResponse{
		Query:   s.session.State().Query,
		Summary: session.Summarize(p),
		Data:    p,
	})
}

func (s *Server) HandleSetTab(w http.ResponseWriter, r *http.Request) {
	var req TabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	tab, err := session.ParseTab(req.Tab)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid tab", err.Error())
		return
	}
	s.session.SetTab(tab)
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) HandleFields(w http.ResponseWriter, r *http.Request) {
	p, ok := s.results(w)
	if !ok {
		return
	}
	fs := fields.Inspect(p)
	defaults := fields.DefaultsFor(fs)
	measure := r.URL.Query().Get("measure")
	if measure == "" {
		measure = defaults.Measure
	}
	s.writeJSON(w, http.StatusOK, FieldsResponse{
		Fields:       fs,
		Defaults:     defaults,
		Aggregations: fields.AggregationsFor(fs, measure),
	})
}

// HandleChart charts the current results with the dialog selections given in
// the query string. format=png|svg returns an image, anything else the chart
// configuration as JSON.
func (s *Server) HandleChart(w http.ResponseWriter, r *http.Request) {
	p, ok := s.results(w)
	if !ok {
		return
	}
	d, err := report.Open(s.session.State().Query, p).Apply(dialogOptions(r.URL.Query()))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid chart selection", err.Error())
		return
	}

	settings, _ := s.settings()
	if theme := r.URL.Query().Get("theme"); theme != "" {
		settings.Theme = chart.Theme(theme)
	}
	data := d.Preview(settings.BuildOptions()...)
	cfg := settings.Config(d.Visualization(), d.Config(), data)

	if format := r.URL.Query().Get("format"); format == "png" || format == "svg" {
		s.writeImage(w, cfg, chart.Format(format))
		return
	}
	s.writeJSON(w, http.StatusOK, ChartResponse{
		Chart:        cfg,
		Definition:   d.Definition(),
		Fields:       d.Fields(),
		Aggregations: d.Aggregations(),
	})
}

// HandleServerChart asks the backend to pick labels and values for the
// current results.
func (s *Server) HandleServerChart(w http.ResponseWriter, r *http.Request) {
	if s.visualizer == nil {
		s.writeError(w, http.StatusNotImplemented, "Not available", "Server side visualization is not configured")
		return
	}
	p, ok := s.results(w)
	if !ok {
		return
	}
	viz, err := chart.ParseVisualization(valueOr(r.URL.Query().Get("visualization"), string(chart.Bar)))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid visualization", err.Error())
		return
	}

	v, err := s.visualizer.GenerateVisualization(r.Context(), client.VisualizationRequest{
		SearchResults:     p,
		VisualizationType: string(viz),
	})
	if err != nil {
		s.writeBackendError(w, s.session.State().Query, err)
		return
	}
	settings, _ := s.settings()
	s.writeJSON(w, http.StatusOK, settings.Config(viz, payload.ReportConfig{}, v.GraphData))
}

func (s *Server) HandleListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.session.LoadFavorites(r.Context())
	if err != nil {
		s.writeBackendError(w, "", err)
		return
	}
	s.writeJSON(w, http.StatusOK, ListFavoritesResponse{Favorites: nonNil(favs), Count: len(favs)})
}

func (s *Server) HandleSaveFavorite(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}
	fav, err := s.session.SaveFavorite(r.Context(), req.Query)
	if err != nil {
		s.writeBackendError(w, req.Query, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, fav)
}

func (s *Server) HandleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.session.DeleteFavorite(r.Context(), id); err != nil {
		s.writeBackendError(w, "", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.session.LoadReports(r.Context())
	if err != nil {
		s.writeBackendError(w, "", err)
		return
	}
	summaries := make([]session.ReportSummary, len(reports))
	for i, rep := range reports {
		summaries[i] = session.ReportSummary{
			ID:                rep.ID,
			Name:              rep.Name,
			QueryText:         rep.QueryText,
			VisualizationType: rep.VisualizationType,
			CreateDate:        rep.CreateDate,
		}
	}
	s.writeJSON(w, http.StatusOK, ListReportsResponse{Reports: summaries, Count: len(summaries)})
}

// HandleCreateReport confirms a report dialog over the current results.
func (s *Server) HandleCreateReport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.results(w)
	if !ok {
		return
	}
	var opts report.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	d, err := report.Open(s.session.State().Query, p).Apply(opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid report selection", err.Error())
		return
	}
	if err := d.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid report", err.Error())
		return
	}
	if _, err := d.Confirm(s.session.CreateReport(r.Context())); err != nil {
		s.writeBackendError(w, d.QueryText(), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"name": d.Name()})
}

func (s *Server) HandleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.session.DeleteReport(r.Context(), id); err != nil {
		s.writeBackendError(w, "", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReportChart draws a saved report from its stored data. The chart
// definition embedded in the data drives the build.
func (s *Server) HandleReportChart(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.savedReport(w, r)
	if !ok {
		return
	}
	viz, err := chart.ParseVisualization(valueOr(r.URL.Query().Get("visualization"), valueOr(rep.VisualizationType, string(chart.Bar))))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid visualization", err.Error())
		return
	}

	reportCfg := rep.EffectiveConfig()
	settings, _ := s.settings()
	opts := append(settings.BuildOptions(), chart.WithVisualization(viz), chart.WithConfig(reportCfg))
	cfg := settings.Config(viz, reportCfg, chart.Build(rep.Data, opts...))

	if format := r.URL.Query().Get("format"); format == "png" || format == "svg" {
		s.writeImage(w, cfg, chart.Format(format))
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) HandleOpenReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.savedReport(w, r)
	if !ok {
		return
	}
	s.session.ShowReport(rep)
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, http.StatusNotImplemented, "Not available", "Local cache is disabled")
		return
	}
	params, err := parseHistoryParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}
	entries, err := s.cache.History(params)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read history", err.Error())
		return
	}

	resp := HistoryResponse{Entries: make([]HistoryEntry, len(entries)), Count: len(entries), Page: params.Page, Limit: params.Limit}
	for i, e := range entries {
		resp.Entries[i] = HistoryEntry{
			ID:          e.ID,
			Query:       e.QueryText,
			Shape:       e.Shape,
			RecordCount: e.RecordCount,
			Error:       e.Error,
			DurationMS:  e.Duration.Milliseconds(),
			SearchedAt:  e.SearchedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, http.StatusNotImplemented, "Not available", "Local cache is disabled")
		return
	}
	stats, err := s.cache.Stats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// Helpers

func (s *Server) results(w http.ResponseWriter) (*payload.Payload, bool) {
	p := s.session.Results()
	if p == nil {
		s.writeError(w, http.StatusNotFound, "No results", "Run a search first")
		return nil, false
	}
	return p, true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "A positive numeric id is required")
		return 0, false
	}
	return id, true
}

// savedReport looks the report up in the session first and falls back to
// the local cache, which also holds the report data.
func (s *Server) savedReport(w http.ResponseWriter, r *http.Request) (payload.SavedReport, bool) {
	id, ok := s.pathID(w, r)
	if !ok {
		return payload.SavedReport{}, false
	}
	if rep, ok := s.session.Report(id); ok && rep.Data != nil {
		return rep, true
	}
	if s.cache != nil {
		rep, err := s.cache.Report(id)
		if err == nil {
			return rep, true
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusInternalServerError, "Failed to load report", err.Error())
			return payload.SavedReport{}, false
		}
	}
	s.writeError(w, http.StatusNotFound, "Report not found", fmt.Sprintf("Report %d does not exist", id))
	return payload.SavedReport{}, false
}

func (s *Server) writeImage(w http.ResponseWriter, cfg chart.Config, format chart.Format) {
	var buf bytes.Buffer
	if err := chart.Render(&buf, cfg, format); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chart.ErrNothingToDraw) {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, "Failed to render chart", err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Errorf("writing chart image: %v", err)
	}
}

// writeBackendError maps session and client errors to responses. Protocol
// errors carry the backend's message and, when a support address is
// configured, a prefilled bug report link.
func (s *Server) writeBackendError(w http.ResponseWriter, query string, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyQuery):
		s.writeError(w, http.StatusBadRequest, "Missing query", "Query text is required")
	case errors.Is(err, session.ErrSearchInFlight):
		s.writeError(w, http.StatusConflict, "Search in progress", err.Error())
	case errors.Is(err, session.ErrStaleResponse):
		s.writeError(w, http.StatusConflict, "Search superseded", err.Error())
	case errors.Is(err, report.ErrClosed):
		s.writeError(w, http.StatusConflict, "Dialog closed", err.Error())
	case client.IsProtocol(err), client.IsTransport(err):
		status := http.StatusBadGateway
		if client.IsProtocol(err) {
			status = http.StatusUnprocessableEntity
		}
		resp := ErrorResponse{Error: "Backend error", Message: client.UserMessage(err)}
		if _, email := s.settings(); email != "" {
			resp.BugReport = client.NewBugReport(email, query, err, time.Now()).MailtoURL()
		}
		logger.Warnf("backend call failed: %v", err)
		s.writeJSON(w, status, resp)
	default:
		s.writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

func dialogOptions(q url.Values) report.Options {
	return report.Options{
		Visualization: q.Get("visualization"),
		Dimension:     q.Get("dimension"),
		Measure:       q.Get("measure"),
		Series:        q.Get("series"),
		Aggregation:   q.Get("aggregation"),
		Stacked:       parseBool(q.Get("stacked")),
		Cumulated:     parseBool(q.Get("cumulated")),
	}
}

func parseHistoryParams(q url.Values) (storage.HistoryParams, error) {
	params := storage.HistoryParams{Query: q.Get("q")}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid page %q", v)
		}
		params.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit > 100 {
			return params, fmt.Errorf("invalid limit %q (max 100)", v)
		}
		params.Limit = limit
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse("2006-01-02", v)
		if err != nil {
			return params, fmt.Errorf("invalid since date %q (want YYYY-MM-DD)", v)
		}
		params.Since = since
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = 30
	}
	return params, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func nonNil(favs []payload.Favorite) []payload.Favorite {
	if favs == nil {
		return []payload.Favorite{}
	}
	return favs
}

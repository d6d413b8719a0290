package cmd

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hdsoft/unisearch/cmd/web/components"
	"github.com/hdsoft/unisearch/cmd/web/components/types"
	"github.com/hdsoft/unisearch/pkg/api"
	"github.com/hdsoft/unisearch/pkg/chart"
	"github.com/hdsoft/unisearch/pkg/client"
	"github.com/hdsoft/unisearch/pkg/config"
	"github.com/hdsoft/unisearch/pkg/fields"
	"github.com/hdsoft/unisearch/pkg/log"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/realtime"
	"github.com/hdsoft/unisearch/pkg/report"
	"github.com/hdsoft/unisearch/pkg/session"
	"github.com/hdsoft/unisearch/pkg/storage"
	"github.com/hdsoft/unisearch/pkg/version"
	"github.com/urfave/cli/v3"
)

//go:embed web/static/*
var staticFS embed.FS

var webLog = log.ForService("web")

const pageRecordLimit = 200

// WebCommand creates the web command with both API and UI
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start web server with both API endpoints and HTML interface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on (defaults to the configured port)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (defaults to the configured host)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.String("host"), c.String("port"))
		},
	}
}

// WebServer holds the server configuration and dependencies
type WebServer struct {
	session   *session.Session
	cache     *storage.Cache
	client    *client.Client
	hub       *realtime.Hub
	apiServer *api.Server

	mu  sync.RWMutex
	cfg *config.Config
}

func newWebServer(rt *runtime, hub *realtime.Hub) *WebServer {
	return &WebServer{
		session: rt.session,
		cache:   rt.cache,
		client:  rt.client,
		hub:     hub,
		cfg:     rt.cfg,
		apiServer: api.NewServer(rt.session,
			api.WithCache(rt.cache),
			api.WithHub(hub),
			api.WithVisualizer(rt.client),
			api.WithConfig(rt.cfg),
		),
	}
}

func (s *WebServer) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// applyConfig swaps in a reloaded configuration.
func (s *WebServer) applyConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.client.Reconfigure(cfg.Backend)
	s.apiServer.Reconfigure(cfg)
}

func (s *WebServer) routes() http.Handler {
	mux := http.NewServeMux()

	// API routes
	s.apiServer.RegisterRoutes(mux)

	// Web UI routes
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("POST /favorites", s.handleSaveFavorite)
	mux.HandleFunc("POST /favorites/{id}/delete", s.handleDeleteFavorite)
	mux.HandleFunc("GET /reports", s.handleReports)
	mux.HandleFunc("POST /reports", s.handleCreateReport)
	mux.HandleFunc("POST /reports/{id}/open", s.handleOpenReport)
	mux.HandleFunc("POST /reports/{id}/delete", s.handleDeleteReport)
	mux.HandleFunc("GET /history", s.handleHistory)

	// Static assets
	mux.HandleFunc("GET /static/", s.handleStatic)

	return api.CorsMiddleware(mux)
}

// startWebServer starts the web server with both API and UI
func startWebServer(ctx context.Context, configPath, host, port string) error {
	hub := realtime.NewHub(64)
	rt, err := openRuntime(configPath, runtimeOptions{publisher: hub})
	if err != nil {
		return err
	}
	defer rt.Close()

	if host == "" {
		host = rt.cfg.Web.Host
	}
	if port == "" {
		port = rt.cfg.Web.Port
	}

	webServer := newWebServer(rt, hub)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", host, port),
		Handler:           webServer.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watchConfig(ctx, configPath, webServer.applyConfig)

	if err := rt.session.Refresh(ctx); err != nil {
		webLog.Warnf("initial favorites/reports load failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		webLog.Infof("Starting web server on http://%s", server.Addr)
		webLog.Infof("Available endpoints:")
		webLog.Infof("  Web UI:")
		webLog.Infof("    GET / - Search page with results and chart tabs")
		webLog.Infof("    GET /reports - Saved reports")
		webLog.Infof("    GET /history - Search history")
		webLog.Infof("  API:")
		webLog.Infof("    POST /api/search - Run a search")
		webLog.Infof("    GET /api/chart - Chart the current results (format=json|png|svg)")
		webLog.Infof("    GET /api/favorites, /api/reports - Saved items")
		webLog.Infof("    GET /api/events - Websocket event stream")
		webLog.Infof("    GET /health - Health check")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	webLog.Infof("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// Web UI Handlers

func (s *WebServer) basePage(title string) types.PageData {
	return types.PageData{
		Title:     title,
		State:     s.session.State(),
		Version:   version.APIVersion(),
		Favorites: s.session.Favorites(),
	}
}

// setError fills the page error, offering a bug report for backend errors.
func (s *WebServer) setError(data *types.PageData, query string, err error) {
	if errors.Is(err, session.ErrSearchInFlight) || errors.Is(err, session.ErrStaleResponse) {
		data.Error = "A search is already running. Please wait for it to finish."
		return
	}
	data.Error = client.UserMessage(err)
	if !client.IsProtocol(err) && !client.IsTransport(err) {
		return
	}
	if email := s.config().Support.Email; email != "" {
		data.BugReport = client.NewBugReport(email, query, err, time.Now()).MailtoURL()
	}
}

// handleHome runs the query in ?q= when it differs from the session's
// current one and renders the search page.
func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	data := s.basePage("unisearch")

	state := s.session.State()
	if query != "" && (query != state.Query || !state.HasResults) {
		if _, err := s.session.Search(r.Context(), query); err != nil {
			s.setError(&data, query, err)
		}
	}
	if tab, err := session.ParseTab(q.Get("tab")); err == nil {
		s.session.SetTab(tab)
	}

	data.State = s.session.State()
	data.Query = data.State.Query
	if query != "" && data.Error != "" {
		data.Query = query
	}
	data.Favorites = s.session.Favorites()
	if p := s.session.Results(); p != nil && data.Error == "" {
		s.fillResults(&data, p)
		if data.State.Tab == session.TabChart {
			s.fillChart(&data, p, chartSelection(q))
		}
	}

	if err := components.Index(data).Render(r.Context(), w); err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
	}
}

func (s *WebServer) fillResults(data *types.PageData, p *payload.Payload) {
	data.Total = session.Summarize(p).Records
	if p.IsMultiModel() {
		for _, res := range p.Results() {
			title := res.ModelLabel
			if title == "" {
				title = res.Model
			}
			var cols []payload.FieldDescriptor
			if len(res.Records) > 0 {
				cols = fields.InspectRecord(res.Records[0])
			}
			data.Models = append(data.Models, modelTable(title, cols, res.Records))
		}
		return
	}
	data.Models = []types.ModelTable{modelTable(p.String(payload.KeyModelLabel), fields.Inspect(p), p.Records())}
}

func modelTable(title string, cols []payload.FieldDescriptor, records []payload.Record) types.ModelTable {
	m := types.ModelTable{Title: title, Columns: cols}
	for i, rec := range records {
		if i >= pageRecordLimit {
			m.Hidden = len(records) - pageRecordLimit
			break
		}
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = chart.ValueLabel(rec.Value(c.Name))
		}
		m.Rows = append(m.Rows, row)
	}
	return m
}

func chartSelection(q map[string][]string) report.Options {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	return report.Options{
		Visualization: get("visualization"),
		Dimension:     get("dimension"),
		Measure:       get("measure"),
		Series:        get("series"),
		Aggregation:   get("aggregation"),
		Stacked:       get("stacked") == "true",
		Cumulated:     get("cumulated") == "true",
	}
}

// fillChart runs the dialog selections through report.Dialog so the page
// shows the same coerced values the API will chart.
func (s *WebServer) fillChart(data *types.PageData, p *payload.Payload, opts report.Options) {
	d, err := report.Open(data.Query, p).Apply(opts)
	if err != nil {
		data.Error = err.Error()
		d = report.Open(data.Query, p)
	}
	data.Fields = d.Fields()
	for _, k := range d.Aggregations() {
		data.Aggregations = append(data.Aggregations, string(k))
	}
	data.Selection = types.ChartSelection{
		Visualization: string(d.Visualization()),
		Dimension:     d.Dimension(),
		Measure:       d.Measure(),
		Series:        d.Series(),
		Aggregation:   string(d.Aggregation()),
		Stacked:       d.Stacked(),
		Cumulated:     d.Cumulated(),
	}
	data.ChartURL = components.ChartURL(data.Selection, "svg")
}

func (s *WebServer) handleSaveFavorite(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.FormValue("q"))
	if _, err := s.session.SaveFavorite(r.Context(), query); err != nil {
		webLog.Warnf("saving favorite: %v", err)
	}
	http.Redirect(w, r, components.SearchURL(query), http.StatusSeeOther)
}

func (s *WebServer) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid favorite id", http.StatusBadRequest)
		return
	}
	if err := s.session.DeleteFavorite(r.Context(), id); err != nil {
		webLog.Warnf("deleting favorite %d: %v", id, err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *WebServer) handleReports(w http.ResponseWriter, r *http.Request) {
	data := s.basePage("Reports - unisearch")
	reports, err := s.session.LoadReports(r.Context())
	if err != nil {
		s.setError(&data, "", err)
		if s.cache != nil {
			// Show the last known list while the backend is unavailable.
			reports, _ = s.cache.Reports()
		}
	}
	data.Reports = reports
	if r.URL.Query().Get("saved") != "" {
		data.Success = "Report saved."
	}

	if err := components.Reports(data).Render(r.Context(), w); err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
	}
}

func (s *WebServer) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	p := s.session.Results()
	if p == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	opts := chartSelection(r.PostForm)
	opts.Name = strings.TrimSpace(r.PostFormValue("name"))

	state := s.session.State()
	d, err := report.Open(state.Query, p).Apply(opts)
	if err == nil {
		_, err = d.Confirm(s.session.CreateReport(r.Context()))
	}
	if err != nil {
		data := s.basePage("unisearch")
		data.Query = state.Query
		s.setError(&data, state.Query, err)
		s.fillResults(&data, p)
		s.fillChart(&data, p, opts)
		w.WriteHeader(http.StatusUnprocessableEntity)
		if rerr := components.Index(data).Render(r.Context(), w); rerr != nil {
			webLog.Errorf("rendering page: %v", rerr)
		}
		return
	}
	http.Redirect(w, r, "/reports?saved=1", http.StatusSeeOther)
}

func (s *WebServer) handleOpenReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	rep, ok := s.session.Report(id)
	if (!ok || rep.Data == nil) && s.cache != nil {
		rep, err = s.cache.Report(id)
		ok = err == nil
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.session.ShowReport(rep)

	sel := types.ChartSelection{Visualization: rep.VisualizationType}
	if def, ok := rep.Data.ChartDefinition(); ok {
		sel.Dimension = def.DimensionField
		sel.Measure = def.MeasureField
		sel.Series = string(def.SeriesField)
		sel.Aggregation = def.AggregationType
	}
	cfg := rep.EffectiveConfig()
	sel.Stacked = cfg.Stacked
	sel.Cumulated = cfg.Cumulated
	http.Redirect(w, r, components.ChartPageURL(rep.QueryText, sel), http.StatusSeeOther)
}

func (s *WebServer) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	if err := s.session.DeleteReport(r.Context(), id); err != nil {
		webLog.Warnf("deleting report %d: %v", id, err)
	}
	http.Redirect(w, r, "/reports", http.StatusSeeOther)
}

func (s *WebServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	data := s.basePage("History - unisearch")
	if s.cache != nil {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		entries, err := s.cache.History(storage.HistoryParams{Query: r.URL.Query().Get("q"), Page: page, Limit: 50})
		if err != nil {
			data.Error = fmt.Sprintf("Failed to load history: %v", err)
		}
		for _, e := range entries {
			data.History = append(data.History, types.HistoryRow{
				Query:       e.QueryText,
				Shape:       e.Shape,
				RecordCount: e.RecordCount,
				Failed:      e.Error != "",
				SearchedAt:  e.SearchedAt,
				Took:        e.Duration,
			})
		}
	}

	if err := components.History(data).Render(r.Context(), w); err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
	}
}

// handleStatic serves static assets from embedded files
func (s *WebServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// Remove /static/ prefix and add web/static/ prefix for embedded filesystem
	filePath := "web/static/" + strings.TrimPrefix(path, "/static/")

	// Read file from embedded filesystem
	content, err := staticFS.ReadFile(filePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// Set appropriate content type
	if strings.HasSuffix(path, ".css") {
		w.Header().Set("Content-Type", "text/css")
	} else if strings.HasSuffix(path, ".js") {
		w.Header().Set("Content-Type", "application/javascript")
	}

	// Set cache headers for static assets
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := w.Write(content); err != nil {
		webLog.Errorf("writing static content: %v", err)
	}
}

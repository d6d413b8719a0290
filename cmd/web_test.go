package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hdsoft/unisearch/pkg/config"
	"github.com/hdsoft/unisearch/pkg/realtime"
)

const partnersResult = `{"records":[{"id":1,"name":"Acme","country":"ES","amount":1200},{"id":2,"name":"Globex","country":"FR","amount":800}],"model":"res.partner","model_label":"Contact","count":2}`

// rpcBackend answers JSON-RPC calls the way the search backend does.
type rpcBackend struct {
	mu    sync.Mutex
	calls []string
	reply map[string]string
}

func newRPCBackend(t *testing.T) (*rpcBackend, *httptest.Server) {
	t.Helper()
	b := &rpcBackend{reply: map[string]string{
		"search":          partnersResult,
		"get_favorites":   `[{"id":3,"name":"","query_text":"partners"}]`,
		"save_favorite":   `{"id":4,"query_text":"partners"}`,
		"delete_favorite": `true`,
		"create_report":   `{"id":8,"name":"Revenue"}`,
		"get_reports":     `[{"id":7,"name":"Partners by country","query_text":"partners","visualization_type":"bar","config":{"stacked":false},"data":` + partnersResult + `}]`,
		"delete_report":   `true`,
	}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *rpcBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	b.mu.Lock()
	b.calls = append(b.calls, endpoint)
	result, ok := b.reply[endpoint]
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"message":"unknown endpoint"}}`)
		return
	}
	_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"status":"success","result":`+result+`}}`)
}

func (b *rpcBackend) called(endpoint string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == endpoint {
			n++
		}
	}
	return n
}

func writeTestConfig(t *testing.T, dir, backendURL, theme string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`storage_dir = %q

[backend]
url = %q
prefix = "/ai_universal_search"

[chart]
width = 320
height = 200
theme = %q

[support]
email = "support@example.com"
`, dir, backendURL, theme)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func setupTestWebServer(t *testing.T) (*WebServer, *rpcBackend, http.Handler) {
	t.Helper()
	backend, srv := newRPCBackend(t)
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, srv.URL, "light")

	hub := realtime.NewHub(8)
	rt, err := openRuntime(configPath, runtimeOptions{publisher: hub})
	if err != nil {
		t.Fatalf("Failed to open runtime: %v", err)
	}
	t.Cleanup(rt.Close)

	ws := newWebServer(rt, hub)
	return ws, backend, ws.routes()
}

func doRequest(h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHomeWithoutQuery(t *testing.T) {
	_, backend, h := setupTestWebServer(t)

	w := doRequest(h, "GET", "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if backend.called("search") != 0 {
		t.Error("Expected no search without a query")
	}
	if !strings.Contains(w.Body.String(), `name="q"`) {
		t.Error("Expected the search form to be rendered")
	}
}

func TestHomeRunsSearch(t *testing.T) {
	_, backend, h := setupTestWebServer(t)

	w := doRequest(h, "GET", "/?q=partners", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Acme", "Globex", "Contact"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}

	// The same query renders the held results without searching again
	doRequest(h, "GET", "/?q=partners&tab=results", nil)
	if n := backend.called("search"); n != 1 {
		t.Errorf("Expected 1 search call, got %d", n)
	}
}

func TestHomeChartTab(t *testing.T) {
	ws, _, h := setupTestWebServer(t)

	w := doRequest(h, "GET", "/?q=partners&tab=chart&visualization=pie&dimension=country", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "/api/chart?") {
		t.Error("Expected chart image URL on the chart tab")
	}
	if !strings.Contains(body, "dimension=country") {
		t.Error("Expected the selected dimension in the chart URL")
	}
	if got := ws.session.Tab(); got != "chart" {
		t.Errorf("Expected session tab chart, got %q", got)
	}
}

func TestHomeShowsBackendError(t *testing.T) {
	_, backend, h := setupTestWebServer(t)
	backend.mu.Lock()
	delete(backend.reply, "search")
	backend.mu.Unlock()

	w := doRequest(h, "GET", "/?q=partners", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "unknown endpoint") {
		t.Error("Expected the backend message on the page")
	}
	if !strings.Contains(body, "mailto:support@example.com") {
		t.Error("Expected a bug report link")
	}
}

func TestFavoriteForms(t *testing.T) {
	_, backend, h := setupTestWebServer(t)

	w := doRequest(h, "POST", "/favorites", url.Values{"q": {"partners"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected status 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/?q=partners" {
		t.Errorf("Expected redirect to the search, got %q", loc)
	}
	if backend.called("save_favorite") != 1 {
		t.Error("Expected save_favorite to be called")
	}

	w = doRequest(h, "POST", "/favorites/3/delete", url.Values{})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected status 303, got %d", w.Code)
	}
	if backend.called("delete_favorite") != 1 {
		t.Error("Expected delete_favorite to be called")
	}

	w = doRequest(h, "POST", "/favorites/abc/delete", url.Values{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid id, got %d", w.Code)
	}
}

func TestReportsLifecycle(t *testing.T) {
	ws, backend, h := setupTestWebServer(t)

	// Saving without results goes back to the search page
	w := doRequest(h, "POST", "/reports", url.Values{"name": {"Revenue"}})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("Expected redirect to /, got %d %q", w.Code, w.Header().Get("Location"))
	}

	doRequest(h, "GET", "/?q=partners", nil)
	w = doRequest(h, "POST", "/reports", url.Values{
		"name":          {"Revenue"},
		"visualization": {"bar"},
		"dimension":     {"country"},
		"measure":       {"amount"},
		"aggregation":   {"sum"},
	})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected status 303, got %d: %s", w.Code, w.Body.String())
	}
	if backend.called("create_report") != 1 {
		t.Error("Expected create_report to be called")
	}

	w = doRequest(h, "GET", "/reports?saved=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Partners by country") {
		t.Error("Expected the saved report to be listed")
	}
	if !strings.Contains(body, "Report saved.") {
		t.Error("Expected the saved notice")
	}

	w = doRequest(h, "POST", "/reports/7/open", url.Values{})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected status 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.Contains(loc, "tab=chart") || !strings.Contains(loc, "q=partners") {
		t.Errorf("Expected redirect to the chart tab, got %q", loc)
	}
	if got := ws.session.Tab(); got != "chart" {
		t.Errorf("Expected session tab chart, got %q", got)
	}

	w = doRequest(h, "POST", "/reports/99/open", url.Values{})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown report, got %d", w.Code)
	}

	w = doRequest(h, "POST", "/reports/7/delete", url.Values{})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected status 303, got %d", w.Code)
	}
	if backend.called("delete_report") != 1 {
		t.Error("Expected delete_report to be called")
	}
}

func TestCreateReportRejectsUnknownField(t *testing.T) {
	_, backend, h := setupTestWebServer(t)

	doRequest(h, "GET", "/?q=partners", nil)
	w := doRequest(h, "POST", "/reports", url.Values{"name": {"Revenue"}, "dimension": {"missing"}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "missing") {
		t.Error("Expected the rejected field in the error")
	}
	if backend.called("create_report") != 0 {
		t.Error("Expected no create_report call")
	}
}

func TestHistoryPage(t *testing.T) {
	_, _, h := setupTestWebServer(t)

	doRequest(h, "GET", "/?q=partners", nil)
	w := doRequest(h, "GET", "/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "partners") {
		t.Error("Expected the search in the history")
	}
}

func TestAPIRoutesMounted(t *testing.T) {
	_, _, h := setupTestWebServer(t)

	w := doRequest(h, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS headers")
	}
}

func TestStaticAssets(t *testing.T) {
	_, _, h := setupTestWebServer(t)

	w := doRequest(h, "GET", "/static/style.css", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/css" {
		t.Errorf("Expected text/css, got %q", ct)
	}

	w = doRequest(h, "GET", "/static/app.js", nil)
	if ct := w.Header().Get("Content-Type"); ct != "application/javascript" {
		t.Errorf("Expected application/javascript, got %q", ct)
	}

	w = doRequest(h, "GET", "/static/missing.css", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestReloadConfiguration(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "http://localhost:8069", "dark")

	var applied *config.Config
	if err := reloadConfiguration(configPath, func(c *config.Config) { applied = c }); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if applied == nil || applied.Chart.Theme != "dark" {
		t.Fatalf("Expected dark theme to be applied, got %+v", applied)
	}

	writeTestConfig(t, dir, "http://localhost:8069", "sepia")
	applied = nil
	if err := reloadConfiguration(configPath, func(c *config.Config) { applied = c }); err == nil {
		t.Fatal("Expected an invalid theme to be rejected")
	}
	if applied != nil {
		t.Error("Expected an invalid config not to be applied")
	}
}

func TestApplyConfigSwitchesBackend(t *testing.T) {
	ws, first, h := setupTestWebServer(t)
	second, srv := newRPCBackend(t)

	cfg, err := config.LoadConfig(writeTestConfig(t, t.TempDir(), srv.URL, "dark"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	ws.applyConfig(cfg)

	doRequest(h, "GET", "/?q=partners", nil)
	if first.called("search") != 0 {
		t.Error("Expected the old backend not to be searched")
	}
	if second.called("search") != 1 {
		t.Error("Expected the new backend to be searched")
	}
	if ws.config().Chart.Theme != "dark" {
		t.Error("Expected the reloaded config to be current")
	}
}

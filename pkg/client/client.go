// Package client talks to the search backend's JSON-RPC endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hdsoft/unisearch/pkg/config"
	"github.com/hdsoft/unisearch/pkg/log"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/report"
)

const (
	EndpointSearch                = "search"
	EndpointSaveFavorite          = "save_favorite"
	EndpointGetFavorites          = "get_favorites"
	EndpointDeleteFavorite        = "delete_favorite"
	EndpointCreateReport          = "create_report"
	EndpointGetReports            = "get_reports"
	EndpointDeleteReport          = "delete_report"
	EndpointGenerateVisualization = "generate_visualization"
)

var logger = log.ForService("client")

type Client struct {
	BaseURL    string
	Prefix     string
	CSRFHeader string
	CSRFToken  string
	SessionID  string
	HTTPClient *http.Client

	mu     sync.RWMutex
	nextID atomic.Int64
}

func New(cfg config.BackendConfig) *Client {
	c := &Client{}
	c.Reconfigure(cfg)
	return c
}

// Reconfigure swaps the backend settings. Calls already in flight finish
// with the old settings.
func (c *Client) Reconfigure(cfg config.BackendConfig) {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	header := cfg.CSRFHeader
	if header == "" {
		header = "X-CSRFToken"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.BaseURL = strings.TrimRight(cfg.URL, "/")
	c.Prefix = "/" + strings.Trim(cfg.Prefix, "/")
	c.CSRFHeader = header
	c.CSRFToken = cfg.CSRFToken
	c.SessionID = cfg.SessionID
	c.HTTPClient = &http.Client{Timeout: timeout}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result *envelope       `json:"result"`
	Error  json.RawMessage `json:"error"`
}

type envelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// errorMessage extracts the most specific message from an error member:
// error.data.message, then error.message, then a bare string.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Data    struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	if obj.Data.Message != "" {
		return obj.Data.Message
	}
	return obj.Message
}

func isMutating(endpoint string) bool {
	switch endpoint {
	case EndpointSaveFavorite, EndpointDeleteFavorite, EndpointCreateReport, EndpointDeleteReport:
		return true
	}
	return false
}

// call posts params to endpoint and decodes the success result into result.
func (c *Client) call(ctx context.Context, endpoint string, params any, result any) error {
	if params == nil {
		params = struct{}{}
	}
	id := c.nextID.Add(1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "call", Params: params, ID: id})
	if err != nil {
		return fmt.Errorf("failed to marshal %s params: %w", endpoint, err)
	}

	c.mu.RLock()
	url := c.BaseURL + c.Prefix + "/" + endpoint
	csrfHeader, csrfToken, sessionID, httpClient := c.CSRFHeader, c.CSRFToken, c.SessionID, c.HTTPClient
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if isMutating(endpoint) && csrfToken != "" {
		req.Header.Set(csrfHeader, csrfToken)
	}
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID})
	}

	logger.Debugf("POST %s id=%d", url, id)
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: fmt.Errorf("reading response: %w", err)}
	}
	logger.Debugf("%s answered %d in %s", endpoint, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(truncate(respBytes, 200))))}
	}

	var rpc rpcResponse
	if err := json.Unmarshal(respBytes, &rpc); err != nil {
		return &TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(rpc.Error) > 0 && string(rpc.Error) != "null" {
		msg := errorMessage(rpc.Error)
		if msg == "" {
			msg = "unknown server error"
		}
		return &ProtocolError{Endpoint: endpoint, Message: msg}
	}
	if rpc.Result == nil {
		return &TransportError{Endpoint: endpoint, Err: errors.New("response has no result")}
	}

	switch rpc.Result.Status {
	case "success":
	case "error":
		msg := errorMessage(rpc.Result.Error)
		if msg == "" {
			msg = "unknown error"
		}
		return &ProtocolError{Endpoint: endpoint, Message: msg}
	default:
		return &ProtocolError{Endpoint: endpoint, Message: fmt.Sprintf("unexpected response status %q", rpc.Result.Status)}
	}

	if result == nil || len(rpc.Result.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpc.Result.Result, result); err != nil {
		return &TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode %s result: %w", endpoint, err)}
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// Search runs a natural language query.
func (c *Client) Search(ctx context.Context, query string) (*payload.Payload, error) {
	var p payload.Payload
	if err := c.call(ctx, EndpointSearch, map[string]string{"query_text": query}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SaveFavorite(ctx context.Context, query string) (payload.Favorite, error) {
	var fav payload.Favorite
	err := c.call(ctx, EndpointSaveFavorite, map[string]string{"query_text": query}, &fav)
	return fav, err
}

func (c *Client) Favorites(ctx context.Context) ([]payload.Favorite, error) {
	var favs []payload.Favorite
	if err := c.call(ctx, EndpointGetFavorites, nil, &favs); err != nil {
		return nil, err
	}
	return favs, nil
}

func (c *Client) DeleteFavorite(ctx context.Context, id int) error {
	return c.call(ctx, EndpointDeleteFavorite, map[string]int{"favorite_id": id}, nil)
}

// CreatedReport is the acknowledgement of create_report.
type CreatedReport struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (c *Client) CreateReport(ctx context.Context, req report.CreateRequest) (CreatedReport, error) {
	var created CreatedReport
	err := c.call(ctx, EndpointCreateReport, req, &created)
	return created, err
}

func (c *Client) Reports(ctx context.Context) ([]payload.SavedReport, error) {
	var reports []payload.SavedReport
	if err := c.call(ctx, EndpointGetReports, nil, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (c *Client) DeleteReport(ctx context.Context, id int) error {
	return c.call(ctx, EndpointDeleteReport, map[string]int{"report_id": id}, nil)
}

// VisualizationRequest asks the backend to shape chart data itself, either
// from search results or from a saved report.
type VisualizationRequest struct {
	SearchResults     *payload.Payload `json:"searchResults,omitempty"`
	ReportID          int              `json:"report_id,omitempty"`
	VisualizationType string           `json:"visualizationType"`
}

type Visualization struct {
	GraphData         payload.ChartData `json:"graphData"`
	VisualizationType string            `json:"visualizationType"`
}

func (c *Client) GenerateVisualization(ctx context.Context, req VisualizationRequest) (Visualization, error) {
	var raw struct {
		GraphData         *payload.Payload `json:"graphData"`
		VisualizationType string           `json:"visualizationType"`
	}
	// The endpoint reads its arguments from a nested params member.
	if err := c.call(ctx, EndpointGenerateVisualization, map[string]any{"params": req}, &raw); err != nil {
		return Visualization{}, err
	}
	v := Visualization{VisualizationType: raw.VisualizationType}
	if raw.GraphData != nil {
		v.GraphData, _ = raw.GraphData.Graph()
	}
	return v, nil
}

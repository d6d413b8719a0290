package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hdsoft/unisearch/pkg/chart"
	"github.com/hdsoft/unisearch/pkg/client"
	"github.com/hdsoft/unisearch/pkg/config"
	"github.com/hdsoft/unisearch/pkg/log"
	"github.com/hdsoft/unisearch/pkg/realtime"
	"github.com/hdsoft/unisearch/pkg/session"
	"github.com/hdsoft/unisearch/pkg/storage"
)

var logger = log.ForService("api")

// Visualizer asks the backend to shape chart data server side.
type Visualizer interface {
	GenerateVisualization(ctx context.Context, req client.VisualizationRequest) (client.Visualization, error)
}

type Server struct {
	session    *session.Session
	cache      *storage.Cache
	hub        *realtime.Hub
	visualizer Visualizer
	upgrader   websocket.Upgrader

	mu           sync.RWMutex
	chart        chart.Settings
	supportEmail string
}

type Option func(*Server)

func WithCache(c *storage.Cache) Option {
	return func(s *Server) { s.cache = c }
}

func WithHub(h *realtime.Hub) Option {
	return func(s *Server) { s.hub = h }
}

func WithVisualizer(v Visualizer) Option {
	return func(s *Server) { s.visualizer = v }
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Server) { s.Reconfigure(cfg) }
}

func NewServer(sess *session.Session, opts ...Option) *Server {
	s := &Server{
		session: sess,
		chart:   chart.Settings{Theme: chart.ThemeLight},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconfigure applies the chart and support sections of cfg.
func (s *Server) Reconfigure(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chart = chart.NewSettings(cfg.Chart)
	s.supportEmail = cfg.Support.Email
}

func (s *Server) settings() (chart.Settings, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chart, s.supportEmail
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Package session holds the state of one search page: the current query and
// its results, the active tab and the cached favorites and reports.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hdsoft/unisearch/pkg/client"
	"github.com/hdsoft/unisearch/pkg/log"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/realtime"
	"github.com/hdsoft/unisearch/pkg/report"
	"github.com/hdsoft/unisearch/pkg/storage"
)

var (
	ErrSearchInFlight = errors.New("a search is already running")
	ErrStaleResponse  = errors.New("response belongs to a superseded search")
	ErrEmptyQuery     = errors.New("query text is empty")
)

var logger = log.ForService("session")

// Backend is the subset of the backend client a session uses.
type Backend interface {
	Search(ctx context.Context, query string) (*payload.Payload, error)
	SaveFavorite(ctx context.Context, query string) (payload.Favorite, error)
	Favorites(ctx context.Context) ([]payload.Favorite, error)
	DeleteFavorite(ctx context.Context, id int) error
	CreateReport(ctx context.Context, req report.CreateRequest) (client.CreatedReport, error)
	Reports(ctx context.Context) ([]payload.SavedReport, error)
	DeleteReport(ctx context.Context, id int) error
}

// Store persists the cached projection locally.
type Store interface {
	ReplaceFavorites([]payload.Favorite) error
	ReplaceReports([]payload.SavedReport) error
	RecordSearch(storage.SearchEntry) (int64, error)
}

type Tab string

const (
	TabResults Tab = "results"
	TabChart   Tab = "chart"
)

func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabResults, TabChart:
		return Tab(s), nil
	}
	return "", fmt.Errorf("unknown tab %q", s)
}

type Session struct {
	backend Backend
	store   Store
	events  realtime.Publisher

	mu        sync.Mutex
	loading   bool
	seq       uint64
	query     string
	results   *payload.Payload
	lastErr   error
	tab       Tab
	favorites []payload.Favorite
	reports   []payload.SavedReport
}

type Option func(*Session)

func WithStore(s Store) Option {
	return func(sess *Session) { sess.store = s }
}

func WithPublisher(p realtime.Publisher) Option {
	return func(sess *Session) { sess.events = p }
}

func New(backend Backend, opts ...Option) *Session {
	s := &Session{backend: backend, tab: TabResults}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) publish(e realtime.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

// State is a point-in-time view of the session.
type State struct {
	Query      string `json:"query"`
	Loading    bool   `json:"loading"`
	Seq        uint64 `json:"seq"`
	Tab        Tab    `json:"tab"`
	Error      string `json:"error,omitempty"`
	HasResults bool   `json:"has_results"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Query:      s.query,
		Loading:    s.loading,
		Seq:        s.seq,
		Tab:        s.tab,
		HasResults: s.results != nil,
	}
	if s.lastErr != nil {
		st.Error = client.UserMessage(s.lastErr)
	}
	return st
}

// Results returns the payload of the latest completed search.
func (s *Session) Results() *payload.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Search runs query. Only one search runs at a time; a second call while
// one is loading fails with ErrSearchInFlight. A response that arrives after
// the search was abandoned is discarded with ErrStaleResponse.
func (s *Session) Search(ctx context.Context, query string) (*payload.Payload, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrSearchInFlight
	}
	s.loading = true
	s.seq++
	seq := s.seq
	s.query = query
	s.mu.Unlock()

	s.publish(realtime.Event{Type: realtime.TypeSearchStarted, Seq: seq, Query: query})
	start := time.Now()
	p, err := s.backend.Search(ctx, query)
	elapsed := time.Since(start)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		logger.With("seq", seq).Debugf("dropped stale response for %q", query)
		s.publish(realtime.Event{Type: realtime.TypeResponseDropped, Seq: seq, Query: query})
		return nil, ErrStaleResponse
	}
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.results = nil
		s.mu.Unlock()

		s.record(storage.SearchEntry{QueryText: query, Error: err.Error(), Duration: elapsed})
		s.publish(realtime.Event{Type: realtime.TypeSearchFailed, Seq: seq, Query: query, Message: client.UserMessage(err)})
		return nil, err
	}
	s.lastErr = nil
	s.results = p
	s.tab = TabResults
	s.mu.Unlock()

	summary := Summarize(p)
	s.record(storage.SearchEntry{QueryText: query, Shape: summary.Shape, RecordCount: summary.Records, Duration: elapsed})
	s.publish(realtime.Event{Type: realtime.TypeSearchFinished, Seq: seq, Query: query, Data: summary})
	return p, nil
}

// Abandon gives up on the running search, if any. Its response will be
// dropped and a new search may start immediately.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		s.loading = false
		s.seq++
	}
}

// ShowReport replaces the current results with a saved report's data and
// switches to the chart tab. A running search is abandoned.
func (s *Session) ShowReport(r payload.SavedReport) {
	s.mu.Lock()
	s.loading = false
	s.seq++
	s.query = r.QueryText
	s.results = r.Data
	s.lastErr = nil
	s.tab = TabChart
	seq := s.seq
	s.mu.Unlock()

	s.publish(realtime.Event{Type: realtime.TypeTab, Seq: seq, Data: TabChart})
}

func (s *Session) Tab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

func (s *Session) SetTab(t Tab) {
	s.mu.Lock()
	s.tab = t
	seq := s.seq
	s.mu.Unlock()
	s.publish(realtime.Event{Type: realtime.TypeTab, Seq: seq, Data: t})
}

func (s *Session) record(e storage.SearchEntry) {
	if s.store == nil {
		return
	}
	if _, err := s.store.RecordSearch(e); err != nil {
		logger.Warnf("recording search history: %v", err)
	}
}

// Summary describes a result payload.
type Summary struct {
	Shape   string `json:"shape"`
	Records int    `json:"records"`
	Models  int    `json:"models,omitempty"`
}

func Summarize(p *payload.Payload) Summary {
	sum := Summary{Shape: payload.Unrecognized.String()}
	if shapes := payload.Classify(p, payload.Selection{}); len(shapes) > 0 {
		sum.Shape = shapes[0].String()
	}
	if p.IsMultiModel() {
		for _, r := range p.Results() {
			sum.Records += len(r.Records)
		}
		sum.Models = len(p.Results())
		return sum
	}
	sum.Records = len(p.Records())
	return sum
}

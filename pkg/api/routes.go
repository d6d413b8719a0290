package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Search page state
	mux.HandleFunc("GET /api/state", s.HandleState)
	mux.HandleFunc("POST /api/search", s.HandleSearch)
	mux.HandleFunc("POST /api/search/abandon", s.HandleAbandon)
	mux.HandleFunc("GET /api/results", s.HandleResults)
	mux.HandleFunc("PUT /api/tab", s.HandleSetTab)

	// Charting
	mux.HandleFunc("GET /api/fields", s.HandleFields)
	mux.HandleFunc("GET /api/chart", s.HandleChart)
	mux.HandleFunc("GET /api/chart/server", s.HandleServerChart)

	mux.HandleFunc("GET /api/favorites", s.HandleListFavorites)
	mux.HandleFunc("POST /api/favorites", s.HandleSaveFavorite)
	mux.HandleFunc("DELETE /api/favorites/{id}", s.HandleDeleteFavorite)

	mux.HandleFunc("GET /api/reports", s.HandleListReports)
	mux.HandleFunc("POST /api/reports", s.HandleCreateReport)
	mux.HandleFunc("DELETE /api/reports/{id}", s.HandleDeleteReport)
	mux.HandleFunc("GET /api/reports/{id}/chart", s.HandleReportChart)
	mux.HandleFunc("POST /api/reports/{id}/open", s.HandleOpenReport)

	// Local cache
	mux.HandleFunc("GET /api/history", s.HandleHistory)
	mux.HandleFunc("GET /api/stats", s.HandleStats)

	mux.HandleFunc("GET /api/events", s.HandleEvents)
	mux.HandleFunc("GET /health", s.HandleHealth)
}

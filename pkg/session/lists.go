package session

import (
	"context"
	"fmt"

	"github.com/hdsoft/unisearch/pkg/client"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/realtime"
	"github.com/hdsoft/unisearch/pkg/report"
)

// Favorites and reports are never patched locally: every mutation is
// followed by a full reload from the backend.

func (s *Session) Favorites() []payload.Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]payload.Favorite(nil), s.favorites...)
}

func (s *Session) Reports() []payload.SavedReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]payload.SavedReport(nil), s.reports...)
}

// Report returns a cached report by id.
func (s *Session) Report(id int) (payload.SavedReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.ID == id {
			return r, true
		}
	}
	return payload.SavedReport{}, false
}

func (s *Session) LoadFavorites(ctx context.Context) ([]payload.Favorite, error) {
	favs, err := s.backend.Favorites(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading favorites: %w", err)
	}
	s.mu.Lock()
	s.favorites = favs
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ReplaceFavorites(favs); err != nil {
			logger.Warnf("caching favorites: %v", err)
		}
	}
	s.publish(realtime.Event{Type: realtime.TypeFavorites, Data: favs})
	return favs, nil
}

func (s *Session) LoadReports(ctx context.Context) ([]payload.SavedReport, error) {
	reports, err := s.backend.Reports(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading reports: %w", err)
	}
	s.mu.Lock()
	s.reports = reports
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ReplaceReports(reports); err != nil {
			logger.Warnf("caching reports: %v", err)
		}
	}
	s.publish(realtime.Event{Type: realtime.TypeReports, Data: reportSummaries(reports)})
	return reports, nil
}

// Refresh reloads both lists.
func (s *Session) Refresh(ctx context.Context) error {
	if _, err := s.LoadFavorites(ctx); err != nil {
		return err
	}
	_, err := s.LoadReports(ctx)
	return err
}

// SaveFavorite bookmarks query, or the current query when empty.
func (s *Session) SaveFavorite(ctx context.Context, query string) (payload.Favorite, error) {
	if query == "" {
		query = s.State().Query
	}
	if query == "" {
		return payload.Favorite{}, ErrEmptyQuery
	}
	fav, err := s.backend.SaveFavorite(ctx, query)
	if err != nil {
		return payload.Favorite{}, err
	}
	if _, err := s.LoadFavorites(ctx); err != nil {
		return fav, err
	}
	return fav, nil
}

func (s *Session) DeleteFavorite(ctx context.Context, id int) error {
	if err := s.backend.DeleteFavorite(ctx, id); err != nil {
		return err
	}
	_, err := s.LoadFavorites(ctx)
	return err
}

// CreateReport persists a confirmed dialog bundle. It is meant to be passed
// to report.Dialog.Confirm so the dialog only closes once the backend has
// accepted the report.
func (s *Session) CreateReport(ctx context.Context) func(report.Bundle) error {
	return func(b report.Bundle) error {
		created, err := s.backend.CreateReport(ctx, b.CreateRequest())
		if err != nil {
			return err
		}
		logger.Infof("created report %d %q", created.ID, created.Name)
		// The report exists now; a failed reload must not reopen the dialog.
		if _, err := s.LoadReports(ctx); err != nil {
			logger.Warnf("reloading reports after creating %d: %v", created.ID, err)
		}
		return nil
	}
}

func (s *Session) DeleteReport(ctx context.Context, id int) error {
	if err := s.backend.DeleteReport(ctx, id); err != nil {
		return err
	}
	_, err := s.LoadReports(ctx)
	return err
}

// ReportSummary is a report without its data, as published to listeners.
type ReportSummary struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	QueryText         string `json:"query_text"`
	VisualizationType string `json:"visualization_type"`
	CreateDate        string `json:"create_date,omitempty"`
}

func reportSummaries(reports []payload.SavedReport) []ReportSummary {
	out := make([]ReportSummary, len(reports))
	for i, r := range reports {
		out[i] = ReportSummary{
			ID:                r.ID,
			Name:              r.Name,
			QueryText:         r.QueryText,
			VisualizationType: r.VisualizationType,
			CreateDate:        r.CreateDate,
		}
	}
	return out
}

var _ Backend = (*client.Client)(nil)

package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/report"
)

// yearMonth reads ?year=&month=, defaulting to the current month.
func yearMonth(r *http.Request) (int, int, error) {
	now := time.Now()
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		return 0, 0, err
	}
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func wantsMarkdown(r *http.Request) bool {
	return r.URL.Query().Get("format") == "markdown"
}

func writeMarkdown(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	year, month, err := yearMonth(r)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}

	split, err := s.app.ReportService.BudgetSplit(r.Context(), ownerID, year, month)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	if wantsMarkdown(r) {
		writeMarkdown(w, report.FormatBudget(split))
		return
	}
	WriteJSON(w, http.StatusOK, split)
}

func (s *Server) handleDashboardReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	dash, err := s.app.ReportService.Dashboard(r.Context(), ownerID)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	if wantsMarkdown(r) {
		writeMarkdown(w, report.FormatDashboard(dash))
		return
	}
	WriteJSON(w, http.StatusOK, dash)
}

func (s *Server) handleCalendarReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	year, month, err := yearMonth(r)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}

	cal, err := s.app.ReportService.Calendar(r.Context(), ownerID, year, month)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, cal)
}

// handleDataReset handles DELETE /api/data: every document the caller owns
// is removed. Other owners are untouched.
func (s *Server) handleDataReset(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	n, err := s.app.Store.DeleteOwner(r.Context(), ownerID, models.AllCollections...)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}

	s.logger.Info().Str("owner_id", ownerID).Int("documents", n).Msg("Owner data reset")
	WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

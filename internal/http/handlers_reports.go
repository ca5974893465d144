package http

import (
	"net/http"
	"strconv"
	"strings"

	"gigtracker/internal/core"
	"gigtracker/internal/ics"
	"gigtracker/internal/services"
)

// expenseRequest is the body of POST /api/expenses.
type expenseRequest struct {
	GigID       *int64     `json:"gig_id"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Date        core.Date  `json:"date"`
	Category    string     `json:"category"`
}

func (s *Server) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := s.gigs.ListPlaces(r.Context())
	if err != nil {
		writeServiceError(w, r, "list_places", err)
		return
	}
	if places == nil {
		places = []core.Place{}
	}
	writeJSON(w, http.StatusOK, places)
}

// handleListExpenses lists every expense, or one gig's with ?gig_id=.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	var (
		list []core.Expense
		err  error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("gig_id")); raw != "" {
		id, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || id <= 0 {
			writeError(w, r, http.StatusBadRequest, "invalid gig_id")
			return
		}
		list, err = s.gigs.ListExpensesByGig(r.Context(), id)
	} else {
		list, err = s.gigs.ListExpenses(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, "list_expenses", err)
		return
	}
	if list == nil {
		list = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, "create_expense", err)
		return
	}
	e, err := s.gigs.CreateExpense(r.Context(), core.Expense{
		GigID:       req.GigID,
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		Date:        req.Date,
		Category:    sanitizeInput(req.Category),
	})
	if err != nil {
		writeServiceError(w, r, "create_expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleDailyEarnings serves the per-day earnings table for an optional
// range, from cache when possible.
func (s *Server) handleDailyEarnings(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelector(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, "daily_earnings", err)
		return
	}
	days, err := s.earnings.GetOrLoad(earningsKey(sel), func() ([]core.DayEarning, error) {
		return s.gigs.DailyEarnings(r.Context(), sel)
	})
	if err != nil {
		writeServiceError(w, r, "daily_earnings", err)
		return
	}
	if days == nil {
		days = []core.DayEarning{}
	}
	writeJSON(w, http.StatusOK, days)
}

func earningsKey(sel services.Selector) string {
	return sel.From.String() + "/" + sel.To.String()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.gigs.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleCalendar exports every gig as an iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap, err := s.gigs.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, r, "calendar", err)
		return
	}
	body := ics.Export(snap.Gigs, snap.Overrides, s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="gigs.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

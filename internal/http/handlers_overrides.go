package http

import (
	"net/http"
	"strconv"

	"gigtracker/internal/core"
	applog "gigtracker/internal/log"
)

// overrideRequest is the body of PUT /api/gigs/{id}/overrides/{date}. A
// missing or null amount keeps the gig's amount.
type overrideRequest struct {
	Status string      `json:"status"`
	Amount *core.Money `json:"amount"`
	Notes  string      `json:"notes"`
}

// completeResponse reports the occurrence and the gig after completion.
type completeResponse struct {
	Gig        core.Gig                `json:"gig"`
	Occurrence core.ResolvedOccurrence `json:"occurrence"`
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// idAndDate parses the {id} and {date} path values.
func idAndDate(r *http.Request) (int64, core.Date, error) {
	id, err := pathID(r)
	if err != nil {
		return 0, core.Date{}, err
	}
	date, err := pathDate(r)
	if err != nil {
		return 0, core.Date{}, err
	}
	return id, date, nil
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "list_overrides", err)
		return
	}
	list, err := s.gigs.ListOverrides(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "list_overrides", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	id, date, err := idAndDate(r)
	if err != nil {
		writeServiceError(w, r, "get_override", err)
		return
	}
	o, err := s.gigs.GetOverride(r.Context(), id, date)
	if err != nil {
		writeServiceError(w, r, "get_override", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	id, date, err := idAndDate(r)
	if err != nil {
		writeServiceError(w, r, applog.OpOverride, err)
		return
	}
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, applog.OpOverride, err)
		return
	}
	status, err := core.ParseStatus(req.Status)
	if err != nil {
		writeServiceError(w, r, applog.OpOverride, err)
		return
	}
	o, err := s.gigs.SetOverride(r.Context(), id, date, status, req.Amount, sanitizeInput(req.Notes))
	if err != nil {
		writeServiceError(w, r, applog.OpOverride, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogOccurrenceChanged(r.Context(), applog.OpOverride, id, date.String(), string(o.Status))
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	id, date, err := idAndDate(r)
	if err != nil {
		writeServiceError(w, r, "delete_override", err)
		return
	}
	deleted, err := s.gigs.DeleteOverride(r.Context(), id, date)
	if err != nil {
		writeServiceError(w, r, "delete_override", err)
		return
	}
	if !deleted {
		writeError(w, r, http.StatusNotFound, "override not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompleteOccurrence marks one occurrence completed and returns the
// possibly completed parent gig with the resolved occurrence.
func (s *Server) handleCompleteOccurrence(w http.ResponseWriter, r *http.Request) {
	id, date, err := idAndDate(r)
	if err != nil {
		writeServiceError(w, r, applog.OpComplete, err)
		return
	}
	g, occ, err := s.gigs.CompleteOccurrence(r.Context(), id, date)
	if err != nil {
		writeServiceError(w, r, applog.OpComplete, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogOccurrenceChanged(r.Context(), applog.OpComplete, id, date.String(), string(occ.Status))
	writeJSON(w, http.StatusOK, completeResponse{Gig: g, Occurrence: occ})
}

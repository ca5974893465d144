package http

import (
	"net/http"

	"gigtracker/internal/core"
)

// gigRequest is the body of POST /api/gigs and PUT /api/gigs/{id}.
type gigRequest struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Amount           core.Money      `json:"amount"`
	Date             core.Date       `json:"date"`
	Status           string          `json:"status"`
	Place            string          `json:"place"`
	Type             string          `json:"gig_type"`
	RecurringEndDate core.Date       `json:"recurring_end_date"`
	Weekdays         core.WeekdaySet `json:"weekdays"`
	Pattern          string          `json:"recurring_pattern"`
}

func (req gigRequest) toGig() (core.Gig, error) {
	status, err := core.ParseStatus(req.Status)
	if err != nil {
		return core.Gig{}, err
	}
	gigType, err := core.ParseGigType(req.Type)
	if err != nil {
		return core.Gig{}, err
	}
	return core.Gig{
		Title:            sanitizeInput(req.Title),
		Description:      sanitizeInput(req.Description),
		Amount:           req.Amount,
		Date:             req.Date,
		Status:           status,
		Place:            sanitizeInput(req.Place),
		Type:             gigType,
		RecurringEndDate: req.RecurringEndDate,
		Weekdays:         req.Weekdays,
		Pattern:          sanitizeInput(req.Pattern),
	}, nil
}

func (s *Server) decodeGig(w http.ResponseWriter, r *http.Request) (core.Gig, error) {
	var req gigRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return core.Gig{}, err
	}
	return req.toGig()
}

// handleListGigs lists gigs, optionally filtered by type and by a date or
// range they occur in.
func (s *Server) handleListGigs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gigType, err := parseTypeFilter(q)
	if err != nil {
		writeServiceError(w, r, "list_gigs", err)
		return
	}
	sel, err := ParseSelector(q)
	if err != nil {
		writeServiceError(w, r, "list_gigs", err)
		return
	}
	gigs, err := s.gigs.GigsFor(r.Context(), gigType, sel)
	if err != nil {
		writeServiceError(w, r, "list_gigs", err)
		return
	}
	if gigs == nil {
		gigs = []core.Gig{}
	}
	writeJSON(w, http.StatusOK, gigs)
}

func (s *Server) handleCreateGig(w http.ResponseWriter, r *http.Request) {
	g, err := s.decodeGig(w, r)
	if err != nil {
		writeServiceError(w, r, "create_gig", err)
		return
	}
	created, err := s.gigs.CreateGig(r.Context(), g)
	if err != nil {
		writeServiceError(w, r, "create_gig", err)
		return
	}
	w.Header().Set("Location", "/api/gigs/"+itoa(created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetGig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "get_gig", err)
		return
	}
	g, err := s.gigs.GetGig(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get_gig", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "update_gig", err)
		return
	}
	g, err := s.decodeGig(w, r)
	if err != nil {
		writeServiceError(w, r, "update_gig", err)
		return
	}
	g.ID = id
	updated, err := s.gigs.UpdateGig(r.Context(), g)
	if err != nil {
		writeServiceError(w, r, "update_gig", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteGig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "delete_gig", err)
		return
	}
	if err := s.gigs.DeleteGig(r.Context(), id); err != nil {
		writeServiceError(w, r, "delete_gig", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOccurrences lists every resolved occurrence of one gig.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, "occurrences", err)
		return
	}
	occs, err := s.gigs.Occurrences(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "occurrences", err)
		return
	}
	if occs == nil {
		occs = []core.ResolvedOccurrence{}
	}
	writeJSON(w, http.StatusOK, occs)
}

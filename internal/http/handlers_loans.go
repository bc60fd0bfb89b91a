package http

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"shakkin/internal/core"
	applog "shakkin/internal/log"
)

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	list, err := s.loans.ListLoans(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]loanResponse, 0, len(list))
	for _, l := range list {
		out = append(out, toLoanResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	l, err := s.loans.GetLoan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	l, err := s.loans.CreateLoan(r.Context(), patch.Apply(core.Loan{ID: sanitizeInput(req.ID)}))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.loanChanged(r, applog.OpCreate, l)
	w.Header().Set("Location", "/api/loans/"+l.ID)
	writeJSON(w, http.StatusCreated, toLoanResponse(l))
}

func (s *Server) handleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ID != "" {
		writeError(w, r, fmt.Errorf("%w: id cannot be changed", errBadRequest))
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if patch.IsEmpty() {
		writeError(w, r, fmt.Errorf("%w: no fields to update", errBadRequest))
		return
	}

	l, err := s.loans.UpdateLoan(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.loanChanged(r, applog.OpUpdate, l)
	writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.loans.DeleteLoan(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.loanChanged(r, applog.OpDelete, core.Loan{ID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreviousTitles(w http.ResponseWriter, r *http.Request) {
	titles, err := s.loans.PreviousTitles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	out := make([]templateResponse, 0, len(core.Templates))
	for _, t := range core.Templates {
		out = append(out, toTemplateResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateFromTemplate creates a loan from a catalog entry. The body is
// optional; current_balance defaults to the template principal and other
// fields override the template.
func (s *Server) handleCreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	overrides, err := req.patch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	balance := 0.0
	if overrides.CurrentBalance != nil {
		balance = *overrides.CurrentBalance
		overrides.CurrentBalance = nil
	}

	l, err := s.loans.CreateFromTemplate(r.Context(), r.PathValue("id"), balance, overrides)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.loanChanged(r, applog.OpCreate, l)
	w.Header().Set("Location", "/api/loans/"+l.ID)
	writeJSON(w, http.StatusCreated, toLoanResponse(l))
}

func (s *Server) loanChanged(r *http.Request, op string, l core.Loan) {
	atomic.AddInt64(&s.loansChanged, 1)
	s.events.LogLoanChanged(r.Context(), op, l.ID, l.Kind.String(), l.CurrentBalance)
}

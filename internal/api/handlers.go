package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tranqhq/tranq/internal/dispatch"
	"github.com/tranqhq/tranq/internal/txn"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.State()
	s.writeJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:    st.QueueLength,
		Busy:          st.Busy,
		Open:          st.Open,
		ConfigHash:    s.config.ConfigHash,
	})
}

// handleState handles GET /state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.State())
}

// handleSubmit handles POST /txn. The default is fire-and-forget, returning
// the transaction id immediately; ?wait=true blocks until settlement and
// returns the result inline.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Command == "" {
		s.writeError(w, http.StatusBadRequest, "command is empty")
		return
	}

	t := &txn.ExecTxn{
		Command: req.Command,
		Args:    req.Args,
		Dir:     req.Dir,
		Timeout: time.Duration(req.TimeoutMS) * time.Millisecond,
	}

	if r.URL.Query().Get("wait") == "true" {
		result, err := s.ctrl.Transact(r.Context(), t)
		if err != nil {
			var de *dispatch.Error
			if errors.As(err, &de) {
				s.writeJSON(w, statusForKind(de.Kind), TransactResponse{
					Status: "error",
					Error:  de.Description,
					Kind:   string(de.Kind),
				})
				return
			}
			s.writeJSON(w, http.StatusBadGateway, TransactResponse{Status: "error", Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, TransactResponse{Status: "succeeded", Result: result})
		return
	}

	id, err := s.ctrl.Submit(t, nil)
	if err != nil {
		if dispatch.IsKind(err, dispatch.KindForbidden) {
			s.writeError(w, http.StatusForbidden, err.Error())
			return
		}
		s.logger.Error("failed to submit transaction", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit transaction")
		return
	}
	s.writeJSON(w, http.StatusAccepted, SubmitResponse{TxnID: id, Status: "queued"})
}

// handleAbort handles DELETE /txn/{txnID}. A miss is reported, not erred:
// the transaction may simply have completed already.
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "txnID")
	s.writeJSON(w, http.StatusOK, AbortResponse{TxnID: id, Aborted: s.ctrl.Abort(id)})
}

// handleAbortAll handles DELETE /txn.
func (s *Server) handleAbortAll(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, AbortAllResponse{Aborted: s.ctrl.AbortAll()})
}

// handleToggle handles PUT /dispatcher: {open?, stopped?}.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Open == nil && req.Stopped == nil {
		s.writeError(w, http.StatusBadRequest, "nothing to toggle: provide open and/or stopped")
		return
	}

	if req.Open != nil {
		s.ctrl.SetOpen(*req.Open)
	}
	if req.Stopped != nil {
		s.ctrl.SetStopped(*req.Stopped)
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.State())
}

// handleHistory handles GET /history?limit=N from the settlement journal.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "settlement journal is disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read settlement history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read settlement history")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func statusForKind(kind dispatch.ErrorKind) int {
	switch kind {
	case dispatch.KindForbidden:
		return http.StatusForbidden
	case dispatch.KindTimeout:
		return http.StatusGatewayTimeout
	case dispatch.KindAborted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

package adapthttp

import (
	"net/http"

	"quizfest/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *Server) actor(r *http.Request) app.Actor {
	a := app.Actor{ClientIP: clientIP(r)}
	if sess := sessionFrom(r.Context()); sess != nil {
		a.User = sess.User
	}
	return a
}

func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := s.regs.List(r.Context(), s.actor(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": regs})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	rec, err := s.regs.Search(r.Context(), s.actor(r), chi.URLParam(r, "term"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req app.ExportRequest
	if err := s.parseJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	res, err := s.exports.AuthorizeExport(r.Context(), sessionFrom(r.Context()), clientIP(r), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+res.Meta.FileName+`"`)
		w.WriteHeader(http.StatusOK)
		if err := writeRegistrationsCSV(w, res.Records); err != nil {
			s.log.Warn("csv export write failed", zap.Error(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    res.Records,
		"meta":    res.Meta,
	})
}

func (s *Server) handleContactList(w http.ResponseWriter, r *http.Request) {
	subs, err := s.contacts.List(r.Context(), s.actor(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": subs})
}

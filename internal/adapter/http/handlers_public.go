package adapthttp

import (
	"net/http"

	"quizfest/internal/app"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in app.RegistrationInput
	if err := s.parseJSON(w, r, &in); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	reg, err := s.regs.Register(r.Context(), in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Registration created successfully",
		"data":    reg,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.regs.Stats(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	var in app.ContactInput
	if err := s.parseJSON(w, r, &in); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	if _, err := s.contacts.Submit(r.Context(), in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Contact submission created successfully",
	})
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonathan/tubedigest/internal/controller"
	"github.com/jonathan/tubedigest/internal/gateway"
	"github.com/jonathan/tubedigest/internal/history"
	"github.com/jonathan/tubedigest/internal/logging"
	"github.com/jonathan/tubedigest/internal/youtube"
)

// Form field names
const (
	FieldVideoURL   = "youtubeVideoUrl"
	FieldHistoryURL = "url"
)

const maxBodyBytes = 64 << 10

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	History []history.Item `json:"history"`
}

// handleIndex renders the page for the caller's session
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	s.render(w, http.StatusOK, ctrl.View())
}

// handleSubmitForm runs a summary from the page form, then redirects back to the page
func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid form body")
		return
	}

	err = ctrl.Submit(r.Context(), r.PostFormValue(FieldVideoURL))
	var urlErr *youtube.ValidationError
	if errors.As(err, &urlErr) {
		s.render(w, http.StatusBadRequest, ctrl.View())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleViewHistory shows a stored summary
func (s *Server) handleViewHistory(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid form body")
		return
	}

	if err := ctrl.SelectHistoryItem(r.Context(), r.PostFormValue(FieldHistoryURL)); err != nil {
		s.render(w, HTTPStatus(err), ctrl.View())
		return
	}
	http.Redirect(w, r, "/#top", http.StatusSeeOther)
}

// handleClearHistory empties the session history
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	// Failures become a notification on the page.
	_ = ctrl.ClearHistory(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// decodeInput reads the JSON request body
func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (gateway.Input, bool) {
	var in gateway.Input
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return in, false
	}
	return in, true
}

// handleAPISummarize summarizes a video and records it in the session history
func (s *Server) handleAPISummarize(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}

	res, err := ctrl.Summarize(r.Context(), in.YoutubeVideoURL)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), publicMessage(err))
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleAPISummarizeStream is handleAPISummarize reported as Server-Sent Events
func (s *Server) handleAPISummarizeStream(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}
	if err := youtube.ValidateURL(in.YoutubeVideoURL); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	sse.WriteState(string(controller.StatusLoading))
	res, err := ctrl.Summarize(r.Context(), in.YoutubeVideoURL)
	switch {
	case errors.Is(err, controller.ErrSuperseded):
		sse.WriteComplete("superseded")
	case err != nil:
		sse.WriteError(publicMessage(err))
		sse.WriteComplete(string(controller.StatusError))
	default:
		if err := sse.WriteEvent(EventResult, res); err != nil {
			s.log.Warn("failed to stream result", logging.Error(err))
			return
		}
		sse.WriteComplete(string(controller.StatusSuccess))
	}
}

// handleAPIHistory lists the session history, newest first
func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	s.jsonResponse(w, http.StatusOK, HistoryResponse{History: ctrl.History()})
}

// handleAPIClearHistory empties the session history
func (s *Server) handleAPIClearHistory(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	if err := ctrl.ClearHistory(r.Context()); err != nil {
		s.errorResponse(w, HTTPStatus(err), publicMessage(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

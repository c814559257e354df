package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"sjsage522/hotelpricesync/internal/ledger"
	"sjsage522/hotelpricesync/pkg/errors"
	"sjsage522/hotelpricesync/services/lock"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a synchronizer or ledger error to a response status
func statusFor(err error) int {
	switch {
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case stderrors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, lock.ErrLocked), stderrors.Is(err, ledger.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		writeError(w, status, "Hotel not found")
		return
	case http.StatusConflict:
		if stderrors.Is(err, ledger.ErrDuplicate) {
			writeError(w, status, "Hotel with this URL already exists")
			return
		}
		writeError(w, status, "A synchronization for this hotel is already running")
		return
	case http.StatusInternalServerError:
		s.log.Error().Err(err).Msg("Request failed")
		writeError(w, status, "internal error")
		return
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		writeError(w, status, e.Message)
		return
	}
	writeError(w, status, err.Error())
}

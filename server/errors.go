package server

import (
	"net/http"

	"github.com/realtechee/platform/errors"
)

// statusForError maps platform sentinel errors onto HTTP status codes.
// Anything unclassified is a 500.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.IsThrottled(err):
		return http.StatusTooManyRequests
	case errors.Is(err, errors.ErrConflict):
		return http.StatusConflict
	case errors.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes a JSON error response with the status implied by
// the error's sentinel. Internal errors are not leaked verbatim.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeError(w, status, message)
}

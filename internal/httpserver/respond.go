package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/freightplan/planningserver/internal/apperr"
)

// Respond writes v as a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// RespondWithWarnings writes v as a JSON response, embedding non-blocking
// domain-rule warnings alongside the success body (spec §7: warnings never
// fail the call but must still reach the client).
func RespondWithWarnings(w http.ResponseWriter, status int, v any, warnings []apperr.FieldProblem) {
	if len(warnings) == 0 {
		Respond(w, status, v)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Data     any                  `json:"data"`
		Warnings []apperr.FieldProblem `json:"warnings"`
	}{Data: v, Warnings: warnings})
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Status  int    `json:"-"`
}

// RespondError writes a standard error envelope.
func RespondError(w http.ResponseWriter, status int, code, detail string) {
	Respond(w, status, ErrorResponse{Error: code, Detail: detail})
}

// RespondAppError maps a *apperr.Error to its HTTP status and writes it
// (spec §7's single error-mapping chokepoint, shared by every domain
// handler). Errors that are not *apperr.Error are treated as unexpected
// and surfaced as 500 without leaking internals.
func RespondAppError(w http.ResponseWriter, err error) {
	aerr, ok := apperr.As(err)
	if !ok {
		RespondError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}
	switch aerr.Kind {
	case apperr.KindNotFound:
		RespondError(w, http.StatusNotFound, "not_found", aerr.Message)
	case apperr.KindConflict:
		RespondError(w, http.StatusConflict, "conflict", aerr.Message)
	case apperr.KindValidation:
		Respond(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:    "validation_error",
			Message:  aerr.Message,
			Errors:   aerr.Errors,
			Warnings: aerr.Warnings,
		})
	case apperr.KindForbidden:
		RespondError(w, http.StatusForbidden, "forbidden", aerr.Message)
	case apperr.KindAuthFailed:
		RespondError(w, http.StatusUnauthorized, "unauthorized", aerr.Message)
	case apperr.KindLocked:
		RespondError(w, http.StatusUnauthorized, "locked", aerr.Message)
	default:
		RespondError(w, http.StatusInternalServerError, "internal_error", aerr.Message)
	}
}

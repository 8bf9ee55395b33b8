// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/manarah-platform/manarah/internal/shared"
)

// RespondError maps core failure kinds to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	title := "Internal Error"
	switch {
	case errors.Is(err, shared.ErrValidation):
		status, title = http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrForbidden):
		status, title = http.StatusForbidden, "Forbidden"
	case errors.Is(err, shared.ErrInvalidState):
		status, title = http.StatusConflict, "Invalid State"
	case errors.Is(err, shared.ErrInvalidTransition):
		status, title = http.StatusConflict, "Invalid Transition"
	case errors.Is(err, shared.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrConflict):
		status, title = http.StatusConflict, "Concurrency Conflict"
	default:
		Problem(w, status, title, "")
		return
	}
	detail := err.Error()
	pd := ProblemDetail{Title: title, Status: status, Detail: detail}
	if f, ok := shared.AsFail(err); ok {
		pd.Field = f.Field
		pd.Count = f.Count
	}
	JSON(w, status, pd)
}

package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/validator"
)

var ErrInvalidToken = errors.New("invalid or missing access token")

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var activeErr *sitevisit.ActiveSessionError
	if errors.As(err, &activeErr) {
		ConflictWithDetails(w, "An active site session already exists for this user", map[string]string{
			"session_id": activeErr.SessionID,
		})
		return
	}

	switch {
	case errors.Is(err, ErrInvalidToken):
		Unauthorized(w, err.Error())

	// Site session domain errors
	case errors.Is(err, sitevisit.ErrSessionNotFound):
		NotFound(w, "Site session not found")
	case errors.Is(err, sitevisit.ErrEventOutOfOrder):
		Conflict(w, err.Error())
	case errors.Is(err, sitevisit.ErrSessionClosed):
		Conflict(w, "Site session is already closed")
	case errors.Is(err, sitevisit.ErrActiveSessionExists):
		Conflict(w, "An active site session already exists for this user")
	case errors.Is(err, sitevisit.ErrValidation):
		BadRequest(w, err.Error(), nil)

	// Punch domain errors
	case errors.Is(err, punch.ErrUnknownKind):
		NotFound(w, "Unknown punch kind")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

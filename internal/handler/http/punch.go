package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/site-visit-go/internal/handler/http/response"
)

type PunchHandler interface {
	// Record returns the handler for one kind/direction endpoint
	Record(kind punch.Kind, dir punch.Direction) http.HandlerFunc
}

type punchHandlerImpl struct {
	punchService punch.PunchService
}

func NewPunchHandler(punchService punch.PunchService) PunchHandler {
	return &punchHandlerImpl{
		punchService: punchService,
	}
}

// Record implements PunchHandler.
func (h *punchHandlerImpl) Record(kind punch.Kind, dir punch.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			response.HandleError(w, response.ErrInvalidToken)
			return
		}

		var req punch.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Error("Failed to decode punch request", "error", err, "kind", kind, "direction", dir)
			response.BadRequest(w, "Invalid request format", nil)
			return
		}

		if req.UserID == "" {
			req.UserID = userID
		}
		if req.UserID != userID {
			response.Forbidden(w, "user_id does not match the access token")
			return
		}

		result, err := h.punchService.Record(r.Context(), kind, dir, req)
		if err != nil {
			response.HandleError(w, err)
			return
		}

		response.Created(w, string(kind)+" "+string(dir)+" recorded", result)
	}
}

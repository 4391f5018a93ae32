package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/site-visit-go/internal/handler/http/response"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type SiteSessionHandler interface {
	RecordEvent(w http.ResponseWriter, r *http.Request)
	GetSession(w http.ResponseWriter, r *http.Request)
}

type siteSessionHandlerImpl struct {
	siteSessionService sitevisit.SiteSessionService
}

func NewSiteSessionHandler(siteSessionService sitevisit.SiteSessionService) SiteSessionHandler {
	return &siteSessionHandlerImpl{
		siteSessionService: siteSessionService,
	}
}

// RecordEvent implements SiteSessionHandler.
func (h *siteSessionHandlerImpl) RecordEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.HandleError(w, response.ErrInvalidToken)
		return
	}

	var req sitevisit.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode site event", "error", err)
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

	result, err := h.siteSessionService.RecordEvent(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// GetSession implements SiteSessionHandler.
func (h *siteSessionHandlerImpl) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.HandleError(w, response.ErrInvalidToken)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		response.BadRequest(w, "session id is required", nil)
		return
	}
	if !validator.IsValidUUID(sessionID) {
		response.BadRequest(w, "session id must be a valid UUID", nil)
		return
	}

	session, err := h.siteSessionService.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, sitevisit.SessionEnvelope{
		Success: true,
		Session: session,
	})
}

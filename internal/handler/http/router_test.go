package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type stubSiteSessionService struct {
	recordEvent func(ctx context.Context, req sitevisit.EventRequest) (sitevisit.EventResponse, error)
	getSession  func(ctx context.Context, sessionID, userID string) (sitevisit.SessionResponse, error)
}

func (s *stubSiteSessionService) RecordEvent(ctx context.Context, req sitevisit.EventRequest) (sitevisit.EventResponse, error) {
	return s.recordEvent(ctx, req)
}

func (s *stubSiteSessionService) GetSession(ctx context.Context, sessionID, userID string) (sitevisit.SessionResponse, error) {
	return s.getSession(ctx, sessionID, userID)
}

func (s *stubSiteSessionService) AbandonStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

type stubPunchService struct {
	calls []string
}

func (s *stubPunchService) Record(ctx context.Context, kind punch.Kind, dir punch.Direction, req punch.Request) (punch.Response, error) {
	s.calls = append(s.calls, string(kind)+"/"+string(dir))
	return punch.Response{ID: "p-1", UserID: req.UserID, Kind: kind, Direction: string(dir), Status: punch.StatusPending}, nil
}

type routerFixture struct {
	handler http.Handler
	jwt     jwt.Service
	site    *stubSiteSessionService
	punches *stubPunchService
}

func newRouterFixture(t *testing.T, limiter *middleware.RateLimiter) *routerFixture {
	t.Helper()
	f := &routerFixture{
		jwt:     jwt.NewJWTService(handlerTestSecret, "1h"),
		site:    &stubSiteSessionService{},
		punches: &stubPunchService{},
	}
	f.handler = NewRouter(RouterOptions{Environment: "test"}, f.jwt, limiter,
		NewSiteSessionHandler(f.site), NewPunchHandler(f.punches))
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, _, err := f.jwt.GenerateAccessToken(userID, userID+"@example.com")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRecordEvent_ReturnsFlatEnvelope(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.site.recordEvent = func(ctx context.Context, req sitevisit.EventRequest) (sitevisit.EventResponse, error) {
		assert.Equal(t, "EMP001", req.UserID)
		assert.Equal(t, sitevisit.EventOfficeLogout, req.Event)
		stamp := "2025-03-10T09:00:00Z"
		return sitevisit.EventResponse{
			Success:   true,
			SessionID: "abc123",
			Session:   sitevisit.SessionResponse{SessionID: "abc123", Status: sitevisit.StatusActive, OfficeLogoutTime: &stamp},
		}, nil
	}

	rec := f.do(t, http.MethodPost, "/api/site/session/event/", "EMP001", map[string]interface{}{
		"event":     "office_logout",
		"timestamp": "2025-03-10T09:00:00Z",
		"reason":    "client visit",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "abc123", body["session_id"])
	session := body["session"].(map[string]interface{})
	assert.Equal(t, "2025-03-10T09:00:00Z", session["office_logout_time"])
	assert.Nil(t, session["client_login_time"])
}

func TestRecordEvent_RequiresAccessToken(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/site/session/event/", "", map[string]interface{}{"event": "office_logout"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecordEvent_ForeignUserIsForbidden(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/site/session/event/", "EMP001", map[string]interface{}{
		"user_id": "EMP002",
		"event":   "client_login",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRecordEvent_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", validator.ValidationErrors{{Field: "session_id", Message: "session_id is required for client_login"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"not found", sitevisit.ErrSessionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"out of order", sitevisit.ErrEventOutOfOrder, http.StatusConflict, "CONFLICT"},
		{"closed", sitevisit.ErrSessionClosed, http.StatusConflict, "CONFLICT"},
		{"active exists", sitevisit.ErrActiveSessionExists, http.StatusConflict, "CONFLICT"},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRouterFixture(t, nil)
			f.site.recordEvent = func(ctx context.Context, req sitevisit.EventRequest) (sitevisit.EventResponse, error) {
				return sitevisit.EventResponse{}, tc.err
			}

			rec := f.do(t, http.MethodPost, "/api/site/session/event/", "EMP001", map[string]interface{}{"event": "client_login"})

			assert.Equal(t, tc.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.code, body["error"].(map[string]interface{})["code"])
		})
	}
}

func TestRecordEvent_ActiveSessionConflictCarriesID(t *testing.T) {
	const activeID = "0195a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"
	f := newRouterFixture(t, nil)
	f.site.recordEvent = func(ctx context.Context, req sitevisit.EventRequest) (sitevisit.EventResponse, error) {
		return sitevisit.EventResponse{}, &sitevisit.ActiveSessionError{SessionID: activeID}
	}

	rec := f.do(t, http.MethodPost, "/api/site/session/event/", "EMP001", map[string]interface{}{"event": "office_logout"})

	require.Equal(t, http.StatusConflict, rec.Code)
	errBody := decodeBody(t, rec)["error"].(map[string]interface{})
	assert.Equal(t, "CONFLICT", errBody["code"])
	assert.Equal(t, activeID, errBody["details"].(map[string]interface{})["session_id"])
}

func TestRecordEvent_MalformedBody(t *testing.T) {
	f := newRouterFixture(t, nil)
	token, _, err := f.jwt.GenerateAccessToken("EMP001", "emp@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/site/session/event/", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession_UsesTokenUser(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.site.getSession = func(ctx context.Context, sessionID, userID string) (sitevisit.SessionResponse, error) {
		if userID != "EMP001" {
			return sitevisit.SessionResponse{}, sitevisit.ErrSessionNotFound
		}
		return sitevisit.SessionResponse{SessionID: sessionID, UserID: userID, Status: sitevisit.StatusActive}, nil
	}

	const sessionID = "0195a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"
	rec := f.do(t, http.MethodGet, "/api/site/session/"+sessionID+"/", "EMP001", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, sessionID, body["session"].(map[string]interface{})["session_id"])

	rec = f.do(t, http.MethodGet, "/api/site/session/"+sessionID+"/", "EMP999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/site/session/abc123/", "EMP001", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPunchRoutes(t *testing.T) {
	f := newRouterFixture(t, nil)

	paths := []string{
		"/api/punchin/", "/api/punchout/",
		"/api/lunch/in/", "/api/lunch/out/",
		"/api/tea/in/", "/api/tea/out/",
		"/api/freshup/in/", "/api/freshup/out/",
	}
	for _, path := range paths {
		rec := f.do(t, http.MethodPost, path, "EMP001", map[string]interface{}{"timestamp": "2025-03-10T09:00:00Z"})
		assert.Equal(t, http.StatusCreated, rec.Code, path)
	}

	assert.Equal(t, []string{
		"punch/in", "punch/out",
		"lunch/in", "lunch/out",
		"tea/in", "tea/out",
		"freshup/in", "freshup/out",
	}, f.punches.calls)
}

func TestRateLimitedPerUser(t *testing.T) {
	f := newRouterFixture(t, middleware.NewRateLimiter(1, time.Minute))

	first := f.do(t, http.MethodPost, "/api/punchin/", "EMP001", map[string]interface{}{})
	second := f.do(t, http.MethodPost, "/api/punchin/", "EMP001", map[string]interface{}{})
	other := f.do(t, http.MethodPost, "/api/punchin/", "EMP002", map[string]interface{}{})

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusCreated, other.Code)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kbase/internal/auth"
	"github.com/hitoshi/kbase/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

// --- ヘルパー ---

var testAuthConfig = AuthHandlerConfig{
	BaseURL:       "http://localhost:3000",
	SessionMaxAge: 86400,
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func newCallbackRequest(query, stateCookie string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query, nil)
	if stateCookie != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: stateCookie})
	}
	return req
}

// --- Login ---

func TestAuthHandler_Login_SetsStateCookieAndRedirects(t *testing.T) {
	var gotState string
	svc := &mockAuthService{
		getLoginURLFn: func(state string) string {
			gotState = state
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "https://accounts.google.com/") {
		t.Errorf("Location = %q", loc)
	}

	c := findCookie(resp, oauthStateCookie)
	if c == nil {
		t.Fatal("expected oauth_state cookie")
	}
	if c.Value != gotState || len(c.Value) != 32 {
		t.Errorf("state cookie = %q, state passed to provider = %q", c.Value, gotState)
	}
	if !c.HttpOnly || c.Path != oauthStatePath || c.MaxAge != oauthStateMaxAge {
		t.Errorf("unexpected state cookie attributes: %+v", c)
	}
}

// --- Callback ---

func TestAuthHandler_Callback_Success_SetsSessionCookieAndRedirects(t *testing.T) {
	var gotCode string
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			gotCode = code
			return &model.Session{
				ID:        "session-id-abc",
				Subject:   "google|123",
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		CookieDomain:  "kb.example.com",
		CookieSecure:  true,
		SessionMaxAge: 3600,
	})

	w := httptest.NewRecorder()
	h.Callback(w, newCallbackRequest("code=test-code&state=test-state", "test-state"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := resp.Header.Get("Location"); loc != "http://localhost:3000" {
		t.Errorf("Location = %q, want http://localhost:3000", loc)
	}
	if gotCode != "test-code" {
		t.Errorf("code passed to service = %q", gotCode)
	}

	sc := findCookie(resp, sessionCookieName)
	if sc == nil {
		t.Fatal("expected session_id cookie")
	}
	if sc.Value != "session-id-abc" || sc.MaxAge != 3600 || sc.Domain != "kb.example.com" {
		t.Errorf("unexpected session cookie: %+v", sc)
	}
	if !sc.HttpOnly || !sc.Secure || sc.SameSite != http.SameSiteLaxMode {
		t.Errorf("session cookie must be HttpOnly, Secure and SameSite=Lax: %+v", sc)
	}

	if st := findCookie(resp, oauthStateCookie); st == nil || st.MaxAge >= 0 {
		t.Errorf("state cookie should be cleared, got %+v", st)
	}
}

func TestAuthHandler_Callback_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		stateCookie string
		serviceErr  error
		wantStatus  int
		wantCode    string
	}{
		{"missing state cookie", "code=c&state=s", "", nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"state mismatch", "code=c&state=s", "other", nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"empty state", "code=c&state=", "", nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"missing code", "state=s", "s", nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"service failure", "code=c&state=s", "s", errors.New("token exchange failed"), http.StatusInternalServerError, model.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockAuthService{
				handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
					called = true
					return nil, tt.serviceErr
				},
			}
			h := NewAuthHandler(svc, testAuthConfig)

			w := httptest.NewRecorder()
			h.Callback(w, newCallbackRequest(tt.query, tt.stateCookie))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			json.NewDecoder(w.Body).Decode(&body)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if strings.Contains(body.Message, "token exchange") {
				t.Error("internal error detail leaked to response")
			}
			if called != (tt.serviceErr != nil) {
				t.Errorf("service called = %v", called)
			}
		})
	}
}

func TestAuthHandler_Callback_ProviderError_RedirectsWithAuthError(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			t.Fatal("service should not be called when the provider reports an error")
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	w := httptest.NewRecorder()
	h.Callback(w, newCallbackRequest("error=access_denied&state=s", "s"))

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loc := w.Header().Get("Location"); loc != "http://localhost:3000?auth_error=access_denied" {
		t.Errorf("Location = %q", loc)
	}
	if findCookie(w.Result(), sessionCookieName) != nil {
		t.Error("no session cookie should be set")
	}
}

// --- Logout ---

func TestAuthHandler_Logout(t *testing.T) {
	tests := []struct {
		name        string
		cookie      string
		logoutErr   error
		wantDeleted string
	}{
		{"with session", "session-123", nil, "session-123"},
		{"store failure still clears cookie", "session-123", errors.New("db down"), "session-123"},
		{"without session", "", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deleted string
			svc := &mockAuthService{
				logoutFn: func(ctx context.Context, sessionID string) error {
					deleted = sessionID
					return tt.logoutErr
				},
			}
			h := NewAuthHandler(svc, testAuthConfig)

			req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.Logout(w, req)

			if w.Code != http.StatusTemporaryRedirect {
				t.Errorf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("deleted session = %q, want %q", deleted, tt.wantDeleted)
			}
			c := findCookie(w.Result(), sessionCookieName)
			if c == nil || c.MaxAge >= 0 || c.Value != "" {
				t.Errorf("session cookie should be cleared, got %+v", c)
			}
		})
	}
}

// --- Me ---

func TestAuthHandler_Me(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		user       *model.User
		err        error
		wantStatus int
		wantName   any
	}{
		{"authenticated", "s", &model.User{ID: "user-1", Email: "me@example.com", Name: "Me"}, nil, http.StatusOK, "Me"},
		{"name unset is null", "s", &model.User{ID: "user-1", Email: "me@example.com"}, nil, http.StatusOK, nil},
		{"expired session", "s", nil, auth.ErrSessionNotFound, http.StatusUnauthorized, nil},
		{"store error", "s", nil, errors.New("db down"), http.StatusInternalServerError, nil},
		{"no cookie", "", nil, nil, http.StatusUnauthorized, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
					return tt.user, tt.err
				},
			}
			h := NewAuthHandler(svc, testAuthConfig)

			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.Me(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["id"] != tt.user.ID || body["email"] != tt.user.Email {
				t.Errorf("body = %v", body)
			}
			if name, ok := body["name"]; !ok || name != tt.wantName {
				t.Errorf("name = %v (present=%v), want %v", name, ok, tt.wantName)
			}
		})
	}
}

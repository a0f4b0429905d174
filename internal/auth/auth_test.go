package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"amneziawg-webui/internal/settings"
)

func init() {
	bcryptCost = 4
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	sm := settings.NewManager(filepath.Join(dir, "settings.json"))
	return NewManager(sm)
}

func TestEnsureDefaults_CreatesHashAndToken(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	s, _ := m.settings.Get()
	if s.AuthPasswordHash == "" {
		t.Error("expected password hash to be set")
	}
	if s.AuthToken == "" {
		t.Error("expected auth token to be set")
	}
}

func TestEnsureDefaults_Idempotent(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureDefaults(); err != nil {
		t.Fatalf("first EnsureDefaults: %v", err)
	}
	s1, _ := m.settings.Get()

	if err := m.EnsureDefaults(); err != nil {
		t.Fatalf("second EnsureDefaults: %v", err)
	}
	s2, _ := m.settings.Get()

	if s1.AuthPasswordHash != s2.AuthPasswordHash {
		t.Error("password hash changed on second call")
	}
	if s1.AuthToken != s2.AuthToken {
		t.Error("token changed on second call")
	}
}

func TestCheckPassword_DefaultPassword(t *testing.T) {
	m := newTestManager(t)
	// Before EnsureDefaults no hash is stored, so the plain default is compared.
	if !m.CheckPassword(defaultPassword) {
		t.Error("default password should be accepted before hash is stored")
	}
	if m.CheckPassword("wrong") {
		t.Error("wrong password should be rejected")
	}
}

func TestCheckPassword_AfterSetPassword(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	if !m.CheckPassword(defaultPassword) {
		t.Error("default password should work after EnsureDefaults")
	}

	if err := m.SetPassword("newpass"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if !m.CheckPassword("newpass") {
		t.Error("new password should be accepted")
	}
	if m.CheckPassword(defaultPassword) {
		t.Error("old password should be rejected after change")
	}
}

func TestSetPassword_EmptyRejected(t *testing.T) {
	m := newTestManager(t)
	if err := m.SetPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestValidateToken(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	token, err := m.GetToken()
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}

	if !m.ValidateToken(token) {
		t.Error("stored token should be valid")
	}
	if m.ValidateToken("badtoken") {
		t.Error("wrong token should be invalid")
	}
	if m.ValidateToken("") {
		t.Error("empty token should be invalid")
	}
}

func TestRegenerateToken(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	old, _ := m.GetToken()

	newToken, err := m.RegenerateToken()
	if err != nil {
		t.Fatalf("RegenerateToken: %v", err)
	}
	if newToken == old {
		t.Error("regenerated token should differ from old token")
	}
	if !m.ValidateToken(newToken) {
		t.Error("new token should be valid")
	}
	if m.ValidateToken(old) {
		t.Error("old token should be invalidated")
	}
}

func TestMiddleware(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	token, _ := m.GetToken()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		path   string
		bearer string
		cookie string
		status int
	}{
		{name: "public version", path: "/version", status: http.StatusNoContent},
		{name: "public login", path: "/login", status: http.StatusNoContent},
		{name: "no credentials", path: "/amneziawg/config", status: http.StatusUnauthorized},
		{name: "bearer token", path: "/amneziawg/config", bearer: token, status: http.StatusNoContent},
		{name: "wrong bearer wins over valid cookie", path: "/amneziawg/config", bearer: "nope", cookie: token, status: http.StatusUnauthorized},
		{name: "session cookie", path: "/amneziawg/save/basic", cookie: token, status: http.StatusNoContent},
		{name: "stale cookie", path: "/amneziawg/save/basic", cookie: "stale", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tc.bearer)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "abc")
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName || cookies[0].Value != "abc" || !cookies[0].HttpOnly {
		t.Fatalf("unexpected session cookie: %+v", cookies)
	}

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec)
	cookies = rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected expiring cookie, got %+v", cookies)
	}
}

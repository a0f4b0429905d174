package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"amneziawg-webui/internal/auth"
	"amneziawg-webui/internal/database"
	"amneziawg-webui/internal/diaglog"
	"amneziawg-webui/internal/editor"
	"amneziawg-webui/internal/form"
	"amneziawg-webui/internal/gateway"
	"amneziawg-webui/internal/keys"
	"amneziawg-webui/internal/repository"
	"amneziawg-webui/internal/settings"
	"amneziawg-webui/internal/tunnel"
)

const (
	testPrivateKey = "QLowSWJxH9WJ4Az7MwZXN49wdMUt8KAe9yU8xgoJGGs="
	testPeerKey    = "bbbaUHaEAPokg0IlEh2ShB35kIAosMo1pSlB3TduUTA="
)

func newTestServer(t *testing.T, withAuth bool) (*Server, *auth.Manager) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo, err := repository.NewStore(db)
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	dir := t.TempDir()
	settingsManager := settings.NewManager(filepath.Join(dir, "settings.json"))
	var authManager *auth.Manager
	if withAuth {
		authManager = auth.NewManager(settingsManager)
		if err := authManager.EnsureDefaults(); err != nil {
			t.Fatalf("EnsureDefaults: %v", err)
		}
	}
	diag := diaglog.New(filepath.Join(dir, "diagnostics.log"))
	t.Cleanup(func() { diag.Close() })
	return New(repo, authManager, settingsManager, diag), authManager
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSave(t *testing.T, rec *httptest.ResponseRecorder) saveResponse {
	t.Helper()
	var resp saveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode save response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func loadConfig(t *testing.T, h http.Handler) tunnel.Config {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/amneziawg/config", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET config: status %d body %s", rec.Code, rec.Body.String())
	}
	var cfg tunnel.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return cfg
}

func TestGetConfigBeforeFirstSave(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := do(t, s.Router(), http.MethodGet, "/amneziawg/config", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSaveBasicDerivesPublicKey(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()

	cfg := tunnel.Defaults()
	cfg.Interface.Name = "awg1"
	cfg.Interface.PrivateKey = testPrivateKey
	cfg.Interface.PublicKey = "stale"
	cfg.Peers = []tunnel.Peer{{Name: "vps", AllowedIPs: "0.0.0.0/0", PublicKey: testPeerKey, Endpoint: "vps.example.com:51820"}}
	body, _ := json.Marshal(cfg)

	rec := do(t, h, http.MethodPost, "/amneziawg/save/basic", "application/json", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("save: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decodeSave(t, rec)
	if !resp.OK || resp.Revision == "" {
		t.Fatalf("unexpected save response %#v", resp)
	}

	stored := loadConfig(t, h)
	want, err := keys.PublicKey(testPrivateKey)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if stored.Interface.Name != "awg1" || stored.Interface.PublicKey != want {
		t.Fatalf("unexpected stored interface %#v", stored.Interface)
	}
	if len(stored.Peers) != 1 || stored.Peers[0].Name != "vps" {
		t.Fatalf("unexpected stored peers %#v", stored.Peers)
	}
}

func TestSaveOnlyAppliesSection(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()

	basic := tunnel.Defaults()
	basic.Interface.Name = "awg1"
	body, _ := json.Marshal(basic)
	if rec := do(t, h, http.MethodPost, "/amneziawg/save/basic", "application/json", string(body)); rec.Code != http.StatusOK {
		t.Fatalf("save basic: %d", rec.Code)
	}

	obfs := tunnel.Defaults()
	obfs.Interface.Name = "other"
	obfs.Obfs = tunnel.ObfuscationConfig{Enabled: true, Mode: tunnel.ModeTLS}
	obfs.Transport.Proto = tunnel.ProtoTCP
	body, _ = json.Marshal(obfs)
	if rec := do(t, h, http.MethodPost, "/amneziawg/save/obfs", "application/json", string(body)); rec.Code != http.StatusOK {
		t.Fatalf("save obfs: %d", rec.Code)
	}

	stored := loadConfig(t, h)
	if stored.Interface.Name != "awg1" {
		t.Fatalf("obfs save must not touch interface, got %q", stored.Interface.Name)
	}
	if !stored.Obfs.Enabled || stored.Obfs.Mode != tunnel.ModeTLS || stored.Transport.Proto != tunnel.ProtoTCP {
		t.Fatalf("obfs section not applied: %#v %#v", stored.Obfs, stored.Transport)
	}
}

func TestSaveRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/amneziawg/save/bogus", "application/json", "{}")
	if rec.Code != http.StatusNotFound || decodeSave(t, rec).OK {
		t.Fatalf("expected 404 for unknown section, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/amneziawg/save/basic", "application/json", "[1,2]")
	if rec.Code != http.StatusBadRequest || decodeSave(t, rec).Error == "" {
		t.Fatalf("expected 400 for non-object body, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/amneziawg/save/basic", "application/x-www-form-urlencoded", "interface.listen_port=99999")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range port, got %d", rec.Code)
	}
}

func TestSaveReturnsWarnings(t *testing.T) {
	s, _ := newTestServer(t, false)
	cfg := tunnel.Defaults()
	cfg.Peers = []tunnel.Peer{{Name: "incomplete"}}
	body, _ := json.Marshal(cfg)

	rec := do(t, s.Router(), http.MethodPost, "/amneziawg/save/basic", "application/json", string(body))
	resp := decodeSave(t, rec)
	if !resp.OK {
		t.Fatalf("warnings must not fail the save: %#v", resp)
	}
	joined := strings.Join(resp.Warnings, "\n")
	if !strings.Contains(joined, "peers[0]: public key is missing") {
		t.Fatalf("expected peer warning, got %q", joined)
	}
}

func TestJSONSaveDropsIncompletePolicyRows(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()

	body := `{"policy":{"routes":[{"table":"wg","dest":""},{"table":"","dest":"10.0.0.0/8"}],` +
		`"marks":[{"fwmark":0,"ports":"80"},{"fwmark":5,"ports":""},{"fwmark":7,"ports":"443"}]}}`
	rec := do(t, h, http.MethodPost, "/amneziawg/save/policy", "application/json", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("save policy: status %d body %s", rec.Code, rec.Body.String())
	}

	stored := loadConfig(t, h)
	wantRoutes := []tunnel.PolicyRoute{{Table: tunnel.TableWAN, Dest: "10.0.0.0/8"}}
	if !reflect.DeepEqual(stored.Policy.Routes, wantRoutes) {
		t.Fatalf("unexpected stored routes %#v", stored.Policy.Routes)
	}
	wantMarks := []tunnel.MarkRule{{FwMark: 7, Ports: "443"}}
	if !reflect.DeepEqual(stored.Policy.Marks, wantMarks) {
		t.Fatalf("unexpected stored marks %#v", stored.Policy.Marks)
	}
}

func TestFormSave(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()

	values := url.Values{}
	values.Set("interface.name", "awg5")
	values["interface.enabled"] = []string{"off", "on"}
	values.Set("csrf_token", "ignored")
	values.Set("peers.1.name", "second")
	values.Set("peers.1.keepalive", "25")
	values.Set("peers.0.name", " first ")
	values.Set("peers.0.allowed_ips", "10.0.0.0/8")
	values.Set("routes.0.dest", "10.0.0.0/8")

	rec := do(t, h, http.MethodPost, "/amneziawg/save/basic", "application/x-www-form-urlencoded", values.Encode())
	if rec.Code != http.StatusOK {
		t.Fatalf("form save: status %d body %s", rec.Code, rec.Body.String())
	}

	stored := loadConfig(t, h)
	if stored.Interface.Name != "awg5" || !stored.Interface.Enabled {
		t.Fatalf("unexpected interface %#v", stored.Interface)
	}
	if stored.Interface.ListenPort != 51820 {
		t.Fatalf("absent scalar should keep its value, got %d", stored.Interface.ListenPort)
	}
	if len(stored.Peers) != 2 || stored.Peers[0].Name != "first" || stored.Peers[1].Keepalive != 25 {
		t.Fatalf("unexpected peers %#v", stored.Peers)
	}
	if len(stored.Policy.Routes) != 0 {
		t.Fatalf("basic form save must not apply policy rows, got %#v", stored.Policy.Routes)
	}
}

func TestImportAndRender(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()

	if rec := do(t, h, http.MethodGet, "/amneziawg/config/render", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 render before import, got %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/amneziawg/import", "text/plain", "[Peer]\nPublicKey = x\n")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad import, got %d", rec.Code)
	}

	text := "[Interface]\nPrivateKey = " + testPrivateKey + "\nAddress = 10.8.0.2/24\nListenPort = 51821\n\n" +
		"[Peer]\nPublicKey = " + testPeerKey + "\nAllowedIPs = 0.0.0.0/0\nEndpoint = vps.example.com:51820\n"
	rec = do(t, h, http.MethodPost, "/amneziawg/import", "text/plain", text)
	resp := decodeSave(t, rec)
	if rec.Code != http.StatusOK || !resp.OK || resp.Revision == "" {
		t.Fatalf("import failed: %d %#v", rec.Code, resp)
	}

	rec = do(t, h, http.MethodGet, "/amneziawg/config/render", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("render: status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	for _, want := range []string{"ListenPort = 51821", "Address = 10.8.0.2/24", "Endpoint = vps.example.com:51820"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("expected %q in rendered config:\n%s", want, rec.Body.String())
		}
	}
}

func TestRevisionsEndpoints(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()

	for _, section := range []string{"basic", "policy"} {
		if rec := do(t, h, http.MethodPost, "/amneziawg/save/"+section, "application/json", "{}"); rec.Code != http.StatusOK {
			t.Fatalf("save %s: %d", section, rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/amneziawg/revisions?limit=1", "", "")
	var payload struct {
		Revisions []repository.Revision `json:"revisions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode revisions: %v", err)
	}
	if len(payload.Revisions) != 1 || payload.Revisions[0].Section != tunnel.SectionPolicy {
		t.Fatalf("unexpected revisions %#v", payload.Revisions)
	}

	rec = do(t, h, http.MethodGet, "/amneziawg/revisions/"+payload.Revisions[0].ID, "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"document"`) {
		t.Fatalf("get revision: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/amneziawg/revisions/unknown", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown revision, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/amneziawg/revisions?limit=-1", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestAuthProtectsAPI(t *testing.T) {
	s, authManager := newTestServer(t, true)
	h := s.Router()

	if rec := do(t, h, http.MethodGet, "/amneziawg/config", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/version", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("version must be public, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/login", "application/json", `{"password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/login", "application/x-www-form-urlencoded", "password=amneziawg")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != auth.SessionCookieName {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/amneziawg/config", nil)
	req.AddCookie(cookies[0])
	authed := httptest.NewRecorder()
	h.ServeHTTP(authed, req)
	if authed.Code != http.StatusNotFound {
		t.Fatalf("expected 404 (authenticated, nothing stored), got %d", authed.Code)
	}

	token, _ := authManager.GetToken()
	req = httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authed = httptest.NewRecorder()
	h.ServeHTTP(authed, req)
	if authed.Code != http.StatusOK || strings.Contains(authed.Body.String(), token) {
		t.Fatalf("settings must be reachable and scrubbed: %d %s", authed.Code, authed.Body.String())
	}
}

func TestSaveSettingsConfiguresDiagnostics(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Router()

	rec := do(t, h, http.MethodPut, "/api/settings", "application/json", `{"listenInterface":" br0 ","debugLogEnabled":true,"debugLogLevel":"DEBUG","revisionHistoryLimit":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save settings: %d %s", rec.Code, rec.Body.String())
	}
	current, err := s.settings.Get()
	if err != nil {
		t.Fatalf("settings Get: %v", err)
	}
	if current.ListenInterface != "br0" || current.DebugLogLevel != "debug" || current.HistoryLimit() != 5 {
		t.Fatalf("unexpected settings %+v", current)
	}
	if !s.diagLog.Enabled() {
		t.Fatal("expected diagnostics to be enabled")
	}
	if rec := do(t, h, http.MethodPut, "/api/settings", "application/json", `{"revisionHistoryLimit":-1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", rec.Code)
	}
}

func TestPublishRevisionReachesWatchers(t *testing.T) {
	s, _ := newTestServer(t, false)
	ch := make(chan streamMessage, 1)
	s.addWatcher(ch)
	defer s.removeWatcher(ch)

	s.publishRevision(repository.Revision{ID: "r1", Section: tunnel.SectionObfs, Warnings: []string{"w"}})
	select {
	case msg := <-ch:
		if msg.ID != "r1" || msg.Event != "saved" || !strings.Contains(string(msg.Data), `"obfs"`) {
			t.Fatalf("unexpected message %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected broadcast message")
	}

	// A full buffer must not block the publisher.
	s.publishRevision(repository.Revision{ID: "r2"})
	s.publishRevision(repository.Revision{ID: "r3"})
	if s.watcherCount() != 1 {
		t.Fatalf("expected one watcher, got %d", s.watcherCount())
	}
}

func TestCloseStreamsEndsOpenStreams(t *testing.T) {
	s, _ := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/amneziawg/events", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleStream(httptest.NewRecorder(), req)
	}()

	deadline := time.Now().Add(time.Second)
	for s.watcherCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.CloseStreams()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected stream handler to return after CloseStreams")
	}

	// Streams opened after shutdown end immediately.
	late := make(chan struct{})
	go func() {
		defer close(late)
		s.handleStream(httptest.NewRecorder(), req)
	}()
	select {
	case <-late:
	case <-time.After(time.Second):
		t.Fatal("expected late stream to end immediately")
	}
	if s.watcherCount() != 0 {
		t.Fatalf("expected no watchers, got %d", s.watcherCount())
	}
}

func TestWriteStreamMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeStreamMessage(rec, streamMessage{ID: "r1", Event: "saved", Data: []byte(`{"id":"r1"}`)})
	want := "id: r1\nevent: saved\ndata: {\"id\":\"r1\"}\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected frame %q", rec.Body.String())
	}
}

func TestEditorRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, false)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()
	ctx := context.Background()

	var messages []string
	notifier := editor.NotifierFunc(func(message string) { messages = append(messages, message) })
	rows := form.NewMemory()
	rows.Append(form.TablePeers, form.Row{form.FieldName: "vps", form.FieldAllowedIPs: "0.0.0.0/0", form.FieldPublicKey: testPeerKey})
	rows.Append(form.TableRoutes, form.Row{form.FieldTable: "wg", form.FieldDest: "10.0.0.0/8"})

	first := editor.New(gateway.NewClient(srv.URL, "", nil), rows, notifier, keys.Options{})
	found, err := first.Load(ctx)
	if err != nil || found {
		t.Fatalf("expected empty backend, got found=%v err=%v", found, err)
	}
	if _, err := first.Keys().Generate(); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := first.Store().Set("interface.name", "awg9"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, section := range tunnel.Sections {
		if _, err := first.Save(ctx, section); err != nil {
			t.Fatalf("save %s: %v", section, err)
		}
	}
	if len(messages) != len(tunnel.Sections) || messages[0] != "Basic settings saved" {
		t.Fatalf("unexpected notifications %#v", messages)
	}

	second := editor.New(gateway.NewClient(srv.URL, "", nil), form.NewMemory(), notifier, keys.Options{})
	found, err = second.Load(ctx)
	if err != nil || !found {
		t.Fatalf("expected stored document, got found=%v err=%v", found, err)
	}
	name, _ := second.Store().Get("interface.name")
	pub, _ := second.Store().Get("interface.public_key")
	if name != "awg9" || pub == "" {
		t.Fatalf("unexpected reloaded interface name=%v public_key=%v", name, pub)
	}
	peers, _ := second.Store().Get("peers")
	if got := peers.([]tunnel.Peer); len(got) != 1 || got[0].Name != "vps" {
		t.Fatalf("unexpected reloaded peers %#v", got)
	}
	routes, _ := second.Store().Get("policy.routes")
	if got := routes.([]tunnel.PolicyRoute); len(got) != 1 || got[0].Table != tunnel.TableWG {
		t.Fatalf("unexpected reloaded routes %#v", got)
	}
}

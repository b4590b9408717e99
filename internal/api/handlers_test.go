package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kalambet/freevibes/internal/dashboard"
	"github.com/kalambet/freevibes/internal/gist"
	"github.com/kalambet/freevibes/internal/rss"
	"github.com/kalambet/freevibes/internal/storage"
)

// fakeRemote scripts the dashboard.Remote interface.
type fakeRemote struct {
	loginErr error
	loadErr  error
}

func (f *fakeRemote) Login(ctx context.Context, token string) error { return f.loginErr }
func (f *fakeRemote) Logout() error                                 { return nil }
func (f *fakeRemote) LoadData(ctx context.Context) ([]byte, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return nil, gist.ErrNoDocument
}
func (f *fakeRemote) SaveData(ctx context.Context, data []byte) error { return nil }
func (f *fakeRemote) DocumentURL() string                             { return "" }

type fakeCache struct {
	values map[string]string
}

func (f *fakeCache) GetValue(key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCache) SetValue(key, value string) error {
	f.values[key] = value
	return nil
}

type fakeFeedCache struct{}

func (fakeFeedCache) GetCachedFeed(url string) (storage.FeedEntry, error) {
	return storage.FeedEntry{}, storage.ErrNotFound
}
func (fakeFeedCache) SaveCachedFeed(url, payload string) error { return nil }
func (fakeFeedCache) ClearFeedCache() error                    { return nil }

const testToken = "test-api-token"

type testEnv struct {
	svc    *dashboard.Service
	server *httptest.Server
}

func newTestEnv(t *testing.T, remote *fakeRemote) *testEnv {
	t.Helper()
	svc := dashboard.NewWithOptions(remote, &fakeCache{values: map[string]string{}}, dashboard.Options{
		DefaultDoc: []byte(`{}`),
	})
	svc.LoadData(context.Background())

	handler := NewHandler(Deps{
		Service: svc,
		Feeds:   rss.NewFetcherWithTTL(fakeFeedCache{}, time.Minute),
		Token:   testToken,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testEnv{svc: svc, server: server}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp, err := http.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 without auth", resp.StatusCode)
	}
}

func TestAuth_Rejected(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	for _, auth := range []string{"", "Bearer wrong-token", "Basic abc"} {
		req, _ := http.NewRequest("GET", env.server.URL+"/data", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := env.server.Client().Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("auth %q: status = %d, want 401", auth, resp.StatusCode)
		}

		var body struct {
			Error struct {
				Type string `json:"type"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if body.Error.Type != "authentication_error" {
			t.Errorf("auth %q: error type = %q", auth, body.Error.Type)
		}
	}
}

func TestGetData(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "GET", "/data", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	doc := decodeBody[dashboard.DashboardData](t, resp)
	if len(doc.Tabs) != 1 || doc.Tabs[0].Name != "Main" {
		t.Errorf("tabs = %+v, want the default Main tab", doc.Tabs)
	}
}

func TestLogin_AuthErrorMapsTo401(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{
		loginErr: fmt.Errorf("%w (status 401)", gist.ErrAuthentication),
	})

	resp := env.request(t, "POST", "/login", map[string]string{"token": "bad"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLogin_RemoteErrorMapsTo502(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{loginErr: errors.New("connection refused")})

	resp := env.request(t, "POST", "/login", map[string]string{"token": "tok"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "POST", "/login", map[string]string{"token": "tok"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	result := decodeBody[map[string]any](t, resp)
	if result["enabled"] != true {
		t.Errorf("enabled = %v, want true", result["enabled"])
	}
	if !env.svc.IsRemoteSyncEnabled() {
		t.Error("remote sync not enabled after login")
	}
}

func TestAddWidget(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "POST", "/widgets", map[string]any{
		"type":    "note",
		"content": "hello",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	widget := decodeBody[dashboard.Widget](t, resp)
	if widget.ID == "" {
		t.Error("expected generated widget id")
	}
	if widget.Color != dashboard.NoteYellow {
		t.Errorf("color = %q, want default yellow", widget.Color)
	}
}

func TestAddWidget_Invalid(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "POST", "/widgets", map[string]any{"type": "rss"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for rss widget without feedUrl", resp.StatusCode)
	}
}

func TestUpdateWidget_UnknownIDIsSilentNoOp(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "PUT", "/widgets/ghost", map[string]any{
		"type":    "note",
		"content": "x",
		"color":   "yellow",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204 (unknown id is a no-op)", resp.StatusCode)
	}
}

func TestMoveWidget(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	added, err := env.svc.AddWidget(context.Background(), dashboard.Widget{
		Type: dashboard.WidgetNote, Content: "x",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	resp := env.request(t, "POST", "/widgets/"+added.ID+"/move", map[string]int{
		"column": 2, "index": 0,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	doc, _ := env.svc.Data()
	moved, _ := doc.FindWidget(added.ID)
	if moved.Position.Column != 2 {
		t.Errorf("column = %d, want 2", moved.Position.Column)
	}
}

func TestDeleteTab_LastTab(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})
	doc, _ := env.svc.Data()

	resp := env.request(t, "DELETE", "/tabs/"+doc.Tabs[0].ID, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409 for the last tab", resp.StatusCode)
	}
}

func TestDeleteTab_Unknown(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "DELETE", "/tabs/ghost", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTabLifecycle(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "POST", "/tabs", map[string]string{"name": "Work"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d, want 201", resp.StatusCode)
	}
	tab := decodeBody[dashboard.Tab](t, resp)

	resp = env.request(t, "PATCH", "/tabs/"+tab.ID, map[string]string{"name": "Projects"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("rename status = %d, want 204", resp.StatusCode)
	}

	resp = env.request(t, "POST", "/tabs/"+tab.ID+"/select", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("select status = %d, want 204", resp.StatusCode)
	}

	doc, _ := env.svc.Data()
	if doc.Settings.CurrentTabID != tab.ID {
		t.Errorf("current tab = %q, want %q", doc.Settings.CurrentTabID, tab.ID)
	}
	renamed, _ := doc.FindTab(tab.ID)
	if renamed.Name != "Projects" {
		t.Errorf("name = %q, want Projects", renamed.Name)
	}

	resp = env.request(t, "DELETE", "/tabs/"+tab.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
}

func TestPatchSettings(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "PATCH", "/settings", map[string]any{"columns": 5})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	doc, _ := env.svc.Data()
	if doc.Settings.Columns != 5 {
		t.Errorf("columns = %d, want 5", doc.Settings.Columns)
	}
	if doc.Settings.FontSize != dashboard.DefaultFontSize {
		t.Errorf("fontSize changed by unrelated patch: %d", doc.Settings.FontSize)
	}
}

func TestPutData_ReplacesDocument(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})
	doc, _ := env.svc.Data()
	doc.Settings.MainColor = "#112233"

	resp := env.request(t, "PUT", "/data", doc)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	after, _ := env.svc.Data()
	if after.Settings.MainColor != "#112233" {
		t.Errorf("mainColor = %q, want #112233", after.Settings.MainColor)
	}
}

func TestGetFeed_RequiresURL(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "GET", "/feed", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without url", resp.StatusCode)
	}
}

func TestRemoteStatus(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{})

	resp := env.request(t, "GET", "/remote", nil)
	result := decodeBody[map[string]any](t, resp)
	if result["enabled"] != false {
		t.Errorf("enabled = %v, want false before login", result["enabled"])
	}
}

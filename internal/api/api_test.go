package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/dddot/internal/host"
	"github.com/starford/dddot/internal/settings"
	"github.com/starford/dddot/internal/sse"
	"github.com/starford/dddot/internal/testutil"
)

// testEnv sets up a temp vault, index, host and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*testutil.Env, *sse.Broker, http.Handler) {
	t.Helper()
	env := testutil.NewEnv(t, map[string]string{
		"hello.md":         "# Hello\n[[projects/plan]]\n",
		"projects/plan.md": "# Plan\n",
	})

	broker := sse.NewBroker(time.Second)
	h, err := host.New(broker, settings.NewMemory(), env.Notes, host.Options{
		DefaultOrder: []string{"shortcuts"},
		Logger:       env.Logger,
	})
	if err != nil {
		t.Fatalf("host.New: %v", err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	return env, broker, NewRouter(h, broker, env.Notes, authToken != "", authToken)
}

func TestSections(t *testing.T) {
	_, _, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/sections", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SectionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sections) != 3 {
		t.Errorf("sections = %d, want 3", len(resp.Sections))
	}
	if len(resp.DefaultOrder) != 1 || resp.DefaultOrder[0] != "shortcuts" {
		t.Errorf("default order = %v", resp.DefaultOrder)
	}
}

func TestGetNote(t *testing.T) {
	_, _, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes/projects%2Fplan.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "Plan" || len(note.Backlinks) != 1 || note.Backlinks[0] != "hello.md" {
		t.Errorf("note = %+v", note)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, _, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes/nope.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestSelect(t *testing.T) {
	env, _, router := testEnv(t, "")

	body, _ := json.Marshal(SelectRequest{NoteID: "hello.md"})
	req := httptest.NewRequest(http.MethodPost, "/select", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	n, err := env.Notes.SelectedNote(context.Background())
	if err != nil || n.ID != "hello.md" {
		t.Errorf("selected = %+v, %v", n, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/select", strings.NewReader(`{}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty select = %d, want 400", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/select", strings.NewReader(`{"noteId":"ghost.md"}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown select = %d, want 404", w.Code)
	}
}

func TestBridgePost(t *testing.T) {
	_, _, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/bridge", strings.NewReader(`{"id":"01","kind":"event","message":{"type":"x.y"}}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("bridge post = %d, want 202", w.Code)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	_, _, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/sections", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/sections?token=secret123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("query token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/sections", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/sections", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, _, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, broker, router := testEnv(t, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	_ = broker.Send(context.Background(), []byte(`{"kind":"event"}`))
	<-done

	if w.Code != http.StatusOK {
		t.Errorf("SSE valid token = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "event: bridge") {
		t.Errorf("stream = %q", w.Body.String())
	}
}

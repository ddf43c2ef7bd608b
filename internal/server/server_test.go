package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/mschirtzinger/dodash/internal/schema"
	"github.com/mschirtzinger/dodash/internal/store"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestServer(t *testing.T, st store.Versioned) *Server {
	t.Helper()
	if st == nil {
		st = store.NewMemory(nil)
	}
	s, err := NewServer(&Config{Port: 0, Store: st, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return s
}

func getData(t *testing.T, h http.Handler) (*schema.Document, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/data = %d: %s", rec.Code, rec.Body.String())
	}
	doc, err := schema.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("GET /api/data returned invalid document: %v", err)
	}
	return doc, rec.Header().Get("ETag")
}

func postData(h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/data", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, rec.Body.String())
	}
	return body
}

func TestNewServer_RequiresStore(t *testing.T) {
	if _, err := NewServer(&Config{Logger: quietLogger()}); err == nil {
		t.Error("NewServer() without store should fail")
	}
}

func TestGetData_Default(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	doc, tag := getData(t, h)
	if len(doc.Lists) != 1 || doc.Lists[0].ID.String() != schema.DefaultListID {
		t.Errorf("GET /api/data = %+v, want default document", doc)
	}
	if tag == "" {
		t.Error("GET /api/data did not set ETag")
	}
}

func TestGetData_NotModified(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	_, tag := getData(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("If-None-Match", tag)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional GET = %d, want 304", rec.Code)
	}
}

// End-to-end: post a document, then read it back.
func TestPostData_RoundTrip(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	body := `{"lists":[{"id":"l1","name":"Work","color":"#8B5CF6","tasks":[{"id":"t1","text":"Ship release","completed":false,"order":0}]}]}`
	rec := postData(h, body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/data = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["success"]; got != true {
		t.Errorf("success = %v, want true", got)
	}

	doc, tag := getData(t, h)
	if tag != rec.Header().Get("ETag") {
		t.Errorf("GET ETag %s != POST ETag %s", tag, rec.Header().Get("ETag"))
	}
	if len(doc.Lists) != 1 || doc.Lists[0].Name != "Work" {
		t.Fatalf("stored document = %+v", doc)
	}
	task := doc.Lists[0].Tasks[0]
	if task.ID.String() != "t1" || task.Text != "Ship release" || task.Completed {
		t.Errorf("stored task = %+v", task)
	}
}

func TestPostData_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"lists":`},
		{"lists not array", `{"lists":"not-an-array"}`},
		{"missing lists", `{}`},
		{"bad color", `{"lists":[{"id":"l1","name":"Work","color":"purple","tasks":[]}]}`},
		{"task without text", `{"lists":[{"id":"l1","name":"Work","color":"#8B5CF6","tasks":[{"id":"t1","completed":false}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, nil).Handler()
			before, _ := getData(t, h)

			rec := postData(h, tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("POST = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
			if body["error"] == "" {
				t.Error("error message missing")
			}

			after, _ := getData(t, h)
			if !schema.Equal(before, after) {
				t.Error("rejected POST changed stored document")
			}
		})
	}
}

func TestPostData_IfMatch(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	_, tag := getData(t, h)

	first := `{"lists":[{"id":"a","name":"A","color":"#111111","tasks":[]}]}`
	if rec := postData(h, first, map[string]string{"If-Match": tag}); rec.Code != http.StatusOK {
		t.Fatalf("POST with current If-Match = %d: %s", rec.Code, rec.Body.String())
	}

	second := `{"lists":[{"id":"b","name":"B","color":"#222222","tasks":[]}]}`
	rec := postData(h, second, map[string]string{"If-Match": tag})
	if rec.Code != http.StatusConflict {
		t.Fatalf("POST with stale If-Match = %d, want 409", rec.Code)
	}

	doc, _ := getData(t, h)
	if doc.Lists[0].ID.String() != "a" {
		t.Errorf("conflicting write was applied: %+v", doc)
	}

	if rec := postData(h, second, map[string]string{"If-Match": "*"}); rec.Code != http.StatusOK {
		t.Errorf("POST with If-Match * = %d, want 200", rec.Code)
	}
}

func TestPostData_TooLarge(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	big := `{"lists":[],"pad":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	rec := postData(h, big, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized POST = %d, want 413", rec.Code)
	}
}

func TestPostData_StorageFailure(t *testing.T) {
	st := store.NewMemory(nil)
	h := newTestServer(t, st).Handler()
	_ = st.Close()

	rec := postData(h, `{"lists":[]}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("POST to closed store = %d, want 500", rec.Code)
	}
	body := decodeBody(t, rec)
	if !strings.HasPrefix(body["error"].(string), "Failed to save data") {
		t.Errorf("error = %v", body["error"])
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("GET from closed store = %d, want 500", rec.Code)
	}
}

func TestPostData_NumericIDsAndTodosAlias(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	body := `{"lists":[{"id":1,"name":"Legacy","color":"#6B46C1","todos":[{"id":2,"text":"old","completed":true}]}]}`
	if rec := postData(h, body, nil); rec.Code != http.StatusOK {
		t.Fatalf("POST legacy document = %d: %s", rec.Code, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))
	if !strings.Contains(rec.Body.String(), `"id": 1`) {
		t.Errorf("numeric id not preserved:\n%s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"tasks"`) {
		t.Errorf("todos not normalized to tasks:\n%s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestStatic_EmbeddedFallback(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	for _, p := range []string{"/", "/lists/work", "/index.html"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", p, rec.Code)
			continue
		}
		if !strings.Contains(rec.Body.String(), "<title>DoDash</title>") {
			t.Errorf("GET %s did not serve the UI page", p)
		}
	}
}

func TestStatic_PagePollsWhenStreamIsDown(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	page := rec.Body.String()

	for _, want := range []string{"setInterval(refresh, 5000)", "ws.onopen", "live = false"} {
		if !strings.Contains(page, want) {
			t.Errorf("UI page is missing %q", want)
		}
	}
}

func TestStatic_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>custom</p>"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	s, err := NewServer(&Config{Store: store.NewMemory(nil), StaticDir: dir, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rec.Body.String() != "console.log(1)" {
		t.Errorf("GET /app.js = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Body.String() != "<p>custom</p>" {
		t.Errorf("GET /missing = %q, want index fallback", rec.Body.String())
	}

	if _, err := NewServer(&Config{Store: store.NewMemory(nil), StaticDir: filepath.Join(dir, "nope")}); err == nil {
		t.Error("NewServer() with missing static dir should fail")
	}
}

func startServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestEvents_PushAfterWrite(t *testing.T) {
	s := startServer(t, &Config{Port: 0, Store: store.NewMemory(nil), Logger: quietLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+s.GetAddr()+"/api/events", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	initial := readMessage(t, ctx, conn)
	if initial.Type != MessageTypeDocument || initial.Version == "" {
		t.Fatalf("initial message = %+v", initial)
	}
	if count := s.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	body := `{"lists":[{"id":"l1","name":"Pushed","color":"#8B5CF6","tasks":[]}]}`
	resp, err := http.Post("http://"+s.GetAddr()+"/api/data", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST = %d", resp.StatusCode)
	}

	msg := readMessage(t, ctx, conn)
	if msg.Version == initial.Version {
		t.Error("pushed message carries the old version")
	}
	doc, err := schema.Parse(msg.Data)
	if err != nil {
		t.Fatalf("pushed document invalid: %v", err)
	}
	if doc.Lists[0].Name != "Pushed" {
		t.Errorf("pushed document = %+v", doc)
	}
}

func TestEvents_SubscribersNeverGoBackwards(t *testing.T) {
	s := startServer(t, &Config{Port: 0, Store: store.NewMemory(nil), Logger: quietLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, initialVersion, err := s.store.ReadVersion(ctx)
	if err != nil {
		t.Fatalf("ReadVersion() failed: %v", err)
	}

	const writes = 40
	const subscribers = 6

	// Subscribers connect while writes are in flight and stop after a
	// second without messages.
	var wg sync.WaitGroup
	received := make([][]string, subscribers)
	for i := 0; i < subscribers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			time.Sleep(time.Duration(i) * 3 * time.Millisecond)
			conn, _, err := websocket.Dial(ctx, "ws://"+s.GetAddr()+"/api/events", nil)
			if err != nil {
				t.Errorf("subscriber %d: failed to connect: %v", i, err)
				return
			}
			defer conn.Close(websocket.StatusNormalClosure, "")
			for {
				readCtx, readCancel := context.WithTimeout(ctx, time.Second)
				_, data, err := conn.Read(readCtx)
				readCancel()
				if err != nil {
					return
				}
				var msg Message
				if err := json.Unmarshal(data, &msg); err != nil {
					t.Errorf("subscriber %d: bad message: %v", i, err)
					return
				}
				received[i] = append(received[i], msg.Version)
			}
		}(i)
	}

	rank := map[string]int{initialVersion: 0}
	var finalVersion string
	for n := 1; n <= writes; n++ {
		body := fmt.Sprintf(`{"lists":[{"id":"l1","name":"Write %d","color":"#8B5CF6","tasks":[]}]}`, n)
		resp, err := http.Post("http://"+s.GetAddr()+"/api/data", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST = %d", resp.StatusCode)
		}
		finalVersion = parseETag(resp.Header.Get("ETag"))
		rank[finalVersion] = n
	}
	wg.Wait()

	for i, versions := range received {
		if len(versions) == 0 {
			t.Errorf("subscriber %d received nothing", i)
			continue
		}
		last := -1
		for _, v := range versions {
			r, ok := rank[v]
			if !ok {
				t.Fatalf("subscriber %d: unknown version %s", i, v)
			}
			if r < last {
				t.Fatalf("subscriber %d: received write %d after write %d", i, r, last)
			}
			last = r
		}
		if got := versions[len(versions)-1]; got != finalVersion {
			t.Errorf("subscriber %d: last message is write %d, want %d", i, rank[got], writes)
		}
	}
}

func TestEvents_PushOnExternalFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.json")
	st, err := store.OpenFile(path, quietLogger())
	if err != nil {
		t.Fatalf("OpenFile() failed: %v", err)
	}
	s := startServer(t, &Config{Port: 0, Store: st, WatchPath: path, Logger: quietLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+s.GetAddr()+"/api/events", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	readMessage(t, ctx, conn)

	// A second writer sharing the file
	other, err := store.OpenFile(path, quietLogger())
	if err != nil {
		t.Fatalf("OpenFile() failed: %v", err)
	}
	doc := schema.Default()
	doc.Lists[0].Name = "Edited elsewhere"
	if err := other.Write(ctx, doc); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	msg := readMessage(t, ctx, conn)
	got, err := schema.Parse(msg.Data)
	if err != nil {
		t.Fatalf("pushed document invalid: %v", err)
	}
	if got.Lists[0].Name != "Edited elsewhere" {
		t.Errorf("pushed document = %+v", got)
	}
}

func TestServerStartStop(t *testing.T) {
	s, err := NewServer(&Config{Port: 0, Store: store.NewMemory(nil), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if addr := s.GetAddr(); addr == "" || strings.HasSuffix(addr, ":0") {
		t.Errorf("GetAddr() = %q, want bound address", addr)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

package logging

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_Prefix(t *testing.T) {
	l := New("server")
	if got := l.Prefix(); got != "[server] " {
		t.Errorf("Prefix() = %q, want %q", got, "[server] ")
	}
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dodash.log")
	Setup(Options{File: path, Quiet: true})
	defer Close()

	New("test").Println("hello from test")

	if err := Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if !strings.Contains(string(data), "[test] hello from test") {
		t.Errorf("log file = %q", data)
	}
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	line := buf.String()
	for _, want := range []string{"GET", "/api/data", "418", "15 bytes"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
}

// Package server exposes the DoDash document over HTTP.
//
// Routes:
//
//	GET  /api/data    current document, ETag carries its version
//	POST /api/data    replace the document (optional If-Match)
//	GET  /api/events  websocket; pushes the document after every change
//	GET  /health      liveness and connected event clients
//	/*                static UI with index.html fallback
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/mschirtzinger/dodash/internal/logging"
	"github.com/mschirtzinger/dodash/internal/store"
	"github.com/mschirtzinger/dodash/internal/watch"
)

// MaxBodyBytes caps the size of a POSTed document.
const MaxBodyBytes = 5 << 20

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8080, 0 picks a free port)
	Port int

	// Store holds the document (required)
	Store store.Versioned

	// StaticDir serves the UI from disk instead of the embedded page
	StaticDir string

	// WatchPath is a data file to watch for changes made outside this
	// server. Empty disables watching.
	WatchPath string

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8080,
		Logger: log.New(os.Stderr, "[server] ", log.LstdFlags),
	}
}

// Server serves the document API, the event stream and the UI.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	store    store.Versioned
	static   fs.FS
	watcher  *watch.Watcher

	// WebSocket client management; each client maps to the last sequence
	// its initial document covers
	clients   map[*websocket.Conn]uint64
	clientsMu sync.RWMutex

	// Message broadcasting; deliverMu orders initial documents against
	// broadcasts
	broadcast   chan Message
	deliverMu   sync.Mutex
	lastVersion string
	seq         uint64
	lastMu      sync.Mutex

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a server around the configured store.
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	static, err := staticFS(config.StaticDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		store:     config.Store,
		static:    static,
		clients:   make(map[*websocket.Conn]uint64),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}

	if config.WatchPath != "" {
		w, err := watch.New(config.WatchPath, &watch.Config{
			DebounceInterval: 100 * time.Millisecond,
			Logger:           config.Logger,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create data file watcher: %w", err)
		}
		s.watcher = w
	}

	return s, nil
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(logging.Middleware(s.logger))

	api := r.PathPrefix("/api").Subrouter()
	api.Methods(http.MethodGet).Path("/data").HandlerFunc(s.handleGetData)
	api.Methods(http.MethodPost).Path("/data").HandlerFunc(s.handlePostData)
	api.Methods(http.MethodGet).Path("/events").HandlerFunc(s.handleEvents)

	r.Methods(http.MethodGet).Path("/health").HandlerFunc(s.handleHealth)
	r.Methods(http.MethodGet, http.MethodHead).PathPrefix("/").HandlerFunc(s.handleStatic)

	return r
}

// Start begins the HTTP server, the broadcaster and the file watcher.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	if s.watcher != nil {
		if err := s.watcher.Start(s.ctx); err != nil {
			s.logger.Printf("Warning: file watching disabled: %v", err)
		} else {
			s.wg.Add(1)
			go s.watchLoop()
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("DoDash server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	var shutdownErr error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Printf("Warning: failed to stop watcher: %v", err)
		}
	}

	s.wg.Wait()

	s.logger.Println("Server stopped")
	return shutdownErr
}

// watchLoop publishes the document whenever the data file changes on disk.
// Changes caused by this server's own writes carry an already-broadcast
// version and are dropped by publish.
func (s *Server) watchLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case change, ok := <-s.watcher.Changes():
			if !ok {
				return
			}
			if change.Op == watch.OpRemove {
				s.logger.Printf("Data file removed: %s", change.Path)
				continue
			}
			doc, version, err := s.store.ReadVersion(s.ctx)
			if err != nil {
				s.logger.Printf("Failed to read changed data file: %v", err)
				continue
			}
			s.logger.Printf("Data file changed on disk (version %.12s)", version)
			s.publish(doc, version)
		}
	}
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected event clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

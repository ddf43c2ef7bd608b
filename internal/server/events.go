package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// MessageType defines the type of event message
type MessageType string

const (
	// MessageTypeDocument carries the full current document
	MessageTypeDocument MessageType = "document"
)

// Message is pushed to every /api/events client.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	// seq orders published documents; zero for direct broadcasts
	seq uint64
}

// DocumentMessage builds the event for a document at version.
func DocumentMessage(doc *schema.Document, version string) (Message, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:      MessageTypeDocument,
		Timestamp: time.Now(),
		Version:   version,
		Data:      data,
	}, nil
}

// publish broadcasts doc unless version was the last one published.
// Messages are queued in sequence order.
func (s *Server) publish(doc *schema.Document, version string) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	if version == s.lastVersion {
		return
	}

	msg, err := DocumentMessage(doc, version)
	if err != nil {
		s.logger.Printf("Failed to marshal document event: %v", err)
		return
	}
	s.lastVersion = version
	s.seq++
	msg.seq = s.seq
	s.Broadcast(msg)
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.deliverMu.Lock()
			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn, joined := range s.clients {
				// The client's initial document already covers this one.
				if msg.seq != 0 && msg.seq <= joined {
					continue
				}
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
			s.deliverMu.Unlock()
		}
	}
}

// handleEvents upgrades the connection and sends the current document as
// the first message. The client joins the broadcast set only after that,
// while no broadcast is being delivered, and skips documents published
// before its initial read, so it never receives an older document after a
// newer one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.deliverMu.Lock()
	s.lastMu.Lock()
	joined := s.seq
	s.lastMu.Unlock()
	if err := s.sendCurrent(conn); err != nil {
		s.deliverMu.Unlock()
		s.logger.Printf("Failed to send initial document: %v", err)
		_ = conn.Close(websocket.StatusInternalError, "failed to read document")
		return
	}
	s.clientsMu.Lock()
	s.clients[conn] = joined
	clientCount := len(s.clients)
	s.clientsMu.Unlock()
	s.deliverMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	go s.readLoop(conn)
}

func (s *Server) sendCurrent(conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	doc, version, err := s.store.ReadVersion(ctx)
	if err != nil {
		return err
	}
	msg, err := DocumentMessage(doc, version)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

package client

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// Event is a document pushed by the server's /api/events stream.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Data      json.RawMessage `json:"data"`
}

// EventsURL converts a server base URL to its websocket events endpoint.
func EventsURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/events"
}

// Subscribe connects to the server's event stream and adopts every pushed
// document into m. onUpdate, if set, is called after each adoption. It
// blocks until ctx is cancelled (returning nil) or the connection fails.
func Subscribe(ctx context.Context, baseURL string, m *Mirror, onUpdate func(doc *schema.Document, version string)) error {
	url := EventsURL(baseURL)

	dialCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	cancel()
	if err != nil {
		return &NetworkError{Op: "DIAL", URL: url, Err: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Documents can be larger than the default read limit
	conn.SetReadLimit(8 << 20)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &NetworkError{Op: "READ", URL: url, Err: err}
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			m.config.Logger.Printf("Ignoring malformed event: %v", err)
			continue
		}
		if ev.Type != "document" {
			continue
		}

		doc, err := schema.Parse(ev.Data)
		if err != nil {
			m.config.Logger.Printf("Ignoring invalid pushed document: %v", err)
			continue
		}
		m.Adopt(doc, ev.Version)
		if onUpdate != nil {
			onUpdate(m.Snapshot(), ev.Version)
		}
	}
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	ws "github.com/gorilla/websocket"

	"mex/internal/websocket"
)

// Watcher receives entity change events from the server's /ws endpoint.
// A caller holding an open form session can re-fetch the entity when an
// event names it and push the newer snapshot via Session.Refresh.
type Watcher struct {
	conn   *ws.Conn
	events chan websocket.Event
}

// Watch dials the server's event stream. The returned watcher's Events
// channel closes when the connection drops or ctx is cancelled.
func (c *Client) Watch(ctx context.Context) (*Watcher, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/ws", scheme, u.Host)

	conn, _, err := ws.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	w := &Watcher{conn: conn, events: make(chan websocket.Event, 16)}
	go w.readLoop()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return w, nil
}

// Events returns the stream of server-side change events. Events arriving
// while the buffer is full are dropped.
func (w *Watcher) Events() <-chan websocket.Event {
	return w.events
}

// Close drops the connection; Events closes shortly after.
func (w *Watcher) Close() error {
	return w.conn.Close()
}

func (w *Watcher) readLoop() {
	defer close(w.events)
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if !strings.Contains(err.Error(), "use of closed network connection") {
				log.Printf("ws: read error: %v", err)
			}
			return
		}
		var evt websocket.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			log.Printf("ws: bad event: %v", err)
			continue
		}
		select {
		case w.events <- evt:
		default:
			// Consumer stopped draining; drop rather than wedge the loop.
			// A missed event only delays a refresh until the next one.
		}
	}
}

// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	applog "stomp/internal/log"
)

const (
	// StompFeedPath is the HTTP path clients upgrade on.
	StompFeedPath = "/stomps"

	wsWriteTimeout = 200 * time.Millisecond
	wsQueueSize    = 256
)

// WebSocketReporter broadcasts every stomp as JSON to all connected clients,
// typically the live-session service or a companion screen.
//
// Thread Safety:
// - ReportStomp only enqueues; a single goroutine performs the writes
// - The client map is guarded by clientsMu
// - Slow clients get a write deadline and are dropped on failure
type WebSocketReporter struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan StompEvent
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	server    *http.Server
	log       *applog.Logger
}

// NewWebSocketReporter creates the reporter and, when addr is not empty,
// starts an HTTP server on addr serving StompFeedPath.
func NewWebSocketReporter(addr string) *WebSocketReporter {
	r := &WebSocketReporter{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // The feed carries no credentials.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan StompEvent, wsQueueSize),
		done:      make(chan struct{}),
		log:       applog.Component("report/websocket"),
	}

	go r.handleBroadcasts()

	if addr != "" {
		r.server = &http.Server{
			Addr:              addr,
			Handler:           r.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			r.log.Infof("serving stomp feed on %s%s", addr, StompFeedPath)
			if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.log.Errorf("server error: %v", err)
			}
		}()
	}

	return r
}

// Handler returns the HTTP handler serving the feed, for embedding the feed
// into an existing server.
func (r *WebSocketReporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(StompFeedPath, r.handleWebSocket)
	return mux
}

// ClientCount returns the number of connected clients.
func (r *WebSocketReporter) ClientCount() int {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	return len(r.clients)
}

func (r *WebSocketReporter) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warnf("upgrade error: %v", err)
		return
	}

	r.clientsMu.Lock()
	r.clients[conn] = true
	total := len(r.clients)
	r.clientsMu.Unlock()
	r.log.Infof("client connected, total: %d", total)

	// Clients never send; a read error means the peer went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				r.remove(conn)
				return
			}
		}
	}()
}

func (r *WebSocketReporter) remove(conn *websocket.Conn) {
	r.clientsMu.Lock()
	if _, ok := r.clients[conn]; ok {
		delete(r.clients, conn)
		conn.Close()
	}
	r.clientsMu.Unlock()
}

func (r *WebSocketReporter) handleBroadcasts() {
	for {
		select {
		case ev := <-r.broadcast:
			r.clientsMu.Lock()
			for client := range r.clients {
				_ = client.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := client.WriteJSON(ev); err != nil {
					r.log.Warnf("dropping client: %v", err)
					client.Close()
					delete(r.clients, client)
				}
			}
			r.clientsMu.Unlock()
		case <-r.done:
			return
		}
	}
}

// ReportStomp queues ev for broadcast. It returns ErrQueueFull rather than
// wait when clients are not keeping up.
func (r *WebSocketReporter) ReportStomp(_ context.Context, ev StompEvent) error {
	if r.closed.Load() {
		return ErrClosed
	}
	select {
	case r.broadcast <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close disconnects every client and shuts the server down.
func (r *WebSocketReporter) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)

		r.clientsMu.Lock()
		for client := range r.clients {
			client.Close()
		}
		r.clients = make(map[*websocket.Conn]bool)
		r.clientsMu.Unlock()

		if r.server != nil {
			err = r.server.Close()
		}
	})
	return err
}

var _ Reporter = (*WebSocketReporter)(nil)

// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketReporterBroadcasts(t *testing.T) {
	r := NewWebSocketReporter("")
	t.Cleanup(func() { r.Close() })

	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + StompFeedPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return r.ClientCount() == 1 })

	if err := r.ReportStomp(context.Background(), testEvent(5)); err != nil {
		t.Fatalf("ReportStomp() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got StompEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Seq != 5 || got.Accepted != 5 {
		t.Errorf("received %+v", got)
	}
}

func TestWebSocketReporterClosed(t *testing.T) {
	r := NewWebSocketReporter("")
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := r.ReportStomp(context.Background(), testEvent(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("ReportStomp after Close error = %v, want ErrClosed", err)
	}
}

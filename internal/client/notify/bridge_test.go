package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func recvRevision(t *testing.T, ch <-chan models.Revision, timeout time.Duration) models.Revision {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(timeout):
		t.Fatal("timed out waiting for revision")
		return models.Revision{}
	}
}

func TestBridge_AnnouncesSessionAndDeliversRevisions(t *testing.T) {
	upgrader := websocket.Upgrader{}
	announces := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var announce map[string]string
		if err := conn.ReadJSON(&announce); err != nil {
			return
		}
		announces <- announce

		_ = conn.WriteJSON(models.Revision{Card: 7, Channel: 9})
		_ = conn.WriteJSON(models.Revision{Card: 8, Channel: 9})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	b := New(strings.TrimPrefix(srv.URL, "http://"), "session-token", true, testLogger())
	revs := make(chan models.Revision, 8)
	b.OnRevision(func(r models.Revision) { revs <- r })
	b.Start(context.Background())
	t.Cleanup(b.Stop)

	select {
	case announce := <-announces:
		assert.Equal(t, "session-token", announce["appToken"], "the first frame carries the app token")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the announce frame")
	}

	rev := recvRevision(t, revs, 2*time.Second)
	assert.Equal(t, int64(7), rev.Card)
	assert.Equal(t, int64(9), rev.Channel)

	rev = recvRevision(t, revs, 2*time.Second)
	assert.Equal(t, int64(8), rev.Card, "every pushed vector is delivered in order")

	require.Eventually(t, func() bool { return b.Status() == StatusConnected }, 2*time.Second, 5*time.Millisecond)
}

func TestBridge_ReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var announce map[string]string
		if err := conn.ReadJSON(&announce); err != nil {
			return
		}
		n := conns.Add(1)
		_ = conn.WriteJSON(models.Revision{Card: int64(n)})
		if n == 1 {
			// drop the first connection right away
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	b := New(strings.TrimPrefix(srv.URL, "http://"), "tok", true, testLogger())
	revs := make(chan models.Revision, 8)
	b.OnRevision(func(r models.Revision) { revs <- r })

	statuses := make(chan Status, 16)
	b.OnStatus(func(s Status) { statuses <- s })

	b.Start(context.Background())
	t.Cleanup(b.Stop)

	first := recvRevision(t, revs, 2*time.Second)
	assert.Equal(t, int64(1), first.Card)

	// the loop redials after the drop; delay starts at one second
	second := recvRevision(t, revs, 5*time.Second)
	assert.Equal(t, int64(2), second.Card)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestBridge_StopWhileServerUnreachable(t *testing.T) {
	// nothing listens here; the bridge must keep cycling and stop cleanly
	b := New("127.0.0.1:1", "tok", true, testLogger())
	b.Start(context.Background())

	require.Eventually(t, func() bool {
		s := b.Status()
		return s == StatusConnecting || s == StatusDisconnected
	}, 2*time.Second, 5*time.Millisecond)

	b.Stop()
	assert.Equal(t, StatusDisconnected, b.Status())
}

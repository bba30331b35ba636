package controllers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/fishm995/greenhouse-project/stream"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialViewer(t *testing.T, srv *httptest.Server, role string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tokenFor(t, role)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

// waitFor reads events until one named name arrives.
func waitFor(t *testing.T, conn *websocket.Conn, name string) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev), "waiting for %s", name)
		if ev.Event == name {
			return ev
		}
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	env := setupTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubViewerLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	first := dialViewer(t, srv, "junior")
	ev := waitFor(t, first, "ffmpeg_ready")
	assert.Equal(t, map[string]interface{}{"ready": true}, ev.Data)
	starts, _ := env.stream.counts()
	assert.Equal(t, 1, starts)

	// a second viewer gets ffmpeg_ready straight away and does not restart
	// the stream
	second := dialViewer(t, srv, "senior")
	waitFor(t, second, "ffmpeg_ready")
	ev = waitFor(t, first, "viewer_count")
	assert.Equal(t, 2.0, ev.Data.(map[string]interface{})["viewers"])
	assert.Equal(t, 2, env.hub.Count())

	require.NoError(t, second.WriteJSON(Event{Event: "heartbeat"}))
	ev = waitFor(t, second, "heartbeat")
	assert.Equal(t, 2.0, ev.Data.(map[string]interface{})["viewers"])

	w := env.do(t, http.MethodGet, "/public/status", "", nil)
	assert.Contains(t, w.Body.String(), `"viewers":2`)
	assert.Contains(t, w.Body.String(), `"stream_ready":true`)

	second.Close()
	ev = waitFor(t, first, "viewer_count")
	assert.Equal(t, 1.0, ev.Data.(map[string]interface{})["viewers"])
	_, stops := env.stream.counts()
	assert.Zero(t, stops)

	first.Close()
	assert.Eventually(t, func() bool {
		_, stops := env.stream.counts()
		return stops == 1 && env.hub.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
	starts, _ = env.stream.counts()
	assert.Equal(t, 1, starts)
}

func TestHubSweepDropsSilentViewers(t *testing.T) {
	env := setupTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn := dialViewer(t, srv, "junior")
	defer conn.Close()
	waitFor(t, conn, "ffmpeg_ready")

	assert.Zero(t, env.hub.Sweep(time.Now()))
	assert.Equal(t, 1, env.hub.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, env.hub.Count())

	// the server closes the connection
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool {
		_, stops := env.stream.counts()
		return stops == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubOnCount(t *testing.T) {
	var counts []int
	h := NewHub(&fakeStream{}, time.Minute, func(n int) { counts = append(counts, n) }, testLogger())
	v := &viewer{id: "a", send: make(chan []byte, sendBuffer), lastSeen: time.Now()}
	h.join(v)
	h.leave(v)
	h.leave(v)
	assert.Equal(t, []int{1, 0}, counts)
}

func TestHubRejoinKeepsStreamRunning(t *testing.T) {
	m := stream.NewManager(stream.Config{
		HLSDir:       t.TempDir(),
		ReadyTimeout: 2 * time.Second,
		StopTimeout:  time.Second,
	}, testLogger())
	m.Command = func(playlist string) *exec.Cmd {
		return exec.Command("sh", "-c", `touch "$1"; exec sleep 30`, "sh", playlist)
	}
	t.Cleanup(func() { m.Stop() })
	h := NewHub(m, time.Minute, nil, testLogger())

	newViewer := func(id string) *viewer {
		return &viewer{id: id, send: make(chan []byte, sendBuffer), lastSeen: time.Now()}
	}

	for i := 0; i < 5; i++ {
		a := newViewer(fmt.Sprintf("a%d", i))
		h.join(a)
		require.Eventually(t, m.Ready, 2*time.Second, 10*time.Millisecond)

		// the last viewer leaves and another arrives straight away
		h.leave(a)
		b := newViewer(fmt.Sprintf("b%d", i))
		h.join(b)

		time.Sleep(300 * time.Millisecond)
		assert.True(t, m.Running(), "round %d: stream stopped with a viewer connected", i)
		assert.True(t, m.Ready(), "round %d", i)

		h.leave(b)
		require.Eventually(t, func() bool { return !m.Running() }, 2*time.Second, 10*time.Millisecond)
	}
}

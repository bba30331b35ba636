package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait   = 5 * time.Second
	sendBuffer  = 16
	maxReadSize = 4096
)

// StreamController is the camera stream the hub starts for its first viewer
// and stops after its last one leaves.
type StreamController interface {
	Start(ctx context.Context) error
	Stop() error
	Ready() bool
}

// Event is the websocket message envelope in both directions.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type viewer struct {
	id       string
	username string
	conn     *websocket.Conn
	send     chan []byte
	lastSeen time.Time
}

// Hub tracks camera viewers connected over websockets.
type Hub struct {
	stream  StreamController
	timeout time.Duration
	onCount func(int)
	log     *zap.SugaredLogger

	mu      sync.Mutex
	viewers map[string]*viewer

	// lifecycle orders stream starts and stops; each re-checks the viewer
	// count while holding it.
	lifecycle sync.Mutex
}

// NewHub creates a hub. Viewers that send no heartbeat for timeout are
// dropped by Sweep. onCount, if set, is called with the viewer count after
// every join and leave.
func NewHub(stream StreamController, timeout time.Duration, onCount func(int), log *zap.SugaredLogger) *Hub {
	return &Hub{
		stream:  stream,
		timeout: timeout,
		onCount: onCount,
		log:     log,
		viewers: map[string]*viewer{},
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// StreamReady reports whether the camera stream is up.
func (h *Hub) StreamReady() bool {
	return h.stream.Ready()
}

// HandleWebSocket upgrades an authenticated request and registers the
// connection as a viewer until it disconnects.
func HandleWebSocket(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warnw("websocket upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(maxReadSize)

	v := &viewer{
		id:       uuid.NewString(),
		username: c.GetString("username"),
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		lastSeen: time.Now(),
	}
	go v.writeLoop()
	hub.join(v)
	defer hub.leave(v)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			hub.log.Debugw("ignoring malformed websocket message", "viewer", v.id)
			continue
		}
		hub.handle(v, ev)
	}
}

func (v *viewer) writeLoop() {
	for msg := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			v.conn.Close()
			for range v.send {
				// drain until leave closes the channel
			}
			return
		}
	}
	v.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	v.conn.Close()
}

func encode(name string, data interface{}) []byte {
	msg, _ := json.Marshal(Event{Event: name, Data: data})
	return msg
}

// deliver queues msg for v, dropping it when v is not keeping up. Callers
// hold h.mu.
func (h *Hub) deliver(v *viewer, msg []byte) {
	select {
	case v.send <- msg:
	default:
		h.log.Debugw("viewer send buffer full, dropping message", "viewer", v.id)
	}
}

// Broadcast sends an event to every viewer.
func (h *Hub) Broadcast(name string, data interface{}) {
	msg := encode(name, data)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range h.viewers {
		h.deliver(v, msg)
	}
}

func (h *Hub) join(v *viewer) {
	ready := h.stream.Ready()
	h.mu.Lock()
	h.viewers[v.id] = v
	n := len(h.viewers)
	if n > 1 && ready {
		h.deliver(v, encode("ffmpeg_ready", gin.H{"ready": true}))
	}
	h.mu.Unlock()

	h.log.Infow("viewer connected", "viewer", v.id, "username", v.username, "viewers", n)
	h.countChanged(n)
	if n == 1 {
		go h.startStream()
	}
}

func (h *Hub) leave(v *viewer) {
	h.mu.Lock()
	if _, ok := h.viewers[v.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.viewers, v.id)
	close(v.send)
	n := len(h.viewers)
	h.mu.Unlock()

	h.log.Infow("viewer disconnected", "viewer", v.id, "viewers", n)
	h.countChanged(n)
	if n == 0 {
		go h.stopStream()
	}
}

func (h *Hub) handle(v *viewer, ev Event) {
	switch ev.Event {
	case "heartbeat":
		h.mu.Lock()
		v.lastSeen = time.Now()
		h.deliver(v, encode("heartbeat", gin.H{"viewers": len(h.viewers)}))
		h.mu.Unlock()
	default:
		h.log.Debugw("unknown websocket event", "event", ev.Event, "viewer", v.id)
	}
}

func (h *Hub) countChanged(n int) {
	h.Broadcast("viewer_count", gin.H{"viewers": n})
	if h.onCount != nil {
		h.onCount(n)
	}
}

func (h *Hub) startStream() {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	if h.Count() == 0 {
		return
	}
	if err := h.stream.Start(context.Background()); err != nil {
		h.log.Errorw("failed to start camera stream", "err", err)
		return
	}
	if h.Count() == 0 {
		// everyone left while the stream was starting
		if err := h.stream.Stop(); err != nil {
			h.log.Errorw("failed to stop camera stream", "err", err)
		}
		return
	}
	h.Broadcast("ffmpeg_ready", gin.H{"ready": true})
}

func (h *Hub) stopStream() {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	if h.Count() > 0 {
		return
	}
	if err := h.stream.Stop(); err != nil {
		h.log.Errorw("failed to stop camera stream", "err", err)
	}
}

// Sweep disconnects viewers whose last heartbeat is older than the timeout.
func (h *Hub) Sweep(now time.Time) int {
	h.mu.Lock()
	var stale []*viewer
	for _, v := range h.viewers {
		if now.Sub(v.lastSeen) > h.timeout {
			stale = append(stale, v)
		}
	}
	h.mu.Unlock()

	for _, v := range stale {
		h.log.Infow("viewer timed out", "viewer", v.id, "username", v.username)
		h.leave(v)
	}
	return len(stale)
}

// RunSweeper calls Sweep every half timeout until ctx is done.
func (h *Hub) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(h.timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.Sweep(now)
		}
	}
}

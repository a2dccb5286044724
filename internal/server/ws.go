package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/visor/internal/input"
	"github.com/ayusman/visor/internal/scene"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message types exchanged with the composer page.
const (
	MessageScene      = "scene"
	MessageKey        = "key"
	MessageClick      = "click"
	MessageFullscreen = "fullscreen"
)

const (
	clientBuffer = 8
	eventBuffer  = 16
)

// Message is the JSON envelope used in both directions.
type Message struct {
	Type  string          `json:"type"`
	Key   string          `json:"key,omitempty"`
	Scene *scene.Snapshot `json:"scene,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// SceneHub broadcasts scene snapshots to every connected composer page and
// turns their key and click messages into input events.
type SceneHub struct {
	bindings input.Bindings
	events   chan input.Event

	mu      sync.RWMutex
	clients map[string]*client
	latest  []byte
}

// NewSceneHub creates a SceneHub. A nil bindings map uses the arrow keys.
func NewSceneHub(bindings input.Bindings) *SceneHub {
	if bindings == nil {
		bindings = input.DefaultBindings()
	}
	return &SceneHub{
		bindings: bindings,
		events:   make(chan input.Event, eventBuffer),
		clients:  make(map[string]*client),
	}
}

// Events delivers input from connected pages.
func (h *SceneHub) Events() <-chan input.Event {
	return h.events
}

// Compose implements scene.Composer. Slow clients miss snapshots rather than
// holding up the caller.
func (h *SceneHub) Compose(s scene.Snapshot) {
	msg, err := json.Marshal(Message{Type: MessageScene, Scene: &s})
	if err != nil {
		log.Printf("Failed to encode scene: %v", err)
		return
	}

	h.mu.Lock()
	h.latest = msg
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
	h.mu.Unlock()
}

// Latest returns the last encoded scene message, or nil.
func (h *SceneHub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// ClientCount returns the number of connected pages.
func (h *SceneHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SceneHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	if h.latest != nil {
		c.send <- h.latest
	}
	h.mu.Unlock()

	log.Printf("Composer %s connected", c.id)

	done := make(chan struct{})
	go h.writeLoop(c, done)

	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	close(done)
	conn.Close()

	log.Printf("Composer %s disconnected", c.id)
}

func (h *SceneHub) writeLoop(c *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (h *SceneHub) readLoop(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Composer %s sent invalid message: %v", c.id, err)
			continue
		}

		switch msg.Type {
		case MessageKey:
			action := h.bindings.Lookup(msg.Key)
			if action == input.ActionNone {
				continue
			}
			h.emit(input.Event{Action: action, Source: c.id})
		case MessageClick:
			h.reply(c, Message{Type: MessageFullscreen})
			h.emit(input.Event{Action: input.ActionFullscreen, Source: c.id})
		}
	}
}

func (h *SceneHub) reply(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *SceneHub) emit(ev input.Event) {
	select {
	case h.events <- ev:
	default:
		log.Printf("Dropping %s from %s: input queue full", ev.Action, ev.Source)
	}
}

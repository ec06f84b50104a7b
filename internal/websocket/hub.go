package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/dreamtools/dream-background-remover/internal/i18n"
	"github.com/dreamtools/dream-background-remover/internal/model"
)

// Client represents one dialog-shim connection subscribed to a job.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans job events out to WebSocket subscribers, grouped by job id.
// It is fed exclusively from the dispatch loop, so subscribers see events
// in delivery order.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	jobID   string
	payload []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			log.Printf("[Hub] Client subscribed to job %s", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients[msg.jobID] {
				select {
				case client.Send <- msg.payload:
				default:
					// slow consumer; drop the connection, not the queue
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) publish(jobID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] Failed to marshal message for job %s: %v", jobID, err)
		return
	}
	h.broadcast <- &broadcastMessage{jobID: jobID, payload: data}
}

// HandleConnection serves one subscriber until the socket closes.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine with keep-alive pings
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Hub] WebSocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.Send <- data
		}
	}
}

// Sink adapts the hub to the controller's sink contract, localizing
// message keys for the dialog's configured language.
type Sink struct {
	hub  *Hub
	lang i18n.Language
}

func NewSink(hub *Hub, lang i18n.Language) *Sink {
	return &Sink{hub: hub, lang: lang}
}

func (s *Sink) OnProgress(ev model.ProgressEvent) {
	s.hub.publish(ev.JobID, model.WSProgressMessage{
		Type:       model.WSMessageTypeProgress,
		JobID:      ev.JobID,
		State:      ev.State,
		MessageKey: ev.MessageKey,
		Params:     ev.Params,
		Message:    i18n.Localize(s.lang, ev.MessageKey, ev.Params),
	})
}

func (s *Sink) OnTerminal(jobID string, res model.TerminalResult) {
	msg := model.WSTerminalMessage{
		Type:            model.WSMessageTypeTerminal,
		JobID:           jobID,
		State:           res.State,
		Ref:             res.Ref,
		RemoteCompleted: res.RemoteCompleted,
	}

	switch {
	case res.Error != nil:
		msg.Error = &model.WSError{
			Kind:       res.Error.Kind,
			MessageKey: res.Error.MessageKey,
			Message:    i18n.Localize(s.lang, res.Error.MessageKey, res.Error.Params),
		}
		msg.Message = msg.Error.Message
	case res.State == model.JobStateCancelled:
		msg.Message = i18n.Localize(s.lang, i18n.KeyCancelled, nil)
	case res.Ref != nil && res.Ref.Kind == model.RefKindLayer:
		msg.Message = i18n.Localize(s.lang, i18n.KeyDoneLayerCreated,
			map[string]string{"name": res.Ref.LayerName})
	case res.Ref != nil:
		msg.Message = i18n.Localize(s.lang, i18n.KeyDoneFileCreated,
			map[string]string{"path": res.Ref.Path})
	}

	s.hub.publish(jobID, msg)
}

package server

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Job event names pushed to WebSocket subscribers.
const (
	eventJobReceived = "job_received"
	eventJobPrinted  = "job_printed"
	eventJobFailed   = "job_failed"
)

// wsMessage is one event frame on the feed.
type wsMessage struct {
	Event string `json:"event"`
	Data  gin.H  `json:"data"`
}

// hub fans job events out to connected WebSocket clients. The feed is
// one-way; inbound frames are drained and dropped.
type hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsMessage
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]bool)}
}

func (h *hub) add(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
}

func (h *hub) remove(client *wsClient) {
	h.mu.Lock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// broadcast queues an event for every client. Clients that cannot keep
// up are skipped rather than blocking the print path.
func (h *hub) broadcast(event string, data gin.H) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := wsMessage{Event: event, Data: data}
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

// handleWebSocket upgrades the connection and subscribes it to the job
// event feed.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan wsMessage, 256),
	}
	s.hub.add(client)
	s.log.Debug().Str("client_ip", c.ClientIP()).Msg("websocket client connected")

	go client.writePump()
	go s.readPump(client)
}

func (c *wsClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readPump exists to detect the peer going away; the feed carries no
// inbound commands.
func (s *Server) readPump(client *wsClient) {
	defer func() {
		s.hub.remove(client)
		client.conn.Close()
		s.log.Debug().Msg("websocket client disconnected")
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

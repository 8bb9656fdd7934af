package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

const (
	clientBufferSize = 64
	writeWait        = 5 * time.Second
)

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// hub fans the run events out to the connected websocket clients. Slow clients are dropped.
type hub struct {
	upgrader websocket.Upgrader
	mut      sync.RWMutex
	clients  map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}

	h.mut.Lock()
	h.clients[client] = struct{}{}
	numClients := len(h.clients)
	h.mut.Unlock()

	log.Debug("websocket client connected", "remote", r.RemoteAddr, "num clients", numClients)

	go h.writeLoop(client)
	go h.readLoop(client)
}

func (h *hub) writeLoop(client *wsClient) {
	defer func() {
		_ = client.conn.Close()
	}()

	for data := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		if err != nil {
			h.remove(client)
			return
		}
	}

	_ = client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// readLoop only detects the disconnection, the channel is push-only
func (h *hub) readLoop(client *wsClient) {
	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			h.remove(client)
			return
		}
	}
}

func (h *hub) remove(client *wsClient) {
	h.mut.Lock()
	delete(h.clients, client)
	h.mut.Unlock()

	client.closeOnce.Do(func() {
		close(client.send)
	})
}

func (h *hub) broadcast(event common.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Warn("failed to encode event", "type", event.Type, "error", err)
		return
	}

	slow := make([]*wsClient, 0)
	h.mut.RLock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mut.RUnlock()

	for _, client := range slow {
		log.Debug("dropping slow websocket client", "remote", client.conn.RemoteAddr().String())
		h.remove(client)
	}
}

func (h *hub) numClients() int {
	h.mut.RLock()
	defer h.mut.RUnlock()

	return len(h.clients)
}

func (h *hub) close() {
	h.mut.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mut.RUnlock()

	for _, client := range clients {
		h.remove(client)
	}
}

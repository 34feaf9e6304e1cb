package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"vigila/src/logger"
	"vigila/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// CommandHandler runs a command sent by one of userID's clients.
type CommandHandler func(userID string, cmd models.MClientCommand)

// DisconnectHandler runs after the last client of userID went away.
type DisconnectHandler func(userID string)

// -----------------------------------------------------------------------------
// Hub fans push messages out to the websocket clients of their user.
// -----------------------------------------------------------------------------

type Hub struct {
	Logger       *logger.Logger
	OnCommand    CommandHandler
	OnDisconnect DisconnectHandler

	clients    map[string]map[*Client]struct{}
	broadcast  chan *models.MPushMessage // Buffered queue
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// Last watchlist per user, replayed on connect
	latest     map[string]*models.MPushMessage
	stateMutex sync.RWMutex
	count      int
	perUser    map[string]int
}

// -----------------------------------------------------------------------------

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		Logger:  log,
		clients: make(map[string]map[*Client]struct{}),
		// Queue size of 256 absorbs bursts of widget updates
		broadcast:  make(chan *models.MPushMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		latest:     make(map[string]*models.MPushMessage),
		perUser:    make(map[string]int),
	}
}

// -----------------------------------------------------------------------------

// Run is the hub loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]struct{})
			}
			h.clients[client.userID][client] = struct{}{}
			h.setCount(client.userID, +1)

			// Send the last known watchlist on connect
			h.stateMutex.RLock()
			if msg := h.latest[client.userID]; msg != nil {
				client.send <- msg
			}
			h.stateMutex.RUnlock()

		case client := <-h.unregister:
			h.drop(client, true)

		case message := <-h.broadcast:
			if message.Type == models.PushWatchlist {
				h.stateMutex.Lock()
				h.latest[message.UserID] = message
				h.stateMutex.Unlock()
			}

			for client := range h.clients[message.UserID] {
				select {
				case client.send <- message:
				default:
					// Client too slow, disconnect to keep the hub moving
					h.drop(client, true)
				}
			}

		case <-h.done:
			for _, set := range h.clients {
				for client := range set {
					h.drop(client, false)
				}
			}
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) drop(client *Client, notify bool) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	h.setCount(client.userID, -1)

	if len(set) == 0 {
		delete(h.clients, client.userID)
		// Off the hub loop: the handler may push and push goes through the loop
		if notify && h.OnDisconnect != nil {
			go h.OnDisconnect(client.userID)
		}
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) setCount(userID string, delta int) {
	h.stateMutex.Lock()
	h.count += delta
	h.perUser[userID] += delta
	if h.perUser[userID] <= 0 {
		delete(h.perUser, userID)
	}
	h.stateMutex.Unlock()
}

// Connections returns the number of open websocket clients.
func (h *Hub) Connections() int {
	h.stateMutex.RLock()
	defer h.stateMutex.RUnlock()
	return h.count
}

// Clients returns the number of open websocket clients of userID.
func (h *Hub) Clients(userID string) int {
	h.stateMutex.RLock()
	defer h.stateMutex.RUnlock()
	return h.perUser[userID]
}

// -----------------------------------------------------------------------------

// Broadcast queues message for the clients of message.UserID. Messages sent
// after Stop are dropped.
func (h *Hub) Broadcast(message *models.MPushMessage) {
	if message == nil || message.UserID == "" {
		return
	}
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// -----------------------------------------------------------------------------

// Stop ends the hub loop and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (h *Hub) handleWebSocket(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(headerUserID))
	if userID == "" {
		userID = strings.TrimSpace(c.Query("user_id"))
	}
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "missing " + headerUserID + " header"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		userID: userID,
		conn:   conn,
		// Buffered channel to prevent blocking the hub loop
		send: make(chan *models.MPushMessage, 256),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		h.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	switch cmd.Command {
	case models.CommandInput, models.CommandRefresh:
	default:
		h.Logger.Debug("Ignoring unknown command %q from %s", cmd.Command, client.userID)
		return
	}

	if h.OnCommand != nil {
		h.OnCommand(client.userID, cmd)
	}
}

package main

import "sync"

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub manages all connected clients and routes them to rooms
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      *RoomRegistry
	games      *GameManager
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
	// Auth & DB
	db   *DB
	auth *Auth
	// Online auth users: authPlayerID -> *Client
	onlineMu    sync.RWMutex
	onlineUsers map[int64]*Client
}

// NewHub creates a new Hub with database
func NewHub(db *DB) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		rooms:       NewRoomRegistry(),
		games:       NewGameManager(),
		ipConns:     make(map[string]int),
		db:          db,
		auth:        NewAuth(db),
		onlineUsers: make(map[int64]*Client),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			// A dropped connection behaves like leaving: the player
			// vanishes from their lobby room and any running game.
			client.departRoom()
			if client.authPlayerID != 0 {
				h.SetOffline(client.authPlayerID)
			}
		}
	}
}

// BroadcastRoom sends a message to every client in the given room.
func (h *Hub) BroadcastRoom(roomID string, msg Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.room() == roomID {
			c.SendJSON(msg)
		}
	}
}

// BroadcastRoomExcept sends to everyone in the room but the sender.
func (h *Hub) BroadcastRoomExcept(roomID string, except *Client, msg Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c != except && c.room() == roomID {
			c.SendJSON(msg)
		}
	}
}

// RoomClients returns the clients currently associated with a room.
func (h *Hub) RoomClients(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var list []*Client
	for c := range h.clients {
		if c.room() == roomID {
			list = append(list, c)
		}
	}
	return list
}

// ClearRoom detaches every client from a deleted room.
func (h *Hub) ClearRoom(roomID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.room() == roomID {
			c.setRoom("")
		}
	}
}

// BroadcastAll sends a message to every connected client (lobby pushes).
func (h *Hub) BroadcastAll(msg Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.SendJSON(msg)
	}
}

// RecordResult persists aggregate stats for authenticated players after a
// finished game. Only totals are stored, never per-match history.
func (h *Hub) RecordResult(winner *Player, players []*Player) {
	if h.db == nil {
		return
	}
	for _, p := range players {
		if p.AuthID == 0 {
			continue
		}
		won := winner != nil && winner.ID == p.ID
		h.db.AddGameResult(p.AuthID, p.Score, won)
	}
}

// SetOnline marks an authenticated user as online
func (h *Hub) SetOnline(playerID int64, client *Client) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	h.onlineUsers[playerID] = client
}

// SetOffline removes an authenticated user from online tracking
func (h *Hub) SetOffline(playerID int64) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	delete(h.onlineUsers, playerID)
}

// IsOnline checks if a player is online
func (h *Hub) IsOnline(playerID int64) bool {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	_, ok := h.onlineUsers[playerID]
	return ok
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}

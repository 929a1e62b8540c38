package main

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
)

// Client represents a WebSocket connection. The connection id doubles as
// the player id in lobby and game state; the current room id is carried
// here explicitly, never inferred from transport state.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	id         string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	// roomID is read on the client's own goroutine and cleared by the hub
	// when another member tears the room down, so it needs its own lock.
	roomMu sync.Mutex
	roomID string
	// Auth state
	authPlayerID int64  // 0 = unauthenticated/guest
	authUsername string // "" = unauthenticated
}

// room returns the client's current room id.
func (c *Client) room() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.roomID
}

// setRoom associates the client with a room ("" detaches).
func (c *Client) setRoom(id string) {
	c.roomMu.Lock()
	c.roomID = id
	c.roomMu.Unlock()
}

// takeRoom detaches the client and returns the room it was in, so only
// one of two concurrent leave paths proceeds with the teardown.
func (c *Client) takeRoom() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	id := c.roomID
	c.roomID = ""
	return id
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		id:         GenerateID(8),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgGetRooms:
		c.SendJSON(Envelope{T: MsgRoomsList, Data: c.hub.rooms.ListRooms()})
	case MsgCreateRoom:
		c.handleCreateRoom(env.D)
	case MsgJoinRoom:
		c.handleJoinRoom(env.D)
	case MsgLeaveRoom:
		c.handleLeaveRoom()
	case MsgStartGame:
		c.handleStartGame()
	case MsgMoveRequest:
		c.handleMoveRequest(env.D)
	case MsgBombRequest:
		c.handleBombRequest(env.D)
	case MsgPauseGame:
		c.handlePauseGame(env.D)
	case MsgPlayerQuit:
		c.handlePlayerQuit(env.D)
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgProfile:
		c.handleProfile()
	case MsgLeaderboard:
		c.handleLeaderboard()
	}
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Bomber"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

func (c *Client) handleCreateRoom(data json.RawMessage) {
	var msg CreateRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.room() != "" {
		c.SendJSON(Envelope{T: MsgRoomError, Data: RoomErrorMsg{Message: "already in a room"}})
		return
	}

	room := c.hub.rooms.CreateRoom(c.id, cleanName(msg.PlayerName))
	c.setRoom(room.ID)

	c.SendJSON(Envelope{T: MsgRoomCreated, Data: room})
	c.SendJSON(Envelope{T: MsgRoomJoined, Data: RoomJoinedMsg{
		Room:     room,
		Players:  room.Players,
		PlayerID: c.id,
	}})
	c.hub.BroadcastAll(Envelope{T: MsgRoomsList, Data: c.hub.rooms.ListRooms()})
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	var msg JoinRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	room, err := c.hub.rooms.JoinRoom(msg.RoomID, c.id, cleanName(msg.PlayerName))
	if err != nil {
		c.SendJSON(Envelope{T: MsgRoomError, Data: RoomErrorMsg{Message: err.Error()}})
		return
	}
	c.setRoom(room.ID)

	c.SendJSON(Envelope{T: MsgRoomJoined, Data: RoomJoinedMsg{
		Room:     room,
		Players:  room.Players,
		PlayerID: c.id,
	}})
	c.hub.BroadcastRoom(room.ID, Envelope{T: MsgPlayersUpdate, Data: room.Players})
	c.hub.BroadcastAll(Envelope{T: MsgRoomsList, Data: c.hub.rooms.ListRooms()})
}

// leaveCurrentRoom removes the client from its lobby room and, if a game
// is running, from the game. Shared by the explicit leaveRoom request and
// the disconnect path.
func (c *Client) leaveCurrentRoom() {
	roomID := c.takeRoom()
	if roomID == "" {
		return
	}

	room, removed := c.hub.rooms.LeaveRoom(c.id)
	if g := c.hub.games.GetGame(roomID); g != nil && g.Paused() {
		// Never leave survivors stuck behind someone else's pause.
		g.SetPaused(false)
		c.hub.BroadcastRoom(roomID, Envelope{T: MsgGamePaused, Data: PauseMsg{IsPaused: false}})
	}
	c.hub.games.RemovePlayer(roomID, c.id)

	if removed && room != nil {
		c.hub.BroadcastRoom(roomID, Envelope{T: MsgPlayersUpdate, Data: room.Players})
	} else {
		// Room gone: host left or last player out. Kick everyone still in it.
		c.hub.games.RemoveGame(roomID)
		c.hub.BroadcastRoom(roomID, Envelope{T: MsgRoomLeft})
		c.hub.ClearRoom(roomID)
	}
	c.hub.BroadcastAll(Envelope{T: MsgRoomsList, Data: c.hub.rooms.ListRooms()})
}

func (c *Client) handleLeaveRoom() {
	c.leaveCurrentRoom()
	c.SendJSON(Envelope{T: MsgRoomLeft})
}

// departRoom is the disconnect path, invoked from the hub's unregister loop.
func (c *Client) departRoom() {
	c.leaveCurrentRoom()
}

func (c *Client) handleStartGame() {
	room, err := c.hub.rooms.StartGame(c.room(), c.id)
	if err != nil {
		c.SendJSON(Envelope{T: MsgRoomError, Data: RoomErrorMsg{Message: err.Error()}})
		return
	}

	g := c.hub.games.CreateGame(room.ID, room.Players)
	hub := c.hub
	g.OnEnd(hub.RecordResult)
	for _, member := range hub.RoomClients(room.ID) {
		g.SetClient(member.id, member)
		if member.authPlayerID != 0 {
			g.SetAuth(member.id, member.authPlayerID)
		}
	}

	g.Broadcast(Envelope{T: MsgGameStarted, Data: g.StartPayload()})
	hub.BroadcastAll(Envelope{T: MsgRoomsList, Data: hub.rooms.ListRooms()})
}

func (c *Client) handleMoveRequest(data json.RawMessage) {
	var msg MoveRequestMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	g := c.hub.games.GetGame(c.room())
	if g == nil {
		return
	}

	res := g.Move(msg.PlayerID, msg.Direction)
	if res == nil {
		return
	}

	g.Broadcast(Envelope{T: MsgPlayerMoved, Data: PlayerMovedMsg{
		PlayerID: msg.PlayerID,
		Position: res.Player.Position,
	}})
	if res.Picked != nil {
		g.Broadcast(Envelope{T: MsgRemovePowerup, Data: RemovePowerupMsg{ID: res.Picked.ID}})
		g.Broadcast(Envelope{T: MsgPlayerUpdated, Data: PlayerUpdatedMsg{
			PlayerID:  msg.PlayerID,
			BombCount: res.Player.BombCount,
			BombPower: res.Player.BombPower,
			Score:     res.Player.Score,
		}})
	}
}

func (c *Client) handleBombRequest(data json.RawMessage) {
	var msg BombRequestMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	g := c.hub.games.GetGame(c.room())
	if g == nil {
		return
	}

	if b := g.PlaceBomb(c.id, msg.X, msg.Y); b != nil {
		g.Broadcast(Envelope{T: MsgBombPlaced, Data: b})
	}
}

func (c *Client) handlePauseGame(data json.RawMessage) {
	var msg PauseMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	g := c.hub.games.GetGame(c.room())
	if g == nil {
		return
	}

	g.SetPaused(msg.IsPaused)
	g.Broadcast(Envelope{T: MsgGamePaused, Data: msg})
}

func (c *Client) handlePlayerQuit(data json.RawMessage) {
	var msg QuitMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	roomID := c.room()
	if roomID == "" {
		return
	}

	c.hub.BroadcastRoomExcept(roomID, c, Envelope{T: MsgPlayerQuit, Data: msg})
	c.leaveCurrentRoom()
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.db == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "accounts unavailable"}})
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.hub.SetOnline(id, c)
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: msg.Username,
		PlayerID: id,
	}})
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.db == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "accounts unavailable"}})
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	if c.hub.IsOnline(id) {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "account already online"}})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.hub.SetOnline(id, c)
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: msg.Username,
		PlayerID: id,
	}})
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.db == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "accounts unavailable"}})
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "invalid token"}})
		return
	}
	if c.hub.IsOnline(id) {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "account already online"}})
		return
	}
	c.authPlayerID = id
	c.authUsername = username
	c.hub.SetOnline(id, c)
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    msg.Token,
		Username: username,
		PlayerID: id,
	}})
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPlayerID == 0 {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "not authenticated"}})
		return
	}
	stats, err := c.hub.db.GetStats(c.authPlayerID)
	if err != nil || stats == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "profile not found"}})
		return
	}
	c.SendJSON(Envelope{T: MsgProfileData, Data: ProfileDataMsg{
		Username: c.authUsername,
		Kills:    stats.Kills,
		Wins:     stats.Wins,
		Games:    stats.Games,
	}})
}

func (c *Client) handleLeaderboard() {
	if c.hub.db == nil {
		return
	}
	entries, err := c.hub.db.GetLeaderboard(10)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "leaderboard unavailable"}})
		return
	}
	c.SendJSON(Envelope{T: MsgLeaders, Data: entries})
}

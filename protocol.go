package main

import "encoding/json"

// Client -> Server message types
const (
	MsgGetRooms    = "getRoomsList"
	MsgCreateRoom  = "createRoom"
	MsgJoinRoom    = "joinRoom"
	MsgLeaveRoom   = "leaveRoom"
	MsgStartGame   = "startGame"
	MsgMoveRequest = "playerMoveRequest"
	MsgBombRequest = "bombPlaceRequest"
	MsgPauseGame   = "pauseGame"
	MsgPlayerQuit  = "playerQuit"
	MsgRegister    = "register"
	MsgLogin       = "login"
	MsgAuth        = "auth"
	MsgProfile     = "profile"
	MsgLeaderboard = "leaderboard"
)

// Server -> Client message types
const (
	MsgRoomsList     = "roomsList"
	MsgRoomCreated   = "roomCreated"
	MsgRoomJoined    = "roomJoined"
	MsgRoomError     = "roomError"
	MsgRoomLeft      = "roomLeft"
	MsgPlayersUpdate = "playersUpdate"
	MsgGameStarted   = "gameStarted"
	MsgPlayerMoved   = "playerMoved"
	MsgRemovePowerup = "removePowerup"
	MsgPlayerUpdated = "playerUpdated"
	MsgBombPlaced    = "bombPlaced"
	MsgGamePaused    = "gamePaused"
	MsgExplosion     = "explosionUpdate"
	MsgPlayerKilled  = "playerKilled"
	MsgGameEnded     = "gameEnded"
	MsgAuthOK        = "authOK"
	MsgProfileData   = "profileData"
	MsgLeaders       = "leaders"
	MsgError         = "error"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// CreateRoomMsg asks for a new lobby room with the sender as host
type CreateRoomMsg struct {
	PlayerName string `json:"playerName"`
}

// JoinRoomMsg asks to join an existing lobby room
type JoinRoomMsg struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

// LeaveRoomMsg carries the room the sender is leaving
type LeaveRoomMsg struct {
	RoomID string `json:"roomId"`
}

// MoveRequestMsg is a single-tile movement request
type MoveRequestMsg struct {
	PlayerID  string `json:"playerId"`
	Direction string `json:"direction"` // up, down, left, right
}

// BombRequestMsg asks to place a bomb at a tile
type BombRequestMsg struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PauseMsg toggles the room's pause state
type PauseMsg struct {
	IsPaused       bool   `json:"isPaused"`
	PausedByPlayer string `json:"pausedByPlayer,omitempty"`
}

// QuitMsg announces a player abandoning a running game
type QuitMsg struct {
	PlayerID string `json:"playerId"`
}

// RoomJoinedMsg confirms lobby membership to the joiner
type RoomJoinedMsg struct {
	Room     *Room        `json:"room"`
	Players  []RoomPlayer `json:"players"`
	PlayerID string       `json:"playerId"`
}

// RoomErrorMsg reports a rejected lobby request
type RoomErrorMsg struct {
	Message string `json:"message"`
}

// GameStartedMsg carries the initial authoritative game state
type GameStartedMsg struct {
	Map     Grid      `json:"map"`
	Players []*Player `json:"players"`
}

// PlayerMovedMsg is broadcast for every processed move request
type PlayerMovedMsg struct {
	PlayerID string   `json:"playerId"`
	Position Position `json:"position"`
}

// RemovePowerupMsg tells clients a powerup was consumed
type RemovePowerupMsg struct {
	ID string `json:"id"`
}

// PlayerUpdatedMsg carries changed player stats after a pickup
type PlayerUpdatedMsg struct {
	PlayerID  string `json:"playerId"`
	BombCount int    `json:"bombCount"`
	BombPower int    `json:"bombPower"`
	Score     int    `json:"score"`
}

// ExplosionMsg is broadcast once per resolved bomb
type ExplosionMsg struct {
	BombID         string          `json:"bombId"`
	Explosions     []ExplosionCell `json:"explosions"`
	DestroyedTiles []Position      `json:"destroyedTiles"`
	UpdatedMap     Grid            `json:"updatedMap"`
	Powerups       []*Powerup      `json:"powerups"`
	KilledPlayers  []string        `json:"killedPlayers"`
	OwnerID        string          `json:"ownerId"`
}

// PlayerKilledMsg is broadcast per elimination
type PlayerKilledMsg struct {
	PlayerID string `json:"playerId"`
	KilledBy string `json:"killedBy"`
}

// GameEndedMsg closes out a match. Winner is omitted when nobody survived.
type GameEndedMsg struct {
	Winner     *Player   `json:"winner,omitempty"`
	Players    []*Player `json:"players"`
	GameTimeMs int64     `json:"gameTime"`
}

// StateSnapshot is the full authoritative state, msgpack-encoded and sent
// as a binary frame after every explosion so clients resync.
type StateSnapshot struct {
	Map      Grid       `json:"map"`
	Players  []*Player  `json:"players"`
	Bombs    []*Bomb    `json:"bombs"`
	Powerups []*Powerup `json:"powerups"`
	Paused   bool       `json:"paused"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates an existing account
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg resumes a session from a stored token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"playerId"`
}

// ProfileDataMsg carries aggregate stats for the requesting account
type ProfileDataMsg struct {
	Username string `json:"username"`
	Kills    int    `json:"kills"`
	Wins     int    `json:"wins"`
	Games    int    `json:"games"`
}

// ErrorMsg sends a non-room error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

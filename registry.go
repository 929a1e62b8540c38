package main

import (
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
)

const (
	MaxRoomPlayers    = 4
	MinPlayersToStart = 2
)

// Lobby error taxonomy, reported to the requester as roomError events.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyStarted = errors.New("game has already started")
	ErrNotHost        = errors.New("only the host can start the game")
	ErrTooFewPlayers  = errors.New("not enough players to start the game (minimum 2)")
)

// RoomPlayer is a lobby member before the game starts.
type RoomPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room is a pre-game lobby. Players join in order; the first is the host.
type Room struct {
	ID          string       `json:"id"`
	HostID      string       `json:"hostId"`
	Players     []RoomPlayer `json:"players"`
	GameStarted bool         `json:"gameStarted"`
}

// RoomInfo is the lobby-list view of a room.
type RoomInfo struct {
	ID          string   `json:"id"`
	PlayerCount int      `json:"playerCount"`
	GameStarted bool     `json:"gameStarted"`
	PlayerNames []string `json:"playerNames"`
}

// RoomRegistry tracks lobby rooms. It is an explicit store handed to the
// hub, never a package-level singleton.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*Room)}
}

// CreateRoom creates a room with the host as its sole member.
func (rr *RoomRegistry) CreateRoom(hostID, playerName string) *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	room := &Room{
		ID:      uuid.New().String(),
		HostID:  hostID,
		Players: []RoomPlayer{{ID: hostID, Name: playerName}},
	}
	rr.rooms[room.ID] = room
	log.Printf("room %s created by %s (%s)", room.ID, playerName, hostID)
	return room
}

// JoinRoom adds a player to an existing room.
func (rr *RoomRegistry) JoinRoom(roomID, playerID, playerName string) (*Room, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	room, ok := rr.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if len(room.Players) >= MaxRoomPlayers {
		return nil, ErrRoomFull
	}
	if room.GameStarted {
		return nil, ErrAlreadyStarted
	}

	room.Players = append(room.Players, RoomPlayer{ID: playerID, Name: playerName})
	log.Printf("player %s (%s) joined room %s", playerName, playerID, roomID)
	return room, nil
}

// LeaveRoom removes the player from whichever room holds them. If the
// leaver was host, or the room became empty, the room is deleted and the
// returned room is nil so callers can tell "room gone" from "room remains".
func (rr *RoomRegistry) LeaveRoom(playerID string) (*Room, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for id, room := range rr.rooms {
		idx := -1
		for i, p := range room.Players {
			if p.ID == playerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		wasHost := room.HostID == playerID
		room.Players = append(room.Players[:idx], room.Players[idx+1:]...)

		if wasHost || len(room.Players) == 0 {
			delete(rr.rooms, id)
			log.Printf("room %s deleted (host left: %v)", id, wasHost)
			return nil, true
		}
		return room, true
	}
	return nil, false
}

// StartGame flips a room to started. Starting is host-only, needs at least
// MinPlayersToStart members, and is rejected on a second attempt.
func (rr *RoomRegistry) StartGame(roomID, requesterID string) (*Room, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	room, ok := rr.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.HostID != requesterID {
		return nil, ErrNotHost
	}
	if len(room.Players) < MinPlayersToStart {
		return nil, ErrTooFewPlayers
	}
	if room.GameStarted {
		return nil, ErrAlreadyStarted
	}

	room.GameStarted = true
	log.Printf("game in room %s started", roomID)
	return room, nil
}

// GetRoom returns a room by id, or nil.
func (rr *RoomRegistry) GetRoom(roomID string) *Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return rr.rooms[roomID]
}

// ListRooms returns the lobby view of all rooms.
func (rr *RoomRegistry) ListRooms() []RoomInfo {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	list := make([]RoomInfo, 0, len(rr.rooms))
	for _, room := range rr.rooms {
		names := make([]string, 0, len(room.Players))
		for _, p := range room.Players {
			names = append(names, p.Name)
		}
		list = append(list, RoomInfo{
			ID:          room.ID,
			PlayerCount: len(room.Players),
			GameStarted: room.GameStarted,
			PlayerNames: names,
		})
	}
	return list
}

package main

import "sync"

// GameManager is the explicit room-id -> game store. Games are created
// when a lobby room starts and removed when the room is torn down; removal
// cancels all outstanding bomb deadlines so no callback fires against a
// deleted room.
type GameManager struct {
	mu    sync.RWMutex
	games map[string]*Game
}

// NewGameManager creates an empty manager.
func NewGameManager() *GameManager {
	return &GameManager{games: make(map[string]*Game)}
}

// CreateGame initializes authoritative state for a started room.
func (gm *GameManager) CreateGame(roomID string, roster []RoomPlayer) *Game {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	g := NewGame(roomID, roster)
	gm.games[roomID] = g
	return g
}

// GetGame returns the game for a room, or nil.
func (gm *GameManager) GetGame(roomID string) *Game {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return gm.games[roomID]
}

// RemoveGame tears down a room's game, cancelling its bomb timers.
func (gm *GameManager) RemoveGame(roomID string) {
	gm.mu.Lock()
	g, ok := gm.games[roomID]
	if ok {
		delete(gm.games, roomID)
	}
	gm.mu.Unlock()

	if ok {
		g.End()
	}
}

// RemovePlayer drops a player from a room's game, if it exists, and tears
// the game down once it has no players left.
func (gm *GameManager) RemovePlayer(roomID, playerID string) {
	g := gm.GetGame(roomID)
	if g == nil {
		return
	}
	g.RemovePlayer(playerID)
	if g.PlayerCount() == 0 {
		gm.RemoveGame(roomID)
	}
}

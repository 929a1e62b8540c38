package main

import (
	"log"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Broadcaster is the event sink for one client. The engine never touches
// the transport directly.
type Broadcaster interface {
	SendJSON(msg interface{})
}

// BinaryBroadcaster is implemented by sinks that accept binary frames
// (msgpack state snapshots). JSON-only sinks simply miss snapshots.
type BinaryBroadcaster interface {
	SendBinary(data []byte)
}

// MoveResult reports the outcome of an accepted move request. Picked is
// non-nil only when the move consumed a powerup.
type MoveResult struct {
	Player *Player
	Picked *Powerup
}

// Game owns the authoritative state for one started room. Every operation
// takes g.mu, so all mutations of a room's state are serialized; rooms
// never share state, so separate games run fully in parallel.
type Game struct {
	mu       sync.Mutex
	roomID   string
	grid     Grid
	players  map[string]*Player
	bombs    []*Bomb
	powerups []*Powerup
	clients  map[string]Broadcaster

	paused      bool
	pausedAt    time.Time
	totalPaused time.Duration
	startedAt   time.Time
	ended       bool

	// onEnd, if set, is called once with the winner (nil on a draw) and
	// the final player list. Used to persist aggregate stats.
	onEnd func(winner *Player, players []*Player)
}

// NewGame initializes the game state for a started room: a fresh grid and
// one player per roster slot, in roster order, on the four corner spawns.
func NewGame(roomID string, roster []RoomPlayer) *Game {
	g := &Game{
		roomID:    roomID,
		grid:      GenerateMap(),
		players:   make(map[string]*Player, len(roster)),
		clients:   make(map[string]Broadcaster),
		startedAt: time.Now(),
	}
	for i, rp := range roster {
		g.players[rp.ID] = NewPlayer(rp.ID, rp.Name, i)
	}
	log.Printf("game initialized for room %s with %d players", roomID, len(roster))
	return g
}

// SetClient associates an event sink with a player.
func (g *Game) SetClient(playerID string, client Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[playerID] = client
}

// SetAuth links an in-game player to an authenticated account.
func (g *Game) SetAuth(playerID string, authID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.players[playerID]; ok {
		p.AuthID = authID
	}
}

// OnEnd registers the end-of-game hook.
func (g *Game) OnEnd(fn func(winner *Player, players []*Player)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onEnd = fn
}

// Broadcast sends an event to every client in the room.
func (g *Game) Broadcast(msg Envelope) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.broadcastLocked(msg)
}

func (g *Game) broadcastLocked(msg Envelope) {
	for _, c := range g.clients {
		c.SendJSON(msg)
	}
}

// broadcastSnapshotLocked sends the full state as a binary msgpack frame.
func (g *Game) broadcastSnapshotLocked() {
	snap := StateSnapshot{
		Map:      g.grid,
		Players:  g.playersLocked(),
		Bombs:    g.bombs,
		Powerups: g.powerups,
		Paused:   g.paused,
	}
	data, err := msgpack.Marshal(snap)
	if err != nil {
		log.Printf("snapshot marshal error: %v", err)
		return
	}
	for _, c := range g.clients {
		if bc, ok := c.(BinaryBroadcaster); ok {
			bc.SendBinary(data)
		}
	}
}

// StartPayload builds the gameStarted broadcast body.
func (g *Game) StartPayload() GameStartedMsg {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GameStartedMsg{Map: g.grid, Players: g.playersLocked()}
}

func (g *Game) playersLocked() []*Player {
	list := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		list = append(list, p)
	}
	return list
}

// Move applies a single-tile move request. Returns nil when the room is
// paused or finished or the player is unknown; a blocked move returns the
// player in place with no pickup.
func (g *Game) Move(playerID, direction string) *MoveResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ended || g.paused {
		return nil
	}
	p, ok := g.players[playerID]
	if !ok {
		return nil
	}

	nextX, nextY := p.Position.X, p.Position.Y
	switch direction {
	case "up":
		nextY--
	case "down":
		nextY++
	case "left":
		nextX--
	case "right":
		nextX++
	}

	res := &MoveResult{Player: p}
	if !g.grid.InBounds(nextX, nextY) || !g.grid.At(nextX, nextY).Walkable || g.bombAt(nextX, nextY) != nil {
		return res
	}

	p.Position = Position{X: nextX, Y: nextY}

	for i, pu := range g.powerups {
		if pu.X == nextX && pu.Y == nextY {
			p.ApplyPowerup(pu.Kind)
			g.powerups = append(g.powerups[:i], g.powerups[i+1:]...)
			res.Picked = pu
			break
		}
	}
	return res
}

// PlaceBomb creates a ticking bomb at pos and arms its deadline. Rejected
// (nil) when the room is paused or finished, the tile is off-grid, the
// player is unknown or at bomb capacity, or a bomb already occupies the
// tile.
func (g *Game) PlaceBomb(playerID string, x, y int) *Bomb {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ended || g.paused {
		return nil
	}
	if !g.grid.InBounds(x, y) {
		return nil
	}
	p, ok := g.players[playerID]
	if !ok {
		return nil
	}
	if !p.CanPlaceBomb() {
		return nil
	}
	if g.bombAt(x, y) != nil {
		return nil
	}

	b := NewBomb(playerID, x, y)
	g.bombs = append(g.bombs, b)
	p.ActiveBombs++

	b.arm(BombTimer, g.CheckExplosions)
	return b
}

func (g *Game) bombAt(x, y int) *Bomb {
	for _, b := range g.bombs {
		if b.X == x && b.Y == y {
			return b
		}
	}
	return nil
}

// SetPaused pauses or resumes the room. Pausing freezes every bomb's
// remaining time; resuming restores deadlines so a bomb's total ticking
// time equals exactly BombTimer no matter how long the pause lasted.
func (g *Game) SetPaused(paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ended || paused == g.paused {
		return
	}
	now := time.Now()

	if paused {
		g.pausedAt = now
		for _, b := range g.bombs {
			b.capture(now)
		}
		g.paused = true
		log.Printf("game in room %s paused", g.roomID)
		return
	}

	pauseDuration := now.Sub(g.pausedAt)
	g.totalPaused += pauseDuration
	g.paused = false
	for _, b := range g.bombs {
		if rem := b.release(now); rem > 0 {
			b.arm(rem, g.CheckExplosions)
		}
	}
	log.Printf("game in room %s resumed (paused for %v)", g.roomID, pauseDuration)

	// Bombs whose remaining time had already elapsed resolve immediately.
	g.checkExplosionsLocked()
}

// Paused reports the room's pause flag.
func (g *Game) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// CheckExplosions resolves every bomb whose deadline has elapsed. It is
// the deadline-callback entry point and safe to call at any time; firing
// against a paused or finished room is a no-op.
func (g *Game) CheckExplosions() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkExplosionsLocked()
}

func (g *Game) checkExplosionsLocked() {
	if g.ended || g.paused {
		return
	}
	now := time.Now()

	resolved := false
	for {
		var due *Bomb
		for _, b := range g.bombs {
			if b.due(now) {
				due = b
				break
			}
		}
		if due == nil {
			break
		}
		g.resolveBombLocked(due)
		resolved = true
		if g.ended {
			return
		}
	}
	if resolved {
		g.broadcastSnapshotLocked()
	}
}

// RemovePlayer drops a player from the running game (quit or disconnect).
// Their live bombs keep ticking ownerless. Ends the game if at most one
// living player remains.
func (g *Game) RemovePlayer(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ended {
		return
	}
	if _, ok := g.players[playerID]; !ok {
		return
	}
	delete(g.players, playerID)
	delete(g.clients, playerID)
	g.checkWinLocked()
}

// PlayerCount returns the number of players still in the game.
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// Ended reports whether the game has finished.
func (g *Game) Ended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ended
}

// checkWinLocked ends the game when at most one player is left alive.
// Exactly one survivor wins; zero survivors is a draw with no winner.
func (g *Game) checkWinLocked() {
	alive := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	if len(alive) > 1 {
		return
	}
	var winner *Player
	if len(alive) == 1 {
		winner = alive[0]
	}
	g.finishLocked(winner)
}

// finishLocked ends the game: cancels outstanding deadlines, broadcasts
// gameEnded and fires the end hook.
func (g *Game) finishLocked(winner *Player) {
	g.ended = true
	for _, b := range g.bombs {
		b.disarm()
	}

	elapsed := g.totalPaused
	now := time.Now()
	if g.paused {
		elapsed += now.Sub(g.pausedAt)
	}
	gameTime := now.Sub(g.startedAt) - elapsed

	players := g.playersLocked()
	g.broadcastLocked(Envelope{T: MsgGameEnded, Data: GameEndedMsg{
		Winner:     winner,
		Players:    players,
		GameTimeMs: gameTime.Milliseconds(),
	}})

	if winner != nil {
		log.Printf("game in room %s ended, winner %s", g.roomID, winner.Name)
	} else {
		log.Printf("game in room %s ended with no winner", g.roomID)
	}
	if g.onEnd != nil {
		g.onEnd(winner, players)
	}
}

// End tears the game down without declaring a result (room deleted).
// Outstanding bomb deadlines are cancelled; a timer that already fired
// finds ended set and does nothing.
func (g *Game) End() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ended = true
	for _, b := range g.bombs {
		b.disarm()
	}
}

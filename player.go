package main

const (
	StartBombCapacity = 2 // simultaneous bombs at spawn
	StartBombPower    = 1 // blast radius in tiles at spawn
)

// Position is a tile coordinate on the grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Player is one in-game participant. Position is always in-bounds and on a
// walkable tile while the player is at rest.
type Player struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Position    Position `json:"position"`
	Score       int      `json:"score"`
	BombPower   int      `json:"bombPower"`
	BombCount   int      `json:"bombCount"` // max simultaneous bombs
	ActiveBombs int      `json:"activeBombs"`
	Alive       bool     `json:"alive"`
	SpriteIndex int      `json:"spriteIndex"` // stable slot assigned at spawn
	AuthID      int64    `json:"-"`           // 0 = guest
}

// NewPlayer creates a player at the given spawn slot with default stats.
func NewPlayer(id, name string, slot int) *Player {
	return &Player{
		ID:          id,
		Name:        name,
		Position:    Position{X: SpawnPoints[slot].X, Y: SpawnPoints[slot].Y},
		BombPower:   StartBombPower,
		BombCount:   StartBombCapacity,
		Alive:       true,
		SpriteIndex: slot + 1,
	}
}

// ApplyPowerup applies a picked-up powerup's stat effect.
func (p *Player) ApplyPowerup(kind string) {
	switch kind {
	case PowerupBombCount:
		p.BombCount++
	case PowerupBlastRadius:
		p.BombPower++
	}
}

// CanPlaceBomb reports whether the player is below their bomb capacity.
func (p *Player) CanPlaceBomb() bool {
	return p.ActiveBombs < p.BombCount
}

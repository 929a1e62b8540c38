package main

// Explosion segment kinds, used by clients to pick sprites.
const (
	SegmentCenter     = "center"
	SegmentHorizontal = "horizontal"
	SegmentVertical   = "vertical"
)

// ExplosionCell is one tile of a blast. Ephemeral: it exists only in the
// explosionUpdate broadcast, the server keeps nothing after resolution.
type ExplosionCell struct {
	ID      string `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Kind    string `json:"type"`
	OwnerID string `json:"ownerId"`
}

var blastDirections = []struct {
	dx, dy int
	kind   string
}{
	{0, -1, SegmentVertical},
	{0, 1, SegmentVertical},
	{-1, 0, SegmentHorizontal},
	{1, 0, SegmentHorizontal},
}

// resolveBombLocked turns one due bomb into an explosion: removes the
// bomb, walks the four blast arms, destroys rocks, drops powerups, marks
// eliminations and credits kills, then broadcasts the outcome and runs the
// win check. Caller holds g.mu.
func (g *Game) resolveBombLocked(bomb *Bomb) {
	for i, b := range g.bombs {
		if b == bomb {
			g.bombs = append(g.bombs[:i], g.bombs[i+1:]...)
			break
		}
	}
	bomb.disarm()

	// Owner may have quit; their bomb still explodes with base radius.
	owner := g.players[bomb.OwnerID]
	if owner != nil && owner.ActiveBombs > 0 {
		owner.ActiveBombs--
	}
	radius := StartBombPower
	if owner != nil {
		radius = owner.BombPower
	}

	cells := []ExplosionCell{{
		ID:      "explosion-" + GenerateID(6),
		X:       bomb.X,
		Y:       bomb.Y,
		Kind:    SegmentCenter,
		OwnerID: bomb.OwnerID,
	}}
	var destroyed []Position
	var killed []string

	// A player dies at most once per resolution, the Alive check makes
	// overlapping cells a no-op.
	killAt := func(x, y int) {
		for id, p := range g.players {
			if !p.Alive || p.Position.X != x || p.Position.Y != y {
				continue
			}
			p.Alive = false
			if owner != nil && id != bomb.OwnerID {
				owner.Score++
			}
			killed = append(killed, id)
		}
	}

	// The origin tile is always lethal, even when every arm stops at once.
	killAt(bomb.X, bomb.Y)

	for _, dir := range blastDirections {
		for i := 1; i <= radius; i++ {
			x := bomb.X + dir.dx*i
			y := bomb.Y + dir.dy*i

			if !g.grid.InBounds(x, y) {
				break
			}
			tile := g.grid.At(x, y)
			if tile.Kind == TileBlock {
				break
			}

			cells = append(cells, ExplosionCell{
				ID:      "explosion-" + GenerateID(6),
				X:       x,
				Y:       y,
				Kind:    dir.kind,
				OwnerID: bomb.OwnerID,
			})
			killAt(x, y)

			if tile.Kind == TileRock {
				tile.Destroy()
				destroyed = append(destroyed, Position{X: x, Y: y})
				if pu := rollPowerup(x, y); pu != nil {
					g.powerups = append(g.powerups, pu)
				}
				// A rock absorbs the blast: nothing propagates past it.
				break
			}
		}
	}

	g.broadcastLocked(Envelope{T: MsgExplosion, Data: ExplosionMsg{
		BombID:         bomb.ID,
		Explosions:     cells,
		DestroyedTiles: destroyed,
		UpdatedMap:     g.grid,
		Powerups:       g.powerups,
		KilledPlayers:  killed,
		OwnerID:        bomb.OwnerID,
	}})
	for _, id := range killed {
		g.broadcastLocked(Envelope{T: MsgPlayerKilled, Data: PlayerKilledMsg{
			PlayerID: id,
			KilledBy: bomb.OwnerID,
		}})
	}

	if len(killed) > 0 {
		g.checkWinLocked()
	}
}

package main

// MapSize is the fixed side length of the square game grid.
const MapSize = 19

// Tile kinds
const (
	TileEmpty = "empty"
	TileBlock = "block" // indestructible pillar
	TileRock  = "rock"  // destructible, may drop a powerup
)

// Tile is one cell of the game grid.
type Tile struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Kind     string `json:"type"`
	Walkable bool   `json:"walkable"`
}

// Grid is the full tile map, indexed [y][x].
type Grid [][]Tile

// SpawnPoints are the four corner tiles players start on, in roster order.
var SpawnPoints = [4]struct{ X, Y int }{
	{0, 0},
	{MapSize - 1, 0},
	{0, MapSize - 1},
	{MapSize - 1, MapSize - 1},
}

// GenerateMap builds the initial grid. Pillars sit at odd/odd coordinates,
// spawn-safety zones are forced empty, everything else is destructible rock.
func GenerateMap() Grid {
	grid := make(Grid, MapSize)
	for y := 0; y < MapSize; y++ {
		grid[y] = make([]Tile, MapSize)
		for x := 0; x < MapSize; x++ {
			tile := Tile{X: x, Y: y, Kind: TileRock}
			switch {
			case x%2 == 1 && y%2 == 1 && !inSpawnZone(x, y):
				tile.Kind = TileBlock
			case inSpawnZone(x, y):
				tile.Kind = TileEmpty
				tile.Walkable = true
			}
			grid[y][x] = tile
		}
	}
	return grid
}

// inSpawnZone reports whether (x, y) belongs to one of the four corner
// safety zones: the corner itself plus its two in-grid neighbors, so every
// spawning player has at least two escape tiles.
func inSpawnZone(x, y int) bool {
	last := MapSize - 1
	for _, sp := range SpawnPoints {
		dx := 1
		if sp.X == last {
			dx = -1
		}
		dy := 1
		if sp.Y == last {
			dy = -1
		}
		if (x == sp.X && y == sp.Y) ||
			(x == sp.X+dx && y == sp.Y) ||
			(x == sp.X && y == sp.Y+dy) {
			return true
		}
	}
	return false
}

// InBounds reports whether (x, y) lies on the grid.
func (g Grid) InBounds(x, y int) bool {
	return x >= 0 && x < MapSize && y >= 0 && y < MapSize
}

// At returns a pointer to the tile at (x, y). Caller must bounds-check.
func (g Grid) At(x, y int) *Tile {
	return &g[y][x]
}

// Destroy converts a rock tile to empty, making it walkable.
func (t *Tile) Destroy() {
	t.Kind = TileEmpty
	t.Walkable = true
}

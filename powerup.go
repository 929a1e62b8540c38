package main

// Powerup kinds
const (
	PowerupBombCount   = "bombCountUp"
	PowerupBlastRadius = "explosionRadiusUp"
)

// PowerupDropChance is the independent probability that a destroyed rock
// leaves a powerup behind.
const PowerupDropChance = 0.15

// Powerup is a pickup lying on the grid until a player walks over it.
type Powerup struct {
	ID   string `json:"id"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"type"`
}

// rollPowerup returns a new powerup at (x, y) with probability
// PowerupDropChance, otherwise nil. The kind is a uniform coin flip.
func rollPowerup(x, y int) *Powerup {
	if randFloat() >= PowerupDropChance {
		return nil
	}
	kind := PowerupBombCount
	if randFloat() < 0.5 {
		kind = PowerupBlastRadius
	}
	return &Powerup{
		ID:   "powerup-" + GenerateID(6),
		X:    x,
		Y:    y,
		Kind: kind,
	}
}

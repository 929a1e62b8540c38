package main

import "time"

// BombTimer is the ticking duration a bomb experiences before exploding.
// A package var so tests can shorten it.
var BombTimer = 2000 * time.Millisecond

// Bomb states
const (
	BombTicking = "ticking"
)

// Bomb is a placed, not-yet-exploded bomb. Timestamps are unix
// milliseconds on the wire. RemainingMs is meaningful only while the room
// is paused; the deadline is re-derived from it on resume so total ticking
// time always equals BombTimer.
type Bomb struct {
	ID          string `json:"id"`
	OwnerID     string `json:"ownerId"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	State       string `json:"state"`
	CreatedAt   int64  `json:"createdAt"`
	ExplodeAt   int64  `json:"explodeAt"`
	RemainingMs int64  `json:"remainingTime,omitempty"`

	timer *time.Timer // deadline callback handle, nil while paused
}

// NewBomb creates a ticking bomb owned by the given player.
func NewBomb(ownerID string, x, y int) *Bomb {
	now := time.Now()
	return &Bomb{
		ID:        "bomb-" + GenerateID(6),
		OwnerID:   ownerID,
		X:         x,
		Y:         y,
		State:     BombTicking,
		CreatedAt: now.UnixMilli(),
		ExplodeAt: now.Add(BombTimer).UnixMilli(),
	}
}

// arm schedules fn to run after d. Any previous deadline is cancelled.
func (b *Bomb) arm(d time.Duration, fn func()) {
	b.disarm()
	b.timer = time.AfterFunc(d, fn)
}

// disarm cancels the pending deadline callback, if any.
func (b *Bomb) disarm() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// capture freezes the bomb's remaining ticking time and goes dormant.
func (b *Bomb) capture(now time.Time) {
	b.RemainingMs = b.ExplodeAt - now.UnixMilli()
	b.disarm()
}

// release restores the deadline from the captured remaining time and
// returns the duration left. A non-positive result means the bomb is
// already due and must be resolved by the caller's sweep.
func (b *Bomb) release(now time.Time) time.Duration {
	rem := time.Duration(b.RemainingMs) * time.Millisecond
	b.ExplodeAt = now.Add(rem).UnixMilli()
	b.RemainingMs = 0
	return rem
}

// due reports whether the bomb's deadline has elapsed.
func (b *Bomb) due(now time.Time) bool {
	return b.ExplodeAt <= now.UnixMilli()
}

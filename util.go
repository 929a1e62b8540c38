package main

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// GenerateID returns a random hex string of the given byte length
func GenerateID(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// randFloat returns a pseudo-random float64 in [0, 1).
// Xorshift, seeded once from crypto/rand. The state is shared by every
// room, so it takes a lock.
var (
	randMu  sync.Mutex
	randSrc uint64
)

func randFloat() float64 {
	randMu.Lock()
	defer randMu.Unlock()
	randSrc ^= randSrc << 13
	randSrc ^= randSrc >> 7
	randSrc ^= randSrc << 17
	if randSrc == 0 {
		randSrc = 1
	}
	return float64(randSrc%100000) / 100000.0
}

func init() {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	for i, v := range b {
		randSrc |= uint64(v) << (uint(i) * 8)
	}
	if randSrc == 0 {
		randSrc = 1
	}
}

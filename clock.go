package main

import (
	"math/rand"
	"sync"
	"time"
)

// Clock and Randomness are the two external ports the engine reads. The
// engine never owns them: production wires the system implementations below,
// tests wire fixed or scripted ones. Both are pure calls and are never
// invoked while an object lock is held by someone else.

type Clock interface {
	NowMs() int64
}

// Randomness returns a uniform draw in [0, n). n must be > 0.
type Randomness interface {
	Intn(n int) int
}

type systemClock struct{}

func (systemClock) NowMs() int64 { return time.Now().UnixMilli() }

type systemRandomness struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSystemRandomness() *systemRandomness {
	return &systemRandomness{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// seededRandomness is the deterministic variant used by the simulator.
func seededRandomness(seed int64) *systemRandomness {
	return &systemRandomness{rng: rand.New(rand.NewSource(seed))}
}

func (r *systemRandomness) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

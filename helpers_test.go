package main

// Shared test doubles. The engine takes Clock and Randomness as ports, so
// tests script both: fakeClock only moves when advanced, scriptedRandomness
// replays a fixed sequence of draws and clamps each one into range.

type fakeClock struct {
	ms int64
}

func (c *fakeClock) NowMs() int64 { return c.ms }

func (c *fakeClock) advance(deltaMs int64) { c.ms += deltaMs }

type scriptedRandomness struct {
	draws []int
}

func (r *scriptedRandomness) Intn(n int) int {
	if len(r.draws) == 0 {
		return 0
	}
	d := r.draws[0]
	r.draws = r.draws[1:]
	if d >= n {
		d = n - 1
	}
	return d
}

func newTestHub(clk Clock, rnd Randomness) (*Hub, *CapabilityAuthority, *EventLog) {
	auth := NewCapabilityAuthority([]byte("test-secret"))
	events := NewEventLog()
	hub := NewHub(clk, rnd, auth, events, nil, GameTuning{}, HubConfig{})
	return hub, auth, events
}

// activeRoom returns a room with every player escrowed and the lobby locked.
func activeRoom(players []string, entryFee uint64) *Room {
	room := newRoom("room-1", players[0], entryFee, len(players))
	for _, p := range players {
		if err := room.Join(p); err != nil {
			panic(err)
		}
	}
	for _, p := range players {
		if err := room.ReadyToPlay(p, entryFee); err != nil {
			panic(err)
		}
	}
	if err := room.Start(); err != nil {
		panic(err)
	}
	return room
}

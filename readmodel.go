package main

import (
	"sync"
)

// ReadModel is the query-side projection of rooms and games, updated from
// the event log rather than inline with writes. Readers get the same
// contract an external indexer would give them: a freshly
// committed write may not be visible yet, and such lookups come back as
// STALE_REFERENCE — retry after a delay, it is not a failure. The state
// machines themselves are always consistent; only this view lags.

type ReadModel struct {
	hub *Hub

	mu    sync.RWMutex
	seq   uint64
	rooms map[string]RoomView
	games map[string]GameView
}

func NewReadModel(hub *Hub) *ReadModel {
	return &ReadModel{
		hub:   hub,
		rooms: make(map[string]RoomView),
		games: make(map[string]GameView),
	}
}

// Run follows the event log until the channel closes. main runs this in its
// own goroutine; tests drive apply directly via CatchUp.
func (rm *ReadModel) Run(events <-chan Event) {
	for ev := range events {
		rm.apply(ev)
	}
}

// CatchUp replays everything the projector has not seen yet.
func (rm *ReadModel) CatchUp(log *EventLog) {
	rm.mu.RLock()
	seq := rm.seq
	rm.mu.RUnlock()
	for _, ev := range log.Since(seq) {
		rm.apply(ev)
	}
}

func (rm *ReadModel) apply(ev Event) {
	var roomView *RoomView
	var gameView *GameView

	if ev.RoomID != "" {
		if room, err := rm.hub.Room(ev.RoomID); err == nil {
			v := room.View()
			roomView = &v
		}
	}
	if ev.GameID != "" {
		if game, err := rm.hub.Game(ev.GameID); err == nil {
			v := game.View()
			gameView = &v
		}
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ev.Seq > rm.seq {
		rm.seq = ev.Seq
	}
	if roomView != nil {
		rm.rooms[roomView.ID] = *roomView
	} else if ev.RoomID != "" && !rm.hub.hasRoom(ev.RoomID) {
		delete(rm.rooms, ev.RoomID)
	}
	if gameView != nil {
		rm.games[gameView.ID] = *gameView
	} else if ev.GameID != "" && !rm.hub.hasGame(ev.GameID) {
		delete(rm.games, ev.GameID)
	}
}

func (rm *ReadModel) RoomView(id string) (RoomView, error) {
	rm.mu.RLock()
	view, ok := rm.rooms[id]
	rm.mu.RUnlock()
	if ok {
		return view, nil
	}
	if rm.hub.hasRoom(id) {
		return RoomView{}, errStaleReference
	}
	return RoomView{}, errNotFound
}

func (rm *ReadModel) GameView(id string) (GameView, error) {
	rm.mu.RLock()
	view, ok := rm.games[id]
	rm.mu.RUnlock()
	if ok {
		return view, nil
	}
	if rm.hub.hasGame(id) {
		return GameView{}, errStaleReference
	}
	return GameView{}, errNotFound
}

func (rm *ReadModel) Rooms() []RoomView {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]RoomView, 0, len(rm.rooms))
	for _, v := range rm.rooms {
		out = append(out, v)
	}
	return out
}

func (rm *ReadModel) Games() []GameView {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]GameView, 0, len(rm.games))
	for _, v := range rm.games {
		out = append(out, v)
	}
	return out
}

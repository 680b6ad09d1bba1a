package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Append-only event log. Observers (SSE clients, the websocket feed, the
// read model projector, the audit store) consume it; the core never reads
// its own events back.

const (
	EventRoomAndGameCreated = "room_and_game_created"
	EventPlayerJoined       = "player_joined"
	EventPlayerReady        = "player_ready"
	EventPlayerLeft         = "player_left"
	EventRoomStarted        = "room_started"
	EventRoundStarted       = "round_started"
	EventBombPassed         = "bomb_passed"
	EventExploded           = "exploded"
	EventVictory            = "victory"
	EventRoundSettled       = "round_settled"
	EventRewardClaimed      = "reward_claimed"
	EventRoomReset          = "room_reset"
	EventGameReset          = "game_reset"
	EventGameRegistered     = "game_registered"
	EventConfigUpdated      = "config_updated"
)

type Event struct {
	ID     string                 `json:"id"`
	Seq    uint64                 `json:"seq"`
	Type   string                 `json:"type"`
	RoomID string                 `json:"roomId,omitempty"`
	GameID string                 `json:"gameId,omitempty"`
	At     time.Time              `json:"at"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

type EventLog struct {
	mu     sync.Mutex
	seq    uint64
	events []Event
	subs   map[chan Event]struct{}
}

func NewEventLog() *EventLog {
	return &EventLog{subs: make(map[chan Event]struct{})}
}

func (l *EventLog) Append(eventType, roomID, gameID string, data map[string]interface{}) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	ev := Event{
		ID:     uuid.NewString(),
		Seq:    l.seq,
		Type:   eventType,
		RoomID: roomID,
		GameID: gameID,
		At:     time.Now().UTC(),
		Data:   data,
	}
	l.events = append(l.events, ev)

	for ch := range l.subs {
		select {
		case ch <- ev:
		default:
			// slow consumer; it resyncs from Since
		}
	}
	return ev
}

// Since returns events with Seq > after, oldest first.
func (l *EventLog) Since(after uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0)
	for _, ev := range l.events {
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	return out
}

func (l *EventLog) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
	}
	return ch, cancel
}

// eventsHandler streams the log over SSE: replays history, then follows live
// appends, with keepalives so proxies don't drop the stream.
func eventsHandler(log *EventLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		sendEvent := func(ev Event) bool {
			payload, err := json.Marshal(ev)
			if err != nil {
				return false
			}
			if _, err := w.Write([]byte("event: " + ev.Type + "\n")); err != nil {
				return false
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return false
			}
			if _, err := w.Write(payload); err != nil {
				return false
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return false
			}
			flusher.Flush()
			return true
		}

		var last uint64
		for _, ev := range log.Since(0) {
			if !sendEvent(ev) {
				return
			}
			last = ev.Seq
		}

		live, cancel := log.Subscribe()
		defer cancel()

		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-live:
				if ev.Seq <= last {
					continue
				}
				if ev.Seq > last+1 {
					// dropped while slow; replay the gap
					for _, missed := range log.Since(last) {
						if !sendEvent(missed) {
							return
						}
						last = missed.Seq
					}
					continue
				}
				if !sendEvent(ev) {
					return
				}
				last = ev.Seq
			case <-ticker.C:
				if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

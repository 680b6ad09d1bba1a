package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket event feed: same stream as /api/events, for clients that prefer
// a socket over SSE. Read side only drains control frames.

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

func wsHandler(events *EventLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("ws upgrade failed:", err)
			return
		}

		live, cancel := events.Subscribe()
		defer cancel()
		defer conn.Close()

		// drain incoming frames so pong handling and close frames work
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func(ev Event) bool {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteJSON(ev) == nil
		}

		var last uint64
		for _, ev := range events.Since(0) {
			if !send(ev) {
				return
			}
			last = ev.Seq
		}

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case ev := <-live:
				if ev.Seq <= last {
					continue
				}
				if ev.Seq > last+1 {
					for _, missed := range events.Since(last) {
						if !send(missed) {
							return
						}
						last = missed.Seq
					}
					continue
				}
				if !send(ev) {
					return
				}
				last = ev.Seq
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("config:", err)
	}

	var db *sql.DB
	if cfg.PostgresURL != "" {
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Fatal("db open:", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := db.PingContext(ctx); err != nil {
			cancel()
			log.Fatal("db ping:", err)
		}

		lockConn, acquired, err := acquireStartupLock(ctx, db)
		if err != nil {
			cancel()
			log.Fatal("startup lock:", err)
		}
		if acquired {
			if err := ensureSchema(ctx, db); err != nil {
				cancel()
				log.Fatal("ensure schema:", err)
			}
			defer lockConn.Close()
		} else {
			log.Println("startup lock held elsewhere, skipping schema migration")
		}
		cancel()
	} else {
		log.Println("POSTGRES_URL not set, running without persistence")
	}

	auth := NewCapabilityAuthority([]byte(cfg.CapSecret))
	events := NewEventLog()
	store := NewStore(db)

	// operator settings persisted through UpdateConfig win over env defaults
	hubConfig := cfg.hubConfig()
	if stored, ok := store.LoadHubConfig(); ok {
		hubConfig = stored
	}
	hub := NewHub(systemClock{}, newSystemRandomness(), auth, events, store, cfg.tuning(), hubConfig)

	// Boot-time operator credential. Anyone running the server is its
	// operator; the token is printed once and never stored.
	adminCap, err := auth.IssueAdminCap()
	if err != nil {
		log.Fatal("issue admin cap:", err)
	}
	log.Println("admin capability:", adminCap.Token)

	readModel := NewReadModel(hub)
	projection, cancelProjection := events.Subscribe()
	defer cancelProjection()
	go readModel.Run(projection)

	// The in-process permissionless poller. External callers can hit
	// /api/games/try_explode with the same effect.
	go func() {
		ticker := time.NewTicker(cfg.ExplodePollInterval)
		defer ticker.Stop()
		for range ticker.C {
			hub.PollExplosions()
		}
	}()

	if db != nil {
		go func() {
			ticker := time.NewTicker(cfg.SnapshotInterval)
			defer ticker.Stop()
			for range ticker.C {
				hub.PersistAll()
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)

	mux.HandleFunc("/api/rooms", roomsHandler(readModel))
	mux.HandleFunc("/api/rooms/create", createRoomHandler(hub))
	mux.HandleFunc("/api/rooms/join", joinRoomHandler(hub))
	mux.HandleFunc("/api/rooms/ready", readyToPlayHandler(hub))
	mux.HandleFunc("/api/rooms/leave", leaveRoomHandler(hub))
	mux.HandleFunc("/api/rooms/claim", claimHandler(hub))

	mux.HandleFunc("/api/games", gamesHandler(readModel))
	mux.HandleFunc("/api/games/join", joinGameHandler(hub))
	mux.HandleFunc("/api/games/leave", leaveGameHandler(hub))
	mux.HandleFunc("/api/games/start_round", startRoundHandler(hub))
	mux.HandleFunc("/api/games/pass_bomb", passBombHandler(hub))
	mux.HandleFunc("/api/games/try_explode", tryExplodeHandler(hub))
	mux.HandleFunc("/api/games/reset", resetGameHandler(hub))
	mux.HandleFunc("/api/games/settle", settleRoundHandler(hub))

	mux.HandleFunc("/api/admin/register_game", registerGameHandler(hub))
	mux.HandleFunc("/api/admin/config", updateConfigHandler(hub))
	mux.HandleFunc("/api/admin/configure_game", configureGameHandler(hub))
	mux.HandleFunc("/api/admin/start_room", startRoomHandler(hub))
	mux.HandleFunc("/api/admin/start_round_with_hub", startRoomAndRoundHandler(hub))
	mux.HandleFunc("/api/admin/reset_room", resetRoomHandler(hub))
	mux.HandleFunc("/api/admin/delete_room", deleteRoomHandler(hub))
	mux.HandleFunc("/api/admin/delete_game", deleteGameHandler(hub))
	mux.HandleFunc("/api/admin/revoke_cap", revokeCapHandler(hub))
	mux.HandleFunc("/api/admin/simulate", simulateHandler(hub))

	mux.HandleFunc("/api/events", eventsHandler(events))
	mux.HandleFunc("/ws", wsHandler(events))

	log.Println("bomb panic hub listening on", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatal(err)
	}
}

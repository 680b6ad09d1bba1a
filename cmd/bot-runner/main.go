package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Soak driver: spins up a lobby of bots against a running hub and plays
// full rounds over the public HTTP API, including the permissionless
// try_explode polling and the retry-on-stale read loop real clients need.

type runnerConfig struct {
	ServerURL string
	AdminCap  string
	Bots      int
	Rounds    int
	EntryFee  uint64
	PollMs    int
}

func loadRunnerConfig() runnerConfig {
	cfg := runnerConfig{
		ServerURL: "http://localhost:8080",
		Bots:      4,
		Rounds:    3,
		EntryFee:  100,
		PollMs:    300,
	}
	if v := os.Getenv("SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	cfg.AdminCap = os.Getenv("ADMIN_CAP")
	if v, err := strconv.Atoi(os.Getenv("BOT_COUNT")); err == nil && v >= 2 {
		cfg.Bots = v
	}
	if v, err := strconv.Atoi(os.Getenv("ROUNDS")); err == nil && v > 0 {
		cfg.Rounds = v
	}
	if v, err := strconv.ParseUint(os.Getenv("ENTRY_FEE"), 10, 64); err == nil && v > 0 {
		cfg.EntryFee = v
	}
	return cfg
}

var client = &http.Client{Timeout: 10 * time.Second}

func postJSON(url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

type simpleResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type gameView struct {
	GameID     string   `json:"gameId"`
	RoomID     string   `json:"roomId"`
	Phase      string   `json:"phase"`
	RoundID    uint64   `json:"roundId"`
	Players    []string `json:"players"`
	BombHolder string   `json:"bombHolder"`
}

// fetchGame retries on stale-reference responses: the read model lags
// writes, so wait and ask again.
func fetchGame(base, gameID string) (gameView, error) {
	var view gameView
	for attempt := 0; attempt < 10; attempt++ {
		resp, err := client.Get(base + "/api/games?gameId=" + gameID)
		if err != nil {
			return view, err
		}
		if resp.StatusCode == http.StatusOK {
			err = json.NewDecoder(resp.Body).Decode(&view)
			resp.Body.Close()
			return view, err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			return view, fmt.Errorf("game fetch failed: %s", resp.Status)
		}
		time.Sleep(500 * time.Millisecond)
	}
	return view, fmt.Errorf("game %s still stale after retries", gameID)
}

func main() {
	cfg := loadRunnerConfig()
	if cfg.AdminCap == "" {
		log.Fatal("ADMIN_CAP is required (printed by the server on boot)")
	}

	var reg struct {
		OK         bool   `json:"ok"`
		Error      string `json:"error,omitempty"`
		RegistryID string `json:"registryId"`
		GameCap    struct {
			Token string `json:"token"`
		} `json:"gameCap"`
	}
	err := postJSON(cfg.ServerURL+"/api/admin/register_game", map[string]interface{}{
		"cap":  cfg.AdminCap,
		"name": "bomb-panic-soak",
	}, &reg)
	if err != nil || !reg.OK {
		log.Fatalf("register game failed: %v %s", err, reg.Error)
	}

	var created struct {
		OK     bool   `json:"ok"`
		Error  string `json:"error,omitempty"`
		RoomID string `json:"roomId"`
		GameID string `json:"gameId"`
	}
	err = postJSON(cfg.ServerURL+"/api/rooms/create", map[string]interface{}{
		"registryId": reg.RegistryID,
		"creator":    "bot-1",
		"name":       "soak room",
		"entryFee":   cfg.EntryFee,
		"maxPlayers": cfg.Bots,
	}, &created)
	if err != nil || !created.OK {
		log.Fatalf("create room failed: %v %s", err, created.Error)
	}
	log.Println("room:", created.RoomID, "game:", created.GameID)

	bots := make([]string, cfg.Bots)
	for i := range bots {
		bots[i] = fmt.Sprintf("bot-%d", i+1)
	}

	for round := 0; round < cfg.Rounds; round++ {
		for _, bot := range bots {
			var resp simpleResponse
			postJSON(cfg.ServerURL+"/api/rooms/join", map[string]interface{}{
				"roomId": created.RoomID, "playerId": bot,
			}, &resp)
			postJSON(cfg.ServerURL+"/api/games/join", map[string]interface{}{
				"gameId": created.GameID, "playerId": bot,
			}, &resp)
			if err := postJSON(cfg.ServerURL+"/api/rooms/ready", map[string]interface{}{
				"roomId": created.RoomID, "playerId": bot, "payment": cfg.EntryFee,
			}, &resp); err != nil || !resp.OK {
				log.Fatalf("%s ready failed: %v %s", bot, err, resp.Error)
			}
		}

		var started struct {
			OK    bool   `json:"ok"`
			Error string `json:"error,omitempty"`
			Round struct {
				BombHolder  string `json:"bombHolder"`
				ExplodeAtMs int64  `json:"explodeAtMs"`
			} `json:"round"`
		}
		err = postJSON(cfg.ServerURL+"/api/admin/start_round_with_hub", map[string]interface{}{
			"cap": cfg.AdminCap, "gameId": created.GameID,
		}, &started)
		if err != nil || !started.OK {
			log.Fatalf("start round failed: %v %s", err, started.Error)
		}
		log.Printf("round %d started, holder %s", round+1, started.Round.BombHolder)

		for {
			view, err := fetchGame(cfg.ServerURL, created.GameID)
			if err != nil {
				log.Fatal(err)
			}
			if view.Phase != "playing" {
				break
			}

			if view.BombHolder != "" && rand.Intn(100) < 35 {
				var pass struct {
					OK       bool `json:"ok"`
					Exploded *struct {
						DeadPlayer string `json:"deadPlayer"`
					} `json:"exploded,omitempty"`
				}
				postJSON(cfg.ServerURL+"/api/games/pass_bomb", map[string]interface{}{
					"gameId": created.GameID, "playerId": view.BombHolder,
				}, &pass)
				if pass.Exploded != nil {
					log.Println("boom (late pass):", pass.Exploded.DeadPlayer)
				}
			}

			var explode struct {
				OK       bool `json:"ok"`
				Exploded *struct {
					DeadPlayer string `json:"deadPlayer"`
					Survivor   string `json:"survivor,omitempty"`
				} `json:"exploded,omitempty"`
			}
			postJSON(cfg.ServerURL+"/api/games/try_explode", map[string]interface{}{
				"gameId": created.GameID,
			}, &explode)
			if explode.Exploded != nil {
				log.Println("boom:", explode.Exploded.DeadPlayer)
			}

			time.Sleep(time.Duration(cfg.PollMs) * time.Millisecond)
		}

		var settled struct {
			OK     bool   `json:"ok"`
			Error  string `json:"error,omitempty"`
			Intent struct {
				Survivors          []string `json:"survivors"`
				SurvivorPayoutEach uint64   `json:"survivorPayoutEach"`
			} `json:"intent"`
		}
		err = postJSON(cfg.ServerURL+"/api/games/settle", map[string]interface{}{
			"cap": reg.GameCap.Token, "gameId": created.GameID,
		}, &settled)
		if err != nil || !settled.OK {
			log.Fatalf("settle failed: %v %s", err, settled.Error)
		}
		log.Printf("settled: survivors=%v payout=%d", settled.Intent.Survivors, settled.Intent.SurvivorPayoutEach)

		for _, bot := range bots {
			var claim struct {
				OK     bool   `json:"ok"`
				Amount uint64 `json:"amount"`
			}
			postJSON(cfg.ServerURL+"/api/rooms/claim", map[string]interface{}{
				"roomId": created.RoomID, "playerId": bot,
			}, &claim)
			if claim.OK && claim.Amount > 0 {
				log.Printf("%s claimed %d", bot, claim.Amount)
			}
		}

		var reset simpleResponse
		if err := postJSON(cfg.ServerURL+"/api/games/reset", map[string]interface{}{
			"gameId": created.GameID,
		}, &reset); err != nil || !reset.OK {
			log.Fatalf("game reset failed: %v %s", err, reset.Error)
		}
		if err := postJSON(cfg.ServerURL+"/api/admin/reset_room", map[string]interface{}{
			"cap": reg.GameCap.Token, "roomId": created.RoomID,
		}, &reset); err != nil || !reset.OK {
			log.Fatalf("room reset failed: %v %s", err, reset.Error)
		}
	}

	log.Println("soak complete")
}

package main

import (
	"net/http"
)

// Capability-gated surface. Callers present the token in the request body as
// a call argument rather than in a header.

type RegisterGameRequest struct {
	Cap  string `json:"cap"`
	Name string `json:"name"`
}

type RegisterGameResponse struct {
	OK         bool       `json:"ok"`
	Error      string     `json:"error,omitempty"`
	RegistryID string     `json:"registryId,omitempty"`
	GameCap    Capability `json:"gameCap,omitempty"`
}

func registerGameHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterGameRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			respondJSON(w, http.StatusBadRequest, SimpleResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}
		reg, gameCap, err := hub.RegisterGame(req.Cap, req.Name)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, RegisterGameResponse{OK: true, RegistryID: reg.ID, GameCap: gameCap})
	}
}

type UpdateConfigRequest struct {
	Cap             string `json:"cap"`
	RoomCreationFee uint64 `json:"roomCreationFee"`
	FeeCollector    string `json:"feeCollector"`
}

func updateConfigHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateConfigRequest
		if !decodeBody(w, r, &req) {
			return
		}
		err := hub.UpdateConfig(req.Cap, HubConfig{
			RoomCreationFee: req.RoomCreationFee,
			FeeCollector:    req.FeeCollector,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

type ConfigureGameRequest struct {
	Cap              string `json:"cap"`
	GameID           string `json:"gameId"`
	MaxHoldTimeMs    int64  `json:"maxHoldTimeMs"`
	ExplosionRateBps uint64 `json:"explosionRateBps"`
	RewardDivisor    uint64 `json:"rewardDivisor"`
	DangerZoneBps    uint64 `json:"dangerZoneBps"`
}

func configureGameHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConfigureGameRequest
		if !decodeBody(w, r, &req) {
			return
		}
		err := hub.ConfigureGame(req.GameID, req.Cap, GameTuning{
			MaxHoldTimeMs:    req.MaxHoldTimeMs,
			ExplosionRateBps: req.ExplosionRateBps,
			RewardDivisor:    req.RewardDivisor,
			DangerZoneBps:    req.DangerZoneBps,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

type CapRoomRequest struct {
	Cap    string `json:"cap"`
	RoomID string `json:"roomId"`
}

func startRoomHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CapRoomRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.StartRoom(req.RoomID, req.Cap); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

type CapGameRequest struct {
	Cap    string `json:"cap"`
	GameID string `json:"gameId"`
}

func startRoomAndRoundHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CapGameRequest
		if !decodeBody(w, r, &req) {
			return
		}
		started, err := hub.StartRoomAndRound(req.GameID, req.Cap)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, StartRoundResponse{OK: true, Round: started})
	}
}

type SettleRoundResponse struct {
	OK     bool              `json:"ok"`
	Error  string            `json:"error,omitempty"`
	Intent *SettlementIntent `json:"intent,omitempty"`
}

// settleRoundHandler is the GameCap-holder's entry point: consume the
// round's settlement intent and apply it to the room, exactly once.
func settleRoundHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CapGameRequest
		if !decodeBody(w, r, &req) {
			return
		}
		intent, err := hub.SettleRound(req.GameID, req.Cap)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SettleRoundResponse{OK: true, Intent: intent})
	}
}

func resetRoomHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CapRoomRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.ResetRoom(req.RoomID, req.Cap); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

func deleteRoomHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CapRoomRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.DeleteRoom(req.RoomID, req.Cap); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

func deleteGameHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CapGameRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.DeleteGame(req.GameID, req.Cap); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

type RevokeCapRequest struct {
	Cap   string `json:"cap"`
	CapID string `json:"capId"`
}

func revokeCapHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RevokeCapRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.caps.VerifyAdmin(req.Cap); err != nil {
			respondError(w, err)
			return
		}
		hub.caps.Revoke(req.CapID)
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

type SimulateRequest struct {
	Cap        string `json:"cap"`
	Seed       int64  `json:"seed"`
	Players    int    `json:"players"`
	Rounds     int    `json:"rounds"`
	EntryFee   uint64 `json:"entryFee"`
	TickMs     int64  `json:"tickMs"`
	PassChance int    `json:"passChance"`
}

type SimulateResponse struct {
	OK     bool             `json:"ok"`
	Error  string           `json:"error,omitempty"`
	Report SimulationReport `json:"report"`
}

func simulateHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SimulateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.caps.VerifyAdmin(req.Cap); err != nil {
			respondError(w, err)
			return
		}
		report, err := RunRoundSimulation(SimulationParams{
			Seed:       req.Seed,
			Players:    req.Players,
			Rounds:     req.Rounds,
			EntryFee:   req.EntryFee,
			TickMs:     req.TickMs,
			PassChance: req.PassChance,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimulateResponse{OK: true, Report: report})
	}
}

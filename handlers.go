package main

import (
	"encoding/json"
	"errors"
	"net/http"
)

type SimpleResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, httpStatusFor(err), SimpleResponse{
		OK:        false,
		Error:     errorCode(err),
		Retryable: errors.Is(err, errStaleReference),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, SimpleResponse{OK: false, Error: "INVALID_REQUEST"})
		return false
	}
	return true
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type CreateRoomRequest struct {
	RegistryID  string `json:"registryId"`
	Creator     string `json:"creator"`
	Name        string `json:"name"`
	EntryFee    uint64 `json:"entryFee"`
	MaxPlayers  int    `json:"maxPlayers"`
	CreationFee uint64 `json:"creationFee"`
}

type CreateRoomResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	RoomID string `json:"roomId,omitempty"`
	GameID string `json:"gameId,omitempty"`
}

func createRoomHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Creator == "" || req.Name == "" {
			respondJSON(w, http.StatusBadRequest, SimpleResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}
		room, game, err := hub.CreateRoomWithGame(req.RegistryID, req.Creator, req.Name, req.EntryFee, req.MaxPlayers, req.CreationFee)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, CreateRoomResponse{OK: true, RoomID: room.ID, GameID: game.ID})
	}
}

type RoomActionRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Payment  uint64 `json:"payment,omitempty"`
}

func joinRoomHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RoomActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.JoinRoom(req.RoomID, req.PlayerID); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

func readyToPlayHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RoomActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.ReadyToPlay(req.RoomID, req.PlayerID, req.Payment); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

type LeaveRoomResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Refund uint64 `json:"refund"`
}

func leaveRoomHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RoomActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		refund, err := hub.LeaveRoom(req.RoomID, req.PlayerID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, LeaveRoomResponse{OK: true, Refund: refund})
	}
}

type ClaimResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Amount uint64 `json:"amount"`
}

func claimHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RoomActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		amount, err := hub.ClaimReward(req.RoomID, req.PlayerID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ClaimResponse{OK: true, Amount: amount})
	}
}

type GameActionRequest struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId,omitempty"`
}

func joinGameHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GameActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.JoinGame(req.GameID, req.PlayerID); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

func leaveGameHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GameActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.LeaveGame(req.GameID, req.PlayerID); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

type StartRoundResponse struct {
	OK    bool         `json:"ok"`
	Error string       `json:"error,omitempty"`
	Round RoundStarted `json:"round"`
}

func startRoundHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GameActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		started, err := hub.StartRound(req.GameID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, StartRoundResponse{OK: true, Round: started})
	}
}

type PassBombResponse struct {
	OK       bool            `json:"ok"`
	Error    string          `json:"error,omitempty"`
	Passed   *BombPassed     `json:"passed,omitempty"`
	Exploded *ExplodeOutcome `json:"exploded,omitempty"`
}

func passBombHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GameActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		passed, exploded, err := hub.PassBomb(req.GameID, req.PlayerID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, PassBombResponse{OK: true, Passed: passed, Exploded: exploded})
	}
}

type TryExplodeResponse struct {
	OK       bool            `json:"ok"`
	Error    string          `json:"error,omitempty"`
	Exploded *ExplodeOutcome `json:"exploded,omitempty"`
}

// try_explode is permissionless: anyone may poll, a miss is ok with no
// exploded payload.
func tryExplodeHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GameActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		outcome, err := hub.TryExplode(req.GameID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, TryExplodeResponse{OK: true, Exploded: outcome})
	}
}

func resetGameHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GameActionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.ResetGame(req.GameID); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, SimpleResponse{OK: true})
	}
}

// Read endpoints are served from the projection, not the live objects, so
// they carry the documented staleness contract.
func roomsHandler(rm *ReadModel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		roomID := r.URL.Query().Get("roomId")
		if roomID == "" {
			respondJSON(w, http.StatusOK, rm.Rooms())
			return
		}
		view, err := rm.RoomView(roomID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}

func gamesHandler(rm *ReadModel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gameID := r.URL.Query().Get("gameId")
		if gameID == "" {
			respondJSON(w, http.StatusOK, rm.Games())
			return
		}
		view, err := rm.GameView(gameID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}

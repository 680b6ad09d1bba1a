package main

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Hub owns the live Room and GameState objects. Each object serializes its
// own operations behind its mutex; the hub maps only guard the id lookup, so
// distinct rooms and games run fully concurrently.

type RegisteredGame struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	CapID string `json:"capId"`
}

type HubConfig struct {
	RoomCreationFee uint64 `json:"roomCreationFee"`
	FeeCollector    string `json:"feeCollector"`
}

type Hub struct {
	clock  Clock
	rand   Randomness
	caps   *CapabilityAuthority
	events *EventLog
	store  *Store

	defaults GameTuning

	mu            sync.RWMutex
	rooms         map[string]*Room
	games         map[string]*GameState
	roomToGame    map[string]string
	registry      map[string]*RegisteredGame
	config        HubConfig
	collectedFees uint64
}

func NewHub(clock Clock, rand Randomness, caps *CapabilityAuthority, events *EventLog, store *Store, defaults GameTuning, config HubConfig) *Hub {
	return &Hub{
		clock:      clock,
		rand:       rand,
		caps:       caps,
		events:     events,
		store:      store,
		defaults:   defaults.normalized(),
		rooms:      make(map[string]*Room),
		games:      make(map[string]*GameState),
		roomToGame: make(map[string]string),
		registry:   make(map[string]*RegisteredGame),
		config:     config,
	}
}

func (h *Hub) publish(eventType, roomID, gameID string, data map[string]interface{}) {
	ev := h.events.Append(eventType, roomID, gameID, data)
	h.store.AppendEvent(ev)
}

func (h *Hub) persistRoom(r *Room) { h.store.SaveRoomSnapshot(r.View()) }
func (h *Hub) persistGame(g *GameState) { h.store.SaveGameSnapshot(g.View()) }

func (h *Hub) Room(id string) (*Room, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	if !ok {
		return nil, errNotFound
	}
	return r, nil
}

func (h *Hub) Game(id string) (*GameState, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	g, ok := h.games[id]
	if !ok {
		return nil, errNotFound
	}
	return g, nil
}

func (h *Hub) hasRoom(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[id]
	return ok
}

func (h *Hub) hasGame(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.games[id]
	return ok
}

func (h *Hub) gameForRoom(roomID string) (*GameState, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	gameID, ok := h.roomToGame[roomID]
	if !ok {
		return nil, errNotFound
	}
	g, ok := h.games[gameID]
	if !ok {
		return nil, errNotFound
	}
	return g, nil
}

// RegisterGame enrolls a game with the hub and mints its settlement
// capability. Only an operator may register.
func (h *Hub) RegisterGame(adminToken, name string) (*RegisteredGame, Capability, error) {
	if err := h.caps.VerifyAdmin(adminToken); err != nil {
		return nil, Capability{}, err
	}

	id := uuid.NewString()
	gameCap, err := h.caps.IssueGameCap(id)
	if err != nil {
		return nil, Capability{}, err
	}

	reg := &RegisteredGame{ID: id, Name: name, CapID: gameCap.ID}
	h.mu.Lock()
	h.registry[id] = reg
	h.mu.Unlock()

	h.publish(EventGameRegistered, "", "", map[string]interface{}{
		"registryId": id,
		"name":       name,
	})
	return reg, gameCap, nil
}

func (h *Hub) RegisteredGames() []RegisteredGame {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RegisteredGame, 0, len(h.registry))
	for _, reg := range h.registry {
		out = append(out, *reg)
	}
	return out
}

// UpdateConfig adjusts hub-level fees. Admin only.
func (h *Hub) UpdateConfig(adminToken string, config HubConfig) error {
	if err := h.caps.VerifyAdmin(adminToken); err != nil {
		return err
	}
	h.mu.Lock()
	h.config = config
	h.mu.Unlock()

	h.publish(EventConfigUpdated, "", "", map[string]interface{}{
		"roomCreationFee": config.RoomCreationFee,
		"feeCollector":    config.FeeCollector,
	})
	h.store.SaveHubConfig(config)
	return nil
}

func (h *Hub) Config() HubConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// CreateRoomWithGame creates the escrow room and its round engine as a pair.
// creationFeePaid must cover the configured room creation fee; the fee is
// collected by the hub, not escrowed.
func (h *Hub) CreateRoomWithGame(registryID, creator, name string, entryFee uint64, maxPlayers int, creationFeePaid uint64) (*Room, *GameState, error) {
	h.mu.RLock()
	_, registered := h.registry[registryID]
	fee := h.config.RoomCreationFee
	h.mu.RUnlock()

	if !registered {
		return nil, nil, errNotFound
	}
	if creationFeePaid < fee {
		return nil, nil, errInsufficientPayment
	}
	if maxPlayers < 2 {
		return nil, nil, errNotEnoughPlayers
	}

	room := newRoom(uuid.NewString(), creator, entryFee, maxPlayers)
	game := initializeGame(uuid.NewString(), registryID, room.ID, name, entryFee, maxPlayers, h.defaults)

	h.mu.Lock()
	h.rooms[room.ID] = room
	h.games[game.ID] = game
	h.roomToGame[room.ID] = game.ID
	h.collectedFees += fee
	h.mu.Unlock()

	h.publish(EventRoomAndGameCreated, room.ID, game.ID, map[string]interface{}{
		"roomId":     room.ID,
		"gameId":     game.ID,
		"registryId": registryID,
		"name":       name,
		"entryFee":   entryFee,
		"maxPlayers": maxPlayers,
	})
	h.persistRoom(room)
	h.persistGame(game)
	return room, game, nil
}

// JoinRoom / JoinGame mirror each other; clients join the escrow room and
// the round engine in the same breath.
func (h *Hub) JoinRoom(roomID, player string) error {
	room, err := h.Room(roomID)
	if err != nil {
		return err
	}
	if err := room.Join(player); err != nil {
		return err
	}
	h.publish(EventPlayerJoined, roomID, "", map[string]interface{}{"player": player})
	h.persistRoom(room)
	return nil
}

func (h *Hub) ReadyToPlay(roomID, player string, payment uint64) error {
	room, err := h.Room(roomID)
	if err != nil {
		return err
	}
	if err := room.ReadyToPlay(player, payment); err != nil {
		return err
	}
	h.publish(EventPlayerReady, roomID, "", map[string]interface{}{
		"player":  player,
		"payment": payment,
	})
	h.persistRoom(room)
	return nil
}

func (h *Hub) LeaveRoom(roomID, player string) (uint64, error) {
	room, err := h.Room(roomID)
	if err != nil {
		return 0, err
	}
	refund, err := room.Leave(player)
	if err != nil {
		return 0, err
	}
	h.publish(EventPlayerLeft, roomID, "", map[string]interface{}{
		"player": player,
		"refund": refund,
	})
	h.persistRoom(room)
	return refund, nil
}

func (h *Hub) JoinGame(gameID, player string) error {
	game, err := h.Game(gameID)
	if err != nil {
		return err
	}
	if err := game.Join(player); err != nil {
		return err
	}
	h.publish(EventPlayerJoined, game.RoomID, gameID, map[string]interface{}{"player": player})
	h.persistGame(game)
	return nil
}

func (h *Hub) LeaveGame(gameID, player string) error {
	game, err := h.Game(gameID)
	if err != nil {
		return err
	}
	if err := game.Leave(player); err != nil {
		return err
	}
	h.publish(EventPlayerLeft, game.RoomID, gameID, map[string]interface{}{"player": player})
	h.persistGame(game)
	return nil
}

// StartRoom locks the lobby: Ready -> Active, admin gated, irreversible
// until settlement.
func (h *Hub) StartRoom(roomID, adminToken string) error {
	if err := h.caps.VerifyAdmin(adminToken); err != nil {
		return err
	}
	room, err := h.Room(roomID)
	if err != nil {
		return err
	}
	if err := room.Start(); err != nil {
		return err
	}
	h.publish(EventRoomStarted, roomID, "", map[string]interface{}{"pool": room.Pool()})
	h.persistRoom(room)
	return nil
}

// StartRound arms the bomb. The room must already be Active; the escrowed
// pool is captured as the round's prize.
func (h *Hub) StartRound(gameID string) (RoundStarted, error) {
	game, err := h.Game(gameID)
	if err != nil {
		return RoundStarted{}, err
	}
	room, err := h.Room(game.RoomID)
	if err != nil {
		return RoundStarted{}, err
	}
	if room.Status() != RoomActive {
		return RoundStarted{}, errPhaseViolation
	}

	started, err := game.StartRound(h.rand, h.clock, room.Pool())
	if err != nil {
		return RoundStarted{}, err
	}
	h.publish(EventRoundStarted, game.RoomID, gameID, map[string]interface{}{
		"roundId":     started.RoundID,
		"bombHolder":  started.BombHolder,
		"explodeAtMs": started.ExplodeAtMs,
		"poolValue":   started.PoolValue,
	})
	h.persistGame(game)
	return started, nil
}

// StartRoomAndRound is the combined operator entry point: one call takes a
// Ready room Active and opens the round.
func (h *Hub) StartRoomAndRound(gameID, adminToken string) (RoundStarted, error) {
	game, err := h.Game(gameID)
	if err != nil {
		return RoundStarted{}, err
	}
	if err := h.StartRoom(game.RoomID, adminToken); err != nil {
		return RoundStarted{}, err
	}
	return h.StartRound(gameID)
}

func (h *Hub) PassBomb(gameID, caller string) (*BombPassed, *ExplodeOutcome, error) {
	game, err := h.Game(gameID)
	if err != nil {
		return nil, nil, err
	}
	passed, exploded, err := game.PassBomb(h.rand, h.clock, caller)
	if err != nil {
		return nil, nil, err
	}
	if passed != nil {
		h.publish(EventBombPassed, game.RoomID, gameID, map[string]interface{}{
			"from":   passed.From,
			"to":     passed.To,
			"reward": passed.Reward,
		})
	}
	if exploded != nil {
		h.publishExplosion(game, exploded)
	}
	h.persistGame(game)
	return passed, exploded, nil
}

// TryExplode is the permissionless poll. A nil outcome with nil error is the
// success-with-no-effect case.
func (h *Hub) TryExplode(gameID string) (*ExplodeOutcome, error) {
	game, err := h.Game(gameID)
	if err != nil {
		return nil, err
	}
	outcome, err := game.TryExplode(h.clock, h.rand)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		h.publishExplosion(game, outcome)
		h.persistGame(game)
	}
	return outcome, nil
}

func (h *Hub) publishExplosion(game *GameState, outcome *ExplodeOutcome) {
	h.publish(EventExploded, game.RoomID, game.ID, map[string]interface{}{
		"deadPlayer": outcome.DeadPlayer,
		"nextHolder": outcome.NextHolder,
	})
	if outcome.RoundEnded {
		h.publish(EventVictory, game.RoomID, game.ID, map[string]interface{}{
			"survivor": outcome.Survivor,
		})
	}
}

// PollExplosions runs the permissionless poll across every live game, the
// in-process equivalent of untrusted callers hammering try_explode.
func (h *Hub) PollExplosions() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.games))
	for id := range h.games {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		if _, err := h.TryExplode(id); err != nil {
			log.Println("explosion poll:", id, err)
		}
	}
}

// SettleRound consumes the round's settlement intent and applies it to the
// escrow room. At most one call can ever succeed per round.
func (h *Hub) SettleRound(gameID, gameCapToken string) (*SettlementIntent, error) {
	game, err := h.Game(gameID)
	if err != nil {
		return nil, err
	}
	room, err := h.Room(game.RoomID)
	if err != nil {
		return nil, err
	}

	intent, err := settleRoundWithHub(game, room, h.caps, gameCapToken)
	if err != nil {
		return nil, err
	}

	h.publish(EventRoundSettled, room.ID, gameID, map[string]interface{}{
		"roundId":            intent.RoundID,
		"deadPlayer":         intent.DeadPlayer,
		"survivors":          intent.Survivors,
		"survivorPayoutEach": intent.SurvivorPayoutEach,
		"holderRewards":      intent.HolderRewards,
	})
	h.store.RecordSettlement(intent)
	h.persistRoom(room)
	h.persistGame(game)
	return intent, nil
}

func (h *Hub) ClaimReward(roomID, player string) (uint64, error) {
	room, err := h.Room(roomID)
	if err != nil {
		return 0, err
	}
	amount, err := room.Claim(player)
	if err != nil {
		return 0, err
	}
	h.publish(EventRewardClaimed, roomID, "", map[string]interface{}{
		"player": player,
		"amount": amount,
	})
	h.store.RecordPayout(roomID, player, amount)
	h.persistRoom(room)
	return amount, nil
}

// ResetRoom returns a settled room to the lobby with survivors still
// joined. Gated by the game's settlement capability.
func (h *Hub) ResetRoom(roomID, gameCapToken string) error {
	room, err := h.Room(roomID)
	if err != nil {
		return err
	}
	game, err := h.gameForRoom(roomID)
	if err != nil {
		return err
	}
	if err := h.caps.VerifyGame(gameCapToken, game.RegistryID); err != nil {
		return err
	}
	if err := room.Reset(); err != nil {
		return err
	}
	h.publish(EventRoomReset, roomID, game.ID, nil)
	h.persistRoom(room)
	return nil
}

// ResetGame readies the engine for the next round once settlement applied.
func (h *Hub) ResetGame(gameID string) error {
	game, err := h.Game(gameID)
	if err != nil {
		return err
	}
	if err := game.Reset(); err != nil {
		return err
	}
	h.publish(EventGameReset, game.RoomID, gameID, map[string]interface{}{
		"roundId": game.RoundID(),
	})
	h.persistGame(game)
	return nil
}

// ConfigureGame updates a game's explosion tuning between rounds.
func (h *Hub) ConfigureGame(gameID, adminToken string, tuning GameTuning) error {
	if err := h.caps.VerifyAdmin(adminToken); err != nil {
		return err
	}
	game, err := h.Game(gameID)
	if err != nil {
		return err
	}
	if err := game.Configure(tuning); err != nil {
		return err
	}
	h.publish(EventConfigUpdated, game.RoomID, gameID, map[string]interface{}{
		"maxHoldTimeMs":    tuning.MaxHoldTimeMs,
		"explosionRateBps": tuning.ExplosionRateBps,
		"rewardDivisor":    tuning.RewardDivisor,
		"dangerZoneBps":    tuning.DangerZoneBps,
	})
	h.persistGame(game)
	return nil
}

// DeleteRoom / DeleteGame are administrative teardown for empty, idle
// objects only.
func (h *Hub) DeleteRoom(roomID, adminToken string) error {
	if err := h.caps.VerifyAdmin(adminToken); err != nil {
		return err
	}
	room, err := h.Room(roomID)
	if err != nil {
		return err
	}
	if !room.deletable() {
		return errNotEmpty
	}
	h.mu.Lock()
	delete(h.rooms, roomID)
	delete(h.roomToGame, roomID)
	h.mu.Unlock()
	return nil
}

func (h *Hub) DeleteGame(gameID, adminToken string) error {
	if err := h.caps.VerifyAdmin(adminToken); err != nil {
		return err
	}
	game, err := h.Game(gameID)
	if err != nil {
		return err
	}
	if !game.deletable() {
		return errNotEmpty
	}
	h.mu.Lock()
	delete(h.games, gameID)
	delete(h.roomToGame, game.RoomID)
	h.mu.Unlock()
	return nil
}

// PersistAll snapshots every live object; the periodic flush worker calls it
// so a crash loses at most one interval of best-effort snapshots.
func (h *Hub) PersistAll() {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	games := make([]*GameState, 0, len(h.games))
	for _, g := range h.games {
		games = append(games, g)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		h.persistRoom(r)
	}
	for _, g := range games {
		h.persistGame(g)
	}
}

func (h *Hub) CollectedFees() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.collectedFees
}

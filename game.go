package main

import (
	"sync"
)

// GameState is the bomb-panic round engine: an ordered roster, one bomb
// holder at a time, and a timed/probabilistic explosion that eliminates
// holders until a single survivor remains.

type GamePhase string

const (
	PhaseWaiting GamePhase = "waiting"
	PhasePlaying GamePhase = "playing"
	PhaseEnded   GamePhase = "ended"
)

// GameTuning is the per-game explosion configuration. The probability curve
// is deliberately parameterized: the danger zone opens at DangerZoneBps of
// MaxHoldTimeMs and the per-draw chance ramps linearly from zero at zone
// entry to ExplosionRateBps at the hold limit.
type GameTuning struct {
	MaxHoldTimeMs    int64  `json:"maxHoldTimeMs"`
	ExplosionRateBps uint64 `json:"explosionRateBps"`
	RewardDivisor    uint64 `json:"rewardDivisor"`
	DangerZoneBps    uint64 `json:"dangerZoneBps"`
}

func (t GameTuning) normalized() GameTuning {
	if t.MaxHoldTimeMs <= 0 {
		t.MaxHoldTimeMs = 10_000
	}
	if t.ExplosionRateBps == 0 || t.ExplosionRateBps > 10_000 {
		t.ExplosionRateBps = 10_000
	}
	if t.RewardDivisor == 0 {
		t.RewardDivisor = 100
	}
	if t.DangerZoneBps >= 10_000 {
		t.DangerZoneBps = 5_000
	}
	return t
}

type GameState struct {
	mu sync.Mutex

	ID         string
	RegistryID string
	RoomID     string
	Name       string
	EntryFee   uint64
	MaxPlayers int

	phase   GamePhase
	roundID uint64
	tuning  GameTuning

	players       []string
	bombHolder    string
	holdStartedAt int64
	poolValue     uint64

	accrued     map[string]uint64
	rewardOrder []string
	deadPlayer  string

	intent  *SettlementIntent
	settled bool
}

func initializeGame(id, registryID, roomID, name string, entryFee uint64, maxPlayers int, tuning GameTuning) *GameState {
	return &GameState{
		ID:         id,
		RegistryID: registryID,
		RoomID:     roomID,
		Name:       name,
		EntryFee:   entryFee,
		MaxPlayers: maxPlayers,
		phase:      PhaseWaiting,
		tuning:     tuning.normalized(),
		accrued:    make(map[string]uint64),
	}
}

func (g *GameState) Phase() GamePhase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *GameState) RoundID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roundID
}

func (g *GameState) BombHolder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bombHolder
}

func (g *GameState) Players() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.players...)
}

func (g *GameState) Tuning() GameTuning {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tuning
}

func (g *GameState) isMemberLocked(player string) bool {
	for _, p := range g.players {
		if p == player {
			return true
		}
	}
	return false
}

// Join mirrors Room.Join; the roster only changes while Waiting.
func (g *GameState) Join(player string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseWaiting {
		return errPhaseViolation
	}
	if g.isMemberLocked(player) {
		return errAlreadyJoined
	}
	if len(g.players) >= g.MaxPlayers {
		return errRoomFull
	}
	g.players = append(g.players, player)
	return nil
}

func (g *GameState) Leave(player string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseWaiting {
		return errPhaseViolation
	}
	if !g.isMemberLocked(player) {
		return errNotJoined
	}
	for i, p := range g.players {
		if p == player {
			g.players = append(g.players[:i], g.players[i+1:]...)
			break
		}
	}
	return nil
}

// Configure updates the explosion tuning. Only allowed between rounds so a
// live round never changes shape under the holder.
func (g *GameState) Configure(tuning GameTuning) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseWaiting {
		return errPhaseViolation
	}
	g.tuning = tuning.normalized()
	return nil
}

type RoundStarted struct {
	GameID      string `json:"gameId"`
	RoundID     uint64 `json:"roundId"`
	BombHolder  string `json:"bombHolder"`
	ExplodeAtMs int64  `json:"explodeAtMs"`
	PoolValue   uint64 `json:"poolValue"`
}

// StartRound draws the initial holder uniformly from the roster and starts
// the clock. poolValue is the escrow captured by the room for this round.
func (g *GameState) StartRound(rnd Randomness, clk Clock, poolValue uint64) (RoundStarted, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseWaiting {
		return RoundStarted{}, errPhaseViolation
	}
	if len(g.players) < 2 {
		return RoundStarted{}, errNotEnoughPlayers
	}

	now := clk.NowMs()
	g.bombHolder = g.players[rnd.Intn(len(g.players))]
	g.holdStartedAt = now
	g.poolValue = poolValue
	g.phase = PhasePlaying
	g.deadPlayer = ""

	return RoundStarted{
		GameID:      g.ID,
		RoundID:     g.roundID,
		BombHolder:  g.bombHolder,
		ExplodeAtMs: now + g.tuning.MaxHoldTimeMs,
		PoolValue:   poolValue,
	}, nil
}

type BombPassed struct {
	GameID string `json:"gameId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reward uint64 `json:"reward"`
}

type ExplodeOutcome struct {
	GameID     string `json:"gameId"`
	DeadPlayer string `json:"deadPlayer"`
	NextHolder string `json:"nextHolder,omitempty"`
	RoundEnded bool   `json:"roundEnded"`
	Survivor   string `json:"survivor,omitempty"`
}

// PassBomb hands the bomb to a random other player and pays the holder for
// the time survived. Holding past the limit converts the pass into an
// explosion of the caller: the call succeeds, the camper dies.
func (g *GameState) PassBomb(rnd Randomness, clk Clock, caller string) (*BombPassed, *ExplodeOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlaying {
		return nil, nil, errPhaseViolation
	}
	if caller != g.bombHolder {
		return nil, nil, errNotHolder
	}

	now := clk.NowMs()
	heldMs := now - g.holdStartedAt

	if heldMs > g.tuning.MaxHoldTimeMs {
		outcome := g.explodeLocked(rnd, now)
		return nil, &outcome, nil
	}

	reward := uint64(heldMs) / g.tuning.RewardDivisor
	g.accrueLocked(caller, reward)

	others := make([]string, 0, len(g.players)-1)
	for _, p := range g.players {
		if p != caller {
			others = append(others, p)
		}
	}
	next := others[rnd.Intn(len(others))]
	g.bombHolder = next
	g.holdStartedAt = now

	return &BombPassed{GameID: g.ID, From: caller, To: next, Reward: reward}, nil, nil
}

// TryExplode is permissionless and idempotent: anyone may poll it any number
// of times. Outside the danger zone, or when the draw misses, it reports
// nothing happened; only one serialized call can ever end the round.
func (g *GameState) TryExplode(clk Clock, rnd Randomness) (*ExplodeOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlaying {
		return nil, nil
	}

	now := clk.NowMs()
	heldMs := now - g.holdStartedAt

	chance := g.explosionChanceBpsLocked(heldMs)
	if chance == 0 {
		return nil, nil
	}
	if uint64(rnd.Intn(10_000)) >= chance {
		return nil, nil
	}

	outcome := g.explodeLocked(rnd, now)
	return &outcome, nil
}

// explosionChanceBpsLocked implements the configured linear ramp. Zero means
// the holder is still outside the danger zone.
func (g *GameState) explosionChanceBpsLocked(heldMs int64) uint64 {
	zoneStart := g.tuning.MaxHoldTimeMs * int64(g.tuning.DangerZoneBps) / 10_000
	if heldMs < zoneStart {
		return 0
	}
	if heldMs >= g.tuning.MaxHoldTimeMs {
		return g.tuning.ExplosionRateBps
	}
	span := g.tuning.MaxHoldTimeMs - zoneStart
	chance := g.tuning.ExplosionRateBps * uint64(heldMs-zoneStart) / uint64(span)
	if chance > 10_000 {
		chance = 10_000
	}
	return chance
}

func (g *GameState) accrueLocked(player string, reward uint64) {
	if reward == 0 {
		return
	}
	if g.accrued[player] == 0 {
		g.rewardOrder = append(g.rewardOrder, player)
	}
	g.accrued[player] += reward
}

// explodeLocked eliminates the current holder. The fatal hold earns nothing;
// rewards accrued on earlier holds survive the player's death. While more
// than one player remains the bomb is immediately re-armed on a fresh
// random holder, so it is never unheld mid-round.
func (g *GameState) explodeLocked(rnd Randomness, nowMs int64) ExplodeOutcome {
	dead := g.bombHolder
	for i, p := range g.players {
		if p == dead {
			g.players = append(g.players[:i], g.players[i+1:]...)
			break
		}
	}

	outcome := ExplodeOutcome{GameID: g.ID, DeadPlayer: dead}

	if len(g.players) == 1 {
		g.bombHolder = ""
		g.deadPlayer = dead
		g.phase = PhaseEnded
		g.intent = buildSettlementIntent(g.RoomID, g.ID, g.roundID, dead,
			g.players, g.poolValue, g.accrued, g.rewardOrder)
		outcome.RoundEnded = true
		outcome.Survivor = g.players[0]
		return outcome
	}

	next := g.players[rnd.Intn(len(g.players))]
	g.bombHolder = next
	g.holdStartedAt = nowMs
	outcome.NextHolder = next
	return outcome
}

// ConsumeSettlementIntent extracts the intent exactly once.
func (g *GameState) ConsumeSettlementIntent() (*SettlementIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseEnded {
		return nil, errPhaseViolation
	}
	if g.intent == nil || g.intent.consumed {
		return nil, errAlreadyConsumed
	}
	g.intent.consumed = true
	return g.intent, nil
}

// restoreIntent undoes a consumption whose downstream settlement was
// rejected, keeping consume-and-settle all-or-nothing.
func (g *GameState) restoreIntent() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.intent != nil {
		g.intent.consumed = false
	}
}

func (g *GameState) markSettled() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settled = true
}

// Reset readies the engine for the next round: survivors stay on the
// roster, the round id increases, everything else is cleared. Requires the
// ended round to have been settled first.
func (g *GameState) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseEnded {
		return errPhaseViolation
	}
	if !g.settled {
		return errAlreadyConsumed
	}
	g.phase = PhaseWaiting
	g.roundID++
	g.bombHolder = ""
	g.holdStartedAt = 0
	g.poolValue = 0
	g.accrued = make(map[string]uint64)
	g.rewardOrder = nil
	g.deadPlayer = ""
	g.intent = nil
	g.settled = false
	return nil
}

func (g *GameState) deletable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == PhaseWaiting && len(g.players) == 0
}

type GameView struct {
	ID            string     `json:"gameId"`
	RoomID        string     `json:"roomId"`
	Name          string     `json:"name"`
	Phase         string     `json:"phase"`
	RoundID       uint64     `json:"roundId"`
	EntryFee      uint64     `json:"entryFee"`
	MaxPlayers    int        `json:"maxPlayers"`
	Players       []string   `json:"players"`
	BombHolder    string     `json:"bombHolder,omitempty"`
	HoldStartedAt int64      `json:"holdStartedAt,omitempty"`
	PoolValue     uint64     `json:"poolValue"`
	Tuning        GameTuning `json:"tuning"`
}

func (g *GameState) View() GameView {
	g.mu.Lock()
	defer g.mu.Unlock()

	return GameView{
		ID:            g.ID,
		RoomID:        g.RoomID,
		Name:          g.Name,
		Phase:         string(g.phase),
		RoundID:       g.roundID,
		EntryFee:      g.EntryFee,
		MaxPlayers:    g.MaxPlayers,
		Players:       append([]string(nil), g.players...),
		BombHolder:    g.bombHolder,
		HoldStartedAt: g.holdStartedAt,
		PoolValue:     g.poolValue,
		Tuning:        g.tuning,
	}
}

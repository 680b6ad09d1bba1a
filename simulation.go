package main

import (
	"fmt"
)

// Seeded end-to-end simulation: runs whole rounds through the real hub
// machinery (escrow, rotation, explosion, settlement, claims, reset) under a
// scripted clock and deterministic randomness, and checks the properties the
// engine promises. Used by the admin simulate endpoint and the test suite.

type SimulationParams struct {
	Seed     int64
	Players  int
	Rounds   int
	EntryFee uint64
	// TickMs is the simulated time step; PassChance is the percent chance
	// per tick that the holder attempts a pass.
	TickMs     int64
	PassChance int
}

func (p SimulationParams) normalized() SimulationParams {
	if p.Players < 2 {
		p.Players = 4
	}
	if p.Rounds <= 0 {
		p.Rounds = 10
	}
	if p.EntryFee == 0 {
		p.EntryFee = 100
	}
	if p.TickMs <= 0 {
		p.TickMs = 500
	}
	if p.PassChance <= 0 || p.PassChance > 100 {
		p.PassChance = 40
	}
	return p
}

type SimulatedRound struct {
	RoundID     uint64   `json:"roundId"`
	Survivor    string   `json:"survivor"`
	DeadPlayers []string `json:"deadPlayers"`
	Pool        uint64   `json:"pool"`
	TotalPayout uint64   `json:"totalPayout"`
	Ticks       int      `json:"ticks"`
	AntiCamping int      `json:"antiCampingKills"`
}

type SimulationAssertions struct {
	ConservationExact  bool `json:"conservationExact"`
	RoundIDMonotonic   bool `json:"roundIdMonotonic"`
	HolderAlwaysMember bool `json:"holderAlwaysMember"`
	ClaimsMatchEscrow  bool `json:"claimsMatchEscrow"`
}

type SimulationReport struct {
	Seed          int64                `json:"seed"`
	Players       int                  `json:"players"`
	RoundsPlayed  int                  `json:"roundsPlayed"`
	TotalEscrowed uint64               `json:"totalEscrowed"`
	TotalClaimed  uint64               `json:"totalClaimed"`
	Rounds        []SimulatedRound     `json:"rounds"`
	Assertions    SimulationAssertions `json:"assertions"`
}

type simClock struct {
	ms int64
}

func (c *simClock) NowMs() int64       { return c.ms }
func (c *simClock) advance(step int64) { c.ms += step }

func RunRoundSimulation(params SimulationParams) (SimulationReport, error) {
	params = params.normalized()

	clk := &simClock{ms: 1_700_000_000_000}
	rnd := seededRandomness(params.Seed)
	auth := NewCapabilityAuthority([]byte("simulation-secret"))
	events := NewEventLog()
	hub := NewHub(clk, rnd, auth, events, nil, GameTuning{}, HubConfig{})

	adminCap, err := auth.IssueAdminCap()
	if err != nil {
		return SimulationReport{}, err
	}
	reg, gameCap, err := hub.RegisterGame(adminCap.Token, "bomb-panic-sim")
	if err != nil {
		return SimulationReport{}, err
	}

	players := make([]string, params.Players)
	for i := range players {
		players[i] = fmt.Sprintf("sim-%d", i+1)
	}

	room, game, err := hub.CreateRoomWithGame(reg.ID, players[0], "simulation", params.EntryFee, params.Players, 0)
	if err != nil {
		return SimulationReport{}, err
	}

	report := SimulationReport{
		Seed:    params.Seed,
		Players: params.Players,
		Assertions: SimulationAssertions{
			ConservationExact:  true,
			RoundIDMonotonic:   true,
			HolderAlwaysMember: true,
			ClaimsMatchEscrow:  true,
		},
	}

	lastRoundID := game.RoundID()
	maxTicks := int(game.Tuning().MaxHoldTimeMs/params.TickMs)*10*params.Players + 1000

	for round := 0; round < params.Rounds; round++ {
		// fill the lobby: survivors are already joined, the rest re-enter
		for _, p := range players {
			if err := hub.JoinRoom(room.ID, p); err != nil && err != errAlreadyJoined {
				return report, err
			}
			if err := hub.JoinGame(game.ID, p); err != nil && err != errAlreadyJoined {
				return report, err
			}
			if err := hub.ReadyToPlay(room.ID, p, params.EntryFee); err != nil {
				return report, err
			}
			report.TotalEscrowed += params.EntryFee
		}

		started, err := hub.StartRoomAndRound(game.ID, adminCap.Token)
		if err != nil {
			return report, err
		}
		if round > 0 && started.RoundID <= lastRoundID {
			report.Assertions.RoundIDMonotonic = false
		}
		lastRoundID = started.RoundID

		result := SimulatedRound{RoundID: started.RoundID, Pool: started.PoolValue}

		for tick := 0; ; tick++ {
			if tick > maxTicks {
				return report, fmt.Errorf("round %d did not terminate after %d ticks", round, maxTicks)
			}
			if game.Phase() != PhasePlaying {
				break
			}
			clk.advance(params.TickMs)

			holder := game.BombHolder()
			if holder != "" && !containsPlayer(game.Players(), holder) {
				report.Assertions.HolderAlwaysMember = false
			}

			if rnd.Intn(100) < params.PassChance {
				_, exploded, err := hub.PassBomb(game.ID, holder)
				if err != nil {
					return report, err
				}
				if exploded != nil {
					result.DeadPlayers = append(result.DeadPlayers, exploded.DeadPlayer)
					result.AntiCamping++
					continue
				}
			}

			outcome, err := hub.TryExplode(game.ID)
			if err != nil {
				return report, err
			}
			if outcome != nil {
				result.DeadPlayers = append(result.DeadPlayers, outcome.DeadPlayer)
			}
			result.Ticks = tick
		}

		intent, err := hub.SettleRound(game.ID, gameCap.Token)
		if err != nil {
			return report, err
		}
		result.Survivor = intent.Survivors[0]
		result.TotalPayout = intent.totalPayout()
		if result.TotalPayout != result.Pool {
			report.Assertions.ConservationExact = false
		}

		var claimed uint64
		addrs, _ := intent.payoutVectors()
		for _, addr := range addrs {
			amount, err := hub.ClaimReward(room.ID, addr)
			if err != nil {
				return report, err
			}
			claimed += amount
		}
		if claimed != result.Pool {
			report.Assertions.ClaimsMatchEscrow = false
		}
		report.TotalClaimed += claimed

		if err := hub.ResetGame(game.ID); err != nil {
			return report, err
		}
		if err := hub.ResetRoom(room.ID, gameCap.Token); err != nil {
			return report, err
		}

		report.Rounds = append(report.Rounds, result)
		report.RoundsPlayed++
	}

	if report.TotalClaimed != report.TotalEscrowed {
		report.Assertions.ClaimsMatchEscrow = false
	}
	return report, nil
}

func containsPlayer(players []string, player string) bool {
	for _, p := range players {
		if p == player {
			return true
		}
	}
	return false
}

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTwoPlayerRoundEndToEnd drives the smallest possible lobby through a
// whole round: escrow, start, one pass, one camping death, settlement,
// claims, reset, and a second round on the same objects.
func TestTwoPlayerRoundEndToEnd(t *testing.T) {
	clk := &fakeClock{ms: 1_000_000}
	rnd := &scriptedRandomness{draws: []int{0, 0}}
	hub, auth, events := newTestHub(clk, rnd)

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	reg, gameCap, err := hub.RegisterGame(adminCap.Token, "bomb panic")
	require.NoError(t, err)

	room, game, err := hub.CreateRoomWithGame(reg.ID, "alice", "friday night", 100, 2, 0)
	require.NoError(t, err)

	for _, p := range []string{"alice", "bob"} {
		require.NoError(t, hub.JoinRoom(room.ID, p))
		require.NoError(t, hub.JoinGame(game.ID, p))
	}
	require.NoError(t, hub.ReadyToPlay(room.ID, "alice", 100))
	require.NoError(t, hub.ReadyToPlay(room.ID, "bob", 100))
	require.Equal(t, RoomReady, room.Status())

	started, err := hub.StartRoomAndRound(game.ID, adminCap.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", started.BombHolder)
	require.Equal(t, uint64(200), started.PoolValue)
	require.Equal(t, RoomActive, room.Status())

	// alice passes at 6s and banks 60; bob camps past the limit and dies
	clk.advance(6_000)
	passed, exploded, err := hub.PassBomb(game.ID, "alice")
	require.NoError(t, err)
	require.Nil(t, exploded)
	require.Equal(t, uint64(60), passed.Reward)
	require.Equal(t, "bob", game.BombHolder())

	clk.advance(11_000)
	passed, exploded, err = hub.PassBomb(game.ID, "bob")
	require.NoError(t, err)
	require.Nil(t, passed)
	require.Equal(t, "bob", exploded.DeadPlayer)
	require.True(t, exploded.RoundEnded)
	require.Equal(t, "alice", exploded.Survivor)

	intent, err := hub.SettleRound(game.ID, gameCap.Token)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, intent.Survivors)
	require.Equal(t, uint64(140), intent.SurvivorPayoutEach)
	require.Equal(t, []HolderReward{{Player: "alice", Amount: 60}}, intent.HolderRewards)

	_, err = hub.SettleRound(game.ID, gameCap.Token)
	require.ErrorIs(t, err, errAlreadyConsumed)

	// alice collects survivor split plus her pass reward, the whole pool
	amount, err := hub.ClaimReward(room.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(200), amount)
	_, err = hub.ClaimReward(room.ID, "bob")
	require.ErrorIs(t, err, errNothingToClaim)

	require.NoError(t, hub.ResetGame(game.ID))
	require.NoError(t, hub.ResetRoom(room.ID, gameCap.Token))
	require.Equal(t, uint64(1), game.RoundID())
	require.Equal(t, RoomWaiting, room.Status())
	require.Equal(t, []string{"alice"}, room.View().Players)

	// bob rejoins; the same pair runs round two
	rnd.draws = []int{0}
	require.NoError(t, hub.JoinRoom(room.ID, "bob"))
	require.NoError(t, hub.JoinGame(game.ID, "bob"))
	require.NoError(t, hub.ReadyToPlay(room.ID, "alice", 100))
	require.NoError(t, hub.ReadyToPlay(room.ID, "bob", 100))
	started, err = hub.StartRoomAndRound(game.ID, adminCap.Token)
	require.NoError(t, err)
	require.Equal(t, uint64(1), started.RoundID)

	wantOrder := []string{
		EventGameRegistered,
		EventRoomAndGameCreated,
		EventRoundStarted,
		EventBombPassed,
		EventExploded,
		EventVictory,
		EventRoundSettled,
		EventRewardClaimed,
		EventGameReset,
		EventRoomReset,
		EventRoundStarted,
	}
	var got []string
	for _, ev := range events.Since(0) {
		switch ev.Type {
		case EventPlayerJoined, EventPlayerReady, EventRoomStarted:
			continue
		}
		got = append(got, ev.Type)
	}
	require.Equal(t, wantOrder, got)
}

func TestCreateRoomRequiresRegisteredGame(t *testing.T) {
	hub, _, _ := newTestHub(&fakeClock{}, &scriptedRandomness{})

	_, _, err := hub.CreateRoomWithGame("nope", "alice", "room", 100, 2, 0)
	require.ErrorIs(t, err, errNotFound)
}

func TestCreateRoomCollectsCreationFee(t *testing.T) {
	clk := &fakeClock{}
	rnd := &scriptedRandomness{}
	auth := NewCapabilityAuthority([]byte("test-secret"))
	events := NewEventLog()
	hub := NewHub(clk, rnd, auth, events, nil, GameTuning{},
		HubConfig{RoomCreationFee: 50, FeeCollector: "treasury"})

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	reg, _, err := hub.RegisterGame(adminCap.Token, "bomb panic")
	require.NoError(t, err)

	_, _, err = hub.CreateRoomWithGame(reg.ID, "alice", "room", 100, 2, 49)
	require.ErrorIs(t, err, errInsufficientPayment)
	require.Equal(t, uint64(0), hub.CollectedFees())

	_, _, err = hub.CreateRoomWithGame(reg.ID, "alice", "room", 100, 2, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(50), hub.CollectedFees())

	_, _, err = hub.CreateRoomWithGame(reg.ID, "alice", "solo", 100, 1, 50)
	require.ErrorIs(t, err, errNotEnoughPlayers)
}

func TestAdminGatesRequireAdminCap(t *testing.T) {
	hub, auth, _ := newTestHub(&fakeClock{}, &scriptedRandomness{})

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	reg, gameCap, err := hub.RegisterGame(adminCap.Token, "bomb panic")
	require.NoError(t, err)
	room, game, err := hub.CreateRoomWithGame(reg.ID, "alice", "room", 100, 2, 0)
	require.NoError(t, err)

	_, _, err = hub.RegisterGame(gameCap.Token, "rogue")
	require.ErrorIs(t, err, errUnauthorized)
	require.ErrorIs(t, hub.StartRoom(room.ID, gameCap.Token), errUnauthorized)
	_, err = hub.StartRoomAndRound(game.ID, gameCap.Token)
	require.ErrorIs(t, err, errUnauthorized)
	require.ErrorIs(t, hub.UpdateConfig(gameCap.Token, HubConfig{}), errUnauthorized)
	require.ErrorIs(t, hub.ConfigureGame(game.ID, gameCap.Token, GameTuning{}), errUnauthorized)
	require.ErrorIs(t, hub.DeleteRoom(room.ID, gameCap.Token), errUnauthorized)

	// and the room reset gate wants the game cap, not the admin cap
	require.ErrorIs(t, hub.ResetRoom(room.ID, adminCap.Token), errUnauthorized)
}

func TestStartRoundRequiresActiveRoom(t *testing.T) {
	hub, auth, _ := newTestHub(&fakeClock{}, &scriptedRandomness{})

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	reg, _, err := hub.RegisterGame(adminCap.Token, "bomb panic")
	require.NoError(t, err)
	_, game, err := hub.CreateRoomWithGame(reg.ID, "alice", "room", 100, 2, 0)
	require.NoError(t, err)

	_, err = hub.StartRound(game.ID)
	require.ErrorIs(t, err, errPhaseViolation)
}

func TestPollExplosionsEndsOverdueRound(t *testing.T) {
	clk := &fakeClock{ms: 1_000_000}
	rnd := &scriptedRandomness{draws: []int{0, 0}}
	hub, auth, _ := newTestHub(clk, rnd)

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	reg, _, err := hub.RegisterGame(adminCap.Token, "bomb panic")
	require.NoError(t, err)
	room, game, err := hub.CreateRoomWithGame(reg.ID, "alice", "room", 100, 2, 0)
	require.NoError(t, err)

	for _, p := range []string{"alice", "bob"} {
		require.NoError(t, hub.JoinRoom(room.ID, p))
		require.NoError(t, hub.JoinGame(game.ID, p))
		require.NoError(t, hub.ReadyToPlay(room.ID, p, 100))
	}
	_, err = hub.StartRoomAndRound(game.ID, adminCap.Token)
	require.NoError(t, err)

	// past the hold limit the chance is pinned at 100%, so the background
	// poll must end the round
	clk.advance(10_001)
	hub.PollExplosions()
	require.Equal(t, PhaseEnded, game.Phase())
}

func TestDeleteGuardsEmptyObjectsOnly(t *testing.T) {
	hub, auth, _ := newTestHub(&fakeClock{}, &scriptedRandomness{})

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	reg, _, err := hub.RegisterGame(adminCap.Token, "bomb panic")
	require.NoError(t, err)
	room, game, err := hub.CreateRoomWithGame(reg.ID, "alice", "room", 100, 2, 0)
	require.NoError(t, err)

	require.NoError(t, hub.JoinRoom(room.ID, "alice"))
	require.NoError(t, hub.JoinGame(game.ID, "alice"))

	require.ErrorIs(t, hub.DeleteRoom(room.ID, adminCap.Token), errNotEmpty)
	require.ErrorIs(t, hub.DeleteGame(game.ID, adminCap.Token), errNotEmpty)

	_, err = hub.LeaveRoom(room.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, hub.LeaveGame(game.ID, "alice"))

	require.NoError(t, hub.DeleteRoom(room.ID, adminCap.Token))
	require.NoError(t, hub.DeleteGame(game.ID, adminCap.Token))
	_, err = hub.Room(room.ID)
	require.ErrorIs(t, err, errNotFound)
	_, err = hub.Game(game.ID)
	require.ErrorIs(t, err, errNotFound)
}

func TestReadModelStalenessContract(t *testing.T) {
	hub, auth, events := newTestHub(&fakeClock{}, &scriptedRandomness{})
	rm := NewReadModel(hub)

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	reg, _, err := hub.RegisterGame(adminCap.Token, "bomb panic")
	require.NoError(t, err)
	room, game, err := hub.CreateRoomWithGame(reg.ID, "alice", "room", 100, 2, 0)
	require.NoError(t, err)

	// the hub knows the room, the projection does not yet: retryable, not
	// missing
	_, err = rm.RoomView(room.ID)
	require.ErrorIs(t, err, errStaleReference)
	_, err = rm.GameView(game.ID)
	require.ErrorIs(t, err, errStaleReference)
	_, err = rm.RoomView("never-existed")
	require.ErrorIs(t, err, errNotFound)

	rm.CatchUp(events)
	view, err := rm.RoomView(room.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), view.EntryFee)

	// projection follows writes it has caught up to
	require.NoError(t, hub.JoinRoom(room.ID, "alice"))
	rm.CatchUp(events)
	view, err = rm.RoomView(room.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, view.Players)
	require.Len(t, rm.Rooms(), 1)
	require.Len(t, rm.Games(), 1)
}

func TestConfigureGameBetweenRounds(t *testing.T) {
	hub, auth, _ := newTestHub(&fakeClock{}, &scriptedRandomness{})

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	reg, _, err := hub.RegisterGame(adminCap.Token, "bomb panic")
	require.NoError(t, err)
	_, game, err := hub.CreateRoomWithGame(reg.ID, "alice", "room", 100, 2, 0)
	require.NoError(t, err)

	require.NoError(t, hub.ConfigureGame(game.ID, adminCap.Token, GameTuning{
		MaxHoldTimeMs:    4_000,
		ExplosionRateBps: 8_000,
		RewardDivisor:    50,
		DangerZoneBps:    2_500,
	}))
	tuning := game.Tuning()
	require.Equal(t, int64(4_000), tuning.MaxHoldTimeMs)
	require.Equal(t, uint64(8_000), tuning.ExplosionRateBps)
	require.Equal(t, uint64(50), tuning.RewardDivisor)
	require.Equal(t, uint64(2_500), tuning.DangerZoneBps)
}

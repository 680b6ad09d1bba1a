package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildIntentSplitsPoolWithDust(t *testing.T) {
	intent := buildSettlementIntent("r1", "g1", 0, "dave",
		[]string{"alice", "bob", "carol"}, 100, nil, nil)

	require.Equal(t, uint64(33), intent.SurvivorPayoutEach)
	require.Equal(t, uint64(1), intent.Remainder)

	addrs, amounts := intent.payoutVectors()
	require.Equal(t, []string{"alice", "bob", "carol"}, addrs)
	require.Equal(t, []uint64{34, 33, 33}, amounts)
	require.Equal(t, uint64(100), intent.totalPayout())
}

func TestBuildIntentScalesRewardsToPool(t *testing.T) {
	accrued := map[string]uint64{"alice": 150, "bob": 50}
	intent := buildSettlementIntent("r1", "g1", 0, "bob",
		[]string{"alice"}, 100, accrued, []string{"alice", "bob"})

	// accrual exceeded the pool; rewards scale down proportionally and the
	// survivor split gets whatever is left
	require.Equal(t, []HolderReward{
		{Player: "alice", Amount: 75},
		{Player: "bob", Amount: 25},
	}, intent.HolderRewards)
	require.Equal(t, uint64(0), intent.SurvivorPayoutEach)
	require.Equal(t, uint64(100), intent.totalPayout())
}

func TestPayoutVectorsAggregateSurvivorRewards(t *testing.T) {
	accrued := map[string]uint64{"alice": 30, "carol": 20}
	intent := buildSettlementIntent("r1", "g1", 0, "carol",
		[]string{"alice", "bob"}, 200, accrued, []string{"alice", "carol"})

	// pool 200, rewards 50, split 75 each; alice appears once with both
	addrs, amounts := intent.payoutVectors()
	require.Equal(t, []string{"alice", "bob", "carol"}, addrs)
	require.Equal(t, []uint64{105, 75, 20}, amounts)
	require.Equal(t, uint64(200), intent.totalPayout())
}

func endedPair(t *testing.T) (*GameState, *Room, *CapabilityAuthority, Capability) {
	t.Helper()

	clk := &fakeClock{ms: 1_000_000}
	rnd := &scriptedRandomness{}
	auth := NewCapabilityAuthority([]byte("test-secret"))

	gameCap, err := auth.IssueGameCap("reg-1")
	require.NoError(t, err)

	room := activeRoom([]string{"alice", "bob"}, 100)
	game := initializeGame("g1", "reg-1", room.ID, "test", 100, 2, GameTuning{})
	require.NoError(t, game.Join("alice"))
	require.NoError(t, game.Join("bob"))

	_, err = game.StartRound(rnd, clk, room.Pool())
	require.NoError(t, err)
	clk.advance(10_001)
	_, exploded, err := game.PassBomb(rnd, clk, "alice")
	require.NoError(t, err)
	require.True(t, exploded.RoundEnded)

	return game, room, auth, gameCap
}

func TestSettleRoundHappyPath(t *testing.T) {
	game, room, auth, gameCap := endedPair(t)

	intent, err := settleRoundWithHub(game, room, auth, gameCap.Token)
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, intent.Survivors)
	require.Equal(t, uint64(200), intent.SurvivorPayoutEach)
	require.Equal(t, RoomSettled, room.Status())

	amount, err := room.Claim("bob")
	require.NoError(t, err)
	require.Equal(t, uint64(200), amount)
}

func TestSettleRoundAtMostOnce(t *testing.T) {
	game, room, auth, gameCap := endedPair(t)

	_, err := settleRoundWithHub(game, room, auth, gameCap.Token)
	require.NoError(t, err)

	_, err = settleRoundWithHub(game, room, auth, gameCap.Token)
	require.ErrorIs(t, err, errAlreadyConsumed)
}

func TestSettleRoundRejectsForeignCapability(t *testing.T) {
	game, room, auth, _ := endedPair(t)

	otherCap, err := auth.IssueGameCap("reg-2")
	require.NoError(t, err)
	_, err = settleRoundWithHub(game, room, auth, otherCap.Token)
	require.ErrorIs(t, err, errUnauthorized)

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	_, err = settleRoundWithHub(game, room, auth, adminCap.Token)
	require.ErrorIs(t, err, errUnauthorized)

	// nothing was consumed by the rejected calls
	gameCap, err := auth.IssueGameCap("reg-1")
	require.NoError(t, err)
	_, err = settleRoundWithHub(game, room, auth, gameCap.Token)
	require.NoError(t, err)
}

func TestSettleRoundRejectsMismatchedRoom(t *testing.T) {
	game, _, auth, gameCap := endedPair(t)

	stranger := activeRoom([]string{"alice", "bob"}, 100)
	stranger.ID = "other-room"
	_, err := settleRoundWithHub(game, stranger, auth, gameCap.Token)
	require.ErrorIs(t, err, errUnauthorized)
}

func TestSettleRestoresIntentWhenRoomRejects(t *testing.T) {
	clk := &fakeClock{ms: 1_000_000}
	rnd := &scriptedRandomness{}
	auth := NewCapabilityAuthority([]byte("test-secret"))
	gameCap, err := auth.IssueGameCap("reg-1")
	require.NoError(t, err)

	room := activeRoom([]string{"alice", "bob"}, 100)
	game := initializeGame("g1", "reg-1", room.ID, "test", 100, 2, GameTuning{})
	require.NoError(t, game.Join("alice"))
	require.NoError(t, game.Join("bob"))

	// the captured pool disagrees with the room's escrow, so the room must
	// reject the settlement and the intent must survive for a retry
	_, err = game.StartRound(rnd, clk, room.Pool()+100)
	require.NoError(t, err)
	clk.advance(10_001)
	_, _, err = game.PassBomb(rnd, clk, "alice")
	require.NoError(t, err)

	_, err = settleRoundWithHub(game, room, auth, gameCap.Token)
	require.ErrorIs(t, err, errConservationViolation)
	require.Equal(t, RoomActive, room.Status())

	intent, err := game.ConsumeSettlementIntent()
	require.NoError(t, err)
	require.NotNil(t, intent)
}

package main

// SettlementIntent is the single-use summary of a finished round's payout
// obligations. It can only be built by round termination inside the engine
// and only destroyed by settlement; the consumed flag is checked on every
// entry so a second settlement can never touch the room.

type HolderReward struct {
	Player string `json:"player"`
	Amount uint64 `json:"amount"`
}

type SettlementIntent struct {
	RoomID             string         `json:"roomId"`
	GameID             string         `json:"gameId"`
	RoundID            uint64         `json:"roundId"`
	DeadPlayer         string         `json:"deadPlayer,omitempty"`
	Survivors          []string       `json:"survivors"`
	SurvivorPayoutEach uint64         `json:"survivorPayoutEach"`
	// Remainder is the integer dust left over by the uniform split; it goes
	// to the first survivor in roster order so the pool is conserved exactly.
	Remainder     uint64         `json:"remainder"`
	HolderRewards []HolderReward `json:"holderRewards"`

	consumed bool
}

// buildSettlementIntent derives payout obligations from the pool captured at
// round start and the rewards accrued during play. Rewards never invent
// value: if accrual exceeds the pool it is scaled down proportionally, and
// the survivor split absorbs whatever the rewards leave behind.
func buildSettlementIntent(roomID, gameID string, roundID uint64, deadPlayer string,
	survivors []string, pool uint64, accrued map[string]uint64, order []string) *SettlementIntent {

	rewards := make([]HolderReward, 0, len(order))
	var total uint64
	for _, p := range order {
		if accrued[p] > 0 {
			rewards = append(rewards, HolderReward{Player: p, Amount: accrued[p]})
			total += accrued[p]
		}
	}

	if total > pool && total > 0 {
		var scaledTotal uint64
		for i := range rewards {
			rewards[i].Amount = rewards[i].Amount * pool / total
			scaledTotal += rewards[i].Amount
		}
		total = scaledTotal
	}

	remaining := pool - total
	var each, remainder uint64
	if len(survivors) > 0 {
		each = remaining / uint64(len(survivors))
		remainder = remaining - each*uint64(len(survivors))
	} else {
		// no survivors cannot happen in play; fold everything into rewards
		// remainder so conservation still holds
		remainder = 0
		if remaining > 0 && len(rewards) > 0 {
			rewards[0].Amount += remaining
		}
	}

	return &SettlementIntent{
		RoomID:             roomID,
		GameID:             gameID,
		RoundID:            roundID,
		DeadPlayer:         deadPlayer,
		Survivors:          append([]string(nil), survivors...),
		SurvivorPayoutEach: each,
		Remainder:          remainder,
		HolderRewards:      rewards,
	}
}

// payoutVectors flattens the intent into the parallel address/amount vectors
// Room.Settle takes, aggregating players that appear both as survivor and as
// reward recipient.
func (si *SettlementIntent) payoutVectors() ([]string, []uint64) {
	amounts := make(map[string]uint64)
	var order []string

	add := func(player string, amount uint64) {
		if _, seen := amounts[player]; !seen {
			order = append(order, player)
		}
		amounts[player] += amount
	}

	for i, s := range si.Survivors {
		payout := si.SurvivorPayoutEach
		if i == 0 {
			payout += si.Remainder
		}
		add(s, payout)
	}
	for _, hr := range si.HolderRewards {
		add(hr.Player, hr.Amount)
	}

	addrs := make([]string, 0, len(order))
	outs := make([]uint64, 0, len(order))
	for _, p := range order {
		addrs = append(addrs, p)
		outs = append(outs, amounts[p])
	}
	return addrs, outs
}

func (si *SettlementIntent) totalPayout() uint64 {
	_, amounts := si.payoutVectors()
	var sum uint64
	for _, a := range amounts {
		sum += a
	}
	return sum
}

// settleRoundWithHub is the only path from a finished round to the escrow
// ledger. It consumes the intent and forwards it to Room.Settle as one
// operation: if the room rejects the settlement the intent is restored, so
// the pair either settles once or not at all.
func settleRoundWithHub(game *GameState, room *Room, auth *CapabilityAuthority, gameCapToken string) (*SettlementIntent, error) {
	if err := auth.VerifyGame(gameCapToken, game.RegistryID); err != nil {
		return nil, err
	}
	if room.ID != game.RoomID {
		return nil, errUnauthorized
	}

	intent, err := game.ConsumeSettlementIntent()
	if err != nil {
		return nil, err
	}

	addrs, amounts := intent.payoutVectors()
	if err := room.Settle(addrs, amounts, intent.Survivors); err != nil {
		game.restoreIntent()
		return nil, err
	}
	game.markSettled()
	return intent, nil
}

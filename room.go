package main

import (
	"sync"
)

// Room is the generic lobby/escrow object: players join, escrow the entry
// fee, and the pool is paid back out through exactly one settlement. The
// same Room is reused round after round via Reset.

type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomReady   RoomStatus = "ready"
	RoomActive  RoomStatus = "active"
	RoomSettled RoomStatus = "settled"
)

type Room struct {
	mu sync.Mutex

	ID         string
	Creator    string
	EntryFee   uint64
	MaxPlayers int

	status   RoomStatus
	joined   []string
	balances map[string]uint64
	ready    map[string]bool
	pool     uint64

	// written by Settle, consumed by Claim / Reset
	payouts   map[string]uint64
	survivors []string
}

func newRoom(id, creator string, entryFee uint64, maxPlayers int) *Room {
	return &Room{
		ID:         id,
		Creator:    creator,
		EntryFee:   entryFee,
		MaxPlayers: maxPlayers,
		status:     RoomWaiting,
		balances:   make(map[string]uint64),
		ready:      make(map[string]bool),
		payouts:    make(map[string]uint64),
	}
}

func (r *Room) Status() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) Pool() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pool
}

func (r *Room) isJoinedLocked(player string) bool {
	for _, p := range r.joined {
		if p == player {
			return true
		}
	}
	return false
}

// Join adds a player with zero escrow. Only a Waiting room accepts joins.
func (r *Room) Join(player string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomWaiting {
		return errPhaseViolation
	}
	if r.isJoinedLocked(player) {
		return errAlreadyJoined
	}
	if len(r.joined) >= r.MaxPlayers {
		return errRoomFull
	}
	r.joined = append(r.joined, player)
	return nil
}

// ReadyToPlay escrows the entry fee. The payment must match exactly; once
// every joined player has paid, the room flips to Ready.
func (r *Room) ReadyToPlay(player string, payment uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomWaiting {
		return errPhaseViolation
	}
	if !r.isJoinedLocked(player) {
		return errNotJoined
	}
	if r.ready[player] {
		return errAlreadyJoined
	}
	if payment != r.EntryFee {
		return errInsufficientPayment
	}

	r.balances[player] += payment
	r.pool += payment
	r.ready[player] = true

	allReady := true
	for _, p := range r.joined {
		if !r.ready[p] {
			allReady = false
			break
		}
	}
	if allReady {
		r.status = RoomReady
	}
	return nil
}

// Leave refunds any escrow and removes the player. Permitted only while
// Waiting so nobody can abandon an active wager.
func (r *Room) Leave(player string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomWaiting {
		return 0, errPhaseViolation
	}
	if !r.isJoinedLocked(player) {
		return 0, errNotJoined
	}

	refund := r.balances[player]
	r.pool -= refund
	delete(r.balances, player)
	delete(r.ready, player)
	for i, p := range r.joined {
		if p == player {
			r.joined = append(r.joined[:i], r.joined[i+1:]...)
			break
		}
	}
	return refund, nil
}

// Start moves a Ready room to Active. Irreversible until settlement.
// Capability checks happen at the hub; the room only enforces phase.
func (r *Room) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomReady {
		return errPhaseViolation
	}
	r.status = RoomActive
	return nil
}

// Settle credits payouts and moves the room to Settled. The amounts must sum
// to the pool exactly; anything else is a conservation violation and the
// room is left untouched. survivors is recorded for the later Reset.
func (r *Room) Settle(addrs []string, amounts []uint64, survivors []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomActive {
		return errPhaseViolation
	}
	if len(addrs) != len(amounts) {
		return errConservationViolation
	}
	var sum uint64
	for i, addr := range addrs {
		if !r.isJoinedLocked(addr) {
			return errNotJoined
		}
		sum += amounts[i]
	}
	if sum != r.pool {
		return errConservationViolation
	}

	for i, addr := range addrs {
		if amounts[i] > 0 {
			r.payouts[addr] += amounts[i]
		}
	}
	r.pool = 0
	r.balances = make(map[string]uint64)
	r.survivors = append([]string(nil), survivors...)
	r.status = RoomSettled
	return nil
}

// Claim pays out the caller's credited balance exactly once.
func (r *Room) Claim(player string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	amount := r.payouts[player]
	if amount == 0 {
		return 0, errNothingToClaim
	}
	delete(r.payouts, player)
	return amount, nil
}

// Reset returns a Settled room to Waiting for the next round. Survivors of
// the settled round remain joined; escrow and ready state are cleared.
func (r *Room) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomSettled {
		return errPhaseViolation
	}
	r.joined = append([]string(nil), r.survivors...)
	r.survivors = nil
	r.balances = make(map[string]uint64)
	r.ready = make(map[string]bool)
	r.pool = 0
	r.status = RoomWaiting
	return nil
}

// deletable reports whether administrative teardown is allowed.
func (r *Room) deletable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == RoomWaiting && len(r.joined) == 0
}

type RoomView struct {
	ID         string   `json:"roomId"`
	Creator    string   `json:"creator"`
	Status     string   `json:"status"`
	EntryFee   uint64   `json:"entryFee"`
	MaxPlayers int      `json:"maxPlayers"`
	Players    []string `json:"players"`
	ReadyCount int      `json:"readyCount"`
	Pool       uint64   `json:"pool"`
}

func (r *Room) View() RoomView {
	r.mu.Lock()
	defer r.mu.Unlock()

	readyCount := 0
	for _, p := range r.joined {
		if r.ready[p] {
			readyCount++
		}
	}
	return RoomView{
		ID:         r.ID,
		Creator:    r.Creator,
		Status:     string(r.status),
		EntryFee:   r.EntryFee,
		MaxPlayers: r.MaxPlayers,
		Players:    append([]string(nil), r.joined...),
		ReadyCount: readyCount,
		Pool:       r.pool,
	}
}

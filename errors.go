package main

import (
	"errors"
	"net/http"
)

// Every mutating call is all-or-nothing: these are checked before any state
// is touched, so a rejected call leaves the target object unchanged.
var (
	errPhaseViolation        = errors.New("PHASE_VIOLATION")
	errUnauthorized          = errors.New("UNAUTHORIZED")
	errInsufficientPayment   = errors.New("INSUFFICIENT_PAYMENT")
	errConservationViolation = errors.New("CONSERVATION_VIOLATION")
	errStaleReference        = errors.New("STALE_REFERENCE")
	errAlreadyConsumed       = errors.New("ALREADY_CONSUMED")
	errNotFound              = errors.New("NOT_FOUND")
	errRoomFull              = errors.New("ROOM_FULL")
	errAlreadyJoined         = errors.New("ALREADY_JOINED")
	errNotJoined             = errors.New("NOT_JOINED")
	errNotHolder             = errors.New("NOT_HOLDER")
	errNotEnoughPlayers      = errors.New("NOT_ENOUGH_PLAYERS")
	errNothingToClaim        = errors.New("NOTHING_TO_CLAIM")
	errNotEmpty              = errors.New("NOT_EMPTY")
)

// httpStatusFor maps a call rejection to a response status.
// STALE_REFERENCE is a retry hint, not a failure: the write committed but the
// read model has not caught up yet.
func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, errStaleReference):
		return http.StatusConflict
	case errors.Is(err, errPhaseViolation),
		errors.Is(err, errAlreadyConsumed),
		errors.Is(err, errRoomFull),
		errors.Is(err, errAlreadyJoined),
		errors.Is(err, errNotJoined),
		errors.Is(err, errNotHolder),
		errors.Is(err, errNotEnoughPlayers),
		errors.Is(err, errNotEmpty),
		errors.Is(err, errNothingToClaim):
		return http.StatusConflict
	case errors.Is(err, errInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, errConservationViolation):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package service

import (
	"errors"
	"fmt"
)

// Wire codes for precondition failures. Handlers map these into the response
// envelope unchanged.
const (
	CodeQueueFull    = 100201
	CodeSeatOccupied = 100202
	CodeFrozen       = 100203
	CodeInBattle     = 100204
	CodeNotSeated    = 100205
	CodeInvalidSeat  = 100206
)

// Wire codes for identity failures.
const (
	CodeInvalidMobile   = 100101
	CodeSMSBucketEmpty  = 100102
	CodeSMSCodeExpired  = 100103
	CodeSMSCodeMismatch = 100104
)

// RequestError is a rejected request outside the room engine; carries its
// wire code straight into the envelope.
type RequestError struct {
	Code int
	Msg  string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request rejected (%d): %s", e.Code, e.Msg)
}

// TransitionError is a rejected room state transition. The room stays
// untouched; the caller gets a domain code instead of a 5xx.
type TransitionError struct {
	Code int
	Msg  string
	// SecondsLeft is set for Frozen rejections.
	SecondsLeft int64
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition rejected (%d): %s", e.Code, e.Msg)
}

func errQueueFull() *TransitionError {
	return &TransitionError{Code: CodeQueueFull, Msg: "game queue is full"}
}

func errSeatOccupied() *TransitionError {
	return &TransitionError{Code: CodeSeatOccupied, Msg: "seat is occupied"}
}

func errFrozen(secondsLeft int64) *TransitionError {
	return &TransitionError{Code: CodeFrozen, Msg: "temporarily frozen out of the queue", SecondsLeft: secondsLeft}
}

func errInBattle() *TransitionError {
	return &TransitionError{Code: CodeInBattle, Msg: "user is in a game battle"}
}

func errNotSeated() *TransitionError {
	return &TransitionError{Code: CodeNotSeated, Msg: "user is not seated in the queue"}
}

func errInvalidSeat() *TransitionError {
	return &TransitionError{Code: CodeInvalidSeat, Msg: "seat coordinates outside the queue grid"}
}

// ErrLockUnavailable means the room lock could not be taken; surfaced as an
// internal error with its own alarm tag.
var ErrLockUnavailable = errors.New("room lock unavailable")

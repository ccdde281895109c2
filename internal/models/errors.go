package models

import (
	"errors"
	"fmt"
)

// Code is a string error code reported at the RPC boundary.
// Consumers must treat unknown codes as a generic failure.
type Code string

const (
	CodeInvalidInput         Code = "invalid_input"
	CodeRoomNotFound         Code = "room_not_found"
	CodeRoomExists           Code = "room_exists"
	CodeRoomFull             Code = "room_full"
	CodeNotAParticipant      Code = "not_a_participant"
	CodeTurnMismatch         Code = "turn_mismatch"
	CodeStaleMove            Code = "stale_move"
	CodeSessionFinished      Code = "session_finished"
	CodeSessionNotActive     Code = "session_not_active"
	CodeNotTimedOut          Code = "not_timed_out"
	CodeForfeitNotReached    Code = "forfeit_not_reached"
	CodeUnauthorized         Code = "unauthorized"
	CodeWinnerMismatch       Code = "winner_mismatch"
	CodeNotStaked            Code = "not_staked"
	CodeNotFinished          Code = "not_finished"
	CodeDrawNotSettleable    Code = "draw_not_settleable"
	CodeNotADraw             Code = "not_a_draw"
	CodeSettlementInProgress Code = "settlement_in_progress"
	CodeInstructionMissing   Code = "instruction_unavailable"
	CodePayoutFailed         Code = "payout_failed"
	CodeStoreUnavailable     Code = "store_unavailable"
	CodeInternal             Code = "internal"
)

// Class groups codes by how a caller is expected to react
type Class int

const (
	ClassUnknown Class = iota
	ClassInput
	ClassConsistency
	ClassTransient
	ClassTerminal
)

// Class returns the handling class of the code
func (c Code) Class() Class {
	switch c {
	case CodeInvalidInput, CodeRoomExists:
		return ClassInput
	case CodeRoomNotFound, CodeRoomFull, CodeNotAParticipant, CodeTurnMismatch, CodeStaleMove,
		CodeSessionFinished, CodeSessionNotActive, CodeNotTimedOut, CodeForfeitNotReached,
		CodeUnauthorized, CodeWinnerMismatch, CodeNotStaked, CodeNotFinished,
		CodeDrawNotSettleable, CodeNotADraw:
		return ClassConsistency
	case CodeSettlementInProgress, CodePayoutFailed, CodeStoreUnavailable:
		return ClassTransient
	case CodeInstructionMissing:
		return ClassTerminal
	default:
		return ClassUnknown
	}
}

// Error is an application-level failure carrying a wire code
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Errorf builds an *Error with a formatted message
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewError builds an *Error with no message
func NewError(code Code) *Error {
	return &Error{Code: code}
}

// CodeOf extracts the wire code from err. Errors that carry no code
// report CodeInternal; nil reports "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

package models

// GameStatus represents the lifecycle state of a session
type GameStatus string

const (
	StatusWaiting   GameStatus = "waiting"
	StatusActive    GameStatus = "active"
	StatusFinished  GameStatus = "finished"
	StatusCancelled GameStatus = "cancelled"
	StatusVoid      GameStatus = "void"
)

// Terminal reports whether no further transition can leave this status
func (s GameStatus) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusVoid
}

// CanTransition enforces the one-directional lifecycle:
// waiting -> active -> {finished, cancelled}, waiting -> cancelled.
func (s GameStatus) CanTransition(to GameStatus) bool {
	switch s {
	case StatusWaiting:
		return to == StatusActive || to == StatusCancelled || to == StatusVoid
	case StatusActive:
		return to == StatusFinished || to == StatusCancelled || to == StatusVoid
	default:
		return false
	}
}

// GameMode governs whether the readiness gate and settlement are engaged
type GameMode string

const (
	ModeCasual  GameMode = "casual"
	ModeRanked  GameMode = "ranked"
	ModePrivate GameMode = "private"
	ModeFree    GameMode = "free"
)

// Valid reports whether the mode is one of the known modes
func (m GameMode) Valid() bool {
	switch m {
	case ModeCasual, ModeRanked, ModePrivate, ModeFree:
		return true
	}
	return false
}

// RequiresQuorum is true for modes where every participant must accept the rules
func (m GameMode) RequiresQuorum() bool {
	return m == ModeRanked || m == ModePrivate
}

// Staked is true for modes whose outcome is paid out externally
func (m GameMode) Staked() bool {
	return m == ModeRanked || m == ModePrivate
}

// WinReason describes how a match reached its terminal state
type WinReason string

const (
	ReasonNormal  WinReason = "normal"
	ReasonResign  WinReason = "resign"
	ReasonTimeout WinReason = "timeout"
	ReasonDraw    WinReason = "draw"
)

// Settleable reports whether the reason can be paid out through win settlement.
// Draws follow the refund path.
func (r WinReason) Settleable() bool {
	return r == ReasonNormal || r == ReasonResign || r == ReasonTimeout
}

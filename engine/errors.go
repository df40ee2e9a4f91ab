package engine

import "errors"

var (
	ErrInsufficientStake     = errors.New("stake does not match the required amount")
	ErrInsufficientTorpedoes = errors.New("no torpedoes left")
	ErrInsufficientMines     = errors.New("no mines left")
	ErrNotYourTurn           = errors.New("not your turn")
	ErrNotAParticipant       = errors.New("caller is not a participant of this match")
	ErrMatchNotActive        = errors.New("match is not active")
	ErrNotInvited            = errors.New("caller was not invited to this match")
	ErrAlreadyRegistered     = errors.New("player already registered")
	ErrTimeoutNotElapsed     = errors.New("turn timeout has not elapsed")
	ErrSystemPaused          = errors.New("system is paused")

	ErrMatchNotFound    = errors.New("match not found")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrMatchNotPending  = errors.New("match is no longer pending")
	ErrSelfPlay         = errors.New("cannot play against yourself")
	ErrInvalidThrust    = errors.New("thrust must be -1, 0 or 1 on each axis")
	ErrInvalidAction    = errors.New("unknown weapon action")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInsufficientFees = errors.New("fee balance too low")
	ErrTreasury         = errors.New("treasury transfer failed")
	ErrReadOnly         = errors.New("write attempted in a read-only view")
)

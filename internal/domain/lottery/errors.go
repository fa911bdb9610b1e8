package lottery

import "errors"

// Engine-wide error taxonomy. Every failure is terminal for the call that
// produced it; callers distinguish reactions by sentinel.
var (
	ErrInvalidTicketNumber    = errors.New("invalid ticket number")
	ErrInvalidBreakdown       = errors.New("invalid breakdown")
	ErrInvalidShares          = errors.New("invalid pot shares")
	ErrInvalidAddress         = errors.New("invalid routing address")
	ErrAlreadyOpen            = errors.New("lottery already open")
	ErrWrongStatus            = errors.New("wrong lottery status")
	ErrLotteryNotOver         = errors.New("lottery not over")
	ErrLotteryNotClaimable    = errors.New("lottery not claimable")
	ErrAlreadyClaimed         = errors.New("ticket already claimed")
	ErrBracketMismatch        = errors.New("declared bracket mismatch")
	ErrAlreadyPicked          = errors.New("winners already picked")
	ErrAlreadyUpgraded        = errors.New("schema already upgraded")
	ErrNotWinner              = errors.New("ticket not in winner set")
	ErrInvalidQuantity        = errors.New("invalid ticket quantity")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrTransferFailed         = errors.New("token transfer failed")
	ErrRandomnessNotFulfilled = errors.New("randomness not fulfilled")
	ErrRoundNotFound          = errors.New("round not found")
	ErrTicketNotFound         = errors.New("ticket not found")
)

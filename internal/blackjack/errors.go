package blackjack

import "errors"

// Intent rejections. Table state is untouched whenever one of these is
// returned; the gateway may acknowledge them to the caller but must not
// broadcast.
var (
	ErrTableFull     = errors.New("blackjack: table is full")
	ErrAlreadySeated = errors.New("blackjack: identity already seated")
	ErrSeatTaken     = errors.New("blackjack: seat is taken")
	ErrInvalidSeat   = errors.New("blackjack: invalid seat")
	ErrNotSeated     = errors.New("blackjack: identity not seated")
	ErrBadStatus     = errors.New("blackjack: intent not valid in current status")
	ErrNotYourTurn   = errors.New("blackjack: not this player's turn")
	ErrNoPlayers     = errors.New("blackjack: no seated players")
	ErrBetRange      = errors.New("blackjack: bet outside table limits")
)

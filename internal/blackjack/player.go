package blackjack

import "blackjacktable/internal/deck"

// Player is the per-seat state for a seated identity. A player persists
// across rounds for as long as the seat is held; hand and flags are
// round-scoped and reset when the next round is dealt.
type Player struct {
	ID       string
	ConnID   string
	Seat     int
	Bet      int
	Hand     []deck.Card
	Done     bool
	Busted   bool
	Standing bool
}

func (p *Player) resetForRound() {
	p.Hand = nil
	p.Done = false
	p.Busted = false
	p.Standing = false
}

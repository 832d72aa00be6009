package blackjack

import "blackjacktable/internal/deck"

// Outcome is a seat's settlement result against the dealer.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomePush Outcome = "push"
)

// Result records one seat's settlement for the round that just ended.
// Results carry no payout: applying them to balances is the ledger's job.
type Result struct {
	PlayerID    string  `json:"playerId"`
	Seat        int     `json:"seat"`
	Outcome     Outcome `json:"outcome"`
	PlayerValue int     `json:"playerValue"`
	DealerValue int     `json:"dealerValue"`
	Bet         int     `json:"bet"`
}

// SeatState mirrors a Player on the wire, with the evaluated hand total.
type SeatState struct {
	PlayerID  string      `json:"playerId"`
	Seat      int         `json:"seat"`
	Bet       int         `json:"bet"`
	Hand      []deck.Card `json:"hand"`
	HandValue int         `json:"handValue"`
	Done      bool        `json:"done"`
	Busted    bool        `json:"busted"`
	Standing  bool        `json:"standing"`
}

// Snapshot is the full table state broadcast after every accepted intent.
// There is no diff protocol: clients treat each snapshot as the whole truth.
type Snapshot struct {
	TableID       string      `json:"tableId"`
	Status        Status      `json:"status"`
	Seats         []SeatState `json:"seats"`
	DealerHand    []deck.Card `json:"dealerHand"`
	DealerValue   int         `json:"dealerValue"`
	PlayerOrder   []string    `json:"playerOrder"`
	CurrentIndex  int         `json:"currentPlayerIndex"`
	CurrentTurn   string      `json:"currentTurn,omitempty"`
	DeckRemaining int         `json:"deckRemaining"`
	RoundID       string      `json:"roundId,omitempty"`
	Results       []Result    `json:"results,omitempty"`
}

// Broadcaster fans snapshots out to connected viewers. Both calls are
// fire-and-forget; delivery failures never reach the table.
type Broadcaster interface {
	// Send delivers a snapshot to a single connection.
	Send(connID string, snap Snapshot)
	// Broadcast delivers a snapshot to every connection attached to the
	// table except the listed ones.
	Broadcast(snap Snapshot, except ...string)
}

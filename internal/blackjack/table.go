package blackjack

import (
	"fmt"
	rand "math/rand/v2"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"blackjacktable/internal/deck"
)

// Status identifies which intents the table currently accepts.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusBetting    Status = "betting"
	StatusPlaying    Status = "playing"
	StatusDealerTurn Status = "dealerTurn"
	StatusRoundOver  Status = "roundover"
)

const (
	// DefaultMaxSeats is the seat count of a standard table.
	DefaultMaxSeats = 5

	// DefaultShoeLowWater is the remaining-card count under which the shoe
	// is replaced wholesale at the start of a round. It always covers a full
	// deal: five seats plus the dealer need twelve cards.
	DefaultShoeLowWater = 15

	// dealerStand is the total at or above which the dealer stops drawing.
	// Ace promotion in HandValue means a soft 17 already evaluates to 17,
	// so the dealer stands on soft 17.
	dealerStand = 17
)

// Config carries the per-table settings applied at construction.
type Config struct {
	ID           string
	MaxSeats     int
	ShoeLowWater int
	MinBet       int // 0 disables the bound
	MaxBet       int // 0 disables the bound
}

// Table is the authoritative state machine for one blackjack table: seats,
// bets, the shoe, the dealer hand and the turn cursor. It is not safe for
// concurrent use; the hosting layer must deliver one intent at a time and
// let each call run to completion, cascading dealer play included.
type Table struct {
	id           string
	maxSeats     int
	shoeLowWater int
	minBet       int
	maxBet       int

	players map[int]*Player // seat -> player
	order   []string        // identities, seat-ascending; rebuilt on join/leave only
	current int             // index into order of the acting seat
	dealer  []deck.Card
	shoe    *deck.Deck
	status  Status
	roundID string
	results []Result

	rng       *rand.Rand
	broadcast Broadcaster
	logger    *log.Logger
}

// NewTable creates a table with a freshly shuffled shoe. The broadcaster
// receives a full snapshot after every accepted state-changing intent.
func NewTable(cfg Config, rng *rand.Rand, b Broadcaster, logger *log.Logger) *Table {
	if cfg.MaxSeats <= 0 {
		cfg.MaxSeats = DefaultMaxSeats
	}
	if cfg.ShoeLowWater <= 0 {
		cfg.ShoeLowWater = DefaultShoeLowWater
	}

	return &Table{
		id:           cfg.ID,
		maxSeats:     cfg.MaxSeats,
		shoeLowWater: cfg.ShoeLowWater,
		minBet:       cfg.MinBet,
		maxBet:       cfg.MaxBet,
		players:      make(map[int]*Player),
		shoe:         deck.New(rng),
		status:       StatusWaiting,
		rng:          rng,
		broadcast:    b,
		logger:       logger.WithPrefix("table").With("table", cfg.ID),
	}
}

// ID returns the table identifier.
func (t *Table) ID() string { return t.id }

// Status returns the current table status.
func (t *Table) Status() Status { return t.status }

// MaxSeats returns the seat count.
func (t *Table) MaxSeats() int { return t.maxSeats }

// Seated returns the number of occupied seats.
func (t *Table) Seated() int { return len(t.players) }

// CurrentTurn returns the identity whose action is currently accepted, or ""
// outside the playing phase.
func (t *Table) CurrentTurn() string {
	if t.status != StatusPlaying {
		return ""
	}
	return t.currentTurnID()
}

// Join seats identity at the requested seat with zero bet and an empty hand.
// Joining is allowed in any status; a seat claimed while a round is running
// sits out until the next deal.
func (t *Table) Join(connID, identity string, seat int) error {
	if seat < 1 || seat > t.maxSeats {
		return ErrInvalidSeat
	}
	if len(t.players) >= t.maxSeats {
		return ErrTableFull
	}
	if t.playerByID(identity) != nil {
		return ErrAlreadySeated
	}
	if _, taken := t.players[seat]; taken {
		return ErrSeatTaken
	}

	p := &Player{ID: identity, ConnID: connID, Seat: seat}
	if t.status == StatusPlaying || t.status == StatusDealerTurn {
		// Effective next round: the turn scan must skip this seat.
		p.Done = true
	}
	t.players[seat] = p
	t.recomputeOrder()

	t.logger.Info("player joined", "player", identity, "seat", seat, "seated", len(t.players))
	t.publish()
	return nil
}

// Leave vacates identity's seat. In-round card state is untouched; the turn
// order just shortens. If the departing player held the acting turn the scan
// resumes immediately so the table cannot stall on them.
func (t *Table) Leave(identity string) error {
	p := t.playerByID(identity)
	if p == nil {
		return ErrNotSeated
	}

	delete(t.players, p.Seat)
	t.recomputeOrder()
	t.logger.Info("player left", "player", identity, "seat", p.Seat, "seated", len(t.players))

	if t.status == StatusPlaying {
		if err := t.resumeTurn(); err != nil {
			// Leaving is not undoable; surface the shoe fault and stop.
			return err
		}
	}
	t.publish()
	return nil
}

// PlaceBet stages identity's bet for the next round, replacing any previous
// amount. Only accepted during the betting window.
func (t *Table) PlaceBet(identity string, amount int) error {
	t.refreshAfterRound()
	if t.status != StatusWaiting && t.status != StatusBetting {
		return ErrBadStatus
	}
	p := t.playerByID(identity)
	if p == nil {
		return ErrNotSeated
	}
	if amount < 0 {
		return ErrBetRange
	}
	if t.minBet > 0 && amount < t.minBet {
		return ErrBetRange
	}
	if t.maxBet > 0 && amount > t.maxBet {
		return ErrBetRange
	}

	p.Bet = amount
	t.status = StatusBetting
	t.logger.Debug("bet placed", "player", identity, "bet", amount)
	t.publish()
	return nil
}

// StartRound deals the staged round: two interleaved passes giving one card
// to each seat in turn order and then one to the dealer. The shoe is replaced
// wholesale when it has fallen under the low-water mark.
func (t *Table) StartRound() error {
	t.refreshAfterRound()
	if t.status != StatusBetting {
		return ErrBadStatus
	}
	if len(t.players) == 0 {
		return ErrNoPlayers
	}

	if t.shoe.Remaining() < t.shoeLowWater {
		t.shoe = deck.New(t.rng)
		t.logger.Debug("shoe replaced", "remaining", t.shoe.Remaining())
	}

	for _, p := range t.players {
		p.resetForRound()
	}
	t.dealer = nil
	t.results = nil

	for pass := 0; pass < 2; pass++ {
		for _, id := range t.order {
			p := t.playerByID(id)
			if p == nil {
				return fmt.Errorf("blackjack: turn order lists unseated player %s", id)
			}
			card, err := t.shoe.Draw()
			if err != nil {
				t.logger.Error("shoe exhausted mid-deal", "player", id, "pass", pass)
				return err
			}
			p.Hand = append(p.Hand, card)
		}
		card, err := t.shoe.Draw()
		if err != nil {
			t.logger.Error("shoe exhausted mid-deal", "pass", pass)
			return err
		}
		t.dealer = append(t.dealer, card)
	}

	t.status = StatusPlaying
	t.current = 0
	t.roundID = uuid.New().String()
	t.logger.Info("round started", "round", t.roundID, "players", len(t.order), "shoe", t.shoe.Remaining())
	t.publish()
	return nil
}

// Hit draws one card into the acting player's hand. A bust ends the turn and
// advances the cursor, cascading into dealer play when every seat is done.
func (t *Table) Hit(identity string) error {
	if t.status != StatusPlaying {
		return ErrBadStatus
	}
	if identity != t.currentTurnID() {
		return ErrNotYourTurn
	}
	p := t.playerByID(identity)
	if p == nil {
		return fmt.Errorf("blackjack: acting player %s not seated", identity)
	}

	card, err := t.shoe.Draw()
	if err != nil {
		t.logger.Error("shoe exhausted mid-hit", "player", identity)
		return err
	}
	p.Hand = append(p.Hand, card)

	if HandValue(p.Hand) > 21 {
		p.Busted = true
		p.Done = true
		if err := t.advanceTurn(); err != nil {
			// Roll the hit back so no later broadcast shows a half-applied
			// cascade.
			p.Hand = p.Hand[:len(p.Hand)-1]
			p.Busted = false
			p.Done = false
			return err
		}
	}
	t.publish()
	return nil
}

// Stand ends the acting player's turn without drawing.
func (t *Table) Stand(identity string) error {
	if t.status != StatusPlaying {
		return ErrBadStatus
	}
	if identity != t.currentTurnID() {
		return ErrNotYourTurn
	}
	p := t.playerByID(identity)
	if p == nil {
		return fmt.Errorf("blackjack: acting player %s not seated", identity)
	}

	p.Standing = true
	p.Done = true
	if err := t.advanceTurn(); err != nil {
		p.Standing = false
		p.Done = false
		return err
	}
	t.publish()
	return nil
}

// Reclaim rebinds a seated identity to a new connection, returning the
// previous connection ref so the gateway can terminate it. Game state is
// untouched: reconnection is keyed by identity, last writer wins.
func (t *Table) Reclaim(identity, connID string) (string, bool) {
	p := t.playerByID(identity)
	if p == nil || p.ConnID == connID {
		return "", false
	}
	old := p.ConnID
	p.ConnID = connID
	return old, true
}

// Snapshot copies the full table state for broadcast. Hands are copied so a
// retained snapshot never observes later mutations.
func (t *Table) Snapshot() Snapshot {
	seatNums := funk.Keys(t.players).([]int)
	sort.Ints(seatNums)

	seats := make([]SeatState, 0, len(seatNums))
	for _, seat := range seatNums {
		p := t.players[seat]
		hand := make([]deck.Card, len(p.Hand))
		copy(hand, p.Hand)
		seats = append(seats, SeatState{
			PlayerID:  p.ID,
			Seat:      p.Seat,
			Bet:       p.Bet,
			Hand:      hand,
			HandValue: HandValue(p.Hand),
			Done:      p.Done,
			Busted:    p.Busted,
			Standing:  p.Standing,
		})
	}

	dealer := make([]deck.Card, len(t.dealer))
	copy(dealer, t.dealer)

	var turn string
	if t.status == StatusPlaying {
		turn = t.currentTurnID()
	}

	order := make([]string, len(t.order))
	copy(order, t.order)

	return Snapshot{
		TableID:       t.id,
		Status:        t.status,
		Seats:         seats,
		DealerHand:    dealer,
		DealerValue:   HandValue(t.dealer),
		PlayerOrder:   order,
		CurrentIndex:  t.current,
		CurrentTurn:   turn,
		DeckRemaining: t.shoe.Remaining(),
		RoundID:       t.roundID,
		Results:       append([]Result(nil), t.results...),
	}
}

// advanceTurn moves the cursor forward to the next seat still owed a turn.
// When every seat is done the dealer plays out and the round settles within
// the same call; the dealer's turn is never an externally triggered intent.
func (t *Table) advanceTurn() error {
	for t.current+1 < len(t.order) {
		t.current++
		p := t.playerByID(t.order[t.current])
		if p == nil {
			return fmt.Errorf("blackjack: turn order lists unseated player %s", t.order[t.current])
		}
		if !p.Done {
			return nil
		}
	}

	t.status = StatusDealerTurn
	if err := t.dealerPlay(); err != nil {
		t.status = StatusPlaying
		return err
	}
	return nil
}

// resumeTurn re-validates the cursor after the seat set shrank mid-round. If
// the seat it pointed at is gone or done, the scan continues; with no undone
// seat left the dealer plays immediately.
func (t *Table) resumeTurn() error {
	for t.current < len(t.order) {
		p := t.playerByID(t.order[t.current])
		if p != nil && !p.Done {
			return nil
		}
		t.current++
	}

	t.status = StatusDealerTurn
	if err := t.dealerPlay(); err != nil {
		t.status = StatusPlaying
		return err
	}
	return nil
}

// dealerPlay draws until the dealer hand reaches 17 or better. Draws are
// staged locally so a shoe fault leaves the dealer hand untouched.
func (t *Table) dealerPlay() error {
	hand := append([]deck.Card(nil), t.dealer...)
	for HandValue(hand) < dealerStand {
		card, err := t.shoe.Draw()
		if err != nil {
			t.logger.Error("shoe exhausted during dealer play", "drawn", len(hand)-len(t.dealer))
			return err
		}
		hand = append(hand, card)
	}
	t.dealer = hand
	t.endRound()
	return nil
}

// endRound settles every seat in turn order against the dealer. Outcomes are
// logged and carried in snapshots until the next deal; bets and hands persist
// so the next StartRound can reset them.
func (t *Table) endRound() {
	t.status = StatusRoundOver
	dealerValue := HandValue(t.dealer)

	results := make([]Result, 0, len(t.order))
	for _, id := range t.order {
		p := t.playerByID(id)
		if p == nil {
			continue
		}
		if len(p.Hand) == 0 {
			// Joined mid-round; nothing to settle.
			continue
		}
		value := HandValue(p.Hand)

		var outcome Outcome
		switch {
		case p.Busted:
			outcome = OutcomeLoss
		case dealerValue > 21 || value > dealerValue:
			outcome = OutcomeWin
		case value == dealerValue:
			outcome = OutcomePush
		default:
			outcome = OutcomeLoss
		}

		results = append(results, Result{
			PlayerID:    id,
			Seat:        p.Seat,
			Outcome:     outcome,
			PlayerValue: value,
			DealerValue: dealerValue,
			Bet:         p.Bet,
		})
		t.logger.Info("round settled",
			"round", t.roundID,
			"player", id,
			"seat", p.Seat,
			"outcome", outcome,
			"player_value", value,
			"dealer_value", dealerValue,
			"bet", p.Bet)
	}
	t.results = results
}

// refreshAfterRound folds a finished round back into the betting window:
// roundover re-evaluates to betting when staged bets remain, else waiting.
// Deferred to the next betting-window intent so the settled snapshot is the
// one clients observe.
func (t *Table) refreshAfterRound() {
	if t.status != StatusRoundOver {
		return
	}
	t.status = StatusWaiting
	for _, p := range t.players {
		if p.Bet > 0 {
			t.status = StatusBetting
			return
		}
	}
}

// recomputeOrder rebuilds the seat-ascending turn order cache. Join and Leave
// are its only callers; every other mutation leaves the cache alone. Mid-round
// the cursor is re-pointed at the acting identity so an insertion below their
// seat cannot hand them someone else's turn.
func (t *Table) recomputeOrder() {
	var acting string
	if t.status == StatusPlaying && t.current < len(t.order) {
		acting = t.order[t.current]
	}

	seats := funk.Keys(t.players).([]int)
	sort.Ints(seats)
	t.order = funk.Map(seats, func(seat int) string {
		return t.players[seat].ID
	}).([]string)

	if acting != "" {
		if idx := funk.IndexOf(t.order, acting); idx >= 0 {
			t.current = idx
		}
	}
}

func (t *Table) currentTurnID() string {
	if t.current < 0 || t.current >= len(t.order) {
		return ""
	}
	return t.order[t.current]
}

// playerByID scans the seats for identity. Linear on purpose: seat counts
// are single digits.
func (t *Table) playerByID(identity string) *Player {
	for _, p := range t.players {
		if p.ID == identity {
			return p
		}
	}
	return nil
}

func (t *Table) publish() {
	if t.broadcast == nil {
		return
	}
	t.broadcast.Broadcast(t.Snapshot())
}

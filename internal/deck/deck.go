package deck

import (
	"errors"
	rand "math/rand/v2"
)

// Size is the number of cards in a fresh deck.
const Size = 52

// ErrExhausted is returned by Draw on an empty deck. During a round this is
// an invariant violation: the shoe is only replenished between rounds.
var ErrExhausted = errors.New("deck: exhausted")

// Deck is an ordered sequence of cards consumed from the top. A fresh deck
// holds exactly one of each of the 52 rank and suit combinations.
type Deck struct {
	cards []Card
}

// New returns a full 52-card deck shuffled with the supplied rng.
func New(rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]Card, 0, Size)}
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, Card{Rank: rank, Suit: suit})
		}
	}
	d.shuffle(rng)
	return d
}

// NewFromCards returns a deck that deals the given cards in the order listed.
// Intended for deterministic tests and replays.
func NewFromCards(cards ...Card) *Deck {
	d := &Deck{cards: make([]Card, len(cards))}
	for i, c := range cards {
		d.cards[len(cards)-1-i] = c
	}
	return d
}

// MustParse builds a deck from a concatenated card string like "AsKdTh",
// dealt left to right. Panics on malformed input; test helper.
func MustParse(s string) *Deck {
	cards, err := ParseMany(s)
	if err != nil {
		panic(err)
	}
	return NewFromCards(cards...)
}

// shuffle is an unbiased Fisher-Yates pass: walk from the last position down,
// swapping each with a uniformly chosen position at or before it.
func (d *Deck) shuffle(rng *rand.Rand) {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrExhausted
	}
	card := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return card, nil
}

// Remaining returns the number of cards left.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

package blackjack

import "blackjacktable/internal/deck"

// HandValue computes the best blackjack total for a hand. Aces start counted
// as 1 and are promoted to 11 one at a time while the total stays at or under
// 21, so a hand never has more than one interpretation. Totals over 21 are
// returned as-is; callers detect a bust by comparing against 21.
func HandValue(hand []deck.Card) int {
	total, aces := 0, 0
	for _, c := range hand {
		switch {
		case c.IsAce():
			aces++
			total++
		case c.Rank >= deck.Ten:
			total += 10
		default:
			total += int(c.Rank)
		}
	}
	for aces > 0 && total+10 <= 21 {
		total += 10
		aces--
	}
	return total
}

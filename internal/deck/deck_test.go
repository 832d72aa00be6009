package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjacktable/internal/randutil"
)

func TestNewDealsEveryCardOnce(t *testing.T) {
	t.Parallel()

	d := New(randutil.Seeded(1))
	require.Equal(t, Size, d.Remaining())

	seen := make(map[Card]bool, Size)
	for i := 0; i < Size; i++ {
		card, err := d.Draw()
		require.NoError(t, err)
		assert.False(t, seen[card], "card %s dealt twice", card)
		seen[card] = true
	}

	assert.Len(t, seen, Size)
	assert.Equal(t, 0, d.Remaining())
}

func TestDrawExhausted(t *testing.T) {
	t.Parallel()

	d := New(randutil.Seeded(1))
	for i := 0; i < Size; i++ {
		_, err := d.Draw()
		require.NoError(t, err)
	}

	_, err := d.Draw()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestDrawAccounting(t *testing.T) {
	t.Parallel()

	d := New(randutil.Seeded(7))
	drawn := 0
	for d.Remaining() > 40 {
		_, err := d.Draw()
		require.NoError(t, err)
		drawn++
	}
	assert.Equal(t, Size, drawn+d.Remaining())
}

func TestSameSeedSameOrder(t *testing.T) {
	t.Parallel()

	a := New(randutil.Seeded(42))
	b := New(randutil.Seeded(42))

	for i := 0; i < Size; i++ {
		ca, err := a.Draw()
		require.NoError(t, err)
		cb, err := b.Draw()
		require.NoError(t, err)
		assert.Equal(t, ca, cb, "position %d", i)
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	t.Parallel()

	a := New(randutil.Seeded(1))
	b := New(randutil.Seeded(2))

	same := true
	for i := 0; i < Size; i++ {
		ca, _ := a.Draw()
		cb, _ := b.Draw()
		if ca != cb {
			same = false
			break
		}
	}
	assert.False(t, same, "two seeds produced identical shuffles")
}

func TestNewFromCardsDealsInListedOrder(t *testing.T) {
	t.Parallel()

	d := MustParse("AsKdTh")
	require.Equal(t, 3, d.Remaining())

	for _, want := range []string{"As", "Kd", "Th"} {
		card, err := d.Draw()
		require.NoError(t, err)
		assert.Equal(t, want, card.String())
	}

	_, err := d.Draw()
	assert.ErrorIs(t, err, ErrExhausted)
}

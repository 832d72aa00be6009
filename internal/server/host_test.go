package server

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjacktable/internal/blackjack"
	"blackjacktable/internal/randutil"
)

// stubGateway records outbound traffic in place of the websocket layer.
type stubGateway struct {
	mu         sync.Mutex
	broadcasts []*Message
	sends      map[string][]*Message
	closed     []string
}

func newStubGateway() *stubGateway {
	return &stubGateway{sends: make(map[string][]*Message)}
}

func (g *stubGateway) BroadcastToTable(tableID string, msg *Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.broadcasts = append(g.broadcasts, msg)
}

func (g *stubGateway) SendToConn(connID string, msg *Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends[connID] = append(g.sends[connID], msg)
}

func (g *stubGateway) CloseConn(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = append(g.closed, connID)
}

func (g *stubGateway) broadcastCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.broadcasts)
}

func (g *stubGateway) lastBroadcastState(t *testing.T) blackjack.Snapshot {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.broadcasts)
	msg := g.broadcasts[len(g.broadcasts)-1]
	require.Equal(t, MessageTypeStateUpdate, msg.Type)

	var data StateUpdateData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	return data.State
}

func (g *stubGateway) lastSend(t *testing.T, connID string) *Message {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	msgs := g.sends[connID]
	require.NotEmpty(t, msgs, "no messages sent to %s", connID)
	return msgs[len(msgs)-1]
}

func newTestHost(t *testing.T, clock quartz.Clock, turnTimeout time.Duration) (*TableHost, *stubGateway) {
	t.Helper()
	gw := newStubGateway()
	host := NewTableHost(HostConfig{
		Table:       blackjack.Config{ID: "t1"},
		TurnTimeout: turnTimeout,
	}, randutil.Seeded(1), gw, log.New(io.Discard), clock)
	return host, gw
}

func TestDispatchBroadcastsAcceptedIntents(t *testing.T) {
	t.Parallel()

	host, gw := newTestHost(t, quartz.NewReal(), 0)
	host.Dispatch("c1", "alice", JoinIntent{Seat: 2})

	state := gw.lastBroadcastState(t)
	require.Len(t, state.Seats, 1)
	assert.Equal(t, "alice", state.Seats[0].PlayerID)
	assert.Equal(t, 2, state.Seats[0].Seat)
}

func TestDispatchRejectionGoesToSenderOnly(t *testing.T) {
	t.Parallel()

	host, gw := newTestHost(t, quartz.NewReal(), 0)
	host.Dispatch("c1", "alice", JoinIntent{Seat: 0})

	assert.Equal(t, 0, gw.broadcastCount())

	msg := gw.lastSend(t, "c1")
	require.Equal(t, MessageTypeError, msg.Type)

	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "invalid_seat", data.Code)
}

func TestRejectionCodes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "table_full", rejectionCode(blackjack.ErrTableFull))
	assert.Equal(t, "not_your_turn", rejectionCode(blackjack.ErrNotYourTurn))
	assert.Equal(t, "bet_out_of_range", rejectionCode(blackjack.ErrBetRange))
	assert.Equal(t, "internal", rejectionCode(io.EOF))
}

func TestOnConnect(t *testing.T) {
	t.Parallel()

	t.Run("sends the snapshot", func(t *testing.T) {
		host, gw := newTestHost(t, quartz.NewReal(), 0)
		host.OnConnect("c1", "alice")

		msg := gw.lastSend(t, "c1")
		assert.Equal(t, MessageTypeStateUpdate, msg.Type)
	})

	t.Run("reconnect supersedes the old connection", func(t *testing.T) {
		host, gw := newTestHost(t, quartz.NewReal(), 0)
		host.Dispatch("c1", "alice", JoinIntent{Seat: 1})

		host.OnConnect("c2", "alice")

		assert.Equal(t, []string{"c1"}, gw.closed)
		msg := gw.lastSend(t, "c2")
		assert.Equal(t, MessageTypeStateUpdate, msg.Type)
	})

	t.Run("guest connections never reclaim seats", func(t *testing.T) {
		host, gw := newTestHost(t, quartz.NewReal(), 0)
		host.Dispatch("c1", "alice", JoinIntent{Seat: 1})

		host.OnConnect("c2", "guest")
		host.OnConnect("c3", "guest")

		assert.Empty(t, gw.closed)
	})
}

func TestTurnTimerAutoStands(t *testing.T) {
	t.Parallel()

	mock := quartz.NewMock(t)
	host, gw := newTestHost(t, mock, 5*time.Second)

	host.Dispatch("c1", "alice", JoinIntent{Seat: 1})
	host.Dispatch("c2", "bob", JoinIntent{Seat: 2})
	host.Dispatch("c1", "alice", PlaceBetIntent{Bet: 10})
	host.Dispatch("c2", "bob", PlaceBetIntent{Bet: 10})
	host.Dispatch("c1", "alice", StartRoundIntent{})

	require.Equal(t, "alice", gw.lastBroadcastState(t).CurrentTurn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Alice idles past the timeout; the host stands for her.
	mock.Advance(5 * time.Second).MustWait(ctx)

	state := gw.lastBroadcastState(t)
	assert.True(t, state.Seats[0].Standing)
	assert.Equal(t, "bob", state.CurrentTurn)

	// The timer re-arms for the next seat.
	mock.Advance(5 * time.Second).MustWait(ctx)

	state = gw.lastBroadcastState(t)
	assert.True(t, state.Seats[1].Standing)
	assert.Equal(t, blackjack.StatusRoundOver, state.Status)
}

func TestTurnTimerRearmsOnAction(t *testing.T) {
	t.Parallel()

	mock := quartz.NewMock(t)
	host, gw := newTestHost(t, mock, 5*time.Second)

	host.Dispatch("c1", "alice", JoinIntent{Seat: 1})
	host.Dispatch("c1", "alice", PlaceBetIntent{Bet: 10})
	host.Dispatch("c1", "alice", StartRoundIntent{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Acting within the window resets the clock.
	mock.Advance(3 * time.Second).MustWait(ctx)
	if gw.lastBroadcastState(t).CurrentTurn == "alice" {
		host.Dispatch("c1", "alice", HitIntent{})
	}

	state := gw.lastBroadcastState(t)
	if state.Status == blackjack.StatusPlaying {
		// Only the full timeout from the hit may stand her.
		mock.Advance(3 * time.Second).MustWait(ctx)
		assert.Equal(t, blackjack.StatusPlaying, gw.lastBroadcastState(t).Status)

		mock.Advance(2 * time.Second).MustWait(ctx)
		assert.NotEqual(t, blackjack.StatusPlaying, gw.lastBroadcastState(t).Status)
	}
}

func TestManager(t *testing.T) {
	t.Parallel()

	logger := log.New(io.Discard)
	m := NewManager(logger)

	gw := newStubGateway()
	first := NewTableHost(HostConfig{Table: blackjack.Config{ID: "main"}}, randutil.Seeded(1), gw, logger, quartz.NewReal())
	second := NewTableHost(HostConfig{Table: blackjack.Config{ID: "vip"}}, randutil.Seeded(2), gw, logger, quartz.NewReal())

	m.Register(first)
	m.Register(second)

	host, ok := m.Get("vip")
	require.True(t, ok)
	assert.Equal(t, "vip", host.ID())

	_, ok = m.Get("nope")
	assert.False(t, ok)

	def, ok := m.Default()
	require.True(t, ok)
	assert.Equal(t, "main", def.ID(), "first registered table is the default")

	summaries := m.List()
	assert.Len(t, summaries, 2)
}

package server

import (
	"errors"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"blackjacktable/internal/auth"
	"blackjacktable/internal/blackjack"
)

// gateway is the connection-facing surface a TableHost needs from the
// transport layer.
type gateway interface {
	BroadcastToTable(tableID string, msg *Message)
	SendToConn(connID string, msg *Message)
	CloseConn(connID string)
}

// TableHost owns one blackjack.Table: it serializes intents into it, fans
// snapshots out, and runs the per-turn stand timer on the table's behalf.
// The table itself is lock-free; h.mu provides the one-intent-at-a-time
// execution model it requires.
type TableHost struct {
	gw          gateway
	logger      *log.Logger
	clock       quartz.Clock
	turnTimeout time.Duration

	mu    sync.Mutex
	table *blackjack.Table
	timer *quartz.Timer
}

// HostConfig carries table-host settings derived from configuration.
type HostConfig struct {
	Table       blackjack.Config
	TurnTimeout time.Duration // 0 disables the auto-stand timer
}

// NewTableHost constructs the host and its table. The host registers itself
// as the table's broadcaster.
func NewTableHost(cfg HostConfig, rng *rand.Rand, gw gateway, logger *log.Logger, clock quartz.Clock) *TableHost {
	h := &TableHost{
		gw:          gw,
		logger:      logger.WithPrefix("host").With("table", cfg.Table.ID),
		clock:       clock,
		turnTimeout: cfg.TurnTimeout,
	}
	h.table = blackjack.NewTable(cfg.Table, rng, h, logger)
	return h
}

// ID returns the hosted table's identifier.
func (h *TableHost) ID() string {
	return h.table.ID()
}

// Summary reports lightweight table metadata for listings.
func (h *TableHost) Summary() TableSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return TableSummary{
		ID:       h.table.ID(),
		Seated:   h.table.Seated(),
		MaxSeats: h.table.MaxSeats(),
		Status:   string(h.table.Status()),
	}
}

// OnConnect attaches a connection to the table: returning identities take
// their seat binding over from the old connection, and the new connection
// receives the full snapshot immediately.
func (h *TableHost) OnConnect(connID, identity string) {
	h.mu.Lock()
	var old string
	if identity != auth.GuestID {
		old, _ = h.table.Reclaim(identity, connID)
	}
	snap := h.table.Snapshot()
	h.mu.Unlock()

	if old != "" {
		h.logger.Info("identity reconnected, closing old connection", "player", identity, "old_conn", old)
		h.gw.CloseConn(old)
	}
	if msg, err := NewMessage(MessageTypeStateUpdate, StateUpdateData{State: snap}); err == nil {
		h.gw.SendToConn(connID, msg)
	}
}

// Dispatch applies one intent from identity. Rejections leave the table
// untouched and are acknowledged to the offending connection only; accepted
// intents re-arm the turn timer.
func (h *TableHost) Dispatch(connID, identity string, in Intent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	switch intent := in.(type) {
	case JoinIntent:
		err = h.table.Join(connID, identity, intent.Seat)
	case PlaceBetIntent:
		err = h.table.PlaceBet(identity, intent.Bet)
	case StartRoundIntent:
		err = h.table.StartRound()
	case HitIntent:
		err = h.table.Hit(identity)
	case StandIntent:
		err = h.table.Stand(identity)
	case LeaveIntent:
		err = h.table.Leave(identity)
	}

	if err != nil {
		h.logger.Debug("intent rejected", "player", identity, "error", err)
		h.sendError(connID, err)
		return
	}
	h.rearmTurnTimer()
}

// Broadcast implements blackjack.Broadcaster.
func (h *TableHost) Broadcast(snap blackjack.Snapshot, except ...string) {
	msg, err := NewMessage(MessageTypeStateUpdate, StateUpdateData{State: snap})
	if err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	h.gw.BroadcastToTable(snap.TableID, msg)
	_ = except // no excluded-recipient broadcasts are sent today
}

// Send implements blackjack.Broadcaster.
func (h *TableHost) Send(connID string, snap blackjack.Snapshot) {
	msg, err := NewMessage(MessageTypeStateUpdate, StateUpdateData{State: snap})
	if err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	h.gw.SendToConn(connID, msg)
}

// rearmTurnTimer resets the auto-stand timer after every accepted intent.
// A player holding up the table is bounded: once the acting seat sits idle
// past the timeout the host stands on its behalf. Callers hold h.mu.
func (h *TableHost) rearmTurnTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	if h.turnTimeout <= 0 {
		return
	}
	identity := h.table.CurrentTurn()
	if identity == "" {
		return
	}
	h.timer = h.clock.AfterFunc(h.turnTimeout, func() {
		h.autoStand(identity)
	})
}

func (h *TableHost) autoStand(identity string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// The turn may have moved on between firing and acquiring the lock.
	if h.table.CurrentTurn() != identity {
		return
	}
	h.logger.Info("turn timed out, standing player", "player", identity, "timeout", h.turnTimeout)
	if err := h.table.Stand(identity); err != nil {
		h.logger.Error("auto-stand failed", "player", identity, "error", err)
		return
	}
	h.rearmTurnTimer()
}

func (h *TableHost) sendError(connID string, err error) {
	msg, encErr := NewMessage(MessageTypeError, ErrorData{
		Code:    rejectionCode(err),
		Message: err.Error(),
	})
	if encErr != nil {
		h.logger.Error("failed to encode error message", "error", encErr)
		return
	}
	h.gw.SendToConn(connID, msg)
}

// rejectionCode maps table errors to stable wire codes.
func rejectionCode(err error) string {
	switch {
	case errors.Is(err, blackjack.ErrTableFull):
		return "table_full"
	case errors.Is(err, blackjack.ErrAlreadySeated):
		return "already_seated"
	case errors.Is(err, blackjack.ErrSeatTaken):
		return "seat_taken"
	case errors.Is(err, blackjack.ErrInvalidSeat):
		return "invalid_seat"
	case errors.Is(err, blackjack.ErrNotSeated):
		return "not_seated"
	case errors.Is(err, blackjack.ErrBadStatus):
		return "bad_status"
	case errors.Is(err, blackjack.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, blackjack.ErrNoPlayers):
		return "no_players"
	case errors.Is(err, blackjack.ErrBetRange):
		return "bet_out_of_range"
	default:
		return "internal"
	}
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjacktable/internal/auth"
	"blackjacktable/internal/blackjack"
	"blackjacktable/internal/randutil"
)

func newIntegrationServer(t *testing.T) (*httptest.Server, *auth.Verifier) {
	t.Helper()
	logger := log.New(io.Discard)
	verifier := auth.NewVerifier("test-secret")
	manager := NewManager(logger)
	srv := New(logger, verifier, manager)

	host := NewTableHost(HostConfig{
		Table: blackjack.Config{ID: "main"},
	}, randutil.Seeded(1), srv, logger, quartz.NewReal())
	manager.Register(host)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return ts, verifier
}

func wsURL(ts *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, query), nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func dialWallet(t *testing.T, ts *httptest.Server, verifier *auth.Verifier, wallet string) *websocket.Conn {
	t.Helper()
	token, err := verifier.Mint(wallet, time.Minute)
	require.NoError(t, err)
	return dial(t, ts, "walletAddress="+wallet+"&token="+token)
}

func sendIntent(t *testing.T, conn *websocket.Conn, msgType MessageType, data interface{}) {
	t.Helper()
	msg, err := NewMessage(msgType, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

// waitForState reads frames until a snapshot satisfying pred arrives.
func waitForState(t *testing.T, conn *websocket.Conn, pred func(blackjack.Snapshot) bool) blackjack.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg), "timed out waiting for snapshot")
		if msg.Type != MessageTypeStateUpdate {
			continue
		}
		var data StateUpdateData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		if pred(data.State) {
			return data.State
		}
	}
}

func seated(id string) func(blackjack.Snapshot) bool {
	return func(snap blackjack.Snapshot) bool {
		for _, s := range snap.Seats {
			if s.PlayerID == id {
				return true
			}
		}
		return false
	}
}

func TestWebSocketGameFlow(t *testing.T) {
	ts, verifier := newIntegrationServer(t)

	alice := dialWallet(t, ts, verifier, "0xaaa")
	bob := dialWallet(t, ts, verifier, "0xbbb")
	guest := dial(t, ts, "")

	// Every connection gets the snapshot on connect.
	waitForState(t, guest, func(snap blackjack.Snapshot) bool {
		return snap.TableID == "main"
	})

	sendIntent(t, alice, MessageTypeJoin, JoinData{Seat: 1})
	waitForState(t, alice, seated("0xaaa"))

	sendIntent(t, bob, MessageTypeJoin, JoinData{Seat: 2})
	waitForState(t, bob, seated("0xbbb"))

	sendIntent(t, alice, MessageTypePlaceBet, PlaceBetData{Bet: 25})
	sendIntent(t, bob, MessageTypePlaceBet, PlaceBetData{Bet: 50})
	waitForState(t, alice, func(snap blackjack.Snapshot) bool {
		return len(snap.Seats) == 2 && snap.Seats[0].Bet == 25 && snap.Seats[1].Bet == 50
	})

	sendIntent(t, alice, MessageTypeStartRound, struct{}{})
	state := waitForState(t, alice, func(snap blackjack.Snapshot) bool {
		return snap.Status == blackjack.StatusPlaying
	})
	assert.Equal(t, "0xaaa", state.CurrentTurn)
	assert.Len(t, state.DealerHand, 2)

	sendIntent(t, alice, MessageTypeStand, struct{}{})
	waitForState(t, bob, func(snap blackjack.Snapshot) bool {
		return snap.CurrentTurn == "0xbbb"
	})
	sendIntent(t, bob, MessageTypeStand, struct{}{})

	// Spectators observe the settled round too.
	final := waitForState(t, guest, func(snap blackjack.Snapshot) bool {
		return snap.Status == blackjack.StatusRoundOver
	})
	require.Len(t, final.Results, 2)
	assert.Equal(t, "0xaaa", final.Results[0].PlayerID)
	assert.Equal(t, "0xbbb", final.Results[1].PlayerID)
	assert.Equal(t, 25, final.Results[0].Bet)
	assert.Equal(t, 50, final.Results[1].Bet)
}

func TestGuestIntentsAreDropped(t *testing.T) {
	ts, verifier := newIntegrationServer(t)

	guest := dial(t, ts, "")
	sendIntent(t, guest, MessageTypeJoin, JoinData{Seat: 1})

	// The guest join must not land; a wallet claim of the same seat proves it.
	alice := dialWallet(t, ts, verifier, "0xaaa")
	sendIntent(t, alice, MessageTypeJoin, JoinData{Seat: 1})

	state := waitForState(t, alice, seated("0xaaa"))
	require.Len(t, state.Seats, 1)
	assert.Equal(t, "0xaaa", state.Seats[0].PlayerID)
}

func TestReconnectTakesOverSeat(t *testing.T) {
	ts, verifier := newIntegrationServer(t)

	first := dialWallet(t, ts, verifier, "0xaaa")
	sendIntent(t, first, MessageTypeJoin, JoinData{Seat: 3})
	waitForState(t, first, seated("0xaaa"))

	// The same wallet connects again; the seat follows the new connection.
	second := dialWallet(t, ts, verifier, "0xaaa")
	state := waitForState(t, second, seated("0xaaa"))
	assert.Equal(t, 3, state.Seats[0].Seat)

	// The superseded connection is closed by the server.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(5*time.Second)))
	var closed bool
	for !closed {
		var msg Message
		if err := first.ReadJSON(&msg); err != nil {
			closed = true
		}
	}
	assert.True(t, closed)
}

func TestRejectedUpgrades(t *testing.T) {
	ts, verifier := newIntegrationServer(t)

	t.Run("bad token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "walletAddress=0xaaa&token=garbage"), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wallet mismatch", func(t *testing.T) {
		token, err := verifier.Mint("0xbbb", time.Minute)
		require.NoError(t, err)
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "walletAddress=0xaaa&token="+token), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown table", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "table=nope"), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHTTPEndpoints(t *testing.T) {
	ts, _ := newIntegrationServer(t)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("tables", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/tables")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var summaries []TableSummary
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
		require.Len(t, summaries, 1)
		assert.Equal(t, "main", summaries[0].ID)
		assert.Equal(t, 5, summaries[0].MaxSeats)
		assert.Equal(t, "waiting", summaries[0].Status)
	})
}

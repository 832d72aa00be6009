package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"blackjacktable/cmd/blackjacktable/shared"
	"blackjacktable/internal/blackjack"
	"blackjacktable/internal/deck"
	"blackjacktable/internal/server"
)

type WatchCmd struct {
	Server string `kong:"default='ws://localhost:8080/ws',help='WebSocket server URL'"`
	Table  string `kong:"default='',help='Table identifier to watch (defaults to the server default table)'"`
	Wallet string `kong:"default='',help='Wallet address to connect as (empty connects as a guest spectator)'"`
	Token  string `kong:"default='',help='Session token proving the wallet address'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

var (
	watchHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(lipgloss.Color("#7D56F4")).
				Bold(true)

	watchRedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF6B6B")).
				Bold(true)

	watchBlackCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA")).
				Bold(true)

	watchTurnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	watchWinStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	watchLossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	watchDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

func (w *WatchCmd) Run() error {
	logger := shared.SetupLogger(w.Debug).WithPrefix("watch")

	u, err := url.Parse(strings.TrimSpace(w.Server))
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	q := u.Query()
	if w.Table != "" {
		q.Set("table", w.Table)
	}
	if w.Wallet != "" {
		q.Set("walletAddress", w.Wallet)
		q.Set("token", w.Token)
	}
	u.RawQuery = q.Encode()

	logger.Info("connecting", "url", u.Redacted())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	logger.Info("connected, waiting for snapshots")

	for {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("connection lost: %w", err)
			}
			return nil
		}

		switch msg.Type {
		case server.MessageTypeStateUpdate:
			var data server.StateUpdateData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				logger.Warn("bad state update", "error", err)
				continue
			}
			fmt.Println(renderSnapshot(data.State))

		case server.MessageTypeError:
			var data server.ErrorData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				logger.Warn("bad error payload", "error", err)
				continue
			}
			logger.Error("server rejected intent", "code", data.Code, "message", data.Message)

		default:
			logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func renderSnapshot(snap blackjack.Snapshot) string {
	var b strings.Builder

	b.WriteString(watchHeaderStyle.Render(fmt.Sprintf(" table %s · %s ", snap.TableID, snap.Status)))
	b.WriteString("\n")

	dealer := renderHand(snap.DealerHand)
	if dealer == "" {
		dealer = watchDimStyle.Render("(no cards)")
	}
	b.WriteString(fmt.Sprintf("  dealer  %s", dealer))
	if len(snap.DealerHand) > 0 {
		b.WriteString(watchDimStyle.Render(fmt.Sprintf("  = %d", snap.DealerValue)))
	}
	b.WriteString("\n")

	for _, seat := range snap.Seats {
		marker := "  "
		if snap.CurrentTurn != "" && seat.PlayerID == snap.CurrentTurn {
			marker = watchTurnStyle.Render("→ ")
		}
		line := fmt.Sprintf("%sseat %d  %-14s bet %d", marker, seat.Seat, shorten(seat.PlayerID), seat.Bet)
		if hand := renderHand(seat.Hand); hand != "" {
			line += fmt.Sprintf("  %s%s", hand, watchDimStyle.Render(fmt.Sprintf("  = %d", seat.HandValue)))
		}
		if seat.Busted {
			line += "  " + watchLossStyle.Render("bust")
		} else if seat.Standing {
			line += "  " + watchDimStyle.Render("stand")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	for _, res := range snap.Results {
		style := watchDimStyle
		switch res.Outcome {
		case blackjack.OutcomeWin:
			style = watchWinStyle
		case blackjack.OutcomeLoss:
			style = watchLossStyle
		}
		b.WriteString(fmt.Sprintf("  %s seat %d %s (%d vs dealer %d, bet %d)\n",
			style.Render(string(res.Outcome)), res.Seat, shorten(res.PlayerID),
			res.PlayerValue, res.DealerValue, res.Bet))
	}

	b.WriteString(watchDimStyle.Render(fmt.Sprintf("  shoe %d cards", snap.DeckRemaining)))
	return b.String()
}

func renderHand(cards []deck.Card) string {
	parts := make([]string, 0, len(cards))
	for _, c := range cards {
		style := watchBlackCardStyle
		if c.Suit == deck.Diamonds || c.Suit == deck.Hearts {
			style = watchRedCardStyle
		}
		parts = append(parts, style.Render(c.String()))
	}
	return strings.Join(parts, " ")
}

func shorten(id string) string {
	if len(id) > 12 {
		return id[:6] + ".." + id[len(id)-4:]
	}
	return id
}

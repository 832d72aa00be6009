package server

import (
	"encoding/json"
	"fmt"
	"time"

	"blackjacktable/internal/blackjack"
)

// RoomBlackjack routes a message to the table state machine. The envelope
// keeps the room field so clients speak one frame shape even when other
// rooms (chat, cursors) live on a different service.
const RoomBlackjack = "blackjack"

// MessageType enumerates the closed set of wire message types.
type MessageType string

const (
	// Client to server intents
	MessageTypeJoin       MessageType = "playerJoin"
	MessageTypePlaceBet   MessageType = "placeBet"
	MessageTypeStartRound MessageType = "startRound"
	MessageTypeHit        MessageType = "hit"
	MessageTypeStand      MessageType = "stand"
	MessageTypeLeave      MessageType = "playerLeave"

	// Server to client messages
	MessageTypeStateUpdate MessageType = "stateUpdate"
	MessageTypeError       MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Message is the wire envelope shared by both directions.
type Message struct {
	Room      string          `json:"room"`
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// NewMessage creates an outbound message with the current timestamp.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Room:      RoomBlackjack,
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server payloads

type JoinData struct {
	Seat int `json:"seat"`
}

type PlaceBetData struct {
	Bet int `json:"bet"`
}

// Server → Client payloads

type StateUpdateData struct {
	State blackjack.Snapshot `json:"state"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Intent is the closed set of table intents a connection can submit. Every
// variant is handled exhaustively in TableHost.Dispatch; an unknown wire type
// never constructs one.
type Intent interface {
	intent()
}

type JoinIntent struct{ Seat int }
type PlaceBetIntent struct{ Bet int }
type StartRoundIntent struct{}
type HitIntent struct{}
type StandIntent struct{}
type LeaveIntent struct{}

func (JoinIntent) intent()       {}
func (PlaceBetIntent) intent()   {}
func (StartRoundIntent) intent() {}
func (HitIntent) intent()        {}
func (StandIntent) intent()      {}
func (LeaveIntent) intent()      {}

// ParseIntent decodes an inbound message into its typed intent. Unknown
// types are an error here so no default branch exists downstream.
func ParseIntent(msg *Message) (Intent, error) {
	switch msg.Type {
	case MessageTypeJoin:
		var data JoinData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil, fmt.Errorf("server: bad %s payload: %w", msg.Type, err)
		}
		return JoinIntent{Seat: data.Seat}, nil

	case MessageTypePlaceBet:
		var data PlaceBetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil, fmt.Errorf("server: bad %s payload: %w", msg.Type, err)
		}
		return PlaceBetIntent{Bet: data.Bet}, nil

	case MessageTypeStartRound:
		return StartRoundIntent{}, nil

	case MessageTypeHit:
		return HitIntent{}, nil

	case MessageTypeStand:
		return StandIntent{}, nil

	case MessageTypeLeave:
		return LeaveIntent{}, nil

	default:
		return nil, fmt.Errorf("server: unknown message type %q", msg.Type)
	}
}

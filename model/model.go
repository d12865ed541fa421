package model

import "fmt"

// Client originated message types.
const (
	TypeJoinRoom        = "join_room"
	TypeStartSpin       = "start_spin"
	TypeStopSpin        = "stop_spin"
	TypeItemsUpdated    = "items_updated"
	TypeOperatorChanged = "operator_changed"
	TypePing            = "ping"
)

// Server originated message types.
const (
	TypeRoomJoined        = "room_joined"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeWheelSpinStarted  = "wheel_spin_started"
	TypeWheelSpun         = "wheel_spun"
	TypePong              = "pong"
)

const (
	// DefaultRoomID is the single shared room of this deployment. The
	// protocol itself works with arbitrary room ids.
	DefaultRoomID = "GLOBAL_ROOM"

	// DefaultOperator is the initial operator of any freshly created room.
	DefaultOperator = "迪迦奥特曼"

	defaultItemCount = 6

	// MinItems and MaxItems bound the wheel item list.
	MinItems = 2
	MaxItems = 20
)

// Message is the wire envelope. Type is mandatory, everything else is
// populated depending on Type. Server re-stamps Timestamp on relay.
type Message struct {
	Type        string       `json:"type"`
	RoomID      string       `json:"roomId,omitempty"`
	Participant *Participant `json:"participant,omitempty"`
	Name        string       `json:"name,omitempty"`
	Operator    string       `json:"operator,omitempty"`
	Rotation    float64      `json:"rotation,omitempty"`
	Result      string       `json:"result,omitempty"`
	Items       []string     `json:"items,omitempty"`
	RoomData    *RoomData    `json:"roomData,omitempty"`
	Timestamp   int64        `json:"timestamp,omitempty"`
}

// Participant is the identity a client presents in join_room.
// The server stores it as-is, it is never verified.
type Participant struct {
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// RoomData is the snapshot sent to late joiners in room_joined.
type RoomData struct {
	Items           []string `json:"items"`
	CurrentRotation float64  `json:"currentRotation"`
	CurrentOperator string   `json:"currentOperator"`
	LastResult      string   `json:"lastResult"`
	LastOperator    string   `json:"lastOperator"`
}

// Placeholder returns the positional fallback label for item index i.
func Placeholder(i int) string {
	return fmt.Sprintf("项目%d", i+1)
}

// DefaultItems returns the item list of a freshly created room.
func DefaultItems() []string {
	items := make([]string, defaultItemCount)
	for i := range items {
		items[i] = Placeholder(i)
	}
	return items
}

// Wire is a per-session channel pair between transport and relay.
// RX carries messages read from the client, TX carries messages to be
// written to the client.
type Wire struct {
	RX chan Message
	TX chan Message
}

func NewWire() Wire {
	return Wire{
		RX: make(chan Message),
		TX: make(chan Message),
	}
}

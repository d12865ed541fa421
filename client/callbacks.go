package client

import "github.com/spinwheel/lucky-wheel/model"

// ConnState is the client connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateJoined
	// StateFailed is terminal: reconnect attempts are exhausted and only a
	// fresh Run can recover.
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// NoticeKind categorizes user-facing notices.
type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Callbacks is the contract towards the presentation layer. The client
// invokes these, it never renders anything itself. All fields are optional.
type Callbacks struct {
	OnRoomSnapshot          func(data model.RoomData)
	OnParticipantJoined     func(name string)
	OnParticipantLeft       func(name string)
	OnOperatorChanged       func(name string)
	OnSpinStarted           func(operator string)
	OnSpinResult            func(rotation float64, result string, operator string)
	OnItemsUpdated          func(items []string)
	OnConnectionStateChange func(state ConnState)
	OnNotice                func(kind NoticeKind, message string)
}

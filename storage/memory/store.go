package memory

import (
	"errors"
	"sync"

	"github.com/spinwheel/lucky-wheel/model"
)

var (
	ErrRoomNotFound = errors.New("room is not found")
	ErrItemCount    = errors.New("item count is out of range")
)

// Room is the registry's view of one wheel room. Members maps session ids
// to participant names; everything else is the snapshot state served to
// late joiners.
type Room struct {
	ID           string
	Members      map[string]string
	Items        []string
	Rotation     float64
	Operator     string
	LastResult   string
	LastOperator string
}

// MemStore is an in-memory room registry. Rooms are created lazily on
// first join and deleted synchronously when the last member leaves.
type MemStore struct {
	mx *sync.Mutex
	db map[string]*Room
}

func NewMemStore() *MemStore {
	return &MemStore{
		mx: &sync.Mutex{},
		db: make(map[string]*Room),
	}
}

// EnsureRoom returns the room with given id, creating it with default
// state if it does not exist.
func (ms *MemStore) EnsureRoom(roomID string) *Room {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	return ms.ensure(roomID)
}

func (ms *MemStore) ensure(roomID string) *Room {
	room, ok := ms.db[roomID]
	if !ok {
		room = &Room{
			ID:       roomID,
			Members:  make(map[string]string),
			Items:    model.DefaultItems(),
			Operator: model.DefaultOperator,
		}
		ms.db[roomID] = room
	}
	return room
}

// AddMember registers a session in the room, creating the room if needed.
func (ms *MemStore) AddMember(roomID, sessionID, name string) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room := ms.ensure(roomID)
	room.Members[sessionID] = name
}

// RemoveMember drops a session from the room and reports the participant
// name it was registered under. When the last member leaves, the room is
// deleted immediately.
func (ms *MemStore) RemoveMember(roomID, sessionID string) (string, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return "", false
	}
	name := room.Members[sessionID]
	delete(room.Members, sessionID)
	if len(room.Members) == 0 {
		delete(ms.db, roomID)
		return name, true
	}
	return name, false
}

// Snapshot returns the room state sent to a late joiner.
func (ms *MemStore) Snapshot(roomID string) (model.RoomData, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return model.RoomData{}, ErrRoomNotFound
	}
	items := make([]string, len(room.Items))
	copy(items, room.Items)
	return model.RoomData{
		Items:           items,
		CurrentRotation: room.Rotation,
		CurrentOperator: room.Operator,
		LastResult:      room.LastResult,
		LastOperator:    room.LastOperator,
	}, nil
}

// SetRotation commits a spin outcome: the final cumulative rotation plus
// the result and the operator who produced it.
func (ms *MemStore) SetRotation(roomID string, rotation float64, result, operator string) error {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Rotation = rotation
	room.LastResult = result
	room.LastOperator = operator
	return nil
}

// SetItems replaces the room's item list. Counts outside [MinItems,MaxItems]
// are rejected and leave the room untouched.
func (ms *MemStore) SetItems(roomID string, items []string) error {
	if len(items) < model.MinItems || len(items) > model.MaxItems {
		return ErrItemCount
	}

	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Items = make([]string, len(items))
	copy(room.Items, items)
	return nil
}

// SetOperator records the room's current operator.
func (ms *MemStore) SetOperator(roomID, operator string) error {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Operator = operator
	return nil
}

// HasRoom reports whether a room currently exists.
func (ms *MemStore) HasRoom(roomID string) bool {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	_, ok := ms.db[roomID]
	return ok
}

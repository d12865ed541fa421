package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spinwheel/lucky-wheel/model"
)

const (
	defaultFwdTimeout = time.Second
)

var (
	ErrSessionNotFound = errors.New("session is not connected")
)

// Relay fans out messages between sessions of a room. A session that does
// not accept a message within the forward timeout is skipped; it gets
// pruned for real when its own disconnect fires.
type Relay struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]map[string]model.Wire
}

func New(logger *zerolog.Logger) *Relay {
	return &Relay{
		logger: logger.With().Str("component", "relay").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]map[string]model.Wire),
	}
}

// Connect attaches a session's wire to a room.
func (rl *Relay) Connect(roomID, sessionID string, wire model.Wire) {
	rl.mx.Lock()
	defer func() {
		rl.mx.Unlock()
		rl.logger.Debug().
			Str("roomID", roomID).
			Str("sessionID", sessionID).
			Msg("session connected")
	}()

	room, ok := rl.fwd[roomID]
	if !ok {
		room = make(map[string]model.Wire)
	}
	room[sessionID] = wire
	rl.fwd[roomID] = room
}

// Disconnect detaches a session from a room.
func (rl *Relay) Disconnect(roomID, sessionID string) {
	rl.mx.Lock()
	defer func() {
		rl.mx.Unlock()
		rl.logger.Debug().
			Str("roomID", roomID).
			Str("sessionID", sessionID).
			Msg("session disconnected")
	}()

	room, ok := rl.fwd[roomID]
	if ok {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(rl.fwd, roomID)
		}
	}
}

// Broadcast delivers msg to every session of the room except excludeID.
func (rl *Relay) Broadcast(ctx context.Context, roomID, excludeID string, msg model.Message) {
	rl.mx.RLock()
	room := rl.fwd[roomID]
	wires := make(map[string]model.Wire, len(room))
	for id, wire := range room {
		wires[id] = wire
	}
	rl.mx.RUnlock()

	var sent bool
	for id, wire := range wires {
		if id == excludeID {
			continue
		}
		delivered, canceled := rl.send(ctx, id, wire.TX, msg)
		if canceled {
			return
		}
		if delivered {
			sent = true
		}
	}
	if !sent {
		rl.logger.Debug().
			Str("roomID", roomID).
			Str("type", msg.Type).
			Msg("broadcast did not reach anyone")
	}
}

// Send delivers msg directly to a single session.
func (rl *Relay) Send(ctx context.Context, roomID, sessionID string, msg model.Message) error {
	rl.mx.RLock()
	wire, ok := rl.fwd[roomID][sessionID]
	rl.mx.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}
	rl.send(ctx, sessionID, wire.TX, msg)
	return nil
}

func (rl *Relay) send(ctx context.Context, sessionID string, tx chan<- model.Message, msg model.Message) (bool, bool) {
	var sent, canceled bool
	tCh := time.NewTimer(defaultFwdTimeout)
	select {
	case <-ctx.Done():
		canceled = true
	case <-tCh.C:
		rl.logger.Error().Str("sessionID", sessionID).Msg("dead session")
	case tx <- msg:
		sent = true
	}
	tCh.Stop()
	return sent, canceled
}

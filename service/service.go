package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spinwheel/lucky-wheel/model"
)

const (
	defaultLeaveTimeout = 2 * time.Second
)

type (
	RoomStore interface {
		AddMember(roomID, sessionID, name string)
		RemoveMember(roomID, sessionID string) (string, bool)
		Snapshot(roomID string) (model.RoomData, error)
		SetRotation(roomID string, rotation float64, result, operator string) error
		SetItems(roomID string, items []string) error
		SetOperator(roomID, operator string) error
	}

	Broadcaster interface {
		Connect(roomID, sessionID string, wire model.Wire)
		Disconnect(roomID, sessionID string)
		Broadcast(ctx context.Context, roomID, excludeID string, msg model.Message)
		Send(ctx context.Context, roomID, sessionID string, msg model.Message) error
	}

	// Service owns room semantics: it consumes each session's inbound wire
	// in transport order, applies side effects to the room store and fans
	// resulting events out to the rest of the room.
	Service struct {
		store  RoomStore
		relay  Broadcaster
		logger zerolog.Logger
	}

	Config struct {
		RoomStore RoomStore
		Relay     Broadcaster
		Logger    *zerolog.Logger
	}

	// session is the per-connection state accumulated from join_room.
	session struct {
		id     string
		roomID string
		name   string
		joined bool
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		store:  cfg.RoomStore,
		relay:  cfg.Relay,
		logger: cfg.Logger.With().Str("component", "service").Logger(),
	}
}

// ServeSession processes one connection's messages until the wire's RX is
// closed or ctx is canceled, then runs the leave sequence. The transport
// feeds RX from a single reader goroutine, so a sender's messages are
// handled in transport order and all room mutation happens inside handle.
func (svc *Service) ServeSession(ctx context.Context, sessionID string, wire model.Wire) {
	sess := &session{id: sessionID}
	defer svc.teardown(sess)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-wire.RX:
			if !ok {
				return
			}
			svc.handle(ctx, sess, wire, msg)
		}
	}
}

func (svc *Service) handle(ctx context.Context, sess *session, wire model.Wire, msg model.Message) {
	switch msg.Type {
	case model.TypeJoinRoom:
		svc.handleJoin(ctx, sess, wire, msg)

	case model.TypePing:
		// direct reply, not a broadcast
		select {
		case wire.TX <- model.Message{Type: model.TypePong, Timestamp: now()}:
		case <-ctx.Done():
		}

	case model.TypeStartSpin:
		if !sess.joined {
			return
		}
		// relayed as-is, the sender's operator claim is not verified
		svc.relay.Broadcast(ctx, sess.roomID, sess.id, model.Message{
			Type:      model.TypeWheelSpinStarted,
			Operator:  msg.Operator,
			Timestamp: now(),
		})

	case model.TypeStopSpin:
		if !sess.joined {
			return
		}
		svc.relay.Broadcast(ctx, sess.roomID, sess.id, model.Message{
			Type:      model.TypeWheelSpun,
			Rotation:  msg.Rotation,
			Result:    msg.Result,
			Operator:  msg.Operator,
			Timestamp: now(),
		})
		if err := svc.store.SetRotation(sess.roomID, msg.Rotation, msg.Result, msg.Operator); err != nil {
			svc.logger.Error().Err(err).Str("roomID", sess.roomID).Msg("failed to commit spin")
		}

	case model.TypeItemsUpdated:
		if !sess.joined {
			return
		}
		if err := svc.store.SetItems(sess.roomID, msg.Items); err != nil {
			// silent drop, no error reply
			svc.logger.Warn().Err(err).
				Str("roomID", sess.roomID).
				Int("count", len(msg.Items)).
				Msg("rejected items update")
			return
		}
		svc.relay.Broadcast(ctx, sess.roomID, sess.id, model.Message{
			Type:      model.TypeItemsUpdated,
			Items:     msg.Items,
			Timestamp: now(),
		})

	case model.TypeOperatorChanged:
		if !sess.joined {
			return
		}
		if err := svc.store.SetOperator(sess.roomID, msg.Operator); err != nil {
			svc.logger.Error().Err(err).Str("roomID", sess.roomID).Msg("failed to set operator")
			return
		}
		svc.relay.Broadcast(ctx, sess.roomID, sess.id, model.Message{
			Type:      model.TypeOperatorChanged,
			Operator:  msg.Operator,
			Timestamp: now(),
		})

	default:
		svc.logger.Warn().Str("type", msg.Type).Msg("unknown message type")
	}
}

func (svc *Service) handleJoin(ctx context.Context, sess *session, wire model.Wire, msg model.Message) {
	if sess.joined {
		svc.logger.Warn().Str("sessionID", sess.id).Msg("duplicate join ignored")
		return
	}
	if msg.RoomID == "" || msg.Participant == nil || msg.Participant.Name == "" {
		svc.logger.Warn().Str("sessionID", sess.id).Msg("malformed join_room dropped")
		return
	}

	sess.roomID = msg.RoomID
	sess.name = msg.Participant.Name
	sess.joined = true

	svc.store.AddMember(sess.roomID, sess.id, sess.name)
	svc.relay.Connect(sess.roomID, sess.id, wire)

	svc.relay.Broadcast(ctx, sess.roomID, sess.id, model.Message{
		Type:      model.TypeParticipantJoined,
		Name:      sess.name,
		Timestamp: now(),
	})

	snapshot, err := svc.store.Snapshot(sess.roomID)
	if err != nil {
		svc.logger.Error().Err(err).Str("roomID", sess.roomID).Msg("failed to snapshot room")
		return
	}
	if err = svc.relay.Send(ctx, sess.roomID, sess.id, model.Message{
		Type:      model.TypeRoomJoined,
		RoomData:  &snapshot,
		Timestamp: now(),
	}); err != nil {
		svc.logger.Error().Err(err).Str("sessionID", sess.id).Msg("failed to send room snapshot")
		return
	}

	svc.logger.Debug().
		Str("name", sess.name).
		Str("roomID", sess.roomID).
		Msg("participant joined room")
}

// teardown runs the leave sequence for a joined session. The session's own
// context is usually already canceled at this point, so the departure
// broadcast gets a short deadline of its own.
func (svc *Service) teardown(sess *session) {
	if !sess.joined {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultLeaveTimeout)
	defer cancel()

	svc.relay.Disconnect(sess.roomID, sess.id)
	svc.relay.Broadcast(ctx, sess.roomID, sess.id, model.Message{
		Type:      model.TypeParticipantLeft,
		Name:      sess.name,
		Timestamp: now(),
	})

	_, empty := svc.store.RemoveMember(sess.roomID, sess.id)
	if empty {
		svc.logger.Debug().Str("roomID", sess.roomID).Msg("room closed")
	}
	svc.logger.Debug().
		Str("name", sess.name).
		Str("roomID", sess.roomID).
		Msg("participant left room")
}

func now() int64 {
	return time.Now().UnixMilli()
}

// Package client implements the session state machine driving one wheel
// participant: transport with bounded reconnect, a reducer over room
// broadcasts, operator-gated spin intents and the callback contract the
// presentation layer consumes.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spinwheel/lucky-wheel/identity"
	"github.com/spinwheel/lucky-wheel/model"
	"github.com/spinwheel/lucky-wheel/wheel"
)

const (
	reconnectDelay       = 3 * time.Second
	maxReconnectAttempts = 5

	// spinDuration caps how long a spin may stay open before the client
	// stops it on its own, so observers are never stuck on "spinning"
	// when the manual stop is lost.
	spinDuration = 4 * time.Second
)

var (
	ErrNotConnected       = errors.New("not connected to a room")
	ErrNotOperator        = errors.New("only the current operator may spin")
	ErrSpinInProgress     = errors.New("spin is already in progress")
	ErrNoSpinInProgress   = errors.New("no spin in progress")
	ErrItemCount          = errors.New("item count is out of range")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

type (
	Config struct {
		URL       string
		RoomID    string
		Identity  identity.Record
		Callbacks Callbacks
		Logger    *zerolog.Logger
		Clock     clockwork.Clock
		Dialer    Dialer
		Rand      *rand.Rand
	}

	Client struct {
		url       string
		roomID    string
		me        string
		isHost    bool
		callbacks Callbacks
		logger    zerolog.Logger
		clock     clockwork.Clock
		dialer    Dialer
		rng       *rand.Rand

		mx        sync.Mutex
		state     ConnState
		conn      Conn
		attempts  int
		members   *roster
		items     []string
		rotation  float64
		operator  string
		spinning  bool
		spinTimer clockwork.Timer
	}
)

func New(cfg Config) *Client {
	c := &Client{
		url:       cfg.URL,
		roomID:    cfg.RoomID,
		me:        cfg.Identity.Name,
		isHost:    cfg.Identity.IsHost,
		callbacks: cfg.Callbacks,
		logger:    cfg.Logger.With().Str("component", "client").Logger(),
		clock:     cfg.Clock,
		dialer:    cfg.Dialer,
		rng:       cfg.Rand,
		members:   newRoster(),
		items:     model.DefaultItems(),
		operator:  model.DefaultOperator,
	}
	if c.roomID == "" {
		c.roomID = model.DefaultRoomID
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.dialer == nil {
		c.dialer = wsDialer{}
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	c.members.add(c.me, c.clock.Now())
	return c
}

// Run connects and keeps the session alive until ctx is canceled or the
// reconnect budget runs out. A lost connection is retried at a fixed delay
// a bounded number of times; a successful dial resets the budget and
// rejoins the room.
func (c *Client) Run(ctx context.Context) error {
	for {
		c.setState(StateConnecting)
		conn, err := c.dialer.Dial(ctx, c.url)
		if err != nil {
			c.logger.Error().Err(err).Msg("dial failed")
			c.setState(StateDisconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err = c.delayRetry(ctx); err != nil {
				return err
			}
			continue
		}

		c.attach(conn)
		c.notify(NoticeSuccess, "connected, realtime sync is on")
		if err = c.sendJoin(); err != nil {
			c.logger.Error().Err(err).Msg("failed to send join")
		} else {
			err = c.readLoop(ctx, conn)
			c.logger.Warn().Err(err).Msg("connection lost")
		}
		c.detach()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = c.delayRetry(ctx); err != nil {
			return err
		}
	}
}

func (c *Client) delayRetry(ctx context.Context) error {
	c.mx.Lock()
	c.attempts++
	attempt := c.attempts
	c.mx.Unlock()

	if attempt > maxReconnectAttempts {
		c.setState(StateFailed)
		c.notify(NoticeError, "connection failed, manual restart required")
		return ErrReconnectExhausted
	}
	c.notify(NoticeError, fmt.Sprintf("connection lost, reconnecting in %s (%d/%d)",
		reconnectDelay, attempt, maxReconnectAttempts))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(reconnectDelay):
		return nil
	}
}

func (c *Client) attach(conn Conn) {
	c.mx.Lock()
	c.conn = conn
	c.attempts = 0
	c.mx.Unlock()
	c.setState(StateConnected)
}

func (c *Client) detach() {
	c.mx.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.spinTimer != nil {
		c.spinTimer.Stop()
		c.spinTimer = nil
	}
	c.spinning = false
	c.mx.Unlock()
	c.setState(StateDisconnected)
}

func (c *Client) sendJoin() error {
	return c.send(model.Message{
		Type:   model.TypeJoinRoom,
		RoomID: c.roomID,
		Participant: &model.Participant{
			Name:   c.me,
			IsHost: c.isHost,
		},
	})
}

func (c *Client) readLoop(ctx context.Context, conn Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		// fronting infrastructure may inject non-protocol text frames,
		// anything that is not a JSON document is dropped
		trimmed := strings.TrimSpace(string(raw))
		if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
			continue
		}
		var msg model.Message
		if err = json.Unmarshal([]byte(trimmed), &msg); err != nil {
			continue
		}
		c.apply(msg)
	}
}

// apply is the reducer over inbound broadcasts: it updates the local room
// mirror and fires the matching presentation callback. Callbacks run
// outside the lock so they may call back into the client.
func (c *Client) apply(msg model.Message) {
	var fire []func()

	c.mx.Lock()
	switch msg.Type {
	case model.TypeRoomJoined:
		if msg.RoomData == nil {
			break
		}
		data := *msg.RoomData
		if len(data.Items) > 0 {
			c.items = append([]string(nil), data.Items...)
		}
		c.rotation = data.CurrentRotation
		c.operator = data.CurrentOperator
		if c.operator == "" {
			c.operator = model.DefaultOperator
		}
		if c.state == StateConnected {
			c.state = StateJoined
			if cb := c.callbacks.OnConnectionStateChange; cb != nil {
				fire = append(fire, func() { cb(StateJoined) })
			}
		}
		if cb := c.callbacks.OnRoomSnapshot; cb != nil {
			fire = append(fire, func() { cb(data) })
		}

	case model.TypeParticipantJoined:
		c.members.add(msg.Name, c.clock.Now())
		if cb := c.callbacks.OnParticipantJoined; cb != nil {
			name := msg.Name
			fire = append(fire, func() { cb(name) })
		}
		fire = append(fire, c.noticeFunc(NoticeSuccess, fmt.Sprintf("%s joined the room", msg.Name)))

	case model.TypeParticipantLeft:
		c.members.remove(msg.Name)
		if cb := c.callbacks.OnParticipantLeft; cb != nil {
			name := msg.Name
			fire = append(fire, func() { cb(name) })
		}
		fire = append(fire, c.noticeFunc(NoticeSuccess, fmt.Sprintf("%s left the room", msg.Name)))
		if c.operator == msg.Name {
			fire = append(fire, c.reassignOperator()...)
		}

	case model.TypeOperatorChanged:
		c.operator = msg.Operator
		if cb := c.callbacks.OnOperatorChanged; cb != nil {
			name := msg.Operator
			fire = append(fire, func() { cb(name) })
		}

	case model.TypeWheelSpinStarted:
		if msg.Operator != c.me {
			c.spinning = true
			if cb := c.callbacks.OnSpinStarted; cb != nil {
				operator := msg.Operator
				fire = append(fire, func() { cb(operator) })
			}
		}

	case model.TypeWheelSpun:
		// the committed outcome is applied verbatim, observers never
		// recompute the result
		if msg.Operator != c.me {
			c.rotation = msg.Rotation
			c.spinning = false
			if cb := c.callbacks.OnSpinResult; cb != nil {
				rotation, result, operator := msg.Rotation, msg.Result, msg.Operator
				fire = append(fire, func() { cb(rotation, result, operator) })
			}
		}

	case model.TypeItemsUpdated:
		c.items = append([]string(nil), msg.Items...)
		if cb := c.callbacks.OnItemsUpdated; cb != nil {
			items := append([]string(nil), msg.Items...)
			fire = append(fire, func() { cb(items) })
		}

	case model.TypePong:
		c.logger.Trace().Msg("got protocol pong")

	default:
		c.logger.Debug().Str("type", msg.Type).Msg("ignoring unknown message type")
	}
	c.mx.Unlock()

	for _, f := range fire {
		f()
	}
}

// reassignOperator elects a fallback operator after the current one left:
// the first online participant in insertion order. The election is local
// only; clients may diverge briefly until the next operator_changed
// broadcast resynchronizes them. Caller holds the lock.
func (c *Client) reassignOperator() []func() {
	next, ok := c.members.firstOnline()
	if !ok {
		return nil
	}
	c.operator = next
	if cb := c.callbacks.OnOperatorChanged; cb != nil {
		return []func(){func() { cb(next) }}
	}
	return nil
}

// StartSpin begins a spin: picks the next cumulative rotation, announces
// it and arms the auto-stop timer. Only the current operator may call it.
func (c *Client) StartSpin() error {
	c.mx.Lock()
	if c.state != StateJoined {
		c.mx.Unlock()
		return ErrNotConnected
	}
	if c.spinning {
		c.mx.Unlock()
		return ErrSpinInProgress
	}
	if !c.isAuthorizedOperator() {
		c.mx.Unlock()
		return ErrNotOperator
	}

	c.rotation = wheel.Target(c.rotation, c.rng)
	c.spinning = true
	if err := c.sendLocked(model.Message{
		Type:     model.TypeStartSpin,
		Operator: c.me,
	}); err != nil {
		c.spinning = false
		c.mx.Unlock()
		return err
	}
	c.spinTimer = c.clock.AfterFunc(spinDuration, c.autoStop)
	cb := c.callbacks.OnSpinStarted
	me := c.me
	c.mx.Unlock()

	if cb != nil {
		cb(me)
	}
	return nil
}

// StopSpin commits the spin: computes the result for the pending rotation,
// broadcasts it and reports it locally.
func (c *Client) StopSpin() error {
	c.mx.Lock()
	if c.state != StateJoined {
		c.mx.Unlock()
		return ErrNotConnected
	}
	if !c.spinning {
		c.mx.Unlock()
		return ErrNoSpinInProgress
	}
	if !c.isAuthorizedOperator() {
		c.mx.Unlock()
		return ErrNotOperator
	}

	if c.spinTimer != nil {
		c.spinTimer.Stop()
		c.spinTimer = nil
	}
	c.spinning = false

	rotation := c.rotation
	_, result := wheel.Result(rotation, c.items)
	if err := c.sendLocked(model.Message{
		Type:     model.TypeStopSpin,
		Rotation: rotation,
		Result:   result,
		Operator: c.me,
	}); err != nil {
		c.mx.Unlock()
		return err
	}
	cb := c.callbacks.OnSpinResult
	me := c.me
	c.mx.Unlock()

	if cb != nil {
		cb(rotation, result, me)
	}
	return nil
}

func (c *Client) autoStop() {
	if err := c.StopSpin(); err != nil && !errors.Is(err, ErrNoSpinInProgress) {
		c.logger.Warn().Err(err).Msg("auto-stop failed")
	}
}

// UpdateItems replaces the wheel item list. Blank entries become their
// positional placeholder, counts outside the allowed range are rejected
// before anything is sent.
func (c *Client) UpdateItems(items []string) error {
	if len(items) < model.MinItems || len(items) > model.MaxItems {
		return ErrItemCount
	}

	c.mx.Lock()
	if c.state != StateJoined {
		c.mx.Unlock()
		return ErrNotConnected
	}

	clean := make([]string, len(items))
	for i, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			item = model.Placeholder(i)
		}
		clean[i] = item
	}
	c.items = clean
	if err := c.sendLocked(model.Message{
		Type:  model.TypeItemsUpdated,
		Items: clean,
	}); err != nil {
		c.mx.Unlock()
		return err
	}
	cb := c.callbacks.OnItemsUpdated
	out := append([]string(nil), clean...)
	c.mx.Unlock()

	if cb != nil {
		cb(out)
	}
	return nil
}

// HandoffOperator transfers the operator role to another participant and
// announces the change to the room.
func (c *Client) HandoffOperator(name string) error {
	c.mx.Lock()
	if c.state != StateJoined {
		c.mx.Unlock()
		return ErrNotConnected
	}
	c.operator = name
	if err := c.sendLocked(model.Message{
		Type:     model.TypeOperatorChanged,
		Operator: name,
	}); err != nil {
		c.mx.Unlock()
		return err
	}
	cb := c.callbacks.OnOperatorChanged
	c.mx.Unlock()

	if cb != nil {
		cb(name)
	}
	return nil
}

// Ping sends a protocol-level ping. The server answers with a direct pong.
func (c *Client) Ping() error {
	return c.send(model.Message{Type: model.TypePing})
}

// isAuthorizedOperator is the single place the operator policy lives.
// Today it is an advisory name comparison, a hardened deployment would
// swap in a server-issued token check. Caller holds the lock.
func (c *Client) isAuthorizedOperator() bool {
	return c.operator == c.me
}

func (c *Client) send(msg model.Message) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.sendLocked(msg)
}

func (c *Client) sendLocked(msg model.Message) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	msg.Timestamp = c.clock.Now().UnixMilli()
	b, err := json.Marshal(&msg)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) setState(s ConnState) {
	c.mx.Lock()
	if c.state == s {
		c.mx.Unlock()
		return
	}
	c.state = s
	cb := c.callbacks.OnConnectionStateChange
	c.mx.Unlock()

	if cb != nil {
		cb(s)
	}
}

func (c *Client) notify(kind NoticeKind, message string) {
	if cb := c.callbacks.OnNotice; cb != nil {
		cb(kind, message)
	}
}

func (c *Client) noticeFunc(kind NoticeKind, message string) func() {
	cb := c.callbacks.OnNotice
	if cb == nil {
		return func() {}
	}
	return func() { cb(kind, message) }
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.state
}

// Name returns the local participant identity.
func (c *Client) Name() string {
	return c.me
}

// Operator returns the current operator as seen by this client.
func (c *Client) Operator() string {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.operator
}

// IsOperator reports whether the local participant currently holds the
// operator role.
func (c *Client) IsOperator() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.isAuthorizedOperator()
}

// Items returns a copy of the current item list.
func (c *Client) Items() []string {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]string(nil), c.items...)
}

// Rotation returns the current cumulative rotation angle.
func (c *Client) Rotation() float64 {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.rotation
}

// Spinning reports whether a spin is in progress.
func (c *Client) Spinning() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.spinning
}

// Participants returns the membership mirror in insertion order.
func (c *Client) Participants() []ParticipantInfo {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.members.list()
}

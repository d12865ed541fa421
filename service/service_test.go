package service

import (
	"context"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
	"github.com/spinwheel/lucky-wheel/model"
	"github.com/spinwheel/lucky-wheel/relay"
	"github.com/spinwheel/lucky-wheel/storage/memory"
)

type testEnv struct {
	svc   *Service
	store *memory.MemStore
}

func newTestEnv() *testEnv {
	logger := zerolog.Nop()
	store := memory.NewMemStore()
	return &testEnv{
		svc:   NewService(Config{RoomStore: store, Relay: relay.New(&logger), Logger: &logger}),
		store: store,
	}
}

func bufferedWire() model.Wire {
	return model.Wire{
		RX: make(chan model.Message, 8),
		TX: make(chan model.Message, 8),
	}
}

func recv(t *testing.T, wire model.Wire) model.Message {
	t.Helper()
	select {
	case msg := <-wire.TX:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return model.Message{}
	}
}

func expectSilence(t *testing.T, wire model.Wire) {
	t.Helper()
	select {
	case msg := <-wire.TX:
		t.Fatalf("unexpected message: %s", spew.Sdump(msg))
	case <-time.After(100 * time.Millisecond):
	}
}

// join starts a session, joins the room and consumes the room_joined reply.
func (env *testEnv) join(t *testing.T, ctx context.Context, sessionID, roomID, name string) (model.Wire, model.RoomData) {
	t.Helper()

	wire := bufferedWire()
	go env.svc.ServeSession(ctx, sessionID, wire)

	wire.RX <- model.Message{
		Type:        model.TypeJoinRoom,
		RoomID:      roomID,
		Participant: &model.Participant{Name: name},
	}
	msg := recv(t, wire)
	if msg.Type != model.TypeRoomJoined {
		t.Fatalf("first reply = %q, want %q", msg.Type, model.TypeRoomJoined)
	}
	if msg.RoomData == nil {
		t.Fatal("room_joined carries no snapshot")
	}
	if msg.Timestamp == 0 {
		t.Error("room_joined carries no timestamp")
	}
	return wire, *msg.RoomData
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestJoinFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv()

	wireA, snapA := env.join(t, ctx, "sA", "room-1", "alice")
	if snapA.CurrentRotation != 0 || snapA.CurrentOperator != model.DefaultOperator {
		t.Errorf("fresh room snapshot mismatch: %s", spew.Sdump(snapA))
	}
	if len(snapA.Items) != 6 || snapA.Items[0] != "项目1" || snapA.Items[5] != "项目6" {
		t.Errorf("fresh room items mismatch: %v", snapA.Items)
	}

	_, _ = env.join(t, ctx, "sB", "room-1", "bob")

	got := recv(t, wireA)
	if got.Type != model.TypeParticipantJoined || got.Name != "bob" {
		t.Errorf("existing member got %s, want participant_joined for bob", spew.Sdump(got))
	}
}

func TestSpinEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv()

	wireA, _ := env.join(t, ctx, "sA", "room-1", "alice")
	wireB, _ := env.join(t, ctx, "sB", "room-1", "bob")
	recv(t, wireA) // bob joined

	wireA.RX <- model.Message{Type: model.TypeStartSpin, Operator: "alice"}
	started := recv(t, wireB)
	if started.Type != model.TypeWheelSpinStarted || started.Operator != "alice" {
		t.Errorf("observer got %s, want wheel_spin_started by alice", spew.Sdump(started))
	}

	wireA.RX <- model.Message{
		Type:     model.TypeStopSpin,
		Rotation: 1080,
		Result:   "项目5",
		Operator: "alice",
	}
	spun := recv(t, wireB)
	if spun.Type != model.TypeWheelSpun {
		t.Fatalf("observer got %q, want %q", spun.Type, model.TypeWheelSpun)
	}
	if spun.Rotation != 1080 || spun.Result != "项目5" || spun.Operator != "alice" {
		t.Errorf("observer must see the identical committed outcome, got %s", spew.Sdump(spun))
	}
	// the operator gets no echo of its own spin
	expectSilence(t, wireA)

	// the commit lands in the store right after the broadcast
	waitFor(t, func() bool {
		snap, err := env.store.Snapshot("room-1")
		return err == nil && snap.CurrentRotation == 1080
	})

	// late joiner sees the committed outcome in the snapshot
	_, snapC := env.join(t, ctx, "sC", "room-1", "carol")
	if snapC.CurrentRotation != 1080 || snapC.LastResult != "项目5" || snapC.LastOperator != "alice" {
		t.Errorf("late joiner snapshot mismatch: %s", spew.Sdump(snapC))
	}
}

func TestItemsUpdateValidation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv()

	wireA, _ := env.join(t, ctx, "sA", "room-1", "alice")
	wireB, _ := env.join(t, ctx, "sB", "room-1", "bob")
	recv(t, wireA) // bob joined

	// out of range, silently dropped
	wireA.RX <- model.Message{Type: model.TypeItemsUpdated, Items: []string{"only-one"}}
	// in range, relayed
	wireA.RX <- model.Message{Type: model.TypeItemsUpdated, Items: []string{"咖啡", "奶茶"}}

	got := recv(t, wireB)
	if got.Type != model.TypeItemsUpdated {
		t.Fatalf("observer got %q, want %q", got.Type, model.TypeItemsUpdated)
	}
	if len(got.Items) != 2 || got.Items[0] != "咖啡" || got.Items[1] != "奶茶" {
		t.Errorf("observer items = %v, rejected update must not have been applied", got.Items)
	}

	snap, err := env.store.Snapshot("room-1")
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(snap.Items) != 2 {
		t.Errorf("room items = %v, want the validated update only", snap.Items)
	}
}

func TestOperatorChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv()

	wireA, _ := env.join(t, ctx, "sA", "room-1", "alice")
	wireB, _ := env.join(t, ctx, "sB", "room-1", "bob")
	recv(t, wireA) // bob joined

	wireA.RX <- model.Message{Type: model.TypeOperatorChanged, Operator: "bob"}

	got := recv(t, wireB)
	if got.Type != model.TypeOperatorChanged || got.Operator != "bob" {
		t.Errorf("observer got %s, want operator_changed to bob", spew.Sdump(got))
	}

	snap, _ := env.store.Snapshot("room-1")
	if snap.CurrentOperator != "bob" {
		t.Errorf("room operator = %q, want %q", snap.CurrentOperator, "bob")
	}
}

func TestPingGetsDirectPong(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv()

	wireA, _ := env.join(t, ctx, "sA", "room-1", "alice")
	wireB, _ := env.join(t, ctx, "sB", "room-1", "bob")
	recv(t, wireA) // bob joined

	wireA.RX <- model.Message{Type: model.TypePing}
	got := recv(t, wireA)
	if got.Type != model.TypePong {
		t.Errorf("ping reply = %q, want %q", got.Type, model.TypePong)
	}
	// pong is a direct reply, not a broadcast
	expectSilence(t, wireB)
}

func TestUnknownTypeIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv()

	wireA, _ := env.join(t, ctx, "sA", "room-1", "alice")

	wireA.RX <- model.Message{Type: "bogus"}
	wireA.RX <- model.Message{Type: model.TypePing}

	got := recv(t, wireA)
	if got.Type != model.TypePong {
		t.Errorf("got %q after unknown type, want just the pong", got.Type)
	}
}

func TestLeaveBroadcastAndRoomTeardown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv()

	ctxA, cancelA := context.WithCancel(ctx)
	ctxB, cancelB := context.WithCancel(ctx)
	defer cancelA()

	wireA := bufferedWire()
	go env.svc.ServeSession(ctxA, "sA", wireA)
	wireA.RX <- model.Message{
		Type:        model.TypeJoinRoom,
		RoomID:      "room-1",
		Participant: &model.Participant{Name: "alice"},
	}
	recv(t, wireA) // room_joined

	wireB := bufferedWire()
	go env.svc.ServeSession(ctxB, "sB", wireB)
	wireB.RX <- model.Message{
		Type:        model.TypeJoinRoom,
		RoomID:      "room-1",
		Participant: &model.Participant{Name: "bob"},
	}
	recv(t, wireB) // room_joined
	recv(t, wireA) // bob joined

	cancelB()
	got := recv(t, wireA)
	if got.Type != model.TypeParticipantLeft || got.Name != "bob" {
		t.Errorf("got %s, want participant_left for bob", spew.Sdump(got))
	}
	if !env.store.HasRoom("room-1") {
		t.Fatal("room vanished while a member is still present")
	}

	cancelA()
	waitFor(t, func() bool { return !env.store.HasRoom("room-1") })
}

func TestMessagesBeforeJoinAreDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv()

	wire := bufferedWire()
	go env.svc.ServeSession(ctx, "sA", wire)

	wire.RX <- model.Message{Type: model.TypeStartSpin, Operator: "ghost"}
	wire.RX <- model.Message{Type: model.TypePing}

	got := recv(t, wire)
	if got.Type != model.TypePong {
		t.Errorf("got %q, want pong only", got.Type)
	}
}

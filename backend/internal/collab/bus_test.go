package collab

import (
	"testing"
	"time"
)

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		panic("unreachable")
	}
}

func TestBus_OnEmit(t *testing.T) {
	bus := NewBus()
	got := make(chan OperationAppliedEvent, 1)
	bus.On(EventOperationApplied, func(evt Event) {
		got <- evt.(OperationAppliedEvent)
	})

	bus.Emit(OperationAppliedEvent{SessionID: "s1", Revision: 3})

	evt := waitFor(t, got)
	if evt.SessionID != "s1" || evt.Revision != 3 {
		t.Fatalf("got %+v, want SessionID=s1 Revision=3", evt)
	}
}

func TestBus_KindIsolation(t *testing.T) {
	bus := NewBus()
	got := make(chan Event, 2)
	bus.On(EventUserJoined, func(evt Event) { got <- evt })

	// 别的类型不应送达
	bus.Emit(UserLeftEvent{SessionID: "s1", UserID: "u1"})
	bus.Emit(UserJoinedEvent{SessionID: "s1", User: CollabUser{ID: "u2"}})

	evt := waitFor(t, got)
	if _, ok := evt.(UserJoinedEvent); !ok {
		t.Fatalf("got %T, want UserJoinedEvent", evt)
	}
	select {
	case extra := <-got:
		t.Fatalf("unexpected extra event %T", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_Off(t *testing.T) {
	bus := NewBus()
	got := make(chan Event, 1)
	sub := bus.On(EventCursorMoved, func(evt Event) { got <- evt })
	bus.Off(sub)

	bus.Emit(CursorMovedEvent{SessionID: "s1"})

	select {
	case evt := <-got:
		t.Fatalf("got event %T after Off", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

// Emit 绝不等订阅者：订阅者卡死也不能拖住发布方
func TestBus_EmitNeverBlocks(t *testing.T) {
	bus := NewBus()
	gate := make(chan struct{})
	bus.On(EventBroadcast, func(Event) { <-gate })

	done := make(chan struct{})
	go func() {
		// 远超队列容量
		for i := 0; i < 500; i++ {
			bus.Emit(BroadcastEvent{SessionID: "s1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Emit blocked on a slow subscriber")
	}
	close(gate)
}

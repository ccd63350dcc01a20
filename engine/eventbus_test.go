package engine

import (
	"context"
	"testing"

	"brewduel/core"
)

func TestEventBusSyncDispatch(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	defer bus.Close()

	got := 0
	unsub := bus.Subscribe(core.EventXPGranted, func(ctx context.Context, e core.Event) { got++ })
	bus.Publish(context.Background(), core.NewXPGranted("alice", 10, 10))
	if got != 1 {
		t.Fatalf("expected 1 delivery, got %d", got)
	}
	unsub()
	bus.Publish(context.Background(), core.NewXPGranted("alice", 10, 20))
	if got != 1 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", got)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	defer bus.Close()

	var seen []core.EventType
	unsub := bus.SubscribeAll(func(ctx context.Context, e core.Event) { seen = append(seen, e.Type) })
	bus.Publish(context.Background(), core.NewXPGranted("alice", 10, 10))
	bus.Publish(context.Background(), core.NewTierAssigned("orval", core.TierLegendary))
	if len(seen) != 2 || seen[0] != core.EventXPGranted || seen[1] != core.EventTierAssigned {
		t.Fatalf("wildcard subscriber saw %v", seen)
	}
	unsub()
	bus.Publish(context.Background(), core.NewLevelUp("alice", 2))
	if len(seen) != 2 {
		t.Fatal("expected no delivery after unsubscribe")
	}
}

func TestEventBusTypeFiltering(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	defer bus.Close()

	levelUps := 0
	bus.Subscribe(core.EventLevelUp, func(ctx context.Context, e core.Event) { levelUps++ })
	bus.Publish(context.Background(), core.NewXPGranted("alice", 10, 10))
	if levelUps != 0 {
		t.Fatal("xp event must not reach level-up subscriber")
	}
	bus.Publish(context.Background(), core.NewLevelUp("alice", 2))
	if levelUps != 1 {
		t.Fatalf("expected level up delivery, got %d", levelUps)
	}
}

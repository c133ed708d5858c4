package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/njhostel/mysterynight/internal/mysterynight"
	"github.com/njhostel/mysterynight/internal/session"
)

func newTestRegistry(t *testing.T) (*Registry, *time.Time) {
	t.Helper()
	reg := NewRegistry(RegistryConfig{
		Variant:      testVariant(t),
		OverlayDelay: time.Hour,
		IdleTimeout:  30 * time.Minute,
		Logger:       slog.New(slog.DiscardHandler),
	})
	now := time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	t.Cleanup(reg.CloseAll)
	return reg, &now
}

var sam = mysterynight.PlayerIdentity{DisplayName: "Sam", Avatar: "🥷", UserID: 1}

func TestRegistrySweepsIdleSessions(t *testing.T) {
	reg, now := newTestRegistry(t)

	idle, _, err := reg.Open(sam, "/clues/casino-01.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	active, _, _ := reg.Open(sam, "/clues/casino-01.png")
	ch := reg.cfg.Broker.Subscribe(idle)

	*now = now.Add(20 * time.Minute)
	reg.Get(active)
	*now = now.Add(20 * time.Minute)

	if n := reg.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}
	if _, ok := reg.Get(idle); ok {
		t.Error("idle session survived the sweep")
	}
	if _, ok := reg.Get(active); !ok {
		t.Error("active session was swept")
	}
	if _, open := <-ch; open {
		t.Error("subscriber channel still open after sweep")
	}
}

func TestRegistryListWhilePlayersAreActive(t *testing.T) {
	reg := NewRegistry(RegistryConfig{
		Variant:      testVariant(t),
		OverlayDelay: time.Hour,
		IdleTimeout:  time.Hour,
		Logger:       slog.New(slog.DiscardHandler),
	})
	t.Cleanup(reg.CloseAll)

	token, _, err := reg.Open(sam, "/clues/casino-01.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 500 {
			reg.Get(token)
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			if got := reg.List(); len(got) != 1 || got[0].LastSeen.Before(got[0].OpenedAt) {
				t.Errorf("List = %+v", got)
				return
			}
		}
	}()
	wg.Wait()
}

func TestRegistryOpenRejectsIncompleteIdentity(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, _, err := reg.Open(mysterynight.PlayerIdentity{Avatar: "🥷"}, ""); err == nil {
		t.Fatal("expected error for missing name")
	}
	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
}

func TestRegistryRunClosesAllOnShutdown(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, sess, _ := reg.Open(sam, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if reg.Len() != 0 {
		t.Errorf("Len = %d after shutdown", reg.Len())
	}
	if err := sess.Start(); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Start after shutdown = %v, want ErrClosed", err)
	}
}

func TestBrokerPublishesPerSession(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe("a")
	other := b.Subscribe("b")
	defer b.Unsubscribe("a", a)
	defer b.Unsubscribe("b", other)

	st := session.State{Stage: mysterynight.StageQuiz}
	b.Publish("a", session.Event{Type: session.EventState, State: &st})

	select {
	case msg := <-a:
		if msg.Event != session.EventState || len(msg.Data) == 0 {
			t.Errorf("msg = %+v", msg)
		}
	default:
		t.Fatal("subscriber a got nothing")
	}
	select {
	case msg := <-other:
		t.Errorf("subscriber b got %+v", msg)
	default:
	}
}

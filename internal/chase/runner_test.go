package chase

import (
	"context"
	"math/rand/v2"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Guards = 0
	cfg.Fairies = 0
	cfg.Treasures = 1
	cfg.Duration = time.Hour
	cfg.MoveInterval = 2 * time.Millisecond
	cfg.TeleportInterval = 3 * time.Millisecond
	cfg.ClockInterval = time.Millisecond
	cfg.FairyDelay = time.Hour
	return cfg
}

func newTestRunner(t *testing.T, cfg Config, onChange func(Snapshot), onResolve func(Outcome)) *Runner {
	t.Helper()
	g, err := New(cfg, rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := NewRunner(g, nil, onChange, onResolve)
	t.Cleanup(r.Stop)
	return r
}

func TestRunnerStopFreezesGame(t *testing.T) {
	var changes atomic.Int64
	r := newTestRunner(t, fastConfig(), func(Snapshot) { changes.Add(1) }, nil)

	if err := r.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	r.Stop()

	if r.Running() {
		t.Fatal("runner still reports running after Stop")
	}
	stopped := r.Game().Snapshot()
	if stopped.Elapsed == 0 {
		t.Fatal("clock never ticked")
	}
	seen := changes.Load()

	time.Sleep(30 * time.Millisecond)
	if got := r.Game().Snapshot(); !reflect.DeepEqual(got, stopped) {
		t.Errorf("game changed after Stop:\n got %+v\nwant %+v", got, stopped)
	}
	if got := changes.Load(); got != seen {
		t.Errorf("onChange fired %d times after Stop", got-seen)
	}
}

func TestRunnerReportsTimeout(t *testing.T) {
	cfg := fastConfig()
	cfg.Duration = 5 * time.Millisecond

	resolved := make(chan Outcome, 2)
	r := newTestRunner(t, cfg, nil, func(o Outcome) { resolved <- o })

	if err := r.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	select {
	case o := <-resolved:
		if o != OutcomeLost {
			t.Fatalf("outcome = %s, want lost", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout was never reported")
	}

	if r.Running() {
		t.Error("timers still scheduled after resolution")
	}
	select {
	case o := <-resolved:
		t.Errorf("resolution reported twice (second: %s)", o)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRunnerPauseResume(t *testing.T) {
	r := newTestRunner(t, fastConfig(), nil, nil)
	ctx := context.Background()

	if err := r.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := r.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	paused := r.Game().Snapshot()
	if paused.Status != StatusPaused {
		t.Fatalf("status = %s", paused.Status)
	}

	time.Sleep(10 * time.Millisecond)
	if got := r.Game().Snapshot().Elapsed; got != paused.Elapsed {
		t.Fatalf("clock ran while paused: %d -> %d", paused.Elapsed, got)
	}

	if err := r.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for r.Game().Snapshot().Elapsed == paused.Elapsed {
		if time.Now().After(deadline) {
			t.Fatal("clock did not restart after Resume")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunnerMoveResolutionHaltsTimers(t *testing.T) {
	resolved := make(chan Outcome, 1)
	r := newTestRunner(t, fastConfig(), nil, func(o Outcome) { resolved <- o })

	if err := r.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	g := r.Game()
	g.mu.Lock()
	g.treasures = []Token{{Cell: Cell{X: 1, Y: 0}, Visible: true}}
	g.mu.Unlock()

	snap, out, err := r.Move(Right)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if out != OutcomeWon || snap.Status != StatusWon {
		t.Fatalf("outcome = %s, status = %s", out, snap.Status)
	}
	if r.Running() {
		t.Error("timers still scheduled after a winning move")
	}
	select {
	case o := <-resolved:
		t.Errorf("onResolve fired for a move resolution: %s", o)
	case <-time.After(20 * time.Millisecond):
	}
}

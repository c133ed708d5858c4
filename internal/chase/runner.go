package chase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner drives a Game's three interval tasks (guard movement, guard
// teleport, countdown) for as long as the game is running.
//
// Every task runs under an epoch. Stopping bumps the epoch while holding the
// runner lock, so a tick that fires after cancellation sees a stale epoch and
// leaves the game untouched.
type Runner struct {
	game      *Game
	logger    *slog.Logger
	onChange  func(Snapshot)
	onResolve func(Outcome)

	mu     sync.Mutex
	epoch  uint64
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewRunner wires game to its timers. onChange receives a snapshot after
// every mutation; onResolve is called on its own goroutine when a timer
// ends the game. Neither callback may call back into the Runner synchronously.
func NewRunner(game *Game, logger *slog.Logger, onChange func(Snapshot), onResolve func(Outcome)) *Runner {
	if onChange == nil {
		onChange = func(Snapshot) {}
	}
	if onResolve == nil {
		onResolve = func(Outcome) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		game:      game,
		logger:    logger,
		onChange:  onChange,
		onResolve: onResolve,
	}
}

func (r *Runner) Game() *Game { return r.game }

// Begin starts a fresh game and its timers.
func (r *Runner) Begin(ctx context.Context) error {
	if err := r.game.Start(); err != nil {
		return err
	}
	r.start(ctx)
	r.onChange(r.game.Snapshot())
	return nil
}

func (r *Runner) Pause() error {
	r.Stop()
	if err := r.game.Pause(); err != nil {
		return err
	}
	r.onChange(r.game.Snapshot())
	return nil
}

func (r *Runner) Resume(ctx context.Context) error {
	if err := r.game.Resume(); err != nil {
		return err
	}
	r.start(ctx)
	r.onChange(r.game.Snapshot())
	return nil
}

// Reset re-deals a lost (or abandoned) game and restarts its timers.
func (r *Runner) Reset(ctx context.Context) error {
	r.Stop()
	if err := r.game.Reset(); err != nil {
		return err
	}
	r.start(ctx)
	r.onChange(r.game.Snapshot())
	return nil
}

// Move applies a player step. A resolving move halts the timers and is
// reported through the returned Outcome, not through onResolve.
func (r *Runner) Move(d Direction) (Snapshot, Outcome, error) {
	r.mu.Lock()
	outcome, err := r.game.Move(d)
	if err != nil {
		r.mu.Unlock()
		return Snapshot{}, OutcomeNone, err
	}
	if outcome != OutcomeNone {
		r.halt()
	}
	snap := r.game.Snapshot()
	r.mu.Unlock()

	r.onChange(snap)
	return snap, outcome, nil
}

// Running reports whether timers are currently scheduled.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Stop cancels all pending timers and waits for them to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	group := r.halt()
	r.mu.Unlock()

	if group != nil {
		_ = group.Wait()
	}
}

func (r *Runner) start(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	r.epoch++
	epoch := r.epoch
	r.cancel = cancel
	r.group = group

	cfg := r.game.Config()
	group.Go(func() error { return r.every(ctx, epoch, cfg.MoveInterval, r.game.MoveGuards) })
	group.Go(func() error { return r.every(ctx, epoch, cfg.TeleportInterval, r.game.TeleportGuards) })
	group.Go(func() error { return r.every(ctx, epoch, cfg.ClockInterval, r.game.Tick) })
}

// halt cancels the current epoch without waiting. Callers hold r.mu.
func (r *Runner) halt() *errgroup.Group {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.epoch++
	group := r.group
	r.cancel = nil
	r.group = nil
	return group
}

func (r *Runner) every(ctx context.Context, epoch uint64, interval time.Duration, step func() Outcome) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !r.fire(epoch, step) {
				return nil
			}
		}
	}
}

// fire runs one step if epoch is still current and reports whether the
// task should keep going.
func (r *Runner) fire(epoch uint64, step func() Outcome) bool {
	r.mu.Lock()
	if epoch != r.epoch {
		r.mu.Unlock()
		return false
	}
	outcome := step()
	if outcome != OutcomeNone {
		r.halt()
	}
	snap := r.game.Snapshot()
	r.mu.Unlock()

	r.onChange(snap)
	if outcome != OutcomeNone {
		r.logger.Info("chase resolved by timer", "outcome", outcome.String())
		go r.onResolve(outcome)
		return false
	}
	return true
}

// Package session holds one player's run through the hunt: the stage
// sequencer, the collectible tracker and the mini-game that is currently
// mounted.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/njhostel/mysterynight/internal/chase"
	"github.com/njhostel/mysterynight/internal/clue"
	"github.com/njhostel/mysterynight/internal/mysterynight"
	"github.com/njhostel/mysterynight/internal/quiz"
	"github.com/njhostel/mysterynight/internal/variant"
)

var (
	ErrOverlayOpen = errors.New("collectible overlay is open")
	ErrNoOverlay   = errors.New("no overlay to dismiss")
	ErrWrongStage  = errors.New("not available in the current stage")
	ErrClosed      = errors.New("session closed")
)

// gates maps each gated stage to the collectible count it unlocks.
var gates = map[mysterynight.Stage]int{
	mysterynight.StageQuiz:      1,
	mysterynight.StageChaseGame: 2,
	mysterynight.StageClue:      3,
}

const (
	EventState = "state"
	EventChase = "chase"
)

// Event is pushed to the Notifier after every change. Chase events carry
// only the board and come straight from the game timers.
type Event struct {
	Type  string          `json:"type"`
	State *State          `json:"state,omitempty"`
	Chase *chase.Snapshot `json:"chase,omitempty"`
}

type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Observer receives progress milestones, typically for metrics.
type Observer interface {
	StageCompleted(stage mysterynight.Stage)
	ChaseResolved(outcome chase.Outcome)
}

type nopObserver struct{}

func (nopObserver) StageCompleted(mysterynight.Stage) {}
func (nopObserver) ChaseResolved(chase.Outcome)       {}

type Options struct {
	Player       mysterynight.PlayerIdentity
	Variant      *variant.Variant
	ClueRef      string
	OverlayDelay time.Duration
	Logger       *slog.Logger
	Notifier     Notifier
	Observer     Observer
	Rand         *rand.Rand
}

type CollectibleView struct {
	mysterynight.Collectible
	Unlocked bool `json:"unlocked"`
}

type Overlay struct {
	Open         bool              `json:"open"`
	Collected    int               `json:"collected"`
	Total        int               `json:"total"`
	Collectibles []CollectibleView `json:"collectibles"`
	AutoDismiss  bool              `json:"autoDismiss"`
	DismissAt    *time.Time        `json:"dismissAt,omitempty"`
	RevealTheme  bool              `json:"revealTheme"`
	Theme        string            `json:"theme,omitempty"`
	ExternalURL  string            `json:"externalUrl,omitempty"`
}

type ClueState struct {
	Reference string `json:"reference"`
}

type FinalState struct {
	Theme       string `json:"theme"`
	ExternalURL string `json:"externalUrl"`
}

type State struct {
	Player    mysterynight.PlayerIdentity `json:"player"`
	Stage     mysterynight.Stage          `json:"stage"`
	QuizScore int                         `json:"quizScore"`
	ChaseWon  bool                        `json:"chaseWon"`
	Collected int                         `json:"collected"`
	Total     int                         `json:"total"`
	Overlay   Overlay                     `json:"overlay"`
	Quiz      *quiz.State                 `json:"quiz,omitempty"`
	Chase     *chase.Snapshot             `json:"chase,omitempty"`
	Clue      *ClueState                  `json:"clue,omitempty"`
	Final     *FinalState                 `json:"final,omitempty"`
}

// Session is safe for concurrent use. Every mutation runs under mu; chase
// timers never take mu synchronously.
type Session struct {
	variant      *variant.Variant
	clueRef      string
	overlayDelay time.Duration
	logger       *slog.Logger
	notifier     Notifier
	observer     Observer

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	rng          *rand.Rand
	seq          *Sequencer
	tracker      *Tracker
	gate         clue.Gate
	overlay      Overlay
	overlayGen   uint64
	overlayTimer *time.Timer
	pending      *StageResult
	quiz         *quiz.Quiz
	runner       *chase.Runner
	theme        string
	closed       bool
}

func New(opts Options) (*Session, error) {
	seq, err := NewSequencer(opts.Player)
	if err != nil {
		return nil, err
	}
	if opts.Variant == nil {
		return nil, errors.New("session: variant is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Event) {})
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		variant:      opts.Variant,
		clueRef:      opts.ClueRef,
		overlayDelay: opts.OverlayDelay,
		logger:       opts.Logger.With("user_id", opts.Player.UserID),
		notifier:     opts.Notifier,
		observer:     opts.Observer,
		ctx:          ctx,
		cancel:       cancel,
		rng:          opts.Rand,
		seq:          seq,
		tracker:      NewTracker(mysterynight.TotalCollectibles),
		gate:         clue.Gate{Accepted: opts.Variant.Passwords},
	}, nil
}

// Start leaves the welcome screen for the quiz.
func (s *Session) Start() error {
	return s.mutate(mysterynight.StageWelcome, func() error {
		next, err := s.seq.Advance(StageResult{Stage: mysterynight.StageWelcome, Passed: true})
		if err != nil {
			return err
		}
		return s.enter(next)
	})
}

func (s *Session) SelectOption(option int) error {
	return s.mutate(mysterynight.StageQuiz, func() error {
		return s.quiz.Select(option)
	})
}

func (s *Session) NextQuestion() error {
	return s.mutate(mysterynight.StageQuiz, func() error {
		_, err := s.quiz.Next()
		return err
	})
}

func (s *Session) StartChase() error {
	return s.mutate(mysterynight.StageChaseGame, func() error {
		return s.runner.Begin(s.ctx)
	})
}

func (s *Session) PauseChase() error {
	return s.mutate(mysterynight.StageChaseGame, func() error {
		return s.runner.Pause()
	})
}

func (s *Session) ResumeChase() error {
	return s.mutate(mysterynight.StageChaseGame, func() error {
		return s.runner.Resume(s.ctx)
	})
}

// ResetChase re-deals the board after a loss and starts again.
func (s *Session) ResetChase() error {
	return s.mutate(mysterynight.StageChaseGame, func() error {
		return s.runner.Reset(s.ctx)
	})
}

func (s *Session) MoveChase(d chase.Direction) error {
	return s.mutate(mysterynight.StageChaseGame, func() error {
		_, outcome, err := s.runner.Move(d)
		if err != nil {
			return err
		}
		s.chaseOutcome(outcome)
		return nil
	})
}

// GuessClue returns clue.ErrIncorrect on a miss; the player may retry freely.
func (s *Session) GuessClue(guess string) error {
	return s.mutate(mysterynight.StageClue, func() error {
		if err := s.gate.Guess(guess); err != nil {
			return err
		}
		s.complete(StageResult{Stage: mysterynight.StageClue, Passed: true})
		return nil
	})
}

// DismissOverlay closes the collectible overlay and advances to the next stage.
func (s *Session) DismissOverlay() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.overlay.Open {
		s.mu.Unlock()
		return ErrNoOverlay
	}
	err := s.dismiss()
	st := s.snapshot()
	s.mu.Unlock()

	s.publish(st)
	return err
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) Player() mysterynight.PlayerIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.Player()
}

// Close cancels every pending timer. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopOverlayTimer()
	if s.runner != nil {
		s.runner.Stop()
	}
	s.cancel()
}

// mutate runs fn under the lock when the session is in stage with no
// overlay open, then publishes the new state.
func (s *Session) mutate(stage mysterynight.Stage, fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.overlay.Open {
		s.mu.Unlock()
		return ErrOverlayOpen
	}
	if cur := s.seq.Stage(); cur != stage {
		s.mu.Unlock()
		return fmt.Errorf("%w: in %s", ErrWrongStage, cur)
	}
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	st := s.snapshot()
	s.mu.Unlock()

	s.publish(st)
	return nil
}

func (s *Session) publish(st State) {
	s.notifier.Notify(Event{Type: EventState, State: &st})
}

// enter tears down the previous mini-game and mounts the one for stage.
// Callers hold s.mu.
func (s *Session) enter(stage mysterynight.Stage) error {
	s.quiz = nil
	if s.runner != nil {
		s.runner.Stop()
		s.runner = nil
	}

	switch stage {
	case mysterynight.StageQuiz:
		s.quiz = quiz.New(s.variant.Questions, s.quizDone)
	case mysterynight.StageChaseGame:
		rng := rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
		game, err := chase.New(s.variant.Chase, rng)
		if err != nil {
			return fmt.Errorf("mount chase: %w", err)
		}
		var runner *chase.Runner
		runner = chase.NewRunner(game, s.logger,
			func(snap chase.Snapshot) {
				s.notifier.Notify(Event{Type: EventChase, Chase: &snap})
			},
			func(o chase.Outcome) { s.timerResolved(runner, o) },
		)
		s.runner = runner
	}
	s.logger.Info("stage entered", "stage", stage.String())
	return nil
}

// quizDone runs inside quiz.Next, so s.mu is already held.
func (s *Session) quizDone(score int) {
	s.complete(StageResult{Stage: mysterynight.StageQuiz, Passed: true, Score: score})
}

func (s *Session) chaseOutcome(o chase.Outcome) {
	if o == chase.OutcomeNone {
		return
	}
	s.observer.ChaseResolved(o)
	s.logger.Info("chase resolved", "outcome", o.String())
	if o == chase.OutcomeWon {
		s.complete(StageResult{Stage: mysterynight.StageChaseGame, Passed: true})
	}
}

// timerResolved handles a game ended by a timer. It ignores runners that
// have since been replaced.
func (s *Session) timerResolved(r *chase.Runner, o chase.Outcome) {
	s.mu.Lock()
	if s.closed || s.runner != r {
		s.mu.Unlock()
		return
	}
	s.chaseOutcome(o)
	st := s.snapshot()
	s.mu.Unlock()

	s.publish(st)
}

// complete unlocks the stage's collectible and opens the overlay. The
// sequencer advances when the overlay is dismissed. Callers hold s.mu.
func (s *Session) complete(res StageResult) {
	s.pending = &res
	count := s.tracker.Unlock(gates[res.Stage])
	s.observer.StageCompleted(res.Stage)
	s.logger.Info("stage completed", "stage", res.Stage.String(), "collected", count)

	s.overlay = Overlay{
		Open:        true,
		Collected:   count,
		Total:       s.tracker.Total(),
		AutoDismiss: !s.tracker.ShouldReveal(),
	}
	if s.tracker.ShouldReveal() {
		if s.theme == "" {
			s.theme = s.variant.Themes[s.rng.IntN(len(s.variant.Themes))]
		}
		s.overlay.RevealTheme = true
		s.overlay.Theme = s.theme
		s.overlay.ExternalURL = s.variant.ExternalURL
		return
	}

	s.overlayGen++
	gen := s.overlayGen
	at := time.Now().Add(s.overlayDelay)
	s.overlay.DismissAt = &at
	s.overlayTimer = time.AfterFunc(s.overlayDelay, func() { s.autoDismiss(gen) })
}

func (s *Session) autoDismiss(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.overlayGen || !s.overlay.Open {
		s.mu.Unlock()
		return
	}
	err := s.dismiss()
	st := s.snapshot()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("auto dismiss", "error", err)
	}
	s.publish(st)
}

// dismiss closes the overlay and applies the pending stage result. Callers
// hold s.mu.
func (s *Session) dismiss() error {
	s.stopOverlayTimer()
	s.overlay.Open = false
	s.overlay.DismissAt = nil

	if s.pending == nil {
		return nil
	}
	res := *s.pending
	s.pending = nil
	next, err := s.seq.Advance(res)
	if err != nil {
		return err
	}
	return s.enter(next)
}

func (s *Session) stopOverlayTimer() {
	s.overlayGen++
	if s.overlayTimer != nil {
		s.overlayTimer.Stop()
		s.overlayTimer = nil
	}
}

// snapshot builds the client view. Callers hold s.mu.
func (s *Session) snapshot() State {
	st := State{
		Player:    s.seq.Player(),
		Stage:     s.seq.Stage(),
		QuizScore: s.seq.QuizScore(),
		ChaseWon:  s.seq.ChaseWon(),
		Collected: s.tracker.Count(),
		Total:     s.tracker.Total(),
		Overlay:   s.overlay,
	}
	st.Overlay.Total = s.tracker.Total()
	st.Overlay.Collected = s.tracker.Count()
	st.Overlay.Collectibles = make([]CollectibleView, len(s.variant.Collectibles))
	for i, c := range s.variant.Collectibles {
		st.Overlay.Collectibles[i] = CollectibleView{Collectible: c, Unlocked: i < s.tracker.Count()}
	}

	if s.quiz != nil {
		qs := s.quiz.State()
		st.Quiz = &qs
	}
	if s.runner != nil {
		cs := s.runner.Game().Snapshot()
		st.Chase = &cs
	}
	switch st.Stage {
	case mysterynight.StageClue:
		st.Clue = &ClueState{Reference: s.clueRef}
	case mysterynight.StageFinalChallenge:
		st.Final = &FinalState{Theme: s.theme, ExternalURL: s.variant.ExternalURL}
	}
	return st
}

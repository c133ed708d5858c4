package session

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/njhostel/mysterynight/internal/chase"
	"github.com/njhostel/mysterynight/internal/clue"
	"github.com/njhostel/mysterynight/internal/mysterynight"
	"github.com/njhostel/mysterynight/internal/variant"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	stages []mysterynight.Stage
	chases []chase.Outcome
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) StageCompleted(st mysterynight.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, st)
}

func (r *recorder) ChaseResolved(o chase.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chases = append(r.chases, o)
}

func (r *recorder) outcomes() []chase.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.chases)
}

// testVariant is the casino variant with a tiny, guard-free board so a test
// can walk straight to the only treasure.
func testVariant(t *testing.T) *variant.Variant {
	t.Helper()
	v, err := variant.Load("casino")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	v.Chase = chase.Config{
		GridSize:         2,
		Treasures:        1,
		Lives:            3,
		Duration:         time.Hour,
		FairyDelay:       time.Hour,
		MoveInterval:     time.Hour,
		TeleportInterval: time.Hour,
		ClockInterval:    time.Second,
		ChaseChance:      0.4,
		TeleportChance:   0.2,
	}
	return v
}

var alex = mysterynight.PlayerIdentity{DisplayName: "Alex", Avatar: "🥷", UserID: 0}

func newTestSession(t *testing.T, v *variant.Variant, delay time.Duration) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s, err := New(Options{
		Player:       alex,
		Variant:      v,
		ClueRef:      v.ClueLinks[alex.UserID],
		OverlayDelay: delay,
		Notifier:     rec,
		Observer:     rec,
		Rand:         rand.New(rand.NewPCG(5, 6)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s, rec
}

func answerAll(t *testing.T, s *Session, v *variant.Variant) {
	t.Helper()
	for i, q := range v.Questions {
		if err := s.SelectOption(q.Correct); err != nil {
			t.Fatalf("question %d: SelectOption: %v", i, err)
		}
		if err := s.NextQuestion(); err != nil {
			t.Fatalf("question %d: NextQuestion: %v", i, err)
		}
	}
}

func winChase(t *testing.T, s *Session) {
	t.Helper()
	if err := s.StartChase(); err != nil {
		t.Fatalf("StartChase: %v", err)
	}
	target := s.Snapshot().Chase.Treasures[0].Cell
	var moves []chase.Direction
	for range target.X {
		moves = append(moves, chase.Right)
	}
	for range target.Y {
		moves = append(moves, chase.Down)
	}
	for _, d := range moves {
		if err := s.MoveChase(d); err != nil {
			t.Fatalf("MoveChase(%s): %v", d, err)
		}
	}
}

func TestNewRequiresIdentity(t *testing.T) {
	v := testVariant(t)
	_, err := New(Options{Player: mysterynight.PlayerIdentity{Avatar: "🥷"}, Variant: v})
	if !errors.Is(err, mysterynight.ErrMissingIdentity) {
		t.Fatalf("err = %v, want ErrMissingIdentity", err)
	}
}

func TestEndToEnd(t *testing.T) {
	v := testVariant(t)
	s, rec := newTestSession(t, v, time.Hour)

	if st := s.Snapshot(); st.Stage != mysterynight.StageWelcome || st.Player.UserID != 0 {
		t.Fatalf("initial state = %+v", st)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	answerAll(t, s, v)
	st := s.Snapshot()
	if !st.Overlay.Open || st.Overlay.Collected != 1 || !st.Overlay.AutoDismiss {
		t.Fatalf("overlay after quiz = %+v", st.Overlay)
	}
	if st.Quiz.Score != len(v.Questions) || !st.Quiz.Finished {
		t.Fatalf("quiz = %+v", st.Quiz)
	}
	if err := s.SelectOption(0); !errors.Is(err, ErrOverlayOpen) {
		t.Errorf("play behind overlay = %v, want ErrOverlayOpen", err)
	}

	if err := s.DismissOverlay(); err != nil {
		t.Fatalf("DismissOverlay: %v", err)
	}
	st = s.Snapshot()
	if st.Stage != mysterynight.StageChaseGame || st.QuizScore != len(v.Questions) {
		t.Fatalf("after quiz: stage %s, score %d", st.Stage, st.QuizScore)
	}

	winChase(t, s)
	st = s.Snapshot()
	if !st.Overlay.Open || st.Overlay.Collected != 2 {
		t.Fatalf("overlay after chase = %+v", st.Overlay)
	}
	if err := s.DismissOverlay(); err != nil {
		t.Fatalf("DismissOverlay: %v", err)
	}

	st = s.Snapshot()
	if st.Stage != mysterynight.StageClue || !st.ChaseWon {
		t.Fatalf("after chase: stage %s, won %v", st.Stage, st.ChaseWon)
	}
	if st.Clue == nil || st.Clue.Reference != "/clues/casino-00.png" {
		t.Fatalf("clue = %+v", st.Clue)
	}

	if err := s.GuessClue("venice"); !errors.Is(err, clue.ErrIncorrect) {
		t.Fatalf("GuessClue(venice) = %v", err)
	}
	if err := s.GuessClue("las vegas"); err != nil {
		t.Fatalf("GuessClue: %v", err)
	}

	st = s.Snapshot()
	ov := st.Overlay
	if !ov.Open || ov.Collected != 3 || ov.Total != 3 || ov.AutoDismiss || !ov.RevealTheme {
		t.Fatalf("final overlay = %+v", ov)
	}
	if ov.ExternalURL != v.ExternalURL || !slices.Contains(v.Themes, ov.Theme) {
		t.Errorf("final overlay link/theme = %q / %q", ov.ExternalURL, ov.Theme)
	}
	for _, c := range ov.Collectibles {
		if !c.Unlocked {
			t.Errorf("collectible %s still locked", c.Name)
		}
	}

	if err := s.DismissOverlay(); err != nil {
		t.Fatalf("final DismissOverlay: %v", err)
	}
	st = s.Snapshot()
	if st.Stage != mysterynight.StageFinalChallenge || st.Final == nil || st.Final.ExternalURL != v.ExternalURL {
		t.Fatalf("final state = %+v", st)
	}
	if err := s.DismissOverlay(); !errors.Is(err, ErrNoOverlay) {
		t.Errorf("extra dismiss = %v", err)
	}

	want := []mysterynight.Stage{mysterynight.StageQuiz, mysterynight.StageChaseGame, mysterynight.StageClue}
	if !slices.Equal(rec.stages, want) {
		t.Errorf("completed stages = %v, want %v", rec.stages, want)
	}
	if got := rec.outcomes(); !slices.Equal(got, []chase.Outcome{chase.OutcomeWon}) {
		t.Errorf("chase outcomes = %v", got)
	}
}

func TestCollectedNeverRegresses(t *testing.T) {
	v := testVariant(t)
	s, rec := newTestSession(t, v, time.Hour)

	s.Start()
	answerAll(t, s, v)
	s.DismissOverlay()
	winChase(t, s)
	s.DismissOverlay()
	s.GuessClue("lasvegas")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	last := 0
	for _, e := range rec.events {
		if e.State == nil {
			continue
		}
		if e.State.Overlay.Collected < last {
			t.Fatalf("overlay count regressed from %d to %d", last, e.State.Overlay.Collected)
		}
		last = e.State.Overlay.Collected
	}
	if last != 3 {
		t.Errorf("final count = %d", last)
	}
}

func TestOverlayAutoDismiss(t *testing.T) {
	v := testVariant(t)
	s, _ := newTestSession(t, v, 5*time.Millisecond)

	s.Start()
	answerAll(t, s, v)
	if st := s.Snapshot(); st.Overlay.DismissAt == nil {
		t.Fatal("auto-dismiss overlay has no deadline")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().Stage != mysterynight.StageChaseGame {
		if time.Now().After(deadline) {
			t.Fatal("overlay never auto-dismissed")
		}
		time.Sleep(time.Millisecond)
	}
	if s.Snapshot().Overlay.Open {
		t.Error("overlay still open after auto-dismiss")
	}
}

func TestFinalOverlayWaitsForDismissal(t *testing.T) {
	v := testVariant(t)
	s, _ := newTestSession(t, v, time.Millisecond)

	s.Start()
	answerAll(t, s, v)
	s.DismissOverlay()
	winChase(t, s)
	s.DismissOverlay()
	if err := s.GuessClue("LASVEGAS"); err != nil {
		t.Fatalf("GuessClue: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	st := s.Snapshot()
	if st.Stage != mysterynight.StageClue || !st.Overlay.Open {
		t.Errorf("final overlay closed on its own: stage %s, open %v", st.Stage, st.Overlay.Open)
	}
}

func TestCloseCancelsOverlayTimer(t *testing.T) {
	v := testVariant(t)
	s, _ := newTestSession(t, v, 10*time.Millisecond)

	s.Start()
	answerAll(t, s, v)
	s.Close()

	time.Sleep(40 * time.Millisecond)
	if st := s.Snapshot(); st.Stage != mysterynight.StageQuiz {
		t.Errorf("stage moved to %s after Close", st.Stage)
	}
	if err := s.DismissOverlay(); !errors.Is(err, ErrClosed) {
		t.Errorf("DismissOverlay after Close = %v", err)
	}
	s.Close()
}

func TestChaseTimeoutAllowsReset(t *testing.T) {
	v := testVariant(t)
	v.Chase.ClockInterval = time.Millisecond
	v.Chase.Duration = 3 * time.Millisecond
	s, rec := newTestSession(t, v, time.Hour)

	s.Start()
	answerAll(t, s, v)
	s.DismissOverlay()
	if err := s.StartChase(); err != nil {
		t.Fatalf("StartChase: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.outcomes()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("countdown never resolved")
		}
		time.Sleep(time.Millisecond)
	}
	if got := rec.outcomes(); got[0] != chase.OutcomeLost {
		t.Fatalf("outcome = %s", got[0])
	}

	st := s.Snapshot()
	if st.Chase.Status != chase.StatusLost || st.Overlay.Open || st.Stage != mysterynight.StageChaseGame {
		t.Fatalf("after loss: %+v", st)
	}
	if err := s.MoveChase(chase.Right); !errors.Is(err, chase.ErrNotRunning) {
		t.Errorf("move after loss = %v", err)
	}
	if err := s.ResetChase(); err != nil {
		t.Fatalf("ResetChase: %v", err)
	}
	if got := s.Snapshot().Chase.Status; got != chase.StatusRunning && got != chase.StatusLost {
		t.Errorf("status after reset = %s", got)
	}
}

func TestWrongStage(t *testing.T) {
	v := testVariant(t)
	s, _ := newTestSession(t, v, time.Hour)

	tests := []struct {
		name string
		call func() error
	}{
		{"guess", func() error { return s.GuessClue("lasvegas") }},
		{"select", func() error { return s.SelectOption(0) }},
		{"chase", func() error { return s.StartChase() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrWrongStage) {
				t.Errorf("err = %v, want ErrWrongStage", err)
			}
		})
	}
	if err := s.DismissOverlay(); !errors.Is(err, ErrNoOverlay) {
		t.Errorf("DismissOverlay = %v", err)
	}
}

func TestTrackerMonotonic(t *testing.T) {
	tr := NewTracker(3)
	rng := rand.New(rand.NewPCG(9, 9))
	last := 0
	for i := 0; i < 500; i++ {
		got := tr.Unlock(rng.IntN(6) - 1)
		if got < last || got > 3 {
			t.Fatalf("count %d after %d", got, last)
		}
		last = got
	}
	if !tr.ShouldReveal() {
		t.Error("tracker never reached the total")
	}
}

func TestSequencerAdvance(t *testing.T) {
	seq, err := NewSequencer(alex)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := seq.Advance(StageResult{Stage: mysterynight.StageQuiz, Passed: true}); !errors.Is(err, ErrStageMismatch) {
		t.Errorf("skip ahead = %v, want ErrStageMismatch", err)
	}

	steps := []StageResult{
		{Stage: mysterynight.StageWelcome, Passed: true},
		{Stage: mysterynight.StageQuiz, Passed: true, Score: 7},
		{Stage: mysterynight.StageChaseGame, Passed: true},
		{Stage: mysterynight.StageClue, Passed: true},
	}
	for i, res := range steps {
		if res.Stage == mysterynight.StageChaseGame {
			if _, err := seq.Advance(StageResult{Stage: res.Stage}); !errors.Is(err, ErrNotPassed) {
				t.Errorf("lost chase = %v, want ErrNotPassed", err)
			}
		}
		next, err := seq.Advance(res)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if next != mysterynight.Stages[i+1] {
			t.Fatalf("step %d: next = %s", i, next)
		}
	}

	if seq.QuizScore() != 7 || !seq.ChaseWon() {
		t.Errorf("recorded score %d, won %v", seq.QuizScore(), seq.ChaseWon())
	}
	if _, err := seq.Advance(StageResult{Stage: mysterynight.StageFinalChallenge, Passed: true}); !errors.Is(err, ErrFinished) {
		t.Errorf("past final = %v, want ErrFinished", err)
	}
}

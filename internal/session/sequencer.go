package session

import (
	"errors"
	"fmt"

	"github.com/njhostel/mysterynight/internal/mysterynight"
)

var (
	ErrStageMismatch = errors.New("result is for a different stage")
	ErrNotPassed     = errors.New("stage not passed")
	ErrFinished      = errors.New("no stage after the final challenge")
)

// StageResult is what a finished stage hands back.
type StageResult struct {
	Stage  mysterynight.Stage
	Passed bool
	Score  int
}

// Sequencer walks the fixed stage pipeline one step at a time.
type Sequencer struct {
	player    mysterynight.PlayerIdentity
	stage     mysterynight.Stage
	quizScore int
	chaseWon  bool
}

// NewSequencer refuses to run without a complete identity; callers send the
// player back to identity capture on ErrMissingIdentity.
func NewSequencer(player mysterynight.PlayerIdentity) (*Sequencer, error) {
	if err := player.Validate(); err != nil {
		return nil, err
	}
	return &Sequencer{player: player, stage: mysterynight.StageWelcome}, nil
}

func (s *Sequencer) Stage() mysterynight.Stage { return s.stage }

func (s *Sequencer) Player() mysterynight.PlayerIdentity { return s.player }

func (s *Sequencer) QuizScore() int { return s.quizScore }

func (s *Sequencer) ChaseWon() bool { return s.chaseWon }

// Advance records res and moves exactly one stage forward.
func (s *Sequencer) Advance(res StageResult) (mysterynight.Stage, error) {
	if res.Stage != s.stage {
		return s.stage, fmt.Errorf("%w: got %s, current %s", ErrStageMismatch, res.Stage, s.stage)
	}
	next, ok := s.stage.Next()
	if !ok {
		return s.stage, ErrFinished
	}
	if !res.Passed {
		return s.stage, fmt.Errorf("%w: %s", ErrNotPassed, s.stage)
	}

	switch res.Stage {
	case mysterynight.StageQuiz:
		s.quizScore = res.Score
	case mysterynight.StageChaseGame:
		s.chaseWon = true
	}
	s.stage = next
	return next, nil
}

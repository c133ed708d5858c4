// Package quiz runs the multiple-choice trivia stage.
package quiz

import (
	"errors"
	"fmt"

	"github.com/njhostel/mysterynight/internal/mysterynight"
)

var (
	ErrAlreadyChecked = errors.New("answer already checked")
	ErrInvalidOption  = errors.New("invalid option")
	ErrNoSelection    = errors.New("no option selected")
	ErrFinished       = errors.New("quiz finished")
)

// Quiz is not safe for concurrent use; the owning session serializes calls.
type Quiz struct {
	questions  []mysterynight.Question
	onComplete func(score int)

	index    int
	score    int
	selected *int
	finished bool
}

// New starts a quiz at the first question. onComplete fires exactly once,
// from the Next call that finishes the last question.
func New(questions []mysterynight.Question, onComplete func(score int)) *Quiz {
	if onComplete == nil {
		onComplete = func(int) {}
	}
	return &Quiz{questions: questions, onComplete: onComplete}
}

// Select locks in an option for the current question.
func (q *Quiz) Select(option int) error {
	if q.finished {
		return ErrFinished
	}
	if q.selected != nil {
		return ErrAlreadyChecked
	}
	cur := q.questions[q.index]
	if option < 0 || option >= len(cur.Options) {
		return fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}
	q.selected = &option
	return nil
}

// Next scores the locked option and moves on. It reports whether the quiz
// just finished.
func (q *Quiz) Next() (bool, error) {
	if q.finished {
		return false, ErrFinished
	}
	if q.selected == nil {
		return false, ErrNoSelection
	}

	if *q.selected == q.questions[q.index].Correct {
		q.score++
	}
	q.selected = nil

	if q.index < len(q.questions)-1 {
		q.index++
		return false, nil
	}
	q.finished = true
	q.onComplete(q.score)
	return true, nil
}

func (q *Quiz) Score() int { return q.score }

type State struct {
	Index    int                   `json:"index"`
	Total    int                   `json:"total"`
	Score    int                   `json:"score"`
	Question mysterynight.Question `json:"question"`
	Selected *int                  `json:"selected,omitempty"`
	Checked  bool                  `json:"checked"`
	Correct  *int                  `json:"correct,omitempty"`
	Finished bool                  `json:"finished"`
	Tier     string                `json:"tier,omitempty"`
}

// State returns the client view. The correct index only appears once the
// current answer is checked.
func (q *Quiz) State() State {
	s := State{
		Index:    q.index,
		Total:    len(q.questions),
		Score:    q.score,
		Question: q.questions[q.index],
		Finished: q.finished,
	}
	if q.selected != nil {
		sel, correct := *q.selected, q.questions[q.index].Correct
		s.Selected = &sel
		s.Checked = true
		s.Correct = &correct
	}
	if q.finished {
		s.Tier = Tier(q.score)
	}
	return s
}

// Tier is the result glyph shown on the score screen.
func Tier(score int) string {
	switch {
	case score >= 8:
		return "🌟"
	case score >= 5:
		return "✨"
	}
	return "💫"
}

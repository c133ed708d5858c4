// Package clue implements the password gate in front of the final reveal.
package clue

import (
	"errors"
	"strings"
)

var (
	ErrIncorrect  = errors.New("incorrect theme")
	ErrEmptyGuess = errors.New("guess is required")
)

// IncorrectMessage is shown to the player after a wrong guess.
const IncorrectMessage = "Incorrect theme. Try again!"

// Gate accepts any of its literals, compared case-insensitively after trimming
// surrounding whitespace. There is no attempt limit.
type Gate struct {
	Accepted []string
}

func (g Gate) Check(guess string) bool {
	guess = strings.TrimSpace(guess)
	for _, a := range g.Accepted {
		if strings.EqualFold(guess, strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

func (g Gate) Guess(guess string) error {
	if strings.TrimSpace(guess) == "" {
		return ErrEmptyGuess
	}
	if !g.Check(guess) {
		return ErrIncorrect
	}
	return nil
}

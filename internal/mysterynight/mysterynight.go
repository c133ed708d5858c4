// Package mysterynight defines the core domain types shared by the game packages.
// It has zero external dependencies.
package mysterynight

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingIdentity is returned when a player arrives without a complete identity.
var ErrMissingIdentity = errors.New("missing player identity")

type Stage int

const (
	StageWelcome Stage = iota
	StageQuiz
	StageChaseGame
	StageClue
	StageFinalChallenge
)

// Stages is the fixed pipeline order.
var Stages = []Stage{
	StageWelcome,
	StageQuiz,
	StageChaseGame,
	StageClue,
	StageFinalChallenge,
}

var stageNames = map[Stage]string{
	StageWelcome:        "welcome",
	StageQuiz:           "quiz",
	StageChaseGame:      "chase",
	StageClue:           "clue",
	StageFinalChallenge: "final",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Next returns the stage that follows s and false when s is the last one.
func (s Stage) Next() (Stage, bool) {
	if s < StageWelcome || s >= StageFinalChallenge {
		return s, false
	}
	return s + 1, true
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	st, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func ParseStage(name string) (Stage, error) {
	for st, n := range stageNames {
		if strings.EqualFold(n, name) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

type PlayerIdentity struct {
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	UserID      int    `json:"userId"`
}

func (p PlayerIdentity) Validate() error {
	if strings.TrimSpace(p.DisplayName) == "" || p.Avatar == "" || p.UserID < 0 {
		return ErrMissingIdentity
	}
	return nil
}

type Question struct {
	Text    string   `json:"question" yaml:"question"`
	Options []string `json:"options" yaml:"options"`
	Correct int      `json:"-" yaml:"correct"`
}

type Collectible struct {
	Name  string `json:"name" yaml:"name"`
	Emoji string `json:"emoji" yaml:"emoji"`
}

// TotalCollectibles is the number of gated stages that unlock a collectible.
const TotalCollectibles = 3

// Avatars are the glyphs offered on the identity form.
var Avatars = []string{"🕵️‍♀️", "🕵️‍♂️", "🦹‍♀️", "🦹‍♂️", "🥷", "👮‍♀️", "👮‍♂️"}

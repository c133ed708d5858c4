// Package variant loads the deployment data set of a hunt: question bank,
// accepted passwords, clue table, themes, collectibles and chase tuning.
package variant

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/njhostel/mysterynight/internal/chase"
	"github.com/njhostel/mysterynight/internal/mysterynight"
)

//go:embed *.yaml
var builtin embed.FS

var ErrUnknown = errors.New("unknown variant")

type Variant struct {
	Name         string                     `yaml:"name" json:"name"`
	Title        string                     `yaml:"title" json:"title"`
	ExternalURL  string                     `yaml:"externalUrl" json:"-"`
	Passwords    []string                   `yaml:"passwords" json:"-"`
	Themes       []string                   `yaml:"themes" json:"themes"`
	Collectibles []mysterynight.Collectible `yaml:"collectibles" json:"collectibles"`
	Questions    []mysterynight.Question    `yaml:"questions" json:"-"`
	Chase        chase.Config               `yaml:"chase" json:"-"`
	ClueLinks    []string                   `yaml:"clueLinks" json:"-"`
}

// Names lists the embedded variants.
func Names() []string {
	entries, err := builtin.ReadDir(".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Load returns an embedded variant by name.
func Load(name string) (*Variant, error) {
	data, err := builtin.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknown, name, strings.Join(Names(), ", "))
	}
	return Parse(data)
}

func LoadFile(path string) (*Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read variant file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML variant. Chase fields left out fall back to the defaults.
func Parse(data []byte) (*Variant, error) {
	v := Variant{Chase: chase.DefaultConfig()}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode variant: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("variant %q: %w", v.Name, err)
	}
	return &v, nil
}

func (v *Variant) Validate() error {
	if v.Name == "" {
		return errors.New("name is required")
	}
	if len(v.Questions) == 0 {
		return errors.New("at least one question is required")
	}
	for i, q := range v.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: need at least two options", i)
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return fmt.Errorf("question %d: correct index %d out of range", i, q.Correct)
		}
	}
	if len(v.Passwords) == 0 {
		return errors.New("at least one password is required")
	}
	for _, p := range v.Passwords {
		if strings.TrimSpace(p) == "" {
			return errors.New("passwords must not be blank")
		}
	}
	if len(v.ClueLinks) == 0 {
		return errors.New("at least one clue link is required")
	}
	if len(v.Themes) == 0 {
		return errors.New("at least one theme is required")
	}
	if len(v.Collectibles) != mysterynight.TotalCollectibles {
		return fmt.Errorf("need exactly %d collectibles, got %d", mysterynight.TotalCollectibles, len(v.Collectibles))
	}
	if err := v.Chase.Validate(); err != nil {
		return fmt.Errorf("chase: %w", err)
	}
	return nil
}

// MaxUserID is the last id before identity assignment wraps back to 0.
func (v *Variant) MaxUserID() int { return len(v.ClueLinks) - 1 }

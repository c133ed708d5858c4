// Package chase implements the grid chase mini-game: the player collects
// treasures on a square grid while guards hunt them down.
package chase

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotRunning  = errors.New("game is not running")
	ErrInvalidMove = errors.New("invalid direction")
	ErrTransition  = errors.New("invalid game state transition")
)

type Config struct {
	GridSize         int           `yaml:"gridSize"`
	Guards           int           `yaml:"guards"`
	Treasures        int           `yaml:"treasures"`
	Fairies          int           `yaml:"fairies"`
	Lives            int           `yaml:"lives"`
	Duration         time.Duration `yaml:"duration"`
	FairyDelay       time.Duration `yaml:"fairyDelay"`
	MoveInterval     time.Duration `yaml:"moveInterval"`
	TeleportInterval time.Duration `yaml:"teleportInterval"`
	ClockInterval    time.Duration `yaml:"clockInterval"`
	ChaseChance      float64       `yaml:"chaseChance"`
	TeleportChance   float64       `yaml:"teleportChance"`
}

func DefaultConfig() Config {
	return Config{
		GridSize:         10,
		Guards:           6,
		Treasures:        8,
		Fairies:          2,
		Lives:            3,
		Duration:         120 * time.Second,
		FairyDelay:       30 * time.Second,
		MoveInterval:     400 * time.Millisecond,
		TeleportInterval: 5 * time.Second,
		ClockInterval:    time.Second,
		ChaseChance:      0.4,
		TeleportChance:   0.2,
	}
}

func (c Config) Validate() error {
	switch {
	case c.GridSize < 2:
		return fmt.Errorf("grid size must be at least 2, got %d", c.GridSize)
	case c.Guards < 0 || c.Treasures < 1 || c.Fairies < 0:
		return errors.New("need at least one treasure and no negative token counts")
	case c.Guards+c.Treasures+c.Fairies > c.GridSize*c.GridSize-1:
		return fmt.Errorf("%d tokens do not fit on a %dx%d grid", c.Guards+c.Treasures+c.Fairies, c.GridSize, c.GridSize)
	case c.Lives < 1:
		return fmt.Errorf("lives must be positive, got %d", c.Lives)
	case c.MoveInterval <= 0 || c.TeleportInterval <= 0 || c.ClockInterval <= 0:
		return errors.New("timer intervals must be positive")
	case c.Duration < c.ClockInterval:
		return errors.New("duration must cover at least one clock tick")
	case c.ChaseChance < 0 || c.ChaseChance > 1 || c.TeleportChance < 0 || c.TeleportChance > 1:
		return errors.New("chances must be within [0, 1]")
	}
	return nil
}

// ticks converts a wall-clock span into clock ticks.
func (c Config) ticks(d time.Duration) int {
	return int(d / c.ClockInterval)
}

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Token struct {
	Cell
	Collected bool `json:"collected"`
	Visible   bool `json:"visible"`
}

type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection accepts plain names as well as browser key names ("ArrowUp").
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimPrefix(s, "Arrow")) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMove, s)
}

func (d Direction) delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusPaused
	StatusWon
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for st := StatusReady; st <= StatusLost; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown game status %q", b)
}

// Outcome reports whether an operation resolved the game.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeWon
	OutcomeLost
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWon:
		return "won"
	case OutcomeLost:
		return "lost"
	}
	return "none"
}

type Snapshot struct {
	GridSize       int     `json:"gridSize"`
	Status         Status  `json:"status"`
	Player         Cell    `json:"player"`
	Guards         []Cell  `json:"guards"`
	Treasures      []Token `json:"treasures"`
	Fairies        []Token `json:"fairies"`
	Collected      int     `json:"collected"`
	TotalTreasures int     `json:"totalTreasures"`
	Lives          int     `json:"lives"`
	TimeLeft       int     `json:"timeLeft"`
	Elapsed        int     `json:"elapsed"`
}

// Game holds one chase session. All methods are safe for concurrent use;
// nothing changes once the game is won or lost except through Reset.
type Game struct {
	mu  sync.Mutex
	cfg Config
	rng *rand.Rand

	player    Cell
	guards    []Cell
	treasures []Token
	fairies   []Token
	collected int
	lives     int
	timeLeft  int
	elapsed   int
	status    Status
}

// New creates a game with random placements. A nil rng seeds one from the clock.
func New(cfg Config, rng *rand.Rand) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	g := &Game{cfg: cfg, rng: rng}
	g.init()
	return g, nil
}

func (g *Game) init() {
	g.player = Cell{}
	g.collected = 0
	g.lives = g.cfg.Lives
	g.timeLeft = g.cfg.ticks(g.cfg.Duration)
	g.elapsed = 0

	occupied := map[Cell]bool{{}: true}
	free := func() Cell {
		for {
			c := Cell{X: g.rng.IntN(g.cfg.GridSize), Y: g.rng.IntN(g.cfg.GridSize)}
			if !occupied[c] {
				occupied[c] = true
				return c
			}
		}
	}

	g.guards = make([]Cell, g.cfg.Guards)
	for i := range g.guards {
		g.guards[i] = free()
	}
	g.treasures = make([]Token, g.cfg.Treasures)
	for i := range g.treasures {
		g.treasures[i] = Token{Cell: free(), Visible: true}
	}
	g.fairies = make([]Token, g.cfg.Fairies)
	for i := range g.fairies {
		g.fairies[i] = Token{Cell: free()}
	}
}

func (g *Game) Config() Config { return g.cfg }

func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusReady {
		return fmt.Errorf("%w: start from %s", ErrTransition, g.status)
	}
	g.status = StatusRunning
	return nil
}

func (g *Game) Pause() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusRunning {
		return fmt.Errorf("%w: pause from %s", ErrTransition, g.status)
	}
	g.status = StatusPaused
	return nil
}

func (g *Game) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusPaused {
		return fmt.Errorf("%w: resume from %s", ErrTransition, g.status)
	}
	g.status = StatusRunning
	return nil
}

// Reset re-initialises every placement and restarts the game. A won game
// has already been reported and cannot be reset.
func (g *Game) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusWon {
		return fmt.Errorf("%w: reset from %s", ErrTransition, g.status)
	}
	g.init()
	g.status = StatusRunning
	return nil
}

// Move steps the player one cell, clamped to the grid.
func (g *Game) Move(d Direction) (Outcome, error) {
	dx, dy := d.delta()
	if dx == 0 && dy == 0 {
		return OutcomeNone, fmt.Errorf("%w: %q", ErrInvalidMove, d)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusRunning {
		return OutcomeNone, ErrNotRunning
	}
	g.player = g.clamp(Cell{X: g.player.X + dx, Y: g.player.Y + dy})
	return g.resolve(), nil
}

var guardSteps = [...]Cell{{0, -1}, {0, 1}, {-1, 0}, {1, 0}, {0, 0}}

// MoveGuards advances every guard one step: toward the player with
// ChaseChance, otherwise a uniformly random cardinal step or a pause.
func (g *Game) MoveGuards() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusRunning {
		return OutcomeNone
	}

	for i, gd := range g.guards {
		var step Cell
		if g.rng.Float64() < g.cfg.ChaseChance {
			step = toward(gd, g.player)
		} else {
			step = guardSteps[g.rng.IntN(len(guardSteps))]
		}
		g.guards[i] = g.clamp(Cell{X: gd.X + step.X, Y: gd.Y + step.Y})
	}
	return g.resolve()
}

// toward closes the horizontal gap first, then the vertical one.
func toward(from, to Cell) Cell {
	switch {
	case from.X < to.X:
		return Cell{X: 1}
	case from.X > to.X:
		return Cell{X: -1}
	case from.Y < to.Y:
		return Cell{Y: 1}
	case from.Y > to.Y:
		return Cell{Y: -1}
	}
	return Cell{}
}

// TeleportGuards moves each guard, with TeleportChance, to a uniformly
// random cell that holds neither the player nor another guard.
func (g *Game) TeleportGuards() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusRunning {
		return OutcomeNone
	}

	for i := range g.guards {
		if g.rng.Float64() >= g.cfg.TeleportChance {
			continue
		}
		free := g.freeCells(i)
		if len(free) == 0 {
			continue
		}
		g.guards[i] = free[g.rng.IntN(len(free))]
	}
	return g.resolve()
}

func (g *Game) freeCells(guard int) []Cell {
	taken := map[Cell]bool{g.player: true}
	for j, gd := range g.guards {
		if j != guard {
			taken[gd] = true
		}
	}
	cells := make([]Cell, 0, g.cfg.GridSize*g.cfg.GridSize)
	for y := 0; y < g.cfg.GridSize; y++ {
		for x := 0; x < g.cfg.GridSize; x++ {
			if c := (Cell{X: x, Y: y}); !taken[c] {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

// Tick advances the countdown by one clock interval.
func (g *Game) Tick() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusRunning {
		return OutcomeNone
	}

	g.elapsed++
	g.timeLeft--
	if g.elapsed >= g.cfg.ticks(g.cfg.FairyDelay) {
		for i := range g.fairies {
			g.fairies[i].Visible = true
		}
	}
	if g.timeLeft <= 0 {
		g.timeLeft = 0
		g.status = StatusLost
		return OutcomeLost
	}
	return g.resolve()
}

// resolve applies collisions and pickups at the player's cell. Callers hold g.mu.
func (g *Game) resolve() Outcome {
	if g.status != StatusRunning {
		return OutcomeNone
	}

	for _, gd := range g.guards {
		if gd != g.player {
			continue
		}
		g.lives--
		if g.lives <= 0 {
			g.lives = 0
			g.status = StatusLost
			return OutcomeLost
		}
		g.player = Cell{}
		break
	}

	for i := range g.treasures {
		t := &g.treasures[i]
		if t.Collected || t.Cell != g.player {
			continue
		}
		t.Collected = true
		g.collected++
		if g.collected >= len(g.treasures) {
			g.status = StatusWon
			return OutcomeWon
		}
	}

	for i := range g.fairies {
		f := &g.fairies[i]
		if f.Visible && !f.Collected && f.Cell == g.player {
			f.Collected = true
			g.lives++
		}
	}
	return OutcomeNone
}

func (g *Game) clamp(c Cell) Cell {
	c.X = max(0, min(g.cfg.GridSize-1, c.X))
	c.Y = max(0, min(g.cfg.GridSize-1, c.Y))
	return c
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		GridSize:       g.cfg.GridSize,
		Status:         g.status,
		Player:         g.player,
		Guards:         append([]Cell(nil), g.guards...),
		Treasures:      append([]Token(nil), g.treasures...),
		Collected:      g.collected,
		TotalTreasures: len(g.treasures),
		Lives:          g.lives,
		TimeLeft:       g.timeLeft,
		Elapsed:        g.elapsed,
	}
	// Hidden fairies stay off the wire.
	for _, f := range g.fairies {
		if f.Visible {
			s.Fairies = append(s.Fairies, f)
		}
	}
	return s
}

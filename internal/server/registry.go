package server

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/njhostel/mysterynight/internal/metrics"
	"github.com/njhostel/mysterynight/internal/mysterynight"
	"github.com/njhostel/mysterynight/internal/session"
	"github.com/njhostel/mysterynight/internal/variant"
)

type RegistryConfig struct {
	Variant      *variant.Variant
	OverlayDelay time.Duration
	IdleTimeout  time.Duration
	Logger       *slog.Logger
	Broker       *Broker
	Metrics      *metrics.Metrics
}

type entry struct {
	sess     *session.Session
	opened   time.Time
	lastSeen time.Time
}

// Registry holds live sessions by bearer token and closes idle ones.
type Registry struct {
	cfg RegistryConfig
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Broker == nil {
		cfg.Broker = NewBroker()
	}
	return &Registry{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

func (r *Registry) Variant() *variant.Variant { return r.cfg.Variant }

// Open starts a session for player and returns its token.
func (r *Registry) Open(player mysterynight.PlayerIdentity, clueRef string) (string, *session.Session, error) {
	token := uuid.NewString()
	broker := r.cfg.Broker

	opts := session.Options{
		Player:       player,
		Variant:      r.cfg.Variant,
		ClueRef:      clueRef,
		OverlayDelay: r.cfg.OverlayDelay,
		Logger:       r.cfg.Logger,
		Notifier: session.NotifierFunc(func(e session.Event) {
			broker.Publish(token, e)
		}),
	}
	if r.cfg.Metrics != nil {
		opts.Observer = r.cfg.Metrics
	}
	sess, err := session.New(opts)
	if err != nil {
		return "", nil, err
	}

	now := r.now()
	r.mu.Lock()
	r.sessions[token] = &entry{sess: sess, opened: now, lastSeen: now}
	r.mu.Unlock()

	if r.cfg.Metrics != nil {
		r.cfg.Metrics.SessionOpened()
	}
	r.cfg.Logger.Info("session opened", "user_id", player.UserID, "name", player.DisplayName)
	return token, sess, nil
}

// Get returns the session for token and marks it as active.
func (r *Registry) Get(token string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[token]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.sess, true
}

func (r *Registry) Close(token string) bool {
	r.mu.Lock()
	e, ok := r.sessions[token]
	delete(r.sessions, token)
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.release(token, e)
	return true
}

func (r *Registry) release(token string, e *entry) {
	e.sess.Close()
	r.cfg.Broker.Drop(token)
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.SessionClosed()
	}
}

// Sweep closes sessions idle for longer than the idle timeout.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	stale := make(map[string]*entry)
	for token, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			stale[token] = e
			delete(r.sessions, token)
		}
	}
	r.mu.Unlock()

	for token, e := range stale {
		r.release(token, e)
	}
	if len(stale) > 0 {
		r.cfg.Logger.Info("swept idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (r *Registry) Run(ctx context.Context) error {
	interval := max(r.cfg.IdleTimeout/4, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for token, e := range all {
		r.release(token, e)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SessionSummary is the admin view of a live session.
type SessionSummary struct {
	Player    mysterynight.PlayerIdentity `json:"player"`
	Stage     mysterynight.Stage          `json:"stage"`
	Collected int                         `json:"collected"`
	QuizScore int                         `json:"quizScore"`
	OpenedAt  time.Time                   `json:"openedAt"`
	LastSeen  time.Time                   `json:"lastSeen"`
}

func (r *Registry) List() []SessionSummary {
	// Copy the timestamps while the lock is held; Get writes lastSeen.
	r.mu.RLock()
	entries := make([]entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, *e)
	}
	r.mu.RUnlock()

	out := make([]SessionSummary, 0, len(entries))
	for _, e := range entries {
		st := e.sess.Snapshot()
		out = append(out, SessionSummary{
			Player:    st.Player,
			Stage:     st.Stage,
			Collected: st.Collected,
			QuizScore: st.QuizScore,
			OpenedAt:  e.opened,
			LastSeen:  e.lastSeen,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

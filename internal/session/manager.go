package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	mathrand "math/rand/v2"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"lanes/internal/game"
	"lanes/internal/match"
	"lanes/internal/pubsub"
	"lanes/internal/storage"
)

var (
	ErrUnknownRuleset = errors.New("unknown ruleset")
	ErrNotFound       = errors.New("match not found")
)

// DefaultGracePeriod is how long a disconnected player may take to return.
const DefaultGracePeriod = 30 * time.Second

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store
	pub      pubsub.Publisher
	log      *zap.Logger
	cfg      settings
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithPublisher sets where spectator events are published.
func WithPublisher(p pubsub.Publisher) Option {
	return func(m *Manager) { m.pub = p }
}

// WithGracePeriod sets how long a disconnected seat is held.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) { m.cfg.grace = d }
}

// WithTurnTimeout forfeits a player who does not move within d. Zero
// disables the timer.
func WithTurnTimeout(d time.Duration) Option {
	return func(m *Manager) { m.cfg.turnTimeout = d }
}

func withAfterFunc(f afterFunc) Option {
	return func(m *Manager) { m.cfg.after = f }
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.cfg.now = now }
}

// NewManager creates a session manager.
func NewManager(registry *game.Registry, store *storage.Store, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
		pub:      pubsub.Nop{},
		log:      zap.NewNop(),
		cfg: settings{
			grace: DefaultGracePeriod,
			after: realAfterFunc,
			now:   time.Now,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create makes a new match for the named ruleset and persists it.
func (m *Manager) Create(rulesetName string) (*Session, error) {
	rs, ok := m.registry.Get(rulesetName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuleset, rulesetName)
	}
	data, err := json.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("encode ruleset: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	code := generateCode()
	for m.sessions[code] != nil {
		code = generateCode()
	}
	seed := mathrand.Int64()
	mt, err := match.New(code, rs, match.WithSeed(seed), match.WithClock(m.cfg.now))
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateMatch(code, rs.Name, string(data), seed); err != nil {
		return nil, fmt.Errorf("persist match: %w", err)
	}
	s := newSession(code, mt, m.cfg.now(), m.cfg, m.store, m.pub, m.log)
	m.sessions[code] = s
	m.log.Info("match created", zap.String("match", code), zap.String("ruleset", rs.Name))
	return s, nil
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

// List returns info for all active sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].Code < infos[j].Code
	})
	return infos
}

// Restore rebuilds unfinished matches from the move log on startup. Each
// match is replayed from its seed; rows that cannot be replayed are skipped.
func (m *Manager) Restore() error {
	rows, err := m.store.ListMatches("")
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	for _, row := range rows {
		if row.Status == string(match.StatusFinished) || row.Status == string(match.StatusAborted) {
			continue
		}
		log := m.log.With(zap.String("match", row.Code))
		s, err := m.restore(row)
		if err != nil {
			log.Warn("skipping match", zap.Error(err))
			continue
		}
		m.mu.Lock()
		m.sessions[row.Code] = s
		m.mu.Unlock()
		log.Info("match restored", zap.String("status", string(s.match.Status())), zap.Int("moves", len(s.match.Log())))
	}
	return nil
}

func (m *Manager) restore(row storage.MatchRow) (*Session, error) {
	var rs game.Ruleset
	if err := json.Unmarshal([]byte(row.RulesetJSON), &rs); err != nil {
		return nil, fmt.Errorf("decode ruleset: %w", err)
	}
	players, err := m.store.Players(row.Code)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	moves, err := m.store.Moves(row.Code)
	if err != nil {
		return nil, fmt.Errorf("load moves: %w", err)
	}
	records := make([]match.Record, len(moves))
	for i, mv := range moves {
		records[i].Seat = game.Seat(mv.Seat)
		if err := json.Unmarshal([]byte(mv.MoveJSON), &records[i].Move); err != nil {
			return nil, fmt.Errorf("decode move %d: %w", mv.Index, err)
		}
	}

	var mt *match.Match
	if len(players) == 2 {
		mt, err = match.Replay(row.Code, rs, row.Seed, [2]string{players[0].PlayerID, players[1].PlayerID}, records, match.WithClock(m.cfg.now))
	} else {
		mt, err = match.New(row.Code, rs, match.WithSeed(row.Seed), match.WithClock(m.cfg.now))
		for _, p := range players {
			if err == nil {
				_, err = mt.Seat(p.PlayerID)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	s := newSession(row.Code, mt, row.CreatedAt, m.cfg, m.store, m.pub, m.log)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		s.addSlotLocked(&slot{
			seat:     game.Seat(p.Seat),
			playerID: p.PlayerID,
			token:    p.Token,
			state:    SlotReserved,
			since:    m.cfg.now(),
		})
	}
	if mt.Status() == match.StatusInProgress {
		s.resetTurnTimerLocked(mt.Turn())
	}
	return s, nil
}

// Remove deletes a session from memory and storage.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	s, ok := m.sessions[code]
	delete(m.sessions, code)
	m.mu.Unlock()
	if ok {
		s.close()
	}
	if err := m.store.DeleteMatch(code); err != nil {
		m.log.Warn("delete match", zap.String("match", code), zap.Error(err))
	}
}

// CleanupLoop removes stale sessions periodically until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup(maxAge)
		}
	}
}

// cleanup drops finished or never-joined matches older than maxAge.
func (m *Manager) cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.cfg.now()
	for code, s := range m.sessions {
		s.mu.Lock()
		stale := (s.doneLocked() || s.emptyLocked()) && now.Sub(s.CreatedAt) > maxAge
		if stale {
			s.stopTimersLocked()
		}
		s.mu.Unlock()

		if stale {
			m.log.Info("cleaning up match", zap.String("match", code))
			if err := m.store.DeleteMatch(code); err != nil {
				m.log.Warn("delete match", zap.String("match", code), zap.Error(err))
			}
			delete(m.sessions, code)
		}
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	rand.Read(b)
	return hex.EncodeToString(b)
}

package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lanes/internal/game"
	"lanes/internal/match"
	"lanes/internal/pubsub"
	"lanes/internal/storage"
)

// SlotState is where a seat is in its connection lifecycle:
// reserved -> connected <-> disconnected -> forfeited.
type SlotState string

const (
	SlotReserved     SlotState = "reserved"
	SlotConnected    SlotState = "connected"
	SlotDisconnected SlotState = "disconnected"
	SlotForfeited    SlotState = "forfeited"
)

var (
	ErrUnknownToken = errors.New("unknown token")
	ErrSlotOccupied = errors.New("slot already has a live connection")
	ErrMatchPaused  = errors.New("match paused while a player is disconnected")
	ErrForfeited    = errors.New("slot forfeited")
)

// Outcome reasons for forfeits decided by the session.
const (
	ReasonDisconnect = "disconnect"
	ReasonTimeout    = "timeout"
	ReasonResign     = "resign"
)

const sendBuffer = 64

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// settings are shared by every session of a manager.
type settings struct {
	grace       time.Duration
	turnTimeout time.Duration
	after       afterFunc
	now         func() time.Time
}

type slot struct {
	seat     game.Seat
	playerID string
	token    string
	state    SlotState
	since    time.Time
	send     chan []byte
	grace    timer
	graceGen int
}

// Session binds one match to its players' connections and spectators.
// Every call into the match happens with mu held, so the match's event
// sink runs under mu as well.
type Session struct {
	mu sync.Mutex

	Code      string
	Ruleset   string
	CreatedAt time.Time

	match    *match.Match
	slots    [2]*slot
	tokens   map[string]*slot
	watchers map[chan []byte]struct{}

	turnTimer timer
	turnGen   int

	cfg   settings
	log   *zap.Logger
	store *storage.Store
	pub   pubsub.Publisher
}

func newSession(code string, m *match.Match, createdAt time.Time, cfg settings, store *storage.Store, pub pubsub.Publisher, log *zap.Logger) *Session {
	s := &Session{
		Code:      code,
		Ruleset:   m.Ruleset().Name,
		CreatedAt: createdAt,
		match:     m,
		tokens:    make(map[string]*slot),
		watchers:  make(map[chan []byte]struct{}),
		cfg:       cfg,
		log:       log.With(zap.String("match", code)),
		store:     store,
		pub:       pub,
	}
	m.SetSink(s.onEvents)
	return s
}

// NewSubscriber returns a buffered channel suitable for Attach and Watch.
func NewSubscriber() chan []byte {
	return make(chan []byte, sendBuffer)
}

// Join seats playerID and returns the token that identifies the seat from
// now on. The second join starts the match.
func (s *Session) Join(playerID string) (string, game.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat, err := s.match.Seat(playerID)
	if err != nil {
		return "", game.NoSeat, err
	}
	sl := &slot{
		seat:     seat,
		playerID: playerID,
		token:    uuid.NewString(),
		state:    SlotReserved,
		since:    s.cfg.now(),
	}
	s.addSlotLocked(sl)
	if err := s.store.AddPlayer(s.Code, storage.PlayerRow{Seat: int(seat), PlayerID: playerID, Token: sl.token}); err != nil {
		s.log.Error("persist player", zap.Stringer("seat", seat), zap.Error(err))
	}
	s.log.Info("player joined", zap.Stringer("seat", seat), zap.String("player", playerID))
	return sl.token, seat, nil
}

func (s *Session) addSlotLocked(sl *slot) {
	s.slots[sl.seat] = sl
	s.tokens[sl.token] = sl
}

// Attach connects send to the seat owning token. A disconnected seat is a
// reconnect: its grace timer is cancelled. The current view is delivered
// first.
func (s *Session) Attach(token string, send chan []byte) (game.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.tokens[token]
	if !ok {
		return game.NoSeat, ErrUnknownToken
	}
	switch sl.state {
	case SlotConnected:
		return game.NoSeat, ErrSlotOccupied
	case SlotForfeited:
		return game.NoSeat, ErrForfeited
	}

	wasPaused := s.pausedLocked()
	reconnect := sl.state == SlotDisconnected
	if reconnect {
		sl.graceGen++
		if sl.grace != nil {
			sl.grace.Stop()
			sl.grace = nil
		}
	}
	sl.state = SlotConnected
	sl.send = send
	sl.since = s.cfg.now()

	view, err := s.match.PlayerView(sl.seat)
	if err != nil {
		return game.NoSeat, err
	}
	s.deliver(send, Encode(MsgView, view))
	s.presenceLocked(sl)
	if other := s.slots[sl.seat.Opponent()]; other != nil && other.state == SlotDisconnected {
		s.deliver(send, Encode(MsgPresence, presenceOf(other)))
	}
	s.log.Info("player attached", zap.Stringer("seat", sl.seat), zap.Bool("reconnect", reconnect))

	if wasPaused && !s.pausedLocked() && s.match.Status() == match.StatusInProgress {
		s.resetTurnTimerLocked(s.match.Turn())
	}
	return sl.seat, nil
}

// Detach marks the seat behind token disconnected if send is still its
// live connection. An in-progress match pauses and the grace timer starts;
// in the lobby the timer waits for the match to start.
func (s *Session) Detach(token string, send chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.tokens[token]
	if !ok || sl.state != SlotConnected || sl.send != send {
		return
	}
	sl.state = SlotDisconnected
	sl.send = nil
	sl.since = s.cfg.now()
	s.presenceLocked(sl)
	s.log.Info("player detached", zap.Stringer("seat", sl.seat))

	if s.match.Status() != match.StatusInProgress {
		return
	}
	s.stopTurnTimerLocked()
	s.startGraceLocked(sl)
}

func (s *Session) startGraceLocked(sl *slot) {
	sl.graceGen++
	gen := sl.graceGen
	sl.grace = s.cfg.after(s.cfg.grace, func() { s.graceExpired(sl, gen) })
}

func (s *Session) graceExpired(sl *slot, gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl.graceGen != gen || sl.state != SlotDisconnected {
		return
	}
	sl.grace = nil
	sl.state = SlotForfeited
	sl.since = s.cfg.now()
	s.presenceLocked(sl)
	s.log.Info("grace period expired", zap.Stringer("seat", sl.seat))
	if err := s.match.Forfeit(sl.seat, ReasonDisconnect); err != nil {
		s.log.Warn("forfeit after grace", zap.Stringer("seat", sl.seat), zap.Error(err))
	}
}

// Watch registers a spectator stream and delivers the spectator view.
func (s *Session) Watch(send chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[send] = struct{}{}
	s.deliver(send, Encode(MsgView, s.match.SpectatorView()))
}

// Unwatch removes a spectator stream.
func (s *Session) Unwatch(send chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, send)
}

// SubmitMove applies a move for the seat behind token. Accepted moves are
// appended to the persistent move log.
func (s *Session) SubmitMove(token string, mv game.Move) (match.MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.tokens[token]
	if !ok {
		return match.MoveResult{}, ErrUnknownToken
	}
	if sl.state == SlotForfeited {
		return match.MoveResult{}, ErrForfeited
	}
	if s.match.Status() == match.StatusInProgress && s.pausedLocked() {
		return match.MoveResult{}, ErrMatchPaused
	}

	before := s.match.Seq()
	res, err := s.match.SubmitMove(sl.seat, mv)
	if err != nil {
		return res, err
	}
	if res.Accepted && res.Seq > before {
		s.appendMoveLocked(sl.seat, mv)
	}
	return res, nil
}

func (s *Session) appendMoveLocked(seat game.Seat, mv game.Move) {
	data, err := json.Marshal(mv)
	if err != nil {
		s.log.Error("encode move", zap.Error(err))
		return
	}
	row := storage.MoveRow{Index: len(s.match.Log()) - 1, Seat: int(seat), MoveJSON: string(data)}
	if err := s.store.AppendMove(s.Code, row); err != nil {
		s.log.Error("persist move", zap.Int("index", row.Index), zap.Error(err))
	}
}

// Resign forfeits the match for the seat behind token.
func (s *Session) Resign(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.tokens[token]
	if !ok {
		return ErrUnknownToken
	}
	return s.match.Forfeit(sl.seat, ReasonResign)
}

// View returns the player view for the seat behind token.
func (s *Session) View(token string) (match.PlayerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.tokens[token]
	if !ok {
		return match.PlayerView{}, ErrUnknownToken
	}
	return s.match.PlayerView(sl.seat)
}

// SpectatorView returns the view with both hands hidden.
func (s *Session) SpectatorView() match.SpectatorView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match.SpectatorView()
}

// onEvents is the match sink. It runs with s.mu held.
func (s *Session) onEvents(events []match.Event) {
	for _, e := range events {
		for _, sl := range s.slots {
			if sl != nil && sl.state == SlotConnected {
				s.deliver(sl.send, Encode(MsgEvent, e.For(sl.seat)))
			}
		}
		public := Encode(MsgEvent, e.For(game.NoSeat))
		for w := range s.watchers {
			s.deliver(w, public)
		}
		if err := s.pub.Publish(pubsub.EventSubject(s.Code), public); err != nil {
			s.log.Warn("publish event", zap.Uint64("seq", e.Seq), zap.Error(err))
		}

		switch e.Kind {
		case match.EventMatchStarted:
			s.persistStatusLocked(match.StatusInProgress)
			// a seat that dropped in the lobby pauses the match from the start
			for _, sl := range s.slots {
				if sl != nil && sl.state == SlotDisconnected && sl.grace == nil {
					s.startGraceLocked(sl)
					s.presenceLocked(sl)
				}
			}
			s.resetTurnTimerLocked(e.Seat)
		case match.EventTurnChanged:
			s.resetTurnTimerLocked(e.Seat)
		case match.EventMatchEnded:
			s.stopTimersLocked()
			s.persistStatusLocked(match.StatusFinished)
			s.log.Info("match ended", zap.Stringer("winner", e.Seat), zap.String("reason", e.Reason))
		case match.EventMatchAborted:
			s.stopTimersLocked()
			s.persistStatusLocked(match.StatusAborted)
			s.log.Error("match aborted", zap.String("reason", e.Reason))
		}
	}
}

func (s *Session) persistStatusLocked(status match.Status) {
	if err := s.store.UpdateStatus(s.Code, string(status)); err != nil {
		s.log.Error("persist status", zap.String("status", string(status)), zap.Error(err))
	}
}

// deliver never blocks: a full buffer drops the message and the client
// recovers from the sequence gap with a resync.
func (s *Session) deliver(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
	default:
		s.log.Warn("subscriber buffer full, message dropped")
	}
}

func presenceOf(sl *slot) Presence {
	return Presence{Seat: sl.seat, PlayerID: sl.playerID, State: sl.state, Since: sl.since}
}

func (s *Session) presenceLocked(sl *slot) {
	msg := Encode(MsgPresence, presenceOf(sl))
	for _, other := range s.slots {
		if other != nil && other.state == SlotConnected {
			s.deliver(other.send, msg)
		}
	}
	for w := range s.watchers {
		s.deliver(w, msg)
	}
}

func (s *Session) pausedLocked() bool {
	for _, sl := range s.slots {
		if sl != nil && sl.state == SlotDisconnected {
			return true
		}
	}
	return false
}

func (s *Session) resetTurnTimerLocked(seat game.Seat) {
	s.stopTurnTimerLocked()
	if s.cfg.turnTimeout <= 0 || !seat.Valid() || s.pausedLocked() {
		return
	}
	gen := s.turnGen
	s.turnTimer = s.cfg.after(s.cfg.turnTimeout, func() { s.turnExpired(gen, seat) })
}

func (s *Session) stopTurnTimerLocked() {
	s.turnGen++
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
}

func (s *Session) turnExpired(gen int, seat game.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.turnGen || s.pausedLocked() || s.match.Turn() != seat {
		return
	}
	s.turnTimer = nil
	s.log.Info("turn timed out", zap.Stringer("seat", seat))
	if err := s.match.Forfeit(seat, ReasonTimeout); err != nil {
		s.log.Warn("forfeit after timeout", zap.Stringer("seat", seat), zap.Error(err))
	}
}

func (s *Session) stopTimersLocked() {
	s.stopTurnTimerLocked()
	for _, sl := range s.slots {
		if sl == nil {
			continue
		}
		sl.graceGen++
		if sl.grace != nil {
			sl.grace.Stop()
			sl.grace = nil
		}
	}
}

// PlayerInfo describes one seat for the lobby API.
type PlayerInfo struct {
	Seat     game.Seat `json:"seat"`
	PlayerID string    `json:"playerId"`
	State    SlotState `json:"state"`
	Since    time.Time `json:"since"`
}

// Info is the lobby summary of a session.
type Info struct {
	Code       string         `json:"code"`
	Ruleset    string         `json:"ruleset"`
	Status     match.Status   `json:"status"`
	Players    []PlayerInfo   `json:"players"`
	Spectators int            `json:"spectators"`
	Seq        uint64         `json:"seq"`
	Outcome    *match.Outcome `json:"outcome,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Info returns session info for the API.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		Code:       s.Code,
		Ruleset:    s.Ruleset,
		Status:     s.match.Status(),
		Players:    []PlayerInfo{},
		Spectators: len(s.watchers),
		Seq:        s.match.Seq(),
		Outcome:    s.match.Outcome(),
		CreatedAt:  s.CreatedAt,
	}
	for _, sl := range s.slots {
		if sl != nil {
			info.Players = append(info.Players, PlayerInfo{Seat: sl.seat, PlayerID: sl.playerID, State: sl.state, Since: sl.since})
		}
	}
	return info
}

// doneLocked reports whether the match can no longer change.
func (s *Session) doneLocked() bool {
	st := s.match.Status()
	return st == match.StatusFinished || st == match.StatusAborted
}

// emptyLocked reports whether nobody has joined.
func (s *Session) emptyLocked() bool {
	return s.slots[game.SeatA] == nil
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimersLocked()
}

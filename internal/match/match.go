// Package match is the authoritative state machine of one game. A Match is
// the single writer of its state: every mutation goes through SubmitMove,
// Seat or Forfeit, each serialised by the match's lock.
package match

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"lanes/internal/game"
	"lanes/internal/rules"
)

// Status represents the match lifecycle.
type Status string

const (
	StatusLobby      Status = "lobby"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusAborted    Status = "aborted"
)

// OutOfSequence rejects a move whose ExpectedSeq is stale; the client should
// resync with a fresh view.
const OutOfSequence rules.Reason = "OutOfSequence"

var (
	ErrNotStarted    = errors.New("match not started")
	ErrAborted       = errors.New("match aborted")
	ErrMatchFull     = errors.New("match is full")
	ErrAlreadySeated = errors.New("player already seated")
	ErrUnknownSeat   = errors.New("unknown seat")
	ErrFinished      = errors.New("match finished")
)

// Outcome of a finished match. Winner is game.NoSeat for a draw.
type Outcome struct {
	Winner game.Seat `json:"winner"`
	Draw   bool      `json:"draw"`
	Reason string    `json:"reason"`
}

const (
	ReasonStalemate = "stalemate"
	ReasonForfeit   = "forfeit"
)

// MoveResult is the answer to SubmitMove. Events are projected for the
// submitting seat.
type MoveResult struct {
	Accepted  bool             `json:"accepted"`
	Rejection *rules.Rejection `json:"rejection,omitempty"`
	Seq       uint64           `json:"seq"`
	Events    []Event          `json:"events,omitempty"`
}

// Record is one applied move, enough to replay a match from its seed.
type Record struct {
	Seat game.Seat `json:"seat"`
	Move game.Move `json:"move"`
}

type dedupeKey struct {
	seat game.Seat
	id   string
}

// Match is one game between two seats.
type Match struct {
	mu sync.Mutex

	id      string
	ruleset game.Ruleset
	scorer  game.Scorer
	seed    int64
	now     func() time.Time
	sink    Sink

	status         Status
	players        [2]string
	seated         int
	deck           *game.Deck
	fixedDeck      *game.Deck
	full           map[game.Card]int // composition dealt at start
	hands          [2][]game.Card
	board          *game.Board
	turn           game.Seat
	reinforcements [2]int
	seq            uint64
	outcome        *Outcome
	abortReason    string

	applied map[dedupeKey]MoveResult
	log     []Record
}

// Option configures a new match.
type Option func(*Match)

// WithSeed fixes the shuffle seed.
func WithSeed(seed int64) Option {
	return func(m *Match) { m.seed = seed }
}

// WithDeck deals from d exactly as given instead of a shuffled deck.
func WithDeck(d *game.Deck) Option {
	return func(m *Match) { m.fixedDeck = d }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Match) { m.now = now }
}

// WithSink sets the event sink.
func WithSink(s Sink) Option {
	return func(m *Match) { m.sink = s }
}

// New creates a match in the lobby state.
func New(id string, rs game.Ruleset, opts ...Option) (*Match, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	scorer, err := rules.ScorerFor(rs.Scoring)
	if err != nil {
		return nil, err
	}
	m := &Match{
		id:      id,
		ruleset: rs,
		scorer:  scorer,
		seed:    time.Now().UnixNano(),
		now:     time.Now,
		status:  StatusLobby,
		board:   game.NewBoardOf(rs.LaneSpecs()),
		turn:    game.NoSeat,
		applied: make(map[dedupeKey]MoveResult),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fixedDeck != nil && m.fixedDeck.Len() < 2*rs.HandSize {
		return nil, fmt.Errorf("deck of %d cannot deal two hands of %d", m.fixedDeck.Len(), rs.HandSize)
	}
	return m, nil
}

// SetSink replaces the event sink.
func (m *Match) SetSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = s
}

func (m *Match) ID() string            { return m.id }
func (m *Match) Ruleset() game.Ruleset { return m.ruleset }
func (m *Match) Seed() int64           { return m.seed }
func (m *Match) Scorer() game.Scorer   { return m.scorer }

// Status returns the lifecycle state.
func (m *Match) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Seq returns the sequence number of the last emitted event.
func (m *Match) Seq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// Turn returns the seat to move, or game.NoSeat outside of play.
func (m *Match) Turn() game.Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turn
}

// Outcome returns the result of a finished match, or nil.
func (m *Match) Outcome() *Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcome == nil {
		return nil
	}
	o := *m.outcome
	return &o
}

// Players returns the player ids by seat.
func (m *Match) Players() [2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.players
}

// Log returns the applied moves in order.
func (m *Match) Log() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.log...)
}

// Seat places a player in the next free seat. Filling the second seat deals
// the cards and starts the match.
func (m *Match) Seat(playerID string) (game.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusLobby {
		return game.NoSeat, ErrMatchFull
	}
	for i := 0; i < m.seated; i++ {
		if m.players[i] == playerID {
			return game.NoSeat, fmt.Errorf("%w: %s", ErrAlreadySeated, playerID)
		}
	}
	seat := game.Seat(m.seated)
	m.players[seat] = playerID
	m.seated++
	if m.seated == 2 {
		m.start()
	}
	return seat, nil
}

func (m *Match) start() {
	m.deck = m.fixedDeck
	if m.deck == nil {
		m.deck = game.BuildDeck(m.ruleset).Shuffled(m.seed)
	} else {
		m.deck = game.NewDeck(m.deck.Cards())
	}
	m.full = game.CountCards(m.deck.Cards())
	for i := 0; i < m.ruleset.HandSize; i++ {
		for _, seat := range game.Seats {
			c, _ := m.deck.Draw()
			m.hands[seat] = append(m.hands[seat], c)
		}
	}
	m.turn = game.SeatA
	m.reinforcements = [2]int{m.ruleset.Reinforcements, m.ruleset.Reinforcements}
	m.status = StatusInProgress

	events := []Event{m.event(Event{Kind: EventMatchStarted, Seat: m.turn, Lane: NoLane})}
	for _, seat := range game.Seats {
		events = append(events, m.event(Event{
			Kind:    EventHandDealt,
			Seat:    seat,
			Lane:    NoLane,
			Cards:   append([]game.Card(nil), m.hands[seat]...),
			Count:   len(m.hands[seat]),
			private: true,
		}))
	}
	m.emit(events)
}

// event stamps e with the next sequence number.
func (m *Match) event(e Event) Event {
	m.seq++
	e.Seq = m.seq
	e.At = m.now()
	return e
}

func (m *Match) emit(events []Event) {
	if m.sink != nil && len(events) > 0 {
		m.sink(events)
	}
}

func (m *Match) position() rules.Position {
	return rules.Position{
		Ruleset:        m.ruleset,
		Board:          m.board,
		Hands:          m.hands,
		Turn:           m.turn,
		Reinforcements: m.reinforcements,
		Over:           m.status != StatusInProgress,
	}
}

// SubmitMove validates and applies a move by seat. Rejections are reported in
// the result and leave the state untouched. A move with a non-empty ID that
// was already accepted for the same seat returns the original result.
// The error is non-nil only for moves that cannot be evaluated at all
// (lobby, aborted match, unknown seat).
func (m *Match) SubmitMove(seat game.Seat, mv game.Move) (MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.status {
	case StatusLobby:
		return MoveResult{}, ErrNotStarted
	case StatusAborted:
		return MoveResult{}, fmt.Errorf("%w: %s", ErrAborted, m.abortReason)
	}
	if !seat.Valid() {
		return MoveResult{}, fmt.Errorf("%w: %d", ErrUnknownSeat, seat)
	}

	key := dedupeKey{seat: seat, id: mv.ID}
	if mv.ID != "" {
		if res, ok := m.applied[key]; ok {
			return res, nil
		}
	}

	if mv.ExpectedSeq != 0 && mv.ExpectedSeq != m.seq {
		return MoveResult{
			Rejection: &rules.Rejection{
				Reason: OutOfSequence,
				Detail: fmt.Sprintf("expected seq %d, match is at %d", mv.ExpectedSeq, m.seq),
			},
			Seq: m.seq,
		}, nil
	}
	if rej := rules.ValidateMove(m.position(), seat, mv); rej != nil {
		return MoveResult{Rejection: rej, Seq: m.seq}, nil
	}

	events, err := m.apply(seat, mv)
	if err != nil {
		m.abort(err)
		return MoveResult{}, fmt.Errorf("%w: %v", ErrAborted, err)
	}

	res := MoveResult{Accepted: true, Seq: m.seq, Events: Project(events, seat)}
	m.log = append(m.log, Record{Seat: seat, Move: mv})
	if mv.ID != "" {
		m.applied[key] = res
	}
	m.emit(events)
	return res, nil
}

// apply mutates state for a validated move and returns the emitted events.
// An error means an invariant broke and the match must be aborted.
func (m *Match) apply(seat game.Seat, mv game.Move) ([]Event, error) {
	var events []Event

	switch mv.Kind {
	case game.MovePass:
		events = append(events, m.event(Event{Kind: EventTurnPassed, Seat: seat, Lane: NoLane}))

	case game.MoveCommit, game.MoveReinforce:
		m.hands[seat] = game.RemoveCards(m.hands[seat], mv.Cards)
		for _, c := range mv.Cards {
			if err := m.board.CommitCard(mv.Lane, seat, c); err != nil {
				return nil, err
			}
		}
		if mv.Kind == game.MoveReinforce {
			m.reinforcements[seat]--
		}
		events = append(events, m.event(Event{
			Kind:  EventCardCommitted,
			Seat:  seat,
			Lane:  mv.Lane,
			Move:  mv.Kind,
			Cards: append([]game.Card(nil), mv.Cards...),
			Count: len(mv.Cards),
		}))
		if m.ruleset.Refill {
			if drawn := m.refill(seat, len(mv.Cards)); len(drawn) > 0 {
				events = append(events, m.event(Event{
					Kind:    EventCardDrawn,
					Seat:    seat,
					Lane:    NoLane,
					Cards:   drawn,
					Count:   len(drawn),
					private: true,
				}))
			}
		}
	}

	claimEvents, err := m.resolveLanes()
	if err != nil {
		return nil, err
	}
	events = append(events, claimEvents...)

	if m.status == StatusInProgress {
		m.turn = seat.Opponent()
		if m.stalemate() {
			events = append(events, m.finish(Outcome{Winner: game.NoSeat, Draw: true, Reason: ReasonStalemate}))
		} else {
			events = append(events, m.event(Event{Kind: EventTurnChanged, Seat: m.turn, Lane: NoLane}))
		}
	}

	if err := m.checkConservation(); err != nil {
		return nil, err
	}
	return events, nil
}

// refill draws up to n cards for seat without exceeding the hand size. An
// exhausted deck ends the refill early.
func (m *Match) refill(seat game.Seat, n int) []game.Card {
	var drawn []game.Card
	for i := 0; i < n && len(m.hands[seat]) < m.ruleset.HandSize; i++ {
		c, err := m.deck.Draw()
		if errors.Is(err, game.ErrEmptyDeck) {
			break
		}
		m.hands[seat] = append(m.hands[seat], c)
		drawn = append(drawn, c)
	}
	return drawn
}

// unseen is every card not committed to the board.
func (m *Match) unseen() []game.Card {
	out := m.deck.Cards()
	out = append(out, m.hands[game.SeatA]...)
	return append(out, m.hands[game.SeatB]...)
}

// resolveLanes applies claims in lane order and stops at the first claim
// that wins the match.
func (m *Match) resolveLanes() ([]Event, error) {
	var events []Event
	for _, r := range rules.ResolveBoard(m.board, m.scorer, m.unseen(), m.ruleset.TieBreak) {
		switch r.Status {
		case game.ClaimClaimed:
			if err := m.board.MarkClaim(r.Lane, r.By); err != nil {
				return nil, err
			}
			events = append(events, m.event(Event{Kind: EventLaneClaimed, Seat: r.By, Lane: r.Lane}))
			if win := rules.CheckWin(m.board.Claims(), m.ruleset, r.By); win != rules.WinNone {
				events = append(events, m.finish(Outcome{Winner: r.By, Reason: string(win)}))
				return events, nil
			}
		case game.ClaimContested:
			if err := m.board.MarkContested(r.Lane); err != nil {
				return nil, err
			}
			events = append(events, m.event(Event{Kind: EventLaneContested, Seat: game.NoSeat, Lane: r.Lane}))
		}
	}
	return events, nil
}

// stalemate reports whether the match can no longer progress: deck and hands
// are exhausted, or neither seat can commit a card.
func (m *Match) stalemate() bool {
	if m.deck.Len() == 0 && len(m.hands[game.SeatA]) == 0 && len(m.hands[game.SeatB]) == 0 {
		return true
	}
	pos := m.position()
	return !rules.CanAct(pos, game.SeatA) && !rules.CanAct(pos, game.SeatB)
}

func (m *Match) finish(o Outcome) Event {
	m.status = StatusFinished
	m.outcome = &o
	m.turn = game.NoSeat
	out := o
	return m.event(Event{Kind: EventMatchEnded, Seat: o.Winner, Lane: NoLane, Outcome: &out, Reason: o.Reason})
}

func (m *Match) abort(err error) {
	m.status = StatusAborted
	m.abortReason = err.Error()
	m.turn = game.NoSeat
	m.emit([]Event{m.event(Event{Kind: EventMatchAborted, Seat: game.NoSeat, Lane: NoLane, Reason: m.abortReason})})
}

// checkConservation verifies every dealt card is in exactly one of the deck,
// a hand or a lane.
func (m *Match) checkConservation() error {
	now := game.CountCards(m.deck.Cards(), m.hands[game.SeatA], m.hands[game.SeatB], m.board.Cards())
	if len(now) != len(m.full) {
		return fmt.Errorf("%w: card set changed", game.ErrInvariantViolation)
	}
	for c, n := range m.full {
		if now[c] != n {
			return fmt.Errorf("%w: %s counted %d times, dealt %d", game.ErrInvariantViolation, c, now[c], n)
		}
	}
	return nil
}

// Forfeit ends an in-progress match in favour of seat's opponent.
func (m *Match) Forfeit(seat game.Seat, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.status {
	case StatusLobby:
		return ErrNotStarted
	case StatusFinished:
		return ErrFinished
	case StatusAborted:
		return ErrAborted
	}
	if !seat.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownSeat, seat)
	}
	if reason == "" {
		reason = ReasonForfeit
	}
	m.emit([]Event{m.finish(Outcome{Winner: seat.Opponent(), Reason: reason})})
	return nil
}

// LegalMoves lists the moves seat may submit now.
func (m *Match) LegalMoves(seat game.Seat) []game.Move {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusInProgress {
		return nil
	}
	return rules.LegalMoves(m.position(), seat)
}

// CheckWin returns the decided outcome, or re-evaluates the win condition
// for both seats on the current board. It does not change state.
func (m *Match) CheckWin() *Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcome != nil {
		o := *m.outcome
		return &o
	}
	claims := m.board.Claims()
	for _, seat := range game.Seats {
		if win := rules.CheckWin(claims, m.ruleset, seat); win != rules.WinNone {
			return &Outcome{Winner: seat, Reason: string(win)}
		}
	}
	return nil
}

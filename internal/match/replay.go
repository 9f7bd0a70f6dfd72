package match

import (
	"fmt"

	"lanes/internal/game"
)

// Replay rebuilds a match by seating players with the same seed and
// resubmitting log. Every recorded move must be accepted again; anything else
// means the log does not belong to this seed and ruleset.
func Replay(id string, rs game.Ruleset, seed int64, players [2]string, log []Record, opts ...Option) (*Match, error) {
	// the sink is attached after replay so history is not re-emitted
	probe := &Match{}
	for _, opt := range opts {
		opt(probe)
	}
	sink := probe.sink

	opts = append(opts, WithSeed(seed), WithSink(nil))
	m, err := New(id, rs, opts...)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		if _, err := m.Seat(p); err != nil {
			return nil, fmt.Errorf("replay %s: seat %q: %w", id, p, err)
		}
	}
	for i, rec := range log {
		res, err := m.SubmitMove(rec.Seat, rec.Move)
		if err != nil {
			return nil, fmt.Errorf("replay %s: move %d: %w", id, i, err)
		}
		if !res.Accepted {
			return nil, fmt.Errorf("replay %s: move %d (%s by %s) rejected: %v", id, i, rec.Move, rec.Seat, res.Rejection)
		}
	}
	m.SetSink(sink)
	return m, nil
}

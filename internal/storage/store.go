package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a match code has no row.
var ErrNotFound = errors.New("not found")

// MatchRow represents a match in the database. RulesetJSON is the full
// ruleset the match was created with, so a later change to the registry
// cannot alter a replay.
type MatchRow struct {
	Code        string
	Ruleset     string
	RulesetJSON string
	Seed        int64
	Status      string // "lobby", "in_progress", "finished", "aborted"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlayerRow is one seat of a match.
type PlayerRow struct {
	Seat     int
	PlayerID string
	Token    string
}

// MoveRow is one applied move, in application order.
type MoveRow struct {
	Index    int
	Seat     int
	MoveJSON string
}

// Store handles SQLite persistence of the move log.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			code         TEXT PRIMARY KEY,
			ruleset      TEXT NOT NULL,
			ruleset_json TEXT NOT NULL,
			seed         INTEGER NOT NULL,
			status       TEXT NOT NULL DEFAULT 'lobby',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS match_players (
			match_code TEXT NOT NULL REFERENCES matches(code),
			seat       INTEGER NOT NULL,
			player_id  TEXT NOT NULL,
			token      TEXT NOT NULL UNIQUE,
			PRIMARY KEY (match_code, seat)
		);
		CREATE TABLE IF NOT EXISTS moves (
			match_code TEXT NOT NULL REFERENCES matches(code),
			idx        INTEGER NOT NULL,
			seat       INTEGER NOT NULL,
			move_json  TEXT NOT NULL,
			PRIMARY KEY (match_code, idx)
		);
	`)
	return err
}

// CreateMatch inserts a new match in the lobby state.
func (s *Store) CreateMatch(code, ruleset, rulesetJSON string, seed int64) error {
	_, err := s.db.Exec(
		"INSERT INTO matches (code, ruleset, ruleset_json, seed, status) VALUES (?, ?, ?, ?, 'lobby')",
		code, ruleset, rulesetJSON, seed,
	)
	return err
}

const matchColumns = "code, ruleset, ruleset_json, seed, status, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (MatchRow, error) {
	var mr MatchRow
	err := row.Scan(&mr.Code, &mr.Ruleset, &mr.RulesetJSON, &mr.Seed, &mr.Status, &mr.CreatedAt, &mr.UpdatedAt)
	return mr, err
}

// GetMatch retrieves a match by code.
func (s *Store) GetMatch(code string) (*MatchRow, error) {
	mr, err := scanMatch(s.db.QueryRow("SELECT "+matchColumns+" FROM matches WHERE code = ?", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &mr, nil
}

// UpdateStatus changes a match's status.
func (s *Store) UpdateStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE matches SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE code = ?", status, code)
	return err
}

// ListMatches returns all matches with the given status (or all if status is empty).
func (s *Store) ListMatches(status string) ([]MatchRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT " + matchColumns + " FROM matches ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT "+matchColumns+" FROM matches WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []MatchRow
	for rows.Next() {
		mr, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, mr)
	}
	return result, rows.Err()
}

// AddPlayer records the player holding a seat.
func (s *Store) AddPlayer(code string, p PlayerRow) error {
	_, err := s.db.Exec(
		"INSERT INTO match_players (match_code, seat, player_id, token) VALUES (?, ?, ?, ?)",
		code, p.Seat, p.PlayerID, p.Token,
	)
	return err
}

// Players returns the seated players of a match ordered by seat.
func (s *Store) Players(code string) ([]PlayerRow, error) {
	rows, err := s.db.Query("SELECT seat, player_id, token FROM match_players WHERE match_code = ? ORDER BY seat", code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PlayerRow
	for rows.Next() {
		var p PlayerRow
		if err := rows.Scan(&p.Seat, &p.PlayerID, &p.Token); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// AppendMove adds the next move to a match's log. Indexes must be dense and
// start at zero; a duplicate index fails.
func (s *Store) AppendMove(code string, m MoveRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow("SELECT COUNT(*) FROM moves WHERE match_code = ?", code).Scan(&next); err != nil {
		return err
	}
	if m.Index != next {
		return fmt.Errorf("append move %d to %s: log has %d moves", m.Index, code, next)
	}
	if _, err := tx.Exec(
		"INSERT INTO moves (match_code, idx, seat, move_json) VALUES (?, ?, ?, ?)",
		code, m.Index, m.Seat, m.MoveJSON,
	); err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE matches SET updated_at = CURRENT_TIMESTAMP WHERE code = ?", code); err != nil {
		return err
	}
	return tx.Commit()
}

// Moves returns the move log of a match in order.
func (s *Store) Moves(code string) ([]MoveRow, error) {
	rows, err := s.db.Query("SELECT idx, seat, move_json FROM moves WHERE match_code = ? ORDER BY idx", code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []MoveRow
	for rows.Next() {
		var m MoveRow
		if err := rows.Scan(&m.Index, &m.Seat, &m.MoveJSON); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// DeleteMatch removes a match with its players and moves.
func (s *Store) DeleteMatch(code string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		"DELETE FROM moves WHERE match_code = ?",
		"DELETE FROM match_players WHERE match_code = ?",
		"DELETE FROM matches WHERE code = ?",
	} {
		if _, err := tx.Exec(q, code); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

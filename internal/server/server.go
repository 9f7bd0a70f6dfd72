package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"lanes/internal/game"
	"lanes/internal/match"
	"lanes/internal/session"
)

// Server is the HTTP server.
type Server struct {
	mux      *http.ServeMux
	registry *game.Registry
	manager  *session.Manager
	log      *zap.Logger
}

// New creates a server with all routes.
func New(registry *game.Registry, manager *session.Manager, log *zap.Logger) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		manager:  manager,
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/rulesets", s.handleListRulesets)
	s.mux.HandleFunc("GET /api/matches", s.handleListMatches)
	s.mux.HandleFunc("POST /api/matches", s.handleCreateMatch)
	s.mux.HandleFunc("GET /api/matches/{code}", s.handleGetMatch)
	s.mux.HandleFunc("POST /api/matches/{code}/join", s.handleJoin)
	s.mux.HandleFunc("POST /api/matches/{code}/moves", s.handleMove)
	s.mux.HandleFunc("GET /api/matches/{code}/view", s.handleView)
	s.mux.HandleFunc("GET /api/matches/{code}/ws", s.handleWebSocket)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleListRulesets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

type createMatchRequest struct {
	Ruleset string `json:"ruleset"`
}

type createMatchResponse struct {
	Code string `json:"code"`
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Ruleset = strings.TrimSpace(req.Ruleset)
	if req.Ruleset == "" {
		req.Ruleset = game.Standard().Name
	}
	sess, err := s.manager.Create(req.Ruleset)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createMatchResponse{Code: sess.Code})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

type joinRequest struct {
	PlayerID string `json:"playerId"`
}

type joinResponse struct {
	Token string    `json:"token"`
	Seat  game.Seat `json:"seat"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "playerId required")
		return
	}
	token, seat, err := sess.Join(req.PlayerID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Token: token, Seat: seat})
}

// handleMove answers 200 with the result for accepted and rejected moves
// alike; only moves that cannot be evaluated get an error status.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "bearer token required")
		return
	}
	var mv game.Move
	if err := json.NewDecoder(r.Body).Decode(&mv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid move")
		return
	}
	res, err := sess.SubmitMove(token, mv)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		// no token: the spectator view
		writeJSON(w, http.StatusOK, sess.SpectatorView())
		return
	}
	v, err := sess.View(token)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.manager.Get(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, session.ErrNotFound.Error())
	}
	return sess, ok
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrUnknownRuleset):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrUnknownToken):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrForfeited):
		return http.StatusForbidden
	case errors.Is(err, session.ErrSlotOccupied),
		errors.Is(err, session.ErrMatchPaused),
		errors.Is(err, match.ErrMatchFull),
		errors.Is(err, match.ErrAlreadySeated),
		errors.Is(err, match.ErrNotStarted),
		errors.Is(err, match.ErrFinished):
		return http.StatusConflict
	case errors.Is(err, match.ErrAborted):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, session.ErrorPayload{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

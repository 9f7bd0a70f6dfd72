package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"lanes/internal/game"
	"lanes/internal/match"
	"lanes/internal/session"
	"lanes/internal/storage"
)

// --- Test environment ---

type testEnv struct {
	ts    *httptest.Server
	mgr   *session.Manager
	store *storage.Store
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// websocket handlers can outlive the test, so they must not log through t
	log := zap.NewNop()
	reg := game.DefaultRegistry()
	// long grace so no timer outlives the test
	mgr := session.NewManager(reg, store, session.WithLogger(log), session.WithGracePeriod(time.Hour))

	srv := New(reg, mgr, log)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, mgr: mgr, store: store}
}

// --- Context helpers ---

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- REST API helpers ---

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var ep session.ErrorPayload
		json.NewDecoder(resp.Body).Decode(&ep)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d (%s)", want, resp.StatusCode, ep.Message)
	}
}

func createMatchViaAPI(t *testing.T, ts *httptest.Server, ruleset string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/matches", "", createMatchRequest{Ruleset: ruleset})
	expectStatus(t, resp, http.StatusCreated)
	var result createMatchResponse
	decodeBody(t, resp, &result)
	return result.Code
}

func joinViaAPI(t *testing.T, ts *httptest.Server, code, playerID string) joinResponse {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/matches/"+code+"/join", "", joinRequest{PlayerID: playerID})
	expectStatus(t, resp, http.StatusOK)
	var result joinResponse
	decodeBody(t, resp, &result)
	return result
}

// startedMatch creates a match and seats alice and bob. It returns the code
// and the tokens by seat.
func startedMatch(t *testing.T, ts *httptest.Server, ruleset string) (string, [2]string) {
	t.Helper()
	code := createMatchViaAPI(t, ts, ruleset)
	a := joinViaAPI(t, ts, code, "alice")
	b := joinViaAPI(t, ts, code, "bob")
	return code, [2]string{a.Token, b.Token}
}

func viewViaAPI(t *testing.T, ts *httptest.Server, code, token string) match.PlayerView {
	t.Helper()
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/matches/"+code+"/view", token, nil)
	expectStatus(t, resp, http.StatusOK)
	var v match.PlayerView
	decodeBody(t, resp, &v)
	return v
}

func moveViaAPI(t *testing.T, ts *httptest.Server, code, token string, mv game.Move) match.MoveResult {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/matches/"+code+"/moves", token, mv)
	expectStatus(t, resp, http.StatusOK)
	var res match.MoveResult
	decodeBody(t, resp, &res)
	return res
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, code string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/matches/" + code + "/ws"
}

func wsDial(t *testing.T, ts *httptest.Server, code string) *websocket.Conn {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, code), nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	return conn
}

// wsJoin dials, sends a join with token and returns the connection. The
// caller is responsible for closing it.
func wsJoin(t *testing.T, ts *httptest.Server, code, token string) *websocket.Conn {
	t.Helper()
	conn := wsDial(t, ts, code)
	ctx, cancel := timeoutCtx(t)
	defer cancel()
	wsSend(ctx, t, conn, "join", joinPayload{Token: token})
	return conn
}

// wsSend marshals and writes a typed WebSocket message, calling t.Fatal on error.
func wsSend(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	p, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: p})
	if err != nil {
		t.Fatalf("marshal ws message: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("ws write: %v", err)
	}
}

// readWS reads and unmarshals a single WebSocket message.
func readWS(ctx context.Context, conn *websocket.Conn) (WSMessage, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return WSMessage{}, err
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return WSMessage{}, err
	}
	return msg, nil
}

// readUntil reads messages until one of type msgType arrives and decodes
// its payload into v. Other messages are skipped.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType session.MessageType, v any) {
	t.Helper()
	for {
		msg, err := readWS(ctx, conn)
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type != string(msgType) {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(msg.Payload, v); err != nil {
				t.Fatalf("unmarshal %s payload: %v", msgType, err)
			}
		}
		return
	}
}

// readError expects the next message to be an error and returns its text.
func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) string {
	t.Helper()
	msg, err := readWS(ctx, conn)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if msg.Type != string(session.MsgError) {
		t.Fatalf("expected error message, got %q: %s", msg.Type, string(msg.Payload))
	}
	var ep session.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &ep); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	return ep.Message
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func slotState(t *testing.T, mgr *session.Manager, code string, seat game.Seat) session.SlotState {
	t.Helper()
	sess, ok := mgr.Get(code)
	if !ok {
		t.Fatalf("match %s not found", code)
	}
	for _, p := range sess.Info().Players {
		if p.Seat == seat {
			return p.State
		}
	}
	return ""
}

package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"lanes/internal/game"
	"lanes/internal/session"
)

// WSMessage is the JSON envelope for inbound WebSocket messages. Outbound
// messages use the same shape (session.Envelope).
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Token string `json:"token"`
}

// client is one WebSocket connection, either a seat or a spectator.
type client struct {
	sess  *session.Session
	token string // empty for spectators
	send  chan []byte
	log   *zap.Logger
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Get(r.PathValue("code"))
	if !ok {
		http.Error(w, session.ErrNotFound.Error(), http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		s.log.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	log := s.log.With(zap.String("match", sess.Code))

	// First message must be a join or a watch
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		sendWSError(ctx, conn, "invalid message")
		return
	}

	c := &client{sess: sess, send: session.NewSubscriber(), log: log}
	switch msg.Type {
	case "join":
		var join joinPayload
		if err := json.Unmarshal(msg.Payload, &join); err != nil || join.Token == "" {
			sendWSError(ctx, conn, "invalid join payload")
			return
		}
		seat, err := sess.Attach(join.Token, c.send)
		if err != nil {
			sendWSError(ctx, conn, err.Error())
			return
		}
		c.token = join.Token
		c.log = log.With(zap.Stringer("seat", seat))
		defer sess.Detach(join.Token, c.send)
	case "watch":
		sess.Watch(c.send)
		defer sess.Unwatch(c.send)
	default:
		sendWSError(ctx, conn, "first message must be a join or a watch")
		return
	}

	// Writer goroutine: send messages from the channel to the websocket
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-c.send:
				if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: handle incoming messages
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(session.EncodeError("invalid message"))
			continue
		}
		c.handle(msg)
	}
	c.log.Debug("websocket closed")
}

func (c *client) handle(msg WSMessage) {
	if c.token == "" && msg.Type != "resync" {
		c.reply(session.EncodeError("spectators can only resync"))
		return
	}
	switch msg.Type {
	case "move":
		var mv game.Move
		if err := json.Unmarshal(msg.Payload, &mv); err != nil {
			c.reply(session.EncodeError("invalid move payload"))
			return
		}
		res, err := c.sess.SubmitMove(c.token, mv)
		if err != nil {
			c.reply(session.EncodeError(err.Error()))
			return
		}
		// the events reach this connection as event messages already
		res.Events = nil
		c.reply(session.Encode(session.MsgResult, res))

	case "resync":
		if c.token == "" {
			c.reply(session.Encode(session.MsgView, c.sess.SpectatorView()))
			return
		}
		v, err := c.sess.View(c.token)
		if err != nil {
			c.reply(session.EncodeError(err.Error()))
			return
		}
		c.reply(session.Encode(session.MsgView, v))

	case "resign":
		if err := c.sess.Resign(c.token); err != nil {
			c.reply(session.EncodeError(err.Error()))
		}

	default:
		c.reply(session.EncodeError("unknown message type: " + msg.Type))
	}
}

// reply queues a message for this connection only, dropping it when the
// buffer is full.
func (c *client) reply(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("client buffer full, reply dropped")
	}
}

func sendWSError(ctx context.Context, conn *websocket.Conn, message string) {
	conn.Write(ctx, websocket.MessageText, session.EncodeError(message))
}

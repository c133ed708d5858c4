package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"

	"github.com/njhostel/mysterynight/internal/chase"
	"github.com/njhostel/mysterynight/internal/session"
)

// ChaseCommand is a client message on the chase websocket. An empty action
// means a move in Direction.
type ChaseCommand struct {
	Action    string `json:"action,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// wsFrame is a server message on the chase websocket.
type wsFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

var errSessionGone = errors.New("session closed")

// handleChaseWS carries arrow-key input for the chase game and pushes every
// state and board change back on the same connection.
func handleChaseWS(sessions *Registry, broker *Broker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}
		ch := broker.Subscribe(token)
		defer broker.Unsubscribe(token, ch)

		sess, ok := sessions.Get(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		// The socket lives as long as the client and the session do.
		ctx := r.Context()

		snap, _ := json.Marshal(sess.Snapshot())
		if err := writeFrame(ctx, conn, wsFrame{Type: session.EventState, Data: snap}); err != nil {
			return
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case msg, ok := <-ch:
					if !ok {
						conn.Close(websocket.StatusNormalClosure, "session closed")
						return errSessionGone
					}
					if err := writeFrame(ctx, conn, wsFrame{Type: msg.Event, Data: msg.Data}); err != nil {
						return err
					}
				}
			}
		})
		g.Go(func() error {
			for {
				_, data, err := conn.Read(ctx)
				if err != nil {
					return err
				}
				if err := applyChaseCommand(sess, data); err != nil {
					_, msg := sessionError(err)
					if err := writeFrame(ctx, conn, wsFrame{Type: "error", Error: msg}); err != nil {
						return err
					}
				}
				sessions.Get(token) // touch
			}
		})

		err = g.Wait()
		if errors.Is(err, errSessionGone) {
			return
		}
		logger.Debug("chase websocket ended", "error", err)
	}
}

func applyChaseCommand(sess *session.Session, data []byte) error {
	var cmd ChaseCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return errInvalidBody
	}
	switch cmd.Action {
	case "", "move":
		d, err := chase.ParseDirection(cmd.Direction)
		if err != nil {
			return err
		}
		return sess.MoveChase(d)
	case "start":
		return sess.StartChase()
	case "pause":
		return sess.PauseChase()
	case "resume":
		return sess.ResumeChase()
	case "reset":
		return sess.ResetChase()
	}
	return errInvalidBody
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f wsFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

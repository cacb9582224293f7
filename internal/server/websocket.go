package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/game"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client-to-server message types.
const (
	msgToggleReady = "toggle_ready"
	msgStartGame   = "start_game"
	msgStartVoting = "start_voting"
	msgCastVote    = "cast_vote"
	msgSpyGuess    = "spy_guess"
	msgReveal      = "reveal"
	msgRestart     = "restart"
	msgCancelGame  = "cancel_game"
	msgLeave       = "leave"
)

// socket serializes writes; gorilla connections allow one writer at a time.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func writeMessage[T any](s *socket, msgType string, data T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(internal.Message[T]{Type: msgType, Data: data})
}

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// HandleWebSocket streams the caller's room as it changes and accepts game
// commands on the same connection.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// 1. Resolve the session before upgrading
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}
	sess, ok := s.lookupSession(sessionID)
	if !ok {
		http.Error(w, errMissingSession.Error(), http.StatusUnauthorized)
		return
	}
	code := roomCode(r)
	if sess.client.RoomCode() != code {
		http.Error(w, errWrongRoom.Error(), http.StatusForbidden)
		return
	}

	// 2. Upgrade connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade failed: ", err)
		return
	}
	sock := &socket{conn: conn}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Subscribe to the room
	views, err := sess.client.Watch(ctx)
	if err != nil {
		_ = writeMessage(sock, internal.MessageError, internal.ErrorData{Message: game.UserMessage(err)})
		return
	}
	log.Printf("[HandleWebSocket] room=%s: %s connected", code, sess.client.PlayerName())

	// 4. Read commands until the peer goes away
	go func() {
		defer cancel()
		s.handleMessages(ctx, sess, sock)
	}()

	// 5. Stream views
	s.streamViews(ctx, sock, views)
}

func (s *Server) streamViews(ctx context.Context, sock *socket, views <-chan game.View) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			if err := s.sendView(sock, v); err != nil {
				log.Printf("[streamViews] room=%s: write failed: %v", v.Code, err)
				return
			}
			if v.Loaded && !v.Exists {
				return
			}
		}
	}
}

func (s *Server) sendView(sock *socket, v game.View) error {
	if v.Loaded && !v.Exists {
		return writeMessage(sock, internal.MessageRoomClosed, internal.RoomClosedData{
			RoomID:  v.Code,
			Message: game.NoticeRoomClosed,
		})
	}
	if v.Changed {
		return writeMessage(sock, internal.MessageRoomSnapshot, internal.RoomSnapshotData{
			Room:          v.Room.RedactFor(v.Me),
			Me:            v.Me,
			IsHost:        v.IsHost,
			TimeRemaining: v.DisplayRemaining.Milliseconds(),
			Revealing:     v.Revealing,
			Notice:        v.Notice,
		})
	}
	return writeMessage(sock, internal.MessageTimerUpdate, internal.TimerUpdateData{
		TimeRemaining: v.DisplayRemaining.Milliseconds(),
		Phase:         v.Phase(),
		IsActive:      v.TimerActive,
		Revealing:     v.Revealing,
	})
}

// handleMessages processes incoming WebSocket messages for a session
func (s *Server) handleMessages(ctx context.Context, sess *session, sock *socket) {
	for {
		_, rawMessage, err := sock.conn.ReadMessage()
		if err != nil {
			s.debugf("[handleMessages] read ended for %s: %v", sess.client.PlayerName(), err)
			return
		}
		var baseMsg internal.Message[json.RawMessage]
		if err := json.Unmarshal(rawMessage, &baseMsg); err != nil {
			log.Printf("Failed to parse base message: %v", err)
			continue
		}
		s.debugf("Received message type: %s from player: %s", baseMsg.Type, sess.client.PlayerName())

		if err := s.dispatch(ctx, sess, baseMsg); err != nil {
			if werr := writeMessage(sock, internal.MessageError, internal.ErrorData{Message: messageFor(err)}); werr != nil {
				return
			}
		}
		if baseMsg.Type == msgLeave {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sess *session, msg internal.Message[json.RawMessage]) error {
	c := sess.client
	var err error
	switch msg.Type {
	case msgToggleReady:
		_, err = c.ToggleReady(ctx)
	case msgStartGame:
		_, err = c.StartGame(ctx)
	case msgStartVoting:
		_, err = c.StartVoting(ctx)
	case msgCastVote:
		var accused string
		if err := json.Unmarshal(msg.Data, &accused); err != nil {
			return withStatus(http.StatusBadRequest, errBadRequest)
		}
		_, err = c.CastVote(ctx, accused)
	case msgSpyGuess:
		var guess string
		if err := json.Unmarshal(msg.Data, &guess); err != nil {
			return withStatus(http.StatusBadRequest, errBadRequest)
		}
		_, err = c.SubmitSpyGuess(ctx, guess)
	case msgReveal:
		_, err = c.EndVotingAndReveal(ctx)
	case msgRestart:
		_, err = c.Restart(ctx)
	case msgCancelGame:
		_, err = c.CancelGame(ctx)
	case msgLeave:
		c.Leave(ctx)
	default:
		log.Printf("[dispatch] unknown message type %q", msg.Type)
	}
	return err
}

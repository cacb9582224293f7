package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/catalog"
	"github.com/scythe504/spyroom-backend/internal/game"
	"github.com/scythe504/spyroom-backend/internal/identity"
	"github.com/scythe504/spyroom-backend/internal/utils"
)

const qrCodeSize = 256

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/session", s.api(s.CreateSession)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/catalogs", s.api(s.ListCatalogs)).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/rooms", s.api(s.CreateRoom)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{code}", s.api(s.GetRoom)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{code}", s.api(s.inRoom(s.CloseRoom))).Methods(http.MethodDelete)
	r.HandleFunc("/rooms/{code}/qr.png", s.RoomQRCode).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{code}/join", s.api(s.JoinRoom)).Methods(http.MethodPost, http.MethodOptions)

	// Everything below acts on the room the session is in.
	actions := map[string]func(ctx context.Context, sess *session, r *http.Request) (*internal.Room, error){
		"leave":   s.LeaveRoom,
		"ready":   s.Ready,
		"start":   roomAction((*game.Client).StartGame),
		"voting":  roomAction((*game.Client).StartVoting),
		"reveal":  roomAction((*game.Client).EndVotingAndReveal),
		"restart": roomAction((*game.Client).Restart),
		"cancel":  roomAction((*game.Client).CancelGame),
		"votes":   s.CastVote,
		"guess":   s.SpyGuess,
	}
	for path, h := range actions {
		r.HandleFunc("/rooms/{code}/"+path, s.api(s.inRoom(h))).Methods(http.MethodPost, http.MethodOptions)
	}

	r.HandleFunc("/ws/{code}", s.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, "+SessionHeader)
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type apiFunc func(w http.ResponseWriter, r *http.Request) (int, any, error)

// api wraps a handler into the timed Response envelope.
func (s *Server) api(h apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now().UnixMilli()

		status, data, err := h(w, r)
		if err != nil {
			status = statusFor(err)
			data = internal.ErrorData{Message: messageFor(err)}
			if status >= http.StatusInternalServerError {
				log.Printf("[API] %s %s: %v", r.Method, r.URL.Path, err)
			} else {
				s.debugf("[API] %s %s: %v", r.Method, r.URL.Path, err)
			}
		}

		resp := internal.Response{
			StatusCode:    status,
			RespStartTime: startTime,
			Data:          data,
		}
		endTime := time.Now().UnixMilli()
		resp.RespEndTime = endTime
		resp.NetRespTime = endTime - startTime

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("Error encoding response: %v", err)
		}
	}
}

func decodeBody(r *http.Request, into any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return withStatus(http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
	}
	return nil
}

func (s *Server) requireSession(r *http.Request) (*session, error) {
	sess, ok := s.lookupSession(r.Header.Get(SessionHeader))
	if !ok {
		return nil, withStatus(http.StatusUnauthorized, errMissingSession)
	}
	return sess, nil
}

func roomCode(r *http.Request) string {
	return utils.NormalizeRoomCode(mux.Vars(r)["code"])
}

// inRoom resolves the session and checks it is in the room named by the
// path before running h. The room is answered redacted for the caller.
func (s *Server) inRoom(h func(ctx context.Context, sess *session, r *http.Request) (*internal.Room, error)) apiFunc {
	return func(w http.ResponseWriter, r *http.Request) (int, any, error) {
		sess, err := s.requireSession(r)
		if err != nil {
			return 0, nil, err
		}
		if code := roomCode(r); sess.client.RoomCode() != code {
			return 0, nil, withStatus(http.StatusForbidden, errWrongRoom)
		}
		me := sess.client.PlayerName()
		room, err := h(r.Context(), sess, r)
		if err != nil {
			return 0, nil, err
		}
		if room == nil {
			return http.StatusOK, nil, nil
		}
		return http.StatusOK, room.RedactFor(me), nil
	}
}

func roomAction(fn func(*game.Client, context.Context) (*internal.Room, error)) func(context.Context, *session, *http.Request) (*internal.Room, error) {
	return func(ctx context.Context, sess *session, _ *http.Request) (*internal.Room, error) {
		return fn(sess.client, ctx)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
}

type createSessionRequest struct {
	Premium bool `json:"premium"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) (int, any, error) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, createSessionResponse{SessionID: s.newSession(req.Premium)}, nil
}

type catalogInfo struct {
	ID            string `json:"id"`
	NameKey       string `json:"name_key"`
	Name          string `json:"name"`
	Premium       bool   `json:"premium"`
	Locked        bool   `json:"locked"`
	LocationCount int    `json:"location_count"`
}

// ListCatalogs lists every location set and whether the caller can use it.
// Entitlement comes from the session when present, else from ?premium=.
func (s *Server) ListCatalogs(w http.ResponseWriter, r *http.Request) (int, any, error) {
	premium := r.URL.Query().Get("premium") == "true"
	if sess, ok := s.lookupSession(r.Header.Get(SessionHeader)); ok && sess.premium {
		premium = true
	}
	available := make(map[string]bool)
	for _, set := range s.catalogs.Available(catalog.Entitled(premium)) {
		available[set.ID] = true
	}

	out := make([]catalogInfo, 0)
	for _, set := range s.catalogs.All() {
		out = append(out, catalogInfo{
			ID:            set.ID,
			NameKey:       set.NameKey,
			Name:          s.texts.Localize(set.NameKey),
			Premium:       set.Premium,
			Locked:        !available[set.ID],
			LocationCount: len(set.Locations),
		})
	}
	return http.StatusOK, out, nil
}

type createRoomRequest struct {
	HostName    string `json:"host_name"`
	MaxPlayers  int    `json:"max_players"`
	LocationSet string `json:"location_set"`
}

func (s *Server) CreateRoom(w http.ResponseWriter, r *http.Request) (int, any, error) {
	sess, err := s.requireSession(r)
	if err != nil {
		return 0, nil, err
	}
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = internal.MaxPlayersPerRoom
	}
	if req.LocationSet == "" {
		req.LocationSet = catalog.Standard
	}

	room, err := sess.client.Create(r.Context(), req.HostName, req.MaxPlayers, req.LocationSet)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, room.RedactFor(sess.client.PlayerName()), nil
}

// GetRoom answers the room as the caller may see it. Callers outside the
// room get the public view.
func (s *Server) GetRoom(w http.ResponseWriter, r *http.Request) (int, any, error) {
	code := roomCode(r)
	if sess, ok := s.lookupSession(r.Header.Get(SessionHeader)); ok && sess.client.RoomCode() == code {
		room, err := sess.client.Room(r.Context())
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, room.RedactFor(sess.client.PlayerName()), nil
	}

	if !utils.IsValidRoomCode(code) {
		return 0, nil, game.ErrRoomNotFound
	}
	room, err := s.peek(r.Context(), code)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, room.RedactFor(""), nil
}

func (s *Server) peek(ctx context.Context, code string) (*internal.Room, error) {
	reader := game.NewClient(s.store, identity.Anonymous{}, s.catalogs)
	return reader.PeekRoom(ctx, code)
}

// RoomQRCode renders a PNG that encodes the room's join link.
func (s *Server) RoomQRCode(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	if !utils.IsValidRoomCode(code) {
		http.Error(w, game.UserMessage(game.ErrRoomNotFound), http.StatusNotFound)
		return
	}
	if _, err := s.peek(r.Context(), code); err != nil {
		http.Error(w, game.UserMessage(err), statusFor(err))
		return
	}

	png, err := qrcode.Encode(s.JoinURL(code), qrcode.Medium, qrCodeSize)
	if err != nil {
		log.Printf("[RoomQRCode] room=%s: %v", code, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(png)
}

// JoinURL is the link players scan or share to join code.
func (s *Server) JoinURL(code string) string {
	return fmt.Sprintf("%s/join/%s", s.opts.PublicURL, code)
}

type joinRoomRequest struct {
	PlayerName string `json:"player_name"`
}

func (s *Server) JoinRoom(w http.ResponseWriter, r *http.Request) (int, any, error) {
	sess, err := s.requireSession(r)
	if err != nil {
		return 0, nil, err
	}
	var req joinRoomRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}

	room, err := sess.client.Join(r.Context(), roomCode(r), req.PlayerName)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, room.RedactFor(sess.client.PlayerName()), nil
}

func (s *Server) LeaveRoom(ctx context.Context, sess *session, _ *http.Request) (*internal.Room, error) {
	sess.client.Leave(ctx)
	return nil, nil
}

func (s *Server) CloseRoom(ctx context.Context, sess *session, _ *http.Request) (*internal.Room, error) {
	return nil, sess.client.CloseRoom(ctx)
}

type readyRequest struct {
	Toggle bool `json:"toggle"`
}

func (s *Server) Ready(ctx context.Context, sess *session, r *http.Request) (*internal.Room, error) {
	req := readyRequest{Toggle: true}
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if req.Toggle {
		return sess.client.ToggleReady(ctx)
	}
	return sess.client.MarkReady(ctx)
}

type voteRequest struct {
	Accused string `json:"accused"`
}

func (s *Server) CastVote(ctx context.Context, sess *session, r *http.Request) (*internal.Room, error) {
	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return sess.client.CastVote(ctx, req.Accused)
}

type guessRequest struct {
	Guess string `json:"guess"`
}

func (s *Server) SpyGuess(ctx context.Context, sess *session, r *http.Request) (*internal.Room, error) {
	var req guessRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return sess.client.SubmitSpyGuess(ctx, req.Guess)
}

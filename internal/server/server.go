package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/scythe504/spyroom-backend/internal/catalog"
	"github.com/scythe504/spyroom-backend/internal/game"
	"github.com/scythe504/spyroom-backend/internal/identity"
	"github.com/scythe504/spyroom-backend/internal/store"
)

const SessionHeader = "X-Session-ID"

// DefaultSessionTTL is how long an unused session is kept.
const DefaultSessionTTL = 12 * time.Hour

type Options struct {
	Addr         string
	PublicURL    string
	PollInterval time.Duration
	SessionTTL   time.Duration
	Debug        bool
}

// session is one device talking to the API. The engine client remembers
// which room the device is in.
type session struct {
	client   *game.Client
	premium  bool
	lastSeen time.Time
}

type Server struct {
	httpServer *http.Server
	store      store.Store
	catalogs   *catalog.Registry
	texts      catalog.Localizer
	opts       Options

	sessions   map[string]*session
	sessionsMu sync.Mutex
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewServer(st store.Store, catalogs *catalog.Registry, texts catalog.Localizer, opts Options) *Server {
	if opts.PollInterval <= 0 {
		opts.PollInterval = game.DefaultPollInterval
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	s := &Server{
		store:    st,
		catalogs: catalogs,
		texts:    texts,
		opts:     opts,
		sessions: make(map[string]*session),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.RegisterRoutes(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Run() error {
	go s.expireSessions()
	log.Printf("[Server] listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.httpServer.Shutdown(ctx)
}

// =============================================================================
// SESSIONS
// =============================================================================

// newSession issues a fresh identity and its engine client. Session ids
// are bearer credentials: only ids issued here are ever accepted.
func (s *Server) newSession(premium bool) string {
	id := string(identity.New())
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess := s.buildSession(id, premium)
	sess.lastSeen = s.now()
	s.sessions[id] = sess
	s.debugf("[Session] issued %s (premium=%v)", id, premium)
	return id
}

// lookupSession returns the issued session for id and marks it as used.
func (s *Server) lookupSession(id string) (*session, bool) {
	if !identity.Valid(id) {
		return nil, false
	}
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess, true
}

// pruneSessions drops sessions unused for longer than the TTL and returns
// how many were removed. A dropped session keeps its seat in the room until
// the room's own cleanup removes it.
func (s *Server) pruneSessions() int {
	cutoff := s.now().Add(-s.opts.SessionTTL)
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Server) expireSessions() {
	ticker := time.NewTicker(s.opts.SessionTTL / 4)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.pruneSessions(); n > 0 {
				log.Printf("[Session] expired %d idle sessions", n)
			}
		}
	}
}

func (s *Server) buildSession(id string, premium bool) *session {
	return &session{
		client: game.NewClient(s.store, identity.Static(id), s.catalogs,
			game.WithEntitlements(catalog.Entitled(premium)),
			game.WithPollInterval(s.opts.PollInterval),
		),
		premium: premium,
	}
}

func (s *Server) debugf(format string, args ...any) {
	if s.opts.Debug {
		log.Printf(format, args...)
	}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

const subscriberBufferSize = 32

// MemoryStore keeps room documents in process. It implements the full Store
// contract and is the backend for tests and single-node deployments.
type MemoryStore struct {
	docs       map[string]map[string]json.RawMessage
	subs       map[string]map[chan Snapshot]struct{}
	offsetSubs map[chan time.Duration]struct{}
	skew       time.Duration
	now        func() time.Time
	closed     bool
	mu         sync.Mutex
}

// NewMemoryStore creates an empty store whose server clock equals the local clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:       make(map[string]map[string]json.RawMessage),
		subs:       make(map[string]map[chan Snapshot]struct{}),
		offsetSubs: make(map[chan time.Duration]struct{}),
		now:        time.Now,
	}
}

// SetServerSkew moves the store's clock relative to the local clock and
// publishes the new offset to observers.
func (s *MemoryStore) SetServerSkew(skew time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skew = skew
	for ch := range s.offsetSubs {
		publishLatest(ch, skew)
	}
}

// SetClock replaces the local clock the store derives server time from.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ServerNow returns the store's authoritative time.
func (s *MemoryStore) ServerNow() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverNowLocked()
}

func (s *MemoryStore) serverNowLocked() time.Time {
	return s.now().Add(s.skew)
}

func (s *MemoryStore) Set(ctx context.Context, code string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.docs[code] = fields
	s.notifyLocked(code)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, code string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	resolved, err := resolveFields(fields, s.serverNowLocked())
	if err != nil {
		return err
	}
	doc, ok := s.docs[code]
	if !ok {
		doc = make(map[string]json.RawMessage)
		s.docs[code] = doc
	}
	mergeDocument(doc, resolved)
	s.notifyLocked(code)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.docs[code]; !ok {
		return nil
	}
	delete(s.docs, code)
	s.notifyLocked(code)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, code string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	return s.snapshotLocked(code)
}

// Transact runs fn while holding the store lock; fn must not call back into
// the store.
func (s *MemoryStore) Transact(ctx context.Context, code string, fn func(Snapshot) (Mutation, error)) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}

	current, err := s.snapshotLocked(code)
	if err != nil {
		return Snapshot{}, err
	}
	mutation, err := fn(current)
	if err != nil {
		return current, err
	}
	if mutation.IsZero() {
		return current, nil
	}

	if mutation.Delete {
		if current.Exists {
			delete(s.docs, code)
			s.notifyLocked(code)
		}
		return Snapshot{Code: code}, nil
	}

	resolved, err := resolveFields(mutation.Set, s.serverNowLocked())
	if err != nil {
		return current, err
	}
	doc, ok := s.docs[code]
	if !ok {
		doc = make(map[string]json.RawMessage)
		s.docs[code] = doc
	}
	mergeDocument(doc, resolved)
	s.notifyLocked(code)
	return s.snapshotLocked(code)
}

func (s *MemoryStore) Subscribe(ctx context.Context, code string) (<-chan Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	ch := make(chan Snapshot, subscriberBufferSize)
	if s.subs[code] == nil {
		s.subs[code] = make(map[chan Snapshot]struct{})
	}
	s.subs[code][ch] = struct{}{}

	initial, err := s.snapshotLocked(code)
	if err != nil {
		delete(s.subs[code], ch)
		return nil, err
	}
	ch <- initial

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[code][ch]; ok {
			delete(s.subs[code], ch)
			if len(s.subs[code]) == 0 {
				delete(s.subs, code)
			}
			close(ch)
		}
	}()
	return ch, nil
}

func (s *MemoryStore) ObserveOffset(ctx context.Context) (<-chan time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	ch := make(chan time.Duration, 1)
	ch <- s.skew
	s.offsetSubs[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.offsetSubs[ch]; ok {
			delete(s.offsetSubs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for code, subs := range s.subs {
		for ch := range subs {
			close(ch)
		}
		delete(s.subs, code)
	}
	for ch := range s.offsetSubs {
		close(ch)
		delete(s.offsetSubs, ch)
	}
}

func (s *MemoryStore) snapshotLocked(code string) (Snapshot, error) {
	doc, ok := s.docs[code]
	if !ok {
		return Snapshot{Code: code}, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode %s/%s: %w", Namespace, code, err)
	}
	return Snapshot{Code: code, Exists: true, Data: raw}, nil
}

// notifyLocked pushes the current value to every subscriber of code.
func (s *MemoryStore) notifyLocked(code string) {
	subs := s.subs[code]
	if len(subs) == 0 {
		return
	}
	snap, err := s.snapshotLocked(code)
	if err != nil {
		log.Printf("[MemoryStore] room=%s: failed to build snapshot: %v", code, err)
		return
	}
	for ch := range subs {
		publishLatest(ch, snap)
	}
}

// publishLatest never blocks: a full mailbox drops its oldest entry, every
// snapshot is a whole document so the latest one is all a reader needs.
func publishLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const listenerRetryDelay = 2 * time.Second

// listener holds one LISTEN connection and fans notifications out to the
// subscribers of the notified room. Every read that ends in a publish holds
// deliverMu, so subscribers see snapshots in the order they were read.
type listener struct {
	pool      *pgxpool.Pool
	fetch     func(ctx context.Context, code string) (Snapshot, error)
	subs      map[string]map[chan Snapshot]struct{}
	mu        sync.Mutex
	deliverMu sync.Mutex
}

func newListener(pool *pgxpool.Pool, fetch func(ctx context.Context, code string) (Snapshot, error)) *listener {
	return &listener{
		pool:  pool,
		fetch: fetch,
		subs:  make(map[string]map[chan Snapshot]struct{}),
	}
}

func (l *listener) run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[listener] lost notification connection: %v, retrying in %v", err, listenerRetryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(listenerRetryDelay):
		}
	}
}

func (l *listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	defer conn.Exec(context.Background(), "UNLISTEN *") //nolint:errcheck

	// Writes may have happened while we were not listening.
	for _, code := range l.codes() {
		l.dispatch(ctx, code)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, n.Payload)
	}
}

func (l *listener) codes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	codes := make([]string, 0, len(l.subs))
	for code := range l.subs {
		codes = append(codes, code)
	}
	return codes
}

func (l *listener) dispatch(ctx context.Context, code string) {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	interested := len(l.subs[code]) > 0
	l.mu.Unlock()
	if !interested {
		return
	}

	snap, err := l.fetch(ctx, code)
	if err != nil {
		log.Printf("[listener] room=%s: failed to read after notification: %v", code, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs[code] {
		publishLatest(ch, snap)
	}
}

// subscribe registers a subscriber and hands it the current document.
func (l *listener) subscribe(ctx context.Context, code string) (chan Snapshot, error) {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	ch := l.add(code)
	initial, err := l.fetch(ctx, code)
	if err != nil {
		l.remove(code, ch)
		return nil, err
	}
	publishLatest(ch, initial)
	return ch, nil
}

func (l *listener) add(code string) chan Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan Snapshot, subscriberBufferSize)
	if l.subs[code] == nil {
		l.subs[code] = make(map[chan Snapshot]struct{})
	}
	l.subs[code][ch] = struct{}{}
	return ch
}

func (l *listener) remove(code string, ch chan Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[code][ch]; !ok {
		return
	}
	delete(l.subs[code], ch)
	if len(l.subs[code]) == 0 {
		delete(l.subs, code)
	}
	close(ch)
}

func (l *listener) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for code, subs := range l.subs {
		for ch := range subs {
			close(ch)
		}
		delete(l.subs, code)
	}
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notifyChannel = "rooms"

// PostgresStore keeps each room as a JSONB row. Writes fire a pg_notify
// trigger (see migrations) which the listener turns into snapshots.
type PostgresStore struct {
	Pool           *pgxpool.Pool
	offsetInterval time.Duration
	hub            *listener
	cancel         context.CancelFunc
}

// NewPostgres connects, pings and starts the notification listener.
func NewPostgres(ctx context.Context, dsn string, offsetInterval time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if offsetInterval <= 0 {
		offsetInterval = 30 * time.Second
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	s := &PostgresStore{
		Pool:           pool,
		offsetInterval: offsetInterval,
		cancel:         cancel,
	}
	s.hub = newListener(pool, s.Get)
	go s.hub.run(hubCtx)

	log.Printf("[PostgresStore] connected, listening on channel %q", notifyChannel)
	return s, nil
}

func (s *PostgresStore) Close() {
	s.cancel()
	s.hub.closeAll()
	s.Pool.Close()
}

func (s *PostgresStore) Set(ctx context.Context, code string, doc any) error {
	fields, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = s.Pool.Exec(ctx,
		`INSERT INTO rooms (id, doc, updated_at) VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		code, raw,
	)
	if err != nil {
		return fmt.Errorf("set room %s: %w", code, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, code string, fields map[string]any) error {
	serverNow, err := s.serverNow(ctx, s.Pool)
	if err != nil {
		return err
	}
	removed, patch, err := splitFields(fields, serverNow)
	if err != nil {
		return err
	}

	_, err = s.Pool.Exec(ctx,
		`INSERT INTO rooms (id, doc, updated_at) VALUES ($1, $3::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET doc = (rooms.doc - $2::text[]) || $3::jsonb, updated_at = now()`,
		code, removed, patch,
	)
	if err != nil {
		return fmt.Errorf("update room %s: %w", code, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, code string) error {
	if _, err := s.Pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, code); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, code string) (Snapshot, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx, `SELECT doc FROM rooms WHERE id = $1`, code).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{Code: code}, nil
		}
		return Snapshot{}, fmt.Errorf("get room %s: %w", code, err)
	}
	return Snapshot{Code: code, Exists: true, Data: raw}, nil
}

// Transact locks the row with SELECT ... FOR UPDATE for the duration of fn.
func (s *PostgresStore) Transact(ctx context.Context, code string, fn func(Snapshot) (Mutation, error)) (Snapshot, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current := Snapshot{Code: code}
	var raw []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM rooms WHERE id = $1 FOR UPDATE`, code).Scan(&raw)
	switch {
	case err == nil:
		current.Exists = true
		current.Data = raw
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return Snapshot{}, fmt.Errorf("lock room %s: %w", code, err)
	}

	mutation, err := fn(current)
	if err != nil {
		return current, err
	}
	if mutation.IsZero() {
		return current, nil
	}

	if mutation.Delete {
		if _, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, code); err != nil {
			return current, fmt.Errorf("delete room %s: %w", code, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return current, fmt.Errorf("commit: %w", err)
		}
		return Snapshot{Code: code}, nil
	}

	serverNow, err := s.serverNow(ctx, tx)
	if err != nil {
		return current, err
	}
	removed, patch, err := splitFields(mutation.Set, serverNow)
	if err != nil {
		return current, err
	}

	var updated []byte
	err = tx.QueryRow(ctx,
		`INSERT INTO rooms (id, doc, updated_at) VALUES ($1, $3::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET doc = (rooms.doc - $2::text[]) || $3::jsonb, updated_at = now()
		 RETURNING doc`,
		code, removed, patch,
	).Scan(&updated)
	if err != nil {
		return current, fmt.Errorf("write room %s: %w", code, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return current, fmt.Errorf("commit: %w", err)
	}
	return Snapshot{Code: code, Exists: true, Data: updated}, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, code string) (<-chan Snapshot, error) {
	ch, err := s.hub.subscribe(ctx, code)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		s.hub.remove(code, ch)
	}()
	return ch, nil
}

// ObserveOffset samples clock_timestamp() every offsetInterval and reports
// the server time minus the midpoint of the local round trip.
func (s *PostgresStore) ObserveOffset(ctx context.Context) (<-chan time.Duration, error) {
	first, err := s.measureOffset(ctx)
	if err != nil {
		return nil, err
	}
	ch := make(chan time.Duration, 1)
	ch <- first

	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.offsetInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				offset, err := s.measureOffset(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Printf("[PostgresStore] offset sample failed: %v", err)
					}
					continue
				}
				publishLatest(ch, offset)
			}
		}
	}()
	return ch, nil
}

func (s *PostgresStore) measureOffset(ctx context.Context) (time.Duration, error) {
	sent := time.Now()
	serverNow, err := s.serverNow(ctx, s.Pool)
	if err != nil {
		return 0, err
	}
	received := time.Now()
	midpoint := sent.Add(received.Sub(sent) / 2)
	return serverNow.Sub(midpoint), nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) serverNow(ctx context.Context, q querier) (time.Time, error) {
	var now time.Time
	if err := q.QueryRow(ctx, `SELECT clock_timestamp()`).Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("read server clock: %w", err)
	}
	return now, nil
}

// splitFields resolves field values into the keys to strip from the stored
// document and the JSON object to merge into it.
func splitFields(fields map[string]any, serverNow time.Time) ([]string, []byte, error) {
	resolved, err := resolveFields(fields, serverNow)
	if err != nil {
		return nil, nil, err
	}
	removed := make([]string, 0)
	patch := make(map[string]json.RawMessage, len(resolved))
	for k, v := range resolved {
		if v == nil {
			removed = append(removed, k)
			continue
		}
		patch[k] = v
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, nil, fmt.Errorf("encode patch: %w", err)
	}
	return removed, raw, nil
}

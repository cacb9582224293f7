package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Namespace is the collection every room document lives under.
const Namespace = "rooms"

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("store closed")
)

// Snapshot is one observed value of a room document. Data holds the raw
// JSON document; decoding is left to the reader so a malformed document
// never breaks the subscription.
type Snapshot struct {
	Code   string
	Exists bool
	Data   json.RawMessage
}

// Mutation is what a Transact callback wants written back.
type Mutation struct {
	// Set holds top-level fields to write. A nil value removes the field.
	Set map[string]any
	// Delete removes the whole document, Set is ignored.
	Delete bool
}

// IsZero reports whether the mutation writes nothing.
func (m Mutation) IsZero() bool {
	return !m.Delete && len(m.Set) == 0
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's own clock, in epoch
// milliseconds, when it is written as a field value.
var ServerTimestamp = serverTimestamp{}

// Store is the shared room store. Every operation may block on the network
// and must honour ctx.
type Store interface {
	// Set writes the whole document, replacing any previous value.
	Set(ctx context.Context, code string, doc any) error
	// Update writes the named top-level fields and leaves the others alone.
	Update(ctx context.Context, code string, fields map[string]any) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, code string) error
	// Get reads the whole document once.
	Get(ctx context.Context, code string) (Snapshot, error)
	// Transact runs fn against the current document and applies the returned
	// mutation atomically with respect to every other write on that document.
	Transact(ctx context.Context, code string, fn func(Snapshot) (Mutation, error)) (Snapshot, error)
	// Subscribe delivers the current value and then a snapshot after every
	// write. A removed document shows up as a snapshot with Exists false.
	// The channel is closed when ctx ends.
	Subscribe(ctx context.Context, code string) (<-chan Snapshot, error)
	// ObserveOffset delivers the estimated server clock minus the local clock.
	ObserveOffset(ctx context.Context) (<-chan time.Duration, error)
	Close()
}

// resolveFields marshals field values, substituting ServerTimestamp.
// A nil entry in the result means "remove the field".
func resolveFields(fields map[string]any, serverNow time.Time) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			out[k] = nil
		case serverTimestamp:
			out[k] = json.RawMessage(fmt.Sprintf("%d", serverNow.UnixMilli()))
		case json.RawMessage:
			out[k] = val
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encode field %q: %w", k, err)
			}
			if string(raw) == "null" {
				raw = nil
			}
			out[k] = raw
		}
	}
	return out, nil
}

// mergeDocument applies resolved fields to a decoded document in place.
func mergeDocument(doc map[string]json.RawMessage, fields map[string]json.RawMessage) {
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
}

// encodeDocument turns any document value into its top-level field map.
func encodeDocument(doc any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("document is not an object: %w", err)
	}
	return fields, nil
}

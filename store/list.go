package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/ongspa/dbopen"
	"github.com/hazyhaar/ongspa/idgen"
)

// List is an append-only sequence of T kept as one JSON array under a
// single key.
type List[T any] struct {
	store  *Store
	key    string
	newID  idgen.Generator
	logger *slog.Logger
}

// ListOption configures a List.
type ListOption func(*listConfig)

type listConfig struct {
	newID  idgen.Generator
	logger *slog.Logger
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ListOption {
	return func(c *listConfig) { c.logger = l }
}

// WithQuarantineIDs sets the generator used to name quarantine keys.
func WithQuarantineIDs(gen idgen.Generator) ListOption {
	return func(c *listConfig) { c.newID = gen }
}

// NewList returns the list stored under key.
func NewList[T any](s *Store, key string, opts ...ListOption) *List[T] {
	cfg := listConfig{newID: idgen.Default, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	return &List[T]{store: s, key: key, newID: cfg.newID, logger: cfg.logger}
}

// Key returns the storage key.
func (l *List[T]) Key() string { return l.key }

// QuarantinePrefix is the key prefix under which corrupt values are kept.
func (l *List[T]) QuarantinePrefix() string { return l.key + ".corrupt." }

// Append reads the sequence, appends item and writes the whole sequence back
// in one transaction. An absent value starts a new sequence. A value that
// does not decode is copied under a quarantine key, logged, and replaced by
// a sequence holding only item.
func (l *List[T]) Append(ctx context.Context, item T) error {
	return dbopen.RunTx(ctx, l.store.DB, func(tx *sql.Tx) error {
		var items []T
		raw, err := get(ctx, tx, l.key)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(raw), &items); err != nil {
				qkey := l.QuarantinePrefix() + l.newID()
				if err := l.store.set(ctx, tx, qkey, raw); err != nil {
					return err
				}
				l.logger.Warn("store: corrupt list quarantined",
					"key", l.key, "quarantine_key", qkey, "error", err)
				items = nil
			}
		}

		items = append(items, item)
		data, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", l.key, err)
		}
		return l.store.set(ctx, tx, l.key, string(data))
	})
}

// All returns the sequence. Absent means empty; an undecodable value
// returns ErrCorrupt.
func (l *List[T]) All(ctx context.Context) ([]T, error) {
	raw, err := l.store.Get(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, l.key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

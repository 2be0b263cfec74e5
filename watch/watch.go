// Package watch polls a store database and runs an action when a version
// token moves. It lets a second process follow registrations written by the
// page shell without any channel between the two.
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"
)

// Detector reads a version token. Two different values mean the watched
// data changed.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes a Watcher.
type Options struct {
	// Interval is the polling period. Default: 1s.
	Interval time.Duration
	// Detector defaults to DataVersion.
	Detector Detector
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = DataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls db and reports version changes. Safe for concurrent use.
type Watcher struct {
	db   *sql.DB
	opts Options

	version atomic.Int64
	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks  int64 `json:"checks"`
	Changes int64 `json:"changes"`
	Errors  int64 `json:"errors"`
}

// New returns a Watcher. Nothing is polled until Run.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	w := &Watcher{db: db, opts: opts}
	w.version.Store(-1)
	return w
}

// Version returns the last version the action accepted, or -1.
func (w *Watcher) Version() int64 { return w.version.Load() }

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{Checks: w.checks.Load(), Changes: w.changes.Load(), Errors: w.errors.Load()}
}

// Run blocks until ctx is done. The version read at start is the baseline;
// every later change calls action with the new version. When action fails
// the version is kept and the change is reported again on the next tick.
func (w *Watcher) Run(ctx context.Context, action func(ctx context.Context, version int64) error) {
	log := w.opts.Logger
	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: initial check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	t := time.NewTicker(w.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		w.checks.Add(1)
		v, err := w.opts.Detector(ctx, w.db)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.errors.Add(1)
			log.Warn("watch: check failed", "error", err)
			continue
		}
		if v == w.version.Load() {
			continue
		}
		w.changes.Add(1)
		if err := action(ctx, v); err != nil {
			w.errors.Add(1)
			log.Error("watch: action failed", "version", v, "error", err)
			continue
		}
		log.Debug("watch: changed", "old_version", w.version.Load(), "new_version", v)
		w.version.Store(v)
	}
}

// DataVersion reads PRAGMA data_version, which moves when another connection
// commits to the same database file.
func DataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// ListLength returns a Detector reading the number of items in the JSON list
// stored under key: 0 when the key is absent, -1 when the value is not a
// JSON array.
func ListLength(key string) Detector {
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, `
			SELECT CASE WHEN NOT json_valid(value) THEN -1
			            WHEN json_type(value) = 'array' THEN json_array_length(value)
			            ELSE -1 END
			FROM kv_store WHERE key = ?`, key).Scan(&v)
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return v, err
	}
}

// Package badger implements the store contracts on an embedded BadgerDB
// instance. Badger gives us the two properties the key layout needs without a
// server dependency: per-entry TTLs and atomic check-and-set transactions for
// the run lock.
package badger

import (
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/nextlevelbuilder/turnero/internal/store"
)

// Options configures the embedded database.
type Options struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir string
	// InMemory skips disk persistence entirely (tests, ephemeral deploys).
	InMemory bool
	// SyncWrites trades write latency for durability.
	SyncWrites bool
	// GCInterval is how often value-log garbage collection runs. 0 disables.
	GCInterval time.Duration
}

// DB wraps the badger handle plus the store configuration.
type DB struct {
	db   *badger.DB
	cfg  store.Config
	stop chan struct{}
}

// Open opens (or creates) the database and starts the GC loop.
func Open(opts Options, cfg store.Config) (*DB, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: slog.Default()})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Dir, err)
	}

	d := &DB{db: db, cfg: cfg.WithDefaults(), stop: make(chan struct{})}
	if opts.GCInterval > 0 && !opts.InMemory {
		go d.gcLoop(opts.GCInterval)
	}
	return d, nil
}

// Stores returns the full store set backed by this database.
func (d *DB) Stores() *store.Stores {
	return &store.Stores{
		Sessions:   &SessionStore{db: d},
		Threads:    &ThreadCache{db: d},
		RunLocks:   &RunLock{db: d},
		Leads:      &LeadStore{db: d},
		ClientData: &ClientDataStore{db: d},
	}
}

// Close stops the GC loop and closes the database.
func (d *DB) Close() error {
	close(d.stop)
	return d.db.Close()
}

func (d *DB) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			// Badger returns ErrNoRewrite when there was nothing to collect.
			if err := d.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				slog.Debug("badger gc", "error", err)
			}
		}
	}
}

// get copies the value for key, reporting found=false on absence/expiry.
func (d *DB) get(key string) (val []byte, found bool, err error) {
	err = d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		val, err = item.ValueCopy(nil)
		found = err == nil
		return err
	})
	return val, found, err
}

// setTTL writes key=val with the given TTL (0 = no expiry).
func (d *DB) setTTL(key string, val []byte, ttl time.Duration) error {
	return d.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), val)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (d *DB) delete(key string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// badgerLogger adapts slog to badger's Logger interface. Badger's internal
// chatter is demoted to debug; only real errors surface at error level.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

package inbound

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"urgency_detector/internal/apperr"
)

const (
	recordPrefix   = "inbound/"
	sequenceKey    = "seq/inbound"
	updateAttempts = 8
	lockStripes    = 64
)

// BadgerConfig configures the record store.
type BadgerConfig struct {
	Path     string
	InMemory bool
	Logger   *slog.Logger
	// GCInterval runs value-log GC periodically for on-disk stores; zero
	// disables it.
	GCInterval time.Duration
}

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
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore keeps records in Badger, keyed by big-endian id.
type BadgerStore struct {
	db     *badger.DB
	seq    *badger.Sequence
	locks  [lockStripes]sync.Mutex
	logger *slog.Logger

	stopGC chan struct{}
	gcDone chan struct{}
}

func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent record store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create record store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open inbound id sequence: %w", err)
	}

	s := &BadgerStore{db: db, seq: seq, logger: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

func (s *BadgerStore) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("release inbound id sequence: %w", err)
	}
	return s.db.Close()
}

func (s *BadgerStore) Create(ctx context.Context, rec *Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next inbound id: %w", err)
	}
	rec.ID = int64(n) + 1

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode inbound record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.ID), data)
	})
	if err != nil {
		return 0, fmt.Errorf("store inbound record: %w", err)
	}
	return rec.ID, nil
}

func (s *BadgerStore) Get(ctx context.Context, id int64) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update serializes updates per record with a striped lock and retries on
// transaction conflicts, so concurrent appends are never lost.
func (s *BadgerStore) Update(ctx context.Context, id int64, fn func(rec *Record) error) error {
	mu := &s.locks[uint64(id)%lockStripes]
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < updateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			rec, err := readRecord(txn, id)
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode inbound record: %w", err)
			}
			return txn.Set(recordKey(id), data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("update inbound record %d: %w", id, badger.ErrConflict)
}

func (s *BadgerStore) runGC(interval time.Duration) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
				s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

func readRecord(txn *badger.Txn, id int64) (*Record, error) {
	item, err := txn.Get(recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read inbound record %d: %w", id, err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("read inbound record %d: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode inbound record %d: %w", id, err)
	}
	return &rec, nil
}

func recordKey(id int64) []byte {
	key := make([]byte, len(recordPrefix)+8)
	copy(key, recordPrefix)
	binary.BigEndian.PutUint64(key[len(recordPrefix):], uint64(id))
	return key
}

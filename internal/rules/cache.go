package rules

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"urgency_detector/internal/apperr"
	"urgency_detector/internal/logging"
)

// Refresh triggers, as reported to a CacheObserver.
const (
	TriggerInitial = "initial"
	TriggerBucket  = "bucket"
	TriggerForced  = "forced"
)

const defaultFetchTimeout = 5 * time.Second

// CacheObserver receives refresh outcomes; the metrics package implements
// it.
type CacheObserver interface {
	ObserveRefresh(trigger string, rules int, took time.Duration, err error)
	ObserveStale()
}

type CacheOption func(*Cache)

// WithClock replaces time.Now for bucket computation.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithFetchTimeout bounds each repository fetch.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logging.OrDefault(l) }
}

func WithObserver(o CacheObserver) CacheOption {
	return func(c *Cache) { c.observer = o }
}

// Cache memoizes a single rule snapshot per time bucket
// (floor(now / interval)). The first caller to observe a new bucket fetches
// from the repository; concurrent callers for the same bucket share that
// fetch. A non-positive interval disables periodic refresh: the snapshot
// is loaded once and only ForceRefresh replaces it.
//
// Once a snapshot exists, callers never wait on the repository: a bucket
// rollover starts a background fetch and the previous snapshot is served
// until it lands. Only the very first load blocks, and a failed or timed
// out fetch then falls back to whatever snapshot is present.
type Cache struct {
	repo         Repository
	interval     time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
	observer     CacheObserver

	flight singleflight.Group

	mu           sync.RWMutex
	snap         *Snapshot
	version      uint64
	started      uint64 // fetches begun
	installedSeq uint64 // start sequence of the fetch behind snap
}

func NewCache(repo Repository, interval time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		repo:         repo,
		interval:     interval,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Periodic reports whether bucket-based refresh is enabled.
func (c *Cache) Periodic() bool {
	return c.interval > 0
}

// Bucket returns the time bucket for t, or 0 when refresh is disabled.
func (c *Cache) Bucket(t time.Time) int64 {
	if c.interval <= 0 {
		return 0
	}
	return t.UnixNano() / int64(c.interval)
}

// Peek returns the current snapshot without loading; nil before the first
// successful fetch.
func (c *Cache) Peek() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Get returns the snapshot for the current bucket. The first call to
// observe a new bucket starts the fetch; it waits for the result only when
// no snapshot has been loaded yet.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	b := c.Bucket(c.now())

	snap := c.Peek()
	if snap != nil && (!c.Periodic() || snap.Bucket >= b) {
		return snap, nil
	}

	trigger, key := TriggerBucket, strconv.FormatInt(b, 10)
	if snap == nil {
		trigger = TriggerInitial
	}
	if !c.Periodic() {
		key = TriggerInitial
	}

	// The shared fetch must not die with whichever request started it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		return c.refresh(fetchCtx, trigger, b)
	})

	if snap != nil {
		if c.observer != nil {
			c.observer.ObserveStale()
		}
		c.logger.Debug("serving previous rules during refresh",
			slog.Uint64("version", snap.Version),
			slog.Int64("bucket", b))
		return snap, nil
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return c.fallback(res.Err)
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return c.fallback(ctx.Err())
	}
}

// ForceRefresh fetches unconditionally and installs the result as the
// snapshot for the current bucket. The bucket boundaries are unchanged.
// Failures are returned rather than masked by the previous snapshot.
func (c *Cache) ForceRefresh(ctx context.Context) (*Snapshot, error) {
	return c.refresh(ctx, TriggerForced, c.Bucket(c.now()))
}

// Load performs the startup fetch.
func (c *Cache) Load(ctx context.Context) (*Snapshot, error) {
	return c.refresh(ctx, TriggerInitial, c.Bucket(c.now()))
}

func (c *Cache) refresh(ctx context.Context, trigger string, bucket int64) (*Snapshot, error) {
	c.mu.Lock()
	c.started++
	seq := c.started
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	began := time.Now()
	rows, err := c.repo.ListRules(ctx)
	took := time.Since(began)
	if err != nil {
		if c.observer != nil {
			c.observer.ObserveRefresh(trigger, 0, took, err)
		}
		c.logger.Error("rule refresh failed",
			slog.String("trigger", trigger),
			slog.Duration("took", took),
			slog.String("error", err.Error()))
		return nil, apperr.Wrap(err, apperr.KindUpstreamUnavailable, "list rules")
	}

	snap := c.install(rows, seq, bucket)
	if c.observer != nil {
		c.observer.ObserveRefresh(trigger, snap.Len(), took, nil)
	}
	c.logger.Info("rules refreshed",
		slog.String("trigger", trigger),
		slog.Int("rules", snap.Len()),
		slog.Uint64("version", snap.Version),
		slog.Int64("bucket", snap.Bucket),
		slog.Duration("took", took))
	return snap, nil
}

// install replaces the slot unless a fetch that started later already did.
func (c *Cache) install(rows []Rule, seq uint64, bucket int64) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap != nil && seq < c.installedSeq {
		return c.snap
	}
	if c.snap != nil && c.snap.Bucket > bucket {
		bucket = c.snap.Bucket
	}
	c.version++
	c.snap = &Snapshot{
		Rules:      cloneRules(rows),
		Version:    c.version,
		Bucket:     bucket,
		ComputedAt: c.now(),
	}
	c.installedSeq = seq
	return c.snap
}

func (c *Cache) fallback(cause error) (*Snapshot, error) {
	if snap := c.Peek(); snap != nil {
		if c.observer != nil {
			c.observer.ObserveStale()
		}
		c.logger.Warn("serving stale rules",
			slog.Uint64("version", snap.Version),
			slog.String("error", cause.Error()))
		return snap, nil
	}
	return nil, apperr.Wrap(cause, apperr.KindUpstreamUnavailable, apperr.ErrRulesUnavailable.Error())
}

// Package syncer keeps a device's copy of the tenant dataset in step with the
// server. Every edit is cached locally at once and pushed after a quiet period.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sprayline/foamops-api/internal/domain"
	"go.uber.org/zap"
)

// ErrReadOnly is returned when a crew device asks for a push
var ErrReadOnly = errors.New("crew devices do not push the shared dataset")

// ErrClosed is returned after Close
var ErrClosed = errors.New("sync coordinator closed")

// DefaultDebounce collapses edits made within this window into one push
const DefaultDebounce = 3 * time.Second

// Source says where the working snapshot came from at start
type Source string

const (
	SourceRemote   Source = "remote"
	SourceCache    Source = "cache"
	SourceDefaults Source = "defaults"
)

// Options configures a Coordinator
type Options struct {
	Username string
	Role     domain.UserRole
	// Debounce defaults to DefaultDebounce
	Debounce time.Duration
	// RetryBase is the first delay before re-pushing after a failure
	RetryBase time.Duration
	// RetryMax caps the delay between re-push attempts
	RetryMax time.Duration
	// PushTimeout bounds one background push
	PushTimeout time.Duration
}

// Status describes the coordinator's push queue
type Status struct {
	Dirty        bool      `json:"dirty"`
	Failures     int       `json:"failures"`
	LastError    string    `json:"lastError,omitempty"`
	LastPushedAt time.Time `json:"lastPushedAt,omitempty"`
}

// Coordinator owns the device's working snapshot
type Coordinator struct {
	transport Transport
	cache     Cache
	notifier  Notifier
	logger    *zap.Logger
	opts      Options

	mu       sync.Mutex
	snap     *domain.TenantSnapshot
	gen      uint64
	pushed   uint64
	timer    *time.Timer
	backoff  retry.Backoff
	status   Status
	closed   bool
	inFlight sync.WaitGroup

	// pushMu serialises pushes so an older snapshot never lands after a newer one
	pushMu sync.Mutex
}

// New creates a coordinator. Call Start before Mutate.
func New(transport Transport, cache Cache, notifier Notifier, logger *zap.Logger, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 2 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 2 * time.Minute
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = 30 * time.Second
	}
	c := &Coordinator{
		transport: transport,
		cache:     cache,
		notifier:  notifier,
		logger:    logger.With(zap.String("username", opts.Username), zap.String("role", string(opts.Role))),
		opts:      opts,
		snap:      DefaultSnapshot(),
	}
	c.resetBackoff()
	return c
}

func (c *Coordinator) resetBackoff() {
	c.backoff = retry.WithCappedDuration(c.opts.RetryMax, retry.NewExponential(c.opts.RetryBase))
}

func (c *Coordinator) canPush() bool {
	return c.opts.Role != domain.RoleCrew
}

// Start loads the working snapshot: remote first, then the user's cache, then
// defaults. A failed pull never fails Start.
func (c *Coordinator) Start(ctx context.Context) Source {
	snap, err := c.pull(ctx)
	if err == nil {
		c.mu.Lock()
		c.snap = snap
		c.mu.Unlock()
		c.writeCache(ctx, snap)
		c.logger.Info("loaded snapshot from server", zap.Int("estimates", len(snap.Estimates)))
		return SourceRemote
	}

	c.logger.Warn("pull failed, working offline", zap.Error(err))
	if cached, ok := c.cache.Read(ctx, c.opts.Username); ok {
		c.mu.Lock()
		c.snap = cached
		c.mu.Unlock()
		c.notifier.Notify(LevelWarning, "Offline: showing data saved on this device")
		return SourceCache
	}

	c.mu.Lock()
	c.snap = DefaultSnapshot()
	c.mu.Unlock()
	c.notifier.Notify(LevelWarning, "Offline: no saved data on this device, starting from defaults")
	return SourceDefaults
}

func (c *Coordinator) pull(ctx context.Context) (*domain.TenantSnapshot, error) {
	raw, err := c.transport.Pull(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeOverDefaults(raw)
}

// LoadCached starts from the user's cache, or defaults, without calling the server
func (c *Coordinator) LoadCached(ctx context.Context) Source {
	cached, ok := c.cache.Read(ctx, c.opts.Username)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.snap = DefaultSnapshot()
		return SourceDefaults
	}
	c.snap = cached
	return SourceCache
}

// Refresh pulls again and merges the server's estimates into the working set
// without letting any estimate's lifecycle move backwards. Local estimates the
// server no longer has are dropped unless they are still waiting to be pushed.
func (c *Coordinator) Refresh(ctx context.Context) error {
	remote, err := c.pull(ctx)
	if err != nil {
		c.notifier.Notify(LevelWarning, "Could not refresh from server")
		return fmt.Errorf("failed to refresh: %w", err)
	}

	c.mu.Lock()
	local := PruneRemoved(c.snap.Estimates, remote, c.snap.PendingEstimateIDs)
	if dropped := len(c.snap.Estimates) - len(local); dropped > 0 {
		c.logger.Info("dropped estimates removed on the server", zap.Int("estimates", dropped))
	}
	remote.PendingEstimateIDs = StillPending(c.snap.PendingEstimateIDs, remote)
	remote.Estimates = MergeEstimates(local, remote.Estimates)
	c.snap = remote
	snap := c.copyLocked()
	c.mu.Unlock()

	c.writeCache(ctx, snap)
	return nil
}

// Snapshot returns a copy of the working snapshot
func (c *Coordinator) Snapshot() *domain.TenantSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// copyLocked deep-copies through JSON since the snapshot is JSON-shaped anyway
func (c *Coordinator) copyLocked() *domain.TenantSnapshot {
	raw, err := json.Marshal(c.snap)
	if err != nil {
		c.logger.Error("failed to copy snapshot", zap.Error(err))
		return c.snap
	}
	var out domain.TenantSnapshot
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("failed to copy snapshot", zap.Error(err))
		return c.snap
	}
	return &out
}

// Mutate applies fn to the working snapshot, writes the cache before returning
// and schedules a debounced push. Crew devices only cache.
func (c *Coordinator) Mutate(ctx context.Context, fn func(*domain.TenantSnapshot)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	before := estimateIDs(c.snap.Estimates)
	fn(c.snap)
	trackPending(c.snap, before)
	c.gen++
	snap := c.copyLocked()
	if c.canPush() {
		c.status.Dirty = true
		c.scheduleLocked(c.opts.Debounce)
	}
	c.mu.Unlock()

	if err := c.cache.Write(ctx, c.opts.Username, snap); err != nil {
		c.logger.Error("failed to write sync cache", zap.Error(err))
		c.notifier.Notify(LevelError, "Could not save changes on this device")
		return err
	}
	return nil
}

// scheduleLocked replaces any pending push timer
func (c *Coordinator) scheduleLocked(delay time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, c.flush)
}

func (c *Coordinator) flush() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inFlight.Add(1)
	c.mu.Unlock()
	defer c.inFlight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.PushTimeout)
	defer cancel()
	if err := c.push(ctx); err != nil && !errors.Is(err, ErrRejected) {
		c.mu.Lock()
		if !c.closed && c.status.Dirty {
			if delay, stop := c.backoff.Next(); !stop {
				c.scheduleLocked(delay)
			}
		}
		c.mu.Unlock()
	}
}

// push sends the current working snapshot if there is anything unsent
func (c *Coordinator) push(ctx context.Context) error {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.mu.Lock()
	if c.gen == c.pushed {
		c.status.Dirty = false
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	snap := c.copyLocked()
	c.mu.Unlock()

	sent := estimateIDs(snap.Estimates)
	snap.PendingEstimateIDs = nil
	snap.DeletedEstimateIDs = nil
	result, err := c.transport.Push(ctx, snap)

	c.mu.Lock()
	if err != nil {
		c.status.Failures++
		c.status.LastError = err.Error()
		c.logger.Warn("push failed", zap.Int("failures", c.status.Failures), zap.Error(err))
		c.mu.Unlock()
		c.notifier.Notify(LevelError, "Changes not synced yet; they are saved on this device and will be retried")
		return err
	}

	c.pushed = gen
	c.status.Dirty = c.gen != gen
	c.status.Failures = 0
	c.status.LastError = ""
	c.status.LastPushedAt = time.Now().UTC()
	c.resetBackoff()

	var accepted *domain.TenantSnapshot
	if len(c.snap.PendingEstimateIDs) > 0 {
		var still []uuid.UUID
		for _, id := range c.snap.PendingEstimateIDs {
			if _, ok := sent[id]; !ok {
				still = append(still, id)
			}
		}
		c.snap.PendingEstimateIDs = still
		accepted = c.copyLocked()
	}
	c.mu.Unlock()

	if accepted != nil {
		c.writeCache(ctx, accepted)
	}
	c.logger.Info("pushed snapshot",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped))
	for _, w := range result.Warnings {
		c.notifier.Notify(LevelWarning, w)
	}
	return nil
}

// SyncNow pushes immediately, skipping the debounce window
func (c *Coordinator) SyncNow(ctx context.Context) error {
	if !c.canPush() {
		return ErrReadOnly
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// force a push even when nothing changed locally
	if c.gen == c.pushed {
		c.gen++
	}
	c.mu.Unlock()

	if err := c.push(ctx); err != nil {
		return fmt.Errorf("manual sync failed: %w", err)
	}
	c.notifier.Notify(LevelInfo, "All changes synced")
	return nil
}

// Status reports the push queue
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close stops the timer and makes a final push attempt if edits are unsent
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	pending := c.canPush() && c.gen != c.pushed
	c.mu.Unlock()

	c.inFlight.Wait()
	if !pending {
		return nil
	}
	if err := c.push(ctx); err != nil {
		return fmt.Errorf("final push failed: %w", err)
	}
	return nil
}

func (c *Coordinator) writeCache(ctx context.Context, snap *domain.TenantSnapshot) {
	if err := c.cache.Write(ctx, c.opts.Username, snap); err != nil {
		c.logger.Warn("failed to write sync cache", zap.Error(err))
	}
}

// Package sync reconciles the reactive state store with a remote document
// and a local cache. On every local change it bumps the logical clock,
// mirrors the bundle into the local cache, and schedules a debounced
// publish; on every remote snapshot it compares logical timestamps and
// either accepts the remote value (suppressed from republishing), wins the
// conflict by republishing local state, or recognizes the two as already
// consistent. Last-writer-wins on the timestamp is the only conflict
// resolution performed.
package sync

import (
	"encoding/json"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/priceloom/priceloom/internal/localstore"
	"github.com/priceloom/priceloom/internal/model"
	"github.com/priceloom/priceloom/internal/remote"
	"github.com/priceloom/priceloom/internal/state"
)

// Config holds the collaborators a Syncer is constructed with. Everything
// is injected; the engine owns no globals.
type Config struct {
	Store    *state.Store
	Channel  *remote.Channel
	Cache    *localstore.Store
	CacheKey string   // local blob key for the mirrored bundle
	Path     []string // remote document path, with identity placeholder
	Now      func() int64
	Logger   *slog.Logger
}

// Syncer is the sync orchestrator for one synced document (the per-user
// state bundle).
type Syncer struct {
	store    *state.Store
	channel  *remote.Channel
	cache    *localstore.Store
	cacheKey string
	path     []string
	now      func() int64
	logger   *slog.Logger

	mu            gosync.Mutex
	docState      DocState
	lastUpdated   int64
	initialSynced bool
	firstSnap     chan struct{}

	unobserve func()
}

// New creates a Syncer. Call Start to load the cached bundle, attach the
// store observer, and open the remote subscription.
func New(cfg Config) *Syncer {
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}

	return &Syncer{
		store:     cfg.Store,
		channel:   cfg.Channel,
		cache:     cfg.Cache,
		cacheKey:  cfg.CacheKey,
		path:      cfg.Path,
		now:       now,
		logger:    cfg.Logger,
		docState:  StateUnsynced,
		firstSnap: make(chan struct{}),
	}
}

// Start seeds local state from the cached bundle, begins observing local
// changes, and subscribes to the remote document. The suppression flag
// starts on: nothing is published until the first remote snapshot has
// been seen, so the initial delivery cannot echo straight back out.
func (s *Syncer) Start() {
	s.loadCache()

	s.unobserve = s.store.Observe(state.SyncedFields(), s.onLocalChange)

	s.mu.Lock()
	s.docState = StateAwaitingRemote
	s.mu.Unlock()

	s.channel.SubscribeToDoc(s.path, s.onSnapshot)

	s.logger.Info("sync engine started",
		slog.String("doc", remote.JoinPath(s.path)),
		slog.Int64("last_updated", s.LastUpdated()),
	)
}

// Stop detaches the local-change observer. Remote subscriptions are torn
// down through the channel (on logout or channel close), not here.
func (s *Syncer) Stop() {
	if s.unobserve != nil {
		s.unobserve()
		s.unobserve = nil
	}
}

// FirstSnapshot is closed once the initial remote snapshot (or absence
// notification) has been processed.
func (s *Syncer) FirstSnapshot() <-chan struct{} {
	return s.firstSnap
}

// Status returns a point-in-time view for CLI display.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		State:          s.docState,
		LastUpdated:    s.lastUpdated,
		PendingPublish: s.channel.HasPendingPublish(s.path),
	}
}

// LastUpdated returns the local logical timestamp.
func (s *Syncer) LastUpdated() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastUpdated
}

// Flush pushes any pending publish and cache write immediately. Used by
// one-shot CLI commands that cannot wait out the debounce windows.
func (s *Syncer) Flush() {
	s.channel.Flush()
	s.cache.Flush(s.cacheKey)
}

// loadCache seeds the store from the locally persisted bundle, if any.
// The apply is remote-originated from the store's point of view: seeding
// must not look like a user edit.
func (s *Syncer) loadCache() {
	data := s.cache.Load(s.cacheKey, nil)
	if data == nil {
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("cached bundle unreadable", slog.String("error", err.Error()))
		return
	}

	patch, rejected := model.DecodeBundlePatch(raw)
	if len(rejected) > 0 {
		s.logger.Warn("cached bundle fields rejected", slog.Any("fields", rejected))
	}

	s.store.ApplyRemote(patch)

	if patch.LastUpdated != nil {
		s.mu.Lock()
		s.lastUpdated = *patch.LastUpdated
		s.mu.Unlock()
	}

	s.logger.Debug("seeded state from local cache", slog.Int64("last_updated", s.LastUpdated()))
}

// onLocalChange handles one completed store mutation batch. Remote-origin
// batches are the engine's own applies and are suppressed; everything
// else advances the logical clock, mirrors the bundle locally, and
// schedules a publish once the initial snapshot has been seen.
func (s *Syncer) onLocalChange(c state.Change) {
	if c.Origin == state.OriginRemote {
		return
	}

	s.mu.Lock()
	s.lastUpdated = s.nextClockLocked()
	ts := s.lastUpdated
	publish := s.initialSynced

	if publish {
		s.docState = StateDiverged
	}
	s.mu.Unlock()

	bundle := s.store.Bundle(ts)
	s.mirrorToCache(bundle)

	if !publish {
		s.logger.Debug("local change before initial snapshot, publish withheld",
			slog.Int64("last_updated", ts))

		return
	}

	s.logger.Debug("local change, publish scheduled",
		slog.Int64("last_updated", ts),
		slog.Int("fields", len(c.Fields)),
	)

	s.channel.PublishDoc(s.path, bundleToDoc(bundle))
}

// onSnapshot handles one remote snapshot delivery and is the LWW decision
// point.
func (s *Syncer) onSnapshot(id string, data map[string]any) {
	patch := model.BundlePatch{}

	if data != nil {
		var rejected []string

		patch, rejected = model.DecodeBundlePatch(data)
		if len(rejected) > 0 {
			s.logger.Warn("remote fields rejected",
				slog.String("doc", id),
				slog.Any("fields", rejected),
			)
		}
	}

	s.mu.Lock()
	local := s.lastUpdated

	switch {
	case data == nil || patch.LastUpdated == nil || *patch.LastUpdated < local:
		// Local is authoritative: remote has no data, an untimestamped
		// document, or a stale one. Republish with a fresh timestamp.
		s.lastUpdated = s.nextClockLocked()
		ts := s.lastUpdated
		s.docState = StateDiverged
		s.markSnapshotLocked()
		s.mu.Unlock()

		bundle := s.store.Bundle(ts)
		s.mirrorToCache(bundle)

		s.logger.Info("remote stale or absent, republishing local state",
			slog.String("doc", id),
			slog.Int64("last_updated", ts),
		)

		s.channel.PublishDoc(s.path, bundleToDoc(bundle))

	case *patch.LastUpdated > local:
		// Remote is authoritative: apply field by field. The apply is
		// remote-originated, so the observer will not republish it.
		s.lastUpdated = *patch.LastUpdated
		s.docState = StateSynced
		s.markSnapshotLocked()
		s.mu.Unlock()

		s.store.ApplyRemote(patch)
		s.mirrorToCache(s.store.Bundle(*patch.LastUpdated))

		s.logger.Info("remote newer, applied snapshot",
			slog.String("doc", id),
			slog.Int64("last_updated", *patch.LastUpdated),
		)

	default:
		// Equal timestamps: already consistent.
		s.docState = StateSynced
		s.markSnapshotLocked()
		s.mu.Unlock()

		s.logger.Debug("remote snapshot consistent", slog.String("doc", id), slog.Int64("last_updated", local))
	}
}

// markSnapshotLocked records that the initial snapshot has been seen and
// wakes FirstSnapshot waiters. Caller holds s.mu.
func (s *Syncer) markSnapshotLocked() {
	if !s.initialSynced {
		s.initialSynced = true
		close(s.firstSnap)
	}
}

// nextClockLocked returns the next logical timestamp: wall-clock derived,
// but always strictly greater than the previous value. Caller holds s.mu.
func (s *Syncer) nextClockLocked() int64 {
	ts := s.now()
	if ts <= s.lastUpdated {
		ts = s.lastUpdated + 1
	}

	return ts
}

// mirrorToCache saves the bundle to the local blob cache (debounced,
// fire-and-forget).
func (s *Syncer) mirrorToCache(bundle model.Bundle) {
	data, err := json.Marshal(bundle)
	if err != nil {
		s.logger.Warn("bundle marshal failed", slog.String("error", err.Error()))
		return
	}

	s.cache.Save(s.cacheKey, data)
}

// bundleToDoc converts the typed bundle into the schemaless document the
// remote store accepts.
func bundleToDoc(bundle model.Bundle) map[string]any {
	data, err := json.Marshal(bundle)
	if err != nil {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	return doc
}

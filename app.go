package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/priceloom/priceloom/internal/identity"
	"github.com/priceloom/priceloom/internal/localstore"
	"github.com/priceloom/priceloom/internal/remote"
	"github.com/priceloom/priceloom/internal/state"
	"github.com/priceloom/priceloom/internal/sync"
)

// bundleCacheKey is the local blob key the synced state bundle lives
// under.
const bundleCacheKey = "bundle"

// firstSnapshotTimeout bounds how long one-shot commands wait for the
// initial remote snapshot before operating on cached state.
const firstSnapshotTimeout = 10 * time.Second

// dataDirPerms is the mode for the created data directory.
const dataDirPerms = 0o700

// app is the assembled engine behind every CLI command: identity,
// local cache, remote channel, state store, and the sync orchestrator
// binding them together.
type app struct {
	sessions *identity.SessionStore
	ids      *identity.Service
	cache    *localstore.Store
	channel  *remote.Channel
	store    *state.Store
	syncer   *sync.Syncer
}

// openSessions opens the session store inside the data directory,
// creating the directory on first run.
func openSessions() (*identity.SessionStore, error) {
	dataDir := resolvedCfg.DataDir
	if err := os.MkdirAll(dataDir, dataDirPerms); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	return identity.OpenSessionStore(filepath.Join(dataDir, "session.db"))
}

// openIdentity builds just the identity service. Auth commands use this
// instead of openApp so login works before any synced state exists.
func openIdentity() (*identity.Service, *identity.SessionStore, error) {
	sessions, err := openSessions()
	if err != nil {
		return nil, nil, err
	}

	logger := buildLogger()
	ids := identity.NewService(resolvedCfg.Server.URL, httpClient(), sessions, logger)

	return ids, sessions, nil
}

// openApp assembles the full engine and starts the sync orchestrator.
// The store is seeded from the local cache immediately; remote state
// arrives once the subscription activates.
func openApp() (*app, error) {
	sessions, err := openSessions()
	if err != nil {
		return nil, err
	}

	logger := buildLogger()
	cfg := resolvedCfg

	ids := identity.NewService(cfg.Server.URL, httpClient(), sessions, logger)

	cache, err := localstore.Open(
		filepath.Join(cfg.DataDir, "state.db"), cfg.SaveDelayDuration(), logger)
	if err != nil {
		sessions.Close()
		return nil, err
	}

	client := remote.NewClient(cfg.Server.URL, httpClient(), ids.Token, logger)
	channel := remote.NewChannel(client, ids, cfg.PublishDelayDuration(), logger)
	store := state.New(logger)

	syncer := sync.New(sync.Config{
		Store:    store,
		Channel:  channel,
		Cache:    cache,
		CacheKey: bundleCacheKey,
		Path:     []string{"users", remote.UserIDPlaceholder},
		Logger:   logger,
	})
	syncer.Start()

	return &app{
		sessions: sessions,
		ids:      ids,
		cache:    cache,
		channel:  channel,
		store:    store,
		syncer:   syncer,
	}, nil
}

// awaitSync blocks until the initial remote snapshot has been reconciled,
// or returns false after a timeout (offline, slow network). Commands
// proceed on cached state in that case.
func (a *app) awaitSync() bool {
	if _, ok := a.ids.Current(); !ok {
		return false
	}

	select {
	case <-a.syncer.FirstSnapshot():
		return true
	case <-time.After(firstSnapshotTimeout):
		return false
	}
}

// finish flushes pending publishes and cache writes, then tears the
// engine down. Every mutating one-shot command ends here so edits are
// durable before the process exits.
func (a *app) finish() {
	a.syncer.Flush()
	a.close()
}

// close releases all resources without flushing.
func (a *app) close() {
	a.syncer.Stop()
	a.channel.Close()
	a.cache.Close()
	a.sessions.Close()
}

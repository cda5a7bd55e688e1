package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/priceloom/priceloom/internal/debounce"
	"github.com/priceloom/priceloom/internal/identity"
)

// DefaultPublishDelay is the quiet interval before a queued publish hits
// the remote store.
const DefaultPublishDelay = 1 * time.Second

// IdentityProvider is the slice of the identity service the channel
// consumes: the current identity and the change stream.
type IdentityProvider interface {
	Current() (string, bool)
	OnChange(identity.Handler) func()
}

// Channel manages per-path live subscriptions and debounced publishes
// against a document Store, resolving the UserIDPlaceholder path segment
// against the authenticated identity. Requests made before an identity is
// known are queued and activated verbatim on login; if no identity ever
// resolves they never run. On logout every active subscription is torn
// down and everything queued or pending is discarded.
type Channel struct {
	store  Store
	ids    IdentityProvider
	deb    *debounce.Debouncer
	logger *slog.Logger

	mu            sync.Mutex
	pendingSubs   []func(uid string)
	pendingPubs   []func(uid string)
	cancels       []CancelFunc
	unsubIdentity func()
}

// NewChannel creates a Channel and attaches it to the identity stream.
func NewChannel(store Store, ids IdentityProvider, publishDelay time.Duration, logger *slog.Logger) *Channel {
	c := &Channel{
		store:  store,
		ids:    ids,
		deb:    debounce.New(publishDelay, logger),
		logger: logger,
	}

	c.unsubIdentity = ids.OnChange(c.onIdentity)

	return c
}

// onIdentity activates queued work on login and tears everything down on
// logout.
func (c *Channel) onIdentity(e identity.Event) {
	if !e.LoggedIn {
		c.CancelAll()
		return
	}

	c.mu.Lock()
	subs := c.pendingSubs
	pubs := c.pendingPubs
	c.pendingSubs = nil
	c.pendingPubs = nil
	c.mu.Unlock()

	if len(subs)+len(pubs) > 0 {
		c.logger.Info("identity available, activating queued requests",
			slog.Int("subscriptions", len(subs)),
			slog.Int("publishes", len(pubs)),
		)
	}

	for _, fn := range subs {
		fn(e.UID)
	}

	for _, fn := range pubs {
		fn(e.UID)
	}
}

// SubscribeToDoc opens a live feed on the document at path, with the
// identity placeholder resolved. fn fires once immediately with current
// state (nil for an absent document) and again on every remote change.
// Called before login, the request is queued until an identity resolves.
// A subscribe failure is logged and not retried — the caller must
// re-subscribe.
func (c *Channel) SubscribeToDoc(path []string, fn WatchFunc) {
	start := func(uid string) {
		resolved := JoinPath(resolvePath(path, uid))

		cancel, err := c.store.Subscribe(context.Background(), resolved, fn)
		if err != nil {
			c.logger.Warn("doc subscription failed",
				slog.String("path", resolved),
				slog.String("error", err.Error()),
			)

			return
		}

		c.mu.Lock()
		c.cancels = append(c.cancels, cancel)
		c.mu.Unlock()

		c.logger.Debug("doc subscription active", slog.String("path", resolved))
	}

	if uid, ok := c.ids.Current(); ok {
		start(uid)
		return
	}

	c.mu.Lock()
	c.pendingSubs = append(c.pendingSubs, start)
	c.mu.Unlock()

	c.logger.Debug("doc subscription queued until login")
}

// PublishDoc schedules a debounced write of data to path; nil data
// performs a delete instead. Publish requests for the same path within
// the quiet interval coalesce into one physical write of the latest data.
// Failures are logged, never returned — a later publish retries
// implicitly.
func (c *Channel) PublishDoc(path []string, data map[string]any) {
	key := JoinPath(path)

	c.deb.Schedule(key, func() { c.publishNow(path, data) })
}

// publishNow runs after the debounce window. Without an identity the
// publish is re-queued for the next login rather than failed.
func (c *Channel) publishNow(path []string, data map[string]any) {
	uid, ok := c.ids.Current()
	if !ok {
		c.mu.Lock()
		c.pendingPubs = append(c.pendingPubs, func(uid string) { c.publish(path, uid, data) })
		c.mu.Unlock()

		c.logger.Debug("publish deferred until login", slog.String("path", JoinPath(path)))

		return
	}

	c.publish(path, uid, data)
}

func (c *Channel) publish(path []string, uid string, data map[string]any) {
	resolved := JoinPath(resolvePath(path, uid))

	var err error
	if data == nil {
		err = c.store.Delete(context.Background(), resolved)
	} else {
		err = c.store.Set(context.Background(), resolved, data)
	}

	if err != nil {
		c.logger.Warn("doc publish failed",
			slog.String("path", resolved),
			slog.String("error", err.Error()),
		)

		return
	}

	c.logger.Debug("doc published", slog.String("path", resolved), slog.Bool("delete", data == nil))
}

// HasPendingPublish reports whether a publish for path is waiting out its
// debounce window.
func (c *Channel) HasPendingPublish(path []string) bool {
	return c.deb.Pending(JoinPath(path))
}

// Flush runs every pending publish immediately and returns how many ran.
func (c *Channel) Flush() int {
	return c.deb.FlushAll()
}

// CancelAll tears down every active subscription, discards queued
// requests, and drops pending publishes. No callback from a canceled
// subscription fires afterward.
func (c *Channel) CancelAll() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	queued := len(c.pendingSubs) + len(c.pendingPubs)
	c.pendingSubs = nil
	c.pendingPubs = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	c.deb.CancelAll()

	c.logger.Info("remote channel cleaned up",
		slog.Int("subscriptions", len(cancels)),
		slog.Int("queued", queued),
	)
}

// Close detaches from the identity stream and cancels everything.
func (c *Channel) Close() {
	c.unsubIdentity()
	c.CancelAll()
}

// resolvePath substitutes the identity placeholder segments with uid.
func resolvePath(path []string, uid string) []string {
	resolved := make([]string, len(path))

	for i, segment := range path {
		if segment == UserIDPlaceholder {
			resolved[i] = uid
		} else {
			resolved[i] = segment
		}
	}

	return resolved
}

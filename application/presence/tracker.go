// Package presence tracks who is online and who is typing. Indicators are
// ephemeral UI state with a TTL; they live beside the vault replicas and
// are never merged into them.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
)

// Config bounds indicator lifetimes.
type Config struct {
	// TypingTTL is how long a typing indicator lives without a refresh.
	TypingTTL time.Duration
	// PresenceTTL marks an actor offline when no presence refresh arrives
	// in time, covering lost offline announcements.
	PresenceTTL time.Duration
}

// DefaultConfig returns the production indicator lifetimes.
func DefaultConfig() Config {
	return Config{
		TypingTTL:   3 * time.Second,
		PresenceTTL: 30 * time.Second,
	}
}

type typingKey struct {
	vaultID string
	userID  string
}

type presenceEntry struct {
	online     bool
	lastSeenAt time.Time
	refreshed  time.Time
}

// Tracker holds the live indicators. Handlers run on the engine loop; the
// mutex exists for the ops surface reading counts concurrently.
type Tracker struct {
	mu      sync.RWMutex
	typing  map[typingKey]time.Time
	online  map[string]presenceEntry
	config  Config
	clock   clock.Clock
	bus     ports.EventPublisher
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewTracker creates an empty tracker.
func NewTracker(config Config, clk clock.Clock, bus ports.EventPublisher, logger *zap.Logger, metrics *observability.Collector) *Tracker {
	if config.TypingTTL <= 0 {
		config.TypingTTL = DefaultConfig().TypingTTL
	}
	if config.PresenceTTL <= 0 {
		config.PresenceTTL = DefaultConfig().PresenceTTL
	}
	return &Tracker{
		typing:  make(map[typingKey]time.Time),
		online:  make(map[string]presenceEntry),
		config:  config,
		clock:   clk,
		bus:     bus,
		logger:  logger,
		metrics: metrics,
	}
}

// HandleTyping starts or refreshes a typing indicator. Only a fresh
// indicator publishes an event; refreshes just extend the TTL.
func (t *Tracker) HandleTyping(ctx context.Context, payload events.TypingPayload) {
	key := typingKey{vaultID: payload.EntityID, userID: payload.UserID}

	t.mu.Lock()
	_, existed := t.typing[key]
	t.typing[key] = t.clock.Now()
	count := len(t.typing)
	t.mu.Unlock()

	t.metrics.TypingActive.Set(float64(count))
	if existed {
		return
	}
	if err := t.bus.Publish(ctx, events.NewTypingStartedEvent(payload.EntityID, payload.UserID, t.clock.Now())); err != nil {
		t.logger.Error("failed to publish typing started", zap.Error(err))
	}
}

// HandleTypingStopped clears an indicator on explicit stop.
func (t *Tracker) HandleTypingStopped(ctx context.Context, payload events.TypingPayload) {
	key := typingKey{vaultID: payload.EntityID, userID: payload.UserID}

	t.mu.Lock()
	_, existed := t.typing[key]
	delete(t.typing, key)
	count := len(t.typing)
	t.mu.Unlock()

	if !existed {
		return
	}
	t.metrics.TypingActive.Set(float64(count))
	if err := t.bus.Publish(ctx, events.NewTypingStoppedEvent(payload.EntityID, payload.UserID, false, t.clock.Now())); err != nil {
		t.logger.Error("failed to publish typing stopped", zap.Error(err))
	}
}

// HandlePresence upserts an actor's online state.
func (t *Tracker) HandlePresence(ctx context.Context, payload events.PresencePayload) {
	t.mu.Lock()
	prior, existed := t.online[payload.UserID]
	t.online[payload.UserID] = presenceEntry{
		online:     payload.Online,
		lastSeenAt: payload.LastSeenAt,
		refreshed:  t.clock.Now(),
	}
	count := t.onlineCountLocked()
	t.mu.Unlock()

	t.metrics.PresenceActive.Set(float64(count))
	if existed && prior.online == payload.Online {
		return
	}
	if err := t.bus.Publish(ctx, events.NewPresenceChangedEvent(payload.UserID, payload.Online, t.clock.Now())); err != nil {
		t.logger.Error("failed to publish presence change", zap.Error(err))
	}
}

// UpdateTTLs applies reloaded indicator lifetimes. Non-positive values
// keep the current setting. Existing indicators are judged against the
// new lifetimes on the next sweep.
func (t *Tracker) UpdateTTLs(typingTTL, presenceTTL time.Duration) {
	t.mu.Lock()
	if typingTTL > 0 {
		t.config.TypingTTL = typingTTL
	}
	if presenceTTL > 0 {
		t.config.PresenceTTL = presenceTTL
	}
	t.mu.Unlock()
}

// Sweep expires stale indicators. Typing indicators past their TTL stop
// with the expired marker; actors whose presence stopped refreshing are
// marked offline.
func (t *Tracker) Sweep(ctx context.Context) {
	now := t.clock.Now()

	var stoppedTyping []typingKey
	var wentOffline []string

	t.mu.Lock()
	for key, seen := range t.typing {
		if now.Sub(seen) >= t.config.TypingTTL {
			delete(t.typing, key)
			stoppedTyping = append(stoppedTyping, key)
		}
	}
	for userID, entry := range t.online {
		if entry.online && now.Sub(entry.refreshed) >= t.config.PresenceTTL {
			entry.online = false
			t.online[userID] = entry
			wentOffline = append(wentOffline, userID)
		}
	}
	typingCount := len(t.typing)
	onlineCount := t.onlineCountLocked()
	t.mu.Unlock()

	t.metrics.TypingActive.Set(float64(typingCount))
	t.metrics.PresenceActive.Set(float64(onlineCount))

	for _, key := range stoppedTyping {
		if err := t.bus.Publish(ctx, events.NewTypingStoppedEvent(key.vaultID, key.userID, true, now)); err != nil {
			t.logger.Error("failed to publish typing expiry", zap.Error(err))
		}
	}
	for _, userID := range wentOffline {
		if err := t.bus.Publish(ctx, events.NewPresenceChangedEvent(userID, false, now)); err != nil {
			t.logger.Error("failed to publish presence expiry", zap.Error(err))
		}
	}
}

// Info describes one tracked actor for status surfaces.
type Info struct {
	UserID     string    `json:"userId"`
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// SnapshotPresence returns every tracked actor sorted by user id.
func (t *Tracker) SnapshotPresence() []Info {
	t.mu.RLock()
	infos := make([]Info, 0, len(t.online))
	for userID, entry := range t.online {
		infos = append(infos, Info{
			UserID:     userID,
			Online:     entry.online,
			LastSeenAt: entry.lastSeenAt,
		})
	}
	t.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].UserID < infos[j].UserID })
	return infos
}

// TypingActors returns the ids of actors with a live indicator in the
// vault, sorted.
func (t *Tracker) TypingActors(vaultID string) []string {
	now := t.clock.Now()

	t.mu.RLock()
	var users []string
	for key, seen := range t.typing {
		if key.vaultID == vaultID && now.Sub(seen) < t.config.TypingTTL {
			users = append(users, key.userID)
		}
	}
	t.mu.RUnlock()

	sort.Strings(users)
	return users
}

// TypingCount returns the number of live typing indicators.
func (t *Tracker) TypingCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.typing)
}

// OnlineCount returns the number of actors currently online.
func (t *Tracker) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onlineCountLocked()
}

// IsTyping reports whether the actor has a live indicator in the vault.
func (t *Tracker) IsTyping(vaultID, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen, ok := t.typing[typingKey{vaultID: vaultID, userID: userID}]
	if !ok {
		return false
	}
	return t.clock.Now().Sub(seen) < t.config.TypingTTL
}

func (t *Tracker) onlineCountLocked() int {
	count := 0
	for _, entry := range t.online {
		if entry.online {
			count++
		}
	}
	return count
}

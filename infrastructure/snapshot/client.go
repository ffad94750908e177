// Package snapshot fetches the full vault list over HTTP. The engine falls
// back to it when missed-update replay cannot close the gap: on first
// connect, when the server flags the gap as too large, or when a sync
// request goes unanswered.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/retry"
)

// Config holds the snapshot endpoint settings.
type Config struct {
	// URL is the full-state endpoint.
	URL string
	// Timeout bounds one HTTP request.
	Timeout time.Duration
	// BreakerThreshold is the number of consecutive failed fetches before
	// the circuit opens.
	BreakerThreshold uint32
	// BreakerCooldown is how long the circuit stays open before a probe.
	BreakerCooldown time.Duration
	// Retry bounds the attempts inside one fetch.
	Retry retry.Config
}

// DefaultConfig returns the production snapshot settings, URL excluded.
func DefaultConfig() Config {
	return Config{
		Timeout:          10 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
		Retry:            retry.DefaultConfig(),
	}
}

// Client fetches snapshots with retry and a circuit breaker, so a dead
// endpoint cannot stall every recovery pass behind full timeout cycles.
type Client struct {
	endpoint string
	http     *http.Client
	tokens   ports.TokenSource
	breaker  *gobreaker.CircuitBreaker
	retry    retry.Config
	logger   *zap.Logger
	metrics  *observability.Collector
}

var _ ports.SnapshotClient = (*Client)(nil)

// NewClient creates a snapshot client.
func NewClient(config Config, tokens ports.TokenSource, logger *zap.Logger, metrics *observability.Collector) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.BreakerThreshold == 0 {
		config.BreakerThreshold = DefaultConfig().BreakerThreshold
	}
	if config.BreakerCooldown <= 0 {
		config.BreakerCooldown = DefaultConfig().BreakerCooldown
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = retry.DefaultConfig()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "snapshot",
		Timeout: config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("snapshot circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		endpoint: config.URL,
		http:     &http.Client{Timeout: config.Timeout},
		tokens:   tokens,
		breaker:  breaker,
		retry:    config.Retry,
		logger:   logger,
		metrics:  metrics,
	}
}

type snapshotResponse struct {
	Vaults []entities.Snapshot `json:"vaults"`
}

// FetchSnapshot returns the server's current vault list.
func (c *Client) FetchSnapshot(ctx context.Context) ([]entities.Snapshot, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var snaps []entities.Snapshot
		retryCfg := c.retry
		if retryCfg.Retryable == nil {
			// Auth failures will not heal through repetition.
			retryCfg.Retryable = func(err error) bool {
				return !pkgerrors.IsUnauthorized(err)
			}
		}
		err := retry.Do(ctx, retryCfg, func() error {
			fetched, err := c.fetch(ctx)
			if err != nil {
				return err
			}
			snaps = fetched
			return nil
		})
		return snaps, err
	})
	if err != nil {
		c.metrics.SnapshotFetches.WithLabelValues(outcomeFor(err)).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.NewUnavailable("snapshot endpoint circuit open", err)
		}
		return nil, err
	}

	snaps := result.([]entities.Snapshot)
	c.metrics.SnapshotFetches.WithLabelValues("ok").Inc()
	c.logger.Debug("snapshot fetched", zap.Int("vaults", len(snaps)))
	return snaps, nil
}

func (c *Client) fetch(ctx context.Context) ([]entities.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, pkgerrors.NewInternal("building snapshot request", err)
	}
	token, err := c.tokens.Current(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "no token for snapshot fetch")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.NewUnavailable("snapshot request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, pkgerrors.NewUnauthorized(fmt.Sprintf("snapshot endpoint returned %d", resp.StatusCode))
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, pkgerrors.NewUnavailable(fmt.Sprintf("snapshot endpoint returned %d", resp.StatusCode), nil)
	}

	var payload snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, pkgerrors.NewMalformed("snapshot response did not parse: " + err.Error())
	}
	return payload.Vaults, nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case pkgerrors.IsUnauthorized(err):
		return "unauthorized"
	default:
		return "error"
	}
}

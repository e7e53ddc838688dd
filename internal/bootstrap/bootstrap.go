// Package bootstrap provides batch.Initializer implementations run once after
// every item has settled.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sync"
	"time"

	"github.com/phrazzld/batchload/internal/httpclient"
)

// ErrSimulatedFailure is returned when the simulated initializer decides to fail.
var ErrSimulatedFailure = errors.New("simulated initialization failure")

// Noop does nothing.
type Noop struct{}

// Init returns nil.
func (Noop) Init(context.Context) error { return nil }

// SimulatedConfig configures Simulated.
type SimulatedConfig struct {
	Delay       time.Duration
	FailureRate float64
}

// Simulated waits for Delay and then fails with probability FailureRate.
type Simulated struct {
	cfg SimulatedConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulated creates a simulated initializer. A nil rnd uses a randomly seeded source.
func NewSimulated(cfg SimulatedConfig, rnd *rand.Rand) *Simulated {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulated{cfg: cfg, rnd: rnd}
}

// Init waits for the configured delay.
func (s *Simulated) Init(ctx context.Context) error {
	if s.cfg.Delay > 0 {
		timer := time.NewTimer(s.cfg.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	roll := s.rnd.Float64()
	s.mu.Unlock()
	if roll < s.cfg.FailureRate {
		return ErrSimulatedFailure
	}
	return nil
}

// HTTP signals initialization by POSTing an empty JSON object to a URL.
type HTTP struct {
	client httpclient.Client
	url    string
}

// NewHTTP creates an HTTP initializer. A nil client uses httpclient.NewDefaultClient.
func NewHTTP(rawURL string, client httpclient.Client) (*HTTP, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid initializer URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid initializer URL %q: scheme must be http or https", u.Redacted())
	}
	if client == nil {
		client = httpclient.NewDefaultClient(0)
	}
	return &HTTP{client: client, url: rawURL}, nil
}

// Init sends the request; any 2xx response counts as success.
func (h *HTTP) Init(ctx context.Context) error {
	if _, err := h.client.Post(ctx, h.url, "application/json", []byte("{}")); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

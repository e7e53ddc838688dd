package loader

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrSimulatedFailure is returned when the simulated source decides to fail.
var ErrSimulatedFailure = errors.New("simulated config load failure")

// SimulatedConfig configures Simulated. Zero values are used as given.
type SimulatedConfig struct {
	Count       int
	Prefix      string
	Delay       time.Duration
	FailureRate float64
}

// Simulated produces Prefix0..Prefix(Count-1) after Delay, failing with
// probability FailureRate.
type Simulated struct {
	cfg SimulatedConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulated creates a simulated loader. A nil rnd uses a randomly seeded source.
func NewSimulated(cfg SimulatedConfig, rnd *rand.Rand) *Simulated {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulated{cfg: cfg, rnd: rnd}
}

// Load waits for the configured delay and returns the generated IDs.
func (s *Simulated) Load(ctx context.Context) ([]string, error) {
	if s.cfg.Delay > 0 {
		timer := time.NewTimer(s.cfg.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	roll := s.rnd.Float64()
	s.mu.Unlock()
	if roll < s.cfg.FailureRate {
		return nil, ErrSimulatedFailure
	}

	items := make([]string, s.cfg.Count)
	for i := range items {
		items[i] = fmt.Sprintf("%s%d", s.cfg.Prefix, i)
	}
	return items, nil
}

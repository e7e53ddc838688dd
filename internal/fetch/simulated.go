package fetch

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrSimulatedFailure is returned when the simulated fetch decides to fail.
var ErrSimulatedFailure = errors.New("simulated fetch failure")

// SimulatedConfig configures Simulated.
type SimulatedConfig struct {
	MinLatency  time.Duration
	MaxLatency  time.Duration
	FailureRate float64
}

// Simulated sleeps for a latency drawn uniformly from [MinLatency, MaxLatency]
// and then fails with probability FailureRate.
type Simulated struct {
	cfg SimulatedConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulated creates a simulated fetcher. A nil rnd uses a randomly seeded source.
func NewSimulated(cfg SimulatedConfig, rnd *rand.Rand) *Simulated {
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulated{cfg: cfg, rnd: rnd}
}

// NewSeededRand returns a deterministic source for seed, or a random one for 0.
func NewSeededRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// Fetch waits out the simulated latency. It returns ctx.Err() if the context
// ends first.
func (s *Simulated) Fetch(ctx context.Context, _ string) error {
	latency, fail := s.roll()

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if fail {
		return ErrSimulatedFailure
	}
	return nil
}

func (s *Simulated) roll() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latency := s.cfg.MinLatency
	if span := s.cfg.MaxLatency - s.cfg.MinLatency; span > 0 {
		latency += time.Duration(s.rnd.Int64N(int64(span)))
	}
	return latency, s.rnd.Float64() < s.cfg.FailureRate
}

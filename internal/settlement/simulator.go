package settlement

import (
	"fmt"
	"time"

	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/config"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
)

const (
	DefaultMinDelay       = 5 * time.Second
	DefaultMaxDelay       = 30 * time.Second
	DefaultCompletedRatio = 0.7
	DefaultFailedRatio    = 0.2
)

// Simulator draws settlement latency and outcome for pending payments.
// The remainder after completed and failed weights resolves as EXPIRED.
type Simulator struct {
	random         clock.Random
	minDelay       time.Duration
	maxDelay       time.Duration
	completedRatio float64
	failedRatio    float64
}

// DefaultConfig mirrors the environment defaults: 5-30s delays and 70/20/10
// weights.
func DefaultConfig() config.SettlementConfig {
	return config.SettlementConfig{
		MinDelay:       DefaultMinDelay,
		MaxDelay:       DefaultMaxDelay,
		CompletedRatio: DefaultCompletedRatio,
		FailedRatio:    DefaultFailedRatio,
	}
}

// NewSimulator builds a simulator from cfg as given. Zero weights are honored,
// so 0/0 expires every payment and a 0-0 window settles immediately.
func NewSimulator(cfg config.SettlementConfig, random clock.Random) (*Simulator, error) {
	if random == nil {
		return nil, fmt.Errorf("random source required")
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("invalid settlement window %s-%s", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.CompletedRatio < 0 || cfg.FailedRatio < 0 || cfg.CompletedRatio+cfg.FailedRatio > 1 {
		return nil, fmt.Errorf("invalid settlement weights %.2f/%.2f", cfg.CompletedRatio, cfg.FailedRatio)
	}
	return &Simulator{
		random:         random,
		minDelay:       cfg.MinDelay,
		maxDelay:       cfg.MaxDelay,
		completedRatio: cfg.CompletedRatio,
		failedRatio:    cfg.FailedRatio,
	}, nil
}

// Delay returns a latency uniformly drawn from the configured window.
func (s *Simulator) Delay() time.Duration {
	return clock.UniformDuration(s.random, s.minDelay, s.maxDelay)
}

// Outcome draws a terminal payment status.
func (s *Simulator) Outcome() enums.PaymentStatus {
	draw := s.random.Float64()
	switch {
	case draw < s.completedRatio:
		return enums.PaymentStatusCompleted
	case draw < s.completedRatio+s.failedRatio:
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusExpired
	}
}

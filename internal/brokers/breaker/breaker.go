package breaker

import (
	"sync"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/shared"

	"go.uber.org/zap"
)

// OperationClass partitions broker traffic so an outage on one path does not
// trip the others.
type OperationClass string

const (
	ClassOAuth OperationClass = "oauth"
	ClassRead  OperationClass = "read"
	ClassWrite OperationClass = "write"
)

// State is the breaker position for one (broker, class) pair.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the trip thresholds.
type Config struct {
	WindowSize       int           // rolling window of observed calls
	MinCalls         int           // observations required before tripping
	FailureThreshold float64       // failure ratio that opens the breaker
	Cooldown         time.Duration // open -> half-open delay
	SuccessesToClose int           // half-open -> closed streak
}

// DefaultConfig matches the documented defaults: >=50% failures over the
// last 20 calls (minimum 10), 30s cooldown, 3 successes to close.
func DefaultConfig() Config {
	return Config{
		WindowSize:       20,
		MinCalls:         10,
		FailureThreshold: 0.5,
		Cooldown:         30 * time.Second,
		SuccessesToClose: 3,
	}
}

// Permit is the token returned by Allow and redeemed by Record.
type Permit struct {
	kind  brokers.Kind
	class OperationClass
}

type cell struct {
	mu sync.Mutex

	state    State
	window   []bool // ring of outcomes, true = failure
	next     int
	filled   int
	openedAt time.Time
	streak   int  // consecutive half-open successes
	probing  bool // a half-open probe is in flight
}

// Breaker isolates failing brokers per operation class.
type Breaker struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	cells map[brokers.Kind]map[OperationClass]*cell
}

// New creates a breaker with the given config.
func New(cfg Config, logger *zap.Logger) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Breaker{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		cells:  make(map[brokers.Kind]map[OperationClass]*cell),
	}
}

func (b *Breaker) cell(kind brokers.Kind, class OperationClass) *cell {
	b.mu.Lock()
	defer b.mu.Unlock()

	byClass, ok := b.cells[kind]
	if !ok {
		byClass = make(map[OperationClass]*cell)
		b.cells[kind] = byClass
	}
	c, ok := byClass[class]
	if !ok {
		c = &cell{window: make([]bool, b.cfg.WindowSize)}
		byClass[class] = c
	}
	return c
}

// Allow returns a permit, or a circuit-open error when the breaker is
// shielding the broker. In half-open state one probe at a time is admitted.
func (b *Breaker) Allow(kind brokers.Kind, class OperationClass) (Permit, error) {
	c := b.cell(kind, class)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateOpen:
		if b.now().Sub(c.openedAt) < b.cfg.Cooldown {
			return Permit{}, shared.ErrCircuitOpen.
				WithDetails("broker", string(kind)).
				WithDetails("class", string(class))
		}
		c.state = StateHalfOpen
		c.streak = 0
		c.probing = true
		b.logger.Info("circuit breaker half-open",
			zap.String("broker", string(kind)),
			zap.String("class", string(class)),
		)
	case StateHalfOpen:
		// One probe at a time; concurrent callers wait out the in-flight one.
		if c.probing {
			return Permit{}, shared.ErrCircuitOpen.
				WithDetails("broker", string(kind)).
				WithDetails("class", string(class))
		}
		c.probing = true
	case StateClosed:
	}

	return Permit{kind: kind, class: class}, nil
}

// Record redeems a permit with the call outcome and advances the state machine.
func (b *Breaker) Record(p Permit, success bool) {
	if p.kind == "" {
		return
	}
	c := b.cell(p.kind, p.class)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateHalfOpen:
		c.probing = false
		if !success {
			b.open(c, p)
			return
		}
		c.streak++
		if c.streak >= b.cfg.SuccessesToClose {
			c.state = StateClosed
			c.filled = 0
			c.next = 0
			b.logger.Info("circuit breaker closed",
				zap.String("broker", string(p.kind)),
				zap.String("class", string(p.class)),
			)
		}
	case StateClosed:
		c.window[c.next] = !success
		c.next = (c.next + 1) % b.cfg.WindowSize
		if c.filled < b.cfg.WindowSize {
			c.filled++
		}
		if c.filled >= b.cfg.MinCalls && c.failureRate() >= b.cfg.FailureThreshold {
			b.open(c, p)
		}
	case StateOpen:
		// Outcome from a call admitted before the trip; ignore.
	}
}

// State reports the current position for observability endpoints.
func (b *Breaker) State(kind brokers.Kind, class OperationClass) State {
	c := b.cell(kind, class)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (b *Breaker) open(c *cell, p Permit) {
	c.state = StateOpen
	c.openedAt = b.now()
	c.streak = 0
	c.probing = false
	b.logger.Warn("circuit breaker opened",
		zap.String("broker", string(p.kind)),
		zap.String("class", string(p.class)),
		zap.Float64("failure_rate", c.failureRate()),
	)
}

func (c *cell) failureRate() float64 {
	if c.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < c.filled; i++ {
		if c.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(c.filled)
}

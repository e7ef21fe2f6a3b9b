// Package scanrun drives a simulated scan from start to report through
// timed progress ticks, pause/resume and cancellation.
package scanrun

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mr1hm/robot-scan-console/internal/models"
)

var ErrInvalidTransition = errors.New("invalid scan transition")

const (
	DefaultTickInterval = 500 * time.Millisecond
	DefaultSettleDelay  = time.Second
	DefaultMinIncrement = 0.5
	DefaultMaxIncrement = 2.5
)

type Config struct {
	TickInterval time.Duration
	SettleDelay  time.Duration
	MinIncrement float64
	MaxIncrement float64
	Phases       PhaseTable
}

func DefaultConfig() Config {
	return Config{
		TickInterval: DefaultTickInterval,
		SettleDelay:  DefaultSettleDelay,
		MinIncrement: DefaultMinIncrement,
		MaxIncrement: DefaultMaxIncrement,
		Phases:       DefaultPhases(),
	}
}

func (c Config) validate() error {
	if c.TickInterval <= 0 || c.SettleDelay < 0 {
		return fmt.Errorf("invalid timings: tick %s, settle %s", c.TickInterval, c.SettleDelay)
	}
	if c.MinIncrement <= 0 || c.MaxIncrement < c.MinIncrement {
		return fmt.Errorf("invalid increment range [%.2f, %.2f]", c.MinIncrement, c.MaxIncrement)
	}
	return c.Phases.Validate()
}

// RunInfo describes a run that reached 100%. It is handed to the
// ResultBuilder when the settle delay elapses.
type RunInfo struct {
	Generation  uint64
	StartedAt   time.Time
	CompletedAt time.Time
	Active      time.Duration // time spent scanning, pauses excluded
}

// ResultBuilder turns a completed run into its report.
type ResultBuilder func(info RunInfo) (models.ScanResult, error)

type Option func(*Runner)

func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithRand sets the source of uniform [0,1) values used for increments.
func WithRand(f func() float64) Option {
	return func(r *Runner) { r.randFloat = f }
}

// WithStatusListener is called, outside the runner's lock, after every
// state change and tick.
func WithStatusListener(f func(models.RunStatus)) Option {
	return func(r *Runner) { r.onStatus = f }
}

// Runner is the scan state machine. Timer callbacks run on their own
// goroutines, so every mutation happens under mu and each callback carries
// the run generation and arm sequence it was scheduled for; callbacks whose
// tags no longer match are dropped.
type Runner struct {
	cfg       Config
	clock     Clock
	randFloat func() float64
	build     ResultBuilder
	onResult  func(models.ScanResult)
	onStatus  func(models.RunStatus)

	mu         sync.Mutex
	state      models.RunState
	progress   float64
	phase      string
	generation uint64
	startedAt  time.Time
	resumedAt  time.Time
	active     time.Duration
	seq        uint64
	tick       Timer
	tickSeq    uint64
	settle     Timer
	settleSeq  uint64
}

func New(cfg Config, build ResultBuilder, onResult func(models.ScanResult), opts ...Option) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	if build == nil {
		return nil, fmt.Errorf("result builder is required")
	}

	r := &Runner{
		cfg:       cfg,
		clock:     realClock{},
		randFloat: rand.Float64,
		build:     build,
		onResult:  onResult,
		state:     models.RunIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start begins a fresh run from Idle or Completed.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.state == models.RunScanning || r.state == models.RunPaused {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("start while %s: %w", state, ErrInvalidTransition)
	}

	r.disarmLocked()
	r.generation++
	now := r.clock.Now()
	r.state = models.RunScanning
	r.progress = 0
	r.phase = r.cfg.Phases.Label(0)
	r.startedAt = now
	r.resumedAt = now
	r.active = 0
	r.armTickLocked()

	status := r.statusLocked()
	r.mu.Unlock()

	slog.Info("scan started", "generation", status.Generation)
	r.notify(status)
	return nil
}

func (r *Runner) Pause() error {
	r.mu.Lock()
	if r.state != models.RunScanning {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("pause while %s: %w", state, ErrInvalidTransition)
	}

	r.stopTickLocked()
	r.active += r.clock.Now().Sub(r.resumedAt)
	r.state = models.RunPaused
	r.phase = PhasePaused

	status := r.statusLocked()
	r.mu.Unlock()

	slog.Info("scan paused", "generation", status.Generation, "progress", status.Progress)
	r.notify(status)
	return nil
}

func (r *Runner) Resume() error {
	r.mu.Lock()
	if r.state != models.RunPaused {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("resume while %s: %w", state, ErrInvalidTransition)
	}

	r.state = models.RunScanning
	r.phase = r.cfg.Phases.Label(r.progress)
	r.resumedAt = r.clock.Now()
	r.armTickLocked()

	status := r.statusLocked()
	r.mu.Unlock()

	slog.Info("scan resumed", "generation", status.Generation, "progress", status.Progress)
	r.notify(status)
	return nil
}

// Stop aborts whatever is in flight, including a pending report, and
// returns to Idle. It is accepted in every state.
func (r *Runner) Stop() {
	r.mu.Lock()
	prev := r.state
	r.disarmLocked()
	r.state = models.RunIdle
	r.progress = 0
	r.phase = ""
	r.active = 0
	r.startedAt = time.Time{}

	status := r.statusLocked()
	r.mu.Unlock()

	if prev != models.RunIdle {
		slog.Info("scan stopped", "generation", status.Generation, "from", prev)
	}
	r.notify(status)
}

func (r *Runner) Status() models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *Runner) onTick(gen, seq uint64) {
	r.mu.Lock()
	if gen != r.generation || seq != r.tickSeq || r.state != models.RunScanning {
		r.mu.Unlock()
		slog.Debug("discarding stale tick", "generation", gen, "seq", seq)
		return
	}
	r.tick = nil
	r.tickSeq = 0

	inc := r.cfg.MinIncrement + r.randFloat()*(r.cfg.MaxIncrement-r.cfg.MinIncrement)
	r.progress += inc
	if r.progress >= 100 {
		now := r.clock.Now()
		r.progress = 100
		r.active += now.Sub(r.resumedAt)
		r.state = models.RunCompleted
		r.phase = PhaseComplete
		r.armSettleLocked(now)
	} else {
		r.phase = r.cfg.Phases.Label(r.progress)
		r.armTickLocked()
	}

	status := r.statusLocked()
	r.mu.Unlock()

	if status.State == models.RunCompleted {
		slog.Info("scan reached 100%", "generation", status.Generation)
	}
	r.notify(status)
}

func (r *Runner) onSettle(gen, seq uint64, info RunInfo) {
	r.mu.Lock()
	if gen != r.generation || seq != r.settleSeq || r.state != models.RunCompleted {
		r.mu.Unlock()
		slog.Debug("discarding stale settle", "generation", gen, "seq", seq)
		return
	}
	r.settle = nil
	r.settleSeq = 0
	r.mu.Unlock()

	result, err := r.build(info)
	if err != nil {
		slog.Error("failed to build scan result", "generation", gen, "error", err)
		return
	}

	// Stop or Start may have run while the report was being built.
	r.mu.Lock()
	current := gen == r.generation && r.state == models.RunCompleted
	r.mu.Unlock()
	if !current {
		slog.Debug("discarding result of superseded run", "generation", gen)
		return
	}

	slog.Info("scan result ready", "generation", gen, "zone", result.ZoneID, "risk", result.RiskLevel)
	if r.onResult != nil {
		r.onResult(result)
	}
}

func (r *Runner) armTickLocked() {
	r.seq++
	gen, seq := r.generation, r.seq
	r.tickSeq = seq
	r.tick = r.clock.AfterFunc(r.cfg.TickInterval, func() { r.onTick(gen, seq) })
}

func (r *Runner) armSettleLocked(completedAt time.Time) {
	r.seq++
	gen, seq := r.generation, r.seq
	info := RunInfo{
		Generation:  gen,
		StartedAt:   r.startedAt,
		CompletedAt: completedAt,
		Active:      r.active,
	}
	r.settleSeq = seq
	r.settle = r.clock.AfterFunc(r.cfg.SettleDelay, func() { r.onSettle(gen, seq, info) })
}

func (r *Runner) stopTickLocked() {
	if r.tick != nil {
		r.tick.Stop()
		r.tick = nil
	}
	r.tickSeq = 0
}

func (r *Runner) disarmLocked() {
	r.stopTickLocked()
	if r.settle != nil {
		r.settle.Stop()
		r.settle = nil
	}
	r.settleSeq = 0
}

func (r *Runner) statusLocked() models.RunStatus {
	return models.RunStatus{
		State:      r.state,
		Progress:   r.progress,
		Phase:      r.phase,
		Generation: r.generation,
		StartedAt:  r.startedAt,
	}
}

func (r *Runner) notify(status models.RunStatus) {
	if r.onStatus != nil {
		r.onStatus(status)
	}
}

package simulation

import (
	"math/rand"
	"time"

	"github.com/NethermindEth/masp/core"
)

// ScheduleConfig sets the per-agent wake windows.
type ScheduleConfig struct {
	LocalMin    time.Duration
	LocalMax    time.Duration
	ExternalMin time.Duration
	ExternalMax time.Duration
	// Populations at or below SmallPopulation stretch every window by SmallPopulationFactor.
	SmallPopulation       int
	SmallPopulationFactor float64
	// InitialFraction scales the first window an agent gets.
	InitialFraction float64
}

// DefaultSchedule returns the production wake windows.
func DefaultSchedule() ScheduleConfig {
	return ScheduleConfig{
		LocalMin:              18 * time.Second,
		LocalMax:              48 * time.Second,
		ExternalMin:           22 * time.Second,
		ExternalMax:           58 * time.Second,
		SmallPopulation:       2,
		SmallPopulationFactor: 1.45,
		InitialFraction:       0.4,
	}
}

// Scheduler tracks when each agent may act next. It is not safe for
// concurrent use; the engine calls it under its state lock.
type Scheduler struct {
	cfg  ScheduleConfig
	next map[string]time.Time
}

func NewScheduler(cfg ScheduleConfig) *Scheduler {
	return &Scheduler{cfg: cfg, next: make(map[string]time.Time)}
}

// Ready reports whether name may act at now. An agent seen for the first
// time gets a shortened initial window and is not ready yet.
func (s *Scheduler) Ready(name string, kind core.AgentKind, population int, now time.Time, rng *rand.Rand) bool {
	wake, ok := s.next[name]
	if !ok {
		delay := s.window(kind, population, rng)
		s.next[name] = now.Add(time.Duration(float64(delay) * s.cfg.InitialFraction))
		return false
	}
	return !now.Before(wake)
}

// Schedule redraws the next wake time after an accepted action.
func (s *Scheduler) Schedule(name string, kind core.AgentKind, population int, now time.Time, rng *rand.Rand) time.Time {
	wake := now.Add(s.window(kind, population, rng))
	s.next[name] = wake
	return wake
}

// NextWake returns the scheduled wake time, if any.
func (s *Scheduler) NextWake(name string) (time.Time, bool) {
	t, ok := s.next[name]
	return t, ok
}

func (s *Scheduler) Forget(name string) {
	delete(s.next, name)
}

func (s *Scheduler) window(kind core.AgentKind, population int, rng *rand.Rand) time.Duration {
	lo, hi := s.cfg.LocalMin, s.cfg.LocalMax
	if kind == core.KindExternal {
		lo, hi = s.cfg.ExternalMin, s.cfg.ExternalMax
	}
	delay := lo
	if hi > lo {
		delay += time.Duration(rng.Int63n(int64(hi - lo)))
	}
	if population <= s.cfg.SmallPopulation && s.cfg.SmallPopulationFactor > 0 {
		delay = time.Duration(float64(delay) * s.cfg.SmallPopulationFactor)
	}
	return delay
}

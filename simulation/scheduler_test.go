package simulation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/NethermindEth/masp/core"
)

func TestScheduler_FirstObservationDelays(t *testing.T) {
	s := NewScheduler(DefaultSchedule())
	rng := rand.New(rand.NewSource(1))
	now := time.Unix(1_700_000_000, 0)

	assert.False(t, s.Ready("ann", core.KindHosted, 5, now, rng))
	wake, ok := s.NextWake("ann")
	assert.True(t, ok)
	delay := wake.Sub(now)
	assert.GreaterOrEqual(t, delay, time.Duration(float64(18*time.Second)*0.4))
	assert.Less(t, delay, time.Duration(float64(48*time.Second)*0.4))

	assert.False(t, s.Ready("ann", core.KindHosted, 5, now, rng))
	assert.True(t, s.Ready("ann", core.KindHosted, 5, wake, rng))
}

func TestScheduler_Windows(t *testing.T) {
	cases := []struct {
		name       string
		kind       core.AgentKind
		population int
		min, max   time.Duration
	}{
		{"hosted", core.KindHosted, 5, 18 * time.Second, 48 * time.Second},
		{"llm", core.KindLLM, 3, 18 * time.Second, 48 * time.Second},
		{"external", core.KindExternal, 5, 22 * time.Second, 58 * time.Second},
		{"small population", core.KindHosted, 2, time.Duration(float64(18*time.Second) * 1.45), time.Duration(float64(48*time.Second) * 1.45)},
		{"small external", core.KindExternal, 1, time.Duration(float64(22*time.Second) * 1.45), time.Duration(float64(58*time.Second) * 1.45)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScheduler(DefaultSchedule())
			rng := rand.New(rand.NewSource(7))
			now := time.Unix(0, 0)
			for i := 0; i < 100; i++ {
				d := s.Schedule("x", tc.kind, tc.population, now, rng).Sub(now)
				assert.GreaterOrEqual(t, d, tc.min)
				assert.Less(t, d, tc.max)
			}
		})
	}
}

func TestScheduler_Forget(t *testing.T) {
	s := NewScheduler(DefaultSchedule())
	rng := rand.New(rand.NewSource(1))
	s.Schedule("ann", core.KindHosted, 3, time.Unix(0, 0), rng)
	s.Forget("ann")
	_, ok := s.NextWake("ann")
	assert.False(t, ok)
}

func TestManualClockTicker(t *testing.T) {
	c := NewManualClock(time.Unix(100, 0))
	tk := c.NewTicker(10 * time.Second)

	c.Advance(5 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("ticked early")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case at := <-tk.C():
		assert.Equal(t, time.Unix(110, 0), at)
	default:
		t.Fatal("expected a tick")
	}

	tk.Stop()
	c.Advance(time.Minute)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

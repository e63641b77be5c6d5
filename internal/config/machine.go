package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-yaml"
)

// MaxInterruptPeriod is the longest wall time permitted between timer
// interrupts in real-time mode.
const MaxInterruptPeriod = 24 * time.Hour

var ErrPeriodTooLong = errors.New("interrupt period too long")

// Default machine configuration.
var MachineDefaults = Machine{
	InterruptInterval: 500,
	Jitter:            0.1,
	TickDuration:      10 * time.Microsecond,
	Seed:              1,
}

type Machine struct {
	// Number of ticks between timer interrupts.
	InterruptInterval uint64 `yaml:"interrupt_interval" validate:"required,gt=0,max=1000000000000"`

	// Random variation applied to every interrupt interval. Use 0 for a
	// strictly periodic timer.
	Jitter float32 `yaml:"jitter" validate:"min=0,max=1"`

	// Drive the timer from the wall clock instead of firing interrupts
	// whenever the CPU is idle.
	Realtime bool `yaml:"realtime"`

	// Wall time per tick in real-time mode.
	TickDuration time.Duration `yaml:"tick_duration" validate:"required,gt=0"`

	// Seed for the interval jitter in simulated mode. Runs with the same seed
	// and scenario produce the same schedule.
	Seed int64 `yaml:"seed"`
}

var _ yaml.InterfaceUnmarshaler = (*Machine)(nil)

func (m *Machine) UnmarshalYAML(unmarshal func(any) error) error {
	*m = MachineDefaults

	type machine Machine

	return unmarshal((*machine)(m))
}

// InterruptPeriod returns the wall time between two timer interrupts in
// real-time mode.
func (m Machine) InterruptPeriod() (time.Duration, error) {
	if m.TickDuration <= 0 {
		return 0, fmt.Errorf("%w: tick duration %v not positive", ErrPeriodTooLong, m.TickDuration)
	}

	if m.InterruptInterval > uint64(math.MaxInt64/m.TickDuration) {
		return 0, fmt.Errorf("%w: %d ticks of %v overflow", ErrPeriodTooLong, m.InterruptInterval, m.TickDuration)
	}

	period := time.Duration(m.InterruptInterval) * m.TickDuration

	if period > MaxInterruptPeriod {
		return 0, fmt.Errorf("%w: %v exceeds %v", ErrPeriodTooLong, period, MaxInterruptPeriod)
	}

	return period, nil
}

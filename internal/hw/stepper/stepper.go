package stepper

import (
	"errors"
	"fmt"
	"time"

	"github.com/mlavoie/feedgo/internal/debug"
	"github.com/mlavoie/feedgo/internal/hw/gpio"
)

// ErrBusy is returned when Dispense is called while a dispense cycle is
// already in progress. The control loop never does this; the manual
// trigger on the web server can.
var ErrBusy = errors.New("dispense already in progress")

// State tracks the dispense cycle for the single-flight guarantee.
type State int

const (
	StateDisabled State = iota
	StateEnabling
	StateStepping
	StateDisabling
)

// Config holds the hardware configuration for the dispense motor.
type Config struct {
	StepPin      int
	DirPin       int
	EnablePin    int           // A4988 ENABLE pin (BCM). Active LOW (LOW=enabled).
	StepsPerRev  int           // steps per portion (one full mechanical revolution)
	StepDelay    time.Duration // delay per half-cycle of STEP pulse. Total step = 2*StepDelay.
	SettleDelay  time.Duration // driver settle time after enable
	PortionPause time.Duration // pause between portions
}

// Motor drives the hopper auger through an A4988-style driver.
// The enable line stays HIGH (motor disabled, no holding torque) at all
// times except inside an active Dispense call.
type Motor struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration
	state State
}

// NewMotor creates the dispense motor controller. The enable line is
// driven HIGH (disabled) and the direction line set once: the auger
// only ever turns forward.
func NewMotor(g gpio.Driver, cfg Config) *Motor {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)
	_ = g.SetupPin(cfg.EnablePin, gpio.Output)

	_ = g.WritePin(cfg.EnablePin, gpio.High) // disabled until first dispense
	_ = g.WritePin(cfg.DirPin, gpio.High)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}
	if cfg.StepsPerRev <= 0 {
		cfg.StepsPerRev = 200
	}

	return &Motor{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
		state: StateDisabled,
	}
}

// State returns the current cycle state.
func (m *Motor) State() State {
	return m.state
}

// Dispense runs one bounded dispense cycle: enable the driver, emit
// StepsPerRev pulses per portion with a pause between portions, then
// disable. The enable line is restored HIGH on every exit path,
// including a failed pulse mid-cycle.
func (m *Motor) Dispense(portions int) (err error) {
	if portions <= 0 {
		return fmt.Errorf("portions must be positive, got %d", portions)
	}
	if m.state != StateDisabled {
		debug.Verbose("Motor: dispense refused, cycle in progress (state=%d)", m.state)
		return ErrBusy
	}

	debug.Dispense(portions)

	m.state = StateEnabling
	defer func() {
		m.state = StateDisabling
		if derr := m.gpio.WritePin(m.cfg.EnablePin, gpio.High); derr != nil && err == nil {
			err = fmt.Errorf("disable motor: %w", derr)
		}
		m.state = StateDisabled
	}()

	if werr := m.gpio.WritePin(m.cfg.EnablePin, gpio.Low); werr != nil {
		return fmt.Errorf("enable motor: %w", werr)
	}
	time.Sleep(m.cfg.SettleDelay)

	m.state = StateStepping
	for p := 0; p < portions; p++ {
		debug.Verbose("Motor: portion %d/%d, %d steps", p+1, portions, m.cfg.StepsPerRev)
		for i := 0; i < m.cfg.StepsPerRev; i++ {
			if serr := m.stepPulse(); serr != nil {
				return fmt.Errorf("portion %d step %d: %w", p+1, i+1, serr)
			}
		}
		if p < portions-1 {
			time.Sleep(m.cfg.PortionPause)
		}
	}

	debug.Live("Motor: dispense complete")
	return nil
}

func (m *Motor) stepPulse() error {
	if err := m.gpio.WritePin(m.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(m.delay)
	if err := m.gpio.WritePin(m.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(m.delay)
	return nil
}

package feeder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mlavoie/feedgo/internal/debug"
	"github.com/mlavoie/feedgo/internal/hw/camera"
	"github.com/mlavoie/feedgo/internal/telemetry"
	"github.com/mlavoie/feedgo/internal/vision"
)

// Classifier maps a frame to a bowl state.
type Classifier interface {
	Classify(vision.Frame) (vision.Result, error)
}

// Dispenser runs one bounded motor cycle.
type Dispenser interface {
	Dispense(portions int) error
}

// Publisher owns the broker connection and per-message retry.
type Publisher interface {
	Connect() error
	Connected() bool
	Publish(telemetry.Reading) error
	Disconnect()
}

// Config holds the loop policy knobs.
type Config struct {
	CheckInterval       time.Duration // inter-iteration sleep
	MinDispenseInterval time.Duration // cooldown between dispenses
	Portions            int           // portions per dispense
	ConfidenceThreshold float64       // dispense gate on classifier confidence
	MaxPublishFailures  int           // consecutive failures before the handle is discarded
}

// Loop is the control loop orchestrator: capture → classify → publish →
// (conditionally) dispense → sleep, forever. Every stage failure is
// logged and absorbed; the loop itself only exits on cancellation.
// All iteration state is owned by the single loop goroutine; the Status
// snapshot and the dispense path are the only parts shared with the
// diagnostics server, each behind its own mutex.
type Loop struct {
	camera     camera.Source
	classifier Classifier
	publisher  Publisher
	motor      Dispenser
	cfg        Config

	now func() time.Time

	pubFailures  int
	lastDispense time.Time

	dispenseMu sync.Mutex

	statusMu sync.Mutex
	status   Status
}

// New builds a Loop over the four components. MaxPublishFailures
// defaults to 3 and Portions to 1 when unset.
func New(cam camera.Source, cls Classifier, pub Publisher, motor Dispenser, cfg Config) *Loop {
	if cfg.MaxPublishFailures <= 0 {
		cfg.MaxPublishFailures = 3
	}
	if cfg.Portions <= 0 {
		cfg.Portions = 1
	}
	return &Loop{
		camera:     cam,
		classifier: cls,
		publisher:  pub,
		motor:      motor,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run executes iterations until ctx is cancelled. Cancellation is
// cooperative: the current iteration finishes its cleanup (a dispense
// in flight always restores the motor) before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	debug.Info("Control loop started (interval %v, cooldown %v)",
		l.cfg.CheckInterval, l.cfg.MinDispenseInterval)

	for {
		select {
		case <-ctx.Done():
			debug.Info("Control loop stopping")
			return ctx.Err()
		default:
		}

		l.iterate(ctx)

		debug.Stage("sleeping")
		if err := sleepCtx(ctx, l.cfg.CheckInterval); err != nil {
			debug.Info("Control loop stopping")
			return err
		}
	}
}

// iterate runs one capture → classify → publish → dispense pass.
func (l *Loop) iterate(ctx context.Context) {
	l.bumpIteration()

	debug.Stage("capturing")
	frame, err := l.camera.Capture()
	if err != nil {
		// Absorbed: skip classification this cycle, try again next one.
		debug.Errorf("capture", err)
		l.recordError("capture", err)
		return
	}

	debug.Stage("classifying")
	res, err := l.classifier.Classify(frame)
	if err != nil {
		debug.Errorf("classify", err)
		l.recordError("classify", err)
		return
	}
	debug.Bowl(res.Empty, res.Confidence)
	l.recordResult(res)

	debug.Stage("publishing")
	l.publishReading(res)

	// Re-check the stop flag before committing to an actuation.
	select {
	case <-ctx.Done():
		return
	default:
	}

	if res.Empty && res.Confidence > l.cfg.ConfidenceThreshold {
		l.maybeDispense()
	}
}

// publishReading delivers one reading, reconnecting first when the
// handle was previously discarded. A reading that cannot be delivered
// is dropped; the next iteration's fresher reading supersedes it.
func (l *Loop) publishReading(res vision.Result) {
	if !l.publisher.Connected() {
		if err := l.publisher.Connect(); err != nil {
			debug.Errorf("connect", err)
			l.recordError("connect", err)
			return
		}
	}

	reading := telemetry.NewReading(res.Empty, res.Confidence, l.now())
	if err := l.publisher.Publish(reading); err != nil {
		l.pubFailures++
		debug.Errorf("publish", err)
		l.recordPublish(false)
		if l.pubFailures >= l.cfg.MaxPublishFailures {
			debug.Info("Telemetry: %d consecutive publish failures, discarding connection handle", l.pubFailures)
			l.publisher.Disconnect()
			l.pubFailures = 0
		}
		return
	}

	l.pubFailures = 0
	l.recordPublish(true)
}

// maybeDispense runs the motor unless the cooldown window is still
// open.
func (l *Loop) maybeDispense() {
	debug.Stage("dispensing")
	err := l.dispense()
	switch {
	case errors.Is(err, ErrCooldown):
		debug.Live("Dispense skipped: cooldown")
	case err != nil:
		debug.Errorf("dispense", err)
		l.recordError("dispense", err)
	}
}

// TriggerDispense runs one manual dispense, bypassing classification
// but honoring the cooldown. Used by the diagnostics server.
func (l *Loop) TriggerDispense() error {
	return l.dispense()
}

// dispense serializes motor access and the cooldown clock between the
// loop and the manual trigger on the diagnostics server. The cooldown
// clock restarts on every attempt, successful or not: a partial
// dispense must not trigger an immediate second one.
func (l *Loop) dispense() error {
	l.dispenseMu.Lock()
	defer l.dispenseMu.Unlock()

	now := l.now()
	if !l.lastDispense.IsZero() && now.Sub(l.lastDispense) < l.cfg.MinDispenseInterval {
		return ErrCooldown
	}

	l.lastDispense = now
	if err := l.motor.Dispense(l.cfg.Portions); err != nil {
		return err
	}
	l.recordDispense(now)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package feeder

import (
	"errors"
	"time"

	"github.com/mlavoie/feedgo/internal/vision"
)

// ErrCooldown is returned when a dispense is requested inside the
// minimum inter-dispense window.
var ErrCooldown = errors.New("dispense cooldown in effect")

// Status is a snapshot of the loop for the diagnostics server. The
// telemetry stream stays the authoritative remote heartbeat; this is
// local operator visibility only.
type Status struct {
	Iterations   int       `json:"iterations"`
	LastCheck    time.Time `json:"last_check"`
	BowlEmpty    bool      `json:"bowl_empty"`
	Confidence   float64   `json:"confidence"`
	LastPublish  time.Time `json:"last_publish"`
	PublishOK    bool      `json:"publish_ok"`
	Dispenses    int       `json:"dispenses"`
	LastDispense time.Time `json:"last_dispense"`
	LastError    string    `json:"last_error,omitempty"`
	LastErrStage string    `json:"last_error_stage,omitempty"`
}

// Status returns a copy of the current snapshot.
func (l *Loop) Status() Status {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()
	return l.status
}

func (l *Loop) bumpIteration() {
	l.statusMu.Lock()
	l.status.Iterations++
	l.status.LastCheck = l.now()
	l.statusMu.Unlock()
}

func (l *Loop) recordResult(res vision.Result) {
	l.statusMu.Lock()
	l.status.BowlEmpty = res.Empty
	l.status.Confidence = res.Confidence
	l.statusMu.Unlock()
}

func (l *Loop) recordPublish(ok bool) {
	l.statusMu.Lock()
	l.status.PublishOK = ok
	if ok {
		l.status.LastPublish = l.now()
	}
	l.statusMu.Unlock()
}

func (l *Loop) recordDispense(at time.Time) {
	l.statusMu.Lock()
	l.status.Dispenses++
	l.status.LastDispense = at
	l.statusMu.Unlock()
}

func (l *Loop) recordError(stage string, err error) {
	l.statusMu.Lock()
	l.status.LastErrStage = stage
	l.status.LastError = err.Error()
	l.statusMu.Unlock()
}

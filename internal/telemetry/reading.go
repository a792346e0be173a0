package telemetry

import "time"

// StateMessage is the fixed message field of every bowl state update.
const StateMessage = "Bowl State Update"

// Reading is the wire format of one telemetry message, published once
// per loop iteration with at-least-once semantics. Receivers tolerate
// duplicates; a newer reading always supersedes an older one, so failed
// readings are dropped rather than queued.
type Reading struct {
	Message    string  `json:"message"`
	Empty      bool    `json:"empty"`
	Confidence float64 `json:"confidence"`
	Timestamp  float64 `json:"timestamp"` // Unix epoch seconds
}

// NewReading builds a Reading stamped at the given time.
func NewReading(empty bool, confidence float64, at time.Time) Reading {
	return Reading{
		Message:    StateMessage,
		Empty:      empty,
		Confidence: confidence,
		Timestamp:  float64(at.UnixNano()) / float64(time.Second),
	}
}

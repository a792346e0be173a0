package camera

import (
	"fmt"

	"github.com/mlavoie/feedgo/internal/debug"
	"github.com/mlavoie/feedgo/internal/vision"
)

// Source is the high-level frame acquisition interface used by the
// control loop, regardless of the underlying device (V4L2 webcam, CSI
// camera, a file-backed fake in tests).
type Source interface {
	// Capture returns one fresh frame. No internal retry: a failed read
	// surfaces as an error and the loop decides what to do with it.
	Capture() (vision.Frame, error)
	Close() error
}

// captureHandle is the narrow slice of a video device the capture
// sequencing needs: discard buffered frames, read one, release. Split
// from Device so the grab-then-read ordering can be exercised without
// a physical camera, the same way gpio.Driver stands in for real pins.
type captureHandle interface {
	Grab(count int)
	Read() (vision.Frame, error)
	Close() error
}

// Device is a Source that sequences captures over a captureHandle.
// It owns the device handle for the lifetime of the process.
type Device struct {
	handle captureHandle
	id     int
	flush  int
}

func newDevice(h captureHandle, id, flushFrames int) *Device {
	return &Device{handle: h, id: id, flush: flushFrames}
}

// Capture discards the device's stale buffered frames, then reads and
// returns one fresh frame as an owned BGR buffer.
func (d *Device) Capture() (vision.Frame, error) {
	if d.flush > 0 {
		debug.Trace("Camera: flushing %d stale frames", d.flush)
		d.handle.Grab(d.flush)
	}

	frame, err := d.handle.Read()
	if err != nil {
		return vision.Frame{}, fmt.Errorf("camera %d: %w", d.id, err)
	}
	if err := frame.Validate(); err != nil {
		return vision.Frame{}, fmt.Errorf("camera %d: %w", d.id, err)
	}

	debug.Verbose("Camera: captured %dx%d frame", frame.Width, frame.Height)
	return frame, nil
}

// Close releases the device handle.
func (d *Device) Close() error {
	debug.Trace("Camera: releasing device %d", d.id)
	return d.handle.Close()
}

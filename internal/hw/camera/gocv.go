package camera

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/mlavoie/feedgo/internal/debug"
	"github.com/mlavoie/feedgo/internal/vision"
)

// gocvHandle adapts a gocv V4L2 capture to the captureHandle interface.
type gocvHandle struct {
	cap *gocv.VideoCapture
}

// NewDevice opens the capture device at the requested resolution.
// Fails fast: an unopenable device is a fatal startup condition and the
// caller is expected to abort.
func NewDevice(deviceID, width, height, flushFrames int) (*Device, error) {
	debug.Info("Opening camera device %d at %dx%d", deviceID, width, height)

	cap, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", deviceID, err)
	}
	if !cap.IsOpened() {
		_ = cap.Close()
		return nil, fmt.Errorf("camera %d did not open", deviceID)
	}

	cap.Set(gocv.VideoCaptureFrameWidth, float64(width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(height))

	return newDevice(&gocvHandle{cap: cap}, deviceID, flushFrames), nil
}

func (h *gocvHandle) Grab(count int) {
	h.cap.Grab(count)
}

// Read pulls one frame, copying the pixels out of the Mat so the
// returned Frame owns its buffer after the Mat is released.
func (h *gocvHandle) Read() (vision.Frame, error) {
	mat := gocv.NewMat()
	defer mat.Close()

	if ok := h.cap.Read(&mat); !ok || mat.Empty() {
		return vision.Frame{}, fmt.Errorf("frame read failed")
	}

	return vision.Frame{
		Pix:      mat.ToBytes(),
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
	}, nil
}

func (h *gocvHandle) Close() error {
	return h.cap.Close()
}

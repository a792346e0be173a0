package vision

import "fmt"

// Frame is an owned pixel buffer produced by the camera, interleaved
// BGR row-major (OpenCV layout). One Frame is produced per loop
// iteration and discarded after classification; it is never shared.
type Frame struct {
	Pix      []byte
	Width    int
	Height   int
	Channels int
}

// Validate checks the buffer matches the declared geometry.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame geometry %dx%d", f.Width, f.Height)
	}
	if f.Channels != 3 {
		return fmt.Errorf("expected 3-channel frame, got %d", f.Channels)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pix) != want {
		return fmt.Errorf("frame buffer size %d does not match %dx%dx%d (%d)",
			len(f.Pix), f.Width, f.Height, f.Channels, want)
	}
	return nil
}

package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-sculptor/internal/landmark"
)

// ErrCaptureEnded is returned when the device stops before a frame is confirmed.
var ErrCaptureEnded = errors.New("capture ended before a frame was confirmed")

// CaptureDevice streams landmark sets from an external detector.
type CaptureDevice interface {
	Frames() <-chan landmark.Set
	Close() error
}

// LandmarkSource hands out capture devices.
type LandmarkSource interface {
	Acquire(ctx context.Context) (CaptureDevice, error)
}

// ConfirmFunc decides whether a streamed frame is the one the user accepts.
type ConfirmFunc func(landmark.Set) bool

// Scan acquires a device from source, waits for the first frame confirm
// accepts and commits it. The device is always released, whether the scan
// succeeds, fails or is canceled. A nil confirm accepts the first frame.
func (e *Editor) Scan(ctx context.Context, source LandmarkSource, confirm ConfirmFunc) (*landmark.Capture, error) {
	dev, err := source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire capture device: %w", err)
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			e.log.WithError(cerr).Warn("closing capture device")
		}
	}()

	frames := dev.Frames()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case set, ok := <-frames:
			if !ok {
				return nil, ErrCaptureEnded
			}
			if confirm != nil && !confirm(set) {
				continue
			}
			return e.Commit(set)
		}
	}
}

package fxpipe

import (
	"errors"

	"github.com/gogpu/fxpipe/gpucore"
)

var (
	// ErrDeviceLost is returned once the device is gone. Call ResetDevice
	// with a new adapter before drawing again.
	ErrDeviceLost = gpucore.ErrDeviceLost

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("fxpipe: renderer closed")

	// ErrInvalidConfig is returned for unusable configuration values.
	ErrInvalidConfig = errors.New("fxpipe: invalid config")
)

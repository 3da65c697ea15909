//go:build !windows

package action

import "errors"

// ErrUnsupported is returned on platforms without an injection backend.
var ErrUnsupported = errors.New("action: synthetic input not supported on this platform")

// SendInputInjector is a stub off Windows; every call fails so the state
// machine refuses to arm.
type SendInputInjector struct{}

func (SendInputInjector) MouseDown() error { return ErrUnsupported }

func (SendInputInjector) MouseUp() error { return ErrUnsupported }

//go:build windows

package action

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32    = windows.NewLazySystemDLL("user32.dll")
	sendInput = user32.NewProc("SendInput")
)

const (
	inputMouse          = 0
	mouseEventfLeftDown = 0x0002
	mouseEventfLeftUp   = 0x0004
)

type mouseInput struct {
	Dx        int32
	Dy        int32
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// input mirrors the Win32 INPUT struct for the mouse case. The pad keeps the
// union at its 8-byte alignment on amd64.
type input struct {
	Type uint32
	_    uint32
	Mi   mouseInput
}

// SendInputInjector produces left-button events at the current cursor
// position through the SendInput API.
type SendInputInjector struct{}

func (SendInputInjector) MouseDown() error { return sendMouse(mouseEventfLeftDown) }

func (SendInputInjector) MouseUp() error { return sendMouse(mouseEventfLeftUp) }

func sendMouse(flags uint32) error {
	in := input{Type: inputMouse, Mi: mouseInput{Flags: flags}}
	n, _, callErr := sendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if n != 1 {
		return fmt.Errorf("action: SendInput rejected event: %v", callErr)
	}
	return nil
}

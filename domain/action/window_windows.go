//go:build windows

package action

import (
	"errors"
	"strings"
	"unicode/utf16"
	"unsafe"
)

var (
	getForegroundWindow = user32.NewProc("GetForegroundWindow")
	getWindowTextW      = user32.NewProc("GetWindowTextW")
)

// ForegroundWindowTitle returns the title of the window that currently has
// input focus. An empty title with nil error means the window has no text.
func ForegroundWindowTitle() (string, error) {
	hwnd, _, _ := getForegroundWindow.Call()
	if hwnd == 0 {
		return "", errors.New("action: no foreground window")
	}
	buf := make([]uint16, 256)
	r, _, _ := getWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r == 0 {
		return "", nil
	}
	end := int(r)
	for i, v := range buf {
		if v == 0 {
			end = i
			break
		}
	}
	return strings.TrimSpace(string(utf16.Decode(buf[:end]))), nil
}

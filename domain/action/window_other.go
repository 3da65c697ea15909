//go:build !windows

package action

// ForegroundWindowTitle is a stub off Windows. It reports no focus, so the
// detection loop idles instead of clicking into an unknown window.
func ForegroundWindowTitle() (string, error) {
	return "", ErrUnsupported
}

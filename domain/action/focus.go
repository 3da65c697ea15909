// Package action talks to the operating system: synthetic mouse input,
// foreground-window queries and hotkey token parsing. Everything else in the
// program treats this package as the only boundary with real input devices.
package action

import "strings"

// NormalizeTitle lowercases a window title and strips everything that is not
// a letter or digit. Titles decorated with version numbers or separators
// still compare equal to the configured game name.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsGameWindow reports whether title belongs to the game. A title containing
// any excluded keyword never counts, even when it also contains the game
// name; editors showing a file named after the game are the classic trap.
func IsGameWindow(title, game string, excluded []string) bool {
	if title == "" || game == "" {
		return false
	}
	lower := strings.ToLower(title)
	for _, kw := range excluded {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return strings.Contains(NormalizeTitle(title), NormalizeTitle(game))
}

package template

import (
	"os"
	"path/filepath"
)

// Dirs resolves the on-disk layout for template images. Defaults live in
// templates/, user captures in captured/; a capture with the same filename
// always wins over the shipped default.
type Dirs struct {
	Base string
}

// Templates returns the default-templates directory.
func (d Dirs) Templates() string { return filepath.Join(d.Base, "templates") }

// Captured returns the user-captured templates directory.
func (d Dirs) Captured() string { return filepath.Join(d.Base, "captured") }

// Previews returns the directory for debug preview images.
func (d Dirs) Previews() string { return filepath.Join(d.Base, "previews") }

// CapturedPath returns the path a new capture of name should be saved to.
func (d Dirs) CapturedPath(name string) string { return filepath.Join(d.Captured(), name) }

// EnsureLayout creates the directory tree if it does not exist.
func (d Dirs) EnsureLayout() error {
	for _, dir := range []string{d.Templates(), d.Captured(), d.Previews()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Find locates a template file by name. Priority: captured/, then templates/,
// then the base directory for backwards compatibility.
func (d Dirs) Find(name string) (string, bool) {
	for _, p := range []string{
		filepath.Join(d.Captured(), name),
		filepath.Join(d.Templates(), name),
		filepath.Join(d.Base, name),
	} {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}
	return "", false
}

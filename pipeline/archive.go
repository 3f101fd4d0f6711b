package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Archive stores raw detail pages as <contractor>.html files.
type Archive struct {
	dir   string
	mu    sync.Mutex
	saved int
}

// NewArchive creates dir if needed.
func NewArchive(dir string) (*Archive, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory %q: %w", dir, err)
	}
	return &Archive{dir: dir}, nil
}

// Save writes html under a file named after name and returns its path.
// A later page with the same name replaces the earlier one.
func (a *Archive) Save(name, html string) (string, error) {
	path := filepath.Join(a.dir, SanitizeFilename(name)+".html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("write archive page: %w", err)
	}

	a.mu.Lock()
	a.saved++
	a.mu.Unlock()
	return path, nil
}

// Saved returns how many pages were written.
func (a *Archive) Saved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saved
}

// SanitizeFilename replaces path separators and control characters so name
// is safe as a single path element.
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, name)
	cleaned = strings.Trim(strings.TrimSpace(cleaned), ".")
	if cleaned == "" {
		return "contractor"
	}
	return cleaned
}

package flatten

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Scratch manages per-call temporary directories.
type Scratch struct {
	// Root is the parent directory; empty means the OS temp dir.
	Root   string
	Logger *slog.Logger
}

// Do creates a private dir, writes src as InputName, runs fn with the dir and
// returns the contents of OutputName. The dir is removed afterwards whatever
// the outcome; removal failures are only logged.
func (s Scratch) Do(src []byte, fn func(dir string) error) ([]byte, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if s.Root != "" {
		if err := os.MkdirAll(s.Root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.Root, "flatten-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove scratch dir", "dir", dir, "error", err)
		}
	}()

	if err := os.WriteFile(filepath.Join(dir, InputName), src, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write scratch input: %w", err)
	}

	if err := fn(dir); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(filepath.Join(dir, OutputName))
	if err != nil {
		return nil, fmt.Errorf("failed to read flattened output: %w", err)
	}
	return out, nil
}

package draft

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Checkpoint writes text to path, creating parent directories. The write
// goes through a temp file and rename so a crash never leaves a torn draft.
func Checkpoint(path, text string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create draft directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".draft-*")
	if err != nil {
		return fmt.Errorf("create temp draft: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("write draft: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close draft: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod draft: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace draft: %w", err)
	}
	return nil
}

// LoadSeed returns the trimmed content of an existing draft, or "" when the
// file is missing or blank.
func LoadSeed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read draft %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
)

// Layout holds the artifact directories.
type Layout struct {
	DraftDir  string // drafts/YYYY/MM/YYYY-MM-DD_edition.md
	BackupDir string
	LogsDir   string
}

// Writer persists run artifacts.
type Writer struct {
	layout Layout
}

// NewWriter creates a writer for the given layout.
func NewWriter(layout Layout) *Writer {
	return &Writer{layout: layout}
}

// WriteDraft writes the newsletter under drafts/YYYY/MM/ and a copy under
// the backup directory. Returns the draft path.
func (w *Writer) WriteDraft(doc string, date time.Time, edition string) (string, error) {
	if err := Validate(doc); err != nil {
		return "", fmt.Errorf("refusing to write invalid draft: %w", err)
	}

	dir := filepath.Join(w.layout.DraftDir, date.Format("2006"), date.Format("01"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create draft directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s_newsletter.md",
		date.Format("2006-01-02"), time.Now().Format("1504"), edition)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("failed to write draft: %w", err)
	}

	if w.layout.BackupDir != "" {
		backupDir := filepath.Join(w.layout.BackupDir, date.Format("2006-01-02"))
		if err := os.MkdirAll(backupDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create backup directory: %w", err)
		}
		backup := filepath.Join(backupDir, name)
		if err := os.WriteFile(backup, []byte(doc), 0o644); err != nil {
			// A failed backup is not worth failing the publish.
			logger.Warn("backup write failed", "path", backup, "error", err.Error())
		}
	}

	logger.Info("draft written", "path", path)
	return path, nil
}

// WriteRunLog persists the run state as a JSON log for later inspection.
func (w *Writer) WriteRunLog(state *core.RunState, date time.Time) (string, error) {
	if w.layout.LogsDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(w.layout.LogsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	path := filepath.Join(w.layout.LogsDir,
		fmt.Sprintf("newsletter_%s.json", date.Format("2006-01-02")))
	data, err := json.MarshalIndent(state.Snapshot(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run log: %w", err)
	}
	return path, nil
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Paths contains the output locations of a single run.
// Every artifact of a run lands in one timestamped directory under Root.
type Paths struct {
	Root      string
	RunDir    string
	Timestamp time.Time
}

// NewRunPaths returns the paths for a run started at now. Nothing is created
// on disk until EnsureDirectories is called.
func NewRunPaths(root string, now time.Time) (*Paths, error) {
	if root == "" {
		root = DefaultOutputRoot
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output root %s: %w", root, err)
	}

	return &Paths{
		Root:      absRoot,
		RunDir:    filepath.Join(absRoot, RunDirPrefix+now.Format(RunDirTimeLayout)),
		Timestamp: now,
	}, nil
}

// EnsureDirectories creates the run directory if it does not exist
func (p *Paths) EnsureDirectories() error {
	if err := os.MkdirAll(p.RunDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p.RunDir, err)
	}
	return nil
}

// GetFigurePath returns the full path for an image artifact
func (p *Paths) GetFigurePath(filename string) string {
	return filepath.Join(p.RunDir, filename)
}

// GetReportPath returns the full path for a tabular artifact
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.RunDir, filename)
}

// GetTracePath returns the path of the span dump
func (p *Paths) GetTracePath() string {
	return filepath.Join(p.RunDir, FileTrace)
}

// GetMetricsPath returns the path of the Prometheus text dump
func (p *Paths) GetMetricsPath() string {
	return filepath.Join(p.RunDir, FileMetrics)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Resolved output paths",
		slog.String("root", p.Root),
		slog.String("run_dir", p.RunDir),
		slog.Time("timestamp", p.Timestamp))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Package home manages the foundry working directory layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the foundry home directory.
	DefaultDirName = ".foundry"

	// RawDirName holds downloaded or user-supplied source images.
	RawDirName = "data/raw"

	// CuratedDirName holds images that passed dedup and curation.
	CuratedDirName = "data/curated"

	// DebugDirName holds annotated overlay images kept for inspection.
	DebugDirName = "data/debug"

	// OutputDirName holds exported COCO files.
	OutputDirName = "data/output"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the foundry home directory structure.
type Dir struct {
	path string
}

// New creates a Dir at the given path, or ~/.foundry when path is empty.
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}
	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// RawPath returns the source image directory.
func (d *Dir) RawPath() string {
	return filepath.Join(d.path, RawDirName)
}

// CuratedPath returns the curated image directory.
func (d *Dir) CuratedPath() string {
	return filepath.Join(d.path, CuratedDirName)
}

// DebugPath returns the debug overlay directory.
func (d *Dir) DebugPath() string {
	return filepath.Join(d.path, DebugDirName)
}

// OutputPath returns the dataset export directory.
func (d *Dir) OutputPath() string {
	return filepath.Join(d.path, OutputDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the directory tree if it is missing.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.RawPath(), d.CuratedPath(), d.DebugPath(), d.OutputPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

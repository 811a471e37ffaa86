// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ExperimentFolder is the on-disk layout of a single experiment run.
// Data holds stage artifacts, Configs holds copies of the agent configs
// the run was started with.
type ExperimentFolder struct {
	Root    string
	Data    string
	Configs string
}

// CreateExperimentFolder creates an experiment folder under baseDir.
// When name is empty a timestamped name with a short unique suffix is
// generated. Creating the same named folder twice is allowed; the
// existing directories are reused.
func CreateExperimentFolder(baseDir, name string) (*ExperimentFolder, error) {
	if name == "" {
		name = fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	}
	root := filepath.Join(baseDir, name)
	f := &ExperimentFolder{
		Root:    root,
		Data:    filepath.Join(root, "data"),
		Configs: filepath.Join(root, "configs"),
	}
	for _, dir := range []string{f.Root, f.Data, f.Configs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating experiment folder: %w", err)
		}
	}
	return f, nil
}

// AddConfig copies the file at path into the folder's configs directory,
// keeping its base name.
func (f *ExperimentFolder) AddConfig(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config %s: %w", path, err)
	}
	defer src.Close()
	dst, err := os.Create(filepath.Join(f.Configs, filepath.Base(path)))
	if err != nil {
		return fmt.Errorf("copying config %s: %w", path, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying config %s: %w", path, err)
	}
	return nil
}

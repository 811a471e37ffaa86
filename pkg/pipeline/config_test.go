// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "configuration.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "name: run-1\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Stage != string(StagePipeline) {
		t.Errorf("Stage = %q, want pipeline", cfg.Stage)
	}
	if cfg.ExperimentDir != "./experiments" {
		t.Errorf("ExperimentDir = %q", cfg.ExperimentDir)
	}
	if cfg.MetadataDir != "./metadata" {
		t.Errorf("MetadataDir = %q", cfg.MetadataDir)
	}
	if got := cfg.Generate.FnsPerRepo; got != 5000 {
		t.Errorf("FnsPerRepo = %d, want 5000", got)
	}
	if got := cfg.Distill.Agent.NumWorkers; got != 32 {
		t.Errorf("NumWorkers = %d, want 32", got)
	}
	if got := cfg.Distill.Agent.CallLimit; got != 115 {
		t.Errorf("CallLimit = %d, want 115", got)
	}
	if got := cfg.Distill.Agent.Temperature; got != 0.6 {
		t.Errorf("Temperature = %v, want 0.6", got)
	}
	if got := cfg.Distill.TotalShards; got != 1 {
		t.Errorf("TotalShards = %d, want 1", got)
	}
	if cfg.Distill.StageOneConfig != "e2e" || cfg.Distill.StageTwoConfig != "qwen" {
		t.Errorf("stage configs = %q, %q", cfg.Distill.StageOneConfig, cfg.Distill.StageTwoConfig)
	}
	if got := cfg.Eval.CompareThreshold; got != 1 {
		t.Errorf("CompareThreshold = %v, want 1", got)
	}
	if cfg.Postprocess.ToolCallFormat != "hermes" {
		t.Errorf("ToolCallFormat = %q", cfg.Postprocess.ToolCallFormat)
	}
	if !cfg.Postprocess.TrainKey() {
		t.Error("TrainKey() = false, want true by default")
	}
	if !cfg.Postprocess.Submit() {
		t.Error("Submit() = false, want true by default")
	}
}

func TestLoadConfig_ExplicitFalseSurvivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
postprocess:
  add_train_key: false
  enforce_submit: false
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Postprocess.TrainKey() {
		t.Error("TrainKey() = true, want explicit false")
	}
	if cfg.Postprocess.Submit() {
		t.Error("Submit() = true, want explicit false")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
stage: eval
eval:
  compare_patch_threshold: 0.75
distill:
  agent_wrapper:
    num_workers: 4
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Stage != "eval" {
		t.Errorf("Stage = %q, want eval", cfg.Stage)
	}
	if got := cfg.Eval.CompareThreshold; got != 0.75 {
		t.Errorf("CompareThreshold = %v, want 0.75", got)
	}
	if got := cfg.Distill.Agent.NumWorkers; got != 4 {
		t.Errorf("NumWorkers = %d, want 4", got)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "stage: [unclosed\n")); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestCreateExperimentFolder(t *testing.T) {
	base := t.TempDir()
	f, err := CreateExperimentFolder(base, "run-1")
	if err != nil {
		t.Fatalf("CreateExperimentFolder: %v", err)
	}
	for _, dir := range []string{f.Root, f.Data, f.Configs} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("missing directory %s: %v", dir, err)
		}
	}
	if f.Root != filepath.Join(base, "run-1") {
		t.Errorf("Root = %q", f.Root)
	}

	// Reopening an existing folder is not an error.
	if _, err := CreateExperimentFolder(base, "run-1"); err != nil {
		t.Fatalf("reopening folder: %v", err)
	}
}

func TestCreateExperimentFolder_GeneratedName(t *testing.T) {
	base := t.TempDir()
	a, err := CreateExperimentFolder(base, "")
	if err != nil {
		t.Fatalf("CreateExperimentFolder: %v", err)
	}
	b, err := CreateExperimentFolder(base, "")
	if err != nil {
		t.Fatalf("CreateExperimentFolder: %v", err)
	}
	if a.Root == b.Root {
		t.Fatalf("generated names collide: %s", a.Root)
	}
}

func TestAddConfig(t *testing.T) {
	f, err := CreateExperimentFolder(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("CreateExperimentFolder: %v", err)
	}
	src := filepath.Join(t.TempDir(), "e2e.yaml")
	if err := os.WriteFile(src, []byte("model: test\n"), 0o644); err != nil {
		t.Fatalf("writing source config: %v", err)
	}
	if err := f.AddConfig(src); err != nil {
		t.Fatalf("AddConfig: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(f.Configs, "e2e.yaml"))
	if err != nil {
		t.Fatalf("reading copied config: %v", err)
	}
	if string(got) != "model: test\n" {
		t.Errorf("copied config = %q", got)
	}

	if err := f.AddConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}

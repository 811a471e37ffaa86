// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package curate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tannery/pkg/dataset"
)

const (
	// PatchEditMax is the added+deleted line budget for long_edit mode.
	// Trajectories whose prediction patch edits more lines are removed.
	PatchEditMax = 40

	// ToolCallTokenMax is the per-turn token budget for user_length mode.
	// Trajectories whose average tool-response length exceeds it are removed.
	ToolCallTokenMax = 600

	// feedbackSentinel marks the end-of-episode feedback message the
	// harness appends to every trajectory. User messages from it onward
	// are not tool output and are excluded from the token sum.
	feedbackSentinel = "OBSERVATION:\nThank you for your work on this issue."
)

// FilterMode selects the quality heuristic applied by Filter.
type FilterMode string

const (
	// FilterLongEdit removes trajectories whose prediction patch is too large.
	FilterLongEdit FilterMode = "long_edit"

	// FilterUserLength removes trajectories with oversized tool responses.
	FilterUserLength FilterMode = "user_length"
)

// Filter removes low-quality trajectories from a dataset. Exactly one
// mode is active per invocation. Filtering never edits a kept record.
type Filter struct {
	log *zap.Logger
	tok Tokenizer
}

// NewFilter returns a Filter. The tokenizer is only consulted in
// user_length mode and may be nil for long_edit runs.
func NewFilter(log *zap.Logger, tok Tokenizer) *Filter {
	return &Filter{log: log, tok: tok}
}

// Run loads and concatenates the datasets, flags instances for removal
// under the given mode, and writes the survivors to
// <name>_filter_<mode>.jsonl beside the first input. It refuses to
// overwrite an existing output and returns the written path.
//
// long_edit requires one trajectory folder per dataset run; folders hold
// one subdirectory per instance with an <id>.pred prediction artifact.
func (f *Filter) Run(datasets, folders []string, mode FilterMode) (string, error) {
	switch mode {
	case FilterLongEdit, FilterUserLength:
	default:
		return "", fmt.Errorf("%w: %q (must be one of: long_edit, user_length)", ErrUnknownMode, mode)
	}
	if mode == FilterLongEdit && len(folders) == 0 {
		return "", fmt.Errorf("%w: filter mode long_edit needs prediction folders (directories of <id>/<id>.pred files)", ErrFolderRequired)
	}

	pool, err := loadDatasets(f.log, datasets)
	if err != nil {
		return "", err
	}
	f.log.Info("datasets loaded",
		zap.Int("instances", len(pool)), zap.Int("files", len(datasets)))

	remove := make(map[string]bool)
	switch mode {
	case FilterLongEdit:
		ids := make(map[string]bool, len(pool))
		for _, rec := range pool {
			ids[rec.InstanceID] = true
		}
		for _, folder := range folders {
			if err := f.flagLongEdits(folder, ids, remove); err != nil {
				return "", err
			}
		}
	case FilterUserLength:
		f.flagLongUserTurns(pool, remove)
	}

	if len(pool) > 0 {
		f.log.Info("flagged for removal",
			zap.Int("instances", len(remove)),
			zap.Float64("pct", float64(len(remove))/float64(len(pool))*100))
	}

	kept := make([]dataset.Record, 0, len(pool)-len(remove))
	for _, rec := range pool {
		if !remove[rec.InstanceID] {
			kept = append(kept, rec)
		}
	}

	out := filterOutputPath(datasets[0], mode)
	if err := dataset.Write(out, kept); err != nil {
		return "", err
	}
	f.log.Info("filtered dataset written",
		zap.String("path", out), zap.Int("kept", len(kept)))
	return out, nil
}

// flagLongEdits walks one prediction folder. Every listed instance that is
// also in the dataset gets flagged when its prediction artifact is missing
// or unreadable, or when its patch edits more than PatchEditMax lines.
// Instances absent from the folder listing are left alone.
func (f *Filter) flagLongEdits(folder string, ids, remove map[string]bool) error {
	f.log.Info("processing trajectory folder", zap.String("folder", folder))
	entries, err := os.ReadDir(folder)
	if err != nil {
		return fmt.Errorf("listing trajectory folder: %w", err)
	}
	for _, entry := range entries {
		instID := entry.Name()
		if !ids[instID] {
			continue
		}
		patch, ok := readPrediction(filepath.Join(folder, instID, instID+".pred"))
		if !ok {
			// Missing or corrupt artifact: drop this one instance and move on.
			f.log.Warn("unusable prediction artifact", zap.String("instance", instID))
			remove[instID] = true
			continue
		}
		if patch == "" {
			continue
		}
		if stats := AnalyzeDiff(patch); stats.TotalEdits() > PatchEditMax {
			f.log.Debug("patch over edit budget",
				zap.String("instance", instID), zap.Int("edits", stats.TotalEdits()))
			remove[instID] = true
		}
	}
	return nil
}

// readPrediction loads a .pred artifact and extracts its model_patch.
// ok is false when the file is absent or does not parse.
func readPrediction(path string) (patch string, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var pred struct {
		ModelPatch string `json:"model_patch"`
	}
	if err := json.Unmarshal(data, &pred); err != nil {
		return "", false
	}
	return pred.ModelPatch, true
}

// flagLongUserTurns flags trajectories whose user-message token total,
// averaged over an estimated tool-turn count of ⌊messages/2⌋, exceeds
// ToolCallTokenMax. Trajectories too short to yield a denominator are
// skipped, never flagged.
func (f *Filter) flagLongUserTurns(pool []dataset.Record, remove map[string]bool) {
	degenerate := 0
	for _, rec := range pool {
		turns := len(rec.Messages) / 2
		if turns == 0 {
			degenerate++
			continue
		}
		tokens := 0
		for _, msg := range rec.Messages {
			if msg.Role != "user" {
				continue
			}
			if strings.Contains(msg.Content, feedbackSentinel) {
				break
			}
			tokens += f.tok.Count(msg.Content)
		}
		if float64(tokens)/float64(turns) > ToolCallTokenMax {
			remove[rec.InstanceID] = true
		}
	}
	if degenerate > 0 {
		f.log.Warn("skipped trajectories with too few messages", zap.Int("count", degenerate))
	}
}

// filterOutputPath derives <name>_filter_<mode><ext> next to the input.
func filterOutputPath(input string, mode FilterMode) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_filter_" + string(mode) + ext
}

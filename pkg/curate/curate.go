// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package curate reduces trajectory datasets to the ones worth training
// on. It provides quality filtering (Filter) and corpus scaling (Scaler)
// over JSONL datasets, plus the unified-diff statistics both rely on.
// Tokenization and length truncation are external collaborators supplied
// through the Tokenizer and LengthFilter interfaces.
package curate

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tannery/pkg/dataset"
)

// Fatal configuration errors. Per-instance problems (a missing or corrupt
// prediction artifact) never abort a batch; these do, before any output
// is written.
var (
	// ErrUnknownMode reports a filter mode outside long_edit/user_length.
	ErrUnknownMode = errors.New("invalid filter mode")

	// ErrUnknownStrategy reports a scaling strategy outside tokens/repo/random.
	ErrUnknownStrategy = errors.New("invalid scaling strategy")

	// ErrFolderRequired reports a long_edit invocation without trajectory folders.
	ErrFolderRequired = errors.New("trajectory folder required")
)

// Tokenizer counts model tokens in a text. External collaborator contract;
// see pkg/tokenize for the default implementation.
type Tokenizer interface {
	Count(text string) int
}

// TruncationRecord pairs a truncation ratio with the (possibly
// truncated) record it describes. The ratio is the fraction of the
// trajectory's original content retained after an external length
// truncation pass.
type TruncationRecord struct {
	Ratio  float64
	Record dataset.Record
}

// LengthFilter is the external truncation/filtering collaborator used by
// the scaler.
type LengthFilter interface {
	// Filter drops records whose total token length exceeds the
	// collaborator's bound.
	Filter(recs []dataset.Record) []dataset.Record

	// Truncate returns one truncation record per input record. Records
	// already under the bound come back unmodified with ratio 1.0.
	Truncate(recs []dataset.Record) ([]TruncationRecord, error)
}

// loadDatasets concatenates one or more JSONL files, preserving file and
// line order. No deduplication is performed.
func loadDatasets(log *zap.Logger, paths []string) ([]dataset.Record, error) {
	if len(paths) == 0 {
		return nil, errors.New("no dataset files given")
	}
	var pool []dataset.Record
	for _, p := range paths {
		recs, err := dataset.Load(p)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", p, err)
		}
		log.Info("loaded dataset", zap.String("path", p), zap.Int("instances", len(recs)))
		pool = append(pool, recs...)
	}
	return pool, nil
}

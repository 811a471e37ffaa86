// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tokenize provides the token-counting and length-truncation
// collaborators behind the curation tools. Counting is backed by
// tiktoken; the trajectory-level bound matches the 32k context the
// training pipeline assumes.
package tokenize

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tannery/pkg/curate"
	"github.com/mesh-intelligence/tannery/pkg/dataset"
)

// encodingName selects the BPE vocabulary used for counting.
const encodingName = "cl100k_base"

// MaxTrajectoryTokens is the default token bound applied to whole
// trajectories before scaling.
const MaxTrajectoryTokens = 32768

// Counter counts tokens with a tiktoken encoding. It satisfies
// curate.Tokenizer.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads the BPE encoding. The first call may fetch and cache
// the vocabulary.
func NewCounter() (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", encodingName, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// LengthFilter drops or truncates trajectories that exceed a token
// bound. It satisfies curate.LengthFilter.
type LengthFilter struct {
	log *zap.Logger
	tok curate.Tokenizer

	// Max is the trajectory token bound. Defaults to MaxTrajectoryTokens.
	Max int
}

// NewLengthFilter returns a LengthFilter with the default bound.
func NewLengthFilter(log *zap.Logger, tok curate.Tokenizer) *LengthFilter {
	return &LengthFilter{log: log, tok: tok, Max: MaxTrajectoryTokens}
}

// total sums the token counts of every message content in a record.
func (f *LengthFilter) total(rec dataset.Record) int {
	sum := 0
	for _, msg := range rec.Messages {
		sum += f.tok.Count(msg.Content)
	}
	return sum
}

// Filter drops records whose total token length exceeds the bound.
func (f *LengthFilter) Filter(recs []dataset.Record) []dataset.Record {
	var kept []dataset.Record
	for _, rec := range recs {
		if f.total(rec) <= f.Max {
			kept = append(kept, rec)
		}
	}
	if dropped := len(recs) - len(kept); dropped > 0 {
		f.log.Info("dropped over-length trajectories",
			zap.Int("dropped", dropped), zap.Int("bound", f.Max))
	}
	return kept
}

// Truncate returns one truncation record per input. Records under the
// bound pass through untouched with ratio 1.0. Over-length records lose
// trailing messages until the running token total fits, and their ratio
// is the retained fraction of the original token total. Truncation
// happens here exactly once; the scaler never re-truncates.
func (f *LengthFilter) Truncate(recs []dataset.Record) ([]curate.TruncationRecord, error) {
	out := make([]curate.TruncationRecord, 0, len(recs))
	for _, rec := range recs {
		total := f.total(rec)
		if total <= f.Max {
			out = append(out, curate.TruncationRecord{Ratio: 1.0, Record: rec})
			continue
		}
		running := 0
		cut := len(rec.Messages)
		for i, msg := range rec.Messages {
			n := f.tok.Count(msg.Content)
			if running+n > f.Max {
				cut = i
				break
			}
			running += n
		}
		truncated, err := rec.WithMessages(rec.Messages[:cut])
		if err != nil {
			return nil, err
		}
		out = append(out, curate.TruncationRecord{
			Ratio:  float64(running) / float64(total),
			Record: truncated,
		})
	}
	return out, nil
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package curate

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tannery/pkg/dataset"
)

// Strategy selects how the scaler reduces a corpus.
type Strategy string

const (
	// StrategyTokens keeps the trajectories with the highest truncation ratios.
	StrategyTokens Strategy = "tokens"

	// StrategyRepo keeps whole repository buckets until the target is reached.
	StrategyRepo Strategy = "repo"

	// StrategyRandom samples uniformly without replacement.
	StrategyRandom Strategy = "random"
)

// ScaleOptions configures one scaling run.
type ScaleOptions struct {
	// Datasets are the input JSONL paths, concatenated without dedup.
	Datasets []string

	// Strategy is one of tokens, repo, random.
	Strategy Strategy

	// Number is the target size: an absolute count when >= 1, a
	// proportion of the corpus when in (0, 1). Clamped to the corpus
	// size and never negative.
	Number float64

	// Threshold optionally floors the truncation ratio for the tokens
	// strategy. Zero disables it.
	Threshold float64

	// Output overrides the generated <strategy>_<count> filename. The
	// .jsonl extension is appended either way.
	Output string

	// NoFilter disables the automatic length pre-filter that otherwise
	// drops over-long trajectories before non-tokens strategies.
	NoFilter bool
}

// Scaler reduces datasets to a target size. The random source is injected
// so runs can be reproduced under test; production callers seed it from
// the clock.
type Scaler struct {
	log *zap.Logger
	lf  LengthFilter
	rng *rand.Rand
}

// NewScaler returns a Scaler using lf as the truncation/filtering
// collaborator and rng for every shuffle.
func NewScaler(log *zap.Logger, lf LengthFilter, rng *rand.Rand) *Scaler {
	return &Scaler{log: log, lf: lf, rng: rng}
}

// Run loads, pre-filters, shuffles, and scales the datasets, then writes
// the selection to the directory of the first input. It refuses to
// overwrite an existing output. When the selection comes out empty no
// file is written and the returned path is empty.
func (s *Scaler) Run(opts ScaleOptions) (string, error) {
	switch opts.Strategy {
	case StrategyTokens, StrategyRepo, StrategyRandom:
	default:
		return "", fmt.Errorf("%w: %q (must be one of: tokens, repo, random)", ErrUnknownStrategy, opts.Strategy)
	}
	if len(opts.Datasets) == 0 {
		return "", fmt.Errorf("no dataset files given")
	}

	var pool []dataset.Record
	for _, path := range opts.Datasets {
		recs, err := dataset.Load(path)
		if err != nil {
			return "", fmt.Errorf("loading %s: %w", path, err)
		}
		// Length filtering precedes strategy dispatch; the tokens strategy
		// handles length itself via truncation ratios.
		if !opts.NoFilter && opts.Strategy != StrategyTokens {
			before := len(recs)
			recs = s.lf.Filter(recs)
			s.log.Info("length pre-filter",
				zap.String("path", path),
				zap.Int("kept", len(recs)), zap.Int("dropped", before-len(recs)))
		} else {
			s.log.Info("loaded dataset", zap.String("path", path), zap.Int("instances", len(recs)))
		}
		pool = append(pool, recs...)
	}

	number := targetCount(opts.Number, len(pool))
	s.log.Info("target selection",
		zap.Int("target", number), zap.Int("total", len(pool)),
		zap.String("strategy", string(opts.Strategy)))

	// Erase file-concatenation order before any strategy runs.
	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	var scaled []dataset.Record
	var err error
	switch opts.Strategy {
	case StrategyRepo:
		scaled = s.scaleRepos(pool, number)
	case StrategyTokens:
		scaled, err = s.scaleTokens(pool, number, opts.Threshold)
		if err != nil {
			return "", err
		}
	case StrategyRandom:
		scaled = pool[:number]
	}

	if len(scaled) == 0 {
		s.log.Warn("empty selection, nothing written")
		return "", nil
	}

	name := opts.Output
	if name == "" {
		name = fmt.Sprintf("%s_%d", opts.Strategy, len(scaled))
	}
	out := filepath.Join(filepath.Dir(opts.Datasets[0]), name+".jsonl")
	if err := dataset.Write(out, scaled); err != nil {
		return "", err
	}
	s.log.Info("scaled dataset written",
		zap.String("path", out), zap.Int("instances", len(scaled)))
	return out, nil
}

// targetCount resolves the requested size against the corpus: clamped to
// the corpus, proportional when fractional, and never negative.
func targetCount(n float64, total int) int {
	switch {
	case n > float64(total):
		return total
	case n > 0 && n < 1:
		return int(n * float64(total))
	case n < 0:
		return 0
	}
	return int(n)
}

// scaleRepos groups the pool into repository buckets and appends whole
// buckets in random order until the target is reached. Buckets are never
// split, so the result may overshoot the target.
func (s *Scaler) scaleRepos(pool []dataset.Record, number int) []dataset.Record {
	buckets := make(map[string][]dataset.Record)
	var order []string
	for _, rec := range pool {
		key := repoKey(rec.InstanceID)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], rec)
	}
	for _, key := range order {
		s.log.Info("repository bucket",
			zap.String("repo", key), zap.Int("instances", len(buckets[key])))
	}

	s.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	var scaled []dataset.Record
	for _, key := range order {
		if len(scaled) >= number {
			break
		}
		s.log.Info("adding repository",
			zap.String("repo", key), zap.Int("instances", len(buckets[key])))
		scaled = append(scaled, buckets[key]...)
	}
	return scaled
}

// repoKey recovers the repository identifier shared by all instances of
// one repo. Instance ids encode the repo name plus a single trailing
// character; the key is the id's underscore tokens rejoined with the
// final character dropped. The derivation only holds for that fixed
// encoding; a changed id scheme silently breaks the grouping.
func repoKey(id string) string {
	joined := strings.Join(strings.Split(id, "_"), "_")
	runes := []rune(joined)
	if len(runes) == 0 {
		return ""
	}
	return string(runes[:len(runes)-1])
}

// scaleTokens ranks trajectories by truncation ratio (shuffling first to
// randomize ties) and keeps the top of the ranking. With a threshold,
// only records at or above it survive and the result is still capped at
// the target, so it may come out smaller.
func (s *Scaler) scaleTokens(pool []dataset.Record, number int, threshold float64) ([]dataset.Record, error) {
	s.log.Info("truncation ratio threshold", zap.Float64("threshold", threshold))
	recs, err := s.lf.Truncate(pool)
	if err != nil {
		return nil, fmt.Errorf("truncating pool: %w", err)
	}

	s.rng.Shuffle(len(recs), func(i, j int) {
		recs[i], recs[j] = recs[j], recs[i]
	})
	full := 0
	for _, tr := range recs {
		if tr.Ratio == 1 {
			full++
		}
	}
	if number > len(recs) {
		number = len(recs)
	}
	s.log.Info("fully retained trajectories", zap.Int("count", full))

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Ratio > recs[j].Ratio
	})
	if number > 0 {
		s.log.Info("truncation ratio range",
			zap.Float64("max", recs[0].Ratio), zap.Float64("min", recs[number-1].Ratio))
	}

	var scaled []dataset.Record
	if threshold > 0 {
		s.log.Info("applying ratio threshold", zap.Float64("threshold", threshold))
		for _, tr := range recs {
			if tr.Ratio >= threshold {
				scaled = append(scaled, tr.Record)
			}
		}
		if len(scaled) > number {
			scaled = scaled[:number]
		}
	} else {
		for _, tr := range recs[:number] {
			scaled = append(scaled, tr.Record)
		}
	}
	return scaled, nil
}

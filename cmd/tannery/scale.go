// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tannery/pkg/curate"
	"github.com/mesh-intelligence/tannery/pkg/tokenize"
)

func newScaleCommand() *cobra.Command {
	var (
		datasets  []string
		strategy  string
		number    float64
		threshold float64
		output    string
		noFilter  bool
		seed      int64
	)
	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Reduce datasets to a target size",
		Long: `Scale selects a subset of the input datasets. The target is an
absolute count, or a proportion of the corpus when between 0 and 1.
Strategies: random samples uniformly, repo keeps whole repository
buckets, tokens keeps the least-truncated trajectories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			counter, err := tokenize.NewCounter()
			if err != nil {
				return fmt.Errorf("loading tokenizer: %w", err)
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			scaler := curate.NewScaler(log, tokenize.NewLengthFilter(log, counter),
				rand.New(rand.NewSource(seed)))
			out, err := scaler.Run(curate.ScaleOptions{
				Datasets:  datasets,
				Strategy:  curate.Strategy(strategy),
				Number:    number,
				Threshold: threshold,
				Output:    output,
				NoFilter:  noFilter,
			})
			if err != nil {
				return err
			}
			if out == "" {
				log.Warn("scale selected nothing")
				return nil
			}
			log.Info("scale complete", zap.String("output", out))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&datasets, "dataset", "d", nil, "input JSONL dataset (repeatable)")
	cmd.Flags().StringVarP(&strategy, "type", "t", string(curate.StrategyRandom), "scaling strategy: random, repo, or tokens")
	cmd.Flags().Float64VarP(&number, "number", "n", 0, "target count, or proportion when between 0 and 1")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum truncation ratio for the tokens strategy")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output filename (default <strategy>_<count>.jsonl)")
	cmd.Flags().BoolVar(&noFilter, "no-filter", false, "skip the length pre-filter")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default: current time)")
	cmd.MarkFlagRequired("dataset")
	cmd.MarkFlagRequired("number")
	return cmd
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tannery/pkg/curate"
	"github.com/mesh-intelligence/tannery/pkg/tokenize"
)

func newFilterCommand() *cobra.Command {
	var (
		datasets []string
		folders  []string
		mode     string
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Remove degenerate trajectories from datasets",
		Long: `Filter removes trajectories that exhibit a degenerate pattern:
long_edit drops instances whose predicted patch exceeds the edit budget,
user_length drops instances whose user turns are too long on average.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			var tok curate.Tokenizer
			if curate.FilterMode(mode) == curate.FilterUserLength {
				counter, err := tokenize.NewCounter()
				if err != nil {
					return fmt.Errorf("loading tokenizer: %w", err)
				}
				tok = counter
			}
			out, err := curate.NewFilter(log, tok).Run(datasets, folders, curate.FilterMode(mode))
			if err != nil {
				return err
			}
			log.Info("filter complete", zap.String("output", out))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&datasets, "dataset", "d", nil, "input JSONL dataset (repeatable)")
	cmd.Flags().StringSliceVarP(&folders, "folder", "f", nil, "prediction folder for long_edit (repeatable)")
	cmd.Flags().StringVar(&mode, "mode", string(curate.FilterLongEdit), "filter mode: long_edit or user_length")
	cmd.MarkFlagRequired("dataset")
	return cmd
}

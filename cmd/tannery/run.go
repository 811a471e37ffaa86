// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tannery/pkg/pipeline"
)

func newRunCommand() *cobra.Command {
	var (
		configPath string
		stage      string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the data pipeline up to a stage",
		Long: `Run creates (or reopens) an experiment folder and executes the
pipeline up to the configured stage. Earlier stages replay in skip mode
to recover their artifacts; later stages are not invoked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := pipeline.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if stage != "" {
				cfg.Stage = stage
			}

			folder, err := pipeline.CreateExperimentFolder(cfg.ExperimentDir, cfg.Name)
			if err != nil {
				return err
			}
			log.Info("experiment folder", zap.String("root", folder.Root))
			for _, name := range cfg.AgentConfigs {
				src := filepath.Join(cfg.AgentConfigDir, name+".yaml")
				if err := folder.AddConfig(src); err != nil {
					return err
				}
			}
			if err := os.MkdirAll(cfg.MetadataDir, 0o755); err != nil {
				return err
			}

			exp := pipeline.NewExperiment(log, cfg, folder, pipeline.Collaborators{
				Generator: pipeline.NewCommandGenerator(log, cfg.Generate, folder.Data, cfg.MetadataDir),
				Distiller: pipeline.NewCommandDistiller(log, cfg.Distill, folder.Data),
				Scraper:   pipeline.NewCommandScraper(log, cfg.Distill),
				Evaluator: pipeline.NewCommandEvaluator(log, cfg.Eval),
				Formatter: pipeline.NewCommandFormatter(log, cfg.Postprocess),
			})
			return exp.Run(pipeline.Stage(cfg.Stage))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configuration.yaml", "pipeline configuration file")
	cmd.Flags().StringVarP(&stage, "stage", "s", "", "override the configured stage")
	return cmd
}

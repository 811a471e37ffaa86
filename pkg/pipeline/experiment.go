// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package pipeline sequences the data-production stages of a training
// run: generate, distill (two passes), eval, and postprocess. Each run
// names a target stage; stages before it replay in skip mode to
// recover their artifact paths, stages after it are not invoked.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrUnknownStage reports a stage name outside the pipeline's stage map.
var ErrUnknownStage = errors.New("unknown stage")

// Stage names a pipeline stage.
type Stage string

const (
	// StagePipeline runs every stage in order.
	StagePipeline Stage = "pipeline"

	StageGenerate    Stage = "generate"
	StageDistillOne  Stage = "distill_stage_one"
	StageDistillTwo  Stage = "distill_stage_two"
	StageEval        Stage = "eval"
	StagePostprocess Stage = "postprocess"
)

// stageIndex positions each stage in the execution order. StagePipeline
// maps to -1 so that no stage compares as later than it.
var stageIndex = map[Stage]int{
	StagePipeline:    -1,
	StageGenerate:    0,
	StageDistillOne:  1,
	StageDistillTwo:  2,
	StageEval:        3,
	StagePostprocess: 4,
}

var stageOrder = []Stage{
	StageGenerate,
	StageDistillOne,
	StageDistillTwo,
	StageEval,
	StagePostprocess,
}

// Generator produces raw task instances. In skip mode it only recovers
// the instances file path from a previous run.
type Generator interface {
	Generate(skip bool) (instancesFile string, err error)
}

// Distiller rolls a model out over a set of instances and writes
// trajectories. In skip mode it recovers the artifact paths without
// running any rollouts.
type Distiller interface {
	Distill(configName, instancesFile string, skip bool) (trajDir string, err error)
}

// PRScraper collects pull-request instances for the second
// distillation pass. It works from the first pass's artifacts: the
// generated instances file and the stage-one trajectory directory.
type PRScraper interface {
	Scrape(instancesFile, trajDir string) ([]map[string]any, error)
}

// Evaluator verifies trajectories against their instances and returns
// the resolved instance ids.
type Evaluator interface {
	Evaluate(trajDir, instancesFile string, threshold float64) ([]string, error)
}

// Formatter converts a trajectory directory into a training dataset.
// reportPath is empty when no eval report applies.
type Formatter interface {
	Format(trajDir, reportPath, outDir string) error
}

// Collaborators bundles the stage executors an Experiment drives.
type Collaborators struct {
	Generator Generator
	Distiller Distiller
	Scraper   PRScraper
	Evaluator Evaluator
	Formatter Formatter
}

// Experiment runs the pipeline for one experiment folder.
type Experiment struct {
	log    *zap.Logger
	cfg    Config
	folder *ExperimentFolder
	collab Collaborators

	// Artifact paths threaded between stages.
	instancesFile     string
	stageOneDir       string
	stageTwoDir       string
	stageTwoInstances string
	reportPath        string
}

// NewExperiment builds an Experiment over an existing folder.
func NewExperiment(log *zap.Logger, cfg Config, folder *ExperimentFolder, collab Collaborators) *Experiment {
	return &Experiment{log: log, cfg: cfg, folder: folder, collab: collab}
}

// Run executes the pipeline up to and including stage. Stages before it
// run in skip mode, recovering artifact paths only; stages after it are
// not invoked. StagePipeline runs every stage in full.
func (e *Experiment) Run(stage Stage) error {
	idx, ok := stageIndex[stage]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	for i, s := range stageOrder {
		if idx >= 0 && i > idx {
			break
		}
		skip := i < idx
		banner := "stage: " + strings.ToUpper(string(s))
		if skip {
			banner += " (skipped)"
		}
		e.log.Info(banner)
		var err error
		switch s {
		case StageGenerate:
			err = e.runGenerate(skip)
		case StageDistillOne:
			err = e.runDistillOne(skip)
		case StageDistillTwo:
			err = e.runDistillTwo(skip)
		case StageEval:
			err = e.runEval(skip)
		case StagePostprocess:
			err = e.runPostprocess()
		}
		if err != nil {
			return fmt.Errorf("stage %s: %w", s, err)
		}
	}
	return nil
}

func (e *Experiment) runGenerate(skip bool) error {
	instances, err := e.collab.Generator.Generate(skip)
	if err != nil {
		return err
	}
	e.instancesFile = instances
	return nil
}

func (e *Experiment) runDistillOne(skip bool) error {
	dir, err := e.collab.Distiller.Distill(e.cfg.Distill.StageOneConfig, e.instancesFile, skip)
	if err != nil {
		return err
	}
	e.stageOneDir = dir
	return nil
}

func (e *Experiment) runDistillTwo(skip bool) error {
	e.stageTwoInstances = filepath.Join(e.folder.Data, "stage_two_instances.yaml")
	if !skip {
		if err := e.ensureStageTwoInstances(); err != nil {
			return err
		}
	}
	dir, err := e.collab.Distiller.Distill(e.cfg.Distill.StageTwoConfig, e.stageTwoInstances, skip)
	if err != nil {
		return err
	}
	e.stageTwoDir = dir
	return nil
}

// ensureStageTwoInstances scrapes pull-request instances the first time
// the second pass runs; later runs reuse the persisted file.
func (e *Experiment) ensureStageTwoInstances() error {
	if _, err := os.Stat(e.stageTwoInstances); err == nil {
		e.log.Info("reusing stage two instances", zap.String("path", e.stageTwoInstances))
		return nil
	}
	instances, err := e.collab.Scraper.Scrape(e.instancesFile, e.stageOneDir)
	if err != nil {
		return fmt.Errorf("scraping stage two instances: %w", err)
	}
	data, err := yaml.Marshal(instances)
	if err != nil {
		return fmt.Errorf("encoding stage two instances: %w", err)
	}
	if err := os.WriteFile(e.stageTwoInstances, data, 0o644); err != nil {
		return fmt.Errorf("writing stage two instances: %w", err)
	}
	e.log.Info("scraped stage two instances",
		zap.Int("count", len(instances)), zap.String("path", e.stageTwoInstances))
	return nil
}

func (e *Experiment) runEval(skip bool) error {
	threshold := e.cfg.Eval.CompareThreshold
	name := "report_t" + strconv.FormatFloat(threshold, 'g', -1, 64) + ".json"
	e.reportPath = filepath.Join(e.stageTwoDir, name)
	if skip {
		return nil
	}
	resolved, err := e.collab.Evaluator.Evaluate(e.stageTwoDir, e.stageTwoInstances, threshold)
	if err != nil {
		return err
	}
	report := map[string][]string{"resolved_ids": resolved}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding eval report: %w", err)
	}
	if err := os.WriteFile(e.reportPath, data, 0o644); err != nil {
		return fmt.Errorf("writing eval report: %w", err)
	}
	e.log.Info("wrote eval report",
		zap.Int("resolved", len(resolved)), zap.String("path", e.reportPath))
	return nil
}

// runPostprocess formats both trajectory sets into training data. The
// first pass has no eval report; the second filters on the report
// written by eval.
func (e *Experiment) runPostprocess() error {
	if err := e.collab.Formatter.Format(e.stageOneDir, "", e.folder.Data); err != nil {
		return fmt.Errorf("formatting stage one trajectories: %w", err)
	}
	if err := e.collab.Formatter.Format(e.stageTwoDir, e.reportPath, e.folder.Data); err != nil {
		return fmt.Errorf("formatting stage two trajectories: %w", err)
	}
	return nil
}

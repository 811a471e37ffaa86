// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNoCommand reports a stage invoked without a configured executor
// command.
var ErrNoCommand = errors.New("no command configured")

// runCommand executes argv with extra arguments appended, returning its
// stdout. Stderr streams through so long-running stage tools stay
// observable.
func runCommand(log *zap.Logger, argv, extra []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}
	args := append(append([]string{}, argv[1:]...), extra...)
	cmd := exec.Command(argv[0], args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	start := time.Now()
	log.Info("running command", zap.String("command", argv[0]), zap.Strings("args", args))
	err := cmd.Run()
	log.Info("command finished",
		zap.String("command", argv[0]), zap.Duration("duration", time.Since(start)))
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", argv[0], err)
	}
	return stdout.Bytes(), nil
}

// CommandGenerator runs an external instance-generation tool. The
// instances file lands at a deterministic path under the experiment's
// data directory, so skip mode can recover it without rerunning.
type CommandGenerator struct {
	log         *zap.Logger
	cfg         GenerateConfig
	dataDir     string
	metadataDir string
}

func NewCommandGenerator(log *zap.Logger, cfg GenerateConfig, dataDir, metadataDir string) *CommandGenerator {
	return &CommandGenerator{log: log, cfg: cfg, dataDir: dataDir, metadataDir: metadataDir}
}

func (g *CommandGenerator) Generate(skip bool) (string, error) {
	instances := filepath.Join(g.dataDir, "instances.jsonl")
	if skip {
		return instances, nil
	}
	extra := []string{
		"--output", instances,
		"--metadata-dir", g.metadataDir,
		"--fns-per-repo", strconv.Itoa(g.cfg.FnsPerRepo),
		"--insts-per-fn", strconv.Itoa(g.cfg.InstsPerFn),
		"--repo-parent-dir", g.cfg.RepoParentDir,
	}
	if g.cfg.Docker.Org != "" {
		extra = append(extra, "--docker-org", g.cfg.Docker.Org)
	}
	if g.cfg.Docker.MirrorOrg != "" {
		extra = append(extra, "--gh-mirror-org", g.cfg.Docker.MirrorOrg)
	}
	if _, err := runCommand(g.log, g.cfg.Command, extra); err != nil {
		return "", err
	}
	return instances, nil
}

// CommandDistiller runs an external rollout tool once per distillation
// pass. Trajectories land in a per-config directory under the data
// directory.
type CommandDistiller struct {
	log     *zap.Logger
	cfg     DistillConfig
	dataDir string
}

func NewCommandDistiller(log *zap.Logger, cfg DistillConfig, dataDir string) *CommandDistiller {
	return &CommandDistiller{log: log, cfg: cfg, dataDir: dataDir}
}

func (d *CommandDistiller) Distill(configName, instancesFile string, skip bool) (string, error) {
	trajDir := filepath.Join(d.dataDir, "trajectories_"+configName)
	if skip {
		return trajDir, nil
	}
	if err := os.MkdirAll(trajDir, 0o755); err != nil {
		return "", fmt.Errorf("creating trajectory dir: %w", err)
	}
	extra := []string{
		"--config", configName,
		"--instances", instancesFile,
		"--output", trajDir,
		"--model", d.cfg.Model.Name,
		"--workers", strconv.Itoa(d.cfg.Agent.NumWorkers),
		"--call-limit", strconv.Itoa(d.cfg.Agent.CallLimit),
		"--temperature", strconv.FormatFloat(d.cfg.Agent.Temperature, 'g', -1, 64),
		"--shard", strconv.Itoa(d.cfg.Shard),
		"--total-shards", strconv.Itoa(d.cfg.TotalShards),
	}
	if d.cfg.Model.URL != "" {
		extra = append(extra, "--model-url", d.cfg.Model.URL)
	}
	// Cost limits stay unset for local models.
	if d.cfg.Agent.CostLimit > 0 {
		extra = append(extra, "--cost-limit", strconv.FormatFloat(d.cfg.Agent.CostLimit, 'g', -1, 64))
	}
	if d.cfg.Agent.TotalCostLimit > 0 {
		extra = append(extra, "--total-cost-limit", strconv.FormatFloat(d.cfg.Agent.TotalCostLimit, 'g', -1, 64))
	}
	if _, err := runCommand(d.log, d.cfg.Command, extra); err != nil {
		return "", err
	}
	return trajDir, nil
}

// CommandScraper runs an external pull-request scraper and parses its
// stdout as a YAML list of instances.
type CommandScraper struct {
	log  *zap.Logger
	argv []string
}

func NewCommandScraper(log *zap.Logger, cfg DistillConfig) *CommandScraper {
	return &CommandScraper{log: log, argv: cfg.ScrapeCommand}
}

func (s *CommandScraper) Scrape(instancesFile, trajDir string) ([]map[string]any, error) {
	extra := []string{
		"--instances", instancesFile,
		"--trajectories", trajDir,
	}
	out, err := runCommand(s.log, s.argv, extra)
	if err != nil {
		return nil, err
	}
	var instances []map[string]any
	if err := yaml.Unmarshal(out, &instances); err != nil {
		return nil, fmt.Errorf("parsing scraper output: %w", err)
	}
	return instances, nil
}

// CommandEvaluator runs an external verifier and reads resolved
// instance ids from its stdout, one per line.
type CommandEvaluator struct {
	log  *zap.Logger
	argv []string
}

func NewCommandEvaluator(log *zap.Logger, cfg EvalConfig) *CommandEvaluator {
	return &CommandEvaluator{log: log, argv: cfg.Command}
}

func (e *CommandEvaluator) Evaluate(trajDir, instancesFile string, threshold float64) ([]string, error) {
	extra := []string{
		"--trajectories", trajDir,
		"--instances", instancesFile,
		"--threshold", strconv.FormatFloat(threshold, 'g', -1, 64),
	}
	out, err := runCommand(e.log, e.argv, extra)
	if err != nil {
		return nil, err
	}
	var resolved []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			resolved = append(resolved, id)
		}
	}
	return resolved, sc.Err()
}

// CommandFormatter runs an external trajectory formatter.
type CommandFormatter struct {
	log  *zap.Logger
	cfg  PostprocessConfig
	argv []string
}

func NewCommandFormatter(log *zap.Logger, cfg PostprocessConfig) *CommandFormatter {
	return &CommandFormatter{log: log, cfg: cfg, argv: cfg.Command}
}

func (f *CommandFormatter) Format(trajDir, reportPath, outDir string) error {
	extra := []string{
		"--trajectories", trajDir,
		"--output", outDir,
		"--tool-call-format", f.cfg.ToolCallFormat,
		"--reformat-assistant", f.cfg.ReformatAssistant,
	}
	if reportPath != "" {
		extra = append(extra, "--report", reportPath)
	}
	if f.cfg.AddThink {
		extra = append(extra, "--add-think")
	}
	if f.cfg.TrainKey() {
		extra = append(extra, "--add-train-key")
	}
	if f.cfg.Submit() {
		extra = append(extra, "--enforce-submit")
	}
	out, err := runCommand(f.log, f.argv, extra)
	if err != nil {
		return err
	}
	// Formatter tools print the produced dataset path as their last line.
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if produced := strings.TrimSpace(lines[len(lines)-1]); produced != "" {
		f.log.Info("formatted dataset", zap.String("path", produced))
	}
	return nil
}

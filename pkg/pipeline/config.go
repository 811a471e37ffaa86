// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline settings. Callers either construct a Config
// in Go code or place a configuration YAML on disk and call LoadConfig.
type Config struct {
	// Stage selects what to run: one of the five stage names, or
	// "pipeline" to run everything.
	Stage string `yaml:"stage"`

	// Name is the experiment name. A folder is created under
	// ExperimentDir/Name; auto-generated when empty.
	Name string `yaml:"name"`

	// ExperimentDir is where experiment folders are created (default
	// "./experiments").
	ExperimentDir string `yaml:"experiment_dir"`

	// MetadataDir stores parsed codebases and other cross-experiment
	// metadata (default "./metadata").
	MetadataDir string `yaml:"metadata_dir"`

	// AgentConfigDir is the directory holding full agent config files
	// (default "./configs/agent").
	AgentConfigDir string `yaml:"agent_config_dir"`

	// AgentConfigs lists the agent configs registered into each
	// experiment folder (default ["e2e", "qwen"]).
	AgentConfigs []string `yaml:"agent_configs"`

	// Stage-specific configuration.
	Generate    GenerateConfig    `yaml:"generate"`
	Distill     DistillConfig     `yaml:"distill"`
	Eval        EvalConfig        `yaml:"eval"`
	Postprocess PostprocessConfig `yaml:"postprocess"`
}

// GenerateConfig configures the raw data-generation stage.
type GenerateConfig struct {
	// Command is the stage executor argv; see CommandGenerator.
	Command []string `yaml:"command"`

	// FnsPerRepo caps the functions extracted per repository (default 5000).
	FnsPerRepo int `yaml:"fns_per_repo"`

	// InstsPerFn is how many instances each function yields (default 1).
	InstsPerFn int `yaml:"insts_per_fn"`

	// RepoParentDir is where cloned repositories are stored (default "./repos").
	RepoParentDir string `yaml:"repo_parent_dir"`

	// Docker settings for container creation.
	Docker DockerConfig `yaml:"docker"`
}

// DockerConfig configures container creation for scraped repositories.
type DockerConfig struct {
	// Org is the Docker org created images are pushed to.
	Org string `yaml:"docker_org"`

	// MirrorOrg is the GitHub mirror organization.
	MirrorOrg string `yaml:"gh_mirror_org"`
}

// ModelConfig identifies a model endpoint.
type ModelConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// AgentWrapperConfig bounds the rollout harness.
type AgentWrapperConfig struct {
	// NumWorkers is the number of concurrent rollouts (default 32).
	NumWorkers int `yaml:"num_workers"`

	// CallLimit is the max rollout steps per instance (default 115).
	CallLimit int `yaml:"per_instance_call_limit"`

	// CostLimit is the max cost per rollout; 0 for local models.
	CostLimit float64 `yaml:"per_instance_cost_limit"`

	// TotalCostLimit is the max cost across all rollouts.
	TotalCostLimit float64 `yaml:"total_cost_limit"`

	// Temperature is the sampling temperature (default 0.6).
	Temperature float64 `yaml:"temperature"`
}

// DistillConfig configures both distillation stages.
type DistillConfig struct {
	// Command is the stage executor argv; see CommandDistiller.
	Command []string `yaml:"command"`

	// ScrapeCommand is the PR-scraper argv; see CommandScraper.
	ScrapeCommand []string `yaml:"scrape_command"`

	Model ModelConfig        `yaml:"model"`
	Agent AgentWrapperConfig `yaml:"agent_wrapper"`

	// Shard / TotalShards split the instance set across machines
	// (defaults 0 of 1).
	Shard       int `yaml:"shard"`
	TotalShards int `yaml:"total_shards"`

	// StageOneConfig / StageTwoConfig name the registered agent configs
	// each rollout pass uses (defaults "e2e", "qwen").
	StageOneConfig string `yaml:"stage_one_config_name"`
	StageTwoConfig string `yaml:"stage_two_config_name"`
}

// EvalConfig configures trajectory verification.
type EvalConfig struct {
	// Command is the stage executor argv; see CommandEvaluator.
	Command []string `yaml:"command"`

	// CompareThreshold is the soft-verification threshold: 1 for hard
	// verify, in (0,1) for soft verify, 0 for none (default 1).
	CompareThreshold float64 `yaml:"compare_patch_threshold"`
}

// PostprocessConfig configures trajectory formatting.
type PostprocessConfig struct {
	// Command is the stage executor argv; see CommandFormatter.
	Command []string `yaml:"command"`

	// ToolCallFormat is "hermes" or "xml" (default "hermes").
	ToolCallFormat string `yaml:"tool_call_format"`

	// AddThink wraps assistant reasoning in <think> tags.
	AddThink bool `yaml:"add_think"`

	// AddTrainKey marks assistant messages as training targets
	// (default true).
	AddTrainKey *bool `yaml:"add_train_key"`

	// ReformatAssistant selects how mixed think/non-think assistant
	// output is kept (default "keep_only_think").
	ReformatAssistant string `yaml:"reformat_assistant_message"`

	// EnforceSubmit keeps only trajectories that submitted a patch
	// (default true).
	EnforceSubmit *bool `yaml:"enforce_submit"`
}

// TrainKey returns AddTrainKey with its default (true) applied.
func (c *PostprocessConfig) TrainKey() bool {
	if c.AddTrainKey == nil {
		return true
	}
	return *c.AddTrainKey
}

// Submit returns EnforceSubmit with its default (true) applied.
func (c *PostprocessConfig) Submit() bool {
	if c.EnforceSubmit == nil {
		return true
	}
	return *c.EnforceSubmit
}

func (c *Config) applyDefaults() {
	if c.Stage == "" {
		c.Stage = string(StagePipeline)
	}
	if c.ExperimentDir == "" {
		c.ExperimentDir = "./experiments"
	}
	if c.MetadataDir == "" {
		c.MetadataDir = "./metadata"
	}
	if c.AgentConfigDir == "" {
		c.AgentConfigDir = "./configs/agent"
	}
	if len(c.AgentConfigs) == 0 {
		c.AgentConfigs = []string{"e2e", "qwen"}
	}
	if c.Generate.FnsPerRepo == 0 {
		c.Generate.FnsPerRepo = 5000
	}
	if c.Generate.InstsPerFn == 0 {
		c.Generate.InstsPerFn = 1
	}
	if c.Generate.RepoParentDir == "" {
		c.Generate.RepoParentDir = "./repos"
	}
	if c.Distill.Agent.NumWorkers == 0 {
		c.Distill.Agent.NumWorkers = 32
	}
	if c.Distill.Agent.CallLimit == 0 {
		c.Distill.Agent.CallLimit = 115
	}
	if c.Distill.Agent.Temperature == 0 {
		c.Distill.Agent.Temperature = 0.6
	}
	if c.Distill.TotalShards == 0 {
		c.Distill.TotalShards = 1
	}
	if c.Distill.StageOneConfig == "" {
		c.Distill.StageOneConfig = "e2e"
	}
	if c.Distill.StageTwoConfig == "" {
		c.Distill.StageTwoConfig = "qwen"
	}
	if c.Eval.CompareThreshold == 0 {
		c.Eval.CompareThreshold = 1
	}
	if c.Postprocess.ToolCallFormat == "" {
		c.Postprocess.ToolCallFormat = "hermes"
	}
	if c.Postprocess.ReformatAssistant == "" {
		c.Postprocess.ReformatAssistant = "keep_only_think"
	}
}

// LoadConfig reads a configuration YAML file and returns a Config with
// defaults applied.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

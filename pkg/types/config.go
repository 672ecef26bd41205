// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for stages that call model APIs.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "abstract-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for rate-limited API
	// calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// GenerationConfig holds settings for graphical abstract generation.
// Per prd008-graphical-abstract R2.1-R2.4.
type GenerationConfig struct {
	AIConfig `yaml:",inline"`

	// Reflections is the revision budget: the maximum number of
	// regeneration attempts after the initial draft (default 2).
	Reflections int `json:"reflections" yaml:"reflections"`
}

// DescribeConfig holds settings for vision-model figure descriptions.
type DescribeConfig struct {
	AIConfig `yaml:",inline"`

	// Skip disables figure description generation entirely.
	Skip bool `json:"skip" yaml:"skip"`
}

// CompileConfig holds settings for the LaTeX compilation stage.
// Per prd008-graphical-abstract R4.1-R4.3.
type CompileConfig struct {
	// Timeout bounds a single pdflatex invocation (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// HistoryConfig holds settings for the run ledger.
type HistoryConfig struct {
	// MaxResults is the default maximum number of listed runs (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Describe   DescribeConfig   `json:"describe" yaml:"describe"`
	Compile    CompileConfig    `json:"compile" yaml:"compile"`
	History    HistoryConfig    `json:"history" yaml:"history"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used when fetching schema instances.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "template-converter/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// SourceConfig controls how schema instances are loaded.
type SourceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// StripPrefix is removed from every extracted path; paths without it are
	// dropped (default "data.attributes.content.").
	StripPrefix string `json:"strip_prefix" yaml:"strip_prefix" mapstructure:"strip_prefix"`

	// Token is the bearer token sent with URL fetches. Usually read from
	// .secrets/merge-data-token.
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`
}

// MatcherConfig holds the semantic matcher thresholds and weights. The
// defaults reproduce the tuned values; none of them are load-bearing
// constants.
type MatcherConfig struct {
	// MinConfidence filters FindMatches results (default 0.5).
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence" mapstructure:"min_confidence"`

	// NameThreshold is the similarity above which a name match is strong (default 0.8).
	NameThreshold float64 `json:"name_threshold" yaml:"name_threshold" mapstructure:"name_threshold"`

	// ExactNameWeight is the name component for identical names (default 0.6).
	ExactNameWeight float64 `json:"exact_name_weight" yaml:"exact_name_weight" mapstructure:"exact_name_weight"`

	// SupportCap bounds the combined structural support (default 0.4).
	SupportCap float64 `json:"support_cap" yaml:"support_cap" mapstructure:"support_cap"`

	// NoNameCap bounds the total when the name component is zero (default 0.4).
	NoNameCap float64 `json:"no_name_cap" yaml:"no_name_cap" mapstructure:"no_name_cap"`

	// ArrayMinConfidence filters MatchArrays results (default 0.6).
	ArrayMinConfidence float64 `json:"array_min_confidence" yaml:"array_min_confidence" mapstructure:"array_min_confidence"`
}

// CoherenceConfig holds the path coherence weights.
type CoherenceConfig struct {
	DepthWeight   float64 `json:"depth_weight" yaml:"depth_weight" mapstructure:"depth_weight"`
	ContextWeight float64 `json:"context_weight" yaml:"context_weight" mapstructure:"context_weight"`
	SiblingWeight float64 `json:"sibling_weight" yaml:"sibling_weight" mapstructure:"sibling_weight"`
	HighLevel     float64 `json:"high_level" yaml:"high_level" mapstructure:"high_level"`
	MediumLevel   float64 `json:"medium_level" yaml:"medium_level" mapstructure:"medium_level"`
}

// StoreConfig locates the mapping store.
type StoreConfig struct {
	// Dir holds mappings.db (default ".template-converter").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// AcceptScore is the minimum score for a stored mapping to override the
	// built-in rule tables during conversion (default 2).
	AcceptScore int `json:"accept_score" yaml:"accept_score" mapstructure:"accept_score"`
}

// RewriteConfig holds settings for the markup rewrite engine.
type RewriteConfig struct {
	// RulesFile replaces the built-in rule tables when set.
	RulesFile string `json:"rules_file,omitempty" yaml:"rules_file,omitempty" mapstructure:"rules_file"`

	// SplitRunWindow bounds the visible characters allowed between MERGE
	// and FIELD when the keyword is split across text runs (default 50).
	SplitRunWindow int `json:"split_run_window" yaml:"split_run_window" mapstructure:"split_run_window"`

	// ParagraphLoss is the tolerated fraction of lost paragraphs before a
	// content warning (default 0.2).
	ParagraphLoss float64 `json:"paragraph_loss" yaml:"paragraph_loss" mapstructure:"paragraph_loss"`

	// TextLoss is the tolerated fraction of lost text (default 0.5).
	TextLoss float64 `json:"text_loss" yaml:"text_loss" mapstructure:"text_loss"`

	// SkipCleanup disables the residual-marker cleanup pass. Output written
	// with it set fails the residual-marker check; use it to inspect what
	// the first two passes left behind.
	SkipCleanup bool `json:"skip_cleanup,omitempty" yaml:"skip_cleanup,omitempty" mapstructure:"skip_cleanup"`
}

// AIConfig holds settings for the AI fix-suggestion step.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxOutputTokens bounds the response size (default 4096).
	MaxOutputTokens int64 `json:"max_output_tokens" yaml:"max_output_tokens" mapstructure:"max_output_tokens"`

	// MaxMarkup truncates the markup sent in the prompt (default 10000 bytes).
	MaxMarkup int `json:"max_markup" yaml:"max_markup" mapstructure:"max_markup"`
}

// Config groups every setting of the converter.
type Config struct {
	Matcher   MatcherConfig   `json:"matcher" yaml:"matcher" mapstructure:"matcher"`
	Coherence CoherenceConfig `json:"coherence" yaml:"coherence" mapstructure:"coherence"`
	Store     StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Rewrite   RewriteConfig   `json:"rewrite" yaml:"rewrite" mapstructure:"rewrite"`
	AI        AIConfig        `json:"ai" yaml:"ai" mapstructure:"ai"`
	Source    SourceConfig    `json:"source" yaml:"source" mapstructure:"source"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Matcher: MatcherConfig{
			MinConfidence:      0.5,
			NameThreshold:      0.8,
			ExactNameWeight:    0.6,
			SupportCap:         0.4,
			NoNameCap:          0.4,
			ArrayMinConfidence: 0.6,
		},
		Coherence: CoherenceConfig{
			DepthWeight:   0.3,
			ContextWeight: 0.4,
			SiblingWeight: 0.3,
			HighLevel:     0.7,
			MediumLevel:   0.4,
		},
		Store: StoreConfig{
			Dir:         ".template-converter",
			AcceptScore: 2,
		},
		Rewrite: RewriteConfig{
			SplitRunWindow: 50,
			ParagraphLoss:  0.2,
			TextLoss:       0.5,
		},
		AI: AIConfig{
			Model:           "gpt-4o-mini",
			MaxOutputTokens: 4096,
			MaxMarkup:       10000,
		},
		Source: SourceConfig{
			HTTPConfig: HTTPConfig{
				Timeout:    30 * time.Second,
				UserAgent:  "template-converter/0.1",
				MaxRetries: 3,
			},
			StripPrefix: "data.attributes.content.",
		},
	}
}

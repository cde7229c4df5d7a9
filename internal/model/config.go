package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the complete factline configuration.
// Field tags serve viper (mapstructure), config show/init (yaml) and validation.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Stages   StagesConfig   `mapstructure:"stages" yaml:"stages"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Verify   VerifyConfig   `mapstructure:"verify" yaml:"verify"`
	Scoring  ScoringConfig  `mapstructure:"scoring" yaml:"scoring"`
	Formats  FormatsConfig  `mapstructure:"formats" yaml:"formats"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// LLMConfig configures the text-generation service
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=openai anthropic claude ollama gemini"`
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"min=0"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`

	// MaxInFlight caps concurrent calls to the service (0 = unlimited)
	MaxInFlight int `mapstructure:"max_in_flight" yaml:"max_in_flight" validate:"min=0"`

	// RequestsPerSecond enables a token bucket in front of the service (0 = disabled)
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"min=0"`

	HTTPProxy  string `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy string `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
}

// StageConfig is the call policy of one pipeline stage
type StageConfig struct {
	Timeout   int `mapstructure:"timeout" yaml:"timeout" validate:"min=1"`       // seconds per attempt
	Attempts  int `mapstructure:"attempts" yaml:"attempts" validate:"min=1,max=10"`
	BackoffMS int `mapstructure:"backoff_ms" yaml:"backoff_ms" validate:"min=0"` // base delay, doubled per attempt
}

// TimeoutDuration returns the per-attempt timeout
func (s StageConfig) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// BackoffDuration returns the base backoff delay
func (s StageConfig) BackoffDuration() time.Duration {
	return time.Duration(s.BackoffMS) * time.Millisecond
}

// StagesConfig holds per-stage call policies
type StagesConfig struct {
	Extraction   StageConfig `mapstructure:"extraction" yaml:"extraction"`
	Generation   StageConfig `mapstructure:"generation" yaml:"generation"`
	Verification StageConfig `mapstructure:"verification" yaml:"verification"`
}

// PipelineConfig configures the controller
type PipelineConfig struct {
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations" validate:"min=0,max=10"`
}

// VerifyConfig configures the verifier
type VerifyConfig struct {
	// LocalOnly skips the generative review pass
	LocalOnly bool `mapstructure:"local_only" yaml:"local_only"`

	// AllowedTerms are names the draft may use without a backing fact (e.g. the house brand)
	AllowedTerms []string `mapstructure:"allowed_terms" yaml:"allowed_terms"`

	// QuoteMinWords is the word count at which quoted spans must match the source verbatim
	QuoteMinWords int `mapstructure:"quote_min_words" yaml:"quote_min_words" validate:"min=1"`
}

// ScoringConfig holds the per-severity score penalties
type ScoringConfig struct {
	Critical int `mapstructure:"critical" yaml:"critical" validate:"min=0,max=100"`
	Warning  int `mapstructure:"warning" yaml:"warning" validate:"min=0,max=100"`
	Info     int `mapstructure:"info" yaml:"info" validate:"min=0,max=100"`
}

// FormatBounds are the length bounds of one format.
// Word bounds apply to prose formats, segment bounds to threads.
type FormatBounds struct {
	MinWords        int `mapstructure:"min_words" yaml:"min_words,omitempty" validate:"min=0"`
	MaxWords        int `mapstructure:"max_words" yaml:"max_words,omitempty" validate:"min=0,gtefield=MinWords"`
	MinSegments     int `mapstructure:"min_segments" yaml:"min_segments,omitempty" validate:"min=0"`
	MaxSegments     int `mapstructure:"max_segments" yaml:"max_segments,omitempty" validate:"min=0,gtefield=MinSegments"`
	MaxSegmentChars int `mapstructure:"max_segment_chars" yaml:"max_segment_chars,omitempty" validate:"min=0"`
}

// FormatsConfig holds bounds per format
type FormatsConfig struct {
	LongForm    FormatBounds `mapstructure:"long_form" yaml:"long_form"`
	ShortPost   FormatBounds `mapstructure:"short_post" yaml:"short_post"`
	MicroThread FormatBounds `mapstructure:"micro_thread" yaml:"micro_thread"`
}

// For returns the bounds of the given format
func (f FormatsConfig) For(kind FormatKind) FormatBounds {
	switch kind {
	case FormatLongForm:
		return f.LongForm
	case FormatShortPost:
		return f.ShortPost
	case FormatMicroThread:
		return f.MicroThread
	default:
		return FormatBounds{}
	}
}

// CacheConfig configures the FactSet cache
type CacheConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	MemoryTTLMin int    `mapstructure:"memory_ttl_minutes" yaml:"memory_ttl_minutes" validate:"min=0"`
	Dir          string `mapstructure:"dir" yaml:"dir,omitempty"` // Disk layer, disabled when empty
	DiskTTLHours int    `mapstructure:"disk_ttl_hours" yaml:"disk_ttl_hours" validate:"min=0"`
}

// OutputConfig configures result rendering
type OutputConfig struct {
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "", // Must be chosen explicitly
			MaxTokens:   4096,
			Temperature: 0.3,
			MaxInFlight: 4,
			Burst:       1,
		},
		Stages: StagesConfig{
			Extraction:   StageConfig{Timeout: 120, Attempts: 3, BackoffMS: 1000},
			Generation:   StageConfig{Timeout: 180, Attempts: 3, BackoffMS: 1000},
			Verification: StageConfig{Timeout: 120, Attempts: 3, BackoffMS: 1000},
		},
		Pipeline: PipelineConfig{MaxIterations: 3},
		Verify: VerifyConfig{
			AllowedTerms:  []string{},
			QuoteMinWords: 6,
		},
		Scoring: ScoringConfig{Critical: 30, Warning: 15, Info: 5},
		Formats: FormatsConfig{
			LongForm:    FormatBounds{MinWords: 1500, MaxWords: 2500},
			ShortPost:   FormatBounds{MinWords: 150, MaxWords: 300},
			MicroThread: FormatBounds{MinSegments: 5, MaxSegments: 10, MaxSegmentChars: 280},
		},
		Cache: CacheConfig{
			Enabled:      true,
			MemoryTTLMin: 60,
			DiskTTLHours: 24,
		},
		Output: OutputConfig{Dir: "./factline-output"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for out-of-range values
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/factline/internal/logging"
	"github.com/ppiankov/factline/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "factline",
	Short: "Factline - fact-grounded content generation with verification",
	Long: `Factline turns a source article into publishable content that only
says what the source says.

Every run extracts quoted facts from the source, drafts content in the
requested format, checks the draft against the facts and repairs it until
it verifies or the repair limit is reached. Each result carries a
confidence score and a publish recommendation.

Factline never invents facts. A draft it cannot verify is flagged for
manual review, not published.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command; ctx is cancelled on interrupt by the caller
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "factline %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.factline/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider (openai, anthropic, ollama, gemini)")
	rootCmd.PersistentFlags().String("model", "", "LLM model name")
	rootCmd.PersistentFlags().Bool("local-only", false, "skip the generative review pass")
	rootCmd.PersistentFlags().Int("max-iterations", 3, "repair iterations before manual review")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("verify.local_only", rootCmd.PersistentFlags().Lookup("local-only"))
	_ = viper.BindPFlag("pipeline.max_iterations", rootCmd.PersistentFlags().Lookup("max-iterations"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".factline"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// FACTLINE_LLM_PROVIDER maps to llm.provider
	viper.SetEnvPrefix("FACTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range []string{"llm.api_key", "llm.base_url", "cache.dir", "output.dir", "log.level"} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers config file, env and flags over the defaults
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if v.GetBool("verbose") {
		cfg.Log.Level = "debug"
		cfg.Output.Verbose = true
	}
	applyProviderEnv(&cfg.LLM, os.Getenv)
	return cfg, cfg.Validate()
}

// applyProviderEnv fills credentials from the provider's conventional variables
func applyProviderEnv(c *model.LLMConfig, getenv func(string) string) {
	switch strings.ToLower(c.Provider) {
	case "openai":
		if c.APIKey == "" {
			c.APIKey = getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if c.APIKey == "" {
			c.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	case "gemini":
		if c.APIKey == "" {
			c.APIKey = getenv("GEMINI_API_KEY")
		}
	case "ollama":
		if c.BaseURL == "" {
			c.BaseURL = getenv("OLLAMA_BASE_URL")
		}
	}
}

// setup loads the config and builds the logger every command shares
func setup() (*model.Config, *slog.Logger, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

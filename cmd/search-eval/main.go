package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/searchlab/search-eval/internal/bus"
	"github.com/searchlab/search-eval/internal/config"
	"github.com/searchlab/search-eval/internal/judgments"
	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "search-eval",
		Short: "Search Eval - Pooled relevance evaluation for search methods",
		Long: `Search Eval builds depth-K evaluation pools from ranked result runs,
labels pooled documents with an AI judge, and computes graded retrieval
metrics per method.

Run 'search-eval pool' to merge runs into a pool.
Run 'search-eval --help' for available commands.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		poolCmd(),
		labelCmd(),
		metricsCmd(),
		fetchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the run logger from the global
// flags.
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Log.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.Log.Format)

	return cfg, log, nil
}

// openStore opens the judgment store named by the configuration.
func openStore(cfg *config.Config, outputPath string) (judgments.Store, error) {
	switch cfg.Judgments.Backend {
	case "memory":
		return judgments.NewMemoryStore(), nil
	case "file":
		path := cfg.Judgments.FilePath
		if outputPath != "" {
			path = outputPath
		}
		return judgments.NewFileStore(path)
	case "redis":
		return judgments.NewRedisStore(cfg.Judgments.RedisURL)
	default:
		return nil, errors.ConfigurationError(fmt.Sprintf("unknown judgment backend %q", cfg.Judgments.Backend))
	}
}

// openBus builds the run-event bus named by the configuration.
func openBus(cfg *config.Config, log *logger.Logger) (bus.Bus, error) {
	switch cfg.Bus.Type {
	case "", "none":
		return bus.Nop{}, nil
	case "memory":
		return bus.NewMemoryBus(), nil
	case "kafka":
		return bus.NewKafkaBus(bus.KafkaConfig{Brokers: cfg.Bus.KafkaBrokerList()})
	default:
		return nil, errors.ConfigurationError(fmt.Sprintf("unknown bus type %q", cfg.Bus.Type))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("search-eval %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carspire/config"
	"carspire/internal/logging"
)

var (
	cfgFile   string
	cfg       *config.Config
	rootDir   string
	verbose   bool
	ephemeral bool
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "carspire",
	Short: "Carspire - a car mentor that learns from the text you give it",
	Long: `Carspire keeps a durable store of car knowledge, retrieves the fragments
most similar to a question and asks a language model to answer with them.

Example usage:
  carspire serve                          # Start the HTTP API
  carspire learn -f manual.md             # Learn a document
  carspire search -q "tire pressure"      # Show the closest fragments
  carspire chat -q "why do brakes squeal" # Ask a one-off question`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			if err = config.LoadEnv(rootDir); err != nil {
				return err
			}
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if ephemeral {
			cfg.Store.Ephemeral = true
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.NewLogger(level, cfg.Logging.Development)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./carspire.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep knowledge in memory only")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

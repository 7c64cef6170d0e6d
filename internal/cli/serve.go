package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carspire/internal/server"
	"carspire/internal/watcher"
)

var (
	serveNoSeed bool
	servePort   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on the configured address. On first run an empty store
is seeded from seed.path. With seed.watch enabled, documents added to the
seed directory while the server runs are learned automatically.

Examples:
  carspire serve
  carspire serve --port 8080 --no-seed`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoSeed, "no-seed", false, "skip seeding an empty store")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	a, err := openApp(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seedPath := cfg.SeedPath(GetRootDir())
	if !serveNoSeed {
		if _, err := os.Stat(seedPath); err == nil {
			res, err := a.seed.SeedIfEmpty(ctx, seedPath, nil)
			if err != nil {
				logger.Warn("seed failed", zap.Error(err))
			} else if !res.Skipped {
				logger.Info("seeded knowledge store", zap.Int("fragments", res.Added), zap.String("path", seedPath))
			}
		}
	}

	if cfg.Seed.Watch {
		w, err := startWatcher(ctx, a, seedPath)
		if err != nil {
			logger.Warn("seed watcher not started", zap.Error(err))
		} else {
			// Runs before the store is closed.
			defer w.Stop()
		}
	}

	chat, model, err := a.chatUseCase(logger)
	if err != nil {
		return err
	}

	srv := server.NewServer(a.learn, chat, a.store, model.ModelName(), cfg, logger.Named("http"))
	fmt.Printf("Carspire server on http://localhost:%d\n", cfg.Server.Port)
	return srv.Run(ctx, cfg.Addr())
}

func startWatcher(ctx context.Context, a *app, seedPath string) (*watcher.Watcher, error) {
	info, err := os.Stat(seedPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("seed.path %s is not a directory", seedPath)
	}

	w := watcher.New(seedPath, a.walker.Matches, func(path string) {
		added, err := a.seed.LearnFile(ctx, path)
		if err != nil {
			logger.Warn("failed to learn new file", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("learned new file", zap.String("path", path), zap.Int("fragments", added))
	}, watcher.WithLogger(logger.Named("watcher")))
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"carspire/internal/usecase"
)

var seedForce bool

var seedCmd = &cobra.Command{
	Use:   "seed [path]",
	Short: "Learn a directory of documents",
	Long: `Learn every matching document under path (default seed.path from config).
Without --force nothing happens when the store already holds knowledge.

Examples:
  carspire seed
  carspire seed ./manuals --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "seed even when the store is not empty")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	path := cfg.SeedPath(GetRootDir())
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	a, err := openApp(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Scanning %s...\n", path)

	var res *usecase.SeedResult
	if seedForce {
		res, err = a.seed.Seed(cmd.Context(), path, seedProgress("Seeding"))
	} else {
		res, err = a.seed.SeedIfEmpty(cmd.Context(), path, seedProgress("Seeding"))
	}
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	if res.Skipped {
		fmt.Printf("Store already holds %d fragments; use --force to seed anyway.\n", a.store.Len())
		return nil
	}

	fmt.Printf("\nSeeding complete:\n")
	fmt.Printf("  Files learned:   %d\n", res.FilesLearned)
	fmt.Printf("  Files skipped:   %d (too short)\n", res.FilesSkipped)
	fmt.Printf("  Fragments added: %d\n", res.Added)

	if len(res.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range res.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

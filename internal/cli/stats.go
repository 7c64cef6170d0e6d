package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge store statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stats := a.store.Stats()
	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Fragments: %d\n", stats.Fragments)
	fmt.Printf("Vectors:   %d\n", stats.Vectors)
	fmt.Printf("Dimension: %d\n", stats.Dimension)
	if stats.Model != "" {
		fmt.Printf("Model:     %s\n", stats.Model)
	}
	if stats.StoreID != "" {
		fmt.Printf("Store ID:  %s\n", stats.StoreID)
		fmt.Printf("Created:   %s\n", stats.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

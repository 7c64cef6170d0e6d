package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"carspire/internal/domain"
)

var (
	searchText string
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Show the fragments closest to a query",
	Long: `Embed the query and list the most similar stored fragments.

Examples:
  carspire search -q "brake fluid"
  carspire search -q "winter tires" --top-k 10 --json`,
	RunE: runSearch,
}

type searchResult struct {
	Seq   uint64  `json:"seq"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := openApp(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.store.Len() == 0 {
		return fmt.Errorf("knowledge store is empty. Run 'carspire seed' or 'carspire learn' first")
	}

	topK := cfg.Retrieve.TopK
	if searchTopK > 0 {
		topK = min(searchTopK, cfg.Retrieve.MaxTopK)
	}

	results, err := a.retr.Search(cmd.Context(), searchText, topK)
	if err != nil {
		return err
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(toSearchResults(results))
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("\n[%d] #%d (score: %.4f)\n", i+1, r.Fragment.Seq, r.Score)
		fmt.Println(strings.Repeat("-", 60))
		fmt.Println(r.Fragment.Text)
	}
	return nil
}

func toSearchResults(results []domain.ScoredFragment) []searchResult {
	out := make([]searchResult, len(results))
	for i, r := range results {
		out[i] = searchResult{Seq: r.Fragment.Seq, Score: r.Score, Text: r.Fragment.Text}
	}
	return out
}

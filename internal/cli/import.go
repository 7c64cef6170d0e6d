package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	importKnowledge  string
	importEmbeddings string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a two-file JSON knowledge base",
	Long: `Import fragments and vectors from the older layout where they live in
two JSON arrays. A length mismatch is repaired by importing the common
prefix. The vectors must come from the configured embedding model.

Examples:
  carspire import
  carspire import --knowledge data/knowledge.json --embeddings data/embeddings.json`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importKnowledge, "knowledge", filepath.Join("data", "knowledge.json"), "fragments JSON file")
	importCmd.Flags().StringVar(&importEmbeddings, "embeddings", filepath.Join("data", "embeddings.json"), "vectors JSON file")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.Store.Ephemeral {
		return fmt.Errorf("import needs a durable store")
	}

	a, err := openApp(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := newProgressBar(-1, "Importing")
	res, err := a.bolt.ImportLegacy(resolve(importKnowledge), resolve(importEmbeddings))
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if res.Recovered != nil {
		fmt.Printf("Files were inconsistent (%d fragments, %d vectors); imported the first %d.\n",
			res.Recovered.Fragments, res.Recovered.Vectors, res.Recovered.Kept())
	}
	fmt.Printf("Imported %d fragment(s). Store now holds %d.\n", res.Added, a.store.Len())
	return nil
}

func resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(GetRootDir(), path)
}

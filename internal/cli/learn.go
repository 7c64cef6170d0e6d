package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"carspire/internal/adapter/fs"
)

var learnFile string

var learnCmd = &cobra.Command{
	Use:   "learn [text]",
	Short: "Learn text or a document",
	Long: `Chunk, embed and store text. The text comes from the arguments, from a
file (-f, plain text, markdown or PDF) or from stdin when -f is "-".

Examples:
  carspire learn "Check tire pressure monthly, when the tires are cold."
  carspire learn -f owners-manual.pdf`,
	RunE: runLearn,
}

func init() {
	rootCmd.AddCommand(learnCmd)
	learnCmd.Flags().StringVarP(&learnFile, "file", "f", "", "file to learn, - for stdin")
}

func runLearn(cmd *cobra.Command, args []string) error {
	var text string
	switch {
	case learnFile == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	case learnFile != "":
		var err error
		text, err = fs.NewExtractor().Extract(learnFile)
		if err != nil {
			return err
		}
	case len(args) > 0:
		text = strings.Join(args, " ")
	default:
		return fmt.Errorf("provide text as arguments or with --file")
	}

	a, err := openApp(GetConfig(), GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.learn.Learn(cmd.Context(), text)
	if err != nil {
		return err
	}

	fmt.Printf("Learned %d fragment(s). Store now holds %d.\n", res.Added, a.store.Len())
	return nil
}

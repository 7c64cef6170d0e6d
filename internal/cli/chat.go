package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"carspire/internal/domain"
	"carspire/internal/usecase"
)

var (
	chatText    string
	chatTopK    int
	chatVerbose bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask a one-off question",
	Long: `Retrieve context for the question and ask the configured language model.

Examples:
  carspire chat -q "What does the TPMS light mean?"
  carspire chat -q "How often should I change coolant?" --show-prompt`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatText, "query", "q", "", "question (required)")
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "context fragments (default from config)")
	chatCmd.Flags().BoolVar(&chatVerbose, "show-prompt", false, "print the composed prompt before the reply")
	chatCmd.MarkFlagRequired("query")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := openApp(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	chat, _, err := a.chatUseCase(logger)
	if err != nil {
		return err
	}

	topK := cfg.Retrieve.TopK
	if chatTopK > 0 {
		topK = min(chatTopK, cfg.Retrieve.MaxTopK)
	}
	conversation := []domain.Message{{Role: domain.RoleUser, Content: chatText}}

	if chatVerbose {
		prompt, err := chat.BuildPrompt(cmd.Context(), conversation, topK)
		if err != nil {
			return err
		}
		for _, m := range prompt.Messages {
			fmt.Printf("--- %s ---\n%s\n", m.Role, m.Content)
		}
		fmt.Println()
	}

	res, err := chat.Chat(cmd.Context(), usecase.ChatRequest{Messages: conversation, TopK: topK})
	if err != nil {
		return err
	}

	fmt.Println(res.Reply)
	fmt.Printf("\n(used %d context fragment(s))\n", res.UsedContext)
	return nil
}

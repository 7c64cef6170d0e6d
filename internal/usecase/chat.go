package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"carspire/internal/adapter/analyzer"
	"carspire/internal/domain"
	"carspire/internal/port"
)

const (
	// DefaultSystemPrompt is always the first message sent to the model.
	DefaultSystemPrompt = "You are Carspire, a friendly, precise car mentor. Explain clearly and briefly for non-experts. " +
		"Use the provided CONTEXT when relevant. Always emphasize safety and legality. " +
		"If unsure, say you are unsure and suggest checking the owner's manual or a certified mechanic."

	contextHeader    = "CONTEXT:\n"
	contextSeparator = "\n---\n"
)

// ChatUseCase composes retrieval-augmented prompts and asks the model for a reply.
type ChatUseCase struct {
	retriever    port.Retriever
	store        port.KnowledgeStore
	llm          port.LLM
	systemPrompt string
	tokenBudget  int
	logger       *zap.Logger
}

type ChatOption func(*ChatUseCase)

func WithSystemPrompt(prompt string) ChatOption {
	return func(u *ChatUseCase) {
		if prompt != "" {
			u.systemPrompt = prompt
		}
	}
}

// WithContextTokenBudget bounds the approximate size of the context block.
// Zero disables the bound.
func WithContextTokenBudget(tokens int) ChatOption {
	return func(u *ChatUseCase) { u.tokenBudget = tokens }
}

func WithChatLogger(logger *zap.Logger) ChatOption {
	return func(u *ChatUseCase) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func NewChatUseCase(retriever port.Retriever, store port.KnowledgeStore, llm port.LLM, opts ...ChatOption) *ChatUseCase {
	u := &ChatUseCase{
		retriever:    retriever,
		store:        store,
		llm:          llm,
		systemPrompt: DefaultSystemPrompt,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ChatRequest is one chat turn. TopK <= 0 disables retrieval.
type ChatRequest struct {
	Messages []domain.Message
	TopK     int
}

type ChatResponse struct {
	Reply       string `json:"reply"`
	UsedContext int    `json:"usedContext"`
}

// BuildPrompt returns the system instructions, an optional context block
// and the conversation, in that order. Retrieval is skipped when the
// conversation has no user message or the store is empty.
func (u *ChatUseCase) BuildPrompt(ctx context.Context, conversation []domain.Message, topK int) (domain.Prompt, error) {
	if err := validateConversation(conversation); err != nil {
		return domain.Prompt{}, err
	}

	messages := make([]domain.Message, 0, len(conversation)+2)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: u.systemPrompt})

	var used []domain.ScoredFragment
	if query, ok := lastUserMessage(conversation); ok && u.store.Len() > 0 && topK > 0 {
		results, err := u.retriever.Search(ctx, query, topK)
		if err != nil {
			return domain.Prompt{}, fmt.Errorf("retrieval failed: %w", err)
		}
		used = u.fitBudget(results)
	}

	if len(used) > 0 {
		texts := make([]string, len(used))
		for i, r := range used {
			texts[i] = r.Fragment.Text
		}
		messages = append(messages, domain.Message{
			Role:    domain.RoleSystem,
			Content: contextHeader + strings.Join(texts, contextSeparator),
		})
	}

	messages = append(messages, conversation...)
	return domain.Prompt{Messages: messages, UsedContext: len(used)}, nil
}

// Chat builds the prompt and delegates generation to the model.
func (u *ChatUseCase) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	prompt, err := u.BuildPrompt(ctx, req.Messages, req.TopK)
	if err != nil {
		return ChatResponse{}, err
	}

	reply, err := u.llm.Complete(ctx, prompt.Messages)
	if err != nil {
		return ChatResponse{}, err
	}

	u.logger.Debug("chat completed",
		zap.Int("messages", len(req.Messages)),
		zap.Int("used_context", prompt.UsedContext),
	)
	return ChatResponse{Reply: reply, UsedContext: prompt.UsedContext}, nil
}

// fitBudget keeps results in score order while they fit the token budget.
// The best result is always kept.
func (u *ChatUseCase) fitBudget(results []domain.ScoredFragment) []domain.ScoredFragment {
	if u.tokenBudget <= 0 || len(results) <= 1 {
		return results
	}

	used := analyzer.CountTokens(results[0].Fragment.Text)
	kept := []domain.ScoredFragment{results[0]}
	for _, r := range results[1:] {
		tokens := analyzer.CountTokens(r.Fragment.Text)
		if used+tokens > u.tokenBudget {
			break
		}
		used += tokens
		kept = append(kept, r)
	}
	return kept
}

func validateConversation(conversation []domain.Message) error {
	for i, m := range conversation {
		if !m.Role.Valid() {
			return domain.NewValidationError("messages", "message %d has unknown role %q", i, m.Role)
		}
	}
	return nil
}

func lastUserMessage(conversation []domain.Message) (string, bool) {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == domain.RoleUser && strings.TrimSpace(conversation[i].Content) != "" {
			return conversation[i].Content, true
		}
	}
	return "", false
}

package llm

import (
	"context"
	"sync"

	"carspire/internal/domain"
)

// Echo is an offline LLM that replies with a fixed answer or, when none is
// set, with the last user message. It records every conversation it sees.
type Echo struct {
	Reply string
	Err   error

	mu    sync.Mutex
	calls [][]domain.Message
}

func (e *Echo) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]domain.Message(nil), messages...))
	e.mu.Unlock()

	if e.Err != nil {
		return "", e.Err
	}
	if e.Reply != "" {
		return e.Reply, nil
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content, nil
		}
	}
	return FallbackReply, nil
}

func (e *Echo) ModelName() string {
	return "echo"
}

// Calls returns the conversations passed to Complete so far.
func (e *Echo) Calls() [][]domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]domain.Message(nil), e.calls...)
}

package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"carspire/config"
	"carspire/internal/domain"
	"carspire/internal/usecase"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimension = 32
	cfg.Chat.Provider = "echo"
	cfg.Store.Path = filepath.Join(t.TempDir(), "knowledge.db")
	return cfg
}

func TestOpenAppLearnAndChat(t *testing.T) {
	cfg := testConfig(t)
	a, err := openApp(cfg, t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.bolt == nil {
		t.Fatal("expected a durable store")
	}

	ctx := context.Background()
	if _, err := a.learn.Learn(ctx, "Rotate the tires every 8,000 km."); err != nil {
		t.Fatal(err)
	}

	chat, model, err := a.chatUseCase(zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if model.ModelName() != "echo" {
		t.Errorf("expected echo model, got %s", model.ModelName())
	}

	res, err := chat.Chat(ctx, usecase.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "tires?"}},
		TopK:     cfg.Retrieve.TopK,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.UsedContext != 1 || res.Reply != "tires?" {
		t.Errorf("unexpected response: %+v", res)
	}
}

func TestOpenAppEphemeral(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Ephemeral = true

	a, err := openApp(cfg, t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.bolt != nil {
		t.Error("ephemeral run should not open a bolt store")
	}
	if a.store.Len() != 0 {
		t.Errorf("expected empty store, got %d", a.store.Len())
	}
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	if _, err := newEmbedder(config.EmbeddingConfig{Provider: "voyage"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 10*time.Minute, "2h10m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

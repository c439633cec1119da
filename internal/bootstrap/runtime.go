package bootstrap

import (
	"context"
	"log/slog"

	"github.com/yanqian/offlineqa/internal/domain/conversation"
	"github.com/yanqian/offlineqa/internal/domain/qa"
	"github.com/yanqian/offlineqa/internal/infra/config"
)

// Runtime is the chatbot plus conversation flow without the HTTP server.
// qactl builds one per invocation.
type Runtime struct {
	Config       *config.Config
	Chatbot      qa.Chatbot
	Conversation conversation.Service
	Logger       *slog.Logger
}

// NewRuntime assembles the same providers the server uses. The returned
// cleanup releases the index and any Valkey connection.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	client, closeValkey := ProvideValkeyClient(cfg, logger)
	cleanups = append(cleanups, closeValkey)

	loader, err := ProvideDatasetLoader(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	emb, err := ProvideEmbedder(cfg, client, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	index, closeIndex, err := ProvideIndex(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, closeIndex)

	bot, err := ProvideChatbot(ctx, ProvideQAConfig(cfg), loader, emb, index, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	store := ProvideSessionStore(cfg, client)
	svc := ProvideConversationService(ProvideConversationConfig(cfg), bot, store, logger)

	return &Runtime{Config: cfg, Chatbot: bot, Conversation: svc, Logger: logger}, cleanup, nil
}

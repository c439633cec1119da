//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/yanqian/offlineqa/internal/bootstrap"
	"github.com/yanqian/offlineqa/internal/infra/config"
	httpiface "github.com/yanqian/offlineqa/internal/interface/http"
	"github.com/yanqian/offlineqa/pkg/logger"
)

func initializeApp(ctx context.Context) (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		bootstrap.ProvideValkeyClient,
		bootstrap.ProvideDatasetLoader,
		bootstrap.ProvideEmbedder,
		bootstrap.ProvideIndex,
		bootstrap.ProvideQAConfig,
		bootstrap.ProvideChatbot,
		bootstrap.ProvideConversationConfig,
		bootstrap.ProvideSessionStore,
		bootstrap.ProvideConversationService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}

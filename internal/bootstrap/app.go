package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/offlineqa/internal/domain/qa"
	"github.com/yanqian/offlineqa/internal/infra/config"
)

const shutdownTimeout = 10 * time.Second

// App owns the HTTP server and the chatbot it serves.
type App struct {
	cfg    *config.Config
	bot    qa.Chatbot
	logger *slog.Logger
	server *http.Server
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, bot qa.Chatbot, logger *slog.Logger, server *http.Server) *App {
	return &App{cfg: cfg, bot: bot, logger: logger.With("component", "bootstrap"), server: server}
}

// Run serves until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		stats := a.bot.Stats()
		a.logger.Info("http server starting",
			"address", a.cfg.HTTP.Address,
			"records", stats.Records,
			"backend", stats.Backend,
			"model", stats.Model,
		)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"fixmantra-backend/internal/catalog"
	"fixmantra-backend/internal/classify"
	"fixmantra-backend/internal/config"
	"fixmantra-backend/internal/dialog"
	fmlog "fixmantra-backend/internal/log"
	"fixmantra-backend/internal/server"
	"fixmantra-backend/internal/session"
)

func main() {
	cfg := config.Load()
	fmlog.Configure(fmlog.Config{Level: cfg.LogLevel, Service: "fixmantra"})
	logger := fmlog.WithComponent("main")

	cat, err := catalog.Load(cfg.IntentsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.IntentsPath).Msg("failed to load intent catalog")
	}

	var scorer classify.Scorer
	switch cfg.Scorer {
	case "openai":
		scorer = classify.NewOpenAIScorer(openai.NewClient(cfg.OpenAIAPIKey), cfg.Model, cat)
	default:
		scorer = classify.NewLexicalScorer(cat)
	}
	adapter := classify.NewAdapter(scorer, cat, cfg.Threshold)

	sessions := session.NewStore(cfg.SessionTTL)
	resolver := dialog.NewResolver(cat, adapter, sessions)
	engine := dialog.NewEngine(cat, sessions)
	srv := server.New(cfg, resolver, engine)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpSrv.Addr).Str("scorer", cfg.Scorer).Msg("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if cfg.SessionTTL > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.SessionTTL)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if n := sessions.Sweep(); n > 0 {
						logger.Debug().Int("removed", n).Msg("swept expired sessions")
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
	logger.Info().Msg("server stopped")
}

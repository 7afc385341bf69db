package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ladybugml/ladybug-bot/internal/config"
	"github.com/ladybugml/ladybug-bot/internal/db"
	"github.com/ladybugml/ladybug-bot/internal/fetch"
	"github.com/ladybugml/ladybug-bot/internal/github"
	"github.com/ladybugml/ladybug-bot/internal/pipeline"
	"github.com/ladybugml/ladybug-bot/internal/ranking"
	"github.com/ladybugml/ladybug-bot/internal/server"
	"github.com/ladybugml/ladybug-bot/internal/triage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start an HTTP server that receives GitHub issue webhooks on /webhook and
progress updates from the localization backend on /post-message.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT and the config file)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if servePort != 0 {
		cfg.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tokens, err := tokenSource(cfg)
	if err != nil {
		return err
	}

	timeout, err := cfg.FetchTimeoutDuration()
	if err != nil {
		return err
	}
	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Timeout = timeout

	p, err := pipeline.New(pipeline.Options{
		Fetcher: fetch.NewClient(fetchOpts),
		Logger:  logger.Named("pipeline"),
	})
	if err != nil {
		return err
	}

	comments := github.NewClient(cfg.GitHubAPIURL, tokens, logger.Named("github"))
	rankingClient := ranking.NewClient(cfg.RankingURL)
	handlerOpts := triage.Options{
		Pipeline:     p,
		Commenter:    comments,
		Ranker:       rankingClient,
		Repositories: comments,
		Initializer:  rankingClient,
		Logger:       logger.Named("triage"),
	}

	if cfg.DatabaseURL != "" {
		database, err := openAuditLog(cmdContext(cmd), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		handlerOpts.Recorder = database
	} else {
		logger.Info("DATABASE_URL not set, triage audit log disabled")
	}

	handler := triage.NewHandler(handlerOpts)
	srv, err := server.New(server.Config{
		Port:          cfg.Port,
		WebhookSecret: cfg.WebhookSecret,
		Triager:       handler,
		Initializer:   handler,
		Commenter:     comments,
		Logger:        logger.Named("server"),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET not set, webhook signatures are not verified")
	}
	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("github_api_url", cfg.GitHubAPIURL),
		zap.String("ranking_url", cfg.RankingURL),
		zap.Duration("fetch_timeout", timeout),
	)

	return srv.Start()
}

// tokenSource prefers GitHub App credentials over a static token.
func tokenSource(c config.Config) (github.TokenSource, error) {
	if c.GitHubAppID != "" {
		appCfg, err := config.NewAppConfig(c.GitHubAppID, c.GitHubPrivateKeyPath)
		if err != nil {
			return nil, err
		}
		return github.NewAppTokenSource(appCfg, c.GitHubAPIURL)
	}
	if c.GitHubToken == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN or GITHUB_APP_ID with GITHUB_PRIVATE_KEY_PATH is required")
	}
	return github.StaticToken(c.GitHubToken), nil
}

func openAuditLog(ctx context.Context, databaseURL string) (*db.DB, error) {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

package main

import (
	"net/http"
	"time"

	"github.com/MegaGrindStone/study-buddy/internal/relay"
	"github.com/MegaGrindStone/study-buddy/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the chat and upload backend",
	Long: `Runs the backend the clients talk to. Chat inputs are forwarded to the configured upstream:
an n8n-style webhook (WEB_HOOK_URL), Ollama, an OpenAI-compatible API or Anthropic.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func runRelay(cmd *cobra.Command, _ []string) error {
	store, err := services.NewBoltDB(cfg.Relay.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	upstream, err := cfg.Relay.Upstream.upstream(store, logger)
	if err != nil {
		return err
	}

	h := relay.NewHandler(upstream, store, cfg.Relay.UploadDir, logger)
	srv := &http.Server{
		Addr:              listenAddr(cfg.Relay.Port),
		Handler:           relay.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Relay configured",
		zap.String("uploadDir", cfg.Relay.UploadDir),
		zap.String("storePath", cfg.Relay.StorePath))
	return runServer(cmd.Context(), srv)
}

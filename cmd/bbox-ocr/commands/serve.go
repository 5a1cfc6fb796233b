package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/bbox-ocr/cmd/bbox-ocr/ui"
	"github.com/spherical/bbox-ocr/internal/observability"
	"github.com/spherical/bbox-ocr/internal/server"
	"github.com/spherical/bbox-ocr/pkg/extractor"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	Long:  "Start an HTTP server exposing GET /healthz and POST /parse (multipart field \"file\").",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "bbox-ocr",
	})

	client, err := extractor.NewClientWithConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info().
		Str("model", cfg.Inference.Model).
		Str("endpoint", cfg.Inference.BaseURL).
		Str("cache", cfg.Cache.Driver).
		Int("workers", cfg.Pipeline.Workers).
		Msg("starting bbox-ocr server")

	ctx, stop := signalContext()
	defer stop()

	ui.Info("Listening on http://%s", cfg.Server.Addr())
	return server.Run(ctx, cfg.Server, server.NewRouter(logger, client, cfg.Server), logger)
}

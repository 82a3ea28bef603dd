package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"imessage-relay/internal/config"
	"imessage-relay/internal/domain/entities"
	"imessage-relay/internal/infra/handlers"
	"imessage-relay/internal/infra/logger"
	"imessage-relay/internal/infra/provider"
	"imessage-relay/internal/infra/routes"
	"imessage-relay/internal/infra/services"
	"imessage-relay/internal/middleware"
	client "imessage-relay/internal/pkg"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the webhook endpoint",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	router, err := newRouter(cfg, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server is running on port %s", cfg.Port), logrus.Fields{
			"env":            cfg.Env,
			"writes_enabled": cfg.WritesEnabled(),
			"model":          cfg.GeminiModel,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error(fmt.Sprintf("Error running HTTP server: %s", err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
		return err
	}
	log.Info("Server stopped gracefully.")
	return nil
}

// newRouter wires the relay: bridge client, Gemini, the processing gate and
// the HTTP routes.
func newRouter(cfg *config.Config, log *logger.Logger) (*mux.Router, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	httpClient := client.HTTPClient(cfg.HTTPTimeout)

	bridge := provider.NewBlueBubblesProvider(log, httpClient, cfg.BridgeURL, cfg.BridgePassword)
	gemini := services.NewGeminiReplyService(log, httpClient, cfg.GeminiBaseURL, cfg.GoogleAPIKey, cfg.GeminiModel, cfg.GoogleSearch)
	gate := entities.NewProcessingGate(cfg.WritesEnabled())

	channelService := services.NewChannelService(log, gemini, bridge, services.NewPromptBuilder(loc), gate)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log))
	routes.NewRoutes(router, handlers.NewWebhookHandlers(log, channelService)).Init()

	return router, nil
}

package cmd

import (
	"context"

	"imessage-relay/internal/config"
	"imessage-relay/internal/infra/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "imessage-relay",
	Short: "Relay iMessage webhooks from a BlueBubbles bridge to Gemini",
	Long: `imessage-relay receives webhook deliveries from a BlueBubbles server,
answers incoming iMessages with replies generated by Gemini and honors the
"alpha off" / "alpha on" control commands. Without a subcommand it serves
the webhook endpoint.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		// A missing .env is fine; the process environment still applies.
		_ = config.LoadEnv()
	})
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.NewLogger(context.Background(), cfg.LogLevel, cfg.LogFormat == "json")
}

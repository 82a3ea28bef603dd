package cmd

import (
	"fmt"
	"time"

	"imessage-relay/internal/config"
	"imessage-relay/internal/infra/services"

	"github.com/spf13/cobra"
)

var promptTimezone string

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the system prompt as it would be sent right now",
	RunE:  runPrompt,
}

func init() {
	promptCmd.Flags().StringVar(&promptTimezone, "timezone", "", "IANA zone for the timestamp (default $PROMPT_TIMEZONE or America/New_York)")
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	zone := promptTimezone
	if zone == "" {
		zone = config.GetEnvOrDefault("PROMPT_TIMEZONE", "America/New_York")
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return fmt.Errorf("load time zone %q: %w", zone, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), services.NewPromptBuilder(loc).Build())
	return nil
}

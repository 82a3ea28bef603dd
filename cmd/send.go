package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"imessage-relay/internal/config"
	"imessage-relay/internal/domain/dto"
	"imessage-relay/internal/infra/provider"
	client "imessage-relay/internal/pkg"

	"github.com/spf13/cobra"
)

var (
	sendChat      string
	sendText      string
	sendMethod    string
	sendSubject   string
	sendEffect    string
	sendReplyTo   string
	sendPartIndex int

	markReadChat string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a text message through the bridge",
	Long: `Sends one text message to a chat through the BlueBubbles bridge.
Subjects, effects and replies need the private-api method.`,
	RunE: runSend,
}

var markReadCmd = &cobra.Command{
	Use:   "mark-read",
	Short: "Mark a chat as read on the bridge",
	RunE:  runMarkRead,
}

func init() {
	sendCmd.Flags().StringVar(&sendChat, "chat", "", "chat GUID, e.g. iMessage;-;+15555550100")
	sendCmd.Flags().StringVar(&sendText, "text", "", "message text")
	sendCmd.Flags().StringVar(&sendMethod, "method", string(dto.SendMethodPrivateAPI), "send method: private-api or apple-script")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "", "message subject")
	sendCmd.Flags().StringVar(&sendEffect, "effect", "", "expressive send effect id")
	sendCmd.Flags().StringVar(&sendReplyTo, "reply-to", "", "GUID of the message being replied to")
	sendCmd.Flags().IntVar(&sendPartIndex, "part-index", 0, "part of the replied-to message")
	sendCmd.MarkFlagRequired("chat")
	sendCmd.MarkFlagRequired("text")

	markReadCmd.Flags().StringVar(&markReadChat, "chat", "", "chat GUID")
	markReadCmd.MarkFlagRequired("chat")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(markReadCmd)
}

func newBridge() (*provider.BlueBubblesProvider, error) {
	cfg, err := config.LoadBridge()
	if err != nil {
		return nil, err
	}
	return provider.NewBlueBubblesProvider(newLogger(cfg), client.HTTPClient(cfg.HTTPTimeout), cfg.BridgeURL, cfg.BridgePassword), nil
}

func runSend(cmd *cobra.Command, args []string) error {
	bridge, err := newBridge()
	if err != nil {
		return err
	}

	opts := provider.SendOptions{
		Method:              dto.SendMethod(sendMethod),
		Subject:             sendSubject,
		EffectID:            sendEffect,
		SelectedMessageGUID: sendReplyTo,
	}
	if cmd.Flags().Changed("part-index") {
		opts.PartIndex = &sendPartIndex
	}

	resp, err := bridge.SendText(context.Background(), sendChat, sendText, opts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding bridge response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runMarkRead(cmd *cobra.Command, args []string) error {
	bridge, err := newBridge()
	if err != nil {
		return err
	}
	if err := bridge.MarkChatRead(context.Background(), markReadChat); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as read\n", markReadChat)
	return nil
}

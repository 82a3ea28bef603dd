package services

import (
	"context"
	"fmt"
	"strings"

	"imessage-relay/internal/domain/dto"
	"imessage-relay/internal/domain/entities"
	Iservices "imessage-relay/internal/domain/interfaces/services"
	"imessage-relay/internal/infra/logger"
	"imessage-relay/internal/infra/provider"

	"github.com/sirupsen/logrus"
)

// Delivery acknowledgements returned to the bridge.
const (
	StatusOK    = "OK"
	StatusError = "Error"
)

const (
	CommandDisable = "alpha off"
	CommandEnable  = "alpha on"

	DisabledReply = "Webhook processing disabled"
	EnabledReply  = "Webhook processing enabled"

	apologyPrefix = "Sorry, I encountered an error:\n\n"
)

type ChannelService struct {
	Logger            *logger.Logger
	ReplyService      Iservices.IReplyService
	MessagingProvider provider.IMessagingProvider
	PromptBuilder     Iservices.IPromptBuilder
	Gate              *entities.ProcessingGate
}

func NewChannelService(logger *logger.Logger, replyService Iservices.IReplyService, messagingProvider provider.IMessagingProvider, promptBuilder Iservices.IPromptBuilder, gate *entities.ProcessingGate) *ChannelService {
	return &ChannelService{Logger: logger, ReplyService: replyService, MessagingProvider: messagingProvider, PromptBuilder: promptBuilder, Gate: gate}
}

func (th *ChannelService) ProcessingState() entities.ProcessingState {
	return th.Gate.State()
}

// Dispatch routes one validated webhook event and returns the acknowledgement
// for the bridge. Only new messages can trigger outbound sends; the other kinds
// are logged while processing is active. A panic in any handler becomes
// StatusError.
func (th *ChannelService) Dispatch(ctx context.Context, event dto.WebhookEvent) (status string) {
	defer func() {
		if r := recover(); r != nil {
			th.Logger.Error(fmt.Sprintf("Recovered from panic: %v", r))
			status = StatusError
		}
	}()

	switch e := event.(type) {
	case *dto.NewMessageEvent:
		return th.HandleNewMessage(ctx, e)
	case *dto.TypingIndicatorEvent:
		if th.Gate.Active() {
			th.Logger.Info("Typing indicator", logrus.Fields{
				"event_type": e.Type(),
				"chat_guid":  e.Data.GUID,
				"is_typing":  e.Data.Display,
			})
		}
		return StatusOK
	case *dto.UpdatedMessageEvent:
		if th.Gate.Active() {
			th.Logger.Info("Updated message", messageFields(e.Type(), e.Data))
		}
		return StatusOK
	case *dto.ChatReadStatusChangedEvent:
		if th.Gate.Active() {
			th.Logger.Info("Chat read status changed", logrus.Fields{
				"event_type": e.Type(),
				"chat_guid":  e.Data.ChatGUID,
				"read":       e.Data.Read,
			})
		}
		return StatusOK
	default:
		th.Logger.Error(fmt.Sprintf("Unhandled webhook event %T", event))
		return StatusError
	}
}

// HandleNewMessage takes exactly one of three paths for a new message: a
// control command, a suppressed message, or an AI reply to the first chat.
func (th *ChannelService) HandleNewMessage(ctx context.Context, event *dto.NewMessageEvent) string {
	text := event.Data.Text
	normalized := strings.ToLower(strings.TrimSpace(text))

	chat, ok := event.Data.PrimaryChat()
	if !ok {
		th.Logger.Warn("No chat found in payload", messageFields(event.Type(), event.Data))
		return StatusError
	}
	chatGUID := chat.GUID
	if len(event.Data.Chats) > 1 {
		th.Logger.Debug("Message belongs to several chats, replying to the first", logrus.Fields{
			"chat_guid":  chatGUID,
			"chat_count": len(event.Data.Chats),
		})
	}

	if status, handled := th.handleControlMessage(ctx, chatGUID, normalized); handled {
		return status
	}

	if err := th.MessagingProvider.MarkChatRead(ctx, chatGUID); err != nil {
		th.Logger.Warn(fmt.Sprintf("Failed to mark chat as read: %v", err), logrus.Fields{"chat_guid": chatGUID})
	}

	if normalized == "" || !th.Gate.Active() || event.Data.IsFromMe {
		th.Logger.Debug("Skipping reply", logrus.Fields{
			"chat_guid":  chatGUID,
			"empty":      normalized == "",
			"active":     th.Gate.Active(),
			"is_from_me": event.Data.IsFromMe,
		})
		return StatusOK
	}

	reply, err := th.ReplyService.GenerateReply(ctx, text, th.PromptBuilder.Build())
	if err != nil {
		return th.apologize(ctx, chatGUID, fmt.Errorf("generate reply: %w", err))
	}

	if _, err := th.MessagingProvider.SendText(ctx, chatGUID, reply, provider.SendOptions{}); err != nil {
		return th.apologize(ctx, chatGUID, fmt.Errorf("send reply: %w", err))
	}

	return StatusOK
}

func (th *ChannelService) handleControlMessage(ctx context.Context, chatGUID, normalized string) (string, bool) {
	var (
		applied bool
		ack     string
	)
	switch normalized {
	case CommandDisable:
		applied = th.Gate.Suspend()
		ack = DisabledReply
	case CommandEnable:
		applied = th.Gate.Resume()
		ack = EnabledReply
	default:
		return "", false
	}

	th.Logger.Info(ack, logrus.Fields{
		"chat_guid":      chatGUID,
		"command":        normalized,
		"applied":        applied,
		"writes_enabled": th.Gate.WritesEnabled(),
		"state":          th.Gate.State(),
	})

	if _, err := th.MessagingProvider.SendText(ctx, chatGUID, ack, provider.SendOptions{}); err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to acknowledge control command: %v", err), logrus.Fields{"chat_guid": chatGUID})
		return StatusError, true
	}
	return StatusOK, true
}

// apologize tells the chat the reply failed. The delivery is reported as
// StatusError whether or not the apology got through.
func (th *ChannelService) apologize(ctx context.Context, chatGUID string, cause error) string {
	th.Logger.Error(fmt.Sprintf("Error processing new message: %v", cause), logrus.Fields{"chat_guid": chatGUID})

	if _, err := th.MessagingProvider.SendText(ctx, chatGUID, apologyPrefix+cause.Error(), provider.SendOptions{}); err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to send error message: %v", err), logrus.Fields{"chat_guid": chatGUID})
	}
	return StatusError
}

func messageFields(eventType dto.EventType, m dto.Message) logrus.Fields {
	fields := logrus.Fields{
		"event_type":   eventType,
		"message_guid": m.GUID,
		"is_from_me":   m.IsFromMe,
		"text_length":  len(m.Text),
	}
	if chat, ok := m.PrimaryChat(); ok {
		fields["chat_guid"] = chat.GUID
	}
	if m.Handle != nil {
		fields["handle"] = m.Handle.Address
	}
	return fields
}

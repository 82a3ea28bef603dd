package provider

import (
	"context"

	"imessage-relay/internal/domain/dto"
)

type IMessagingProvider interface {
	SendText(ctx context.Context, chatGUID, message string, opts SendOptions) (*dto.BridgeResponse, error)
	MarkChatRead(ctx context.Context, chatGUID string) error
}

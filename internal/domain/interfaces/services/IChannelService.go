package Iservices

import (
	"context"

	"imessage-relay/internal/domain/dto"
	"imessage-relay/internal/domain/entities"
)

type IChannelServices interface {
	Dispatch(ctx context.Context, event dto.WebhookEvent) string
	ProcessingState() entities.ProcessingState
}

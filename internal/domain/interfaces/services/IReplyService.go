package Iservices

import "context"

type IReplyService interface {
	GenerateReply(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

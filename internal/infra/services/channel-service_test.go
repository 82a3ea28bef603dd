package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"imessage-relay/internal/domain/dto"
	"imessage-relay/internal/domain/entities"
	"imessage-relay/internal/infra/logger"
	"imessage-relay/internal/infra/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentText struct {
	ChatGUID string
	Message  string
}

// mockMessaging records every bridge call. SendErr applies to every send, or
// only to the ones failOnly selects.
type mockMessaging struct {
	mu       sync.Mutex
	Sent     []sentText
	Read     []string
	SendErr  error
	ReadErr  error
	failOnly func(message string) bool
}

func (m *mockMessaging) SendText(_ context.Context, chatGUID, message string, _ provider.SendOptions) (*dto.BridgeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentText{ChatGUID: chatGUID, Message: message})
	if m.SendErr != nil && (m.failOnly == nil || m.failOnly(message)) {
		return nil, m.SendErr
	}
	return &dto.BridgeResponse{Status: 200}, nil
}

func (m *mockMessaging) MarkChatRead(_ context.Context, chatGUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Read = append(m.Read, chatGUID)
	return m.ReadErr
}

type replyCall struct {
	Prompt       string
	SystemPrompt string
}

type mockReply struct {
	mu    sync.Mutex
	Calls []replyCall
	Reply string
	Err   error
	Panic bool
}

func (m *mockReply) GenerateReply(_ context.Context, prompt, systemPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, replyCall{Prompt: prompt, SystemPrompt: systemPrompt})
	if m.Panic {
		panic("reply service exploded")
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

type staticPrompt string

func (p staticPrompt) Build() string { return string(p) }

type fixture struct {
	svc       *ChannelService
	messaging *mockMessaging
	reply     *mockReply
	gate      *entities.ProcessingGate
	logs      *bytes.Buffer
}

func newFixture(writesEnabled bool) *fixture {
	logs := &bytes.Buffer{}
	log := logger.NewLogger(context.Background(), "info", true)
	log.SetOutput(logs)

	f := &fixture{
		messaging: &mockMessaging{},
		reply:     &mockReply{Reply: "Hi! 👋"},
		gate:      entities.NewProcessingGate(writesEnabled),
		logs:      logs,
	}
	f.svc = NewChannelService(log, f.reply, f.messaging, staticPrompt("system prompt"), f.gate)
	return f
}

func newMessage(text string, isFromMe bool, chats ...string) *dto.NewMessageEvent {
	e := &dto.NewMessageEvent{Data: dto.Message{GUID: "msg-1", Text: text, IsFromMe: isFromMe}}
	for _, guid := range chats {
		e.Data.Chats = append(e.Data.Chats, dto.Chat{GUID: guid})
	}
	return e
}

func TestDispatch_NewMessageReply(t *testing.T) {
	f := newFixture(true)

	status := f.svc.Dispatch(context.Background(), newMessage("Hello", false, "X"))

	assert.Equal(t, StatusOK, status)
	require.Len(t, f.reply.Calls, 1)
	assert.Equal(t, "Hello", f.reply.Calls[0].Prompt)
	assert.Equal(t, "system prompt", f.reply.Calls[0].SystemPrompt)
	assert.Equal(t, []string{"X"}, f.messaging.Read)
	assert.Equal(t, []sentText{{ChatGUID: "X", Message: "Hi! 👋"}}, f.messaging.Sent)
}

func TestDispatch_PromptKeepsOriginalText(t *testing.T) {
	f := newFixture(true)

	f.svc.Dispatch(context.Background(), newMessage("  What's UP?  ", false, "X"))

	require.Len(t, f.reply.Calls, 1)
	assert.Equal(t, "  What's UP?  ", f.reply.Calls[0].Prompt)
}

func TestDispatch_RepliesToFirstChatOnly(t *testing.T) {
	f := newFixture(true)

	status := f.svc.Dispatch(context.Background(), newMessage("Hello", false, "first", "second"))

	assert.Equal(t, StatusOK, status)
	assert.Equal(t, []string{"first"}, f.messaging.Read)
	require.Len(t, f.messaging.Sent, 1)
	assert.Equal(t, "first", f.messaging.Sent[0].ChatGUID)
}

func TestDispatch_NoChats(t *testing.T) {
	for _, text := range []string{"Hello", "alpha off", ""} {
		f := newFixture(true)

		status := f.svc.Dispatch(context.Background(), newMessage(text, false))

		assert.Equal(t, StatusError, status, text)
		assert.Empty(t, f.messaging.Sent, text)
		assert.Empty(t, f.messaging.Read, text)
		assert.Empty(t, f.reply.Calls, text)
		assert.True(t, f.gate.Active(), text)
		assert.Contains(t, f.logs.String(), "No chat found in payload")
	}
}

func TestDispatch_FromMeIsSuppressed(t *testing.T) {
	f := newFixture(true)

	status := f.svc.Dispatch(context.Background(), newMessage("Hello from my phone", true, "X"))

	assert.Equal(t, StatusOK, status)
	assert.Empty(t, f.reply.Calls)
	assert.Empty(t, f.messaging.Sent)
	assert.Equal(t, []string{"X"}, f.messaging.Read)
}

func TestDispatch_EmptyTextIsSuppressed(t *testing.T) {
	for _, text := range []string{"", "   \n\t"} {
		f := newFixture(true)

		status := f.svc.Dispatch(context.Background(), newMessage(text, false, "X"))

		assert.Equal(t, StatusOK, status)
		assert.Empty(t, f.reply.Calls)
		assert.Empty(t, f.messaging.Sent)
	}
}

func TestDispatch_ControlCommandsInProduction(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, newMessage("alpha off", false, "X")))
	assert.False(t, f.gate.Active())
	assert.Equal(t, entities.ProcessingSuspended, f.svc.ProcessingState())

	assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, newMessage("Hello?", false, "X")))
	assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, newMessage("Anyone there?", false, "Y")))
	assert.Empty(t, f.reply.Calls, "no reply while suspended")

	assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, newMessage("alpha on", false, "X")))
	assert.True(t, f.gate.Active())

	assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, newMessage("Hello again", false, "X")))
	require.Len(t, f.reply.Calls, 1)
	assert.Equal(t, "Hello again", f.reply.Calls[0].Prompt)

	assert.Equal(t, []sentText{
		{ChatGUID: "X", Message: DisabledReply},
		{ChatGUID: "X", Message: EnabledReply},
		{ChatGUID: "X", Message: "Hi! 👋"},
	}, f.messaging.Sent)
}

func TestDispatch_ControlCommandsDoNotMarkRead(t *testing.T) {
	f := newFixture(true)

	f.svc.Dispatch(context.Background(), newMessage("alpha off", false, "X"))

	assert.Empty(t, f.messaging.Read)
	assert.Empty(t, f.reply.Calls)
}

func TestDispatch_ControlCommandsOutsideProduction(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, newMessage("alpha off", false, "X")))
	require.Len(t, f.messaging.Sent, 1)
	assert.Equal(t, DisabledReply, f.messaging.Sent[0].Message)
	assert.True(t, f.gate.Active(), "flag must not change outside production")

	assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, newMessage("Hello", false, "X")))
	require.Len(t, f.reply.Calls, 1, "replies continue after the disabled acknowledgement")
}

func TestDispatch_ControlCommandMatching(t *testing.T) {
	tests := []struct {
		text    string
		control bool
	}{
		{"alpha off", true},
		{"  ALPHA OFF  ", true},
		{"Alpha Off\n", true},
		{"alpha  off", false},
		{"alpha off please", false},
		{"alphaoff", false},
		{"ALPHA ON", true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f := newFixture(true)

			status := f.svc.Dispatch(context.Background(), newMessage(tt.text, false, "X"))

			assert.Equal(t, StatusOK, status)
			if tt.control {
				assert.Empty(t, f.reply.Calls)
				require.Len(t, f.messaging.Sent, 1)
				assert.Contains(t, []string{DisabledReply, EnabledReply}, f.messaging.Sent[0].Message)
			} else {
				assert.Len(t, f.reply.Calls, 1)
				assert.True(t, f.gate.Active())
			}
		})
	}
}

func TestDispatch_ControlCommandFromMe(t *testing.T) {
	f := newFixture(true)

	status := f.svc.Dispatch(context.Background(), newMessage("alpha off", true, "X"))

	assert.Equal(t, StatusOK, status)
	assert.False(t, f.gate.Active(), "control commands are honoured before the from-me check")
}

func TestDispatch_ControlAckFailure(t *testing.T) {
	f := newFixture(true)
	f.messaging.SendErr = errors.New("bridge down")

	status := f.svc.Dispatch(context.Background(), newMessage("alpha off", false, "X"))

	assert.Equal(t, StatusError, status)
	assert.False(t, f.gate.Active())
	assert.Len(t, f.messaging.Sent, 1)
}

func TestDispatch_MarkReadFailureIsNotFatal(t *testing.T) {
	f := newFixture(true)
	f.messaging.ReadErr = errors.New("chat not found")

	status := f.svc.Dispatch(context.Background(), newMessage("Hello", false, "X"))

	assert.Equal(t, StatusOK, status)
	require.Len(t, f.messaging.Sent, 1)
	assert.Contains(t, f.logs.String(), "Failed to mark chat as read")
}

func TestDispatch_GenerationFailureSendsApology(t *testing.T) {
	f := newFixture(true)
	f.reply.Err = ErrEmptyReply

	status := f.svc.Dispatch(context.Background(), newMessage("Hello", false, "X"))

	assert.Equal(t, StatusError, status)
	require.Len(t, f.messaging.Sent, 1)
	assert.Equal(t, "X", f.messaging.Sent[0].ChatGUID)
	assert.Contains(t, f.messaging.Sent[0].Message, "Sorry, I encountered an error:\n\n")
	assert.Contains(t, f.messaging.Sent[0].Message, ErrEmptyReply.Error())
}

func TestDispatch_SendFailureSendsApology(t *testing.T) {
	f := newFixture(true)
	f.messaging.SendErr = errors.New("bridge rejected message")
	f.messaging.failOnly = func(message string) bool { return message == "Hi! 👋" }

	status := f.svc.Dispatch(context.Background(), newMessage("Hello", false, "X"))

	assert.Equal(t, StatusError, status)
	require.Len(t, f.messaging.Sent, 2)
	assert.Contains(t, f.messaging.Sent[1].Message, "bridge rejected message")
}

func TestDispatch_ApologyFailureStillReportsError(t *testing.T) {
	f := newFixture(true)
	f.reply.Err = errors.New("quota exceeded")
	f.messaging.SendErr = errors.New("bridge down")

	status := f.svc.Dispatch(context.Background(), newMessage("Hello", false, "X"))

	assert.Equal(t, StatusError, status)
	assert.Len(t, f.messaging.Sent, 1)
	assert.Contains(t, f.logs.String(), "Failed to send error message")
}

func TestDispatch_PanicBecomesError(t *testing.T) {
	f := newFixture(true)
	f.reply.Panic = true

	var status string
	assert.NotPanics(t, func() {
		status = f.svc.Dispatch(context.Background(), newMessage("Hello", false, "X"))
	})
	assert.Equal(t, StatusError, status)
	assert.Contains(t, f.logs.String(), "Recovered from panic")
}

func TestDispatch_ObservedEventsWhileActive(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	events := []dto.WebhookEvent{
		&dto.TypingIndicatorEvent{Data: dto.TypingIndicator{Display: true, GUID: "chat-t"}},
		&dto.UpdatedMessageEvent{Data: dto.Message{GUID: "m-u", Chats: []dto.Chat{{GUID: "chat-u"}}}},
		&dto.ChatReadStatusChangedEvent{Data: dto.ChatReadStatus{ChatGUID: "chat-r", Read: true}},
	}
	for _, e := range events {
		assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, e))
	}

	logs := f.logs.String()
	assert.Contains(t, logs, `"msg":"Typing indicator"`)
	assert.Contains(t, logs, `"chat_guid":"chat-t"`)
	assert.Contains(t, logs, `"msg":"Updated message"`)
	assert.Contains(t, logs, `"message_guid":"m-u"`)
	assert.Contains(t, logs, `"msg":"Chat read status changed"`)
	assert.Contains(t, logs, `"read":true`)
	assert.Empty(t, f.messaging.Sent)
	assert.Empty(t, f.messaging.Read)
	assert.Empty(t, f.reply.Calls)
}

func TestDispatch_ObservedEventsWhileSuspended(t *testing.T) {
	f := newFixture(true)
	f.gate.Suspend()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, &dto.TypingIndicatorEvent{Data: dto.TypingIndicator{Display: true, GUID: "g"}}))
	}
	assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, &dto.UpdatedMessageEvent{Data: dto.Message{GUID: "m"}}))
	assert.Equal(t, StatusOK, f.svc.Dispatch(ctx, &dto.ChatReadStatusChangedEvent{Data: dto.ChatReadStatus{ChatGUID: "g"}}))

	assert.Empty(t, f.logs.String())
	assert.Empty(t, f.messaging.Sent)
	assert.Empty(t, f.messaging.Read)
}

func TestDispatch_NilEvent(t *testing.T) {
	f := newFixture(true)
	assert.Equal(t, StatusError, f.svc.Dispatch(context.Background(), nil))
}

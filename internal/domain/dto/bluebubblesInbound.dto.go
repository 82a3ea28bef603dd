package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventType string

const (
	EventNewMessage            EventType = "new-message"
	EventUpdatedMessage        EventType = "updated-message"
	EventTypingIndicator       EventType = "typing-indicator"
	EventChatReadStatusChanged EventType = "chat-read-status-changed"
)

// ErrUnknownEventType is returned when the webhook envelope carries a type
// the relay does not handle.
var ErrUnknownEventType = errors.New("unknown webhook event type")

// WebhookEvent is one delivery from the bridge. The set of implementations is
// closed: NewMessageEvent, UpdatedMessageEvent, TypingIndicatorEvent and
// ChatReadStatusChangedEvent.
type WebhookEvent interface {
	Type() EventType
	isWebhookEvent()
}

type NewMessageEvent struct {
	Data Message `json:"data"`
}

type UpdatedMessageEvent struct {
	Data Message `json:"data"`
}

type TypingIndicatorEvent struct {
	Data TypingIndicator `json:"data"`
}

type ChatReadStatusChangedEvent struct {
	Data ChatReadStatus `json:"data"`
}

func (*NewMessageEvent) Type() EventType            { return EventNewMessage }
func (*UpdatedMessageEvent) Type() EventType        { return EventUpdatedMessage }
func (*TypingIndicatorEvent) Type() EventType       { return EventTypingIndicator }
func (*ChatReadStatusChangedEvent) Type() EventType { return EventChatReadStatusChanged }

func (*NewMessageEvent) isWebhookEvent()            {}
func (*UpdatedMessageEvent) isWebhookEvent()        {}
func (*TypingIndicatorEvent) isWebhookEvent()       {}
func (*ChatReadStatusChangedEvent) isWebhookEvent() {}

type Handle struct {
	OriginalRowID     int     `json:"originalROWID"`
	Address           string  `json:"address"`
	Service           string  `json:"service"`
	UncanonicalizedID *string `json:"uncanonicalizedId"`
	Country           string  `json:"country"`
}

type Chat struct {
	OriginalRowID  int    `json:"originalROWID"`
	GUID           string `json:"guid"`
	Style          int    `json:"style"`
	ChatIdentifier string `json:"chatIdentifier"`
	IsArchived     bool   `json:"isArchived"`
	DisplayName    string `json:"displayName"`
}

type AttachmentMetadata struct {
	Size   *int `json:"size"`
	Height int  `json:"height"`
	Width  int  `json:"width"`
}

type Attachment struct {
	OriginalRowID int                 `json:"originalROWID"`
	GUID          string              `json:"guid"`
	UTI           string              `json:"uti"`
	MimeType      string              `json:"mimeType"`
	TransferName  string              `json:"transferName"`
	TotalBytes    int64               `json:"totalBytes"`
	Height        int                 `json:"height"`
	Width         int                 `json:"width"`
	Metadata      *AttachmentMetadata `json:"metadata"`
}

// Message is the payload of new-message and updated-message deliveries.
// Dates are epoch milliseconds as sent by the bridge.
type Message struct {
	OriginalRowID         int          `json:"originalROWID"`
	GUID                  string       `json:"guid"`
	Text                  string       `json:"text"`
	AttributedBody        any          `json:"attributedBody,omitempty"`
	Handle                *Handle      `json:"handle"`
	HandleID              int          `json:"handleId"`
	OtherHandle           int          `json:"otherHandle"`
	Attachments           []Attachment `json:"attachments"`
	Subject               *string      `json:"subject"`
	Error                 int          `json:"error"`
	DateCreated           int64        `json:"dateCreated"`
	DateRead              *int64       `json:"dateRead"`
	DateDelivered         *int64       `json:"dateDelivered"`
	DateEdited            *int64       `json:"dateEdited,omitempty"`
	DateRetracted         *int64       `json:"dateRetracted,omitempty"`
	IsFromMe              bool         `json:"isFromMe"`
	HasDDResults          bool         `json:"hasDdResults"`
	IsArchived            bool         `json:"isArchived"`
	ItemType              int          `json:"itemType"`
	GroupTitle            *string      `json:"groupTitle"`
	GroupActionType       int          `json:"groupActionType"`
	BalloonBundleID       *string      `json:"balloonBundleId"`
	AssociatedMessageGUID *string      `json:"associatedMessageGuid"`
	AssociatedMessageType *string      `json:"associatedMessageType"`
	ExpressiveSendStyleID *string      `json:"expressiveSendStyleId"`
	ThreadOriginatorGUID  *string      `json:"threadOriginatorGuid"`
	ReplyToGUID           *string      `json:"replyToGuid,omitempty"`
	HasPayloadData        bool         `json:"hasPayloadData"`
	IsAudioMessage        *bool        `json:"isAudioMessage,omitempty"`
	IsAutoReply           *bool        `json:"isAutoReply,omitempty"`
	IsSystemMessage       *bool        `json:"isSystemMessage,omitempty"`
	WasDeliveredQuietly   *bool        `json:"wasDeliveredQuietly,omitempty"`
	DidNotifyRecipient    *bool        `json:"didNotifyRecipient,omitempty"`
	PartCount             *int         `json:"partCount,omitempty"`
	Chats                 []Chat       `json:"chats,omitempty"`
	MessageSummaryInfo    any          `json:"messageSummaryInfo,omitempty"`
	PayloadData           any          `json:"payloadData,omitempty"`
}

// CreatedAt converts DateCreated to a time. Zero when the bridge omitted it.
func (m Message) CreatedAt() time.Time {
	if m.DateCreated == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.DateCreated)
}

// PrimaryChat returns the first chat attached to the message.
func (m Message) PrimaryChat() (Chat, bool) {
	if len(m.Chats) == 0 {
		return Chat{}, false
	}
	return m.Chats[0], true
}

type TypingIndicator struct {
	Display bool   `json:"display"`
	GUID    string `json:"guid"`
}

type ChatReadStatus struct {
	ChatGUID string `json:"chatGuid"`
	Read     bool   `json:"read"`
}

type webhookEnvelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseWebhookEvent decodes a raw webhook body into its typed variant.
// Bodies with a missing or unknown type, or with a data object that does not
// match the variant, fail with a *ValidationError.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, invalid("body", fmt.Sprintf("malformed JSON: %v", err))
	}

	if envelope.Type == "" {
		return nil, invalid("type", "required")
	}

	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, invalid("data", "required")
	}

	var (
		event WebhookEvent
		err   error
	)
	switch envelope.Type {
	case EventNewMessage:
		e := &NewMessageEvent{}
		err = decodeData(data, &e.Data)
		event = e
	case EventUpdatedMessage:
		e := &UpdatedMessageEvent{}
		err = decodeData(data, &e.Data)
		event = e
	case EventTypingIndicator:
		e := &TypingIndicatorEvent{}
		err = decodeData(data, &e.Data)
		event = e
	case EventChatReadStatusChanged:
		e := &ChatReadStatusChangedEvent{}
		err = decodeData(data, &e.Data)
		event = e
	default:
		verr := &ValidationError{cause: ErrUnknownEventType}
		verr.add("type", fmt.Sprintf("unsupported value %q", envelope.Type))
		return nil, verr
	}
	if err != nil {
		return nil, err
	}

	if err := validateEvent(event); err != nil {
		return nil, err
	}
	return event, nil
}

func decodeData(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return invalid("data", fmt.Sprintf("does not match event type: %v", err))
	}
	return nil
}

func validateEvent(event WebhookEvent) error {
	verr := &ValidationError{}
	switch e := event.(type) {
	case *NewMessageEvent:
		validateMessage(verr, e.Data)
	case *UpdatedMessageEvent:
		validateMessage(verr, e.Data)
	case *TypingIndicatorEvent:
		if e.Data.GUID == "" {
			verr.add("data.guid", "required")
		}
	case *ChatReadStatusChangedEvent:
		if e.Data.ChatGUID == "" {
			verr.add("data.chatGuid", "required")
		}
	}
	if len(verr.Issues) > 0 {
		return verr
	}
	return nil
}

func validateMessage(verr *ValidationError, m Message) {
	if m.GUID == "" {
		verr.add("data.guid", "required")
	}
	for i, chat := range m.Chats {
		if chat.GUID == "" {
			verr.add(fmt.Sprintf("data.chats[%d].guid", i), "required")
		}
	}
}

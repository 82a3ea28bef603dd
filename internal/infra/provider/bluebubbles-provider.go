package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"imessage-relay/internal/domain/dto"
	"imessage-relay/internal/infra/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrPrivateAPIRequired = errors.New("option requires the private-api send method")

// APIError is returned when an upstream service answers with a non-2xx status.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// SendOptions are the optional delivery settings of a text send. Zero values
// mean: fresh temp GUID, private-api method, no subject, effect or reply.
type SendOptions struct {
	TempGUID            string
	Method              dto.SendMethod
	Subject             string
	EffectID            string
	SelectedMessageGUID string
	PartIndex           *int
}

type BlueBubblesProvider struct {
	Logger     *logger.Logger
	HttpClient *http.Client
	BaseURL    string
	Password   string
}

func NewBlueBubblesProvider(logger *logger.Logger, httpClient *http.Client, baseURL, password string) *BlueBubblesProvider {
	return &BlueBubblesProvider{Logger: logger, HttpClient: httpClient, BaseURL: baseURL, Password: password}
}

// SendText posts a text message to a chat through the bridge.
//
// Subject, effect and reply-to all need the private API; asking for them with
// the apple-script method is rejected before any request is made. The temp
// GUID lets the bridge drop duplicate deliveries of the same send.
func (th *BlueBubblesProvider) SendText(ctx context.Context, chatGUID, message string, opts SendOptions) (*dto.BridgeResponse, error) {
	if chatGUID == "" || message == "" {
		return nil, fmt.Errorf("chat guid and message cannot be empty")
	}

	payload, err := buildSendTextRequest(chatGUID, message, opts)
	if err != nil {
		return nil, err
	}

	th.Logger.Debug("Sending message to bridge", logrus.Fields{
		"chat_guid": chatGUID,
		"temp_guid": payload.TempGUID,
		"method":    payload.Method,
	})

	res, err := th.post(ctx, "/message/text", payload)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Sending message to bridge failed: %v", err), logrus.Fields{"chat_guid": chatGUID})
		return nil, err
	}

	th.Logger.Info("Message sent", logrus.Fields{"chat_guid": chatGUID, "temp_guid": payload.TempGUID, "status": res.Status})
	return res, nil
}

// MarkChatRead clears the unread state of a chat on the bridge.
func (th *BlueBubblesProvider) MarkChatRead(ctx context.Context, chatGUID string) error {
	if chatGUID == "" {
		return fmt.Errorf("chat guid cannot be empty")
	}

	res, err := th.post(ctx, "/chat/"+url.PathEscape(chatGUID)+"/read", nil)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Marking chat as read failed: %v", err), logrus.Fields{"chat_guid": chatGUID})
		return err
	}

	th.Logger.Info("Chat marked as read", logrus.Fields{"chat_guid": chatGUID, "status": res.Status})
	return nil
}

func buildSendTextRequest(chatGUID, message string, opts SendOptions) (dto.SendTextRequest, error) {
	method := opts.Method
	if method == "" {
		method = dto.SendMethodPrivateAPI
	}
	if method != dto.SendMethodPrivateAPI && method != dto.SendMethodAppleScript {
		return dto.SendTextRequest{}, fmt.Errorf("unsupported send method %q", method)
	}

	if method != dto.SendMethodPrivateAPI {
		switch {
		case opts.Subject != "":
			return dto.SendTextRequest{}, fmt.Errorf("subject: %w", ErrPrivateAPIRequired)
		case opts.EffectID != "":
			return dto.SendTextRequest{}, fmt.Errorf("effect: %w", ErrPrivateAPIRequired)
		case opts.SelectedMessageGUID != "":
			return dto.SendTextRequest{}, fmt.Errorf("reply: %w", ErrPrivateAPIRequired)
		}
	}

	if opts.EffectID != "" && !dto.IsKnownEffect(opts.EffectID) {
		return dto.SendTextRequest{}, fmt.Errorf("unknown effect id %q", opts.EffectID)
	}

	tempGUID := opts.TempGUID
	if tempGUID == "" {
		tempGUID = uuid.NewString()
	}

	req := dto.SendTextRequest{
		ChatGUID: chatGUID,
		TempGUID: tempGUID,
		Message:  message,
		Method:   method,
	}
	if opts.Subject != "" {
		req.Subject = &opts.Subject
	}
	if opts.EffectID != "" {
		req.EffectID = &opts.EffectID
	}
	if opts.SelectedMessageGUID != "" {
		req.SelectedMessageGUID = &opts.SelectedMessageGUID
		partIndex := 0
		if opts.PartIndex != nil {
			partIndex = *opts.PartIndex
		}
		req.PartIndex = &partIndex
	}
	return req, nil
}

// post sends body as JSON to the bridge path, authenticating with the shared
// password query parameter. A nil body sends no payload.
func (th *BlueBubblesProvider) post(ctx context.Context, path string, body any) (*dto.BridgeResponse, error) {
	endpoint, err := url.Parse(th.BaseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge url: %w", err)
	}
	query := endpoint.Query()
	query.Set("password", th.Password)
	endpoint.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := th.HttpClient.Do(req)
	if err != nil {
		// the url error embeds the password query parameter
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("HTTP request to %s failed: %w", path, urlErr.Err)
		}
		return nil, fmt.Errorf("HTTP request to %s failed: %w", path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{Service: "bridge", StatusCode: res.StatusCode, Body: string(raw)}
	}

	bridgeRes := &dto.BridgeResponse{Status: res.StatusCode}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, bridgeRes); err != nil {
			th.Logger.Warn(fmt.Sprintf("Bridge answered with a non-JSON body: %v", err))
			bridgeRes.Status = res.StatusCode
		}
	}
	return bridgeRes, nil
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"imessage-relay/internal/domain/dto"
	"imessage-relay/internal/infra/logger"
	"imessage-relay/internal/infra/provider"

	"github.com/sirupsen/logrus"
)

var ErrEmptyReply = errors.New("no text returned from Gemini")

// Every adjustable harm category is switched off.
var harmCategories = []string{
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_CIVIC_INTEGRITY",
}

type GeminiReplyService struct {
	Logger       *logger.Logger
	HttpClient   *http.Client
	BaseURL      string
	APIKey       string
	Model        string
	GoogleSearch bool
}

func NewGeminiReplyService(logger *logger.Logger, httpClient *http.Client, baseURL, apiKey, model string, googleSearch bool) *GeminiReplyService {
	return &GeminiReplyService{
		Logger:       logger,
		HttpClient:   httpClient,
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		GoogleSearch: googleSearch,
	}
}

// GenerateReply asks Gemini for a plain-text answer to prompt, steered by
// systemPrompt. The returned text is trimmed; an empty answer is an error.
func (th *GeminiReplyService) GenerateReply(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	payload, err := json.Marshal(th.buildRequest(prompt, systemPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", th.BaseURL, url.PathEscape(th.Model), url.QueryEscape(th.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := th.HttpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		var apiRes dto.GeminiResponse
		if json.Unmarshal(body, &apiRes) == nil && apiRes.Error != nil {
			return "", fmt.Errorf("gemini API error (%s): %s", apiRes.Error.Status, apiRes.Error.Message)
		}
		return "", &provider.APIError{Service: "gemini", StatusCode: res.StatusCode, Body: string(body)}
	}

	var apiRes dto.GeminiResponse
	if err := json.Unmarshal(body, &apiRes); err != nil {
		return "", fmt.Errorf("failed to unmarshal gemini response: %w", err)
	}
	if apiRes.Error != nil {
		return "", fmt.Errorf("gemini API error (%s): %s", apiRes.Error.Status, apiRes.Error.Message)
	}

	var text strings.Builder
	if len(apiRes.Candidates) > 0 && apiRes.Candidates[0].Content != nil {
		for _, part := range apiRes.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}

	reply := strings.TrimSpace(text.String())
	if reply == "" {
		return "", ErrEmptyReply
	}

	fields := logrus.Fields{"model": th.Model, "text": reply}
	if apiRes.UsageMetadata != nil {
		fields["prompt_tokens"] = apiRes.UsageMetadata.PromptTokenCount
		fields["reply_tokens"] = apiRes.UsageMetadata.CandidatesTokenCount
	}
	th.Logger.Info("Generated text", fields)
	return reply, nil
}

func (th *GeminiReplyService) buildRequest(prompt, systemPrompt string) dto.GeminiRequest {
	req := dto.GeminiRequest{
		Contents: []dto.GeminiContent{{
			Role:  "user",
			Parts: []dto.GeminiPart{{Text: prompt}},
		}},
		GenerationConfig: &dto.GeminiGenerationConfig{
			ResponseModalities: []string{"TEXT"},
		},
	}

	if systemPrompt != "" {
		req.SystemInstruction = &dto.GeminiContent{
			Parts: []dto.GeminiPart{{Text: systemPrompt}},
		}
	}

	for _, category := range harmCategories {
		req.SafetySettings = append(req.SafetySettings, dto.GeminiSafetySetting{
			Category:  category,
			Threshold: "OFF",
		})
	}

	if th.GoogleSearch {
		req.Tools = []dto.GeminiTool{{GoogleSearch: &struct{}{}}}
	}
	return req
}

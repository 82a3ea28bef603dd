package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"imessage-relay/internal/domain/dto"
	Iservices "imessage-relay/internal/domain/interfaces/services"
	"imessage-relay/internal/infra/logger"
	"imessage-relay/internal/infra/services"

	"github.com/sirupsen/logrus"
)

const maxWebhookBody = 1 << 20

type WebhookHandlers struct {
	Logger         *logger.Logger
	ChannelService Iservices.IChannelServices
}

func NewWebhookHandlers(logger *logger.Logger, channelService Iservices.IChannelServices) *WebhookHandlers {
	return &WebhookHandlers{Logger: logger, ChannelService: channelService}
}

// Webhook receives deliveries from the bridge.
//
// Bodies that fail validation never reach the dispatcher: every issue is
// logged with the raw body and the bridge gets 422 with "Error". Accepted
// deliveries are always answered with 200 and the plain-text dispatch status,
// "OK" or "Error".
func (th *WebhookHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to read webhook body: %v", err))
		writeStatus(w, http.StatusBadRequest, services.StatusError)
		return
	}
	if len(body) > maxWebhookBody {
		th.Logger.Error("Webhook body too large", logrus.Fields{"limit": maxWebhookBody})
		writeStatus(w, http.StatusRequestEntityTooLarge, services.StatusError)
		return
	}

	event, err := dto.ParseWebhookEvent(body)
	if err != nil {
		th.logValidationError(err, body)
		writeStatus(w, http.StatusUnprocessableEntity, services.StatusError)
		return
	}

	// The delivery runs to completion even if the bridge hangs up.
	status := th.ChannelService.Dispatch(context.WithoutCancel(r.Context()), event)
	writeStatus(w, http.StatusOK, status)
}

func (th *WebhookHandlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	response := map[string]string{
		"status":     "healthy",
		"processing": string(th.ChannelService.ProcessingState()),
	}
	json.NewEncoder(w).Encode(response)
}

func (th *WebhookHandlers) logValidationError(err error, body []byte) {
	var verr *dto.ValidationError
	if !errors.As(err, &verr) {
		th.Logger.Error(fmt.Sprintf("Validation error: %v", err), logrus.Fields{"body": string(body)})
		return
	}
	for _, issue := range verr.Issues {
		th.Logger.Error("Validation error", logrus.Fields{
			"field":  issue.Field,
			"reason": issue.Reason,
			"body":   string(body),
		})
	}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(status))
}

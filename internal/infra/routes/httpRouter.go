package routes

import (
	"net/http"

	"imessage-relay/internal/infra/handlers"

	"github.com/gorilla/mux"
)

type Routes struct {
	Mux             *mux.Router
	WebhookHandlers *handlers.WebhookHandlers
}

func NewRoutes(mux *mux.Router, webhookHandlers *handlers.WebhookHandlers) *Routes {
	return &Routes{mux, webhookHandlers}
}

func (r *Routes) Init() {
	r.Mux.HandleFunc("/webhook", r.WebhookHandlers.Webhook).Methods(http.MethodPost)
	r.Mux.HandleFunc("/healthCheck", r.WebhookHandlers.HealthCheck).Methods(http.MethodGet)
}

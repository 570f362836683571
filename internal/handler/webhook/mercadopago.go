package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/escriba-app/escriba/internal/service"
)

// MercadoPagoHandler receives MercadoPago webhook notifications.
type MercadoPagoHandler struct {
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewMercadoPagoHandler creates a new MercadoPago webhook handler.
func NewMercadoPagoHandler(subscriptions service.SubscriptionService, logger *slog.Logger) *MercadoPagoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MercadoPagoHandler{
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// notificationPayload is the JSON body MercadoPago posts to the webhook URL.
type notificationPayload struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// HandleNotification processes POST /webhooks/mercadopago.
//
// Always responds 200 with {"received": true}: a non-2xx answer makes the
// provider retry with backoff and eventually disable the endpoint, so every
// failure is logged and swallowed instead. Reconciliation re-fetches the
// preapproval from the API; nothing in the payload is trusted beyond the
// topic and resource id.
//
// MercadoPago sends the topic and resource id both in the JSON body and as
// query parameters (type / data.id); the body wins when present.
func (h *MercadoPagoHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	n := service.GatewayNotification{
		Type:   r.URL.Query().Get("type"),
		DataID: r.URL.Query().Get("data.id"),
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
	} else if len(body) > 0 {
		var payload notificationPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			h.logger.Warn("webhook body is not valid JSON", "error", err)
		} else {
			if payload.Type != "" {
				n.Type = payload.Type
			}
			if payload.Data.ID != "" {
				n.DataID = payload.Data.ID
			}
		}
	}

	h.logger.Info("webhook notification received", "type", n.Type, "data_id", n.DataID)

	if n.DataID != "" {
		h.subscriptions.ProcessGatewayNotification(r.Context(), n)
	} else {
		h.logger.Warn("webhook notification carries no resource id")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}

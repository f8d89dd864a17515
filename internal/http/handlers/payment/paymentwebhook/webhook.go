// Package paymentwebhook принимает уведомления PayPal о смене состояния подписок.
//
// Обработчик отвечает 200 на любое корректно разобранное событие, включая
// неизвестные и устаревшие. 5xx возвращается только при сбое хранилища,
// чтобы шлюз повторил доставку.
package paymentwebhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/paymentprovider"
)

const maxBodyBytes = 1 << 20

// Заголовки подписи уведомления PayPal.
const (
	HeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
	HeaderCertURL          = "PAYPAL-CERT-URL"
	HeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

// Service применяет событие шлюза к подписке.
type Service interface {
	HandleWebhook(ctx context.Context, ev models.WebhookEvent) error
}

// Verifier проверяет подпись уведомления.
type Verifier interface {
	VerifyWebhookSignature(ctx context.Context, headers paymentprovider.WebhookHeaders, body []byte) (bool, error)
}

// Handler обрабатывает уведомления шлюза.
type Handler struct {
	log      *slog.Logger // Логгер для записи информации и ошибок
	service  Service
	verifier Verifier // nil отключает проверку подписи
}

// New создает новый Handler. verifier может быть nil.
func New(log *slog.Logger, service Service, verifier Verifier) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
	}
}

// ServeHTTP godoc
// @Summary Уведомление PayPal
// @Description Принимает события BILLING.SUBSCRIPTION.* и PAYMENT.SALE.COMPLETED.
// @Tags Webhooks
// @Accept  json
// @Produce  json
// @Param request body paymentprovider.WebhookEvent true "Событие PayPal"
// @Success 200 {object} map[string]bool "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело"
// @Failure 401 {object} response.ErrorResponse "Подпись не прошла проверку"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки"
// @Router /webhooks/paypal [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	if h.verifier != nil {
		valid, err := h.verifier.VerifyWebhookSignature(r.Context(), headersOf(r), body)
		if err != nil {
			log.Error("failed to verify webhook signature", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to verify signature"))
			return
		}
		if !valid {
			log.Error("invalid webhook signature")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid signature"))
			return
		}
	}

	var payload paymentprovider.WebhookEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	ev := models.WebhookEvent{
		ID:             payload.ID,
		Type:           payload.EventType,
		SubscriptionID: payload.SubscriptionID(),
		OccurredAt:     payload.CreateTime,
	}
	log.Info("webhook received",
		slog.String("event_id", ev.ID),
		slog.String("event", ev.Type),
		slog.String("subscription_id", ev.SubscriptionID),
	)

	if err := h.service.HandleWebhook(r.Context(), ev); err != nil {
		log.Error("failed to process webhook event", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process webhook"))
		return
	}

	render.JSON(w, r, map[string]bool{"received": true})
}

func headersOf(r *http.Request) paymentprovider.WebhookHeaders {
	return paymentprovider.WebhookHeaders{
		AuthAlgo:         r.Header.Get(HeaderAuthAlgo),
		CertURL:          r.Header.Get(HeaderCertURL),
		TransmissionID:   r.Header.Get(HeaderTransmissionID),
		TransmissionSig:  r.Header.Get(HeaderTransmissionSig),
		TransmissionTime: r.Header.Get(HeaderTransmissionTime),
	}
}

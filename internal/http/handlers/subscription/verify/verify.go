// Package verify реализует HTTP-обработчик сверки подписки с платёжным шлюзом.
//
// Ответ отдаётся без общей обёртки response.Response: клиентская страница
// возврата из PayPal ожидает поля success, status и subscription на верхнем уровне.
package verify

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/services/subscription"
)

// Service описывает интерфейс сверки подписки.
type Service interface {
	Verify(ctx context.Context, subscriptionID string) (*subscription.VerifyResult, error)
}

// Handler обрабатывает запросы сверки подписки.
type Handler struct {
	log     *slog.Logger
	service Service
	details bool
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, details bool) *Handler {
	return &Handler{
		log:     log,
		service: service,
		details: details,
	}
}

// ServeHTTP godoc
// @Summary Сверить подписку
// @Description Запрашивает подписку в PayPal и приводит к ней локальное состояние.
// @Tags Subscriptions
// @Produce  json
// @Param id query string true "Идентификатор подписки PayPal"
// @Success 200 {object} subscription.VerifyResult "Подписка сверена"
// @Failure 400 {object} response.ErrorResponse "Не передан идентификатор"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного шлюза"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /verify-subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.verify"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		log.Error("subscription id is missing")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("subscription id is required"))
		return
	}

	res, err := h.service.Verify(r.Context(), id)
	if err != nil {
		log.Error("failed to verify subscription", sl.Err(err), slog.String("subscription_id", id))
		code, resp := response.FromError(err, "failed to verify subscription", h.details)
		render.Status(r, code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("subscription verified", slog.String("subscription_id", id), slog.String("status", res.Status))
	render.JSON(w, r, res)
}

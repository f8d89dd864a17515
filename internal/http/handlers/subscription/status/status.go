// Package status реализует HTTP-обработчик получения состояния подписки пользователя.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/services/subscription"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
)

// Service описывает интерфейс получения состояния подписки.
type Service interface {
	Status(ctx context.Context, sess session.Session) (*subscription.StatusResult, error)
}

// Handler обрабатывает запросы состояния подписки.
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
// @Summary Состояние подписки
// @Description Возвращает состояние подписки и пробного периода текущего пользователя.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} response.Response{data=subscription.StatusResult} "Состояние подписки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/status [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess, ok := session.FromContext(r.Context())
	if !ok {
		log.Error("session not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	res, err := h.service.Status(r.Context(), sess)
	if err != nil {
		log.Error("failed to get subscription status", sl.Err(err))
		code, resp := response.FromError(err, "failed to get subscription status", h.details)
		render.Status(r, code)
		render.JSON(w, r, resp)
		return
	}

	render.JSON(w, r, response.OKWithData(res))
}

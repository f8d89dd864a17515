// Package cancel реализует HTTP-обработчик отмены подписки пользователя.
package cancel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/services/subscription"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
)

// Request — тело запроса на отмену. Пустой SubscriptionID означает текущую подписку.
type Request struct {
	SubscriptionID string `json:"subscription_id,omitempty" validate:"max=128"`
	Reason         string `json:"reason,omitempty" validate:"max=128"`
}

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Cancel(ctx context.Context, sess session.Session, subscriptionID, reason string) (*subscription.CancelResult, error)
}

// Handler обрабатывает запросы на отмену подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
	details  bool
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, details bool) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
		details:  details,
	}
}

// ServeHTTP godoc
// @Summary Отменить подписку
// @Description Отменяет подписку в PayPal и локально, фиксируя использованные дни пробного периода.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body Request false "Идентификатор подписки и причина отмены"
// @Success 200 {object} response.Response{data=subscription.CancelResult} "Подписка отменена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при отмене подписки"
// @Router /subscriptions/cancel [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Cancel(r.Context(), sess, req.SubscriptionID, req.Reason)
	if err != nil {
		log.Error("failed to cancel subscription", sl.Err(err))
		code, resp := response.FromError(err, "failed to cancel subscription", h.details)
		render.Status(r, code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("subscription cancelled",
		slog.String("subscription_id", res.SubscriptionID),
		slog.Int("trial_consumed_days", res.TrialConsumedDays),
		slog.Bool("already_cancelled", res.AlreadyCancelled),
	)
	render.JSON(w, r, response.OKWithData(res))
}

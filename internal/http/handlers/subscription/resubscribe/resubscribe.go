// Package resubscribe реализует HTTP-обработчик повторного оформления подписки.
//
// Сервис создаёт подписку в PayPal, применяя оставшиеся дни пробного периода,
// и возвращает ссылку, по которой пользователь подтверждает оплату.
package resubscribe

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
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/fingerprint"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/services/subscription"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
)

// Request — тело запроса на повторное оформление.
type Request struct {
	Plan              string `json:"plan,omitempty" validate:"max=64"`
	OldSubscriptionID string `json:"old_subscription_id,omitempty" validate:"max=128"`
}

// Service описывает интерфейс бизнес-логики повторного оформления.
type Service interface {
	Resubscribe(ctx context.Context, sess session.Session, req subscription.ResubscribeRequest, fingerprint string) (*subscription.ResubscribeResult, error)
}

// Handler обрабатывает запросы на повторное оформление подписки.
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
// @Summary Оформить подписку повторно
// @Description Создаёт новую подписку в PayPal с учётом оставшихся дней пробного периода.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body Request false "План и предыдущая подписка"
// @Success 200 {object} response.Response{data=subscription.ResubscribeResult} "Подписка создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "У пользователя уже есть текущая подписка"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного шлюза"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/resubscribe [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.resubscribe"
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

	res, err := h.service.Resubscribe(r.Context(), sess, subscription.ResubscribeRequest{
		Plan:              req.Plan,
		OldSubscriptionID: req.OldSubscriptionID,
	}, fingerprint.FromContext(r.Context()))
	if err != nil {
		log.Error("failed to resubscribe", sl.Err(err))
		code, resp := response.FromError(err, "failed to resubscribe", h.details)
		render.Status(r, code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("resubscribed",
		slog.String("subscription_id", res.SubscriptionID),
		slog.String("previous_subscription_id", res.PreviousSubscriptionID),
		slog.Int("trial_duration", res.TrialDuration),
	)
	render.JSON(w, r, response.OKWithData(res))
}

// Package create реализует HTTP-обработчик сохранения подписки, оформленной пользователем в платёжном шлюзе.
//
// Handler принимает JSON с идентификатором подписки шлюза, валидирует его, берёт сессию
// пользователя из контекста и вызывает сервис, который определяет право на пробный период
// и сохраняет запись. Ошибки сервиса переводятся в HTTP-статусы пакетом response.
package create

import (
	"context"
	"encoding/json"
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

// Handler управляет HTTP-запросами на сохранение новых подписок.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис жизненного цикла подписок
	validate *validator.Validate // Валидатор структуры входящих данных
	details  bool                // Добавлять текст ошибки в ответ
}

// Service описывает интерфейс бизнес-логики создания подписки.
type Service interface {
	Create(ctx context.Context, sess session.Session, checkout subscription.CheckoutResult, fingerprint string) (*subscription.CreateResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service, details bool) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
		details:  details,
	}
}

// ServeHTTP godoc
// @Summary Сохранить подписку
// @Description Сохраняет подписку, подтверждённую пользователем в PayPal, и определяет право на пробный период.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body subscription.CheckoutResult true "Результат оформления подписки в шлюзе"
// @Success 200 {object} response.Response{data=subscription.CreateResult} "Подписка сохранена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "У пользователя уже есть текущая подписка"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при сохранении подписки"
// @Router /subscriptions [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"
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

	var req subscription.CheckoutResult
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.String("subscription_id", req.SubscriptionID))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Create(r.Context(), sess, req, fingerprint.FromContext(r.Context()))
	if err != nil {
		log.Error("failed to create subscription", sl.Err(err))
		code, resp := response.FromError(err, "failed to store subscription", h.details)
		render.Status(r, code)
		render.JSON(w, r, resp)
		return
	}

	log.Info("subscription stored",
		slog.String("subscription_id", res.SubscriptionID),
		slog.Bool("on_trial", res.OnTrial),
		slog.Int("trial_duration", res.TrialDuration),
	)
	render.JSON(w, r, response.OKWithData(res))
}

// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате, а также
// переводит доменные ошибки сервиса подписок в HTTP-статусы.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки. Используется в аннотациях @Failure.
// Details заполняется только вне продакшн-окружения.
type ErrorResponse struct {
	Status                string                        `json:"status" example:"Error"`
	Error                 string                        `json:"error" example:"invalid request body"`
	Details               string                        `json:"details,omitempty"`
	ExistingSubscriptions []models.ExistingSubscription `json:"existingSubscriptions,omitempty"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает ErrorResponse с переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// FromError переводит ошибку сервиса в HTTP-статус и тело ответа.
// msg используется для ошибок, не имеющих доменного смысла.
// При withDetails в поле Details попадает текст исходной ошибки.
func FromError(err error, msg string, withDetails bool) (int, ErrorResponse) {
	var (
		code int
		resp ErrorResponse
		dup  *models.DuplicateSubscriptionError
		gw   *models.GatewayError
	)

	switch {
	case errors.As(err, &dup):
		code = http.StatusConflict
		resp = Error(dup.Error())
		resp.ExistingSubscriptions = dup.Existing
	case errors.Is(err, models.ErrActiveSubscriptionExists):
		code = http.StatusConflict
		resp = Error("an active subscription already exists")
	case errors.Is(err, models.ErrEmailTaken):
		code = http.StatusConflict
		resp = Error("email already belongs to another account")
	case errors.As(err, &gw):
		code = http.StatusBadGateway
		resp = Error("payment gateway error")
		if gw.Message != "" {
			resp.Error = gw.Message
		}
	case errors.Is(err, models.ErrSubscriptionNotFound):
		code = http.StatusNotFound
		resp = Error("subscription not found")
	case errors.Is(err, models.ErrUserNotFound):
		code = http.StatusNotFound
		resp = Error("user not found")
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInconsistentState):
		code = http.StatusNotFound
		resp = Error("subscription not found")
	case errors.Is(err, models.ErrUnauthenticated):
		code = http.StatusUnauthorized
		resp = Error("unauthorized")
	default:
		code = http.StatusInternalServerError
		resp = Error(msg)
	}

	if withDetails && err != nil {
		resp.Details = err.Error()
	}
	return code, resp
}

// ValidationError формирует ErrorResponse на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "alphanum":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers and letters", err.Field()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too long", err.Field()))
		case "printascii":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only printable characters", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return ErrorResponse{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

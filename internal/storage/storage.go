// Package storage описывает контракт хранилища сервиса подписок: учётные записи
// пользователей, записи подписок, журнал событий и список тестировщиков.
// Реализации: repository (PostgreSQL), mongo (MongoDB) и memory (в памяти процесса).
package storage

import (
	"context"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
)

// Repository — операции чтения и записи, доступные как вне, так и внутри транзакции.
type Repository interface {
	// GetUser возвращает пользователя или models.ErrUserNotFound.
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// SaveUser создаёт или полностью перезаписывает учётную запись.
	SaveUser(ctx context.Context, user *models.User) error
	// GetSubscription возвращает запись подписки или models.ErrSubscriptionNotFound.
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	// SaveSubscription создаёт или перезаписывает запись подписки.
	// Вторая запись в состоянии trial/active для того же пользователя
	// отклоняется с models.ErrActiveSubscriptionExists.
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	// ListSubscriptions возвращает записи пользователя в указанных состояниях,
	// самые свежие отмены первыми. Без состояний возвращает все записи.
	ListSubscriptions(ctx context.Context, userID string, statuses ...models.Status) ([]*models.Subscription, error)
	// FindByFingerprint возвращает записи с указанным отпечатком устройства в указанных состояниях.
	FindByFingerprint(ctx context.Context, fingerprint string, statuses ...models.Status) ([]*models.Subscription, error)
	// AppendEvent добавляет событие в журнал подписок.
	AppendEvent(ctx context.Context, event models.SubscriptionEvent) error
	// IsTester сообщает, числится ли e-mail в списке тестировщиков (без учёта регистра).
	IsTester(ctx context.Context, email string) (bool, error)
}

// Store — хранилище с поддержкой атомарных изменений нескольких документов.
type Store interface {
	Repository
	// InTx выполняет fn атомарно: либо применяются все записи, сделанные через repo, либо ни одна.
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	// Close освобождает соединения.
	Close(ctx context.Context) error
}

// StatusSet возвращает множество состояний для фильтрации.
func StatusSet(statuses []models.Status) map[models.Status]struct{} {
	set := make(map[models.Status]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

// StatusStrings переводит состояния в строки для запросов к базе.
func StatusStrings(statuses []models.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

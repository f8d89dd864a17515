// Package session переносит данные аутентифицированной сессии через context запроса.
package session

import "context"

// Session — идентичность текущего запроса, выданная провайдером аутентификации.
type Session struct {
	UserID string
	Email  string
}

type ctxKey struct{}

// WithSession возвращает контекст с сессией.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext извлекает сессию из контекста.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s.UserID != ""
}

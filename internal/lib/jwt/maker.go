// Package jwt реализует выпуск и проверку сессионных JWT провайдера идентичности.
//
// Сервис подписок сам учётными данными не управляет: он только проверяет подпись
// токена и извлекает из него идентификатор пользователя и e-mail.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга сессионных токенов.
type Maker interface {
	// GenerateToken выпускает токен для пользователя с указанным e-mail.
	GenerateToken(userID, email string) (string, error)
	// ParseToken возвращает claims проверенного токена.
	ParseToken(tokenStr string) (*SessionClaims, error)
}

// MakerImpl реализует Maker с подписью HS256 общим секретом.
type MakerImpl struct {
	secretKey string
	issuer    string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт новый экземпляр MakerImpl. Пустой issuer отключает проверку поля iss.
func NewJWTMaker(secretKey, issuer string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		issuer:    issuer,
		tokenTTL:  ttl,
	}
}

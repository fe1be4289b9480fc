// Package jwt реализует выпуск и проверку сессионных JWT токенов.
//
// Maker определяет интерфейс для создания и проверки токенов с идентификатором,
// именем и email пользователя. MakerImpl: реализация на общем секрете (HS256)
// с фиксированным сроком жизни.
package jwt

import (
	"time"
)

// DefaultTTL: срок жизни сессии по умолчанию.
const DefaultTTL = 7 * 24 * time.Hour

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GenerateToken выпускает токен для пользователя.
	GenerateToken(userUID, name, email string) (string, error)
	// ParseToken проверяет подпись и срок действия, возвращая claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
// Нулевой TTL заменяется на DefaultTTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

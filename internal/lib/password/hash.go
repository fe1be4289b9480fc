// Package password реализует хеширование и проверку паролей пользователей.
//
// GetHash создает bcrypt-хеш с фиксированной стоимостью Cost.
// CompareHash сверяет пароль с хешем, IsHash отличает bcrypt-хеш от
// унаследованного значения, сохраненного открытым текстом.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost: фиксированный коэффициент сложности bcrypt.
const Cost = 10

// MaxLength: bcrypt не принимает пароли длиннее 72 байт.
const MaxLength = 72

// ErrTooLong возвращается GetHash для пароля длиннее MaxLength байт.
var ErrTooLong = bcrypt.ErrPasswordTooLong

// GetHash принимает пароль пользователя и возвращает его bcrypt-хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// TooLong сообщает, что пароль не поместится в bcrypt-хэш.
func TooLong(password string) bool {
	return len(password) > MaxLength
}

// CompareHash сравнивает bcrypt-хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе: ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"

	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsHash сообщает, является ли сохраненное значение bcrypt-хэшем.
func IsHash(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

// IsMismatch сообщает, что ошибка CompareHash вызвана именно несовпадением
// пароля, а не повреждённым или нехешированным значением.
func IsMismatch(err error) bool {
	return errors.Is(err, bcrypt.ErrMismatchedHashAndPassword)
}

// Package models содержит доменную модель пользователя системы,
// включающую данные учётной записи и верификатор пароля.
// Структура используется в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UUID         string    // Уникальный идентификатор пользователя
	Name         string    // Отображаемое имя
	Email        string    // Электронная почта (уникальная, с учетом регистра)
	PasswordHash string    // bcrypt-хэш или унаследованный открытый пароль
	CreatedAt    time.Time // Дата регистрации
}

// UserInfo: публичное представление пользователя в ответах API.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Info возвращает публичное представление пользователя.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.UUID, Name: u.Name, Email: u.Email}
}

// Session: результат успешной регистрации или входа.
type Session struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// Package apperr описывает таксономию ошибок предметной области и их
// отображение в HTTP-статусы.
//
// Сервисы возвращают *Error с одним из видов (Kind), обработчики по виду
// выбирают статус ответа и отдают клиенту Kind и Message отдельно.
package apperr

import (
	"errors"
	"net/http"
)

// Виды ошибок.
var (
	ErrValidation = errors.New("validation")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("auth")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not_found")
	ErrDependency = errors.New("dependency")
)

// KindInternal: вид, под которым клиенту отдаются все прочие ошибки.
const KindInternal = "internal"

// Error: ошибка предметной области с человекочитаемым сообщением.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// New создает ошибку заданного вида.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap создает ошибку заданного вида, сохраняя исходную причину.
func Wrap(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap отдает и вид, и причину, чтобы работали errors.Is для обоих.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Kind возвращает строковое имя вида ошибки или KindInternal.
func Kind(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind.Error()
	}
	return KindInternal
}

// Message возвращает сообщение, безопасное для отдачи клиенту.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

// HTTPStatus сопоставляет ошибке HTTP-статус.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package models

import (
	"fmt"
	"net/http"
)

// ErrorKind - стабильный код ошибки, который получает клиент.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "Unauthenticated" // Пользователь не определён
	KindForbidden       ErrorKind = "Forbidden"       // Нет нужной роли или права
	KindNotFound        ErrorKind = "NotFound"        // Заявка, PIN или назначение не найдены
	KindExpired         ErrorKind = "Expired"         // Срок действия PIN истёк
	KindInvalidSecret   ErrorKind = "InvalidSecret"   // PIN не совпал
	KindAlreadyVerified ErrorKind = "AlreadyVerified" // Роль уже подтверждена этим пользователем
	KindInvalidState    ErrorKind = "InvalidState"    // Операция вне допустимого статуса
	KindExhausted       ErrorKind = "Exhausted"       // Резервных поставщиков не осталось
	KindInvalid         ErrorKind = "Invalid"         // Некорректные входные данные
	KindRateLimited     ErrorKind = "RateLimited"     // Слишком много попыток
	KindInternal        ErrorKind = "Internal"
)

var kindStatus = map[ErrorKind]int{
	KindUnauthenticated: http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindExpired:         http.StatusGone,
	KindInvalidSecret:   http.StatusUnprocessableEntity,
	KindAlreadyVerified: http.StatusConflict,
	KindInvalidState:    http.StatusConflict,
	KindExhausted:       http.StatusConflict,
	KindInvalid:         http.StatusBadRequest,
	KindRateLimited:     http.StatusTooManyRequests,
	KindInternal:        http.StatusInternalServerError,
}

// Эталонные ошибки для сравнения через errors.Is.
var (
	ErrUnauthenticated = &ErrorResponse{Kind: KindUnauthenticated}
	ErrForbidden       = &ErrorResponse{Kind: KindForbidden}
	ErrNotFound        = &ErrorResponse{Kind: KindNotFound}
	ErrExpired         = &ErrorResponse{Kind: KindExpired}
	ErrInvalidSecret   = &ErrorResponse{Kind: KindInvalidSecret}
	ErrAlreadyVerified = &ErrorResponse{Kind: KindAlreadyVerified}
	ErrInvalidState    = &ErrorResponse{Kind: KindInvalidState}
	ErrExhausted       = &ErrorResponse{Kind: KindExhausted}
	ErrInvalid         = &ErrorResponse{Kind: KindInvalid}
)

// ErrorResponse описывает ошибку с кодом и сообщением.
type ErrorResponse struct {
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"-"`
	Message    string    `json:"reason"`
}

// NewErrorResponse создает новую ошибку заданного вида с сообщением.
func NewErrorResponse(kind ErrorKind, message string) *ErrorResponse {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &ErrorResponse{
		Kind:       kind,
		StatusCode: status,
		Message:    message}
}

// Errorf создает ошибку с форматированным сообщением.
func Errorf(kind ErrorKind, format string, args ...any) *ErrorResponse {
	return NewErrorResponse(kind, fmt.Sprintf(format, args...))
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is сравнивает ошибки по виду, сообщение не учитывается.
func (e *ErrorResponse) Is(target error) bool {
	t, ok := target.(*ErrorResponse)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

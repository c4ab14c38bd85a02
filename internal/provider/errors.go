package provider

import (
	"errors"
	"fmt"
)

var errEmptyResponse = errors.New("provider: empty response")

// Error — ошибка API провайдера.
type Error struct {
	Status    int    `json:"-"`
	Type      string `json:"error_type"`
	Code      string `json:"error_code"`
	Message   string `json:"error_message"`
	RequestID string `json:"request_id"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: status=%d type=%s code=%s: %s", e.Status, e.Type, e.Code, e.Message)
}

// HTTPStatus возвращает HTTP-статус ответа.
func (e *Error) HTTPStatus() int { return e.Status }

// ErrorCode возвращает машинный код ошибки.
func (e *Error) ErrorCode() string { return e.Code }

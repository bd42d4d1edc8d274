// Package apperr — типизированная таксономия ошибок сервиса.
// HTTP-слой маппит их в статусы через errors.As; бизнес-код не знает про HTTP.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError — битая строка импорта, невалидный код и т.п.
// Локализуется до строки/поля, батч не прерывает.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError — сущность не существует или неактивна.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func NotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError — операция несовместима с текущим состоянием.
// State отдаём вызывающему, чтобы он мог решить сам.
type ConflictError struct {
	Entity string
	ID     int64
	State  string
	Msg    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d (state=%s): %s", e.Entity, e.ID, e.State, e.Msg)
}

func Conflict(entity string, id int64, state, msg string) *ConflictError {
	return &ConflictError{Entity: entity, ID: id, State: state, Msg: msg}
}

// TransientSignalError — временный отказ одного сигнала (фетч картинки).
// Деградирует сигнал до "unavailable", наружу не всплывает.
type TransientSignalError struct {
	Signal string
	Err    error
}

func (e *TransientSignalError) Error() string {
	return fmt.Sprintf("signal %s unavailable: %v", e.Signal, e.Err)
}

func (e *TransientSignalError) Unwrap() error { return e.Err }

func Transient(signal string, err error) *TransientSignalError {
	return &TransientSignalError{Signal: signal, Err: err}
}

// === helpers для вызывающих ===

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var v *NotFoundError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var v *ConflictError
	return errors.As(err, &v)
}

func IsTransient(err error) bool {
	var v *TransientSignalError
	return errors.As(err, &v)
}

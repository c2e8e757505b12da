// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных вне тела запроса.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidToken — ключ доступа не найден, отозван или не совпадает.
	ErrInvalidToken = errors.New("недействительный ключ доступа")
)

// nonFieldErrors — имя поля для ошибок, не относящихся к одному полю.
const nonFieldErrors = "nonFieldErrors"

// notFound переводит repository.ErrNotFound в ErrNotFound, остальные ошибки
// оборачивает с описанием операции.
func notFound(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// writeError переводит ошибки записи: нарушение уникальности становится
// ошибкой валидации unique на поле field.
func writeError(err error, field, op string) error {
	if repository.IsUniqueViolation(err) {
		return validation.Single(field, validation.CodeUnique, validation.ReasonUnique)
	}
	return notFound(err, op)
}

// isValidation сообщает, является ли err набором ошибок валидации.
func isValidation(err error) bool {
	var verrs *validation.Errors
	return errors.As(err, &verrs)
}

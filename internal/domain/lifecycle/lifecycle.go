// Пакет lifecycle — конечный автомат статусов версии типа запроса.
//
// Жизненный цикл: draft → published → deprecated.
// Обратные переходы запрещены. Изменять и удалять можно только draft.
package lifecycle

import "fmt"

// Status — статус версии схемы.
type Status string

const (
	// Draft — черновик, допускает изменение и удаление
	Draft Status = "draft"
	// Published — опубликована, неизменяема
	Published Status = "published"
	// Deprecated — устарела, неизменяема, конечный статус
	Deprecated Status = "deprecated"
)

// Operation — операция над версией.
type Operation string

const (
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Коды ошибок переходов.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUnknownStatus     = "UNKNOWN_STATUS"
)

// validTransitions — матрица допустимых переходов.
var validTransitions = map[Status]map[Status]bool{
	Draft:      {Published: true},
	Published:  {Deprecated: true},
	Deprecated: {},
}

// allowedOperations — операции, допустимые в каждом статусе.
var allowedOperations = map[Status]map[Operation]bool{
	Draft:      {OpUpdate: true, OpDelete: true},
	Published:  {},
	Deprecated: {},
}

// Statuses возвращает все статусы в порядке жизненного цикла.
func Statuses() []Status {
	return []Status{Draft, Published, Deprecated}
}

// ParseStatus преобразует строку в Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &TransitionError{
			Code:    CodeUnknownStatus,
			Message: fmt.Sprintf("недопустимый статус: %q", s),
		}
	}
	return st, nil
}

// Valid сообщает, является ли статус допустимым.
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// Transition проверяет переход from → to. Переход в тот же статус — не переход
// и считается допустимым.
func Transition(from, to Status) error {
	if !to.Valid() {
		return &TransitionError{
			Code:    CodeUnknownStatus,
			Message: fmt.Sprintf("недопустимый целевой статус: %q", to),
		}
	}
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("переход %s → %s недопустим", from, to),
		}
	}
	return nil
}

// CanPerform проверяет, допустима ли операция в статусе s.
func CanPerform(s Status, op Operation) bool {
	return allowedOperations[s][op]
}

// TransitionError — ошибка перехода между статусами.
type TransitionError struct {
	Code    string // INVALID_TRANSITION, UNKNOWN_STATUS
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

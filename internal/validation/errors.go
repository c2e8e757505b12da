// Пакет validation — структурированные ошибки валидации полей и
// общие валидаторы (IBAN, почтовый индекс, порядок дат, длина, URN).
package validation

import (
	"sort"
	"strings"
)

// Коды ошибок валидации полей.
const (
	CodeRequired               = "required"
	CodeNull                   = "null"
	CodeInvalid                = "invalid"
	CodeInvalidChoice          = "invalid_choice"
	CodeNoMatch                = "no_match"
	CodeDoesNotExist           = "does_not_exist"
	CodeInvalidURN             = "invalid_urn"
	CodeUnique                 = "unique"
	CodeImmutableField         = "immutable-field"
	CodeDateMismatch           = "date-mismatch"
	CodeInvalidJSONSchema      = "invalid-json-schema"
	CodeUnknownSchema          = "unknown-schema"
	CodeUnknownChoice          = "unknown_choice"
	CodeMaxLength              = "max_length"
	CodeNonDraftVersionUpdate  = "non-draft-version-update"
	CodeNonDraftVersionDestroy = "non-draft-version-destroy"
)

// Стандартные сообщения.
const (
	ReasonRequired     = "Dit veld is vereist."
	ReasonNull         = "Dit veld mag niet leeg zijn."
	ReasonReadOnly     = "Dit veld wordt automatisch ingevuld; het kan niet worden geselecteerd."
	ReasonImmutable    = "Dit veld kan niet worden gewijzigd."
	ReasonInvalidURN   = "Voer een geldige URN in."
	ReasonDoesNotExist = "Object bestaat niet."
	ReasonUnique       = "Waarden moeten uniek zijn."
)

// FieldError — ошибка одного поля: {name, code, reason}.
type FieldError struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Errors — набор ошибок полей. Реализует error.
// Пустой набор не является ошибкой: используйте Err().
type Errors struct {
	items []FieldError
}

// New создаёт пустой набор ошибок.
func New() *Errors {
	return &Errors{}
}

// Single возвращает набор из одной ошибки.
func Single(name, code, reason string) *Errors {
	e := New()
	e.Add(name, code, reason)
	return e
}

// Add добавляет ошибку поля.
func (e *Errors) Add(name, code, reason string) {
	e.items = append(e.items, FieldError{Name: name, Code: code, Reason: reason})
}

// Merge добавляет все ошибки другого набора, префиксуя имена.
func (e *Errors) Merge(prefix string, other *Errors) {
	if other == nil {
		return
	}
	for _, fe := range other.items {
		name := fe.Name
		if prefix != "" {
			name = joinPath(prefix, name)
		}
		e.items = append(e.items, FieldError{Name: name, Code: fe.Code, Reason: fe.Reason})
	}
}

// Has сообщает, есть ли ошибка для поля name.
func (e *Errors) Has(name string) bool {
	for _, fe := range e.items {
		if fe.Name == name {
			return true
		}
	}
	return false
}

// Empty сообщает, пуст ли набор.
func (e *Errors) Empty() bool {
	return e == nil || len(e.items) == 0
}

// Items возвращает ошибки в порядке добавления.
func (e *Errors) Items() []FieldError {
	if e == nil {
		return nil
	}
	return e.items
}

// Sorted возвращает ошибки, отсортированные по имени поля (стабильно).
func (e *Errors) Sorted() []FieldError {
	out := append([]FieldError(nil), e.Items()...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Err возвращает nil для пустого набора, иначе сам набор.
func (e *Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

// Error реализует интерфейс error.
func (e *Errors) Error() string {
	parts := make([]string, 0, len(e.items))
	for _, fe := range e.items {
		parts = append(parts, fe.Name+": "+fe.Code+" ("+fe.Reason+")")
	}
	return "ошибка валидации: " + strings.Join(parts, "; ")
}

func joinPath(prefix, name string) string {
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}

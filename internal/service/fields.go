// fields.go — чтение полей тела запроса с учётом режима записи.
package service

import (
	"strings"
	"time"

	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

// Mode — режим записи ресурса.
type Mode int

const (
	// ModeCreate — создание (POST).
	ModeCreate Mode = iota
	// ModeReplace — полная замена (PUT): обязательные поля должны быть переданы.
	ModeReplace
	// ModePatch — частичное обновление (PATCH): отсутствующие поля не меняются.
	ModePatch
)

// String возвращает имя режима для логов.
func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeReplace:
		return "replace"
	case ModePatch:
		return "patch"
	}
	return "unknown"
}

// strOpt — ограничения строкового поля.
type strOpt struct {
	required bool
	max      int
	urn      bool
}

// fields читает поля объекта o в существующие значения.
// Ошибки копятся в o.Errors().
type fields struct {
	o    *wire.Object
	mode Mode
}

func (f fields) errs() *validation.Errors {
	return f.o.Errors()
}

// missing обрабатывает отсутствующее поле: для обязательного вне PATCH — required.
func (f fields) missing(name string, required bool) {
	if required && f.mode != ModePatch && !f.errs().Has(f.o.Path(name)) {
		f.errs().Add(f.o.Path(name), validation.CodeRequired, validation.ReasonRequired)
	}
}

func (f fields) null(name string) {
	f.errs().Add(f.o.Path(name), validation.CodeNull, validation.ReasonNull)
}

// present сообщает, передано ли поле со значением. Null и отсутствие
// обязательного поля вне PATCH фиксируются в ошибках.
func present[T any](f fields, name string, v wire.Optional[T], required bool) bool {
	if required && f.mode != ModePatch {
		return wire.Require(f.o, name, v)
	}
	return wire.NotNull(f.o, name, v) && v.Set
}

// str читает строку. Пустая строка допустима только для необязательных полей.
func (f fields) str(name string, dst *string, opt strOpt) {
	v := wire.Get[string](f.o, name)
	if !present(f, name, v, opt.required) {
		return
	}
	path := f.o.Path(name)
	if opt.required && strings.TrimSpace(v.Value) == "" {
		validation.NotBlank(f.errs(), path, v.Value)
		return
	}
	if opt.max > 0 {
		validation.MaxLength(f.errs(), path, v.Value, opt.max)
	}
	if opt.urn && v.Value != "" {
		validation.URN(f.errs(), path, v.Value)
	}
	*dst = v.Value
}

// choice читает строку из фиксированного набора.
func (f fields) choice(name string, dst *string, required bool, allowed []string) {
	v := wire.Get[string](f.o, name)
	if !present(f, name, v, required) {
		return
	}
	before := len(f.errs().Items())
	validation.Choice(f.errs(), f.o.Path(name), v.Value, allowed...)
	if len(f.errs().Items()) == before {
		*dst = v.Value
	}
}

// date читает обязательную к наличию значения дату (null запрещён).
func (f fields) date(name string, dst *time.Time, required bool) {
	v := wire.Get[wire.Date](f.o, name)
	if !present(f, name, v, required) {
		return
	}
	*dst = v.Value.Time
}

// nullableDate читает дату, допускающую null.
func (f fields) nullableDate(name string, dst **time.Time) {
	v := wire.Get[wire.Date](f.o, name)
	if !v.Set {
		return
	}
	if v.Null {
		*dst = nil
		return
	}
	t := v.Value.Time
	*dst = &t
}

// nullableDateTime читает момент времени, допускающий null.
func (f fields) nullableDateTime(name string, dst **time.Time) {
	v := wire.Get[time.Time](f.o, name)
	if !v.Set {
		return
	}
	if v.Null {
		*dst = nil
		return
	}
	t := v.Value.UTC()
	*dst = &t
}

// dateTime читает момент времени без null.
func (f fields) dateTime(name string, dst *time.Time) {
	v := wire.Get[time.Time](f.o, name)
	if !present(f, name, v, false) {
		return
	}
	*dst = v.Value.UTC()
}

// object читает JSON-объект без перевода ключей.
func (f fields) object(name string, dst *map[string]any, required bool) {
	v := wire.Get[map[string]any](f.o, name)
	if !present(f, name, v, required) {
		return
	}
	if v.Value == nil {
		v.Value = map[string]any{}
	}
	*dst = v.Value
}

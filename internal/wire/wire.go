// Пакет wire — разбор тел запросов с учётом присутствия полей.
//
// Тело разбирается в набор сырых полей; типизированное чтение
// выполняется через Get и фиксирует ошибки в общем наборе
// validation.Errors с путём поля.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
)

// ErrNotObject — тело запроса не является JSON-объектом.
var ErrNotObject = errors.New("тело запроса должно быть JSON-объектом")

// Optional — значение поля с признаками присутствия и null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Present сообщает, передано ли поле с не-null значением.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// Object — JSON-объект запроса с накоплением ошибок.
type Object struct {
	fields map[string]json.RawMessage
	path   string
	errs   *validation.Errors
}

// ParseObject разбирает тело запроса. Пустое тело эквивалентно {}.
func ParseObject(body []byte) (*Object, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
		}
		if fields == nil {
			return nil, ErrNotObject
		}
	}
	return &Object{fields: fields, errs: validation.New()}, nil
}

// Errors возвращает накопленные ошибки (общие для вложенных объектов).
func (o *Object) Errors() *validation.Errors {
	return o.errs
}

// Path возвращает полный путь поля name.
func (o *Object) Path(name string) string {
	if o.path == "" {
		return name
	}
	return o.path + "." + name
}

// Has сообщает, передано ли поле (в том числе как null).
func (o *Object) Has(name string) bool {
	_, ok := o.fields[name]
	return ok
}

// Raw возвращает сырое значение поля.
func (o *Object) Raw(name string) (json.RawMessage, bool) {
	raw, ok := o.fields[name]
	return raw, ok
}

// Keys возвращает имена переданных полей по алфавиту.
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.fields))
	for k := range o.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Empty сообщает, что объект не содержит полей.
func (o *Object) Empty() bool {
	return len(o.fields) == 0
}

// Child возвращает вложенный объект поля name. Второе значение — признак
// присутствия: Set=false — поле не передано, Null=true — передан null.
// При неверном типе фиксируется ошибка invalid и возвращается nil.
func (o *Object) Child(name string) (*Object, Optional[struct{}]) {
	raw, ok := o.fields[name]
	if !ok {
		return nil, Optional[struct{}]{}
	}
	if isNull(raw) {
		return nil, Optional[struct{}]{Set: true, Null: true}
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		o.errs.Add(o.Path(name), validation.CodeInvalid, "Ongeldige gegevens. Verwachtte een dictionary.")
		return nil, Optional[struct{}]{Set: true}
	}
	return &Object{fields: fields, path: o.Path(name), errs: o.errs}, Optional[struct{}]{Set: true}
}

// Items разбирает массив объектов поля name.
func (o *Object) Items(name string) ([]*Object, Optional[struct{}]) {
	raw, ok := o.fields[name]
	if !ok {
		return nil, Optional[struct{}]{}
	}
	if isNull(raw) {
		return nil, Optional[struct{}]{Set: true, Null: true}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		o.errs.Add(o.Path(name), validation.CodeInvalid, "Verwachtte een lijst met items.")
		return nil, Optional[struct{}]{Set: true}
	}
	out := make([]*Object, 0, len(items))
	for i, item := range items {
		fields := map[string]json.RawMessage{}
		path := fmt.Sprintf("%s.%d", o.Path(name), i)
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			o.errs.Add(path, validation.CodeInvalid, "Ongeldige gegevens. Verwachtte een dictionary.")
			continue
		}
		out = append(out, &Object{fields: fields, path: path, errs: o.errs})
	}
	return out, Optional[struct{}]{Set: true}
}

// Get читает поле name как T. Ошибка типа фиксируется как invalid.
func Get[T any](o *Object, name string) Optional[T] {
	var out Optional[T]
	raw, ok := o.fields[name]
	if !ok {
		return out
	}
	out.Set = true
	if isNull(raw) {
		out.Null = true
		return out
	}
	if err := json.Unmarshal(raw, &out.Value); err != nil {
		o.errs.Add(o.Path(name), validation.CodeInvalid, invalidReason[T](err))
		out.Set = false
		return out
	}
	return out
}

// Require фиксирует required, если поле не передано, и null, если передан null.
// Возвращает true, если значение присутствует.
func Require[T any](o *Object, name string, v Optional[T]) bool {
	if !v.Set {
		if !o.errs.Has(o.Path(name)) {
			o.errs.Add(o.Path(name), validation.CodeRequired, validation.ReasonRequired)
		}
		return false
	}
	if v.Null {
		o.errs.Add(o.Path(name), validation.CodeNull, validation.ReasonNull)
		return false
	}
	return true
}

// NotNull фиксирует ошибку null для переданного null.
func NotNull[T any](o *Object, name string, v Optional[T]) bool {
	if v.Set && v.Null {
		o.errs.Add(o.Path(name), validation.CodeNull, validation.ReasonNull)
		return false
	}
	return true
}

// ReadOnly фиксирует ошибку invalid, если поле передано.
func (o *Object) ReadOnly(name string) {
	if o.Has(name) {
		o.errs.Add(o.Path(name), validation.CodeInvalid, validation.ReasonReadOnly)
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func invalidReason[T any](err error) string {
	var zero T
	switch any(zero).(type) {
	case Date:
		return "Datum heeft het verkeerde formaat. Gebruik een van deze formaten: YYYY-MM-DD."
	case time.Time:
		return "Datetime heeft een ongeldig formaat, gebruik 1 van de volgende formaten: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
	case string:
		return "Geen geldige string."
	case int, int64:
		return "Geen geldige integer."
	case bool:
		return "Moet een geldige boolean zijn."
	}
	var derr *DateError
	if errors.As(err, &derr) {
		return derr.Error()
	}
	return "Ongeldige waarde."
}

// Date — календарная дата в формате YYYY-MM-DD.
type Date struct {
	time.Time
}

// DateError — ошибка разбора даты.
type DateError struct {
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("ongeldige datum %q", e.Value)
}

// UnmarshalJSON разбирает дату YYYY-MM-DD.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return &DateError{Value: s}
	}
	d.Time = t
	return nil
}

// MarshalJSON сериализует дату как YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(model.DateLayout))
}

// FormatDate возвращает дату строкой или nil для пустого указателя.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(model.DateLayout)
	return &s
}

// FormatDateTime возвращает момент времени в RFC 3339 или nil.
func FormatDateTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

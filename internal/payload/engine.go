// Пакет payload — полиморфный движок поля details внешних задач.
//
// Реестр сопоставляет значение дискриминатора (taakSoort) с формой:
// встроенной JSON Schema, деревом переименования camelCase ↔ snake_case
// и бизнес-правилами. Схемы описывают проводное (camelCase) представление;
// в хранилище details сохраняется в snake_case.
package payload

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/maykinmedia/open-vtb-sub000/internal/jsonschema"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

// Имена полей проводного представления.
const (
	DiscriminatorField = "taakSoort"
	DetailsField       = "details"
)

// Rule — бизнес-правило формы. details — слитое camelCase-представление.
// Ошибки записываются с путями относительно details.
type Rule func(v *jsonschema.Validator, details map[string]any, errs *validation.Errors)

// Shape — описание одной формы details.
type Shape struct {
	Kind     string
	Schema   []byte
	Fields   FieldMap
	Defaults map[string]func() any
	Rules    []Rule
}

// Engine — реестр форм и применение правил сериализации/валидации.
type Engine struct {
	validator *jsonschema.Validator
	shapes    map[string]*Shape
}

// NewEngine создаёт движок со встроенными формам задач.
func NewEngine(v *jsonschema.Validator) *Engine {
	e := &Engine{validator: v, shapes: make(map[string]*Shape)}
	for _, s := range builtinShapes() {
		e.Register(s)
	}
	return e
}

// Register добавляет или заменяет форму.
func (e *Engine) Register(s *Shape) {
	e.shapes[s.Kind] = s
}

// Kinds возвращает зарегистрированные значения дискриминатора по алфавиту.
func (e *Engine) Kinds() []string {
	kinds := make([]string, 0, len(e.shapes))
	for k := range e.shapes {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Shape возвращает форму по дискриминатору.
func (e *Engine) Shape(kind string) (*Shape, bool) {
	s, ok := e.shapes[kind]
	return s, ok
}

// Serialize переводит хранимые details в проводное представление.
func (e *Engine) Serialize(kind string, stored map[string]any) map[string]any {
	s, ok := e.shapes[kind]
	if !ok || stored == nil {
		if stored == nil {
			return map[string]any{}
		}
		return stored
	}
	return s.Fields.toWire(stored)
}

// Existing — хранимое состояние при обновлении.
type Existing struct {
	Kind    string
	Details map[string]any
}

// Request — входные данные Deserialize.
type Request struct {
	// EndpointKind — дискриминатор, заданный адресом ресурса.
	EndpointKind string
	// Body — тело запроса целиком.
	Body *wire.Object
	// Partial — частичное обновление (PATCH).
	Partial bool
	// Existing — хранимое состояние; nil при создании.
	Existing *Existing
}

// Result — итог Deserialize.
type Result struct {
	Kind    string
	Details map[string]any
}

// Deserialize разрешает дискриминатор, сливает details с хранимыми,
// применяет значения по умолчанию, схему и бизнес-правила.
// Ошибки пишутся в req.Body.Errors() с путями details.*.
func (e *Engine) Deserialize(req Request) (Result, bool) {
	body := req.Body
	errs := body.Errors()
	before := len(errs.Items())

	kind, ok := e.resolveKind(req)
	if !ok {
		return Result{}, false
	}
	shape := e.shapes[kind]

	sameKind := req.Existing != nil && req.Existing.Kind == kind
	var details map[string]any

	raw, supplied := body.Raw(DetailsField)
	incoming, valid := decodeDetails(body, raw, supplied)
	if !valid {
		return Result{}, false
	}

	switch {
	case req.Partial && sameKind:
		// Частичное обновление той же формы: слияние верхнего уровня.
		stored := shape.Fields.toWire(req.Existing.Details)
		if supplied {
			details = shape.Fields.merge(stored, incoming)
		} else {
			details = stored
		}
	default:
		// Создание, полная замена или смена формы: нужна полная форма.
		if !supplied {
			errs.Add(DetailsField, validation.CodeRequired, validation.ReasonRequired)
			return Result{}, false
		}
		details = incoming
	}

	for key, def := range shape.Defaults {
		if _, ok := details[key]; !ok {
			details[key] = def()
		}
	}

	issues, err := e.validator.ValidateValue(shape.Schema, details, DetailsField)
	if err != nil {
		errs.Add(DetailsField, validation.CodeInvalid, err.Error())
		return Result{}, false
	}
	for _, is := range issues {
		code := validation.CodeInvalid
		if is.Kind == jsonschema.KindRequired {
			code = validation.CodeRequired
		}
		errs.Add(is.Path, code, is.Message)
	}

	ruleErrs := validation.New()
	for _, rule := range shape.Rules {
		rule(e.validator, details, ruleErrs)
	}
	for _, fe := range ruleErrs.Items() {
		name := DetailsField + "." + fe.Name
		if !errs.Has(name) {
			errs.Add(name, fe.Code, fe.Reason)
		}
	}

	if len(errs.Items()) > before {
		return Result{}, false
	}
	return Result{Kind: kind, Details: shape.Fields.toStorage(details)}, true
}

// resolveKind определяет дискриминатор по адресу, телу и хранимому состоянию.
func (e *Engine) resolveKind(req Request) (string, bool) {
	body := req.Body
	errs := body.Errors()

	if req.Existing == nil {
		// При создании дискриминатор задаётся адресом ресурса.
		if body.Has(DiscriminatorField) {
			body.ReadOnly(DiscriminatorField)
			return "", false
		}
		if _, ok := e.shapes[req.EndpointKind]; !ok {
			errs.Add(DiscriminatorField, validation.CodeUnknownChoice, fmt.Sprintf("Onbekende taakSoort %q.", req.EndpointKind))
			return "", false
		}
		return req.EndpointKind, true
	}

	v := wire.Get[string](body, DiscriminatorField)
	if !v.Set {
		if errs.Has(DiscriminatorField) {
			return "", false
		}
		return req.Existing.Kind, true
	}
	if v.Null {
		errs.Add(DiscriminatorField, validation.CodeNull, validation.ReasonNull)
		return "", false
	}
	if _, ok := e.shapes[v.Value]; !ok {
		errs.Add(DiscriminatorField, validation.CodeUnknownChoice, fmt.Sprintf("Onbekende taakSoort %q.", v.Value))
		return "", false
	}
	return v.Value, true
}

// decodeDetails разбирает поле details как JSON-объект.
func decodeDetails(body *wire.Object, raw json.RawMessage, supplied bool) (map[string]any, bool) {
	if !supplied {
		return nil, true
	}
	errs := body.Errors()
	var details map[string]any
	if err := json.Unmarshal(raw, &details); err != nil {
		errs.Add(DetailsField, validation.CodeInvalid, "Ongeldige gegevens. Verwachtte een dictionary.")
		return nil, false
	}
	if details == nil {
		errs.Add(DetailsField, validation.CodeNull, validation.ReasonNull)
		return nil, false
	}
	return details, true
}

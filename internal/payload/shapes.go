package payload

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/maykinmedia/open-vtb-sub000/internal/jsonschema"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// DefaultValuta — единственная поддерживаемая валюта платежа.
const DefaultValuta = "EUR"

// ValutaChoices — допустимые валюты.
var ValutaChoices = []string{DefaultValuta}

func mustSchema(name string) []byte {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("встроенная схема %s: %v", name, err))
	}
	return b
}

// FormulierDefinitieSchema — фиксированная схема определения формы.
func FormulierDefinitieSchema() []byte {
	return mustSchema("formulier_definitie.json")
}

func builtinShapes() []*Shape {
	return []*Shape{
		{
			Kind:   "betaaltaak",
			Schema: mustSchema("betaaltaak.json"),
			Fields: FieldMap{
				"bedrag":                 {Snake: "bedrag"},
				"valuta":                 {Snake: "valuta"},
				"transactieomschrijving": {Snake: "transactieomschrijving"},
				"doelrekening": {
					Snake: "doelrekening",
					Merge: true,
					Children: FieldMap{
						"naam": {Snake: "naam"},
						"iban": {Snake: "iban"},
					},
				},
			},
			Defaults: map[string]func() any{
				"valuta": func() any { return DefaultValuta },
			},
			Rules: []Rule{valutaRule, bedragRule},
		},
		{
			Kind:   "gegevensuitvraagtaak",
			Schema: mustSchema("gegevensuitvraagtaak.json"),
			Fields: FieldMap{
				"uitvraagLink":      {Snake: "uitvraag_link"},
				"ontvangenGegevens": {Snake: "ontvangen_gegevens", Opaque: true},
			},
			Defaults: map[string]func() any{
				"ontvangenGegevens": func() any { return map[string]any{} },
			},
			Rules: []Rule{uitvraagLinkRule},
		},
		{
			Kind:   "formuliertaak",
			Schema: mustSchema("formuliertaak.json"),
			Fields: FieldMap{
				"formulierDefinitie": {Snake: "formulier_definitie", Opaque: true},
				"ontvangenGegevens":  {Snake: "ontvangen_gegevens", Opaque: true},
			},
			Defaults: map[string]func() any{
				"ontvangenGegevens": func() any { return map[string]any{} },
			},
			Rules: []Rule{formulierDefinitieRule},
		},
	}
}

// valutaRule: valuta ∈ {EUR}.
func valutaRule(_ *jsonschema.Validator, details map[string]any, errs *validation.Errors) {
	v, ok := details["valuta"].(string)
	if !ok {
		return
	}
	validation.Choice(errs, "valuta", v, ValutaChoices...)
}

// bedragRule приводит bedrag к двум знакам после запятой.
// Некорректное значение уже отмечено форматом decimal схемы.
func bedragRule(_ *jsonschema.Validator, details map[string]any, _ *validation.Errors) {
	s, ok := details["bedrag"].(string)
	if !ok {
		return
	}
	if normalized, err := jsonschema.NormalizeDecimal(s); err == nil {
		details["bedrag"] = normalized
	}
}

// uitvraagLinkRule: uitvraagLink — абсолютный http(s) URI.
func uitvraagLinkRule(_ *jsonschema.Validator, details map[string]any, errs *validation.Errors) {
	s, ok := details["uitvraagLink"].(string)
	if !ok {
		return
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add("uitvraagLink", validation.CodeInvalid, "Voer een geldige URL in.")
	}
}

// formulierDefinitieRule проверяет formulierDefinitie по фиксированной схеме формы.
func formulierDefinitieRule(v *jsonschema.Validator, details map[string]any, errs *validation.Errors) {
	def, ok := details["formulierDefinitie"].(map[string]any)
	if !ok {
		return
	}
	raw, err := json.Marshal(def)
	if err != nil {
		errs.Add("formulierDefinitie", validation.CodeInvalid, err.Error())
		return
	}
	issues, err := v.Validate(FormulierDefinitieSchema(), raw, "formulierDefinitie")
	if err != nil {
		errs.Add("formulierDefinitie", validation.CodeInvalid, err.Error())
		return
	}
	for _, is := range issues {
		code := validation.CodeInvalid
		if is.Kind == jsonschema.KindRequired {
			code = validation.CodeRequired
		}
		errs.Add(is.Path, code, is.Message)
	}
}

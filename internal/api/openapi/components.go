// components.go — схемы ресурсов компонентов Berichten, Taken и Verzoeken.
package openapi

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/lifecycle"
	"github.com/maykinmedia/open-vtb-sub000/internal/payload"
)

// Berichten — компонент сообщений.
func Berichten(prefix string) Component {
	bijlage := openapi3.NewObjectSchema().
		WithProperty("informatieObject", urnSchema()).
		WithProperty("omschrijving", openapi3.NewStringSchema().WithMaxLength(100))
	bijlage.Required = []string{"informatieObject"}

	bericht := resourceSchema().
		WithProperty("onderwerp", openapi3.NewStringSchema().WithMaxLength(50)).
		WithProperty("berichtTekst", openapi3.NewStringSchema().WithMaxLength(4000)).
		WithProperty("publicatiedatum", openapi3.NewDateTimeSchema()).
		WithProperty("referentie", openapi3.NewStringSchema().WithMaxLength(25)).
		WithProperty("ontvanger", openapi3.NewStringSchema().
			WithFormat("uri").
			WithMaxLength(1000)).
		WithProperty("geopendOp", openapi3.NewDateTimeSchema().WithNullable()).
		WithProperty("berichtType", openapi3.NewStringSchema().WithMaxLength(8)).
		WithProperty("handelingsperspectief", openapi3.NewStringSchema().WithMaxLength(50)).
		WithProperty("einddatumHandelingstermijn", openapi3.NewStringSchema().WithFormat("date").WithNullable()).
		WithProperty("bijlagen", openapi3.NewArraySchema().WithItems(bijlage))
	bericht.Required = []string{"onderwerp", "berichtTekst", "ontvanger"}

	ontvanger := resourceSchema().
		WithProperty("geadresseerde", urnSchema()).
		WithProperty("geopendOp", openapi3.NewDateTimeSchema().WithNullable()).
		WithProperty("geopend", readOnly(openapi3.NewBoolSchema()))
	ontvanger.Required = []string{"geadresseerde"}

	return Component{
		Name:   "berichten",
		Title:  "Berichten API",
		Prefix: prefix,
		Resources: map[string]string{
			"berichten":         "Bericht",
			"berichtontvangers": "BerichtOntvanger",
		},
		Schemas: map[string]*openapi3.Schema{
			"Bericht":          bericht,
			"BerichtOntvanger": ontvanger,
		},
	}
}

// Taken — компонент внешних задач. Схемы details берутся из форм движка.
func Taken(prefix string, engine *payload.Engine, collections []string) (Component, error) {
	details := make([]*openapi3.Schema, 0, len(engine.Kinds()))
	kinds := make([]any, 0, len(engine.Kinds()))
	for _, kind := range engine.Kinds() {
		shape, _ := engine.Shape(kind)
		s, err := shapeSchema(shape)
		if err != nil {
			return Component{}, err
		}
		details = append(details, s)
		kinds = append(kinds, kind)
	}

	taak := resourceSchema().
		WithProperty("titel", openapi3.NewStringSchema().WithMaxLength(100)).
		WithProperty("status", openapi3.NewStringSchema().
			WithEnum("open", "uitgevoerd", "niet_uitgevoerd", "afgebroken", "verwerkt")).
		WithProperty("startdatum", openapi3.NewStringSchema().WithFormat("date")).
		WithProperty("handelingsPerspectief", openapi3.NewStringSchema().WithMaxLength(100)).
		WithProperty("einddatumHandelingsTermijn", openapi3.NewStringSchema().WithFormat("date").WithNullable()).
		WithProperty("datumHerinnering", openapi3.NewStringSchema().WithFormat("date").WithNullable()).
		WithProperty("toelichting", openapi3.NewStringSchema()).
		WithProperty("taakSoort", openapi3.NewStringSchema().WithEnum(kinds...)).
		WithProperty("details", openapi3.NewOneOfSchema(details...)).
		WithProperty("isToegewezenAan", urnSchema()).
		WithProperty("wordtBehandeldDoor", urnSchema()).
		WithProperty("hoortBij", urnSchema()).
		WithProperty("heeftBetrekkingOp", urnSchema())
	taak.Required = []string{"titel", "details"}

	resources := map[string]string{"externetaken": "ExterneTaak"}
	for _, coll := range collections {
		resources[coll] = "ExterneTaak"
	}
	return Component{
		Name:      "taken",
		Title:     "Taken API",
		Prefix:    prefix,
		Resources: resources,
		Schemas:   map[string]*openapi3.Schema{"ExterneTaak": taak},
	}, nil
}

// Verzoeken — компонент запросов и типов запросов.
func Verzoeken(prefix string) Component {
	adres := openapi3.NewObjectSchema()
	for _, f := range []string{"straatnaam", "huisnummer", "huisletter", "huisnummertoevoeging", "postcode", "stad", "land"} {
		adres.WithProperty(f, openapi3.NewStringSchema())
	}
	persoon := openapi3.NewObjectSchema().
		WithProperty("voornaam", openapi3.NewStringSchema()).
		WithProperty("achternaam", openapi3.NewStringSchema()).
		WithProperty("geboortedatum", openapi3.NewStringSchema().WithFormat("date")).
		WithProperty("emailadres", openapi3.NewStringSchema().WithFormat("email")).
		WithProperty("telefoonnummer", openapi3.NewStringSchema()).
		WithProperty("postadres", adres).
		WithProperty("verblijfsadres", adres)
	organisatie := openapi3.NewObjectSchema().
		WithProperty("statutaireNaam", openapi3.NewStringSchema()).
		WithProperty("bezoekadres", adres).
		WithProperty("postadres", adres).
		WithProperty("emailadres", openapi3.NewStringSchema().WithFormat("email")).
		WithProperty("telefoonnummer", openapi3.NewStringSchema())
	ingediendDoor := openapi3.NewObjectSchema().
		WithProperty("authentiekeVerwijzing", openapi3.NewObjectSchema().WithProperty("urn", urnSchema())).
		WithProperty("nietAuthentiekePersoonsgegevens", persoon).
		WithProperty("nietAuthentiekeOrganisatiegegevens", organisatie)
	ingediendDoor.Nullable = true

	verzoek := resourceSchema().
		WithProperty("verzoekType", openapi3.NewUUIDSchema()).
		WithProperty("version", openapi3.NewIntegerSchema().WithMin(1)).
		WithProperty("geometrie", openapi3.NewObjectSchema().WithNullable()).
		WithProperty("aanvraagGegevens", openapi3.NewObjectSchema()).
		WithProperty("bijlagen", openapi3.NewArraySchema().WithItems(urnSchema())).
		WithProperty("isIngediendDoor", ingediendDoor).
		WithProperty("isGerelateerdAan", urnSchema()).
		WithProperty("kanaal", urnSchema()).
		WithProperty("authenticatieContext", urnSchema())
	verzoek.Required = []string{"verzoekType", "version"}

	verzoekType := resourceSchema().
		WithProperty("naam", openapi3.NewStringSchema().WithMaxLength(100)).
		WithProperty("toelichting", openapi3.NewStringSchema()).
		WithProperty("opvolging", openapi3.NewStringSchema().WithEnum("niet", "mogelijk", "altijd", "meerdere")).
		WithProperty("aangemaaktOp", readOnly(openapi3.NewDateTimeSchema())).
		WithProperty("gewijzigdOp", readOnly(openapi3.NewDateTimeSchema())).
		WithProperty("versions", readOnly(openapi3.NewArraySchema().WithItems(openapi3.NewIntegerSchema()))).
		WithProperty("lastVersion", readOnly(openapi3.NewIntegerSchema().WithNullable()))
	verzoekType.Required = []string{"naam"}

	bijlageType := openapi3.NewObjectSchema().
		WithProperty("informatieObjecttype", urnSchema()).
		WithProperty("omschrijving", openapi3.NewStringSchema().WithMaxLength(100))
	bijlageType.Required = []string{"informatieObjecttype"}

	version := openapi3.NewObjectSchema().
		WithProperty("url", readOnly(openapi3.NewStringSchema().WithFormat("uri"))).
		WithProperty("version", readOnly(openapi3.NewIntegerSchema())).
		WithProperty("verzoekType", readOnly(openapi3.NewStringSchema().WithFormat("uri"))).
		WithProperty("status", openapi3.NewStringSchema().WithEnum(statusEnum()...)).
		WithProperty("aanvraagGegevensSchema", openapi3.NewObjectSchema()).
		WithProperty("aangemaaktOp", readOnly(openapi3.NewDateTimeSchema())).
		WithProperty("gewijzigdOp", readOnly(openapi3.NewDateTimeSchema())).
		WithProperty("gepubliceerdOp", readOnly(openapi3.NewDateTimeSchema().WithNullable())).
		WithProperty("beginGeldigheid", openapi3.NewStringSchema().WithFormat("date").WithNullable()).
		WithProperty("eindeGeldigheid", openapi3.NewStringSchema().WithFormat("date").WithNullable()).
		WithProperty("isExpired", readOnly(openapi3.NewBoolSchema())).
		WithProperty("bijlageTypen", openapi3.NewArraySchema().WithItems(bijlageType))

	return Component{
		Name:   "verzoeken",
		Title:  "Verzoeken API",
		Prefix: prefix,
		Resources: map[string]string{
			"verzoeken":    "Verzoek",
			"verzoektypen": "VerzoekType",
			"versions":     "VerzoekTypeVersion",
		},
		Schemas: map[string]*openapi3.Schema{
			"Verzoek":            verzoek,
			"VerzoekType":        verzoekType,
			"VerzoekTypeVersion": version,
		},
	}
}

// resourceSchema — объект с общими полями url, urn и uuid.
func resourceSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("url", readOnly(openapi3.NewStringSchema().WithFormat("uri"))).
		WithProperty("urn", readOnly(urnSchema())).
		WithProperty("uuid", readOnly(openapi3.NewUUIDSchema()))
}

func urnSchema() *openapi3.Schema {
	return openapi3.NewStringSchema().WithPattern(`^[uU][rR][nN]:[A-Za-z0-9][A-Za-z0-9-]{0,31}:\S+$`).WithMaxLength(255)
}

func readOnly(s *openapi3.Schema) *openapi3.Schema {
	s.ReadOnly = true
	return s
}

func errorSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("title", openapi3.NewStringSchema()).
		WithProperty("status", openapi3.NewIntegerSchema()).
		WithProperty("detail", openapi3.NewStringSchema()).
		WithPropertyRef("invalid_params", &openapi3.SchemaRef{
			Value: openapi3.NewArraySchema().WithItems(fieldErrorSchema()),
		})
	s.Required = []string{"code", "title", "status", "detail"}
	return s
}

func fieldErrorSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("reason", openapi3.NewStringSchema())
	s.Required = []string{"name", "code", "reason"}
	return s
}

// shapeSchema переводит встроенную JSON Schema формы в схему OpenAPI.
func shapeSchema(shape *payload.Shape) (*openapi3.Schema, error) {
	var doc map[string]any
	if err := json.Unmarshal(shape.Schema, &doc); err != nil {
		return nil, fmt.Errorf("схема формы %s: %w", shape.Kind, err)
	}
	delete(doc, "$schema")
	delete(doc, "$id")
	portableFormats(doc)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("схема формы %s: %w", shape.Kind, err)
	}
	s := &openapi3.Schema{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("схема формы %s: %w", shape.Kind, err)
	}
	return s, nil
}

// openAPIFormats — форматы, известные валидатору документа.
var openAPIFormats = map[string]bool{
	"byte": true, "binary": true, "date": true, "date-time": true, "password": true,
	"email": true, "uri": true, "uuid": true, "int32": true, "int64": true,
	"float": true, "double": true,
}

// portableFormats переносит собственные форматы (decimal, iban) в x-format.
func portableFormats(node map[string]any) {
	if f, ok := node["format"].(string); ok && !openAPIFormats[f] {
		delete(node, "format")
		node["x-format"] = f
	}
	for _, v := range node {
		switch child := v.(type) {
		case map[string]any:
			portableFormats(child)
		case []any:
			for _, item := range child {
				if m, ok := item.(map[string]any); ok {
					portableFormats(m)
				}
			}
		}
	}
}

// statusEnum — статусы версии в порядке жизненного цикла.
func statusEnum() []any {
	out := make([]any, 0, len(lifecycle.Statuses()))
	for _, st := range lifecycle.Statuses() {
		out = append(out, string(st))
	}
	return out
}

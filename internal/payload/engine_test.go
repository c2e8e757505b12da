package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maykinmedia/open-vtb-sub000/internal/jsonschema"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

func newEngine() *Engine {
	return NewEngine(jsonschema.MustNew(32))
}

func parse(t *testing.T, body string) *wire.Object {
	t.Helper()
	obj, err := wire.ParseObject([]byte(body))
	require.NoError(t, err)
	return obj
}

const betaalBody = `{"titel":"t","details":{"bedrag":"11","transactieomschrijving":"x","doelrekening":{"naam":"n","iban":"NL18BANK23481326"}}}`

func TestDeserialize_CreateBetaaltaak(t *testing.T) {
	e := newEngine()
	body := parse(t, betaalBody)

	res, ok := e.Deserialize(Request{EndpointKind: "betaaltaak", Body: body})
	require.True(t, ok, "ошибки: %v", body.Errors().Items())
	assert.Equal(t, "betaaltaak", res.Kind)
	assert.Equal(t, "EUR", res.Details["valuta"])
	assert.Equal(t, "11.00", res.Details["bedrag"], "bedrag с двумя знаками")

	wireDetails := e.Serialize(res.Kind, res.Details)
	assert.Equal(t, "EUR", wireDetails["valuta"])
}

func TestDeserialize_DiscriminatorOnCreate(t *testing.T) {
	e := newEngine()
	body := parse(t, `{"taakSoort":"formuliertaak","details":{}}`)

	_, ok := e.Deserialize(Request{EndpointKind: "betaaltaak", Body: body})
	require.False(t, ok)
	items := body.Errors().Items()
	require.NotEmpty(t, items)
	assert.Equal(t, validation.FieldError{
		Name:   "taakSoort",
		Code:   "invalid",
		Reason: "Dit veld wordt automatisch ingevuld; het kan niet worden geselecteerd.",
	}, items[0])
}

func TestDeserialize_InvalidIBAN(t *testing.T) {
	e := newEngine()
	body := parse(t, `{"details":{"bedrag":"11","transactieomschrijving":"x","doelrekening":{"naam":"n","iban":"test"}}}`)

	_, ok := e.Deserialize(Request{EndpointKind: "betaaltaak", Body: body})
	require.False(t, ok)
	items := body.Errors().Items()
	require.Len(t, items, 1)
	assert.Equal(t, validation.FieldError{
		Name:   "details.doelrekening.iban",
		Code:   "invalid",
		Reason: "'test' is not a valid IBAN",
	}, items[0])
}

func TestDeserialize_RequiredAndValuta(t *testing.T) {
	e := newEngine()
	body := parse(t, `{"details":{"bedrag":"11.999","valuta":"USD","doelrekening":{"naam":"n"}}}`)

	_, ok := e.Deserialize(Request{EndpointKind: "betaaltaak", Body: body})
	require.False(t, ok)

	errs := body.Errors()
	got := map[string]string{}
	for _, fe := range errs.Items() {
		got[fe.Name] = fe.Code
	}
	assert.Equal(t, "invalid", got["details.bedrag"])
	assert.Equal(t, "required", got["details.transactieomschrijving"])
	assert.Equal(t, "required", got["details.doelrekening.iban"])
	assert.Equal(t, "invalid_choice", got["details.valuta"])
}

func TestDeserialize_PartialMergesTopLevel(t *testing.T) {
	e := newEngine()
	existing := &Existing{
		Kind: "betaaltaak",
		Details: map[string]any{
			"bedrag":                 "11",
			"valuta":                 "EUR",
			"transactieomschrijving": "x",
			"doelrekening":           map[string]any{"naam": "n", "iban": "NL18BANK23481326"},
		},
	}

	body := parse(t, `{"details":{"bedrag":"20.50","doelrekening":{"naam":"nieuw"}}}`)
	res, ok := e.Deserialize(Request{EndpointKind: "betaaltaak", Body: body, Partial: true, Existing: existing})
	require.True(t, ok, "ошибки: %v", body.Errors().Items())

	assert.Equal(t, "20.50", res.Details["bedrag"])
	assert.Equal(t, "x", res.Details["transactieomschrijving"])
	rekening := res.Details["doelrekening"].(map[string]any)
	assert.Equal(t, "nieuw", rekening["naam"])
	assert.Equal(t, "NL18BANK23481326", rekening["iban"], "doelrekening сливается на своём уровне")
}

func TestDeserialize_BedragNormalized(t *testing.T) {
	e := newEngine()
	tests := []struct {
		bedrag string
		want   string
	}{
		{"11", "11.00"},
		{"11.5", "11.50"},
		{"0.99", "0.99"},
	}
	for _, tt := range tests {
		body := parse(t, `{"details":{"bedrag":"`+tt.bedrag+`","transactieomschrijving":"x",
			"doelrekening":{"naam":"n","iban":"NL18BANK23481326"}}}`)
		res, ok := e.Deserialize(Request{EndpointKind: "betaaltaak", Body: body})
		require.True(t, ok, "ошибки: %v", body.Errors().Items())
		assert.Equal(t, tt.want, res.Details["bedrag"])
		assert.Equal(t, tt.want, e.Serialize(res.Kind, res.Details)["bedrag"])
	}
}

func TestDeserialize_PartialWithoutDetails(t *testing.T) {
	e := newEngine()
	existing := &Existing{
		Kind:    "gegevensuitvraagtaak",
		Details: map[string]any{"uitvraag_link": "https://example.com/x", "ontvangen_gegevens": map[string]any{"a": 1.0}},
	}
	body := parse(t, `{}`)
	res, ok := e.Deserialize(Request{EndpointKind: "gegevensuitvraagtaak", Body: body, Partial: true, Existing: existing})
	require.True(t, ok)
	assert.Equal(t, existing.Details, res.Details)
}

func TestDeserialize_KindChangeDiscardsDetails(t *testing.T) {
	e := newEngine()
	existing := &Existing{
		Kind:    "gegevensuitvraagtaak",
		Details: map[string]any{"uitvraag_link": "https://example.com/x"},
	}

	body := parse(t, `{"taakSoort":"formuliertaak","details":{}}`)
	_, ok := e.Deserialize(Request{EndpointKind: "gegevensuitvraagtaak", Body: body, Partial: true, Existing: existing})
	require.False(t, ok)
	assert.True(t, body.Errors().Has("details.formulierDefinitie"))

	body = parse(t, `{"taakSoort":"formuliertaak","details":{"formulierDefinitie":{"components":[{"type":"textfield","key":"naam"}]}}}`)
	res, ok := e.Deserialize(Request{EndpointKind: "gegevensuitvraagtaak", Body: body, Partial: true, Existing: existing})
	require.True(t, ok, "ошибки: %v", body.Errors().Items())
	assert.Equal(t, "formuliertaak", res.Kind)
	assert.NotContains(t, res.Details, "uitvraag_link")
	assert.Contains(t, res.Details, "formulier_definitie")
	assert.Equal(t, map[string]any{}, res.Details["ontvangen_gegevens"])
}

func TestDeserialize_UnknownKindOnUpdate(t *testing.T) {
	e := newEngine()
	body := parse(t, `{"taakSoort":"onbekend"}`)
	_, ok := e.Deserialize(Request{Body: body, Partial: true, Existing: &Existing{Kind: "betaaltaak"}})
	require.False(t, ok)
	assert.Equal(t, validation.CodeUnknownChoice, body.Errors().Items()[0].Code)
}

func TestDeserialize_FormulierDefinitieSchema(t *testing.T) {
	e := newEngine()
	body := parse(t, `{"details":{"formulierDefinitie":{"components":[{"type":"textfield"}]}}}`)
	_, ok := e.Deserialize(Request{EndpointKind: "formuliertaak", Body: body})
	require.False(t, ok)
	assert.True(t, body.Errors().Has("details.formulierDefinitie.components.0.key"), "ошибки: %v", body.Errors().Items())
}

func TestDeserialize_UitvraagLink(t *testing.T) {
	e := newEngine()
	body := parse(t, `{"details":{"uitvraagLink":"ftp://example.com/a"}}`)
	_, ok := e.Deserialize(Request{EndpointKind: "gegevensuitvraagtaak", Body: body})
	require.False(t, ok)
	assert.True(t, body.Errors().Has("details.uitvraagLink"))

	body = parse(t, `{"details":{"uitvraagLink":"https://example.com/a"}}`)
	res, ok := e.Deserialize(Request{EndpointKind: "gegevensuitvraagtaak", Body: body})
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", res.Details["uitvraag_link"])

	wireDetails := e.Serialize(res.Kind, res.Details)
	assert.Equal(t, "https://example.com/a", wireDetails["uitvraagLink"])
	assert.Equal(t, map[string]any{}, wireDetails["ontvangenGegevens"])
}

func TestDeserialize_DetailsRequiredOnCreate(t *testing.T) {
	e := newEngine()
	body := parse(t, `{"titel":"t"}`)
	_, ok := e.Deserialize(Request{EndpointKind: "betaaltaak", Body: body})
	require.False(t, ok)
	assert.Equal(t, validation.FieldError{Name: "details", Code: "required", Reason: validation.ReasonRequired}, body.Errors().Items()[0])
}

func TestKinds(t *testing.T) {
	assert.Equal(t, []string{"betaaltaak", "formuliertaak", "gegevensuitvraagtaak"}, newEngine().Kinds())
}

func TestSnakeToCamel(t *testing.T) {
	assert.Equal(t, "uitvraagLink", snakeToCamel("uitvraag_link"))
	assert.Equal(t, "bedrag", snakeToCamel("bedrag"))
	assert.Equal(t, "aB", snakeToCamel("a__b"))
}

package jsonschema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rekeningSchema = `{
	"type": "object",
	"required": ["bedrag", "doelrekening"],
	"properties": {
		"bedrag": {"type": "string", "format": "decimal"},
		"doelrekening": {
			"type": "object",
			"required": ["naam", "iban"],
			"properties": {
				"naam": {"type": "string", "maxLength": 70},
				"iban": {"type": "string", "format": "iban"}
			}
		}
	}
}`

func TestValidate_OK(t *testing.T) {
	v := MustNew(16)
	issues, err := v.Validate([]byte(rekeningSchema), []byte(`{"bedrag":"11.50","doelrekening":{"naam":"n","iban":"NL18BANK23481326"}}`), "details")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidate_FormatErrors(t *testing.T) {
	v := MustNew(16)
	issues, err := v.Validate([]byte(rekeningSchema), []byte(`{"bedrag":"1.234","doelrekening":{"naam":"n","iban":"test"}}`), "details")
	require.NoError(t, err)

	got := issues.Map()
	assert.Equal(t, "'test' is not a valid IBAN", got["details.doelrekening.iban"])
	assert.Equal(t, "'1.234' has more than 2 decimal places", got["details.bedrag"])
	for _, i := range issues {
		assert.Equal(t, KindFormat, i.Kind)
	}
}

func TestValidate_Required(t *testing.T) {
	v := MustNew(16)
	issues, err := v.Validate([]byte(rekeningSchema), []byte(`{"doelrekening":{"naam":"n"}}`), "details")
	require.NoError(t, err)

	got := issues.Map()
	require.Contains(t, got, "details.bedrag")
	require.Contains(t, got, "details.doelrekening.iban")
	assert.Equal(t, "'bedrag' is a required property", got["details.bedrag"])
	for _, i := range issues {
		assert.Equal(t, KindRequired, i.Kind)
	}
}

func TestValidate_EmptyLabel(t *testing.T) {
	v := MustNew(16)
	issues, err := v.Validate([]byte(`{"type":"object","properties":{"a":{"type":"integer"}}}`), []byte(`{"a":"x"}`), "")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "a", issues[0].Path)
	assert.Equal(t, KindType, issues[0].Kind)
}

func TestValidate_Draft2020(t *testing.T) {
	v := MustNew(16)
	schema := `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "array",
		"prefixItems": [{"type": "string"}],
		"items": false
	}`
	issues, err := v.Validate([]byte(schema), []byte(`["a"]`), "data")
	require.NoError(t, err)
	assert.Empty(t, issues)

	issues, err = v.Validate([]byte(schema), []byte(`["a", 1]`), "data")
	require.NoError(t, err)
	assert.NotEmpty(t, issues)
}

func TestCheckDecimal(t *testing.T) {
	tests := []struct {
		in  string
		err string
	}{
		{"11", ""},
		{"11.5", ""},
		{"-0.01", ""},
		{"11.505", "'11.505' has more than 2 decimal places"},
		{"abc", "'abc' is not a valid decimal number"},
		{"", "'' is not a valid decimal number"},
	}
	for _, tt := range tests {
		err := CheckDecimal(tt.in)
		if tt.err == "" {
			assert.NoError(t, err, tt.in)
		} else {
			assert.EqualError(t, err, tt.err)
		}
	}
}

func TestNormalizeDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"11", "11.00"},
		{"20.5", "20.50"},
		{"0.01", "0.01"},
		{"-3", "-3.00"},
		{"007.10", "7.10"},
	}
	for _, tt := range tests {
		got, err := NormalizeDecimal(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := NormalizeDecimal("11.505")
	assert.EqualError(t, err, "'11.505' has more than 2 decimal places")
}

func TestCheckSchema(t *testing.T) {
	v := MustNew(16)
	assert.NoError(t, v.CheckSchema([]byte(rekeningSchema)))
	assert.NoError(t, v.CheckSchema([]byte(`true`)))

	for _, doc := range []string{
		`{"type": "unknown-type"}`,
		`{"required": "bedrag"}`,
		`{"minLength": -1}`,
		`[]`,
		`not json`,
	} {
		err := v.CheckSchema([]byte(doc))
		assert.True(t, errors.Is(err, ErrInvalidSchema), "ожидается ErrInvalidSchema для %s, получено %v", doc, err)
	}
}

func TestCache_Reuse(t *testing.T) {
	v := MustNew(2)
	_, err := v.Validate([]byte(rekeningSchema), []byte(`{}`), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, v.cache.Len())

	_, err = v.Validate([]byte(rekeningSchema), []byte(`{}`), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, v.cache.Len(), "повторная компиляция не должна добавлять запись")
}

func TestValidate_ExternalRefNotLoaded(t *testing.T) {
	v := MustNew(4)
	err := v.CheckSchema([]byte(`{"$ref": "file:///etc/passwd"}`))
	assert.True(t, errors.Is(err, ErrInvalidSchema))
}

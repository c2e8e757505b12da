package wire

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
)

func TestParseObject(t *testing.T) {
	obj, err := ParseObject(nil)
	require.NoError(t, err)
	assert.True(t, obj.Empty())

	for _, body := range []string{`[]`, `null`, `"x"`, `{`} {
		_, err := ParseObject([]byte(body))
		assert.True(t, errors.Is(err, ErrNotObject), "тело %s", body)
	}
}

func TestGet_Presence(t *testing.T) {
	obj, err := ParseObject([]byte(`{"titel":"t","toelichting":null,"aantal":"x"}`))
	require.NoError(t, err)

	titel := Get[string](obj, "titel")
	assert.True(t, titel.Present())
	assert.Equal(t, "t", titel.Value)

	toelichting := Get[string](obj, "toelichting")
	assert.True(t, toelichting.Set)
	assert.True(t, toelichting.Null)
	assert.False(t, toelichting.Present())

	missing := Get[string](obj, "status")
	assert.False(t, missing.Set)

	aantal := Get[int](obj, "aantal")
	assert.False(t, aantal.Set)
	require.True(t, obj.Errors().Has("aantal"))
	assert.Equal(t, validation.CodeInvalid, obj.Errors().Items()[0].Code)
}

func TestRequire(t *testing.T) {
	obj, err := ParseObject([]byte(`{"b":null}`))
	require.NoError(t, err)

	assert.False(t, Require(obj, "a", Get[string](obj, "a")))
	assert.False(t, Require(obj, "b", Get[string](obj, "b")))

	items := obj.Errors().Sorted()
	require.Len(t, items, 2)
	assert.Equal(t, validation.FieldError{Name: "a", Code: validation.CodeRequired, Reason: validation.ReasonRequired}, items[0])
	assert.Equal(t, validation.CodeNull, items[1].Code)
}

func TestChild_And_Items(t *testing.T) {
	obj, err := ParseObject([]byte(`{
		"doelrekening": {"naam": "n"},
		"bijlagen": [{"informatieObject": "urn:ab:a"}, 5],
		"leeg": null,
		"fout": 3
	}`))
	require.NoError(t, err)

	child, p := obj.Child("doelrekening")
	require.NotNil(t, child)
	assert.True(t, p.Set)
	Require(child, "iban", Get[string](child, "iban"))
	assert.True(t, obj.Errors().Has("doelrekening.iban"))

	_, p = obj.Child("leeg")
	assert.True(t, p.Null)

	_, _ = obj.Child("fout")
	assert.True(t, obj.Errors().Has("fout"))

	items, _ := obj.Items("bijlagen")
	require.Len(t, items, 1)
	assert.Equal(t, "bijlagen.0.informatieObject", items[0].Path("informatieObject"))
	assert.True(t, obj.Errors().Has("bijlagen.1"))
}

func TestDate(t *testing.T) {
	obj, err := ParseObject([]byte(`{"goed":"2026-02-01","fout":"01-02-2026"}`))
	require.NoError(t, err)

	goed := Get[Date](obj, "goed")
	require.True(t, goed.Present())
	assert.True(t, goed.Value.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))

	fout := Get[Date](obj, "fout")
	assert.False(t, fout.Set)
	assert.True(t, obj.Errors().Has("fout"))

	b, err := json.Marshal(goed.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `"2026-02-01"`, string(b))
}

func TestReadOnly(t *testing.T) {
	obj, err := ParseObject([]byte(`{"taakSoort":"formuliertaak"}`))
	require.NoError(t, err)
	obj.ReadOnly("taakSoort")
	obj.ReadOnly("urn")

	items := obj.Errors().Items()
	require.Len(t, items, 1)
	assert.Equal(t, validation.FieldError{
		Name:   "taakSoort",
		Code:   validation.CodeInvalid,
		Reason: "Dit veld wordt automatisch ingevuld; het kan niet worden geselecteerd.",
	}, items[0])
}

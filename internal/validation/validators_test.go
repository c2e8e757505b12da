package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIBAN(t *testing.T) {
	tests := []struct {
		value string
		valid bool
	}{
		{"NL18BANK23481326", true},
		{"nl18bank23481326", true},
		{"DE89370400440532013000", true},
		{"test", false},
		{"NL1", false},
		{"1234BANK", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidIBAN(tt.value), "значение %q", tt.value)
	}
}

func TestPostcode(t *testing.T) {
	for _, v := range []string{"1015 CJ", "1015CJ", "9999zz"} {
		errs := New()
		Postcode(errs, "postcode", v)
		assert.True(t, errs.Empty(), "ожидался валидный индекс %q", v)
	}
	for _, v := range []string{"0123 AB", "12345", "1234 A", ""} {
		errs := New()
		Postcode(errs, "postcode", v)
		assert.False(t, errs.Empty(), "ожидался невалидный индекс %q", v)
	}
}

func TestMaxLength(t *testing.T) {
	errs := New()
	MaxLength(errs, "onderwerp", "ééééé", 5)
	assert.True(t, errs.Empty(), "длина считается в символах, а не байтах")

	MaxLength(errs, "onderwerp", "123456", 5)
	require.Len(t, errs.Items(), 1)
	assert.Equal(t, CodeMaxLength, errs.Items()[0].Code)
}

func TestURN(t *testing.T) {
	errs := New()
	URN(errs, "geadresseerde", "urn:maykin:berichten:bericht:6c2f2d1b-8a3b-4b6c-9a41-0b6f5c6f3a11")
	URN(errs, "informatieObject", "urn:ab:a")
	assert.True(t, errs.Empty())

	URN(errs, "geadresseerde", "http://example.com")
	URN(errs, "informatieObject", "urn:x:a")
	require.Len(t, errs.Items(), 2)
	assert.Equal(t, CodeInvalidURN, errs.Items()[0].Code)
}

func TestStartBeforeEnd(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	errs := New()
	StartBeforeEnd(errs, "einddatumHandelingsTermijn", start, start, "x")
	assert.True(t, errs.Empty(), "равные даты допустимы")

	StartBeforeEnd(errs, "einddatumHandelingsTermijn", start, end, "x")
	require.Len(t, errs.Items(), 1)
	assert.Equal(t, CodeDateMismatch, errs.Items()[0].Code)
}

func TestUniqueURNs(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		unique bool
	}{
		{"разные", []string{"urn:maykin:doc:a", "urn:maykin:doc:b"}, true},
		{"повтор", []string{"urn:maykin:doc:a", "urn:maykin:doc:a"}, false},
		{"NID без учёта регистра", []string{"urn:maykin:doc:a", "URN:Maykin:doc:a"}, false},
		{"NSS с учётом регистра", []string{"urn:maykin:doc:a", "urn:maykin:doc:A"}, true},
		{"повтор невалидных URN", []string{"urn:x:a", "urn:x:a"}, false},
		{"пустой список", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := New()
			UniqueURNs(errs, "bijlagen", tt.values)
			if tt.unique {
				assert.True(t, errs.Empty())
				return
			}
			require.Len(t, errs.Items(), 1)
			assert.Equal(t, FieldError{Name: "bijlagen", Code: CodeUnique, Reason: ReasonUnique}, errs.Items()[0])
		})
	}
}

func TestInvalidChoice(t *testing.T) {
	errs := New()
	Choice(errs, "status", "Draft", "draft", "published")
	require.Len(t, errs.Items(), 1)
	assert.Equal(t, CodeInvalidChoice, errs.Items()[0].Code)
	assert.Equal(t, `"Draft" is een ongeldige keuze.`, errs.Items()[0].Reason)
}

func TestErrors_Merge(t *testing.T) {
	inner := Single("doelrekening.iban", CodeInvalid, "bad")
	outer := New()
	outer.Merge("details", inner)
	assert.True(t, outer.Has("details.doelrekening.iban"))
	assert.Error(t, outer.Err())
	assert.NoError(t, New().Err())
}

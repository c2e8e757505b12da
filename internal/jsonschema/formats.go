package jsonschema

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/shopspring/decimal"

	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
)

// MaxDecimalPlaces — максимальное число знаков после запятой для формата decimal.
const MaxDecimalPlaces = 2

// decimalFormat — строка с десятичным числом и не более чем двумя знаками после запятой.
var decimalFormat = &jsonschema.Format{
	Name: "decimal",
	Validate: func(v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		return CheckDecimal(s)
	},
}

// ibanFormat — формат IBAN без проверки контрольной суммы.
var ibanFormat = &jsonschema.Format{
	Name: "iban",
	Validate: func(v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if !validation.ValidIBAN(s) {
			return fmt.Errorf("'%s' is not a valid IBAN", s)
		}
		return nil
	},
}

// CheckDecimal проверяет строку по правилам формата decimal.
func CheckDecimal(s string) error {
	_, err := parseDecimal(s)
	return err
}

// NormalizeDecimal приводит строку формата decimal к MaxDecimalPlaces
// знакам после запятой: "11" → "11.00", "20.5" → "20.50".
func NormalizeDecimal(s string) (string, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return "", err
	}
	return d.StringFixed(MaxDecimalPlaces), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("'%s' is not a valid decimal number", s)
	}
	if d.Exponent() < -MaxDecimalPlaces {
		return decimal.Decimal{}, fmt.Errorf("'%s' has more than %d decimal places", s, MaxDecimalPlaces)
	}
	return d, nil
}

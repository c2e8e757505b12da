package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maykinmedia/open-vtb-sub000/internal/urn"
)

var (
	// ibanPattern — формат IBAN без проверки контрольной суммы.
	ibanPattern = regexp.MustCompile(`^[A-Za-z]{2}[0-9]{2}[A-Za-z0-9]{1,30}$`)
	// postcodePattern — нидерландский почтовый индекс (1234 AB / 1234AB).
	postcodePattern = regexp.MustCompile(`^[1-9][0-9]{3} ?[A-Za-z]{2}$`)
)

// ValidIBAN сообщает, соответствует ли значение формату IBAN.
// Используется форматом iban JSON Schema.
func ValidIBAN(v string) bool {
	return ibanPattern.MatchString(v)
}

// Postcode проверяет нидерландский почтовый индекс.
func Postcode(errs *Errors, name, value string) {
	if !postcodePattern.MatchString(value) {
		errs.Add(name, CodeInvalid, "Ongeldige postcode.")
	}
}

// MaxLength проверяет длину строки в символах.
func MaxLength(errs *Errors, name, value string, limit int) {
	if utf8.RuneCountInString(value) > limit {
		errs.Add(name, CodeMaxLength, fmt.Sprintf("Zorg ervoor dat dit veld niet meer dan %d tekens bevat.", limit))
	}
}

// NotBlank проверяет, что обязательная строка не пуста.
func NotBlank(errs *Errors, name, value string) {
	if strings.TrimSpace(value) == "" {
		errs.Add(name, "blank", "Dit veld mag niet leeg zijn.")
	}
}

// URN проверяет синтаксис URN по RFC 8141 без разыменования.
func URN(errs *Errors, name, value string) {
	if _, err := urn.Parse(value); err != nil {
		errs.Add(name, CodeInvalidURN, ReasonInvalidURN)
	}
}

// StartBeforeEnd проверяет, что start не позже end. Ошибка пишется на поле endName.
func StartBeforeEnd(errs *Errors, endName string, start, end time.Time, reason string) {
	if start.IsZero() || end.IsZero() {
		return
	}
	if start.After(end) {
		errs.Add(endName, CodeDateMismatch, reason)
	}
}

// Choice проверяет, что value входит в допустимый набор.
func Choice(errs *Errors, name, value string, allowed ...string) {
	for _, a := range allowed {
		if a == value {
			return
		}
	}
	InvalidChoice(errs, name, value)
}

// InvalidChoice фиксирует недопустимое значение перечисления.
func InvalidChoice(errs *Errors, name, value string) {
	errs.Add(name, CodeInvalidChoice, fmt.Sprintf("%q is een ongeldige keuze.", value))
}

// UniqueURNs отмечает ошибку unique, если в values есть эквивалентные URN
// (RFC 8141: NID без учёта регистра). Значения, не разобранные как URN,
// сравниваются как строки.
func UniqueURNs(errs *Errors, name string, values []string) {
	parsed := make([]urn.URN, 0, len(values))
	raw := make(map[string]struct{}, len(values))
	for _, v := range values {
		u, err := urn.Parse(v)
		if err != nil {
			if _, ok := raw[v]; ok {
				errs.Add(name, CodeUnique, ReasonUnique)
				return
			}
			raw[v] = struct{}{}
			continue
		}
		for _, seen := range parsed {
			if seen.Equivalent(u) {
				errs.Add(name, CodeUnique, ReasonUnique)
				return
			}
		}
		parsed = append(parsed, u)
	}
}

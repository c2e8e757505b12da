// Пакет urn — разбор и построение URN по RFC 8141 и кодек
// ресурсных идентификаторов вида urn:<ns>:<component>:<resource>:<uuid>.
package urn

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid — строка не является URN по RFC 8141.
var ErrInvalid = errors.New("некорректный URN")

const (
	pchar = `(?:[A-Za-z0-9\-._~!$&'()*+,;=:@]|%[0-9A-Fa-f]{2})`
	nid   = `([A-Za-z0-9][A-Za-z0-9-]{0,30}[A-Za-z0-9])`
	nss   = `(` + pchar + `(?:` + pchar + `|/)*)`
	rq    = `(?:` + pchar + `|/|\?)*?`
)

var pattern = regexp.MustCompile(
	`^(?i:urn):` + nid + `:` + nss +
		`(?:\?\+(` + pchar + rq + `))?` +
		`(?:\?=(` + pchar + rq + `))?` +
		`(?:#((?:` + pchar + `|/|\?)*))?$`,
)

// URN — разобранный URN.
type URN struct {
	NID        string
	NSS        string
	RComponent string
	QComponent string
	Fragment   string
}

// Parse разбирает строку по грамматике RFC 8141.
func Parse(s string) (URN, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return URN{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return URN{
		NID:        m[1],
		NSS:        m[2],
		RComponent: m[3],
		QComponent: m[4],
		Fragment:   m[5],
	}, nil
}

// Valid сообщает, является ли строка корректным URN.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// String собирает URN обратно в строку.
func (u URN) String() string {
	var b strings.Builder
	b.WriteString("urn:")
	b.WriteString(u.NID)
	b.WriteByte(':')
	b.WriteString(u.NSS)
	if u.RComponent != "" {
		b.WriteString("?+")
		b.WriteString(u.RComponent)
	}
	if u.QComponent != "" {
		b.WriteString("?=")
		b.WriteString(u.QComponent)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}

// Equivalent сравнивает URN по правилам RFC 8141 §3:
// NID без учёта регистра, NSS побайтно, r/q/f не учитываются.
func (u URN) Equivalent(other URN) bool {
	return strings.EqualFold(u.NID, other.NID) && u.NSS == other.NSS
}

// Пакет jsonschema — валидация JSON-документов по JSON Schema (Draft-07 по
// умолчанию, 2020-12 через $schema) с кастомными форматами decimal и iban.
// Скомпилированные схемы кэшируются по SHA-256 содержимого.
package jsonschema

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrInvalidSchema — документ не является корректной JSON Schema.
var ErrInvalidSchema = errors.New("некорректная JSON Schema")

var cacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "openvtb_jsonschema_cache_lookups_total",
		Help: "Обращения к кэшу скомпилированных JSON Schema",
	},
	[]string{"result"},
)

// Kinds of reported issues.
const (
	KindRequired = "required"
	KindFormat   = "format"
	KindType     = "type"
	KindOther    = "invalid"
)

// Issue — одна ошибка валидации экземпляра.
type Issue struct {
	// Path — путь через точку, начинается с метки вызывающего.
	Path    string
	Kind    string
	Message string
}

// Issues — упорядоченный по пути список ошибок.
type Issues []Issue

// Map возвращает ошибки в виде {path: message}; при нескольких ошибках
// на одном пути сохраняется первая.
func (is Issues) Map() map[string]string {
	out := make(map[string]string, len(is))
	for _, i := range is {
		if _, ok := out[i.Path]; !ok {
			out[i.Path] = i.Message
		}
	}
	return out
}

// Validator компилирует и применяет схемы.
type Validator struct {
	cache   *lru.Cache[string, *jsonschema.Schema]
	printer *message.Printer
}

// New создаёт валидатор с LRU-кэшем на cacheSize схем.
func New(cacheSize int) (*Validator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("создание кэша схем: %w", err)
	}
	return &Validator{
		cache:   cache,
		printer: message.NewPrinter(language.English),
	}, nil
}

// MustNew — New для фиксированных размеров кэша; паникует при ошибке.
func MustNew(cacheSize int) *Validator {
	v, err := New(cacheSize)
	if err != nil {
		panic(err)
	}
	return v
}

// CheckSchema проверяет, что doc — корректная JSON Schema (по её метасхеме).
func (v *Validator) CheckSchema(doc []byte) error {
	_, err := v.compile(doc)
	return err
}

// Validate проверяет instance (сырой JSON) по схеме schemaDoc.
// Пути ошибок начинаются с label. Ошибка возвращается только если
// сама схема некорректна или instance не является JSON.
func (v *Validator) Validate(schemaDoc, instance []byte, label string) (Issues, error) {
	sch, err := v.compile(schemaDoc)
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(instance))
	if err != nil {
		return nil, fmt.Errorf("разбор экземпляра: %w", err)
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("валидация экземпляра: %w", err)
	}

	var issues Issues
	v.collect(verr, label, &issues)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return issues, nil
}

// ValidateValue — Validate для уже декодированного значения.
func (v *Validator) ValidateValue(schemaDoc []byte, instance any, label string) (Issues, error) {
	raw, err := json.Marshal(instance)
	if err != nil {
		return nil, fmt.Errorf("сериализация экземпляра: %w", err)
	}
	return v.Validate(schemaDoc, raw, label)
}

// compile возвращает скомпилированную схему из кэша или компилирует её.
func (v *Validator) compile(doc []byte) (*jsonschema.Schema, error) {
	sum := sha256.Sum256(doc)
	key := hex.EncodeToString(sum[:])

	if sch, ok := v.cache.Get(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return sch, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if _, ok := parsed.(map[string]any); !ok {
		if _, isBool := parsed.(bool); !isBool {
			return nil, fmt.Errorf("%w: схема должна быть объектом или boolean", ErrInvalidSchema)
		}
	}

	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft7)
	c.AssertFormat()
	c.RegisterFormat(decimalFormat)
	c.RegisterFormat(ibanFormat)
	// Внешние $ref не загружаются.
	c.UseLoader(jsonschema.SchemeURLLoader{})

	url := "mem://schemas/" + key + ".json"
	if err := c.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSchema, v.describeCompileError(err))
	}

	v.cache.Add(key, sch)
	return sch, nil
}

// describeCompileError формирует краткое описание ошибки компиляции схемы.
func (v *Validator) describeCompileError(err error) string {
	var serr *jsonschema.SchemaValidationError
	if errors.As(err, &serr) && serr.Err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(serr.Err, &ve) {
			var issues Issues
			v.collect(ve, "", &issues)
			parts := make([]string, 0, len(issues))
			for _, i := range issues {
				if i.Path == "" {
					parts = append(parts, i.Message)
				} else {
					parts = append(parts, i.Path+": "+i.Message)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
	}
	return err.Error()
}

// collect обходит дерево ошибок и добавляет листья в issues.
func (v *Validator) collect(e *jsonschema.ValidationError, label string, issues *Issues) {
	if len(e.Causes) > 0 {
		for _, c := range e.Causes {
			v.collect(c, label, issues)
		}
		return
	}

	base := joinPath(label, e.InstanceLocation)
	switch k := e.ErrorKind.(type) {
	case *kind.Required:
		for _, name := range k.Missing {
			*issues = append(*issues, Issue{
				Path:    joinPath(base, []string{name}),
				Kind:    KindRequired,
				Message: fmt.Sprintf("'%s' is a required property", name),
			})
		}
	case *kind.Format:
		msg := k.LocalizedString(v.printer)
		if k.Err != nil {
			msg = k.Err.Error()
		}
		*issues = append(*issues, Issue{Path: base, Kind: KindFormat, Message: msg})
	case *kind.Type:
		*issues = append(*issues, Issue{Path: base, Kind: KindType, Message: k.LocalizedString(v.printer)})
	default:
		*issues = append(*issues, Issue{Path: base, Kind: KindOther, Message: e.ErrorKind.LocalizedString(v.printer)})
	}
}

func joinPath(base string, segments []string) string {
	parts := make([]string, 0, len(segments)+1)
	if base != "" {
		parts = append(parts, base)
	}
	parts = append(parts, segments...)
	return strings.Join(parts, ".")
}

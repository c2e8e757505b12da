package payload

import (
	"strings"
	"unicode"
)

// Field описывает одно поле details: имя в хранилище и правила слияния.
type Field struct {
	// Snake — имя ключа в хранилище.
	Snake string
	// Children — вложенные поля; nil для скалярных и непрозрачных значений.
	Children FieldMap
	// Opaque — поддерево копируется без переименования ключей.
	Opaque bool
	// Merge — при частичном обновлении поддерево сливается на один уровень,
	// а не заменяется.
	Merge bool
}

// FieldMap — дерево полей: camelCase-ключ → описание.
type FieldMap map[string]Field

// toStorage переводит значение из camelCase (провод) в snake_case (хранилище).
// Ключи, которых нет в карте, отбрасываются.
func (m FieldMap) toStorage(wire map[string]any) map[string]any {
	out := make(map[string]any, len(wire))
	for key, val := range wire {
		f, ok := m[key]
		if !ok {
			continue
		}
		out[f.Snake] = f.toStorage(val)
	}
	return out
}

func (f Field) toStorage(val any) any {
	if f.Opaque || f.Children == nil {
		return val
	}
	if obj, ok := val.(map[string]any); ok {
		return f.Children.toStorage(obj)
	}
	return val
}

// toWire переводит хранимое значение в camelCase. Неизвестные ключи
// переименовываются по общему правилу snake → camel.
func (m FieldMap) toWire(stored map[string]any) map[string]any {
	reverse := make(map[string]string, len(m))
	for camel, f := range m {
		reverse[f.Snake] = camel
	}

	out := make(map[string]any, len(stored))
	for key, val := range stored {
		camel, ok := reverse[key]
		if !ok {
			out[snakeToCamel(key)] = val
			continue
		}
		f := m[camel]
		if !f.Opaque && f.Children != nil {
			if obj, ok := val.(map[string]any); ok {
				val = f.Children.toWire(obj)
			}
		}
		out[camel] = val
	}
	return out
}

// merge выполняет частичное слияние incoming поверх stored (оба в camelCase).
// Верхний уровень сливается по ключам; вложенные объекты заменяются
// целиком, кроме полей с Merge=true.
func (m FieldMap) merge(stored, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(stored)+len(incoming))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range incoming {
		f, ok := m[k]
		prev, hasPrev := out[k].(map[string]any)
		next, isObj := v.(map[string]any)
		if ok && f.Merge && hasPrev && isObj {
			merged := make(map[string]any, len(prev)+len(next))
			for pk, pv := range prev {
				merged[pk] = pv
			}
			for nk, nv := range next {
				merged[nk] = nv
			}
			out[k] = merged
			continue
		}
		out[k] = v
	}
	return out
}

// snakeToCamel: "uitvraag_link" → "uitvraagLink".
func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

package urn

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrMisconfigured — для типа сущности не зарегистрирована привязка.
	ErrMisconfigured = errors.New("urn: тип сущности не зарегистрирован")
	// ErrNotFound — URN указывает на несуществующую сущность.
	ErrNotFound = errors.New("urn: сущность не найдена")
	// ErrResourceMismatch — ресурс URN не совпадает с ожидаемым.
	ErrResourceMismatch = errors.New("urn: неожиданный тип ресурса")
	// ErrForeignNamespace — NID не совпадает с пространством имён сервиса.
	ErrForeignNamespace = errors.New("urn: чужое пространство имён")
)

// Ref — разобранная ссылка на ресурс сервиса.
type Ref struct {
	Component string
	Resource  string
	ID        uuid.UUID
}

// Resolver загружает сущность по идентификатору.
// Возвращает ошибку, для которой errors.Is(err, ErrNotFound), если сущности нет.
type Resolver func(ctx context.Context, id uuid.UUID) (any, error)

type binding struct {
	component string
	resource  string
	id        func(any) uuid.UUID
}

// Codec кодирует сущности в URN и обратно.
// Регистрация выполняется при старте; после этого Codec безопасен для
// конкурентного чтения.
type Codec struct {
	namespace string

	mu        sync.RWMutex
	bindings  map[reflect.Type]binding
	resolvers map[string]Resolver
}

// NewCodec создаёт кодек для пространства имён namespace (NID).
func NewCodec(namespace string) *Codec {
	return &Codec{
		namespace: namespace,
		bindings:  make(map[reflect.Type]binding),
		resolvers: make(map[string]Resolver),
	}
}

// Namespace возвращает NID кодека.
func (c *Codec) Namespace() string {
	return c.namespace
}

// Register привязывает тип T к компоненту и ресурсу.
// id извлекает UUID из значения; указатели на T также поддерживаются.
func Register[T any](c *Codec, component, resource string, id func(T) uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := binding{
		component: component,
		resource:  resource,
		id: func(v any) uuid.UUID {
			switch t := v.(type) {
			case T:
				return id(t)
			case *T:
				return id(*t)
			}
			return uuid.Nil
		},
	}
	var zero T
	typ := reflect.TypeOf(zero)
	c.bindings[typ] = b
	c.bindings[reflect.PointerTo(typ)] = b
}

// RegisterResolver задаёт функцию поиска для ресурса.
func (c *Codec) RegisterResolver(resource string, r Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolvers[resource] = r
}

// Encode строит URN сущности.
func (c *Codec) Encode(entity any) (string, error) {
	c.mu.RLock()
	b, ok := c.bindings[reflect.TypeOf(entity)]
	c.mu.RUnlock()
	if !ok || b.component == "" || b.resource == "" {
		return "", fmt.Errorf("%w: %T", ErrMisconfigured, entity)
	}
	return c.Build(b.component, b.resource, b.id(entity)), nil
}

// MustEncode — Encode для зарегистрированных типов; паникует при ошибке конфигурации.
func (c *Codec) MustEncode(entity any) string {
	s, err := c.Encode(entity)
	if err != nil {
		panic(err)
	}
	return s
}

// Build собирает URN из частей.
func (c *Codec) Build(component, resource string, id uuid.UUID) string {
	return fmt.Sprintf("urn:%s:%s:%s:%s", c.namespace, component, resource, id)
}

// canonicalUUIDLen — длина UUID в форме, которую выдаёт Encode.
const canonicalUUIDLen = 36

// Decode разбирает URN сервиса на (component, resource, id).
func (c *Codec) Decode(s string) (Ref, error) {
	u, err := Parse(s)
	if err != nil {
		return Ref{}, err
	}
	if !strings.EqualFold(u.NID, c.namespace) {
		return Ref{}, fmt.Errorf("%w: %q", ErrForeignNamespace, u.NID)
	}
	parts := strings.Split(u.NSS, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("%w: ожидается <component>:<resource>:<uuid>, получено %q", ErrInvalid, u.NSS)
	}
	// Только каноническая форма 8-4-4-4-12: uuid.Parse принимает и {…}, и 32 hex.
	if len(parts[2]) != canonicalUUIDLen {
		return Ref{}, fmt.Errorf("%w: некорректный UUID %q", ErrInvalid, parts[2])
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return Ref{}, fmt.Errorf("%w: некорректный UUID %q", ErrInvalid, parts[2])
	}
	return Ref{Component: parts[0], Resource: parts[1], ID: id}, nil
}

// Resolve разбирает URN, проверяет тип ресурса и загружает сущность.
func (c *Codec) Resolve(ctx context.Context, s, expectedResource string) (any, error) {
	ref, err := c.Decode(s)
	if err != nil {
		return nil, err
	}
	if ref.Resource != expectedResource {
		return nil, fmt.Errorf("%w: ожидается %q, получено %q", ErrResourceMismatch, expectedResource, ref.Resource)
	}

	c.mu.RLock()
	r, ok := c.resolvers[ref.Resource]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: нет resolver для %q", ErrMisconfigured, ref.Resource)
	}
	return r(ctx, ref.ID)
}

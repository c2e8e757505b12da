// references.go — URN-привязки сущностей и разрешение ссылок между ресурсами.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/urn"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
)

// Компоненты API (первый сегмент NSS).
const (
	ComponentBerichten = "berichten"
	ComponentTaken     = "taken"
	ComponentVerzoeken = "verzoeken"
)

// Ресурсы (второй сегмент NSS).
const (
	ResourceBericht     = "bericht"
	ResourceOntvanger   = "berichtontvanger"
	ResourceExterneTaak = "externetaak"
	ResourceVerzoek     = "verzoek"
	ResourceVerzoekType = "verzoektype"
)

// Сообщения ошибок ссылок.
const (
	reasonNoMatch      = "Ongeldige hyperlink - Geen overeenkomende URL."
	reasonLinkNotFound = "Ongeldige hyperlink - Object bestaat niet."
)

// NewCodec создаёт URN-кодек с привязками всех сущностей и
// resolver'ами поверх store.
func NewCodec(namespace string, store repository.Store) *urn.Codec {
	c := urn.NewCodec(namespace)

	urn.Register(c, ComponentBerichten, ResourceBericht, func(b model.Bericht) uuid.UUID { return b.UUID })
	urn.Register(c, ComponentBerichten, ResourceOntvanger, func(o model.BerichtOntvanger) uuid.UUID { return o.UUID })
	urn.Register(c, ComponentTaken, ResourceExterneTaak, func(t model.ExterneTaak) uuid.UUID { return t.UUID })
	urn.Register(c, ComponentVerzoeken, ResourceVerzoek, func(v model.Verzoek) uuid.UUID { return v.UUID })
	urn.Register(c, ComponentVerzoeken, ResourceVerzoekType, func(t model.VerzoekType) uuid.UUID { return t.UUID })

	c.RegisterResolver(ResourceBericht, resolver(func(ctx context.Context, id uuid.UUID) (any, error) {
		return store.Repos().Berichten.GetByUUID(ctx, id)
	}))
	c.RegisterResolver(ResourceOntvanger, resolver(func(ctx context.Context, id uuid.UUID) (any, error) {
		return store.Repos().Ontvangers.GetByUUID(ctx, id)
	}))
	c.RegisterResolver(ResourceExterneTaak, resolver(func(ctx context.Context, id uuid.UUID) (any, error) {
		return store.Repos().Taken.GetByUUID(ctx, id)
	}))
	c.RegisterResolver(ResourceVerzoek, resolver(func(ctx context.Context, id uuid.UUID) (any, error) {
		return store.Repos().Verzoeken.GetByUUID(ctx, id)
	}))
	c.RegisterResolver(ResourceVerzoekType, resolver(func(ctx context.Context, id uuid.UUID) (any, error) {
		return store.Repos().VerzoekTypen.GetByUUID(ctx, id)
	}))
	return c
}

// resolver переводит repository.ErrNotFound в urn.ErrNotFound.
func resolver(get func(ctx context.Context, id uuid.UUID) (any, error)) urn.Resolver {
	return func(ctx context.Context, id uuid.UUID) (any, error) {
		v, err := get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", urn.ErrNotFound, id)
		}
		return v, err
	}
}

// linkRef — ссылка на ресурс: detail URL (.../<collection>/<uuid>) или URN.
type linkRef struct {
	collection string
	resource   string
}

var ontvangerRef = linkRef{collection: "berichtontvangers", resource: ResourceOntvanger}

// parse извлекает UUID из ссылки. Ошибка формата пишется в errs как no_match.
func (r linkRef) parse(codec *urn.Codec, errs *validation.Errors, name, value string) (uuid.UUID, bool) {
	if strings.HasPrefix(strings.ToLower(value), "urn:") {
		ref, err := codec.Decode(value)
		if err != nil || ref.Resource != r.resource {
			errs.Add(name, validation.CodeNoMatch, reasonNoMatch)
			return uuid.Nil, false
		}
		return ref.ID, true
	}

	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(name, validation.CodeNoMatch, reasonNoMatch)
		return uuid.Nil, false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[len(segments)-2] != r.collection {
		errs.Add(name, validation.CodeNoMatch, reasonNoMatch)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(segments[len(segments)-1])
	if err != nil {
		errs.Add(name, validation.CodeDoesNotExist, reasonLinkNotFound)
		return uuid.Nil, false
	}
	return id, true
}

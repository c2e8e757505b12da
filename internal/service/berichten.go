// berichten.go — сервис сообщений и их получателей.
// Сообщение создаётся один раз вместе с вложениями и дальше только читается.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/urn"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

// BerichtService — создание и чтение сообщений.
type BerichtService struct {
	store  repository.Store
	codec  *urn.Codec
	now    func() time.Time
	logger *slog.Logger
}

// NewBerichtService создаёт сервис сообщений.
func NewBerichtService(store repository.Store, codec *urn.Codec, logger *slog.Logger) *BerichtService {
	return &BerichtService{
		store:  store,
		codec:  codec,
		now:    time.Now,
		logger: logger.With(slog.String("component", "bericht_service")),
	}
}

// List возвращает сообщения с фильтрацией и пагинацией.
func (s *BerichtService) List(ctx context.Context, f repository.BerichtFilter, limit, offset int) ([]*model.Bericht, int, error) {
	repos := s.store.Repos()
	items, err := repos.Berichten.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка сообщений: %w", err)
	}
	total, err := repos.Berichten.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт сообщений: %w", err)
	}
	return items, total, nil
}

// Get возвращает сообщение по UUID.
func (s *BerichtService) Get(ctx context.Context, id uuid.UUID) (*model.Bericht, error) {
	b, err := s.store.Repos().Berichten.GetByUUID(ctx, id)
	if err != nil {
		return nil, notFound(err, "получение сообщения")
	}
	return b, nil
}

// Create проверяет тело запроса и сохраняет сообщение с вложениями
// в одной транзакции.
func (s *BerichtService) Create(ctx context.Context, body *wire.Object) (*model.Bericht, error) {
	b := &model.Bericht{UUID: uuid.New()}
	f := fields{o: body, mode: ModeCreate}
	errs := body.Errors()

	f.str("onderwerp", &b.Onderwerp, strOpt{required: true, max: 50})
	f.str("berichtTekst", &b.BerichtTekst, strOpt{required: true, max: 4000})
	f.dateTime("publicatiedatum", &b.Publicatiedatum)
	f.str("referentie", &b.Referentie, strOpt{max: 25})
	f.nullableDateTime("geopendOp", &b.GeopendOp)
	f.str("berichtType", &b.BerichtType, strOpt{max: 8})
	f.str("handelingsperspectief", &b.Handelingsperspectief, strOpt{max: 50})
	f.nullableDate("einddatumHandelingstermijn", &b.EinddatumHandelingstermijn)

	var ontvanger string
	f.str("ontvanger", &ontvanger, strOpt{required: true})
	if ontvanger != "" {
		if id, ok := ontvangerRef.parse(s.codec, errs, "ontvanger", ontvanger); ok {
			if _, err := s.store.Repos().Ontvangers.GetByUUID(ctx, id); err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					return nil, fmt.Errorf("проверка получателя: %w", err)
				}
				errs.Add("ontvanger", validation.CodeDoesNotExist, reasonLinkNotFound)
			}
			b.OntvangerID = id
		}
	}

	b.Bijlagen = readBijlagen(body)

	if err := errs.Err(); err != nil {
		return nil, err
	}
	if b.Publicatiedatum.IsZero() {
		b.Publicatiedatum = s.now().UTC()
	}

	err := s.store.InTx(ctx, func(r *repository.Repositories) error {
		return r.Berichten.Create(ctx, b)
	})
	if err != nil {
		if errors.Is(err, repository.ErrReference) {
			return nil, validation.Single("ontvanger", validation.CodeDoesNotExist, reasonLinkNotFound)
		}
		return nil, writeError(err, "bijlagen", "сохранение сообщения")
	}

	s.logger.Info("Сообщение создано",
		slog.String("uuid", b.UUID.String()),
		slog.String("ontvanger", b.OntvangerID.String()),
		slog.Int("bijlagen", len(b.Bijlagen)),
	)
	return b, nil
}

// readBijlagen читает вложения; URN документов должны быть уникальны.
func readBijlagen(body *wire.Object) []model.Bijlage {
	items, present := body.Items("bijlagen")
	if present.Null {
		body.Errors().Add("bijlagen", validation.CodeNull, validation.ReasonNull)
		return nil
	}
	out := make([]model.Bijlage, 0, len(items))
	urns := make([]string, 0, len(items))
	for _, item := range items {
		var b model.Bijlage
		f := fields{o: item, mode: ModeCreate}
		f.str("informatieObject", &b.InformatieObject, strOpt{required: true, max: 255, urn: true})
		f.str("omschrijving", &b.Omschrijving, strOpt{max: 100})
		out = append(out, b)
		urns = append(urns, b.InformatieObject)
	}
	validation.UniqueURNs(body.Errors(), "bijlagen", urns)
	return out
}

// OntvangerService — CRUD получателей сообщений.
type OntvangerService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewOntvangerService создаёт сервис получателей.
func NewOntvangerService(store repository.Store, logger *slog.Logger) *OntvangerService {
	return &OntvangerService{
		store:  store,
		logger: logger.With(slog.String("component", "ontvanger_service")),
	}
}

// List возвращает получателей с пагинацией.
func (s *OntvangerService) List(ctx context.Context, limit, offset int) ([]*model.BerichtOntvanger, int, error) {
	repos := s.store.Repos()
	items, err := repos.Ontvangers.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка получателей: %w", err)
	}
	total, err := repos.Ontvangers.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт получателей: %w", err)
	}
	return items, total, nil
}

// Get возвращает получателя по UUID.
func (s *OntvangerService) Get(ctx context.Context, id uuid.UUID) (*model.BerichtOntvanger, error) {
	o, err := s.store.Repos().Ontvangers.GetByUUID(ctx, id)
	if err != nil {
		return nil, notFound(err, "получение получателя")
	}
	return o, nil
}

// Create создаёт получателя.
func (s *OntvangerService) Create(ctx context.Context, body *wire.Object) (*model.BerichtOntvanger, error) {
	o := &model.BerichtOntvanger{UUID: uuid.New()}
	if err := s.read(body, o, ModeCreate); err != nil {
		return nil, err
	}
	if err := s.store.Repos().Ontvangers.Create(ctx, o); err != nil {
		return nil, writeError(err, nonFieldErrors, "сохранение получателя")
	}
	s.logger.Info("Получатель создан", slog.String("uuid", o.UUID.String()))
	return o, nil
}

// Update заменяет (PUT) или частично обновляет (PATCH) получателя.
func (s *OntvangerService) Update(ctx context.Context, id uuid.UUID, body *wire.Object, mode Mode) (*model.BerichtOntvanger, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.read(body, o, mode); err != nil {
		return nil, err
	}
	if err := s.store.Repos().Ontvangers.Update(ctx, o); err != nil {
		return nil, writeError(err, nonFieldErrors, "обновление получателя")
	}
	s.logger.Info("Получатель обновлён",
		slog.String("uuid", o.UUID.String()),
		slog.String("mode", mode.String()),
	)
	return o, nil
}

// Delete удаляет получателя вместе с его сообщениями.
func (s *OntvangerService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Repos().Ontvangers.Delete(ctx, id); err != nil {
		return notFound(err, "удаление получателя")
	}
	s.logger.Info("Получатель удалён", slog.String("uuid", id.String()))
	return nil
}

func (s *OntvangerService) read(body *wire.Object, o *model.BerichtOntvanger, mode Mode) error {
	f := fields{o: body, mode: mode}
	f.str("geadresseerde", &o.Geadresseerde, strOpt{required: true, max: 255, urn: true})
	f.nullableDateTime("geopendOp", &o.GeopendOp)
	return body.Errors().Err()
}

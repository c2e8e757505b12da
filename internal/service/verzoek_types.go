// verzoek_types.go — сервис типов запросов и версий их схем.
//
// Жизненный цикл версии: draft → published → deprecated. Изменять и удалять
// можно только черновик; у опубликованной или устаревшей версии допустим
// только переход статуса. Публикация закрывает срок действия остальных
// опубликованных версий того же типа.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/lifecycle"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/jsonschema"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

// createVersionAttempts — число попыток вставки версии при гонке номеров.
const createVersionAttempts = 3

// Сообщения ошибок жизненного цикла.
const (
	reasonNonDraftUpdate  = "Alleen concept-versies kunnen worden gewijzigd."
	reasonNonDraftDestroy = "Alleen concept-versies kunnen worden verwijderd."
	reasonTypeProtected   = "Dit verzoektype kan niet worden verwijderd omdat er verzoeken naar verwijzen."
	reasonEndBeforeBegin  = "eindeGeldigheid moet op of na beginGeldigheid liggen."
)

// VerzoekTypeService — CRUD типов запросов и их версий.
type VerzoekTypeService struct {
	store     repository.Store
	validator *jsonschema.Validator
	now       func() time.Time
	logger    *slog.Logger
}

// NewVerzoekTypeService создаёт сервис типов запросов.
func NewVerzoekTypeService(store repository.Store, validator *jsonschema.Validator, logger *slog.Logger) *VerzoekTypeService {
	return &VerzoekTypeService{
		store:     store,
		validator: validator,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "verzoektype_service")),
	}
}

// --- типы ---

// List возвращает типы запросов с пагинацией.
func (s *VerzoekTypeService) List(ctx context.Context, limit, offset int) ([]*model.VerzoekType, int, error) {
	repos := s.store.Repos()
	items, err := repos.VerzoekTypen.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка типов запросов: %w", err)
	}
	total, err := repos.VerzoekTypen.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт типов запросов: %w", err)
	}
	return items, total, nil
}

// Get возвращает тип запроса с номерами версий.
func (s *VerzoekTypeService) Get(ctx context.Context, id uuid.UUID) (*model.VerzoekType, error) {
	t, err := s.store.Repos().VerzoekTypen.GetByUUID(ctx, id)
	if err != nil {
		return nil, notFound(err, "получение типа запроса")
	}
	return t, nil
}

// Create создаёт тип запроса без версий.
func (s *VerzoekTypeService) Create(ctx context.Context, body *wire.Object) (*model.VerzoekType, error) {
	t := &model.VerzoekType{UUID: uuid.New(), Opvolging: model.OpvolgingNiet}
	if err := readVerzoekType(body, t, ModeCreate); err != nil {
		return nil, err
	}
	if err := s.store.Repos().VerzoekTypen.Create(ctx, t); err != nil {
		return nil, writeError(err, nonFieldErrors, "сохранение типа запроса")
	}
	s.logger.Info("Тип запроса создан",
		slog.String("uuid", t.UUID.String()),
		slog.String("naam", t.Naam),
	)
	return t, nil
}

// Update заменяет (PUT) или частично обновляет (PATCH) тип запроса.
func (s *VerzoekTypeService) Update(ctx context.Context, id uuid.UUID, body *wire.Object, mode Mode) (*model.VerzoekType, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := readVerzoekType(body, t, mode); err != nil {
		return nil, err
	}
	if err := s.store.Repos().VerzoekTypen.Update(ctx, t); err != nil {
		return nil, notFound(err, "обновление типа запроса")
	}
	s.logger.Info("Тип запроса обновлён",
		slog.String("uuid", t.UUID.String()),
		slog.String("mode", mode.String()),
	)
	return s.Get(ctx, id)
}

// Delete удаляет тип вместе с версиями. Тип, на который ссылаются запросы,
// не удаляется: возвращается ошибка валидации.
func (s *VerzoekTypeService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.Repos().VerzoekTypen.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrProtected):
		return validation.Single(nonFieldErrors, validation.CodeInvalid, reasonTypeProtected)
	case err != nil:
		return notFound(err, "удаление типа запроса")
	}
	s.logger.Info("Тип запроса удалён", slog.String("uuid", id.String()))
	return nil
}

func readVerzoekType(body *wire.Object, t *model.VerzoekType, mode Mode) error {
	f := fields{o: body, mode: mode}
	f.str("naam", &t.Naam, strOpt{required: true, max: 100})
	f.str("toelichting", &t.Toelichting, strOpt{})
	opvolging := string(t.Opvolging)
	f.choice("opvolging", &opvolging, false, model.OpvolgingChoices)
	t.Opvolging = model.Opvolging(opvolging)
	return body.Errors().Err()
}

// --- версии ---

// ListVersions возвращает версии типа по возрастанию номера.
func (s *VerzoekTypeService) ListVersions(ctx context.Context, typeID uuid.UUID) ([]*model.VerzoekTypeVersion, error) {
	repos := s.store.Repos()
	if _, err := repos.VerzoekTypen.GetByUUID(ctx, typeID); err != nil {
		return nil, notFound(err, "получение типа запроса")
	}
	items, err := repos.Versions.List(ctx, typeID)
	if err != nil {
		return nil, fmt.Errorf("получение списка версий: %w", err)
	}
	return items, nil
}

// GetVersion возвращает версию типа.
func (s *VerzoekTypeService) GetVersion(ctx context.Context, typeID uuid.UUID, version int) (*model.VerzoekTypeVersion, error) {
	v, err := s.store.Repos().Versions.Get(ctx, typeID, version)
	if err != nil {
		return nil, notFound(err, "получение версии")
	}
	return v, nil
}

// CreateVersion создаёт новую версию со следующим номером.
// Номер выбирается под блокировкой родителя; при конфликте уникальности
// вставка повторяется.
func (s *VerzoekTypeService) CreateVersion(ctx context.Context, typeID uuid.UUID, body *wire.Object) (*model.VerzoekTypeVersion, error) {
	if _, err := s.store.Repos().VerzoekTypen.GetByUUID(ctx, typeID); err != nil {
		return nil, notFound(err, "получение типа запроса")
	}

	input := &model.VerzoekTypeVersion{
		VerzoekTypeID:          typeID,
		Status:                 lifecycle.Draft,
		AanvraagGegevensSchema: json.RawMessage(`{}`),
	}
	target, err := s.readVersion(body, input, ModeCreate)
	if err != nil {
		return nil, err
	}

	var created *model.VerzoekTypeVersion
	for attempt := 1; attempt <= createVersionAttempts; attempt++ {
		v := *input
		err = s.store.InTx(ctx, func(r *repository.Repositories) error {
			if err := r.VerzoekTypen.Lock(ctx, typeID); err != nil {
				return err
			}
			next, err := r.Versions.NextVersion(ctx, typeID)
			if err != nil {
				return err
			}
			v.Version = next
			if err := r.Versions.Create(ctx, &v); err != nil {
				return err
			}
			if target != lifecycle.Draft {
				return s.transition(ctx, r, &v, target)
			}
			return nil
		})
		if err == nil {
			created = &v
			break
		}
		if !repository.IsUniqueViolation(err) || attempt == createVersionAttempts {
			break
		}
		s.logger.Warn("Конфликт номера версии, повтор",
			slog.String("verzoek_type", typeID.String()),
			slog.Int("attempt", attempt),
		)
	}
	if err != nil {
		if isValidation(err) {
			return nil, err
		}
		return nil, writeError(err, "bijlageTypen", "сохранение версии")
	}

	s.logger.Info("Версия типа запроса создана",
		slog.String("verzoek_type", typeID.String()),
		slog.Int("version", created.Version),
		slog.String("status", string(created.Status)),
	)
	return s.GetVersion(ctx, typeID, created.Version)
}

// UpdateVersion изменяет черновик или переводит версию в следующий статус.
func (s *VerzoekTypeService) UpdateVersion(ctx context.Context, typeID uuid.UUID, version int, body *wire.Object, mode Mode) (*model.VerzoekTypeVersion, error) {
	current, err := s.GetVersion(ctx, typeID, version)
	if err != nil {
		return nil, err
	}

	next := *current
	next.BijlageTypen = append([]model.BijlageType(nil), current.BijlageTypen...)
	target, err := s.readVersion(body, &next, mode)
	if err != nil {
		return nil, err
	}

	if !lifecycle.CanPerform(current.Status, lifecycle.OpUpdate) {
		// У неизменяемой версии допустим только переход статуса.
		if !sameVersionContent(current, &next) || (target != current.Status && !lifecycle.CanTransition(current.Status, target)) {
			return nil, validation.Single(nonFieldErrors, validation.CodeNonDraftVersionUpdate, reasonNonDraftUpdate)
		}
		if target == current.Status {
			return current, nil
		}
	}

	err = s.store.InTx(ctx, func(r *repository.Repositories) error {
		// Публикация закрывает соседние версии: сериализуем по родителю,
		// как при создании версии, и перечитываем статус под блокировкой.
		if err := r.VerzoekTypen.Lock(ctx, typeID); err != nil {
			return err
		}
		locked, err := r.Versions.Get(ctx, typeID, version)
		if err != nil {
			return err
		}
		next.Status = locked.Status
		if target != locked.Status {
			return s.transition(ctx, r, &next, target)
		}
		if !lifecycle.CanPerform(locked.Status, lifecycle.OpUpdate) {
			return validation.Single(nonFieldErrors, validation.CodeNonDraftVersionUpdate, reasonNonDraftUpdate)
		}
		return r.Versions.Update(ctx, &next)
	})
	if err != nil {
		if isValidation(err) {
			return nil, err
		}
		return nil, writeError(err, "bijlageTypen", "обновление версии")
	}

	s.logger.Info("Версия типа запроса обновлена",
		slog.String("verzoek_type", typeID.String()),
		slog.Int("version", version),
		slog.String("status", string(target)),
		slog.String("mode", mode.String()),
	)
	return s.GetVersion(ctx, typeID, version)
}

// DeleteVersion удаляет черновик. Удаление иной версии ничего не меняет
// и возвращает non-draft-version-destroy.
func (s *VerzoekTypeService) DeleteVersion(ctx context.Context, typeID uuid.UUID, version int) error {
	current, err := s.GetVersion(ctx, typeID, version)
	if err != nil {
		return err
	}
	if !lifecycle.CanPerform(current.Status, lifecycle.OpDelete) {
		return validation.Single(nonFieldErrors, validation.CodeNonDraftVersionDestroy, reasonNonDraftDestroy)
	}
	if err := s.store.Repos().Versions.Delete(ctx, typeID, version); err != nil {
		return notFound(err, "удаление версии")
	}
	s.logger.Info("Версия типа запроса удалена",
		slog.String("verzoek_type", typeID.String()),
		slog.Int("version", version),
	)
	return nil
}

// transition переводит версию v в статус target и сохраняет её вместе
// с побочными эффектами публикации. Вызывается внутри транзакции.
func (s *VerzoekTypeService) transition(ctx context.Context, r *repository.Repositories, v *model.VerzoekTypeVersion, target lifecycle.Status) error {
	if err := lifecycle.Transition(v.Status, target); err != nil {
		return validation.Single("status", validation.CodeInvalidChoice,
			fmt.Sprintf("Statusovergang van %q naar %q is niet toegestaan.", v.Status, target))
	}

	now := s.now().UTC()
	today := model.Today(now)
	switch target {
	case lifecycle.Published:
		if v.GepubliceerdOp == nil {
			v.GepubliceerdOp = &now
		}
		if v.BeginGeldigheid == nil {
			v.BeginGeldigheid = &today
		}
	case lifecycle.Deprecated:
		if v.EindeGeldigheid == nil {
			v.EindeGeldigheid = &today
		}
	}
	v.Status = target

	if err := r.Versions.Update(ctx, v); err != nil {
		return err
	}
	if target == lifecycle.Published {
		n, err := r.Versions.ExpirePublished(ctx, v.VerzoekTypeID, v.Version, today)
		if err != nil {
			return fmt.Errorf("закрытие предыдущих версий: %w", err)
		}
		if n > 0 {
			s.logger.Info("Срок действия предыдущих версий закрыт",
				slog.String("verzoek_type", v.VerzoekTypeID.String()),
				slog.Int("published", v.Version),
				slog.Int64("expired", n),
			)
		}
	}
	return nil
}

// readVersion применяет тело запроса к версии v и возвращает целевой статус.
// Сам статус v не меняется: переход выполняет transition.
func (s *VerzoekTypeService) readVersion(body *wire.Object, v *model.VerzoekTypeVersion, mode Mode) (lifecycle.Status, error) {
	f := fields{o: body, mode: mode}
	errs := body.Errors()

	target := v.Status
	if status := wire.Get[string](body, "status"); present(f, "status", status, false) {
		st, err := lifecycle.ParseStatus(status.Value)
		if err != nil {
			validation.InvalidChoice(errs, body.Path("status"), status.Value)
		} else {
			target = st
		}
	}

	if raw, ok := body.Raw("aanvraagGegevensSchema"); ok {
		s.readSchema(errs, raw, v)
	}

	f.nullableDate("beginGeldigheid", &v.BeginGeldigheid)
	f.nullableDate("eindeGeldigheid", &v.EindeGeldigheid)
	if v.BeginGeldigheid != nil && v.EindeGeldigheid != nil {
		validation.StartBeforeEnd(errs, "eindeGeldigheid", *v.BeginGeldigheid, *v.EindeGeldigheid, reasonEndBeforeBegin)
	}

	items, present := body.Items("bijlageTypen")
	switch {
	case present.Null:
		errs.Add("bijlageTypen", validation.CodeNull, validation.ReasonNull)
	case present.Set:
		types := make([]model.BijlageType, 0, len(items))
		urns := make([]string, 0, len(items))
		for _, item := range items {
			var bt model.BijlageType
			itemFields := fields{o: item, mode: ModeCreate}
			itemFields.str("informatieObjecttype", &bt.InformatieObjecttype, strOpt{required: true, max: 255, urn: true})
			itemFields.str("omschrijving", &bt.Omschrijving, strOpt{max: 100})
			types = append(types, bt)
			urns = append(urns, bt.InformatieObjecttype)
		}
		validation.UniqueURNs(errs, "bijlageTypen", urns)
		v.BijlageTypen = types
	}

	return target, errs.Err()
}

// readSchema проверяет, что переданный документ сам является JSON Schema.
func (s *VerzoekTypeService) readSchema(errs *validation.Errors, raw json.RawMessage, v *model.VerzoekTypeVersion) {
	const name = "aanvraagGegevensSchema"
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		errs.Add(name, validation.CodeNull, validation.ReasonNull)
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		errs.Add(name, validation.CodeInvalid, "Ongeldige gegevens. Verwachtte een dictionary.")
		return
	}
	if err := s.validator.CheckSchema(trimmed); err != nil {
		errs.Add(name, validation.CodeInvalidJSONSchema, err.Error())
		return
	}
	v.AanvraagGegevensSchema = json.RawMessage(append([]byte(nil), trimmed...))
}

// sameVersionContent сравнивает изменяемые поля версий (без статуса
// и служебных дат).
func sameVersionContent(a, b *model.VerzoekTypeVersion) bool {
	if !sameDate(a.BeginGeldigheid, b.BeginGeldigheid) || !sameDate(a.EindeGeldigheid, b.EindeGeldigheid) {
		return false
	}
	if !sameJSON(a.AanvraagGegevensSchema, b.AanvraagGegevensSchema) {
		return false
	}
	if len(a.BijlageTypen) != len(b.BijlageTypen) {
		return false
	}
	for i := range a.BijlageTypen {
		if a.BijlageTypen[i] != b.BijlageTypen[i] {
			return false
		}
	}
	return true
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// sameJSON сравнивает документы после нормализации.
func sameJSON(a, b json.RawMessage) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return bytes.Equal(a, b)
	}
	na, _ := json.Marshal(va)
	nb, _ := json.Marshal(vb)
	return bytes.Equal(na, nb)
}

// verzoeken.go — сервис поданных запросов.
// aanvraagGegevens проверяется схемой закреплённой версии (verzoekType, version);
// verzoekType после создания не меняется.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/jsonschema"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

// Сообщения ошибок запроса.
const (
	reasonUnknownSchema = "Onbekend schema: versie %d bestaat niet voor dit verzoektype."
	reasonOneSubmitter  = "Precies één van authentiekeVerwijzing, nietAuthentiekePersoonsgegevens of nietAuthentiekeOrganisatiegegevens is vereist."
	reasonGeometryType  = "Geometrie moet een Point, LineString of Polygon zijn."
	reasonGeometryRing  = "Polygoon-ringen moeten gesloten zijn en minstens vier punten bevatten."
)

// VerzoekService — CRUD поданных запросов.
type VerzoekService struct {
	store     repository.Store
	validator *jsonschema.Validator
	logger    *slog.Logger
}

// NewVerzoekService создаёт сервис запросов.
func NewVerzoekService(store repository.Store, validator *jsonschema.Validator, logger *slog.Logger) *VerzoekService {
	return &VerzoekService{
		store:     store,
		validator: validator,
		logger:    logger.With(slog.String("component", "verzoek_service")),
	}
}

// List возвращает запросы с фильтрацией и пагинацией.
func (s *VerzoekService) List(ctx context.Context, f model.VerzoekFilter, limit, offset int) ([]*model.Verzoek, int, error) {
	repos := s.store.Repos()
	items, err := repos.Verzoeken.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка запросов: %w", err)
	}
	total, err := repos.Verzoeken.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт запросов: %w", err)
	}
	return items, total, nil
}

// Get возвращает запрос по UUID.
func (s *VerzoekService) Get(ctx context.Context, id uuid.UUID) (*model.Verzoek, error) {
	v, err := s.store.Repos().Verzoeken.GetByUUID(ctx, id)
	if err != nil {
		return nil, notFound(err, "получение запроса")
	}
	return v, nil
}

// Create создаёт запрос.
func (s *VerzoekService) Create(ctx context.Context, body *wire.Object) (*model.Verzoek, error) {
	v := &model.Verzoek{UUID: uuid.New(), AanvraagGegevens: map[string]any{}, Bijlagen: []string{}}
	if err := s.read(ctx, body, v, ModeCreate); err != nil {
		return nil, err
	}
	if err := s.store.Repos().Verzoeken.Create(ctx, v); err != nil {
		return nil, s.mapWriteError(err, "сохранение запроса")
	}
	s.logger.Info("Запрос создан",
		slog.String("uuid", v.UUID.String()),
		slog.String("verzoek_type", v.VerzoekTypeID.String()),
		slog.Int("version", v.Version),
	)
	return v, nil
}

// Update заменяет (PUT) или частично обновляет (PATCH) запрос.
func (s *VerzoekService) Update(ctx context.Context, id uuid.UUID, body *wire.Object, mode Mode) (*model.Verzoek, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.read(ctx, body, v, mode); err != nil {
		return nil, err
	}
	if err := s.store.Repos().Verzoeken.Update(ctx, v); err != nil {
		return nil, s.mapWriteError(err, "обновление запроса")
	}
	s.logger.Info("Запрос обновлён",
		slog.String("uuid", v.UUID.String()),
		slog.String("mode", mode.String()),
	)
	return v, nil
}

// Delete удаляет запрос.
func (s *VerzoekService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Repos().Verzoeken.Delete(ctx, id); err != nil {
		return notFound(err, "удаление запроса")
	}
	s.logger.Info("Запрос удалён", slog.String("uuid", id.String()))
	return nil
}

func (s *VerzoekService) mapWriteError(err error, op string) error {
	if errors.Is(err, repository.ErrReference) {
		return validation.Single("verzoekType", validation.CodeDoesNotExist, validation.ReasonDoesNotExist)
	}
	return writeError(err, nonFieldErrors, op)
}

// read применяет тело запроса к v, проверяет ссылку на версию и
// aanvraagGegevens по её схеме.
func (s *VerzoekService) read(ctx context.Context, body *wire.Object, v *model.Verzoek, mode Mode) error {
	f := fields{o: body, mode: mode}
	errs := body.Errors()

	s.readVerzoekType(f, v, mode)

	version := wire.Get[int](body, "version")
	switch {
	case !version.Set:
		f.missing("version", true)
	case version.Null:
		f.null("version")
	default:
		v.Version = version.Value
	}

	if raw, ok := body.Raw("geometrie"); ok {
		v.Geometrie = readGeometrie(errs, raw)
	}

	f.object("aanvraagGegevens", &v.AanvraagGegevens, false)

	bijlagen := wire.Get[[]string](body, "bijlagen")
	switch {
	case bijlagen.Null:
		f.null("bijlagen")
	case bijlagen.Set:
		for i, b := range bijlagen.Value {
			validation.URN(errs, fmt.Sprintf("bijlagen.%d", i), b)
		}
		validation.UniqueURNs(errs, "bijlagen", bijlagen.Value)
		v.Bijlagen = append([]string{}, bijlagen.Value...)
	}

	if child, present := body.Child("isIngediendDoor"); present.Set {
		switch {
		case present.Null:
			v.IsIngediendDoor = nil
		case child != nil:
			v.IsIngediendDoor = readIngediendDoor(child, "isIngediendDoor")
		}
	}

	f.str("isGerelateerdAan", &v.IsGerelateerdAan, strOpt{max: 255, urn: true})
	f.str("kanaal", &v.Kanaal, strOpt{max: 255, urn: true})
	f.str("authenticatieContext", &v.AuthenticatieContext, strOpt{max: 255, urn: true})

	if !errs.Empty() {
		return errs
	}
	if err := s.checkAanvraagGegevens(ctx, errs, v); err != nil {
		return err
	}
	return errs.Err()
}

// readVerzoekType читает verzoekType: обязателен при создании и неизменяем после.
func (s *VerzoekService) readVerzoekType(f fields, v *model.Verzoek, mode Mode) {
	raw := wire.Get[string](f.o, "verzoekType")
	switch {
	case !raw.Set:
		if mode == ModeCreate {
			f.missing("verzoekType", true)
		}
		return
	case raw.Null:
		f.null("verzoekType")
		return
	}
	id, err := uuid.Parse(raw.Value)
	if err != nil {
		f.errs().Add("verzoekType", validation.CodeInvalid, "Voer een geldige UUID in.")
		return
	}
	if mode != ModeCreate {
		if id != v.VerzoekTypeID {
			f.errs().Add("verzoekType", validation.CodeImmutableField, validation.ReasonImmutable)
		}
		return
	}
	v.VerzoekTypeID = id
}

// checkAanvraagGegevens проверяет существование версии и данные по её схеме.
func (s *VerzoekService) checkAanvraagGegevens(ctx context.Context, errs *validation.Errors, v *model.Verzoek) error {
	repos := s.store.Repos()
	if _, err := repos.VerzoekTypen.GetByUUID(ctx, v.VerzoekTypeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			errs.Add("verzoekType", validation.CodeDoesNotExist, validation.ReasonDoesNotExist)
			return nil
		}
		return fmt.Errorf("проверка типа запроса: %w", err)
	}
	version, err := repos.Versions.Get(ctx, v.VerzoekTypeID, v.Version)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			errs.Add("version", validation.CodeUnknownSchema, fmt.Sprintf(reasonUnknownSchema, v.Version))
			return nil
		}
		return fmt.Errorf("получение версии типа запроса: %w", err)
	}

	issues, err := s.validator.ValidateValue(version.AanvraagGegevensSchema, v.AanvraagGegevens, "aanvraagGegevens")
	if err != nil {
		errs.Add("aanvraagGegevens", validation.CodeInvalidJSONSchema, err.Error())
		return nil
	}
	for _, is := range issues {
		errs.Add(is.Path, validation.CodeInvalidJSONSchema, is.Message)
	}
	return nil
}

// readGeometrie разбирает GeoJSON-геометрию (Point, LineString, Polygon).
// Возвращает нормализованный документ или nil для null.
func readGeometrie(errs *validation.Errors, raw []byte) []byte {
	const name = "geometrie"
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		errs.Add(name, validation.CodeInvalid, "Ongeldige GeoJSON-geometrie.")
		return nil
	}
	if g.Coordinates == nil {
		errs.Add(name, validation.CodeInvalid, reasonGeometryType)
		return nil
	}
	switch geom := g.Geometry().(type) {
	case orb.Point:
	case orb.LineString:
		if len(geom) < 2 {
			errs.Add(name, validation.CodeInvalid, "Een LineString moet minstens twee punten bevatten.")
			return nil
		}
	case orb.Polygon:
		for _, ring := range geom {
			if len(ring) < 4 || !ring.Closed() {
				errs.Add(name, validation.CodeInvalid, reasonGeometryRing)
				return nil
			}
		}
	default:
		errs.Add(name, validation.CodeInvalid, reasonGeometryType)
		return nil
	}
	out, err := g.MarshalJSON()
	if err != nil {
		errs.Add(name, validation.CodeInvalid, err.Error())
		return nil
	}
	return out
}

// readIngediendDoor читает подавшего запрос: ровно один вариант.
func readIngediendDoor(o *wire.Object, name string) *model.IngediendDoor {
	d := &model.IngediendDoor{}
	f := fields{o: o, mode: ModeCreate}

	if c, present := o.Child("authentiekeVerwijzing"); c != nil && present.Present() {
		d.AuthentiekeVerwijzing = &model.AuthentiekeVerwijzing{}
		fields{o: c, mode: ModeCreate}.str("urn", &d.AuthentiekeVerwijzing.URN, strOpt{required: true, max: 255, urn: true})
	}
	if c, present := o.Child("nietAuthentiekePersoonsgegevens"); c != nil && present.Present() {
		p := &model.NietAuthentiekePersoonsgegevens{}
		cf := fields{o: c, mode: ModeCreate}
		cf.str("voornaam", &p.Voornaam, strOpt{required: true, max: 200})
		cf.str("achternaam", &p.Achternaam, strOpt{required: true, max: 200})
		var geboortedatum *time.Time
		cf.nullableDate("geboortedatum", &geboortedatum)
		if geboortedatum != nil {
			p.Geboortedatum = geboortedatum.Format(model.DateLayout)
		}
		cf.str("emailadres", &p.Emailadres, strOpt{max: 254})
		cf.str("telefoonnummer", &p.Telefoonnummer, strOpt{max: 20})
		p.Postadres = readAdres(c, "postadres")
		p.Verblijfsadres = readAdres(c, "verblijfsadres")
		d.NietAuthentiekePersoonsgegevens = p
	}
	if c, present := o.Child("nietAuthentiekeOrganisatiegegevens"); c != nil && present.Present() {
		org := &model.NietAuthentiekeOrganisatiegegevens{}
		cf := fields{o: c, mode: ModeCreate}
		cf.str("statutaireNaam", &org.Statutairenaam, strOpt{required: true, max: 200})
		cf.str("emailadres", &org.Emailadres, strOpt{max: 254})
		cf.str("telefoonnummer", &org.Telefoonnummer, strOpt{max: 20})
		org.Bezoekadres = readAdres(c, "bezoekadres")
		org.Postadres = readAdres(c, "postadres")
		d.NietAuthentiekeOrganisatiegegevens = org
	}

	if d.Variants() != 1 {
		f.errs().Add(name, validation.CodeInvalid, reasonOneSubmitter)
	}
	return d
}

// readAdres читает адрес; почтовый индекс проверяется по нидерландскому формату.
func readAdres(parent *wire.Object, name string) *model.Adres {
	c, present := parent.Child(name)
	if c == nil || !present.Present() {
		return nil
	}
	a := &model.Adres{}
	f := fields{o: c, mode: ModeCreate}
	f.str("straatnaam", &a.Straatnaam, strOpt{max: 255})
	f.str("huisnummer", &a.Huisnummer, strOpt{max: 5})
	f.str("huisletter", &a.Huisletter, strOpt{max: 1})
	f.str("huisnummertoevoeging", &a.Huisnummertoevoeging, strOpt{max: 4})
	f.str("postcode", &a.Postcode, strOpt{max: 7})
	if a.Postcode != "" {
		validation.Postcode(c.Errors(), c.Path("postcode"), a.Postcode)
	}
	f.str("stad", &a.Stad, strOpt{max: 255})
	f.str("land", &a.Land, strOpt{max: 255})
	return a
}

// externe_taken.go — сервис внешних задач.
// Вид задачи (taakSoort) задаётся адресом ресурса; details проверяется
// движком payload по форме вида.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/payload"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

// Сообщения нарушения порядка дат.
const (
	reasonStartAfterDeadline    = "startdatum moet op of voor einddatumHandelingsTermijn liggen."
	reasonReminderAfterDeadline = "datumHerinnering moet op of voor einddatumHandelingsTermijn liggen."
)

// TaakService — CRUD внешних задач всех видов.
type TaakService struct {
	store            repository.Store
	engine           *payload.Engine
	herinneringDagen int
	now              func() time.Time
	logger           *slog.Logger
}

// NewTaakService создаёт сервис внешних задач.
func NewTaakService(store repository.Store, engine *payload.Engine, cfg config.TakenConfig, logger *slog.Logger) *TaakService {
	return &TaakService{
		store:            store,
		engine:           engine,
		herinneringDagen: cfg.HerinneringDagen,
		now:              time.Now,
		logger:           logger.With(slog.String("component", "taak_service")),
	}
}

// Engine возвращает движок details (для сериализации).
func (s *TaakService) Engine() *payload.Engine {
	return s.engine
}

// List возвращает задачи с фильтрацией и пагинацией.
func (s *TaakService) List(ctx context.Context, f model.ExterneTaakFilter, limit, offset int) ([]*model.ExterneTaak, int, error) {
	repos := s.store.Repos()
	items, err := repos.Taken.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка задач: %w", err)
	}
	total, err := repos.Taken.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт задач: %w", err)
	}
	return items, total, nil
}

// Get возвращает задачу. kind != "" ограничивает поиск одним видом:
// задача другого вида считается ненайденной.
func (s *TaakService) Get(ctx context.Context, kind model.TaakSoort, id uuid.UUID) (*model.ExterneTaak, error) {
	t, err := s.store.Repos().Taken.GetByUUID(ctx, id)
	if err != nil {
		return nil, notFound(err, "получение задачи")
	}
	if kind != "" && t.TaakSoort != kind {
		return nil, ErrNotFound
	}
	return t, nil
}

// Create создаёт задачу вида kind.
func (s *TaakService) Create(ctx context.Context, kind model.TaakSoort, body *wire.Object) (*model.ExterneTaak, error) {
	today := model.Today(s.now())
	t := &model.ExterneTaak{
		UUID:       uuid.New(),
		Status:     model.TaakOpen,
		Startdatum: today,
	}
	if err := s.read(body, t, nil, kind, ModeCreate); err != nil {
		return nil, err
	}

	if err := s.store.Repos().Taken.Create(ctx, t); err != nil {
		return nil, writeError(err, nonFieldErrors, "сохранение задачи")
	}
	s.logger.Info("Задача создана",
		slog.String("uuid", t.UUID.String()),
		slog.String("taak_soort", string(t.TaakSoort)),
	)
	return t, nil
}

// Update заменяет (PUT) или частично обновляет (PATCH) задачу вида kind.
func (s *TaakService) Update(ctx context.Context, kind model.TaakSoort, id uuid.UUID, body *wire.Object, mode Mode) (*model.ExterneTaak, error) {
	t, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	existing := &payload.Existing{Kind: string(t.TaakSoort), Details: t.Details}
	if err := s.read(body, t, existing, kind, mode); err != nil {
		return nil, err
	}
	if err := s.store.Repos().Taken.Update(ctx, t); err != nil {
		return nil, notFound(err, "обновление задачи")
	}
	s.logger.Info("Задача обновлена",
		slog.String("uuid", t.UUID.String()),
		slog.String("taak_soort", string(t.TaakSoort)),
		slog.String("mode", mode.String()),
	)
	return t, nil
}

// Delete удаляет задачу вида kind.
func (s *TaakService) Delete(ctx context.Context, kind model.TaakSoort, id uuid.UUID) error {
	if _, err := s.Get(ctx, kind, id); err != nil {
		return err
	}
	if err := s.store.Repos().Taken.Delete(ctx, id); err != nil {
		return notFound(err, "удаление задачи")
	}
	s.logger.Info("Задача удалена", slog.String("uuid", id.String()))
	return nil
}

// read применяет тело запроса к задаче t и проверяет её целиком.
func (s *TaakService) read(body *wire.Object, t *model.ExterneTaak, existing *payload.Existing, kind model.TaakSoort, mode Mode) error {
	f := fields{o: body, mode: mode}
	errs := body.Errors()

	f.str("titel", &t.Titel, strOpt{required: true, max: 100})
	status := string(t.Status)
	f.choice("status", &status, false, model.TaakStatuses)
	t.Status = model.TaakStatus(status)
	f.date("startdatum", &t.Startdatum, false)
	f.str("handelingsPerspectief", &t.Handelingsperspectief, strOpt{max: 100})
	f.nullableDate("einddatumHandelingsTermijn", &t.EinddatumHandelingsTermijn)
	f.nullableDate("datumHerinnering", &t.DatumHerinnering)
	f.str("toelichting", &t.Toelichting, strOpt{})
	f.str("isToegewezenAan", &t.IsToegewezenAan, strOpt{max: 255, urn: true})
	f.str("wordtBehandeldDoor", &t.WordtBehandeldDoor, strOpt{max: 255, urn: true})
	f.str("hoortBij", &t.HoortBij, strOpt{max: 255, urn: true})
	f.str("heeftBetrekkingOp", &t.HeeftBetrekkingOp, strOpt{max: 255, urn: true})

	res, ok := s.engine.Deserialize(payload.Request{
		EndpointKind: string(kind),
		Body:         body,
		Partial:      mode == ModePatch,
		Existing:     existing,
	})
	if ok {
		t.TaakSoort = model.TaakSoort(res.Kind)
		t.Details = res.Details
	}

	s.defaultReminder(t)
	if deadline := t.EinddatumHandelingsTermijn; deadline != nil {
		validation.StartBeforeEnd(errs, "einddatumHandelingsTermijn", t.Startdatum, *deadline, reasonStartAfterDeadline)
		if t.DatumHerinnering != nil {
			validation.StartBeforeEnd(errs, "datumHerinnering", *t.DatumHerinnering, *deadline, reasonReminderAfterDeadline)
		}
	}
	return errs.Err()
}

// defaultReminder ставит datumHerinnering за herinneringDagen до срока,
// если дата не задана, а срок есть. Выполняется при каждом сохранении.
func (s *TaakService) defaultReminder(t *model.ExterneTaak) {
	if t.DatumHerinnering != nil || s.herinneringDagen <= 0 || t.EinddatumHandelingsTermijn == nil {
		return
	}
	reminder := t.EinddatumHandelingsTermijn.AddDate(0, 0, -s.herinneringDagen)
	t.DatumHerinnering = &reminder
}

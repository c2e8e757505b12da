package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/database"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/lifecycle"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("openvtb_test"),
		postgres.WithUsername("openvtb"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("OVTB_CONFIG_PATH", "")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	cfg.Database.Host = host
	cfg.Database.Port, _ = strconv.Atoi(port.Port())
	cfg.Database.Name = "openvtb_test"
	cfg.Database.User = "openvtb"
	cfg.Database.Password = "test-password"

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// --- Сообщения и получатели ---

func TestBerichtenCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(pool)

	ontvanger := &model.BerichtOntvanger{UUID: uuid.New(), Geadresseerde: "urn:maykin:brp:persoon:123"}
	if err := repos.Ontvangers.Create(ctx, ontvanger); err != nil {
		t.Fatalf("Create(ontvanger) ошибка: %v", err)
	}

	b := &model.Bericht{
		UUID:            uuid.New(),
		Onderwerp:       "Herinnering",
		BerichtTekst:    "Uw aanvraag is ontvangen.",
		Publicatiedatum: time.Now().UTC().Truncate(time.Second),
		OntvangerID:     ontvanger.UUID,
		Bijlagen: []model.Bijlage{
			{InformatieObject: "urn:maykin:documenten:document:" + uuid.NewString(), Omschrijving: "brief"},
		},
	}
	if err := repos.Berichten.Create(ctx, b); err != nil {
		t.Fatalf("Create(bericht) ошибка: %v", err)
	}

	got, err := repos.Berichten.GetByUUID(ctx, b.UUID)
	if err != nil {
		t.Fatalf("GetByUUID() ошибка: %v", err)
	}
	if got.Onderwerp != "Herinnering" || len(got.Bijlagen) != 1 {
		t.Errorf("GetByUUID() = %+v", got)
	}

	list, err := repos.Berichten.List(ctx, BerichtFilter{Ontvanger: &ontvanger.UUID}, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 || len(list[0].Bijlagen) != 1 {
		t.Errorf("List() вернул %d записей, хотели 1 с одним вложением", len(list))
	}

	// Удаление получателя каскадно удаляет сообщения.
	if err := repos.Ontvangers.Delete(ctx, ontvanger.UUID); err != nil {
		t.Fatalf("Delete(ontvanger) ошибка: %v", err)
	}
	if _, err := repos.Berichten.GetByUUID(ctx, b.UUID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После каскадного удаления ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Внешние задачи ---

func TestExterneTakenCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewExterneTaakRepository(pool)

	today := model.Today(time.Now())
	deadline := today.AddDate(0, 0, 14)
	taak := &model.ExterneTaak{
		UUID:                       uuid.New(),
		Titel:                      "Betalen",
		Status:                     model.TaakOpen,
		Startdatum:                 today,
		EinddatumHandelingsTermijn: &deadline,
		TaakSoort:                  model.SoortBetaaltaak,
		Details: map[string]any{
			"bedrag": "11.00",
			"valuta": "EUR",
			"doelrekening": map[string]any{
				"naam": "Gemeente", "iban": "NL18BANK23481326",
			},
		},
	}
	if err := repo.Create(ctx, taak); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	got, err := repo.GetByUUID(ctx, taak.UUID)
	if err != nil {
		t.Fatalf("GetByUUID() ошибка: %v", err)
	}
	if got.Details["bedrag"] != "11.00" {
		t.Errorf("details.bedrag = %v", got.Details["bedrag"])
	}

	soort := model.SoortFormuliertaak
	count, err := repo.Count(ctx, model.ExterneTaakFilter{TaakSoort: &soort})
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if count != 0 {
		t.Errorf("Count(formuliertaak) = %d, хотели 0", count)
	}

	taak.Status = model.TaakUitgevoerd
	if err := repo.Update(ctx, taak); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, taak.UUID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, taak.UUID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Повторный Delete() = %v, ожидали ErrNotFound", err)
	}
}

// --- Типы запросов, версии и запросы ---

func TestVerzoekTypenAndVersions(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(pool)
	repos := store.Repos()

	vt := &model.VerzoekType{UUID: uuid.New(), Naam: "Melding", Opvolging: model.OpvolgingNiet}
	if err := repos.VerzoekTypen.Create(ctx, vt); err != nil {
		t.Fatalf("Create(type) ошибка: %v", err)
	}

	for i := 0; i < 2; i++ {
		err := store.InTx(ctx, func(r *Repositories) error {
			if err := r.VerzoekTypen.Lock(ctx, vt.UUID); err != nil {
				return err
			}
			next, err := r.Versions.NextVersion(ctx, vt.UUID)
			if err != nil {
				return err
			}
			return r.Versions.Create(ctx, &model.VerzoekTypeVersion{
				VerzoekTypeID:          vt.UUID,
				Version:                next,
				AanvraagGegevensSchema: json.RawMessage(`{"type":"object"}`),
				Status:                 lifecycle.Draft,
				BijlageTypen: []model.BijlageType{
					{InformatieObjecttype: "urn:maykin:catalogi:iotype:" + uuid.NewString()},
				},
			})
		})
		if err != nil {
			t.Fatalf("Создание версии %d: %v", i+1, err)
		}
	}

	got, err := repos.VerzoekTypen.GetByUUID(ctx, vt.UUID)
	if err != nil {
		t.Fatalf("GetByUUID() ошибка: %v", err)
	}
	if len(got.Versions) != 2 || got.LastVersion() != 2 {
		t.Errorf("Versions = %v, хотели [1 2]", got.Versions)
	}

	versions, err := repos.Versions.List(ctx, vt.UUID)
	if err != nil {
		t.Fatalf("List(versions) ошибка: %v", err)
	}
	if len(versions) != 2 || len(versions[0].BijlageTypen) != 1 {
		t.Errorf("List(versions) = %d версий", len(versions))
	}

	today := model.Today(time.Now())
	v1 := versions[0]
	v1.Status = lifecycle.Published
	v1.BeginGeldigheid = &today
	if err := repos.Versions.Update(ctx, v1); err != nil {
		t.Fatalf("Update(version) ошибка: %v", err)
	}
	n, err := repos.Versions.ExpirePublished(ctx, vt.UUID, 2, today)
	if err != nil {
		t.Fatalf("ExpirePublished() ошибка: %v", err)
	}
	if n != 1 {
		t.Errorf("ExpirePublished() = %d, хотели 1", n)
	}

	verzoek := &model.Verzoek{
		UUID:             uuid.New(),
		VerzoekTypeID:    vt.UUID,
		Version:          1,
		AanvraagGegevens: map[string]any{"diameter": 10.0},
		IsIngediendDoor: &model.IngediendDoor{
			AuthentiekeVerwijzing: &model.AuthentiekeVerwijzing{URN: "urn:maykin:brp:persoon:1"},
		},
	}
	if err := repos.Verzoeken.Create(ctx, verzoek); err != nil {
		t.Fatalf("Create(verzoek) ошибка: %v", err)
	}
	gotVerzoek, err := repos.Verzoeken.GetByUUID(ctx, verzoek.UUID)
	if err != nil {
		t.Fatalf("GetByUUID(verzoek) ошибка: %v", err)
	}
	if gotVerzoek.IsIngediendDoor == nil || gotVerzoek.IsIngediendDoor.AuthentiekeVerwijzing == nil {
		t.Error("isIngediendDoor не сохранён")
	}
	if gotVerzoek.Geometrie != nil {
		t.Errorf("geometrie = %s, хотели nil", gotVerzoek.Geometrie)
	}

	// Тип с запросами удалить нельзя.
	if err := repos.VerzoekTypen.Delete(ctx, vt.UUID); !errors.Is(err, ErrProtected) {
		t.Errorf("Delete(type) = %v, ожидали ErrProtected", err)
	}
}

func TestVersions_ConcurrentPublish(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(pool)

	vt := &model.VerzoekType{UUID: uuid.New(), Naam: "Vergunning", Opvolging: model.OpvolgingNiet}
	if err := store.Repos().VerzoekTypen.Create(ctx, vt); err != nil {
		t.Fatalf("Create(type) ошибка: %v", err)
	}
	for version := 1; version <= 2; version++ {
		err := store.Repos().Versions.Create(ctx, &model.VerzoekTypeVersion{
			VerzoekTypeID:          vt.UUID,
			Version:                version,
			AanvraagGegevensSchema: json.RawMessage(`{}`),
			Status:                 lifecycle.Draft,
		})
		if err != nil {
			t.Fatalf("Create(version %d) ошибка: %v", version, err)
		}
	}

	// Обе публикации стартуют одновременно; блокировка типа
	// заставляет вторую увидеть результат первой.
	today := model.Today(time.Now())
	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, version := range []int{1, 2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = store.InTx(ctx, func(r *Repositories) error {
				if err := r.VerzoekTypen.Lock(ctx, vt.UUID); err != nil {
					return err
				}
				v, err := r.Versions.Get(ctx, vt.UUID, version)
				if err != nil {
					return err
				}
				v.Status = lifecycle.Published
				v.BeginGeldigheid = &today
				if err := r.Versions.Update(ctx, v); err != nil {
					return err
				}
				_, err = r.Versions.ExpirePublished(ctx, vt.UUID, version, today)
				return err
			})
		}()
	}
	close(start)
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Публикация %d: %v", i+1, err)
		}
	}

	versions, err := store.Repos().Versions.List(ctx, vt.UUID)
	if err != nil {
		t.Fatalf("List(versions) ошибка: %v", err)
	}
	open := 0
	for _, v := range versions {
		if v.Status == lifecycle.Published && v.EindeGeldigheid == nil {
			open++
		}
	}
	if open != 1 {
		t.Errorf("Опубликованных версий без einde_geldigheid: %d, хотели 1", open)
	}
}

// --- Ключи доступа ---

func TestAPITokens(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAPITokenRepository(pool)

	tok := &model.APIToken{ID: uuid.New(), Naam: "ci", Prefix: "abcd1234", Hash: []byte("hash"), Actief: true}
	if err := repo.Create(ctx, tok); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	dup := &model.APIToken{ID: uuid.New(), Naam: "ci", Prefix: "ffff0000", Hash: []byte("hash"), Actief: true}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create(дубликат) = %v, ожидали ErrConflict", err)
	}

	if err := repo.TouchLastUsed(ctx, tok.ID); err != nil {
		t.Fatalf("TouchLastUsed() ошибка: %v", err)
	}
	if err := repo.Deactivate(ctx, "abcd1234"); err != nil {
		t.Fatalf("Deactivate() ошибка: %v", err)
	}

	active := true
	list, err := repo.List(ctx, &active)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List(active) = %d, хотели 0", len(list))
	}
}

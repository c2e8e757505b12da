package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/lifecycle"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
)

const naamSchema = `{
	"type": "object",
	"properties": {"naam": {"type": "string"}, "leeftijd": {"type": "integer"}},
	"required": ["naam"]
}`

func createType(t *testing.T, env *testEnv) uuid.UUID {
	t.Helper()
	vt, err := env.types.Create(context.Background(), body(t, `{"naam":"Melding openbare ruimte"}`))
	require.NoError(t, err)
	return vt.UUID
}

func TestVerzoekType_CreateDefaults(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	ctx := context.Background()

	vt, err := env.types.Create(ctx, body(t, `{"naam":"Melding"}`))
	require.NoError(t, err)
	assert.Equal(t, model.OpvolgingNiet, vt.Opvolging)

	_, err = env.types.Create(ctx, body(t, `{"naam":"x","opvolging":"soms"}`))
	assert.Equal(t, validation.CodeInvalidChoice, fieldCodes(t, err)["opvolging"])

	_, err = env.types.Create(ctx, body(t, `{}`))
	assert.Equal(t, validation.CodeRequired, fieldCodes(t, err)["naam"])

	updated, err := env.types.Update(ctx, vt.UUID, body(t, `{"opvolging":"altijd"}`), ModePatch)
	require.NoError(t, err)
	assert.Equal(t, model.OpvolgingAltijd, updated.Opvolging)
	assert.Equal(t, "Melding", updated.Naam)
}

func TestVerzoekType_VersionNumbering(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	ctx := context.Background()
	typeID := createType(t, env)

	for want := 1; want <= 3; want++ {
		v, err := env.types.CreateVersion(ctx, typeID, body(t, `{"aanvraagGegevensSchema":`+naamSchema+`}`))
		require.NoError(t, err)
		assert.Equal(t, want, v.Version)
		assert.Equal(t, lifecycle.Draft, v.Status)
	}

	vt, err := env.types.Get(ctx, typeID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, vt.Versions)
	assert.Equal(t, 3, vt.LastVersion())

	_, err = env.types.CreateVersion(ctx, uuid.New(), body(t, `{}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerzoekType_PublishExpiresPrevious(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	ctx := context.Background()
	typeID := createType(t, env)
	today := model.Today(fixedNow)

	v1, err := env.types.CreateVersion(ctx, typeID, body(t, `{"status":"published"}`))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Published, v1.Status)
	require.NotNil(t, v1.GepubliceerdOp)
	require.NotNil(t, v1.BeginGeldigheid)
	assert.Equal(t, today, *v1.BeginGeldigheid)
	assert.Nil(t, v1.EindeGeldigheid)

	_, err = env.types.CreateVersion(ctx, typeID, body(t, `{}`))
	require.NoError(t, err)
	v2, err := env.types.UpdateVersion(ctx, typeID, 2, body(t, `{"status":"published"}`), ModePatch)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Published, v2.Status)

	v1, err = env.types.GetVersion(ctx, typeID, 1)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Published, v1.Status, "статус предыдущей версии не меняется")
	require.NotNil(t, v1.EindeGeldigheid)
	assert.True(t, v1.IsExpired(today))
	assert.False(t, v2.IsExpired(today))
}

// lockingStore запоминает блокировки типов запросов внутри транзакций.
type lockingStore struct {
	repository.Store
	locked []uuid.UUID
}

func (s *lockingStore) InTx(ctx context.Context, fn func(r *repository.Repositories) error) error {
	return s.Store.InTx(ctx, func(r *repository.Repositories) error {
		wrapped := *r
		wrapped.VerzoekTypen = lockRecorder{VerzoekTypeRepository: r.VerzoekTypen, s: s}
		return fn(&wrapped)
	})
}

type lockRecorder struct {
	repository.VerzoekTypeRepository
	s *lockingStore
}

func (l lockRecorder) Lock(ctx context.Context, id uuid.UUID) error {
	l.s.locked = append(l.s.locked, id)
	return l.VerzoekTypeRepository.Lock(ctx, id)
}

func TestVerzoekType_PublishLocksType(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	ctx := context.Background()
	typeID := createType(t, env)

	store := &lockingStore{Store: env.store}
	types := NewVerzoekTypeService(store, env.validator, testLogger())
	types.now = func() time.Time { return fixedNow }

	for range 2 {
		_, err := types.CreateVersion(ctx, typeID, body(t, `{}`))
		require.NoError(t, err)
	}
	store.locked = nil

	for _, version := range []int{1, 2} {
		v, err := types.UpdateVersion(ctx, typeID, version, body(t, `{"status":"published"}`), ModePatch)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.Published, v.Status)
	}
	assert.Equal(t, []uuid.UUID{typeID, typeID}, store.locked, "каждая публикация блокирует тип")

	versions, err := env.store.Repos().Versions.List(ctx, typeID)
	require.NoError(t, err)
	open := 0
	for _, v := range versions {
		if v.Status == lifecycle.Published && v.EindeGeldigheid == nil {
			open++
		}
	}
	assert.Equal(t, 1, open, "действующей остаётся одна опубликованная версия")
}

func TestVerzoekType_NonDraftVersion(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	ctx := context.Background()
	typeID := createType(t, env)

	_, err := env.types.CreateVersion(ctx, typeID, body(t, `{"status":"published","aanvraagGegevensSchema":`+naamSchema+`}`))
	require.NoError(t, err)

	_, err = env.types.UpdateVersion(ctx, typeID, 1, body(t, `{"aanvraagGegevensSchema":{"type":"object"}}`), ModePatch)
	assert.Equal(t, validation.CodeNonDraftVersionUpdate, fieldCodes(t, err)[nonFieldErrors])

	same, err := env.types.UpdateVersion(ctx, typeID, 1, body(t, `{"aanvraagGegevensSchema":`+naamSchema+`}`), ModePatch)
	require.NoError(t, err, "неизменённое содержимое допустимо")
	assert.Equal(t, lifecycle.Published, same.Status)

	err = env.types.DeleteVersion(ctx, typeID, 1)
	assert.Equal(t, validation.CodeNonDraftVersionDestroy, fieldCodes(t, err)[nonFieldErrors])
	_, err = env.types.GetVersion(ctx, typeID, 1)
	require.NoError(t, err, "версия не удалена")

	deprecated, err := env.types.UpdateVersion(ctx, typeID, 1, body(t, `{"status":"deprecated"}`), ModePatch)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Deprecated, deprecated.Status)
	require.NotNil(t, deprecated.EindeGeldigheid)
	assert.Equal(t, model.Today(fixedNow), *deprecated.EindeGeldigheid)

	_, err = env.types.UpdateVersion(ctx, typeID, 1, body(t, `{"status":"published"}`), ModePatch)
	assert.Equal(t, validation.CodeNonDraftVersionUpdate, fieldCodes(t, err)[nonFieldErrors])
}

func TestVerzoekType_DraftVersion(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	ctx := context.Background()
	typeID := createType(t, env)

	_, err := env.types.CreateVersion(ctx, typeID, body(t, `{}`))
	require.NoError(t, err)

	_, err = env.types.UpdateVersion(ctx, typeID, 1, body(t, `{"status":"deprecated"}`), ModePatch)
	assert.Equal(t, validation.CodeInvalidChoice, fieldCodes(t, err)["status"])

	_, err = env.types.UpdateVersion(ctx, typeID, 1, body(t, `{"aanvraagGegevensSchema":{"type":12}}`), ModePatch)
	assert.Equal(t, validation.CodeInvalidJSONSchema, fieldCodes(t, err)["aanvraagGegevensSchema"])

	_, err = env.types.UpdateVersion(ctx, typeID, 1, body(t, `{"bijlageTypen":[
		{"informatieObjecttype":"urn:maykin:doc:a"},{"informatieObjecttype":"urn:maykin:doc:a"}]}`), ModePatch)
	assert.Equal(t, validation.CodeUnique, fieldCodes(t, err)["bijlageTypen"])

	_, err = env.types.UpdateVersion(ctx, typeID, 1, body(t, `{"beginGeldigheid":"2026-05-01","eindeGeldigheid":"2026-04-01"}`), ModePatch)
	assert.Contains(t, fieldCodes(t, err), "eindeGeldigheid")

	updated, err := env.types.UpdateVersion(ctx, typeID, 1, body(t, `{"aanvraagGegevensSchema":`+naamSchema+`,
		"bijlageTypen":[{"informatieObjecttype":"urn:maykin:doc:a","omschrijving":"foto"}]}`), ModePatch)
	require.NoError(t, err)
	assert.JSONEq(t, naamSchema, string(updated.AanvraagGegevensSchema))
	assert.Len(t, updated.BijlageTypen, 1)

	require.NoError(t, env.types.DeleteVersion(ctx, typeID, 1))
	_, err = env.types.GetVersion(ctx, typeID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerzoekType_UnknownVersionStatus(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	ctx := context.Background()
	typeID := createType(t, env)

	for _, status := range []string{`"Draft"`, `"gearchiveerd"`, `null`} {
		_, err := env.types.CreateVersion(ctx, typeID, body(t, `{"status":`+status+`}`))
		want := validation.CodeInvalidChoice
		if status == `null` {
			want = validation.CodeNull
		}
		assert.Equal(t, want, fieldCodes(t, err)["status"], "статус %s", status)
	}

	v, err := env.types.CreateVersion(ctx, typeID, body(t, `{"status":"draft"}`))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Draft, v.Status)
}

func TestVerzoekType_DeleteProtected(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	ctx := context.Background()
	typeID := createType(t, env)

	_, err := env.types.CreateVersion(ctx, typeID, body(t, `{"status":"published","aanvraagGegevensSchema":`+naamSchema+`}`))
	require.NoError(t, err)
	_, err = env.verzoeken.Create(ctx, body(t, `{"verzoekType":"`+typeID.String()+`","version":1,"aanvraagGegevens":{"naam":"Jan"}}`))
	require.NoError(t, err)

	err = env.types.Delete(ctx, typeID)
	assert.Equal(t, validation.CodeInvalid, fieldCodes(t, err)[nonFieldErrors])

	empty := createType(t, env)
	require.NoError(t, env.types.Delete(ctx, empty))
	assert.ErrorIs(t, env.types.Delete(ctx, empty), ErrNotFound)
}

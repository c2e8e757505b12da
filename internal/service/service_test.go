package service

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/jsonschema"
	"github.com/maykinmedia/open-vtb-sub000/internal/payload"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository/memstore"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

// fixedNow — фиксированное время тестов.
var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv — набор сервисов поверх хранилища в памяти.
type testEnv struct {
	store     *memstore.Store
	validator *jsonschema.Validator
	berichten *BerichtService
	ontvanger *OntvangerService
	taken     *TaakService
	types     *VerzoekTypeService
	verzoeken *VerzoekService
	tokens    *TokenService
}

func newTestEnv(t *testing.T, taken config.TakenConfig) *testEnv {
	t.Helper()
	store := memstore.New()
	store.SetClock(func() time.Time { return fixedNow })
	v := jsonschema.MustNew(16)
	logger := testLogger()
	codec := NewCodec("maykin", store)

	env := &testEnv{
		store:     store,
		validator: v,
		berichten: NewBerichtService(store, codec, logger),
		ontvanger: NewOntvangerService(store, logger),
		taken:     NewTaakService(store, payload.NewEngine(v), taken, logger),
		types:     NewVerzoekTypeService(store, v, logger),
		verzoeken: NewVerzoekService(store, v, logger),
		tokens:    NewTokenService(store, logger),
	}
	now := func() time.Time { return fixedNow }
	env.berichten.now = now
	env.taken.now = now
	env.types.now = now
	return env
}

// body разбирает JSON-тело запроса.
func body(t *testing.T, s string) *wire.Object {
	t.Helper()
	o, err := wire.ParseObject([]byte(s))
	require.NoError(t, err)
	return o
}

// fieldCodes возвращает коды ошибок валидации по именам полей.
func fieldCodes(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs *validation.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("ожидалась ошибка валидации, получено %v", err)
	}
	out := map[string]string{}
	for _, fe := range verrs.Items() {
		if _, ok := out[fe.Name]; !ok {
			out[fe.Name] = fe.Code
		}
	}
	return out
}

// fieldReason возвращает текст первой ошибки поля name.
func fieldReason(t *testing.T, err error, name string) string {
	t.Helper()
	var verrs *validation.Errors
	require.ErrorAs(t, err, &verrs)
	for _, fe := range verrs.Items() {
		if fe.Name == name {
			return fe.Reason
		}
	}
	return ""
}

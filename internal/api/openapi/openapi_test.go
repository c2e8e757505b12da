package openapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/maykinmedia/open-vtb-sub000/internal/api/handlers"
	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/jsonschema"
	"github.com/maykinmedia/open-vtb-sub000/internal/payload"
)

func testHandler() *handlers.APIHandler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return handlers.NewAPIHandler(handlers.Services{}, nil, config.APIConfig{}, logger)
}

func collections() []string {
	out := make([]string, 0, len(handlers.TaakKinds))
	for _, k := range handlers.TaakKinds {
		out = append(out, k.Collection)
	}
	return out
}

func TestBuild_Berichten(t *testing.T) {
	r := chi.NewRouter()
	testHandler().BerichtenRoutes(r)

	doc, err := Build(context.Background(), Berichten(handlers.BerichtenPrefix), r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	item := doc.Paths.Value("/berichten/{uuid}")
	if item == nil {
		t.Fatal("нет пути /berichten/{uuid}")
	}
	if item.Get == nil {
		t.Error("ожидалась операция GET")
	}
	if item.Put != nil || item.Patch != nil || item.Delete != nil {
		t.Error("сообщения не изменяются: PUT/PATCH/DELETE не описываются")
	}
	if doc.Paths.Value("/berichtontvangers/{uuid}").Delete == nil {
		t.Error("получатели поддерживают DELETE")
	}
	list := doc.Paths.Value("/berichten").Get
	if list.Parameters.GetByInAndName("query", "page") == nil {
		t.Error("список должен принимать параметр page")
	}
}

func TestBuild_Taken(t *testing.T) {
	r := chi.NewRouter()
	testHandler().TakenRoutes(r)

	engine := payload.NewEngine(jsonschema.MustNew(4))
	c, err := Taken(handlers.TakenPrefix, engine, collections())
	if err != nil {
		t.Fatalf("Taken: %v", err)
	}
	doc, err := Build(context.Background(), c, r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, p := range []string{"/externetaken", "/externetaken/{uuid}", "/betaaltaken/{uuid}", "/formuliertaken", "/gegevensuitvraagtaken"} {
		if doc.Paths.Value(p) == nil {
			t.Errorf("нет пути %s", p)
		}
	}
	if doc.Paths.Value("/externetaken").Post != nil {
		t.Error("/externetaken только для чтения")
	}

	details := doc.Components.Schemas["ExterneTaak"].Value.Properties["details"].Value
	if len(details.OneOf) != len(engine.Kinds()) {
		t.Errorf("oneOf details = %d, ожидалось %d", len(details.OneOf), len(engine.Kinds()))
	}
}

func TestBuild_Verzoeken(t *testing.T) {
	r := chi.NewRouter()
	testHandler().VerzoekenRoutes(r)

	doc, err := Build(context.Background(), Verzoeken(handlers.VerzoekenPrefix), r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	item := doc.Paths.Value("/verzoektypen/{uuid}/versions/{version}")
	if item == nil || item.Delete == nil || item.Patch == nil {
		t.Fatal("ожидались операции над версией")
	}
	if item.Get.OperationID != "verzoektypen_versions_read" {
		t.Errorf("operationId = %q", item.Get.OperationID)
	}
}

func TestBuild_UnknownResource(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/onbekend", func(http.ResponseWriter, *http.Request) {})

	if _, err := Build(context.Background(), Berichten(handlers.BerichtenPrefix), r); err == nil {
		t.Error("маршрут без схемы ресурса должен давать ошибку")
	}
}

func TestHandler(t *testing.T) {
	r := chi.NewRouter()
	testHandler().BerichtenRoutes(r)
	doc, err := Build(context.Background(), Berichten(handlers.BerichtenPrefix), r)
	if err != nil {
		t.Fatal(err)
	}
	h, err := Handler(doc)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/berichten/api/v1/schema", http.NoBody))

	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.oai.openapi+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("тело не JSON: %v", err)
	}
	if body["openapi"] != "3.0.3" {
		t.Errorf("openapi = %v", body["openapi"])
	}
}

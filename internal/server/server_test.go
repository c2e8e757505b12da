package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maykinmedia/open-vtb-sub000/internal/api/handlers"
	"github.com/maykinmedia/open-vtb-sub000/internal/api/middleware"
	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/jsonschema"
	"github.com/maykinmedia/open-vtb-sub000/internal/payload"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository/memstore"
	"github.com/maykinmedia/open-vtb-sub000/internal/service"
)

// testClient — клиент тестового сервера с ключом доступа.
type testClient struct {
	t   *testing.T
	srv *httptest.Server
	key string
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	ctx := context.Background()
	logger := testLogger()

	store := memstore.New()
	v := jsonschema.MustNew(16)
	codec := service.NewCodec("maykin", store)
	engine := payload.NewEngine(v)
	tokens := service.NewTokenService(store, logger)
	tok, err := tokens.Create(ctx, "portaal")
	require.NoError(t, err)

	api := handlers.NewAPIHandler(handlers.Services{
		Berichten:  service.NewBerichtService(store, codec, logger),
		Ontvangers: service.NewOntvangerService(store, logger),
		Taken:      service.NewTaakService(store, engine, config.TakenConfig{}, logger),
		Types:      service.NewVerzoekTypeService(store, v, logger),
		Verzoeken:  service.NewVerzoekService(store, v, logger),
	}, codec, config.APIConfig{PageSize: 2, MaxPageSize: 5}, logger)

	router, err := NewRouter(ctx, logger, Deps{
		API:    api,
		Health: handlers.NewHealthHandler(),
		Engine: engine,
		Authenticators: []middleware.Authenticator{
			middleware.NewStaticTokenAuth(tokens, config.AuthConfig{CacheSize: 16, CacheTTL: time.Minute}),
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testClient{t: t, srv: srv, key: tok.Key}
}

// do выполняет запрос; body == "" — без тела.
func (c *testClient) do(method, path, body string) (int, map[string]any) {
	c.t.Helper()
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Authorization", "Token "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	out := map[string]any{}
	if len(data) > 0 && data[0] == '{' {
		require.NoError(c.t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

// invalidParams возвращает коды ошибок по именам полей.
func invalidParams(body map[string]any) map[string]string {
	out := map[string]string{}
	items, _ := body["invalid_params"].([]any)
	for _, it := range items {
		p := it.(map[string]any)
		name := p["name"].(string)
		if _, ok := out[name]; !ok {
			out[name] = p["code"].(string)
		}
	}
	return out
}

const betaaltaak = `{"titel":"t","handelingsPerspectief":"h","details":{"bedrag":"11",
	"transactieomschrijving":"x","doelrekening":{"naam":"n","iban":"NL18BANK23481326"}}}`

func TestBetaaltaak_Create(t *testing.T) {
	c := newTestClient(t)

	status, body := c.do(http.MethodPost, "/taken/api/v1/betaaltaken/", betaaltaak)
	require.Equal(t, http.StatusCreated, status, body)

	assert.Equal(t, "betaaltaak", body["taakSoort"])
	assert.Equal(t, "open", body["status"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "EUR", details["valuta"])
	assert.Equal(t, "NL18BANK23481326", details["doelrekening"].(map[string]any)["iban"])

	id := body["uuid"].(string)
	assert.Equal(t, c.srv.URL+"/taken/api/v1/betaaltaken/"+id, body["url"])
	assert.Equal(t, "urn:maykin:taken:externetaak:"+id, body["urn"])

	status, _ = c.do(http.MethodGet, "/taken/api/v1/externetaken/"+id, "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = c.do(http.MethodGet, "/taken/api/v1/formuliertaken/"+id, "")
	assert.Equal(t, http.StatusNotFound, status, "задача другого вида не видна")
}

func TestBetaaltaak_WrongDiscriminator(t *testing.T) {
	c := newTestClient(t)

	b := strings.Replace(betaaltaak, `"titel":"t",`, `"titel":"t","taakSoort":"formuliertaak",`, 1)
	status, body := c.do(http.MethodPost, "/taken/api/v1/betaaltaken", b)
	require.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, "invalid", body["code"])
	first := body["invalid_params"].([]any)[0].(map[string]any)
	assert.Equal(t, "taakSoort", first["name"])
	assert.Equal(t, "invalid", first["code"])
	assert.Equal(t, "Dit veld wordt automatisch ingevuld; het kan niet worden geselecteerd.", first["reason"])
}

func TestBetaaltaak_InvalidIBAN(t *testing.T) {
	c := newTestClient(t)

	b := strings.Replace(betaaltaak, "NL18BANK23481326", "test", 1)
	status, body := c.do(http.MethodPost, "/taken/api/v1/betaaltaken", b)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid", invalidParams(body)["details.doelrekening.iban"])
}

func TestExterneTaken_ReadOnlyAndFilters(t *testing.T) {
	c := newTestClient(t)
	for range 3 {
		status, _ := c.do(http.MethodPost, "/taken/api/v1/betaaltaken", betaaltaak)
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := c.do(http.MethodPost, "/taken/api/v1/externetaken", betaaltaak)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "method_not_allowed", body["code"])

	status, body = c.do(http.MethodGet, "/taken/api/v1/externetaken?taakSoort=betaaltaak&status=open", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["count"])
	assert.Len(t, body["results"], 2, "pageSize по умолчанию — 2")
	assert.NotNil(t, body["next"])
	assert.Nil(t, body["previous"])

	status, body = c.do(http.MethodGet, "/taken/api/v1/externetaken?page=2", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["results"], 1)
	assert.Nil(t, body["next"])
	assert.NotNil(t, body["previous"])

	status, _ = c.do(http.MethodGet, "/taken/api/v1/externetaken?page=3", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = c.do(http.MethodGet, "/taken/api/v1/externetaken?status=onbekend", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_choice", invalidParams(body)["status"])

	status, body = c.do(http.MethodGet, "/taken/api/v1/formuliertaken", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["count"])
}

func TestVersions_PublishExpiresPredecessor(t *testing.T) {
	c := newTestClient(t)

	status, body := c.do(http.MethodPost, "/verzoeken/api/v1/verzoektypen", `{"naam":"T"}`)
	require.Equal(t, http.StatusCreated, status, body)
	typeURL := "/verzoeken/api/v1/verzoektypen/" + body["uuid"].(string)

	status, body = c.do(http.MethodPost, typeURL+"/versions/", `{}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1, body["version"])
	status, body = c.do(http.MethodPost, typeURL+"/versions", `{}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 2, body["version"])

	status, _ = c.do(http.MethodPatch, typeURL+"/versions/1", `{"status":"published"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = c.do(http.MethodPatch, typeURL+"/versions/2/", `{"status":"published"}`)
	require.Equal(t, http.StatusOK, status)

	status, body = c.do(http.MethodGet, typeURL+"/versions/1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isExpired"])
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), body["eindeGeldigheid"])

	status, body = c.do(http.MethodGet, typeURL, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{float64(1), float64(2)}, body["versions"])
	assert.EqualValues(t, 2, body["lastVersion"])

	status, body = c.do(http.MethodDelete, typeURL+"/versions/2", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "non-draft-version-destroy", invalidParams(body)["nonFieldErrors"])

	status, _ = c.do(http.MethodGet, typeURL+"/versions/abc", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBericht_BijlagenUnique(t *testing.T) {
	c := newTestClient(t)

	status, body := c.do(http.MethodPost, "/berichten/api/v1/berichtontvangers", `{"geadresseerde":"urn:nl:bsn:111222333"}`)
	require.Equal(t, http.StatusCreated, status, body)
	ontvanger := body["url"].(string)
	assert.Equal(t, false, body["geopend"])

	b := fmt.Sprintf(`{"onderwerp":"o","berichtTekst":"t","ontvanger":%q,
		"bijlagen":[{"informatieObject":"urn:maykin:doc:a"},{"informatieObject":"urn:maykin:doc:a"}]}`, ontvanger)
	status, body = c.do(http.MethodPost, "/berichten/api/v1/berichten", b)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unique", invalidParams(body)["bijlagen"])

	b = fmt.Sprintf(`{"onderwerp":"o","berichtTekst":"t","ontvanger":%q,
		"bijlagen":[{"informatieObject":"urn:maykin:doc:a"}]}`, ontvanger)
	status, body = c.do(http.MethodPost, "/berichten/api/v1/berichten", b)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, ontvanger, body["ontvanger"])

	id := body["uuid"].(string)
	status, body = c.do(http.MethodPatch, "/berichten/api/v1/berichten/"+id, `{"onderwerp":"x"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "method_not_allowed", body["code"])
}

func TestBericht_BijlagenUniqueShortNID(t *testing.T) {
	c := newTestClient(t)

	status, body := c.do(http.MethodPost, "/berichten/api/v1/berichtontvangers", `{"geadresseerde":"urn:nl:bsn:111222333"}`)
	require.Equal(t, http.StatusCreated, status, body)
	ontvanger := body["url"].(string)

	// Однобуквенный NID не проходит RFC 8141, но повтор всё равно отмечается.
	b := fmt.Sprintf(`{"onderwerp":"o","berichtTekst":"t","ontvanger":%q,
		"bijlagen":[{"informatieObject":"urn:x:a"},{"informatieObject":"urn:x:a"}]}`, ontvanger)
	status, body = c.do(http.MethodPost, "/berichten/api/v1/berichten", b)
	require.Equal(t, http.StatusBadRequest, status)

	params := invalidParams(body)
	assert.Equal(t, "unique", params["bijlagen"])
	assert.Equal(t, "invalid_urn", params["bijlagen.0.informatieObject"])
	assert.Equal(t, "invalid_urn", params["bijlagen.1.informatieObject"])
}

func TestVerzoek_UnknownSchemaVersion(t *testing.T) {
	c := newTestClient(t)

	status, body := c.do(http.MethodPost, "/verzoeken/api/v1/verzoektypen", `{"naam":"T"}`)
	require.Equal(t, http.StatusCreated, status)
	typeID := body["uuid"].(string)
	status, _ = c.do(http.MethodPost, "/verzoeken/api/v1/verzoektypen/"+typeID+"/versions", `{"status":"published"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body = c.do(http.MethodPost, "/verzoeken/api/v1/verzoeken",
		fmt.Sprintf(`{"verzoekType":%q,"version":2,"aanvraagGegevens":{}}`, typeID))
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unknown-schema", invalidParams(body)["version"])

	status, body = c.do(http.MethodPost, "/verzoeken/api/v1/verzoeken",
		fmt.Sprintf(`{"verzoekType":%q,"version":1,"aanvraagGegevens":{"a":1},
			"geometrie":{"type":"Point","coordinates":[5.1,52.1]}}`, typeID))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Point", body["geometrie"].(map[string]any)["type"])
	id := body["uuid"].(string)

	status, body = c.do(http.MethodGet, "/verzoeken/api/v1/verzoeken?verzoekType="+typeID, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = c.do(http.MethodGet, "/verzoeken/api/v1/verzoeken?verzoekType=geen-uuid", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid", invalidParams(body)["verzoekType"])

	status, _ = c.do(http.MethodDelete, "/verzoeken/api/v1/verzoeken/"+id, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = c.do(http.MethodGet, "/verzoeken/api/v1/verzoeken/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_ParseError(t *testing.T) {
	c := newTestClient(t)

	status, body := c.do(http.MethodPost, "/verzoeken/api/v1/verzoektypen", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "parse_error", body["code"])
}

func TestRouter_Authentication(t *testing.T) {
	c := newTestClient(t)

	resp, err := http.Get(c.srv.URL + "/berichten/api/v1/berichten")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, c.srv.URL+"/berichten/api/v1/berichten", http.NoBody)
	req.Header.Set("Authorization", "Token onbekend.sleutel")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "authentication_failed", body["code"])
}

func TestRouter_PublicEndpoints(t *testing.T) {
	c := newTestClient(t)

	for _, tt := range []struct {
		path   string
		status int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
		{"/berichten/api/v1/schema", http.StatusOK},
		{"/taken/api/v1/schema/", http.StatusOK},
		{"/verzoeken/api/v1/schema", http.StatusOK},
		{"/onbekend", http.StatusNotFound},
	} {
		resp, err := http.Get(c.srv.URL + tt.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode, tt.path)
	}
}

// handler.go — основной обработчик API Open VTB.
// Объединяет обработчики трёх компонентов и общие помощники:
// чтение тела, перевод ошибок сервисов, пагинацию и абсолютные URL.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/maykinmedia/open-vtb-sub000/internal/api/errors"
	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/service"
	"github.com/maykinmedia/open-vtb-sub000/internal/urn"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

// maxBodyBytes — предельный размер тела запроса.
const maxBodyBytes = 4 << 20

// Services — сервисы бизнес-логики, используемые обработчиками.
type Services struct {
	Berichten  *service.BerichtService
	Ontvangers *service.OntvangerService
	Taken      *service.TaakService
	Types      *service.VerzoekTypeService
	Verzoeken  *service.VerzoekService
}

// APIHandler — обработчик ресурсов Berichten, Taken и Verzoeken.
type APIHandler struct {
	berichten  *service.BerichtService
	ontvangers *service.OntvangerService
	taken      *service.TaakService
	types      *service.VerzoekTypeService
	verzoeken  *service.VerzoekService
	codec      *urn.Codec
	cfg        config.APIConfig
	now        func() time.Time
	logger     *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(svc Services, codec *urn.Codec, cfg config.APIConfig, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		berichten:  svc.Berichten,
		ontvangers: svc.Ontvangers,
		taken:      svc.Taken,
		types:      svc.Types,
		verzoeken:  svc.Verzoeken,
		codec:      codec,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "api_handler")),
	}
}

// MethodNotAllowed — 405 для методов, не поддерживаемых ресурсом.
func (h *APIHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierrors.MethodNotAllowed(w, r.Method)
}

// NotFound — 404 для неизвестных путей.
func (h *APIHandler) NotFound(w http.ResponseWriter, _ *http.Request) {
	apierrors.NotFound(w)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBody читает тело запроса как JSON-объект. При ошибке ответ уже записан.
func readBody(w http.ResponseWriter, r *http.Request) (*wire.Object, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		apierrors.ParseError(w, "Het verzoek kon niet worden gelezen.")
		return nil, false
	}
	obj, err := wire.ParseObject(data)
	if err != nil {
		apierrors.ParseError(w, "JSON parse error - het verzoek bevat geen geldig JSON-object.")
		return nil, false
	}
	return obj, true
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var verrs *validation.Errors
	switch {
	case errors.As(err, &verrs):
		apierrors.Invalid(w, verrs)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w)
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("operation", op),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w)
	}
}

// pathUUID извлекает UUID из пути. Некорректное значение — 404.
func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "uuid", chi.URLParam(r, "uuid"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		apierrors.NotFound(w)
		return uuid.Nil, false
	}
	return id, true
}

// pathVersion извлекает номер версии из пути. Некорректное значение — 404.
func pathVersion(w http.ResponseWriter, r *http.Request) (int, bool) {
	var version int
	err := runtime.BindStyledParameterWithOptions("simple", "version", chi.URLParam(r, "version"), &version,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || version < 1 {
		apierrors.NotFound(w)
		return 0, false
	}
	return version, true
}

// baseURL возвращает схему и хост для абсолютных ссылок.
// OVTB_BASE_URL имеет приоритет над заголовками запроса.
func (h *APIHandler) baseURL(r *http.Request) string {
	if h.cfg.BaseURL != "" {
		return strings.TrimRight(h.cfg.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host = fh
	}
	return scheme + "://" + host
}

// detailURL строит абсолютный URL ресурса.
func detailURL(base, prefix, collection string, id uuid.UUID) string {
	return base + prefix + "/" + collection + "/" + id.String()
}

// invalidFilter — ошибка значения параметра фильтра списка.
func invalidFilter(name string) *validation.Errors {
	return validation.Single(name, validation.CodeInvalid, "Voer een geldige waarde in.")
}

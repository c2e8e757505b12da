// verzoeken.go — обработчики компонента Verzoeken:
// запросы, типы запросов и версии их схем.
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/maykinmedia/open-vtb-sub000/internal/api/errors"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/service"
)

// ListVerzoeken — GET /verzoeken. Фильтр ?verzoekType=<uuid>.
func (h *APIHandler) ListVerzoeken(w http.ResponseWriter, r *http.Request) {
	p, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	var typeID *uuid.UUID
	if err := runtime.BindQueryParameter("form", true, false, "verzoekType", r.URL.Query(), &typeID); err != nil {
		apierrors.Invalid(w, invalidFilter("verzoekType"))
		return
	}
	items, total, err := h.verzoeken.List(r.Context(), model.VerzoekFilter{VerzoekTypeID: typeID}, p.limit(), p.offset())
	if err != nil {
		h.writeServiceError(w, r, err, "list_verzoeken")
		return
	}
	base := h.baseURL(r)
	results := make([]verzoekResponse, 0, len(items))
	for _, v := range items {
		results = append(results, h.verzoekResponse(base, v))
	}
	h.writePage(w, r, p, total, results)
}

// GetVerzoek — GET /verzoeken/{uuid}.
func (h *APIHandler) GetVerzoek(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	v, err := h.verzoeken.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "get_verzoek")
		return
	}
	writeJSON(w, http.StatusOK, h.verzoekResponse(h.baseURL(r), v))
}

// CreateVerzoek — POST /verzoeken.
func (h *APIHandler) CreateVerzoek(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	v, err := h.verzoeken.Create(r.Context(), body)
	if err != nil {
		h.writeServiceError(w, r, err, "create_verzoek")
		return
	}
	writeJSON(w, http.StatusCreated, h.verzoekResponse(h.baseURL(r), v))
}

// UpdateVerzoek — PUT или PATCH /verzoeken/{uuid}.
func (h *APIHandler) UpdateVerzoek(mode service.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		v, err := h.verzoeken.Update(r.Context(), id, body, mode)
		if err != nil {
			h.writeServiceError(w, r, err, "update_verzoek")
			return
		}
		writeJSON(w, http.StatusOK, h.verzoekResponse(h.baseURL(r), v))
	}
}

// DeleteVerzoek — DELETE /verzoeken/{uuid}.
func (h *APIHandler) DeleteVerzoek(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := h.verzoeken.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "delete_verzoek")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Типы запросов ---

// ListVerzoekTypen — GET /verzoektypen.
func (h *APIHandler) ListVerzoekTypen(w http.ResponseWriter, r *http.Request) {
	p, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	items, total, err := h.types.List(r.Context(), p.limit(), p.offset())
	if err != nil {
		h.writeServiceError(w, r, err, "list_verzoektypen")
		return
	}
	base := h.baseURL(r)
	results := make([]verzoekTypeResponse, 0, len(items))
	for _, t := range items {
		results = append(results, h.verzoekTypeResponse(base, t))
	}
	h.writePage(w, r, p, total, results)
}

// GetVerzoekType — GET /verzoektypen/{uuid}.
func (h *APIHandler) GetVerzoekType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	t, err := h.types.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "get_verzoektype")
		return
	}
	writeJSON(w, http.StatusOK, h.verzoekTypeResponse(h.baseURL(r), t))
}

// CreateVerzoekType — POST /verzoektypen.
func (h *APIHandler) CreateVerzoekType(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	t, err := h.types.Create(r.Context(), body)
	if err != nil {
		h.writeServiceError(w, r, err, "create_verzoektype")
		return
	}
	writeJSON(w, http.StatusCreated, h.verzoekTypeResponse(h.baseURL(r), t))
}

// UpdateVerzoekType — PUT или PATCH /verzoektypen/{uuid}.
func (h *APIHandler) UpdateVerzoekType(mode service.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		t, err := h.types.Update(r.Context(), id, body, mode)
		if err != nil {
			h.writeServiceError(w, r, err, "update_verzoektype")
			return
		}
		writeJSON(w, http.StatusOK, h.verzoekTypeResponse(h.baseURL(r), t))
	}
}

// DeleteVerzoekType — DELETE /verzoektypen/{uuid}.
func (h *APIHandler) DeleteVerzoekType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := h.types.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "delete_verzoektype")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Версии ---

// ListVersions — GET /verzoektypen/{uuid}/versions. Без пагинации, по номеру.
func (h *APIHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	items, err := h.types.ListVersions(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "list_versions")
		return
	}
	base := h.baseURL(r)
	today := model.Today(h.now())
	results := make([]versionResponse, 0, len(items))
	for _, v := range items {
		results = append(results, versionResponseOf(base, v, today))
	}
	writeJSON(w, http.StatusOK, results)
}

// GetVersion — GET /verzoektypen/{uuid}/versions/{version}.
func (h *APIHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	version, ok := pathVersion(w, r)
	if !ok {
		return
	}
	v, err := h.types.GetVersion(r.Context(), id, version)
	if err != nil {
		h.writeServiceError(w, r, err, "get_version")
		return
	}
	writeJSON(w, http.StatusOK, versionResponseOf(h.baseURL(r), v, model.Today(h.now())))
}

// CreateVersion — POST /verzoektypen/{uuid}/versions.
func (h *APIHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	v, err := h.types.CreateVersion(r.Context(), id, body)
	if err != nil {
		h.writeServiceError(w, r, err, "create_version")
		return
	}
	writeJSON(w, http.StatusCreated, versionResponseOf(h.baseURL(r), v, model.Today(h.now())))
}

// UpdateVersion — PUT или PATCH /verzoektypen/{uuid}/versions/{version}.
func (h *APIHandler) UpdateVersion(mode service.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r)
		if !ok {
			return
		}
		version, ok := pathVersion(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		v, err := h.types.UpdateVersion(r.Context(), id, version, body, mode)
		if err != nil {
			h.writeServiceError(w, r, err, "update_version")
			return
		}
		writeJSON(w, http.StatusOK, versionResponseOf(h.baseURL(r), v, model.Today(h.now())))
	}
}

// DeleteVersion — DELETE /verzoektypen/{uuid}/versions/{version}.
// Версия не в статусе draft не удаляется (400).
func (h *APIHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	version, ok := pathVersion(w, r)
	if !ok {
		return
	}
	if err := h.types.DeleteVersion(r.Context(), id, version); err != nil {
		h.writeServiceError(w, r, err, "delete_version")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

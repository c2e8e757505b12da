// berichten.go — обработчики компонента Berichten:
// сообщения (создание и чтение) и получатели (полный CRUD).
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/maykinmedia/open-vtb-sub000/internal/api/errors"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/service"
)

// ListBerichten — GET /berichten. Фильтр ?ontvanger=<uuid>.
func (h *APIHandler) ListBerichten(w http.ResponseWriter, r *http.Request) {
	p, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	var f repository.BerichtFilter
	var ontvanger *uuid.UUID
	if err := runtime.BindQueryParameter("form", true, false, "ontvanger", r.URL.Query(), &ontvanger); err != nil {
		apierrors.Invalid(w, invalidFilter("ontvanger"))
		return
	}
	f.Ontvanger = ontvanger

	items, total, err := h.berichten.List(r.Context(), f, p.limit(), p.offset())
	if err != nil {
		h.writeServiceError(w, r, err, "list_berichten")
		return
	}
	base := h.baseURL(r)
	results := make([]berichtResponse, 0, len(items))
	for _, b := range items {
		results = append(results, h.berichtResponse(base, b))
	}
	h.writePage(w, r, p, total, results)
}

// GetBericht — GET /berichten/{uuid}.
func (h *APIHandler) GetBericht(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	b, err := h.berichten.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "get_bericht")
		return
	}
	writeJSON(w, http.StatusOK, h.berichtResponse(h.baseURL(r), b))
}

// CreateBericht — POST /berichten.
func (h *APIHandler) CreateBericht(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	b, err := h.berichten.Create(r.Context(), body)
	if err != nil {
		h.writeServiceError(w, r, err, "create_bericht")
		return
	}
	writeJSON(w, http.StatusCreated, h.berichtResponse(h.baseURL(r), b))
}

// ListOntvangers — GET /berichtontvangers.
func (h *APIHandler) ListOntvangers(w http.ResponseWriter, r *http.Request) {
	p, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	items, total, err := h.ontvangers.List(r.Context(), p.limit(), p.offset())
	if err != nil {
		h.writeServiceError(w, r, err, "list_ontvangers")
		return
	}
	base := h.baseURL(r)
	results := make([]ontvangerResponse, 0, len(items))
	for _, o := range items {
		results = append(results, h.ontvangerResponse(base, o))
	}
	h.writePage(w, r, p, total, results)
}

// GetOntvanger — GET /berichtontvangers/{uuid}.
func (h *APIHandler) GetOntvanger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	o, err := h.ontvangers.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "get_ontvanger")
		return
	}
	writeJSON(w, http.StatusOK, h.ontvangerResponse(h.baseURL(r), o))
}

// CreateOntvanger — POST /berichtontvangers.
func (h *APIHandler) CreateOntvanger(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	o, err := h.ontvangers.Create(r.Context(), body)
	if err != nil {
		h.writeServiceError(w, r, err, "create_ontvanger")
		return
	}
	writeJSON(w, http.StatusCreated, h.ontvangerResponse(h.baseURL(r), o))
}

// UpdateOntvanger — PUT (mode=replace) или PATCH (mode=patch) /berichtontvangers/{uuid}.
func (h *APIHandler) UpdateOntvanger(mode service.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		o, err := h.ontvangers.Update(r.Context(), id, body, mode)
		if err != nil {
			h.writeServiceError(w, r, err, "update_ontvanger")
			return
		}
		writeJSON(w, http.StatusOK, h.ontvangerResponse(h.baseURL(r), o))
	}
}

// DeleteOntvanger — DELETE /berichtontvangers/{uuid}.
func (h *APIHandler) DeleteOntvanger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := h.ontvangers.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "delete_ontvanger")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

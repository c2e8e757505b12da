// taken.go — обработчики компонента Taken.
// /externetaken — чтение задач всех видов; /betaaltaken, /gegevensuitvraagtaken,
// /formuliertaken — полный CRUD задач одного вида.
package handlers

import (
	"net/http"
	"slices"

	"github.com/oapi-codegen/runtime"

	apierrors "github.com/maykinmedia/open-vtb-sub000/internal/api/errors"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/service"
	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
)

// ListTaken — GET /externetaken. Фильтры ?status= и ?taakSoort=.
func (h *APIHandler) ListTaken(w http.ResponseWriter, r *http.Request) {
	h.listTaken(w, r, "")
}

// GetTaak — GET /externetaken/{uuid}.
func (h *APIHandler) GetTaak(w http.ResponseWriter, r *http.Request) {
	h.getTaak(w, r, "")
}

// ListTakenOfKind — GET /<вид>taken.
func (h *APIHandler) ListTakenOfKind(kind model.TaakSoort) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.listTaken(w, r, kind)
	}
}

// GetTaakOfKind — GET /<вид>taken/{uuid}. Задача другого вида — 404.
func (h *APIHandler) GetTaakOfKind(kind model.TaakSoort) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.getTaak(w, r, kind)
	}
}

// CreateTaak — POST /<вид>taken.
func (h *APIHandler) CreateTaak(kind model.TaakSoort) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		t, err := h.taken.Create(r.Context(), kind, body)
		if err != nil {
			h.writeServiceError(w, r, err, "create_taak")
			return
		}
		writeJSON(w, http.StatusCreated, h.taakResponse(h.baseURL(r), h.taken.Engine(), t))
	}
}

// UpdateTaak — PUT или PATCH /<вид>taken/{uuid}.
func (h *APIHandler) UpdateTaak(kind model.TaakSoort, mode service.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		t, err := h.taken.Update(r.Context(), kind, id, body, mode)
		if err != nil {
			h.writeServiceError(w, r, err, "update_taak")
			return
		}
		writeJSON(w, http.StatusOK, h.taakResponse(h.baseURL(r), h.taken.Engine(), t))
	}
}

// DeleteTaak — DELETE /<вид>taken/{uuid}.
func (h *APIHandler) DeleteTaak(kind model.TaakSoort) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r)
		if !ok {
			return
		}
		if err := h.taken.Delete(r.Context(), kind, id); err != nil {
			h.writeServiceError(w, r, err, "delete_taak")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *APIHandler) listTaken(w http.ResponseWriter, r *http.Request, kind model.TaakSoort) {
	p, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	f, errs := parseTaakFilter(r, kind)
	if !errs.Empty() {
		apierrors.Invalid(w, errs)
		return
	}
	items, total, err := h.taken.List(r.Context(), f, p.limit(), p.offset())
	if err != nil {
		h.writeServiceError(w, r, err, "list_taken")
		return
	}
	base := h.baseURL(r)
	engine := h.taken.Engine()
	results := make([]taakResponse, 0, len(items))
	for _, t := range items {
		results = append(results, h.taakResponse(base, engine, t))
	}
	h.writePage(w, r, p, total, results)
}

func (h *APIHandler) getTaak(w http.ResponseWriter, r *http.Request, kind model.TaakSoort) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	t, err := h.taken.Get(r.Context(), kind, id)
	if err != nil {
		h.writeServiceError(w, r, err, "get_taak")
		return
	}
	writeJSON(w, http.StatusOK, h.taakResponse(h.baseURL(r), h.taken.Engine(), t))
}

// parseTaakFilter читает фильтры списка задач. kind != "" фиксирует вид.
func parseTaakFilter(r *http.Request, kind model.TaakSoort) (model.ExterneTaakFilter, *validation.Errors) {
	var f model.ExterneTaakFilter
	errs := validation.New()
	q := r.URL.Query()

	var status *string
	if err := runtime.BindQueryParameter("form", true, false, "status", q, &status); err == nil && status != nil {
		if slices.Contains(model.TaakStatuses, *status) {
			st := model.TaakStatus(*status)
			f.Status = &st
		} else {
			errs.Add("status", validation.CodeInvalidChoice, "Selecteer een geldige keuze.")
		}
	}

	if kind != "" {
		f.TaakSoort = &kind
		return f, errs
	}
	var soort *string
	if err := runtime.BindQueryParameter("form", true, false, "taakSoort", q, &soort); err == nil && soort != nil {
		valid := false
		for _, k := range TaakKinds {
			if string(k.Soort) == *soort {
				valid = true
			}
		}
		if valid {
			s := model.TaakSoort(*soort)
			f.TaakSoort = &s
		} else {
			errs.Add("taakSoort", validation.CodeInvalidChoice, "Selecteer een geldige keuze.")
		}
	}
	return f, errs
}

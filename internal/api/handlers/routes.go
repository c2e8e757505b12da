// routes.go — таблица маршрутов компонентов API.
// Методы, не поддерживаемые ресурсом, отвечают 405 в формате ошибок API.
package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/maykinmedia/open-vtb-sub000/internal/service"
)

// BerichtenRoutes регистрирует маршруты компонента Berichten.
func (h *APIHandler) BerichtenRoutes(r chi.Router) {
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/berichten", h.ListBerichten)
	r.Post("/berichten", h.CreateBericht)
	r.Get("/berichten/{uuid}", h.GetBericht)

	r.Get("/berichtontvangers", h.ListOntvangers)
	r.Post("/berichtontvangers", h.CreateOntvanger)
	r.Get("/berichtontvangers/{uuid}", h.GetOntvanger)
	r.Put("/berichtontvangers/{uuid}", h.UpdateOntvanger(service.ModeReplace))
	r.Patch("/berichtontvangers/{uuid}", h.UpdateOntvanger(service.ModePatch))
	r.Delete("/berichtontvangers/{uuid}", h.DeleteOntvanger)
}

// TakenRoutes регистрирует маршруты компонента Taken.
func (h *APIHandler) TakenRoutes(r chi.Router) {
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/externetaken", h.ListTaken)
	r.Get("/externetaken/{uuid}", h.GetTaak)

	for _, k := range TaakKinds {
		coll := "/" + k.Collection
		r.Get(coll, h.ListTakenOfKind(k.Soort))
		r.Post(coll, h.CreateTaak(k.Soort))
		r.Get(coll+"/{uuid}", h.GetTaakOfKind(k.Soort))
		r.Put(coll+"/{uuid}", h.UpdateTaak(k.Soort, service.ModeReplace))
		r.Patch(coll+"/{uuid}", h.UpdateTaak(k.Soort, service.ModePatch))
		r.Delete(coll+"/{uuid}", h.DeleteTaak(k.Soort))
	}
}

// VerzoekenRoutes регистрирует маршруты компонента Verzoeken.
func (h *APIHandler) VerzoekenRoutes(r chi.Router) {
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/verzoeken", h.ListVerzoeken)
	r.Post("/verzoeken", h.CreateVerzoek)
	r.Get("/verzoeken/{uuid}", h.GetVerzoek)
	r.Put("/verzoeken/{uuid}", h.UpdateVerzoek(service.ModeReplace))
	r.Patch("/verzoeken/{uuid}", h.UpdateVerzoek(service.ModePatch))
	r.Delete("/verzoeken/{uuid}", h.DeleteVerzoek)

	r.Get("/verzoektypen", h.ListVerzoekTypen)
	r.Post("/verzoektypen", h.CreateVerzoekType)
	r.Get("/verzoektypen/{uuid}", h.GetVerzoekType)
	r.Put("/verzoektypen/{uuid}", h.UpdateVerzoekType(service.ModeReplace))
	r.Patch("/verzoektypen/{uuid}", h.UpdateVerzoekType(service.ModePatch))
	r.Delete("/verzoektypen/{uuid}", h.DeleteVerzoekType)

	r.Get("/verzoektypen/{uuid}/versions", h.ListVersions)
	r.Post("/verzoektypen/{uuid}/versions", h.CreateVersion)
	r.Get("/verzoektypen/{uuid}/versions/{version}", h.GetVersion)
	r.Put("/verzoektypen/{uuid}/versions/{version}", h.UpdateVersion(service.ModeReplace))
	r.Patch("/verzoektypen/{uuid}/versions/{version}", h.UpdateVersion(service.ModePatch))
	r.Delete("/verzoektypen/{uuid}/versions/{version}", h.DeleteVersion)
}

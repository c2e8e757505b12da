// representations.go — проводные (camelCase) представления ресурсов.
package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/payload"
	"github.com/maykinmedia/open-vtb-sub000/internal/wire"
)

// Префиксы компонентов API.
const (
	BerichtenPrefix = "/berichten/api/v1"
	TakenPrefix     = "/taken/api/v1"
	VerzoekenPrefix = "/verzoeken/api/v1"
)

// Коллекции ресурсов.
const (
	collBerichten    = "berichten"
	collOntvangers   = "berichtontvangers"
	collExterneTaken = "externetaken"
	collVerzoeken    = "verzoeken"
	collVerzoekTypen = "verzoektypen"
)

// TaakKind — коллекция задач одного вида.
type TaakKind struct {
	Collection string
	Soort      model.TaakSoort
}

// TaakKinds — коллекции задач по видам.
var TaakKinds = []TaakKind{
	{Collection: "betaaltaken", Soort: model.SoortBetaaltaak},
	{Collection: "gegevensuitvraagtaken", Soort: model.SoortGegevensuitvraagtaak},
	{Collection: "formuliertaken", Soort: model.SoortFormuliertaak},
}

func taakCollection(soort model.TaakSoort) string {
	for _, k := range TaakKinds {
		if k.Soort == soort {
			return k.Collection
		}
	}
	return collExterneTaken
}

type bijlageResponse struct {
	InformatieObject string `json:"informatieObject"`
	Omschrijving     string `json:"omschrijving"`
}

type berichtResponse struct {
	URL                        string            `json:"url"`
	URN                        string            `json:"urn"`
	UUID                       uuid.UUID         `json:"uuid"`
	Onderwerp                  string            `json:"onderwerp"`
	BerichtTekst               string            `json:"berichtTekst"`
	Publicatiedatum            *string           `json:"publicatiedatum"`
	Referentie                 string            `json:"referentie"`
	Ontvanger                  string            `json:"ontvanger"`
	GeopendOp                  *string           `json:"geopendOp"`
	BerichtType                string            `json:"berichtType"`
	Handelingsperspectief      string            `json:"handelingsperspectief"`
	EinddatumHandelingstermijn *string           `json:"einddatumHandelingstermijn"`
	Bijlagen                   []bijlageResponse `json:"bijlagen"`
}

func (h *APIHandler) berichtResponse(base string, b *model.Bericht) berichtResponse {
	bijlagen := make([]bijlageResponse, 0, len(b.Bijlagen))
	for _, bl := range b.Bijlagen {
		bijlagen = append(bijlagen, bijlageResponse(bl))
	}
	return berichtResponse{
		URL:                        detailURL(base, BerichtenPrefix, collBerichten, b.UUID),
		URN:                        h.codec.MustEncode(b),
		UUID:                       b.UUID,
		Onderwerp:                  b.Onderwerp,
		BerichtTekst:               b.BerichtTekst,
		Publicatiedatum:            wire.FormatDateTime(&b.Publicatiedatum),
		Referentie:                 b.Referentie,
		Ontvanger:                  detailURL(base, BerichtenPrefix, collOntvangers, b.OntvangerID),
		GeopendOp:                  wire.FormatDateTime(b.GeopendOp),
		BerichtType:                b.BerichtType,
		Handelingsperspectief:      b.Handelingsperspectief,
		EinddatumHandelingstermijn: wire.FormatDate(b.EinddatumHandelingstermijn),
		Bijlagen:                   bijlagen,
	}
}

type ontvangerResponse struct {
	URL           string    `json:"url"`
	URN           string    `json:"urn"`
	UUID          uuid.UUID `json:"uuid"`
	Geadresseerde string    `json:"geadresseerde"`
	GeopendOp     *string   `json:"geopendOp"`
	Geopend       bool      `json:"geopend"`
}

func (h *APIHandler) ontvangerResponse(base string, o *model.BerichtOntvanger) ontvangerResponse {
	return ontvangerResponse{
		URL:           detailURL(base, BerichtenPrefix, collOntvangers, o.UUID),
		URN:           h.codec.MustEncode(o),
		UUID:          o.UUID,
		Geadresseerde: o.Geadresseerde,
		GeopendOp:     wire.FormatDateTime(o.GeopendOp),
		Geopend:       o.Geopend(),
	}
}

type taakResponse struct {
	URL                        string         `json:"url"`
	URN                        string         `json:"urn"`
	UUID                       uuid.UUID      `json:"uuid"`
	Titel                      string         `json:"titel"`
	Status                     string         `json:"status"`
	Startdatum                 *string        `json:"startdatum"`
	HandelingsPerspectief      string         `json:"handelingsPerspectief"`
	EinddatumHandelingsTermijn *string        `json:"einddatumHandelingsTermijn"`
	DatumHerinnering           *string        `json:"datumHerinnering"`
	Toelichting                string         `json:"toelichting"`
	TaakSoort                  string         `json:"taakSoort"`
	Details                    map[string]any `json:"details"`
	IsToegewezenAan            string         `json:"isToegewezenAan"`
	WordtBehandeldDoor         string         `json:"wordtBehandeldDoor"`
	HoortBij                   string         `json:"hoortBij"`
	HeeftBetrekkingOp          string         `json:"heeftBetrekkingOp"`
}

func (h *APIHandler) taakResponse(base string, engine *payload.Engine, t *model.ExterneTaak) taakResponse {
	return taakResponse{
		URL:                        detailURL(base, TakenPrefix, taakCollection(t.TaakSoort), t.UUID),
		URN:                        h.codec.MustEncode(t),
		UUID:                       t.UUID,
		Titel:                      t.Titel,
		Status:                     string(t.Status),
		Startdatum:                 wire.FormatDate(&t.Startdatum),
		HandelingsPerspectief:      t.Handelingsperspectief,
		EinddatumHandelingsTermijn: wire.FormatDate(t.EinddatumHandelingsTermijn),
		DatumHerinnering:           wire.FormatDate(t.DatumHerinnering),
		Toelichting:                t.Toelichting,
		TaakSoort:                  string(t.TaakSoort),
		Details:                    engine.Serialize(string(t.TaakSoort), t.Details),
		IsToegewezenAan:            t.IsToegewezenAan,
		WordtBehandeldDoor:         t.WordtBehandeldDoor,
		HoortBij:                   t.HoortBij,
		HeeftBetrekkingOp:          t.HeeftBetrekkingOp,
	}
}

type verzoekTypeResponse struct {
	URL          string    `json:"url"`
	URN          string    `json:"urn"`
	UUID         uuid.UUID `json:"uuid"`
	Naam         string    `json:"naam"`
	Toelichting  string    `json:"toelichting"`
	Opvolging    string    `json:"opvolging"`
	AangemaaktOp *string   `json:"aangemaaktOp"`
	GewijzigdOp  *string   `json:"gewijzigdOp"`
	Versions     []int     `json:"versions"`
	LastVersion  *int      `json:"lastVersion"`
}

func (h *APIHandler) verzoekTypeResponse(base string, t *model.VerzoekType) verzoekTypeResponse {
	versions := t.Versions
	if versions == nil {
		versions = []int{}
	}
	var last *int
	if n := t.LastVersion(); n > 0 {
		last = &n
	}
	return verzoekTypeResponse{
		URL:          detailURL(base, VerzoekenPrefix, collVerzoekTypen, t.UUID),
		URN:          h.codec.MustEncode(t),
		UUID:         t.UUID,
		Naam:         t.Naam,
		Toelichting:  t.Toelichting,
		Opvolging:    string(t.Opvolging),
		AangemaaktOp: wire.FormatDateTime(&t.AangemaaktOp),
		GewijzigdOp:  wire.FormatDateTime(&t.GewijzigdOp),
		Versions:     versions,
		LastVersion:  last,
	}
}

type bijlageTypeResponse struct {
	InformatieObjecttype string `json:"informatieObjecttype"`
	Omschrijving         string `json:"omschrijving"`
}

type versionResponse struct {
	URL                    string                `json:"url"`
	Version                int                   `json:"version"`
	VerzoekType            string                `json:"verzoekType"`
	Status                 string                `json:"status"`
	AanvraagGegevensSchema json.RawMessage       `json:"aanvraagGegevensSchema"`
	AangemaaktOp           *string               `json:"aangemaaktOp"`
	GewijzigdOp            *string               `json:"gewijzigdOp"`
	GepubliceerdOp         *string               `json:"gepubliceerdOp"`
	BeginGeldigheid        *string               `json:"beginGeldigheid"`
	EindeGeldigheid        *string               `json:"eindeGeldigheid"`
	IsExpired              bool                  `json:"isExpired"`
	BijlageTypen           []bijlageTypeResponse `json:"bijlageTypen"`
}

func versionResponseOf(base string, v *model.VerzoekTypeVersion, today time.Time) versionResponse {
	bijlageTypen := make([]bijlageTypeResponse, 0, len(v.BijlageTypen))
	for _, bt := range v.BijlageTypen {
		bijlageTypen = append(bijlageTypen, bijlageTypeResponse(bt))
	}
	schema := v.AanvraagGegevensSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{}`)
	}
	typeURL := detailURL(base, VerzoekenPrefix, collVerzoekTypen, v.VerzoekTypeID)
	return versionResponse{
		URL:                    typeURL + "/versions/" + strconv.Itoa(v.Version),
		Version:                v.Version,
		VerzoekType:            typeURL,
		Status:                 string(v.Status),
		AanvraagGegevensSchema: schema,
		AangemaaktOp:           wire.FormatDateTime(&v.AangemaaktOp),
		GewijzigdOp:            wire.FormatDateTime(&v.GewijzigdOp),
		GepubliceerdOp:         wire.FormatDateTime(v.GepubliceerdOp),
		BeginGeldigheid:        wire.FormatDate(v.BeginGeldigheid),
		EindeGeldigheid:        wire.FormatDate(v.EindeGeldigheid),
		IsExpired:              v.IsExpired(today),
		BijlageTypen:           bijlageTypen,
	}
}

type verzoekResponse struct {
	URL                  string                 `json:"url"`
	URN                  string                 `json:"urn"`
	UUID                 uuid.UUID              `json:"uuid"`
	VerzoekType          uuid.UUID              `json:"verzoekType"`
	Version              int                    `json:"version"`
	Geometrie            json.RawMessage        `json:"geometrie"`
	AanvraagGegevens     map[string]any         `json:"aanvraagGegevens"`
	Bijlagen             []string               `json:"bijlagen"`
	IsIngediendDoor      *ingediendDoorResponse `json:"isIngediendDoor"`
	IsGerelateerdAan     string                 `json:"isGerelateerdAan"`
	Kanaal               string                 `json:"kanaal"`
	AuthenticatieContext string                 `json:"authenticatieContext"`
}

func (h *APIHandler) verzoekResponse(base string, v *model.Verzoek) verzoekResponse {
	geometrie := v.Geometrie
	if len(geometrie) == 0 {
		geometrie = json.RawMessage(`null`)
	}
	gegevens := v.AanvraagGegevens
	if gegevens == nil {
		gegevens = map[string]any{}
	}
	bijlagen := v.Bijlagen
	if bijlagen == nil {
		bijlagen = []string{}
	}
	return verzoekResponse{
		URL:                  detailURL(base, VerzoekenPrefix, collVerzoeken, v.UUID),
		URN:                  h.codec.MustEncode(v),
		UUID:                 v.UUID,
		VerzoekType:          v.VerzoekTypeID,
		Version:              v.Version,
		Geometrie:            geometrie,
		AanvraagGegevens:     gegevens,
		Bijlagen:             bijlagen,
		IsIngediendDoor:      ingediendDoorOf(v.IsIngediendDoor),
		IsGerelateerdAan:     v.IsGerelateerdAan,
		Kanaal:               v.Kanaal,
		AuthenticatieContext: v.AuthenticatieContext,
	}
}

// ingediendDoorResponse — проводная форма подавшего (хранимая форма в snake_case).
type ingediendDoorResponse struct {
	AuthentiekeVerwijzing              *authentiekeVerwijzingResponse `json:"authentiekeVerwijzing,omitempty"`
	NietAuthentiekePersoonsgegevens    *persoonsgegevensResponse      `json:"nietAuthentiekePersoonsgegevens,omitempty"`
	NietAuthentiekeOrganisatiegegevens *organisatiegegevensResponse   `json:"nietAuthentiekeOrganisatiegegevens,omitempty"`
}

type authentiekeVerwijzingResponse struct {
	URN string `json:"urn"`
}

type persoonsgegevensResponse struct {
	Voornaam       string         `json:"voornaam"`
	Achternaam     string         `json:"achternaam"`
	Geboortedatum  string         `json:"geboortedatum,omitempty"`
	Emailadres     string         `json:"emailadres,omitempty"`
	Telefoonnummer string         `json:"telefoonnummer,omitempty"`
	Postadres      *adresResponse `json:"postadres,omitempty"`
	Verblijfsadres *adresResponse `json:"verblijfsadres,omitempty"`
}

type organisatiegegevensResponse struct {
	StatutaireNaam string         `json:"statutaireNaam"`
	Bezoekadres    *adresResponse `json:"bezoekadres,omitempty"`
	Postadres      *adresResponse `json:"postadres,omitempty"`
	Emailadres     string         `json:"emailadres,omitempty"`
	Telefoonnummer string         `json:"telefoonnummer,omitempty"`
}

type adresResponse struct {
	Straatnaam           string `json:"straatnaam,omitempty"`
	Huisnummer           string `json:"huisnummer,omitempty"`
	Huisletter           string `json:"huisletter,omitempty"`
	Huisnummertoevoeging string `json:"huisnummertoevoeging,omitempty"`
	Postcode             string `json:"postcode,omitempty"`
	Stad                 string `json:"stad,omitempty"`
	Land                 string `json:"land,omitempty"`
}

func ingediendDoorOf(d *model.IngediendDoor) *ingediendDoorResponse {
	if d == nil {
		return nil
	}
	out := &ingediendDoorResponse{}
	if a := d.AuthentiekeVerwijzing; a != nil {
		out.AuthentiekeVerwijzing = &authentiekeVerwijzingResponse{URN: a.URN}
	}
	if p := d.NietAuthentiekePersoonsgegevens; p != nil {
		out.NietAuthentiekePersoonsgegevens = &persoonsgegevensResponse{
			Voornaam:       p.Voornaam,
			Achternaam:     p.Achternaam,
			Geboortedatum:  p.Geboortedatum,
			Emailadres:     p.Emailadres,
			Telefoonnummer: p.Telefoonnummer,
			Postadres:      adresOf(p.Postadres),
			Verblijfsadres: adresOf(p.Verblijfsadres),
		}
	}
	if o := d.NietAuthentiekeOrganisatiegegevens; o != nil {
		out.NietAuthentiekeOrganisatiegegevens = &organisatiegegevensResponse{
			StatutaireNaam: o.Statutairenaam,
			Bezoekadres:    adresOf(o.Bezoekadres),
			Postadres:      adresOf(o.Postadres),
			Emailadres:     o.Emailadres,
			Telefoonnummer: o.Telefoonnummer,
		}
	}
	return out
}

func adresOf(a *model.Adres) *adresResponse {
	if a == nil {
		return nil
	}
	r := adresResponse(*a)
	return &r
}

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/lifecycle"
)

// Opvolging — политика последующей обработки типа запроса.
type Opvolging string

const (
	OpvolgingNiet     Opvolging = "niet"
	OpvolgingMogelijk Opvolging = "mogelijk"
	OpvolgingAltijd   Opvolging = "altijd"
	OpvolgingMeerdere Opvolging = "meerdere"
)

// OpvolgingChoices — допустимые значения Opvolging.
var OpvolgingChoices = []string{
	string(OpvolgingNiet), string(OpvolgingMogelijk), string(OpvolgingAltijd), string(OpvolgingMeerdere),
}

// VerzoekType — тип запроса; владеет упорядоченными версиями схемы.
type VerzoekType struct {
	UUID         uuid.UUID
	Naam         string
	Toelichting  string
	Opvolging    Opvolging
	AangemaaktOp time.Time
	GewijzigdOp  time.Time
	// Versions — номера версий по возрастанию (заполняется при чтении).
	Versions []int
}

// LastVersion возвращает наибольший номер версии или 0.
func (t VerzoekType) LastVersion() int {
	if len(t.Versions) == 0 {
		return 0
	}
	return t.Versions[len(t.Versions)-1]
}

// VerzoekTypeVersion — версия JSON Schema типа запроса.
// Пара (verzoek_type, version) уникальна.
type VerzoekTypeVersion struct {
	VerzoekTypeID          uuid.UUID
	Version                int
	AanvraagGegevensSchema json.RawMessage
	Status                 lifecycle.Status
	AangemaaktOp           time.Time
	GewijzigdOp            time.Time
	GepubliceerdOp         *time.Time
	BeginGeldigheid        *time.Time
	EindeGeldigheid        *time.Time
	BijlageTypen           []BijlageType
}

// IsExpired — версия истекла, если конец действия не позже today.
func (v VerzoekTypeVersion) IsExpired(today time.Time) bool {
	if v.EindeGeldigheid == nil {
		return false
	}
	return !v.EindeGeldigheid.After(today)
}

// BijlageType — тип вложения версии: URN типа документа и описание.
type BijlageType struct {
	InformatieObjecttype string
	Omschrijving         string
}

// Verzoek — поданный запрос. AanvraagGegevens валидируется схемой
// закреплённой версии (VerzoekTypeID, Version).
type Verzoek struct {
	UUID                 uuid.UUID
	VerzoekTypeID        uuid.UUID
	Version              int
	Geometrie            json.RawMessage
	AanvraagGegevens     map[string]any
	Bijlagen             []string
	IsIngediendDoor      *IngediendDoor
	IsGerelateerdAan     string
	Kanaal               string
	AuthenticatieContext string
}

// VerzoekFilter — фильтры списка запросов.
type VerzoekFilter struct {
	VerzoekTypeID *uuid.UUID
}

// IngediendDoor — подавший запрос; заполнен ровно один вариант.
// Хранится в JSONB с ключами snake_case.
type IngediendDoor struct {
	AuthentiekeVerwijzing              *AuthentiekeVerwijzing              `json:"authentieke_verwijzing,omitempty"`
	NietAuthentiekePersoonsgegevens    *NietAuthentiekePersoonsgegevens    `json:"niet_authentieke_persoonsgegevens,omitempty"`
	NietAuthentiekeOrganisatiegegevens *NietAuthentiekeOrganisatiegegevens `json:"niet_authentieke_organisatiegegevens,omitempty"`
}

// Variants возвращает число заполненных вариантов.
func (d IngediendDoor) Variants() int {
	n := 0
	if d.AuthentiekeVerwijzing != nil {
		n++
	}
	if d.NietAuthentiekePersoonsgegevens != nil {
		n++
	}
	if d.NietAuthentiekeOrganisatiegegevens != nil {
		n++
	}
	return n
}

// AuthentiekeVerwijzing — ссылка на аутентичную запись (URN).
type AuthentiekeVerwijzing struct {
	URN string `json:"urn"`
}

// NietAuthentiekePersoonsgegevens — неаутентичные данные физического лица.
type NietAuthentiekePersoonsgegevens struct {
	Voornaam       string `json:"voornaam"`
	Achternaam     string `json:"achternaam"`
	Geboortedatum  string `json:"geboortedatum,omitempty"`
	Emailadres     string `json:"emailadres,omitempty"`
	Telefoonnummer string `json:"telefoonnummer,omitempty"`
	Postadres      *Adres `json:"postadres,omitempty"`
	Verblijfsadres *Adres `json:"verblijfsadres,omitempty"`
}

// NietAuthentiekeOrganisatiegegevens — неаутентичные данные организации.
type NietAuthentiekeOrganisatiegegevens struct {
	Statutairenaam string `json:"statutaire_naam"`
	Bezoekadres    *Adres `json:"bezoekadres,omitempty"`
	Postadres      *Adres `json:"postadres,omitempty"`
	Emailadres     string `json:"emailadres,omitempty"`
	Telefoonnummer string `json:"telefoonnummer,omitempty"`
}

// Adres — почтовый адрес.
type Adres struct {
	Straatnaam           string `json:"straatnaam,omitempty"`
	Huisnummer           string `json:"huisnummer,omitempty"`
	Huisletter           string `json:"huisletter,omitempty"`
	Huisnummertoevoeging string `json:"huisnummertoevoeging,omitempty"`
	Postcode             string `json:"postcode,omitempty"`
	Stad                 string `json:"stad,omitempty"`
	Land                 string `json:"land,omitempty"`
}

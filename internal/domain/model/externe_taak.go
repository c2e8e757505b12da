package model

import (
	"time"

	"github.com/google/uuid"
)

// TaakStatus — статус внешней задачи.
type TaakStatus string

const (
	TaakOpen           TaakStatus = "open"
	TaakUitgevoerd     TaakStatus = "uitgevoerd"
	TaakNietUitgevoerd TaakStatus = "niet_uitgevoerd"
	TaakAfgebroken     TaakStatus = "afgebroken"
	TaakVerwerkt       TaakStatus = "verwerkt"
)

// TaakStatuses — допустимые статусы задачи.
var TaakStatuses = []string{
	string(TaakOpen), string(TaakUitgevoerd), string(TaakNietUitgevoerd),
	string(TaakAfgebroken), string(TaakVerwerkt),
}

// TaakSoort — вид внешней задачи (дискриминатор details).
type TaakSoort string

const (
	SoortBetaaltaak           TaakSoort = "betaaltaak"
	SoortGegevensuitvraagtaak TaakSoort = "gegevensuitvraagtaak"
	SoortFormuliertaak        TaakSoort = "formuliertaak"
)

// ExterneTaak — внешняя задача.
// Details хранится в JSONB с ключами snake_case; форма зависит от TaakSoort.
type ExterneTaak struct {
	UUID                       uuid.UUID
	Titel                      string
	Status                     TaakStatus
	Startdatum                 time.Time
	Handelingsperspectief      string
	EinddatumHandelingsTermijn *time.Time
	DatumHerinnering           *time.Time
	Toelichting                string
	TaakSoort                  TaakSoort
	Details                    map[string]any
	IsToegewezenAan            string
	WordtBehandeldDoor         string
	HoortBij                   string
	HeeftBetrekkingOp          string
}

// ExterneTaakFilter — фильтры списка задач.
type ExterneTaakFilter struct {
	TaakSoort *TaakSoort
	Status    *TaakStatus
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Bericht — сообщение адресату.
// Хранится в таблице berichten; вложения — в bericht_bijlagen.
type Bericht struct {
	UUID                       uuid.UUID
	Onderwerp                  string
	BerichtTekst               string
	Publicatiedatum            time.Time
	Referentie                 string
	OntvangerID                uuid.UUID
	GeopendOp                  *time.Time
	BerichtType                string
	Handelingsperspectief      string
	EinddatumHandelingstermijn *time.Time
	Bijlagen                   []Bijlage
}

// Bijlage — вложение сообщения: URN документа и описание.
// Пара (bericht, informatie_object) уникальна.
type Bijlage struct {
	InformatieObject string
	Omschrijving     string
}

// BerichtOntvanger — получатель сообщения.
type BerichtOntvanger struct {
	UUID          uuid.UUID
	Geadresseerde string
	GeopendOp     *time.Time
}

// Geopend сообщает, открыто ли сообщение получателем.
func (o BerichtOntvanger) Geopend() bool {
	return o.GeopendOp != nil
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// APIToken — статический ключ доступа (заголовок Authorization: Token <key>).
// Хранится bcrypt-хеш; Prefix — первые символы ключа для поиска.
type APIToken struct {
	ID               uuid.UUID
	Naam             string
	Prefix           string
	Hash             []byte
	Actief           bool
	AangemaaktOp     time.Time
	LaatstGebruiktOp *time.Time
}

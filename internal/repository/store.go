package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories — набор репозиториев, привязанных к одному DBTX.
type Repositories struct {
	Ontvangers   BerichtOntvangerRepository
	Berichten    BerichtRepository
	Taken        ExterneTaakRepository
	VerzoekTypen VerzoekTypeRepository
	Versions     VerzoekTypeVersionRepository
	Verzoeken    VerzoekRepository
	Tokens       APITokenRepository
}

// NewRepositories создаёт репозитории поверх db (пул или транзакция).
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Ontvangers:   NewBerichtOntvangerRepository(db),
		Berichten:    NewBerichtRepository(db),
		Taken:        NewExterneTaakRepository(db),
		VerzoekTypen: NewVerzoekTypeRepository(db),
		Versions:     NewVerzoekTypeVersionRepository(db),
		Verzoeken:    NewVerzoekRepository(db),
		Tokens:       NewAPITokenRepository(db),
	}
}

// Store — точка доступа сервисов к хранилищу.
type Store interface {
	// Repos возвращает репозитории вне транзакции.
	Repos() *Repositories
	// InTx выполняет fn в одной транзакции; ошибка fn откатывает всё.
	InTx(ctx context.Context, fn func(r *Repositories) error) error
}

// pgStore — Store поверх pgxpool.
type pgStore struct {
	repos *Repositories
	tx    *TxRunner
}

// NewStore создаёт Store поверх пула PostgreSQL.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{
		repos: NewRepositories(pool),
		tx:    NewTxRunner(pool),
	}
}

func (s *pgStore) Repos() *Repositories {
	return s.repos
}

func (s *pgStore) InTx(ctx context.Context, fn func(r *Repositories) error) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(NewRepositories(tx))
	})
}

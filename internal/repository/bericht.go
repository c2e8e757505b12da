package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
)

// BerichtOntvangerRepository — CRUD для таблицы bericht_ontvangers.
type BerichtOntvangerRepository interface {
	Create(ctx context.Context, o *model.BerichtOntvanger) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.BerichtOntvanger, error)
	List(ctx context.Context, limit, offset int) ([]*model.BerichtOntvanger, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, o *model.BerichtOntvanger) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// BerichtFilter — фильтры списка сообщений.
type BerichtFilter struct {
	Ontvanger *uuid.UUID
}

// BerichtRepository — создание и чтение сообщений вместе с вложениями.
// Изменение и удаление сообщений не поддерживаются.
type BerichtRepository interface {
	// Create сохраняет сообщение и его вложения; вызывать внутри транзакции.
	Create(ctx context.Context, b *model.Bericht) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.Bericht, error)
	List(ctx context.Context, f BerichtFilter, limit, offset int) ([]*model.Bericht, error)
	Count(ctx context.Context, f BerichtFilter) (int, error)
}

// --- bericht_ontvangers ---

type ontvangerRepo struct {
	db DBTX
}

// NewBerichtOntvangerRepository создаёт репозиторий получателей.
func NewBerichtOntvangerRepository(db DBTX) BerichtOntvangerRepository {
	return &ontvangerRepo{db: db}
}

// ontvangerRow — строка bericht_ontvangers для scany.
type ontvangerRow struct {
	UUID          uuid.UUID  `db:"uuid"`
	Geadresseerde string     `db:"geadresseerde"`
	GeopendOp     *time.Time `db:"geopend_op"`
}

func (r ontvangerRow) model() *model.BerichtOntvanger {
	return &model.BerichtOntvanger{UUID: r.UUID, Geadresseerde: r.Geadresseerde, GeopendOp: r.GeopendOp}
}

const ontvangerColumns = `uuid, geadresseerde, geopend_op`

func (r *ontvangerRepo) Create(ctx context.Context, o *model.BerichtOntvanger) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO bericht_ontvangers (uuid, geadresseerde, geopend_op) VALUES ($1, $2, $3)`,
		o.UUID, o.Geadresseerde, o.GeopendOp,
	)
	return mapWriteError(err, "получатель")
}

func (r *ontvangerRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.BerichtOntvanger, error) {
	var row ontvangerRow
	err := pgxscan.Get(ctx, r.db, &row,
		`SELECT `+ontvangerColumns+` FROM bericht_ontvangers WHERE uuid = $1`, id)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения получателя: %w", err)
	}
	return row.model(), nil
}

func (r *ontvangerRepo) List(ctx context.Context, limit, offset int) ([]*model.BerichtOntvanger, error) {
	var rows []ontvangerRow
	err := pgxscan.Select(ctx, r.db, &rows,
		`SELECT `+ontvangerColumns+` FROM bericht_ontvangers ORDER BY created_at, uuid LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка получателей: %w", err)
	}
	result := make([]*model.BerichtOntvanger, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.model())
	}
	return result, nil
}

func (r *ontvangerRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bericht_ontvangers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта получателей: %w", err)
	}
	return count, nil
}

func (r *ontvangerRepo) Update(ctx context.Context, o *model.BerichtOntvanger) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE bericht_ontvangers SET geadresseerde = $2, geopend_op = $3 WHERE uuid = $1`,
		o.UUID, o.Geadresseerde, o.GeopendOp,
	)
	if err != nil {
		return mapWriteError(err, "получатель")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ontvangerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bericht_ontvangers WHERE uuid = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления получателя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- berichten ---

type berichtRepo struct {
	db DBTX
}

// NewBerichtRepository создаёт репозиторий сообщений.
func NewBerichtRepository(db DBTX) BerichtRepository {
	return &berichtRepo{db: db}
}

const berichtColumns = `uuid, onderwerp, bericht_tekst, publicatiedatum, referentie,
	ontvanger_uuid, geopend_op, bericht_type, handelingsperspectief, einddatum_handelingstermijn`

func scanBericht(row pgx.Row) (*model.Bericht, error) {
	b := &model.Bericht{}
	err := row.Scan(
		&b.UUID, &b.Onderwerp, &b.BerichtTekst, &b.Publicatiedatum, &b.Referentie,
		&b.OntvangerID, &b.GeopendOp, &b.BerichtType, &b.Handelingsperspectief, &b.EinddatumHandelingstermijn,
	)
	return b, err
}

func (r *berichtRepo) Create(ctx context.Context, b *model.Bericht) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO berichten (uuid, onderwerp, bericht_tekst, publicatiedatum, referentie,
			ontvanger_uuid, geopend_op, bericht_type, handelingsperspectief, einddatum_handelingstermijn)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.UUID, b.Onderwerp, b.BerichtTekst, b.Publicatiedatum, b.Referentie,
		b.OntvangerID, b.GeopendOp, b.BerichtType, b.Handelingsperspectief, b.EinddatumHandelingstermijn,
	)
	if err != nil {
		return mapWriteError(err, "сообщение")
	}

	for _, bijlage := range b.Bijlagen {
		_, err := r.db.Exec(ctx,
			`INSERT INTO bericht_bijlagen (bericht_uuid, informatie_object, omschrijving) VALUES ($1, $2, $3)`,
			b.UUID, bijlage.InformatieObject, bijlage.Omschrijving,
		)
		if err != nil {
			return mapWriteError(err, "вложение сообщения")
		}
	}
	return nil
}

func (r *berichtRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Bericht, error) {
	b, err := scanBericht(r.db.QueryRow(ctx, `SELECT `+berichtColumns+` FROM berichten WHERE uuid = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сообщения: %w", err)
	}
	if err := r.loadBijlagen(ctx, []*model.Bericht{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *berichtRepo) where(q squirrel.SelectBuilder, f BerichtFilter) squirrel.SelectBuilder {
	if f.Ontvanger != nil {
		q = q.Where(squirrel.Eq{"ontvanger_uuid": *f.Ontvanger})
	}
	return q
}

func (r *berichtRepo) List(ctx context.Context, f BerichtFilter, limit, offset int) ([]*model.Bericht, error) {
	q := r.where(psql.Select(berichtColumns).From("berichten"), f).
		OrderBy("publicatiedatum DESC", "uuid").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка сообщений: %w", err)
	}
	defer rows.Close()

	var result []*model.Bericht
	for rows.Next() {
		b, err := scanBericht(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования сообщения: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadBijlagen(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *berichtRepo) Count(ctx context.Context, f BerichtFilter) (int, error) {
	sql, args, err := r.where(psql.Select("COUNT(*)").From("berichten"), f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта сообщений: %w", err)
	}
	return count, nil
}

// bijlageRow — строка bericht_bijlagen для scany.
type bijlageRow struct {
	BerichtUUID      uuid.UUID `db:"bericht_uuid"`
	InformatieObject string    `db:"informatie_object"`
	Omschrijving     string    `db:"omschrijving"`
}

// loadBijlagen заполняет вложения для набора сообщений одним запросом.
func (r *berichtRepo) loadBijlagen(ctx context.Context, berichten []*model.Bericht) error {
	if len(berichten) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(berichten))
	byID := make(map[uuid.UUID]*model.Bericht, len(berichten))
	for _, b := range berichten {
		ids = append(ids, b.UUID)
		byID[b.UUID] = b
		b.Bijlagen = []model.Bijlage{}
	}

	var rows []bijlageRow
	err := pgxscan.Select(ctx, r.db, &rows, `
		SELECT bericht_uuid, informatie_object, omschrijving
		FROM bericht_bijlagen
		WHERE bericht_uuid = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("ошибка получения вложений: %w", err)
	}
	for _, row := range rows {
		if b, ok := byID[row.BerichtUUID]; ok {
			b.Bijlagen = append(b.Bijlagen, model.Bijlage{InformatieObject: row.InformatieObject, Omschrijving: row.Omschrijving})
		}
	}
	return nil
}

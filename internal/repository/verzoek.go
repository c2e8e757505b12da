package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
)

// VerzoekRepository — CRUD поданных запросов.
type VerzoekRepository interface {
	Create(ctx context.Context, v *model.Verzoek) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.Verzoek, error)
	List(ctx context.Context, f model.VerzoekFilter, limit, offset int) ([]*model.Verzoek, error)
	Count(ctx context.Context, f model.VerzoekFilter) (int, error)
	Update(ctx context.Context, v *model.Verzoek) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type verzoekRepo struct {
	db DBTX
}

// NewVerzoekRepository создаёт репозиторий запросов.
func NewVerzoekRepository(db DBTX) VerzoekRepository {
	return &verzoekRepo{db: db}
}

const verzoekColumns = `uuid, verzoek_type_uuid, version, geometrie, aanvraag_gegevens, bijlagen,
	is_ingediend_door, is_gerelateerd_aan, kanaal, authenticatie_context`

func scanVerzoek(row pgx.Row) (*model.Verzoek, error) {
	v := &model.Verzoek{}
	var geometrie []byte
	err := row.Scan(
		&v.UUID, &v.VerzoekTypeID, &v.Version, &geometrie, &v.AanvraagGegevens, &v.Bijlagen,
		&v.IsIngediendDoor, &v.IsGerelateerdAan, &v.Kanaal, &v.AuthenticatieContext,
	)
	if err != nil {
		return nil, err
	}
	if len(geometrie) > 0 {
		v.Geometrie = json.RawMessage(geometrie)
	}
	return v, nil
}

// geometrieArg — nil хранится как SQL NULL.
func geometrieArg(g json.RawMessage) any {
	if len(g) == 0 {
		return nil
	}
	return string(g)
}

func (r *verzoekRepo) Create(ctx context.Context, v *model.Verzoek) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO verzoeken (uuid, verzoek_type_uuid, version, geometrie, aanvraag_gegevens, bijlagen,
			is_ingediend_door, is_gerelateerd_aan, kanaal, authenticatie_context)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10)`,
		v.UUID, v.VerzoekTypeID, v.Version, geometrieArg(v.Geometrie),
		nonNilMap(v.AanvraagGegevens), nonNil(v.Bijlagen),
		v.IsIngediendDoor, v.IsGerelateerdAan, v.Kanaal, v.AuthenticatieContext,
	)
	return mapWriteError(err, "запрос")
}

func (r *verzoekRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Verzoek, error) {
	v, err := scanVerzoek(r.db.QueryRow(ctx, `SELECT `+verzoekColumns+` FROM verzoeken WHERE uuid = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения запроса: %w", err)
	}
	return v, nil
}

func (r *verzoekRepo) where(q squirrel.SelectBuilder, f model.VerzoekFilter) squirrel.SelectBuilder {
	if f.VerzoekTypeID != nil {
		q = q.Where(squirrel.Eq{"verzoek_type_uuid": *f.VerzoekTypeID})
	}
	return q
}

func (r *verzoekRepo) List(ctx context.Context, f model.VerzoekFilter, limit, offset int) ([]*model.Verzoek, error) {
	sql, args, err := r.where(psql.Select(verzoekColumns).From("verzoeken"), f).
		OrderBy("created_at DESC", "uuid").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка запросов: %w", err)
	}
	defer rows.Close()

	var result []*model.Verzoek
	for rows.Next() {
		v, err := scanVerzoek(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования запроса: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (r *verzoekRepo) Count(ctx context.Context, f model.VerzoekFilter) (int, error) {
	sql, args, err := r.where(psql.Select("COUNT(*)").From("verzoeken"), f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта запросов: %w", err)
	}
	return count, nil
}

func (r *verzoekRepo) Update(ctx context.Context, v *model.Verzoek) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE verzoeken SET
			version = $2, geometrie = $3::jsonb, aanvraag_gegevens = $4, bijlagen = $5,
			is_ingediend_door = $6, is_gerelateerd_aan = $7, kanaal = $8, authenticatie_context = $9
		WHERE uuid = $1`,
		v.UUID, v.Version, geometrieArg(v.Geometrie),
		nonNilMap(v.AanvraagGegevens), nonNil(v.Bijlagen),
		v.IsIngediendDoor, v.IsGerelateerdAan, v.Kanaal, v.AuthenticatieContext,
	)
	if err != nil {
		return mapWriteError(err, "запрос")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *verzoekRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM verzoeken WHERE uuid = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления запроса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

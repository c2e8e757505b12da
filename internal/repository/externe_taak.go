package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
)

// ExterneTaakRepository — CRUD внешних задач.
type ExterneTaakRepository interface {
	Create(ctx context.Context, t *model.ExterneTaak) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.ExterneTaak, error)
	List(ctx context.Context, f model.ExterneTaakFilter, limit, offset int) ([]*model.ExterneTaak, error)
	Count(ctx context.Context, f model.ExterneTaakFilter) (int, error)
	Update(ctx context.Context, t *model.ExterneTaak) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type externeTaakRepo struct {
	db DBTX
}

// NewExterneTaakRepository создаёт репозиторий внешних задач.
func NewExterneTaakRepository(db DBTX) ExterneTaakRepository {
	return &externeTaakRepo{db: db}
}

const externeTaakColumns = `uuid, titel, status, startdatum, handelingsperspectief,
	einddatum_handelings_termijn, datum_herinnering, toelichting, taak_soort, details,
	is_toegewezen_aan, wordt_behandeld_door, hoort_bij, heeft_betrekking_op`

func scanExterneTaak(row pgx.Row) (*model.ExterneTaak, error) {
	t := &model.ExterneTaak{}
	err := row.Scan(
		&t.UUID, &t.Titel, &t.Status, &t.Startdatum, &t.Handelingsperspectief,
		&t.EinddatumHandelingsTermijn, &t.DatumHerinnering, &t.Toelichting, &t.TaakSoort, &t.Details,
		&t.IsToegewezenAan, &t.WordtBehandeldDoor, &t.HoortBij, &t.HeeftBetrekkingOp,
	)
	return t, err
}

func (r *externeTaakRepo) Create(ctx context.Context, t *model.ExterneTaak) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO externe_taken (uuid, titel, status, startdatum, handelingsperspectief,
			einddatum_handelings_termijn, datum_herinnering, toelichting, taak_soort, details,
			is_toegewezen_aan, wordt_behandeld_door, hoort_bij, heeft_betrekking_op)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.UUID, t.Titel, t.Status, t.Startdatum, t.Handelingsperspectief,
		t.EinddatumHandelingsTermijn, t.DatumHerinnering, t.Toelichting, t.TaakSoort, nonNilMap(t.Details),
		t.IsToegewezenAan, t.WordtBehandeldDoor, t.HoortBij, t.HeeftBetrekkingOp,
	)
	return mapWriteError(err, "внешняя задача")
}

func (r *externeTaakRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.ExterneTaak, error) {
	t, err := scanExterneTaak(r.db.QueryRow(ctx,
		`SELECT `+externeTaakColumns+` FROM externe_taken WHERE uuid = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения внешней задачи: %w", err)
	}
	return t, nil
}

func (r *externeTaakRepo) where(q squirrel.SelectBuilder, f model.ExterneTaakFilter) squirrel.SelectBuilder {
	if f.TaakSoort != nil {
		q = q.Where(squirrel.Eq{"taak_soort": string(*f.TaakSoort)})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*f.Status)})
	}
	return q
}

func (r *externeTaakRepo) List(ctx context.Context, f model.ExterneTaakFilter, limit, offset int) ([]*model.ExterneTaak, error) {
	sql, args, err := r.where(psql.Select(externeTaakColumns).From("externe_taken"), f).
		OrderBy("created_at DESC", "uuid").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка внешних задач: %w", err)
	}
	defer rows.Close()

	var result []*model.ExterneTaak
	for rows.Next() {
		t, err := scanExterneTaak(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования внешней задачи: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *externeTaakRepo) Count(ctx context.Context, f model.ExterneTaakFilter) (int, error) {
	sql, args, err := r.where(psql.Select("COUNT(*)").From("externe_taken"), f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта внешних задач: %w", err)
	}
	return count, nil
}

func (r *externeTaakRepo) Update(ctx context.Context, t *model.ExterneTaak) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE externe_taken SET
			titel = $2, status = $3, startdatum = $4, handelingsperspectief = $5,
			einddatum_handelings_termijn = $6, datum_herinnering = $7, toelichting = $8,
			taak_soort = $9, details = $10, is_toegewezen_aan = $11,
			wordt_behandeld_door = $12, hoort_bij = $13, heeft_betrekking_op = $14
		WHERE uuid = $1`,
		t.UUID, t.Titel, t.Status, t.Startdatum, t.Handelingsperspectief,
		t.EinddatumHandelingsTermijn, t.DatumHerinnering, t.Toelichting,
		t.TaakSoort, nonNilMap(t.Details), t.IsToegewezenAan,
		t.WordtBehandeldDoor, t.HoortBij, t.HeeftBetrekkingOp,
	)
	if err != nil {
		return mapWriteError(err, "внешняя задача")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *externeTaakRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM externe_taken WHERE uuid = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления внешней задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

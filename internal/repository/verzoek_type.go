package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
)

// VerzoekTypeRepository — CRUD типов запросов.
type VerzoekTypeRepository interface {
	Create(ctx context.Context, t *model.VerzoekType) error
	// GetByUUID возвращает тип с заполненным списком номеров версий.
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.VerzoekType, error)
	// Lock блокирует строку типа до конца транзакции (SELECT ... FOR UPDATE).
	Lock(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*model.VerzoekType, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, t *model.VerzoekType) error
	// Delete удаляет тип вместе с версиями. ErrProtected — на тип ссылаются запросы.
	Delete(ctx context.Context, id uuid.UUID) error
}

type verzoekTypeRepo struct {
	db DBTX
}

// NewVerzoekTypeRepository создаёт репозиторий типов запросов.
func NewVerzoekTypeRepository(db DBTX) VerzoekTypeRepository {
	return &verzoekTypeRepo{db: db}
}

// verzoekTypeColumns — версии собираются подзапросом в массив по возрастанию.
const verzoekTypeColumns = `t.uuid, t.naam, t.toelichting, t.opvolging, t.aangemaakt_op, t.gewijzigd_op,
	COALESCE((SELECT array_agg(v.version ORDER BY v.version)
		FROM verzoek_type_versions v WHERE v.verzoek_type_uuid = t.uuid), '{}')`

func scanVerzoekType(row pgx.Row) (*model.VerzoekType, error) {
	t := &model.VerzoekType{}
	var versions []int32
	err := row.Scan(&t.UUID, &t.Naam, &t.Toelichting, &t.Opvolging, &t.AangemaaktOp, &t.GewijzigdOp, &versions)
	if err != nil {
		return nil, err
	}
	t.Versions = make([]int, 0, len(versions))
	for _, v := range versions {
		t.Versions = append(t.Versions, int(v))
	}
	return t, nil
}

func (r *verzoekTypeRepo) Create(ctx context.Context, t *model.VerzoekType) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO verzoek_types (uuid, naam, toelichting, opvolging)
		VALUES ($1, $2, $3, $4)
		RETURNING aangemaakt_op, gewijzigd_op`,
		t.UUID, t.Naam, t.Toelichting, t.Opvolging,
	).Scan(&t.AangemaaktOp, &t.GewijzigdOp)
	if err != nil {
		return mapWriteError(err, "тип запроса")
	}
	if t.Versions == nil {
		t.Versions = []int{}
	}
	return nil
}

func (r *verzoekTypeRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.VerzoekType, error) {
	t, err := scanVerzoekType(r.db.QueryRow(ctx,
		`SELECT `+verzoekTypeColumns+` FROM verzoek_types t WHERE t.uuid = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения типа запроса: %w", err)
	}
	return t, nil
}

func (r *verzoekTypeRepo) Lock(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT uuid FROM verzoek_types WHERE uuid = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка блокировки типа запроса: %w", err)
	}
	return nil
}

func (r *verzoekTypeRepo) List(ctx context.Context, limit, offset int) ([]*model.VerzoekType, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+verzoekTypeColumns+` FROM verzoek_types t ORDER BY t.aangemaakt_op, t.uuid LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка типов запросов: %w", err)
	}
	defer rows.Close()

	var result []*model.VerzoekType
	for rows.Next() {
		t, err := scanVerzoekType(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования типа запроса: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *verzoekTypeRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM verzoek_types`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта типов запросов: %w", err)
	}
	return count, nil
}

func (r *verzoekTypeRepo) Update(ctx context.Context, t *model.VerzoekType) error {
	err := r.db.QueryRow(ctx, `
		UPDATE verzoek_types SET naam = $2, toelichting = $3, opvolging = $4, gewijzigd_op = now()
		WHERE uuid = $1
		RETURNING gewijzigd_op`,
		t.UUID, t.Naam, t.Toelichting, t.Opvolging,
	).Scan(&t.GewijzigdOp)
	return mapWriteError(err, "тип запроса")
}

func (r *verzoekTypeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM verzoek_types WHERE uuid = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProtected
		}
		return fmt.Errorf("ошибка удаления типа запроса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/lifecycle"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
)

// VerzoekTypeVersionRepository — версии схем типов запросов и их типы вложений.
type VerzoekTypeVersionRepository interface {
	// NextVersion возвращает max(version)+1 для типа; вызывать под Lock родителя.
	NextVersion(ctx context.Context, typeID uuid.UUID) (int, error)
	// Create вставляет версию и её типы вложений.
	Create(ctx context.Context, v *model.VerzoekTypeVersion) error
	Get(ctx context.Context, typeID uuid.UUID, version int) (*model.VerzoekTypeVersion, error)
	List(ctx context.Context, typeID uuid.UUID) ([]*model.VerzoekTypeVersion, error)
	// Update перезаписывает поля версии и заменяет её типы вложений.
	Update(ctx context.Context, v *model.VerzoekTypeVersion) error
	Delete(ctx context.Context, typeID uuid.UUID, version int) error
	// ExpirePublished закрывает срок действия опубликованных версий типа,
	// кроме except, у которых einde_geldigheid пуст или позже today.
	ExpirePublished(ctx context.Context, typeID uuid.UUID, except int, today time.Time) (int64, error)
}

type versionRepo struct {
	db DBTX
}

// NewVerzoekTypeVersionRepository создаёт репозиторий версий.
func NewVerzoekTypeVersionRepository(db DBTX) VerzoekTypeVersionRepository {
	return &versionRepo{db: db}
}

const versionColumns = `verzoek_type_uuid, version, aanvraag_gegevens_schema, status,
	aangemaakt_op, gewijzigd_op, gepubliceerd_op, begin_geldigheid, einde_geldigheid`

func scanVersion(row pgx.Row) (*model.VerzoekTypeVersion, error) {
	v := &model.VerzoekTypeVersion{}
	var schema []byte
	err := row.Scan(
		&v.VerzoekTypeID, &v.Version, &schema, &v.Status,
		&v.AangemaaktOp, &v.GewijzigdOp, &v.GepubliceerdOp, &v.BeginGeldigheid, &v.EindeGeldigheid,
	)
	if err != nil {
		return nil, err
	}
	v.AanvraagGegevensSchema = json.RawMessage(schema)
	return v, nil
}

func (r *versionRepo) NextVersion(ctx context.Context, typeID uuid.UUID) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM verzoek_type_versions WHERE verzoek_type_uuid = $1`,
		typeID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("ошибка вычисления номера версии: %w", err)
	}
	return next, nil
}

// schemaArg — JSONB-аргумент схемы; пустая схема хранится как {}.
func schemaArg(s json.RawMessage) string {
	if len(s) == 0 {
		return "{}"
	}
	return string(s)
}

func (r *versionRepo) Create(ctx context.Context, v *model.VerzoekTypeVersion) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO verzoek_type_versions (verzoek_type_uuid, version, aanvraag_gegevens_schema, status,
			gepubliceerd_op, begin_geldigheid, einde_geldigheid)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7)
		RETURNING aangemaakt_op, gewijzigd_op`,
		v.VerzoekTypeID, v.Version, schemaArg(v.AanvraagGegevensSchema), v.Status,
		v.GepubliceerdOp, v.BeginGeldigheid, v.EindeGeldigheid,
	).Scan(&v.AangemaaktOp, &v.GewijzigdOp)
	if err != nil {
		return mapWriteError(err, "версия типа запроса")
	}
	return r.insertBijlageTypen(ctx, v)
}

func (r *versionRepo) insertBijlageTypen(ctx context.Context, v *model.VerzoekTypeVersion) error {
	for _, bt := range v.BijlageTypen {
		_, err := r.db.Exec(ctx, `
			INSERT INTO verzoek_type_version_bijlage_types (verzoek_type_uuid, version, informatie_objecttype, omschrijving)
			VALUES ($1, $2, $3, $4)`,
			v.VerzoekTypeID, v.Version, bt.InformatieObjecttype, bt.Omschrijving,
		)
		if err != nil {
			return mapWriteError(err, "тип вложения")
		}
	}
	return nil
}

func (r *versionRepo) Get(ctx context.Context, typeID uuid.UUID, version int) (*model.VerzoekTypeVersion, error) {
	v, err := scanVersion(r.db.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM verzoek_type_versions WHERE verzoek_type_uuid = $1 AND version = $2`,
		typeID, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения версии: %w", err)
	}
	if err := r.loadBijlageTypen(ctx, typeID, []*model.VerzoekTypeVersion{v}); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *versionRepo) List(ctx context.Context, typeID uuid.UUID) ([]*model.VerzoekTypeVersion, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+versionColumns+` FROM verzoek_type_versions WHERE verzoek_type_uuid = $1 ORDER BY version`,
		typeID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка версий: %w", err)
	}
	defer rows.Close()

	result := []*model.VerzoekTypeVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования версии: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadBijlageTypen(ctx, typeID, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *versionRepo) Update(ctx context.Context, v *model.VerzoekTypeVersion) error {
	err := r.db.QueryRow(ctx, `
		UPDATE verzoek_type_versions SET
			aanvraag_gegevens_schema = $3::jsonb, status = $4, gepubliceerd_op = $5,
			begin_geldigheid = $6, einde_geldigheid = $7, gewijzigd_op = now()
		WHERE verzoek_type_uuid = $1 AND version = $2
		RETURNING gewijzigd_op`,
		v.VerzoekTypeID, v.Version, schemaArg(v.AanvraagGegevensSchema), v.Status,
		v.GepubliceerdOp, v.BeginGeldigheid, v.EindeGeldigheid,
	).Scan(&v.GewijzigdOp)
	if err != nil {
		return mapWriteError(err, "версия типа запроса")
	}

	_, err = r.db.Exec(ctx,
		`DELETE FROM verzoek_type_version_bijlage_types WHERE verzoek_type_uuid = $1 AND version = $2`,
		v.VerzoekTypeID, v.Version)
	if err != nil {
		return fmt.Errorf("ошибка удаления типов вложений: %w", err)
	}
	return r.insertBijlageTypen(ctx, v)
}

func (r *versionRepo) Delete(ctx context.Context, typeID uuid.UUID, version int) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM verzoek_type_versions WHERE verzoek_type_uuid = $1 AND version = $2`,
		typeID, version)
	if err != nil {
		return fmt.Errorf("ошибка удаления версии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *versionRepo) ExpirePublished(ctx context.Context, typeID uuid.UUID, except int, today time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE verzoek_type_versions
		SET einde_geldigheid = $3, gewijzigd_op = now()
		WHERE verzoek_type_uuid = $1
		  AND version <> $2
		  AND status = $4
		  AND (einde_geldigheid IS NULL OR einde_geldigheid > $3)`,
		typeID, except, today, lifecycle.Published)
	if err != nil {
		return 0, fmt.Errorf("ошибка закрытия опубликованных версий: %w", err)
	}
	return tag.RowsAffected(), nil
}

// bijlageTypeRow — строка verzoek_type_version_bijlage_types для scany.
type bijlageTypeRow struct {
	Version              int    `db:"version"`
	InformatieObjecttype string `db:"informatie_objecttype"`
	Omschrijving         string `db:"omschrijving"`
}

func (r *versionRepo) loadBijlageTypen(ctx context.Context, typeID uuid.UUID, versions []*model.VerzoekTypeVersion) error {
	if len(versions) == 0 {
		return nil
	}
	byVersion := make(map[int]*model.VerzoekTypeVersion, len(versions))
	numbers := make([]int, 0, len(versions))
	for _, v := range versions {
		v.BijlageTypen = []model.BijlageType{}
		byVersion[v.Version] = v
		numbers = append(numbers, v.Version)
	}

	var rows []bijlageTypeRow
	err := pgxscan.Select(ctx, r.db, &rows, `
		SELECT version, informatie_objecttype, omschrijving
		FROM verzoek_type_version_bijlage_types
		WHERE verzoek_type_uuid = $1 AND version = ANY($2)
		ORDER BY id`, typeID, numbers)
	if err != nil {
		return fmt.Errorf("ошибка получения типов вложений: %w", err)
	}
	for _, row := range rows {
		if v, ok := byVersion[row.Version]; ok {
			v.BijlageTypen = append(v.BijlageTypen, model.BijlageType{
				InformatieObjecttype: row.InformatieObjecttype,
				Omschrijving:         row.Omschrijving,
			})
		}
	}
	return nil
}

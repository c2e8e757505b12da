package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
)

// APITokenRepository — интерфейс хранения статических ключей доступа.
type APITokenRepository interface {
	// Create сохраняет новый ключ (хэш, не открытое значение).
	Create(ctx context.Context, t *model.APIToken) error
	// GetByPrefix возвращает ключ по публичному префиксу.
	GetByPrefix(ctx context.Context, prefix string) (*model.APIToken, error)
	// List возвращает ключи; active=nil — все.
	List(ctx context.Context, active *bool) ([]*model.APIToken, error)
	// Deactivate отзывает ключ по имени или префиксу.
	Deactivate(ctx context.Context, nameOrPrefix string) error
	// TouchLastUsed обновляет время последнего использования.
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

type apiTokenRepo struct {
	db DBTX
}

// NewAPITokenRepository создаёт репозиторий ключей доступа.
func NewAPITokenRepository(db DBTX) APITokenRepository {
	return &apiTokenRepo{db: db}
}

func scanAPIToken(row pgx.Row) (*model.APIToken, error) {
	t := &model.APIToken{}
	err := row.Scan(&t.ID, &t.Naam, &t.Prefix, &t.Hash, &t.Actief, &t.AangemaaktOp, &t.LaatstGebruiktOp)
	return t, err
}

const apiTokenColumns = `id, naam, prefix, hash, actief, aangemaakt_op, laatst_gebruikt_op`

func (r *apiTokenRepo) Create(ctx context.Context, t *model.APIToken) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO api_tokens (id, naam, prefix, hash, actief)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING aangemaakt_op`,
		t.ID, t.Naam, t.Prefix, t.Hash, t.Actief,
	).Scan(&t.AangemaaktOp)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ключ с таким именем уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания ключа: %w", err)
	}
	return nil
}

func (r *apiTokenRepo) GetByPrefix(ctx context.Context, prefix string) (*model.APIToken, error) {
	t, err := scanAPIToken(r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM api_tokens WHERE prefix = $1`, apiTokenColumns), prefix))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ключа: %w", err)
	}
	return t, nil
}

func (r *apiTokenRepo) List(ctx context.Context, active *bool) ([]*model.APIToken, error) {
	var conditions []string
	var args []any
	if active != nil {
		conditions = append(conditions, "actief = $1")
		args = append(args, *active)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM api_tokens %s ORDER BY aangemaakt_op`, apiTokenColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ключей: %w", err)
	}
	defer rows.Close()

	var result []*model.APIToken
	for rows.Next() {
		t, err := scanAPIToken(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ключа: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *apiTokenRepo) Deactivate(ctx context.Context, nameOrPrefix string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE api_tokens SET actief = false WHERE naam = $1 OR prefix = $1`, nameOrPrefix)
	if err != nil {
		return fmt.Errorf("ошибка отзыва ключа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *apiTokenRepo) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE api_tokens SET laatst_gebruikt_op = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления времени использования ключа: %w", err)
	}
	return nil
}

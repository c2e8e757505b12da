// tokens.go — статические ключи доступа (Authorization: Token <key>).
// Ключ имеет вид <prefix>.<secret>; в БД хранится prefix и bcrypt-хэш
// полного ключа. Открытое значение возвращается только при создании.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
)

const (
	tokenPrefixBytes = 4  // 8 hex символов
	tokenSecretBytes = 16 // 32 hex символа
)

// TokenService — выпуск, проверка и отзыв статических ключей.
type TokenService struct {
	store  repository.Store
	cost   int
	logger *slog.Logger
}

// NewTokenService создаёт сервис ключей доступа.
func NewTokenService(store repository.Store, logger *slog.Logger) *TokenService {
	return &TokenService{
		store:  store,
		cost:   bcrypt.DefaultCost,
		logger: logger.With(slog.String("component", "token_service")),
	}
}

// TokenWithKey — ключ с открытым значением (возвращается только при создании).
type TokenWithKey struct {
	*model.APIToken
	Key string
}

// Create выпускает новый ключ с именем naam.
func (s *TokenService) Create(ctx context.Context, naam string) (*TokenWithKey, error) {
	naam = strings.TrimSpace(naam)
	if naam == "" {
		return nil, fmt.Errorf("%w: пустое имя ключа", ErrValidation)
	}

	prefix, err := randomHex(tokenPrefixBytes)
	if err != nil {
		return nil, err
	}
	secret, err := randomHex(tokenSecretBytes)
	if err != nil {
		return nil, err
	}
	key := prefix + "." + secret

	hash, err := bcrypt.GenerateFromPassword([]byte(key), s.cost)
	if err != nil {
		return nil, fmt.Errorf("хэширование ключа: %w", err)
	}

	t := &model.APIToken{
		ID:     uuid.New(),
		Naam:   naam,
		Prefix: prefix,
		Hash:   hash,
		Actief: true,
	}
	if err := s.store.Repos().Tokens.Create(ctx, t); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: ключ '%s' уже существует", ErrConflict, naam)
		}
		return nil, fmt.Errorf("сохранение ключа: %w", err)
	}

	s.logger.Info("Ключ доступа создан",
		slog.String("naam", naam),
		slog.String("prefix", prefix),
	)
	return &TokenWithKey{APIToken: t, Key: key}, nil
}

// Verify проверяет открытый ключ и отмечает время использования.
func (s *TokenService) Verify(ctx context.Context, key string) (*model.APIToken, error) {
	prefix, _, ok := strings.Cut(key, ".")
	if !ok || prefix == "" {
		return nil, ErrInvalidToken
	}

	repos := s.store.Repos()
	t, err := repos.Tokens.GetByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("поиск ключа: %w", err)
	}
	if !t.Actief {
		return nil, ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword(t.Hash, []byte(key)); err != nil {
		return nil, ErrInvalidToken
	}

	if err := repos.Tokens.TouchLastUsed(ctx, t.ID); err != nil {
		s.logger.Warn("Не удалось обновить время использования ключа",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
	}
	return t, nil
}

// List возвращает ключи; active=nil — все.
func (s *TokenService) List(ctx context.Context, active *bool) ([]*model.APIToken, error) {
	items, err := s.store.Repos().Tokens.List(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("получение списка ключей: %w", err)
	}
	return items, nil
}

// Revoke отзывает ключ по имени или префиксу.
func (s *TokenService) Revoke(ctx context.Context, nameOrPrefix string) error {
	if err := s.store.Repos().Tokens.Deactivate(ctx, nameOrPrefix); err != nil {
		return notFound(err, "отзыв ключа")
	}
	s.logger.Info("Ключ доступа отозван", slog.String("key", nameOrPrefix))
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("генерация ключа: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// auth.go — аутентификация запросов Open VTB.
// Поддерживаются две схемы заголовка Authorization:
//   - Bearer <jwt> — токен OIDC-провайдера: подпись через JWKS, scope openid,
//     (опционально) запрос userinfo к провайдеру;
//   - Token <key> — статический ключ доступа из БД.
//
// Отсутствие заголовка — 401 not_authenticated, любые ошибки проверки
// (включая недоступность провайдера) — 401 authentication_failed.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/maykinmedia/open-vtb-sub000/internal/api/errors"
	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/oidc"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyPrincipal — аутентифицированный субъект в контексте запроса.
const ContextKeyPrincipal contextKey = "principal"

// Схемы заголовка Authorization.
const (
	SchemeBearer = "Bearer"
	SchemeToken  = "Token"
)

// requiredScope — scope, без которого OIDC-токен не принимается.
const requiredScope = "openid"

// authAttempts — результаты аутентификации по схемам.
var authAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "openvtb_auth_attempts_total",
		Help: "Попытки аутентификации по схеме и результату.",
	},
	[]string{"scheme", "result"},
)

// ErrAuthenticationFailed — учётные данные отклонены.
// Текст обёрнутой ошибки попадает в detail ответа.
var ErrAuthenticationFailed = errors.New("аутентификация не пройдена")

// Principal — аутентифицированный субъект.
type Principal struct {
	// Scheme — схема, которой субъект аутентифицирован.
	Scheme string
	// Subject — sub токена или имя статического ключа.
	Subject string
	// Username — preferred_username из токена или userinfo.
	Username string
	// Email — email из токена или userinfo.
	Email string
	// Scopes — scopes токена (для статического ключа пусто).
	Scopes []string
}

// Authenticator — стратегия проверки учётных данных одной схемы.
type Authenticator interface {
	// Scheme возвращает имя схемы заголовка Authorization.
	Scheme() string
	// Authenticate проверяет учётные данные и возвращает субъекта.
	Authenticate(ctx context.Context, credential string) (*Principal, error)
}

// Auth возвращает middleware, выбирающий стратегию по схеме заголовка.
// Неизвестная схема равнозначна отсутствию учётных данных.
func Auth(logger *slog.Logger, authenticators ...Authenticator) func(http.Handler) http.Handler {
	byScheme := make(map[string]Authenticator, len(authenticators))
	for _, a := range authenticators {
		byScheme[strings.ToLower(a.Scheme())] = a
	}
	logger = logger.With(slog.String("component", "auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, credential, _ := strings.Cut(strings.TrimSpace(header), " ")
			a, ok := byScheme[strings.ToLower(scheme)]
			if header == "" || !ok {
				authAttempts.WithLabelValues("none", "missing").Inc()
				apierrors.NotAuthenticated(w)
				return
			}

			credential = strings.TrimSpace(credential)
			if credential == "" || strings.ContainsAny(credential, " \t") {
				authAttempts.WithLabelValues(a.Scheme(), "malformed").Inc()
				apierrors.AuthenticationFailed(w, "Ongeldige header. Geen credentials opgegeven.")
				return
			}

			principal, err := a.Authenticate(r.Context(), credential)
			if err != nil {
				authAttempts.WithLabelValues(a.Scheme(), "failed").Inc()
				logger.Debug("Аутентификация не пройдена",
					slog.String("scheme", a.Scheme()),
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.AuthenticationFailed(w, failureDetail(err))
				return
			}

			authAttempts.WithLabelValues(a.Scheme(), "ok").Inc()
			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// failureDetail формирует detail ответа: диагностика провайдера
// передаётся клиенту, остальное — общим текстом.
func failureDetail(err error) string {
	var perr *oidc.ProviderError
	switch {
	case errors.Is(err, oidc.ErrTransport), errors.Is(err, oidc.ErrMisconfigured):
		return err.Error()
	case errors.As(err, &perr):
		return perr.Error()
	}
	return ""
}

// PrincipalFromContext извлекает субъекта из контекста запроса.
// Возвращает nil, если запрос не аутентифицирован.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ContextKeyPrincipal).(*Principal)
	return p
}

// --- Bearer (OIDC) ---

// oidcClaims — claims access token провайдера.
type oidcClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Scope             string `json:"scope,omitempty"`
	Azp               string `json:"azp,omitempty"`
}

// OIDCAuth — проверка Bearer-токенов OIDC-провайдера.
// Если провайдер недоступен при старте, discovery и загрузка JWKS
// повторяются при очередном запросе.
type OIDCAuth struct {
	mu        sync.Mutex
	jwks      keyfunc.Keyfunc
	discovery bool

	client   *oidc.Client
	issuer   string
	clientID string
	leeway   time.Duration
	now      func() time.Time
	cache    *credentialCache
	logger   *slog.Logger
}

// NewOIDCAuth создаёт стратегию с JWKS провайдера и фоновым обновлением ключей.
// JWKS URL берётся из конфигурации или из discovery. Недоступность провайдера
// не мешает старту: ошибка возвращается каждому запросу с Bearer-токеном.
func NewOIDCAuth(ctx context.Context, cfg config.OIDCConfig, authCfg config.AuthConfig, client *oidc.Client, logger *slog.Logger) *OIDCAuth {
	a := NewOIDCAuthWithKeyfunc(nil, client, cfg.ClientID, authCfg, logger)
	a.discovery = cfg.Discovery
	if _, err := a.keys(ctx); err != nil {
		a.logger.Warn("OIDC-провайдер недоступен, повтор при первом запросе",
			slog.String("error", err.Error()),
		)
	}
	return a
}

// NewOIDCAuthWithKeyfunc создаёт стратегию с предоставленной keyfunc.
// client может быть nil — тогда userinfo не запрашивается.
func NewOIDCAuthWithKeyfunc(kf keyfunc.Keyfunc, client *oidc.Client, clientID string, authCfg config.AuthConfig, logger *slog.Logger) *OIDCAuth {
	issuer := ""
	if client != nil {
		issuer = client.Issuer()
	}
	return &OIDCAuth{
		jwks:     kf,
		client:   client,
		issuer:   issuer,
		clientID: clientID,
		leeway:   30 * time.Second,
		now:      time.Now,
		cache:    newCredentialCache(SchemeBearer, authCfg.CacheSize, authCfg.CacheTTL),
		logger:   logger.With(slog.String("component", "oidc_auth")),
	}
}

// Scheme реализует Authenticator.
func (a *OIDCAuth) Scheme() string { return SchemeBearer }

// keys возвращает keyfunc, при необходимости выполняя discovery
// и создавая JWKS storage. Ошибки оборачивают oidc.ErrMisconfigured.
func (a *OIDCAuth) keys(ctx context.Context) (keyfunc.Keyfunc, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.jwks != nil {
		return a.jwks, nil
	}
	if a.client == nil {
		return nil, fmt.Errorf("%w: не задан JWKS URL", oidc.ErrMisconfigured)
	}
	if a.client.JWKSURL() == "" && a.discovery {
		if _, err := a.client.Discover(ctx); err != nil {
			return nil, fmt.Errorf("%w: discovery: %w", oidc.ErrMisconfigured, err)
		}
	}
	jwksURL := a.client.JWKSURL()
	if jwksURL == "" {
		return nil, fmt.Errorf("%w: не задан JWKS URL", oidc.ErrMisconfigured)
	}

	// NoErrorReturnFirstHTTPReq — ключи догрузятся фоновым обновлением.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    a.client.HTTPClient(),
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           time.Hour,
		RefreshErrorHandler: func(_ context.Context, err error) {
			a.logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: создание JWKS storage: %w", oidc.ErrMisconfigured, err)
	}
	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("%w: создание keyfunc: %w", oidc.ErrMisconfigured, err)
	}
	a.jwks = k
	a.logger.Info("OIDC-аутентификация инициализирована",
		slog.String("issuer", a.issuer),
		slog.String("jwks_url", jwksURL),
	)
	return k, nil
}

// Authenticate проверяет подпись, срок, issuer, аудиторию и scope токена.
// Успешный результат кэшируется, но не дольше срока действия токена.
func (a *OIDCAuth) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if p, ok := a.cache.Get(token, a.now()); ok {
		return p, nil
	}

	jwks, err := a.keys(ctx)
	if err != nil {
		return nil, err
	}

	claims := &oidcClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "PS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, jwks.KeyfuncCtx(ctx), opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: невалидный или просроченный токен: %v", ErrAuthenticationFailed, err)
	}

	if a.clientID != "" && claims.Azp != a.clientID && !slices.Contains(claims.Audience, a.clientID) {
		return nil, fmt.Errorf("%w: токен выпущен для другого клиента", ErrAuthenticationFailed)
	}
	scopes := strings.Fields(claims.Scope)
	if !slices.Contains(scopes, requiredScope) {
		return nil, fmt.Errorf("%w: отсутствует scope %s", ErrAuthenticationFailed, requiredScope)
	}

	p := &Principal{
		Scheme:   SchemeBearer,
		Subject:  claims.Subject,
		Username: claims.PreferredUsername,
		Email:    claims.Email,
		Scopes:   scopes,
	}
	if p.Subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub в токене", ErrAuthenticationFailed)
	}

	if a.client != nil && a.client.UserinfoURL() != "" {
		info, err := a.client.Userinfo(ctx, token)
		if err != nil {
			return nil, err
		}
		if sub, _ := info["sub"].(string); sub != "" && sub != p.Subject {
			return nil, fmt.Errorf("%w: sub userinfo не совпадает с токеном", ErrAuthenticationFailed)
		}
		if v, ok := info["preferred_username"].(string); ok && v != "" {
			p.Username = v
		}
		if v, ok := info["email"].(string); ok && v != "" {
			p.Email = v
		}
	}

	// exp обязателен (WithExpirationRequired), запись живёт до exp+leeway.
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		a.cache.Set(token, p, exp.Add(a.leeway))
	}
	return p, nil
}

// unconfiguredBearer принимает схему Bearer, когда OIDC-провайдер
// не настроен, и отклоняет каждый токен с диагностикой.
type unconfiguredBearer struct {
	reason error
}

// NewUnconfiguredBearer создаёт стратегию Bearer без провайдера.
// reason дополняет диагностику (может быть nil).
func NewUnconfiguredBearer(reason error) Authenticator {
	return unconfiguredBearer{reason: reason}
}

// Scheme реализует Authenticator.
func (unconfiguredBearer) Scheme() string { return SchemeBearer }

// Authenticate всегда возвращает oidc.ErrMisconfigured.
func (u unconfiguredBearer) Authenticate(context.Context, string) (*Principal, error) {
	if u.reason != nil {
		return nil, fmt.Errorf("%w: %v", oidc.ErrMisconfigured, u.reason)
	}
	return nil, fmt.Errorf("%w: не задан issuer или JWKS URL", oidc.ErrMisconfigured)
}

// --- Token (статический ключ) ---

// TokenVerifier — проверка статического ключа. Реализуется service.TokenService.
type TokenVerifier interface {
	Verify(ctx context.Context, key string) (*model.APIToken, error)
}

// StaticTokenAuth — проверка статических ключей доступа.
type StaticTokenAuth struct {
	verifier TokenVerifier
	cache    *credentialCache
}

// NewStaticTokenAuth создаёт стратегию статических ключей.
func NewStaticTokenAuth(verifier TokenVerifier, authCfg config.AuthConfig) *StaticTokenAuth {
	return &StaticTokenAuth{
		verifier: verifier,
		cache:    newCredentialCache(SchemeToken, authCfg.CacheSize, authCfg.CacheTTL),
	}
}

// Scheme реализует Authenticator.
func (a *StaticTokenAuth) Scheme() string { return SchemeToken }

// Authenticate проверяет ключ через verifier.
func (a *StaticTokenAuth) Authenticate(ctx context.Context, key string) (*Principal, error) {
	if p, ok := a.cache.Get(key, time.Now()); ok {
		return p, nil
	}
	t, err := a.verifier.Verify(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	p := &Principal{Scheme: SchemeToken, Subject: t.Naam}
	a.cache.Set(key, p, time.Time{})
	return p, nil
}

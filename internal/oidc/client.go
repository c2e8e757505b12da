// Пакет oidc — клиент OpenID Connect провайдера: discovery,
// userinfo и проверка доступности. Все исходящие запросы ограничены
// таймаутом соединения и таймаутом ожидания ответа.
package oidc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/maykinmedia/open-vtb-sub000/internal/config"
)

// Ошибки клиента.
var (
	// ErrMisconfigured — провайдер не настроен или discovery не дал нужного endpoint.
	ErrMisconfigured = errors.New("OIDC-провайдер не настроен")
	// ErrTransport — сетевая ошибка или таймаут при обращении к провайдеру.
	ErrTransport = errors.New("ошибка обращения к OIDC-провайдеру")
)

// ProviderError — провайдер ответил кодом, отличным от 200.
type ProviderError struct {
	Endpoint        string
	Status          int
	WWWAuthenticate string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("OIDC %s вернул статус %d", e.Endpoint, e.Status)
	if e.WWWAuthenticate != "" {
		msg += " (www-authenticate: " + e.WWWAuthenticate + ")"
	}
	return msg
}

// Metadata — поля документа /.well-known/openid-configuration.
type Metadata struct {
	Issuer           string `json:"issuer"`
	JWKSURI          string `json:"jwks_uri"`
	UserinfoEndpoint string `json:"userinfo_endpoint"`
	TokenEndpoint    string `json:"token_endpoint"`
}

// Client — HTTP-клиент к OIDC-провайдеру.
type Client struct {
	issuer string

	// mu защищает endpoints, заполняемые discovery после старта.
	mu          sync.RWMutex
	jwksURL     string
	userinfoURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewHTTPClient создаёт HTTP-клиент с таймаутами соединения и ответа
// и (опционально) собственным CA.
func NewHTTPClient(connectTimeout, readTimeout time.Duration, caCertPath string) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConnsPerHost:   4,
	}

	if caCertPath != "" {
		caCert, err := os.ReadFile(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		pool.AppendCertsFromPEM(caCert)
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   connectTimeout + readTimeout,
	}, nil
}

// New создаёт клиент. Discovery не выполняется — см. Discover.
func New(cfg config.OIDCConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		issuer:      strings.TrimRight(cfg.Issuer, "/"),
		jwksURL:     cfg.JWKSURL,
		userinfoURL: cfg.UserinfoURL,
		httpClient:  httpClient,
		logger:      logger.With(slog.String("component", "oidc_client")),
	}
}

// Issuer возвращает ожидаемый issuer токенов.
func (c *Client) Issuer() string { return c.issuer }

// JWKSURL возвращает адрес набора ключей.
func (c *Client) JWKSURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwksURL
}

// UserinfoURL возвращает адрес userinfo endpoint ("" — не используется).
func (c *Client) UserinfoURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userinfoURL
}

// HTTPClient возвращает HTTP-клиент с настроенными таймаутами.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Discover загружает метаданные провайдера и заполняет незаданные endpoints.
func (c *Client) Discover(ctx context.Context) (*Metadata, error) {
	if c.issuer == "" {
		return nil, fmt.Errorf("%w: не задан issuer", ErrMisconfigured)
	}

	var meta Metadata
	endpoint := c.issuer + "/.well-known/openid-configuration"
	if err := c.getJSON(ctx, "discovery", endpoint, "", &meta); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.jwksURL == "" {
		c.jwksURL = meta.JWKSURI
	}
	if c.userinfoURL == "" {
		c.userinfoURL = meta.UserinfoEndpoint
	}
	jwksURL, userinfoURL := c.jwksURL, c.userinfoURL
	c.mu.Unlock()
	if jwksURL == "" {
		return nil, fmt.Errorf("%w: discovery не вернул jwks_uri", ErrMisconfigured)
	}

	c.logger.Info("OIDC discovery выполнен",
		slog.String("issuer", c.issuer),
		slog.String("jwks_uri", jwksURL),
		slog.String("userinfo_endpoint", userinfoURL),
	)
	return &meta, nil
}

// Userinfo выполняет запрос к userinfo endpoint с access token.
func (c *Client) Userinfo(ctx context.Context, accessToken string) (map[string]any, error) {
	endpoint := c.UserinfoURL()
	if endpoint == "" {
		return nil, fmt.Errorf("%w: не задан userinfo endpoint", ErrMisconfigured)
	}
	info := map[string]any{}
	if err := c.getJSON(ctx, "userinfo", endpoint, accessToken, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// getJSON выполняет GET и декодирует JSON-ответ в out.
func (c *Client) getJSON(ctx context.Context, name, endpoint, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMisconfigured, name, err)
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации OIDC
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &ProviderError{
			Endpoint:        name,
			Status:          resp.StatusCode,
			WWWAuthenticate: resp.Header.Get("WWW-Authenticate"),
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: невалидный JSON: %v", ErrTransport, name, err)
	}
	return nil
}

// ReadinessChecker — проверка доступности JWKS провайдера.
type ReadinessChecker struct {
	client *Client
}

// NewReadinessChecker создаёт проверку готовности провайдера.
func NewReadinessChecker(c *Client) *ReadinessChecker {
	return &ReadinessChecker{client: c}
}

// Name возвращает имя проверяемой зависимости.
func (r *ReadinessChecker) Name() string {
	return "oidc"
}

// CheckReady проверяет, что JWKS доступен и содержит ключи.
func (r *ReadinessChecker) CheckReady(ctx context.Context) (status, message string) {
	endpoint := r.client.JWKSURL()
	if endpoint == "" {
		return "fail", "JWKS URL не определён"
	}
	var jwks struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := r.client.getJSON(ctx, "jwks", endpoint, "", &jwks); err != nil {
		return "fail", err.Error()
	}
	if len(jwks.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}
	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwks.Keys))
}

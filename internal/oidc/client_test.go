package oidc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/maykinmedia/open-vtb-sub000/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, cfg config.OIDCConfig, readTimeout time.Duration) *Client {
	t.Helper()
	hc, err := NewHTTPClient(time.Second, readTimeout, "")
	if err != nil {
		t.Fatalf("NewHTTPClient() ошибка: %v", err)
	}
	return New(cfg, hc, testLogger())
}

func TestDiscover(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"issuer":"` + srv.URL + `","jwks_uri":"` + srv.URL + `/certs","userinfo_endpoint":"` + srv.URL + `/userinfo"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, config.OIDCConfig{Issuer: srv.URL + "/"}, time.Second)
	meta, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() ошибка: %v", err)
	}
	if meta.Issuer != srv.URL {
		t.Errorf("issuer = %q", meta.Issuer)
	}
	if c.JWKSURL() != srv.URL+"/certs" {
		t.Errorf("JWKSURL() = %q", c.JWKSURL())
	}
	if c.UserinfoURL() != srv.URL+"/userinfo" {
		t.Errorf("UserinfoURL() = %q", c.UserinfoURL())
	}
}

func TestDiscover_KeepsConfiguredEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jwks_uri":"http://other/certs"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, config.OIDCConfig{Issuer: srv.URL, JWKSURL: "http://configured/certs"}, time.Second)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() ошибка: %v", err)
	}
	if c.JWKSURL() != "http://configured/certs" {
		t.Errorf("Заданный JWKS URL не должен перезаписываться: %q", c.JWKSURL())
	}
}

func TestDiscover_NoIssuer(t *testing.T) {
	c := newTestClient(t, config.OIDCConfig{}, time.Second)
	if _, err := c.Discover(context.Background()); !errors.Is(err, ErrMisconfigured) {
		t.Errorf("Discover() = %v, ожидали ErrMisconfigured", err)
	}
}

func TestUserinfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"sub":"user-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, config.OIDCConfig{UserinfoURL: srv.URL}, time.Second)

	info, err := c.Userinfo(context.Background(), "good")
	if err != nil {
		t.Fatalf("Userinfo() ошибка: %v", err)
	}
	if info["sub"] != "user-1" {
		t.Errorf("sub = %v", info["sub"])
	}

	_, err = c.Userinfo(context.Background(), "bad")
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("Userinfo() = %v, ожидали ProviderError", err)
	}
	if perr.Status != http.StatusUnauthorized || perr.WWWAuthenticate == "" {
		t.Errorf("ProviderError = %+v", perr)
	}
}

func TestUserinfo_ReadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, config.OIDCConfig{UserinfoURL: srv.URL}, 50*time.Millisecond)
	if _, err := c.Userinfo(context.Background(), "x"); !errors.Is(err, ErrTransport) {
		t.Errorf("Userinfo() = %v, ожидали ErrTransport", err)
	}
}

func TestReadinessChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[{"kty":"RSA"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, config.OIDCConfig{JWKSURL: srv.URL}, time.Second)
	status, msg := NewReadinessChecker(c).CheckReady(context.Background())
	if status != "ok" {
		t.Errorf("CheckReady() = %q (%s), ожидали ok", status, msg)
	}
}

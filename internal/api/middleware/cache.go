// cache.go — LRU-кэш проверенных учётных данных с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable. Ключ — SHA-256 от
// предъявленного значения, открытый токен в памяти не хранится.
package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var cacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "openvtb_auth_cache_lookups_total",
		Help: "Обращения к кэшу проверенных учётных данных.",
	},
	[]string{"scheme", "result"},
)

// credentialCache — кэш принципалов по хэшу учётных данных.
// Каждый экземпляр процесса имеет собственный кэш.
type credentialCache struct {
	scheme string
	cache  *expirable.LRU[string, cacheEntry]
}

// cacheEntry — принципал и момент, после которого запись недействительна
// независимо от TTL кэша (нулевой — без ограничения).
type cacheEntry struct {
	principal *Principal
	expires   time.Time
}

// newCredentialCache создаёт кэш; size<=0 или ttl<=0 отключают кэширование.
func newCredentialCache(scheme string, size int, ttl time.Duration) *credentialCache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	return &credentialCache{
		scheme: scheme,
		cache:  expirable.NewLRU[string, cacheEntry](size, nil, ttl),
	}
}

func credentialKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// Get возвращает принципала при попадании. Запись с истёкшим сроком
// на момент now удаляется и считается промахом. Безопасен для nil.
func (c *credentialCache) Get(credential string, now time.Time) (*Principal, bool) {
	if c == nil {
		return nil, false
	}
	key := credentialKey(credential)
	e, ok := c.cache.Get(key)
	if ok && !e.expires.IsZero() && now.After(e.expires) {
		c.cache.Remove(key)
		ok = false
	}
	if ok {
		cacheLookups.WithLabelValues(c.scheme, "hit").Inc()
		return e.principal, true
	}
	cacheLookups.WithLabelValues(c.scheme, "miss").Inc()
	return nil, false
}

// Set сохраняет принципала до expires (нулевой — только TTL кэша).
func (c *credentialCache) Set(credential string, p *Principal, expires time.Time) {
	if c == nil {
		return
	}
	c.cache.Add(credentialKey(credential), cacheEntry{principal: p, expires: expires})
}

package auth

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrUnknownKey = errors.New("unknown signing key")

// KeySource resolves a key id to a public key.
type KeySource interface {
	Key(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// StaticKeys is a fixed kid -> key set loaded from configuration.
// Lookups are case-insensitive because kids usually arrive through env var names.
type StaticKeys map[string]crypto.PublicKey

// NewStaticKeys parses PEM encoded public keys or certificates keyed by kid.
func NewStaticKeys(pems map[string]string) (StaticKeys, error) {
	keys := make(StaticKeys, len(pems))
	for kid, p := range pems {
		key, err := ParsePublicKeyPEM([]byte(p))
		if err != nil {
			return nil, fmt.Errorf("parse key %q: %w", kid, err)
		}
		keys[strings.ToLower(kid)] = key
	}
	return keys, nil
}

// Key implements KeySource.
func (s StaticKeys) Key(_ context.Context, kid string) (crypto.PublicKey, error) {
	if k, ok := s[strings.ToLower(kid)]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
}

// ParsePublicKeyPEM accepts RSA, ECDSA or Ed25519 keys in PKIX form, or an
// X.509 certificate carrying an RSA or ECDSA key.
func ParsePublicKeyPEM(b []byte) (crypto.PublicKey, error) {
	if k, err := jwt.ParseRSAPublicKeyFromPEM(b); err == nil {
		return k, nil
	}
	if k, err := jwt.ParseECPublicKeyFromPEM(b); err == nil {
		return k, nil
	}
	if k, err := jwt.ParseEdPublicKeyFromPEM(b); err == nil {
		return k, nil
	}
	return nil, errors.New("unsupported public key format")
}

// minRefetch bounds how often an unknown kid can force a fetch.
const minRefetch = time.Minute

// CertURLKeys fetches a JSON object of kid -> PEM certificate from a URL,
// the format Firebase and Google publish their token signing certs in.
// Keys are cached until the response's max-age (or the configured TTL) passes.
type CertURLKeys struct {
	url    string
	ttl    time.Duration
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	keys      map[string]crypto.PublicKey
	expires   time.Time
	fetchedAt time.Time
}

// NewCertURLKeys creates a CertURLKeys. A nil client gets a traced client with a 5s timeout.
func NewCertURLKeys(url string, ttl time.Duration, client *http.Client) *CertURLKeys {
	if client == nil {
		client = &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CertURLKeys{url: url, ttl: ttl, client: client, now: time.Now}
}

// Key implements KeySource.
func (c *CertURLKeys) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stale := c.keys == nil || !now.Before(c.expires)
	_, known := c.keys[kid]
	if stale || (!known && now.Sub(c.fetchedAt) >= minRefetch) {
		if err := c.refresh(ctx, now); err != nil {
			return nil, err
		}
	}

	if k, ok := c.keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
}

func (c *CertURLKeys) refresh(ctx context.Context, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build certs request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch certs: unexpected status %d", resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&raw); err != nil {
		return fmt.Errorf("decode certs: %w", err)
	}

	keys := make(map[string]crypto.PublicKey, len(raw))
	for kid, p := range raw {
		key, err := ParsePublicKeyPEM([]byte(p))
		if err != nil {
			return fmt.Errorf("parse cert %q: %w", kid, err)
		}
		keys[kid] = key
	}

	ttl := c.ttl
	if maxAge, ok := parseMaxAge(resp.Header.Get("Cache-Control")); ok {
		ttl = maxAge
	}
	c.keys = keys
	c.fetchedAt = now
	c.expires = now.Add(ttl)
	return nil
}

func parseMaxAge(cacheControl string) (time.Duration, bool) {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

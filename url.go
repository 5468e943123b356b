package knox

import (
	"time"

	"github.com/staer/knox/internal/validation"
)

// URL returns the plain, unauthenticated URL for an object. Fetching it
// succeeds only when the object is publicly readable.
func (c *Client) URL(key string) (string, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return "", err
	}
	return c.builder.URL(key), nil
}

// SignedURL returns a pre-signed URL granting temporary access to an
// object until expires, without sharing credentials. Anyone holding the
// URL can fetch the object until the expiry passes, after which the
// service rejects it.
func (c *Client) SignedURL(key string, expires time.Time) (string, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return "", err
	}
	return c.builder.SignedURL(key, expires), nil
}

// SignedURLFor is a convenience wrapper over SignedURL taking a lifetime
// relative to now.
func (c *Client) SignedURLFor(key string, lifetime time.Duration) (string, error) {
	return c.SignedURL(key, time.Now().Add(lifetime))
}

// Package assets issues expiring signed URLs for product asset downloads.
// The asset host only needs the shared signing key to verify a URL; no
// state is kept per issued link.
package assets

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrExpired means the URL's validity window has passed.
	ErrExpired = errors.New("assets: signed url expired")
	// ErrBadSignature means the signature does not match the object and
	// expiry, i.e. the URL was tampered with or signed with another key.
	ErrBadSignature = errors.New("assets: invalid signature")
)

// Presigner mints and verifies signed download URLs.
type Presigner struct {
	key     []byte
	baseURL string
	ttl     time.Duration

	now func() time.Time
}

// NewPresigner builds a presigner. baseURL is the asset host prefix without
// a trailing slash; ttl is the validity window of issued URLs.
func NewPresigner(key []byte, baseURL string, ttl time.Duration) *Presigner {
	return &Presigner{
		key:     key,
		baseURL: baseURL,
		ttl:     ttl,
		now:     time.Now,
	}
}

// ObjectKey is the storage path of a product's digital asset.
func ObjectKey(productID string) string {
	return "assets/" + productID + "/item.zip"
}

// SignedURL returns a download URL for the product's asset, valid for the
// presigner's ttl.
func (p *Presigner) SignedURL(productID string) string {
	objectKey := ObjectKey(productID)
	expires := p.now().Add(p.ttl).Unix()
	sig := p.sign(objectKey, expires)
	return fmt.Sprintf("%s/%s?expires=%d&signature=%s", p.baseURL, objectKey, expires, sig)
}

// Verify checks a previously issued (objectKey, expires, signature) tuple.
func (p *Presigner) Verify(objectKey string, expires int64, signature string) error {
	if !hmac.Equal([]byte(p.sign(objectKey, expires)), []byte(signature)) {
		return ErrBadSignature
	}
	if p.now().Unix() > expires {
		return ErrExpired
	}
	return nil
}

func (p *Presigner) sign(objectKey string, expires int64) string {
	mac := hmac.New(sha256.New, p.key)
	mac.Write([]byte(objectKey))
	mac.Write([]byte("\n"))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

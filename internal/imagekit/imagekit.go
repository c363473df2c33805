// Package imagekit signs client-side upload requests for ImageKit.
package imagekit

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // ImageKit upload signatures are defined as HMAC-SHA1
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultExpiry is how long a signature stays valid. ImageKit rejects
// expiries more than one hour ahead.
const DefaultExpiry = 30 * time.Minute

// MaxExpiry is the upper bound ImageKit accepts.
const MaxExpiry = time.Hour

// ErrNotConfigured is returned when no private key is set.
var ErrNotConfigured = errors.New("imagekit private key not configured")

// AuthParams are the values the client sends alongside an upload.
type AuthParams struct {
	Token     string `json:"token"`
	Expire    int64  `json:"expire"`
	Signature string `json:"signature"`
}

// Signer produces upload authentication parameters.
type Signer struct {
	PrivateKey  string
	PublicKey   string
	URLEndpoint string

	now      func() time.Time
	newToken func() string
}

// NewSigner returns a Signer for the given account keys.
func NewSigner(privateKey, publicKey, urlEndpoint string) *Signer {
	return &Signer{
		PrivateKey:  privateKey,
		PublicKey:   publicKey,
		URLEndpoint: urlEndpoint,
		now:         time.Now,
		newToken:    uuid.NewString,
	}
}

// Sign returns fresh auth parameters valid for ttl, clamped to MaxExpiry.
// A non-positive ttl uses DefaultExpiry.
func (s *Signer) Sign(ttl time.Duration) (AuthParams, error) {
	if s.PrivateKey == "" {
		return AuthParams{}, ErrNotConfigured
	}
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	if ttl > MaxExpiry {
		ttl = MaxExpiry
	}
	token := s.newToken()
	expire := s.now().Add(ttl).Unix()
	return AuthParams{
		Token:     token,
		Expire:    expire,
		Signature: Signature(s.PrivateKey, token, expire),
	}, nil
}

// Signature computes hex(HMAC-SHA1(privateKey, token+expire)).
func Signature(privateKey, token string, expire int64) string {
	mac := hmac.New(sha1.New, []byte(privateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

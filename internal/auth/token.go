package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/bito-analyst/internal/application"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// DefaultTTL is how long a login token stays valid.
const DefaultTTL = 6 * time.Hour

// payload fields are declared in sorted order so the encoding is canonical.
type payload struct {
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
}

// Signer issues and verifies stateless HMAC-SHA256 tokens of the form
// base64url(payload + "." + hex(hmac(payload))).
type Signer struct {
	secret []byte
	ttl    time.Duration
	clock  application.Clock
}

func NewSigner(secret string, ttl time.Duration, clock application.Clock) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Signer{secret: []byte(secret), ttl: ttl, clock: clock}
}

func (s *Signer) Generate(email string) (string, error) {
	body, err := encodePayload(payload{Email: email, Exp: s.clock.Now().Add(s.ttl).Unix()})
	if err != nil {
		return "", err
	}
	token := string(body) + "." + s.sign(body)
	return base64.URLEncoding.EncodeToString([]byte(token)), nil
}

// Verify returns the email inside a valid, unexpired token.
func (s *Signer) Verify(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return "", ErrInvalidToken
	}
	i := bytes.LastIndexByte(raw, '.')
	if i < 0 {
		return "", ErrInvalidToken
	}
	body, sig := raw[:i], raw[i+1:]
	if !hmac.Equal(sig, []byte(s.sign(body))) {
		return "", ErrInvalidToken
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil || p.Email == "" {
		return "", ErrInvalidToken
	}
	if p.Exp < s.clock.Now().Unix() {
		return "", ErrExpiredToken
	}
	return p.Email, nil
}

func (s *Signer) sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// encodePayload writes compact JSON without HTML escaping.
func encodePayload(p payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, eris.Wrap(err, "auth: encode payload")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/bito-analyst/internal/application"
)

var now = time.Unix(1_700_000_000, 0)

func TestTokenRoundTrip(t *testing.T) {
	s := NewSigner("secret", time.Hour, application.NewManualClock(now))
	tok, err := s.Generate("admin@bito.ai")
	require.NoError(t, err)

	email, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin@bito.ai", email)
}

func TestTokenWireFormat(t *testing.T) {
	s := NewSigner("secret", 6*time.Hour, application.NewManualClock(now))
	tok, err := s.Generate("a<b>@x.io")
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(tok)
	require.NoError(t, err)

	payload := `{"email":"a<b>@x.io","exp":1700021600}`
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(payload))
	assert.Equal(t, payload+"."+hex.EncodeToString(mac.Sum(nil)), string(raw))
}

func TestTokenExpiry(t *testing.T) {
	clock := application.NewManualClock(now)
	s := NewSigner("secret", time.Hour, clock)
	tok, err := s.Generate("a@b.c")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = s.Verify(tok)
	require.NoError(t, err, "valid up to and including exp")

	clock.Advance(time.Second)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenTampering(t *testing.T) {
	s := NewSigner("secret", time.Hour, application.NewManualClock(now))
	tok, err := s.Generate("a@b.c")
	require.NoError(t, err)

	other := NewSigner("another-secret", time.Hour, application.NewManualClock(now))
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	raw, _ := base64.URLEncoding.DecodeString(tok)
	forged := strings.Replace(string(raw), "a@b.c", "root@b.c", 1)
	_, err = s.Verify(base64.URLEncoding.EncodeToString([]byte(forged)))
	assert.ErrorIs(t, err, ErrInvalidToken)

	for _, bad := range []string{"", "not-base64!!", base64.URLEncoding.EncodeToString([]byte("no-dot"))} {
		_, err = s.Verify(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestTokenAcceptsUnpaddedEncoding(t *testing.T) {
	s := NewSigner("secret", time.Hour, application.NewManualClock(now))
	tok, err := s.Generate("a@b.c")
	require.NoError(t, err)
	_, err = s.Verify(strings.TrimRight(tok, "="))
	assert.NoError(t, err)
}

func TestCredentialsCheck(t *testing.T) {
	c := Credentials{Email: "admin@bito.ai", Password: "pw"}
	assert.True(t, c.Check("admin@bito.ai", "pw"))
	assert.False(t, c.Check("admin@bito.ai", "PW"))
	assert.False(t, c.Check("other@bito.ai", "pw"))
	assert.False(t, Credentials{Email: "admin@bito.ai"}.Check("admin@bito.ai", ""))
}

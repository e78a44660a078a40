package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"voice_gateway/server/common/apperr"
)

// DefaultTokenTTL matches the validity window LiveKit's server SDKs apply when
// none is given.
const DefaultTokenTTL = 6 * time.Hour

// VideoGrant is the LiveKit permission block. Only room join is ever granted.
type VideoGrant struct {
	Room     string `json:"room,omitempty"`
	RoomJoin bool   `json:"roomJoin,omitempty"`
}

type Claims struct {
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	apiKey string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(apiKey, apiSecret string, ttlMinutes int) *TokenIssuer {
	ttl := DefaultTokenTTL
	if ttlMinutes > 0 {
		ttl = time.Duration(ttlMinutes) * time.Minute
	}
	return &TokenIssuer{
		apiKey: strings.TrimSpace(apiKey),
		secret: []byte(strings.TrimSpace(apiSecret)),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Configured reports whether both signing credentials are present.
func (s *TokenIssuer) Configured() bool {
	return s.apiKey != "" && len(s.secret) > 0
}

func (s *TokenIssuer) Issue(room, identity, name string) (string, error) {
	if !s.Configured() {
		missing := make([]string, 0, 2)
		if s.apiKey == "" {
			missing = append(missing, "LIVEKIT_API_KEY")
		}
		if len(s.secret) == 0 {
			missing = append(missing, "LIVEKIT_API_SECRET")
		}
		return "", apperr.NewConfigError("LiveKit", missing...)
	}

	now := s.now()
	claims := Claims{
		Name:  name,
		Video: &VideoGrant{Room: room, RoomJoin: true},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.apiKey,
			Subject:   identity,
			ID:        identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign livekit token: %w", err)
	}
	return signed, nil
}

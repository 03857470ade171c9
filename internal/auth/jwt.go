// Package auth validates session tokens issued by the identity provider.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the only "typ" claim the API accepts.
const TokenTypeAccess = "access"

// AccessTokenExpiry is the lifetime of tokens minted by GenerateAccessToken.
const AccessTokenExpiry = time.Hour

// DefaultLeeway absorbs clock skew between the identity provider and the API.
const DefaultLeeway = 30 * time.Second

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrEmptyUserID  = errors.New("userID cannot be empty")
)

// Claims is the session payload. Subject is the profile ID. Roles are not
// carried in the token; access decisions read them from the profiles table.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Type  string `json:"typ"`
}

// JWTService signs and verifies HS256 session tokens. It holds an ordered
// key ring: the first key signs, every key verifies, so a secret can be
// rotated without logging anyone out.
type JWTService struct {
	keys   [][]byte
	leeway time.Duration
	now    func() time.Time
}

// NewJWTService returns a service with a single signing secret.
func NewJWTService(secret string) *JWTService {
	return NewJWTServiceWithRotation(secret, "")
}

// NewJWTServiceWithRotation signs with current and still accepts tokens
// signed with previous. An empty previous means no rotation is under way.
func NewJWTServiceWithRotation(current, previous string) *JWTService {
	keys := [][]byte{[]byte(current)}
	if previous != "" {
		keys = append(keys, []byte(previous))
	}
	return &JWTService{keys: keys, leeway: DefaultLeeway, now: time.Now}
}

// WithLeeway overrides DefaultLeeway.
func (s *JWTService) WithLeeway(leeway time.Duration) *JWTService {
	s.leeway = leeway
	return s
}

// GenerateAccessToken mints a token for userID. Production tokens come from
// the identity provider; this exists for local tooling and tests.
func (s *JWTService) GenerateAccessToken(userID, email string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	issued := s.now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(AccessTokenExpiry)),
		},
		Email: email,
		Type:  TokenTypeAccess,
	}).SignedString(s.keys[0])
}

// ValidateToken returns the claims of a well-formed, unexpired access token
// signed with any key in the ring. Failures collapse to ErrExpiredToken or
// ErrInvalidToken so callers never leak parser details.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)

	var firstErr error
	for _, key := range s.keys {
		claims := &Claims{}
		_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil })
		if err == nil {
			if claims.Type != TokenTypeAccess || claims.Subject == "" {
				return nil, ErrInvalidToken
			}
			return claims, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	if errors.Is(firstErr, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const organizerSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

// sign builds a token outside the service so tests can break one property at a time.
func sign(t *testing.T, method jwt.SigningMethod, secret string, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestGenerateAccessToken_RequiresUser(t *testing.T) {
	if _, err := NewJWTService(organizerSecret).GenerateAccessToken("", "x@example.com"); !errors.Is(err, ErrEmptyUserID) {
		t.Fatalf("error = %v, want %v", err, ErrEmptyUserID)
	}
}

func TestValidateToken_AcceptsMintedToken(t *testing.T) {
	svc := NewJWTService(organizerSecret)
	token, err := svc.GenerateAccessToken("profile-42", "organizer@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "profile-42" || claims.Email != "organizer@example.com" || claims.Type != TokenTypeAccess {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	hourAhead := jwt.NewNumericDate(time.Now().Add(time.Hour))
	valid := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "p1", ExpiresAt: hourAhead}, Type: TokenTypeAccess}

	minted, err := NewJWTService(organizerSecret).GenerateAccessToken("p1", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	parts := strings.Split(minted, ".")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"bad signature", parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2])), ErrInvalidToken},
		{"other secret", sign(t, jwt.SigningMethodHS256, "some-other-secret", valid), ErrInvalidToken},
		{"hs512", sign(t, jwt.SigningMethodHS512, organizerSecret, valid), ErrInvalidToken},
		{"refresh type", sign(t, jwt.SigningMethodHS256, organizerSecret, Claims{RegisteredClaims: valid.RegisteredClaims, Type: "refresh"}), ErrInvalidToken},
		{"no subject", sign(t, jwt.SigningMethodHS256, organizerSecret, Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: hourAhead}, Type: TokenTypeAccess}), ErrInvalidToken},
		{"no expiry", sign(t, jwt.SigningMethodHS256, organizerSecret, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "p1"}, Type: TokenTypeAccess}), ErrInvalidToken},
		{"expired", sign(t, jwt.SigningMethodHS256, organizerSecret, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "p1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
			Type:             TokenTypeAccess,
		}), ErrExpiredToken},
	}
	svc := NewJWTService(organizerSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tt.token); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateToken_LeewayAbsorbsSkew(t *testing.T) {
	svc := NewJWTService(organizerSecret)
	token := sign(t, jwt.SigningMethodHS256, organizerSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "p1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Second))},
		Type:             TokenTypeAccess,
	})
	if _, err := svc.ValidateToken(token); err != nil {
		t.Errorf("token 10s past expiry rejected within default leeway: %v", err)
	}
	if _, err := svc.WithLeeway(0).ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("without leeway: error = %v, want %v", err, ErrExpiredToken)
	}
}

func TestValidateToken_SecretRotation(t *testing.T) {
	const oldSecret, newSecret = "old-afisha-signing-secret", "new-afisha-signing-secret"

	before, err := NewJWTService(oldSecret).GenerateAccessToken("p1", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	rotating := NewJWTServiceWithRotation(newSecret, oldSecret)
	if _, err := rotating.ValidateToken(before); err != nil {
		t.Errorf("token from the previous secret rejected during rotation: %v", err)
	}

	during, err := rotating.GenerateAccessToken("p1", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := NewJWTService(oldSecret).ValidateToken(during); err == nil {
		t.Error("rotation must sign with the new secret")
	}
	if _, err := NewJWTService(newSecret).ValidateToken(before); err == nil {
		t.Error("old tokens must fail once the previous secret is dropped")
	}
}

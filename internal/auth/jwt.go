package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const RoleOwner = "owner"

// Claims are issued by the identity provider for a signed-in owner.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 owner tokens and yields the opaque owner id they carry.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// GenerateOwnerToken signs a token for ownerID. The identity provider normally does this;
// the seed tool and tests use it to mint tokens locally.
func (v *TokenVerifier) GenerateOwnerToken(ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: ownerID,
		Role:   RoleOwner,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// OwnerID validates tokenString and returns the owner it was issued to.
func (v *TokenVerifier) OwnerID(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.Wrap(err, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	if claims.Role != RoleOwner {
		return "", errors.Errorf("token role %q cannot read telemetry", claims.Role)
	}

	ownerID := claims.UserID
	if ownerID == "" {
		ownerID = claims.Subject
	}
	if ownerID == "" {
		return "", errors.New("token carries no owner id")
	}

	return ownerID, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

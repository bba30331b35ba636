package utils

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// Claims carried by every API token.
type Claims struct {
	Username string
	Role     string
}

// GenerateToken signs an HS256 token for username/role that expires after ttl.
func GenerateToken(secret []byte, username, role string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"role":     role,
		"exp":      time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return signed, nil
}

// ParseToken verifies signature and expiry and returns the claims.
func ParseToken(secret []byte, tokenString string) (Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if username == "" || role == "" {
		return Claims{}, errors.New("invalid token payload")
	}
	return Claims{Username: username, Role: role}, nil
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	var verr *jwt.ValidationError
	if errors.As(err, &verr) {
		return verr.Errors&jwt.ValidationErrorExpired != 0
	}
	return false
}

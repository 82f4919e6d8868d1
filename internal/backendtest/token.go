package backendtest

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokenClaims struct {
	DeviceID string `json:"sub"`
	jwt.RegisteredClaims
}

func mintToken(deviceID, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("missing secret")
	}
	claims := tokenClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "backendtest",
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func verifyToken(tokenString, secret string) (string, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.DeviceID == "" {
		return "", errors.New("invalid token")
	}
	return claims.DeviceID, nil
}

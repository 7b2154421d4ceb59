package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/orderdesk/internal/domain"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// IssueToken signs an HS256 token for subject valid for ttl.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "orderdesk",
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateToken verifies an HS256 token and returns its claims.
func ValidateToken(tokenString string, secret []byte) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWTAuth rejects requests without a valid bearer token. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
func JWTAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := c.QueryParam("token")
			if header := c.Request().Header.Get("Authorization"); header != "" {
				if !strings.HasPrefix(header, "Bearer ") {
					return c.JSON(http.StatusUnauthorized, domain.ErrorResponse{Error: ErrMissingToken.Error()})
				}
				tokenString = strings.TrimPrefix(header, "Bearer ")
			}
			if tokenString == "" {
				return c.JSON(http.StatusUnauthorized, domain.ErrorResponse{Error: ErrMissingToken.Error()})
			}

			claims, err := ValidateToken(tokenString, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, domain.ErrorResponse{Error: err.Error()})
			}
			c.Set("subject", claims.Subject)
			return next(c)
		}
	}
}

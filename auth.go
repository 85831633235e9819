package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"
)

const operatorSubject = "operator"

var errInvalidCredentials = eris.New("invalid credentials")

// checkOperatorPassword compares password with the configured bcrypt hash.
func checkOperatorPassword(hash, password string) error {
	if hash == "" {
		return errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errInvalidCredentials
	}
	return nil
}

// hashPassword returns the bcrypt hash stored as auth.operator_password_hash.
func hashPassword(password string) (string, error) {
	if len(password) < 6 {
		return "", eris.New("password too short (min 6)")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", eris.Wrap(err, "hash password")
	}
	return string(h), nil
}

func issueToken(secret []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": operatorSubject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	s, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, eris.Wrap(err, "sign token")
	}
	return s, exp, nil
}

// jwtAuthMiddleware requires a valid bearer token. With an empty secret auth
// is disabled and every request passes.
func jwtAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}
		authHeader := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return secret, nil
		}, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sub, _ := token.Claims.GetSubject()
		c.Set("subject", sub)
		c.Next()
	}
}

package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/qadash/qadash/board"
)

const accessTokenExpiry = 30 * time.Minute

var errNotAuthenticated = errors.New("Not authenticated")

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(password string, passwordHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}

func (self *Server) createAccessToken(username string) (string, error) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub": username,
		"exp": time.Now().Add(accessTokenExpiry).Unix(),
		"jti": board.NewId().String(),
	})
	return token.SignedString(self.jwtSecret)
}

// optionalUser resolves the bearer credential when present.
// no credential is (nil, nil). a bad credential is an error.
func (self *Server) optionalUser(r *http.Request) (*user, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil, nil
	}
	authJwt, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return nil, errNotAuthenticated
	}

	token, err := gojwt.Parse(authJwt, func(token *gojwt.Token) (any, error) {
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, errNotAuthenticated
		}
		return self.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errNotAuthenticated
	}

	claims, ok := token.Claims.(gojwt.MapClaims)
	if !ok {
		return nil, errNotAuthenticated
	}
	username, ok := claims["sub"].(string)
	if !ok || username == "" {
		return nil, errNotAuthenticated
	}

	u, err := getUserByUsername(self.db, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errNotAuthenticated
	}
	return u, nil
}

func (self *Server) requireUser(r *http.Request) (*user, error) {
	u, err := self.optionalUser(r)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errNotAuthenticated
	}
	return u, nil
}

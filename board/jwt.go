package board

import (
	gojwt "github.com/golang-jwt/jwt/v5"
)

type BearerIdentity struct {
	Username string
}

// ParseBearerUnverified reads the identity claims out of an api token
// without verifying the signature. Verification is the server's job; the
// client only needs the display identity.
func ParseBearerUnverified(authJwt string) (*BearerIdentity, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(authJwt, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := token.Claims.(gojwt.MapClaims)

	identity := &BearerIdentity{}

	if sub, ok := claims["sub"]; ok {
		if username, ok := sub.(string); ok {
			identity.Username = username
		}
	}

	return identity, nil
}

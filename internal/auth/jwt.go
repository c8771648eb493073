package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"volunteerhub/internal/model"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	AccessExp    time.Time `json:"accessExp"`
	RefreshExp   time.Time `json:"refreshExp"`
}

// Claims represents JWT payload. The user id travels as the subject.
type Claims struct {
	Name string     `json:"name"`
	Role model.Role `json:"role"`
	Type string     `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c Claims) UserID() string { return c.Subject }

// Issuer signs tokens for users.
type Issuer struct {
	Name       string
	Key        string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issue issues signed access and refresh tokens for u.
func (i Issuer) Issue(u model.User) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(i.AccessTTL)
	refreshExp := now.Add(i.RefreshTTL)

	accessToken, err := i.sign(u, typeAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := i.sign(u, typeRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (i Issuer) sign(u model.User, typ string, now, exp time.Time) (string, error) {
	claims := Claims{
		Name: u.Name,
		Role: u.Role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.Name,
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.Key))
}

// ParseAccess validates an access token.
func (i Issuer) ParseAccess(tokenStr string) (Claims, error) {
	return i.parseType(tokenStr, typeAccess)
}

// ParseRefresh validates a refresh token.
func (i Issuer) ParseRefresh(tokenStr string) (Claims, error) {
	return i.parseType(tokenStr, typeRefresh)
}

func (i Issuer) parseType(tokenStr, typ string) (Claims, error) {
	claims, err := Parse(tokenStr, i.Key, i.Name)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != typ {
		return Claims{}, ErrWrongTokenType
	}
	return claims, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("incomplete claims")
	}
	role, err := model.ParseRole(string(claims.Role))
	if err != nil {
		return Claims{}, err
	}
	claims.Role = role
	return *claims, nil
}

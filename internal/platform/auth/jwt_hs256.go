package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type hs256Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time // 测试替换
}

func (h *hs256Service) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *hs256Service) TTL() time.Duration {
	return h.ttl
}

func (h *hs256Service) Sign(c Claims) (string, error) {
	if c.UserID == "" {
		return "", errors.New("empty user id")
	}
	now := h.clock()

	claims := jwtClaims{
		Role: c.Role,
		Name: c.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    h.issuer,
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(h.secret)
}

func (h *hs256Service) Verify(tokenString string) (Claims, error) {
	var parsed jwtClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.clock),
	)
	_, err := parser.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	return Claims{
		UserID: parsed.Subject,
		Role:   parsed.Role,
		Name:   parsed.Name,
	}, nil
}

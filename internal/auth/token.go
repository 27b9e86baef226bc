package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleTeacher is the only role that unlocks teacher-only room events.
const RoleTeacher = "teacher"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongRole    = errors.New("token does not grant the teacher role")
)

type teacherClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Room string `json:"room,omitempty"`
}

// Claims is what a verified teacher token grants.
type Claims struct {
	Subject   string
	Room      string
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 teacher tokens.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a secret is configured; without one, teacher sockets are not authenticated.
func (i *Issuer) Enabled() bool {
	return len(i.secret) > 0
}

// Issue mints a teacher token. An empty room grants every room.
func (i *Issuer) Issue(subject, room string, ttl time.Duration) (string, error) {
	if !i.Enabled() {
		return "", errors.New("auth secret not configured")
	}
	now := i.now()
	claims := &teacherClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: RoleTeacher,
		Room: room,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyTeacher checks the token signature, expiry, role and room scope.
func (i *Issuer) VerifyTeacher(tokenString, room string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &teacherClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*teacherClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Role != RoleTeacher {
		return Claims{}, ErrWrongRole
	}
	if claims.Room != "" && claims.Room != room {
		return Claims{}, ErrWrongRole
	}
	out := Claims{Subject: claims.Subject, Room: claims.Room}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

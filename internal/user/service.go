package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-party/internal/lobby"
)

const issuer = "go-party"

var (
	ErrInvalidUsername = errors.New("username must be 1-24 characters")
	ErrInvalidToken    = errors.New("invalid token")
)

// Service issues guest identities. Guests are not stored anywhere: the
// signed token is the whole account.
type Service struct {
	jwtSecret string
	ttl       time.Duration
}

type MyJWTClaims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewService(secret string, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		jwtSecret: secret,
		ttl:       ttl,
	}
}

// StartSession mints a new guest id for the requested display name.
func (s *Service) StartSession(ctx context.Context, req *SessionRequest) (*SessionResponse, error) {
	name := strings.TrimSpace(req.Username)
	if name == "" || utf8.RuneCountInString(name) > lobby.MaxNameRunes {
		return nil, ErrInvalidUsername
	}

	id := uuid.NewString()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, MyJWTClaims{
		ID:       id,
		Username: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &SessionResponse{
		AccessToken: ss,
		ID:          id,
		Username:    name,
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (string, string, error) {
	claims := &MyJWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))

	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" {
		return "", "", ErrInvalidToken
	}

	return claims.ID, claims.Username, nil
}

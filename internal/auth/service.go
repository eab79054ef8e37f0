package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SantoDelgado/krizo-backend/internal/identity"
)

var (
	// ErrInvalidToken indicates the token failed verification or carries a
	// stale token version.
	ErrInvalidToken = errors.New("invalid or expired token")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the JWT payload issued for both token types.
type Claims struct {
	Role         string `json:"role"`
	TokenVersion int    `json:"tv"`
	TokenType    string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair carries one access and one refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Service issues and verifies the API's JWTs. Access and refresh tokens are
// signed with separate secrets; a logout bumps the account's token version
// so every outstanding token stops verifying.
type Service struct {
	identity      *identity.Service
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewService builds the token service.
func NewService(ident *identity.Service, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Service{
		identity:      ident,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (s *Service) sign(u identity.User, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
		TokenType:    tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Issue mints an access/refresh pair for the account.
func (s *Service) Issue(u identity.User) (TokenPair, error) {
	access, err := s.sign(u, tokenTypeAccess, s.accessTTL, s.accessSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(u, tokenTypeRefresh, s.refreshTTL, s.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) parse(token, tokenType string, secret []byte) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid || claims.TokenType != tokenType {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess checks an access token and confirms the account's token
// version still matches.
func (s *Service) VerifyAccess(ctx context.Context, token string) (Claims, error) {
	claims, err := s.parse(token, tokenTypeAccess, s.accessSecret)
	if err != nil {
		return Claims{}, err
	}
	u, err := s.identity.Get(ctx, claims.Subject)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if u.TokenVersion != claims.TokenVersion {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *Service) Refresh(ctx context.Context, token string) (TokenPair, error) {
	claims, err := s.parse(token, tokenTypeRefresh, s.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	u, err := s.identity.Get(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if u.TokenVersion != claims.TokenVersion {
		return TokenPair{}, ErrInvalidToken
	}
	return s.Issue(u)
}

// Logout revokes every token issued to the account so far.
func (s *Service) Logout(ctx context.Context, userID string) error {
	_, err := s.identity.RevokeTokens(ctx, userID)
	return err
}

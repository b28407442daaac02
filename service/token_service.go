package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"
	"eurobank-ledger/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const TokenTypeBearer = "Bearer"

type TokenConfig struct {
	SecretKey  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService signs HS256 access tokens and keeps opaque refresh tokens,
// stored only as their SHA-256.
type TokenService struct {
	tokens     repository.ITokenRepository
	clock      Clock
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(tokens repository.ITokenRepository, clock Clock, cfg TokenConfig) *TokenService {
	return &TokenService{
		tokens:     tokens,
		clock:      clock,
		key:        []byte(cfg.SecretKey),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

// Issue returns a fresh access token and a new refresh token for the user.
func (s *TokenService) Issue(ctx context.Context, user *model.User) (*model.TokenPair, error) {
	access, err := s.AccessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("could not generate refresh token: %w", err)
	}
	record := &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: s.clock.Now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("could not store refresh token: %w", err)
	}
	return s.pair(access, refresh), nil
}

func (s *TokenService) AccessToken(user *model.User) (string, error) {
	now := s.clock.Now()
	claims := &model.AppClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		logger.Log.WithError(err).WithField("login", user.Login).Error("Failed to sign JWT")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return signed, nil
}

// Verify parses an access token, with or without its "Bearer " prefix.
func (s *TokenService) Verify(tokenString string) (*model.AppClaims, error) {
	claims := &model.AppClaims{}
	token, err := jwt.ParseWithClaims(stripBearer(tokenString), claims,
		func(token *jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !token.Valid || claims.UserID == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Lookup returns the stored refresh token if it exists and has not expired.
func (s *TokenService) Lookup(ctx context.Context, refresh string) (*model.RefreshToken, error) {
	refresh = stripBearer(refresh)
	if refresh == "" {
		return nil, ErrInvalidToken
	}
	record, err := s.tokens.GetByTokenHash(ctx, hashToken(refresh))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !s.clock.Now().Before(record.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", ErrInvalidToken)
	}
	return record, nil
}

func (s *TokenService) Revoke(ctx context.Context, userID int64) (int64, error) {
	return s.tokens.DeleteByUserID(ctx, userID)
}

func (s *TokenService) pair(access, refresh string) *model.TokenPair {
	return &model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}
}

func stripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

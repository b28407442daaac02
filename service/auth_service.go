package service

import (
	"context"
	"errors"
	"fmt"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"
	"eurobank-ledger/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserLocked         = errors.New("user is locked, contact your branch")
	ErrUserInactive       = errors.New("user is inactive")
)

func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), nil
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// AuthService guards logins: it counts failed attempts and locks the user
// once MaxAttempts is reached. Successful logins get a token pair.
type AuthService struct {
	users       repository.IUserRepository
	tokens      *TokenService
	clock       Clock
	maxAttempts int
	bcryptCost  int
}

func NewAuthService(users repository.IUserRepository, tokens *TokenService, clock Clock, maxAttempts, bcryptCost int) *AuthService {
	return &AuthService{users: users, tokens: tokens, clock: clock, maxAttempts: maxAttempts, bcryptCost: bcryptCost}
}

func (s *AuthService) Register(ctx context.Context, login, password string, clientID int64) (*model.User, error) {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{Login: login, ClientID: clientID, PasswordHash: hash, Active: true}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.Log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Login authenticates the user and issues an access and a refresh token.
func (s *AuthService) Login(ctx context.Context, login, password string) (*model.User, *model.TokenPair, error) {
	user, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh signs a new access token for a valid refresh token. The refresh
// token itself is returned unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	record, err := s.tokens.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if user.Locked {
		return nil, ErrUserLocked
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	access, err := s.tokens.AccessToken(user)
	if err != nil {
		return nil, err
	}
	logger.Log.WithField("user_id", user.ID).Info("Access token refreshed")
	return s.tokens.pair(access, stripBearer(refreshToken)), nil
}

// Logout revokes every refresh token of the user. Access tokens already
// issued stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	n, err := s.tokens.Revoke(ctx, userID)
	if err != nil {
		return fmt.Errorf("could not revoke refresh tokens: %w", err)
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "revoked": n}).Info("User logged out")
	return nil
}

func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	log := logger.Log.WithField("login", login)

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Locked {
		return nil, ErrUserLocked
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		attempts, err := s.users.IncrementFailedAttempts(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("could not record failed attempt: %w", err)
		}
		if attempts >= s.maxAttempts {
			if err := s.users.Lock(ctx, user.ID, s.clock.Now()); err != nil {
				return nil, fmt.Errorf("could not lock user: %w", err)
			}
			log.WithField("attempts", attempts).Warn("User locked after too many failed attempts")
			return nil, ErrUserLocked
		}
		log.WithField("attempts", attempts).Warn("Failed login attempt")
		return nil, ErrInvalidCredentials
	}

	now := s.clock.Now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("could not record login: %w", err)
	}
	user.FailedAttempts = 0
	user.LastLoginAt = &now
	log.Info("User authenticated")
	return user, nil
}

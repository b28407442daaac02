package handler

import (
	"context"

	"eurobank-ledger/common"
	"eurobank-ledger/events"
	"eurobank-ledger/model"
)

type contextKey string

const UserIDKey contextKey = "userID"

// TokenVerifier is satisfied by *service.TokenService.
type TokenVerifier interface {
	Verify(token string) (*model.AppClaims, error)
}

// AuthMiddleware rejects commands without a valid access token and puts the
// verified user ID in the context.
func AuthMiddleware(verifier TokenVerifier, next CommandFunc) CommandFunc {
	return func(ctx context.Context, event events.Event) *common.AppError {
		if event.Token == "" {
			return common.NewAppError(common.CodeUnauthorized, "access token is required", nil)
		}

		claims, err := verifier.Verify(event.Token)
		if err != nil {
			return common.NewAppError(common.CodeUnauthorized, "invalid or expired token", err)
		}

		ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
		return next(ctx, event)
	}
}

// UserIDFromContext returns the user set by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok && id > 0
}

func authenticatedUser(ctx context.Context) (int64, *common.AppError) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return 0, common.NewAppError(common.CodeUnauthorized, "command requires an authenticated user", nil)
	}
	return id, nil
}

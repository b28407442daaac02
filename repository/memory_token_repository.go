package repository

import (
	"context"
	"sync"
	"time"

	"eurobank-ledger/model"
)

type MemoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken
	nextID int64
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{tokens: make(map[string]*model.RefreshToken)}
}

func (r *MemoryTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	token.ID = r.nextID
	token.CreatedAt = time.Now()
	stored := *token
	r.tokens[stored.TokenHash] = &stored
	return nil
}

func (r *MemoryTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	token := *t
	return &token, nil
}

func (r *MemoryTokenRepository) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for hash, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}

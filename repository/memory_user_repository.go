package repository

import (
	"context"
	"sync"
	"time"

	"eurobank-ledger/model"
)

type MemoryUserRepository struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int64
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*model.User)}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Login]; ok {
		return ErrDuplicateLogin
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	stored := *user
	r.users[user.Login] = &stored
	return nil
}

func (r *MemoryUserRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[login]
	if !ok {
		return nil, ErrNotFound
	}
	user := *u
	return &user, nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID(id)
	if u == nil {
		return nil, ErrNotFound
	}
	user := *u
	return &user, nil
}

func (r *MemoryUserRepository) byID(id int64) *model.User {
	for _, u := range r.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (r *MemoryUserRepository) IncrementFailedAttempts(ctx context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID(userID)
	if u == nil {
		return 0, ErrNotFound
	}
	u.FailedAttempts++
	return u.FailedAttempts, nil
}

func (r *MemoryUserRepository) Lock(ctx context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID(userID)
	if u == nil {
		return ErrNotFound
	}
	u.Locked = true
	u.LockedAt = &at
	return nil
}

func (r *MemoryUserRepository) RecordLogin(ctx context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID(userID)
	if u == nil {
		return ErrNotFound
	}
	u.FailedAttempts = 0
	u.LastLoginAt = &at
	return nil
}

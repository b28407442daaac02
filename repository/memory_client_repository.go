package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"eurobank-ledger/model"
)

type MemoryClientRepository struct {
	mu      sync.Mutex
	clients map[int64]*model.Client
	nextID  int64
}

func NewMemoryClientRepository() *MemoryClientRepository {
	return &MemoryClientRepository{clients: make(map[int64]*model.Client)}
}

func (r *MemoryClientRepository) Create(ctx context.Context, client *model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.Number == client.Number || (client.Email != "" && strings.EqualFold(c.Email, client.Email)) {
			return ErrDuplicateClient
		}
	}
	r.nextID++
	client.ID = r.nextID
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	stored := *client
	r.clients[stored.ID] = &stored
	return nil
}

func (r *MemoryClientRepository) Get(ctx context.Context, id int64) (*model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	client := *c
	return &client, nil
}

func (r *MemoryClientRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.Email != "" && strings.EqualFold(c.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryClientRepository) Search(ctx context.Context, term string, limit, offset int) ([]*model.Client, int64, error) {
	needle := strings.ToLower(term)
	r.mu.Lock()
	var matched []*model.Client
	for _, c := range r.clients {
		if strings.Contains(strings.ToLower(c.LastName), needle) ||
			strings.Contains(strings.ToLower(c.FirstName), needle) ||
			strings.Contains(strings.ToLower(c.Number), needle) {
			client := *c
			matched = append(matched, &client)
		}
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

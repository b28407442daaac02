package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"

	"github.com/redis/go-redis/v9"
)

// ICacheClient is the subset of the Redis client used for account
// cache-aside reads.
type ICacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const accountCacheTTL = 10 * time.Minute

func accountCacheKey(iban string) string {
	return fmt.Sprintf("account:%s", iban)
}

// accountCache wraps an optional cache client; a nil client disables caching.
type accountCache struct {
	client ICacheClient
}

func (c accountCache) get(ctx context.Context, iban string) (*model.Account, bool) {
	if c.client == nil {
		return nil, false
	}
	cached, err := c.client.Get(ctx, accountCacheKey(iban)).Result()
	if err != nil {
		return nil, false
	}
	var account model.Account
	if err := json.Unmarshal([]byte(cached), &account); err != nil {
		return nil, false
	}
	return &account, true
}

func (c accountCache) put(ctx context.Context, account *model.Account) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(account)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, accountCacheKey(account.IBAN), data, accountCacheTTL).Err(); err != nil {
		logger.Log.WithError(err).WithField("iban", account.IBAN).Warn("Failed to cache account")
	}
}

// invalidate drops cached snapshots after their balances changed.
func (c accountCache) invalidate(ctx context.Context, ibans ...string) {
	if c.client == nil || len(ibans) == 0 {
		return
	}
	keys := make([]string, len(ibans))
	for i, iban := range ibans {
		keys[i] = accountCacheKey(iban)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Log.WithError(err).WithField("keys", keys).Warn("Failed to invalidate account cache")
	}
}

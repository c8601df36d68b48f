package redis

import (
	"context"
	"encoding/json"
	"time"
)

// StatusCache shields the ledger from poll storms: the editor polls payment
// status every couple of seconds while the user sits on the gateway page.
// Entries are tiny and short-lived; a miss just falls through to Postgres.
type StatusCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewStatusCache(client RedisClient, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &StatusCache{client: client, ttl: ttl}
}

func (c *StatusCache) Get(ctx context.Context, id string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, "payment_status:"+id)
	if err != nil {
		if IsNil(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *StatusCache) Put(ctx context.Context, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "payment_status:"+id, data, c.ttl)
}

// Invalidate drops the entry after a reconciliation so the next poll sees the
// terminal status immediately.
func (c *StatusCache) Invalidate(ctx context.Context, ids ...string) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			keys = append(keys, "payment_status:"+id)
		}
	}
	if len(keys) > 0 {
		_ = c.client.Del(ctx, keys...)
	}
}

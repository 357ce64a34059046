package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ccspot/pkg/model"

	"github.com/go-redis/redis/v8"
)

// RedisCache is a read-through cache in front of another catalog
type RedisCache struct {
	next   Catalog
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(next Catalog, client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{
		next:   next,
		client: client,
		prefix: "ccspot:catalog:",
		ttl:    ttl,
	}
}

func (c *RedisCache) getMarket(ctx context.Context, key string) *model.Market {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warningf("catalog cache get %s failed, err: %s", key, err)
		}
		return nil
	}
	var m model.Market
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Warningf("catalog cache decode %s failed, err: %s", key, err)
		return nil
	}
	return &m
}

func (c *RedisCache) putMarket(ctx context.Context, m *model.Market) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	for _, key := range []string{"market:id:" + strconv.FormatInt(m.ID, 10), "market:symbol:" + m.Symbol} {
		if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
			logger.Warningf("catalog cache set %s failed, err: %s", key, err)
		}
	}
}

func (c *RedisCache) MarketByID(ctx context.Context, id int64) (*model.Market, error) {
	if m := c.getMarket(ctx, "market:id:"+strconv.FormatInt(id, 10)); m != nil {
		return m, nil
	}
	m, err := c.next.MarketByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.putMarket(ctx, m)
	return m, nil
}

func (c *RedisCache) MarketBySymbol(ctx context.Context, symbol string) (*model.Market, error) {
	symbol = model.NormalizeSymbol(symbol)
	if m := c.getMarket(ctx, "market:symbol:"+symbol); m != nil {
		return m, nil
	}
	m, err := c.next.MarketBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.putMarket(ctx, m)
	return m, nil
}

func (c *RedisCache) AssetScale(ctx context.Context, asset string) int32 {
	key := c.prefix + "asset:" + asset
	if v, err := c.client.Get(ctx, key).Int(); err == nil {
		return int32(v)
	}
	scale := c.next.AssetScale(ctx, asset)
	if err := c.client.Set(ctx, key, scale, c.ttl).Err(); err != nil {
		logger.Warningf("catalog cache set %s failed, err: %s", key, err)
	}
	return scale
}

// Invalidate drops the cached entries of a market, e.g. after toggling its active flag
func (c *RedisCache) Invalidate(ctx context.Context, m *model.Market) error {
	err := c.client.Del(ctx,
		c.prefix+"market:id:"+strconv.FormatInt(m.ID, 10),
		c.prefix+"market:symbol:"+m.Symbol,
	).Err()
	if err != nil {
		return fmt.Errorf("invalidate market %d: %w", m.ID, err)
	}
	return nil
}

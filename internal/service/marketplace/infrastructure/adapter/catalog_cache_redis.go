// internal/service/marketplace/infrastructure/adapter/catalog_cache_redis.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"agrilink/internal/pkg/logger"
	"agrilink/internal/pkg/redisx"
	"agrilink/internal/service/marketplace/domain"
)

// CatalogEntry 是跨分区浏览目录时的展示视图：
// 统一的 displayName 抹平了四个分区各自的字段差异。
type CatalogEntry struct {
	ItemID            string    `json:"itemId"`
	DisplayName       string    `json:"displayName"`
	Kind              string    `json:"kind"`
	QuantityAvailable int64     `json:"quantityAvailable"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// CatalogCacheRedis 是目录浏览的 Redis 读穿缓存。
// 只服务读侧（发起请求前浏览对方目录），协调器的决策路径
// 永远直读权威存储，不碰这层缓存。
type CatalogCacheRedis struct {
	client *redisx.Client
	items  domain.InventoryStore
	ttl    time.Duration
}

// NewCatalogCacheRedis 创建目录缓存。ttl <= 0 时视为 30 秒。
func NewCatalogCacheRedis(client *redisx.Client, items domain.InventoryStore, ttl time.Duration) *CatalogCacheRedis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CatalogCacheRedis{client: client, items: items, ttl: ttl}
}

func catalogKey(owner domain.PartitionKey) string {
	return fmt.Sprintf("catalog:{%s}", owner)
}

// BrowseCatalog 返回分区目录的展示视图，优先命中缓存。
func (c *CatalogCacheRedis) BrowseCatalog(ctx context.Context, owner domain.PartitionKey) ([]CatalogEntry, error) {
	key := catalogKey(owner)

	// 1. 尝试缓存
	cached, err := c.client.GetClient().Get(ctx, key).Bytes()
	if err == nil {
		var entries []CatalogEntry
		if err := json.Unmarshal(cached, &entries); err == nil {
			return entries, nil
		}
		// 缓存内容损坏，当作未命中处理
	} else if err != goredis.Nil {
		logger.Ctx(ctx).Warn().Err(err).Str("owner", owner.String()).Msg("catalog cache read failed, falling back to store")
	}

	// 2. 回源权威存储
	items, err := c.items.ListItems(ctx, owner)
	if err != nil {
		return nil, err
	}
	entries := make([]CatalogEntry, 0, len(items))
	for _, item := range items {
		entry := CatalogEntry{
			ItemID:            item.ID,
			QuantityAvailable: item.QuantityAvailable,
			LastUpdated:       item.LastUpdated,
		}
		if item.Details != nil {
			entry.DisplayName = item.Details.DisplayName()
			entry.Kind = string(item.Details.Kind())
		}
		entries = append(entries, entry)
	}

	// 3. 写回缓存，失败不影响结果
	if data, err := json.Marshal(entries); err == nil {
		if err := c.client.GetClient().Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	return entries, nil
}

// HandleChange 在分区库存变化时使缓存失效。
// 通常挂在变更事件的订阅回调上。
func (c *CatalogCacheRedis) HandleChange(event domain.ChangeEvent) {
	if event.Kind != domain.ChangeInventoryUpdated {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.GetClient().Del(ctx, catalogKey(event.Owner)).Err(); err != nil {
		logger.Ctx(nil).Warn().Err(err).Str("owner", event.Owner.String()).Msg("catalog cache invalidation failed")
	}
}

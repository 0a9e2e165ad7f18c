// internal/pkg/redisx/client.go
package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client 封装 go-redis 客户端，统一连接探测和关闭。
type Client struct {
	rdb *redis.Client
}

// NewClient 按地址创建客户端并探测连通性。
func NewClient(ctx context.Context, addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// GetClient 暴露底层客户端给需要 pipeline 等原生能力的调用方。
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.rdb.Close()
}

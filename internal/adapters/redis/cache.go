package redis

import (
	"github.com/redis/go-redis/v9"
)

// Cache wraps an explicitly constructed redis client. The process owns its
// lifecycle: built in main, closed on shutdown, replaced by miniature fakes
// in tests.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) Close() error {
	return c.client.Close()
}

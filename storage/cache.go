package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"join-api/domain"
)

const (
	tasksCacheKey    = "join:tasks"
	contactsCacheKey = "join:contacts"
)

// Cache wraps a Backend with Redis-backed caching for the collection reads.
// Any write evicts the cached listing of the collection it touched.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A nil client disables caching.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if c.load(ctx, tasksCacheKey, &tasks) {
		return tasks, nil
	}
	tasks, err := c.base.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, tasksCacheKey, tasks)
	return tasks, nil
}

// ReloadTasks reads the tasks from the backend and overwrites the cached
// listing. A cached listing may have been stored by a read that raced a write.
func (c *Cache) ReloadTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := c.base.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, tasksCacheKey, tasks)
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) error {
	return c.evictAfter(ctx, tasksCacheKey, c.base.InsertTask(ctx, t))
}

func (c *Cache) ReplaceTask(ctx context.Context, t domain.Task) error {
	return c.evictAfter(ctx, tasksCacheKey, c.base.ReplaceTask(ctx, t))
}

func (c *Cache) SetTaskStatus(ctx context.Context, id string, status domain.Status) error {
	return c.evictAfter(ctx, tasksCacheKey, c.base.SetTaskStatus(ctx, id, status))
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	return c.evictAfter(ctx, tasksCacheKey, c.base.DeleteTask(ctx, id))
}

func (c *Cache) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	var contacts []domain.Contact
	if c.load(ctx, contactsCacheKey, &contacts) {
		return contacts, nil
	}
	contacts, err := c.base.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, contactsCacheKey, contacts)
	return contacts, nil
}

// ReloadContacts is ReloadTasks for contacts.
func (c *Cache) ReloadContacts(ctx context.Context) ([]domain.Contact, error) {
	contacts, err := c.base.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, contactsCacheKey, contacts)
	return contacts, nil
}

func (c *Cache) GetContact(ctx context.Context, id string) (domain.Contact, error) {
	return c.base.GetContact(ctx, id)
}

func (c *Cache) InsertContact(ctx context.Context, ct domain.Contact) error {
	return c.evictAfter(ctx, contactsCacheKey, c.base.InsertContact(ctx, ct))
}

func (c *Cache) ReplaceContact(ctx context.Context, ct domain.Contact) error {
	return c.evictAfter(ctx, contactsCacheKey, c.base.ReplaceContact(ctx, ct))
}

func (c *Cache) DeleteContact(ctx context.Context, id string) error {
	return c.evictAfter(ctx, contactsCacheKey, c.base.DeleteContact(ctx, id))
}

func (c *Cache) InsertUser(ctx context.Context, u domain.User) error {
	return c.base.InsertUser(ctx, u)
}

func (c *Cache) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return c.base.GetUserByEmail(ctx, email)
}

func (c *Cache) UpdateUserName(ctx context.Context, email, name string) error {
	return c.base.UpdateUserName(ctx, email, name)
}

// Invalidate drops both cached listings. Used when another process wrote to storage.
func (c *Cache) Invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey, contactsCacheKey).Result()
}

func (c *Cache) load(ctx context.Context, key string, dst any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

// evictAfter drops key even when the write failed, since a partial write may have landed.
func (c *Cache) evictAfter(ctx context.Context, key string, err error) error {
	if c.redis != nil {
		_ = c.redis.Del(ctx, key).Err()
	}
	return err
}

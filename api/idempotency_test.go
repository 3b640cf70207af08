package api

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return m, client
}

func TestRedisDeduperAddRemove(t *testing.T) {
	m, client := newTestRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	added, err := deduper.Add(ctx, "u1:tasks", "k1")
	if err != nil || !added {
		t.Fatalf("expected first add to succeed: %v %v", added, err)
	}
	added, err = deduper.Add(ctx, "u1:tasks", "k1")
	if err != nil || added {
		t.Fatalf("expected duplicate: %v %v", added, err)
	}
	if ttl := m.TTL(dedupeKeyPrefix + "u1:tasks:k1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL %v", ttl)
	}

	if err := deduper.Remove(ctx, "u1:tasks", "k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	added, err = deduper.Add(ctx, "u1:tasks", "k1")
	if err != nil || !added {
		t.Fatalf("expected re-add after remove: %v %v", added, err)
	}
}

func TestRedisDeduperKeyNamespacing(t *testing.T) {
	_, client := newTestRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	if added, _ := deduper.Add(ctx, "u1:tasks", "k1"); !added {
		t.Fatalf("expected key to be added")
	}
	if added, _ := deduper.Add(ctx, "u2:tasks", "k1"); !added {
		t.Fatalf("same key under another scope must not collide")
	}
	exists, err := client.Exists(ctx, dedupeKeyPrefix+"u1:tasks:k1").Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 1 {
		t.Fatalf("expected namespaced redis key to exist")
	}
}

func TestRedisRevokerSkipsExpired(t *testing.T) {
	m, client := newTestRedis(t)
	r := NewRedisRevoker(client)
	ctx := context.Background()

	if err := r.Revoke(ctx, "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if m.Exists(revokedKeyPrefix + "old") {
		t.Fatalf("expired token should not be stored")
	}
	revoked, err := r.Revoked(ctx, "old")
	if err != nil || revoked {
		t.Fatalf("unexpected revoked=%v err=%v", revoked, err)
	}
}

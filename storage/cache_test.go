package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"join-api/domain"
)

type stubBackend struct {
	Backend
	listTasksFn     func(ctx context.Context) ([]domain.Task, error)
	listContactsFn  func(ctx context.Context) ([]domain.Contact, error)
	setStatusFn     func(ctx context.Context, id string, status domain.Status) error
	insertContactFn func(ctx context.Context, c domain.Contact) error
}

func (s *stubBackend) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if s.listTasksFn == nil {
		return nil, errors.New("unexpected ListTasks call")
	}
	return s.listTasksFn(ctx)
}

func (s *stubBackend) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	if s.listContactsFn == nil {
		return nil, errors.New("unexpected ListContacts call")
	}
	return s.listContactsFn(ctx)
}

func (s *stubBackend) SetTaskStatus(ctx context.Context, id string, status domain.Status) error {
	if s.setStatusFn == nil {
		return errors.New("unexpected SetTaskStatus call")
	}
	return s.setStatusFn(ctx, id, status)
}

func (s *stubBackend) InsertContact(ctx context.Context, c domain.Contact) error {
	if s.insertContactFn == nil {
		return errors.New("unexpected InsertContact call")
	}
	return s.insertContactFn(ctx, c)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheListTasksMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	expected := []domain.Task{{
		ID:         "t1",
		Title:      "Write code",
		Priority:   domain.PriorityMedium,
		Status:     domain.StatusTodo,
		CreatedAt:  created,
		AssignedTo: []string{"c1"},
		Subtasks:   []domain.Subtask{{ID: "s1", Title: "tests"}},
	}}

	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(context.Context) ([]domain.Task, error) {
			calls++
			return append([]domain.Task(nil), expected...), nil
		},
	}, client, time.Minute)

	tasks, err := cache.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if ttl := mr.TTL(tasksCacheKey); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list cached tasks: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached tasks: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached list to avoid backend, calls=%d", calls)
	}
}

func TestCacheStatusWriteEvictsTasksOnly(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	cache := NewCache(&stubBackend{
		listTasksFn:    func(context.Context) ([]domain.Task, error) { return []domain.Task{{ID: "t1"}}, nil },
		listContactsFn: func(context.Context) ([]domain.Contact, error) { return []domain.Contact{{ID: "c1"}}, nil },
		setStatusFn: func(_ context.Context, id string, status domain.Status) error {
			if id != "t1" || status != domain.StatusDone {
				t.Fatalf("unexpected status write %s=%s", id, status)
			}
			return nil
		},
	}, client, time.Minute)

	if _, err := cache.ListTasks(ctx); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if _, err := cache.ListContacts(ctx); err != nil {
		t.Fatalf("list contacts: %v", err)
	}
	if err := cache.SetTaskStatus(ctx, "t1", domain.StatusDone); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if mr.Exists(tasksCacheKey) {
		t.Fatalf("tasks listing should be evicted")
	}
	if !mr.Exists(contactsCacheKey) {
		t.Fatalf("contacts listing should survive a task write")
	}
}

func TestCacheEvictsOnFailedWrite(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	boom := errors.New("boom")

	cache := NewCache(&stubBackend{
		listContactsFn:  func(context.Context) ([]domain.Contact, error) { return []domain.Contact{}, nil },
		insertContactFn: func(context.Context, domain.Contact) error { return boom },
	}, client, time.Minute)

	if _, err := cache.ListContacts(ctx); err != nil {
		t.Fatalf("list contacts: %v", err)
	}
	if err := cache.InsertContact(ctx, domain.Contact{ID: "c1"}); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if mr.Exists(contactsCacheKey) {
		t.Fatalf("contacts listing should be evicted")
	}
}

func TestCacheDropsCorruptEntry(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	if err := mr.Set(tasksCacheKey, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(context.Context) ([]domain.Task, error) {
			calls++
			return []domain.Task{}, nil
		},
	}, client, time.Minute)

	if _, err := cache.ListTasks(ctx); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected backend fallback, calls=%d", calls)
	}
}

func TestCacheWithoutRedis(t *testing.T) {
	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(context.Context) ([]domain.Task, error) {
			calls++
			return []domain.Task{}, nil
		},
	}, nil, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.ListTasks(context.Background()); err != nil {
			t.Fatalf("list tasks: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every call to reach the backend, calls=%d", calls)
	}
	cache.Invalidate(context.Background())
}

func TestCacheInvalidate(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewCache(&stubBackend{}, client, time.Minute)
	_ = mr.Set(tasksCacheKey, "[]")
	_ = mr.Set(contactsCacheKey, "[]")

	cache.Invalidate(context.Background())

	if mr.Exists(tasksCacheKey) || mr.Exists(contactsCacheKey) {
		t.Fatalf("expected both listings to be dropped")
	}
}

func TestCacheReloadIgnoresStaleListing(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	// A listing stored by a read that raced a write.
	if err := mr.Set(tasksCacheKey, `[{"id":"t1","title":"old","status":"todo"}]`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cache := NewCache(&stubBackend{
		listTasksFn: func(context.Context) ([]domain.Task, error) {
			return []domain.Task{{ID: "t1", Title: "new", Status: domain.StatusDone}}, nil
		},
	}, client, time.Minute)

	tasks, err := cache.ReloadTasks(ctx)
	if err != nil {
		t.Fatalf("reload tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != domain.StatusDone {
		t.Fatalf("reload served the stale listing: %#v", tasks)
	}
	cached, err := cache.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(cached) != 1 || cached[0].Title != "new" {
		t.Fatalf("stale listing was not replaced: %#v", cached)
	}
}

func TestCacheReloadContactsWithoutRedis(t *testing.T) {
	cache := NewCache(&stubBackend{
		listContactsFn: func(context.Context) ([]domain.Contact, error) {
			return []domain.Contact{{ID: "c1", Name: "Ben"}}, nil
		},
	}, nil, time.Minute)
	contacts, err := cache.ReloadContacts(context.Background())
	if err != nil || len(contacts) != 1 || contacts[0].Name != "Ben" {
		t.Fatalf("unexpected reload %#v %v", contacts, err)
	}
}

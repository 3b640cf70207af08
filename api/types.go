package api

import (
	"context"
	"time"

	"join-api/domain"
	"join-api/storage"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	GetTask(ctx context.Context, id string) (domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	ReplaceTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error

	GetContact(ctx context.Context, id string) (domain.Contact, error)
	InsertContact(ctx context.Context, c domain.Contact) error
	ReplaceContact(ctx context.Context, c domain.Contact) error
	DeleteContact(ctx context.Context, id string) error

	InsertUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateUserName(ctx context.Context, email, name string) error
}

// Authenticator issues and validates session tokens.
type Authenticator interface {
	Issue(s Session) (token string, expiresAt time.Time, err error)
	Authenticate(ctx context.Context, token string) (Session, error)
	Revoke(ctx context.Context, s Session) error
}

// Deduper prevents processing of duplicate create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, scope, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, scope, key string) error
}

// Notifier announces that a collection was written.
type Notifier interface {
	Changed(ctx context.Context, collection string)
}

// StatusSink persists a board status change.
type StatusSink interface {
	PushStatus(ctx context.Context, ch storage.StatusChange) error
}

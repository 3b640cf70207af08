package storage

import (
	"context"
	"errors"
	"time"

	"join-api/domain"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a document with the same key already exists.
	ErrConflict = errors.New("already exists")
	// ErrInvalidKey is returned for keys the backend cannot address.
	ErrInvalidKey = errors.New("invalid key")
)

// Backend is the document store behind the task and contact collections.
// Writes replace whole documents; there is no partial merge or version check.
type Backend interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	ReplaceTask(ctx context.Context, t domain.Task) error
	SetTaskStatus(ctx context.Context, id string, status domain.Status) error
	DeleteTask(ctx context.Context, id string) error

	ListContacts(ctx context.Context) ([]domain.Contact, error)
	GetContact(ctx context.Context, id string) (domain.Contact, error)
	InsertContact(ctx context.Context, c domain.Contact) error
	ReplaceContact(ctx context.Context, c domain.Contact) error
	DeleteContact(ctx context.Context, id string) error

	InsertUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateUserName(ctx context.Context, email, name string) error
}

// StatusChange is a queued board status write.
type StatusChange struct {
	TaskID      string        `json:"taskId"`
	Status      domain.Status `json:"status"`
	RequestedAt time.Time     `json:"requestedAt"`
}

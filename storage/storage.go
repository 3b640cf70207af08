package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"join-api/domain"
)

const (
	tasksPartition    = "tasks"
	contactsPartition = "contacts"
	usersPartition    = "users"

	edmDateTime = "Edm.DateTime"
)

// Tables stores tasks, contacts and users in Azure Table Storage.
type Tables struct {
	taskTable    *aztables.Client
	contactTable *aztables.Client
	userTable    *aztables.Client
}

// NewTables creates a Tables backend from the given connection string.
func NewTables(connStr, tasksTable, contactsTable, usersTable string) (*Tables, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Tables{
		taskTable:    svc.NewClient(tasksTable),
		contactTable: svc.NewClient(contactsTable),
		userTable:    svc.NewClient(usersTable),
	}, nil
}

type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type taskEntity struct {
	entityKeys
	Title         string     `json:"Title"`
	Description   string     `json:"Description"`
	Category      string     `json:"Category"`
	Priority      string     `json:"Priority"`
	Status        string     `json:"Status"`
	AssignedTo    string     `json:"AssignedTo"`
	Subtasks      string     `json:"Subtasks"`
	CreatedAt     time.Time  `json:"CreatedAt"`
	CreatedAtType string     `json:"CreatedAt@odata.type,omitempty"`
	DueDate       *time.Time `json:"DueDate,omitempty"`
	DueDateType   *string    `json:"DueDate@odata.type,omitempty"`
}

type statusUpdate struct {
	entityKeys
	Status string `json:"Status"`
}

type contactEntity struct {
	entityKeys
	Name  string `json:"Name"`
	Email string `json:"Email"`
	Phone string `json:"Phone"`
}

type userEntity struct {
	entityKeys
	ID            string    `json:"ID"`
	Name          string    `json:"Name"`
	Email         string    `json:"Email"`
	PasswordHash  string    `json:"PasswordHash"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type,omitempty"`
}

type nameUpdate struct {
	entityKeys
	Name string `json:"Name"`
}

func encodeTask(t domain.Task) ([]byte, error) {
	assigned, err := json.Marshal(t.AssignedTo)
	if err != nil {
		return nil, err
	}
	subtasks, err := json.Marshal(t.Subtasks)
	if err != nil {
		return nil, err
	}
	ent := taskEntity{
		entityKeys:    entityKeys{PartitionKey: tasksPartition, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		Category:      t.Category,
		Priority:      string(t.Priority),
		Status:        string(t.Status),
		AssignedTo:    string(assigned),
		Subtasks:      string(subtasks),
		CreatedAt:     t.CreatedAt.UTC(),
		CreatedAtType: edmDateTime,
	}
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		typ := edmDateTime
		ent.DueDate = &due
		ent.DueDateType = &typ
	}
	return json.Marshal(ent)
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Category:    ent.Category,
		Priority:    domain.Priority(ent.Priority),
		Status:      domain.Status(ent.Status),
		CreatedAt:   ent.CreatedAt,
		DueDate:     ent.DueDate,
		AssignedTo:  []string{},
		Subtasks:    []domain.Subtask{},
	}
	if ent.AssignedTo != "" {
		if err := json.Unmarshal([]byte(ent.AssignedTo), &t.AssignedTo); err != nil {
			return domain.Task{}, fmt.Errorf("task %s assignees: %w", ent.RowKey, err)
		}
	}
	if ent.Subtasks != "" {
		if err := json.Unmarshal([]byte(ent.Subtasks), &t.Subtasks); err != nil {
			return domain.Task{}, fmt.Errorf("task %s subtasks: %w", ent.RowKey, err)
		}
	}
	return t, nil
}

func decodeContactEntity(data []byte) (domain.Contact, error) {
	var ent contactEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Contact{}, err
	}
	return domain.Contact{ID: ent.RowKey, Name: ent.Name, Email: ent.Email, Phone: ent.Phone}, nil
}

func mapResponseError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 404:
			return fmt.Errorf("%w: %s", ErrNotFound, respErr.ErrorCode)
		case 409:
			return fmt.Errorf("%w: %s", ErrConflict, respErr.ErrorCode)
		}
	}
	return err
}

func listPartition(ctx context.Context, table *aztables.Client, partition string, each func([]byte) error) error {
	filter := "PartitionKey eq '" + partition + "'"
	pager := table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, e := range resp.Entities {
			if err := each(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func replaceEntity(ctx context.Context, table *aztables.Client, payload []byte, mode aztables.UpdateMode) error {
	et := azcore.ETagAny
	_, err := table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: mode})
	return mapResponseError(err)
}

// ListTasks retrieves every task.
func (s *Tables) ListTasks(ctx context.Context) ([]domain.Task, error) {
	tasks := []domain.Task{}
	err := listPartition(ctx, s.taskTable, tasksPartition, func(e []byte) error {
		t, err := decodeTaskEntity(e)
		if err != nil {
			return err
		}
		tasks = append(tasks, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Tables) GetTask(ctx context.Context, id string) (domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, tasksPartition, id, nil)
	if err != nil {
		return domain.Task{}, mapResponseError(err)
	}
	return decodeTaskEntity(resp.Value)
}

func (s *Tables) InsertTask(ctx context.Context, t domain.Task) error {
	payload, err := encodeTask(t)
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return mapResponseError(err)
}

func (s *Tables) ReplaceTask(ctx context.Context, t domain.Task) error {
	payload, err := encodeTask(t)
	if err != nil {
		return err
	}
	return replaceEntity(ctx, s.taskTable, payload, aztables.UpdateModeReplace)
}

// SetTaskStatus merges only the status column into the stored task.
func (s *Tables) SetTaskStatus(ctx context.Context, id string, status domain.Status) error {
	payload, err := json.Marshal(statusUpdate{
		entityKeys: entityKeys{PartitionKey: tasksPartition, RowKey: id},
		Status:     string(status),
	})
	if err != nil {
		return err
	}
	return replaceEntity(ctx, s.taskTable, payload, aztables.UpdateModeMerge)
}

func (s *Tables) DeleteTask(ctx context.Context, id string) error {
	_, err := s.taskTable.DeleteEntity(ctx, tasksPartition, id, nil)
	return mapResponseError(err)
}

// ListContacts retrieves every contact.
func (s *Tables) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	contacts := []domain.Contact{}
	err := listPartition(ctx, s.contactTable, contactsPartition, func(e []byte) error {
		c, err := decodeContactEntity(e)
		if err != nil {
			return err
		}
		contacts = append(contacts, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

func (s *Tables) GetContact(ctx context.Context, id string) (domain.Contact, error) {
	resp, err := s.contactTable.GetEntity(ctx, contactsPartition, id, nil)
	if err != nil {
		return domain.Contact{}, mapResponseError(err)
	}
	return decodeContactEntity(resp.Value)
}

func contactPayload(c domain.Contact) ([]byte, error) {
	return json.Marshal(contactEntity{
		entityKeys: entityKeys{PartitionKey: contactsPartition, RowKey: c.ID},
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
	})
}

func (s *Tables) InsertContact(ctx context.Context, c domain.Contact) error {
	payload, err := contactPayload(c)
	if err != nil {
		return err
	}
	_, err = s.contactTable.AddEntity(ctx, payload, nil)
	return mapResponseError(err)
}

func (s *Tables) ReplaceContact(ctx context.Context, c domain.Contact) error {
	payload, err := contactPayload(c)
	if err != nil {
		return err
	}
	return replaceEntity(ctx, s.contactTable, payload, aztables.UpdateModeReplace)
}

func (s *Tables) DeleteContact(ctx context.Context, id string) error {
	_, err := s.contactTable.DeleteEntity(ctx, contactsPartition, id, nil)
	return mapResponseError(err)
}

// Users are keyed by lower-cased email so AddEntity rejects duplicates.
func userKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validRowKey reports whether key can address an entity. The service
// rejects these characters in keys with a 400.
func validRowKey(key string) bool {
	if key == "" || strings.ContainsAny(key, `#?/\`) {
		return false
	}
	for _, r := range key {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			return false
		}
	}
	return true
}

func (s *Tables) InsertUser(ctx context.Context, u domain.User) error {
	if !validRowKey(userKey(u.Email)) {
		return fmt.Errorf("user key %q: %w", u.Email, ErrInvalidKey)
	}
	payload, err := json.Marshal(userEntity{
		entityKeys:    entityKeys{PartitionKey: usersPartition, RowKey: userKey(u.Email)},
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		CreatedAt:     u.CreatedAt.UTC(),
		CreatedAtType: edmDateTime,
	})
	if err != nil {
		return err
	}
	_, err = s.userTable.AddEntity(ctx, payload, nil)
	return mapResponseError(err)
}

func (s *Tables) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	key := userKey(email)
	if !validRowKey(key) {
		return domain.User{}, ErrNotFound
	}
	resp, err := s.userTable.GetEntity(ctx, usersPartition, key, nil)
	if err != nil {
		return domain.User{}, mapResponseError(err)
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:           ent.ID,
		Name:         ent.Name,
		Email:        ent.Email,
		PasswordHash: ent.PasswordHash,
		CreatedAt:    ent.CreatedAt,
	}, nil
}

func (s *Tables) UpdateUserName(ctx context.Context, email, name string) error {
	payload, err := json.Marshal(nameUpdate{
		entityKeys: entityKeys{PartitionKey: usersPartition, RowKey: userKey(email)},
		Name:       name,
	})
	if err != nil {
		return err
	}
	return replaceEntity(ctx, s.userTable, payload, aztables.UpdateModeMerge)
}

package live

import (
	"context"

	"join-api/domain"
)

// ContactFeed mirrors the contact collection.
type ContactFeed struct {
	contacts *Collection[domain.Contact]
}

func NewContactFeed(load Loader[domain.Contact]) *ContactFeed {
	return &ContactFeed{contacts: NewCollection[domain.Contact](load, nil)}
}

func (f *ContactFeed) Refresh(ctx context.Context) error {
	return f.contacts.Refresh(ctx)
}

func (f *ContactFeed) Subscribe() (<-chan []domain.Contact, func()) {
	return f.contacts.Subscribe()
}

func (f *ContactFeed) Contacts() []domain.Contact {
	return f.contacts.Snapshot()
}

// Groups returns the address book bucketed by first letter.
func (f *ContactFeed) Groups() domain.ContactGroups {
	return domain.GroupContacts(f.contacts.Snapshot())
}

func (f *ContactFeed) Get(id string) (domain.Contact, bool) {
	for _, c := range f.contacts.Snapshot() {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Contact{}, false
}

func (f *ContactFeed) Upsert(c domain.Contact) {
	f.contacts.Mutate(func(list []domain.Contact) []domain.Contact {
		for i := range list {
			if list[i].ID == c.ID {
				list[i] = c
				return list
			}
		}
		return append(list, c)
	})
}

func (f *ContactFeed) Remove(id string) {
	f.contacts.Mutate(func(list []domain.Contact) []domain.Contact {
		out := list[:0]
		for _, c := range list {
			if c.ID != id {
				out = append(out, c)
			}
		}
		return out
	})
}

package domain

import (
	"errors"
	"testing"
)

func names(cs []Contact) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}

func TestGroupContactsSortsWithinBuckets(t *testing.T) {
	groups := GroupContacts([]Contact{{ID: "1", Name: "Ben"}, {ID: "2", Name: "Amy"}, {ID: "3", Name: "Anna"}})

	a := groups.Bucket("A")
	if got := names(a.Contacts); len(got) != 2 || got[0] != "Amy" || got[1] != "Anna" {
		t.Fatalf("unexpected A bucket %v", got)
	}
	b := groups.Bucket("B")
	if got := names(b.Contacts); len(got) != 1 || got[0] != "Ben" {
		t.Fatalf("unexpected B bucket %v", got)
	}
	if len(groups.NonEmpty()) != 2 {
		t.Fatalf("expected two non-empty buckets, got %d", len(groups.NonEmpty()))
	}
}

func TestGroupContactsHasFixedBuckets(t *testing.T) {
	groups := GroupContacts(nil)
	if groups[0].Letter != "A" || groups[25].Letter != "Z" || groups[26].Letter != OtherBucket {
		t.Fatalf("unexpected bucket layout %q..%q,%q", groups[0].Letter, groups[25].Letter, groups[26].Letter)
	}
	for _, g := range groups {
		if g.Contacts == nil {
			t.Fatalf("bucket %s should be empty, not nil", g.Letter)
		}
	}
}

func TestGroupContactsKeepsEveryContact(t *testing.T) {
	contacts := []Contact{
		{ID: "1", Name: "zoe"},
		{ID: "2", Name: "42 Street Cafe"},
		{ID: "3", Name: "Ødegaard"},
		{ID: "4", Name: ""},
		{ID: "5", Name: "  adam"},
	}
	groups := GroupContacts(contacts)
	total := 0
	for _, g := range groups {
		total += len(g.Contacts)
	}
	if total != len(contacts) {
		t.Fatalf("expected %d grouped contacts, got %d", len(contacts), total)
	}
	if got := names(groups.Bucket(OtherBucket).Contacts); len(got) != 3 {
		t.Fatalf("expected three contacts in %s, got %v", OtherBucket, got)
	}
	if got := names(groups.Bucket("Z").Contacts); len(got) != 1 || got[0] != "zoe" {
		t.Fatalf("expected lower-case name bucketed under Z, got %v", got)
	}
	if got := names(groups.Bucket("A").Contacts); len(got) != 1 {
		t.Fatalf("expected trimmed name bucketed under A, got %v", got)
	}
}

func TestGroupContactsIgnoresCaseWhenSorting(t *testing.T) {
	groups := GroupContacts([]Contact{{ID: "1", Name: "anton"}, {ID: "2", Name: "Alex"}, {ID: "3", Name: "ANNA"}})
	got := names(groups.Bucket("A").Contacts)
	want := []string{"Alex", "ANNA", "anton"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestContactValidate(t *testing.T) {
	tests := []struct {
		name    string
		contact Contact
		wantErr bool
	}{
		{name: "ok", contact: Contact{Name: "Amy", Email: "amy@example.com"}},
		{name: "phone optional", contact: Contact{Name: "Amy", Email: "amy@example.com", Phone: ""}},
		{name: "missing name", contact: Contact{Name: " ", Email: "amy@example.com"}, wantErr: true},
		{name: "missing email", contact: Contact{Name: "Amy"}, wantErr: true},
		{name: "bad email", contact: Contact{Name: "Amy", Email: "not-an-email"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.contact.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidContact) {
				t.Fatalf("expected ErrInvalidContact, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestContactInitialsAndColor(t *testing.T) {
	c := Contact{ID: "c1", Name: "anna maria schmidt"}
	if got := c.Initials(); got != "AS" {
		t.Fatalf("expected AS, got %q", got)
	}
	if got := (Contact{Name: "Ben"}).Initials(); got != "B" {
		t.Fatalf("expected B, got %q", got)
	}
	if c.Color() != c.Color() || c.Color() == "" {
		t.Fatalf("expected a stable colour")
	}
}

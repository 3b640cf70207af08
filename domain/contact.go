package domain

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/mail"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrInvalidContact = errors.New("invalid contact")

// OtherBucket collects contacts whose name does not start with A-Z.
const OtherBucket = "#"

var avatarPalette = [...]string{
	"#FF7A00", "#FF5EB3", "#6E52FF", "#9327FF", "#00BEE8",
	"#1FD7C1", "#FF745E", "#FFA35E", "#FC71FF", "#FFC701",
	"#0038FF", "#C3FF2B", "#FFE62B", "#FF4646", "#FFBB2B",
}

// Contact is an address book entry.
type Contact struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c *Contact) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
}

func (c Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidContact)
	}
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidContact)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: malformed email %q", ErrInvalidContact, c.Email)
	}
	return nil
}

// Initials returns up to two uppercase letters taken from the first and last word of the name.
func (c Contact) Initials() string {
	words := strings.Fields(c.Name)
	if len(words) == 0 {
		return ""
	}
	first, _ := utf8.DecodeRuneInString(words[0])
	out := string(unicode.ToUpper(first))
	if len(words) > 1 {
		last, _ := utf8.DecodeRuneInString(words[len(words)-1])
		out += string(unicode.ToUpper(last))
	}
	return out
}

// Color picks a stable avatar colour for the contact.
func (c Contact) Color() string {
	key := c.ID
	if key == "" {
		key = c.Name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return avatarPalette[h.Sum32()%uint32(len(avatarPalette))]
}

// BucketKey returns the letter bucket for name, or OtherBucket.
func BucketKey(name string) string {
	name = strings.TrimSpace(name)
	r, _ := utf8.DecodeRuneInString(name)
	r = unicode.ToUpper(r)
	if r >= 'A' && r <= 'Z' {
		return string(r)
	}
	return OtherBucket
}

// ContactGroup is one letter bucket of the address book.
type ContactGroup struct {
	Letter   string    `json:"letter"`
	Contacts []Contact `json:"contacts"`
}

// ContactGroups holds the 26 letter buckets followed by OtherBucket.
type ContactGroups [27]ContactGroup

// Bucket returns the group stored under letter, or nil for an unknown key.
func (g *ContactGroups) Bucket(letter string) *ContactGroup {
	for i := range g {
		if g[i].Letter == letter {
			return &g[i]
		}
	}
	return nil
}

// NonEmpty returns the buckets that hold at least one contact.
func (g ContactGroups) NonEmpty() []ContactGroup {
	out := make([]ContactGroup, 0, len(g))
	for _, b := range g {
		if len(b.Contacts) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// GroupContacts clears every bucket and places each contact into the bucket of
// its first letter, each bucket kept sorted by name.
func GroupContacts(contacts []Contact) ContactGroups {
	var groups ContactGroups
	for i := 0; i < 26; i++ {
		groups[i] = ContactGroup{Letter: string(rune('A' + i)), Contacts: []Contact{}}
	}
	groups[26] = ContactGroup{Letter: OtherBucket, Contacts: []Contact{}}

	for _, c := range contacts {
		b := groups.Bucket(BucketKey(c.Name))
		idx := sort.Search(len(b.Contacts), func(i int) bool {
			return !contactLess(b.Contacts[i], c)
		})
		b.Contacts = append(b.Contacts, Contact{})
		copy(b.Contacts[idx+1:], b.Contacts[idx:])
		b.Contacts[idx] = c
	}
	return groups
}

func contactLess(a, b Contact) bool {
	al, bl := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if al != bl {
		return al < bl
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

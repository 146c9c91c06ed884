package auth

import (
	"strings"

	"github.com/zeenbase/zeenbase/internal/model"
)

// AdminSet is the configured set of admin identities.
// Emails compare case-insensitively; user ids compare exactly.
type AdminSet struct {
	emails map[string]struct{}
	ids    map[string]struct{}
}

// NewAdminSet builds an AdminSet from configured emails and user ids.
func NewAdminSet(emails, userIDs []string) *AdminSet {
	s := &AdminSet{
		emails: make(map[string]struct{}, len(emails)),
		ids:    make(map[string]struct{}, len(userIDs)),
	}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			s.emails[e] = struct{}{}
		}
	}
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// IsAdmin reports whether the identity is an admin.
func (s *AdminSet) IsAdmin(id model.Identity) bool {
	if s == nil {
		return false
	}
	if _, ok := s.ids[id.ID]; ok && id.ID != "" {
		return true
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return false
	}
	_, ok := s.emails[email]
	return ok
}

// Len returns the number of configured admin entries.
func (s *AdminSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.emails) + len(s.ids)
}

// superadmin.go implements the platform superadmin authorization gate.
//
// Superadmin access is two-tier. A small set of platform operators is declared
// through environment allowlists and needs no membership row at all; everyone
// else qualifies by holding an owner or admin membership in some organization.
// The allowlist is parsed once at startup and swapped wholesale on Reload()
// rather than re-read from the environment on every check, so the dependency
// on process environment is explicit and tests never have to mutate it.
package auth

import (
	"context"
	"os"
	"strings"
	"sync"
)

const (
	// EnvSuperAdminEmails is the primary allowlist variable.
	EnvSuperAdminEmails = "AROHA_SUPERADMIN_EMAILS"

	// EnvSuperAdminEmailsExtra is the secondary allowlist. It has no AROHA_
	// prefix because it may be injected by infrastructure tooling that treats
	// it as a generic secret name. Both lists are unioned, never overridden.
	EnvSuperAdminEmailsExtra = "SUPERADMIN_EMAILS"
)

// Allowlist is a normalized set of superadmin email addresses.
type Allowlist struct {
	emails map[string]struct{}
}

// ParseAllowlist builds an allowlist from any number of comma-separated email
// lists. Entries are trimmed and lower-cased; empty entries are dropped.
func ParseAllowlist(lists ...string) *Allowlist {
	emails := make(map[string]struct{})
	for _, list := range lists {
		for _, entry := range strings.Split(list, ",") {
			email := strings.ToLower(strings.TrimSpace(entry))
			if email == "" {
				continue
			}
			emails[email] = struct{}{}
		}
	}
	return &Allowlist{emails: emails}
}

// AllowlistFromEnv builds the allowlist from the union of both environment
// variables.
func AllowlistFromEnv() *Allowlist {
	return ParseAllowlist(os.Getenv(EnvSuperAdminEmails), os.Getenv(EnvSuperAdminEmailsExtra))
}

// Contains reports whether email is on the allowlist. Comparison is
// case-insensitive and ignores surrounding whitespace. Empty input is never
// on the list.
func (a *Allowlist) Contains(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	_, ok := a.emails[email]
	return ok
}

// Len returns the number of allowlisted addresses.
func (a *Allowlist) Len() int {
	return len(a.emails)
}

// MembershipStore is the membership lookup the gate depends on. Implemented
// by repositories.OrganizationRepository.
type MembershipStore interface {
	// HasMembershipWithRole reports whether a user with the given email holds
	// a membership with any of the given roles, in any organization.
	HasMembershipWithRole(ctx context.Context, email string, roles []string) (bool, error)
}

// SuperAdminGate decides whether an identity may act as a platform superadmin.
type SuperAdminGate struct {
	mu        sync.RWMutex
	allowlist *Allowlist
	members   MembershipStore
}

// NewSuperAdminGate creates a gate over an explicitly constructed allowlist
// and a membership store.
func NewSuperAdminGate(allowlist *Allowlist, members MembershipStore) *SuperAdminGate {
	if allowlist == nil {
		allowlist = ParseAllowlist()
	}
	return &SuperAdminGate{allowlist: allowlist, members: members}
}

// IsSuperAdminEmail is the pure allowlist check: true iff the email is on the
// environment-declared allowlist union. Empty input yields false.
func (g *SuperAdminGate) IsSuperAdminEmail(email string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.allowlist.Contains(email)
}

// CanAccessSuperAdmin reports whether the identity may access superadmin
// surfaces: allowlisted, or holding an owner/admin membership somewhere.
// Empty email fails closed without touching storage.
func (g *SuperAdminGate) CanAccessSuperAdmin(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}
	if g.IsSuperAdminEmail(email) {
		return true, nil
	}
	return g.members.HasMembershipWithRole(ctx, email, AdminRoles())
}

// Reload replaces the allowlist with a freshly parsed copy of the environment
// variables. Role changes in membership data need no reload; they take effect
// on the next check because memberships are queried per call.
func (g *SuperAdminGate) Reload() {
	fresh := AllowlistFromEnv()
	g.mu.Lock()
	g.allowlist = fresh
	g.mu.Unlock()
}

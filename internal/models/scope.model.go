package models

import "slices"

// RequestScope selects a request listing. Clients list open/closed; professionals
// list new/in-process/mine/closed/chat.
type RequestScope string

const (
	ScopeOpen      RequestScope = "open"
	ScopeClosed    RequestScope = "closed"
	ScopeNew       RequestScope = "new"
	ScopeInProcess RequestScope = "in-process"
	ScopeMine      RequestScope = "mine"
	ScopeChat      RequestScope = "chat"
)

var roleScopes = map[Role][]RequestScope{
	RoleClient:       {ScopeOpen, ScopeClosed},
	RoleProfessional: {ScopeNew, ScopeInProcess, ScopeMine, ScopeClosed, ScopeChat},
}

func (s RequestScope) ValidFor(role Role) bool {
	return slices.Contains(roleScopes[role], s)
}

// DefaultScope is the listing views open with.
func DefaultScope(role Role) RequestScope {
	if role == RoleProfessional {
		return ScopeNew
	}
	return ScopeOpen
}

// BadgeScope is the listing whose unread chats feed the header badge.
func BadgeScope(role Role) RequestScope {
	if role == RoleProfessional {
		return ScopeChat
	}
	return ScopeOpen
}

// NormalizeScope maps the shared "open" name onto the professional "new" listing.
func NormalizeScope(role Role, scope RequestScope) RequestScope {
	if role == RoleProfessional && scope == ScopeOpen {
		return ScopeNew
	}
	if scope == "" {
		return DefaultScope(role)
	}
	return scope
}

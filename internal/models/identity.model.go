package models

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
)

var Roles = []Role{RoleClient, RoleProfessional}

func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleClient:
		return RoleClient, nil
	case RoleProfessional, "prof", "pro":
		return RoleProfessional, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// ChatType is the role name the token-issuance endpoint expects.
func (r Role) ChatType() string {
	if r == RoleProfessional {
		return "prof"
	}
	return string(r)
}

// Identity is a verified user as returned by the verify endpoints.
// Professionals are addressed by their profId, clients by their user id.
type Identity struct {
	Role     Role   `json:"role"`
	UserID   ID     `json:"userId"`
	FullName string `json:"fullName,omitempty"`
}

func (i Identity) Key() string {
	return fmt.Sprintf("%s:%s", i.Role, i.UserID)
}

func (i Identity) IsZero() bool {
	return i.UserID.IsZero()
}

// VerifiedUser is the decryptedUserdata payload of the verify endpoints.
type VerifiedUser struct {
	ID       ID     `json:"id"`
	ProfID   ID     `json:"profId"`
	FullName string `json:"fullName"`
	Name     string `json:"name"`
}

func (u VerifiedUser) Identity(role Role) Identity {
	identity := Identity{Role: role, UserID: u.ID, FullName: u.FullName}
	if identity.FullName == "" {
		identity.FullName = u.Name
	}
	if role == RoleProfessional && !u.ProfID.IsZero() {
		identity.UserID = u.ProfID
	}
	return identity
}

// Credentials are the API tokens of one role, rotated by the server on every response.
type Credentials struct {
	AccessToken  string `json:"accessToken"  validate:"required"`
	RefreshToken string `json:"refreshToken"`
}

func (c Credentials) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

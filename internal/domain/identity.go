package domain

import "context"

// UserType mirrors the user_type column of the users table
type UserType int

const (
	UserTypeCustomer UserType = 1
	UserTypeService  UserType = 2
	UserTypeAdmin    UserType = 3
)

// RoleFlags is a bit set of roles held by an identity
type RoleFlags uint8

const (
	RoleCustomer RoleFlags = 1 << iota
	RoleService
	RoleAdmin
)

// Has reports whether all bits of r are set
func (f RoleFlags) Has(r RoleFlags) bool {
	return f&r == r
}

// RolesFor maps a stored user type to role flags
func RolesFor(t UserType) RoleFlags {
	switch t {
	case UserTypeCustomer:
		return RoleCustomer
	case UserTypeService:
		return RoleService
	case UserTypeAdmin:
		return RoleAdmin | RoleService
	}
	return 0
}

// Identity is a resolved user
type Identity struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Roles RoleFlags `json:"roles"`
}

// IdentityResolver looks up users. Resolve returns a NotFound error for
// unknown ids.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID int64) (*Identity, error)
}

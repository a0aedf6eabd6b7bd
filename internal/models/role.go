package models

import (
	"database/sql/driver"
	"fmt"
)

// Role is the access level stored on a user and carried in the access token.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Capability names one privileged action.
type Capability int

const (
	// ManageUsers covers listing, updating and deleting users, creating
	// admins and setting balances directly.
	ManageUsers Capability = iota + 1
	ViewAllTransactions
	DeleteTransactions
	ViewAuditLogs
	// ManageClients covers updating and deleting client records.
	ManageClients
)

// ParseRole validates a role name. An empty name is a client.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleClient, "":
		return RoleClient, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Can reports whether the role holds the capability.
func (r Role) Can(c Capability) bool {
	switch r {
	case RoleAdmin:
		return c >= ManageUsers && c <= ManageClients
	default:
		return false
	}
}

// Value stores the role as plain text; some sqlite drivers reject named
// string types as bind arguments.
func (r Role) Value() (driver.Value, error) {
	return string(r), nil
}

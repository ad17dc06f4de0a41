package protocol

import (
	"fmt"
	"strings"
)

// Role is one of the three actor kinds, each with its own chat front end.
type Role string

const (
	RoleDA         Role = "DA"
	RoleSupervisor Role = "Supervisor"
	RoleClient     Role = "Client"
)

// Roles lists every role.
var Roles = []Role{RoleDA, RoleSupervisor, RoleClient}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// Subscription binds a platform user to a role and an outbound chat.
// There is exactly one subscription per (UserID, Role).
type Subscription struct {
	UserID    int64  `json:"user_id"`
	Role      Role   `json:"role"`
	Phone     string `json:"phone"`
	Client    string `json:"client,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	ChatID    int64  `json:"chat_id"`
}

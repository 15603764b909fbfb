// Package auth provides authentication for the CRM: accounts, sessions and
// the profile endpoints. Other domains only see the user ID it establishes.
package auth

import (
	"context"

	"github.com/google/uuid"
)

// UserResolver maps an account email to its user ID. Tools acting on behalf of
// a configured account, such as the MCP server, depend on this.
type UserResolver interface {
	ResolveUserID(ctx context.Context, email string) (uuid.UUID, error)
}

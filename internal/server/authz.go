package server

import (
	"context"
	"fmt"

	"nexboard/internal/engine"
)

// ForbiddenError reports a session whose role policy lacks a permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("missing permission %s", e.Permission)
}

// requirePermission resolves the request's principal and checks the
// configured role policy. Reads only need authentication; mutating
// endpoints call this with the write permission they need.
func requirePermission(ctx context.Context, e engine.Engine, permission string) (Principal, error) {
	p, authErr := principalFromContext(ctx)
	if authErr != nil {
		return Principal{}, authErr
	}
	if e.Config == nil || !e.Config.Allows(p.Role, permission) {
		return Principal{}, ForbiddenError{Permission: permission}
	}
	return p, nil
}

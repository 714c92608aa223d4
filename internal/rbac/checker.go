package rbac

import (
	"context"
	"strings"
)

// Checker answers permission questions against a role policy. A grant of
// "*" covers everything; a grant ending in "*" covers every permission with
// that prefix, e.g. "results:*".
type Checker struct {
	policy map[string][]string
}

// NewChecker builds a checker for policy; nil selects RolePermissions.
func NewChecker(policy map[string][]string) *Checker {
	if policy == nil {
		policy = RolePermissions
	}
	return &Checker{policy: policy}
}

func (c *Checker) Has(role, perm string) bool {
	for _, g := range c.policy[role] {
		if grants(g, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

// Permissions expands the grants of role into the concrete permissions of
// AllPermissions, in that order. Clients use it to decide which screens to
// offer; the server still checks every request.
func (c *Checker) Permissions(role string) []string {
	out := []string{}
	for _, p := range AllPermissions {
		if c.Has(role, p) {
			out = append(out, p)
		}
	}
	return out
}

func grants(grant, perm string) bool {
	if grant == "*" || grant == perm {
		return true
	}
	prefix, ok := strings.CutSuffix(grant, "*")
	return ok && strings.HasPrefix(perm, prefix)
}

type ctxKey struct{}

// WithRole stores the caller's role; JWTMiddleware sets it from the token.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

package school

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/sprout/internal/domain"
)

// ScopeChildren resolves the children a caller may see before any
// dependent query runs. Parents see only their own children; staff see
// every child. An empty result means the caller has nothing in scope.
func ScopeChildren(ctx context.Context, gw Gateway, caller domain.Caller) ([]domain.Child, error) {
	f := ChildFilter{Limit: -1}
	if caller.Role == domain.RoleParent {
		if caller.ID == "" {
			return nil, nil
		}
		f.ParentID = caller.ID
	}
	children, err := gw.Children(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("resolving children in scope: %w", err)
	}
	return children, nil
}

// ChildIDs returns the IDs of the given children.
func ChildIDs(children []domain.Child) []string {
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	return ids
}

// NarrowChildren keeps children whose name partially matches name. An
// empty name keeps everything.
func NarrowChildren(children []domain.Child, name string) []domain.Child {
	if name == "" {
		return children
	}
	var out []domain.Child
	for _, c := range children {
		if containsFold(c.Name, name) || containsFold(c.Nickname, name) {
			out = append(out, c)
		}
	}
	return out
}

// containsFold reports whether substr appears in s, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
